package batcher

import "time"

// defaultTimeEstimates are used for an operation type with no recorded
// history yet.
var defaultTimeEstimates = map[string]time.Duration{
	"mouse_move":     5 * time.Millisecond,
	"mouse_click":    10 * time.Millisecond,
	"mouse_scroll":   10 * time.Millisecond,
	"key_press":      8 * time.Millisecond,
	"key_release":    8 * time.Millisecond,
	"type_text":      50 * time.Millisecond,
	"capture_screen": 100 * time.Millisecond,
	"get_displays":   20 * time.Millisecond,
}

const defaultTimeEstimate = 25 * time.Millisecond

// defaultMemoryEstimates are in bytes.
var defaultMemoryEstimates = map[string]int{
	"capture_screen": 4 * 1024 * 1024,
	"get_displays":   1024,
	"list_windows":   4096,
}

const defaultMemoryEstimate = 256

// maxSamplesPerType bounds how many recent timings are kept per
// operation type; only the most recent are averaged.
const maxSamplesPerType = 100

// recentSamplesForAverage is how many of the most recent timings feed the
// time estimate.
const recentSamplesForAverage = 10

// CostModel estimates operation cost from recent history, falling back
// to fixed defaults for a type it has never seen.
type CostModel struct {
	timings     map[string][]time.Duration
	errorCounts map[string]int
}

// NewCostModel returns an empty CostModel.
func NewCostModel() *CostModel {
	return &CostModel{
		timings:     make(map[string][]time.Duration),
		errorCounts: make(map[string]int),
	}
}

// EstimateTime returns the expected duration of one operation of
// operationType: the average of its last recentSamplesForAverage
// recorded timings, or a fixed default if none are recorded.
func (c *CostModel) EstimateTime(operationType string) time.Duration {
	samples := c.timings[operationType]
	if len(samples) == 0 {
		if d, ok := defaultTimeEstimates[operationType]; ok {
			return d
		}
		return defaultTimeEstimate
	}

	start := 0
	if len(samples) > recentSamplesForAverage {
		start = len(samples) - recentSamplesForAverage
	}
	recent := samples[start:]

	var total time.Duration
	for _, d := range recent {
		total += d
	}
	return total / time.Duration(len(recent))
}

// EstimateMemory returns the expected memory footprint in bytes of one
// operation of operationType.
func (c *CostModel) EstimateMemory(operationType string) int {
	if m, ok := defaultMemoryEstimates[operationType]; ok {
		return m
	}
	return defaultMemoryEstimate
}

// RecordSample folds a completed operation's duration and outcome into
// the model, retaining at most the most recent maxSamplesPerType
// timings per operation type.
func (c *CostModel) RecordSample(operationType string, duration time.Duration, success bool) {
	samples := append(c.timings[operationType], duration)
	if len(samples) > maxSamplesPerType {
		samples = samples[len(samples)-maxSamplesPerType:]
	}
	c.timings[operationType] = samples

	if !success {
		c.errorCounts[operationType]++
	}
}

// ErrorCount returns how many recorded failures operationType has had.
func (c *CostModel) ErrorCount(operationType string) int {
	return c.errorCounts[operationType]
}
