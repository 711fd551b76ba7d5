package inputstate

import (
	"sync"
	"time"
)

// peakWindow is the trailing window over which completed operations are
// counted to derive PeakOpsPerSecond.
const peakWindow = 1 * time.Second

// Metrics is a running counter and single-pass average for operation
// latency, plus a true rolling-window ops/s watermark.
//
// The source this was distilled from derives peak_operations_per_second by
// comparing last_operation_time to itself, which is always zero; the
// intended metric is a rolling ops/s watermark, implemented here as the
// maximum, over any 1s trailing window, of completed operations in that
// window. Reset only clears the watermark explicitly, never implicitly.
type Metrics struct {
	mu sync.Mutex

	totalOperations      uint64
	successfulOperations uint64
	failedOperations     uint64
	averageOperationTime time.Duration

	recentCompletions []time.Time // trimmed lazily to peakWindow
	peakOpsPerSecond  float64
}

// NewMetrics returns a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordOperation folds one completed operation into the running average
// and updates the peak-ops-per-second watermark.
func (m *Metrics) RecordOperation(success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalOperations++
	if success {
		m.successfulOperations++
	} else {
		m.failedOperations++
	}

	// Single-pass running average: avg' = avg + (x - avg) / n
	n := float64(m.totalOperations)
	m.averageOperationTime += time.Duration((float64(duration) - float64(m.averageOperationTime)) / n)

	now := time.Now()
	m.recentCompletions = append(m.recentCompletions, now)
	m.trimOldCompletions(now)

	if current := float64(len(m.recentCompletions)); current > m.peakOpsPerSecond {
		m.peakOpsPerSecond = current
	}
}

func (m *Metrics) trimOldCompletions(now time.Time) {
	cutoff := now.Add(-peakWindow)
	i := 0
	for i < len(m.recentCompletions) && m.recentCompletions[i].Before(cutoff) {
		i++
	}
	m.recentCompletions = m.recentCompletions[i:]
}

// MetricsSnapshot is a point-in-time, lock-free copy of Metrics' counters.
type MetricsSnapshot struct {
	TotalOperations      uint64
	SuccessfulOperations uint64
	FailedOperations     uint64
	AverageOperationTime time.Duration
	PeakOpsPerSecond     float64
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimOldCompletions(time.Now())
	return MetricsSnapshot{
		TotalOperations:      m.totalOperations,
		SuccessfulOperations: m.successfulOperations,
		FailedOperations:     m.failedOperations,
		AverageOperationTime: m.averageOperationTime,
		PeakOpsPerSecond:     m.peakOpsPerSecond,
	}
}

// Reset zeroes every counter including the peak watermark. This is the
// only way the watermark ever decreases.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalOperations = 0
	m.successfulOperations = 0
	m.failedOperations = 0
	m.averageOperationTime = 0
	m.recentCompletions = nil
	m.peakOpsPerSecond = 0
}
