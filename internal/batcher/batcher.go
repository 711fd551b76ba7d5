// Package batcher queues input operations, groups them into
// platform-optimized batches, and retunes its own batch size and timing
// as observed performance changes.
package batcher

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Priority values assigned to each operation type; a queued operation of
// higher priority is flushed before a lower-priority one queued earlier.
const (
	PriorityMouseMove  uint8 = 128
	PriorityMouseClick uint8 = 200
	PriorityKeyPress   uint8 = 150
	PriorityTypeText   uint8 = 180
)

// textChunkSize is the maximum number of runes per type_text operation;
// longer text is split into several queued operations for responsiveness.
const textChunkSize = 50

// QueuedOperation is one operation waiting to be flushed.
type QueuedOperation struct {
	OperationType string
	Parameters    map[string]any
	QueuedAt      time.Time
	Priority      uint8
	Callback      func(error)
}

// Config tunes queueing, flush triggers, and the adaptive retuner.
type Config struct {
	BatchSize      int
	MinInterval    time.Duration
	MaxAge         time.Duration
	MaxMemoryBytes int64
	CacheTTL       time.Duration
	CachingEnabled bool
}

// DefaultConfig matches the spec's stated defaults: batch size 10, 100ms
// max age.
func DefaultConfig() Config {
	return Config{
		BatchSize:      10,
		MinInterval:    10 * time.Millisecond,
		MaxAge:         100 * time.Millisecond,
		MaxMemoryBytes: 128 * 1024 * 1024,
		CacheTTL:       60 * time.Second,
		CachingEnabled: true,
	}
}

// Executor carries out one queued operation against the platform.
type Executor interface {
	Execute(ctx context.Context, op QueuedOperation) error
}

// stats mirrors the operation-statistics the adaptive retuner consults.
type stats struct {
	total             uint64
	successful        uint64
	failed            uint64
	avgLatency        time.Duration
	lastAdaptation    time.Time
	estimatedDuration time.Duration
	estimatedMemory   int64
}

// Stats is a point-in-time snapshot of a Batcher's execution history,
// including the cost model's running estimate totals.
type Stats struct {
	Total             uint64
	Successful        uint64
	Failed            uint64
	AverageLatency    time.Duration
	EstimatedDuration time.Duration
	EstimatedMemory   int64
}

// Batcher holds a priority queue of pending operations and flushes them
// through an Executor either when the queue is full or the oldest queued
// operation has aged past MaxAge.
type Batcher struct {
	mu         sync.Mutex
	cfg        Config
	queue      []QueuedOperation
	cost       *CostModel
	strategy   Strategy
	processing bool
	cpuPercent func() float64

	statsMu sync.Mutex
	st      stats
}

// New returns a Batcher using strategy for batch cost adjustment and
// cpuPercentFunc to sample current CPU load for the Adaptive strategy (a
// nil func reports 0).
func New(cfg Config, strategy Strategy, cpuPercentFunc func() float64) *Batcher {
	if cpuPercentFunc == nil {
		cpuPercentFunc = func() float64 { return 0 }
	}
	return &Batcher{
		cfg:        cfg,
		cost:       NewCostModel(),
		strategy:   strategy,
		cpuPercent: cpuPercentFunc,
		st:         stats{lastAdaptation: time.Now()},
	}
}

// ChunkText splits text into runs of at most textChunkSize runes, the
// chunking the spec's type_text operation applies to long input.
func ChunkText(text string) []string {
	runes := []rune(text)
	if len(runes) <= textChunkSize {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+textChunkSize-1)/textChunkSize)
	for i := 0; i < len(runes); i += textChunkSize {
		end := i + textChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// Enqueue inserts op ahead of any queued operation of strictly lower
// priority, preserving arrival order among operations of equal priority.
func (b *Batcher) Enqueue(op QueuedOperation) {
	if op.QueuedAt.IsZero() {
		op.QueuedAt = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	insertAt := len(b.queue)
	for i, existing := range b.queue {
		if existing.Priority < op.Priority {
			insertAt = i
			break
		}
	}
	b.queue = append(b.queue, QueuedOperation{})
	copy(b.queue[insertAt+1:], b.queue[insertAt:])
	b.queue[insertAt] = op
}

// ShouldFlush reports whether the queue is full or its oldest entry has
// aged past MaxAge.
func (b *Batcher) ShouldFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shouldFlushLocked()
}

func (b *Batcher) shouldFlushLocked() bool {
	if len(b.queue) >= b.cfg.BatchSize {
		return true
	}
	if len(b.queue) == 0 {
		return false
	}
	return time.Since(b.queue[0].QueuedAt) > b.cfg.MaxAge
}

// QueueSize reports how many operations are currently queued.
func (b *Batcher) QueueSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// MaybeFlush flushes the queue through executor if ShouldFlush holds and
// no flush is already in progress (the single-flight guard); it is a
// no-op otherwise.
func (b *Batcher) MaybeFlush(ctx context.Context, executor Executor) error {
	b.mu.Lock()
	if b.processing || !b.shouldFlushLocked() {
		b.mu.Unlock()
		return nil
	}
	b.processing = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.processing = false
		b.mu.Unlock()
	}()

	return b.flush(ctx, executor)
}

// Flush forces immediate processing of every queued operation,
// regardless of ShouldFlush, honoring the same single-flight guard.
func (b *Batcher) Flush(ctx context.Context, executor Executor) error {
	b.mu.Lock()
	if b.processing {
		b.mu.Unlock()
		return nil
	}
	b.processing = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.processing = false
		b.mu.Unlock()
	}()

	return b.flush(ctx, executor)
}

func (b *Batcher) flush(ctx context.Context, executor Executor) error {
	b.mu.Lock()
	ops := b.queue
	b.queue = nil
	b.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	cpu := b.cpuPercent()
	strategy := b.strategy
	if hp, ok := strategy.(HighPerformance); ok {
		strategy = hp.WithBatchSize(len(ops))
	}

	for _, op := range ops {
		start := time.Now()
		estimate := Estimate{Duration: b.cost.EstimateTime(op.OperationType), Memory: b.cost.EstimateMemory(op.OperationType)}
		estimate = strategy.Adjust(estimate, cpu)

		err := executor.Execute(ctx, op)
		elapsed := time.Since(start)

		b.cost.RecordSample(op.OperationType, elapsed, err == nil)
		b.recordStats(elapsed, err == nil, estimate)

		if op.Callback != nil {
			op.Callback(err)
		}
	}
	return nil
}

func (b *Batcher) recordStats(latency time.Duration, success bool, estimate Estimate) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	b.st.total++
	if success {
		b.st.successful++
	} else {
		b.st.failed++
	}
	n := time.Duration(b.st.total)
	b.st.avgLatency += (latency - b.st.avgLatency) / n
	b.st.estimatedDuration += estimate.Duration
	b.st.estimatedMemory += int64(estimate.Memory)
}

// Stats returns a snapshot of accumulated execution and estimate totals.
func (b *Batcher) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return Stats{
		Total:             b.st.total,
		Successful:        b.st.successful,
		Failed:            b.st.failed,
		AverageLatency:    b.st.avgLatency,
		EstimatedDuration: b.st.estimatedDuration,
		EstimatedMemory:   b.st.estimatedMemory,
	}
}

// MaybeAdapt retunes BatchSize, MinInterval, and caching if at least 60
// seconds have passed since the last adaptation: a high failure rate
// makes the batcher more conservative, consistently fast operations make
// it more aggressive, and memory pressure disables caching.
func (b *Batcher) MaybeAdapt(observedMemoryBytes int64) {
	b.statsMu.Lock()
	if time.Since(b.st.lastAdaptation) < 60*time.Second {
		b.statsMu.Unlock()
		return
	}
	total, failed, avgLatency := b.st.total, b.st.failed, b.st.avgLatency
	b.st.lastAdaptation = time.Now()
	b.statsMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if total > 0 && failed > total/10 {
		if b.cfg.BatchSize > 1 {
			b.cfg.BatchSize--
		}
		b.cfg.MinInterval = time.Duration(float64(b.cfg.MinInterval) * 1.2)
	} else if avgLatency > 0 && avgLatency < 10*time.Millisecond {
		if b.cfg.BatchSize < 100 {
			b.cfg.BatchSize++
		}
		b.cfg.MinInterval = time.Duration(float64(b.cfg.MinInterval) * 0.9)
	}

	if observedMemoryBytes > b.cfg.MaxMemoryBytes {
		b.cfg.CachingEnabled = false
		b.cfg.CacheTTL = time.Duration(float64(b.cfg.CacheTTL) * 0.8)
	}
}

// Config returns a copy of the batcher's current tunables.
func (b *Batcher) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// ErrUnknownOperation is returned by a simple Executor for an operation
// type it doesn't recognize.
var ErrUnknownOperation = fmt.Errorf("unknown operation type")
