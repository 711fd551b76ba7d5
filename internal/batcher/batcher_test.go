package batcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingExecutor struct {
	mu       sync.Mutex
	executed []string
	fail     map[string]bool
}

func (e *recordingExecutor) Execute(_ context.Context, op QueuedOperation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, op.OperationType)
	if e.fail[op.OperationType] {
		return errors.New("boom")
	}
	return nil
}

func TestEnqueueOrdersByPriorityThenArrival(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	b.Enqueue(QueuedOperation{OperationType: "mouse_move", Priority: PriorityMouseMove})
	b.Enqueue(QueuedOperation{OperationType: "mouse_click", Priority: PriorityMouseClick})
	b.Enqueue(QueuedOperation{OperationType: "key_press", Priority: PriorityKeyPress})

	b.mu.Lock()
	order := make([]string, len(b.queue))
	for i, op := range b.queue {
		order[i] = op.OperationType
	}
	b.mu.Unlock()

	want := []string{"mouse_click", "key_press", "mouse_move"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("queue order = %v, want %v", order, want)
		}
	}
}

func TestEnqueueEqualPriorityPreservesArrivalOrder(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	b.Enqueue(QueuedOperation{OperationType: "first", Priority: 100})
	b.Enqueue(QueuedOperation{OperationType: "second", Priority: 100})

	b.mu.Lock()
	order := []string{b.queue[0].OperationType, b.queue[1].OperationType}
	b.mu.Unlock()

	if order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}
}

func TestShouldFlushWhenQueueFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	b := New(cfg, Adaptive{}, nil)

	b.Enqueue(QueuedOperation{OperationType: "a", Priority: 1})
	if b.ShouldFlush() {
		t.Fatal("expected no flush with one queued operation")
	}
	b.Enqueue(QueuedOperation{OperationType: "b", Priority: 1})
	if !b.ShouldFlush() {
		t.Fatal("expected flush once queue reaches batch size")
	}
}

func TestShouldFlushWhenOldestTooOld(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 1000
	cfg.MaxAge = 5 * time.Millisecond
	b := New(cfg, Adaptive{}, nil)

	b.Enqueue(QueuedOperation{OperationType: "a", Priority: 1})
	time.Sleep(10 * time.Millisecond)
	if !b.ShouldFlush() {
		t.Fatal("expected flush once oldest operation exceeds MaxAge")
	}
}

func TestFlushExecutesAllQueuedOperations(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	b.Enqueue(QueuedOperation{OperationType: "mouse_move", Priority: PriorityMouseMove})
	b.Enqueue(QueuedOperation{OperationType: "key_press", Priority: PriorityKeyPress})

	exec := &recordingExecutor{fail: map[string]bool{}}
	if err := b.Flush(context.Background(), exec); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(exec.executed) != 2 {
		t.Fatalf("executed %d operations, want 2", len(exec.executed))
	}
	if b.QueueSize() != 0 {
		t.Fatal("expected queue to be empty after flush")
	}
}

func TestFlushAccumulatesCostEstimates(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	b.Enqueue(QueuedOperation{OperationType: "mouse_move", Priority: PriorityMouseMove})
	b.Enqueue(QueuedOperation{OperationType: "type_text", Priority: PriorityTypeText})

	exec := &recordingExecutor{fail: map[string]bool{}}
	if err := b.Flush(context.Background(), exec); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	stats := b.Stats()
	if stats.Total != 2 {
		t.Fatalf("stats.Total = %d, want 2", stats.Total)
	}
	if stats.EstimatedDuration <= 0 {
		t.Fatal("expected EstimatedDuration to accumulate across flushed operations")
	}
	if stats.EstimatedMemory <= 0 {
		t.Fatal("expected EstimatedMemory to accumulate across flushed operations")
	}
}

func TestFlushInvokesCallbackWithResult(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	var gotErr error
	done := make(chan struct{})
	b.Enqueue(QueuedOperation{
		OperationType: "mouse_move",
		Priority:      PriorityMouseMove,
		Callback: func(err error) {
			gotErr = err
			close(done)
		},
	})

	exec := &recordingExecutor{fail: map[string]bool{"mouse_move": true}}
	if err := b.Flush(context.Background(), exec); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	<-done
	if gotErr == nil {
		t.Fatal("expected callback to receive the execution error")
	}
}

func TestChunkTextSplitsLongText(t *testing.T) {
	text := ""
	for i := 0; i < 120; i++ {
		text += "a"
	}
	chunks := ChunkText(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 50 || len(chunks[1]) != 50 || len(chunks[2]) != 20 {
		t.Fatalf("unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestChunkTextShortTextIsOneChunk(t *testing.T) {
	chunks := ChunkText("hello")
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Fatalf("ChunkText(short) = %v, want one chunk", chunks)
	}
}

func TestMaybeAdaptTightensOnHighFailureRate(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	b.st.lastAdaptation = time.Now().Add(-2 * time.Minute)
	b.st.total = 100
	b.st.failed = 20

	before := b.Config().BatchSize
	b.MaybeAdapt(0)
	after := b.Config().BatchSize

	if after != before-1 {
		t.Fatalf("BatchSize = %d, want %d after a high failure rate", after, before-1)
	}
}

func TestMaybeAdaptLoosensOnFastOperations(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	b.st.lastAdaptation = time.Now().Add(-2 * time.Minute)
	b.st.total = 100
	b.st.failed = 0
	b.st.avgLatency = 5 * time.Millisecond

	before := b.Config().BatchSize
	b.MaybeAdapt(0)
	after := b.Config().BatchSize

	if after != before+1 {
		t.Fatalf("BatchSize = %d, want %d after fast operations", after, before+1)
	}
}

func TestMaybeAdaptDisablesCachingOnMemoryPressure(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	b.st.lastAdaptation = time.Now().Add(-2 * time.Minute)

	b.MaybeAdapt(b.Config().MaxMemoryBytes + 1)
	if b.Config().CachingEnabled {
		t.Fatal("expected caching to be disabled under memory pressure")
	}
}

func TestMaybeAdaptNoOpBeforeSixtySeconds(t *testing.T) {
	b := New(DefaultConfig(), Adaptive{}, nil)
	b.st.total = 100
	b.st.failed = 20

	before := b.Config().BatchSize
	b.MaybeAdapt(0)
	if b.Config().BatchSize != before {
		t.Fatal("expected no adaptation before 60s have elapsed")
	}
}

func TestCostModelFallsBackToDefaultForUnknownType(t *testing.T) {
	c := NewCostModel()
	if got := c.EstimateTime("mouse_move"); got != 5*time.Millisecond {
		t.Fatalf("EstimateTime(mouse_move) = %v, want 5ms", got)
	}
	if got := c.EstimateTime("nonsense"); got != defaultTimeEstimate {
		t.Fatalf("EstimateTime(nonsense) = %v, want %v", got, defaultTimeEstimate)
	}
}

func TestCostModelAveragesRecentSamples(t *testing.T) {
	c := NewCostModel()
	c.RecordSample("key_press", 10*time.Millisecond, true)
	c.RecordSample("key_press", 20*time.Millisecond, true)

	got := c.EstimateTime("key_press")
	if got != 15*time.Millisecond {
		t.Fatalf("EstimateTime after samples = %v, want 15ms", got)
	}
}

func TestStrategyAdjustments(t *testing.T) {
	base := Estimate{Duration: 100 * time.Millisecond, Memory: 1000}

	hp := HighPerformance{HardwareAcceleration: true, ParallelOperations: 2}.WithBatchSize(2)
	got := hp.Adjust(base, 0)
	want := time.Duration(float64(100*time.Millisecond) * 0.7 / 2)
	if got.Duration != want {
		t.Fatalf("HighPerformance.Adjust duration = %v, want %v", got.Duration, want)
	}

	cons := Conservative{MinimizeResourceUsage: true}.Adjust(base, 0)
	if cons.Duration != time.Duration(float64(100*time.Millisecond)*1.2) {
		t.Fatalf("Conservative.Adjust duration = %v", cons.Duration)
	}
	if cons.Memory != int(float64(1000)*0.8) {
		t.Fatalf("Conservative.Adjust memory = %v", cons.Memory)
	}

	mem := MemoryOptimized{EnableCompression: true}.Adjust(base, 0)
	if mem.Memory != int(float64(1000)*0.6) {
		t.Fatalf("MemoryOptimized.Adjust memory = %v", mem.Memory)
	}

	adaptive := Adaptive{}.Adjust(base, 95)
	if adaptive.Duration != time.Duration(float64(100*time.Millisecond)*1.1) {
		t.Fatalf("Adaptive.Adjust under high CPU = %v", adaptive.Duration)
	}
	adaptiveIdle := Adaptive{}.Adjust(base, 10)
	if adaptiveIdle.Duration != base.Duration {
		t.Fatalf("Adaptive.Adjust under low CPU should not change duration, got %v", adaptiveIdle.Duration)
	}
}

func TestSelectStrategyByPlatformTag(t *testing.T) {
	if _, ok := SelectStrategy("headless").(Conservative); !ok {
		t.Fatal("expected Conservative strategy for headless")
	}
	if _, ok := SelectStrategy("native").(HighPerformance); !ok {
		t.Fatal("expected HighPerformance strategy for native")
	}
	if _, ok := SelectStrategy("anything-else").(Adaptive); !ok {
		t.Fatal("expected Adaptive strategy as the default")
	}
}
