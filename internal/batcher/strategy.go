package batcher

import "time"

// Estimate is a batch's total estimated time and memory footprint before
// and after a Strategy adjusts it for platform characteristics.
type Estimate struct {
	Duration time.Duration
	Memory   int
}

// Strategy adjusts a raw cost estimate to reflect how a given platform
// actually performs operations.
type Strategy interface {
	Adjust(estimate Estimate, observedCPUPercent float64) Estimate
}

// HighPerformance models a GUI-backed platform capable of hardware
// acceleration and running operations in parallel.
type HighPerformance struct {
	HardwareAcceleration bool
	ParallelOperations    int
	batchOperationCount   int
}

func (s HighPerformance) Adjust(e Estimate, _ float64) Estimate {
	if s.HardwareAcceleration {
		e.Duration = time.Duration(float64(e.Duration) * 0.7)
	}
	parallelism := s.ParallelOperations
	if s.batchOperationCount > 0 && s.batchOperationCount < parallelism {
		parallelism = s.batchOperationCount
	}
	if parallelism > 1 {
		e.Duration = time.Duration(float64(e.Duration) / float64(parallelism))
	}
	return e
}

// WithBatchSize returns a copy of s whose parallelism is capped at the
// number of operations actually in the batch.
func (s HighPerformance) WithBatchSize(n int) HighPerformance {
	s.batchOperationCount = n
	return s
}

// Conservative models a headless platform minimizing resource usage.
type Conservative struct {
	MinimizeResourceUsage bool
}

func (s Conservative) Adjust(e Estimate, _ float64) Estimate {
	if s.MinimizeResourceUsage {
		e.Duration = time.Duration(float64(e.Duration) * 1.2)
		e.Memory = int(float64(e.Memory) * 0.8)
	}
	return e
}

// MemoryOptimized models a resource-constrained platform trading time for
// a smaller memory footprint via compression.
type MemoryOptimized struct {
	EnableCompression bool
}

func (s MemoryOptimized) Adjust(e Estimate, _ float64) Estimate {
	if s.EnableCompression {
		e.Memory = int(float64(e.Memory) * 0.6)
	}
	return e
}

// Adaptive tightens the estimate when the platform is already under heavy
// CPU load.
type Adaptive struct{}

func (s Adaptive) Adjust(e Estimate, observedCPUPercent float64) Estimate {
	if observedCPUPercent > 80.0 {
		e.Duration = time.Duration(float64(e.Duration) * 1.1)
	}
	return e
}

// SelectStrategy picks a default Strategy for a platform tag, mirroring
// how the platform backend itself is selected.
func SelectStrategy(platformTag string) Strategy {
	switch platformTag {
	case "headless", "headless-silent":
		return Conservative{MinimizeResourceUsage: true}
	case "native":
		return HighPerformance{HardwareAcceleration: true, ParallelOperations: 4}
	default:
		return Adaptive{}
	}
}
