package batcher

import (
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/breeze-rmm/control-server/internal/logging"
)

var log = logging.L("batcher")

// SampleCPUPercent returns the current system-wide CPU utilization
// percentage, feeding the Adaptive strategy's load check. A sampling
// failure logs and reports 0 rather than blocking the caller.
func SampleCPUPercent() float64 {
	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		log.Warn("cpu sample failed", "error", err)
		return 0
	}
	return percentages[0]
}
