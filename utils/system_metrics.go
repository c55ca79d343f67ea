package utils

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
)

// GetCPUUsage returns the CPU usage as a percentage since the previous call
func GetCPUUsage(ctx context.Context) float64 {
	percentage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		Component("system").WithError(err).Warn("error getting CPU usage")
		return 0
	}
	if len(percentage) > 0 {
		return percentage[0]
	}
	return 0
}
