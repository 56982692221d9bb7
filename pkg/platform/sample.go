package platform

import (
	"runtime"
	"time"

	"github.com/noxsuite/noxinstall/pkg/telemetry"
)

// Sampler returns a telemetry.SampleFunc that reads memory and disk usage
// for the given path. Probe failures leave the corresponding field at zero
// rather than failing the sample.
func Sampler(diskPath string) telemetry.SampleFunc {
	return func() (telemetry.ResourceSample, error) {
		sample := telemetry.ResourceSample{
			Timestamp: time.Now(),
			CPUs:      runtime.NumCPU(),
		}

		if total, err := totalMemoryBytes(); err == nil && total > 0 {
			if avail, err := availableMemoryBytes(); err == nil {
				used := float64(total-avail) / float64(total) * 100
				sample.MemoryUsedPercent = used
			}
		}

		if free, total, err := DiskUsage(diskPath); err == nil && total > 0 {
			sample.DiskUsedPercent = float64(total-free) / float64(total) * 100
		}

		return sample, nil
	}
}
