package sysstat

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is one system resource reading.
type Snapshot struct {
	// CPUFraction is overall CPU usage in [0.0, 1.0].
	CPUFraction float64

	// MemUsedBytes is used physical memory in bytes.
	MemUsedBytes uint64

	// Taken is when the reading was produced.
	Taken time.Time

	// Age is how old the reading was at the time it was returned to the
	// caller. Filled by Poller.Latest.
	Age time.Duration

	// Stale reports that a newer sampling attempt failed and this is the
	// last known good reading.
	Stale bool
}

// Sampler produces a fresh system snapshot on demand.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - May be expensive; callers must keep it off the hot request path.
type Sampler interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// SystemSampler reads CPU and memory usage from the operating system.
type SystemSampler struct{}

// NewSystemSampler creates a sampler backed by OS counters.
func NewSystemSampler() *SystemSampler {
	return &SystemSampler{}
}

// Sample reads current CPU and memory usage. CPU usage is measured against
// the previous call, so the first reading after process start may be zero.
func (s *SystemSampler) Sample(ctx context.Context) (Snapshot, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sysstat: cpu sample: %w", err)
	}

	var fraction float64
	if len(percents) > 0 {
		fraction = percents[0] / 100.0
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sysstat: memory sample: %w", err)
	}

	return Snapshot{
		CPUFraction:  fraction,
		MemUsedBytes: vm.Used,
		Taken:        time.Now(),
	}, nil
}
