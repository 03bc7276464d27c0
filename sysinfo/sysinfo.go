// Package sysinfo reports CPU and memory figures for the local host.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// DefaultInterval is the CPU sampling window used when CPUInfo gets zero.
const DefaultInterval = 100 * time.Millisecond

var (
	cpuCounts     = cpu.CountsWithContext
	cpuPercent    = cpu.PercentWithContext
	cpuInfo       = cpu.InfoWithContext
	loadAvg       = load.AvgWithContext
	virtualMemory = mem.VirtualMemoryWithContext
)

// Frequency is a CPU clock speed range in MHz.
type Frequency struct {
	Current float64 `json:"current"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// LoadAverage is the 1, 5 and 15 minute run queue average.
type LoadAverage struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// CPU describes processor count and utilisation.
type CPU struct {
	Count          int       `json:"cpu_count"`
	Percent        float64   `json:"cpu_percent"`
	PercentPerCore []float64 `json:"cpu_percent_per_core"`
	// Frequency is nil when the platform does not expose clock speeds.
	Frequency *Frequency `json:"cpu_freq,omitempty"`
	// LoadAverage is nil on platforms without one.
	LoadAverage *LoadAverage `json:"load_average,omitempty"`
}

// CPUInfo samples utilisation over interval, overall and per core. Zero
// interval means DefaultInterval.
func CPUInfo(ctx context.Context, interval time.Duration) (*CPU, error) {
	if interval < 0 {
		return nil, fmt.Errorf("interval must be non-negative, got %v", interval)
	}
	if interval == 0 {
		interval = DefaultInterval
	}

	count, err := cpuCounts(ctx, true)
	if err != nil || count == 0 {
		count = runtime.NumCPU()
	}
	perCore, err := cpuPercent(ctx, interval, true)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	total, err := cpuPercent(ctx, interval, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}

	out := &CPU{Count: count, PercentPerCore: perCore}
	if len(total) > 0 {
		out.Percent = total[0]
	}
	if infos, err := cpuInfo(ctx); err == nil {
		out.Frequency = frequency(infos)
	}
	if avg, err := loadAvg(ctx); err == nil && avg != nil {
		out.LoadAverage = &LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}
	}
	return out, nil
}

// frequency summarises the per-socket clock speeds; Current is their mean.
func frequency(infos []cpu.InfoStat) *Frequency {
	var f Frequency
	n := 0
	for _, info := range infos {
		if info.Mhz <= 0 {
			continue
		}
		if n == 0 || info.Mhz < f.Min {
			f.Min = info.Mhz
		}
		if info.Mhz > f.Max {
			f.Max = info.Mhz
		}
		f.Current += info.Mhz
		n++
	}
	if n == 0 {
		return nil
	}
	f.Current /= float64(n)
	return &f
}

// Memory describes physical memory in bytes.
type Memory struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	PercentUsed float64 `json:"percent_used"`
	Cached      uint64  `json:"cached"`
	Buffers     uint64  `json:"buffers"`
}

// MemoryInfo reports physical memory usage.
func MemoryInfo(ctx context.Context) (*Memory, error) {
	vm, err := virtualMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	return &Memory{
		Total:       vm.Total,
		Available:   vm.Available,
		Used:        vm.Used,
		Free:        vm.Free,
		PercentUsed: vm.UsedPercent,
		Cached:      vm.Cached,
		Buffers:     vm.Buffers,
	}, nil
}
