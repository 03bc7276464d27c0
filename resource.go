package utilz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// ResourceOptions selects what ResourceMonitor reports besides execution
// time.
type ResourceOptions struct {
	Memory          bool
	CPU             bool
	IO              bool
	Network         bool
	Disk            bool
	Threads         bool
	GC              bool
	ContextSwitches bool
	OpenFiles       bool
	PageFaults      bool
}

// AllResources enables every monitor.
func AllResources() ResourceOptions {
	return ResourceOptions{
		Memory: true, CPU: true, IO: true, Network: true, Disk: true,
		Threads: true, GC: true, ContextSwitches: true, OpenFiles: true, PageFaults: true,
	}
}

// ResourceReport holds the figures collected for a single call. Counters are
// deltas over the call, Max* fields are the highest sample seen.
type ResourceReport struct {
	Options                    ResourceOptions
	Duration                   time.Duration
	MaxMemoryBytes             uint64
	MaxCPUPercent              float64
	ReadOps                    uint64
	WriteOps                   uint64
	BytesSent                  uint64
	BytesReceived              uint64
	DiskReadBytes              uint64
	DiskWriteBytes             uint64
	Threads                    int32
	GCCollections              uint32
	VoluntaryContextSwitches   int64
	InvoluntaryContextSwitches int64
	MaxOpenFiles               int32
	MaxPageFaults              uint64
}

// Lines renders the report, one figure per line.
func (r ResourceReport) Lines() []string {
	lines := []string{fmt.Sprintf("Execution time: %.4f seconds", r.Duration.Seconds())}
	o := r.Options
	if o.Memory {
		lines = append(lines, fmt.Sprintf("Maximum memory usage: %.2f MB", float64(r.MaxMemoryBytes)/(1024*1024)))
	}
	if o.CPU {
		lines = append(lines, fmt.Sprintf("Maximum CPU usage: %.2f%%", r.MaxCPUPercent))
	}
	if o.IO {
		lines = append(lines,
			fmt.Sprintf("Read operations: %d", r.ReadOps),
			fmt.Sprintf("Write operations: %d", r.WriteOps))
	}
	if o.Network {
		lines = append(lines,
			fmt.Sprintf("Bytes sent: %d", r.BytesSent),
			fmt.Sprintf("Bytes received: %d", r.BytesReceived))
	}
	if o.Disk {
		lines = append(lines,
			fmt.Sprintf("Disk read bytes: %d", r.DiskReadBytes),
			fmt.Sprintf("Disk write bytes: %d", r.DiskWriteBytes))
	}
	if o.Threads {
		lines = append(lines, fmt.Sprintf("Number of threads: %d", r.Threads))
	}
	if o.GC {
		lines = append(lines, fmt.Sprintf("GC collections: %d", r.GCCollections))
	}
	if o.ContextSwitches {
		lines = append(lines,
			fmt.Sprintf("Voluntary context switches: %d", r.VoluntaryContextSwitches),
			fmt.Sprintf("Involuntary context switches: %d", r.InvoluntaryContextSwitches))
	}
	if o.OpenFiles {
		lines = append(lines, fmt.Sprintf("Maximum open files: %d", r.MaxOpenFiles))
	}
	if o.PageFaults {
		lines = append(lines, fmt.Sprintf("Maximum page faults: %d", r.MaxPageFaults))
	}
	return lines
}

// String implements fmt.Stringer.
func (r ResourceReport) String() string {
	return strings.Join(r.Lines(), "\n")
}

// ResourceMonitor times the wrapped function and samples the resource usage
// of the current process while it runs.
//
// Figures that the platform cannot provide are reported as zero. Reports go
// to the logger at info level when one is set, otherwise to stdout.
type ResourceMonitor[In, Out any] struct {
	processor Chainable[In, Out]
	logger    *slog.Logger
	output    io.Writer
	name      Name
	options   ResourceOptions
	interval  time.Duration
	last      ResourceReport
	mu        sync.RWMutex
}

// DefaultSampleInterval is how often ResourceMonitor samples while the
// wrapped function runs.
const DefaultSampleInterval = 100 * time.Millisecond

// NewResourceMonitor wraps processor.
func NewResourceMonitor[In, Out any](name Name, processor Chainable[In, Out], options ResourceOptions) *ResourceMonitor[In, Out] {
	return &ResourceMonitor[In, Out]{
		name:      name,
		processor: processor,
		options:   options,
		interval:  DefaultSampleInterval,
	}
}

// SetLogger routes reports to logger.
func (m *ResourceMonitor[In, Out]) SetLogger(logger *slog.Logger) *ResourceMonitor[In, Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
	return m
}

// SetOutput routes reports to w when no logger is set.
func (m *ResourceMonitor[In, Out]) SetOutput(w io.Writer) *ResourceMonitor[In, Out] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = w
	return m
}

// SetInterval changes the sampling interval. Non-positive values are ignored.
func (m *ResourceMonitor[In, Out]) SetInterval(d time.Duration) *ResourceMonitor[In, Out] {
	if d <= 0 {
		return m
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = d
	return m
}

// LastReport returns the report of the most recent call.
func (m *ResourceMonitor[In, Out]) LastReport() ResourceReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Name returns the name of this wrapper.
func (m *ResourceMonitor[In, Out]) Name() Name {
	return m.name
}

// Process implements Chainable.
func (m *ResourceMonitor[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, m.name, in)

	m.mu.RLock()
	options := m.options
	interval := m.interval
	logger := m.logger
	output := m.output
	m.mu.RUnlock()

	s := newSampler(ctx, options)
	start := time.Now()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.sample(ctx)
			}
		}
	}()

	result, err = m.processor.Process(ctx, in)

	close(done)
	wg.Wait()
	report := s.finish(ctx, time.Since(start))

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()

	switch {
	case logger != nil:
		for _, line := range report.Lines() {
			logger.InfoContext(ctx, line, "function", m.processor.Name())
		}
	case output != nil:
		fmt.Fprintln(output, report.String())
	default:
		fmt.Fprintln(os.Stdout, report.String())
	}

	if err != nil {
		return result, wrapError(err, m.name, in)
	}
	return result, nil
}

// sampler accumulates figures for one monitored call.
type sampler struct {
	proc    *process.Process
	options ResourceOptions
	report  ResourceReport

	startIO  *process.IOCountersStat
	startCtx *process.NumCtxSwitchesStat
	startNet *psnet.IOCountersStat
	startGC  uint32
}

func newSampler(ctx context.Context, options ResourceOptions) *sampler {
	s := &sampler{options: options, report: ResourceReport{Options: options}}
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec
	if err == nil {
		s.proc = proc
		// Prime the CPU counter so later samples measure this call.
		_, _ = proc.PercentWithContext(ctx, 0) //nolint:errcheck
		if options.IO || options.Disk {
			s.startIO, _ = proc.IOCountersWithContext(ctx) //nolint:errcheck
		}
		if options.ContextSwitches {
			s.startCtx, _ = proc.NumCtxSwitchesWithContext(ctx) //nolint:errcheck
		}
	}
	if options.Network {
		if counters, err := psnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
			s.startNet = &counters[0]
		}
	}
	if options.GC {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		s.startGC = ms.NumGC
	}
	s.sample(ctx)
	return s
}

func (s *sampler) sample(ctx context.Context) {
	if s.proc == nil {
		return
	}
	if s.options.Memory {
		if mi, err := s.proc.MemoryInfoWithContext(ctx); err == nil && mi.RSS > s.report.MaxMemoryBytes {
			s.report.MaxMemoryBytes = mi.RSS
		}
	}
	if s.options.CPU {
		if pct, err := s.proc.PercentWithContext(ctx, 0); err == nil && pct > s.report.MaxCPUPercent {
			s.report.MaxCPUPercent = pct
		}
	}
	if s.options.OpenFiles {
		if n, err := s.proc.NumFDsWithContext(ctx); err == nil && n > s.report.MaxOpenFiles {
			s.report.MaxOpenFiles = n
		}
	}
	if s.options.PageFaults {
		if pf, err := s.proc.PageFaultsWithContext(ctx); err == nil {
			total := pf.MinorFaults + pf.MajorFaults
			if total > s.report.MaxPageFaults {
				s.report.MaxPageFaults = total
			}
		}
	}
}

func (s *sampler) finish(ctx context.Context, elapsed time.Duration) ResourceReport {
	s.sample(ctx)
	s.report.Duration = elapsed

	if s.proc != nil {
		if s.startIO != nil {
			if ioc, err := s.proc.IOCountersWithContext(ctx); err == nil {
				s.report.ReadOps = delta(ioc.ReadCount, s.startIO.ReadCount)
				s.report.WriteOps = delta(ioc.WriteCount, s.startIO.WriteCount)
				s.report.DiskReadBytes = delta(ioc.ReadBytes, s.startIO.ReadBytes)
				s.report.DiskWriteBytes = delta(ioc.WriteBytes, s.startIO.WriteBytes)
			}
		}
		if s.options.Threads {
			if n, err := s.proc.NumThreadsWithContext(ctx); err == nil {
				s.report.Threads = n
			}
		}
		if s.startCtx != nil {
			if cs, err := s.proc.NumCtxSwitchesWithContext(ctx); err == nil {
				s.report.VoluntaryContextSwitches = cs.Voluntary - s.startCtx.Voluntary
				s.report.InvoluntaryContextSwitches = cs.Involuntary - s.startCtx.Involuntary
			}
		}
	}
	if s.startNet != nil {
		if counters, err := psnet.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
			s.report.BytesSent = delta(counters[0].BytesSent, s.startNet.BytesSent)
			s.report.BytesReceived = delta(counters[0].BytesRecv, s.startNet.BytesRecv)
		}
	}
	if s.options.GC {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		s.report.GCCollections = ms.NumGC - s.startGC
	}
	return s.report
}

func delta(now, before uint64) uint64 {
	if now < before {
		return 0
	}
	return now - before
}
