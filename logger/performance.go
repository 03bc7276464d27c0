package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/zoobzio/clockz"
)

// PerformanceOptions configures a PerformanceHandler.
type PerformanceOptions struct {
	Level slog.Leveler
	// HideGoroutine drops the goroutine id column.
	HideGoroutine bool
	// Clock measures elapsed time. Defaults to clockz.RealClock.
	Clock clockz.Clock
}

// PerformanceHandler writes lines of the form
//
//	[15:04:05.000] | T<goroutine> | LEVEL | module.function:line | +12.3ms | message
//
// The elapsed column is the time since the handler was created.
type PerformanceHandler struct {
	common
	goroutine bool
	clock     clockz.Clock
	start     time.Time
}

// NewPerformanceHandler returns a PerformanceHandler writing to w, or to
// stdout when w is nil.
func NewPerformanceHandler(w io.Writer, opts *PerformanceOptions) *PerformanceHandler {
	if opts == nil {
		opts = &PerformanceOptions{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	return &PerformanceHandler{
		common:    newCommon(w, opts.Level),
		goroutine: !opts.HideGoroutine,
		clock:     clock,
		start:     clock.Now(),
	}
}

func (h *PerformanceHandler) Enabled(_ context.Context, l slog.Level) bool { return h.enabled(l) }

func (h *PerformanceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.common = h.withAttrs(attrs)
	return &out
}

func (h *PerformanceHandler) WithGroup(name string) slog.Handler {
	out := *h
	out.common = h.withGroup(name)
	return &out
}

func (h *PerformanceHandler) Handle(_ context.Context, r slog.Record) error {
	src := sourceOf(r.PC)
	elapsed := float64(h.clock.Since(h.start).Microseconds()) / 1000

	buf := make([]byte, 0, 256)
	buf = append(buf, '[')
	buf = append(buf, r.Time.Format("15:04:05.000")...)
	buf = append(buf, ']')
	if h.goroutine {
		buf = append(buf, " | T"...)
		buf = strconv.AppendUint(buf, goroutineID(), 10)
	}
	buf = fmt.Appendf(buf, " | %s | %s.%s:%d | +%.1fms | %s",
		levelName(r.Level), src.module, src.function, src.line, elapsed, r.Message)
	buf = h.appendAttrs(buf, r)
	buf = append(buf, '\n')
	return h.write(buf)
}
