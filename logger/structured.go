package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// StructuredOptions configures a StructuredHandler.
type StructuredOptions struct {
	Level slog.Leveler
	// LevelWidth pads the level column. Defaults to 8.
	LevelWidth int
	// ModuleWidth pads and truncates the module column. Defaults to 10.
	ModuleWidth int
}

// StructuredHandler writes aligned lines of the form
//
//	2006-01-02 15:04:05 | LEVEL    | module     | function:line | message key=value
//
// where module is the source file name without its extension.
type StructuredHandler struct {
	common
	levelWidth  int
	moduleWidth int
}

// NewStructuredHandler returns a StructuredHandler writing to w, or to stdout
// when w is nil.
func NewStructuredHandler(w io.Writer, opts *StructuredOptions) *StructuredHandler {
	if opts == nil {
		opts = &StructuredOptions{}
	}
	h := &StructuredHandler{
		common:      newCommon(w, opts.Level),
		levelWidth:  opts.LevelWidth,
		moduleWidth: opts.ModuleWidth,
	}
	if h.levelWidth <= 0 {
		h.levelWidth = 8
	}
	if h.moduleWidth <= 0 {
		h.moduleWidth = 10
	}
	return h
}

func (h *StructuredHandler) Enabled(_ context.Context, l slog.Level) bool { return h.enabled(l) }

func (h *StructuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.common = h.withAttrs(attrs)
	return &out
}

func (h *StructuredHandler) WithGroup(name string) slog.Handler {
	out := *h
	out.common = h.withGroup(name)
	return &out
}

func (h *StructuredHandler) Handle(_ context.Context, r slog.Record) error {
	src := sourceOf(r.PC)
	buf := make([]byte, 0, 256)
	buf = fmt.Appendf(buf, "%s | %-*s | %-*.*s | %s:%d | %s",
		r.Time.Format("2006-01-02 15:04:05"),
		h.levelWidth, levelName(r.Level),
		h.moduleWidth, h.moduleWidth, src.module,
		src.function, src.line,
		r.Message,
	)
	buf = h.appendAttrs(buf, r)
	buf = append(buf, '\n')
	return h.write(buf)
}
