package logger

import (
	"context"
	"io"
	"log/slog"
)

// ColorMode controls ANSI colouring of the level name.
type ColorMode int

const (
	// ColorAuto colours output only when writing to a terminal.
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ColoredOptions configures a ColoredHandler.
type ColoredOptions struct {
	Level slog.Leveler
	Color ColorMode
	// TimeFormat defaults to "2006-01-02 15:04:05".
	TimeFormat string
}

// ColoredHandler writes "time - name - LEVEL - message key=value" lines.
// Levels are coloured cyan, green, yellow, red and magenta from DEBUG to
// CRITICAL. Levels without a name are never coloured.
type ColoredHandler struct {
	common
	color      bool
	timeFormat string
}

// NewColoredHandler returns a ColoredHandler writing to w, or to stdout when
// w is nil.
func NewColoredHandler(w io.Writer, opts *ColoredOptions) *ColoredHandler {
	if opts == nil {
		opts = &ColoredOptions{}
	}
	h := &ColoredHandler{common: newCommon(w, opts.Level), timeFormat: opts.TimeFormat}
	if h.timeFormat == "" {
		h.timeFormat = "2006-01-02 15:04:05"
	}
	switch opts.Color {
	case ColorAlways:
		h.color = true
	case ColorAuto:
		h.color = isTerminal(h.w)
	}
	return h
}

// UsesColor reports whether the handler emits colour codes.
func (h *ColoredHandler) UsesColor() bool { return h.color }

func (h *ColoredHandler) Enabled(_ context.Context, l slog.Level) bool { return h.enabled(l) }

func (h *ColoredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.common = h.withAttrs(attrs)
	return &out
}

func (h *ColoredHandler) WithGroup(name string) slog.Handler {
	out := *h
	out.common = h.withGroup(name)
	return &out
}

func (h *ColoredHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format(h.timeFormat)...)
	buf = append(buf, " - "...)
	buf = append(buf, h.nameOr("root")...)
	buf = append(buf, " - "...)

	level := levelName(r.Level)
	if color, ok := levelColors[level]; ok && h.color {
		buf = append(buf, color...)
		buf = append(buf, level...)
		buf = append(buf, colorReset...)
	} else {
		buf = append(buf, level...)
	}

	buf = append(buf, " - "...)
	buf = append(buf, r.Message...)
	buf = h.appendAttrs(buf, r)
	buf = append(buf, '\n')
	return h.write(buf)
}
