package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("invalid argument")

var registry = struct {
	sync.RWMutex
	handlers map[string]slog.Handler
	loggers  map[string]*slog.Logger
}{
	handlers: map[string]slog.Handler{},
	loggers:  map[string]*slog.Logger{},
}

// SetHandler installs h for the logger called name and, unless they have a
// handler of their own, for every logger below it in the dotted hierarchy.
// The empty name is the root and applies to every logger. A nil h removes
// the installed handler.
func SetHandler(name string, h slog.Handler) {
	registry.Lock()
	defer registry.Unlock()
	if h == nil {
		delete(registry.handlers, name)
		return
	}
	registry.handlers[name] = h
}

// handlerFor walks "a.b.c", "a.b", "a" and then the root.
func handlerFor(name string) slog.Handler {
	registry.RLock()
	defer registry.RUnlock()
	for {
		if h, ok := registry.handlers[name]; ok {
			return h
		}
		if name == "" {
			return nil
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			name = ""
		} else {
			name = name[:i]
		}
	}
}

// GetLogger returns the logger called name, creating it on first use. It
// discards everything until SetHandler installs a handler for name or one of
// its parents, so libraries can log unconditionally and leave the output to
// the application. Records carry the name under LoggerKey.
func GetLogger(name string) *slog.Logger {
	registry.RLock()
	l, ok := registry.loggers[name]
	registry.RUnlock()
	if ok {
		return l
	}

	registry.Lock()
	defer registry.Unlock()
	if l, ok := registry.loggers[name]; ok {
		return l
	}
	l = slog.New(&namedHandler{name: name})
	registry.loggers[name] = l
	return l
}

type handlerOp struct {
	group string
	attrs []slog.Attr
}

// namedHandler resolves its target on every call, so handlers installed
// after the logger was created still take effect.
type namedHandler struct {
	name string
	ops  []handlerOp
}

func (h *namedHandler) target() slog.Handler {
	t := handlerFor(h.name)
	if t == nil {
		return nil
	}
	if h.name != "" {
		t = t.WithAttrs([]slog.Attr{slog.String(LoggerKey, h.name)})
	}
	for _, op := range h.ops {
		if op.group != "" {
			t = t.WithGroup(op.group)
		} else {
			t = t.WithAttrs(op.attrs)
		}
	}
	return t
}

func (h *namedHandler) Enabled(ctx context.Context, l slog.Level) bool {
	t := handlerFor(h.name)
	return t != nil && t.Enabled(ctx, l)
}

func (h *namedHandler) Handle(ctx context.Context, r slog.Record) error {
	t := h.target()
	if t == nil {
		return nil
	}
	return t.Handle(ctx, r)
}

func (h *namedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(handlerOp{attrs: attrs})
}

func (h *namedHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(handlerOp{group: name})
}

func (h *namedHandler) with(op handlerOp) *namedHandler {
	ops := append(append([]handlerOp{}, h.ops...), op)
	return &namedHandler{name: h.name, ops: ops}
}

// ValidateLogger returns an error wrapping ErrInvalidArgument when l is nil
// and allowNil is false. A non-empty message replaces the default text.
func ValidateLogger(l *slog.Logger, allowNil bool, message string) error {
	if l != nil || allowNil {
		return nil
	}
	if message == "" {
		message = "logger must be a non-nil *slog.Logger."
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, message)
}
