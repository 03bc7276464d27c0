package logger

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
)

// LogContext is the request-scoped information attached to records by a
// ContextualLogger.
type LogContext struct {
	ContextID string
	UserID    string
	SessionID string
	RequestID string
	Component string
	Operation string
	Metadata  map[string]any
}

// NewLogContext returns an empty LogContext with a random ContextID.
func NewLogContext() LogContext {
	return LogContext{ContextID: uuid.NewString(), Metadata: map[string]any{}}
}

func (c *LogContext) fields() []struct {
	key string
	val *string
} {
	return []struct {
		key string
		val *string
	}{
		{"context_id", &c.ContextID},
		{"user_id", &c.UserID},
		{"session_id", &c.SessionID},
		{"request_id", &c.RequestID},
		{"component", &c.Component},
		{"operation", &c.Operation},
	}
}

// Map returns the non-empty fields keyed by their snake_case names. The
// "metadata" key is always present.
func (c LogContext) Map() map[string]any {
	out := map[string]any{}
	for _, f := range c.fields() {
		if *f.val != "" {
			out[f.key] = *f.val
		}
	}
	md := maps.Clone(c.Metadata)
	if md == nil {
		md = map[string]any{}
	}
	out["metadata"] = md
	return out
}

// Update sets the named fields. Keys that are not fields of LogContext go to
// Metadata.
func (c *LogContext) Update(fields map[string]any) {
outer:
	for k, v := range fields {
		for _, f := range c.fields() {
			if f.key == k {
				*f.val = fmt.Sprint(v)
				continue outer
			}
		}
		if c.Metadata == nil {
			c.Metadata = map[string]any{}
		}
		c.Metadata[k] = v
	}
}

func (c LogContext) clone() LogContext {
	c.Metadata = maps.Clone(c.Metadata)
	return c
}

func (c LogContext) attrs() []slog.Attr {
	var attrs []slog.Attr
	for _, f := range c.fields() {
		if *f.val != "" {
			attrs = append(attrs, slog.String(f.key, *f.val))
		}
	}
	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, c.Metadata[k]))
	}
	return attrs
}

type logContextKey struct{}

// WithLogContext returns a copy of ctx carrying lc.
func WithLogContext(ctx context.Context, lc LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc.clone())
}

// ContextualLogger logs through a slog.Logger and adds the fields of the
// active LogContext to each record. The active context is the one stored in
// the context.Context passed to each call, or the logger's base context.
type ContextualLogger struct {
	logger *slog.Logger
	base   LogContext
}

// NewContextualLogger wraps l, or slog.Default when l is nil. A missing
// ContextID is generated.
func NewContextualLogger(l *slog.Logger, base LogContext) *ContextualLogger {
	if l == nil {
		l = slog.Default()
	}
	if base.ContextID == "" {
		base.ContextID = uuid.NewString()
	}
	return &ContextualLogger{logger: l, base: base.clone()}
}

// Base returns a copy of the base LogContext.
func (l *ContextualLogger) Base() LogContext { return l.base.clone() }

// Context returns the LogContext active in ctx.
func (l *ContextualLogger) Context(ctx context.Context) LogContext {
	if ctx != nil {
		if lc, ok := ctx.Value(logContextKey{}).(LogContext); ok {
			return lc.clone()
		}
	}
	return l.base.clone()
}

// Scope returns a context whose LogContext is the active one with fields
// applied. The caller's context is left unchanged.
func (l *ContextualLogger) Scope(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	lc := l.Context(ctx)
	lc.Update(fields)
	return context.WithValue(ctx, logContextKey{}, lc)
}

// Logger returns the underlying logger with the active context's fields
// bound as attributes.
func (l *ContextualLogger) Logger(ctx context.Context) *slog.Logger {
	attrs := l.Context(ctx).attrs()
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return l.logger.With(args...)
}

func (l *ContextualLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

func (l *ContextualLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

func (l *ContextualLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

func (l *ContextualLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *ContextualLogger) Critical(ctx context.Context, msg string, args ...any) {
	l.log(ctx, LevelCritical, msg, args...)
}

// Exception logs msg at error level with err under the "error" key.
func (l *ContextualLogger) Exception(ctx context.Context, msg string, err error, args ...any) {
	l.log(ctx, slog.LevelError, msg, append([]any{slog.Any("error", err)}, args...)...)
}

func (l *ContextualLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	h := l.logger.Handler()
	if !h.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:]) // skip Callers, log and the level method
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.AddAttrs(l.Context(ctx).attrs()...)
	r.Add(args...)
	_ = h.Handle(ctx, r)
}
