package utilz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

const (
	// Metrics.
	HandleProcessedTotal = metricz.Key("handle.processed.total")
	HandleErrorsTotal    = metricz.Key("handle.errors.total")
	HandleSwallowedTotal = metricz.Key("handle.swallowed.total")

	// Spans.
	HandleProcessSpan = tracez.Key("handle.process")

	// Tags.
	HandleTagHasError  = tracez.Tag("handle.has_error")
	HandleTagSwallowed = tracez.Tag("handle.swallowed")

	// Hook event keys.
	HandleEventError = hookz.Key("handle.error")
)

// HandleEvent is emitted through hookz when the wrapped function fails.
type HandleEvent struct {
	Timestamp     time.Time
	Error         error
	InputData     any
	Name          Name
	ProcessorName Name
	Duration      time.Duration
	Swallowed     bool
}

// Result carries the outcome of an asynchronous call started with Go.
type Result[Out any] struct {
	Value Out
	Err   error
}

// Handle logs failures of the wrapped function.
//
// Every failure is logged at error level as "An error occurred in NAME: err".
// What happens next depends on the logger:
//   - With a logger set, the failure is logged there and swallowed: Process
//     returns the zero value and a nil error.
//   - Without one, the failure is logged to slog.Default() and returned.
//
// Go runs the wrapped function on its own goroutine and delivers the result
// on a channel, which is the usual way to fire off background work whose
// errors must not be lost.
//
// Example:
//
//	safe := utilz.NewHandle("refresh-feed", refresh).SetLogger(logger)
//	done := safe.Go(ctx, feedID)
//	// ...
//	<-done
type Handle[In, Out any] struct {
	processor Chainable[In, Out]
	logger    *slog.Logger
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[HandleEvent]
	name      Name
	mu        sync.RWMutex
}

// NewHandle creates a Handle around processor.
func NewHandle[In, Out any](name Name, processor Chainable[In, Out]) *Handle[In, Out] {
	registry := metricz.New()
	registry.Counter(HandleProcessedTotal)
	registry.Counter(HandleErrorsTotal)
	registry.Counter(HandleSwallowedTotal)

	return &Handle[In, Out]{
		name:      name,
		processor: processor,
		metrics:   registry,
		tracer:    tracez.New(),
		hooks:     hookz.New[HandleEvent](),
	}
}

// Process implements Chainable.
func (h *Handle[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, h.name, in)

	h.metrics.Counter(HandleProcessedTotal).Inc()

	ctx, span := h.tracer.StartSpan(ctx, HandleProcessSpan)
	defer span.Finish()

	h.mu.RLock()
	processor := h.processor
	logger := h.logger
	h.mu.RUnlock()

	start := time.Now()
	result, err = processor.Process(ctx, in)
	if err == nil {
		span.SetTag(HandleTagHasError, "false")
		return result, nil
	}

	h.metrics.Counter(HandleErrorsTotal).Inc()
	span.SetTag(HandleTagHasError, "true")

	swallow := logger != nil
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, fmt.Sprintf("An error occurred in %s: %v", processor.Name(), causeOf[In](err)))

	_ = h.hooks.Emit(ctx, HandleEventError, HandleEvent{ //nolint:errcheck
		Name:          h.name,
		ProcessorName: processor.Name(),
		Error:         err,
		InputData:     in,
		Duration:      time.Since(start),
		Swallowed:     swallow,
		Timestamp:     time.Now(),
	})

	if swallow {
		h.metrics.Counter(HandleSwallowedTotal).Inc()
		span.SetTag(HandleTagSwallowed, "true")
		var zero Out
		return zero, nil
	}
	return result, wrapError(err, h.name, in)
}

// Go calls Process on a new goroutine. The returned channel receives exactly
// one Result and is then closed.
func (h *Handle[In, Out]) Go(ctx context.Context, in In) <-chan Result[Out] {
	out := make(chan Result[Out], 1)
	go func() {
		defer close(out)
		value, err := h.Process(ctx, in)
		out <- Result[Out]{Value: value, Err: err}
	}()
	return out
}

// SetLogger sets the logger. A non-nil logger makes Handle swallow errors.
func (h *Handle[In, Out]) SetLogger(logger *slog.Logger) *Handle[In, Out] {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger
	return h
}

// SetProcessor replaces the wrapped function.
func (h *Handle[In, Out]) SetProcessor(processor Chainable[In, Out]) *Handle[In, Out] {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processor = processor
	return h
}

// Name returns the name of this wrapper.
func (h *Handle[In, Out]) Name() Name {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.name
}

// Metrics returns the metrics registry for this wrapper.
func (h *Handle[In, Out]) Metrics() *metricz.Registry {
	return h.metrics
}

// Tracer returns the tracer for this wrapper.
func (h *Handle[In, Out]) Tracer() *tracez.Tracer {
	return h.tracer
}

// OnError registers a handler called asynchronously whenever the wrapped
// function fails.
func (h *Handle[In, Out]) OnError(handler func(context.Context, HandleEvent) error) error {
	_, err := h.hooks.Hook(HandleEventError, handler)
	return err
}

// Close releases observability resources.
func (h *Handle[In, Out]) Close() error {
	if h.tracer != nil {
		h.tracer.Close()
	}
	h.hooks.Close()
	return nil
}
