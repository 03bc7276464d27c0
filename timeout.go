package utilz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// ErrTimedOut is matched by TimedOutError.
var ErrTimedOut = errors.New("timed out")

// TimedOutError is returned when the wrapped function exceeds its limit.
// It also matches context.DeadlineExceeded.
type TimedOutError struct {
	Name     Name
	Duration time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("Function %s timed out after %s seconds", e.Name, formatSeconds(e.Duration))
}

// Is lets errors.Is match ErrTimedOut and context.DeadlineExceeded.
func (*TimedOutError) Is(target error) bool {
	return target == ErrTimedOut || target == context.DeadlineExceeded
}

// Metric keys for Timeout observability.
const (
	TimeoutProcessedTotal = metricz.Key("timeout.processed.total")
	TimeoutExpiredTotal   = metricz.Key("timeout.expired.total")
	TimeoutDurationMs     = metricz.Key("timeout.duration.ms")
)

// Span names, tags and hook keys for Timeout.
const (
	TimeoutProcessSpan = tracez.Key("timeout.process")

	TimeoutTagConnector = tracez.Tag("timeout.connector")
	TimeoutTagDuration  = tracez.Tag("timeout.duration")
	TimeoutTagExpired   = tracez.Tag("timeout.expired")

	TimeoutEventExpired = hookz.Key("timeout.expired")
)

// TimeoutEvent is emitted through hookz when a call exceeds its deadline.
type TimeoutEvent struct {
	Timestamp time.Time
	Name      Name
	Duration  time.Duration
}

// Timeout enforces a hard time limit on the wrapped function.
//
// The wrapped function runs in its own goroutine with a context that is
// canceled when the limit expires. Functions that honour ctx stop promptly;
// functions that ignore it keep running in the background, but their result
// is discarded.
//
// Example:
//
//	guarded, err := utilz.NewTimeout("render", render, 2*time.Second)
type Timeout[In, Out any] struct {
	processor Chainable[In, Out]
	clock     clockz.Clock
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[TimeoutEvent]
	name      Name
	duration  time.Duration
	mu        sync.RWMutex
}

// NewTimeout creates a Timeout with the given limit.
func NewTimeout[In, Out any](name Name, processor Chainable[In, Out], duration time.Duration) (*Timeout[In, Out], error) {
	if duration <= 0 {
		return nil, invalidArgument("seconds must be a positive integer")
	}

	registry := metricz.New()
	registry.Counter(TimeoutProcessedTotal)
	registry.Counter(TimeoutExpiredTotal)
	registry.Gauge(TimeoutDurationMs)

	return &Timeout[In, Out]{
		name:      name,
		processor: processor,
		duration:  duration,
		metrics:   registry,
		tracer:    tracez.New(),
		hooks:     hookz.New[TimeoutEvent](),
	}, nil
}

// Process implements Chainable.
func (t *Timeout[In, Out]) Process(ctx context.Context, in In) (Out, error) {
	t.mu.RLock()
	processor := t.processor
	duration := t.duration
	clock := t.getClock()
	t.mu.RUnlock()

	ctx, span := t.tracer.StartSpan(ctx, TimeoutProcessSpan)
	defer span.Finish()
	span.SetTag(TimeoutTagConnector, t.name)
	span.SetTag(TimeoutTagDuration, duration.String())

	t.metrics.Counter(TimeoutProcessedTotal).Inc()
	start := clock.Now()

	ctx, cancel := clock.WithTimeout(ctx, duration)
	defer cancel()

	type outcome struct {
		result Out
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() { done <- o }()
		defer recoverFromPanic(&o.result, &o.err, t.name, in)
		o.result, o.err = processor.Process(ctx, in)
	}()

	select {
	case o := <-done:
		// A function that returns because its context expired still counts
		// as timed out.
		if ctx.Err() == nil || o.err == nil {
			t.metrics.Gauge(TimeoutDurationMs).Set(float64(clock.Since(start).Milliseconds()))
			if o.err != nil {
				return o.result, wrapError(o.err, t.name, in)
			}
			span.SetTag(TimeoutTagExpired, "false")
			return o.result, nil
		}
	case <-ctx.Done():
	}

	var zero Out
	span.SetTag(TimeoutTagExpired, "true")
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return zero, contextError(ctx.Err(), t.name, in)
	}
	t.metrics.Counter(TimeoutExpiredTotal).Inc()
	_ = t.hooks.Emit(context.WithoutCancel(ctx), TimeoutEventExpired, TimeoutEvent{ //nolint:errcheck
		Name:      t.name,
		Duration:  duration,
		Timestamp: clock.Now(),
	})
	return zero, &Error[In]{
		Timestamp: clock.Now(),
		InputData: in,
		Err:       &TimedOutError{Name: t.name, Duration: duration},
		Path:      []Name{t.name},
		Duration:  clock.Since(start),
		Timeout:   true,
	}
}

// formatSeconds renders d in seconds without trailing zeros.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// SetDuration updates the time limit. Non-positive values are ignored.
func (t *Timeout[In, Out]) SetDuration(d time.Duration) *Timeout[In, Out] {
	if d <= 0 {
		return t
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.duration = d
	return t
}

// GetDuration returns the current time limit.
func (t *Timeout[In, Out]) GetDuration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.duration
}

// Name returns the name of this wrapper.
func (t *Timeout[In, Out]) Name() Name {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// Metrics returns the metrics registry for this wrapper.
func (t *Timeout[In, Out]) Metrics() *metricz.Registry {
	return t.metrics
}

// Tracer returns the tracer for this wrapper.
func (t *Timeout[In, Out]) Tracer() *tracez.Tracer {
	return t.tracer
}

// OnExpired registers a handler called asynchronously when a call times out.
func (t *Timeout[In, Out]) OnExpired(handler func(context.Context, TimeoutEvent) error) error {
	_, err := t.hooks.Hook(TimeoutEventExpired, handler)
	return err
}

// Close releases observability resources.
func (t *Timeout[In, Out]) Close() error {
	if t.tracer != nil {
		t.tracer.Close()
	}
	t.hooks.Close()
	return nil
}

// WithClock sets a custom clock for testing.
func (t *Timeout[In, Out]) WithClock(clock clockz.Clock) *Timeout[In, Out] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = clock
	return t
}

func (t *Timeout[In, Out]) getClock() clockz.Clock {
	if t.clock == nil {
		return clockz.RealClock
	}
	return t.clock
}
