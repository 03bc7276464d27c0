package utilz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
)

// ErrThrottled is matched by ThrottledError.
var ErrThrottled = errors.New("called too frequently")

// ThrottledError is returned when a call arrives before the minimum interval
// has elapsed.
type ThrottledError struct {
	Name     Name
	Interval time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("Function %s called too frequently. Rate limit: %.1f seconds.", e.Name, e.Interval.Seconds())
}

// Is lets errors.Is match ErrThrottled.
func (*ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// Metric keys for Throttle.
const (
	ThrottleAllowedTotal  = metricz.Key("throttle.allowed.total")
	ThrottleRejectedTotal = metricz.Key("throttle.rejected.total")
)

// Throttle enforces a minimum interval between calls to the wrapped function.
// Unlike RateLimit it allows no bursts: a call that arrives sooner than
// interval after the previous admitted call is rejected.
type Throttle[In, Out any] struct {
	processor Chainable[In, Out]
	clock     clockz.Clock
	last      time.Time
	metrics   *metricz.Registry
	name      Name
	interval  time.Duration
	mu        sync.Mutex
}

// NewThrottle creates a Throttle with the given minimum interval.
func NewThrottle[In, Out any](name Name, processor Chainable[In, Out], interval time.Duration) (*Throttle[In, Out], error) {
	if interval <= 0 {
		return nil, invalidArgument("rate_limit must be a positive float or an integer")
	}
	registry := metricz.New()
	registry.Counter(ThrottleAllowedTotal)
	registry.Counter(ThrottleRejectedTotal)
	return &Throttle[In, Out]{
		name:      name,
		processor: processor,
		interval:  interval,
		metrics:   registry,
	}, nil
}

// Process implements Chainable.
func (t *Throttle[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, t.name, in)

	t.mu.Lock()
	now := t.getClock().Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		interval := t.interval
		t.mu.Unlock()
		t.metrics.Counter(ThrottleRejectedTotal).Inc()
		return result, wrapError(&ThrottledError{Name: t.name, Interval: interval}, t.name, in)
	}
	t.last = now
	processor := t.processor
	t.mu.Unlock()

	t.metrics.Counter(ThrottleAllowedTotal).Inc()
	result, err = processor.Process(ctx, in)
	if err != nil {
		return result, wrapError(err, t.name, in)
	}
	return result, nil
}

// SetInterval updates the minimum interval. Non-positive values are ignored.
func (t *Throttle[In, Out]) SetInterval(d time.Duration) *Throttle[In, Out] {
	if d <= 0 {
		return t
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
	return t
}

// GetInterval returns the minimum interval.
func (t *Throttle[In, Out]) GetInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// Name returns the name of this wrapper.
func (t *Throttle[In, Out]) Name() Name {
	return t.name
}

// Metrics returns the metrics registry for this wrapper.
func (t *Throttle[In, Out]) Metrics() *metricz.Registry {
	return t.metrics
}

// WithClock sets a custom clock for testing.
func (t *Throttle[In, Out]) WithClock(clock clockz.Clock) *Throttle[In, Out] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = clock
	return t
}

func (t *Throttle[In, Out]) getClock() clockz.Clock {
	if t.clock == nil {
		return clockz.RealClock
	}
	return t.clock
}
