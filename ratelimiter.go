package utilz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
	"golang.org/x/time/rate"
)

const (
	// ModeWait blocks until the limiter admits the call.
	ModeWait = "wait"
	// ModeDrop rejects calls over the limit with a RateLimitExceededError.
	ModeDrop = "drop"
)

// ErrRateLimitExceeded is matched by every RateLimitExceededError.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Metric keys for RateLimit observability.
const (
	RateLimitAllowedTotal   = metricz.Key("ratelimit.allowed.total")
	RateLimitDroppedTotal   = metricz.Key("ratelimit.dropped.total")
	RateLimitThrottledTotal = metricz.Key("ratelimit.throttled.total")
	RateLimitWaitMs         = metricz.Key("ratelimit.wait.ms")
)

// Span names and tags for RateLimit.
const (
	RateLimitProcessSpan = tracez.Key("ratelimit.process")

	RateLimitTagConnector = tracez.Tag("ratelimit.connector")
	RateLimitTagMode      = tracez.Tag("ratelimit.mode")
	RateLimitTagAllowed   = tracez.Tag("ratelimit.allowed")
)

// Hook event keys for RateLimit.
const (
	RateLimitEventAllowed   = hookz.Key("ratelimit.allowed")
	RateLimitEventDropped   = hookz.Key("ratelimit.dropped")
	RateLimitEventThrottled = hookz.Key("ratelimit.throttled")
)

// RateLimitEvent is emitted through hookz for every admission decision.
type RateLimitEvent struct {
	Timestamp time.Time
	Name      Name
	Mode      string
	Waited    time.Duration
	Allowed   bool
}

// RateLimitExceededError is returned in drop mode when a call exceeds the
// configured rate.
type RateLimitExceededError struct {
	Name    Name
	Message string
}

func (e *RateLimitExceededError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Rate limit exceeded for %s. Try again later.", e.Name)
}

// Is lets errors.Is match ErrRateLimitExceeded.
func (*RateLimitExceededError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RateLimit admits at most maxCalls calls per period to the wrapped function.
//
// The limiter is a token bucket with a burst of maxCalls that refills at
// maxCalls/period, so a burst of maxCalls calls is admitted immediately and
// further calls are admitted as tokens refill. In drop mode (the default)
// calls over the limit fail fast with *RateLimitExceededError. In wait mode
// they block until a token is available or the context ends.
//
// Example:
//
//	limited, err := utilz.NewRateLimit("search-api", search, 5, time.Second)
//	if err != nil {
//	    return err
//	}
//	limited.SetMessage("search quota used up").SetLogger(slog.Default())
type RateLimit[In, Out any] struct {
	processor Chainable[In, Out]
	clock     clockz.Clock
	limiter   *rate.Limiter
	logger    *slog.Logger
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[RateLimitEvent]
	name      Name
	mode      string
	message   string
	mu        sync.RWMutex
}

// NewRateLimit creates a RateLimit admitting maxCalls calls per period.
func NewRateLimit[In, Out any](name Name, processor Chainable[In, Out], maxCalls int, period time.Duration) (*RateLimit[In, Out], error) {
	if maxCalls <= 0 {
		return nil, invalidArgument("max_calls must be a positive integer")
	}
	if period <= 0 {
		return nil, invalidArgument("period must be a positive integer")
	}

	registry := metricz.New()
	registry.Counter(RateLimitAllowedTotal)
	registry.Counter(RateLimitDroppedTotal)
	registry.Counter(RateLimitThrottledTotal)
	registry.Gauge(RateLimitWaitMs)

	return &RateLimit[In, Out]{
		name:      name,
		processor: processor,
		limiter:   rate.NewLimiter(rate.Every(period/time.Duration(maxCalls)), maxCalls),
		mode:      ModeDrop,
		metrics:   registry,
		tracer:    tracez.New(),
		hooks:     hookz.New[RateLimitEvent](),
	}, nil
}

// Process implements Chainable.
func (r *RateLimit[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, r.name, in)

	r.mu.RLock()
	processor := r.processor
	limiter := r.limiter
	mode := r.mode
	message := r.message
	logger := r.logger
	clock := r.getClock()
	r.mu.RUnlock()

	ctx, span := r.tracer.StartSpan(ctx, RateLimitProcessSpan)
	defer span.Finish()
	span.SetTag(RateLimitTagConnector, r.name)
	span.SetTag(RateLimitTagMode, mode)

	switch mode {
	case ModeWait:
		reservation := limiter.ReserveN(clock.Now(), 1)
		delay := reservation.DelayFrom(clock.Now())
		if delay > 0 {
			r.metrics.Counter(RateLimitThrottledTotal).Inc()
			r.metrics.Gauge(RateLimitWaitMs).Set(float64(delay.Milliseconds()))
			_ = r.hooks.Emit(ctx, RateLimitEventThrottled, RateLimitEvent{ //nolint:errcheck
				Name:      r.name,
				Mode:      mode,
				Waited:    delay,
				Allowed:   true,
				Timestamp: clock.Now(),
			})
			select {
			case <-clock.After(delay):
			case <-ctx.Done():
				reservation.CancelAt(clock.Now())
				return result, contextError(ctx.Err(), r.name, in)
			}
		}

	case ModeDrop:
		if !limiter.AllowN(clock.Now(), 1) {
			r.metrics.Counter(RateLimitDroppedTotal).Inc()
			span.SetTag(RateLimitTagAllowed, "false")
			exceeded := &RateLimitExceededError{Name: r.name, Message: message}
			if logger != nil {
				logger.WarnContext(ctx, exceeded.Error())
			}
			_ = r.hooks.Emit(ctx, RateLimitEventDropped, RateLimitEvent{ //nolint:errcheck
				Name:      r.name,
				Mode:      mode,
				Timestamp: clock.Now(),
			})
			return result, wrapError(exceeded, r.name, in)
		}

	default:
		return result, wrapError(fmt.Errorf("invalid rate limiter mode: %s", mode), r.name, in)
	}

	r.metrics.Counter(RateLimitAllowedTotal).Inc()
	span.SetTag(RateLimitTagAllowed, "true")
	_ = r.hooks.Emit(ctx, RateLimitEventAllowed, RateLimitEvent{ //nolint:errcheck
		Name:      r.name,
		Mode:      mode,
		Allowed:   true,
		Timestamp: clock.Now(),
	})

	result, err = processor.Process(ctx, in)
	if err != nil {
		return result, wrapError(err, r.name, in)
	}
	return result, nil
}

// SetRate replaces the limit with maxCalls per period. Invalid values are
// ignored.
func (r *RateLimit[In, Out]) SetRate(maxCalls int, period time.Duration) *RateLimit[In, Out] {
	if maxCalls <= 0 || period <= 0 {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.getClock().Now()
	r.limiter.SetLimitAt(now, rate.Every(period/time.Duration(maxCalls)))
	r.limiter.SetBurstAt(now, maxCalls)
	return r
}

// SetMode switches between ModeWait and ModeDrop. Unknown modes are ignored.
func (r *RateLimit[In, Out]) SetMode(mode string) *RateLimit[In, Out] {
	if mode != ModeWait && mode != ModeDrop {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return r
}

// SetMessage overrides the message of RateLimitExceededError.
func (r *RateLimit[In, Out]) SetMessage(message string) *RateLimit[In, Out] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.message = message
	return r
}

// SetLogger sets the logger that records dropped calls.
func (r *RateLimit[In, Out]) SetLogger(logger *slog.Logger) *RateLimit[In, Out] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
	return r
}

// GetMode returns the current mode.
func (r *RateLimit[In, Out]) GetMode() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// GetBurst returns the maximum number of calls admitted at once.
func (r *RateLimit[In, Out]) GetBurst() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiter.Burst()
}

// Name returns the name of this wrapper.
func (r *RateLimit[In, Out]) Name() Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// Metrics returns the metrics registry for this wrapper.
func (r *RateLimit[In, Out]) Metrics() *metricz.Registry {
	return r.metrics
}

// Tracer returns the tracer for this wrapper.
func (r *RateLimit[In, Out]) Tracer() *tracez.Tracer {
	return r.tracer
}

// OnAllowed registers a handler called asynchronously when a call is admitted.
func (r *RateLimit[In, Out]) OnAllowed(handler func(context.Context, RateLimitEvent) error) error {
	_, err := r.hooks.Hook(RateLimitEventAllowed, handler)
	return err
}

// OnDropped registers a handler called asynchronously when a call is rejected.
func (r *RateLimit[In, Out]) OnDropped(handler func(context.Context, RateLimitEvent) error) error {
	_, err := r.hooks.Hook(RateLimitEventDropped, handler)
	return err
}

// OnThrottled registers a handler called asynchronously when a call has to
// wait in wait mode.
func (r *RateLimit[In, Out]) OnThrottled(handler func(context.Context, RateLimitEvent) error) error {
	_, err := r.hooks.Hook(RateLimitEventThrottled, handler)
	return err
}

// Close releases observability resources.
func (r *RateLimit[In, Out]) Close() error {
	if r.tracer != nil {
		r.tracer.Close()
	}
	r.hooks.Close()
	return nil
}

// WithClock sets a custom clock for testing.
func (r *RateLimit[In, Out]) WithClock(clock clockz.Clock) *RateLimit[In, Out] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	return r
}

func (r *RateLimit[In, Out]) getClock() clockz.Clock {
	if r.clock == nil {
		return clockz.RealClock
	}
	return r.clock
}
