package utilz

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Retry observability.
const (
	RetryAttemptsTotal  = metricz.Key("retry.attempts.total")
	RetrySuccessesTotal = metricz.Key("retry.successes.total")
	RetryFailuresTotal  = metricz.Key("retry.failures.total")
)

// Span names and tags for Retry.
const (
	RetryProcessSpan = tracez.Key("retry.process")
	RetryAttemptSpan = tracez.Key("retry.attempt")

	RetryTagConnector = tracez.Tag("retry.connector")
	RetryTagAttempt   = tracez.Tag("retry.attempt")
	RetryTagSuccess   = tracez.Tag("retry.success")
	RetryTagError     = tracez.Tag("retry.error")
)

// Hook event keys for Retry.
const (
	RetryEventAttempt   = hookz.Key("retry.attempt")
	RetryEventSuccess   = hookz.Key("retry.success")
	RetryEventExhausted = hookz.Key("retry.exhausted")
)

// RetryEvent is emitted through hookz for each attempt and on completion.
type RetryEvent struct {
	Timestamp     time.Time
	Error         error
	Name          Name
	ProcessorName Name
	AttemptNumber int
	MaxAttempts   int
	Success       bool
}

// Retry calls the wrapped function up to maxRetries times, sleeping a fixed
// delay between attempts.
//
// A maxRetries of 0 still calls the function once. Each failed attempt is
// logged at warn level as "Attempt N failed for NAME: err" when a logger is
// set. If every attempt fails, the last error is returned. The context is
// checked between attempts so cancellation stops the loop early.
//
// For a delay that grows between attempts use Backoff.
//
// Example:
//
//	resilient, err := utilz.NewRetry("send-email", send, 3, 500*time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	resilient.SetLogger(logger)
type Retry[In, Out any] struct {
	processor   Chainable[In, Out]
	clock       clockz.Clock
	logger      *slog.Logger
	metrics     *metricz.Registry
	tracer      *tracez.Tracer
	hooks       *hookz.Hooks[RetryEvent]
	name        Name
	delay       time.Duration
	maxAttempts int
	mu          sync.RWMutex
}

// NewRetry creates a Retry making at most maxRetries attempts.
func NewRetry[In, Out any](name Name, processor Chainable[In, Out], maxRetries int, delay time.Duration) (*Retry[In, Out], error) {
	if maxRetries < 0 {
		return nil, invalidArgument("max_retries must be an positive integer or 0")
	}
	if delay < 0 {
		return nil, invalidArgument("delay must be a positive float or an positive integer or 0")
	}
	if maxRetries == 0 {
		maxRetries = 1
	}

	registry := metricz.New()
	registry.Counter(RetryAttemptsTotal)
	registry.Counter(RetrySuccessesTotal)
	registry.Counter(RetryFailuresTotal)

	return &Retry[In, Out]{
		name:        name,
		processor:   processor,
		maxAttempts: maxRetries,
		delay:       delay,
		metrics:     registry,
		tracer:      tracez.New(),
		hooks:       hookz.New[RetryEvent](),
	}, nil
}

// Process implements Chainable.
func (r *Retry[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, r.name, in)

	r.mu.RLock()
	processor := r.processor
	maxAttempts := r.maxAttempts
	delay := r.delay
	logger := r.logger
	clock := r.getClock()
	r.mu.RUnlock()

	ctx, span := r.tracer.StartSpan(ctx, RetryProcessSpan)
	defer span.Finish()
	span.SetTag(RetryTagConnector, r.name)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		r.metrics.Counter(RetryAttemptsTotal).Inc()

		attemptCtx, attemptSpan := r.tracer.StartSpan(ctx, RetryAttemptSpan)
		attemptSpan.SetTag(RetryTagAttempt, strconv.Itoa(attempt))
		result, err = processor.Process(attemptCtx, in)
		attemptSpan.Finish()

		_ = r.hooks.Emit(ctx, RetryEventAttempt, RetryEvent{ //nolint:errcheck
			Name:          r.name,
			ProcessorName: processor.Name(),
			AttemptNumber: attempt,
			MaxAttempts:   maxAttempts,
			Success:       err == nil,
			Error:         err,
			Timestamp:     clock.Now(),
		})

		if err == nil {
			r.metrics.Counter(RetrySuccessesTotal).Inc()
			span.SetTag(RetryTagSuccess, "true")
			_ = r.hooks.Emit(ctx, RetryEventSuccess, RetryEvent{ //nolint:errcheck
				Name:          r.name,
				ProcessorName: processor.Name(),
				AttemptNumber: attempt,
				MaxAttempts:   maxAttempts,
				Success:       true,
				Timestamp:     clock.Now(),
			})
			return result, nil
		}

		lastErr = err
		if logger != nil {
			logger.WarnContext(ctx, fmt.Sprintf("Attempt %d failed for %s: %v", attempt, processor.Name(), causeOf[In](err)))
		}

		if ctx.Err() != nil {
			return result, contextError(ctx.Err(), r.name, in)
		}

		if attempt < maxAttempts && delay > 0 {
			select {
			case <-clock.After(delay):
			case <-ctx.Done():
				return result, contextError(ctx.Err(), r.name, in)
			}
		}
	}

	r.metrics.Counter(RetryFailuresTotal).Inc()
	span.SetTag(RetryTagSuccess, "false")
	span.SetTag(RetryTagError, lastErr.Error())
	_ = r.hooks.Emit(ctx, RetryEventExhausted, RetryEvent{ //nolint:errcheck
		Name:          r.name,
		ProcessorName: processor.Name(),
		AttemptNumber: maxAttempts,
		MaxAttempts:   maxAttempts,
		Error:         lastErr,
		Timestamp:     clock.Now(),
	})
	return result, wrapError(lastErr, r.name, in)
}

// SetMaxRetries updates the attempt limit. Zero means a single attempt;
// negative values are ignored.
func (r *Retry[In, Out]) SetMaxRetries(n int) *Retry[In, Out] {
	if n < 0 {
		return r
	}
	if n == 0 {
		n = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxAttempts = n
	return r
}

// GetMaxRetries returns the attempt limit.
func (r *Retry[In, Out]) GetMaxRetries() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxAttempts
}

// SetDelay updates the pause between attempts. Negative values are ignored.
func (r *Retry[In, Out]) SetDelay(d time.Duration) *Retry[In, Out] {
	if d < 0 {
		return r
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
	return r
}

// GetDelay returns the pause between attempts.
func (r *Retry[In, Out]) GetDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.delay
}

// SetLogger sets the logger that records failed attempts.
func (r *Retry[In, Out]) SetLogger(logger *slog.Logger) *Retry[In, Out] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
	return r
}

// Name returns the name of this wrapper.
func (r *Retry[In, Out]) Name() Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// Metrics returns the metrics registry for this wrapper.
func (r *Retry[In, Out]) Metrics() *metricz.Registry {
	return r.metrics
}

// Tracer returns the tracer for this wrapper.
func (r *Retry[In, Out]) Tracer() *tracez.Tracer {
	return r.tracer
}

// OnAttempt registers a handler called asynchronously after every attempt.
func (r *Retry[In, Out]) OnAttempt(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventAttempt, handler)
	return err
}

// OnSuccess registers a handler called asynchronously when an attempt succeeds.
func (r *Retry[In, Out]) OnSuccess(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventSuccess, handler)
	return err
}

// OnExhausted registers a handler called asynchronously when every attempt
// has failed.
func (r *Retry[In, Out]) OnExhausted(handler func(context.Context, RetryEvent) error) error {
	_, err := r.hooks.Hook(RetryEventExhausted, handler)
	return err
}

// Close releases observability resources.
func (r *Retry[In, Out]) Close() error {
	if r.tracer != nil {
		r.tracer.Close()
	}
	r.hooks.Close()
	return nil
}

// WithClock sets a custom clock for testing.
func (r *Retry[In, Out]) WithClock(clock clockz.Clock) *Retry[In, Out] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	return r
}

func (r *Retry[In, Out]) getClock() clockz.Clock {
	if r.clock == nil {
		return clockz.RealClock
	}
	return r.clock
}
