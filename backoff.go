package utilz

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// Backoff retries the wrapped function with exponentially growing delays.
//
// The first retry waits baseDelay, and each following retry doubles the wait,
// capped at maxDelay when one is set.
//
// Context cancellation is honoured while waiting; a canceled context ends the
// loop with a timeout or cancellation error.
//
// Example:
//
//	connect := utilz.NewBackoff("db-connect", dial, 5, 200*time.Millisecond)
type Backoff[In, Out any] struct {
	processor   Chainable[In, Out]
	clock       clockz.Clock
	logger      *slog.Logger
	name        Name
	baseDelay   time.Duration
	maxDelay    time.Duration
	mu          sync.RWMutex
	maxAttempts int
}

// NewBackoff creates a Backoff. maxAttempts below 1 is raised to 1.
func NewBackoff[In, Out any](name Name, processor Chainable[In, Out], maxAttempts int, baseDelay time.Duration) *Backoff[In, Out] {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Backoff[In, Out]{
		name:        name,
		processor:   processor,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Process implements Chainable.
func (b *Backoff[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, b.name, in)
	b.mu.RLock()
	processor := b.processor
	maxAttempts := b.maxAttempts
	baseDelay := b.baseDelay
	maxDelay := b.maxDelay
	logger := b.logger
	clock := b.getClock()
	b.mu.RUnlock()

	var lastErr error
	delay := baseDelay

	for i := 0; i < maxAttempts; i++ {
		result, err = processor.Process(ctx, in)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// No sleep after the final attempt.
		if i < maxAttempts-1 {
			if logger != nil {
				logger.WarnContext(ctx, "backoff attempt failed",
					"name", b.name,
					"attempt", i+1,
					"max_attempts", maxAttempts,
					"delay", delay,
					"error", causeOf[In](err).Error(),
				)
			}

			select {
			case <-clock.After(delay):
				delay *= 2
				if maxDelay > 0 && delay > maxDelay {
					delay = maxDelay
				}
			case <-ctx.Done():
				return result, contextError(ctx.Err(), b.name, in)
			}
		}
	}

	return result, wrapError(lastErr, b.name, in)
}

// SetMaxAttempts updates the maximum number of attempts.
func (b *Backoff[In, Out]) SetMaxAttempts(n int) *Backoff[In, Out] {
	if n < 1 {
		n = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxAttempts = n
	return b
}

// SetBaseDelay updates the delay before the first retry.
func (b *Backoff[In, Out]) SetBaseDelay(d time.Duration) *Backoff[In, Out] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseDelay = d
	return b
}

// SetMaxDelay caps the delay between attempts. Zero removes the cap.
func (b *Backoff[In, Out]) SetMaxDelay(d time.Duration) *Backoff[In, Out] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxDelay = d
	return b
}

// SetLogger sets the logger that records failed attempts.
func (b *Backoff[In, Out]) SetLogger(logger *slog.Logger) *Backoff[In, Out] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// GetMaxAttempts returns the current maximum attempts setting.
func (b *Backoff[In, Out]) GetMaxAttempts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxAttempts
}

// GetBaseDelay returns the current base delay setting.
func (b *Backoff[In, Out]) GetBaseDelay() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.baseDelay
}

// Name returns the name of this wrapper.
func (b *Backoff[In, Out]) Name() Name {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.name
}

// WithClock sets a custom clock for testing.
func (b *Backoff[In, Out]) WithClock(clock clockz.Clock) *Backoff[In, Out] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
	return b
}

func (b *Backoff[In, Out]) getClock() clockz.Clock {
	if b.clock == nil {
		return clockz.RealClock
	}
	return b.clock
}
