package utilz

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeout(t *testing.T) {
	ctx := context.Background()

	sleepy := func(d time.Duration) Processor[string, string] {
		return Apply("sleepy", func(ctx context.Context, s string) (string, error) {
			select {
			case <-time.After(d):
				return s + "-done", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})
	}

	t.Run("Rejects Invalid Duration", func(t *testing.T) {
		_, err := NewTimeout("timeout", sleepy(0), 0)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if !strings.Contains(err.Error(), "seconds must be a positive integer") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("Fast Calls Complete", func(t *testing.T) {
		timeout, _ := NewTimeout("fast", sleepy(time.Millisecond), time.Second)
		defer timeout.Close()

		result, err := timeout.Process(ctx, "job")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "job-done" {
			t.Errorf("expected 'job-done', got %q", result)
		}
	})

	t.Run("Slow Calls Time Out", func(t *testing.T) {
		timeout, _ := NewTimeout("render", sleepy(time.Second), 20*time.Millisecond)
		defer timeout.Close()

		var expired int32
		_ = timeout.OnExpired(func(_ context.Context, _ TimeoutEvent) error {
			atomic.AddInt32(&expired, 1)
			return nil
		})

		start := time.Now()
		_, err := timeout.Process(ctx, "job")
		if time.Since(start) > 500*time.Millisecond {
			t.Errorf("timeout took too long: %v", time.Since(start))
		}

		if !errors.Is(err, ErrTimedOut) {
			t.Fatalf("expected ErrTimedOut, got %v", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("expected timeout to match context.DeadlineExceeded")
		}
		var wrapErr *Error[string]
		if !errors.As(err, &wrapErr) || !wrapErr.IsTimeout() {
			t.Fatalf("expected timeout *Error[string], got %v", err)
		}
		var timedOut *TimedOutError
		if !errors.As(err, &timedOut) {
			t.Fatalf("expected *TimedOutError, got %T", err)
		}
		if timedOut.Error() != "Function render timed out after 0.02 seconds" {
			t.Errorf("unexpected message %q", timedOut.Error())
		}

		time.Sleep(50 * time.Millisecond)
		if atomic.LoadInt32(&expired) != 1 {
			t.Errorf("expected 1 expired event, got %d", expired)
		}
		if timeout.Metrics().Counter(TimeoutExpiredTotal).Value() != 1 {
			t.Errorf("expected 1 expiry, got %f", timeout.Metrics().Counter(TimeoutExpiredTotal).Value())
		}
	})

	t.Run("Errors Pass Through", func(t *testing.T) {
		fail := Apply("fail", func(_ context.Context, _ string) (string, error) {
			return "", errors.New("broken")
		})
		timeout, _ := NewTimeout("guard", fail, time.Second)
		defer timeout.Close()

		_, err := timeout.Process(ctx, "x")
		var wrapErr *Error[string]
		if !errors.As(err, &wrapErr) {
			t.Fatalf("expected *Error[string], got %T", err)
		}
		if wrapErr.Timeout {
			t.Error("expected non-timeout error")
		}
		if wrapErr.Path[0] != "guard" {
			t.Errorf("expected path to start with guard, got %v", wrapErr.Path)
		}
	})

	t.Run("Panics Are Recovered", func(t *testing.T) {
		explode := Apply("explode", func(_ context.Context, _ string) (string, error) {
			panic("inside goroutine")
		})
		timeout, _ := NewTimeout("guard", explode, time.Second)
		defer timeout.Close()

		_, err := timeout.Process(ctx, "x")
		if !errors.Is(err, ErrPanic) {
			t.Errorf("expected ErrPanic, got %v", err)
		}
	})

	t.Run("Parent Cancellation", func(t *testing.T) {
		timeout, _ := NewTimeout("guard", sleepy(time.Second), time.Minute)
		defer timeout.Close()

		cctx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := timeout.Process(cctx, "x")
		var wrapErr *Error[string]
		if !errors.As(err, &wrapErr) {
			t.Fatalf("expected *Error[string], got %T", err)
		}
		if !wrapErr.IsCanceled() {
			t.Errorf("expected canceled error, got %v", err)
		}
	})

	t.Run("SetDuration", func(t *testing.T) {
		timeout, _ := NewTimeout("guard", sleepy(0), time.Second)
		defer timeout.Close()

		timeout.SetDuration(0)
		if timeout.GetDuration() != time.Second {
			t.Errorf("expected 1s, got %v", timeout.GetDuration())
		}
		timeout.SetDuration(2 * time.Second)
		if timeout.GetDuration() != 2*time.Second {
			t.Errorf("expected 2s, got %v", timeout.GetDuration())
		}
	})
}
