package utilz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestThrottle(t *testing.T) {
	ctx := context.Background()
	echo := Apply("echo", func(_ context.Context, s string) (string, error) {
		return s, nil
	})

	t.Run("Rejects Invalid Interval", func(t *testing.T) {
		_, err := NewThrottle("throttle", echo, 0)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if err.Error() != "invalid argument: rate_limit must be a positive float or an integer" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("Rejects Calls Inside Interval", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		throttle, _ := NewThrottle("echo", echo, time.Second)
		throttle.WithClock(clock)

		if _, err := throttle.Process(ctx, "a"); err != nil {
			t.Fatalf("first call should pass: %v", err)
		}

		_, err := throttle.Process(ctx, "b")
		if !errors.Is(err, ErrThrottled) {
			t.Fatalf("expected ErrThrottled, got %v", err)
		}
		var throttled *ThrottledError
		if !errors.As(err, &throttled) {
			t.Fatalf("expected *ThrottledError, got %T", err)
		}
		if throttled.Error() != "Function echo called too frequently. Rate limit: 1.0 seconds." {
			t.Errorf("unexpected message %q", throttled.Error())
		}

		clock.Advance(time.Second)
		result, err := throttle.Process(ctx, "c")
		if err != nil {
			t.Fatalf("call after interval should pass: %v", err)
		}
		if result != "c" {
			t.Errorf("expected 'c', got %q", result)
		}

		if throttle.Metrics().Counter(ThrottleAllowedTotal).Value() != 2 {
			t.Errorf("expected 2 allowed, got %f", throttle.Metrics().Counter(ThrottleAllowedTotal).Value())
		}
		if throttle.Metrics().Counter(ThrottleRejectedTotal).Value() != 1 {
			t.Errorf("expected 1 rejected, got %f", throttle.Metrics().Counter(ThrottleRejectedTotal).Value())
		}
	})

	t.Run("Rejected Calls Do Not Reset Window", func(t *testing.T) {
		clock := clockz.NewFakeClock()
		throttle, _ := NewThrottle("echo", echo, time.Second)
		throttle.WithClock(clock)

		_, _ = throttle.Process(ctx, "a")
		clock.Advance(600 * time.Millisecond)
		if _, err := throttle.Process(ctx, "b"); err == nil {
			t.Fatal("expected rejection")
		}
		clock.Advance(400 * time.Millisecond)
		if _, err := throttle.Process(ctx, "c"); err != nil {
			t.Errorf("expected call one interval after the last admitted call to pass: %v", err)
		}
	})

	t.Run("SetInterval", func(t *testing.T) {
		throttle, _ := NewThrottle("echo", echo, time.Second)
		throttle.SetInterval(-1)
		if throttle.GetInterval() != time.Second {
			t.Errorf("expected 1s, got %v", throttle.GetInterval())
		}
		throttle.SetInterval(250 * time.Millisecond)
		if throttle.GetInterval() != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %v", throttle.GetInterval())
		}
	})
}
