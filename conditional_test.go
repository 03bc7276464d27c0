package utilz

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestConditional(t *testing.T) {
	ctx := context.Background()

	var calls int64
	compute := Apply("compute", func(_ context.Context, n int) (string, error) {
		atomic.AddInt64(&calls, 1)
		return "computed", nil
	})
	isNegative := func(_ context.Context, n int) (bool, error) { return n < 0, nil }

	t.Run("Rejects Nil Condition", func(t *testing.T) {
		_, err := NewConditional[int, string]("cond", nil, "x", compute)
		if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), "Condition must be callable") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Short Circuits When Condition Holds", func(t *testing.T) {
		atomic.StoreInt64(&calls, 0)
		cond, _ := NewConditional("cond", isNegative, "Condition met", compute)
		defer cond.Close()

		result, err := cond.Process(ctx, -1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "Condition met" {
			t.Errorf("expected short-circuit value, got %q", result)
		}
		if atomic.LoadInt64(&calls) != 0 {
			t.Error("wrapped function should not run")
		}
	})

	t.Run("Calls Function Otherwise", func(t *testing.T) {
		atomic.StoreInt64(&calls, 0)
		cond, _ := NewConditional("cond", isNegative, "Condition met", compute)
		defer cond.Close()

		result, err := cond.Process(ctx, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "computed" {
			t.Errorf("expected 'computed', got %q", result)
		}
		if cond.Metrics().Counter(ConditionalPassedTotal).Value() != 1 {
			t.Errorf("expected 1 passed, got %f", cond.Metrics().Counter(ConditionalPassedTotal).Value())
		}
	})

	t.Run("Condition Error", func(t *testing.T) {
		broken := func(_ context.Context, _ int) (bool, error) {
			return false, errors.New("Condition error")
		}
		cond, _ := NewConditional("cond", broken, "x", compute)
		defer cond.Close()

		_, err := cond.Process(ctx, 1)
		if err == nil || !strings.Contains(err.Error(), "Condition function raised an error: Condition error") {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("Setters And Hooks", func(t *testing.T) {
		cond, _ := NewConditional("cond", isNegative, "first", compute)
		defer cond.Close()

		var shorts int32
		_ = cond.OnShortCircuit(func(_ context.Context, e ConditionalEvent) error {
			if e.ConditionMet {
				atomic.AddInt32(&shorts, 1)
			}
			return nil
		})

		cond.SetValue("second").SetCondition(nil)
		result, _ := cond.Process(ctx, -5)
		if result != "second" {
			t.Errorf("expected 'second', got %q", result)
		}

		cond.SetCondition(func(_ context.Context, _ int) (bool, error) { return true, nil })
		result, _ = cond.Process(ctx, 5)
		if result != "second" {
			t.Errorf("expected replaced condition to short circuit, got %q", result)
		}

		time.Sleep(50 * time.Millisecond)
		if atomic.LoadInt32(&shorts) != 2 {
			t.Errorf("expected 2 short-circuit events, got %d", shorts)
		}
	})
}
