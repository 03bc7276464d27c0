package testing

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/zoobzio/utilz"
)

func TestMockFunc(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns Configured Value", func(t *testing.T) {
		mock := NewMockFunc[string, string]("mock").WithReturn("mocked", nil)

		result, err := mock.Process(ctx, "input")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "mocked" {
			t.Errorf("expected 'mocked', got %q", result)
		}
		if mock.Name() != "mock" {
			t.Errorf("unexpected name %q", mock.Name())
		}
	})

	t.Run("Returns Configured Error", func(t *testing.T) {
		want := errors.New("test error")
		mock := NewMockFunc[string, int]("mock").WithReturn(7, want)

		result, err := mock.Process(ctx, "input")
		if !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
		if result != 0 {
			t.Errorf("expected zero value with error, got %d", result)
		}
	})

	t.Run("FailFirst Then Succeeds", func(t *testing.T) {
		mock := NewMockFunc[int, int]("flaky").WithReturn(10, nil).FailFirst(2, errors.New("not yet"))

		for i := 0; i < 2; i++ {
			if _, err := mock.Process(ctx, i); err == nil {
				t.Fatalf("call %d: expected error", i)
			}
		}
		result, err := mock.Process(ctx, 2)
		if err != nil || result != 10 {
			t.Errorf("got %d, %v", result, err)
		}
	})

	t.Run("Records Calls", func(t *testing.T) {
		mock := NewMockFunc[string, string]("mock")
		for _, in := range []string{"a", "b", "c"} {
			_, _ = mock.Process(ctx, in)
		}
		AssertCalls(t, mock, 3)
		AssertCalledWith(t, mock, "c")
		if got := mock.Inputs(); !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("unexpected inputs %v", got)
		}

		mock.Reset()
		AssertCalls(t, mock, 0)
		if len(mock.Inputs()) != 0 {
			t.Errorf("expected no inputs after reset, got %v", mock.Inputs())
		}
	})

	t.Run("Delay Honours Context", func(t *testing.T) {
		mock := NewMockFunc[int, int]("slow").WithDelay(time.Second)

		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := mock.Process(ctx, 1)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("Panics When Configured", func(t *testing.T) {
		mock := NewMockFunc[int, int]("explosive").WithPanic("boom")

		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("expected panic 'boom', got %v", r)
			}
		}()
		_, _ = mock.Process(ctx, 1)
	})

	t.Run("Works Inside Wrappers", func(t *testing.T) {
		mock := NewMockFunc[string, int]("lookup").WithReturn(42, nil)

		cached, err := utilz.NewCache[string, int]("cached-lookup", mock, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer cached.Close()

		_, _ = cached.Process(ctx, "answer")
		_, _ = cached.Process(ctx, "answer")

		AssertCalls(t, mock, 1)
		AssertCalledWith(t, mock, "answer")
	})
}

func TestChaos(t *testing.T) {
	ctx := context.Background()
	double := utilz.Apply("double", func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})

	t.Run("No Chaos Passes Through", func(t *testing.T) {
		chaos := NewChaos("chaos", double, ChaosConfig{Seed: 12345})

		result, err := chaos.Process(ctx, 21)
		if err != nil || result != 42 {
			t.Errorf("got %d, %v", result, err)
		}
		if chaos.Name() != "chaos" {
			t.Errorf("unexpected name %q", chaos.Name())
		}
	})

	t.Run("Failures Are Wrapper Errors", func(t *testing.T) {
		chaos := NewChaos("chaos", double, ChaosConfig{FailureRate: 1, Seed: 1})

		_, err := chaos.Process(ctx, 5)
		var wrapErr *utilz.Error[int]
		if !errors.As(err, &wrapErr) {
			t.Fatalf("expected *utilz.Error[int], got %T", err)
		}
		if !errors.Is(err, ErrChaos) {
			t.Errorf("expected ErrChaos, got %v", err)
		}
		if wrapErr.InputData != 5 || !slices.Equal(wrapErr.Path, []string{"chaos"}) {
			t.Errorf("unexpected error %+v", wrapErr)
		}
		if wrapErr.IsTimeout() {
			t.Error("failure reported as timeout")
		}
	})

	t.Run("Injects Failures At Configured Rate", func(t *testing.T) {
		chaos := NewChaos("chaos", double, ChaosConfig{FailureRate: 0.5, Seed: 42})

		failures := 0
		for i := 0; i < 100; i++ {
			if _, err := chaos.Process(ctx, i); err != nil {
				failures++
			}
		}
		if failures < 30 || failures > 70 {
			t.Errorf("expected ~50 failures, got %d", failures)
		}
		stats := chaos.Stats()
		if stats.TotalCalls != 100 || stats.FailedCalls != int64(failures) {
			t.Errorf("unexpected stats %s", stats)
		}
	})

	t.Run("Timeouts Match Timeout Errors", func(t *testing.T) {
		chaos := NewChaos("chaos", double, ChaosConfig{TimeoutRate: 1, Seed: 12345})

		_, err := chaos.Process(ctx, 1)
		var wrapErr *utilz.Error[int]
		if !errors.As(err, &wrapErr) || !wrapErr.Timeout || !wrapErr.IsTimeout() {
			t.Fatalf("expected timed out *utilz.Error[int], got %v", err)
		}
		if !errors.Is(err, utilz.ErrTimedOut) || !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected timeout sentinels to match, got %v", err)
		}
		var timedOut *utilz.TimedOutError
		if !errors.As(err, &timedOut) || timedOut.Name != "chaos" {
			t.Errorf("unexpected cause %v", err)
		}
		if chaos.Stats().TimeoutCalls != 1 {
			t.Errorf("unexpected stats %s", chaos.Stats())
		}
	})

	t.Run("Panics Are Recovered By Wrappers", func(t *testing.T) {
		chaos := NewChaos("chaos", double, ChaosConfig{PanicRate: 1, Seed: 3})
		timeout, err := utilz.NewTimeout[int, int]("guard", chaos, time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer timeout.Close()

		_, err = timeout.Process(ctx, 1)
		if !errors.Is(err, utilz.ErrPanic) {
			t.Errorf("expected ErrPanic, got %v", err)
		}
		if chaos.Stats().PanicCalls != 1 {
			t.Errorf("unexpected stats %s", chaos.Stats())
		}
	})

	t.Run("Retry Recovers From Chaos", func(t *testing.T) {
		chaos := NewChaos("chaos", double, ChaosConfig{FailureRate: 0.3, Seed: 7})
		retry, err := utilz.NewRetry[int, int]("resilient", chaos, 20, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer retry.Close()

		for i := 0; i < 20; i++ {
			result, err := retry.Process(ctx, i)
			if err != nil {
				t.Fatalf("call %d: unexpected error: %v", i, err)
			}
			if result != i*2 {
				t.Errorf("expected %d, got %d", i*2, result)
			}
		}
	})

	t.Run("Latency Honours Context", func(t *testing.T) {
		chaos := NewChaos("chaos", double, ChaosConfig{Latency: time.Second, Seed: 1})

		ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		if _, err := chaos.Process(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestMeasureLatency(t *testing.T) {
	elapsed := MeasureLatency(func() { time.Sleep(5 * time.Millisecond) })
	if elapsed < 5*time.Millisecond {
		t.Errorf("expected at least 5ms, got %v", elapsed)
	}
}
