package testing

import (
	"errors"
	"testing"
	"time"
)

func TestBenchmarkFunction(t *testing.T) {
	t.Run("Simple Function", func(t *testing.T) {
		x := 0
		result, err := BenchmarkFunction(func() error {
			x *= 2
			return nil
		}, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Iterations != 10 {
			t.Errorf("expected 10 iterations, got %d", result.Iterations)
		}
		if result.Total < 0 || result.Average < 0 {
			t.Errorf("expected non-negative timings, got %s", result)
		}
		if result.Min > result.Max {
			t.Errorf("min %v greater than max %v", result.Min, result.Max)
		}
	})

	t.Run("Sleeping Function", func(t *testing.T) {
		result, err := BenchmarkFunction(func() error {
			time.Sleep(10 * time.Millisecond)
			return nil
		}, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Average < 10*time.Millisecond {
			t.Errorf("expected average >= 10ms, got %v", result.Average)
		}
	})

	t.Run("Single Iteration", func(t *testing.T) {
		result, err := BenchmarkFunction(func() error { return nil }, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Min != result.Max {
			t.Errorf("expected min == max, got %v and %v", result.Min, result.Max)
		}
		if result.Average != result.Total {
			t.Errorf("expected average == total, got %v and %v", result.Average, result.Total)
		}
	})

	t.Run("Nil Function", func(t *testing.T) {
		_, err := BenchmarkFunction(nil, 10)
		if err == nil || err.Error() != "func must be callable" {
			t.Errorf("expected 'func must be callable', got %v", err)
		}
	})

	t.Run("Non Positive Iterations", func(t *testing.T) {
		for _, n := range []int{0, -1} {
			_, err := BenchmarkFunction(func() error { return nil }, n)
			if !errors.Is(err, ErrInvalidIterations) {
				t.Errorf("iterations %d: expected ErrInvalidIterations, got %v", n, err)
			}
		}
	})

	t.Run("Stops On Error", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		_, err := BenchmarkFunction(func() error {
			calls++
			if calls == 3 {
				return boom
			}
			return nil
		}, 10)
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})
}
