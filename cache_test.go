package utilz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/tracez"
)

func TestCache(t *testing.T) {
	ctx := context.Background()

	counting := func(calls *int64) Processor[int, int] {
		return Apply("square", func(_ context.Context, n int) (int, error) {
			atomic.AddInt64(calls, 1)
			return n * n, nil
		})
	}

	t.Run("Rejects Non Positive Expiration", func(t *testing.T) {
		var calls int64
		for _, d := range []time.Duration{0, -time.Second} {
			_, err := NewCache("cache", counting(&calls), d)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if err.Error() != "invalid argument: expiration_time must be a positive integer" {
				t.Errorf("unexpected message %q", err.Error())
			}
		}
	})

	t.Run("Serves Repeat Calls From Cache", func(t *testing.T) {
		var calls int64
		cache, err := NewCache("cache", counting(&calls), time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer cache.Close()

		for i := 0; i < 3; i++ {
			result, err := cache.Process(ctx, 4)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != 16 {
				t.Errorf("expected 16, got %d", result)
			}
		}
		if atomic.LoadInt64(&calls) != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if cache.Metrics().Counter(CacheHitsTotal).Value() != 2 {
			t.Errorf("expected 2 hits, got %f", cache.Metrics().Counter(CacheHitsTotal).Value())
		}
		if cache.Metrics().Counter(CacheMissesTotal).Value() != 1 {
			t.Errorf("expected 1 miss, got %f", cache.Metrics().Counter(CacheMissesTotal).Value())
		}
	})

	t.Run("Different Inputs Are Separate Entries", func(t *testing.T) {
		var calls int64
		cache, _ := NewCache("cache", counting(&calls), time.Minute)
		defer cache.Close()

		_, _ = cache.Process(ctx, 2)
		_, _ = cache.Process(ctx, 3)
		if cache.Len() != 2 {
			t.Errorf("expected 2 entries, got %d", cache.Len())
		}
		if atomic.LoadInt64(&calls) != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("Expired Entries Are Recomputed", func(t *testing.T) {
		var calls int64
		clock := clockz.NewFakeClock()
		cache, _ := NewCache("cache", counting(&calls), time.Second)
		cache.WithClock(clock)
		defer cache.Close()

		_, _ = cache.Process(ctx, 5)
		clock.Advance(500 * time.Millisecond)
		_, _ = cache.Process(ctx, 5)
		if atomic.LoadInt64(&calls) != 1 {
			t.Fatalf("expected cached result before expiry, got %d calls", calls)
		}

		clock.Advance(time.Second)
		result, err := cache.Process(ctx, 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != 25 {
			t.Errorf("expected 25, got %d", result)
		}
		if atomic.LoadInt64(&calls) != 2 {
			t.Errorf("expected recompute after expiry, got %d calls", calls)
		}
		if cache.Metrics().Counter(CacheExpiredTotal).Value() != 1 {
			t.Errorf("expected 1 expiry, got %f", cache.Metrics().Counter(CacheExpiredTotal).Value())
		}
	})

	t.Run("Errors Are Not Cached", func(t *testing.T) {
		var calls int64
		flaky := Apply("flaky", func(_ context.Context, n int) (int, error) {
			if atomic.AddInt64(&calls, 1) == 1 {
				return 0, errors.New("first call fails")
			}
			return n, nil
		})
		cache, _ := NewCache("cache", flaky, time.Minute)
		defer cache.Close()

		if _, err := cache.Process(ctx, 1); err == nil {
			t.Fatal("expected first call to fail")
		}
		result, err := cache.Process(ctx, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != 1 {
			t.Errorf("expected 1, got %d", result)
		}
		if cache.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", cache.Len())
		}
	})

	t.Run("Error Path Includes Cache Name", func(t *testing.T) {
		fail := Apply("fail", func(_ context.Context, _ int) (int, error) {
			return 0, errors.New("nope")
		})
		cache, _ := NewCache("lookup-cache", fail, time.Minute)
		defer cache.Close()

		_, err := cache.Process(ctx, 1)
		var wrapErr *Error[int]
		if !errors.As(err, &wrapErr) {
			t.Fatalf("expected *Error[int], got %T", err)
		}
		if len(wrapErr.Path) != 2 || wrapErr.Path[0] != "lookup-cache" || wrapErr.Path[1] != "fail" {
			t.Errorf("unexpected path %v", wrapErr.Path)
		}
	})

	t.Run("Clear Empties Cache", func(t *testing.T) {
		var calls int64
		cache, _ := NewCache("cache", counting(&calls), time.Minute)
		defer cache.Close()

		_, _ = cache.Process(ctx, 1)
		cache.Clear()
		if cache.Len() != 0 {
			t.Errorf("expected empty cache, got %d", cache.Len())
		}
		_, _ = cache.Process(ctx, 1)
		if atomic.LoadInt64(&calls) != 2 {
			t.Errorf("expected 2 calls after clear, got %d", calls)
		}
	})

	t.Run("SetExpiration Ignores Invalid Values", func(t *testing.T) {
		var calls int64
		cache, _ := NewCache("cache", counting(&calls), time.Minute)
		defer cache.Close()

		cache.SetExpiration(-time.Second)
		if cache.GetExpiration() != time.Minute {
			t.Errorf("expected 1m, got %v", cache.GetExpiration())
		}
		cache.SetExpiration(time.Hour)
		if cache.GetExpiration() != time.Hour {
			t.Errorf("expected 1h, got %v", cache.GetExpiration())
		}
	})

	t.Run("Hooks And Spans", func(t *testing.T) {
		var calls int64
		cache, _ := NewCache("cache", counting(&calls), time.Minute)
		defer cache.Close()

		var hits, misses int32
		_ = cache.OnHit(func(_ context.Context, e CacheEvent) error {
			if e.Hit {
				atomic.AddInt32(&hits, 1)
			}
			return nil
		})
		_ = cache.OnMiss(func(_ context.Context, _ CacheEvent) error {
			atomic.AddInt32(&misses, 1)
			return nil
		})

		var spans []tracez.Span
		var mu sync.Mutex
		cache.Tracer().OnSpanComplete(func(span tracez.Span) {
			mu.Lock()
			spans = append(spans, span)
			mu.Unlock()
		})

		_, _ = cache.Process(ctx, 9)
		_, _ = cache.Process(ctx, 9)

		time.Sleep(50 * time.Millisecond)

		if atomic.LoadInt32(&hits) != 1 || atomic.LoadInt32(&misses) != 1 {
			t.Errorf("expected 1 hit and 1 miss event, got %d and %d", hits, misses)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(spans) != 2 {
			t.Fatalf("expected 2 spans, got %d", len(spans))
		}
		if spans[0].Name != CacheProcessSpan {
			t.Errorf("expected span %s, got %s", CacheProcessSpan, spans[0].Name)
		}
		if spans[1].Tags[CacheTagHit] != "true" {
			t.Errorf("expected second span to be a hit, got %q", spans[1].Tags[CacheTagHit])
		}
	})

	t.Run("Concurrent Access", func(t *testing.T) {
		var calls int64
		cache, _ := NewCache("cache", counting(&calls), time.Minute)
		defer cache.Close()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				result, err := cache.Process(ctx, n%5)
				if err != nil || result != (n%5)*(n%5) {
					t.Errorf("unexpected result %d, %v", result, err)
				}
			}(i)
		}
		wg.Wait()
		if cache.Len() != 5 {
			t.Errorf("expected 5 entries, got %d", cache.Len())
		}
	})
}
