package utilz

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestTiming(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes Report To Output", func(t *testing.T) {
		var out bytes.Buffer
		quick := Apply("sample_function", func(_ context.Context, s string) (string, error) { return s, nil })
		timing := NewTiming("timing", quick).SetOutput(&out)

		result, err := timing.Process(ctx, "Function executed")
		if err != nil || result != "Function executed" {
			t.Fatalf("unexpected result %q, %v", result, err)
		}
		if !strings.Contains(out.String(), "sample_function executed in") {
			t.Errorf("unexpected report %q", out.String())
		}
	})

	t.Run("Uses Logger And Clock", func(t *testing.T) {
		var buf bytes.Buffer
		clock := clockz.NewFakeClock()
		slow := Apply("slow", func(_ context.Context, s string) (string, error) {
			clock.Advance(1500 * time.Millisecond)
			return s, nil
		})
		timing := NewTiming("timing", slow).SetLogger(newTestLogger(&buf)).WithClock(clock)

		_, _ = timing.Process(ctx, "x")
		if !strings.Contains(buf.String(), "slow executed in 1.5000 seconds") {
			t.Errorf("unexpected log %q", buf.String())
		}
	})

	t.Run("Reports Failed Calls", func(t *testing.T) {
		var out bytes.Buffer
		fail := Apply("fail", func(_ context.Context, _ string) (string, error) { return "", errors.New("nope") })
		timing := NewTiming("timing", fail).SetOutput(&out)

		if _, err := timing.Process(ctx, "x"); err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(out.String(), "fail executed in") {
			t.Errorf("unexpected report %q", out.String())
		}
	})
}
