package utilz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zoobzio/clockz"
)

// Timing reports how long each call to the wrapped function took, as
// "NAME executed in X seconds". The report goes to the logger at info level
// when one is set and to stdout otherwise. Failed calls are reported too.
type Timing[In, Out any] struct {
	processor Chainable[In, Out]
	logger    *slog.Logger
	output    io.Writer
	clock     clockz.Clock
	name      Name
}

// NewTiming wraps processor.
func NewTiming[In, Out any](name Name, processor Chainable[In, Out]) *Timing[In, Out] {
	return &Timing[In, Out]{name: name, processor: processor}
}

// SetLogger routes reports to logger.
func (t *Timing[In, Out]) SetLogger(logger *slog.Logger) *Timing[In, Out] {
	t.logger = logger
	return t
}

// SetOutput routes reports to w when no logger is set. Defaults to os.Stdout
// as seen at call time.
func (t *Timing[In, Out]) SetOutput(w io.Writer) *Timing[In, Out] {
	t.output = w
	return t
}

// WithClock sets a custom clock for testing.
func (t *Timing[In, Out]) WithClock(clock clockz.Clock) *Timing[In, Out] {
	t.clock = clock
	return t
}

func (t *Timing[In, Out]) getClock() clockz.Clock {
	if t.clock == nil {
		return clockz.RealClock
	}
	return t.clock
}

// Process implements Chainable.
func (t *Timing[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, t.name, in)

	clock := t.getClock()
	start := clock.Now()
	result, err = t.processor.Process(ctx, in)
	elapsed := clock.Since(start)

	msg := fmt.Sprintf("%s executed in %.4f seconds", t.processor.Name(), elapsed.Seconds())
	switch {
	case t.logger != nil:
		t.logger.InfoContext(ctx, msg)
	case t.output != nil:
		fmt.Fprintln(t.output, msg)
	default:
		fmt.Fprintln(os.Stdout, msg)
	}

	if err != nil {
		return result, wrapError(err, t.name, in)
	}
	return result, nil
}

// Name returns the name of this wrapper.
func (t *Timing[In, Out]) Name() Name {
	return t.name
}
