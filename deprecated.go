package utilz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Deprecated marks the wrapped function as deprecated.
//
// With a logger set, every call logs "Call to deprecated function NAME." at
// warn level. Without one, a single "NAME is deprecated." notice is written
// to the output (stderr by default) the first time the function is called.
// The call itself always goes through unchanged.
type Deprecated[In, Out any] struct {
	processor Chainable[In, Out]
	logger    *slog.Logger
	output    io.Writer
	name      Name
	once      sync.Once
	mu        sync.RWMutex
}

// NewDeprecated wraps processor with a deprecation notice.
func NewDeprecated[In, Out any](name Name, processor Chainable[In, Out]) *Deprecated[In, Out] {
	return &Deprecated[In, Out]{
		name:      name,
		processor: processor,
		output:    os.Stderr,
	}
}

// Process implements Chainable.
func (d *Deprecated[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, d.name, in)

	d.mu.RLock()
	processor := d.processor
	logger := d.logger
	output := d.output
	d.mu.RUnlock()

	if logger != nil {
		logger.WarnContext(ctx, fmt.Sprintf("Call to deprecated function %s.", processor.Name()))
	} else {
		d.once.Do(func() {
			fmt.Fprintf(output, "%s is deprecated.\n", processor.Name())
		})
	}

	result, err = processor.Process(ctx, in)
	if err != nil {
		return result, wrapError(err, d.name, in)
	}
	return result, nil
}

// SetLogger sets the logger that records each deprecated call.
func (d *Deprecated[In, Out]) SetLogger(logger *slog.Logger) *Deprecated[In, Out] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = logger
	return d
}

// SetOutput sets where the one-time notice goes when no logger is set.
func (d *Deprecated[In, Out]) SetOutput(w io.Writer) *Deprecated[In, Out] {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output = w
	return d
}

// Name returns the name of this wrapper.
func (d *Deprecated[In, Out]) Name() Name {
	return d.name
}
