package utilz

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// stdoutMu serialises every Redirect in the process, since os.Stdout is a
// single global.
var stdoutMu sync.Mutex

// redirectHeldKey marks a context whose call chain already holds stdoutMu.
type redirectHeldKey struct{}

// Redirect sends everything the wrapped function writes to os.Stdout into a
// file for the duration of the call.
//
// The file is truncated on every call unless SetAppend(true) is used. Parent
// directories are created. Because os.Stdout is process-wide, concurrent
// calls to any Redirect are serialised.
//
// Redirects may be nested: an inner Redirect reached through the context
// passed to the outer one's function sends its output to its own file and
// hands stdout back to the outer file when it returns. An inner Redirect
// called with a context that does not derive from the outer one blocks
// until the outer call finishes.
type Redirect[In, Out any] struct {
	processor Chainable[In, Out]
	logger    *slog.Logger
	name      Name
	path      string
	appendOut bool
	mu        sync.RWMutex
}

// NewRedirect wraps processor so its stdout goes to path.
func NewRedirect[In, Out any](name Name, processor Chainable[In, Out], path string) (*Redirect[In, Out], error) {
	if path == "" {
		return nil, invalidArgument("file_path must be a string")
	}
	return &Redirect[In, Out]{name: name, processor: processor, path: path}, nil
}

// Process implements Chainable.
func (r *Redirect[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, r.name, in)

	r.mu.RLock()
	processor := r.processor
	logger := r.logger
	path := r.path
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if r.appendOut {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	r.mu.RUnlock()

	f, err := openOutput(path, flags)
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "Failed to redirect output", "path", path, "error", err)
		}
		return result, wrapError(fmt.Errorf("Failed to redirect output: %w", err), r.name, in) //nolint:stylecheck
	}
	defer f.Close()

	if ctx.Value(redirectHeldKey{}) == nil {
		stdoutMu.Lock()
		defer stdoutMu.Unlock()
		ctx = context.WithValue(ctx, redirectHeldKey{}, true)
	}
	original := os.Stdout
	os.Stdout = f
	defer func() { os.Stdout = original }()

	result, err = processor.Process(ctx, in)
	if err != nil {
		return result, wrapError(err, r.name, in)
	}
	return result, nil
}

func openOutput(path string, flags int) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, flags, 0o644)
}

// SetAppend switches between truncating (default) and appending.
func (r *Redirect[In, Out]) SetAppend(appendOut bool) *Redirect[In, Out] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendOut = appendOut
	return r
}

// SetLogger sets the logger that records redirect failures.
func (r *Redirect[In, Out]) SetLogger(logger *slog.Logger) *Redirect[In, Out] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
	return r
}

// Name returns the name of this wrapper.
func (r *Redirect[In, Out]) Name() Name {
	return r.name
}
