// Package utilz provides composable, type-safe function wrappers for Go.
//
// # Overview
//
// utilz wraps ordinary functions with the cross-cutting behaviour that
// usually ends up copy-pasted around a codebase: memoisation with expiry,
// rate limiting, throttling, timeouts, retries, error logging, conditional
// short-circuits, deprecation notices, signature logging, output
// redirection, result serialisation, timing and argument validation.
//
// Every wrapper implements the same interface, so wrappers stack:
//
//	type Chainable[In, Out any] interface {
//	    Process(context.Context, In) (Out, error)
//	    Name() Name
//	}
//
// # Adapting Functions
//
// Apply turns a plain function into a Chainable:
//
//	fetch := utilz.Apply("fetch-user", func(ctx context.Context, id int) (User, error) {
//	    return repo.Find(ctx, id)
//	})
//
// # Wrapping
//
// Wrappers take a Chainable and return a Chainable:
//
//	cached, _ := utilz.NewCache("user-cache", fetch, time.Minute)
//	limited, _ := utilz.NewRateLimit("user-limit", cached, 10, time.Second)
//	guarded, _ := utilz.NewTimeout("user-deadline", limited, 2*time.Second)
//
//	user, err := guarded.Process(ctx, 42)
//
// Constructors that take configuration validate it and return an error
// wrapping ErrInvalidArgument when it is out of range.
//
// # Error Handling
//
// Failures surface as *Error[In], which records the wrapper path, the input,
// when the failure happened and whether it was a timeout or cancellation:
//
//	var wrapErr *utilz.Error[int]
//	if errors.As(err, &wrapErr) {
//	    log.Printf("failed at %s", strings.Join(wrapErr.Path, " -> "))
//	}
//
// Panics inside wrapped functions are recovered and reported the same way,
// with ErrPanic as the cause.
//
// # Observability
//
// Stateful wrappers (Cache, RateLimit, Retry, Timeout, Handle and
// Conditional) carry a metricz registry, a tracez tracer and hookz event
// hooks. Throttle keeps metrics only. Time-based wrappers accept a
// clockz.Clock for deterministic tests.
package utilz

import "context"

// Chainable is implemented by every function wrapper in this package.
// In is the argument type, Out the result type.
type Chainable[In, Out any] interface {
	Process(context.Context, In) (Out, error)
	Name() Name
}

// Name identifies a wrapped function in logs, metrics and error paths.
//
// Example:
//
//	const (
//	    FetchUserName Name = "fetch-user"
//	    SaveUserName  Name = "save-user"
//	)
type Name = string

// Func is the plain function shape accepted by Apply.
type Func[In, Out any] func(context.Context, In) (Out, error)

// Processor is a named function. It is the leaf of every wrapper stack.
type Processor[In, Out any] struct {
	fn   Func[In, Out]
	name Name
}

// Apply wraps fn as a Chainable with the given name.
//
// Errors returned by fn are wrapped in *Error[In] with the processor's name
// as the path, and panics are recovered.
func Apply[In, Out any](name Name, fn Func[In, Out]) Processor[In, Out] {
	return Processor[In, Out]{name: name, fn: fn}
}

// Process implements Chainable.
func (p Processor[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, p.name, in)
	result, err = p.fn(ctx, in)
	if err != nil {
		return result, wrapError(err, p.name, in)
	}
	return result, nil
}

// Name returns the processor name.
func (p Processor[In, Out]) Name() Name {
	return p.name
}
