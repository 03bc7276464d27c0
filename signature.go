package utilz

import (
	"context"
	"fmt"
	"log/slog"
)

// Signature logs every call to the wrapped function with its argument, and
// logs failures.
//
// Before the call: "Executing NAME with args: <in>" at debug level.
// On failure: "Exception occurred in NAME: err" at error level.
type Signature[In, Out any] struct {
	processor Chainable[In, Out]
	logger    *slog.Logger
	name      Name
}

// NewSignature wraps processor. The logger is required.
func NewSignature[In, Out any](name Name, processor Chainable[In, Out], logger *slog.Logger) (*Signature[In, Out], error) {
	if logger == nil {
		return nil, invalidArgument("logger must be an instance of slog.Logger")
	}
	return &Signature[In, Out]{name: name, processor: processor, logger: logger}, nil
}

// Process implements Chainable.
func (s *Signature[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, s.name, in)

	fn := s.processor.Name()
	s.logger.DebugContext(ctx, fmt.Sprintf("Executing %s with args: %+v", fn, in))

	result, err = s.processor.Process(ctx, in)
	if err != nil {
		s.logger.ErrorContext(ctx, fmt.Sprintf("Exception occurred in %s: %v", fn, causeOf[In](err)))
		return result, wrapError(err, s.name, in)
	}
	return result, nil
}

// Name returns the name of this wrapper.
func (s *Signature[In, Out]) Name() Name {
	return s.name
}
