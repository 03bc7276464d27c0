package utilz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrValidation is matched by every argument validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError reports that a Validate predicate rejected an input.
type ValidationError struct {
	Name Name
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Function %s arguments did not pass validation.", e.Name)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate rejects inputs for which the predicate returns false, without
// calling the wrapped function.
type Validate[In, Out any] struct {
	processor Chainable[In, Out]
	validate  func(In) bool
	logger    *slog.Logger
	name      Name
}

// NewValidate wraps processor with validate. A nil validate is rejected.
func NewValidate[In, Out any](name Name, processor Chainable[In, Out], validate func(In) bool) (*Validate[In, Out], error) {
	if validate == nil {
		return nil, invalidArgument("validation_func must be callable")
	}
	return &Validate[In, Out]{name: name, processor: processor, validate: validate}, nil
}

// SetLogger sets a logger that records rejected inputs.
func (v *Validate[In, Out]) SetLogger(logger *slog.Logger) *Validate[In, Out] {
	v.logger = logger
	return v
}

// Process implements Chainable.
func (v *Validate[In, Out]) Process(ctx context.Context, in In) (result Out, err error) {
	defer recoverFromPanic(&result, &err, v.name, in)

	if !v.validate(in) {
		verr := &ValidationError{Name: v.processor.Name()}
		if v.logger != nil {
			v.logger.ErrorContext(ctx, verr.Error())
		}
		return result, wrapError(verr, v.name, in)
	}

	result, err = v.processor.Process(ctx, in)
	if err != nil {
		return result, wrapError(err, v.name, in)
	}
	return result, nil
}

// Name returns the name of this wrapper.
func (v *Validate[In, Out]) Name() Name {
	return v.name
}
