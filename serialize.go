package utilz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"
)

// Supported Serialize formats.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// Encode serializes value in the given format.
func Encode[T any](format string, value T) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.Marshal(value)
	case FormatMsgpack:
		return msgpack.Marshal(value)
	default:
		return nil, unsupportedFormat()
	}
}

// Decode deserializes data produced by Encode.
func Decode[T any](format string, data []byte) (T, error) {
	var value T
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &value)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &value)
	default:
		err = unsupportedFormat()
	}
	return value, err
}

func unsupportedFormat() error {
	return invalidArgument("Unsupported format. Currently, only 'json' and 'msgpack' are supported.")
}

// Serialize encodes the result of the wrapped function.
//
// It turns a Chainable[In, Out] into a Chainable[In, []byte]. When the
// wrapped function or the encoder fails and a logger is set, the failure is
// logged as "Error serializing output in NAME: err". The error is returned
// either way.
type Serialize[In, Out any] struct {
	processor Chainable[In, Out]
	logger    *slog.Logger
	name      Name
	format    string
}

// NewSerialize wraps processor. format must be FormatJSON or FormatMsgpack.
func NewSerialize[In, Out any](name Name, processor Chainable[In, Out], format string) (*Serialize[In, Out], error) {
	if format != FormatJSON && format != FormatMsgpack {
		return nil, unsupportedFormat()
	}
	return &Serialize[In, Out]{name: name, processor: processor, format: format}, nil
}

// SetLogger sets the logger for failures. It is not safe to call
// concurrently with Process.
func (s *Serialize[In, Out]) SetLogger(logger *slog.Logger) *Serialize[In, Out] {
	s.logger = logger
	return s
}

// Process implements Chainable.
func (s *Serialize[In, Out]) Process(ctx context.Context, in In) (result []byte, err error) {
	defer recoverFromPanic(&result, &err, s.name, in)

	value, err := s.processor.Process(ctx, in)
	if err != nil {
		s.logFailure(ctx, causeOf[In](err))
		return nil, wrapError(err, s.name, in)
	}

	data, err := Encode(s.format, value)
	if err != nil {
		s.logFailure(ctx, err)
		return nil, wrapError(err, s.name, in)
	}
	return data, nil
}

func (s *Serialize[In, Out]) logFailure(ctx context.Context, err error) {
	if s.logger == nil {
		return
	}
	s.logger.ErrorContext(ctx, fmt.Sprintf("Error serializing output in %s: %v", s.processor.Name(), err))
}

// Format returns the configured format.
func (s *Serialize[In, Out]) Format() string {
	return s.format
}

// Name returns the name of this wrapper.
func (s *Serialize[In, Out]) Name() Name {
	return s.name
}
