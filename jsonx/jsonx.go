// Package jsonx encodes and decodes JSON. Dump and Load report errors, while
// SafeDump and SafeLoad return a caller-supplied fallback instead. Load can
// repair malformed input with jsonrepair, and Query evaluates JSONPath
// expressions against decoded documents.
package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/kaptinlin/jsonrepair"
)

var (
	// ErrInvalidJSON is wrapped when data cannot be decoded.
	ErrInvalidJSON = errors.New("invalid json")
	// ErrQuery is wrapped when a JSONPath expression fails.
	ErrQuery = errors.New("jsonpath query failed")
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type options struct {
	repair bool
	logger *slog.Logger
}

// Option configures SafeLoad and Load.
type Option func(*options)

// WithRepair retries malformed input after running it through jsonrepair,
// which fixes unquoted keys, trailing commas, single quotes and truncation.
func WithRepair() Option {
	return func(o *options) { o.repair = true }
}

// WithLogger logs why a fallback was returned at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func apply(opts []Option) options {
	o := options{logger: discard}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Dump encodes v without escaping HTML characters.
func Dump(v any, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// SafeDump returns the JSON encoding of v, or fallback when v cannot be
// encoded (channels, functions, NaN, cyclic values, failing marshalers).
func SafeDump(v any, fallback string) string {
	s, err := Dump(v, "")
	if err != nil {
		return fallback
	}
	return s
}

// Load decodes data into a T. With WithRepair a malformed document is
// repaired and decoded again before Load gives up.
func Load[T any](data string, opts ...Option) (T, error) {
	o := apply(opts)
	var out T
	if strings.TrimSpace(data) == "" {
		return out, fmt.Errorf("%w: empty input", ErrInvalidJSON)
	}
	err := json.Unmarshal([]byte(data), &out)
	if err == nil {
		return out, nil
	}
	if !o.repair {
		return out, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	repaired, repairErr := jsonrepair.JSONRepair(data)
	if repairErr != nil {
		return out, fmt.Errorf("%w: %v (repair failed: %v)", ErrInvalidJSON, err, repairErr)
	}
	o.logger.Debug("repaired malformed json", "error", err, "repaired", repaired)
	var fixed T
	if err := json.Unmarshal([]byte(repaired), &fixed); err != nil {
		return out, fmt.Errorf("%w: repaired document: %v", ErrInvalidJSON, err)
	}
	return fixed, nil
}

// SafeLoad is Load returning fallback instead of an error.
func SafeLoad[T any](data string, fallback T, opts ...Option) T {
	v, err := Load[T](data, opts...)
	if err != nil {
		apply(opts).logger.Debug("json load fell back", "error", err)
		return fallback
	}
	return v
}

// Query evaluates a JSONPath expression against a decoded document such as
// the result of Load[any].
func Query(doc any, expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrQuery)
	}
	v, err := jsonpath.Get(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrQuery, expr, err)
	}
	return v, nil
}

// QueryString decodes data and evaluates expr against it.
func QueryString(data, expr string, opts ...Option) (any, error) {
	doc, err := Load[any](data, opts...)
	if err != nil {
		return nil, err
	}
	return Query(doc, expr)
}
