// Package validation checks documents against JSON Schema, optionally
// filling in schema defaults first.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidSchema is wrapped when the schema or the document cannot be
// loaded.
var ErrInvalidSchema = errors.New("invalid schema")

// Options controls ValidateSchema. A nil *Options uses the zero value.
type Options struct {
	// AllowUnknown accepts properties an object schema does not declare.
	// Schemas that set additionalProperties themselves are left alone.
	AllowUnknown bool
	// Normalize copies "default" values into the document for absent
	// properties before validating.
	Normalize bool
	// ParamName names the document in error messages. Defaults to "data".
	ParamName string
}

// FieldError is a single schema violation.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Param  string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s validation failed: %s", e.Param, strings.Join(parts, "; "))
}

// ValidateSchema validates data against schema and returns the validated
// document, a copy of data with defaults applied when opts.Normalize is
// set. data is never modified.
func ValidateSchema(data, schema map[string]any, opts *Options) (map[string]any, error) {
	if opts == nil {
		opts = &Options{}
	}
	param := opts.ParamName
	if param == "" {
		param = "data"
	}
	if data == nil {
		data = map[string]any{}
	}
	if schema == nil {
		schema = map[string]any{}
	}

	doc := clone(data).(map[string]any)
	if opts.Normalize {
		applyDefaults(doc, schema)
	}
	effective := schema
	if !opts.AllowUnknown {
		effective = closeObjects(clone(schema)).(map[string]any)
	}

	if err := check(gojsonschema.NewGoLoader(effective), gojsonschema.NewGoLoader(doc), param); err != nil {
		return nil, err
	}
	return doc, nil
}

// ValidateJSON validates a JSON document against a JSON schema, both given
// as raw bytes.
func ValidateJSON(doc, schema []byte) error {
	return check(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(doc), "document")
}

func check(schema, doc gojsonschema.JSONLoader, param string) error {
	result, err := gojsonschema.Validate(schema, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{Param: param}
	for _, desc := range result.Errors() {
		verr.Fields = append(verr.Fields, FieldError{Field: desc.Field(), Message: desc.Description()})
	}
	return verr
}

func applyDefaults(doc map[string]any, schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	for name, raw := range props {
		sub, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		v, present := doc[name]
		if !present {
			if def, ok := sub["default"]; ok {
				doc[name] = clone(def)
			}
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			applyDefaults(t, sub)
		case []any:
			if items, ok := sub["items"].(map[string]any); ok {
				for _, e := range t {
					if m, ok := e.(map[string]any); ok {
						applyDefaults(m, items)
					}
				}
			}
		}
	}
}

// closeObjects sets additionalProperties to false on every object schema
// that declares properties without saying otherwise.
func closeObjects(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if _, ok := t["properties"]; ok {
			if _, set := t["additionalProperties"]; !set {
				t["additionalProperties"] = false
			}
		}
		for k, e := range t {
			if k == "enum" || k == "const" || k == "default" || k == "examples" {
				continue
			}
			t[k] = closeObjects(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = closeObjects(e)
		}
		return t
	default:
		return v
	}
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}
