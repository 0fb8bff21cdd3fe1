// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BudgetBook Contributors

// Package validation checks request bodies against JSON Schemas reflected
// from Go request types and reports failures per field.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"github.com/samber/oops"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BodyField is the field name reported for problems with the body as a whole.
const BodyField = "body"

const schemaBaseURL = "https://budgetbook.dev/schemas/"

var printer = message.NewPrinter(language.English)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is either a decoded Value or a non-empty list of Errors.
type Result[T any] struct {
	Value  T
	Errors []FieldError
}

// OK reports whether decoding succeeded.
func (r Result[T]) OK() bool {
	return len(r.Errors) == 0
}

func failed[T any](errs ...FieldError) Result[T] {
	return Result[T]{Errors: errs}
}

// Schema validates and decodes JSON documents into T.
// It is safe for concurrent use.
type Schema[T any] struct {
	name     string
	document []byte
	compiled *jschema.Schema
}

// NewSchema reflects T into a JSON Schema named name and compiles it with
// format assertions enabled.
func NewSchema[T any](name, title string) (*Schema[T], error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	var zero T
	reflected := r.Reflect(&zero)
	reflected.ID = jsonschema.ID(schemaBaseURL + name + ".schema.json")
	reflected.Title = title

	document, err := json.MarshalIndent(reflected, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", name).Wrap(err)
	}

	parsed, err := jschema.UnmarshalJSON(bytes.NewReader(document))
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", name).Wrap(err)
	}

	c := jschema.NewCompiler()
	c.AssertFormat()
	url := string(reflected.ID)
	if err := c.AddResource(url, parsed); err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
	}

	return &Schema[T]{name: name, document: document, compiled: compiled}, nil
}

// Name returns the schema name.
func (s *Schema[T]) Name() string {
	return s.name
}

// Document returns the indented JSON Schema document.
func (s *Schema[T]) Document() []byte {
	return slices.Clone(s.document)
}

// Decode validates data and, if it conforms, unmarshals it into T.
func (s *Schema[T]) Decode(data []byte) Result[T] {
	if len(bytes.TrimSpace(data)) == 0 {
		return failed[T](FieldError{Field: BodyField, Message: "Request body is required"})
	}

	instance, err := jschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return failed[T](FieldError{Field: BodyField, Message: "Malformed JSON"})
	}

	if err := s.compiled.Validate(instance); err != nil {
		var verr *jschema.ValidationError
		if !errors.As(err, &verr) {
			return failed[T](FieldError{Field: BodyField, Message: err.Error()})
		}
		return failed[T](fieldErrors(verr)...)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return failed[T](FieldError{Field: BodyField, Message: "Malformed JSON"})
	}
	return Result[T]{Value: value}
}

// fieldErrors flattens the leaves of a validation error tree, sorted by field
// and message with duplicates removed.
func fieldErrors(root *jschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(*jschema.ValidationError)
	walk = func(e *jschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}
		out = append(out, describe(e)...)
	}
	walk(root)

	slices.SortStableFunc(out, func(a, b FieldError) int {
		if c := strings.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return strings.Compare(a.Message, b.Message)
	})
	return slices.Compact(out)
}

func describe(e *jschema.ValidationError) []FieldError {
	field := fieldName(e.InstanceLocation)

	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		errs := make([]FieldError, 0, len(k.Missing))
		for _, missing := range k.Missing {
			errs = append(errs, FieldError{
				Field:   fieldName(append(slices.Clone(e.InstanceLocation), missing)),
				Message: "Required",
			})
		}
		return errs
	case *kind.Type:
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("Expected %s, received %s", strings.Join(k.Want, " or "), k.Got),
		}}
	case *kind.MinLength:
		return []FieldError{{Field: field, Message: fmt.Sprintf("Must be at least %d characters", k.Want)}}
	case *kind.MaxLength:
		return []FieldError{{Field: field, Message: fmt.Sprintf("Must be at most %d characters", k.Want)}}
	case *kind.Pattern:
		return []FieldError{{Field: field, Message: "Invalid " + field}}
	case *kind.Format:
		if k.Want == "email" {
			return []FieldError{{Field: field, Message: "Invalid email"}}
		}
		return []FieldError{{Field: field, Message: "Invalid " + k.Want}}
	default:
		return []FieldError{{Field: field, Message: e.ErrorKind.LocalizedString(printer)}}
	}
}

func fieldName(location []string) string {
	if len(location) == 0 {
		return BodyField
	}
	return strings.Join(location, ".")
}
