package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoSnapshot = errors.New("no snapshot")
	ErrLockHeld   = errors.New("lock already held")
	ErrNotFound   = errors.New("object not found")
)

// ValidationError reports a required field that is missing or carries the
// wrong JSON type in an input document. Path addresses the offending field
// inside the document, e.g. "markets[3].id".
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Path, e.Reason)
}

// SchemaError reports a document that does not conform to one of the four
// pipeline shapes, e.g. an analysis block missing a factor key.
type SchemaError struct {
	Doc    string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Doc == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: %s: %s", e.Doc, e.Reason)
}

// WireError normalizes encoding/json failures into the pipeline taxonomy:
// type mismatches become ValidationErrors, anything that keeps the document
// from matching its shape becomes a SchemaError. Errors already belonging to
// the taxonomy pass through unchanged.
func WireError(doc string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return se
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		path := typeErr.Field
		if path == "" {
			path = typeErr.Struct
		}
		return &ValidationError{
			Path:   path,
			Reason: fmt.Sprintf("cannot decode %s as %s", typeErr.Value, typeErr.Type),
		}
	}
	var synErr *json.SyntaxError
	if errors.As(err, &synErr) {
		return &SchemaError{Doc: doc, Reason: fmt.Sprintf("invalid JSON at offset %d", synErr.Offset)}
	}
	// DisallowUnknownFields failures carry no dedicated type.
	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return &SchemaError{Doc: doc, Reason: strings.TrimPrefix(err.Error(), "json: ")}
	}
	return &ValidationError{Reason: err.Error()}
}
