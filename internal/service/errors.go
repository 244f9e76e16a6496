// Package service holds the reservation write path and the availability
// query path that sit between the HTTP handlers and the store.
package service

import (
	"strings"

	"github.com/iliyamo/table-reservations/internal/validation"
)

// ValidationError reports rejected input field by field. Nothing is
// persisted when it is returned.
type ValidationError struct {
	Fields []validation.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []validation.FieldError{{Field: field, Message: message}}}
}
