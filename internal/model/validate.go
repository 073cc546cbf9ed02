package model

import (
	"fmt"
	"math"
	"strings"
)

// MaxContentLength is the maximum note content length in runes.
const MaxContentLength = 10000

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateInput checks a NoteInput, filling in the default color when none is
// given. It returns a *ValidationError if any rules fail.
func ValidateInput(in *NoteInput) error {
	var ve ValidationError

	if in.Color == "" {
		in.Color = DefaultColor
	}
	checkContent(&ve, in.Content)
	checkCoord(&ve, "x", in.X)
	checkCoord(&ve, "y", in.Y)
	checkColor(&ve, in.Color)

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidatePatch checks the set fields of a NotePatch.
func ValidatePatch(p NotePatch) error {
	var ve ValidationError

	if p.Content != nil {
		checkContent(&ve, *p.Content)
	}
	if p.X != nil {
		checkCoord(&ve, "x", *p.X)
	}
	if p.Y != nil {
		checkCoord(&ve, "y", *p.Y)
	}
	if p.Color != nil {
		checkColor(&ve, *p.Color)
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func checkContent(ve *ValidationError, content string) {
	if n := len([]rune(content)); n > MaxContentLength {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "content",
			Message: fmt.Sprintf("must be %d characters or fewer, got %d", MaxContentLength, n),
		})
	}
}

func checkCoord(ve *ValidationError, field string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: "must be a finite number"})
	}
}

func checkColor(ve *ValidationError, c Color) {
	if !c.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "color",
			Message: fmt.Sprintf("invalid value %q", c),
		})
	}
}
