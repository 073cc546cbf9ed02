package model

import (
	"math"
	"strings"
	"testing"
)

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateInput_DefaultsColor(t *testing.T) {
	in := NoteInput{Content: "hello", X: 10, Y: 20}
	if err := ValidateInput(&in); err != nil {
		t.Fatalf("ValidateInput: %v", err)
	}
	if in.Color != DefaultColor {
		t.Errorf("Color = %q, want %q", in.Color, DefaultColor)
	}
}

func TestValidateInput_EmptyContentAllowed(t *testing.T) {
	in := NoteInput{Color: ColorPink}
	if err := ValidateInput(&in); err != nil {
		t.Fatalf("ValidateInput: %v", err)
	}
}

func TestValidateInput_InvalidColor(t *testing.T) {
	in := NoteInput{Color: "chartreuse"}
	errs := fieldErrors(t, ValidateInput(&in))
	if !hasFieldError(errs, "color") {
		t.Error("expected error on field 'color'")
	}
}

func TestValidateInput_NonFiniteCoords(t *testing.T) {
	in := NoteInput{X: math.NaN(), Y: math.Inf(1)}
	errs := fieldErrors(t, ValidateInput(&in))
	if !hasFieldError(errs, "x") || !hasFieldError(errs, "y") {
		t.Errorf("expected errors on x and y, got %v", errs)
	}
}

func TestValidateInput_ContentTooLong(t *testing.T) {
	in := NoteInput{Content: strings.Repeat("a", MaxContentLength+1)}
	errs := fieldErrors(t, ValidateInput(&in))
	if !hasFieldError(errs, "content") {
		t.Error("expected error on field 'content'")
	}
}

func TestValidatePatch_OnlySetFields(t *testing.T) {
	if err := ValidatePatch(Move(-5, 3.5)); err != nil {
		t.Fatalf("ValidatePatch: %v", err)
	}
	errs := fieldErrors(t, ValidatePatch(Recolor("nope")))
	if len(errs) != 1 || errs[0].Field != "color" {
		t.Errorf("errors = %v, want one on color", errs)
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{{Field: "x", Message: "bad"}, {Field: "y", Message: "worse"}}}
	want := "validation failed: x: bad; y: worse"
	if ve.Error() != want {
		t.Errorf("Error() = %q, want %q", ve.Error(), want)
	}
}
