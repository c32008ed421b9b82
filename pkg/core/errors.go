package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedFormula is returned when a formula string cannot be parsed.
	ErrMalformedFormula = errors.New("malformed formula")
	// ErrInvalidComposition is returned when a composition holds a negative count.
	ErrInvalidComposition = errors.New("invalid composition")
)

// FormulaError describes where and why a formula failed to parse.
type FormulaError struct {
	Formula string
	Offset  int
	Reason  string
	Err     error // Underlying cause, e.g. an unknown element
}

func (e *FormulaError) Error() string {
	return fmt.Sprintf("malformed formula %q at offset %d: %s", e.Formula, e.Offset, e.Reason)
}

// Is reports whether target is ErrMalformedFormula.
func (e *FormulaError) Is(target error) bool {
	return target == ErrMalformedFormula
}

func (e *FormulaError) Unwrap() error {
	return e.Err
}

// ValidationError represents an error found during envelope validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}
