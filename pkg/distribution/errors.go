package distribution

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTruncation is returned when fewer than one peak is requested.
	ErrInvalidTruncation = errors.New("invalid truncation")
	// ErrEmptyComposition is returned for a composition with no atoms.
	ErrEmptyComposition = errors.New("empty composition")
	// ErrNumericInstability is returned when the recurrence yields a
	// non-physical distribution.
	ErrNumericInstability = errors.New("numeric instability")
)

// InstabilityError describes the level at which the distribution became
// non-physical.
type InstabilityError struct {
	Offset int
	Value  float64
	Reason string
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("numeric instability at offset %d (value %g): %s", e.Offset, e.Value, e.Reason)
}

// Is reports whether target is ErrNumericInstability.
func (e *InstabilityError) Is(target error) bool {
	return target == ErrNumericInstability
}
