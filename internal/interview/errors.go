package interview

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a required answer or name is blank.
	ErrEmptyInput = errors.New("input must not be blank")

	// ErrInvalidTransition is returned when an operation is not allowed in the current phase.
	ErrInvalidTransition = errors.New("invalid interview transition")
)

// TransitionError describes a rejected engine operation.
type TransitionError struct {
	Op     string
	Phase  Phase
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s not allowed while %s: %s", e.Op, e.Phase, e.Reason)
	}
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.Phase)
}

// Is reports whether target is ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
