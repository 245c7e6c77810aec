package numbering

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCode reports a code with the wrong length or a character
	// outside the active alphabet.
	ErrMalformedCode = errors.New("malformed code")

	// ErrInvalidSequence reports a sequence argument outside the digit range.
	ErrInvalidSequence = errors.New("invalid sequence")
)

// CodeError describes why a code string was rejected.
type CodeError struct {
	Code   string
	Reason string
}

// NewCodeError creates a new code error.
func NewCodeError(code, reason string) *CodeError {
	return &CodeError{Code: code, Reason: reason}
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("malformed code %q: %s", e.Code, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedCode.
func (e *CodeError) Unwrap() error { return ErrMalformedCode }

// SequenceError describes a sequence argument outside [0, Max].
type SequenceError struct {
	Sequence int
	Max      int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("invalid sequence %d: must be between 0 and %d", e.Sequence, e.Max)
}

// Unwrap lets errors.Is match ErrInvalidSequence.
func (e *SequenceError) Unwrap() error { return ErrInvalidSequence }
