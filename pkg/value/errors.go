package value

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch matches every *TypeMismatchError.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnknownVerdict matches every *UnknownVerdictError.
	ErrUnknownVerdict = errors.New("unknown verdict")
)

// TypeMismatchError is returned when a value is read as a kind it does not hold.
type TypeMismatchError struct {
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// UnknownVerdictError is returned when a verdict ordinal or name is outside
// the closed verdict set.
type UnknownVerdictError struct {
	Ordinal int32
	Name    string // set when decoding from text
}

func (e *UnknownVerdictError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown verdict %q", e.Name)
	}
	return fmt.Sprintf("unknown verdict ordinal %d", e.Ordinal)
}

func (e *UnknownVerdictError) Is(target error) bool { return target == ErrUnknownVerdict }
