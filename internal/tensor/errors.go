package tensor

import (
	"errors"
	"fmt"
)

// Error categories shared by every engine package.
//
// Callers match on the category with errors.Is; the wrapped message
// carries the operation and the offending values.
var (
	ErrShape   = errors.New("shape error")
	ErrIndex   = errors.New("index error")
	ErrState   = errors.New("state error")
	ErrNumeric = errors.New("numeric error")
)

// ShapeErrorf returns an error wrapping ErrShape.
func ShapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}

// IndexErrorf returns an error wrapping ErrIndex.
func IndexErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIndex, fmt.Sprintf(format, args...))
}

// StateErrorf returns an error wrapping ErrState.
func StateErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

// NumericErrorf returns an error wrapping ErrNumeric.
func NumericErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNumeric, fmt.Sprintf(format, args...))
}

// CheckShape returns a shape error when got differs from want.
func CheckShape(op, name string, got, want Shape) error {
	if !got.Equal(want) {
		return ShapeErrorf("%s: %s shape %v, expected %v", op, name, got, want)
	}
	return nil
}
