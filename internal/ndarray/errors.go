package ndarray

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when operand shapes are not compatible.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrNotOwner is returned by AssignFrom on a view.
	ErrNotOwner = errors.New("cannot resize an array that does not own its data")

	// ErrStaleView is returned when a view reads past the end of a buffer
	// that was shrunk by AssignFrom.
	ErrStaleView = errors.New("view refers to storage that no longer exists")

	// ErrInvalidSlice is returned for slices with a negative step.
	ErrInvalidSlice = errors.New("invalid slice")

	// ErrTooManyIndices is returned when more indices than dimensions are given.
	ErrTooManyIndices = errors.New("too many indices for array")
)

// IndexError reports an out-of-range index along one axis.
type IndexError struct {
	Index int
	Axis  int
	Size  int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d is out of bounds for axis %d with size %d", e.Index, e.Axis, e.Size)
}

// IsIndexError reports whether err is or wraps an *IndexError.
func IsIndexError(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}
