package fanout

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes fan-out errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates a bad mode value, wrong arity or a
	// missing clip bound.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeMissingCapability indicates the host lacks something an
	// operation needs: a QsortIndices method, an attribute, or a setter.
	ErrCodeMissingCapability ErrorCode = "MISSING_CAPABILITY"

	// ErrCodeUnknownMode indicates a pass ran with an unrecognized write mode.
	ErrCodeUnknownMode ErrorCode = "UNKNOWN_MODE"
)

// Error is returned for failures the fan-out machinery itself detects.
// Errors raised by the arrays are returned unchanged, never wrapped in Error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed (e.g. "where", "set_attributes").
	Op string

	// Attr names the attribute involved, if any.
	Attr string

	// Message is a human-readable description.
	Message string
}

func (e *Error) Error() string {
	if e.Attr != "" {
		return fmt.Sprintf("%s: %s: %s (attr=%s)", e.Code, e.Op, e.Message, e.Attr)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

// ErrorCodeOf returns the code of a wrapped *Error, or "" if err is not one.
func ErrorCodeOf(err error) ErrorCode {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsInvalidArgument reports whether err carries ErrCodeInvalidArgument.
func IsInvalidArgument(err error) bool {
	return ErrorCodeOf(err) == ErrCodeInvalidArgument
}

// IsMissingCapability reports whether err carries ErrCodeMissingCapability.
func IsMissingCapability(err error) bool {
	return ErrorCodeOf(err) == ErrCodeMissingCapability
}

// IsUnknownMode reports whether err carries ErrCodeUnknownMode.
func IsUnknownMode(err error) bool {
	return ErrorCodeOf(err) == ErrCodeUnknownMode
}

func invalidArgument(op, attr, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Op: op, Attr: attr, Message: fmt.Sprintf(format, args...)}
}

func missingCapability(op, attr, format string, args ...any) *Error {
	return &Error{Code: ErrCodeMissingCapability, Op: op, Attr: attr, Message: fmt.Sprintf(format, args...)}
}
