package engine

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for work submitted to a closed engine.
var ErrClosed = errors.New("engine closed")

// ErrNoConnection is returned by EndConnect when no connect gesture is in
// progress.
var ErrNoConnection = errors.New("no connection in progress")

// RejectError describes a gesture that was refused without mutating the
// domain model.
type RejectError struct {
	// Code identifies the rejection category.
	Code RejectCode

	// Message is a human-readable description suitable for a warning toast.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// RejectCode categorizes rejected gestures.
type RejectCode string

const (
	// CodeMissingField indicates a connect endpoint did not resolve to a field.
	CodeMissingField RejectCode = "MISSING_FIELD"

	// CodeIncompatibleTypes indicates the type-compatibility predicate
	// refused the field pair.
	CodeIncompatibleTypes RejectCode = "INCOMPATIBLE_TYPES"

	// CodeSelfDependency indicates a table was connected to itself with a
	// dependency handle.
	CodeSelfDependency RejectCode = "SELF_DEPENDENCY"

	// CodeDuplicateDependency indicates the dependency already exists.
	CodeDuplicateDependency RejectCode = "DUPLICATE_DEPENDENCY"

	// CodeUnknownEndpoint indicates a connect endpoint table does not exist.
	CodeUnknownEndpoint RejectCode = "UNKNOWN_ENDPOINT"
)

// Error implements the error interface.
func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRejected reports whether err is a RejectError.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

// RejectCodeOf returns the code of a wrapped RejectError, or "".
func RejectCodeOf(err error) RejectCode {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func newMissingField(tableID, fieldID string) *RejectError {
	return &RejectError{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("field %q not found on table %q", fieldID, tableID),
		Details: map[string]string{"table": tableID, "field": fieldID},
	}
}

func newIncompatibleTypes(src, tgt, dialect string) *RejectError {
	return &RejectError{
		Code:    CodeIncompatibleTypes,
		Message: fmt.Sprintf("cannot relate %s to %s", src, tgt),
		Details: map[string]string{"source_type": src, "target_type": tgt, "dialect": dialect},
	}
}

func newUnknownEndpoint(id string) *RejectError {
	return &RejectError{
		Code:    CodeUnknownEndpoint,
		Message: fmt.Sprintf("table %q not found", id),
		Details: map[string]string{"table": id},
	}
}
