// Package errors provides the error taxonomy shared by Vizier components.
//
// Validation errors are raised synchronously before anything is persisted
// and carry a machine-readable code. Reference errors (unknown viztrail,
// branch, workflow or module) are reported by the repository as nil results;
// lower layers signal them with ErrNotFound. Execution errors never surface
// here: they are captured into a module's error output.
package errors

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Validation error codes.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeUnknownModule   = "UNKNOWN_MODULE"
	CodeSchemaViolation = "SCHEMA_VIOLATION"
	CodeInvalidName     = "INVALID_NAME"
	CodeOutOfRange      = "OUT_OF_RANGE"
	CodeDuplicateName   = "DUPLICATE_NAME"
	CodeUnknownDataset  = "UNKNOWN_DATASET"
	CodeUnknownColumn   = "UNKNOWN_COLUMN"
	CodeDefaultBranch   = "DEFAULT_BRANCH"
	CodeEmptyWorkflow   = "EMPTY_WORKFLOW"
)

// Sentinels usable as errors.Is targets. Matching compares codes only.
var (
	ErrInvalidArgument = &ValidationError{Code: CodeInvalidArgument}
	ErrUnknownModule   = &ValidationError{Code: CodeUnknownModule}
	ErrSchemaViolation = &ValidationError{Code: CodeSchemaViolation}
	ErrInvalidName     = &ValidationError{Code: CodeInvalidName}
	ErrOutOfRange      = &ValidationError{Code: CodeOutOfRange}
	ErrDuplicateName   = &ValidationError{Code: CodeDuplicateName}
	ErrUnknownDataset  = &ValidationError{Code: CodeUnknownDataset}
	ErrUnknownColumn   = &ValidationError{Code: CodeUnknownColumn}
	ErrDefaultBranch   = &ValidationError{Code: CodeDefaultBranch}
	ErrEmptyWorkflow   = &ValidationError{Code: CodeEmptyWorkflow}
)

// ValidationError reports malformed input. The edit that produced it has no effect.
type ValidationError struct {
	Code    string
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error returns a formatted error string.
func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("[%s]", e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target is a ValidationError with the same code.
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a copy of the error with additional details.
func (e *ValidationError) WithDetails(details map[string]interface{}) *ValidationError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewValidation creates a ValidationError with a formatted message.
func NewValidation(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapValidation creates a ValidationError wrapping an existing error.
func WrapValidation(code, message string, cause error) *ValidationError {
	return &ValidationError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsValidation reports whether err (or its chain) is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Code returns the validation code of err, or "" when err is not a ValidationError.
func Code(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
