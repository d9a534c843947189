package errors

import (
	"fmt"
	"time"
)

// OperationalError represents enhanced error information for debugging.
//
// It wraps infrastructure failures (store I/O, engine transport) with the
// viztrail and module they occurred in, so that failures surfacing from a
// repository call can be traced back to the edit that triggered them.
type OperationalError struct {
	Operation  string    // What operation was being performed
	ViztrailID string    // Which viztrail
	ModuleID   string    // Which module (if applicable)
	Timestamp  time.Time // When error occurred
	Cause      error     // Underlying error
}

// NewOperationalError creates an OperationalError wrapping an error.
//
// Returns nil if cause is nil (no error to wrap).
//
// Example:
//
//	if err != nil {
//	    return NewOperationalError("persisting workflow", viztrailID, "", err)
//	}
func NewOperationalError(operation, viztrailID, moduleID string, cause error) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation:  operation,
		ViztrailID: viztrailID,
		ModuleID:   moduleID,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// Error implements the error interface.
//
// Format: "[timestamp] operation: viztrail={id} module={id}: {cause}"
// If module ID is empty, it's omitted from the message.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	timestamp := e.Timestamp.Format(time.RFC3339)

	if e.ModuleID != "" {
		return fmt.Sprintf("[%s] %s: viztrail=%s module=%s: %v",
			timestamp,
			e.Operation,
			e.ViztrailID,
			e.ModuleID,
			e.Cause)
	}

	return fmt.Sprintf("[%s] %s: viztrail=%s: %v",
		timestamp,
		e.Operation,
		e.ViztrailID,
		e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
