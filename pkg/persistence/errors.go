// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrCycleNotFound indicates a cycle was not found by the given identifier.
	ErrCycleNotFound = errors.New("cycle not found")

	// ErrCycleAlreadyExists indicates a cycle with the same identifier already exists.
	ErrCycleAlreadyExists = errors.New("cycle already exists")

	// ErrCycleVersionConflict indicates the stored cycle changed since it was read.
	ErrCycleVersionConflict = errors.New("cycle version conflict")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// CycleError wraps cycle-related errors with additional context.
type CycleError struct {
	Op      string
	CycleID string
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s operation failed for cycle %s: %v", e.Op, e.CycleID, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

func (e *CycleError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewCycleError creates a new cycle error with context.
func NewCycleError(op, cycleID string, err error) *CycleError {
	return &CycleError{
		Op:      op,
		CycleID: cycleID,
		Err:     err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsCycleNotFound checks if an error indicates a cycle was not found.
func IsCycleNotFound(err error) bool {
	return errors.Is(err, ErrCycleNotFound)
}

// IsVersionConflict checks if an error indicates a stale write was rejected.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrCycleVersionConflict)
}
