// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all providers should use.
var (
	// ErrSpecNotFound indicates no specification exists under the given name.
	ErrSpecNotFound = errors.New("spec not found")

	// ErrTaskNotFound indicates a task id absent from a spec's task document.
	ErrTaskNotFound = errors.New("task not found")

	// ErrWorkflowNotFound indicates no workflow state exists under the given id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrSnapshotNotFound indicates no backup snapshot exists under the given id.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotExists indicates an attempt to overwrite an existing snapshot.
	// Snapshots are immutable once written.
	ErrSnapshotExists = errors.New("snapshot already exists")

	// ErrCorruptState indicates durable state failed to decode on load.
	ErrCorruptState = errors.New("corrupt state record")
)

// StoreError wraps storage errors with operation context.
type StoreError struct {
	Op  string // Operation being performed (e.g. "SpecByName", "SaveSnapshot")
	Key string // Record identifier if applicable
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a storage error with context.
func NewStoreError(op, key string, err error) *StoreError {
	return &StoreError{Op: op, Key: key, Err: err}
}

// IsSpecNotFound checks if an error indicates a missing specification.
func IsSpecNotFound(err error) bool {
	return errors.Is(err, ErrSpecNotFound)
}

// IsTaskNotFound checks if an error indicates a missing task.
func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

// IsWorkflowNotFound checks if an error indicates missing workflow state.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsSnapshotNotFound checks if an error indicates a missing snapshot.
func IsSnapshotNotFound(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound)
}

// IsCorruptState checks if an error indicates an undecodable state record.
func IsCorruptState(err error) bool {
	return errors.Is(err, ErrCorruptState)
}

// IsNotFound checks for any of the not-found sentinels.
func IsNotFound(err error) bool {
	return IsSpecNotFound(err) || IsTaskNotFound(err) ||
		IsWorkflowNotFound(err) || IsSnapshotNotFound(err)
}
