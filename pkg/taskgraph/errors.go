package taskgraph

import (
	"errors"
	"fmt"
	"strings"
)

// CycleError reports that the dependency relation is not acyclic. Members
// holds the ids of one cycle, in edge order.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Members, " -> "))
}

// NewCycleError creates a cycle error naming the cycle's member ids.
func NewCycleError(members []string) *CycleError {
	return &CycleError{Members: members}
}

// IsCycleError checks if an error reports a dependency cycle.
func IsCycleError(err error) bool {
	var cerr *CycleError

	return errors.As(err, &cerr)
}

// DanglingReferenceError reports a dependency on a task id absent from the
// document.
type DanglingReferenceError struct {
	TaskID  string // Task declaring the dependency
	Missing string // The absent id
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.TaskID, e.Missing)
}

// NewDanglingReferenceError creates a dangling-reference error.
func NewDanglingReferenceError(taskID, missing string) *DanglingReferenceError {
	return &DanglingReferenceError{TaskID: taskID, Missing: missing}
}

// IsDanglingReferenceError checks if an error reports a dangling dependency.
func IsDanglingReferenceError(err error) bool {
	var derr *DanglingReferenceError

	return errors.As(err, &derr)
}
