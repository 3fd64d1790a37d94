package backup

import (
	"errors"
	"fmt"

	"github.com/specforge/specforge/pkg/persistence"
)

// ErrConcurrentOperation aliases the gate's mutual-exclusion sentinel, so
// callers matching against either name see the same error.
var ErrConcurrentOperation = persistence.ErrConcurrentOperation

// StateCorruptionError reports that a snapshot (or live state) failed
// integrity validation. A restore never partially applies a corrupt snapshot.
type StateCorruptionError struct {
	SnapshotID string
	Reason     string
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("snapshot %s failed integrity validation: %s", e.SnapshotID, e.Reason)
}

// NewStateCorruptionError creates a corruption error for a snapshot.
func NewStateCorruptionError(snapshotID, reason string) *StateCorruptionError {
	return &StateCorruptionError{SnapshotID: snapshotID, Reason: reason}
}

// IsStateCorruption checks if an error reports failed integrity validation.
func IsStateCorruption(err error) bool {
	var cerr *StateCorruptionError

	return errors.As(err, &cerr)
}

// IsConcurrentOperation checks for the retryable mutual-exclusion error.
func IsConcurrentOperation(err error) bool {
	return errors.Is(err, ErrConcurrentOperation)
}
