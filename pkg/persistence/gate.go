package persistence

import (
	"errors"
	"sync"
)

// ErrConcurrentOperation indicates a mutually-exclusive operation was
// attempted while another was in flight. Retryable by the caller; the engine
// never retries on its own.
var ErrConcurrentOperation = errors.New("concurrent operation in flight")

// IsConcurrentOperation checks for the retryable mutual-exclusion error.
func IsConcurrentOperation(err error) bool {
	return errors.Is(err, ErrConcurrentOperation)
}

// RestoreGate serializes snapshot restores against ordinary state mutations.
// A restore holds the write side for its whole validate-and-apply; every
// mutator holds the read side across its read-modify-write, so a restored
// record can never be overwritten by a mutation that loaded state before the
// restore ran.
//
// The write side is only ever acquired with TryLock, so read holders never
// queue behind a waiting writer; a mutator that snapshots while holding the
// read side (workflow reset does) cannot deadlock itself.
//
// A nil gate disables the exclusion; every method is nil-safe.
type RestoreGate struct {
	mu sync.RWMutex
}

// Mutate claims the gate for one state mutation, blocking while a restore is
// in flight. The returned release must be called once the mutation's writes
// are durable.
func (g *RestoreGate) Mutate() func() {
	if g == nil {
		return func() {}
	}

	g.mu.RLock()

	return g.mu.RUnlock
}

// Restore claims the gate exclusively. It fails with ErrConcurrentOperation
// while another restore or any mutation is in flight.
func (g *RestoreGate) Restore() (func(), error) {
	if g == nil {
		return func() {}, nil
	}

	if !g.mu.TryLock() {
		return nil, ErrConcurrentOperation
	}

	return g.mu.Unlock, nil
}
