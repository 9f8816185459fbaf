package optimistic

import (
	"context"
	"sync/atomic"

	"jobsdashboard/internal/cache"
	"jobsdashboard/pkg/domain"
)

// State is the lifecycle position of a pending mutation.
type State int32

// Mutations start Speculative and settle exactly once into Confirmed or RolledBack.
const (
	Speculative State = iota
	Confirmed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Speculative:
		return "speculative"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Kind identifies the speculative change a mutation applied.
type Kind string

// Supported mutation kinds.
const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Mutation is the caller's handle on one in-flight optimistic change.
type Mutation[T domain.Entity[T]] struct {
	kind     Kind
	key      cache.Key
	targetID string
	tempID   string
	applied  bool

	state  atomic.Int32
	done   chan struct{}
	result T
	err    error
}

func newMutation[T domain.Entity[T]](kind Kind, key cache.Key, targetID string) *Mutation[T] {
	return &Mutation[T]{kind: kind, key: key, targetID: targetID, done: make(chan struct{})}
}

// Kind returns the mutation kind.
func (m *Mutation[T]) Kind() Kind { return m.kind }

// Key returns the cached query the mutation targets.
func (m *Mutation[T]) Key() cache.Key { return m.key }

// TargetID returns the record id the mutation addresses. For inserts this is
// the temporary identifier.
func (m *Mutation[T]) TargetID() string { return m.targetID }

// TempID returns the temporary identifier assigned to an insert, or "".
func (m *Mutation[T]) TempID() string { return m.tempID }

// Applied reports whether a speculative change was written to the cache. It is
// false when the query was not cached at initiation.
func (m *Mutation[T]) Applied() bool { return m.applied }

// State returns the current lifecycle state.
func (m *Mutation[T]) State() State { return State(m.state.Load()) }

// Done is closed once the mutation settles.
func (m *Mutation[T]) Done() <-chan struct{} { return m.done }

// Wait blocks until the remote call settles and returns its outcome. A
// RemoteFailure surfaces here after the cache has been rolled back. If ctx ends
// first, ctx.Err() is returned and the mutation keeps running.
func (m *Mutation[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-m.done:
		return m.result, m.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the remote failure once settled, or nil.
func (m *Mutation[T]) Err() error {
	select {
	case <-m.done:
		return m.err
	default:
		return nil
	}
}

// settle moves the mutation into a terminal state. Only the first call wins.
func (m *Mutation[T]) settle(state State, result T, err error) bool {
	if !m.state.CompareAndSwap(int32(Speculative), int32(state)) {
		return false
	}
	m.result = result
	m.err = err
	close(m.done)
	return true
}
