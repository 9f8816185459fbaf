// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobsdashboard/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// memoryState holds one bucket of records per entity type.
type memoryState map[domain.EntityType]map[string]domain.Record

func newMemoryState() memoryState {
	state := make(memoryState, len(domain.EntityTypes()))
	for _, kind := range domain.EntityTypes() {
		state[kind] = make(map[string]domain.Record)
	}
	return state
}

func (s memoryState) clone() memoryState {
	out := make(memoryState, len(s))
	for kind, bucket := range s {
		copied := make(map[string]domain.Record, len(bucket))
		for id, rec := range bucket {
			copied[id] = domain.CloneRecord(rec)
		}
		out[kind] = copied
	}
	return out
}

// Store provides an in-memory transactional store for the job-board domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc replaces the clock used to stamp CreatedAt and UpdatedAt.
func (s *Store) SetNowFunc(now func() time.Time) {
	if now == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = now
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	state := stateFromSnapshot(snapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// RulesEngine exposes the currently configured engine so callers can register rules.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// List returns all records of kind outside of a transaction.
func (s *Store) List(kind domain.EntityType) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: s.state}.List(kind)
}

// RunInTransaction runs fn against a private copy of the state, evaluates the
// registered rules over the recorded changes and swaps the copy in on success.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		res, err := s.engine.Evaluate(ctx, transactionView{state: tx.state}, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{state: snapshot})
}

// transactionView exposes a read-only snapshot of the state to rules and readers.
type transactionView struct {
	state memoryState
}

// List returns the records of kind ordered by creation time, then id.
func (v transactionView) List(kind domain.EntityType) []domain.Record {
	bucket := v.state[kind]
	out := make([]domain.Record, 0, len(bucket))
	for _, rec := range bucket {
		out = append(out, domain.CloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Meta(), out[j].Meta()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// Find returns the record of kind identified by id.
func (v transactionView) Find(kind domain.EntityType, id string) (domain.Record, bool) {
	rec, ok := v.state[kind][id]
	if !ok {
		return nil, false
	}
	return domain.CloneRecord(rec), true
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: tx.state}
}

// Find exposes record lookup within the transaction scope.
func (tx *transaction) Find(kind domain.EntityType, id string) (domain.Record, bool) {
	return transactionView{state: tx.state}.Find(kind, id)
}

// Insert stores a new record, assigning an id when none is set.
func (tx *transaction) Insert(rec domain.Record) (domain.Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("insert: nil record")
	}
	kind := rec.Kind()
	bucket, ok := tx.state[kind]
	if !ok {
		return nil, fmt.Errorf("insert: unknown entity type %q", kind)
	}
	meta := rec.Meta()
	if meta.ID == "" {
		meta.ID = tx.store.newID()
	}
	if domain.IsTemporaryID(meta.ID) {
		return nil, fmt.Errorf("%s id %q is reserved for unconfirmed records", kind, meta.ID)
	}
	if _, exists := bucket[meta.ID]; exists {
		return nil, fmt.Errorf("%s %q already exists", kind, meta.ID)
	}
	meta.CreatedAt = tx.now
	meta.UpdatedAt = tx.now
	stored := domain.Rebase(rec, meta)
	bucket[meta.ID] = stored
	tx.recordChange(Change{Entity: kind, Action: domain.ActionCreate, After: domain.CloneRecord(stored)})
	return domain.CloneRecord(stored), nil
}

// Replace overwrites an existing record, preserving its creation time.
func (tx *transaction) Replace(rec domain.Record) (domain.Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("replace: nil record")
	}
	kind := rec.Kind()
	meta := rec.Meta()
	current, ok := tx.state[kind][meta.ID]
	if !ok {
		return nil, domain.ErrNotFound{Entity: kind, ID: meta.ID}
	}
	meta.CreatedAt = current.Meta().CreatedAt
	meta.UpdatedAt = tx.now
	stored := domain.Rebase(rec, meta)
	tx.state[kind][meta.ID] = stored
	tx.recordChange(Change{Entity: kind, Action: domain.ActionUpdate, Before: domain.CloneRecord(current), After: domain.CloneRecord(stored)})
	return domain.CloneRecord(current), nil
}

// Remove deletes a record from the transaction state.
func (tx *transaction) Remove(kind domain.EntityType, id string) (domain.Record, error) {
	current, ok := tx.state[kind][id]
	if !ok {
		return nil, domain.ErrNotFound{Entity: kind, ID: id}
	}
	delete(tx.state[kind], id)
	tx.recordChange(Change{Entity: kind, Action: domain.ActionDelete, Before: domain.CloneRecord(current)})
	return domain.CloneRecord(current), nil
}
