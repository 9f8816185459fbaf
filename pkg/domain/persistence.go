package domain

import (
	"context"
	"fmt"
)

// Transaction exposes the operations a persistence implementation must
// support within an atomic scope. Records are passed through the untyped
// Record surface; the typed helpers below are the sanctioned entry points.
type Transaction interface {
	Snapshot() TransactionView
	Find(kind EntityType, id string) (Record, bool)
	Insert(rec Record) (Record, error)
	Replace(rec Record) (before Record, err error)
	Remove(kind EntityType, id string) (Record, error)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}

// ErrNotFound is returned when a record lookup fails.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Create inserts v within tx and returns the stored copy.
func Create[T Entity[T]](tx Transaction, v T) (T, error) {
	stored, err := tx.Insert(v)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](stored)
}

// Update applies mutator to the record identified by id within tx.
func Update[T Entity[T]](tx Transaction, id string, mutator func(*T) error) (T, error) {
	var zero T
	rec, ok := tx.Find(zero.Kind(), id)
	if !ok {
		return zero, ErrNotFound{Entity: zero.Kind(), ID: id}
	}
	current, err := As[T](rec)
	if err != nil {
		return zero, err
	}
	meta := current.Meta()
	if err := mutator(&current); err != nil {
		return zero, err
	}
	current = current.WithBase(Base{ID: id, CreatedAt: meta.CreatedAt, UpdatedAt: current.Meta().UpdatedAt})
	if _, err := tx.Replace(current); err != nil {
		return zero, err
	}
	stored, _ := tx.Find(zero.Kind(), id)
	return As[T](stored)
}

// Delete removes the record of kind T identified by id.
func Delete[T Entity[T]](tx Transaction, id string) error {
	var zero T
	_, err := tx.Remove(zero.Kind(), id)
	return err
}

// Find looks up a typed record inside a read view.
func Find[T Entity[T]](view RuleView, id string) (T, bool) {
	var zero T
	rec, ok := view.Find(zero.Kind(), id)
	if !ok {
		return zero, false
	}
	typed, err := As[T](rec)
	if err != nil {
		return zero, false
	}
	return typed, true
}

// List returns all records of kind T from a read view.
func List[T Entity[T]](view RuleView) []T {
	var zero T
	recs := view.List(zero.Kind())
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		if typed, err := As[T](rec); err == nil {
			out = append(out, typed)
		}
	}
	return out
}

// As converts a Record into its concrete entity type.
func As[T Entity[T]](rec Record) (T, error) {
	typed, ok := rec.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("record %T is not %T", rec, zero)
	}
	return typed, nil
}
