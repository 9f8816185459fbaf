package cache

import (
	"slices"
	"strings"

	"jobsdashboard/pkg/domain"
)

// Collection is an immutable ordered sequence of entity records. Every
// mutator returns a new Collection; the receiver is never modified, so a
// Collection value doubles as a rollback snapshot.
type Collection[T domain.Entity[T]] struct {
	items   []T
	ordered bool
}

// NewCollection copies items into a collection. Ordered collections are kept
// in ascending display-name order.
func NewCollection[T domain.Entity[T]](items []T, ordered bool) Collection[T] {
	c := Collection[T]{items: cloneItems(items), ordered: ordered}
	if ordered {
		sortByName(c.items)
	}
	return c
}

// Items returns a copy of the records in collection order.
func (c Collection[T]) Items() []T { return cloneItems(c.items) }

// Len returns the number of records.
func (c Collection[T]) Len() int { return len(c.items) }

// Ordered reports whether the collection maintains display-name order.
func (c Collection[T]) Ordered() bool { return c.ordered }

// At returns a copy of the record at index i.
func (c Collection[T]) At(i int) T { return domain.Clone(c.items[i]) }

// IndexOf returns the position of id, or -1.
func (c Collection[T]) IndexOf(id string) int {
	for i, item := range c.items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}

// Find returns the record with the given id.
func (c Collection[T]) Find(id string) (T, bool) {
	if i := c.IndexOf(id); i >= 0 {
		return domain.Clone(c.items[i]), true
	}
	var zero T
	return zero, false
}

// Insert appends v, re-sorting ordered collections.
func (c Collection[T]) Insert(v T) Collection[T] {
	return c.InsertAt(len(c.items), v)
}

// InsertAt places v at index i (clamped to the valid range), re-sorting
// ordered collections.
func (c Collection[T]) InsertAt(i int, v T) Collection[T] {
	i = max(0, min(i, len(c.items)))
	items := make([]T, 0, len(c.items)+1)
	items = append(items, c.items[:i]...)
	items = append(items, domain.Clone(v))
	items = append(items, c.items[i:]...)
	return c.with(items)
}

// Replace swaps the record identified by id for v in place. It reports false
// and returns the receiver unchanged when id is absent.
func (c Collection[T]) Replace(id string, v T) (Collection[T], bool) {
	i := c.IndexOf(id)
	if i < 0 {
		return c, false
	}
	items := slices.Clone(c.items)
	items[i] = domain.Clone(v)
	return c.with(items), true
}

// Patch applies fn to a copy of the record identified by id. Missing ids are a no-op.
func (c Collection[T]) Patch(id string, fn func(*T)) (Collection[T], bool) {
	i := c.IndexOf(id)
	if i < 0 {
		return c, false
	}
	items := slices.Clone(c.items)
	patched := domain.Clone(items[i])
	fn(&patched)
	items[i] = domain.WithID(patched, id)
	return c.with(items), true
}

// Remove deletes the record identified by id, returning the removed record and
// its former index.
func (c Collection[T]) Remove(id string) (Collection[T], T, int, bool) {
	i := c.IndexOf(id)
	if i < 0 {
		var zero T
		return c, zero, -1, false
	}
	removed := c.items[i]
	items := make([]T, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)
	return Collection[T]{items: items, ordered: c.ordered}, removed, i, true
}

// Sorted returns a copy in ascending display-name order regardless of Ordered.
func (c Collection[T]) Sorted() Collection[T] {
	items := slices.Clone(c.items)
	sortByName(items)
	return Collection[T]{items: items, ordered: c.ordered}
}

// IsSorted reports whether records are in ascending display-name order.
func (c Collection[T]) IsSorted() bool {
	return slices.IsSortedFunc(c.items, compareByName[T])
}

// HasTemporary reports whether any record still carries a temporary identifier.
func (c Collection[T]) HasTemporary() bool {
	return slices.ContainsFunc(c.items, func(item T) bool {
		return domain.IsTemporaryID(item.RecordID())
	})
}

// IDs lists record identifiers in collection order.
func (c Collection[T]) IDs() []string {
	out := make([]string, len(c.items))
	for i, item := range c.items {
		out[i] = item.RecordID()
	}
	return out
}

func (c Collection[T]) with(items []T) Collection[T] {
	if c.ordered {
		sortByName(items)
	}
	return Collection[T]{items: items, ordered: c.ordered}
}

func compareByName[T domain.Entity[T]](a, b T) int {
	return strings.Compare(a.DisplayName(), b.DisplayName())
}

func sortByName[T domain.Entity[T]](items []T) {
	slices.SortStableFunc(items, compareByName[T])
}

func cloneItems[T domain.Entity[T]](in []T) []T {
	out := make([]T, len(in))
	for i, item := range in {
		out[i] = domain.Clone(item)
	}
	return out
}
