package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobsdashboard/internal/cache"
	"jobsdashboard/internal/observability"
	"jobsdashboard/internal/optimistic"
	"jobsdashboard/pkg/domain"
)

var (
	// ErrInvalidDraft is returned when a draft has an empty display name.
	ErrInvalidDraft = errors.New("client: draft has an empty display name")
	// ErrUnconfirmed is returned when editing or removing a record that still
	// carries a temporary identifier.
	ErrUnconfirmed = errors.New("client: record is not confirmed by the server yet")
)

// Mode selects how a slice reflects mutations in the cache.
type Mode int

const (
	// Optimistic applies mutations to the cache before the server answers.
	Optimistic Mode = iota
	// Invalidate waits for the server, then invalidates and refetches.
	Invalidate
)

func (m Mode) String() string {
	if m == Invalidate {
		return "invalidate"
	}
	return "optimistic"
}

// Pending is the caller's handle on a mutation. Wait returns the server
// record, or the remote failure after the cache has been restored.
type Pending[T domain.Entity[T]] interface {
	Wait(ctx context.Context) (T, error)
}

type settled[T domain.Entity[T]] struct {
	value T
	err   error
}

func (s settled[T]) Wait(context.Context) (T, error) { return s.value, s.err }

// ListKey returns the cache key of the list query for kind.
func ListKey(kind domain.EntityType) cache.Key {
	return cache.Key(kind.Resource() + "/list")
}

type sliceOptions struct {
	mode    Mode
	ordered bool
	coord   []optimistic.Option
	logger  observability.Logger
}

// SliceOption configures a Slice.
type SliceOption func(*sliceOptions)

// WithMode selects optimistic or invalidating mutations.
func WithMode(m Mode) SliceOption {
	return func(o *sliceOptions) { o.mode = m }
}

// WithOrdered keeps the cached list sorted by display name.
func WithOrdered(ordered bool) SliceOption {
	return func(o *sliceOptions) { o.ordered = ordered }
}

// WithCoordinatorOptions forwards options to the optimistic coordinator.
func WithCoordinatorOptions(opts ...optimistic.Option) SliceOption {
	return func(o *sliceOptions) { o.coord = append(o.coord, opts...) }
}

// WithSliceLogger sets the slice logger.
func WithSliceLogger(l observability.Logger) SliceOption {
	return func(o *sliceOptions) { o.logger = observability.OrNoop(l) }
}

// Slice is the data-access surface for one entity type: a cached list query
// plus create, edit and remove mutations.
type Slice[T domain.Entity[T]] struct {
	store   *cache.Store
	remote  Remote[T]
	query   *cache.Query[T]
	coord   *optimistic.Coordinator[T]
	mode    Mode
	ordered bool
	logger  observability.Logger
}

// NewSlice registers the list query for T on store.
func NewSlice[T domain.Entity[T]](store *cache.Store, remote Remote[T], opts ...SliceOption) *Slice[T] {
	o := sliceOptions{logger: observability.NoopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	var zero T
	kind := zero.Kind()
	qopts := []cache.QueryOption{cache.Provides(cache.ListTag(kind))}
	if o.ordered {
		qopts = append(qopts, cache.Ordered())
	}
	s := &Slice[T]{
		store:   store,
		remote:  remote,
		mode:    o.mode,
		ordered: o.ordered,
		logger:  o.logger,
	}
	s.query = cache.NewQuery[T](store, ListKey(kind), remote.List, qopts...)
	if o.mode == Optimistic {
		s.coord = optimistic.New[T](store, o.coord...)
	}
	return s
}

// Kind returns the entity type served by the slice.
func (s *Slice[T]) Kind() domain.EntityType {
	var zero T
	return zero.Kind()
}

// Key returns the cache key of the list query.
func (s *Slice[T]) Key() cache.Key { return s.query.Key() }

// Mode returns the mutation mode.
func (s *Slice[T]) Mode() Mode { return s.mode }

// Ordered reports whether the cached list is kept sorted by display name.
func (s *Slice[T]) Ordered() bool { return s.ordered }

// RollbackPolicy reports the coordinator's rollback policy. It reports false
// for slices in Invalidate mode, which never speculate.
func (s *Slice[T]) RollbackPolicy() (optimistic.RollbackPolicy, bool) {
	if s.coord == nil {
		return 0, false
	}
	return s.coord.Policy(), true
}

// Load returns the cached list, fetching it when absent or stale.
func (s *Slice[T]) Load(ctx context.Context) (cache.Collection[T], error) {
	return s.query.Load(ctx)
}

// Refresh refetches the list from the server.
func (s *Slice[T]) Refresh(ctx context.Context) (cache.Collection[T], error) {
	return s.query.Refresh(ctx)
}

// Collection returns the currently cached list without fetching.
func (s *Slice[T]) Collection() (cache.Collection[T], error) {
	return cache.Read[T](s.store, s.Key())
}

// Subscribe calls fn after every change to the cached list.
func (s *Slice[T]) Subscribe(fn func(cache.Collection[T])) func() {
	return s.store.Subscribe(s.Key(), func(cache.Key) {
		if c, err := s.Collection(); err == nil {
			fn(c)
		}
	})
}

// Wait blocks until every optimistic mutation started so far has settled.
func (s *Slice[T]) Wait() {
	if s.coord != nil {
		s.coord.Wait()
	}
}

// Add creates draft on the server.
func (s *Slice[T]) Add(ctx context.Context, draft T) (Pending[T], error) {
	if strings.TrimSpace(draft.DisplayName()) == "" {
		return nil, ErrInvalidDraft
	}
	if s.mode == Invalidate {
		created, err := s.remote.Create(ctx, draft)
		return s.afterWrite(ctx, created, err), nil
	}
	return s.coord.ApplyInsert(ctx, s.Key(), draft, func(ctx context.Context) (T, error) {
		return s.remote.Create(ctx, draft)
	}), nil
}

// Edit applies patch to the record identified by id and saves it.
func (s *Slice[T]) Edit(ctx context.Context, id string, patch func(*T)) (Pending[T], error) {
	if domain.IsTemporaryID(id) {
		return nil, ErrUnconfirmed
	}
	current, err := s.current(ctx, id)
	if err != nil {
		return nil, err
	}
	next := domain.Clone(current)
	patch(&next)
	if strings.TrimSpace(next.DisplayName()) == "" {
		return nil, ErrInvalidDraft
	}
	if s.mode == Invalidate {
		updated, err := s.remote.Update(ctx, id, next)
		return s.afterWrite(ctx, updated, err), nil
	}
	return s.coord.ApplyUpdate(ctx, s.Key(), id, patch, func(ctx context.Context) (T, error) {
		return s.remote.Update(ctx, id, next)
	}), nil
}

// Remove deletes the record identified by id.
func (s *Slice[T]) Remove(ctx context.Context, id string) (Pending[T], error) {
	if domain.IsTemporaryID(id) {
		return nil, ErrUnconfirmed
	}
	if s.mode == Invalidate {
		var zero T
		return s.afterWrite(ctx, zero, s.remote.Delete(ctx, id)), nil
	}
	return s.coord.ApplyDelete(ctx, s.Key(), id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.remote.Delete(ctx, id)
	}), nil
}

// current resolves the record to edit, preferring the cached copy.
func (s *Slice[T]) current(ctx context.Context, id string) (T, error) {
	if c, err := s.Collection(); err == nil {
		if rec, ok := c.Find(id); ok {
			return rec, nil
		}
	}
	rec, err := s.remote.Get(ctx, id)
	if err != nil {
		return rec, fmt.Errorf("resolve %s %s: %w", s.Kind(), id, err)
	}
	return rec, nil
}

// afterWrite invalidates the list after a successful server write. A failed
// refetch leaves the list stale and does not fail the mutation.
func (s *Slice[T]) afterWrite(ctx context.Context, v T, err error) settled[T] {
	if err != nil {
		return settled[T]{value: v, err: err}
	}
	if rerr := s.store.InvalidateAndRefetch(ctx, cache.ListTag(s.Kind())); rerr != nil {
		s.logger.Warn("refetch after write failed", "kind", string(s.Kind()), "err", rerr)
	}
	return settled[T]{value: v}
}
