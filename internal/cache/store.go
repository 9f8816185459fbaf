// Package cache holds query results for the dashboard: one collection per
// query identity, tagged so mutations can invalidate and refetch them.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"jobsdashboard/internal/observability"
	"jobsdashboard/pkg/domain"
)

// Key is a query identity such as "companies/list".
type Key string

// ListID is the tag identifier naming a whole collection rather than one record.
const ListID = "LIST"

// Tag labels cached data so mutations can invalidate it declaratively.
type Tag struct {
	Type domain.EntityType
	ID   string
}

// ListTag returns the collection-level tag for an entity type.
func ListTag(t domain.EntityType) Tag { return Tag{Type: t, ID: ListID} }

// matches reports whether invalidating t covers the provided tag p. A tag with
// an empty ID covers every tag of its type.
func (t Tag) matches(p Tag) bool {
	if t.Type != p.Type {
		return false
	}
	return t.ID == "" || t.ID == p.ID
}

var (
	// ErrNotCached is returned when a key has no cached collection.
	ErrNotCached = errors.New("cache: query not cached")
	// ErrKindMismatch is returned when a key is accessed with the wrong element type.
	ErrKindMismatch = errors.New("cache: entry holds a different element type")
)

type entry struct {
	value     any
	tags      []Tag
	stale     bool
	updatedAt time.Time
}

// Loader refreshes a cached key from its source.
type Loader func(ctx context.Context) error

// Store is the process-wide cache of query results. All writes are
// serialized; subscribers are notified after the write lock is released.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[Key]map[uint64]func(Key)
	nextSub uint64
	loaders map[Key]Loader
	flights singleflight.Group
	logger  observability.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l observability.Logger) Option {
	return func(s *Store) { s.logger = observability.OrNoop(l) }
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[Key]*entry),
		subs:    make(map[Key]map[uint64]func(Key)),
		loaders: make(map[Key]Loader),
		logger:  observability.NoopLogger{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the collection cached under key.
func Read[T domain.Entity[T]](s *Store, key Key) (Collection[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup[T](s, key)
}

// Write stores c under key, replacing any previous value, and clears staleness.
func Write[T domain.Entity[T]](s *Store, key Key, c Collection[T]) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.value = c
	e.stale = false
	e.updatedAt = s.now()
	s.mu.Unlock()
	s.notify(key)
}

// Update atomically replaces the collection under key with fn(current) and
// returns the collection that was replaced. Nothing runs between reading the
// prior value and installing the new one, so the returned value is an exact
// pre-mutation snapshot. Uncached keys yield ErrNotCached and fn is not called.
func Update[T domain.Entity[T]](s *Store, key Key, fn func(Collection[T]) Collection[T]) (Collection[T], error) {
	s.mu.Lock()
	prev, err := lookup[T](s, key)
	if err != nil {
		s.mu.Unlock()
		return prev, err
	}
	next := fn(prev)
	e := s.entries[key]
	e.value = next
	e.updatedAt = s.now()
	s.mu.Unlock()
	s.notify(key)
	return prev, nil
}

func lookup[T domain.Entity[T]](s *Store, key Key) (Collection[T], error) {
	e, ok := s.entries[key]
	if !ok || e.value == nil {
		return Collection[T]{}, ErrNotCached
	}
	c, ok := e.value.(Collection[T])
	if !ok {
		return Collection[T]{}, fmt.Errorf("%w: %s holds %T", ErrKindMismatch, key, e.value)
	}
	return c, nil
}

// Has reports whether key currently has a cached value.
func (s *Store) Has(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.value != nil
}

// Stale reports whether key was invalidated since its last write.
func (s *Store) Stale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.stale
}

// UpdatedAt returns the time of the last write to key.
func (s *Store) UpdatedAt(key Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.updatedAt, true
}

// Keys returns all cached keys in ascending order.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.entries))
	for k, e := range s.entries {
		if e.value != nil {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Evict drops the cached value for key. Tags and loaders are kept.
func (s *Store) Evict(key Key) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		e.value = nil
	}
	s.mu.Unlock()
	if ok {
		s.notify(key)
	}
}

// Provide records the tags that key's data depends on.
func (s *Store) Provide(key Key, tags ...Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.tags = append([]Tag(nil), tags...)
}

// Invalidate marks every key providing one of tags as stale and returns those keys.
func (s *Store) Invalidate(tags ...Tag) []Key {
	s.mu.Lock()
	var keys []Key
	for k, e := range s.entries {
		if providesAny(e.tags, tags) {
			e.stale = true
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		s.logger.Debug("cache entry invalidated", "key", string(k))
		s.notify(k)
	}
	return keys
}

func providesAny(provided, invalidated []Tag) bool {
	for _, inv := range invalidated {
		for _, p := range provided {
			if inv.matches(p) {
				return true
			}
		}
	}
	return false
}

// RegisterLoader installs the refetch function for key.
func (s *Store) RegisterLoader(key Key, fn Loader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaders[key] = fn
}

// Refetch runs the registered loaders for keys concurrently. Keys without a
// loader are skipped.
func (s *Store) Refetch(ctx context.Context, keys ...Key) error {
	s.mu.Lock()
	loaders := make([]Loader, 0, len(keys))
	for _, k := range keys {
		if fn, ok := s.loaders[k]; ok {
			loaders = append(loaders, fn)
		}
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range loaders {
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}

// InvalidateAndRefetch invalidates tags and synchronously refetches the affected keys.
func (s *Store) InvalidateAndRefetch(ctx context.Context, tags ...Tag) error {
	return s.Refetch(ctx, s.Invalidate(tags...)...)
}

// Subscribe registers fn to run after every change to key. The returned
// function removes the subscription.
func (s *Store) Subscribe(key Key, fn func(Key)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]func(Key))
	}
	s.subs[key][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[key], id)
		if len(s.subs[key]) == 0 {
			delete(s.subs, key)
		}
	}
}

func (s *Store) notify(key Key) {
	s.mu.Lock()
	fns := make([]func(Key), 0, len(s.subs[key]))
	for _, fn := range s.subs[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
}
