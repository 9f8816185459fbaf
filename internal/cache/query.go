package cache

import (
	"context"
	"fmt"

	"jobsdashboard/pkg/domain"
)

// Fetcher loads the canonical records for a query from the server.
type Fetcher[T domain.Entity[T]] func(ctx context.Context) ([]T, error)

// Query binds a key to its fetcher and the tags its data provides.
type Query[T domain.Entity[T]] struct {
	store   *Store
	key     Key
	tags    []Tag
	ordered bool
	fetch   Fetcher[T]
}

// QueryOption configures a Query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	tags    []Tag
	ordered bool
}

// Provides sets the tags the query's data depends on.
func Provides(tags ...Tag) QueryOption {
	return func(o *queryOptions) { o.tags = append(o.tags, tags...) }
}

// Ordered keeps the query's collection in display-name order.
func Ordered() QueryOption {
	return func(o *queryOptions) { o.ordered = true }
}

// NewQuery registers fetch as the loader for key on s.
func NewQuery[T domain.Entity[T]](s *Store, key Key, fetch Fetcher[T], opts ...QueryOption) *Query[T] {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	q := &Query[T]{store: s, key: key, tags: o.tags, ordered: o.ordered, fetch: fetch}
	s.RegisterLoader(key, func(ctx context.Context) error {
		_, err := q.Refresh(ctx)
		return err
	})
	return q
}

// Key returns the query identity.
func (q *Query[T]) Key() Key { return q.key }

// Tags returns the tags provided by the query.
func (q *Query[T]) Tags() []Tag { return append([]Tag(nil), q.tags...) }

// Load returns the cached collection, fetching it when absent or stale.
func (q *Query[T]) Load(ctx context.Context) (Collection[T], error) {
	if !q.store.Stale(q.key) {
		if c, err := Read[T](q.store, q.key); err == nil {
			return c, nil
		}
	}
	return q.Refresh(ctx)
}

// Refresh fetches from the server and overwrites the cached collection.
// Concurrent refreshes of the same key share one fetch.
func (q *Query[T]) Refresh(ctx context.Context) (Collection[T], error) {
	v, err, shared := q.store.flights.Do(string(q.key), func() (any, error) {
		items, err := q.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c := NewCollection(items, q.ordered)
		Write(q.store, q.key, c)
		q.store.Provide(q.key, q.tags...)
		return c, nil
	})
	if err != nil {
		return Collection[T]{}, fmt.Errorf("load %s: %w", q.key, err)
	}
	if shared {
		q.store.logger.Debug("cache load shared", "key", string(q.key))
	}
	return v.(Collection[T]), nil
}
