package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"jobsdashboard/pkg/domain"
)

func TestQueryLoadCachesUntilInvalidated(t *testing.T) {
	s := New()
	var calls atomic.Int32
	q := NewQuery(s, "skills/list", func(context.Context) ([]domain.Skill, error) {
		calls.Add(1)
		return []domain.Skill{{Base: domain.Base{ID: "2"}, Name: "Rust"}, {Base: domain.Base{ID: "1"}, Name: "Go"}}, nil
	}, Ordered(), Provides(ListTag(domain.EntitySkill)))

	ctx := context.Background()
	first, err := q.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if first.At(0).Name != "Go" {
		t.Fatalf("expected ordered collection, got %v", first.IDs())
	}
	if _, err := q.Load(ctx); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected cached second load, got %d fetches", calls.Load())
	}

	if err := s.InvalidateAndRefetch(ctx, ListTag(domain.EntitySkill)); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refetch after invalidation, got %d", calls.Load())
	}
	if s.Stale(q.Key()) {
		t.Fatalf("refetch must clear staleness")
	}
	if len(q.Tags()) != 1 {
		t.Fatalf("unexpected tags %v", q.Tags())
	}
}

func TestQueryRefreshSharesConcurrentFetches(t *testing.T) {
	s := New()
	release := make(chan struct{})
	started := make(chan struct{}, 8)
	var calls atomic.Int32
	q := NewQuery(s, "banks/list", func(context.Context) ([]domain.Bank, error) {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return []domain.Bank{{Base: domain.Base{ID: "b1"}, Name: "First"}}, nil
	})

	var wg sync.WaitGroup
	results := make([]Collection[domain.Bank], 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = q.Refresh(context.Background())
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = q.Refresh(context.Background())
		}(i)
	}
	close(release)
	wg.Wait()

	if calls.Load() < 1 || calls.Load() > int32(len(results)) {
		t.Fatalf("unexpected fetch count %d", calls.Load())
	}
	for i, r := range results {
		if r.Len() != 1 {
			t.Fatalf("result %d has %d records", i, r.Len())
		}
	}
}

func TestQueryRefreshPropagatesErrors(t *testing.T) {
	s := New()
	boom := errors.New("unreachable")
	q := NewQuery(s, "states/list", func(context.Context) ([]domain.State, error) { return nil, boom })
	if _, err := q.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if s.Has(q.Key()) {
		t.Fatalf("failed load must not cache")
	}
}
