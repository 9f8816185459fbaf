package cache

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"jobsdashboard/pkg/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const companiesKey Key = "companies/list"

func TestReadMissingAndMismatch(t *testing.T) {
	s := New()
	if _, err := Read[domain.Company](s, companiesKey); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
	Write(s, companiesKey, NewCollection([]domain.Company{company("1", "Acme")}, true))
	if _, err := Read[domain.Skill](s, companiesKey); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	if _, err := Update(s, companiesKey, func(c Collection[domain.Skill]) Collection[domain.Skill] { return c }); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch from Update, got %v", err)
	}
}

func TestUpdateReturnsPriorSnapshotAndNotifies(t *testing.T) {
	clock := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return clock }))
	original := NewCollection([]domain.Company{company("1", "Acme")}, true)
	Write(s, companiesKey, original)

	var notified []Key
	unsubscribe := s.Subscribe(companiesKey, func(k Key) { notified = append(notified, k) })

	prev, err := Update(s, companiesKey, func(c Collection[domain.Company]) Collection[domain.Company] {
		return c.Insert(company("2", "Globex"))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !reflect.DeepEqual(prev.IDs(), original.IDs()) {
		t.Fatalf("prev = %v, want %v", prev.IDs(), original.IDs())
	}
	current, _ := Read[domain.Company](s, companiesKey)
	if current.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", current.Len())
	}
	if len(notified) != 1 {
		t.Fatalf("expected one notification, got %d", len(notified))
	}
	if at, ok := s.UpdatedAt(companiesKey); !ok || !at.Equal(clock) {
		t.Fatalf("unexpected updatedAt %v", at)
	}

	unsubscribe()
	Write(s, companiesKey, original)
	if len(notified) != 1 {
		t.Fatalf("unsubscribed handler still called")
	}
}

func TestUpdateUncachedSkipsFn(t *testing.T) {
	s := New()
	_, err := Update(s, companiesKey, func(c Collection[domain.Company]) Collection[domain.Company] {
		t.Fatalf("fn must not run for uncached key")
		return c
	})
	if !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
	if s.Has(companiesKey) {
		t.Fatalf("update must not create entries")
	}
}

func TestEvictAndKeys(t *testing.T) {
	s := New()
	Write(s, "b", NewCollection([]domain.Skill{}, true))
	Write(s, "a", NewCollection([]domain.Skill{}, true))
	if got := s.Keys(); !reflect.DeepEqual(got, []Key{"a", "b"}) {
		t.Fatalf("keys = %v", got)
	}
	s.Evict("a")
	if s.Has("a") {
		t.Fatalf("expected a evicted")
	}
	if got := s.Keys(); !reflect.DeepEqual(got, []Key{"b"}) {
		t.Fatalf("keys after evict = %v", got)
	}
}

func TestInvalidateMatchesTags(t *testing.T) {
	s := New()
	Write(s, companiesKey, NewCollection([]domain.Company{}, true))
	s.Provide(companiesKey, ListTag(domain.EntityCompany))
	Write(s, "jobs/list", NewCollection([]domain.Job{}, true))
	s.Provide("jobs/list", ListTag(domain.EntityJob), Tag{Type: domain.EntityCompany, ID: "c1"})

	if got := s.Invalidate(Tag{Type: domain.EntitySkill}); len(got) != 0 {
		t.Fatalf("unexpected invalidation %v", got)
	}
	if got := s.Invalidate(Tag{Type: domain.EntityCompany, ID: "c1"}); !reflect.DeepEqual(got, []Key{"jobs/list"}) {
		t.Fatalf("exact tag invalidated %v", got)
	}
	if !s.Stale("jobs/list") || s.Stale(companiesKey) {
		t.Fatalf("unexpected staleness")
	}
	if got := s.Invalidate(Tag{Type: domain.EntityCompany}); !reflect.DeepEqual(got, []Key{companiesKey, "jobs/list"}) {
		t.Fatalf("type-wide invalidation %v", got)
	}
}

func TestInvalidateAndRefetchRunsLoaders(t *testing.T) {
	s := New()
	Write(s, companiesKey, NewCollection([]domain.Company{}, true))
	s.Provide(companiesKey, ListTag(domain.EntityCompany))
	var calls atomic.Int32
	s.RegisterLoader(companiesKey, func(context.Context) error {
		calls.Add(1)
		return nil
	})
	if err := s.InvalidateAndRefetch(context.Background(), ListTag(domain.EntityCompany)); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one loader call, got %d", calls.Load())
	}

	boom := errors.New("boom")
	s.RegisterLoader(companiesKey, func(context.Context) error { return boom })
	if err := s.Refetch(context.Background(), companiesKey, "unknown"); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	s := New()
	Write(s, companiesKey, NewCollection([]domain.Company{}, false))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = Update(s, companiesKey, func(c Collection[domain.Company]) Collection[domain.Company] {
				return c.Insert(company(strconv.Itoa(i), "x"))
			})
		}(i)
	}
	wg.Wait()
	c, _ := Read[domain.Company](s, companiesKey)
	if c.Len() != 50 {
		t.Fatalf("lost updates: %d", c.Len())
	}
}
