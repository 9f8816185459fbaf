package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"jobsdashboard/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	var created domain.Company
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var e error
		created, e = domain.Create(tx, domain.Company{Name: "Persist", Address: "1 Main St"})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	companies := reloaded.List(domain.EntityCompany)
	if len(companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(companies))
	}
	got, err := domain.As[domain.Company](companies[0])
	if err != nil {
		t.Fatalf("as company: %v", err)
	}
	if got.ID != created.ID || got.Address != "1 Main St" {
		t.Fatalf("unexpected reloaded company %+v", got)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreWritesEveryBucket(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := domain.Create(tx, domain.Skill{Name: "Forklift"})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != len(domain.EntityTypes()) {
		t.Fatalf("expected %d buckets, got %d", len(domain.EntityTypes()), count)
	}
}

func TestSQLiteStoreSkipsPersistOnFailedTransaction(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return domain.Delete[domain.Bank](tx, "missing")
	})
	if err == nil {
		t.Fatalf("expected not found error")
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed transaction should not persist, got %d rows", count)
	}
}
