package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"jobsdashboard/pkg/domain"
)

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()

	var created domain.Company
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.Find(domain.EntityCompany, "missing"); ok {
			t.Fatalf("expected missing company lookup")
		}
		var err error
		created, err = domain.Create(tx, domain.Company{Name: "Acme"})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if len(tx.Snapshot().List(domain.EntityCompany)) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if !created.CreatedAt.Equal(fixed) || !created.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected timestamps from store clock, got %+v", created.Base)
	}
	if len(store.List(domain.EntityCompany)) != 1 {
		t.Fatalf("expected persisted company")
	}

	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.List(domain.EntityCompany)) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.List(domain.EntityCompany)) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestStoreRuleViolationDiscardsTransaction(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := domain.Create(tx, domain.Skill{Name: "Go"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.List(domain.EntitySkill)) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "blocked"}}}, nil
}

func TestStoreFunctionErrorRollsBack(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := domain.Create(tx, domain.Bank{Name: "First"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(store.List(domain.EntityBank)) != 0 {
		t.Fatalf("failed transaction leaked state")
	}
}

func TestStoreUpdatePreservesIdentityAndCreation(t *testing.T) {
	store := NewStore(nil)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return clock })
	ctx := context.Background()

	var job domain.Job
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		job, err = domain.Create(tx, domain.Job{Title: "Welder", SkillIDs: []string{"s1"}})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	clock = clock.Add(time.Hour)
	var updated domain.Job
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		updated, err = domain.Update(tx, job.ID, func(j *domain.Job) error {
			j.ID = "hijack"
			j.Title = "Senior Welder"
			j.SkillIDs[0] = "s2"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != job.ID || updated.Title != "Senior Welder" {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if !updated.CreatedAt.Equal(job.CreatedAt) || !updated.UpdatedAt.Equal(clock) {
		t.Fatalf("timestamps not maintained: %+v", updated.Base)
	}
	if _, ok := domain.Find[domain.Job](storeView(t, store), "hijack"); ok {
		t.Fatalf("mutator must not change identity")
	}
}

func TestStoreDeleteAndMissingRecords(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var dept domain.Department
	_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		dept, err = domain.Create(tx, domain.Department{Name: "Ops"})
		return err
	})

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return domain.Delete[domain.Department](tx, "missing")
	})
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.Entity != domain.EntityDepartment {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := domain.Update(tx, "missing", func(*domain.Department) error { return nil })
		return err
	})
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return domain.Delete[domain.Department](tx, dept.ID)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.List(domain.EntityDepartment)) != 0 {
		t.Fatalf("expected department removed")
	}
}

func TestStoreRejectsDuplicateAndTemporaryIDs(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := domain.Create(tx, domain.Skill{Base: domain.Base{ID: "s1"}, Name: "Go"}); err != nil {
			return err
		}
		if _, err := domain.Create(tx, domain.Skill{Base: domain.Base{ID: "s1"}, Name: "Go"}); err == nil {
			t.Fatalf("expected duplicate id error")
		}
		if _, err := domain.Create(tx, domain.Skill{Base: domain.Base{ID: "temp-1-1"}, Name: "Rust"}); err == nil {
			t.Fatalf("expected temporary id rejection")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestViewIsIsolatedFromLaterWrites(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := domain.Create(tx, domain.State{Name: "Texas"})
		return err
	})
	err := store.View(ctx, func(view domain.TransactionView) error {
		_, _ = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := domain.Create(tx, domain.State{Name: "Ohio"})
			return err
		})
		if got := len(domain.List[domain.State](view)); got != 1 {
			t.Fatalf("view observed concurrent write: %d states", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSnapshotBucketsRoundTripThroughJSON(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		st, err := domain.Create(tx, domain.State{Name: "Texas"})
		if err != nil {
			return err
		}
		_, err = domain.Create(tx, domain.City{Name: "Austin", StateID: st.ID})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	exported := store.ExportState()

	var decoded Snapshot
	for _, bucket := range Buckets() {
		payload, err := exported.EncodeBucket(bucket)
		if err != nil {
			t.Fatalf("encode %s: %v", bucket, err)
		}
		if err := decoded.DecodeBucket(bucket, payload); err != nil {
			t.Fatalf("decode %s: %v", bucket, err)
		}
	}
	if decoded.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", decoded.Len())
	}
	if err := decoded.DecodeBucket("retired", []byte(`{}`)); err != nil {
		t.Fatalf("unknown buckets must be ignored: %v", err)
	}
	if _, err := exported.EncodeBucket("retired"); err == nil {
		t.Fatalf("expected encode error for unknown bucket")
	}
	if err := decoded.DecodeBucket("cities", []byte(`{`)); err == nil {
		t.Fatalf("expected decode error for malformed payload")
	}

	raw, err := json.Marshal(exported)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fromJSON Snapshot
	if err := json.Unmarshal(raw, &fromJSON); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	other := NewStore(nil)
	other.ImportState(fromJSON)
	cities := other.List(domain.EntityCity)
	if len(cities) != 1 || cities[0].DisplayName() != "Austin" {
		t.Fatalf("unexpected cities %+v", cities)
	}
	if BucketName(domain.EntityOnboarding) != "onboarding" {
		t.Fatalf("unexpected bucket name")
	}
}

func storeView(t *testing.T, s *Store) domain.TransactionView {
	t.Helper()
	var out domain.TransactionView
	if err := s.View(context.Background(), func(v domain.TransactionView) error {
		out = v
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	return out
}
