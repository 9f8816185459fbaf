// Package core implements the job-board backend service: transactional CRUD
// for every entity, guarded by the rules engine and observed through the
// logging, metrics and tracing hooks.
package core

import (
	"context"
	"fmt"
	"time"

	"jobsdashboard/internal/infra/persistence/memory"
	"jobsdashboard/internal/observability"
	"jobsdashboard/pkg/domain"
)

type (
	// Result aliases domain.Result.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
	// ErrNotFound is returned when an id does not resolve to a record.
	ErrNotFound = domain.ErrNotFound
)

// Service exposes transactional CRUD operations over a persistent store.
type Service struct {
	store   PersistentStore
	logger  observability.Logger
	metrics observability.MetricsRecorder
	tracer  observability.Tracer
	now     func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Service) { s.logger = observability.OrNoop(l) }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used to wrap operations in spans.
func WithTracer(t observability.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the time source. Stores that stamp records with their
// own clock adopt it as well.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type clockSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  observability.NoopLogger{},
		metrics: observability.NoopMetrics{},
		tracer:  observability.NoopTracer{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cs, ok := store.(clockSetter); ok {
		now := s.now
		cs.SetNowFunc(func() time.Time { return now().UTC() })
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine installs the default rule set.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) run(ctx context.Context, op string, fn func(Transaction) error) (Result, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, op)
	res, err := s.store.RunInTransaction(ctx, fn)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
	if err != nil {
		s.logger.Warn("transaction failed", "op", op, "err", err)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Info("rule violation", "op", op, "rule", v.Rule, "severity", string(v.Severity), "entity", string(v.Entity), "id", v.EntityID, "message", v.Message)
	}
	s.logger.Debug("transaction committed", "op", op)
	return res, nil
}

func (s *Service) view(ctx context.Context, op string, fn func(TransactionView) error) error {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, op)
	err := s.store.View(ctx, fn)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, s.now().Sub(start))
	return err
}

func opName[T domain.Entity[T]](action string) string {
	var zero T
	return fmt.Sprintf("%s.%s", zero.Kind(), action)
}

// List returns every record of type T.
func List[T domain.Entity[T]](ctx context.Context, s *Service) ([]T, error) {
	var out []T
	err := s.view(ctx, opName[T]("list"), func(view TransactionView) error {
		out = domain.List[T](view)
		return nil
	})
	return out, err
}

// Get returns the record of type T identified by id.
func Get[T domain.Entity[T]](ctx context.Context, s *Service, id string) (T, error) {
	var (
		out   T
		found bool
	)
	err := s.view(ctx, opName[T]("get"), func(view TransactionView) error {
		out, found = domain.Find[T](view, id)
		if !found {
			return ErrNotFound{Entity: out.Kind(), ID: id}
		}
		return nil
	})
	return out, err
}

// Create persists a new record. Caller-supplied ids are kept; an empty id is
// assigned by the store.
func Create[T domain.Entity[T]](ctx context.Context, s *Service, v T) (T, Result, error) {
	var created T
	res, err := s.run(ctx, opName[T]("create"), func(tx Transaction) error {
		var err error
		created, err = domain.Create(tx, v)
		return err
	})
	return created, res, err
}

// Update applies mutator to the record identified by id.
func Update[T domain.Entity[T]](ctx context.Context, s *Service, id string, mutator func(*T) error) (T, Result, error) {
	var updated T
	res, err := s.run(ctx, opName[T]("update"), func(tx Transaction) error {
		var err error
		updated, err = domain.Update(tx, id, mutator)
		return err
	})
	return updated, res, err
}

// Replace overwrites the mutable fields of the record identified by id with v.
func Replace[T domain.Entity[T]](ctx context.Context, s *Service, id string, v T) (T, Result, error) {
	return Update(ctx, s, id, func(current *T) error {
		*current = v.WithBase((*current).Meta())
		return nil
	})
}

// Delete removes the record of type T identified by id.
func Delete[T domain.Entity[T]](ctx context.Context, s *Service, id string) (Result, error) {
	return s.run(ctx, opName[T]("delete"), func(tx Transaction) error {
		return domain.Delete[T](tx, id)
	})
}
