package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"jobsdashboard/internal/blob"
	"jobsdashboard/internal/cache"
	"jobsdashboard/internal/core"
	"jobsdashboard/internal/observability"
	"jobsdashboard/internal/optimistic"
	"jobsdashboard/pkg/domain"
)

// ArchivePrefix is the blob key prefix for archived cache lists.
const ArchivePrefix = "cache/"

// ArchiveKey returns the blob key holding the archived list of kind.
func ArchiveKey(kind domain.EntityType) string {
	return ArchivePrefix + kind.Resource() + ".json"
}

// Remotes bundles one remote per entity type.
type Remotes struct {
	Companies   Remote[domain.Company]
	Departments Remote[domain.Department]
	Skills      Remote[domain.Skill]
	Banks       Remote[domain.Bank]
	Jobs        Remote[domain.Job]
	Cities      Remote[domain.City]
	States      Remote[domain.State]
	Shifts      Remote[domain.Shift]
	Onboarding  Remote[domain.Onboarding]
}

// ServiceRemotes returns in-process remotes over svc.
func ServiceRemotes(svc *core.Service) Remotes {
	return Remotes{
		Companies:   NewServiceRemote[domain.Company](svc),
		Departments: NewServiceRemote[domain.Department](svc),
		Skills:      NewServiceRemote[domain.Skill](svc),
		Banks:       NewServiceRemote[domain.Bank](svc),
		Jobs:        NewServiceRemote[domain.Job](svc),
		Cities:      NewServiceRemote[domain.City](svc),
		States:      NewServiceRemote[domain.State](svc),
		Shifts:      NewServiceRemote[domain.Shift](svc),
		Onboarding:  NewServiceRemote[domain.Onboarding](svc),
	}
}

// HTTPRemotes returns REST remotes rooted at baseURL sharing one client.
func HTTPRemotes(baseURL string, client *http.Client, timeout time.Duration) (Remotes, error) {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	var (
		r   Remotes
		err error
	)
	if r.Companies, err = NewHTTPRemote[domain.Company](baseURL, client, timeout); err != nil {
		return Remotes{}, err
	}
	// The remaining remotes share the base URL validated above.
	r.Departments, _ = NewHTTPRemote[domain.Department](baseURL, client, timeout)
	r.Skills, _ = NewHTTPRemote[domain.Skill](baseURL, client, timeout)
	r.Banks, _ = NewHTTPRemote[domain.Bank](baseURL, client, timeout)
	r.Jobs, _ = NewHTTPRemote[domain.Job](baseURL, client, timeout)
	r.Cities, _ = NewHTTPRemote[domain.City](baseURL, client, timeout)
	r.States, _ = NewHTTPRemote[domain.State](baseURL, client, timeout)
	r.Shifts, _ = NewHTTPRemote[domain.Shift](baseURL, client, timeout)
	r.Onboarding, _ = NewHTTPRemote[domain.Onboarding](baseURL, client, timeout)
	return r, nil
}

type dashboardOptions struct {
	logger  observability.Logger
	metrics observability.MetricsRecorder
	policy  optimistic.RollbackPolicy
	blobs   blob.Store
	cache   []cache.Option
}

// DashboardOption configures a Dashboard.
type DashboardOption func(*dashboardOptions)

// WithLogger sets the logger shared by the cache, slices and coordinators.
func WithLogger(l observability.Logger) DashboardOption {
	return func(o *dashboardOptions) { o.logger = observability.OrNoop(l) }
}

// WithMetrics sets the recorder notified when optimistic mutations settle.
func WithMetrics(m observability.MetricsRecorder) DashboardOption {
	return func(o *dashboardOptions) { o.metrics = m }
}

// WithRollbackPolicy selects the rollback policy of every optimistic slice.
func WithRollbackPolicy(p optimistic.RollbackPolicy) DashboardOption {
	return func(o *dashboardOptions) { o.policy = p }
}

// WithBlobStore enables Archive and Restore.
func WithBlobStore(s blob.Store) DashboardOption {
	return func(o *dashboardOptions) { o.blobs = s }
}

// WithCacheOptions forwards options to the shared cache store.
func WithCacheOptions(opts ...cache.Option) DashboardOption {
	return func(o *dashboardOptions) { o.cache = append(o.cache, opts...) }
}

// Dashboard wires one slice per entity type over a shared cache. Companies,
// departments, skills and banks mutate optimistically and stay sorted by
// name; the remaining lists invalidate and refetch after each write.
type Dashboard struct {
	Store *cache.Store

	Companies   *Slice[domain.Company]
	Departments *Slice[domain.Department]
	Skills      *Slice[domain.Skill]
	Banks       *Slice[domain.Bank]
	Jobs        *Slice[domain.Job]
	Cities      *Slice[domain.City]
	States      *Slice[domain.State]
	Shifts      *Slice[domain.Shift]
	Onboarding  *Slice[domain.Onboarding]

	logger observability.Logger
	blobs  blob.Store
	lists  []list
}

// list is the type-erased view of a slice used for fan-out operations.
type list struct {
	kind    domain.EntityType
	load    func(ctx context.Context) (int, error)
	wait    func()
	archive func(ctx context.Context, s blob.Store) (bool, error)
	restore func(ctx context.Context, s blob.Store) (bool, error)
}

// NewDashboard builds the slices over remotes.
func NewDashboard(remotes Remotes, opts ...DashboardOption) *Dashboard {
	o := dashboardOptions{logger: observability.NoopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	store := cache.New(append([]cache.Option{cache.WithLogger(o.logger)}, o.cache...)...)
	d := &Dashboard{Store: store, logger: o.logger, blobs: o.blobs}

	optimisticOpts := []SliceOption{
		WithMode(Optimistic),
		WithOrdered(true),
		WithSliceLogger(o.logger),
		WithCoordinatorOptions(
			optimistic.WithRollbackPolicy(o.policy),
			optimistic.WithLogger(o.logger),
			optimistic.WithMetrics(o.metrics),
		),
	}
	invalidateOpts := []SliceOption{WithMode(Invalidate), WithSliceLogger(o.logger)}

	d.Companies = register(d, NewSlice(store, remotes.Companies, optimisticOpts...))
	d.Departments = register(d, NewSlice(store, remotes.Departments, optimisticOpts...))
	d.Skills = register(d, NewSlice(store, remotes.Skills, optimisticOpts...))
	d.Banks = register(d, NewSlice(store, remotes.Banks, optimisticOpts...))
	d.Jobs = register(d, NewSlice(store, remotes.Jobs, invalidateOpts...))
	d.Cities = register(d, NewSlice(store, remotes.Cities, invalidateOpts...))
	d.States = register(d, NewSlice(store, remotes.States, invalidateOpts...))
	d.Shifts = register(d, NewSlice(store, remotes.Shifts, invalidateOpts...))
	d.Onboarding = register(d, NewSlice(store, remotes.Onboarding, invalidateOpts...))
	return d
}

func register[T domain.Entity[T]](d *Dashboard, s *Slice[T]) *Slice[T] {
	d.lists = append(d.lists, list{
		kind: s.Kind(),
		load: func(ctx context.Context) (int, error) {
			c, err := s.Load(ctx)
			return c.Len(), err
		},
		wait: s.Wait,
		archive: func(ctx context.Context, store blob.Store) (bool, error) {
			c, err := s.Collection()
			if err != nil {
				return false, nil
			}
			items := make([]T, 0, c.Len())
			for _, item := range c.Items() {
				// Unconfirmed records are never archived.
				if !domain.IsTemporaryID(item.RecordID()) {
					items = append(items, item)
				}
			}
			meta := map[string]string{"kind": string(s.Kind()), "count": strconv.Itoa(len(items))}
			if _, err := blob.WriteJSON(ctx, store, ArchiveKey(s.Kind()), items, meta); err != nil {
				return false, fmt.Errorf("archive %s: %w", s.Kind(), err)
			}
			return true, nil
		},
		restore: func(ctx context.Context, store blob.Store) (bool, error) {
			var items []T
			found, err := blob.ReadJSON(ctx, store, ArchiveKey(s.Kind()), &items)
			if err != nil || !found {
				return false, err
			}
			cache.Write(d.Store, s.Key(), cache.NewCollection(items, s.Ordered()))
			d.Store.Provide(s.Key(), s.query.Tags()...)
			// Archived data is shown immediately but refetched on next Load.
			d.Store.Invalidate(s.query.Tags()...)
			return true, nil
		},
	})
	return s
}

// LoadAll fetches every list concurrently and returns the record count per kind.
func (d *Dashboard) LoadAll(ctx context.Context) (map[domain.EntityType]int, error) {
	counts := make([]int, len(d.lists))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range d.lists {
		g.Go(func() error {
			n, err := l.load(gctx)
			if err != nil {
				return fmt.Errorf("load %s: %w", l.kind, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[domain.EntityType]int, len(d.lists))
	for i, l := range d.lists {
		out[l.kind] = counts[i]
	}
	return out, nil
}

// Wait drains in-flight optimistic mutations on every slice.
func (d *Dashboard) Wait() {
	for _, l := range d.lists {
		l.wait()
	}
}

// Archive writes every cached list to the blob store and returns the kinds
// written. Uncached lists are skipped.
func (d *Dashboard) Archive(ctx context.Context) ([]domain.EntityType, error) {
	if d.blobs == nil {
		return nil, fmt.Errorf("archive: %w", blob.ErrUnsupported)
	}
	var written []domain.EntityType
	for _, l := range d.lists {
		ok, err := l.archive(ctx, d.blobs)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, l.kind)
		}
	}
	d.logger.Info("cache archived", "lists", len(written))
	return written, nil
}

// Restore seeds the cache from archived lists and marks them stale so the
// next Load refetches. It returns the kinds restored.
func (d *Dashboard) Restore(ctx context.Context) ([]domain.EntityType, error) {
	if d.blobs == nil {
		return nil, fmt.Errorf("restore: %w", blob.ErrUnsupported)
	}
	var restored []domain.EntityType
	for _, l := range d.lists {
		ok, err := l.restore(ctx, d.blobs)
		if err != nil {
			return restored, fmt.Errorf("restore %s: %w", l.kind, err)
		}
		if ok {
			restored = append(restored, l.kind)
		}
	}
	d.logger.Info("cache restored", "lists", len(restored))
	return restored, nil
}
