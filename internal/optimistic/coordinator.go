// Package optimistic applies speculative edits to cached collections while
// the matching remote mutation is in flight, then confirms them with server
// data or rolls them back on failure.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jobsdashboard/internal/cache"
	"jobsdashboard/internal/observability"
	"jobsdashboard/pkg/domain"
)

// RemoteCall performs the server-side half of a mutation. Only success or
// failure matters to the coordinator; error content is not interpreted.
type RemoteCall[R any] func(ctx context.Context) (R, error)

// RollbackPolicy selects how a failed mutation is undone.
type RollbackPolicy int

const (
	// RollbackSnapshot restores the whole collection captured at initiation.
	// Overlapping mutations on one key can lose a sibling's effect.
	RollbackSnapshot RollbackPolicy = iota
	// RollbackInverse undoes only this mutation's change.
	RollbackInverse
)

func (p RollbackPolicy) String() string {
	if p == RollbackInverse {
		return "inverse"
	}
	return "snapshot"
}

// ParseRollbackPolicy maps "snapshot" or "inverse" to a policy. The empty
// string selects RollbackSnapshot.
func ParseRollbackPolicy(s string) (RollbackPolicy, error) {
	switch s {
	case "", "snapshot":
		return RollbackSnapshot, nil
	case "inverse":
		return RollbackInverse, nil
	default:
		return RollbackSnapshot, fmt.Errorf("unknown rollback policy %q", s)
	}
}

type options struct {
	policy  RollbackPolicy
	ids     *TempIDs
	logger  observability.Logger
	metrics observability.MetricsRecorder
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*options)

// WithRollbackPolicy selects the rollback strategy.
func WithRollbackPolicy(p RollbackPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithTempIDs overrides the temporary identifier generator.
func WithTempIDs(ids *TempIDs) Option {
	return func(o *options) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithLogger sets the coordinator logger.
func WithLogger(l observability.Logger) Option {
	return func(o *options) { o.logger = observability.OrNoop(l) }
}

// WithMetrics sets the recorder notified when mutations settle.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock overrides the time source used for settle latency.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Coordinator applies optimistic mutations to collections of T held in a
// shared cache store. The store is the only write path it uses.
type Coordinator[T domain.Entity[T]] struct {
	store *cache.Store
	opts  options
	wg    sync.WaitGroup

	mu       sync.Mutex
	inflight int
	// settled maps temporary ids of finished inserts to their outcome. Entries
	// live while any mutation is in flight, since only in-flight snapshots can
	// still hold those ids.
	settled map[string]insertOutcome[T]
}

type insertOutcome[T domain.Entity[T]] struct {
	server    T
	confirmed bool
}

// New returns a coordinator writing to store.
func New[T domain.Entity[T]](store *cache.Store, opts ...Option) *Coordinator[T] {
	o := options{
		ids:     sharedTempIDs,
		logger:  observability.NoopLogger{},
		metrics: observability.NoopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator[T]{store: store, opts: o, settled: map[string]insertOutcome[T]{}}
}

// Policy returns the configured rollback policy.
func (c *Coordinator[T]) Policy() RollbackPolicy { return c.opts.policy }

// Wait blocks until every mutation started so far has settled.
func (c *Coordinator[T]) Wait() { c.wg.Wait() }

// pending carries what a mutation needs to confirm or undo itself.
type pending[T domain.Entity[T]] struct {
	snapshot cache.Collection[T]
	inverse  func(cache.Collection[T]) cache.Collection[T]
	confirm  func(cache.Collection[T], T) cache.Collection[T]
}

// ApplyInsert inserts draft under a temporary identifier, then creates it
// remotely. On success the temporary record is replaced by the server record;
// on failure the collection is restored.
func (c *Coordinator[T]) ApplyInsert(ctx context.Context, key cache.Key, draft T, call RemoteCall[T]) *Mutation[T] {
	tempID := c.opts.ids.Next()
	speculative := domain.WithID(draft, tempID)
	m := newMutation[T](KindInsert, key, tempID)
	m.tempID = tempID

	snapshot, err := cache.Update(c.store, key, func(col cache.Collection[T]) cache.Collection[T] {
		return col.Insert(speculative)
	})
	m.applied = err == nil
	c.logSpeculation(m, err)

	p := pending[T]{
		snapshot: snapshot,
		inverse: func(col cache.Collection[T]) cache.Collection[T] {
			next, _, _, _ := col.Remove(tempID)
			return next
		},
		confirm: func(col cache.Collection[T], server T) cache.Collection[T] {
			serverID := server.RecordID()
			if serverID != tempID && col.IndexOf(serverID) >= 0 {
				next, _, _, _ := col.Remove(tempID)
				next, _ = next.Replace(serverID, server)
				return next
			}
			if next, ok := col.Replace(tempID, server); ok {
				return next
			}
			return col.Insert(server)
		},
	}
	c.launch(ctx, m, p, call)
	return m
}

// ApplyUpdate patches the record identified by id in place, then updates it
// remotely. A record absent from the cache makes the speculative step a no-op.
func (c *Coordinator[T]) ApplyUpdate(ctx context.Context, key cache.Key, id string, patch func(*T), call RemoteCall[T]) *Mutation[T] {
	m := newMutation[T](KindUpdate, key, id)

	var (
		before T
		found  bool
	)
	snapshot, err := cache.Update(c.store, key, func(col cache.Collection[T]) cache.Collection[T] {
		before, found = col.Find(id)
		next, _ := col.Patch(id, patch)
		return next
	})
	m.applied = err == nil && found
	c.logSpeculation(m, err)

	p := pending[T]{
		snapshot: snapshot,
		inverse: func(col cache.Collection[T]) cache.Collection[T] {
			if !found {
				return col
			}
			next, _ := col.Replace(id, before)
			return next
		},
		confirm: func(col cache.Collection[T], server T) cache.Collection[T] {
			next, _ := col.Replace(id, server)
			return next
		},
	}
	c.launch(ctx, m, p, call)
	return m
}

// ApplyDelete removes the record identified by id immediately, then deletes it
// remotely. On failure the record reappears.
func (c *Coordinator[T]) ApplyDelete(ctx context.Context, key cache.Key, id string, call RemoteCall[struct{}]) *Mutation[T] {
	m := newMutation[T](KindDelete, key, id)

	var (
		removed T
		index   = -1
		found   bool
	)
	snapshot, err := cache.Update(c.store, key, func(col cache.Collection[T]) cache.Collection[T] {
		next, rec, i, ok := col.Remove(id)
		removed, index, found = rec, i, ok
		return next
	})
	m.applied = err == nil && found
	c.logSpeculation(m, err)

	p := pending[T]{
		snapshot: snapshot,
		inverse: func(col cache.Collection[T]) cache.Collection[T] {
			if !found || col.IndexOf(id) >= 0 {
				return col
			}
			return col.InsertAt(index, removed)
		},
		confirm: func(col cache.Collection[T], _ T) cache.Collection[T] {
			return col
		},
	}
	c.launch(ctx, m, p, func(ctx context.Context) (T, error) {
		var zero T
		_, err := call(ctx)
		return zero, err
	})
	return m
}

func (c *Coordinator[T]) logSpeculation(m *Mutation[T], err error) {
	switch {
	case errors.Is(err, cache.ErrNotCached):
		c.opts.logger.Debug("optimistic mutation on uncached query", "kind", string(m.kind), "key", string(m.key))
	case err != nil:
		c.opts.logger.Error("optimistic mutation skipped", "kind", string(m.kind), "key", string(m.key), "err", err)
	default:
		c.opts.logger.Debug("optimistic mutation applied", "kind", string(m.kind), "key", string(m.key), "id", m.targetID, "applied", m.applied)
	}
}

// launch runs the remote call on its own goroutine. The call is detached from
// ctx cancellation so the mutation always settles.
func (c *Coordinator[T]) launch(ctx context.Context, m *Mutation[T], p pending[T], call RemoteCall[T]) {
	callCtx := context.WithoutCancel(ctx)
	started := c.opts.now()
	c.wg.Add(1)
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		defer c.release()
		result, err := call(callCtx)
		if m.kind == KindInsert {
			c.recordInsert(m.tempID, result, err == nil)
		}
		if err != nil {
			c.rollback(m, p)
			var zero T
			m.settle(RolledBack, zero, err)
			c.opts.logger.Warn("optimistic mutation rolled back", "kind", string(m.kind), "key", string(m.key), "id", m.targetID, "err", err)
		} else {
			c.confirm(m, p, result)
			m.settle(Confirmed, result, nil)
			c.opts.logger.Debug("optimistic mutation confirmed", "kind", string(m.kind), "key", string(m.key), "id", result.RecordID())
		}
		var zero T
		c.opts.metrics.Observe(callCtx, string(zero.Kind())+"."+string(m.kind), err == nil, c.opts.now().Sub(started))
	}()
}

func (c *Coordinator[T]) confirm(m *Mutation[T], p pending[T], server T) {
	if !m.applied && m.kind != KindInsert {
		return
	}
	_, err := cache.Update(c.store, m.key, func(col cache.Collection[T]) cache.Collection[T] {
		return p.confirm(col, server)
	})
	if err != nil && !errors.Is(err, cache.ErrNotCached) {
		c.opts.logger.Error("optimistic confirm failed", "key", string(m.key), "err", err)
	}
}

func (c *Coordinator[T]) rollback(m *Mutation[T], p pending[T]) {
	if !m.applied {
		return
	}
	restore := p.inverse
	if c.opts.policy == RollbackSnapshot {
		restore = func(cache.Collection[T]) cache.Collection[T] { return c.reconcile(p.snapshot) }
	}
	if _, err := cache.Update(c.store, m.key, restore); err != nil && !errors.Is(err, cache.ErrNotCached) {
		c.opts.logger.Error("optimistic rollback failed", "key", string(m.key), "err", err)
	}
}

func (c *Coordinator[T]) recordInsert(tempID string, server T, confirmed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settled[tempID] = insertOutcome[T]{server: server, confirmed: confirmed}
}

func (c *Coordinator[T]) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		clear(c.settled)
	}
}

// reconcile resolves temporary records in a restored snapshot whose inserts
// have already settled: confirmed ones become the server record, failed ones
// are dropped. Records of inserts still in flight are kept.
func (c *Coordinator[T]) reconcile(col cache.Collection[T]) cache.Collection[T] {
	if !col.HasTemporary() {
		return col
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range col.IDs() {
		out, ok := c.settled[id]
		if !ok {
			continue
		}
		if !out.confirmed || col.IndexOf(out.server.RecordID()) >= 0 {
			col, _, _, _ = col.Remove(id)
			continue
		}
		col, _ = col.Replace(id, out.server)
	}
	return col
}
