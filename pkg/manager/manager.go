// Package manager is the mutation pipeline in front of the object store.
// Every write is validated, checked for referential integrity, committed
// durably and only then published and announced to change subscribers.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/integrity"
	"github.com/msgsight/cfgd/pkg/logging"
	"github.com/msgsight/cfgd/pkg/metrics"
	"github.com/msgsight/cfgd/pkg/notify"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
	"github.com/msgsight/cfgd/pkg/store"
	"github.com/msgsight/cfgd/pkg/validation"
)

// DefaultVersion is the API version reported in documents.
const DefaultVersion = "v1"

// Publisher receives change events after a successful commit.
type Publisher interface {
	Publish(ev notify.Event)
}

// Manager owns the configuration store and serializes every write.
type Manager struct {
	registry  *schema.Registry
	validator *validation.Validator
	checker   *integrity.Checker
	store     *store.Store
	publisher Publisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	version   string

	// mu serializes mutations with reloads.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithPublisher sets the change event sink.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithVersion sets the Version reported in documents.
func WithVersion(v string) Option {
	return func(m *Manager) {
		if v != "" {
			m.version = v
		}
	}
}

// New creates a Manager over backend. Call Reload before serving requests.
func New(reg *schema.Registry, backend store.Backend, opts ...Option) *Manager {
	m := &Manager{
		registry:  reg,
		validator: validation.New(reg),
		checker:   integrity.New(reg),
		log:       logging.Nop(),
		version:   DefaultVersion,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.store = store.New(reg, backend,
		store.WithLogger(m.log),
		store.WithCommitObserver(m.metrics.ObserveCommit),
	)
	return m
}

// Registry returns the schema registry.
func (m *Manager) Registry() *schema.Registry { return m.registry }

// Version returns the API version string.
func (m *Manager) Version() string { return m.version }

// Store returns the underlying object store.
func (m *Manager) Store() *store.Store { return m.store }

// Close closes the store and its backend.
func (m *Manager) Close() error { return m.store.Close() }

// ============================================================================
// Reload
// ============================================================================

// Reload rebuilds the in-memory store from durable state without
// re-validating it. Missing singletons are instantiated at their defaults;
// on an empty backend the seed objects are created as well. It reports
// whether the backend held no state.
func (m *Manager) Reload(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loaded, err := m.store.Load(ctx)
	if err != nil {
		return false, err
	}

	commit, err := m.store.Apply(ctx, func(tx *store.Tx) error {
		for _, t := range m.registry.Singletons() {
			if _, ok := tx.Get(t.Name, ""); !ok {
				tx.Put(&object.Object{Type: t.Name, Properties: t.Defaults()})
			}
		}
		if !loaded {
			for _, o := range schema.SeedObjects() {
				t, ok := m.registry.Lookup(o.Type)
				if !ok {
					return fmt.Errorf("seed object of unknown type %s", o.Type)
				}
				props, err := m.validator.Validate(t, o.Name, o.Properties, nil)
				if err != nil {
					return fmt.Errorf("seed %s/%s: %w", o.Type, o.Name, err)
				}
				tx.Put(&object.Object{Type: o.Type, Name: o.Name, Properties: props})
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed configuration: %w", err)
	}

	snap := m.store.Snapshot()
	m.updateObjectCounts(snap)
	m.publish(notify.NewEvent(notify.OpReload, snap.Revision(), "", "", nil))
	m.log.Info("configuration loaded",
		"backend", m.store.Backend().Name(),
		logging.AuditKey, snap.Revision(),
		"objects", snap.Len(),
		"seeded", len(commit.Changes),
	)
	return !loaded, nil
}

// ============================================================================
// Writes
// ============================================================================

// Result is the outcome of an applied batch.
type Result struct {
	Revision uint64
	// Objects holds the effective merged state of every object in the batch,
	// in batch order.
	Objects []*object.Object
}

type mode int

const (
	upsert mode = iota
	createOnly
	updateOnly
)

// Apply validates and commits a batch as one unit. Every mutation is
// validated against the working state left by the ones before it; references
// are checked once all mutations are in place, so objects created in the
// same batch may refer to each other. Nothing is stored unless the whole
// batch succeeds.
func (m *Manager) Apply(ctx context.Context, batch Batch) (*Result, error) {
	return m.apply(ctx, batch, upsert)
}

// Create stores a new collection object.
func (m *Manager) Create(ctx context.Context, objectType, name string, props object.Properties) (*object.Object, error) {
	return m.applyOne(ctx, objectType, name, props, createOnly)
}

// Update merges props into an existing object.
func (m *Manager) Update(ctx context.Context, objectType, name string, props object.Properties) (*object.Object, error) {
	return m.applyOne(ctx, objectType, name, props, updateOnly)
}

func (m *Manager) applyOne(ctx context.Context, objectType, name string, props object.Properties, md mode) (*object.Object, error) {
	t, ok := m.registry.Lookup(objectType)
	if !ok {
		return nil, cfgerr.InvalidShape(quote(objectType))
	}
	if t.IsSingleton() {
		if md == createOnly {
			return nil, cfgerr.Unsupported(objectType)
		}
		name = ""
	}
	res, err := m.apply(ctx, Batch{{Type: t, Name: name, Properties: props}}, md)
	if err != nil {
		return nil, err
	}
	return res.Objects[0], nil
}

func (m *Manager) apply(ctx context.Context, batch Batch, md mode) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make(map[string]notify.Operation, len(batch))
	var current Mutation
	commit, err := m.store.Apply(ctx, func(tx *store.Tx) error {
		for _, mu := range batch {
			current = mu
			name := mu.Name
			if mu.Type.IsSingleton() {
				name = ""
			}
			prev, exists := tx.Get(mu.Type.Name, name)
			switch {
			case exists && md == createOnly:
				return cfgerr.AlreadyExists(mu.Type.Name, name)
			case !exists && md == updateOnly:
				return cfgerr.NotFound(mu.Type.Name, name)
			}

			var existing object.Properties
			op := notify.OpCreate
			if exists {
				existing = prev.Properties
				op = notify.OpUpdate
			}
			merged, err := m.validator.Validate(mu.Type, name, mu.Properties, existing)
			if err != nil {
				return err
			}
			if exists && merged.Equal(existing) {
				continue
			}
			tx.Put(&object.Object{Type: mu.Type.Name, Name: name, Properties: merged})
			ops[object.Key(mu.Type.Name, name)] = op
		}
		for _, mu := range batch {
			current = mu
			o, _ := tx.Get(mu.Type.Name, nameOf(mu))
			if err := m.checker.CheckReferences(tx, mu.Type.Name, o.Properties); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var typeName string
		if current.Type != nil {
			typeName = current.Type.Name
		}
		m.metrics.ObserveMutation(typeName, opLabel(md), err)
		m.log.Warn("configuration change rejected", "type", typeName, "name", current.Name, "error", err)
		return nil, err
	}

	res := &Result{Revision: commit.Revision}
	snap := commit.Snapshot
	for _, mu := range batch {
		o, _ := snap.Get(mu.Type.Name, nameOf(mu))
		res.Objects = append(res.Objects, o.Clone())
	}
	for _, ch := range commit.Changes {
		op := ops[ch.Object.Key()]
		m.metrics.ObserveMutation(ch.Object.Type, string(op), nil)
		m.log.Info("configuration changed", "type", ch.Object.Type, "name", ch.Object.Name, "operation", op, logging.AuditKey, commit.Revision)
		m.publish(notify.NewEvent(op, commit.Revision, ch.Object.Type, ch.Object.Name, ch.Object.Properties.Clone()))
	}
	if len(commit.Changes) > 0 {
		m.updateObjectCounts(snap)
	}
	return res, nil
}

// Delete removes a collection object. Singletons cannot be deleted and
// objects that are still referenced are left in place.
func (m *Manager) Delete(ctx context.Context, objectType, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	commit, err := m.store.Apply(ctx, func(tx *store.Tx) error {
		return m.store.DeleteTx(tx, objectType, name)
	})
	m.metrics.ObserveMutation(objectType, string(notify.OpDelete), err)
	if err != nil {
		m.log.Warn("configuration delete rejected", "type", objectType, "name", name, "error", err)
		return err
	}
	m.log.Info("configuration changed", "type", objectType, "name", name, "operation", notify.OpDelete, logging.AuditKey, commit.Revision)
	m.publish(notify.NewEvent(notify.OpDelete, commit.Revision, objectType, name, nil))
	m.updateObjectCounts(commit.Snapshot)
	return nil
}

// ============================================================================
// Reads
// ============================================================================

// Get returns a copy of one object. Singletons are addressed with an empty
// name.
func (m *Manager) Get(objectType, name string) (*object.Object, error) {
	return m.store.Get(objectType, name)
}

// List returns copies of every object of a type, sorted by name.
func (m *Manager) List(objectType string) ([]*object.Object, error) {
	return m.store.List(objectType)
}

// Snapshot returns the current published snapshot.
func (m *Manager) Snapshot() *store.Snapshot { return m.store.Snapshot() }

// Revision returns the current revision.
func (m *Manager) Revision() uint64 { return m.store.Snapshot().Revision() }

// ============================================================================
// Helpers
// ============================================================================

func nameOf(mu Mutation) string {
	if mu.Type.IsSingleton() {
		return ""
	}
	return mu.Name
}

func opLabel(md mode) string {
	switch md {
	case createOnly:
		return string(notify.OpCreate)
	case updateOnly:
		return string(notify.OpUpdate)
	default:
		return "apply"
	}
}

func (m *Manager) publish(ev notify.Event) {
	if m.publisher != nil {
		m.publisher.Publish(ev)
	}
}

func (m *Manager) updateObjectCounts(snap *store.Snapshot) {
	if m.metrics == nil {
		return
	}
	counts := make(map[string]int)
	for _, t := range m.registry.Types() {
		counts[t.Name] = snap.Count(t.Name)
	}
	m.metrics.SetObjectCounts(counts)
}
