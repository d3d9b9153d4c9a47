package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/integrity"
	"github.com/msgsight/cfgd/pkg/logging"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/schema"
)

// CommitObserver is told about every backend commit attempt.
type CommitObserver func(backend string, elapsed time.Duration, err error)

// Store owns the canonical configuration objects.
type Store struct {
	registry *schema.Registry
	checker  *integrity.Checker
	backend  Backend
	observer CommitObserver
	log      *slog.Logger

	// mu serializes writers; readers only load current.
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	closed  atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCommitObserver registers a commit observer.
func WithCommitObserver(fn CommitObserver) Option {
	return func(s *Store) { s.observer = fn }
}

// New creates a Store over backend. The store starts empty; call Load to
// read durable state.
func New(registry *schema.Registry, backend Backend, opts ...Option) *Store {
	s := &Store{
		registry: registry,
		checker:  integrity.New(registry),
		backend:  backend,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(emptySnapshot())
	return s
}

// Backend returns the durable backend.
func (s *Store) Backend() Backend { return s.backend }

// Load replaces the in-memory state with the backend's last committed
// snapshot. It reports false when the backend holds no state, in which case
// the store is reset to empty. No validation is applied.
func (s *Store) Load(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return false, ErrClosed
	}
	snap, err := s.backend.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load from %s backend: %w", s.backend.Name(), err)
	}
	if snap == nil {
		s.current.Store(emptySnapshot())
		return false, nil
	}
	s.current.Store(snap)
	s.log.Debug("loaded configuration", "backend", s.backend.Name(), "revision", snap.Revision(), "objects", snap.Len())
	return true, nil
}

// Snapshot returns the current published snapshot.
func (s *Store) Snapshot() *Snapshot { return s.current.Load() }

// Get returns a copy of one object.
func (s *Store) Get(objectType, name string) (*object.Object, error) {
	if _, ok := s.registry.Lookup(objectType); !ok {
		return nil, cfgerr.InvalidShape(`"` + objectType + `"`)
	}
	o, ok := s.Snapshot().Get(objectType, name)
	if !ok {
		return nil, cfgerr.NotFound(objectType, name)
	}
	return o.Clone(), nil
}

// List returns copies of every object of a type, sorted by name.
func (s *Store) List(objectType string) ([]*object.Object, error) {
	if _, ok := s.registry.Lookup(objectType); !ok {
		return nil, cfgerr.InvalidShape(`"` + objectType + `"`)
	}
	objs := s.Snapshot().List(objectType)
	out := make([]*object.Object, len(objs))
	for i, o := range objs {
		out[i] = o.Clone()
	}
	return out, nil
}

// Apply runs fn against a working copy of the current snapshot, commits the
// recorded changes and publishes the result. If fn fails or the commit
// fails nothing is published. A transaction without changes commits
// nothing.
func (s *Store) Apply(ctx context.Context, fn func(tx *Tx) error) (*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, cfgerr.Internal(ErrClosed)
	}

	base := s.current.Load()
	tx := base.begin()
	if err := fn(tx); err != nil {
		return nil, err
	}
	if len(tx.changes) == 0 {
		return &Commit{Revision: base.revision, Snapshot: base}, nil
	}

	next := tx.finish(base.revision + 1)
	c := &Commit{Revision: next.revision, Changes: tx.changes, Snapshot: next}

	start := time.Now()
	err := s.backend.Commit(ctx, c)
	if s.observer != nil {
		s.observer(s.backend.Name(), time.Since(start), err)
	}
	if err != nil {
		s.log.Error("commit failed", "backend", s.backend.Name(), "revision", c.Revision, "error", err)
		return nil, cfgerr.Internal(fmt.Errorf("commit revision %d: %w", c.Revision, err))
	}

	s.current.Store(next)
	return c, nil
}

// Create stores a new collection object.
func (s *Store) Create(ctx context.Context, o *object.Object) error {
	t, err := s.lookup(o.Type)
	if err != nil {
		return err
	}
	if t.IsSingleton() {
		return cfgerr.Unsupported(o.Type)
	}
	_, err = s.Apply(ctx, func(tx *Tx) error {
		if _, exists := tx.Get(o.Type, o.Name); exists {
			return cfgerr.AlreadyExists(o.Type, o.Name)
		}
		tx.Put(o.Clone())
		return nil
	})
	return err
}

// Update replaces an existing object.
func (s *Store) Update(ctx context.Context, o *object.Object) error {
	if _, err := s.lookup(o.Type); err != nil {
		return err
	}
	_, err := s.Apply(ctx, func(tx *Tx) error {
		if _, exists := tx.Get(o.Type, o.Name); !exists {
			return cfgerr.NotFound(o.Type, o.Name)
		}
		tx.Put(o.Clone())
		return nil
	})
	return err
}

// Delete removes a collection object that nothing references.
func (s *Store) Delete(ctx context.Context, objectType, name string) error {
	_, err := s.Apply(ctx, func(tx *Tx) error {
		return s.DeleteTx(tx, objectType, name)
	})
	return err
}

// DeleteTx removes an object inside a running transaction.
func (s *Store) DeleteTx(tx *Tx, objectType, name string) error {
	t, err := s.lookup(objectType)
	if err != nil {
		return err
	}
	if t.IsSingleton() {
		return cfgerr.Unsupported(objectType)
	}
	if _, exists := tx.Get(objectType, name); !exists {
		return cfgerr.NotFound(objectType, name)
	}
	if err := s.checker.CheckDependents(tx, objectType, name); err != nil {
		return err
	}
	tx.Remove(objectType, name)
	return nil
}

// Close closes the backend. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) lookup(objectType string) (*schema.ObjectType, error) {
	t, ok := s.registry.Lookup(objectType)
	if !ok {
		return nil, cfgerr.InvalidShape(`"` + objectType + `"`)
	}
	return t, nil
}
