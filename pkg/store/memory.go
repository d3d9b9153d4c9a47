package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps the last committed snapshot in memory. It survives
// Store reloads within one process, which makes it useful for restart tests.
type MemoryBackend struct {
	mu       sync.Mutex
	snap     *Snapshot
	commits  int
	failNext error
	closed   bool
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Name implements Backend.
func (m *MemoryBackend) Name() string { return string(BackendMemory) }

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

// Commit implements Backend.
func (m *MemoryBackend) Commit(_ context.Context, c *Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	m.snap = c.Snapshot
	m.commits++
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// FailNextCommit makes the next Commit return err.
func (m *MemoryBackend) FailNextCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Commits returns the number of successful commits.
func (m *MemoryBackend) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}
