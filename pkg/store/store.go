// Package store is the authoritative in-memory object store and the
// persistence bridge to a durable backend.
//
// Readers observe immutable snapshots published atomically. Writers run one
// at a time: a mutation builds a working copy of the current snapshot, the
// change set is committed to the backend, and only then is the new snapshot
// published. A failed commit leaves the published snapshot untouched.
//
// Supported backends:
//   - Memory (tests, ephemeral servers)
//   - JSON data file (package file)
//   - Embedded SQLite database (package sqlite)
//   - etcd cluster (package etcd)
//
// The default data directory follows the XDG Base Directory Specification.
package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/msgsight/cfgd/pkg/cfgerr"
)

// Common errors
var (
	// ErrNotFound and ErrAlreadyExists match the structured errors returned
	// by Get, Create, Update and Delete under errors.Is.
	ErrNotFound      error = cfgerr.KindNotFound
	ErrAlreadyExists error = cfgerr.KindAlreadyExists

	ErrReadOnly = errors.New("store is read-only")
	ErrClosed   = errors.New("store is closed")
	ErrConflict = errors.New("durable state was modified by another writer")
)

// BackendKind names a durable backend.
type BackendKind string

const (
	// BackendFile stores the configuration as a JSON data file.
	BackendFile BackendKind = "file"
	// BackendSQLite stores one row per object in an embedded database.
	BackendSQLite BackendKind = "sqlite"
	// BackendEtcd stores one key per object in an etcd cluster.
	BackendEtcd BackendKind = "etcd"
	// BackendMemory keeps no durable state.
	BackendMemory BackendKind = "memory"
)

// Backend is the durable side of the persistence bridge.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Load returns the last committed snapshot, or nil when no durable state
	// exists yet.
	Load(ctx context.Context) (*Snapshot, error)
	// Commit durably records a change set and the snapshot it produces. It
	// returns only once the data is durable.
	Commit(ctx context.Context, c *Commit) error
	// Close releases backend resources.
	Close() error
}

// Commit is one durable change set.
type Commit struct {
	Revision uint64
	Changes  []Change
	Snapshot *Snapshot
}

// DefaultDataDir returns the default data directory following XDG spec.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "cfgd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cfgd", "data")
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "cfgd")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("LOCALAPPDATA"); appData != "" {
			return filepath.Join(appData, "cfgd")
		}
		return filepath.Join(home, "AppData", "Local", "cfgd")
	}
	return filepath.Join(home, ".local", "share", "cfgd")
}
