// Package file provides a JSON data file backend for the configuration
// store. The whole configuration is written to data.json on every commit
// using an atomic temp-file write.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/msgsight/cfgd/pkg/logging"
	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/store"
)

// Current data format version for migration support
const dataVersion = 1

// DataFileName is the name of the data file inside the data directory.
const DataFileName = "data.json"

// Config configures a FileStore.
type Config struct {
	// DataDir holds data.json. Defaults to store.DefaultDataDir().
	DataDir string
	// ReadOnly rejects every commit.
	ReadOnly bool
}

// FileStore implements store.Backend using a JSON data file.
type FileStore struct {
	cfg Config
	mu  sync.Mutex
	log *slog.Logger
}

// storeData holds all persisted data.
type storeData struct {
	Version  int              `json:"version"`
	Revision uint64           `json:"revision"`
	Objects  []*object.Object `json:"objects"`
}

// New creates a new FileStore with the given configuration.
func New(cfg Config) *FileStore {
	if cfg.DataDir == "" {
		cfg.DataDir = store.DefaultDataDir()
	}
	return &FileStore{cfg: cfg, log: logging.Nop()}
}

// SetLogger sets the logger.
func (s *FileStore) SetLogger(log *slog.Logger) {
	if log != nil {
		s.log = log
	}
}

// DataDir returns the data directory path.
func (s *FileStore) DataDir() string {
	return s.cfg.DataDir
}

func (s *FileStore) dataFile() string {
	return filepath.Join(s.cfg.DataDir, DataFileName)
}

// Name implements store.Backend.
func (s *FileStore) Name() string { return string(store.BackendFile) }

// Load implements store.Backend.
func (s *FileStore) Load(_ context.Context) (*store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.dataFile())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No data file yet, start fresh
			return nil, nil
		}
		return nil, err
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.dataFile(), err)
	}
	if stored.Version > dataVersion {
		return nil, fmt.Errorf("data file version %d is newer than supported version %d", stored.Version, dataVersion)
	}
	return store.NewSnapshot(stored.Revision, stored.Objects), nil
}

// Commit implements store.Backend. The full snapshot is rewritten.
func (s *FileStore) Commit(_ context.Context, c *store.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.ReadOnly {
		return store.ErrReadOnly
	}

	// Ensure directories exist with secure permissions (0700)
	if err := os.MkdirAll(s.cfg.DataDir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(&storeData{
		Version:  dataVersion,
		Revision: c.Revision,
		Objects:  c.Snapshot.Objects(),
	}, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: write to temp file, sync, then rename
	dataFile := s.dataFile()
	tmpFile := dataFile + ".tmp"

	if err := writeSynced(tmpFile, data); err != nil {
		_ = os.Remove(tmpFile)
		return err
	}
	if err := os.Rename(tmpFile, dataFile); err != nil {
		_ = os.Remove(tmpFile) // Clean up temp file on failure
		return err
	}
	if err := syncDir(s.cfg.DataDir); err != nil {
		s.log.Warn("failed to sync data directory", "dir", s.cfg.DataDir, "error", err)
	}
	return nil
}

// Close implements store.Backend.
func (s *FileStore) Close() error { return nil }

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
