// Package sqlite provides an embedded SQLite backend for the configuration
// store. Each object is one row; each commit is one database transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/mattn/go-sqlite3"

	"github.com/msgsight/cfgd/pkg/object"
	"github.com/msgsight/cfgd/pkg/store"
)

// DefaultFileName is used when the path names a directory.
const DefaultFileName = "cfgd.db"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS objects (
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		properties BLOB NOT NULL,
		PRIMARY KEY (type, name)
	)`,
	`CREATE TABLE IF NOT EXISTS meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		revision INTEGER NOT NULL
	)`,
}

// Store implements store.Backend on SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and bootstraps its tables.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = filepath.Join(store.DefaultDataDir(), DefaultFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", buildConnectionString(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, q := range schemaStatements {
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

func buildConnectionString(path string) string {
	params := "?mode=rwc&_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"
	if runtime.GOOS == "darwin" {
		params += "&_fullfsync=1"
	}
	return "file:" + path + params
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Name implements store.Backend.
func (s *Store) Name() string { return string(store.BackendSQLite) }

// Load implements store.Backend.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	var revision uint64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM meta WHERE id = 1`).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read revision: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, name, properties FROM objects ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	var objs []*object.Object
	for rows.Next() {
		var (
			o    object.Object
			data []byte
		)
		if err := rows.Scan(&o.Type, &o.Name, &data); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if err := json.Unmarshal(data, &o.Properties); err != nil {
			return nil, fmt.Errorf("decode %s: %w", o.Key(), err)
		}
		objs = append(objs, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.NewSnapshot(revision, objs), nil
}

// Commit implements store.Backend. Only the changed rows are written.
func (s *Store) Commit(ctx context.Context, c *store.Commit) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, ch := range c.Changes {
		switch ch.Op {
		case store.OpPut:
			data, merr := json.Marshal(ch.Object.Properties)
			if merr != nil {
				return merr
			}
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO objects(type, name, properties) VALUES(?, ?, ?)
				 ON CONFLICT(type, name) DO UPDATE SET properties = excluded.properties`,
				ch.Object.Type, ch.Object.Name, data); err != nil {
				return fmt.Errorf("write %s: %w", ch.Object.Key(), err)
			}
		case store.OpDelete:
			if _, err = tx.ExecContext(ctx, `DELETE FROM objects WHERE type = ? AND name = ?`,
				ch.Object.Type, ch.Object.Name); err != nil {
				return fmt.Errorf("delete %s: %w", ch.Object.Key(), err)
			}
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO meta(id, revision) VALUES(1, ?) ON CONFLICT(id) DO UPDATE SET revision = excluded.revision`,
		c.Revision); err != nil {
		return fmt.Errorf("write revision: %w", err)
	}
	return tx.Commit()
}

// Close implements store.Backend.
func (s *Store) Close() error { return s.db.Close() }
