// Package sqlite implements the storage interface over a single SQLite
// database file.
//
// The package is split into focused files: store.go holds the Store struct,
// constructor and transaction plumbing; schema.go the DDL; activities.go,
// categories.go, facts.go and tags.go the per-entity queries.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	_ "modernc.org/sqlite" // database/sql driver

	"github.com/avickers/tempo/internal/storage"
)

// Store implements storage.Storage over one SQLite file.
type Store struct {
	db        *sql.DB
	dbPath    string
	writeHook atomic.Value // func()
	closed    atomic.Bool
}

var _ storage.Storage = (*Store)(nil)

// Open opens (creating if necessary) the database at path and applies the
// schema. The parent directory is created when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	connStr := connString(path)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer at a time; serializing in the pool avoids
	// spurious SQLITE_BUSY under concurrent facade calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func connString(path string) string {
	if path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		filepath.ToSlash(path))
}

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// SetWriteHook registers fn to run after every committed write.
func (s *Store) SetWriteHook(fn func()) {
	s.writeHook.Store(fn)
}

func (s *Store) markWrite() {
	if fn, ok := s.writeHook.Load().(func()); ok && fn != nil {
		fn()
	}
}

// Close closes the database. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// queryer is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn in a transaction, rolling back on error. The write hook
// fires just before commit so the watcher's suppression window is already
// open when the filesystem notification for the commit arrives.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	s.markWrite()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", wrapErr(err))
	}
	return nil
}

// wrapErr maps driver-level constraint failures onto the storage sentinel.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "constraint") {
		return fmt.Errorf("%w: %v", storage.ErrIntegrity, err)
	}
	return err
}
