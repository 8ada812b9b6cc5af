// Package sqlite is the modernc.org/sqlite-backed implementation of
// internal/storage.Storage — the transactional key/row store spec.md §1
// requires without specifying its on-disk format. It is pure Go (no cgo),
// the same driver choice the jra3-linear-fuse example makes for an embedded
// local database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/taskmcp/taskmcp/internal/storage"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("github.com/taskmcp/taskmcp/internal/storage/sqlite")

// Store is the concrete storage.Storage implementation.
type Store struct {
	db *sql.DB
}

// New opens (creating if absent) a SQLite database at path and applies any
// pending migrations. path may be ":memory:" for an ephemeral store, used
// extensively by tests.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	if path == ":memory:" {
		// A single shared connection keeps an in-memory database alive and
		// visible across goroutines; modernc's sqlite otherwise gives each
		// connection its own private in-memory database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Projects() storage.ProjectStore       { return &projectStore{s.db} }
func (s *Store) Features() storage.FeatureStore       { return &featureStore{s.db} }
func (s *Store) Tasks() storage.TaskStore             { return &taskStore{s.db} }
func (s *Store) Sections() storage.SectionStore       { return &sectionStore{s.db} }
func (s *Store) Templates() storage.TemplateStore     { return &templateStore{s.db} }
func (s *Store) Dependencies() storage.DependencyStore { return &dependencyStore{s.db} }
func (s *Store) Tags() storage.TagStore               { return &tagStore{s.db} }

// RunInTransaction runs fn against a single *sql.Tx and retries the whole
// closure up to twice more on a conflict-shaped failure, per spec.md §5's "conflict-aborts retry budget of at most three
// attempts" — mirroring the retry wrapper around internal/storage/dolt's
// transactional writes in the teacher.
func (s *Store) RunInTransaction(ctx context.Context, fn func(storage.Transaction) error) error {
	ctx, span := tracer.Start(ctx, "sqlite.RunInTransaction")
	defer span.End()

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("beginning transaction: %w", err))
		}
		txn := &transaction{tx: tx}
		if err := fn(txn); err != nil {
			_ = tx.Rollback()
			if isRetryableConflict(err) && attempt < 3 {
				return err // retry
			}
			return backoff.Permanent(err)
		}
		if err := tx.Commit(); err != nil {
			if isRetryableConflict(err) && attempt < 3 {
				return err
			}
			return backoff.Permanent(fmt.Errorf("committing transaction: %w", err))
		}
		return nil
	}, policy)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// isRetryableConflict reports whether err looks like a transient
// row-level conflict (SQLite "database is locked"/"busy") rather than a
// caller-visible validation or not-found error.
func isRetryableConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{"database is locked", "SQLITE_BUSY", "database table is locked"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// transaction is the storage.Transaction implementation bound to one *sql.Tx.
type transaction struct {
	tx *sql.Tx
}

func (t *transaction) Projects() storage.ProjectStore       { return &projectStore{t.tx} }
func (t *transaction) Features() storage.FeatureStore       { return &featureStore{t.tx} }
func (t *transaction) Tasks() storage.TaskStore             { return &taskStore{t.tx} }
func (t *transaction) Sections() storage.SectionStore       { return &sectionStore{t.tx} }
func (t *transaction) Templates() storage.TemplateStore     { return &templateStore{t.tx} }
func (t *transaction) Dependencies() storage.DependencyStore { return &dependencyStore{t.tx} }
func (t *transaction) Tags() storage.TagStore               { return &tagStore{t.tx} }
