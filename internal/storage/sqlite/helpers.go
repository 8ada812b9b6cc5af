package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/taskmcp/taskmcp/internal/types"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting every sub-store
// implementation run against either a plain connection or an in-flight
// transaction without duplicating code.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func tagsToJSON(tags types.TagSet) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, err := json.Marshal([]string(tags))
	if err != nil {
		return "[]"
	}
	return string(b)
}

func tagsFromJSON(s string) types.TagSet {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return types.TagSet(out)
}

func nullableID(id *types.ID) sql.NullString {
	if id == nil || id.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func idFromNullable(ns sql.NullString) (*types.ID, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	id, err := types.ParseID(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// mapDBError classifies a raw database/sql error into a *types.StoreError.
func mapDBError(err error, notFoundMsg string) *types.StoreError {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return types.NewStoreError(types.ErrNotFound, notFoundMsg, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "constraint failed") {
		return types.NewStoreError(types.ErrConflict, "conflicts with an existing row", err)
	}
	return types.NewStoreError(types.ErrDatabase, "database operation failed", err)
}

func result[T any](v T, err error, notFoundMsg string) types.Result[T] {
	if err != nil {
		return types.Failure[T](mapDBError(err, notFoundMsg))
	}
	return types.Success(v)
}

// withCascadeTx runs fn against db directly when db is already an in-flight
// transaction (the store was built from storage.Transaction), or opens one
// and commits/rolls it back when db is the root *sql.DB. Cascade delete's
// multi-step owner/child deletes must be atomic either way: PRAGMA
// foreign_keys=ON with no ON DELETE CASCADE means a half-finished cascade
// leaves orphan rows the foreign key would otherwise have rejected outright.
func withCascadeTx(ctx context.Context, db dbtx, fn func(dbtx) types.Result[bool]) types.Result[bool] {
	sqlDB, ok := db.(*sql.DB)
	if !ok {
		return fn(db)
	}
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	res := fn(tx)
	if !res.Ok() {
		_ = tx.Rollback()
		return res
	}
	if err := tx.Commit(); err != nil {
		return types.Failure[bool](mapDBError(err, ""))
	}
	return res
}
