// Package repository provides PostgreSQL persistence for admin accounts,
// sessions, settings and site content.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/lib/pq"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// wrapErr maps driver errors onto the common sentinels.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, common.ErrConflict, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, &common.RequestError{Reason: "referenced row does not exist"})
		}
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStoreUnavailable, err)
}

// wrapDeleteErr is wrapErr for deletes, where a foreign key violation means
// other rows still reference the target.
func wrapDeleteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
		return fmt.Errorf("%s: %w: still referenced by %s", op, common.ErrConflict, pqErr.Table)
	}
	return wrapErr(op, err)
}

// requireAffected turns a zero-row write into ErrNotFound.
func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	return nil
}
