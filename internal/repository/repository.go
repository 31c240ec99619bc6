// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vinovest/sqlx"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// DuplicateError is returned when a write violates a unique constraint.
type DuplicateError struct {
	Field string
	Value string
	Err   error
}

func (e *DuplicateError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("duplicate %s %q", e.Field, e.Value)
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}

func (e *DuplicateError) Unwrap() error { return e.Err }

// Repository wraps sqlx for database operations.
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// rebind converts ? placeholders to the driver's bindvar style.
func (r *Repository) rebind(query string) string {
	return r.db.Rebind(query)
}

// affected turns a zero-row update into ErrNotFound.
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var (
	sqliteUnique = regexp.MustCompile(`UNIQUE constraint failed: \w+\.(\w+)`)
	pgKeyDetail  = regexp.MustCompile(`Key \((\w+)\)=\((.*)\) already exists`)
)

// wrapError converts driver errors to repository errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		dup := &DuplicateError{Field: pgErr.ColumnName, Err: err}
		if m := pgKeyDetail.FindStringSubmatch(pgErr.Detail); m != nil {
			dup.Field, dup.Value = m[1], m[2]
		}
		if dup.Field == "" {
			dup.Field = pgErr.ConstraintName
		}
		return dup
	}

	if m := sqliteUnique.FindStringSubmatch(err.Error()); m != nil {
		return &DuplicateError{Field: m[1], Err: err}
	}

	return err
}

// withValue fills in the offending value for duplicate errors that the
// driver reported without one.
func withValue(err error, field, value string) error {
	var dup *DuplicateError
	if errors.As(err, &dup) && dup.Field == field && dup.Value == "" {
		dup.Value = value
	}
	return err
}

func likePattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(s))
	return "%" + s + "%"
}
