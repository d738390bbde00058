// Package store is the SQLite task store. It persists the board entities,
// custom fields and dependency edges, and executes compiled filter
// predicates with sort plans.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/marcus/trellis/internal/apperr"
	"github.com/marcus/trellis/internal/db"
	"github.com/marcus/trellis/internal/logging"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed task store.
type Store struct {
	db  *db.DB
	sb  sq.StatementBuilderType
	log *logging.Logger
	now func() time.Time
}

// New creates a store over an open database.
func New(database *db.DB) *Store {
	return &Store{
		db:  database,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log: logging.Component("store"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DB returns the underlying database.
func (s *Store) DB() *db.DB {
	return s.db
}

func newID() string {
	return uuid.NewString()
}

func (s *Store) exec(ctx context.Context, q querier, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building statement: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryRowContext(ctx, query, args...), nil
}

func (s *Store) query(ctx context.Context, q querier, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryContext(ctx, query, args...)
}

// exists reports whether b returns at least one row.
func (s *Store) exists(ctx context.Context, q querier, b sq.SelectBuilder) (bool, error) {
	row, err := s.queryRow(ctx, q, b.Prefix("SELECT EXISTS(").Suffix(")"))
	if err != nil {
		return false, err
	}
	var found bool
	if err := row.Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

// notFound maps sql.ErrNoRows to an apperr not-found error.
func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("loading %s %s: %w", entity, id, err)
}

// requireRow maps a zero-row mutation to not found.
func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// constraintError maps SQLite constraint failures on user input to
// validation errors.
func constraintError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "CHECK constraint failed") {
		return apperr.Validation(format+": %v", append(args, err)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
