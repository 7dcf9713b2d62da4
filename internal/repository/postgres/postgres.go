package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"boxrental-backend/internal/domain"
	"boxrental-backend/internal/logger"
	"boxrental-backend/internal/repository"

	"github.com/lib/pq"
)

//go:embed schema.sql
var Schema string

// queryer is satisfied by both *sql.DB and *sql.Tx so one repository
// implementation serves plain reads and units of work.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewStore wraps db. A positive lockTimeout bounds every lock wait inside a
// unit of work; exceeding it fails with domain.ErrAllocationTimeout.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Repos() repository.Repositories {
	return newRepositories(s.db)
}

func newRepositories(q queryer) repository.Repositories {
	return repository.Repositories{
		Boxes:     &boxRepository{db: q},
		Rentals:   &rentalRepository{db: q},
		Customers: &customerRepository{db: q},
		Events:    &eventRepository{db: q},
	}
}

func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return mapError(err)
		}
	}

	if err := fn(ctx, newRepositories(tx)); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit())
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	logger.DatabaseCall("MIGRATE", "*")
	_, err := s.db.ExecContext(ctx, Schema)
	logger.DatabaseResult("MIGRATE", 0, err)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// mapError translates driver failures into domain errors. Errors that
// already carry a domain kind pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrAllocationTimeout, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", "57014": // lock_not_available, query_canceled
			return fmt.Errorf("%w: %s", domain.ErrAllocationTimeout, pqErr.Message)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", domain.ErrConcurrentModification, pqErr.Message)
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", domain.ErrConcurrentModification, pqErr.Constraint)
		case "23514", "23503": // check_violation, foreign_key_violation
			return domain.InvalidInput("%s", pqErr.Message)
		}
	}
	return err
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return mapError(err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func boxStatusStrings(statuses []domain.BoxStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func rentalStatusStrings(statuses []domain.RentalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
