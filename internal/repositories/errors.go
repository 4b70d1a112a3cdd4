package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrInvalidReference indicates a write referenced a record it is not allowed to point at.
	ErrInvalidReference = errors.New("invalid record reference")
	// ErrStale indicates a conditional write found the row changed underneath it.
	ErrStale = errors.New("record changed concurrently")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translateWriteError maps constraint violations onto the package sentinels and wraps
// everything else with the failing operation.
func translateWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		case pgCheckViolation:
			return ErrInvalidReference
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
