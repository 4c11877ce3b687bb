package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes pgx reports when concurrent serializable transactions
// collide; both mean "safe to retry the whole unit".
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateUniqueViolation      = "23505"
)

// Transactor implements ports.DBTransactor. Every transaction it begins runs
// at SERIALIZABLE isolation, so the read-check-write-append sequence inside
// is one isolated unit; concurrent writers surface as retryable
// serialization failures instead of lost updates.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a new SERIALIZABLE database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
}

// IsSerializationFailure reports whether err is a conflict between
// concurrent transactions that a fresh attempt can resolve.
func (t *Transactor) IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateSerializationFailure || pgErr.Code == sqlstateDeadlockDetected
	}
	return false
}

// IsDuplicateCommit reports whether err is a unique-constraint violation.
// The ledger maps violations of its committed-entry index to terminal
// already-processed outcomes.
func (t *Transactor) IsDuplicateCommit(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlstateUniqueViolation
	}
	return false
}
