package postgres

import (
	"context"
	"errors"
	"fmt"

	"loyalty-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
//
// The ledger_entries table carries a partial unique index on
// (operation_key, entry_type) WHERE outcome = 'COMMITTED'. That index is the
// idempotency anchor: even if two transactions race past the read-side check,
// only one commit can ever land.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts an entry inside the transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, entry_type, operation_key, actor_id, outcome, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.Type, e.OperationKey, e.ActorID, e.Outcome, e.Details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// GetCommitted returns the committed entry for the key and type, or nil.
func (r *LedgerRepo) GetCommitted(ctx context.Context, tx pgx.Tx, operationKey string, entryType domain.EntryType) (*domain.LedgerEntry, error) {
	query := `SELECT id, entry_type, operation_key, actor_id, outcome, details, created_at
		FROM ledger_entries
		WHERE operation_key = $1 AND entry_type = $2 AND outcome = $3`

	e := &domain.LedgerEntry{}
	err := tx.QueryRow(ctx, query, operationKey, entryType, domain.EntryOutcomeCommitted).Scan(
		&e.ID, &e.Type, &e.OperationKey, &e.ActorID, &e.Outcome, &e.Details, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get committed entry: %w", err)
	}
	return e, nil
}
