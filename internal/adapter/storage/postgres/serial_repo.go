package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyalty-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// SerialRepo implements ports.SerialRepository.
type SerialRepo struct {
	pool Pool
}

// NewSerialRepo creates a new SerialRepo.
func NewSerialRepo(pool Pool) *SerialRepo {
	return &SerialRepo{pool: pool}
}

// Create inserts a provisioned serial.
func (r *SerialRepo) Create(ctx context.Context, s *domain.Serial) error {
	query := `INSERT INTO serials (id, benefit_id, state, assigned_to, used_by, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.BenefitID, s.State, s.AssignedTo, s.UsedBy, s.UsedAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert serial: %w", err)
	}
	return nil
}

// GetByID fetches a serial inside the transaction, or nil if absent.
func (r *SerialRepo) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Serial, error) {
	query := `SELECT id, benefit_id, state, assigned_to, used_by, used_at, created_at
		FROM serials WHERE id = $1`

	s := &domain.Serial{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.BenefitID, &s.State, &s.AssignedTo, &s.UsedBy, &s.UsedAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get serial by id: %w", err)
	}
	return s, nil
}

// MarkUsed applies Active -> Used. The WHERE clause makes the update a no-op
// when the serial is no longer ACTIVE; the caller inspects the returned flag.
func (r *SerialRepo) MarkUsed(ctx context.Context, tx pgx.Tx, id string, usedBy string, usedAt time.Time) (bool, error) {
	query := `UPDATE serials SET state = $1, used_by = $2, used_at = $3
		WHERE id = $4 AND state = $5`

	tag, err := tx.Exec(ctx, query,
		domain.SerialStateUsed, usedBy, usedAt, id, domain.SerialStateActive,
	)
	if err != nil {
		return false, fmt.Errorf("mark serial used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
