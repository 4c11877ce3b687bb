package postgres

import (
	"context"
	"errors"
	"fmt"

	"loyalty-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// BenefitRepo implements ports.BenefitRepository.
type BenefitRepo struct {
	pool Pool
}

// NewBenefitRepo creates a new BenefitRepo.
func NewBenefitRepo(pool Pool) *BenefitRepo {
	return &BenefitRepo{pool: pool}
}

// Create inserts a benefit template.
func (r *BenefitRepo) Create(ctx context.Context, b *domain.Benefit) error {
	query := `INSERT INTO benefits (id, name, description, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, b.ID, b.Name, b.Description, b.ValidFrom, b.ValidUntil)
	if err != nil {
		return fmt.Errorf("insert benefit: %w", err)
	}
	return nil
}

// GetByID fetches a benefit inside the transaction, or nil if absent.
func (r *BenefitRepo) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Benefit, error) {
	query := `SELECT id, name, description, valid_from, valid_until FROM benefits WHERE id = $1`

	b := &domain.Benefit{}
	err := tx.QueryRow(ctx, query, id).Scan(&b.ID, &b.Name, &b.Description, &b.ValidFrom, &b.ValidUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get benefit by id: %w", err)
	}
	return b, nil
}
