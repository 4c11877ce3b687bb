package postgres

import (
	"context"
	"fmt"

	"loyalty-ledger/internal/core/domain"
)

// SuspiciousActivityRepo implements ports.SuspiciousActivityRepository.
type SuspiciousActivityRepo struct {
	pool Pool
}

// NewSuspiciousActivityRepo creates a new SuspiciousActivityRepo.
func NewSuspiciousActivityRepo(pool Pool) *SuspiciousActivityRepo {
	return &SuspiciousActivityRepo{pool: pool}
}

// Create appends a fraud-log record. Runs outside the ledger transaction:
// the fraud log is best-effort and must not hold up ledger commits.
func (r *SuspiciousActivityRepo) Create(ctx context.Context, rec *domain.SuspiciousActivityRecord) error {
	query := `INSERT INTO suspicious_activity (id, user_id, category, details, related_operation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Category, rec.Details, rec.RelatedOperation, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert suspicious activity: %w", err)
	}
	return nil
}
