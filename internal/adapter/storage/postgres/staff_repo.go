package postgres

import (
	"context"
	"errors"
	"fmt"

	"loyalty-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// StaffRepo implements ports.StaffRepository.
type StaffRepo struct {
	pool Pool
}

// NewStaffRepo creates a new StaffRepo.
func NewStaffRepo(pool Pool) *StaffRepo {
	return &StaffRepo{pool: pool}
}

// Create inserts a staff account.
func (r *StaffRepo) Create(ctx context.Context, s *domain.StaffAccount) error {
	query := `INSERT INTO staff_accounts (id, username, password_hash, display_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.Username, s.PasswordHash, s.DisplayName, s.Status, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert staff account: %w", err)
	}
	return nil
}

// GetByUsername fetches a staff account, or nil if absent.
func (r *StaffRepo) GetByUsername(ctx context.Context, username string) (*domain.StaffAccount, error) {
	query := `SELECT id, username, password_hash, display_name, status, created_at
		FROM staff_accounts WHERE username = $1`

	s := &domain.StaffAccount{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&s.ID, &s.Username, &s.PasswordHash, &s.DisplayName, &s.Status, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get staff by username: %w", err)
	}
	return s, nil
}
