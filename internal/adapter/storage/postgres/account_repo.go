package postgres

import (
	"context"
	"errors"
	"fmt"

	"loyalty-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `dni, points, visit_count, last_visit_at, created_at`

func scanAccount(row pgx.Row) (*domain.CustomerAccount, error) {
	a := &domain.CustomerAccount{}
	err := row.Scan(&a.DNI, &a.Points, &a.VisitCount, &a.LastVisitAt, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// GetByDNI fetches an account outside any transaction (read-only lookups).
func (r *AccountRepo) GetByDNI(ctx context.Context, dni string) (*domain.CustomerAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM customer_accounts WHERE dni = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, dni))
	if err != nil {
		return nil, fmt.Errorf("get account by dni: %w", err)
	}
	return a, nil
}

// GetForUpdate loads the account inside the transaction, or nil if absent.
func (r *AccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, dni string) (*domain.CustomerAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM customer_accounts WHERE dni = $1`

	a, err := scanAccount(tx.QueryRow(ctx, query, dni))
	if err != nil {
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return a, nil
}

// Create inserts a lazily created account inside the transaction.
func (r *AccountRepo) Create(ctx context.Context, tx pgx.Tx, a *domain.CustomerAccount) error {
	query := `INSERT INTO customer_accounts (dni, points, visit_count, last_visit_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := tx.Exec(ctx, query, a.DNI, a.Points, a.VisitCount, a.LastVisitAt, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// ApplyCredit persists the balance, visit count and last visit time.
func (r *AccountRepo) ApplyCredit(ctx context.Context, tx pgx.Tx, a *domain.CustomerAccount) error {
	query := `UPDATE customer_accounts SET points = $1, visit_count = $2, last_visit_at = $3
		WHERE dni = $4`

	tag, err := tx.Exec(ctx, query, a.Points, a.VisitCount, a.LastVisitAt, a.DNI)
	if err != nil {
		return fmt.Errorf("apply credit: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("apply credit: account %s not found", a.DNI)
	}
	return nil
}
