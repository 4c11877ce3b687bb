package ports

import (
	"context"
	"time"

	"loyalty-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// SerialRepository defines persistence operations for benefit serials.
// Methods accepting pgx.Tx run inside the ledger transactor's atomic unit.
type SerialRepository interface {
	Create(ctx context.Context, serial *domain.Serial) error
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Serial, error)
	// MarkUsed applies the Active -> Used transition. It must affect zero rows
	// if the serial is no longer ACTIVE, so a concurrent winner is detectable.
	MarkUsed(ctx context.Context, tx pgx.Tx, id string, usedBy string, usedAt time.Time) (bool, error)
}

// BenefitRepository defines persistence operations for benefits.
type BenefitRepository interface {
	Create(ctx context.Context, benefit *domain.Benefit) error
	GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Benefit, error)
}

// AccountRepository defines persistence operations for customer accounts.
type AccountRepository interface {
	GetByDNI(ctx context.Context, dni string) (*domain.CustomerAccount, error)
	// GetForUpdate loads the account inside the transaction, or nil if absent.
	GetForUpdate(ctx context.Context, tx pgx.Tx, dni string) (*domain.CustomerAccount, error)
	// Create inserts a lazily created account inside the transaction.
	Create(ctx context.Context, tx pgx.Tx, account *domain.CustomerAccount) error
	// ApplyCredit persists the new balance, visit count and last visit time.
	ApplyCredit(ctx context.Context, tx pgx.Tx, account *domain.CustomerAccount) error
}

// LedgerRepository defines persistence for the append-only audit ledger.
type LedgerRepository interface {
	// Append inserts an entry inside the transaction. Inserting a second
	// COMMITTED entry for the same (operation key, type) must fail with
	// ErrDuplicateCommit.
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	// GetCommitted returns the committed entry for the key and type, or nil.
	GetCommitted(ctx context.Context, tx pgx.Tx, operationKey string, entryType domain.EntryType) (*domain.LedgerEntry, error)
}

// SuspiciousActivityRepository persists fraud-log records.
type SuspiciousActivityRepository interface {
	Create(ctx context.Context, record *domain.SuspiciousActivityRecord) error
}

// StaffRepository defines persistence operations for staff accounts.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffAccount) error
	GetByUsername(ctx context.Context, username string) (*domain.StaffAccount, error)
}

// DBTransactor provides isolated database transactions for the ledger, plus
// the error classification the retry loop needs. Classification lives here
// because only the storage adapter knows its driver's conflict codes.
type DBTransactor interface {
	// Begin starts a SERIALIZABLE transaction.
	Begin(ctx context.Context) (pgx.Tx, error)
	// IsSerializationFailure reports a conflict a fresh attempt can resolve.
	IsSerializationFailure(err error) bool
	// IsDuplicateCommit reports a violation of the committed-entry uniqueness.
	IsDuplicateCommit(err error) bool
}

// QueueStore is the durable, ordered, client-resident persistence behind the
// offline queue. Keys iterate in enqueue order.
type QueueStore interface {
	Put(op domain.QueuedOperation) error
	Remove(id string) error
	// List returns all pending operations in enqueue order.
	List() ([]domain.QueuedOperation, error)
	Len() (int, error)
}
