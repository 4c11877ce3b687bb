package integration

import (
	"context"
	"errors"
	"sync"
	"time"

	"loyalty-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// errDuplicateCommit stands in for the unique-constraint violation the
// committed-entry index raises in PostgreSQL.
var errDuplicateCommit = errors.New("duplicate committed entry")

// --- In-Memory Serial Repo ---

type inMemorySerialRepo struct {
	mu      sync.RWMutex
	serials map[string]*domain.Serial
}

func newInMemorySerialRepo() *inMemorySerialRepo {
	return &inMemorySerialRepo{serials: make(map[string]*domain.Serial)}
}

func (r *inMemorySerialRepo) Create(ctx context.Context, serial *domain.Serial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *serial
	r.serials[serial.ID] = &cp
	return nil
}

func (r *inMemorySerialRepo) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Serial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.serials[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *inMemorySerialRepo) MarkUsed(ctx context.Context, tx pgx.Tx, id string, usedBy string, usedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.serials[id]
	if !ok || s.State != domain.SerialStateActive {
		return false, nil
	}
	s.MarkUsed(usedBy, usedAt)
	return true, nil
}

// --- In-Memory Benefit Repo ---

type inMemoryBenefitRepo struct {
	mu       sync.RWMutex
	benefits map[string]*domain.Benefit
}

func newInMemoryBenefitRepo() *inMemoryBenefitRepo {
	return &inMemoryBenefitRepo{benefits: make(map[string]*domain.Benefit)}
}

func (r *inMemoryBenefitRepo) Create(ctx context.Context, benefit *domain.Benefit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *benefit
	r.benefits[benefit.ID] = &cp
	return nil
}

func (r *inMemoryBenefitRepo) GetByID(ctx context.Context, tx pgx.Tx, id string) (*domain.Benefit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.benefits[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]*domain.CustomerAccount
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[string]*domain.CustomerAccount)}
}

func (r *inMemoryAccountRepo) GetByDNI(ctx context.Context, dni string) (*domain.CustomerAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[dni]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAccountRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, dni string) (*domain.CustomerAccount, error) {
	return r.GetByDNI(ctx, dni)
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, tx pgx.Tx, account *domain.CustomerAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.accounts[account.DNI] = &cp
	return nil
}

func (r *inMemoryAccountRepo) ApplyCredit(ctx context.Context, tx pgx.Tx, account *domain.CustomerAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.accounts[account.DNI] = &cp
	return nil
}

// --- In-Memory Ledger Repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{}
}

func (r *inMemoryLedgerRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.Outcome == domain.EntryOutcomeCommitted {
		for _, e := range r.entries {
			if e.OperationKey == entry.OperationKey && e.Type == entry.Type && e.Outcome == domain.EntryOutcomeCommitted {
				return errDuplicateCommit
			}
		}
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryLedgerRepo) GetCommitted(ctx context.Context, tx pgx.Tx, operationKey string, entryType domain.EntryType) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.OperationKey == operationKey && e.Type == entryType && e.Outcome == domain.EntryOutcomeCommitted {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

// byOutcome returns entries of the given type and outcome in append order.
func (r *inMemoryLedgerRepo) byOutcome(entryType domain.EntryType, outcome domain.EntryOutcome) []domain.LedgerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.LedgerEntry
	for _, e := range r.entries {
		if e.Type == entryType && e.Outcome == outcome {
			result = append(result, e)
		}
	}
	return result
}

// --- In-Memory Suspicious Activity Repo ---

type inMemorySuspiciousRepo struct {
	mu      sync.RWMutex
	records []domain.SuspiciousActivityRecord
}

func newInMemorySuspiciousRepo() *inMemorySuspiciousRepo {
	return &inMemorySuspiciousRepo{}
}

func (r *inMemorySuspiciousRepo) Create(ctx context.Context, record *domain.SuspiciousActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *inMemorySuspiciousRepo) all() []domain.SuspiciousActivityRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SuspiciousActivityRecord(nil), r.records...)
}

// --- In-Memory Staff Repo ---

type inMemoryStaffRepo struct {
	mu    sync.RWMutex
	staff map[string]*domain.StaffAccount
}

func newInMemoryStaffRepo() *inMemoryStaffRepo {
	return &inMemoryStaffRepo{staff: make(map[string]*domain.StaffAccount)}
}

func (r *inMemoryStaffRepo) Create(ctx context.Context, staff *domain.StaffAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *staff
	r.staff[staff.Username] = &cp
	return nil
}

func (r *inMemoryStaffRepo) GetByUsername(ctx context.Context, username string) (*domain.StaffAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.staff[username]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes whole transactions behind one store-wide
// mutex, standing in for SERIALIZABLE isolation: concurrent ledger units run
// one at a time, so the read-check-write sequence inside each unit is atomic.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serializedTx{release: t.mu.Unlock}, nil
}

func (t *inMemoryTransactor) IsSerializationFailure(err error) bool {
	return false
}

func (t *inMemoryTransactor) IsDuplicateCommit(err error) bool {
	return errors.Is(err, errDuplicateCommit)
}

// serializedTx is a pgx.Tx that only releases the store-wide lock. Commit and
// the deferred Rollback may both run; the lock is released exactly once.
type serializedTx struct {
	once    sync.Once
	release func()
}

func (t *serializedTx) Commit(ctx context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *serializedTx) Rollback(ctx context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *serializedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serializedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serializedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serializedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serializedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serializedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serializedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serializedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serializedTx) Conn() *pgx.Conn { return nil }
