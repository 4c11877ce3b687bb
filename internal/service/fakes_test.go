package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"loyalty-ledger/internal/core/domain"
	"loyalty-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	errSerializationConflict = errors.New("serialization conflict")
	errDuplicateCommit       = errors.New("duplicate committed entry")
)

// fakeTx satisfies pgx.Tx for the in-memory repositories, which ignore the
// transaction handle entirely.
type fakeTx struct {
	commits   int
	rollbacks int
	commitErr error
}

func (t *fakeTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		err := t.commitErr
		t.commitErr = nil
		return err
	}
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rollbacks++
	return nil
}

func (t *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}

func (t *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}

func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (t *fakeTx) Conn() *pgx.Conn { return nil }

// fakeTransactor hands out fakeTx handles and classifies the sentinel errors
// the fakes produce.
type fakeTransactor struct {
	mu sync.Mutex
	// beginConflicts makes the next N Begin calls fail with a retryable
	// conflict before any repository state is touched.
	beginConflicts int
	// commitConflicts makes the next N transactions fail at commit time.
	commitConflicts int
	beginErr        error
	txs             []*fakeTx
}

func (f *fakeTransactor) Begin(context.Context) (pgx.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	if f.beginConflicts > 0 {
		f.beginConflicts--
		return nil, errSerializationConflict
	}
	tx := &fakeTx{}
	if f.commitConflicts > 0 {
		f.commitConflicts--
		tx.commitErr = errSerializationConflict
	}
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeTransactor) IsSerializationFailure(err error) bool {
	return errors.Is(err, errSerializationConflict)
}

func (f *fakeTransactor) IsDuplicateCommit(err error) bool {
	return errors.Is(err, errDuplicateCommit)
}

type fakeSerialRepo struct {
	mu      sync.Mutex
	serials map[string]*domain.Serial
	getErr  error
}

func newFakeSerialRepo() *fakeSerialRepo {
	return &fakeSerialRepo{serials: make(map[string]*domain.Serial)}
}

func (r *fakeSerialRepo) Create(_ context.Context, serial *domain.Serial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *serial
	r.serials[serial.ID] = &cp
	return nil
}

func (r *fakeSerialRepo) GetByID(_ context.Context, _ pgx.Tx, id string) (*domain.Serial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	serial, ok := r.serials[id]
	if !ok {
		return nil, nil
	}
	cp := *serial
	return &cp, nil
}

func (r *fakeSerialRepo) MarkUsed(_ context.Context, _ pgx.Tx, id, usedBy string, usedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	serial, ok := r.serials[id]
	if !ok || serial.State != domain.SerialStateActive {
		return false, nil
	}
	serial.MarkUsed(usedBy, usedAt)
	return true, nil
}

type fakeBenefitRepo struct {
	mu       sync.Mutex
	benefits map[string]*domain.Benefit
}

func newFakeBenefitRepo() *fakeBenefitRepo {
	return &fakeBenefitRepo{benefits: make(map[string]*domain.Benefit)}
}

func (r *fakeBenefitRepo) Create(_ context.Context, benefit *domain.Benefit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *benefit
	r.benefits[benefit.ID] = &cp
	return nil
}

func (r *fakeBenefitRepo) GetByID(_ context.Context, _ pgx.Tx, id string) (*domain.Benefit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	benefit, ok := r.benefits[id]
	if !ok {
		return nil, nil
	}
	cp := *benefit
	return &cp, nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.CustomerAccount
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*domain.CustomerAccount)}
}

func (r *fakeAccountRepo) GetByDNI(_ context.Context, dni string) (*domain.CustomerAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[dni]
	if !ok {
		return nil, nil
	}
	cp := *account
	return &cp, nil
}

func (r *fakeAccountRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, dni string) (*domain.CustomerAccount, error) {
	return r.GetByDNI(ctx, dni)
}

func (r *fakeAccountRepo) Create(_ context.Context, _ pgx.Tx, account *domain.CustomerAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.accounts[account.DNI] = &cp
	return nil
}

func (r *fakeAccountRepo) ApplyCredit(_ context.Context, _ pgx.Tx, account *domain.CustomerAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *account
	r.accounts[account.DNI] = &cp
	return nil
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	entries []*domain.LedgerEntry
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{}
}

func (r *fakeLedgerRepo) Append(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.Outcome == domain.EntryOutcomeCommitted {
		for _, e := range r.entries {
			if e.Outcome == domain.EntryOutcomeCommitted &&
				e.OperationKey == entry.OperationKey && e.Type == entry.Type {
				return errDuplicateCommit
			}
		}
	}
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakeLedgerRepo) GetCommitted(_ context.Context, _ pgx.Tx, operationKey string, entryType domain.EntryType) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Outcome == domain.EntryOutcomeCommitted &&
			e.OperationKey == operationKey && e.Type == entryType {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeLedgerRepo) byOutcome(outcome domain.EntryOutcome) []*domain.LedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.LedgerEntry
	for _, e := range r.entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

type fakeSuspiciousRepo struct {
	mu      sync.Mutex
	records []*domain.SuspiciousActivityRecord
}

func (r *fakeSuspiciousRepo) Create(_ context.Context, record *domain.SuspiciousActivityRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakeSuspiciousRepo) all() []*domain.SuspiciousActivityRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.SuspiciousActivityRecord(nil), r.records...)
}

// fakeActivityTracker keeps activity in maps, mirroring the redis tracker's
// key shapes closely enough for guardrail tests.
type fakeActivityTracker struct {
	mu         sync.Mutex
	last       map[string]time.Time
	weekly     map[string]int64
	locations  map[string]ports.LocationSample
	devices    map[string]map[string]bool
	observed   int
	observeErr error
	readErr    error
}

func newFakeActivityTracker() *fakeActivityTracker {
	return &fakeActivityTracker{
		last:      make(map[string]time.Time),
		weekly:    make(map[string]int64),
		locations: make(map[string]ports.LocationSample),
		devices:   make(map[string]map[string]bool),
	}
}

func (t *fakeActivityTracker) LastActivity(_ context.Context, actorID string, opType domain.EntryType) (*time.Time, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	at, ok := t.last[actorID+"|"+string(opType)]
	if !ok {
		return nil, nil
	}
	cp := at
	return &cp, nil
}

func (t *fakeActivityTracker) WeeklyCount(_ context.Context, dni string, opType domain.EntryType) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return 0, t.readErr
	}
	return t.weekly[dni+"|"+string(opType)], nil
}

func (t *fakeActivityTracker) LastLocation(_ context.Context, actorID string) (*ports.LocationSample, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return nil, t.readErr
	}
	sample, ok := t.locations[actorID]
	if !ok {
		return nil, nil
	}
	cp := sample
	return &cp, nil
}

func (t *fakeActivityTracker) IsKnownDevice(_ context.Context, actorID, deviceID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return false, t.readErr
	}
	return t.devices[actorID][deviceID], nil
}

func (t *fakeActivityTracker) DeviceCount(_ context.Context, actorID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readErr != nil {
		return 0, t.readErr
	}
	return int64(len(t.devices[actorID])), nil
}

func (t *fakeActivityTracker) Observe(_ context.Context, candidate domain.Candidate, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.observeErr != nil {
		return t.observeErr
	}
	t.observed++
	t.last[candidate.ActorID+"|"+string(candidate.OperationType)] = at
	if candidate.DNI != "" {
		t.weekly[candidate.DNI+"|"+string(candidate.OperationType)]++
	}
	if candidate.Location != nil {
		t.locations[candidate.ActorID] = ports.LocationSample{Point: *candidate.Location, At: at}
	}
	if candidate.DeviceID != "" {
		if t.devices[candidate.ActorID] == nil {
			t.devices[candidate.ActorID] = make(map[string]bool)
		}
		t.devices[candidate.ActorID][candidate.DeviceID] = true
	}
	return nil
}

// fakeQueueStore is an in-memory ports.QueueStore ordered by key.
type fakeQueueStore struct {
	mu  sync.Mutex
	ops map[string]domain.QueuedOperation
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{ops: make(map[string]domain.QueuedOperation)}
}

func (s *fakeQueueStore) Put(op domain.QueuedOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op.ID] = op
	return nil
}

func (s *fakeQueueStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ops, id)
	return nil
}

func (s *fakeQueueStore) List() ([]domain.QueuedOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QueuedOperation, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeQueueStore) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops), nil
}

// fakeMonitor is a settable ports.ConnectivityMonitor.
type fakeMonitor struct {
	mu     sync.Mutex
	online bool
	events chan bool
}

func newFakeMonitor(online bool) *fakeMonitor {
	return &fakeMonitor{online: online, events: make(chan bool, 8)}
}

func (m *fakeMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *fakeMonitor) Events() <-chan bool { return m.events }

func (m *fakeMonitor) set(online bool) {
	m.mu.Lock()
	m.online = online
	m.mu.Unlock()
	m.events <- online
}

// scriptedLedger returns canned outcomes per operation key, recording the
// order of invocations.
type scriptedLedger struct {
	mu       sync.Mutex
	outcomes map[string]error
	balances map[string]int64
	benefits map[string]*domain.Benefit
	calls    []string
}

func newScriptedLedger() *scriptedLedger {
	return &scriptedLedger{
		outcomes: make(map[string]error),
		balances: make(map[string]int64),
		benefits: make(map[string]*domain.Benefit),
	}
}

func (l *scriptedLedger) RedeemSerial(_ context.Context, serialID, _ string) (*domain.Benefit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, serialID)
	if err := l.outcomes[serialID]; err != nil {
		return nil, err
	}
	if b, ok := l.benefits[serialID]; ok {
		return b, nil
	}
	return &domain.Benefit{ID: "bf-" + serialID, Name: "free coffee"}, nil
}

func (l *scriptedLedger) AccumulatePoints(_ context.Context, params domain.RecordAccumulationParams) (*domain.CustomerAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := params.OperationKey()
	l.calls = append(l.calls, key)
	if err := l.outcomes[key]; err != nil {
		return nil, err
	}
	l.balances[params.DNI] += params.Points
	return &domain.CustomerAccount{DNI: params.DNI, Points: l.balances[params.DNI]}, nil
}

func (l *scriptedLedger) callLog() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *scriptedLedger) failWith(operationKey string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes[operationKey] = err
}
