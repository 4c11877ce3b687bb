package service

import (
	"context"
	"fmt"
	"time"

	"loyalty-ledger/internal/core/domain"
	"loyalty-ledger/internal/core/ports"
	"loyalty-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// maxTxAttempts bounds the automatic retries of a serializable transaction
// that lost a conflict against a concurrent writer.
const maxTxAttempts = 3

// LedgerServiceImpl implements ports.LedgerService. Every operation is one
// SERIALIZABLE transaction: read, check, mutate, append audit entry, commit.
// Conflicting concurrent writers surface as serialization failures and the
// whole unit is retried; the committed-entry unique index backstops the
// retry loop so no race can ever double-apply an operation.
type LedgerServiceImpl struct {
	serialRepo  ports.SerialRepository
	benefitRepo ports.BenefitRepository
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	transactor  ports.DBTransactor
	log         zerolog.Logger
	now         func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	serialRepo ports.SerialRepository,
	benefitRepo ports.BenefitRepository,
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		serialRepo:  serialRepo,
		benefitRepo: benefitRepo,
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		transactor:  transactor,
		log:         log,
		now:         time.Now,
	}
}

// RedeemSerial flips an active serial to USED exactly once. Two simultaneous
// attempts on the same serial produce one committed redemption and one
// AlreadyUsed rejection, never two commits.
func (s *LedgerServiceImpl) RedeemSerial(ctx context.Context, serialID, redeemerID string) (*domain.Benefit, error) {
	if serialID == "" {
		return nil, apperror.Validation("serial id is required")
	}

	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		benefit, err := s.tryRedeem(ctx, serialID, redeemerID)
		if err == nil {
			s.log.Info().
				Str("serial_id", serialID).
				Str("redeemer_id", redeemerID).
				Msg("serial redeemed")
			return benefit, nil
		}
		if s.transactor.IsSerializationFailure(err) {
			lastErr = err
			s.log.Debug().Err(err).Int("attempt", attempt).Str("serial_id", serialID).
				Msg("redemption conflict, retrying")
			continue
		}
		if s.transactor.IsDuplicateCommit(err) {
			// A concurrent redemption committed first.
			return nil, apperror.ErrSerialAlreadyUsed()
		}
		return nil, err
	}
	return nil, apperror.ErrConflictRetryExhausted(lastErr)
}

func (s *LedgerServiceImpl) tryRedeem(ctx context.Context, serialID, redeemerID string) (*domain.Benefit, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	serial, err := s.serialRepo.GetByID(ctx, dbTx, serialID)
	if err != nil {
		return nil, fmt.Errorf("load serial: %w", err)
	}
	if serial == nil {
		return nil, s.rejectRedemption(ctx, dbTx, serialID, redeemerID, apperror.ErrSerialNotFound(serialID))
	}

	switch serial.State {
	case domain.SerialStateUsed:
		return nil, s.rejectRedemption(ctx, dbTx, serialID, redeemerID, apperror.ErrSerialAlreadyUsed())
	case domain.SerialStateCancelled:
		return nil, s.rejectRedemption(ctx, dbTx, serialID, redeemerID, apperror.ErrSerialCancelled())
	}

	if serial.AssignedTo != nil && !serial.RedeemableBy(redeemerID) {
		return nil, s.rejectRedemption(ctx, dbTx, serialID, redeemerID, apperror.ErrSerialNotAssigned())
	}

	benefit, err := s.benefitRepo.GetByID(ctx, dbTx, serial.BenefitID)
	if err != nil {
		return nil, fmt.Errorf("load benefit: %w", err)
	}
	if benefit == nil {
		return nil, s.rejectRedemption(ctx, dbTx, serialID, redeemerID, apperror.ErrBenefitNotFound(serial.BenefitID))
	}

	now := s.now().UTC()
	if !benefit.InValidityWindow(now) {
		return nil, s.rejectRedemption(ctx, dbTx, serialID, redeemerID, apperror.ErrOutOfValidity())
	}

	transitioned, err := s.serialRepo.MarkUsed(ctx, dbTx, serialID, redeemerID, now)
	if err != nil {
		return nil, fmt.Errorf("mark serial used: %w", err)
	}
	if !transitioned {
		// Someone else won between the read and the update.
		return nil, s.rejectRedemption(ctx, dbTx, serialID, redeemerID, apperror.ErrSerialAlreadyUsed())
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		Type:         domain.EntryTypeRedemption,
		OperationKey: serialID,
		ActorID:      redeemerID,
		Outcome:      domain.EntryOutcomeCommitted,
		Details:      "redeemed benefit " + benefit.ID,
		CreatedAt:    now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, fmt.Errorf("append committed entry: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}
	return benefit, nil
}

// rejectRedemption appends the rejected audit entry and commits it, then
// hands back the business error. Every attempt leaves a ledger trace,
// accepted or not.
func (s *LedgerServiceImpl) rejectRedemption(ctx context.Context, dbTx pgx.Tx, serialID, redeemerID string, businessErr *apperror.AppError) error {
	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		Type:         domain.EntryTypeRedemption,
		OperationKey: serialID,
		ActorID:      redeemerID,
		Outcome:      domain.EntryOutcomeRejected,
		Details:      businessErr.Message,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return fmt.Errorf("append rejected entry: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rejected entry: %w", err)
	}
	s.log.Warn().
		Str("serial_id", serialID).
		Str("redeemer_id", redeemerID).
		Str("reason", businessErr.Code).
		Msg("redemption rejected")
	return businessErr
}

// AccumulatePoints credits a customer account exactly once per (dni, nonce)
// pair. The committed-entry existence check and the append run inside the
// same serializable transaction, so a duplicate scan replay can never
// double-award points.
func (s *LedgerServiceImpl) AccumulatePoints(ctx context.Context, params domain.RecordAccumulationParams) (*domain.CustomerAccount, error) {
	if params.DNI == "" || params.Nonce == "" {
		return nil, apperror.Validation("dni and nonce are required")
	}
	if params.Points <= 0 {
		return nil, apperror.Validation("points must be positive")
	}

	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		account, err := s.tryAccumulate(ctx, params)
		if err == nil {
			s.log.Info().
				Str("dni", params.DNI).
				Str("staff_id", params.StaffID).
				Int64("points", params.Points).
				Int64("balance", account.Points).
				Msg("points accumulated")
			return account, nil
		}
		if s.transactor.IsSerializationFailure(err) {
			lastErr = err
			s.log.Debug().Err(err).Int("attempt", attempt).Str("dni", params.DNI).
				Msg("accumulation conflict, retrying")
			continue
		}
		if s.transactor.IsDuplicateCommit(err) {
			// A concurrent replay of the same scan committed first.
			return nil, apperror.ErrAlreadyProcessed()
		}
		return nil, err
	}
	return nil, apperror.ErrConflictRetryExhausted(lastErr)
}

func (s *LedgerServiceImpl) tryAccumulate(ctx context.Context, params domain.RecordAccumulationParams) (*domain.CustomerAccount, error) {
	opKey := params.OperationKey()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	existing, err := s.ledgerRepo.GetCommitted(ctx, dbTx, opKey, domain.EntryTypeAccumulation)
	if err != nil {
		return nil, fmt.Errorf("check committed entry: %w", err)
	}
	if existing != nil {
		return nil, apperror.ErrAlreadyProcessed()
	}

	now := s.now().UTC()
	account, err := s.accountRepo.GetForUpdate(ctx, dbTx, params.DNI)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	created := account == nil
	if created {
		account = &domain.CustomerAccount{DNI: params.DNI, CreatedAt: now}
	}
	account.Credit(params.Points, now)

	if created {
		if err := s.accountRepo.Create(ctx, dbTx, account); err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
	} else {
		if err := s.accountRepo.ApplyCredit(ctx, dbTx, account); err != nil {
			return nil, fmt.Errorf("apply credit: %w", err)
		}
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		Type:         domain.EntryTypeAccumulation,
		OperationKey: opKey,
		ActorID:      params.StaffID,
		Outcome:      domain.EntryOutcomeCommitted,
		Details:      fmt.Sprintf("awarded %d points", params.Points),
		CreatedAt:    now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return nil, fmt.Errorf("append committed entry: %w", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit accumulation: %w", err)
	}
	return account, nil
}
