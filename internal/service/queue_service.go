package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"loyalty-ledger/internal/core/domain"
	"loyalty-ledger/internal/core/ports"
	"loyalty-ledger/internal/metrics"
	"loyalty-ledger/pkg/apperror"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// QueueServiceImpl implements ports.QueueService. It fronts the ledger with a
// durable client-side queue: operations run immediately when online, queue on
// transient failure, and replay in enqueue order when connectivity returns.
// Replay is safe because every ledger operation is idempotent on its
// operation key.
type QueueServiceImpl struct {
	ledger  ports.LedgerService
	store   ports.QueueStore
	monitor ports.ConnectivityMonitor
	metrics *metrics.Metrics
	log     zerolog.Logger

	// draining serializes ProcessQueue; concurrent triggers collapse into one
	// drain.
	draining atomic.Bool
}

// NewQueueService creates a new QueueServiceImpl. metrics may be nil.
func NewQueueService(
	ledger ports.LedgerService,
	store ports.QueueStore,
	monitor ports.ConnectivityMonitor,
	m *metrics.Metrics,
	log zerolog.Logger,
) *QueueServiceImpl {
	return &QueueServiceImpl{
		ledger:  ledger,
		store:   store,
		monitor: monitor,
		metrics: m,
		log:     log,
	}
}

// Execute attempts the operation now, or enqueues it when offline or when the
// attempt fails transiently. Terminal rejections are surfaced immediately and
// never queued: retrying them cannot change the outcome.
func (s *QueueServiceImpl) Execute(ctx context.Context, params domain.OperationParams) domain.Result {
	if !s.monitor.Online() {
		return s.enqueue(params)
	}

	result, err := s.invoke(ctx, params)
	if err == nil {
		return result
	}
	if apperror.IsTransient(err) {
		s.log.Warn().Err(err).
			Str("type", string(params.OperationType())).
			Str("operation_key", params.OperationKey()).
			Msg("operation failed transiently, queueing for retry")
		return s.enqueue(params)
	}
	return rejectionResult(err)
}

// ProcessQueue drains pending operations in enqueue order. A transient
// failure stops the drain with the failed operation still queued, preserving
// order for the next pass. Terminal rejections are logged, counted, and
// dropped from the queue.
func (s *QueueServiceImpl) ProcessQueue(ctx context.Context) {
	if !s.draining.CompareAndSwap(false, true) {
		return
	}
	defer s.draining.Store(false)

	pending, err := s.store.List()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list offline queue")
		return
	}
	if len(pending) == 0 {
		return
	}
	s.log.Info().Int("pending", len(pending)).Msg("draining offline queue")

	for _, op := range pending {
		if ctx.Err() != nil {
			return
		}
		if !s.monitor.Online() {
			s.log.Info().Msg("connectivity lost mid-drain, stopping")
			return
		}

		_, err := s.invoke(ctx, op.Params)
		if err != nil && apperror.IsTransient(err) {
			s.log.Warn().Err(err).
				Str("operation_id", op.ID).
				Msg("queued operation still failing, stopping drain")
			return
		}
		if err != nil {
			// The world changed while the operation waited; drop it with a
			// trace so the rejection is not silent.
			s.log.Warn().Err(err).
				Str("operation_id", op.ID).
				Str("type", string(op.Type)).
				Str("operation_key", op.Params.OperationKey()).
				Msg("queued operation rejected on replay, dropping")
		} else {
			s.log.Info().
				Str("operation_id", op.ID).
				Str("type", string(op.Type)).
				Msg("queued operation committed")
		}
		if err := s.store.Remove(op.ID); err != nil {
			s.log.Error().Err(err).Str("operation_id", op.ID).
				Msg("failed to remove drained operation, stopping")
			return
		}
		s.publishDepth()
	}
}

// Run triggers a drain whenever connectivity is restored, until ctx is
// cancelled. It is the sole consumer of the monitor's event channel.
func (s *QueueServiceImpl) Run(ctx context.Context) {
	// Connectivity may already be up with a backlog from a previous run.
	if s.monitor.Online() {
		s.ProcessQueue(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case online := <-s.monitor.Events():
			if online {
				s.ProcessQueue(ctx)
			}
		}
	}
}

// Pending reports the number of queued operations.
func (s *QueueServiceImpl) Pending() (int, error) {
	return s.store.Len()
}

// invoke dispatches the params variant to the ledger and shapes the outcome.
func (s *QueueServiceImpl) invoke(ctx context.Context, params domain.OperationParams) (domain.Result, error) {
	switch p := params.(type) {
	case domain.RedeemSerialParams:
		benefit, err := s.ledger.RedeemSerial(ctx, p.SerialID, p.RedeemerID)
		if err != nil {
			return domain.Result{}, err
		}
		result := domain.CommittedResult()
		result.Benefit = benefit
		return result, nil
	case domain.RecordAccumulationParams:
		account, err := s.ledger.AccumulatePoints(ctx, p)
		if err != nil {
			return domain.Result{}, err
		}
		result := domain.CommittedResult()
		balance := account.Points
		result.Balance = &balance
		return result, nil
	default:
		return domain.Result{}, apperror.Validation("unsupported operation type")
	}
}

// enqueue persists the operation with a monotonic ULID key, so byte order in
// the store equals enqueue order.
func (s *QueueServiceImpl) enqueue(params domain.OperationParams) domain.Result {
	op := domain.QueuedOperation{
		ID:         ulid.Make().String(),
		Type:       params.OperationType(),
		Params:     params,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := s.store.Put(op); err != nil {
		// Cannot run it, cannot persist it: the caller must not believe the
		// operation is safe.
		s.log.Error().Err(err).
			Str("type", string(params.OperationType())).
			Msg("failed to enqueue operation")
		return domain.RejectedResult("operation could not be queued, please retry")
	}
	s.log.Info().
		Str("operation_id", op.ID).
		Str("type", string(op.Type)).
		Msg("operation queued for retry")
	s.publishDepth()
	return domain.QueuedResult()
}

func (s *QueueServiceImpl) publishDepth() {
	n, err := s.store.Len()
	if err != nil {
		return
	}
	s.metrics.SetQueueDepth(n)
}

// rejectionResult turns a terminal error into the rejected result surfaced to
// the caller.
func rejectionResult(err error) domain.Result {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return domain.RejectedResult(appErr.Message)
	}
	return domain.RejectedResult(err.Error())
}
