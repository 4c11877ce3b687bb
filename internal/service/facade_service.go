package service

import (
	"context"

	"loyalty-ledger/internal/core/domain"
	"loyalty-ledger/internal/core/ports"
	"loyalty-ledger/internal/metrics"
	"loyalty-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// FacadeServiceImpl implements ports.FacadeService: the one entry point
// between a decoded scan and the ledger. It maps the scan to its operation,
// runs the guardrails, and hands the operation to the queue. The caller
// always gets a definitive tri-state result.
type FacadeServiceImpl struct {
	queue          ports.QueueService
	guardrails     ports.GuardrailService
	metrics        *metrics.Metrics
	log            zerolog.Logger
	pointsPerVisit int64
}

// NewFacadeService creates a new FacadeServiceImpl. metrics may be nil.
func NewFacadeService(
	queue ports.QueueService,
	guardrails ports.GuardrailService,
	m *metrics.Metrics,
	pointsPerVisit int64,
	log zerolog.Logger,
) *FacadeServiceImpl {
	return &FacadeServiceImpl{
		queue:          queue,
		guardrails:     guardrails,
		metrics:        m,
		log:            log,
		pointsPerVisit: pointsPerVisit,
	}
}

// Submit processes one scan end to end.
func (s *FacadeServiceImpl) Submit(ctx context.Context, req ports.SubmitRequest) domain.Result {
	params, candidate, err := s.plan(req)
	if err != nil {
		s.metrics.RecordOperation("unknown", string(domain.ResultRejected))
		return rejectionResult(err)
	}
	opType := string(params.OperationType())

	verdict := s.guardrails.Evaluate(ctx, candidate)
	if !verdict.Accepted {
		s.metrics.RecordOperation(opType, string(domain.ResultRejected))
		s.metrics.RecordGuardrailRejection(string(verdict.Category))
		return domain.RejectedResult(verdict.Reason)
	}

	result := s.queue.Execute(ctx, params)
	s.metrics.RecordOperation(opType, string(result.Status))
	return result
}

// plan maps the decoded scan to its ledger operation and guardrail candidate.
func (s *FacadeServiceImpl) plan(req ports.SubmitRequest) (domain.OperationParams, domain.Candidate, error) {
	switch req.Code.Kind {
	case domain.ScanKindBenefit:
		params := domain.RedeemSerialParams{
			SerialID:   req.Code.SerialID,
			RedeemerID: req.ActorID,
		}
		candidate := domain.Candidate{
			ActorID:       req.ActorID,
			OperationType: domain.EntryTypeRedemption,
			Location:      req.Location,
			DeviceID:      req.DeviceID,
		}
		return params, candidate, nil
	case domain.ScanKindCustomer:
		params := domain.RecordAccumulationParams{
			DNI:     req.Code.DNI,
			Nonce:   req.Code.Nonce,
			StaffID: req.ActorID,
			Points:  s.pointsPerVisit,
		}
		candidate := domain.Candidate{
			ActorID:       req.ActorID,
			OperationType: domain.EntryTypeAccumulation,
			DNI:           req.Code.DNI,
			Location:      req.Location,
			DeviceID:      req.DeviceID,
		}
		return params, candidate, nil
	default:
		s.log.Warn().Str("actor_id", req.ActorID).Msg("unrecognized scan code submitted")
		return nil, domain.Candidate{}, apperror.ErrUnknownCode()
	}
}
