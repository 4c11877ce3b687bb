package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryType represents the kind of ledger operation.
type EntryType string

const (
	EntryTypeRedemption   EntryType = "REDEMPTION"
	EntryTypeAccumulation EntryType = "ACCUMULATION"
)

// EntryOutcome represents how an operation ended.
type EntryOutcome string

const (
	EntryOutcomeCommitted EntryOutcome = "COMMITTED"
	EntryOutcomeRejected  EntryOutcome = "REJECTED"
)

// LedgerEntry is the immutable audit record of every committed or rejected
// operation. For a given (OperationKey, Type) at most one COMMITTED entry may
// exist; that uniqueness is the idempotency anchor for the whole system.
type LedgerEntry struct {
	ID           uuid.UUID    `json:"id"`
	Type         EntryType    `json:"type"`
	OperationKey string       `json:"operation_key"` // Serial id, or "dni:nonce"
	ActorID      string       `json:"actor_id"`
	Outcome      EntryOutcome `json:"outcome"`
	Details      string       `json:"details,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// BuildAccumulationKey derives the operation key for a point accrual from the
// scanned customer code. The nonce is unique per physical scan event, so the
// pair identifies exactly one accrual.
func BuildAccumulationKey(dni, nonce string) string {
	return dni + ":" + nonce
}
