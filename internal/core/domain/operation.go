package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationType discriminates the queued-operation union.
type OperationType string

const (
	OperationRedeemSerial       OperationType = "REDEEM_SERIAL"
	OperationRecordAccumulation OperationType = "RECORD_ACCUMULATION"
)

// OperationParams is the tagged union of ledger operation parameters. Each
// variant carries exactly the fields its operation needs, so malformed
// operations cannot be constructed.
type OperationParams interface {
	OperationType() OperationType
	OperationKey() string
}

// RedeemSerialParams are the inputs of a serial redemption.
type RedeemSerialParams struct {
	SerialID   string `json:"serial_id"`
	RedeemerID string `json:"redeemer_id"`
}

func (p RedeemSerialParams) OperationType() OperationType { return OperationRedeemSerial }
func (p RedeemSerialParams) OperationKey() string         { return p.SerialID }

// RecordAccumulationParams are the inputs of a point accrual.
type RecordAccumulationParams struct {
	DNI     string `json:"dni"`
	Nonce   string `json:"nonce"`
	StaffID string `json:"staff_id"`
	Points  int64  `json:"points"`
}

func (p RecordAccumulationParams) OperationType() OperationType { return OperationRecordAccumulation }
func (p RecordAccumulationParams) OperationKey() string         { return BuildAccumulationKey(p.DNI, p.Nonce) }

// QueuedOperation is a client-local pending operation awaiting replay. The ID
// is a client-generated ULID, so lexicographic ID order equals enqueue order.
type QueuedOperation struct {
	ID         string          `json:"id"`
	Type       OperationType   `json:"type"`
	Params     OperationParams `json:"-"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// queuedOperationEnvelope is the persisted form; params are kept as raw JSON
// next to the type tag so the union survives serialization.
type queuedOperationEnvelope struct {
	ID         string          `json:"id"`
	Type       OperationType   `json:"type"`
	Params     json.RawMessage `json:"params"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// MarshalJSON encodes the operation with its params variant inlined.
func (q QueuedOperation) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(q.Params)
	if err != nil {
		return nil, fmt.Errorf("marshal operation params: %w", err)
	}
	return json.Marshal(queuedOperationEnvelope{
		ID:         q.ID,
		Type:       q.Type,
		Params:     raw,
		EnqueuedAt: q.EnqueuedAt,
	})
}

// UnmarshalJSON decodes the envelope and restores the correct params variant
// from the type tag.
func (q *QueuedOperation) UnmarshalJSON(data []byte) error {
	var env queuedOperationEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	q.ID = env.ID
	q.Type = env.Type
	q.EnqueuedAt = env.EnqueuedAt

	switch env.Type {
	case OperationRedeemSerial:
		var p RedeemSerialParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("unmarshal redeem params: %w", err)
		}
		q.Params = p
	case OperationRecordAccumulation:
		var p RecordAccumulationParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return fmt.Errorf("unmarshal accumulation params: %w", err)
		}
		q.Params = p
	default:
		return fmt.Errorf("unknown operation type %q", env.Type)
	}
	return nil
}
