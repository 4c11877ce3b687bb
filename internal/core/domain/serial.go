package domain

import "time"

// SerialState represents the lifecycle state of a benefit serial.
type SerialState string

const (
	SerialStateActive    SerialState = "ACTIVE"
	SerialStateUsed      SerialState = "USED"
	SerialStateCancelled SerialState = "CANCELLED"
)

// Serial is a single-use token representing one redeemable instance of a
// Benefit. Serials are provisioned out of band and only ever transition
// Active -> Used or Active -> Cancelled; they are kept forever for audit.
type Serial struct {
	ID         string      `json:"id"` // Human-assigned code, e.g. "SER-0001"
	BenefitID  string      `json:"benefit_id"`
	State      SerialState `json:"state"`
	AssignedTo *string     `json:"assigned_to,omitempty"` // Optional DNI restriction
	UsedBy     *string     `json:"used_by,omitempty"`
	UsedAt     *time.Time  `json:"used_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// IsRedeemable returns true if the serial can still be redeemed.
func (s *Serial) IsRedeemable() bool {
	return s.State == SerialStateActive
}

// RedeemableBy returns true if the serial is unrestricted or assigned to the
// given DNI.
func (s *Serial) RedeemableBy(dni string) bool {
	return s.AssignedTo == nil || *s.AssignedTo == dni
}

// MarkUsed applies the Active -> Used transition in memory. Persistence of
// the transition is the ledger transactor's job.
func (s *Serial) MarkUsed(redeemerID string, at time.Time) {
	s.State = SerialStateUsed
	s.UsedBy = &redeemerID
	s.UsedAt = &at
}

// Benefit is the redemption template a Serial points at.
type Benefit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidUntil  time.Time `json:"valid_until"`
}

// InValidityWindow returns true if t falls inside [ValidFrom, ValidUntil].
func (b *Benefit) InValidityWindow(t time.Time) bool {
	return !t.Before(b.ValidFrom) && !t.After(b.ValidUntil)
}
