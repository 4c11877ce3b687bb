package domain

import (
	"time"

	"github.com/google/uuid"
)

// SuspiciousCategory classifies a guardrail rejection.
type SuspiciousCategory string

const (
	SuspiciousRateLimit       SuspiciousCategory = "RATE_LIMIT"
	SuspiciousGeoAnomaly      SuspiciousCategory = "GEO_ANOMALY"
	SuspiciousOutOfHours      SuspiciousCategory = "OUT_OF_HOURS"
	SuspiciousMultiDevice     SuspiciousCategory = "MULTI_DEVICE"
	SuspiciousValidationError SuspiciousCategory = "VALIDATION_ERROR"
)

// SuspiciousActivityRecord is an append-only fraud log row.
type SuspiciousActivityRecord struct {
	ID               uuid.UUID          `json:"id"`
	UserID           string             `json:"user_id"`
	Category         SuspiciousCategory `json:"category"`
	Details          string             `json:"details"`
	RelatedOperation string             `json:"related_operation,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}
