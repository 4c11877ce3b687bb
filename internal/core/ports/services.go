package ports

import (
	"context"
	"time"

	"loyalty-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// LedgerService is the transactional core. Every method runs as one isolated,
// conflict-retried atomic unit against the backing store; business rejections
// come back as terminal apperror values, infrastructure trouble as transient
// ones.
type LedgerService interface {
	// RedeemSerial flips an active serial to USED and appends the committed
	// ledger entry in the same atomic unit. Returns the redeemed benefit.
	RedeemSerial(ctx context.Context, serialID, redeemerID string) (*domain.Benefit, error)
	// AccumulatePoints credits a customer account exactly once per
	// (dni, nonce) pair. Returns the account after the credit.
	AccumulatePoints(ctx context.Context, params domain.RecordAccumulationParams) (*domain.CustomerAccount, error)
}

// GuardrailService evaluates a candidate operation against recent activity.
// It never returns an error: internal failures fail open and are logged as
// validation-error records.
type GuardrailService interface {
	Evaluate(ctx context.Context, candidate domain.Candidate) domain.Verdict
}

// QueueService is the offline queue in front of the ledger.
type QueueService interface {
	// Execute attempts the operation now if connectivity allows, enqueueing it
	// on transient failure or while offline. The result is always definitive
	// for the caller: committed, rejected, or queued for retry.
	Execute(ctx context.Context, params domain.OperationParams) domain.Result
	// ProcessQueue drains pending operations in enqueue order. Safe to invoke
	// concurrently; only one drain runs at a time.
	ProcessQueue(ctx context.Context)
	// Pending reports the number of queued operations.
	Pending() (int, error)
}

// FacadeService is the single entry point scan handlers call.
type FacadeService interface {
	Submit(ctx context.Context, req SubmitRequest) domain.Result
}

// SubmitRequest carries a decoded scan plus the actor context the guardrails
// need.
type SubmitRequest struct {
	Code     domain.ScanCode
	ActorID  string
	DeviceID string
	Location *domain.GeoPoint
}

// ActivityTracker is the guardrail engine's view of recent activity. Reads
// tolerate slight staleness; the tracker must never sit on the ledger's
// critical path.
type ActivityTracker interface {
	// LastActivity returns when the actor last performed an operation of the
	// given type, or nil if none is on record.
	LastActivity(ctx context.Context, actorID string, opType domain.EntryType) (*time.Time, error)
	// WeeklyCount returns the number of same-type operations recorded for the
	// DNI over the trailing seven days.
	WeeklyCount(ctx context.Context, dni string, opType domain.EntryType) (int64, error)
	// LastLocation returns the actor's most recent location sample, or nil.
	LastLocation(ctx context.Context, actorID string) (*LocationSample, error)
	// IsKnownDevice reports whether the device was already seen for the actor
	// within the trailing month.
	IsKnownDevice(ctx context.Context, actorID, deviceID string) (bool, error)
	// DeviceCount returns the number of distinct devices seen for the actor
	// within the trailing month.
	DeviceCount(ctx context.Context, actorID string) (int64, error)
	// Observe records an accepted candidate so later evaluations see it.
	Observe(ctx context.Context, candidate domain.Candidate, at time.Time) error
}

// LocationSample is a coordinate with the time it was observed.
type LocationSample struct {
	Point domain.GeoPoint
	At    time.Time
}

// ConnectivityMonitor exposes the client's connectivity state. Events is a
// single-consumer channel; the queue's drain loop is its only reader.
type ConnectivityMonitor interface {
	Online() bool
	// Events delivers state changes; true means connectivity was restored.
	Events() <-chan bool
}

// AuthService authenticates staff and issues session tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

// LoginResult is a successful authentication outcome.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Staff     *domain.StaffAccount
}

// TokenService handles JWT operations for staff sessions.
type TokenService interface {
	Generate(staffID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	StaffID  uuid.UUID
	Username string
}
