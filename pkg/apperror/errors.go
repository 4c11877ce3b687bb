package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind separates terminal business rejections from retryable failures.
// Terminal errors are surfaced to the caller immediately and never retried;
// transient errors are handed to the offline queue for later replay.
type Kind int

const (
	KindTerminal Kind = iota
	KindTransient
)

// AppError is a structured error that maps to HTTP responses and to the
// offline queue's retry decision.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Kind       Kind   `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a terminal AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Kind:       KindTerminal,
	}
}

// Transient wraps an internal error as a retryable AppError.
func Transient(code string, message string, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusServiceUnavailable,
		Kind:       KindTransient,
		Err:        err,
	}
}

// IsTransient reports whether err should be retried later rather than
// surfaced as a business rejection. Unexpected non-AppError failures count as
// transient: replaying an operation that may already have committed is safe
// because the ledger's idempotency anchor turns the replay into a no-op.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == KindTransient
	}
	return true
}

// ---- Ledger Business Rejections (LED) ----

func ErrSerialNotFound(serialID string) *AppError {
	return New("LED_001", fmt.Sprintf("serial %s not found", serialID), http.StatusNotFound)
}

func ErrBenefitNotFound(benefitID string) *AppError {
	return New("LED_002", fmt.Sprintf("benefit %s not found", benefitID), http.StatusNotFound)
}

func ErrSerialAlreadyUsed() *AppError {
	return New("LED_003", "serial has already been used", http.StatusConflict)
}

func ErrSerialCancelled() *AppError {
	return New("LED_004", "serial has been cancelled", http.StatusConflict)
}

func ErrOutOfValidity() *AppError {
	return New("LED_005", "benefit is outside its validity window", http.StatusUnprocessableEntity)
}

func ErrAlreadyProcessed() *AppError {
	return New("LED_006", "scan was already processed", http.StatusConflict)
}

func ErrSerialNotAssigned() *AppError {
	return New("LED_007", "serial is assigned to a different customer", http.StatusForbidden)
}

func ErrCustomerNotFound(dni string) *AppError {
	return New("LED_008", fmt.Sprintf("customer %s not found", dni), http.StatusNotFound)
}

// ---- Guardrail Rejections (GRD) ----

// ErrGuardrailRejected maps a guardrail category to a terminal rejection.
func ErrGuardrailRejected(category string, reason string) *AppError {
	return New("GRD_"+category, reason, http.StatusTooManyRequests)
}

// ---- Validation (VAL) ----

func ErrUnknownCode() *AppError {
	return New("VAL_001", "scanned code is not recognized", http.StatusBadRequest)
}

func Validation(message string) *AppError {
	return New("VAL_002", message, http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "invalid or expired token", http.StatusUnauthorized)
}

func ErrStaffSuspended() *AppError {
	return New("AUTH_003", "staff account is suspended", http.StatusForbidden)
}

// ---- Transient Failures (SYS) ----

func ErrStorageUnavailable(err error) *AppError {
	return Transient("SYS_001", "backing store unavailable", err)
}

func ErrConflictRetryExhausted(err error) *AppError {
	return Transient("SYS_002", "transaction conflict retries exhausted", err)
}

func ErrOffline() *AppError {
	return Transient("SYS_003", "no connectivity", nil)
}

// InternalError wraps an unexpected internal error; per the retry-safety rule
// above it is transient.
func InternalError(err error) *AppError {
	return Transient("SYS_004", "internal error", err)
}
