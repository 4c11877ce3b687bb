package domain

// ResultStatus is the tri-state outcome a caller receives for a submitted
// operation.
type ResultStatus string

const (
	ResultCommitted      ResultStatus = "COMMITTED"
	ResultRejected       ResultStatus = "REJECTED"
	ResultQueuedForRetry ResultStatus = "QUEUED_FOR_RETRY"
)

// Result is the uniform response of the transaction facade.
type Result struct {
	Status  ResultStatus `json:"status"`
	Reason  string       `json:"reason,omitempty"` // Populated when Status == REJECTED
	Balance *int64       `json:"balance,omitempty"`
	Benefit *Benefit     `json:"benefit,omitempty"`
}

// CommittedResult builds a successful result.
func CommittedResult() Result {
	return Result{Status: ResultCommitted}
}

// RejectedResult builds a terminal rejection with a human-readable reason.
func RejectedResult(reason string) Result {
	return Result{Status: ResultRejected, Reason: reason}
}

// QueuedResult builds an accepted-for-later-processing result.
func QueuedResult() Result {
	return Result{Status: ResultQueuedForRetry}
}
