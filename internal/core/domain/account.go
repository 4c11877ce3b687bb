package domain

import "time"

// CustomerAccount is a point balance keyed by a national ID (DNI).
// Accounts are created lazily on the first successful accumulation and are
// never deleted. Points never go negative.
type CustomerAccount struct {
	DNI         string     `json:"dni"`
	Points      int64      `json:"points"`
	VisitCount  int64      `json:"visit_count"`
	LastVisitAt *time.Time `json:"last_visit_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Credit applies a point accrual in memory.
func (a *CustomerAccount) Credit(points int64, at time.Time) {
	a.Points += points
	a.VisitCount++
	a.LastVisitAt = &at
}
