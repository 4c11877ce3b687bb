package domain

import (
	"time"

	"github.com/google/uuid"
)

// StaffStatus represents the state of a staff account.
type StaffStatus string

const (
	StaffStatusActive    StaffStatus = "ACTIVE"
	StaffStatusSuspended StaffStatus = "SUSPENDED"
)

// StaffAccount is an employee allowed to submit scans.
type StaffAccount struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	DisplayName  string      `json:"display_name"`
	Status       StaffStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// IsActive returns true if the staff member may authenticate.
func (s *StaffAccount) IsActive() bool {
	return s.Status == StaffStatusActive
}
