package dto

// LoginRequest is the request body for staff login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token       string `json:"token"`
	Expiry      int64  `json:"expiry"` // Unix timestamp
	DisplayName string `json:"display_name"`
}

// GeoPointDTO is a client-reported coordinate pair.
type GeoPointDTO struct {
	Lat float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lng float64 `json:"lng" binding:"gte=-180,lte=180"`
}

// ScanRequest is the request body for submitting a scanned code.
// CustomerDNI identifies the redeeming customer when a benefit code is
// scanned on their behalf; it defaults to the authenticated user.
type ScanRequest struct {
	Code        string       `json:"code" binding:"required,max=256"`
	CustomerDNI string       `json:"customer_dni" binding:"omitempty,safe_id,max=32"`
	DeviceID    string       `json:"device_id" binding:"omitempty,safe_id,max=128"`
	Location    *GeoPointDTO `json:"location,omitempty"`
}

// BenefitDTO is the redeemed benefit in a scan response.
type BenefitDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ScanResponse is the uniform response body for scan submissions.
type ScanResponse struct {
	Status  string      `json:"status"`
	Reason  string      `json:"reason,omitempty"`
	Balance *int64      `json:"balance,omitempty"`
	Benefit *BenefitDTO `json:"benefit,omitempty"`
}

// CustomerResponse is the response body for a customer account lookup.
type CustomerResponse struct {
	DNI         string  `json:"dni"`
	Points      int64   `json:"points"`
	VisitCount  int64   `json:"visit_count"`
	LastVisitAt *string `json:"last_visit_at,omitempty"`
}

// QueueStatusResponse reports the offline queue state.
type QueueStatusResponse struct {
	Pending int  `json:"pending"`
	Online  bool `json:"online"`
}
