package domain

import "math"

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

const earthRadiusKm = 6371.0

// DistanceKm computes the great-circle (haversine) distance to another point.
func (p GeoPoint) DistanceKm(other GeoPoint) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Candidate is a transaction as seen by the guardrail engine, before any
// ledger mutation is attempted.
type Candidate struct {
	ActorID       string
	OperationType EntryType
	DNI           string    // Empty for redemptions without a customer context
	Location      *GeoPoint // Nil when the client has no fix
	DeviceID      string    // Empty when unknown
}

// Verdict is the guardrail engine's decision on a candidate.
type Verdict struct {
	Accepted bool
	Category SuspiciousCategory // Set when rejected
	Reason   string             // Human-readable rejection reason
}

// Accept returns an accepting verdict.
func Accept() Verdict {
	return Verdict{Accepted: true}
}

// Reject returns a rejecting verdict with its category and reason.
func Reject(category SuspiciousCategory, reason string) Verdict {
	return Verdict{Accepted: false, Category: category, Reason: reason}
}
