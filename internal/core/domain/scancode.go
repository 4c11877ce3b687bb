package domain

import "strings"

// ScanKind discriminates decoded scan codes.
type ScanKind string

const (
	ScanKindBenefit  ScanKind = "BENEFIT"
	ScanKindCustomer ScanKind = "CUSTOMER"
	ScanKindUnknown  ScanKind = "UNKNOWN"
)

const (
	benefitCodePrefix  = "BNF"
	customerCodePrefix = "APP"
)

// ScanCode is the decoded form of a scanned QR payload. Exactly one of the
// payload fields is populated, selected by Kind.
type ScanCode struct {
	Kind     ScanKind
	SerialID string // Kind == ScanKindBenefit
	DNI      string // Kind == ScanKindCustomer
	Nonce    string // Kind == ScanKindCustomer
}

// DecodeScanCode parses a raw scanner string. Benefit codes look like
// "BNF:<serialId>"; customer codes look like "APP:<dni>:<nonce>" with exactly
// two fields after the prefix. Anything else, including the empty string,
// decodes to ScanKindUnknown.
func DecodeScanCode(raw string) ScanCode {
	parts := strings.Split(raw, ":")

	switch parts[0] {
	case benefitCodePrefix:
		if len(parts) == 2 && parts[1] != "" {
			return ScanCode{Kind: ScanKindBenefit, SerialID: parts[1]}
		}
	case customerCodePrefix:
		if len(parts) == 3 && parts[1] != "" && parts[2] != "" {
			return ScanCode{Kind: ScanKindCustomer, DNI: parts[1], Nonce: parts[2]}
		}
	}
	return ScanCode{Kind: ScanKindUnknown}
}
