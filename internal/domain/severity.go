package domain

// Severity grades alert and event importance.
// Params: constants from low to critical.
// Returns: ordered severity level used by reports and escalation.
type Severity string

const (
	// SeverityLow marks informational findings.
	SeverityLow Severity = "low"
	// SeverityMedium marks findings worth review.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks findings requiring action.
	SeverityHigh Severity = "high"
	// SeverityCritical marks findings requiring immediate action.
	SeverityCritical Severity = "critical"
)

// IsValid reports whether severity is one of the supported levels.
// Params: none.
// Returns: true for known levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Rank returns numeric ordering for severity comparison.
// Params: none.
// Returns: 0 for low up to 3 for critical, -1 for unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether severity is at or above the floor level.
// Params: floor severity.
// Returns: true when rank is greater or equal.
func (s Severity) AtLeast(floor Severity) bool {
	return s.Rank() >= floor.Rank()
}
