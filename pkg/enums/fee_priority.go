package enums

import "fmt"

// FeePriority selects the fee-per-byte rate used for fee estimation.
type FeePriority string

const (
	FeePriorityFast   FeePriority = "fast"
	FeePriorityNormal FeePriority = "normal"
	FeePriorityLow    FeePriority = "low"
)

var validFeePriorities = []FeePriority{
	FeePriorityFast,
	FeePriorityNormal,
	FeePriorityLow,
}

// String implements fmt.Stringer.
func (p FeePriority) String() string {
	return string(p)
}

// IsValid reports whether the value is a known FeePriority.
func (p FeePriority) IsValid() bool {
	for _, candidate := range validFeePriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseFeePriority converts raw input into a FeePriority.
func ParseFeePriority(value string) (FeePriority, error) {
	for _, candidate := range validFeePriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fee priority %q", value)
}
