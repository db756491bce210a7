package enums

import "fmt"

// WithdrawalStatus tracks the lifecycle of a payout request. Transitions past
// pending are owned by the broadcasting worker, not this core.
type WithdrawalStatus string

const (
	WithdrawalStatusPending      WithdrawalStatus = "pending"
	WithdrawalStatusBroadcasting WithdrawalStatus = "broadcasting"
	WithdrawalStatusCompleted    WithdrawalStatus = "completed"
	WithdrawalStatusFailed       WithdrawalStatus = "failed"
)

var validWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusPending,
	WithdrawalStatusBroadcasting,
	WithdrawalStatusCompleted,
	WithdrawalStatusFailed,
}

// String implements fmt.Stringer.
func (s WithdrawalStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known WithdrawalStatus.
func (s WithdrawalStatus) IsValid() bool {
	for _, candidate := range validWithdrawalStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWithdrawalStatus converts raw input into a WithdrawalStatus.
func ParseWithdrawalStatus(value string) (WithdrawalStatus, error) {
	for _, candidate := range validWithdrawalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid withdrawal status %q", value)
}
