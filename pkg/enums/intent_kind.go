package enums

import "fmt"

// IntentKind classifies what a payment intent is paying for.
type IntentKind string

const (
	IntentKindTip          IntentKind = "tip"
	IntentKindUnlock       IntentKind = "unlock"
	IntentKindSubscription IntentKind = "subscription"
	IntentKindDonation     IntentKind = "donation"
)

var validIntentKinds = []IntentKind{
	IntentKindTip,
	IntentKindUnlock,
	IntentKindSubscription,
	IntentKindDonation,
}

// String implements fmt.Stringer.
func (k IntentKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known IntentKind.
func (k IntentKind) IsValid() bool {
	for _, candidate := range validIntentKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseIntentKind converts raw input into an IntentKind.
func ParseIntentKind(value string) (IntentKind, error) {
	for _, candidate := range validIntentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent kind %q", value)
}
