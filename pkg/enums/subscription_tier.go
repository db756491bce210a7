package enums

import "fmt"

// SubscriptionTier is the creator's platform plan. Paid tiers frame the
// service fee as mandatory; the free tier frames it as a voluntary tip.
type SubscriptionTier string

const (
	SubscriptionTierFree SubscriptionTier = "free"
	SubscriptionTierPlus SubscriptionTier = "plus"
	SubscriptionTierPro  SubscriptionTier = "pro"
)

var validSubscriptionTiers = []SubscriptionTier{
	SubscriptionTierFree,
	SubscriptionTierPlus,
	SubscriptionTierPro,
}

// String implements fmt.Stringer.
func (s SubscriptionTier) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubscriptionTier.
func (s SubscriptionTier) IsValid() bool {
	for _, candidate := range validSubscriptionTiers {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsPaid reports whether the tier is a paying plan.
func (s SubscriptionTier) IsPaid() bool {
	return s == SubscriptionTierPlus || s == SubscriptionTierPro
}

// ParseSubscriptionTier converts raw input into a SubscriptionTier.
func ParseSubscriptionTier(value string) (SubscriptionTier, error) {
	for _, candidate := range validSubscriptionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription tier %q", value)
}
