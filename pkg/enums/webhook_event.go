package enums

import "fmt"

// WebhookEvent names an event surfaced to webhook subscribers.
type WebhookEvent string

const (
	WebhookEventPaymentReceived     WebhookEvent = "payment.received"
	WebhookEventPaymentConfirmed    WebhookEvent = "payment.confirmed"
	WebhookEventWithdrawalCompleted WebhookEvent = "withdrawal.completed"
	WebhookEventWithdrawalFailed    WebhookEvent = "withdrawal.failed"
)

var validWebhookEvents = []WebhookEvent{
	WebhookEventPaymentReceived,
	WebhookEventPaymentConfirmed,
	WebhookEventWithdrawalCompleted,
	WebhookEventWithdrawalFailed,
}

// String implements fmt.Stringer.
func (e WebhookEvent) String() string {
	return string(e)
}

// IsValid reports whether the value is a known WebhookEvent.
func (e WebhookEvent) IsValid() bool {
	for _, candidate := range validWebhookEvents {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseWebhookEvent converts raw input into a WebhookEvent.
func ParseWebhookEvent(value string) (WebhookEvent, error) {
	for _, candidate := range validWebhookEvents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook event %q", value)
}

// AllWebhookEvents returns the full event catalog, used when a webhook
// registration does not narrow its subscriptions.
func AllWebhookEvents() []WebhookEvent {
	events := make([]WebhookEvent, len(validWebhookEvents))
	copy(events, validWebhookEvents)
	return events
}
