package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	"github.com/creatorsats/creatorsats-backend/pkg/idempotency"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
)

// ConsumerName scopes the processed-event marks for this consumer's
// idempotency guard.
const ConsumerName = "creator-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches settlement events and turns payment transitions into
// creator-facing notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	guard        *idempotency.Guard
	logg         *logger.Logger
}

// NewConsumer builds a payment notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, guard *idempotency.Guard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("payment events subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		guard:        guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

// eventEnvelope mirrors the fanout Event wire shape with the payload kept raw
// so each event type can decode its own structure.
type eventEnvelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	CreatorID  string          `json:"creator_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != enums.WebhookEventPaymentReceived.String() &&
		eventType != enums.WebhookEventPaymentConfirmed.String() {
		c.logg.Info(logCtx, "skipping non-payment event")
		return processResult{ack: true}
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.ID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.guard.MarkProcessed(ctx, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload paymentEventPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.guard.Release(ctx, eventID)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"txid":       payload.TxID,
		"creator_id": payload.CreatorID.String(),
	})

	if err := c.handlePayload(ctx, eventType, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.guard.Release(ctx, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handlePayload(ctx context.Context, eventType string, payload paymentEventPayload, logCtx context.Context) error {
	if payload.CreatorID == uuid.Nil {
		return fmt.Errorf("creator id missing")
	}
	if payload.TxID == "" {
		return fmt.Errorf("txid missing")
	}

	link := fmt.Sprintf("/payments/%s", payload.TxID)
	title := "Payment pending"
	message := fmt.Sprintf("A payment of %d sats is awaiting confirmation.", payload.AmountSats)
	if eventType == enums.WebhookEventPaymentConfirmed.String() {
		title = "Payment received"
		message = fmt.Sprintf("A payment of %d sats has been confirmed.", payload.AmountSats)
	}

	notification := &models.Notification{
		CreatorID: payload.CreatorID,
		Type:      eventType,
		Title:     title,
		Message:   message,
		Link:      stringPtr(link),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "creator notified of payment event")
	return nil
}

func stringPtr(value string) *string {
	return &value
}

type paymentEventPayload struct {
	TxID       string    `json:"txid"`
	CreatorID  uuid.UUID `json:"creator_id"`
	AmountSats int64     `json:"amount_sats"`
	Confirmed  bool      `json:"confirmed"`
}
