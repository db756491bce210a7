package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
	"github.com/creatorsats/creatorsats-backend/pkg/pubsub"
)

const publishTimeout = 10 * time.Second

// Event is a domain notification fanned out to downstream consumers
// (feeds, analytics, push notification workers).
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	CreatorID  string    `json:"creator_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload,omitempty"`
}

// Fanout publishes domain events to interested consumers.
type Fanout interface {
	Publish(ctx context.Context, event Event) error
}

// PubSubFanout publishes events on the payment-events topic.
type PubSubFanout struct {
	publisher *gcppubsub.Publisher
}

// NewPubSubFanout wires the fanout to the shared pubsub client.
func NewPubSubFanout(client *pubsub.Client) (*PubSubFanout, error) {
	if client == nil {
		return nil, errors.New("notifications: pubsub client is required")
	}
	return &PubSubFanout{publisher: client.PaymentEventsPublisher()}, nil
}

func (f *PubSubFanout) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal notification event")
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":    event.ID,
			"event_type":  event.Type,
			"creator_id":  event.CreatorID,
			"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := f.publisher.Publish(publishCtx, msg)
	if _, err := result.Get(publishCtx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish notification event")
	}
	return nil
}

// LogFanout writes events to the structured log instead of a broker. Used in
// dev and in tests.
type LogFanout struct {
	logg *logger.Logger
}

func NewLogFanout(logg *logger.Logger) *LogFanout {
	return &LogFanout{logg: logg}
}

func (f *LogFanout) Publish(ctx context.Context, event Event) error {
	ctx = f.logg.WithFields(ctx, map[string]any{
		"event_type": event.Type,
		"creator_id": event.CreatorID,
	})
	f.logg.Info(ctx, "notification event")
	return nil
}
