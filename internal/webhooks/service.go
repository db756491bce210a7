package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsats/creatorsats-backend/pkg/config"
	"github.com/creatorsats/creatorsats-backend/pkg/db/models"
	dbtypes "github.com/creatorsats/creatorsats-backend/pkg/db/types"
	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
	"github.com/creatorsats/creatorsats-backend/pkg/metrics"
	"github.com/creatorsats/creatorsats-backend/pkg/validate"
)

const (
	headerEvent     = "X-Webhook-Event"
	headerSignature = "X-Webhook-Signature"

	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
)

// ServiceParams wires the webhook dispatcher.
type ServiceParams struct {
	Repo       Repository
	Logger     *logger.Logger
	Metrics    *metrics.WebhookMetrics
	HTTPClient *http.Client
	Config     config.WebhooksConfig
}

// Service manages webhook subscriptions and delivers signed event payloads.
// A webhook that fails FailureThreshold times in a row is deactivated and
// stays off until the creator re-registers it.
type Service struct {
	repo      Repository
	logg      *logger.Logger
	metrics   *metrics.WebhookMetrics
	client    *http.Client
	threshold int
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("webhooks: repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("webhooks: logger is required")
	}
	threshold := params.Config.FailureThreshold
	if threshold <= 0 {
		threshold = 10
	}
	client := params.HTTPClient
	if client == nil {
		timeout := params.Config.DeliveryTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Service{
		repo:      params.Repo,
		logg:      params.Logger,
		metrics:   params.Metrics,
		client:    client,
		threshold: threshold,
	}, nil
}

// RegisterParams is the input to Register.
type RegisterParams struct {
	CreatorID uuid.UUID            `json:"creator_id" validate:"required"`
	URL       string               `json:"url" validate:"required,url"`
	Events    []enums.WebhookEvent `json:"events" validate:"required,min=1"`
}

// Register creates a webhook subscription with a freshly generated secret.
// The secret is returned once, on the created record, and never again.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.Webhook, error) {
	if err := validate.Struct(params); err != nil {
		return nil, err
	}
	for _, event := range params.Events {
		if !event.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown event %q", event))
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate webhook secret")
	}

	webhook := &models.Webhook{
		CreatorID: params.CreatorID,
		URL:       params.URL,
		Events:    dbtypes.EventList(params.Events),
		Secret:    secret,
		Active:    true,
	}
	if err := s.repo.Create(ctx, webhook); err != nil {
		return nil, err
	}
	return webhook, nil
}

// List returns the creator's webhooks.
func (s *Service) List(ctx context.Context, creatorID uuid.UUID) ([]models.Webhook, error) {
	return s.repo.ListByCreator(ctx, creatorID)
}

// Delete removes a webhook after checking the caller owns it.
func (s *Service) Delete(ctx context.Context, creatorID, webhookID uuid.UUID) error {
	webhook, err := s.repo.FindByID(ctx, webhookID)
	if err != nil {
		return err
	}
	if webhook.CreatorID != creatorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "webhook belongs to another creator")
	}
	return s.repo.Delete(ctx, webhookID)
}

// Result describes one delivery attempt.
type Result struct {
	WebhookID  uuid.UUID `json:"webhook_id"`
	Success    bool      `json:"success"`
	Skipped    bool      `json:"skipped"`
	StatusCode int       `json:"status_code,omitempty"`
}

type deliveryBody struct {
	Event     enums.WebhookEvent `json:"event"`
	Data      any                `json:"data"`
	Timestamp time.Time          `json:"timestamp"`
}

// Trigger delivers one event to one webhook. Inactive targets and targets not
// subscribed to the event produce a skipped result, not an error. Delivery
// failures feed the consecutive-failure counter; crossing the threshold turns
// the webhook off.
func (s *Service) Trigger(ctx context.Context, webhookID uuid.UUID, event enums.WebhookEvent, data any) (*Result, error) {
	webhook, err := s.repo.FindByID(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	return s.deliver(ctx, webhook, event, data)
}

func (s *Service) deliver(ctx context.Context, webhook *models.Webhook, event enums.WebhookEvent, data any) (*Result, error) {
	ctx = s.logg.WithWebhookID(ctx, webhook.ID.String())
	result := &Result{WebhookID: webhook.ID}

	if !webhook.Active || !webhook.Events.Contains(event) {
		result.Skipped = true
		s.metrics.IncDelivery(outcomeSkipped)
		return result, nil
	}

	body, err := json.Marshal(deliveryBody{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEvent, event.String())
	req.Header.Set(headerSignature, sign(webhook.Secret, body))

	resp, err := s.client.Do(req)
	if err != nil {
		s.recordFailure(ctx, webhook)
		result.Success = false
		return result, nil
	}
	defer resp.Body.Close()
	result.StatusCode = resp.StatusCode

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := s.repo.RecordSuccess(ctx, webhook.ID, time.Now().UTC()); err != nil {
			s.logg.Error(ctx, "record webhook success", err)
		}
		s.metrics.IncDelivery(outcomeDelivered)
		result.Success = true
		return result, nil
	}

	s.recordFailure(ctx, webhook)
	return result, nil
}

func (s *Service) recordFailure(ctx context.Context, webhook *models.Webhook) {
	s.metrics.IncDelivery(outcomeFailed)
	count, err := s.repo.RecordFailure(ctx, webhook.ID)
	if err != nil {
		s.logg.Error(ctx, "record webhook failure", err)
		return
	}
	if count >= s.threshold {
		if err := s.repo.Deactivate(ctx, webhook.ID); err != nil {
			s.logg.Error(ctx, "deactivate webhook", err)
			return
		}
		s.metrics.IncDeactivation()
		s.logg.Warn(ctx, "webhook deactivated after repeated delivery failures")
	}
}

// TriggerPaymentWebhooks fans a payment event out to every active subscriber.
// Individual delivery failures are absorbed; the payment flow never blocks on
// a broken endpoint.
func (s *Service) TriggerPaymentWebhooks(ctx context.Context, creatorID uuid.UUID, event enums.WebhookEvent, data any) {
	s.fanOut(ctx, creatorID, event, data)
}

// TriggerWithdrawalWebhooks fans a withdrawal event out to every active
// subscriber.
func (s *Service) TriggerWithdrawalWebhooks(ctx context.Context, creatorID uuid.UUID, event enums.WebhookEvent, data any) {
	s.fanOut(ctx, creatorID, event, data)
}

func (s *Service) fanOut(ctx context.Context, creatorID uuid.UUID, event enums.WebhookEvent, data any) {
	targets, err := s.repo.ListActiveByEvent(ctx, creatorID, event)
	if err != nil {
		s.logg.Error(s.logg.WithCreatorID(ctx, creatorID.String()), "list webhooks for fan-out", err)
		return
	}
	if len(targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for i := range targets {
		webhook := targets[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.deliver(ctx, &webhook, event, data); err != nil {
				s.logg.Error(s.logg.WithWebhookID(ctx, webhook.ID.String()), "webhook delivery", err)
			}
		}()
	}
	wg.Wait()
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
