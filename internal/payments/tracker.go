package payments

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsats/creatorsats-backend/internal/blockchain"
	"github.com/creatorsats/creatorsats-backend/internal/notifications"
	"github.com/creatorsats/creatorsats-backend/pkg/config"
	"github.com/creatorsats/creatorsats-backend/pkg/enums"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
	"github.com/creatorsats/creatorsats-backend/pkg/metrics"
)

type trackedTx struct {
	creatorID uuid.UUID
	checks    int
}

// TrackerParams wires the confirmation tracker.
type TrackerParams struct {
	Repo     Repository
	Gateway  blockchain.Gateway
	Balance  BalanceInvalidator
	Fanout   notifications.Fanout
	Webhooks WebhookTrigger
	Logger   *logger.Logger
	Metrics  *metrics.PaymentMetrics
	Config   config.PaymentsConfig
}

// Tracker polls the gateway for pending transactions until they confirm or
// the check cap gives up on them. Abandoned entries stay in the ledger as
// unconfirmed rows; the cap ends tracking, it is not a failure state.
type Tracker struct {
	repo             Repository
	gateway          blockchain.Gateway
	balance          BalanceInvalidator
	fanout           notifications.Fanout
	webhooks         WebhookTrigger
	logg             *logger.Logger
	metrics          *metrics.PaymentMetrics
	interval         time.Duration
	checkCap         int
	pendingLimit     int
	minConfirmations int
	rehydrateEvery   int

	mu      sync.Mutex
	pending map[string]trackedTx
}

// NewTracker validates params and builds a Tracker.
func NewTracker(params TrackerParams) (*Tracker, error) {
	if params.Repo == nil {
		return nil, errors.New("payments: tracker repo is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("payments: tracker gateway is required")
	}
	if params.Balance == nil {
		return nil, errors.New("payments: tracker balance invalidator is required")
	}
	if params.Fanout == nil {
		return nil, errors.New("payments: tracker fanout is required")
	}
	if params.Webhooks == nil {
		return nil, errors.New("payments: tracker webhook trigger is required")
	}
	if params.Logger == nil {
		return nil, errors.New("payments: tracker logger is required")
	}

	interval := params.Config.TrackerInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	checkCap := params.Config.TrackerCheckCap
	if checkCap <= 0 {
		checkCap = 20
	}
	pendingLimit := params.Config.TrackerPendingLimit
	if pendingLimit <= 0 {
		pendingLimit = 10000
	}
	minConfirmations := params.Config.MinConfirmations
	if minConfirmations <= 0 {
		minConfirmations = 1
	}
	rehydrateEvery := params.Config.TrackerRehydrateEvery
	if rehydrateEvery <= 0 {
		rehydrateEvery = 10
	}

	return &Tracker{
		repo:             params.Repo,
		gateway:          params.Gateway,
		balance:          params.Balance,
		fanout:           params.Fanout,
		webhooks:         params.Webhooks,
		logg:             params.Logger,
		metrics:          params.Metrics,
		interval:         interval,
		checkCap:         checkCap,
		pendingLimit:     pendingLimit,
		minConfirmations: minConfirmations,
		rehydrateEvery:   rehydrateEvery,
		pending:          make(map[string]trackedTx),
	}, nil
}

// Register adds a txid to the pending set. Past the pending limit new
// registrations are skipped; the transaction still sits in the ledger and a
// later Rehydrate picks it up.
func (t *Tracker) Register(ctx context.Context, txid string, creatorID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[txid]; ok {
		return
	}
	if len(t.pending) >= t.pendingLimit {
		t.logg.Warn(t.logg.WithTxID(ctx, txid), "pending set full, skipping confirmation tracking")
		return
	}
	t.pending[txid] = trackedTx{creatorID: creatorID}
	t.metrics.SetPending(len(t.pending))
}

// PendingCount reports the current pending-set size.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Rehydrate reloads unconfirmed ledger rows into the pending set. Run at
// startup so a restart does not orphan in-flight confirmations, and repeated
// periodically by Run so rows written by other processes get tracked too.
func (t *Tracker) Rehydrate(ctx context.Context) error {
	transactions, err := t.repo.ListUnconfirmed(ctx, t.pendingLimit)
	if err != nil {
		return err
	}
	for _, transaction := range transactions {
		t.Register(ctx, transaction.TxID, transaction.CreatorID)
	}
	t.logg.Info(t.logg.WithField(ctx, "pending", t.PendingCount()), "confirmation tracker rehydrated")
	return nil
}

// Run scans on a fixed interval until the context is cancelled, re-syncing
// the pending set from the ledger every rehydrateEvery scans.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	scans := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Scan(ctx)
			scans++
			if scans%t.rehydrateEvery == 0 {
				if err := t.Rehydrate(ctx); err != nil {
					t.logg.Error(ctx, "periodic pending-set rehydrate", err)
				}
			}
		}
	}
}

// Scan walks the pending set once, serially. Gateway errors drop the entry
// rather than block the rest of the scan.
func (t *Tracker) Scan(ctx context.Context) {
	start := time.Now()

	t.mu.Lock()
	snapshot := make(map[string]trackedTx, len(t.pending))
	for txid, entry := range t.pending {
		snapshot[txid] = entry
	}
	t.mu.Unlock()

	for txid, entry := range snapshot {
		t.check(ctx, txid, entry)
	}

	t.mu.Lock()
	remaining := len(t.pending)
	t.mu.Unlock()
	t.metrics.SetPending(remaining)
	t.metrics.ObserveScanDuration(time.Since(start))
}

func (t *Tracker) check(ctx context.Context, txid string, entry trackedTx) {
	ctx = t.logg.WithTxID(ctx, txid)

	tx, err := t.gateway.GetTransaction(ctx, txid)
	if err != nil {
		t.logg.Warn(ctx, "confirmation check failed, dropping from tracking")
		t.drop(txid)
		return
	}

	if tx.Confirmations >= t.minConfirmations {
		now := time.Now().UTC()
		if err := t.repo.MarkConfirmed(ctx, txid, tx.Confirmations, tx.BlockHeight, now); err != nil {
			t.logg.Error(ctx, "mark transaction confirmed", err)
			return
		}
		t.balance.InvalidateBalance(ctx, entry.creatorID)
		t.notifyConfirmed(ctx, txid, entry.creatorID, tx.Confirmations)
		t.drop(txid)
		t.metrics.IncSettled()
		return
	}

	entry.checks++
	if entry.checks >= t.checkCap {
		t.logg.Warn(ctx, "confirmation check cap reached, giving up tracking")
		t.drop(txid)
		t.metrics.IncAbandoned()
		return
	}

	t.mu.Lock()
	if _, ok := t.pending[txid]; ok {
		t.pending[txid] = entry
	}
	t.mu.Unlock()
}

func (t *Tracker) notifyConfirmed(ctx context.Context, txid string, creatorID uuid.UUID, confirmations int) {
	data := map[string]any{
		"txid":          txid,
		"creator_id":    creatorID.String(),
		"confirmations": confirmations,
		"confirmed":     true,
	}
	if err := t.fanout.Publish(ctx, notifications.Event{
		Type:      enums.WebhookEventPaymentConfirmed.String(),
		CreatorID: creatorID.String(),
		Payload:   data,
	}); err != nil {
		t.logg.Error(ctx, "publish confirmation notification", err)
	}
	t.webhooks.TriggerPaymentWebhooks(ctx, creatorID, enums.WebhookEventPaymentConfirmed, data)
}

func (t *Tracker) drop(txid string) {
	t.mu.Lock()
	delete(t.pending, txid)
	t.mu.Unlock()
}
