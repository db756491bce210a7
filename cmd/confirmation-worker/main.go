package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/creatorsats/creatorsats-backend/internal/balance"
	"github.com/creatorsats/creatorsats-backend/internal/blockchain"
	"github.com/creatorsats/creatorsats-backend/internal/notifications"
	"github.com/creatorsats/creatorsats-backend/internal/payments"
	"github.com/creatorsats/creatorsats-backend/internal/webhooks"
	"github.com/creatorsats/creatorsats-backend/internal/worker"
	"github.com/creatorsats/creatorsats-backend/pkg/config"
	"github.com/creatorsats/creatorsats-backend/pkg/db"
	"github.com/creatorsats/creatorsats-backend/pkg/logger"
	"github.com/creatorsats/creatorsats-backend/pkg/metrics"
	"github.com/creatorsats/creatorsats-backend/pkg/migrate"
	"github.com/creatorsats/creatorsats-backend/pkg/pubsub"
	"github.com/creatorsats/creatorsats-backend/pkg/redis"
)

const lockKeyFormat = "confirmation-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "confirmation-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "confirmation-worker"

	logg = logger.New(logger.Options{
		ServiceName: "confirmation-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var fanout notifications.Fanout
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		fanout, err = notifications.NewPubSubFanout(pubsubClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create notification fanout", err)
			os.Exit(1)
		}
	} else {
		fanout = notifications.NewLogFanout(logg)
	}

	gateway, err := blockchain.NewClient(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to create blockchain gateway client", err)
		os.Exit(1)
	}

	balanceService, err := balance.NewService(balance.ServiceParams{
		Repo:   balance.NewRepository(dbClient.DB()),
		Cache:  redisClient,
		Logger: logg,
		TTL:    cfg.Payments.BalanceTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create balance service", err)
		os.Exit(1)
	}

	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		Repo:    webhooks.NewRepository(dbClient.DB()),
		Logger:  logg,
		Metrics: metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Config:  cfg.Webhooks,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	tracker, err := payments.NewTracker(payments.TrackerParams{
		Repo:     payments.NewRepository(dbClient.DB()),
		Gateway:  gateway,
		Balance:  balanceService,
		Fanout:   fanout,
		Webhooks: webhookService,
		Logger:   logg,
		Metrics:  metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		Config:   cfg.Payments,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create confirmation tracker", err)
		os.Exit(1)
	}

	lock, err := worker.NewRedisLock(redisClient, redisClient.LockKey(lockKey(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logg.Error(ctx, "failed to acquire worker lock", err)
		os.Exit(1)
	}
	if !acquired {
		logg.Info(ctx, "another confirmation worker holds the lock, exiting")
		return
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logg.Error(ctx, "error releasing worker lock", err)
		}
	}()

	if err := tracker.Rehydrate(ctx); err != nil {
		logg.Error(ctx, "failed to rehydrate confirmation tracker", err)
		os.Exit(1)
	}

	// Stop tracking the moment another instance takes the lease over, so two
	// workers never confirm the same transactions.
	go func() {
		if err := lock.Heartbeat(ctx); err != nil {
			logg.Error(ctx, "worker lease lost, shutting down", err)
			stop()
		}
	}()

	logg.Info(ctx, "starting confirmation worker")
	tracker.Run(ctx)
	logg.Info(ctx, "confirmation worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
