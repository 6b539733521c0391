package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kowshalya-Eswar/agrofarm/internal/ledger"
	ordersvc "github.com/Kowshalya-Eswar/agrofarm/internal/orders"
	productsvc "github.com/Kowshalya-Eswar/agrofarm/internal/products"
	"github.com/Kowshalya-Eswar/agrofarm/internal/reconciler"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/config"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/db"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/metrics"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/migrate"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/pubsub"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "payment-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "payment-worker",
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

	bus, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	reservationMetrics := metrics.NewReservationMetrics(prometheus.DefaultRegisterer)

	service, err := reconciler.NewService(
		dbClient,
		ordersvc.NewRepository(dbClient.DB()),
		productsvc.NewRepository(dbClient.DB()),
		ledger.NewService(redisClient),
		reconciler.NewLogNotifier(logg),
		logg,
		reservationMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	consumer, err := reconciler.NewConsumer(service, bus.PaymentEventsSubscription(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment event consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.PaymentEventsSub,
	})
	logg.Info(ctx, "starting payment worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "payment worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "payment worker shutting down gracefully")
}
