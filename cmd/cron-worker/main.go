package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kowshalya-Eswar/agrofarm/internal/cron"
	"github.com/Kowshalya-Eswar/agrofarm/internal/holds"
	"github.com/Kowshalya-Eswar/agrofarm/internal/ledger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/config"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/metrics"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/redis"
)

const lockKeyFormat = "agrofarm:%s:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	reservationMetrics := metrics.NewReservationMetrics(prometheus.DefaultRegisterer)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.Cron.LockKey, cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	ledgerService := ledger.NewService(redisClient)
	holdRegistry := holds.NewRegistry(redisClient, logg, cfg.Reservation.LockTTL, cfg.Reservation.LockRetry)

	sweepJob, err := cron.NewHoldSweepJob(cron.HoldSweepJobParams{
		Logger:  logg,
		Holds:   holdRegistry,
		Ledger:  ledgerService,
		Metrics: reservationMetrics,
		HoldTTL: cfg.Reservation.HoldTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create hold sweep job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Reservation.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"hold_ttl": cfg.Reservation.HoldTTL.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(name, env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env, name)
}
