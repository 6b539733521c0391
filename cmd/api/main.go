package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kowshalya-Eswar/agrofarm/api/controllers"
	"github.com/Kowshalya-Eswar/agrofarm/api/routes"
	cartsvc "github.com/Kowshalya-Eswar/agrofarm/internal/cart"
	"github.com/Kowshalya-Eswar/agrofarm/internal/holds"
	"github.com/Kowshalya-Eswar/agrofarm/internal/ledger"
	ordersvc "github.com/Kowshalya-Eswar/agrofarm/internal/orders"
	"github.com/Kowshalya-Eswar/agrofarm/internal/payments"
	productsvc "github.com/Kowshalya-Eswar/agrofarm/internal/products"
	"github.com/Kowshalya-Eswar/agrofarm/internal/reconciler"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/config"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/db"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/logger"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/metrics"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/migrate"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/pubsub"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/redis"
	"github.com/Kowshalya-Eswar/agrofarm/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	reservationMetrics := metrics.NewReservationMetrics(prometheus.DefaultRegisterer)

	ledgerService := ledger.NewService(redisClient)
	holdRegistry := holds.NewRegistry(redisClient, logg, cfg.Reservation.LockTTL, cfg.Reservation.LockRetry)
	cartService := cartsvc.NewService(ledgerService, holdRegistry, logg, reservationMetrics)

	productRepo := productsvc.NewRepository(dbClient.DB())
	productService := productsvc.NewService(dbClient, productRepo, ledgerService, logg)

	var (
		gateway      payments.Gateway
		squareClient *square.Client
	)
	switch cfg.Payment.Mode {
	case "broker":
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

		brokerGateway, err := payments.NewBrokerGateway(context.Background(), bus, cfg.Payment, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to start payment broker gateway", err)
			os.Exit(1)
		}
		defer brokerGateway.Close()
		gateway = brokerGateway
	default:
		squareClient, err = square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap square client", err)
			os.Exit(1)
		}
		gateway = payments.NewSquareGateway(squareClient, cfg.Payment.Currency)
	}

	orderRepo := ordersvc.NewRepository(dbClient.DB())
	orderService, err := ordersvc.NewService(dbClient, productRepo, gateway, orderRepo, cfg.Payment.Currency, logg, reservationMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	reconcilerService, err := reconciler.NewService(
		dbClient,
		orderRepo,
		productRepo,
		ledgerService,
		reconciler.NewLogNotifier(logg),
		logg,
		reservationMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	healthDeps := map[string]controllers.Pinger{
		"postgres": dbClient,
		"redis":    redisClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"payment_mode": cfg.Payment.Mode,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, healthDeps, productService, cartService, orderService, reconcilerService, squareClient),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
