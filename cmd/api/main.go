package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hpratama/resellhub-backend/api/routes"
	"github.com/hpratama/resellhub-backend/internal/orders"
	"github.com/hpratama/resellhub-backend/internal/resellerstock"
	"github.com/hpratama/resellhub-backend/internal/returns"
	"github.com/hpratama/resellhub-backend/internal/shipping"
	"github.com/hpratama/resellhub-backend/internal/stock"
	"github.com/hpratama/resellhub-backend/pkg/config"
	"github.com/hpratama/resellhub-backend/pkg/db"
	"github.com/hpratama/resellhub-backend/pkg/logger"
	"github.com/hpratama/resellhub-backend/pkg/metrics"
	"github.com/hpratama/resellhub-backend/pkg/migrate"
	"github.com/hpratama/resellhub-backend/pkg/outbox"
	"github.com/hpratama/resellhub-backend/pkg/redis"
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

	runner := db.RetryRunner{
		Client:   dbClient,
		Attempts: cfg.DB.TxRetryAttempts,
		Backoff:  cfg.DB.TxRetryBackoff,
	}
	integrity := metrics.NewIntegrityMetrics(prometheus.DefaultRegisterer)
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	stockSvc, err := stock.NewService(runner, stock.NewRepository(dbClient.DB()), integrity)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}
	resellerStockSvc, err := resellerstock.NewService(resellerstock.NewRepository(dbClient.DB()), logg, integrity)
	if err != nil {
		logg.Error(context.Background(), "failed to create reseller stock service", err)
		os.Exit(1)
	}
	shippingSvc, err := shipping.NewService(runner, shipping.NewRepository(dbClient.DB()), resellerStockSvc, events)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping service", err)
		os.Exit(1)
	}
	ordersSvc, err := orders.NewService(runner, orders.NewRepository(dbClient.DB()), stockSvc, shippingSvc, events)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	returnsSvc, err := returns.NewService(runner, returns.NewRepository(dbClient.DB()), resellerStockSvc, stockSvc, events)
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, shippingSvc, returnsSvc, stockSvc, resellerStockSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
