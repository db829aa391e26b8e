// The billing worker owns subscription enforcement in production: it sweeps
// for lapsed shops on an interval, suspends them and emails their owners.
// The all-in-one dev setup (USE_MEMORY_QUEUE=true) runs the same sweeper
// inside the API process instead.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	appbootstrap "github.com/tajirhq/tajir-ai-platform/internal/app/bootstrap"
	"github.com/tajirhq/tajir-ai-platform/internal/billing"
	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/notify"
	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting tajir-ai-platform billing worker",
		"env", cfg.Env,
		"interval", cfg.BillingSweepInterval.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	shopStore := shops.NewStore(dbPool)
	noticeSvc := notify.NewService(appbootstrap.BuildEmailSender(ctx, cfg, logger), logger)
	processedStore := events.NewProcessedStore(dbPool)

	sweeper := billing.NewSweeper(shopStore, noticeSvc, logger).
		WithInterval(cfg.BillingSweepInterval).
		WithDedupPurge(processedStore)
	sweeper.Start(ctx)

	logger.Info("billing worker stopped")
}
