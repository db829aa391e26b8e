package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	conversationworker "github.com/tajirhq/tajir-ai-platform/internal/worker/conversation"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting tajir-ai-platform conversation worker",
		"env", cfg.Env,
		"workers", cfg.WorkerCount,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := conversationworker.Run(ctx, cfg, logger); err != nil {
		logger.Error("conversation worker exited", "error", err)
		os.Exit(1)
	}
}
