package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tajirhq/tajir-ai-platform/cmd/mainconfig"
	"github.com/tajirhq/tajir-ai-platform/internal/api/router"
	appbootstrap "github.com/tajirhq/tajir-ai-platform/internal/app/bootstrap"
	"github.com/tajirhq/tajir-ai-platform/internal/appointments"
	"github.com/tajirhq/tajir-ai-platform/internal/billing"
	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/tajirhq/tajir-ai-platform/internal/http/middleware"
	"github.com/tajirhq/tajir-ai-platform/internal/notify"
	"github.com/tajirhq/tajir-ai-platform/internal/observability/metrics"
	"github.com/tajirhq/tajir-ai-platform/internal/orders"
	"github.com/tajirhq/tajir-ai-platform/internal/realtime"
	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/internal/webchat"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting tajir-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	sqlDB := stdlib.OpenDBFromPool(dbPool)
	defer sqlDB.Close()

	// Stores and domain services
	turnStore := conversation.NewConversationStore(sqlDB)
	shopStore := shops.NewStore(dbPool)
	catalogStore := catalog.NewStore(dbPool)
	orderStore := orders.NewStore(dbPool)
	orderSvc := orders.NewService(orderStore, catalogStore, logger)
	appointmentStore := appointments.NewStore(dbPool)
	outboxStore := events.NewOutboxStore(dbPool)
	eventPublisher := events.NewOutboxPublisher(outboxStore)
	processedStore := events.NewProcessedStore(dbPool)

	engineMetrics := metrics.NewEngineMetrics(nil)

	// Reply generation
	generator, aiProvider, err := appbootstrap.BuildGenerator(ctx, cfg, engineMetrics, logger)
	if err != nil {
		logger.Error("failed to configure reply generator", "error", err)
		os.Exit(1)
	}
	logger.Info("reply generator ready", "provider", aiProvider)

	// Job queue: SQS in production, in-memory (with inline workers) in dev.
	var (
		memQueue *conversation.MemoryQueue
		sqsQueue *conversation.SQSQueue
		jobStore *conversation.JobStore
	)
	if cfg.UseMemoryQueue {
		memQueue = conversation.NewMemoryQueue(0)
		logger.Info("using in-memory conversation queue", "workers", cfg.WorkerCount)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsQueue = conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
		jobStore = conversation.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.ConversationJobsTable, logger)
	}

	var publisher *conversation.Publisher
	if memQueue != nil {
		publisher = conversation.NewPublisher(memQueue, logger)
	} else {
		publisher = conversation.NewPublisher(sqsQueue, logger)
	}

	// Channel adapters feed the dispatcher, which resolves the shop and
	// enqueues one turn per inbound message.
	resolver, err := appbootstrap.BuildShopResolver(cfg, shopStore, logger)
	if err != nil {
		logger.Error("failed to configure shop resolver", "error", err)
		os.Exit(1)
	}
	dispatcher := conversation.NewDispatcher(resolver, publisher, logger)
	channelSet, err := appbootstrap.BuildChannels(cfg, dispatcher.OnMessage, logger)
	if err != nil {
		logger.Error("failed to configure channel adapters", "error", err)
		os.Exit(1)
	}

	// Owner notices go out by email: billing receipts, suspension warnings
	// and hand-off alerts all share one service.
	noticeSvc := notify.NewService(appbootstrap.BuildEmailSender(ctx, cfg, logger), logger)

	// Orchestrator: shared by the dashboard handlers, the webchat widget
	// and (in memory-queue mode) the inline workers.
	engineOpts := []conversation.OrchestratorOption{
		conversation.WithSenders(channelSet.Senders),
		conversation.WithEngineMetrics(engineMetrics),
		conversation.WithHandoffNotices(noticeSvc),
	}
	redisClient := appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if historyCache := appbootstrap.BuildHistoryStore(redisClient, logger); historyCache != nil {
		engineOpts = append(engineOpts, conversation.WithHistoryCache(historyCache))
		logger.Info("prompt history cache enabled", "redis", cfg.RedisAddr)
	}
	archiver, err := appbootstrap.BuildArchiver(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to configure transcript archiver", "error", err)
		os.Exit(1)
	}
	if archiver != nil {
		engineOpts = append(engineOpts, conversation.WithArchiver(archiver))
	}
	engine := conversation.NewOrchestrator(
		turnStore,
		shopStore,
		catalogStore,
		generator,
		orderSvc,
		eventPublisher,
		logger,
		engineOpts...,
	)

	// Inline workers drain the in-memory queue inside this process; with
	// SQS the separate worker binary owns consumption.
	var inlineWorker *conversation.Worker
	if memQueue != nil {
		inlineWorker = conversation.NewWorker(engine, memQueue, nil, logger,
			conversation.WithWorkerCount(cfg.WorkerCount),
		)
		inlineWorker.Start(ctx)
	}

	// Real-time fan-out: outbox rows drain into the dashboard hub and the
	// webchat sockets.
	hub := realtime.NewHub(logger)
	realtimeHandler := realtime.NewHandler(hub, func(token string) (string, error) {
		actor, err := httpmiddleware.ParseDashboardToken(cfg.DashboardJWTSecret, token)
		if err != nil {
			return "", err
		}
		return actor.ShopID, nil
	}, logger)
	webchatHandler := webchat.NewHandler(engine, turnStore, webchat.WidgetJS, logger)
	deliverer := events.NewDeliverer(outboxStore, events.Fanout{hub, webchatHandler}, logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxInterval)
	go deliverer.Start(ctx)

	// Billing: the subscription sweeper runs inline only in the all-in-one
	// dev setup; production deployments run the billing-worker binary.
	billingWebhook := billing.NewWebhookHandler(cfg.BillingWebhookSecret, shopStore, processedStore, eventPublisher, noticeSvc, logger)
	billingOverride := billing.NewOverrideHandler(shopStore, logger)
	if cfg.UseMemoryQueue {
		sweeper := billing.NewSweeper(shopStore, noticeSvc, logger).
			WithInterval(cfg.BillingSweepInterval).
			WithDedupPurge(processedStore)
		go sweeper.Start(ctx)
		logger.Info("billing sweeper running inline", "interval", cfg.BillingSweepInterval.String())
	}

	// HTTP handlers
	shopsHandler := shops.NewHandler(shopStore, logger)
	conversationHandler := conversation.NewHandler(engine, turnStore, jobRecorder(jobStore), logger)
	ordersHandler := orders.NewHandler(orderStore, orderSvc, catalogStore, eventPublisher, logger)
	catalogHandler := catalog.NewHandler(catalogStore, logger)
	appointmentsHandler := appointments.NewHandler(appointmentStore, catalogStore, eventPublisher, logger)
	statsHandler := handlers.NewStatsHandler(sqlDB, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:              logger,
		ShopsHandler:        shopsHandler,
		ConversationHandler: conversationHandler,
		OrdersHandler:       ordersHandler,
		CatalogHandler:      catalogHandler,
		AppointmentsHandler: appointmentsHandler,
		StatsHandler:        statsHandler,
		BillingOverride:     billingOverride,
		BillingWebhook:      billingWebhook,
		WebchatHandler:      webchatHandler,
		RealtimeHandler:     realtimeHandler,
		MetricsHandler:      promhttp.Handler(),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		DashboardAuthSecret: cfg.DashboardJWTSecret,
		CORSAllowedOrigins:  splitOrigins(cfg.CORSAllowedOrigins),
		RateLimitPerSecond:  cfg.RateLimitPerSecond,
		RateLimitBurst:      cfg.RateLimitBurst,
	}
	if channelSet.WhatsApp != nil {
		routerCfg.WhatsAppWebhook = channelSet.WhatsApp.Webhook()
	}
	if channelSet.Instagram != nil {
		routerCfg.InstagramWebhook = channelSet.Instagram.Webhook()
	}
	if channelSet.Messenger != nil {
		routerCfg.MessengerWebhook = channelSet.Messenger.Webhook()
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if inlineWorker != nil {
		waitCh := make(chan struct{})
		go func() {
			inlineWorker.Wait()
			close(waitCh)
		}()
		select {
		case <-waitCh:
			logger.Info("inline workers stopped")
		case <-shutdownCtx.Done():
			logger.Error("inline worker shutdown timed out", "error", shutdownCtx.Err())
		}
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// jobRecorder keeps a nil *JobStore from becoming a non-nil interface, which
// would defeat the handler's degraded-mode check.
func jobRecorder(store *conversation.JobStore) conversation.JobRecorder {
	if store == nil {
		return nil
	}
	return store
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
