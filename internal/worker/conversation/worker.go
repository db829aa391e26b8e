// Package conversationworker runs the queue-backed conversation engine as a
// standalone process: it long-polls SQS for inbound-message jobs and drives
// the orchestrator for each one. The API process enqueues; this process
// replies.
package conversationworker

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/tajirhq/tajir-ai-platform/cmd/mainconfig"
	appbootstrap "github.com/tajirhq/tajir-ai-platform/internal/app/bootstrap"
	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/notify"
	"github.com/tajirhq/tajir-ai-platform/internal/orders"
	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// Run starts the async conversation worker and blocks until ctx is canceled.
func Run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if cfg == nil {
		return fmt.Errorf("conversation worker requires config")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.UseMemoryQueue {
		return fmt.Errorf("conversation worker cannot run when USE_MEMORY_QUEUE=true; run inline workers via the API process instead")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("conversation worker requires DATABASE_URL")
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("worker failed to connect to postgres: %w", err)
	}
	defer dbPool.Close()
	sqlDB := stdlib.OpenDBFromPool(dbPool)
	defer sqlDB.Close()

	awsConfig, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	sqsClient := sqs.NewFromConfig(awsConfig)
	queue := conversation.NewSQSQueue(sqsClient, cfg.ConversationQueueURL)
	dynamoClient := dynamodb.NewFromConfig(awsConfig)
	jobStore := conversation.NewJobStore(dynamoClient, cfg.ConversationJobsTable, logger)

	turnStore := conversation.NewConversationStore(sqlDB)
	shopStore := shops.NewStore(dbPool)
	catalogStore := catalog.NewStore(dbPool)
	orderSvc := orders.NewService(orders.NewStore(dbPool), catalogStore, logger)
	publisher := events.NewOutboxPublisher(events.NewOutboxStore(dbPool))

	generator, provider, err := appbootstrap.BuildGenerator(ctx, cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to configure reply generator: %w", err)
	}
	logger.Info("reply generator ready for async workers", "provider", provider)

	// Outbound delivery only: webhooks terminate at the API process, so no
	// inbound callback is wired here.
	channelSet, err := appbootstrap.BuildChannels(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to configure channel adapters: %w", err)
	}

	noticeSvc := notify.NewService(appbootstrap.BuildEmailSender(ctx, cfg, logger), logger)

	opts := []conversation.OrchestratorOption{
		conversation.WithSenders(channelSet.Senders),
		conversation.WithHandoffNotices(noticeSvc),
	}

	redisClient := appbootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if historyCache := appbootstrap.BuildHistoryStore(redisClient, logger); historyCache != nil {
		opts = append(opts, conversation.WithHistoryCache(historyCache))
		logger.Info("prompt history cache enabled for async workers", "redis", cfg.RedisAddr)
	}

	archiver, err := appbootstrap.BuildArchiver(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to configure transcript archiver: %w", err)
	}
	if archiver != nil {
		opts = append(opts, conversation.WithArchiver(archiver))
	}

	engine := conversation.NewOrchestrator(
		turnStore,
		shopStore,
		catalogStore,
		generator,
		orderSvc,
		publisher,
		logger,
		opts...,
	)

	worker := conversation.NewWorker(
		engine,
		queue,
		jobStore,
		logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
	)

	worker.Start(ctx)

	<-ctx.Done()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}

	return nil
}
