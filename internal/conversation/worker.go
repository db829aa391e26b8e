package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeout       = 5 * time.Second
)

// inboundProcessor is the worker's view of the orchestrator.
type inboundProcessor interface {
	HandleInbound(ctx context.Context, req InboundRequest) (*TurnResult, error)
}

// Worker consumes inbound-message jobs from the queue and drives the
// orchestrator. Once a job is received it is always deleted: the job store
// records the outcome, the queue never redelivers.
type Worker struct {
	processor inboundProcessor
	queue     queueClient
	jobs      JobUpdater
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// NewWorker constructs a queue consumer around the orchestrator. The jobs
// updater may be nil when status tracking is disabled platform-wide.
func NewWorker(processor inboundProcessor, queue queueClient, jobs JobUpdater, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		jobs:      jobs,
		logger:    logger.Component("conversation-worker"),
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode conversation job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if payload.Kind != jobTypeInbound {
		w.logger.Error("dropping unknown job type", "kind", payload.Kind, "job_id", payload.ID)
		w.markFailed(ctx, payload, fmt.Sprintf("unknown job type %q", payload.Kind))
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	w.logger.Debug("processing inbound job",
		"job_id", payload.ID,
		"shop_id", payload.Inbound.ShopID,
		"channel", payload.Inbound.Channel,
	)

	result, err := w.processor.HandleInbound(ctx, payload.Inbound)
	switch {
	case err != nil:
		w.logger.Error("inbound job failed",
			"error", err,
			"job_id", payload.ID,
			"shop_id", payload.Inbound.ShopID,
		)
		w.markFailed(ctx, payload, err.Error())
	default:
		var convID string
		if result != nil && result.Conversation != nil {
			convID = result.Conversation.ID
		}
		w.markCompleted(ctx, payload, convID)
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) markCompleted(ctx context.Context, payload queuePayload, conversationID string) {
	if !payload.TrackStatus || w.jobs == nil {
		return
	}
	if err := w.jobs.MarkCompleted(ctx, payload.ID, conversationID); err != nil {
		w.logger.Error("failed to update job status", "error", err, "job_id", payload.ID)
	}
}

func (w *Worker) markFailed(ctx context.Context, payload queuePayload, reason string) {
	if !payload.TrackStatus || w.jobs == nil {
		return
	}
	if err := w.jobs.MarkFailed(ctx, payload.ID, reason); err != nil {
		w.logger.Error("failed to update job status", "error", err, "job_id", payload.ID)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
