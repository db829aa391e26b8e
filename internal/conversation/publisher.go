package conversation

import (
	"context"
	"fmt"

	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// Publisher enqueues inbound messages for asynchronous processing by the
// conversation worker.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger.Component("conversation-publisher")}
}

// EnqueueInbound places an inbound message on the queue and returns the job ID
// assigned to it. Callers that need delivery status should pass the returned ID
// to the job store.
func (p *Publisher) EnqueueInbound(ctx context.Context, req InboundRequest, opts ...PublishOption) (string, error) {
	payload := queuePayload{
		Kind:        jobTypeInbound,
		Inbound:     req,
		TrackStatus: true,
	}
	for _, opt := range opts {
		opt(&payload)
	}

	payload, body, err := encodePayload(payload)
	if err != nil {
		return "", err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("conversation: failed to enqueue inbound message: %w", err)
	}

	p.logger.Debug("conversation job enqueued",
		"job_id", payload.ID,
		"shop_id", req.ShopID,
		"channel", req.Channel,
	)
	return payload.ID, nil
}
