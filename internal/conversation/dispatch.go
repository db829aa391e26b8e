package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

const defaultDispatchTimeout = 5 * time.Second

type inboundPublisher interface {
	EnqueueInbound(ctx context.Context, req InboundRequest, opts ...PublishOption) (string, error)
}

// Dispatcher bridges channel adapters and the job queue. Adapters hand it
// every normalized inbound message; it resolves the owning shop and enqueues
// a turn for the worker. Webhook delivery must already be acked by the time
// OnMessage runs, so all failures here are logged and swallowed.
type Dispatcher struct {
	resolver  channels.ShopResolver
	publisher inboundPublisher
	logger    *logging.Logger
	timeout   time.Duration
}

// DispatcherOption customizes dispatch behavior.
type DispatcherOption func(*Dispatcher)

// WithDispatchTimeout bounds the resolve-and-enqueue work for one message.
func WithDispatchTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// NewDispatcher wires shop resolution and job publishing for webhook traffic.
func NewDispatcher(resolver channels.ShopResolver, publisher inboundPublisher, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if resolver == nil {
		panic("conversation: shop resolver cannot be nil")
	}
	if publisher == nil {
		panic("conversation: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		resolver:  resolver,
		publisher: publisher,
		logger:    logger.Component("conversation-dispatch"),
		timeout:   defaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnMessage matches the adapters' callback shape. It never returns an error:
// the provider was already told 200 and will not retry.
func (d *Dispatcher) OnMessage(msg channels.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	d.Dispatch(ctx, msg)
}

// Dispatch resolves the shop that owns the message's business identity and
// enqueues one conversation turn. Unmapped identities are dropped with a
// warning so a misconfigured provider app does not poison the queue.
func (d *Dispatcher) Dispatch(ctx context.Context, msg channels.InboundMessage) {
	if strings.TrimSpace(msg.ExternalCustomerID) == "" || strings.TrimSpace(msg.Text) == "" {
		d.logger.Debug("dropping inbound without customer id or text",
			"channel", string(msg.Channel),
			"business_id", msg.ExternalBusinessID,
		)
		return
	}

	shopID, err := d.resolver.ResolveShopID(ctx, msg.ExternalBusinessID)
	if err != nil {
		if errors.Is(err, channels.ErrShopNotFound) {
			d.logger.Warn("no shop mapped for business identity",
				"channel", string(msg.Channel),
				"business_id", msg.ExternalBusinessID,
			)
		} else {
			d.logger.Error("shop resolution failed",
				"channel", string(msg.Channel),
				"business_id", msg.ExternalBusinessID,
				"error", err,
			)
		}
		return
	}

	req := InboundRequest{
		ShopID:             shopID,
		Channel:            string(msg.Channel),
		ExternalCustomerID: msg.ExternalCustomerID,
		CustomerName:       msg.CustomerName,
		Text:               msg.Text,
		ProviderMessageID:  msg.MessageID,
		ReceivedAt:         msg.Timestamp,
	}
	jobID, err := d.publisher.EnqueueInbound(ctx, req, WithoutJobTracking())
	if err != nil {
		d.logger.Error("failed to enqueue inbound message",
			"shop_id", shopID,
			"channel", req.Channel,
			"error", err,
		)
		return
	}
	d.logger.Debug("inbound message dispatched",
		"job_id", jobID,
		"shop_id", shopID,
		"channel", req.Channel,
	)
}
