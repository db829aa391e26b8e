package messenger

import (
	"context"
	"net/http"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// Adapter is the Facebook Messenger channel adapter: inbound webhooks from
// Meta plus outbound delivery via the Send API.
type Adapter struct {
	client  *Client
	webhook *WebhookHandler
	logger  *logging.Logger
}

// NewAdapter wires the webhook handler and Send API client together.
// onMessage receives every normalized inbound message.
func NewAdapter(pageAccessToken, appSecret, verifyToken string, onMessage func(channels.InboundMessage), logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		client:  NewClient(pageAccessToken),
		webhook: NewWebhookHandler(verifyToken, appSecret, onMessage, logger),
		logger:  logger,
	}
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (a *Adapter) SetGraphAPIBase(base string) {
	a.client.SetGraphAPIBase(base)
}

// Webhook exposes the inbound handler for router registration.
func (a *Adapter) Webhook() *WebhookHandler {
	return a.webhook
}

// HandleVerification handles GET /webhooks/messenger (Meta challenge).
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleVerification(w, r)
}

// HandleWebhook handles POST /webhooks/messenger (inbound messages).
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleInbound(w, r)
}

// SendText sends a text message to the given Messenger PSID.
func (a *Adapter) SendText(ctx context.Context, externalCustomerID, text string) error {
	_, err := a.client.SendTextMessage(ctx, externalCustomerID, text)
	if err != nil {
		a.logger.Error("messenger: failed to send message",
			"recipient", externalCustomerID,
			"error", err,
		)
	}
	return err
}

var _ channels.Sender = (*Adapter)(nil)
