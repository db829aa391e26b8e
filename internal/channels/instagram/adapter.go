package instagram

import (
	"context"
	"net/http"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// Adapter is the Instagram DM channel adapter: inbound webhooks from Meta
// plus outbound delivery via the Graph API.
type Adapter struct {
	client  *Client
	webhook *WebhookHandler
	logger  *logging.Logger
}

// NewAdapter wires the webhook handler and Graph client together. onMessage
// receives every normalized inbound message.
func NewAdapter(accessToken, appSecret, verifyToken string, onMessage func(channels.InboundMessage), logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		client:  NewClient(accessToken),
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

// HandleVerification handles GET /webhooks/instagram (Meta challenge).
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleVerification(w, r)
}

// HandleWebhook handles POST /webhooks/instagram (inbound messages).
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleInbound(w, r)
}

// SendText sends a text DM to the given Instagram user.
func (a *Adapter) SendText(ctx context.Context, externalCustomerID, text string) error {
	_, err := a.client.SendTextMessage(ctx, externalCustomerID, text)
	if err != nil {
		a.logger.Error("instagram: failed to send message",
			"recipient", externalCustomerID,
			"error", err,
		)
	}
	return err
}

var _ channels.Sender = (*Adapter)(nil)
