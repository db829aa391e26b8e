package whatsapp

import (
	"context"
	"net/http"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// Adapter is the WhatsApp channel adapter: inbound webhook handling plus
// outbound delivery through the Cloud API.
type Adapter struct {
	client  *Client
	webhook *WebhookHandler
	logger  *logging.Logger
}

// NewAdapter wires the webhook handler and Graph client together. onMessage
// receives every normalized inbound message.
func NewAdapter(accessToken, phoneNumberID, appSecret, verifyToken string, onMessage func(channels.InboundMessage), logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		client:  NewClient(accessToken, phoneNumberID),
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

// HandleVerification handles GET /webhooks/whatsapp.
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleVerification(w, r)
}

// HandleWebhook handles POST /webhooks/whatsapp.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleInbound(w, r)
}

// SendText delivers a plain-text reply to a WhatsApp customer.
func (a *Adapter) SendText(ctx context.Context, externalCustomerID, text string) error {
	_, err := a.client.SendTextMessage(ctx, externalCustomerID, text)
	if err != nil {
		a.logger.Error("whatsapp: failed to send message",
			"recipient", externalCustomerID,
			"error", err,
		)
	}
	return err
}

var _ channels.Sender = (*Adapter)(nil)
