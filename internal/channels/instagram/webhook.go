package instagram

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// WebhookHandler handles Instagram webhook verification and inbound DMs.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	onMessage   func(msg channels.InboundMessage)
	logger      *logging.Logger
}

// NewWebhookHandler creates a webhook handler. onMessage is called for each
// normalized inbound message after the provider has been acknowledged.
func NewWebhookHandler(verifyToken, appSecret string, onMessage func(channels.InboundMessage), logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		onMessage:   onMessage,
		logger:      logger,
	}
}

// HandleVerification handles the GET webhook verification challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	channels.WriteVerification(w, r, h.verifyToken)
}

// HandleInbound handles POST webhook events (incoming DMs).
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.appSecret != "" {
		signature := r.Header.Get(channels.SignatureHeader)
		if !channels.VerifySignature(h.appSecret, body, signature) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Ack before processing so provider retries never depend on our
	// downstream outcome.
	w.WriteHeader(http.StatusOK)

	for _, msg := range ParseWebhookEvent(event, h.logger) {
		if h.onMessage != nil {
			h.onMessage(msg)
		}
	}
}

// ParseWebhookEvent normalizes a webhook event into inbound messages.
// Postbacks become plain text using the button title; entries with neither
// message nor postback are skipped with a log line.
func ParseWebhookEvent(event WebhookEvent, logger *logging.Logger) []channels.InboundMessage {
	if logger == nil {
		logger = logging.Default()
	}

	var messages []channels.InboundMessage
	for _, entry := range event.Entry {
		for _, m := range entry.Messaging {
			businessID := entry.ID
			if businessID == "" {
				businessID = m.Recipient.ID
			}
			normalized := channels.InboundMessage{
				Channel:            channels.ChannelInstagram,
				ExternalBusinessID: businessID,
				ExternalCustomerID: m.Sender.ID,
				Timestamp:          time.UnixMilli(m.Timestamp).UTC(),
			}

			switch {
			case m.Message != nil && m.Message.Text != "":
				normalized.Text = m.Message.Text
				normalized.MessageID = m.Message.MID
			case m.Postback != nil && m.Postback.Title != "":
				normalized.Text = m.Postback.Title
			default:
				logger.Debug("instagram: skipping entry without text", "sender", m.Sender.ID)
				continue
			}

			if normalized.ExternalCustomerID == "" {
				logger.Warn("instagram: skipping entry without sender id")
				continue
			}
			messages = append(messages, normalized)
		}
	}
	return messages
}
