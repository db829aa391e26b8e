package whatsapp

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// WebhookHandler handles WhatsApp Cloud API webhook verification and inbound
// messages.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	onMessage   func(msg channels.InboundMessage)
	logger      *logging.Logger
}

// NewWebhookHandler creates a webhook handler. onMessage is called for each
// normalized inbound text message after the provider has been acknowledged.
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

// HandleInbound handles POST webhook events. The provider is acknowledged
// before messages are dispatched; individual entry failures never change the
// response.
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

// ParseWebhookEvent normalizes a Cloud API event into inbound messages.
// Non-text messages and malformed entries are skipped with a log line.
func ParseWebhookEvent(event WebhookEvent, logger *logging.Logger) []channels.InboundMessage {
	if logger == nil {
		logger = logging.Default()
	}

	var messages []channels.InboundMessage
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := map[string]string{}
			for _, contact := range change.Value.Contacts {
				if contact.WaID != "" {
					names[contact.WaID] = contact.Profile.Name
				}
			}
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil {
					logger.Debug("whatsapp: skipping non-text message", "type", m.Type, "message_id", m.ID)
					continue
				}
				if m.From == "" || m.Text.Body == "" {
					logger.Warn("whatsapp: skipping malformed message entry", "message_id", m.ID)
					continue
				}
				messages = append(messages, channels.InboundMessage{
					Channel:            channels.ChannelWhatsApp,
					ExternalBusinessID: change.Value.Metadata.PhoneNumberID,
					ExternalCustomerID: m.From,
					CustomerName:       names[m.From],
					Text:               m.Text.Body,
					MessageID:          m.ID,
					Timestamp:          parseUnixSeconds(m.Timestamp),
				})
			}
		}
	}
	return messages
}

func parseUnixSeconds(raw string) time.Time {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
