package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/shops"
)

// HandoffNotice summarizes a conversation a customer asked a person to
// take over. The orchestrator builds one when it pauses the thread.
type HandoffNotice struct {
	ConversationID  string
	Channel         string
	CustomerName    string
	CustomerContact string
	LastMessage     string
	RequestedAt     time.Time
}

// SendHandoffNotice emails the shop owner that a customer is waiting for
// a person. The assistant has already gone quiet; the owner picks the
// thread up from the dashboard.
func (s *Service) SendHandoffNotice(ctx context.Context, shop *shops.Shop, notice HandoffNotice) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping hand-off notice")
		return nil
	}
	if shop == nil || shop.OwnerEmail == "" {
		s.logger.Warn("notify: shop has no owner email, skipping hand-off notice")
		return nil
	}

	name := strings.TrimSpace(notice.CustomerName)
	if name == "" {
		name = "A customer"
	}
	channel := channelLabel(notice.Channel)

	subject := fmt.Sprintf("Customer waiting for you - %s", shop.Name)
	body := fmt.Sprintf(`Hi %s,

%s on %s asked to speak with a person, so the assistant has stepped
back from the conversation.

%s
Open your dashboard to reply. The assistant stays quiet on this
conversation until you resume it.

— Tajir`, ownerGreeting(shop), name, channel, formatHandoffSummary(notice))

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #f59e0b;">Customer waiting for you</h2>
<p>Hi %s, <strong>%s</strong> on %s asked to speak with a person, so the assistant has stepped back.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  %s
</table>
<p style="background: #fffbeb; padding: 12px; border-radius: 8px; border-left: 4px solid #f59e0b;">
  Open your dashboard to reply. The assistant stays quiet until you resume the conversation.
</p>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— Tajir</p>
</div>`, html.EscapeString(ownerGreeting(shop)), html.EscapeString(name), html.EscapeString(channel),
		formatHandoffSummaryHTML(notice))

	msg := EmailMessage{
		To:      shop.OwnerEmail,
		ToName:  shop.OwnerName,
		Subject: subject,
		Body:    body,
		HTML:    htmlBody,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send hand-off notice", "error", err, "shop_id", shop.ID, "conversation_id", notice.ConversationID)
		return fmt.Errorf("notify: hand-off notice: %w", err)
	}
	s.logger.Info("notify: hand-off notice sent", "shop_id", shop.ID, "conversation_id", notice.ConversationID, "to", shop.OwnerEmail)
	return nil
}

func formatHandoffSummary(notice HandoffNotice) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Customer: %s\n", valueOr(notice.CustomerName, "Not given")))
	b.WriteString(fmt.Sprintf("Contact: %s\n", valueOr(notice.CustomerContact, "Not given")))
	b.WriteString(fmt.Sprintf("Channel: %s\n", channelLabel(notice.Channel)))
	if msg := strings.TrimSpace(notice.LastMessage); msg != "" {
		b.WriteString(fmt.Sprintf("Last message: %q\n", msg))
	}
	if !notice.RequestedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Asked at: %s\n", notice.RequestedAt.Format("January 2, 2006 at 3:04 PM")))
	}
	return b.String()
}

func formatHandoffSummaryHTML(notice HandoffNotice) string {
	var b strings.Builder
	b.WriteString(receiptRow("Customer", html.EscapeString(valueOr(notice.CustomerName, "Not given"))))
	b.WriteString(receiptRow("Contact", html.EscapeString(valueOr(notice.CustomerContact, "Not given"))))
	b.WriteString(receiptRow("Channel", html.EscapeString(channelLabel(notice.Channel))))
	if msg := strings.TrimSpace(notice.LastMessage); msg != "" {
		b.WriteString(receiptRow("Last message", html.EscapeString(msg)))
	}
	if !notice.RequestedAt.IsZero() {
		b.WriteString(receiptRow("Asked at", notice.RequestedAt.Format("January 2, 2006 at 3:04 PM")))
	}
	return b.String()
}

func channelLabel(channel string) string {
	switch channel {
	case "whatsapp":
		return "WhatsApp"
	case "instagram":
		return "Instagram"
	case "messenger":
		return "Messenger"
	case "chat":
		return "web chat"
	default:
		return valueOr(channel, "an unknown channel")
	}
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
