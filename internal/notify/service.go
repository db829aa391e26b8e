package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// Service sends account emails to shop owners: renewal receipts when a
// subscription payment lands and suspension notices when one lapses.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. The email sender may be nil,
// in which case every notification becomes a no-op.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, logger: logger}
}

// SendRenewalReceipt emails the shop owner after a successful subscription
// payment.
func (s *Service) SendRenewalReceipt(ctx context.Context, shop *shops.Shop, planName string, amountCents int64, paidThrough time.Time) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping receipt")
		return nil
	}
	if shop == nil || shop.OwnerEmail == "" {
		s.logger.Warn("notify: shop has no owner email, skipping receipt")
		return nil
	}

	if planName == "" {
		planName = "your plan"
	}
	amount := formatAmount(amountCents)
	through := paidThrough.Format("January 2, 2006")

	subject := fmt.Sprintf("Payment received - %s", shop.Name)
	body := fmt.Sprintf(`Hi %s,

We received your payment of %s for %s.

Shop: %s
Plan: %s
Amount: %s
Active through: %s

Your assistant keeps answering customers as usual. Nothing else to do.

— Tajir`, ownerGreeting(shop), amount, planName, shop.Name, planName, amount, through)

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #10b981;">Payment received</h2>
<p>Hi %s, we received your payment of <strong>%s</strong> for <strong>%s</strong>.</p>
<table style="border-collapse: collapse; margin: 20px 0;">
  %s%s%s%s
</table>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— Tajir</p>
</div>`,
		ownerGreeting(shop), amount, planName,
		receiptRow("Shop", shop.Name),
		receiptRow("Plan", planName),
		receiptRow("Amount", amount),
		receiptRow("Active through", through))

	msg := EmailMessage{
		To:      shop.OwnerEmail,
		ToName:  shop.OwnerName,
		Subject: subject,
		Body:    body,
		HTML:    html,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send renewal receipt", "error", err, "shop_id", shop.ID)
		return fmt.Errorf("notify: renewal receipt: %w", err)
	}
	s.logger.Info("notify: renewal receipt sent", "shop_id", shop.ID, "to", shop.OwnerEmail)
	return nil
}

// SendSuspensionNotice emails the shop owner when their subscription has
// expired and the assistant has been paused.
func (s *Service) SendSuspensionNotice(ctx context.Context, shop *shops.Shop) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping suspension notice")
		return nil
	}
	if shop == nil || shop.OwnerEmail == "" {
		s.logger.Warn("notify: shop has no owner email, skipping suspension notice")
		return nil
	}

	expired := "recently"
	if shop.SubscriptionExpiresAt != nil {
		expired = "on " + shop.SubscriptionExpiresAt.Format("January 2, 2006")
	}

	subject := fmt.Sprintf("Subscription paused - %s", shop.Name)
	body := fmt.Sprintf(`Hi %s,

The subscription for %s expired %s, so the assistant has stopped
replying to customers. Conversations and orders are safe and nothing
has been deleted.

Renew your plan to turn the assistant back on.

— Tajir`, ownerGreeting(shop), shop.Name, expired)

	html := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #ef4444;">Subscription paused</h2>
<p>Hi %s, the subscription for <strong>%s</strong> expired %s, so the assistant has stopped replying to customers.</p>
<p>Conversations and orders are safe and nothing has been deleted.</p>
<p style="background: #fef2f2; padding: 12px; border-radius: 8px; border-left: 4px solid #ef4444;">
  Renew your plan to turn the assistant back on.
</p>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— Tajir</p>
</div>`, ownerGreeting(shop), shop.Name, expired)

	msg := EmailMessage{
		To:      shop.OwnerEmail,
		ToName:  shop.OwnerName,
		Subject: subject,
		Body:    body,
		HTML:    html,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: failed to send suspension notice", "error", err, "shop_id", shop.ID)
		return fmt.Errorf("notify: suspension notice: %w", err)
	}
	s.logger.Info("notify: suspension notice sent", "shop_id", shop.ID, "to", shop.OwnerEmail)
	return nil
}

func ownerGreeting(shop *shops.Shop) string {
	if shop.OwnerName != "" {
		return shop.OwnerName
	}
	return "there"
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

func receiptRow(label, value string) string {
	return fmt.Sprintf(`<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`, label, value)
}
