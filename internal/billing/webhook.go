package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// providerName keys the processed-events table and the payment event payload.
const providerName = "stripe"

// subscriptionStore is the slice of the shops store the webhook needs.
type subscriptionStore interface {
	GetByID(ctx context.Context, id string) (*shops.Shop, error)
	UpdateSubscription(ctx context.Context, id, planID, status string, expiresAt *time.Time) error
}

// processedTracker deduplicates provider events across webhook retries.
type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// receiptSender emails the owner after a successful renewal.
type receiptSender interface {
	SendRenewalReceipt(ctx context.Context, shop *shops.Shop, planName string, amountCents int64, paidThrough time.Time) error
}

// WebhookHandler processes payment-provider webhook events for subscription
// renewals. A verified checkout.session.completed event extends the shop's
// subscription by one plan period, reactivates it, and emits a
// payment_completed event for the dashboard.
//
// The handler acknowledges before side effects settle: receipt and
// processed-marker failures are logged, never surfaced to the provider.
type WebhookHandler struct {
	secret    string
	shops     subscriptionStore
	processed processedTracker
	publisher events.Publisher
	receipts  receiptSender
	logger    *logging.Logger
}

// NewWebhookHandler creates the renewal webhook handler. The publisher and
// receipt sender are optional; the shop store and processed tracker are not.
func NewWebhookHandler(secret string, shopStore subscriptionStore, processed processedTracker, publisher events.Publisher, receipts receiptSender, logger *logging.Logger) *WebhookHandler {
	if shopStore == nil {
		panic("billing: shop store is required")
	}
	if processed == nil {
		panic("billing: processed tracker is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		secret:    secret,
		shops:     shopStore,
		processed: processed,
		publisher: publisher,
		receipts:  receipts,
		logger:    logger.Component("billing"),
	}
}

// Handle processes one webhook delivery.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !verifyProviderSignature(h.secret, payload, r.Header.Get("Stripe-Signature")) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt providerEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode billing event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	if evt.Type != "checkout.session.completed" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if done, err := h.processed.AlreadyProcessed(r.Context(), providerName, evt.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if done {
		w.WriteHeader(http.StatusOK)
		return
	}

	session := evt.Data.Object
	shopID := session.Metadata["shop_id"]
	if shopID == "" {
		// Acknowledge so the provider stops retrying; nothing we can renew.
		h.logger.Warn("billing webhook missing shop metadata", "event_id", evt.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	shop, err := h.shops.GetByID(r.Context(), shopID)
	if err != nil {
		if errors.Is(err, shops.ErrShopNotFound) {
			h.logger.Warn("billing webhook for unknown shop", "event_id", evt.ID, "shop_id", shopID)
			http.Error(w, "shop not found", http.StatusNotFound)
			return
		}
		h.logger.Error("shop lookup failed", "error", err, "shop_id", shopID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	plan, ok := PlanByID(session.Metadata["plan_id"])
	if !ok {
		plan, ok = PlanByID(shop.PlanID)
	}
	if !ok {
		h.logger.Warn("billing webhook with unknown plan", "event_id", evt.ID, "shop_id", shopID, "plan_id", session.Metadata["plan_id"])
		w.WriteHeader(http.StatusOK)
		return
	}

	// Extend from the current expiry when it is still in the future so a
	// renewal never shortens a subscription paid early.
	base := time.Now().UTC()
	if shop.SubscriptionExpiresAt != nil && shop.SubscriptionExpiresAt.After(base) {
		base = shop.SubscriptionExpiresAt.UTC()
	}
	expires := base.Add(plan.Period())

	if err := h.shops.UpdateSubscription(r.Context(), shop.ID, plan.ID, shops.SubscriptionActive, &expires); err != nil {
		h.logger.Error("subscription renewal failed", "error", err, "shop_id", shop.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	amount := session.AmountTotal
	if amount <= 0 {
		amount = plan.PriceCents
	}
	providerRef := session.PaymentIntent
	if providerRef == "" {
		providerRef = session.ID
	}

	if h.publisher != nil {
		env, err := events.NewEnvelope(events.TypePaymentCompleted, events.PaymentEvent{
			Provider:    providerName,
			ProviderRef: providerRef,
			AmountCents: amount,
			PlanID:      plan.ID,
			OccurredAt:  time.Unix(evt.Created, 0).UTC(),
		})
		if err != nil {
			h.logger.Error("payment event build failed", "error", err)
		} else if err := h.publisher.Publish(r.Context(), shop.ID, env); err != nil {
			h.logger.Error("payment event publish failed", "error", err, "shop_id", shop.ID)
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
	}

	if h.receipts != nil {
		if err := h.receipts.SendRenewalReceipt(r.Context(), shop, plan.Name, amount, expires); err != nil {
			h.logger.Warn("renewal receipt failed", "error", err, "shop_id", shop.ID)
		}
	}

	if _, err := h.processed.MarkProcessed(r.Context(), providerName, evt.ID); err != nil {
		h.logger.Error("failed to record processed event", "error", err, "event_id", evt.ID)
	}

	h.logger.Info("subscription renewed",
		"shop_id", shop.ID,
		"plan_id", plan.ID,
		"expires_at", expires,
		"event_id", evt.ID)
	w.WriteHeader(http.StatusOK)
}

// providerEvent is the provider's webhook envelope.
type providerEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object checkoutSession `json:"object"`
	} `json:"data"`
}

// checkoutSession is the completed-checkout object inside the event. The
// metadata carries shop_id and plan_id, set when the session was created.
type checkoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
	Status        string            `json:"status"`
}

// verifyProviderSignature checks the provider's webhook signature header:
// t=<unix>,v1=<hex hmac-sha256 of "<unix>.<payload>">. An empty secret
// bypasses verification for local development. Signatures older than five
// minutes are rejected.
func verifyProviderSignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
