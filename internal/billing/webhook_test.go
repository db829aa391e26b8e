package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

func buildCheckoutPayload(t *testing.T, eventID, eventType string, amountTotal int64, metadata map[string]string) []byte {
	t.Helper()
	evt := map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_1",
				"payment_intent": "pi_1",
				"amount_total":   amountTotal,
				"currency":       "usd",
				"metadata":       metadata,
				"status":         "complete",
			},
		},
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func signPayload(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type subscriptionUpdate struct {
	shopID    string
	planID    string
	status    string
	expiresAt *time.Time
}

type stubShopStore struct {
	shop       *shops.Shop
	updateFail error
	updated    *subscriptionUpdate
}

func (s *stubShopStore) GetByID(_ context.Context, id string) (*shops.Shop, error) {
	if s.shop == nil || s.shop.ID != id {
		return nil, shops.ErrShopNotFound
	}
	cp := *s.shop
	return &cp, nil
}

func (s *stubShopStore) UpdateSubscription(_ context.Context, id, planID, status string, expiresAt *time.Time) error {
	if s.updateFail != nil {
		return s.updateFail
	}
	s.updated = &subscriptionUpdate{shopID: id, planID: planID, status: status, expiresAt: expiresAt}
	return nil
}

type stubTracker struct {
	already bool
	marked  []string
}

func (s *stubTracker) AlreadyProcessed(_ context.Context, _, _ string) (bool, error) {
	return s.already, nil
}

func (s *stubTracker) MarkProcessed(_ context.Context, _, eventID string) (bool, error) {
	s.marked = append(s.marked, eventID)
	return true, nil
}

type stubPublisher struct {
	shopIDs []string
	envs    []events.Envelope
}

func (s *stubPublisher) Publish(_ context.Context, shopID string, env events.Envelope) error {
	s.shopIDs = append(s.shopIDs, shopID)
	s.envs = append(s.envs, env)
	return nil
}

type receiptCall struct {
	shop        *shops.Shop
	planName    string
	amountCents int64
	paidThrough time.Time
}

type stubReceipts struct {
	calls []receiptCall
}

func (s *stubReceipts) SendRenewalReceipt(_ context.Context, shop *shops.Shop, planName string, amountCents int64, paidThrough time.Time) error {
	s.calls = append(s.calls, receiptCall{shop: shop, planName: planName, amountCents: amountCents, paidThrough: paidThrough})
	return nil
}

func newWebhookFixture(secret string) (*WebhookHandler, *stubShopStore, *stubTracker, *stubPublisher, *stubReceipts) {
	expires := time.Now().Add(5 * 24 * time.Hour).UTC().Truncate(time.Second)
	store := &stubShopStore{shop: &shops.Shop{
		ID:                    "shop-1",
		Name:                  "Souq Noor",
		OwnerName:             "Noor",
		OwnerEmail:            "noor@souq.example",
		PlanID:                PlanStarter,
		SubscriptionStatus:    shops.SubscriptionActive,
		SubscriptionExpiresAt: &expires,
	}}
	tracker := &stubTracker{}
	pub := &stubPublisher{}
	receipts := &stubReceipts{}
	h := NewWebhookHandler(secret, store, tracker, pub, receipts, logging.Default())
	return h, store, tracker, pub, receipts
}

func postWebhook(t *testing.T, h *WebhookHandler, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "https://api.tajir.example/webhooks/billing", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func TestWebhookRenewsSubscription(t *testing.T) {
	h, store, tracker, pub, receipts := newWebhookFixture("whsec_test")
	storedExpiry := *store.shop.SubscriptionExpiresAt

	body := buildCheckoutPayload(t, "evt_1", "checkout.session.completed", 7900, map[string]string{
		"shop_id": "shop-1",
		"plan_id": PlanGrowth,
	})
	rr := postWebhook(t, h, body, signPayload(body, "whsec_test"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if store.updated == nil {
		t.Fatal("expected subscription update")
	}
	if store.updated.planID != PlanGrowth {
		t.Errorf("expected plan %q, got %q", PlanGrowth, store.updated.planID)
	}
	if store.updated.status != shops.SubscriptionActive {
		t.Errorf("expected status active, got %q", store.updated.status)
	}
	// Paid while still active: the new expiry stacks on the old one.
	wantExpiry := storedExpiry.Add(30 * 24 * time.Hour)
	if store.updated.expiresAt == nil || !store.updated.expiresAt.Equal(wantExpiry) {
		t.Errorf("expected expiry %v, got %v", wantExpiry, store.updated.expiresAt)
	}

	if len(pub.envs) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.envs))
	}
	if pub.shopIDs[0] != "shop-1" {
		t.Errorf("event published for wrong shop: %s", pub.shopIDs[0])
	}
	if pub.envs[0].Type != events.TypePaymentCompleted {
		t.Errorf("expected %s event, got %s", events.TypePaymentCompleted, pub.envs[0].Type)
	}
	var payment events.PaymentEvent
	if err := json.Unmarshal(pub.envs[0].Data, &payment); err != nil {
		t.Fatalf("decode payment event: %v", err)
	}
	if payment.Provider != "stripe" || payment.ProviderRef != "pi_1" {
		t.Errorf("unexpected provider fields: %+v", payment)
	}
	if payment.AmountCents != 7900 {
		t.Errorf("expected 7900 cents, got %d", payment.AmountCents)
	}
	if payment.PlanID != PlanGrowth {
		t.Errorf("expected plan id in event, got %q", payment.PlanID)
	}

	if len(receipts.calls) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(receipts.calls))
	}
	if receipts.calls[0].planName != "Growth" {
		t.Errorf("expected receipt for Growth, got %q", receipts.calls[0].planName)
	}
	if !receipts.calls[0].paidThrough.Equal(wantExpiry) {
		t.Errorf("receipt paid-through mismatch: %v", receipts.calls[0].paidThrough)
	}

	if len(tracker.marked) != 1 || tracker.marked[0] != "evt_1" {
		t.Errorf("expected event marked processed, got %v", tracker.marked)
	}
}

func TestWebhookRenewsLapsedShopFromNow(t *testing.T) {
	h, store, _, _, _ := newWebhookFixture("")
	past := time.Now().Add(-10 * 24 * time.Hour).UTC()
	store.shop.SubscriptionExpiresAt = &past
	store.shop.SubscriptionStatus = shops.SubscriptionSuspended

	before := time.Now().UTC()
	body := buildCheckoutPayload(t, "evt_2", "checkout.session.completed", 2900, map[string]string{
		"shop_id": "shop-1",
		"plan_id": PlanStarter,
	})
	rr := postWebhook(t, h, body, "")
	after := time.Now().UTC()

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.updated == nil {
		t.Fatal("expected subscription update")
	}
	if store.updated.status != shops.SubscriptionActive {
		t.Errorf("renewal should reactivate, got %q", store.updated.status)
	}
	lo := before.Add(30 * 24 * time.Hour).Add(-time.Second)
	hi := after.Add(30 * 24 * time.Hour).Add(time.Second)
	got := *store.updated.expiresAt
	if got.Before(lo) || got.After(hi) {
		t.Errorf("lapsed renewal should extend from now: got %v, want within [%v, %v]", got, lo, hi)
	}
}

func TestWebhookRejectsTamperedPayload(t *testing.T) {
	h, store, _, _, _ := newWebhookFixture("whsec_test")

	body := buildCheckoutPayload(t, "evt_3", "checkout.session.completed", 7900, map[string]string{
		"shop_id": "shop-1",
		"plan_id": PlanGrowth,
	})
	sig := signPayload(body, "whsec_test")
	body[len(body)-2] ^= 0x01

	rr := postWebhook(t, h, body, sig)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for tampered payload, got %d", rr.Code)
	}
	if store.updated != nil {
		t.Error("tampered payload must not renew anything")
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h, _, _, _, _ := newWebhookFixture("whsec_test")

	body := buildCheckoutPayload(t, "evt_4", "checkout.session.completed", 7900, map[string]string{"shop_id": "shop-1"})
	rr := postWebhook(t, h, body, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without signature, got %d", rr.Code)
	}
}

func TestWebhookRejectsStaleTimestamp(t *testing.T) {
	h, _, _, _, _ := newWebhookFixture("whsec_test")

	body := buildCheckoutPayload(t, "evt_5", "checkout.session.completed", 7900, map[string]string{"shop_id": "shop-1"})
	ts := fmt.Sprintf("%d", time.Now().Add(-time.Hour).Unix())
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte(ts + "." + string(body)))
	sig := fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	rr := postWebhook(t, h, body, sig)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stale timestamp, got %d", rr.Code)
	}
}

func TestWebhookEmptySecretSkipsVerification(t *testing.T) {
	h, store, _, _, _ := newWebhookFixture("")

	body := buildCheckoutPayload(t, "evt_6", "checkout.session.completed", 2900, map[string]string{
		"shop_id": "shop-1",
		"plan_id": PlanStarter,
	})
	rr := postWebhook(t, h, body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with empty secret, got %d", rr.Code)
	}
	if store.updated == nil {
		t.Error("expected renewal to proceed")
	}
}

func TestWebhookDuplicateEventAcked(t *testing.T) {
	h, store, tracker, pub, _ := newWebhookFixture("")
	tracker.already = true

	body := buildCheckoutPayload(t, "evt_dup", "checkout.session.completed", 7900, map[string]string{
		"shop_id": "shop-1",
		"plan_id": PlanGrowth,
	})
	rr := postWebhook(t, h, body, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", rr.Code)
	}
	if store.updated != nil {
		t.Error("duplicate must not renew again")
	}
	if len(pub.envs) != 0 {
		t.Error("duplicate must not publish again")
	}
	if len(tracker.marked) != 0 {
		t.Error("duplicate must not be re-marked")
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	h, store, _, _, _ := newWebhookFixture("")

	body := buildCheckoutPayload(t, "evt_7", "invoice.payment_failed", 7900, map[string]string{"shop_id": "shop-1"})
	rr := postWebhook(t, h, body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for ignored type, got %d", rr.Code)
	}
	if store.updated != nil {
		t.Error("unrelated event must not touch subscriptions")
	}
}

func TestWebhookMissingShopMetadataAcked(t *testing.T) {
	h, store, tracker, _, _ := newWebhookFixture("")

	body := buildCheckoutPayload(t, "evt_8", "checkout.session.completed", 7900, map[string]string{})
	rr := postWebhook(t, h, body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 ack, got %d", rr.Code)
	}
	if store.updated != nil {
		t.Error("nothing should be renewed without a shop id")
	}
	if len(tracker.marked) != 0 {
		t.Error("unprocessable event should stay unmarked so a corrected retry can land")
	}
}

func TestWebhookUnknownShop(t *testing.T) {
	h, _, _, _, _ := newWebhookFixture("")

	body := buildCheckoutPayload(t, "evt_9", "checkout.session.completed", 7900, map[string]string{
		"shop_id": "shop-missing",
		"plan_id": PlanGrowth,
	})
	rr := postWebhook(t, h, body, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown shop, got %d", rr.Code)
	}
}

func TestWebhookUnknownPlanFallsBackToShopPlan(t *testing.T) {
	h, store, _, pub, _ := newWebhookFixture("")

	body := buildCheckoutPayload(t, "evt_10", "checkout.session.completed", 0, map[string]string{
		"shop_id": "shop-1",
		"plan_id": "platinum",
	})
	rr := postWebhook(t, h, body, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.updated == nil || store.updated.planID != PlanStarter {
		t.Fatalf("expected fallback to the shop's current plan, got %+v", store.updated)
	}
	var payment events.PaymentEvent
	if err := json.Unmarshal(pub.envs[0].Data, &payment); err != nil {
		t.Fatalf("decode payment event: %v", err)
	}
	if payment.AmountCents != 2900 {
		t.Errorf("zero amount should fall back to the plan price, got %d", payment.AmountCents)
	}
}

func TestWebhookRenewalFailure(t *testing.T) {
	h, store, tracker, _, _ := newWebhookFixture("")
	store.updateFail = errors.New("db down")

	body := buildCheckoutPayload(t, "evt_11", "checkout.session.completed", 7900, map[string]string{
		"shop_id": "shop-1",
		"plan_id": PlanGrowth,
	})
	rr := postWebhook(t, h, body, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the provider retries, got %d", rr.Code)
	}
	if len(tracker.marked) != 0 {
		t.Error("failed renewal must stay unmarked")
	}
}

func TestVerifyProviderSignatureMultipleV1(t *testing.T) {
	payload := []byte(`{"id":"evt_x"}`)
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(ts + "." + string(payload)))
	good := hex.EncodeToString(mac.Sum(nil))

	header := fmt.Sprintf("t=%s,v1=deadbeef,v1=%s", ts, good)
	if !verifyProviderSignature("secret", payload, header) {
		t.Error("any matching v1 signature should verify")
	}
}

func TestVerifyProviderSignatureMalformedHeader(t *testing.T) {
	for _, header := range []string{"", "not-a-header", "t=,v1=", "v1=abc", "t=123"} {
		if verifyProviderSignature("secret", []byte("{}"), header) {
			t.Errorf("header %q should not verify", header)
		}
	}
}
