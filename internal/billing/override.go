package billing

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// OverrideHandler lets platform admins set a shop's subscription by hand:
// comped accounts, support credits, manual recovery after a failed charge.
type OverrideHandler struct {
	shops  subscriptionStore
	logger *logging.Logger
}

// NewOverrideHandler creates the admin billing override handler.
func NewOverrideHandler(shopStore subscriptionStore, logger *logging.Logger) *OverrideHandler {
	if shopStore == nil {
		panic("billing: shop store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OverrideHandler{shops: shopStore, logger: logger.Component("billing")}
}

type overrideRequest struct {
	PlanID    string `json:"plan_id"`
	Status    string `json:"status,omitempty"`     // defaults to active
	ExpiresAt string `json:"expires_at,omitempty"` // RFC3339; defaults to now + plan period when activating
}

// Handle handles POST /admin/shops/{shopID}/billing.
func (h *OverrideHandler) Handle(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, ok := PlanByID(req.PlanID)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown plan")
		return
	}

	status := req.Status
	if status == "" {
		status = shops.SubscriptionActive
	}
	if status != shops.SubscriptionActive && status != shops.SubscriptionSuspended {
		writeError(w, http.StatusBadRequest, "status must be active or suspended")
		return
	}

	var expires *time.Time
	switch {
	case req.ExpiresAt != "":
		parsed, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expires_at")
			return
		}
		utc := parsed.UTC()
		expires = &utc
	case status == shops.SubscriptionActive:
		computed := time.Now().UTC().Add(plan.Period())
		expires = &computed
	}

	if _, err := h.shops.GetByID(r.Context(), shopID); err != nil {
		if errors.Is(err, shops.ErrShopNotFound) {
			writeError(w, http.StatusNotFound, "shop not found")
			return
		}
		h.logger.Error("override: shop lookup failed", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.shops.UpdateSubscription(r.Context(), shopID, plan.ID, status, expires); err != nil {
		h.logger.Error("override: update failed", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("subscription overridden",
		"shop_id", shopID,
		"plan_id", plan.ID,
		"status", status,
	)

	resp := map[string]any{
		"shop_id":             shopID,
		"plan_id":             plan.ID,
		"subscription_status": status,
	}
	if expires != nil {
		resp["subscription_expires_at"] = expires.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
