package shops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

type shopStore interface {
	Create(ctx context.Context, req *CreateShopRequest) (*Shop, error)
	GetByID(ctx context.Context, id string) (*Shop, error)
	List(ctx context.Context, limit int) ([]Shop, error)
	UpdateProfile(ctx context.Context, id string, req *UpdateShopRequest) error
	SetSubscriptionStatus(ctx context.Context, id, status string) error
	LinkChannel(ctx context.Context, shopID, channel, externalBusinessID string) error
	ListChannels(ctx context.Context, shopID string) ([]ChannelLink, error)
}

// Handler exposes shop management over HTTP.
type Handler struct {
	store  shopStore
	logger *logging.Logger
}

// NewHandler creates a shop handler.
func NewHandler(store shopStore, logger *logging.Logger) *Handler {
	if store == nil {
		panic("shops: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Create handles POST /admin/shops.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateShopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	shop, err := h.store.Create(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create shop", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, shop)
}

// List handles GET /admin/shops.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	shops, err := h.store.List(r.Context(), 0)
	if err != nil {
		h.logger.Error("failed to list shops", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if shops == nil {
		shops = []Shop{}
	}
	writeJSON(w, http.StatusOK, shops)
}

// Get handles GET /admin/shops/{shopID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	shop, err := h.store.GetByID(r.Context(), shopID)
	if err != nil {
		if errors.Is(err, ErrShopNotFound) {
			writeError(w, http.StatusNotFound, "shop not found")
			return
		}
		h.logger.Error("failed to get shop", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

// Suspend handles POST /admin/shops/{shopID}/suspend.
func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, SubscriptionSuspended)
}

// Activate handles POST /admin/shops/{shopID}/activate.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, SubscriptionActive)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	shopID := chi.URLParam(r, "shopID")
	if err := h.store.SetSubscriptionStatus(r.Context(), shopID, status); err != nil {
		if errors.Is(err, ErrShopNotFound) {
			writeError(w, http.StatusNotFound, "shop not found")
			return
		}
		h.logger.Error("failed to change shop status", "shop_id", shopID, "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": shopID, "subscription_status": status})
}

// LinkChannel handles POST /admin/shops/{shopID}/channels, binding a
// provider business identity (phone number id, page id) to the shop.
func (h *Handler) LinkChannel(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")

	var req struct {
		Channel            string `json:"channel"`
		ExternalBusinessID string `json:"external_business_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.store.GetByID(r.Context(), shopID); err != nil {
		if errors.Is(err, ErrShopNotFound) {
			writeError(w, http.StatusNotFound, "shop not found")
			return
		}
		h.logger.Error("failed to load shop for channel link", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.store.LinkChannel(r.Context(), shopID, req.Channel, req.ExternalBusinessID); err != nil {
		h.logger.Error("failed to link channel", "shop_id", shopID, "channel", req.Channel, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("channel linked", "shop_id", shopID, "channel", req.Channel, "external_business_id", req.ExternalBusinessID)
	writeJSON(w, http.StatusOK, map[string]string{
		"shop_id":              shopID,
		"channel":              req.Channel,
		"external_business_id": req.ExternalBusinessID,
	})
}

// ListChannels handles GET /admin/shops/{shopID}/channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	shopID := chi.URLParam(r, "shopID")
	links, err := h.store.ListChannels(r.Context(), shopID)
	if err != nil {
		h.logger.Error("failed to list channels", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if links == nil {
		links = []ChannelLink{}
	}
	writeJSON(w, http.StatusOK, links)
}

// Profile handles GET /dashboard/shop for the authenticated shop.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	shop, err := h.store.GetByID(r.Context(), shopID)
	if err != nil {
		if errors.Is(err, ErrShopNotFound) {
			writeError(w, http.StatusNotFound, "shop not found")
			return
		}
		h.logger.Error("failed to load shop profile", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

// UpdateProfile handles PUT /dashboard/shop for the authenticated shop.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	var req UpdateShopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.UpdateProfile(r.Context(), shopID, &req); err != nil {
		if errors.Is(err, ErrShopNotFound) {
			writeError(w, http.StatusNotFound, "shop not found")
			return
		}
		h.logger.Error("failed to update shop profile", "shop_id", shopID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": shopID})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
