package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

type orderReader interface {
	List(ctx context.Context, shopID string, limit int) ([]Order, error)
	GetByID(ctx context.Context, shopID, id string) (*Order, error)
	UpdateStatus(ctx context.Context, shopID, id, status string) error
}

type orderPlacer interface {
	CreateFromDraft(ctx context.Context, shopID, conversationID, channel string, draft *Draft) (*Order, error)
}

type productSource interface {
	GetProduct(ctx context.Context, shopID, id string) (*catalog.Product, error)
}

// Handler exposes extracted orders to the merchant dashboard and lets
// merchants record sales manually. Placer, products and publisher are
// only needed for manual creation and may be nil otherwise.
type Handler struct {
	store     orderReader
	placer    orderPlacer
	products  productSource
	publisher events.Publisher
	logger    *logging.Logger
}

// NewHandler creates an orders handler.
func NewHandler(store orderReader, placer orderPlacer, products productSource, publisher events.Publisher, logger *logging.Logger) *Handler {
	if store == nil {
		panic("orders: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, placer: placer, products: products, publisher: publisher, logger: logger}
}

type createOrderRequest struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	CustomerName    string `json:"customer_name"`
	CustomerContact string `json:"customer_contact"`
	Channel         string `json:"channel"`
}

// Create handles POST /dashboard/orders. Price, cost, revenue and profit
// are always taken from the catalog, never from the request.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	if h.placer == nil || h.products == nil {
		writeError(w, http.StatusServiceUnavailable, "manual order creation is disabled")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		req.CustomerName = PlaceholderCustomerName
	}
	if req.Channel == "" {
		req.Channel = "chat"
	}

	product, err := h.products.GetProduct(r.Context(), shopID, req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeError(w, http.StatusBadRequest, "product not found")
			return
		}
		h.logger.Error("failed to resolve product", "shop_id", shopID, "product_id", req.ProductID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	cost := product.Cost
	if cost < 0 {
		cost = 0
	}
	draft := &Draft{
		Product:         *product,
		Quantity:        req.Quantity,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerContact: strings.TrimSpace(req.CustomerContact),
		UnitPrice:       product.Price,
		UnitCost:        cost,
		Revenue:         product.Price * float64(req.Quantity),
		Profit:          (product.Price - cost) * float64(req.Quantity),
	}

	order, err := h.placer.CreateFromDraft(r.Context(), shopID, "", req.Channel, draft)
	if err != nil {
		if errors.Is(err, catalog.ErrInsufficientStock) {
			writeError(w, http.StatusConflict, "insufficient stock")
			return
		}
		h.logger.Error("failed to create order", "shop_id", shopID, "product_id", req.ProductID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.publishCreated(r.Context(), order)
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) publishCreated(ctx context.Context, order *Order) {
	if h.publisher == nil {
		return
	}
	env, err := events.NewEnvelope(events.TypeNewOrder, events.OrderEvent{
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		ProductName:  order.ProductName,
		Quantity:     order.Quantity,
		Revenue:      order.Revenue,
		CreatedAt:    order.CreatedAt,
	})
	if err != nil {
		h.logger.Error("failed to build order event", "order_id", order.ID, "error", err)
		return
	}
	if err := h.publisher.Publish(ctx, order.ShopID, env); err != nil {
		h.logger.Error("failed to publish order event", "order_id", order.ID, "error", err)
	}
}

// List handles GET /dashboard/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.store.List(r.Context(), shopID, limit)
	if err != nil {
		h.logger.Error("failed to list orders", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /dashboard/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	orderID := chi.URLParam(r, "orderID")

	order, err := h.store.GetByID(r.Context(), shopID, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to load order", "shop_id", shopID, "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /dashboard/orders/{orderID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	orderID := chi.URLParam(r, "orderID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.UpdateStatus(r.Context(), shopID, orderID, req.Status); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to update order status", "shop_id", shopID, "order_id", orderID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": orderID, "status": req.Status})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
