package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

type catalogStore interface {
	CreateProduct(ctx context.Context, shopID string, req *CreateProductRequest) (*Product, error)
	ListProducts(ctx context.Context, shopID string) ([]Product, error)
	UpdateProduct(ctx context.Context, shopID, id string, req *UpdateProductRequest) error
	DeleteProduct(ctx context.Context, shopID, id string) error
	CreateService(ctx context.Context, shopID string, req *CreateServiceRequest) (*Service, error)
	ListServices(ctx context.Context, shopID string) ([]Service, error)
	UpdateService(ctx context.Context, shopID, id string, req *UpdateServiceRequest) error
	DeleteService(ctx context.Context, shopID, id string) error
}

// Handler exposes catalog CRUD to the merchant dashboard.
type Handler struct {
	store  catalogStore
	logger *logging.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(store catalogStore, logger *logging.Logger) *Handler {
	if store == nil {
		panic("catalog: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// CreateProduct handles POST /dashboard/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.store.CreateProduct(r.Context(), shopID, &req)
	if err != nil {
		h.logger.Error("failed to create product", "shop_id", shopID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// ListProducts handles GET /dashboard/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	products, err := h.store.ListProducts(r.Context(), shopID)
	if err != nil {
		h.logger.Error("failed to list products", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if products == nil {
		products = []Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// UpdateProduct handles PUT /dashboard/products/{productID}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	productID := chi.URLParam(r, "productID")

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.UpdateProduct(r.Context(), shopID, productID, &req); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to update product", "shop_id", shopID, "product_id", productID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": productID})
}

// DeleteProduct handles DELETE /dashboard/products/{productID}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	productID := chi.URLParam(r, "productID")

	if err := h.store.DeleteProduct(r.Context(), shopID, productID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to delete product", "shop_id", shopID, "product_id", productID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateService handles POST /dashboard/services.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	service, err := h.store.CreateService(r.Context(), shopID, &req)
	if err != nil {
		h.logger.Error("failed to create service", "shop_id", shopID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, service)
}

// ListServices handles GET /dashboard/services.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	services, err := h.store.ListServices(r.Context(), shopID)
	if err != nil {
		h.logger.Error("failed to list services", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if services == nil {
		services = []Service{}
	}
	writeJSON(w, http.StatusOK, services)
}

// UpdateService handles PUT /dashboard/services/{serviceID}.
func (h *Handler) UpdateService(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	serviceID := chi.URLParam(r, "serviceID")

	var req UpdateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.UpdateService(r.Context(), shopID, serviceID, &req); err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		h.logger.Error("failed to update service", "shop_id", shopID, "service_id", serviceID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": serviceID})
}

// DeleteService handles DELETE /dashboard/services/{serviceID}.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	serviceID := chi.URLParam(r, "serviceID")

	if err := h.store.DeleteService(r.Context(), shopID, serviceID); err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			writeError(w, http.StatusNotFound, "service not found")
			return
		}
		h.logger.Error("failed to delete service", "shop_id", shopID, "service_id", serviceID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
