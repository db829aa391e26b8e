package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
)

type fakeOrderStore struct {
	orders     map[string]*Order
	lastStatus string
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*Order)}
}

func (f *fakeOrderStore) List(_ context.Context, shopID string, _ int) ([]Order, error) {
	var out []Order
	for _, o := range f.orders {
		if o.ShopID == shopID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, shopID, id string) (*Order, error) {
	o, ok := f.orders[id]
	if !ok || o.ShopID != shopID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrderStore) UpdateStatus(_ context.Context, shopID, id, status string) error {
	o, ok := f.orders[id]
	if !ok || o.ShopID != shopID {
		return ErrOrderNotFound
	}
	o.Status = status
	f.lastStatus = status
	return nil
}

type fakePlacer struct {
	lastDraft   *Draft
	lastChannel string
	err         error
}

func (f *fakePlacer) CreateFromDraft(_ context.Context, shopID, conversationID, channel string, draft *Draft) (*Order, error) {
	f.lastDraft = draft
	f.lastChannel = channel
	if f.err != nil {
		return nil, f.err
	}
	return &Order{
		ID:           "o-new",
		ShopID:       shopID,
		ProductID:    draft.Product.ID,
		ProductName:  draft.Product.Name,
		CustomerName: draft.CustomerName,
		Channel:      channel,
		Quantity:     draft.Quantity,
		UnitPrice:    draft.UnitPrice,
		UnitCost:     draft.UnitCost,
		Revenue:      draft.Revenue,
		Profit:       draft.Profit,
		Status:       StatusPending,
	}, nil
}

type fakeProducts struct {
	products map[string]*catalog.Product
}

func (f *fakeProducts) GetProduct(_ context.Context, shopID, id string) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok || p.ShopID != shopID {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

type capturePublisher struct {
	envelopes []events.Envelope
}

func (c *capturePublisher) Publish(_ context.Context, _ string, env events.Envelope) error {
	c.envelopes = append(c.envelopes, env)
	return nil
}

func withShop(req *http.Request, shopID string) *http.Request {
	return req.WithContext(tenancy.WithShopID(req.Context(), shopID))
}

func TestListOrdersHandler(t *testing.T) {
	store := newFakeOrderStore()
	store.orders["o1"] = &Order{ID: "o1", ShopID: "shop-1", ProductName: "Widget", Status: StatusPending, CreatedAt: time.Now()}
	h := NewHandler(store, nil, nil, nil, nil)

	req := withShop(httptest.NewRequest(http.MethodGet, "/dashboard/orders", nil), "shop-1")
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []Order
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ProductName != "Widget" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestListOrdersEmptyIsArray(t *testing.T) {
	h := NewHandler(newFakeOrderStore(), nil, nil, nil, nil)

	req := withShop(httptest.NewRequest(http.MethodGet, "/dashboard/orders", nil), "shop-1")
	w := httptest.NewRecorder()
	h.List(w, req)

	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestListOrdersRejectsBadLimit(t *testing.T) {
	h := NewHandler(newFakeOrderStore(), nil, nil, nil, nil)

	req := withShop(httptest.NewRequest(http.MethodGet, "/dashboard/orders?limit=zero", nil), "shop-1")
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListOrdersRequiresShopContext(t *testing.T) {
	h := NewHandler(newFakeOrderStore(), nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/orders", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestUpdateOrderStatusHandler(t *testing.T) {
	store := newFakeOrderStore()
	store.orders["o1"] = &Order{ID: "o1", ShopID: "shop-1", Status: StatusPending}
	h := NewHandler(store, nil, nil, nil, nil)

	r := chi.NewRouter()
	r.Put("/dashboard/orders/{orderID}/status", h.UpdateStatus)

	req := withShop(httptest.NewRequest(http.MethodPut, "/dashboard/orders/o1/status",
		strings.NewReader(`{"status":"completed"}`)), "shop-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if store.lastStatus != StatusCompleted {
		t.Errorf("stored status = %q", store.lastStatus)
	}

	// a different shop cannot see the order
	req = withShop(httptest.NewRequest(http.MethodPut, "/dashboard/orders/o1/status",
		strings.NewReader(`{"status":"cancelled"}`)), "shop-2")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("cross-shop status = %d, want 404", w.Code)
	}
}

func TestCreateOrderManually(t *testing.T) {
	placer := &fakePlacer{}
	products := &fakeProducts{products: map[string]*catalog.Product{
		"p1": {ID: "p1", ShopID: "shop-1", Name: "Widget", Price: 25, Cost: 10, Stock: 5, Active: true},
	}}
	pub := &capturePublisher{}
	h := NewHandler(newFakeOrderStore(), placer, products, pub, nil)

	body := `{"product_id":"p1","quantity":3,"customer_name":"Sara","customer_contact":"555-1234"}`
	req := withShop(httptest.NewRequest(http.MethodPost, "/dashboard/orders", strings.NewReader(body)), "shop-1")
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if placer.lastDraft == nil {
		t.Fatal("expected a draft to reach the placer")
	}
	// money figures come from the catalog, not the request
	if placer.lastDraft.Revenue != 75 || placer.lastDraft.Profit != 45 {
		t.Errorf("revenue = %v, profit = %v, want 75/45", placer.lastDraft.Revenue, placer.lastDraft.Profit)
	}
	if placer.lastChannel != "chat" {
		t.Errorf("channel = %q, want defaulted to chat", placer.lastChannel)
	}
	if len(pub.envelopes) != 1 || pub.envelopes[0].Type != events.TypeNewOrder {
		t.Errorf("expected one new_order event, got %+v", pub.envelopes)
	}
}

func TestCreateOrderManuallyIgnoresClientPricing(t *testing.T) {
	placer := &fakePlacer{}
	products := &fakeProducts{products: map[string]*catalog.Product{
		"p1": {ID: "p1", ShopID: "shop-1", Name: "Widget", Price: 25, Cost: 10, Stock: 5, Active: true},
	}}
	h := NewHandler(newFakeOrderStore(), placer, products, nil, nil)

	// unit_price/revenue in the body are unknown fields and must not matter
	body := `{"product_id":"p1","quantity":1,"unit_price":1,"revenue":1}`
	req := withShop(httptest.NewRequest(http.MethodPost, "/dashboard/orders", strings.NewReader(body)), "shop-1")
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	if placer.lastDraft.UnitPrice != 25 || placer.lastDraft.Revenue != 25 {
		t.Errorf("pricing = %v/%v, want catalog values 25/25", placer.lastDraft.UnitPrice, placer.lastDraft.Revenue)
	}
	if placer.lastDraft.CustomerName != PlaceholderCustomerName {
		t.Errorf("customer = %q, want placeholder", placer.lastDraft.CustomerName)
	}
}

func TestCreateOrderManuallyStockConflict(t *testing.T) {
	placer := &fakePlacer{err: catalog.ErrInsufficientStock}
	products := &fakeProducts{products: map[string]*catalog.Product{
		"p1": {ID: "p1", ShopID: "shop-1", Name: "Widget", Price: 25, Stock: 1, Active: true},
	}}
	h := NewHandler(newFakeOrderStore(), placer, products, nil, nil)

	body := `{"product_id":"p1","quantity":5}`
	req := withShop(httptest.NewRequest(http.MethodPost, "/dashboard/orders", strings.NewReader(body)), "shop-1")
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestCreateOrderManuallyUnknownProduct(t *testing.T) {
	h := NewHandler(newFakeOrderStore(), &fakePlacer{}, &fakeProducts{}, nil, nil)

	body := `{"product_id":"ghost"}`
	req := withShop(httptest.NewRequest(http.MethodPost, "/dashboard/orders", strings.NewReader(body)), "shop-1")
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateOrderManuallyDisabled(t *testing.T) {
	h := NewHandler(newFakeOrderStore(), nil, nil, nil, nil)

	body := `{"product_id":"p1"}`
	req := withShop(httptest.NewRequest(http.MethodPost, "/dashboard/orders", strings.NewReader(body)), "shop-1")
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestGetOrderHandler(t *testing.T) {
	store := newFakeOrderStore()
	store.orders["o1"] = &Order{ID: "o1", ShopID: "shop-1", ProductName: "Tray"}
	h := NewHandler(store, nil, nil, nil, nil)

	r := chi.NewRouter()
	r.Get("/dashboard/orders/{orderID}", h.Get)

	req := withShop(httptest.NewRequest(http.MethodGet, "/dashboard/orders/o1", nil), "shop-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	req = withShop(httptest.NewRequest(http.MethodGet, "/dashboard/orders/nope", nil), "shop-1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
