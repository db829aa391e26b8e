package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/internal/intent"
)

func TestEvaluate(t *testing.T) {
	widget := catalog.Product{ID: "p1", ShopID: "shop-1", Name: "Widget", Price: 25, Cost: 10, Stock: 5, Active: true}
	tray := catalog.Product{ID: "p2", ShopID: "shop-1", Name: "Walnut Tray", Price: 40, Cost: 15, Stock: 2, Active: true}

	tests := []struct {
		name       string
		in         ExtractionInput
		wantDraft  *Draft
		wantReason string
	}{
		{
			name: "full details in customer text",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Great, your order is confirmed and will be ready soon!",
				RecentCustomerText: "My name is Sara, my number is 555-1234, I want 2 units of Widget",
				Products:           []catalog.Product{widget, tray},
			},
			wantDraft: &Draft{
				Product:         widget,
				Quantity:        2,
				CustomerName:    "Sara",
				CustomerContact: "555-1234",
				UnitPrice:       25,
				UnitCost:        10,
				Revenue:         50,
				Profit:          30,
			},
		},
		{
			name: "quantity written before the product name",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Thanks Sara, we're processing your order now.",
				RecentCustomerText: "I want to order 3 widgets, name is Sara, phone is 555-1234",
				Products:           []catalog.Product{widget, tray},
			},
			wantDraft: &Draft{
				Product:         widget,
				Quantity:        3,
				CustomerName:    "Sara",
				CustomerContact: "555-1234",
				UnitPrice:       25,
				UnitCost:        10,
				Revenue:         75,
				Profit:          45,
			},
		},
		{
			name: "product mentioned only in ai reply defaults quantity to one",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Your Walnut Tray order is being processed.",
				RecentCustomerText: "yes please go ahead",
				Products:           []catalog.Product{widget, tray},
				StoredCustomerName: "Omar",
				ExternalCustomerID: "wa_9021",
			},
			wantDraft: &Draft{
				Product:         tray,
				Quantity:        1,
				CustomerName:    "Omar",
				CustomerContact: "wa_9021",
				UnitPrice:       40,
				UnitCost:        15,
				Revenue:         40,
				Profit:          25,
			},
		},
		{
			name: "arabic name after english marker",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder, MatchedLanguage: "ar"},
				AIReply:            "Order confirmed, thank you!",
				RecentCustomerText: "my name is ليلى, I want 1 unit of widget",
				Products:           []catalog.Product{widget},
				ExternalCustomerID: "ig_771",
			},
			wantDraft: &Draft{
				Product:         widget,
				Quantity:        1,
				CustomerName:    "ليلى",
				CustomerContact: "ig_771",
				UnitPrice:       25,
				UnitCost:        10,
				Revenue:         25,
				Profit:          15,
			},
		},
		{
			name: "no stored name falls back to customer placeholder",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Your widget order is confirmed.",
				RecentCustomerText: "I will take the widget",
				Products:           []catalog.Product{widget},
				ExternalCustomerID: "wa_404",
			},
			wantDraft: &Draft{
				Product:         widget,
				Quantity:        1,
				CustomerName:    "Customer",
				CustomerContact: "wa_404",
				UnitPrice:       25,
				UnitCost:        10,
				Revenue:         25,
				Profit:          15,
			},
		},
		{
			name: "negative cost clamps to zero",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Order confirmed for your widget.",
				RecentCustomerText: "3 pcs of widget please",
				Products:           []catalog.Product{{ID: "p9", Name: "Widget", Price: 10, Cost: -3, Stock: 8}},
			},
			wantDraft: &Draft{
				Product:         catalog.Product{ID: "p9", Name: "Widget", Price: 10, Cost: -3, Stock: 8},
				Quantity:        3,
				CustomerName:    "Customer",
				UnitPrice:       10,
				UnitCost:        0,
				Revenue:         30,
				Profit:          30,
			},
		},
		{
			name: "intent is not order",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryGeneral},
				AIReply:            "Your order is confirmed.",
				RecentCustomerText: "2 units of widget",
				Products:           []catalog.Product{widget},
			},
			wantReason: `intent is "general", not order`,
		},
		{
			name: "reply lacks confirmation keyword",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Let me check availability with the shop.",
				RecentCustomerText: "2 units of widget",
				Products:           []catalog.Product{widget},
			},
			wantReason: "ai reply does not contain a confirmation keyword",
		},
		{
			name: "no catalog product mentioned",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Your order is confirmed.",
				RecentCustomerText: "I want 2 units of the gizmo",
				Products:           []catalog.Product{widget},
			},
			wantReason: "no active catalog product is mentioned in the conversation",
		},
		{
			name: "quantity exceeds stock",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Your order is confirmed.",
				RecentCustomerText: "I want 10 units of widget",
				Products:           []catalog.Product{widget},
			},
			wantReason: `requested quantity 10 exceeds stock 5 for "Widget"`,
		},
		{
			name: "zero stock rejects even the default quantity",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Your order is confirmed.",
				RecentCustomerText: "I want the widget",
				Products:           []catalog.Product{{ID: "p3", Name: "Widget", Price: 5, Stock: 0}},
			},
			wantReason: `requested quantity 1 exceeds stock 0 for "Widget"`,
		},
		{
			name: "negative price blocks extraction",
			in: ExtractionInput{
				Intent:             intent.Result{Category: intent.CategoryOrder},
				AIReply:            "Your order is confirmed.",
				RecentCustomerText: "one widget please",
				Products:           []catalog.Product{{ID: "p4", Name: "Widget", Price: -1, Stock: 4}},
			},
			wantReason: `product "Widget" has an invalid price`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, reasons := Evaluate(tt.in)
			if tt.wantDraft != nil {
				require.NotNil(t, draft, "reasons: %v", reasons)
				assert.Empty(t, reasons)
				assert.Equal(t, *tt.wantDraft, *draft)
				return
			}
			assert.Nil(t, draft)
			require.Len(t, reasons, 1)
			assert.Equal(t, tt.wantReason, reasons[0])
		})
	}
}

func TestParseQuantityVariants(t *testing.T) {
	tests := []struct {
		text    string
		product string
		want    int
	}{
		{"i want 2 units of widget", "widget", 2},
		{"give me 3 items", "widget", 3},
		{"4 pieces please", "widget", 4},
		{"5 pcs", "widget", 5},
		{"send me 12 units", "widget", 12},
		{"i want to order 3 widgets", "widget", 3},
		{"2x widget please", "widget", 2},
		{"no amount stated", "widget", 1},
		{"phone is 555-1234, widget please", "widget", 1},
		{"call me at 555 units later", "widget", 555},
		{"0 units", "widget", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseQuantity(tt.text, tt.product), "text %q", tt.text)
	}
}

func TestExtractContactTrimsDecoration(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"my phone is 555-1234", "555-1234"},
		{"contact: +971 50 123 4567", "+971 50 123 4567"},
		{"my number is (555) 987-6543", "555) 987-6543"},
		{"reach me anytime", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractContact(tt.text), "text %q", tt.text)
	}
}
