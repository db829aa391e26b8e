package orders

import (
	"errors"
	"time"
)

// Order statuses. New orders start pending; the dashboard moves them
// through the rest of the lifecycle.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// PlaceholderCustomerName is recorded when neither the conversation nor the
// message text yields a usable customer name. Callers that backfill names
// onto conversations must skip it.
const PlaceholderCustomerName = "Customer"

// ErrOrderNotFound indicates the order id does not exist for the shop.
var ErrOrderNotFound = errors.New("orders: order not found")

// Order is a purchase extracted from a conversation or entered manually.
// ProductName, UnitPrice and UnitCost are snapshots taken at sale time so
// the record survives later catalog edits or deletes.
type Order struct {
	ID              string    `json:"id"`
	ShopID          string    `json:"shop_id"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	ProductID       string    `json:"product_id,omitempty"`
	ProductName     string    `json:"product_name"`
	CustomerName    string    `json:"customer_name"`
	CustomerContact string    `json:"customer_contact"`
	Channel         string    `json:"channel"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unit_price"`
	UnitCost        float64   `json:"unit_cost"`
	Revenue         float64   `json:"revenue"`
	Profit          float64   `json:"profit"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
