package catalog

import (
	"errors"
	"strings"
	"time"
)

// ErrProductNotFound indicates the product id does not exist for the shop.
var ErrProductNotFound = errors.New("catalog: product not found")

// ErrServiceNotFound indicates the service id does not exist for the shop.
var ErrServiceNotFound = errors.New("catalog: service not found")

// ErrInsufficientStock indicates a decrement would take stock negative.
var ErrInsufficientStock = errors.New("catalog: insufficient stock")

// Product is a physical item a shop sells. Stock is decremented when the
// order extraction heuristic confirms a purchase.
type Product struct {
	ID          string    `json:"id"`
	ShopID      string    `json:"shop_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Cost        float64   `json:"cost"`
	Stock       int       `json:"stock"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Service is a bookable offering for shops in services mode.
type Service struct {
	ID              string    `json:"id"`
	ShopID          string    `json:"shop_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Price           float64   `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateProductRequest carries fields for a new product.
type CreateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
	Stock       int     `json:"stock"`
}

// Validate checks required fields.
func (r *CreateProductRequest) Validate() error {
	if r == nil {
		return errors.New("catalog: request is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("catalog: product name is required")
	}
	if r.Price < 0 {
		return errors.New("catalog: price cannot be negative")
	}
	if r.Stock < 0 {
		return errors.New("catalog: stock cannot be negative")
	}
	return nil
}

// CreateServiceRequest carries fields for a new service.
type CreateServiceRequest struct {
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"duration_minutes"`
}

// Validate checks required fields.
func (r *CreateServiceRequest) Validate() error {
	if r == nil {
		return errors.New("catalog: request is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("catalog: service name is required")
	}
	if r.Price < 0 {
		return errors.New("catalog: price cannot be negative")
	}
	if r.DurationMinutes < 0 {
		return errors.New("catalog: duration cannot be negative")
	}
	return nil
}

// UpdateProductRequest mutates an existing product. Pointer fields are
// applied only when present.
type UpdateProductRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Cost        *float64 `json:"cost,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
	Active      *bool    `json:"active,omitempty"`
}

// UpdateServiceRequest mutates an existing service.
type UpdateServiceRequest struct {
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	Active          *bool    `json:"active,omitempty"`
}
