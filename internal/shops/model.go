package shops

import (
	"errors"
	"strings"
	"time"
)

// BusinessMode selects which catalog a shop sells from.
type BusinessMode string

const (
	ModeProducts BusinessMode = "products"
	ModeServices BusinessMode = "services"
)

// Valid reports whether the mode is one we recognize.
func (m BusinessMode) Valid() bool {
	return m == ModeProducts || m == ModeServices
}

// Subscription statuses.
const (
	SubscriptionActive    = "active"
	SubscriptionSuspended = "suspended"
)

// ErrShopNotFound indicates the shop id does not exist.
var ErrShopNotFound = errors.New("shops: shop not found")

// Shop is one isolated merchant on the platform. Every conversation,
// message, order and appointment is scoped to a shop id.
type Shop struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	OwnerName             string       `json:"owner_name,omitempty"`
	OwnerEmail            string       `json:"owner_email"`
	OwnerPhone            string       `json:"owner_phone,omitempty"`
	BusinessMode          BusinessMode `json:"business_mode"`
	Description           string       `json:"description,omitempty"`
	PlanID                string       `json:"plan_id,omitempty"`
	SubscriptionStatus    string       `json:"subscription_status"`
	SubscriptionExpiresAt *time.Time   `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// Suspended reports whether inbound traffic for this shop should be dropped.
func (s *Shop) Suspended() bool {
	return s != nil && s.SubscriptionStatus == SubscriptionSuspended
}

// CreateShopRequest carries the fields needed to register a shop.
type CreateShopRequest struct {
	Name         string       `json:"name"`
	OwnerName    string       `json:"owner_name,omitempty"`
	OwnerEmail   string       `json:"owner_email"`
	OwnerPhone   string       `json:"owner_phone,omitempty"`
	BusinessMode BusinessMode `json:"business_mode"`
	Description  string       `json:"description,omitempty"`
	PlanID       string       `json:"plan_id,omitempty"`
}

// Validate checks required fields.
func (r *CreateShopRequest) Validate() error {
	if r == nil {
		return errors.New("shops: request is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("shops: name is required")
	}
	if strings.TrimSpace(r.OwnerEmail) == "" {
		return errors.New("shops: owner_email is required")
	}
	if r.BusinessMode == "" {
		r.BusinessMode = ModeProducts
	}
	if !r.BusinessMode.Valid() {
		return errors.New("shops: business_mode must be products or services")
	}
	return nil
}

// UpdateShopRequest carries mutable profile fields.
type UpdateShopRequest struct {
	Name         string       `json:"name"`
	OwnerName    string       `json:"owner_name"`
	OwnerEmail   string       `json:"owner_email"`
	OwnerPhone   string       `json:"owner_phone"`
	BusinessMode BusinessMode `json:"business_mode"`
	Description  string       `json:"description"`
}

// ChannelLink binds a provider-side business identity (WhatsApp phone number
// id, Instagram/Messenger page id) to a shop so inbound webhooks can route.
type ChannelLink struct {
	ShopID             string    `json:"shop_id"`
	Channel            string    `json:"channel"`
	ExternalBusinessID string    `json:"external_business_id"`
	CreatedAt          time.Time `json:"created_at"`
}
