package appointments

import (
	"errors"
	"strings"
	"time"
)

// Appointment statuses. New bookings start pending; the dashboard moves
// them through the rest of the lifecycle.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ErrAppointmentNotFound indicates the appointment id does not exist for
// the shop.
var ErrAppointmentNotFound = errors.New("appointments: appointment not found")

// Appointment is a booking entered by the merchant from the dashboard.
// ServiceName is a snapshot taken at booking time so the record survives
// later catalog edits or deletes.
type Appointment struct {
	ID              string    `json:"id"`
	ShopID          string    `json:"shop_id"`
	ServiceID       string    `json:"service_id,omitempty"`
	ServiceName     string    `json:"service_name"`
	CustomerName    string    `json:"customer_name"`
	CustomerContact string    `json:"customer_contact"`
	Channel         string    `json:"channel"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateAppointmentRequest carries the fields needed to book an
// appointment. ServiceID is optional; when present the service name is
// resolved from the catalog, otherwise ServiceName must be supplied.
type CreateAppointmentRequest struct {
	ServiceID       string    `json:"service_id,omitempty"`
	ServiceName     string    `json:"service_name,omitempty"`
	CustomerName    string    `json:"customer_name"`
	CustomerContact string    `json:"customer_contact,omitempty"`
	Channel         string    `json:"channel,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
}

// Validate checks required fields and applies defaults.
func (r *CreateAppointmentRequest) Validate() error {
	if r == nil {
		return errors.New("appointments: request is required")
	}
	if strings.TrimSpace(r.CustomerName) == "" {
		return errors.New("appointments: customer_name is required")
	}
	if r.ServiceID == "" && strings.TrimSpace(r.ServiceName) == "" {
		return errors.New("appointments: service_id or service_name is required")
	}
	if r.ScheduledAt.IsZero() {
		return errors.New("appointments: scheduled_at is required")
	}
	if r.Channel == "" {
		r.Channel = "chat"
	}
	return nil
}

func validStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}
