package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event types delivered over the realtime channel.
const (
	TypeNewMessage          = "new_message"
	TypeNewOrder            = "new_order"
	TypeNewAppointment      = "new_appointment"
	TypePaymentCompleted    = "payment_completed"
	TypeConversationUpdated = "conversation_updated"
)

// Envelope is the wire format pushed to dashboard subscribers.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// EnvelopeOption customizes the generated envelope (useful in tests).
type EnvelopeOption func(*Envelope)

// WithTimestamp overrides the envelope timestamp.
func WithTimestamp(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.Timestamp = ts.UTC()
		}
	}
}

var nowFunc = time.Now

// NewEnvelope wraps a payload in the realtime wire format.
func NewEnvelope(eventType string, data any, opts ...EnvelopeOption) (Envelope, error) {
	if strings.TrimSpace(eventType) == "" {
		return Envelope{}, fmt.Errorf("events: event type is required")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	env := Envelope{
		Type:      eventType,
		Data:      append([]byte(nil), payload...),
		Timestamp: nowFunc().UTC(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

// MessageEvent is the payload for new_message events.
type MessageEvent struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Channel        string    `json:"channel"`
	CreatedAt      time.Time `json:"created_at"`
}

// OrderEvent is the payload for new_order events.
type OrderEvent struct {
	OrderID        string    `json:"order_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CustomerName   string    `json:"customer_name"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	Revenue        float64   `json:"revenue"`
	CreatedAt      time.Time `json:"created_at"`
}

// AppointmentEvent is the payload for new_appointment events.
type AppointmentEvent struct {
	AppointmentID string    `json:"appointment_id"`
	CustomerName  string    `json:"customer_name"`
	ServiceName   string    `json:"service_name"`
	ScheduledFor  time.Time `json:"scheduled_for"`
	CreatedAt     time.Time `json:"created_at"`
}

// PaymentEvent is the payload for payment_completed events.
type PaymentEvent struct {
	Provider    string    `json:"provider"`
	ProviderRef string    `json:"provider_ref"`
	AmountCents int64     `json:"amount_cents"`
	PlanID      string    `json:"plan_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ConversationEvent is the payload for conversation_updated events.
type ConversationEvent struct {
	ConversationID string    `json:"conversation_id"`
	State          string    `json:"state"`
	PausedForHuman bool      `json:"paused_for_human"`
	UpdatedAt      time.Time `json:"updated_at"`
}
