package channels

import (
	"context"
	"sync"
	"time"
)

// Channel identifies the messaging surface a conversation is bound to.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
	ChannelMessenger Channel = "messenger"
	ChannelChat      Channel = "chat"
)

// Valid reports whether the channel is one the platform knows.
func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelInstagram, ChannelMessenger, ChannelChat:
		return true
	}
	return false
}

// InboundMessage is the normalized shape every provider webhook reduces to.
// ExternalBusinessID is the provider-side identity of the receiving business
// (phone number id, page id); ExternalCustomerID is the opaque sender id.
type InboundMessage struct {
	Channel            Channel
	ExternalBusinessID string
	ExternalCustomerID string
	CustomerName       string
	Text               string
	MessageID          string
	Timestamp          time.Time
}

// Sender delivers a plain-text reply back out through one provider.
type Sender interface {
	SendText(ctx context.Context, externalCustomerID, text string) error
}

// Registry holds the wired outbound senders keyed by channel. The orchestrator
// looks up the originating channel here and never talks to providers directly.
type Registry struct {
	mu      sync.RWMutex
	senders map[Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[Channel]Sender)}
}

// Register wires a sender for a channel. Nil senders are ignored so optional
// channels can be left unconfigured.
func (r *Registry) Register(channel Channel, sender Sender) {
	if r == nil || sender == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[channel] = sender
}

// Sender returns the outbound sender for a channel if one is registered.
func (r *Registry) Sender(channel Channel) (Sender, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sender, ok := r.senders[channel]
	return sender, ok
}
