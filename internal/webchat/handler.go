// Package webchat serves the embeddable storefront chat widget: a
// WebSocket endpoint for live visitors, an HTTP fallback for networks
// that block upgrades, and the widget script itself. Unlike the Meta
// channels there is no outbound provider; replies travel back over the
// visitor's own connection.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// failureText is shown to visitors when a turn cannot be processed at all.
const failureText = "Sorry, something went wrong. Please try again. عذراً، حدث خطأ ما، يرجى المحاولة مرة أخرى."

// Responder runs one inbound chat turn end to end and returns the reply.
type Responder interface {
	HandleInbound(ctx context.Context, req conversation.InboundRequest) (*conversation.TurnResult, error)
}

// HistoryStore reads a visitor's current thread.
type HistoryStore interface {
	FindCurrent(ctx context.Context, shopID, externalCustomerID string) (*conversation.Conversation, error)
	Messages(ctx context.Context, conversationID string, limit int) ([]conversation.StoredMessage, error)
}

// Handler manages widget connections and messages.
type Handler struct {
	responder Responder
	history   HistoryStore
	logger    *logging.Logger
	widgetJS  []byte

	mu       sync.RWMutex
	sessions map[string]*wsConn // conversationID -> active connection
}

// wsConn wraps one visitor socket. Sends are serialized because both the
// read loop and event broadcasts write to it.
type wsConn struct {
	conn *websocket.Conn
	done chan struct{}

	mu     sync.Mutex
	recent [8]string // agent message ids already pushed
	next   int
}

func (c *wsConn) send(msg OutboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = websocket.JSON.Send(c.conn, msg)
}

// sendAgentMessage pushes an agent message unless that id was already
// delivered on this socket. The synchronous reply path and the event
// fan-out can both carry the same message.
func (c *wsConn) sendAgentMessage(id string, msg OutboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != "" {
		for _, seen := range c.recent {
			if seen == id {
				return
			}
		}
		c.recent[c.next] = id
		c.next = (c.next + 1) % len(c.recent)
	}
	_ = websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	ShopID    string `json:"shop_id"`
	SessionID string `json:"session_id"`
	Name      string `json:"name,omitempty"`
	Text      string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "session", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a webchat handler.
func NewHandler(responder Responder, history HistoryStore, widgetJS []byte, logger *logging.Logger) *Handler {
	if responder == nil {
		panic("webchat: responder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		responder: responder,
		history:   history,
		logger:    logger.Component("webchat"),
		widgetJS:  widgetJS,
		sessions:  make(map[string]*wsConn),
	}
}

// VisitorRef builds the external customer id for a widget session, so chat
// visitors occupy the same keyspace as channel customer ids without
// colliding with them.
func VisitorRef(sessionID string) string {
	return "web:" + sessionID
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles live messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	shopID := r.URL.Query().Get("shop")
	if shopID == "" {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "missing shop parameter"})
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	defer close(wsc.done)

	var registered string
	defer func() {
		if registered != "" {
			h.unregister(registered, wsc)
		}
	}()

	wsc.send(OutboundMessage{Type: "session", SessionID: sessionID})

	// Returning visitors get their open thread replayed and the socket
	// registered for operator pushes straight away.
	if conv := h.currentConversation(r.Context(), shopID, sessionID); conv != nil {
		h.sendHistory(r.Context(), wsc, conv.ID, 50)
		registered = conv.ID
		h.register(registered, wsc)
	}

	h.logger.Info("connection opened", "shop_id", shopID, "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("connection closed", "shop_id", shopID, "error", err)
			return
		}

		if msg.Type == "ping" {
			wsc.send(OutboundMessage{Type: "pong"})
			continue
		}

		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		wsc.send(OutboundMessage{Type: "typing"})

		res, err := h.respond(r.Context(), shopID, sessionID, msg.Name, msg.Text)
		if err != nil {
			wsc.send(OutboundMessage{Type: "error", Text: failureText})
			continue
		}

		if res.Conversation != nil && registered != res.Conversation.ID {
			if registered != "" {
				h.unregister(registered, wsc)
			}
			registered = res.Conversation.ID
			h.register(registered, wsc)
		}
		if res.Reply != nil {
			wsc.sendAgentMessage(res.Reply.ID, OutboundMessage{
				Type:      "message",
				Role:      res.Reply.Role,
				Text:      res.Reply.Content,
				Timestamp: res.Reply.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
	}
}

// respond runs one visitor message through the conversation engine.
func (h *Handler) respond(ctx context.Context, shopID, sessionID, name, text string) (*conversation.TurnResult, error) {
	res, err := h.responder.HandleInbound(ctx, conversation.InboundRequest{
		ShopID:             shopID,
		Channel:            string(channels.ChannelChat),
		ExternalCustomerID: VisitorRef(sessionID),
		CustomerName:       strings.TrimSpace(name),
		Text:               text,
		ReceivedAt:         time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("turn failed", "error", err, "shop_id", shopID)
		return nil, err
	}
	return res, nil
}

func (h *Handler) currentConversation(ctx context.Context, shopID, sessionID string) *conversation.Conversation {
	if h.history == nil {
		return nil
	}
	conv, err := h.history.FindCurrent(ctx, shopID, VisitorRef(sessionID))
	if err != nil {
		if !errors.Is(err, conversation.ErrConversationNotFound) {
			h.logger.Warn("history lookup failed", "error", err, "shop_id", shopID)
		}
		return nil
	}
	return conv
}

func (h *Handler) sendHistory(ctx context.Context, wsc *wsConn, conversationID string, limit int) {
	msgs, err := h.history.Messages(ctx, conversationID, limit)
	if err != nil || len(msgs) == 0 {
		return
	}
	wsc.send(OutboundMessage{Type: "history", Messages: toHistory(msgs)})
}

func (h *Handler) register(conversationID string, wsc *wsConn) {
	h.mu.Lock()
	h.sessions[conversationID] = wsc
	h.mu.Unlock()
}

func (h *Handler) unregister(conversationID string, wsc *wsConn) {
	h.mu.Lock()
	if h.sessions[conversationID] == wsc {
		delete(h.sessions, conversationID)
	}
	h.mu.Unlock()
}

// Broadcast implements events.Broadcaster. Agent messages on the chat
// channel are pushed to the matching visitor socket; everything else is
// dashboard traffic and ignored here. This is how operator takeover
// replies reach the widget.
func (h *Handler) Broadcast(_ context.Context, _ string, env events.Envelope) error {
	if env.Type != events.TypeNewMessage {
		return nil
	}
	var msg events.MessageEvent
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		return nil
	}
	if msg.Channel != string(channels.ChannelChat) || msg.Role != conversation.RoleAgent {
		return nil
	}

	h.mu.RLock()
	wsc, ok := h.sessions[msg.ConversationID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	ts := msg.CreatedAt
	if ts.IsZero() {
		ts = env.Timestamp
	}
	wsc.sendAgentMessage(msg.MessageID, OutboundMessage{
		Type:      "message",
		Role:      msg.Role,
		Text:      msg.Content,
		Timestamp: ts.UTC().Format(time.RFC3339),
	})
	return nil
}

var _ events.Broadcaster = (*Handler)(nil)

// HandleMessage is the HTTP fallback for sending messages. The reply is
// returned in the response body instead of pushed over a socket.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShopID    string `json:"shop_id"`
		SessionID string `json:"session_id"`
		Name      string `json:"name,omitempty"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ShopID == "" || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "shop_id and text are required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	res, err := h.respond(r.Context(), req.ShopID, req.SessionID, req.Name, req.Text)
	if err != nil {
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	resp := struct {
		SessionID      string          `json:"session_id"`
		ConversationID string          `json:"conversation_id,omitempty"`
		Reply          *HistoryMessage `json:"reply,omitempty"`
	}{SessionID: req.SessionID}
	if res.Conversation != nil {
		resp.ConversationID = res.Conversation.ID
	}
	if res.Reply != nil {
		resp.Reply = &HistoryMessage{
			Role:      res.Reply.Role,
			Text:      res.Reply.Content,
			Timestamp: res.Reply.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	shopID := r.URL.Query().Get("shop")
	sessionID := r.URL.Query().Get("session")
	if shopID == "" || sessionID == "" {
		http.Error(w, "shop and session parameters required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	conv := h.currentConversation(r.Context(), shopID, sessionID)
	if conv == nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []HistoryMessage{}})
		return
	}

	msgs, err := h.history.Messages(r.Context(), conv.ID, 100)
	if err != nil {
		h.logger.Error("history load failed", "error", err, "conversation_id", conv.ID)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"conversation_id": conv.ID,
		"messages":        toHistory(msgs),
	})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

func toHistory(msgs []conversation.StoredMessage) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{
			Role:      m.Role,
			Text:      m.Content,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return history
}
