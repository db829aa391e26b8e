package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// mockResponder records inbound turns and returns a canned result.
type mockResponder struct {
	requests []conversation.InboundRequest
	result   *conversation.TurnResult
	err      error
}

func (m *mockResponder) HandleInbound(_ context.Context, req conversation.InboundRequest) (*conversation.TurnResult, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &conversation.TurnResult{}, nil
}

// mockHistory serves conversations and messages from memory.
type mockHistory struct {
	conversations map[string]*conversation.Conversation // visitor ref -> conv
	messages      map[string][]conversation.StoredMessage
}

func newMockHistory() *mockHistory {
	return &mockHistory{
		conversations: make(map[string]*conversation.Conversation),
		messages:      make(map[string][]conversation.StoredMessage),
	}
}

func (m *mockHistory) FindCurrent(_ context.Context, shopID, externalCustomerID string) (*conversation.Conversation, error) {
	conv, ok := m.conversations[shopID+"|"+externalCustomerID]
	if !ok {
		return nil, conversation.ErrConversationNotFound
	}
	return conv, nil
}

func (m *mockHistory) Messages(_ context.Context, conversationID string, limit int) ([]conversation.StoredMessage, error) {
	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func turnResult(convID, replyID, replyText string) *conversation.TurnResult {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &conversation.TurnResult{
		Conversation: &conversation.Conversation{ID: convID, ShopID: "shop-1", Channel: "chat"},
		Reply: &conversation.StoredMessage{
			ID:             replyID,
			ConversationID: convID,
			Role:           conversation.RoleAgent,
			Content:        replyText,
			Channel:        "chat",
			CreatedAt:      now,
		},
	}
}

func TestVisitorRef(t *testing.T) {
	assert.Equal(t, "web:sess456", VisitorRef("sess456"))
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32) // 16 bytes = 32 hex chars
}

func TestHandleMessage_HTTP(t *testing.T) {
	resp := &mockResponder{result: turnResult("conv-1", "m-2", "Welcome to the shop!")}
	h := NewHandler(resp, nil, []byte("// widget"), logging.New("error"))

	body := `{"shop_id":"shop-1","session_id":"sess1","name":"Huda","text":"Hello"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got struct {
		SessionID      string          `json:"session_id"`
		ConversationID string          `json:"conversation_id"`
		Reply          *HistoryMessage `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "sess1", got.SessionID)
	assert.Equal(t, "conv-1", got.ConversationID)
	require.NotNil(t, got.Reply)
	assert.Equal(t, conversation.RoleAgent, got.Reply.Role)
	assert.Equal(t, "Welcome to the shop!", got.Reply.Text)

	// The turn went through the engine with chat-channel identity.
	require.Len(t, resp.requests, 1)
	assert.Equal(t, "shop-1", resp.requests[0].ShopID)
	assert.Equal(t, "chat", resp.requests[0].Channel)
	assert.Equal(t, "web:sess1", resp.requests[0].ExternalCustomerID)
	assert.Equal(t, "Huda", resp.requests[0].CustomerName)
	assert.Equal(t, "Hello", resp.requests[0].Text)
}

func TestHandleMessage_MissingFields(t *testing.T) {
	h := NewHandler(&mockResponder{}, nil, nil, logging.New("error"))

	body := `{"shop_id":"","text":"Hello"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessage_GeneratesSessionID(t *testing.T) {
	resp := &mockResponder{result: turnResult("conv-1", "m-2", "Hi!")}
	h := NewHandler(resp, nil, nil, logging.New("error"))

	body := `{"shop_id":"shop-1","text":"Hi"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got["session_id"])
}

func TestHandleMessage_TurnError(t *testing.T) {
	resp := &mockResponder{err: errors.New("store down")}
	h := NewHandler(resp, nil, nil, logging.New("error"))

	body := `{"shop_id":"shop-1","session_id":"sess1","text":"Hello"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleHistory(t *testing.T) {
	hist := newMockHistory()
	hist.conversations["shop-1|web:sess1"] = &conversation.Conversation{ID: "conv-1", ShopID: "shop-1"}
	hist.messages["conv-1"] = []conversation.StoredMessage{
		{Role: conversation.RoleCustomer, Content: "Hello"},
		{Role: conversation.RoleAgent, Content: "Hi there!"},
	}
	h := NewHandler(&mockResponder{}, hist, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/chat/history?shop=shop-1&session=sess1", nil)
	w := httptest.NewRecorder()

	h.HandleHistory(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var got struct {
		ConversationID string           `json:"conversation_id"`
		Messages       []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "conv-1", got.ConversationID)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "customer", got.Messages[0].Role)
	assert.Equal(t, "Hello", got.Messages[0].Text)
	assert.Equal(t, "agent", got.Messages[1].Role)
}

func TestHandleHistory_MissingParams(t *testing.T) {
	h := NewHandler(&mockResponder{}, nil, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/chat/history?shop=shop-1", nil)
	w := httptest.NewRecorder()

	h.HandleHistory(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory_NoStore(t *testing.T) {
	h := NewHandler(&mockResponder{}, nil, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/chat/history?shop=shop-1&session=sess1", nil)
	w := httptest.NewRecorder()

	h.HandleHistory(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Messages []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Empty(t, got.Messages)
}

func TestHandleWidgetJS(t *testing.T) {
	widgetContent := []byte("(function(){ /* widget */ })();")
	h := NewHandler(&mockResponder{}, nil, widgetContent, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/chat/widget.js", nil)
	w := httptest.NewRecorder()

	h.HandleWidgetJS(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/javascript", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, string(widgetContent), w.Body.String())
}

// dialWidget opens a websocket client against the test server.
func dialWidget(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws?" + query
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	return conn
}

func receiveFrame(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestWebSocketTurn(t *testing.T) {
	resp := &mockResponder{result: turnResult("conv-1", "m-agent-1", "Ahlan! How can I help?")}
	h := NewHandler(resp, newMockHistory(), nil, logging.New("error"))

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/ws", h.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialWidget(t, srv, "shop=shop-1&session=sess9")
	defer conn.Close()

	// First frame identifies the session.
	frame := receiveFrame(t, conn)
	assert.Equal(t, "session", frame.Type)
	assert.Equal(t, "sess9", frame.SessionID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "marhaba"}))

	frame = receiveFrame(t, conn)
	assert.Equal(t, "typing", frame.Type)

	frame = receiveFrame(t, conn)
	assert.Equal(t, "message", frame.Type)
	assert.Equal(t, conversation.RoleAgent, frame.Role)
	assert.Equal(t, "Ahlan! How can I help?", frame.Text)

	require.Len(t, resp.requests, 1)
	assert.Equal(t, "web:sess9", resp.requests[0].ExternalCustomerID)
}

func TestWebSocketPing(t *testing.T) {
	h := NewHandler(&mockResponder{}, nil, nil, logging.New("error"))

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/ws", h.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialWidget(t, srv, "shop=shop-1")
	defer conn.Close()

	frame := receiveFrame(t, conn)
	require.Equal(t, "session", frame.Type)
	assert.NotEmpty(t, frame.SessionID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	frame = receiveFrame(t, conn)
	assert.Equal(t, "pong", frame.Type)
}

func TestBroadcastPushesOperatorReply(t *testing.T) {
	resp := &mockResponder{result: turnResult("conv-7", "m-agent-1", "first reply")}
	h := NewHandler(resp, newMockHistory(), nil, logging.New("error"))

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/ws", h.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn := dialWidget(t, srv, "shop=shop-1&session=sessA")
	defer conn.Close()

	receiveFrame(t, conn) // session
	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "hi"}))
	receiveFrame(t, conn) // typing
	receiveFrame(t, conn) // synchronous reply registers the socket

	// A duplicate of the already-delivered reply is suppressed; a fresh
	// operator message comes through.
	dup, err := events.NewEnvelope(events.TypeNewMessage, events.MessageEvent{
		ConversationID: "conv-7", MessageID: "m-agent-1", Role: "agent", Content: "first reply", Channel: "chat",
	})
	require.NoError(t, err)
	require.NoError(t, h.Broadcast(context.Background(), "shop-1", dup))

	operator, err := events.NewEnvelope(events.TypeNewMessage, events.MessageEvent{
		ConversationID: "conv-7", MessageID: "m-operator-1", Role: "agent", Content: "This is Omar, happy to help.", Channel: "chat",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, h.Broadcast(context.Background(), "shop-1", operator))

	frame := receiveFrame(t, conn)
	assert.Equal(t, "message", frame.Type)
	assert.Equal(t, "This is Omar, happy to help.", frame.Text)
}

func TestBroadcastIgnoresOtherTraffic(t *testing.T) {
	h := NewHandler(&mockResponder{}, nil, nil, logging.New("error"))

	order, err := events.NewEnvelope(events.TypeNewOrder, events.OrderEvent{OrderID: "o-1"})
	require.NoError(t, err)
	assert.NoError(t, h.Broadcast(context.Background(), "shop-1", order))

	// Customer echoes and non-chat channels never reach the widget path.
	inbound, err := events.NewEnvelope(events.TypeNewMessage, events.MessageEvent{
		ConversationID: "conv-1", MessageID: "m-1", Role: "customer", Content: "hi", Channel: "chat",
	})
	require.NoError(t, err)
	assert.NoError(t, h.Broadcast(context.Background(), "shop-1", inbound))

	whatsapp, err := events.NewEnvelope(events.TypeNewMessage, events.MessageEvent{
		ConversationID: "conv-1", MessageID: "m-2", Role: "agent", Content: "hi", Channel: "whatsapp",
	})
	require.NoError(t, err)
	assert.NoError(t, h.Broadcast(context.Background(), "shop-1", whatsapp))
}
