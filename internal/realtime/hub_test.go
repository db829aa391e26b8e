package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	// Token doubles as the shop id so tests can pick shops per dial.
	h := NewHandler(hub, func(token string) (string, error) {
		return token, nil
	}, logging.Default())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func dialShop(t *testing.T, srv *httptest.Server, shopID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + shopID
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", shopID, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesOnlyShopSessions(t *testing.T) {
	hub := NewHub(logging.Default())
	srv := newTestServer(t, hub)

	first := dialShop(t, srv, "shop-1")
	second := dialShop(t, srv, "shop-1")
	other := dialShop(t, srv, "shop-2")

	waitFor(t, "sessions to register", func() bool {
		return hub.Sessions("shop-1") == 2 && hub.Sessions("shop-2") == 1
	})

	env, err := events.NewEnvelope(events.TypeNewOrder, map[string]string{"order_id": "o-1"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := hub.Broadcast(context.Background(), "shop-1", env); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	for i, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got events.Envelope
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatalf("session %d read: %v", i, err)
		}
		if got.Type != events.TypeNewOrder {
			t.Errorf("session %d: expected %s, got %s", i, events.TypeNewOrder, got.Type)
		}
		if !strings.Contains(string(got.Data), "o-1") {
			t.Errorf("session %d: payload lost: %s", i, got.Data)
		}
	}

	// The other shop's session must stay silent.
	_ = other.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("session of another shop received a foreign event")
	}
}

func TestBroadcastDropsSlowSession(t *testing.T) {
	hub := NewHub(logging.Default())
	s := &session{
		hub:    hub,
		shopID: "shop-9",
		send:   make(chan events.Envelope, 1),
		done:   make(chan struct{}),
	}
	hub.add(s)

	env, err := events.NewEnvelope(events.TypeNewMessage, map[string]string{"text": "hi"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}

	// First broadcast fills the session buffer, second overflows it.
	if err := hub.Broadcast(context.Background(), "shop-9", env); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if hub.Sessions("shop-9") != 1 {
		t.Fatalf("expected session still registered, got %d", hub.Sessions("shop-9"))
	}
	if err := hub.Broadcast(context.Background(), "shop-9", env); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	if hub.Sessions("shop-9") != 0 {
		t.Errorf("slow session should have been dropped, got %d", hub.Sessions("shop-9"))
	}
	select {
	case <-s.done:
	default:
		t.Error("dropped session should be closed")
	}
}

func TestSessionRemovedOnDisconnect(t *testing.T) {
	hub := NewHub(logging.Default())
	srv := newTestServer(t, hub)

	conn := dialShop(t, srv, "shop-1")
	waitFor(t, "session to register", func() bool { return hub.Sessions("shop-1") == 1 })

	conn.Close()
	waitFor(t, "session to unregister", func() bool { return hub.Sessions("shop-1") == 0 })
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	hub := NewHub(logging.Default())
	srv := newTestServer(t, hub)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestHandlerRejectsBadToken(t *testing.T) {
	hub := NewHub(logging.Default())
	h := NewHandler(hub, func(string) (string, error) {
		return "", websocket.ErrBadHandshake
	}, logging.Default())
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?token=bogus")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}
}

func TestHandlerShopFromContext(t *testing.T) {
	hub := NewHub(logging.Default())
	h := NewHandler(hub, nil, logging.Default())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(tenancy.WithShopID(r.Context(), "shop-ctx"))
		h.ServeHTTP(w, r)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	waitFor(t, "context-scoped session", func() bool { return hub.Sessions("shop-ctx") == 1 })
}
