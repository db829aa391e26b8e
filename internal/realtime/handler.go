package realtime

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// TokenVerifier validates the query token presented at upgrade time and
// returns the shop the session may watch.
type TokenVerifier func(token string) (shopID string, err error)

// Handler upgrades dashboard connections into hub sessions.
type Handler struct {
	hub      *Hub
	verify   TokenVerifier
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket endpoint for a hub. The verifier may be
// nil when the route is mounted behind auth middleware that already put the
// shop in context.
func NewHandler(hub *Hub, verify TokenVerifier, logger *logging.Logger) *Handler {
	if hub == nil {
		panic("realtime: hub is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		hub:    hub,
		verify: verify,
		logger: logger.Component("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The token is the auth; dashboards connect from their own origin
			// in dev and from the app domain in prod.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP authorizes and upgrades the connection. Browsers cannot set
// headers on websocket dials, so the dashboard passes its JWT as ?token=.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	shopID, err := h.authorize(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "shop_id", shopID)
		return
	}

	s := &session{
		hub:    h.hub,
		shopID: shopID,
		conn:   conn,
		send:   make(chan events.Envelope, sendBufferSize),
		done:   make(chan struct{}),
	}
	h.hub.add(s)
	h.logger.Info("realtime session opened", "shop_id", shopID)

	go s.writePump()
	go s.readPump()
}

func (h *Handler) authorize(r *http.Request) (string, error) {
	if shopID, ok := tenancy.ShopIDFromContext(r.Context()); ok {
		return shopID, nil
	}
	if h.verify == nil {
		return "", errors.New("realtime: no token verifier configured")
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		return "", errors.New("realtime: missing token")
	}
	return h.verify(token)
}
