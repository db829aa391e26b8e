package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/orders"
	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// engine is the handler's view of the orchestrator.
type engine interface {
	SendMessage(ctx context.Context, shopID, conversationID, text string) (*TurnResult, error)
	Pause(ctx context.Context, shopID, conversationID string) (*Conversation, error)
	Resume(ctx context.Context, shopID, conversationID string) (*Conversation, error)
	Archive(ctx context.Context, shopID, conversationID string) (*Conversation, error)
}

// threadReader is the read side used for listings and transcripts.
type threadReader interface {
	List(ctx context.Context, shopID string, states []string, limit int) ([]Conversation, error)
	GetByID(ctx context.Context, shopID, id string) (*Conversation, error)
	Messages(ctx context.Context, conversationID string, limit int) ([]StoredMessage, error)
}

// Handler exposes conversations to the merchant dashboard.
type Handler struct {
	engine engine
	store  threadReader
	jobs   JobRecorder
	logger *logging.Logger
}

// NewHandler creates a conversation handler. The jobs recorder may be nil
// when async status tracking is disabled.
func NewHandler(eng engine, store threadReader, jobs JobRecorder, logger *logging.Logger) *Handler {
	if eng == nil {
		panic("conversation: engine required")
	}
	if store == nil {
		panic("conversation: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: eng, store: store, jobs: jobs, logger: logger}
}

// List handles GET /dashboard/conversations. The state query parameter
// takes a comma-separated list of states; empty means all.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeHandlerError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	var states []string
	if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if s != StateActive && s != StatePaused && s != StateArchived {
				writeHandlerError(w, http.StatusBadRequest, "unknown state "+strconv.Quote(s))
				return
			}
			states = append(states, s)
		}
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeHandlerError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.store.List(r.Context(), shopID, states, limit)
	if err != nil {
		h.logger.Error("failed to list conversations", "shop_id", shopID, "error", err)
		writeHandlerError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []Conversation{}
	}
	writeHandlerJSON(w, http.StatusOK, list)
}

type conversationDetail struct {
	Conversation *Conversation   `json:"conversation"`
	Messages     []StoredMessage `json:"messages"`
}

// Get handles GET /dashboard/conversations/{conversationID}: the
// conversation plus its transcript, oldest first.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeHandlerError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.store.GetByID(r.Context(), shopID, conversationID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			writeHandlerError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation", "shop_id", shopID, "conversation_id", conversationID, "error", err)
		writeHandlerError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeHandlerError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	msgs, err := h.store.Messages(r.Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("failed to load messages", "conversation_id", conversationID, "error", err)
		writeHandlerError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if msgs == nil {
		msgs = []StoredMessage{}
	}
	writeHandlerJSON(w, http.StatusOK, conversationDetail{Conversation: conv, Messages: msgs})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	ConversationID string         `json:"conversation_id"`
	Inbound        *StoredMessage `json:"inbound"`
	Reply          *StoredMessage `json:"reply,omitempty"`
	Order          *orders.Order  `json:"order,omitempty"`
}

// SendMessage handles POST /dashboard/conversations/{conversationID}/messages.
// It runs the full turn synchronously so the dashboard test chat sees the
// reply in the response body.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeHandlerError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	conversationID := chi.URLParam(r, "conversationID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeHandlerError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.SendMessage(r.Context(), shopID, conversationID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage):
			writeHandlerError(w, http.StatusBadRequest, "message text is empty")
		case errors.Is(err, ErrConversationNotFound):
			writeHandlerError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, ErrConversationPaused):
			writeHandlerError(w, http.StatusConflict, "conversation is paused for human takeover")
		case errors.Is(err, ErrConversationArchived):
			writeHandlerError(w, http.StatusConflict, "conversation is archived")
		case errors.Is(err, ErrShopSuspended):
			writeHandlerError(w, http.StatusForbidden, "shop subscription is suspended")
		default:
			h.logger.Error("failed to process message", "shop_id", shopID, "conversation_id", conversationID, "error", err)
			writeHandlerError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeHandlerJSON(w, http.StatusOK, sendMessageResponse{
		ConversationID: conversationID,
		Inbound:        result.Inbound,
		Reply:          result.Reply,
		Order:          result.Order,
	})
}

// Pause handles POST /dashboard/conversations/{conversationID}/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.updateState(w, r, h.engine.Pause)
}

// Resume handles POST /dashboard/conversations/{conversationID}/resume.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.updateState(w, r, h.engine.Resume)
}

// Archive handles POST /dashboard/conversations/{conversationID}/archive.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.updateState(w, r, h.engine.Archive)
}

func (h *Handler) updateState(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (*Conversation, error)) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeHandlerError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := op(r.Context(), shopID, conversationID)
	if err != nil {
		switch {
		case errors.Is(err, ErrConversationNotFound):
			writeHandlerError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, ErrConversationArchived):
			writeHandlerError(w, http.StatusConflict, "conversation is archived")
		default:
			h.logger.Error("failed to update conversation state", "shop_id", shopID, "conversation_id", conversationID, "error", err)
			writeHandlerError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeHandlerJSON(w, http.StatusOK, conv)
}

// JobStatus handles GET /dashboard/conversations/jobs/{jobID} for polling
// async webhook turns.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeHandlerError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	if h.jobs == nil {
		writeHandlerError(w, http.StatusNotFound, "job tracking is disabled")
		return
	}
	jobID := chi.URLParam(r, "jobID")

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			writeHandlerError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to load job", "job_id", jobID, "error", err)
		writeHandlerError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if job.ShopID != "" && job.ShopID != shopID {
		writeHandlerError(w, http.StatusNotFound, "job not found")
		return
	}
	writeHandlerJSON(w, http.StatusOK, job)
}

func writeHandlerJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeHandlerError(w http.ResponseWriter, status int, message string) {
	writeHandlerJSON(w, status, map[string]string{"message": message})
}
