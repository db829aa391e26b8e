package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tajirhq/tajir-ai-platform/internal/catalog"
	"github.com/tajirhq/tajir-ai-platform/internal/events"
	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

type appointmentStore interface {
	Create(ctx context.Context, appt *Appointment) (*Appointment, error)
	List(ctx context.Context, shopID string, limit int) ([]Appointment, error)
	Upcoming(ctx context.Context, shopID string, from time.Time, limit int) ([]Appointment, error)
	GetByID(ctx context.Context, shopID, id string) (*Appointment, error)
	UpdateStatus(ctx context.Context, shopID, id, status string) error
	Reschedule(ctx context.Context, shopID, id string, scheduledAt time.Time) error
}

type serviceDirectory interface {
	GetService(ctx context.Context, shopID, id string) (*catalog.Service, error)
}

// Handler exposes appointment booking to the merchant dashboard. There is
// no automatic extraction from conversations; bookings enter here only.
type Handler struct {
	store     appointmentStore
	services  serviceDirectory
	publisher events.Publisher
	logger    *logging.Logger
}

// NewHandler creates an appointments handler. The service directory and
// publisher are optional.
func NewHandler(store appointmentStore, services serviceDirectory, publisher events.Publisher, logger *logging.Logger) *Handler {
	if store == nil {
		panic("appointments: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, services: services, publisher: publisher, logger: logger}
}

// Create handles POST /dashboard/appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt := &Appointment{
		ShopID:          shopID,
		ServiceID:       req.ServiceID,
		ServiceName:     req.ServiceName,
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		Channel:         req.Channel,
		ScheduledAt:     req.ScheduledAt,
	}

	if req.ServiceID != "" && h.services != nil {
		svc, err := h.services.GetService(r.Context(), shopID, req.ServiceID)
		if err != nil {
			if errors.Is(err, catalog.ErrServiceNotFound) {
				writeError(w, http.StatusBadRequest, "service not found")
				return
			}
			h.logger.Error("failed to resolve service", "shop_id", shopID, "service_id", req.ServiceID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		appt.ServiceName = svc.Name
	}
	if appt.ServiceName == "" {
		writeError(w, http.StatusBadRequest, "service_name is required")
		return
	}

	created, err := h.store.Create(r.Context(), appt)
	if err != nil {
		h.logger.Error("failed to create appointment", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.publishCreated(r.Context(), created)
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /dashboard/appointments. The upcoming=true query
// switches to soonest-first, non-cancelled bookings from now on.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var (
		list []Appointment
		err  error
	)
	if r.URL.Query().Get("upcoming") == "true" {
		list, err = h.store.Upcoming(r.Context(), shopID, time.Now().UTC(), limit)
	} else {
		list, err = h.store.List(r.Context(), shopID, limit)
	}
	if err != nil {
		h.logger.Error("failed to list appointments", "shop_id", shopID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if list == nil {
		list = []Appointment{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /dashboard/appointments/{appointmentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	appointmentID := chi.URLParam(r, "appointmentID")

	appt, err := h.store.GetByID(r.Context(), shopID, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("failed to load appointment", "shop_id", shopID, "appointment_id", appointmentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /dashboard/appointments/{appointmentID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	appointmentID := chi.URLParam(r, "appointmentID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.UpdateStatus(r.Context(), shopID, appointmentID, req.Status); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("failed to update appointment status", "shop_id", shopID, "appointment_id", appointmentID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": appointmentID, "status": req.Status})
}

type rescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Reschedule handles PUT /dashboard/appointments/{appointmentID}/schedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing shop context")
		return
	}
	appointmentID := chi.URLParam(r, "appointmentID")

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScheduledAt.IsZero() {
		writeError(w, http.StatusBadRequest, "scheduled_at is required")
		return
	}

	if err := h.store.Reschedule(r.Context(), shopID, appointmentID, req.ScheduledAt); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("failed to reschedule appointment", "shop_id", shopID, "appointment_id", appointmentID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": appointmentID})
}

func (h *Handler) publishCreated(ctx context.Context, appt *Appointment) {
	if h.publisher == nil {
		return
	}
	env, err := events.NewEnvelope(events.TypeNewAppointment, events.AppointmentEvent{
		AppointmentID: appt.ID,
		CustomerName:  appt.CustomerName,
		ServiceName:   appt.ServiceName,
		ScheduledFor:  appt.ScheduledAt,
		CreatedAt:     appt.CreatedAt,
	})
	if err != nil {
		h.logger.Error("failed to build appointment event", "appointment_id", appt.ID, "error", err)
		return
	}
	if err := h.publisher.Publish(ctx, appt.ShopID, env); err != nil {
		h.logger.Error("failed to publish appointment event", "appointment_id", appt.ID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
