// Package handlers holds the dashboard summary endpoints that aggregate
// across domain packages instead of belonging to one of them.
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/tenancy"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// StatsHandler serves the merchant dashboard home metrics.
type StatsHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

// StatsResponse contains the core per-shop metrics.
type StatsResponse struct {
	ShopID               string  `json:"shop_id"`
	PeriodStart          string  `json:"period_start"`
	PeriodEnd            string  `json:"period_end"`
	Conversations        int64   `json:"conversations"`
	ActiveConversations  int64   `json:"active_conversations"`
	Orders               int64   `json:"orders"`
	PendingOrders        int64   `json:"pending_orders"`
	Revenue              float64 `json:"revenue"`
	UpcomingAppointments int64   `json:"upcoming_appointments"`
	ConversionPct        float64 `json:"conversion_pct"`
}

// NewStatsHandler creates a dashboard stats handler.
func NewStatsHandler(db *sql.DB, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{db: db, logger: logger.Component("dashboard")}
}

// GetStats returns the dashboard summary for the authenticated shop.
// GET /dashboard/stats
// Query params:
//   - start: RFC3339 timestamp (optional, requires end)
//   - end: RFC3339 timestamp (optional, requires start)
//
// Conversations, orders and revenue honor the window; active conversations
// and upcoming appointments are always a now snapshot.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	shopID, ok := tenancy.ShopIDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing shop context", http.StatusUnauthorized)
		return
	}
	if h.db == nil {
		jsonError(w, "stats disabled", http.StatusServiceUnavailable)
		return
	}

	start, end, periodStart, periodEnd, err := parseStatsWindow(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	conversations, err := h.countConversations(ctx, shopID, start, end)
	if err != nil {
		h.logger.Error("failed to count conversations", "shop_id", shopID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	active, err := h.countActiveConversations(ctx, shopID)
	if err != nil {
		h.logger.Error("failed to count active conversations", "shop_id", shopID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	orderCount, revenue, err := h.orderTotals(ctx, shopID, start, end)
	if err != nil {
		h.logger.Error("failed to total orders", "shop_id", shopID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	pending, err := h.countPendingOrders(ctx, shopID, start, end)
	if err != nil {
		h.logger.Error("failed to count pending orders", "shop_id", shopID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	upcoming, err := h.countUpcomingAppointments(ctx, shopID)
	if err != nil {
		h.logger.Error("failed to count appointments", "shop_id", shopID, "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	conversionPct := 0.0
	if conversations > 0 {
		conversionPct = (float64(orderCount) / float64(conversations)) * 100.0
	}

	resp := StatsResponse{
		ShopID:               shopID,
		PeriodStart:          periodStart,
		PeriodEnd:            periodEnd,
		Conversations:        conversations,
		ActiveConversations:  active,
		Orders:               orderCount,
		PendingOrders:        pending,
		Revenue:              revenue,
		UpcomingAppointments: upcoming,
		ConversionPct:        conversionPct,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *StatsHandler) countConversations(ctx context.Context, shopID string, start, end *time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM conversations WHERE shop_id = $1`
	args := []any{shopID}
	query, args = appendWindow(query, args, "created_at", start, end)

	var count int64
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (h *StatsHandler) countActiveConversations(ctx context.Context, shopID string) (int64, error) {
	query := `SELECT COUNT(*) FROM conversations WHERE shop_id = $1 AND state = 'active'`

	var count int64
	if err := h.db.QueryRowContext(ctx, query, shopID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (h *StatsHandler) orderTotals(ctx context.Context, shopID string, start, end *time.Time) (int64, float64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(revenue), 0) FROM orders WHERE shop_id = $1 AND status <> 'cancelled'`
	args := []any{shopID}
	query, args = appendWindow(query, args, "created_at", start, end)

	var count int64
	var revenue float64
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(&count, &revenue); err != nil {
		return 0, 0, err
	}
	return count, revenue, nil
}

func (h *StatsHandler) countPendingOrders(ctx context.Context, shopID string, start, end *time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM orders WHERE shop_id = $1 AND status = 'pending'`
	args := []any{shopID}
	query, args = appendWindow(query, args, "created_at", start, end)

	var count int64
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (h *StatsHandler) countUpcomingAppointments(ctx context.Context, shopID string) (int64, error) {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE shop_id = $1 AND status IN ('pending', 'confirmed') AND scheduled_at >= now()
	`

	var count int64
	if err := h.db.QueryRowContext(ctx, query, shopID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// appendWindow adds a half-open time filter when both bounds are set.
func appendWindow(query string, args []any, column string, start, end *time.Time) (string, []any) {
	if start == nil || end == nil {
		return query, args
	}
	n := len(args) + 1
	query += fmt.Sprintf(" AND %s >= $%d AND %s < $%d", column, n, column, n+1)
	return query, append(args, *start, *end)
}

func parseStatsWindow(r *http.Request) (*time.Time, *time.Time, string, string, error) {
	q := r.URL.Query()
	startRaw := strings.TrimSpace(q.Get("start"))
	endRaw := strings.TrimSpace(q.Get("end"))

	if (startRaw == "") != (endRaw == "") {
		return nil, nil, "", "", fmt.Errorf("both start and end must be provided, or neither")
	}
	if startRaw == "" {
		return nil, nil, "all-time", "now", nil
	}

	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("invalid start: %v", err)
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("invalid end: %v", err)
	}
	if !end.After(start) {
		return nil, nil, "", "", fmt.Errorf("end must be after start")
	}

	startUTC, endUTC := start.UTC(), end.UTC()
	return &startUTC, &endUTC, startUTC.Format(time.RFC3339), endUTC.Format(time.RFC3339), nil
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
