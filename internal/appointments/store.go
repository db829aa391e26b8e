package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type apptDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists appointments in the relational database.
type Store struct {
	db apptDB
}

// NewStore initializes a store backed by pgxpool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(db apptDB) *Store {
	return &Store{db: db}
}

const appointmentColumns = `id, shop_id, COALESCE(service_id, ''), service_name,
       customer_name, customer_contact, channel, scheduled_at, status, created_at, updated_at`

// Create inserts a new appointment row.
func (s *Store) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if appt == nil {
		return nil, fmt.Errorf("appointments: appointment is required")
	}
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	if appt.Status == "" {
		appt.Status = StatusPending
	}

	query := `
		INSERT INTO appointments (
			id, shop_id, service_id, service_name,
			customer_name, customer_contact, channel, scheduled_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	if err := s.db.QueryRow(ctx, query,
		appt.ID, appt.ShopID, nullable(appt.ServiceID), appt.ServiceName,
		appt.CustomerName, appt.CustomerContact, appt.Channel, appt.ScheduledAt, appt.Status,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}
	return appt, nil
}

// List returns the shop's appointments, latest scheduled first.
func (s *Store) List(ctx context.Context, shopID string, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE shop_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2
	`, appointmentColumns)
	return s.queryAppointments(ctx, query, shopID, limit)
}

// Upcoming returns non-cancelled appointments scheduled at or after the
// cutoff, soonest first.
func (s *Store) Upcoming(ctx context.Context, shopID string, from time.Time, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE shop_id = $1 AND scheduled_at >= $2 AND status <> $3
		ORDER BY scheduled_at ASC
		LIMIT $4
	`, appointmentColumns)

	rows, err := s.db.Query(ctx, query, shopID, from, StatusCancelled, limit)
	if err != nil {
		return nil, fmt.Errorf("appointments: upcoming failed: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// GetByID fetches one appointment scoped to the shop.
func (s *Store) GetByID(ctx context.Context, shopID, id string) (*Appointment, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE id = $1 AND shop_id = $2
	`, appointmentColumns)

	var a Appointment
	if err := s.db.QueryRow(ctx, query, id, shopID).Scan(
		&a.ID, &a.ShopID, &a.ServiceID, &a.ServiceName,
		&a.CustomerName, &a.CustomerContact, &a.Channel, &a.ScheduledAt, &a.Status,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return &a, nil
}

// UpdateStatus moves an appointment through its lifecycle.
func (s *Store) UpdateStatus(ctx context.Context, shopID, id, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("appointments: invalid status %q", status)
	}
	query := `
		UPDATE appointments SET status = $3, updated_at = now()
		WHERE id = $1 AND shop_id = $2
	`
	ct, err := s.db.Exec(ctx, query, id, shopID, status)
	if err != nil {
		return fmt.Errorf("appointments: update status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Reschedule moves an appointment to a new time.
func (s *Store) Reschedule(ctx context.Context, shopID, id string, scheduledAt time.Time) error {
	if scheduledAt.IsZero() {
		return fmt.Errorf("appointments: scheduled_at is required")
	}
	query := `
		UPDATE appointments SET scheduled_at = $3, updated_at = now()
		WHERE id = $1 AND shop_id = $2
	`
	ct, err := s.db.Exec(ctx, query, id, shopID, scheduledAt)
	if err != nil {
		return fmt.Errorf("appointments: reschedule failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (s *Store) queryAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(
			&a.ID, &a.ShopID, &a.ServiceID, &a.ServiceName,
			&a.CustomerName, &a.CustomerContact, &a.Channel, &a.ScheduledAt, &a.Status,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
