package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// OutboxEntry is a pending realtime event persisted alongside the write
// that produced it.
type OutboxEntry struct {
	ID        uuid.UUID
	ShopID    string
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events for reliable fan-out to dashboard sessions.
type OutboxStore struct {
	pool querier
}

// NewOutboxStore creates an outbox store backed by the pgx pool.
func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithExec(exec querier) *OutboxStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &OutboxStore{pool: exec}
}

// Insert stores an envelope for later delivery, scoped to a shop.
func (s *OutboxStore) Insert(ctx context.Context, shopID string, env Envelope) (uuid.UUID, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal envelope: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, shop_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, id, shopID, env.Type, data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

// FetchPending returns undelivered entries oldest first.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, shop_id, type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.Type, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkDelivered flips an entry to delivered exactly once.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// Broadcaster pushes an envelope to every connected session of a shop.
type Broadcaster interface {
	Broadcast(ctx context.Context, shopID string, env Envelope) error
}

// Publisher is the write side consumed by the orchestrator and webhook
// handlers.
type Publisher interface {
	Publish(ctx context.Context, shopID string, env Envelope) error
}

// Fanout broadcasts to several sinks. Every sink sees the envelope; the
// first error is returned so the deliverer retries the entry.
type Fanout []Broadcaster

// Broadcast implements Broadcaster over all members.
func (f Fanout) Broadcast(ctx context.Context, shopID string, env Envelope) error {
	var first error
	for _, b := range f {
		if b == nil {
			continue
		}
		if err := b.Broadcast(ctx, shopID, env); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Broadcaster = (Fanout)(nil)

// OutboxPublisher implements Publisher by persisting to the outbox; the
// Deliverer later pushes entries to the realtime hub.
type OutboxPublisher struct {
	store *OutboxStore
}

// NewOutboxPublisher wraps an outbox store as a Publisher.
func NewOutboxPublisher(store *OutboxStore) *OutboxPublisher {
	if store == nil {
		panic("events: outbox store required")
	}
	return &OutboxPublisher{store: store}
}

// Publish stores the envelope for asynchronous delivery.
func (p *OutboxPublisher) Publish(ctx context.Context, shopID string, env Envelope) error {
	_, err := p.store.Insert(ctx, shopID, env)
	return err
}

var _ Publisher = (*OutboxPublisher)(nil)

// Deliverer polls the outbox and pushes entries to the broadcaster.
type Deliverer struct {
	store       *OutboxStore
	broadcaster Broadcaster
	logger      *logging.Logger
	batchSize   int32
	interval    time.Duration
}

// NewDeliverer builds an outbox deliverer with default batch and interval.
func NewDeliverer(store *OutboxStore, broadcaster Broadcaster, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		batchSize:   25,
		interval:    2 * time.Second,
	}
}

// WithBatchSize overrides how many entries each drain fetches.
func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

// WithInterval overrides the polling interval.
func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Start runs the delivery loop until ctx is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.broadcaster == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Deliverer) drain(ctx context.Context) {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return
	}
	for _, entry := range entries {
		var env Envelope
		if err := json.Unmarshal(entry.Payload, &env); err != nil {
			d.logger.Error("outbox payload corrupt", "error", err, "event_id", entry.ID)
			if _, markErr := d.store.MarkDelivered(ctx, entry.ID); markErr != nil {
				d.logger.Error("failed to mark corrupt entry delivered", "error", markErr, "event_id", entry.ID)
			}
			continue
		}
		if err := d.broadcaster.Broadcast(ctx, entry.ShopID, env); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type)
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
}
