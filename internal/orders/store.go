package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type orderDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists orders in the relational database.
type Store struct {
	db orderDB
}

// NewStore initializes a store backed by pgxpool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("orders: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(db orderDB) *Store {
	return &Store{db: db}
}

// Create inserts a new order row.
func (s *Store) Create(ctx context.Context, order *Order) (*Order, error) {
	if order == nil {
		return nil, fmt.Errorf("orders: order is required")
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.Status == "" {
		order.Status = StatusPending
	}

	query := `
		INSERT INTO orders (
			id, shop_id, conversation_id, product_id, product_name,
			customer_name, customer_contact, channel, quantity,
			unit_price, unit_cost, revenue, profit, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	if err := s.db.QueryRow(ctx, query,
		order.ID, order.ShopID, nullable(order.ConversationID), nullable(order.ProductID), order.ProductName,
		order.CustomerName, order.CustomerContact, order.Channel, order.Quantity,
		order.UnitPrice, order.UnitCost, order.Revenue, order.Profit, order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, fmt.Errorf("orders: insert failed: %w", err)
	}
	return order, nil
}

// List returns the shop's orders, newest first.
func (s *Store) List(ctx context.Context, shopID string, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, shop_id, COALESCE(conversation_id, ''), COALESCE(product_id, ''), product_name,
		       customer_name, customer_contact, channel, quantity,
		       unit_price, unit_cost, revenue, profit, status, created_at, updated_at
		FROM orders
		WHERE shop_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, shopID, limit)
	if err != nil {
		return nil, fmt.Errorf("orders: list failed: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.ShopID, &o.ConversationID, &o.ProductID, &o.ProductName,
			&o.CustomerName, &o.CustomerContact, &o.Channel, &o.Quantity,
			&o.UnitPrice, &o.UnitCost, &o.Revenue, &o.Profit, &o.Status,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("orders: scan failed: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetByID fetches one order scoped to the shop.
func (s *Store) GetByID(ctx context.Context, shopID, id string) (*Order, error) {
	query := `
		SELECT id, shop_id, COALESCE(conversation_id, ''), COALESCE(product_id, ''), product_name,
		       customer_name, customer_contact, channel, quantity,
		       unit_price, unit_cost, revenue, profit, status, created_at, updated_at
		FROM orders
		WHERE id = $1 AND shop_id = $2
	`
	var o Order
	if err := s.db.QueryRow(ctx, query, id, shopID).Scan(
		&o.ID, &o.ShopID, &o.ConversationID, &o.ProductID, &o.ProductName,
		&o.CustomerName, &o.CustomerContact, &o.Channel, &o.Quantity,
		&o.UnitPrice, &o.UnitCost, &o.Revenue, &o.Profit, &o.Status,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("orders: select failed: %w", err)
	}
	return &o, nil
}

// UpdateStatus moves an order through its lifecycle.
func (s *Store) UpdateStatus(ctx context.Context, shopID, id, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("orders: invalid status %q", status)
	}
	query := `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND shop_id = $2
	`
	ct, err := s.db.Exec(ctx, query, id, shopID, status)
	if err != nil {
		return fmt.Errorf("orders: update status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
