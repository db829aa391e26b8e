package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type catalogDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists products and services, always scoped by shop id.
type Store struct {
	db catalogDB
}

// NewStore initializes a store backed by pgxpool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(db catalogDB) *Store {
	return &Store{db: db}
}

// CreateProduct inserts a new product for the shop.
func (s *Store) CreateProduct(ctx context.Context, shopID string, req *CreateProductRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := Product{
		ID:          uuid.New().String(),
		ShopID:      shopID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Cost:        req.Cost,
		Stock:       req.Stock,
		Active:      true,
	}
	query := `
		INSERT INTO products (id, shop_id, name, description, price, cost, stock, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	if err := s.db.QueryRow(ctx, query,
		p.ID, p.ShopID, p.Name, p.Description, p.Price, p.Cost, p.Stock, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("catalog: insert product failed: %w", err)
	}
	return &p, nil
}

// GetProduct fetches one product scoped to the shop.
func (s *Store) GetProduct(ctx context.Context, shopID, id string) (*Product, error) {
	query := `
		SELECT id, shop_id, name, description, price, cost, stock, active, created_at, updated_at
		FROM products
		WHERE id = $1 AND shop_id = $2
	`
	var p Product
	if err := s.db.QueryRow(ctx, query, id, shopID).Scan(
		&p.ID, &p.ShopID, &p.Name, &p.Description, &p.Price, &p.Cost, &p.Stock, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("catalog: select product failed: %w", err)
	}
	return &p, nil
}

// ListProducts returns the shop's products, newest first.
func (s *Store) ListProducts(ctx context.Context, shopID string) ([]Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, shop_id, name, description, price, cost, stock, active, created_at, updated_at
		FROM products
		WHERE shop_id = $1
		ORDER BY created_at DESC
	`, shopID)
}

// ActiveProducts returns products the AI agent may offer and the order
// heuristic may match against.
func (s *Store) ActiveProducts(ctx context.Context, shopID string) ([]Product, error) {
	return s.queryProducts(ctx, `
		SELECT id, shop_id, name, description, price, cost, stock, active, created_at, updated_at
		FROM products
		WHERE shop_id = $1 AND active
		ORDER BY name
	`, shopID)
}

func (s *Store) queryProducts(ctx context.Context, query, shopID string) ([]Product, error) {
	rows, err := s.db.Query(ctx, query, shopID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products failed: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.ShopID, &p.Name, &p.Description, &p.Price, &p.Cost, &p.Stock, &p.Active,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan product failed: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProduct applies the present fields of req.
func (s *Store) UpdateProduct(ctx context.Context, shopID, id string, req *UpdateProductRequest) error {
	if req == nil {
		return fmt.Errorf("catalog: update request is required")
	}
	query := `
		UPDATE products SET
			name = COALESCE($3, name),
			description = COALESCE($4, description),
			price = COALESCE($5, price),
			cost = COALESCE($6, cost),
			stock = COALESCE($7, stock),
			active = COALESCE($8, active),
			updated_at = now()
		WHERE id = $1 AND shop_id = $2
	`
	ct, err := s.db.Exec(ctx, query, id, shopID,
		req.Name, req.Description, req.Price, req.Cost, req.Stock, req.Active)
	if err != nil {
		return fmt.Errorf("catalog: update product failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product from the shop's catalog.
func (s *Store) DeleteProduct(ctx context.Context, shopID, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1 AND shop_id = $2`, id, shopID)
	if err != nil {
		return fmt.Errorf("catalog: delete product failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementStock atomically reduces stock by qty. The WHERE clause keeps the
// decrement conditional on remaining stock so two concurrent confirmations
// cannot drive it negative; the losing writer gets ErrInsufficientStock.
func (s *Store) DecrementStock(ctx context.Context, shopID, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("catalog: decrement quantity must be positive")
	}
	query := `
		UPDATE products SET stock = stock - $3, updated_at = now()
		WHERE id = $1 AND shop_id = $2 AND stock >= $3
	`
	ct, err := s.db.Exec(ctx, query, id, shopID, qty)
	if err != nil {
		return fmt.Errorf("catalog: decrement stock failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// CreateService inserts a new service for the shop.
func (s *Store) CreateService(ctx context.Context, shopID string, req *CreateServiceRequest) (*Service, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	svc := Service{
		ID:              uuid.New().String(),
		ShopID:          shopID,
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
		Active:          true,
	}
	query := `
		INSERT INTO services (id, shop_id, name, description, price, duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	if err := s.db.QueryRow(ctx, query,
		svc.ID, svc.ShopID, svc.Name, svc.Description, svc.Price, svc.DurationMinutes, svc.Active,
	).Scan(&svc.CreatedAt, &svc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("catalog: insert service failed: %w", err)
	}
	return &svc, nil
}

// GetService fetches one service scoped to the shop.
func (s *Store) GetService(ctx context.Context, shopID, id string) (*Service, error) {
	query := `
		SELECT id, shop_id, name, description, price, duration_minutes, active, created_at, updated_at
		FROM services
		WHERE id = $1 AND shop_id = $2
	`
	var svc Service
	if err := s.db.QueryRow(ctx, query, id, shopID).Scan(
		&svc.ID, &svc.ShopID, &svc.Name, &svc.Description, &svc.Price, &svc.DurationMinutes,
		&svc.Active, &svc.CreatedAt, &svc.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("catalog: select service failed: %w", err)
	}
	return &svc, nil
}

// ListServices returns the shop's services, newest first.
func (s *Store) ListServices(ctx context.Context, shopID string) ([]Service, error) {
	return s.queryServices(ctx, `
		SELECT id, shop_id, name, description, price, duration_minutes, active, created_at, updated_at
		FROM services
		WHERE shop_id = $1
		ORDER BY created_at DESC
	`, shopID)
}

// ActiveServices returns services the AI agent may offer.
func (s *Store) ActiveServices(ctx context.Context, shopID string) ([]Service, error) {
	return s.queryServices(ctx, `
		SELECT id, shop_id, name, description, price, duration_minutes, active, created_at, updated_at
		FROM services
		WHERE shop_id = $1 AND active
		ORDER BY name
	`, shopID)
}

func (s *Store) queryServices(ctx context.Context, query, shopID string) ([]Service, error) {
	rows, err := s.db.Query(ctx, query, shopID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services failed: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(
			&svc.ID, &svc.ShopID, &svc.Name, &svc.Description, &svc.Price, &svc.DurationMinutes,
			&svc.Active, &svc.CreatedAt, &svc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan service failed: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// UpdateService applies the present fields of req.
func (s *Store) UpdateService(ctx context.Context, shopID, id string, req *UpdateServiceRequest) error {
	if req == nil {
		return fmt.Errorf("catalog: update request is required")
	}
	query := `
		UPDATE services SET
			name = COALESCE($3, name),
			description = COALESCE($4, description),
			price = COALESCE($5, price),
			duration_minutes = COALESCE($6, duration_minutes),
			active = COALESCE($7, active),
			updated_at = now()
		WHERE id = $1 AND shop_id = $2
	`
	ct, err := s.db.Exec(ctx, query, id, shopID,
		req.Name, req.Description, req.Price, req.DurationMinutes, req.Active)
	if err != nil {
		return fmt.Errorf("catalog: update service failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// DeleteService removes a service from the shop's catalog.
func (s *Store) DeleteService(ctx context.Context, shopID, id string) error {
	ct, err := s.db.Exec(ctx, `DELETE FROM services WHERE id = $1 AND shop_id = $2`, id, shopID)
	if err != nil {
		return fmt.Errorf("catalog: delete service failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}
