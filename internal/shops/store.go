package shops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tajirhq/tajir-ai-platform/internal/channels"
)

type shopDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists shops in the relational database.
type Store struct {
	db shopDB
}

// NewStore initializes a store backed by pgxpool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("shops: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(db shopDB) *Store {
	return &Store{db: db}
}

// Create registers a new shop with an active subscription.
func (s *Store) Create(ctx context.Context, req *CreateShopRequest) (*Shop, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	query := `
		INSERT INTO shops (id, name, owner_name, owner_email, owner_phone, business_mode, description, plan_id, subscription_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := s.db.QueryRow(ctx, query,
		id,
		req.Name,
		req.OwnerName,
		req.OwnerEmail,
		req.OwnerPhone,
		string(req.BusinessMode),
		req.Description,
		req.PlanID,
		SubscriptionActive,
	).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("shops: insert failed: %w", err)
	}

	return &Shop{
		ID:                 id,
		Name:               req.Name,
		OwnerName:          req.OwnerName,
		OwnerEmail:         req.OwnerEmail,
		OwnerPhone:         req.OwnerPhone,
		BusinessMode:       req.BusinessMode,
		Description:        req.Description,
		PlanID:             req.PlanID,
		SubscriptionStatus: SubscriptionActive,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

const shopColumns = `id, name, COALESCE(owner_name, ''), owner_email, COALESCE(owner_phone, ''),
       business_mode, description,
       COALESCE(plan_id, ''), subscription_status, subscription_expires_at,
       created_at, updated_at`

// GetByID fetches a shop.
func (s *Store) GetByID(ctx context.Context, id string) (*Shop, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM shops
		WHERE id = $1
	`, shopColumns)
	return s.scanShop(s.db.QueryRow(ctx, query, id))
}

// List returns shops ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Shop, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM shops
		ORDER BY created_at DESC
		LIMIT $1
	`, shopColumns)
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("shops: list failed: %w", err)
	}
	defer rows.Close()

	var out []Shop
	for rows.Next() {
		shop, err := s.scanShopRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *shop)
	}
	return out, rows.Err()
}

// UpdateProfile mutates the merchant-editable fields.
func (s *Store) UpdateProfile(ctx context.Context, id string, req *UpdateShopRequest) error {
	if req == nil {
		return fmt.Errorf("shops: update request is required")
	}
	if req.BusinessMode != "" && !req.BusinessMode.Valid() {
		return fmt.Errorf("shops: business_mode must be products or services")
	}
	query := `
		UPDATE shops SET
			name = COALESCE(NULLIF($2, ''), name),
			owner_name = COALESCE(NULLIF($3, ''), owner_name),
			owner_email = COALESCE(NULLIF($4, ''), owner_email),
			owner_phone = COALESCE(NULLIF($5, ''), owner_phone),
			business_mode = COALESCE(NULLIF($6, ''), business_mode),
			description = $7,
			updated_at = now()
		WHERE id = $1
	`
	ct, err := s.db.Exec(ctx, query, id, req.Name, req.OwnerName, req.OwnerEmail, req.OwnerPhone, string(req.BusinessMode), req.Description)
	if err != nil {
		return fmt.Errorf("shops: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrShopNotFound
	}
	return nil
}

// UpdateSubscription sets plan, status and expiry after a billing event.
func (s *Store) UpdateSubscription(ctx context.Context, id, planID, status string, expiresAt *time.Time) error {
	query := `
		UPDATE shops SET
			plan_id = $2,
			subscription_status = $3,
			subscription_expires_at = $4,
			updated_at = now()
		WHERE id = $1
	`
	ct, err := s.db.Exec(ctx, query, id, planID, status, expiresAt)
	if err != nil {
		return fmt.Errorf("shops: update subscription failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrShopNotFound
	}
	return nil
}

// SetSubscriptionStatus flips a single shop between active and suspended.
func (s *Store) SetSubscriptionStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE shops SET subscription_status = $2, updated_at = now()
		WHERE id = $1
	`
	ct, err := s.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("shops: set status failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrShopNotFound
	}
	return nil
}

// SuspendExpired suspends every active shop whose subscription lapsed before
// the cutoff, returning the shops it touched so callers can notify owners.
func (s *Store) SuspendExpired(ctx context.Context, cutoff time.Time) ([]Shop, error) {
	query := fmt.Sprintf(`
		UPDATE shops SET
			subscription_status = $1,
			updated_at = now()
		WHERE subscription_status = $2
		  AND subscription_expires_at IS NOT NULL
		  AND subscription_expires_at < $3
		RETURNING %s
	`, shopColumns)
	rows, err := s.db.Query(ctx, query, SubscriptionSuspended, SubscriptionActive, cutoff)
	if err != nil {
		return nil, fmt.Errorf("shops: suspend expired failed: %w", err)
	}
	defer rows.Close()

	var suspended []Shop
	for rows.Next() {
		shop, err := s.scanShopRow(rows)
		if err != nil {
			return nil, err
		}
		suspended = append(suspended, *shop)
	}
	return suspended, rows.Err()
}

// LinkChannel maps a provider business identity to this shop. Relinking an
// identity that already points elsewhere moves it, which is how a merchant
// migrates a WhatsApp number between accounts.
func (s *Store) LinkChannel(ctx context.Context, shopID, channel, externalBusinessID string) error {
	if !channels.Channel(channel).Valid() {
		return fmt.Errorf("shops: unknown channel %q", channel)
	}
	externalBusinessID = strings.TrimSpace(externalBusinessID)
	if externalBusinessID == "" {
		return fmt.Errorf("shops: external_business_id is required")
	}
	query := `
		INSERT INTO shop_channels (shop_id, channel, external_business_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (external_business_id) DO UPDATE SET
			shop_id = EXCLUDED.shop_id,
			channel = EXCLUDED.channel
	`
	if _, err := s.db.Exec(ctx, query, shopID, channel, externalBusinessID); err != nil {
		return fmt.Errorf("shops: link channel failed: %w", err)
	}
	return nil
}

// ListChannels returns the provider identities routed to a shop.
func (s *Store) ListChannels(ctx context.Context, shopID string) ([]ChannelLink, error) {
	query := `
		SELECT shop_id, channel, external_business_id, created_at
		FROM shop_channels
		WHERE shop_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.Query(ctx, query, shopID)
	if err != nil {
		return nil, fmt.Errorf("shops: list channels failed: %w", err)
	}
	defer rows.Close()

	var out []ChannelLink
	for rows.Next() {
		var link ChannelLink
		if err := rows.Scan(&link.ShopID, &link.Channel, &link.ExternalBusinessID, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("shops: scan channel link failed: %w", err)
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

// ResolveShopID looks up which shop owns a provider business identity. It
// satisfies the webhook resolver contract, returning the channels sentinel on
// a miss so unmapped identities can fall through to a static map.
func (s *Store) ResolveShopID(ctx context.Context, externalBusinessID string) (string, error) {
	query := `
		SELECT shop_id
		FROM shop_channels
		WHERE external_business_id = $1
	`
	var shopID string
	if err := s.db.QueryRow(ctx, query, strings.TrimSpace(externalBusinessID)).Scan(&shopID); err != nil {
		if err == pgx.ErrNoRows {
			return "", channels.ErrShopNotFound
		}
		return "", fmt.Errorf("shops: resolve business id failed: %w", err)
	}
	return shopID, nil
}

func (s *Store) scanShop(row pgx.Row) (*Shop, error) {
	var shop Shop
	var mode string
	var expiresAt *time.Time
	if err := row.Scan(
		&shop.ID, &shop.Name, &shop.OwnerName, &shop.OwnerEmail, &shop.OwnerPhone,
		&mode, &shop.Description,
		&shop.PlanID, &shop.SubscriptionStatus, &expiresAt,
		&shop.CreatedAt, &shop.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("shops: select failed: %w", err)
	}
	shop.BusinessMode = BusinessMode(mode)
	shop.SubscriptionExpiresAt = expiresAt
	return &shop, nil
}

func (s *Store) scanShopRow(rows pgx.Rows) (*Shop, error) {
	var shop Shop
	var mode string
	var expiresAt *time.Time
	if err := rows.Scan(
		&shop.ID, &shop.Name, &shop.OwnerName, &shop.OwnerEmail, &shop.OwnerPhone,
		&mode, &shop.Description,
		&shop.PlanID, &shop.SubscriptionStatus, &expiresAt,
		&shop.CreatedAt, &shop.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("shops: scan failed: %w", err)
	}
	shop.BusinessMode = BusinessMode(mode)
	shop.SubscriptionExpiresAt = expiresAt
	return &shop, nil
}
