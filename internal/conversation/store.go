package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ConversationStore persists conversations and their messages.
// Statements are individually atomic; there is no cross-statement
// transaction, matching the engine's best-effort consistency model.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore wraps an open database handle.
func NewConversationStore(db *sql.DB) *ConversationStore {
	if db == nil {
		panic("conversation: database handle cannot be nil")
	}
	return &ConversationStore{db: db}
}

const conversationColumns = `id, shop_id, channel, external_customer_id, COALESCE(customer_name, ''),
	state, paused_for_human, last_activity_at, created_at, updated_at`

// FindCurrent returns the most recently created non-archived conversation
// for the (shop, external customer) pair.
func (s *ConversationStore) FindCurrent(ctx context.Context, shopID, externalCustomerID string) (*Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM conversations
		WHERE shop_id = $1 AND external_customer_id = $2 AND state <> $3
		ORDER BY created_at DESC
		LIMIT 1
	`, conversationColumns)

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, shopID, externalCustomerID, StateArchived))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversation: find current failed: %w", err)
	}
	return conv, nil
}

// GetByID fetches one conversation scoped to the shop.
func (s *ConversationStore) GetByID(ctx context.Context, shopID, id string) (*Conversation, error) {
	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE id = $1 AND shop_id = $2`, conversationColumns)

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id, shopID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("conversation: select failed: %w", err)
	}
	return conv, nil
}

// Create starts a new active conversation.
func (s *ConversationStore) Create(ctx context.Context, shopID, channel, externalCustomerID, customerName string) (*Conversation, error) {
	conv := &Conversation{
		ID:                 uuid.NewString(),
		ShopID:             shopID,
		Channel:            channel,
		ExternalCustomerID: externalCustomerID,
		CustomerName:       strings.TrimSpace(customerName),
		State:              StateActive,
	}

	query := `
		INSERT INTO conversations (id, shop_id, channel, external_customer_id, customer_name, state)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING last_activity_at, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		conv.ID, conv.ShopID, conv.Channel, conv.ExternalCustomerID, conv.CustomerName, conv.State,
	).Scan(&conv.LastActivityAt, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("conversation: insert failed: %w", err)
	}
	return conv, nil
}

// List returns the shop's conversations, most recently active first.
// An empty states slice means all states.
func (s *ConversationStore) List(ctx context.Context, shopID string, states []string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM conversations WHERE shop_id = $1`, conversationColumns)
	args := []any{shopID}
	if len(states) > 0 {
		args = append(args, pq.Array(states))
		query += fmt.Sprintf(" AND state = ANY($%d)", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY last_activity_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: list failed: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("conversation: scan failed: %w", err)
		}
		out = append(out, *conv)
	}
	return out, rows.Err()
}

// UpdateState moves a conversation between active, paused and archived.
func (s *ConversationStore) UpdateState(ctx context.Context, shopID, id, state string, pausedForHuman bool) error {
	query := `
		UPDATE conversations
		SET state = $3, paused_for_human = $4, updated_at = now()
		WHERE id = $1 AND shop_id = $2
	`
	res, err := s.db.ExecContext(ctx, query, id, shopID, state, pausedForHuman)
	if err != nil {
		return fmt.Errorf("conversation: update state failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation: update state result: %w", err)
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// UpdateCustomerName backfills a name learned mid-conversation. Blank
// names are ignored.
func (s *ConversationStore) UpdateCustomerName(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET customer_name = $2, updated_at = now() WHERE id = $1
	`, id, name)
	if err != nil {
		return fmt.Errorf("conversation: update customer name failed: %w", err)
	}
	return nil
}

// AppendMessage persists one turn and bumps the conversation's activity
// timestamp. The two statements are independent; a failed bump does not
// roll back the message.
func (s *ConversationStore) AppendMessage(ctx context.Context, msg *StoredMessage) (*StoredMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("conversation: message is required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, content, channel, provider_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Channel, msg.ProviderMessageID, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("conversation: insert message failed: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET last_activity_at = $2, updated_at = now() WHERE id = $1
	`, msg.ConversationID, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("conversation: bump activity failed: %w", err)
	}
	return msg, nil
}

// Messages returns a conversation's turns in chronological order. A
// positive limit returns only the most recent turns.
func (s *ConversationStore) Messages(ctx context.Context, conversationID string, limit int) ([]StoredMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, channel, COALESCE(provider_message_id, ''), created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		query = `
			SELECT id, conversation_id, role, content, channel, COALESCE(provider_message_id, ''), created_at
			FROM (
				SELECT id, conversation_id, role, content, channel, provider_message_id, created_at
				FROM conversation_messages
				WHERE conversation_id = $1
				ORDER BY created_at DESC
				LIMIT $2
			) recent
			ORDER BY created_at ASC
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: load messages failed: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Channel, &m.ProviderMessageID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message failed: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	err := row.Scan(
		&c.ID, &c.ShopID, &c.Channel, &c.ExternalCustomerID, &c.CustomerName,
		&c.State, &c.PausedForHuman, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
