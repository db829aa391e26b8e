package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversationRows(t *testing.T, ids ...string) *sqlmock.Rows {
	t.Helper()
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "shop_id", "channel", "external_customer_id", "customer_name",
		"state", "paused_for_human", "last_activity_at", "created_at", "updated_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "shop-1", "whatsapp", "201234567890", "Sara", StateActive, false, now, now, now)
	}
	return rows
}

func TestConversationStore_FindCurrent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	mock.ExpectQuery("SELECT (.+) FROM conversations").
		WithArgs("shop-1", "201234567890", StateArchived).
		WillReturnRows(conversationRows(t, "conv-1"))

	conv, err := store.FindCurrent(context.Background(), "shop-1", "201234567890")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, "Sara", conv.CustomerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_FindCurrentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	mock.ExpectQuery("SELECT (.+) FROM conversations").
		WillReturnRows(conversationRows(t))

	_, err = store.FindCurrent(context.Background(), "shop-1", "unknown")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO conversations").
		WillReturnRows(sqlmock.NewRows([]string{"last_activity_at", "created_at", "updated_at"}).
			AddRow(now, now, now))

	conv, err := store.Create(context.Background(), "shop-1", "instagram", "ig-77", "  Omar ")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, StateActive, conv.State)
	assert.Equal(t, "Omar", conv.CustomerName)
	assert.Equal(t, now, conv.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_ListFiltersByState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	mock.ExpectQuery("SELECT (.+) FROM conversations WHERE shop_id = (.+) AND state = ANY").
		WillReturnRows(conversationRows(t, "conv-1", "conv-2"))

	out, err := store.List(context.Background(), "shop-1", []string{StateActive, StatePaused}, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "conv-2", out[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_ListWithoutStates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	// No state filter: shop id plus the defaulted limit.
	mock.ExpectQuery("SELECT (.+) FROM conversations WHERE shop_id = (.+) ORDER BY last_activity_at").
		WithArgs("shop-1", 50).
		WillReturnRows(conversationRows(t, "conv-1"))

	out, err := store.List(context.Background(), "shop-1", nil, 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_UpdateStateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	mock.ExpectExec("UPDATE conversations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.UpdateState(context.Background(), "shop-1", "missing", StatePaused, true)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationStore_UpdateCustomerNameSkipsBlank(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	// No expectations registered: a blank name must not touch the database.
	err = store.UpdateCustomerName(context.Background(), "conv-1", "   ")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_AppendMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	mock.ExpectExec("INSERT INTO conversation_messages").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE conversations SET last_activity_at").
		WillReturnResult(sqlmock.NewResult(1, 1))

	msg, err := store.AppendMessage(context.Background(), &StoredMessage{
		ConversationID: "conv-1",
		Role:           RoleCustomer,
		Content:        "hello",
		Channel:        "whatsapp",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_AppendMessageNil(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	_, err = store.AppendMessage(context.Background(), nil)
	assert.Error(t, err)
}

func TestConversationStore_MessagesRecentWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	base := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "conversation_id", "role", "content", "channel", "provider_message_id", "created_at",
	}).
		AddRow("m1", "conv-1", RoleCustomer, "hi", "whatsapp", "", base).
		AddRow("m2", "conv-1", RoleAgent, "hello!", "whatsapp", "", base.Add(time.Second))

	mock.ExpectQuery("ORDER BY created_at ASC").
		WithArgs("conv-1", 2).
		WillReturnRows(rows)

	out, err := store.Messages(context.Background(), "conv-1", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, RoleAgent, out[1].Role)
	assert.True(t, out[0].CreatedAt.Before(out[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationStore_MessagesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewConversationStore(db)

	mock.ExpectQuery("FROM conversation_messages").
		WillReturnError(errors.New("connection reset"))

	_, err = store.Messages(context.Background(), "conv-1", 0)
	assert.Error(t, err)
}
