package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// historyTTL keeps prompt context warm for a day of back-and-forth; the
// relational store remains the source of truth.
const historyTTL = 24 * time.Hour

var historyTracer = otel.Tracer("tajir/conversation/history")

// HistoryStore caches recent chat turns in Redis so the prompt builder
// does not reread the full message table on every turn.
type HistoryStore struct {
	client *redis.Client
	logger *logging.Logger
}

// NewHistoryStore wraps a Redis client.
func NewHistoryStore(client *redis.Client, logger *logging.Logger) *HistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HistoryStore{client: client, logger: logger}
}

// Save replaces the cached history for a conversation.
func (s *HistoryStore) Save(ctx context.Context, conversationID string, messages []ChatMessage) error {
	ctx, span := historyTracer.Start(ctx, "history.save")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.Int("history.length", len(messages)),
	)

	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("conversation: encode history: %w", err)
	}
	if err := s.client.Set(ctx, historyKey(conversationID), data, historyTTL).Err(); err != nil {
		return fmt.Errorf("conversation: save history: %w", err)
	}
	return nil
}

// Load returns the cached history, or nil when the cache is cold.
func (s *HistoryStore) Load(ctx context.Context, conversationID string) ([]ChatMessage, error) {
	ctx, span := historyTracer.Start(ctx, "history.load")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	data, err := s.client.Get(ctx, historyKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}

	var messages []ChatMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		// A corrupt entry is treated as a cold cache.
		s.logger.Warn("dropping corrupt history cache entry", "conversation_id", conversationID, "error", err)
		return nil, nil
	}
	return messages, nil
}

// Clear drops the cached history, used when a conversation is archived.
func (s *HistoryStore) Clear(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, historyKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("conversation: clear history: %w", err)
	}
	return nil
}

func historyKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s", conversationID)
}
