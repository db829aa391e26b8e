// Package archive exports closed conversations to S3 so shops keep a
// durable transcript after the hot store is trimmed. Export is best-effort
// and entirely optional: without a bucket the Store is a no-op.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store writes transcript records to S3 and keeps a monthly manifest of
// everything it exported.
type Store struct {
	bucket string
	client S3API
	logger *logging.Logger
}

// NewStore creates a transcript Store. If bucket is empty or the client is
// nil, all operations are no-ops.
func NewStore(client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, client: client, logger: logger.Component("archive")}
}

// Enabled reports whether export is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.client != nil
}

// ArchiveConversation exports one conversation as a JSON transcript record
// and appends it to the monthly manifest. Contact details inside message
// bodies are scrubbed and the external customer id is hashed before upload.
func (s *Store) ArchiveConversation(ctx context.Context, conv *conversation.Conversation, messages []conversation.StoredMessage) error {
	if !s.Enabled() || conv == nil {
		return nil
	}

	now := time.Now().UTC()
	record := buildRecord(conv, messages, now)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal transcript: %w", err)
	}

	key := fmt.Sprintf("transcripts/v1/by-date/%d/%02d/%02d/%s.json",
		now.Year(), now.Month(), now.Day(), conv.ID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived transcript",
		"conversation_id", conv.ID,
		"shop_id", conv.ShopID,
		"s3_key", key,
		"message_count", record.MessageCount,
	)

	entry := ManifestEntry{
		ConversationID: conv.ID,
		ShopID:         conv.ShopID,
		S3Key:          key,
		Channel:        conv.Channel,
		ArchivedAt:     now.Format(time.RFC3339),
		MessageCount:   record.MessageCount,
	}
	if err := s.AppendManifest(ctx, entry); err != nil {
		// The transcript itself is already durable; a manifest gap is
		// recoverable by listing the by-date prefix.
		s.logger.Warn("manifest append failed", "error", err, "conversation_id", conv.ID)
	}

	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// Uses read-modify-write since S3 doesn't support append.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	now := time.Now().UTC()
	manifestKey := fmt.Sprintf("transcripts/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	case isNotFound(err):
		s.logger.Debug("starting new manifest", "key", manifestKey)
	default:
		// Start fresh rather than losing the entry; the overwritten
		// month can be rebuilt from the by-date prefix.
		s.logger.Warn("manifest read failed", "error", err, "key", manifestKey)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}

	return nil
}

func buildRecord(conv *conversation.Conversation, messages []conversation.StoredMessage, archivedAt time.Time) *TranscriptRecord {
	msgs := make([]TranscriptMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, TranscriptMessage{
			Role:    m.Role,
			Content: m.Content,
			Channel: m.Channel,
			SentAt:  m.CreatedAt,
		})
	}
	ScrubMessages(msgs)

	started := conv.CreatedAt
	if len(messages) > 0 && !messages[0].CreatedAt.IsZero() {
		started = messages[0].CreatedAt
	}

	return &TranscriptRecord{
		Version:        recordVersion,
		ConversationID: conv.ID,
		ShopID:         conv.ShopID,
		Channel:        conv.Channel,
		CustomerRef:    HashCustomerRef(conv.ExternalCustomerID),
		CustomerName:   conv.CustomerName,
		StartedAt:      started,
		ArchivedAt:     archivedAt,
		MessageCount:   len(msgs),
		Messages:       msgs,
	}
}

// isNotFound reports whether an S3 read failed because the key does not
// exist. errors.As is tried first; the string check covers clients that
// return flattened errors.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
