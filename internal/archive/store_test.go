package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte // key -> body
	putErr   error
}

type putCall struct {
	bucket string
	key    string
	body   []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{
		bucket: *input.Bucket,
		key:    *input.Key,
		body:   body,
	})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &notFoundError{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "NoSuchKey: key not found" }

func TestStore_ArchiveConversation(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	started := time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC)
	conv := &conversation.Conversation{
		ID:                 "conv-123",
		ShopID:             "shop-1",
		Channel:            "whatsapp",
		ExternalCustomerID: "+966500000001",
		CustomerName:       "Huda",
		State:              conversation.StateArchived,
		CreatedAt:          started.Add(-time.Minute),
	}
	messages := []conversation.StoredMessage{
		{ID: "m1", ConversationID: "conv-123", Role: conversation.RoleCustomer, Content: "My number is 055-123-4567", Channel: "whatsapp", CreatedAt: started},
		{ID: "m2", ConversationID: "conv-123", Role: conversation.RoleAgent, Content: "Noted, thank you!", Channel: "whatsapp", CreatedAt: started.Add(time.Second)},
	}

	err := store.ArchiveConversation(context.Background(), conv, messages)
	require.NoError(t, err)

	// Two PutObject calls: transcript + manifest.
	require.Len(t, mock.putCalls, 2)

	assert.Equal(t, "test-bucket", mock.putCalls[0].bucket)
	assert.Contains(t, mock.putCalls[0].key, "transcripts/v1/by-date/")
	assert.Contains(t, mock.putCalls[0].key, "/conv-123.json")

	var record TranscriptRecord
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &record))
	assert.Equal(t, "1.0", record.Version)
	assert.Equal(t, "conv-123", record.ConversationID)
	assert.Equal(t, "shop-1", record.ShopID)
	assert.Equal(t, "whatsapp", record.Channel)
	assert.Equal(t, HashCustomerRef("+966500000001"), record.CustomerRef)
	assert.Equal(t, "Huda", record.CustomerName)
	assert.Equal(t, 2, record.MessageCount)
	require.Len(t, record.Messages, 2)
	assert.Equal(t, "My number is [PHONE]", record.Messages[0].Content, "contact details should be scrubbed")
	assert.Equal(t, "Noted, thank you!", record.Messages[1].Content)
	assert.True(t, record.StartedAt.Equal(started), "started_at should come from the first message")

	assert.Contains(t, mock.putCalls[1].key, "transcripts/v1/manifests/")
	var entry ManifestEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(mock.putCalls[1].body), &entry))
	assert.Equal(t, "conv-123", entry.ConversationID)
	assert.Equal(t, "shop-1", entry.ShopID)
	assert.Equal(t, mock.putCalls[0].key, entry.S3Key)
	assert.Equal(t, 2, entry.MessageCount)
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, "", nil)
	assert.False(t, store.Enabled())

	conv := &conversation.Conversation{ID: "conv-1", ShopID: "shop-1"}
	assert.NoError(t, store.ArchiveConversation(context.Background(), conv, nil))

	// A client without a bucket stays a no-op too.
	mock := newMockS3()
	store = NewStore(mock, "", nil)
	assert.False(t, store.Enabled())
	assert.NoError(t, store.ArchiveConversation(context.Background(), conv, nil))
	assert.Empty(t, mock.putCalls)
}

func TestStore_NilConversation(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	assert.NoError(t, store.ArchiveConversation(context.Background(), nil, nil))
	assert.Empty(t, mock.putCalls)
}

func TestStore_ManifestAppend(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", nil)

	entry1 := ManifestEntry{ConversationID: "conv-1", ShopID: "shop-1"}
	entry2 := ManifestEntry{ConversationID: "conv-2", ShopID: "shop-1"}

	require.NoError(t, store.AppendManifest(context.Background(), entry1))
	require.NoError(t, store.AppendManifest(context.Background(), entry2))

	// The second append should contain both entries.
	lastPut := mock.putCalls[len(mock.putCalls)-1]
	lines := bytes.Split(bytes.TrimSpace(lastPut.body), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second ManifestEntry
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "conv-1", first.ConversationID)
	assert.Equal(t, "conv-2", second.ConversationID)
}

func TestStore_PutFailure(t *testing.T) {
	mock := newMockS3()
	mock.putErr = assert.AnError
	store := NewStore(mock, "test-bucket", nil)

	conv := &conversation.Conversation{ID: "conv-9", ShopID: "shop-1", ExternalCustomerID: "cust-9"}
	err := store.ArchiveConversation(context.Background(), conv, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 put")
}
