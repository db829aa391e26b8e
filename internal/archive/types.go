package archive

import "time"

// recordVersion is stamped into every exported transcript so downstream
// readers can survive future shape changes.
const recordVersion = "1.0"

// TranscriptRecord is the top-level JSON document written to S3 when a
// conversation is archived.
type TranscriptRecord struct {
	Version        string              `json:"version"`
	ConversationID string              `json:"conversation_id"`
	ShopID         string              `json:"shop_id"`
	Channel        string              `json:"channel"`
	CustomerRef    string              `json:"customer_ref"` // sha256 of the external customer id
	CustomerName   string              `json:"customer_name,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	ArchivedAt     time.Time           `json:"archived_at"`
	MessageCount   int                 `json:"message_count"`
	Messages       []TranscriptMessage `json:"messages"`
}

// TranscriptMessage is a single conversation turn.
type TranscriptMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Channel string    `json:"channel,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	ConversationID string `json:"conversation_id"`
	ShopID         string `json:"shop_id"`
	S3Key          string `json:"s3_key"`
	Channel        string `json:"channel"`
	ArchivedAt     string `json:"archived_at"`
	MessageCount   int    `json:"message_count"`
}
