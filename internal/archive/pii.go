package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Matches local and international formats, including the +966 numbers
	// most Gulf customers type into chat.
	phoneRe = regexp.MustCompile(`\+?[0-9][0-9\-.\s()]{6,}[0-9]`)
)

// HashCustomerRef returns the hex-encoded SHA-256 of an external customer id,
// so exported transcripts carry a stable reference without the raw handle.
func HashCustomerRef(externalID string) string {
	h := sha256.Sum256([]byte(externalID))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Names are kept so transcripts stay readable.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// ScrubMessages applies PII scrubbing to all transcript messages in-place.
func ScrubMessages(msgs []TranscriptMessage) {
	for i := range msgs {
		msgs[i].Content = ScrubPII(msgs[i].Content)
	}
}
