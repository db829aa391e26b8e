package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashCustomerRef(t *testing.T) {
	h1 := HashCustomerRef("+966500000001")
	h2 := HashCustomerRef("+966500000001")
	h3 := HashCustomerRef("ig-17841400000000")

	assert.Equal(t, h1, h2, "same input should produce same hash")
	assert.NotEqual(t, h1, h3, "different input should produce different hash")
	assert.Len(t, h1, 64, "SHA-256 hex should be 64 chars")
}

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"email", "reach me at layla@souq.example please", "reach me at [EMAIL] please"},
		{"saudi mobile", "my number is +966 50 123 4567", "my number is [PHONE]"},
		{"local format", "call me on 0501234567", "call me on [PHONE]"},
		{"both", "email: a@b.com phone: 055-123-4567", "email: [EMAIL] phone: [PHONE]"},
		{"quantities kept", "I want 2 bags for 150 riyals", "I want 2 bags for 150 riyals"},
		{"arabic kept", "أريد ثلاث حقائب جلدية", "أريد ثلاث حقائب جلدية"},
		{"name kept", "My name is Omar Haddad", "My name is Omar Haddad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ScrubPII(tt.input))
		})
	}
}

func TestScrubMessages(t *testing.T) {
	msgs := []TranscriptMessage{
		{Role: "customer", Content: "my email is test@test.com", SentAt: time.Now()},
		{Role: "agent", Content: "Got it!", SentAt: time.Now()},
	}
	ScrubMessages(msgs)
	assert.Equal(t, "my email is [EMAIL]", msgs[0].Content)
	assert.Equal(t, "Got it!", msgs[1].Content)
}
