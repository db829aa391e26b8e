package conversation

import "context"

// ChatRole identifies who produced a chat turn.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single turn in the prompt history.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// TokenUsage reports billing-relevant token counts when the backend
// provides them.
type TokenUsage struct {
	InputTokens  int32 `json:"input_tokens"`
	OutputTokens int32 `json:"output_tokens"`
	TotalTokens  int32 `json:"total_tokens"`
}

// LLMRequest is a provider-independent completion request.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// LLMResponse is the completed text plus usage metadata.
type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is the black-box text-completion backend.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// StubClient answers every request with a fixed acknowledgement. It keeps a
// deployment functional before any model credentials are configured.
type StubClient struct{}

// NewStubClient returns the placeholder backend.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Complete returns the canned bilingual acknowledgement.
func (s *StubClient) Complete(_ context.Context, _ LLMRequest) (LLMResponse, error) {
	return LLMResponse{
		Text:       "Thanks for your message! A member of our team will reply shortly. شكراً لرسالتك! سيرد عليك أحد أعضاء فريقنا قريباً.",
		StopReason: "stub",
	}, nil
}

var _ LLMClient = (*StubClient)(nil)
