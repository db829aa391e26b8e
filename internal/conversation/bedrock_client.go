package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const defaultBedrockModel = "anthropic.claude-3-5-haiku-20241022-v1:0"

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient completes prompts through the Bedrock Converse API.
type BedrockClient struct {
	api     bedrockConverseAPI
	modelID string
}

// NewBedrockClient wraps a Bedrock runtime client. An empty modelID
// selects the default model.
func NewBedrockClient(client *bedrockruntime.Client, modelID string) *BedrockClient {
	if client == nil {
		panic("conversation: bedrock client cannot be nil")
	}
	return newBedrockClientWithAPI(client, modelID)
}

func newBedrockClientWithAPI(api bedrockConverseAPI, modelID string) *BedrockClient {
	if modelID == "" {
		modelID = defaultBedrockModel
	}
	return &BedrockClient{api: api, modelID: modelID}
}

// Complete satisfies LLMClient.
func (c *BedrockClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = c.modelID
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: bedrockMessages(req.Messages),
	}
	for _, sys := range req.System {
		if strings.TrimSpace(sys) == "" {
			continue
		}
		input.System = append(input.System, &brtypes.SystemContentBlockMemberText{Value: sys})
	}

	cfg := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		cfg.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP > 0 {
		cfg.TopP = aws.Float32(req.TopP)
	}
	input.InferenceConfig = cfg

	resp, err := c.api.Converse(ctx, input)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: bedrock converse failed: %w", err)
	}

	out := LLMResponse{
		Text:       bedrockOutputText(resp),
		StopReason: string(resp.StopReason),
	}
	if resp.Usage != nil {
		out.Usage = TokenUsage{
			InputTokens:  int32OrZero(resp.Usage.InputTokens),
			OutputTokens: int32OrZero(resp.Usage.OutputTokens),
			TotalTokens:  int32OrZero(resp.Usage.TotalTokens),
		}
	}
	return out, nil
}

func bedrockMessages(messages []ChatMessage) []brtypes.Message {
	out := make([]brtypes.Message, 0, len(messages))
	for _, m := range messages {
		role := brtypes.ConversationRoleUser
		if m.Role == ChatRoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		out = append(out, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return out
}

func bedrockOutputText(resp *bedrockruntime.ConverseOutput) string {
	msg, ok := resp.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	return sb.String()
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
