package conversation

import (
	"context"

	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// FallbackClient tries a primary completion backend and falls back to a
// secondary one when the primary errors. Useful when a shop's preferred
// provider has an outage.
type FallbackClient struct {
	primary   LLMClient
	secondary LLMClient
	logger    *logging.Logger
}

// NewFallbackClient chains two backends. Secondary may be nil, in which
// case primary errors pass through unchanged.
func NewFallbackClient(primary, secondary LLMClient, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("conversation: primary LLM client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, secondary: secondary, logger: logger}
}

// Complete satisfies LLMClient.
func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.secondary == nil {
		return LLMResponse{}, err
	}

	c.logger.Warn("primary completion backend failed, trying fallback", "error", err)
	resp, fbErr := c.secondary.Complete(ctx, req)
	if fbErr != nil {
		c.logger.Error("fallback completion backend failed", "error", fbErr)
		return LLMResponse{}, err
	}
	return resp, nil
}
