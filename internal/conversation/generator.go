package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/observability/metrics"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

const (
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultCallTimeout    = 30 * time.Second
	defaultMaxTokens      = 1024
	defaultTemperature    = 0.4
)

// GenerationInput is one reply request. ConversationID keys the
// per-conversation throttle.
type GenerationInput struct {
	ConversationID string
	System         []string
	History        []ChatMessage
}

// Generator wraps the completion backend with throttling, bounded
// retries and a fixed fallback. Generate never fails: the orchestrator
// always receives a sendable string.
type Generator struct {
	llm      LLMClient
	provider string
	throttle *Throttle
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger

	maxAttempts int
	baseDelay   time.Duration
	callTimeout time.Duration
	model       string
	maxTokens   int32
	temperature float32
}

// GeneratorOption customizes generator behavior.
type GeneratorOption func(*Generator)

// WithMaxAttempts sets how many completion attempts to make per turn.
func WithMaxAttempts(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRetryBaseDelay sets the first retry delay; each later retry doubles it.
func WithRetryBaseDelay(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.baseDelay = d
		}
	}
}

// WithCallTimeout bounds each individual backend call.
func WithCallTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.callTimeout = d
		}
	}
}

// WithModel overrides the backend's default model.
func WithModel(model string) GeneratorOption {
	return func(g *Generator) {
		g.model = model
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int32) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeneratorOption {
	return func(g *Generator) {
		if t >= 0 {
			g.temperature = t
		}
	}
}

// NewGenerator wires the completion backend. The provider string labels
// metrics only.
func NewGenerator(llm LLMClient, provider string, throttle *Throttle, m *metrics.EngineMetrics, logger *logging.Logger, opts ...GeneratorOption) *Generator {
	if llm == nil {
		panic("conversation: LLM client cannot be nil")
	}
	if throttle == nil {
		throttle = NewThrottle(0, 0)
	}
	if logger == nil {
		logger = logging.Default()
	}

	g := &Generator{
		llm:         llm,
		provider:    provider,
		throttle:    throttle,
		metrics:     m,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultRetryBaseDelay,
		callTimeout: defaultCallTimeout,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the reply for one turn. On backend exhaustion it
// returns the fixed failure sentence; on a blank completion it returns
// the fixed substitute. It never returns an empty string.
func (g *Generator) Generate(ctx context.Context, in GenerationInput) string {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := g.throttle.Wait(ctx, in.ConversationID); err != nil {
		g.logger.Warn("completion throttle wait aborted", "error", err, "conversation_id", in.ConversationID)
		return failureReply
	}

	req := LLMRequest{
		Model:       g.model,
		System:      in.System,
		Messages:    in.History,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		started := time.Now()
		resp, err := g.llm.Complete(callCtx, req)
		cancel()

		if err == nil {
			g.metrics.ObserveCompletion(g.provider, "success", time.Since(started).Seconds())
			text := strings.TrimSpace(resp.Text)
			if text == "" {
				g.logger.Warn("completion returned empty text", "conversation_id", in.ConversationID)
				return emptyReply
			}
			g.logger.Debug("completion succeeded",
				"conversation_id", in.ConversationID,
				"attempt", attempt,
				"input_tokens", resp.Usage.InputTokens,
				"output_tokens", resp.Usage.OutputTokens,
			)
			return text
		}

		g.metrics.ObserveCompletion(g.provider, "error", time.Since(started).Seconds())
		lastErr = err
		g.logger.Warn("completion attempt failed",
			"error", err,
			"attempt", attempt,
			"conversation_id", in.ConversationID,
		)

		if attempt == g.maxAttempts {
			break
		}
		if err := sleepCtx(ctx, g.baseDelay<<(attempt-1)); err != nil {
			g.logger.Warn("completion retry aborted", "error", err, "conversation_id", in.ConversationID)
			break
		}
	}

	g.logger.Error("completion attempts exhausted, using fallback reply",
		"error", lastErr,
		"attempts", g.maxAttempts,
		"conversation_id", in.ConversationID,
	)
	return failureReply
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
