// Package bootstrap assembles optional runtime components from config. Every
// builder degrades the same way: missing credentials disable the component
// (nil or stub) with a logged warning instead of failing the process.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/tajirhq/tajir-ai-platform/cmd/mainconfig"
	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	"github.com/tajirhq/tajir-ai-platform/internal/conversation"
	"github.com/tajirhq/tajir-ai-platform/internal/observability/metrics"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// BuildGenerator wires the reply generator from config. The returned label
// names the selected backend ("bedrock", "gemini", "bedrock+gemini" or
// "stub") for startup logging. With no model configured the generator runs
// on the stub client so the platform still answers.
func BuildGenerator(ctx context.Context, cfg *appconfig.Config, m *metrics.EngineMetrics, logger *logging.Logger) (*conversation.Generator, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	llm, label, model, err := buildLLMClient(ctx, cfg, logger)
	if err != nil {
		return nil, "", err
	}

	opts := []conversation.GeneratorOption{
		conversation.WithMaxAttempts(cfg.AIMaxAttempts),
		conversation.WithRetryBaseDelay(cfg.AIRetryBaseDelay),
		conversation.WithCallTimeout(cfg.AICallTimeout),
	}
	if model != "" {
		opts = append(opts, conversation.WithModel(model))
	}

	throttle := conversation.NewThrottle(cfg.AIMinInterval, 0)
	gen := conversation.NewGenerator(llm, label, throttle, m, logger, opts...)
	logger.Info("reply generator wired", "provider", label, "model", model)
	return gen, label, nil
}

// buildLLMClient selects the completion backend. "auto" prefers Bedrock and
// chains Gemini behind it when both are configured.
func buildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.LLMClient, string, string, error) {
	bedrockModel := strings.TrimSpace(cfg.BedrockModelID)
	geminiKey := strings.TrimSpace(cfg.GeminiAPIKey)

	switch cfg.AIProvider {
	case "bedrock":
		if bedrockModel == "" {
			return nil, "", "", fmt.Errorf("bootstrap: AI_PROVIDER=bedrock requires BEDROCK_MODEL_ID")
		}
		client, err := buildBedrockClient(ctx, cfg, bedrockModel)
		if err != nil {
			return nil, "", "", err
		}
		return client, "bedrock", bedrockModel, nil

	case "gemini":
		if geminiKey == "" {
			return nil, "", "", fmt.Errorf("bootstrap: AI_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		client, err := conversation.NewGeminiClient(ctx, geminiKey, cfg.GeminiModelID)
		if err != nil {
			return nil, "", "", fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		return client, "gemini", cfg.GeminiModelID, nil

	case "", "auto":
		switch {
		case bedrockModel != "" && geminiKey != "":
			primary, err := buildBedrockClient(ctx, cfg, bedrockModel)
			if err != nil {
				return nil, "", "", err
			}
			secondary, err := conversation.NewGeminiClient(ctx, geminiKey, cfg.GeminiModelID)
			if err != nil {
				return nil, "", "", fmt.Errorf("bootstrap: gemini client: %w", err)
			}
			return conversation.NewFallbackClient(primary, secondary, logger), "bedrock+gemini", bedrockModel, nil
		case bedrockModel != "":
			client, err := buildBedrockClient(ctx, cfg, bedrockModel)
			if err != nil {
				return nil, "", "", err
			}
			return client, "bedrock", bedrockModel, nil
		case geminiKey != "":
			client, err := conversation.NewGeminiClient(ctx, geminiKey, cfg.GeminiModelID)
			if err != nil {
				return nil, "", "", fmt.Errorf("bootstrap: gemini client: %w", err)
			}
			return client, "gemini", cfg.GeminiModelID, nil
		default:
			logger.Warn("no AI model configured; replies will use the canned acknowledgement")
			return conversation.NewStubClient(), "stub", "", nil
		}

	default:
		return nil, "", "", fmt.Errorf("bootstrap: unknown AI provider %q", cfg.AIProvider)
	}
}

func buildBedrockClient(ctx context.Context, cfg *appconfig.Config, modelID string) (*conversation.BedrockClient, error) {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return conversation.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), modelID), nil
}
