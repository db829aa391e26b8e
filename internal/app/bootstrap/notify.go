package bootstrap

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/tajirhq/tajir-ai-platform/cmd/mainconfig"
	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	"github.com/tajirhq/tajir-ai-platform/internal/notify"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// BuildEmailSender selects the owner-notice email backend from config.
// Without provider credentials it returns the stub, so notices are logged
// instead of delivered and nothing else has to care.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	switch cfg.EmailProvider {
	case "ses":
		return buildSES(ctx, cfg, logger)

	case "sendgrid":
		if cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "" {
			logger.Info("sendgrid email sender initialized")
			return notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY or SENDGRID_FROM_EMAIL not set; owner notices disabled")
		return notify.NewStubEmailSender(logger)

	case "", "auto":
		switch {
		case cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "":
			logger.Info("sendgrid email sender initialized")
			return notify.NewSendGridSender(notify.SendGridConfig{
				APIKey:    cfg.SendGridAPIKey,
				FromEmail: cfg.SendGridFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		case cfg.SESFromEmail != "":
			return buildSES(ctx, cfg, logger)
		default:
			logger.Warn("owner email notices disabled (no email provider configured)")
			return notify.NewStubEmailSender(logger)
		}

	default:
		logger.Warn("owner email notices disabled (unknown EMAIL_PROVIDER)", "provider", cfg.EmailProvider)
		return notify.NewStubEmailSender(logger)
	}
}

func buildSES(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config for SES; owner notices disabled", "error", err)
		return notify.NewStubEmailSender(logger)
	}
	sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
		FromEmail: cfg.SESFromEmail,
		FromName:  cfg.SESFromName,
	}, logger)
	if sender == nil {
		return notify.NewStubEmailSender(logger)
	}
	logger.Info("ses email sender initialized")
	return sender
}
