package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tajirhq/tajir-ai-platform/cmd/mainconfig"
	"github.com/tajirhq/tajir-ai-platform/internal/archive"
	appconfig "github.com/tajirhq/tajir-ai-platform/internal/config"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// BuildArchiver wires the optional S3 transcript export. No bucket means no
// archiver; the orchestrator treats a nil archiver as export disabled.
func BuildArchiver(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*archive.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	bucket := strings.TrimSpace(cfg.ArchiveBucket)
	if bucket == "" {
		return nil, nil
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	store := archive.NewStore(s3.NewFromConfig(awsCfg), bucket, logger)
	logger.Info("transcript archiving enabled", "bucket", bucket)
	return store, nil
}
