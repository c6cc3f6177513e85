package service

import (
	"context"
	"fmt"
	"io"

	"github.com/okian/reimburse/internal/config"
	"github.com/okian/reimburse/pkg/logger"
	"github.com/okian/reimburse/pkg/metrics"
)

// Bootstrap points the global logger at logs, loads the configuration and
// applies its log level. Every binary calls it before doing any work.
func Bootstrap(ctx context.Context, logs io.Writer) (*config.Config, error) {
	if err := logger.Init(logger.WithWriter(logs)); err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// ExportMetrics writes the Prometheus textfile when cfg names one.
func ExportMetrics(cfg *config.Config) error {
	if cfg == nil || cfg.MetricsFile == "" {
		return nil
	}
	return metrics.WriteTextfile(cfg.MetricsFile)
}

// RequiredFiles lists the files a run cannot start without: inputs followed
// by the artifact the configured scorer reads.
func RequiredFiles(cfg *config.Config, inputs ...string) []string {
	files := append([]string(nil), inputs...)
	switch {
	case cfg.Scorer == config.ScorerTree:
		files = append(files, cfg.ModelPath)
	case cfg.CoefficientsPath != "":
		files = append(files, cfg.CoefficientsPath)
	}
	return files
}
