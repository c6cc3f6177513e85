package config

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/reimburse/internal/domain/features"
)

// Environment variable names.
const (
	EnvPrefix     = "REIMBURSE_"
	EnvConfigFile = "REIMBURSE_CONFIG"
)

var (
	logLevels     = []string{"debug", "info", "warn", "warning", "error"}
	scorers       = []string{ScorerTree, ScorerLinear}
	reportFormats = []string{"text", "json", "yaml"}
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if REIMBURSE_CONFIG is set
//  3. env (prefix REIMBURSE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// REIMBURSE_WORKER_COUNT -> worker_count. Underscores are kept so the
	// flat keys match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		if s == strings.ToLower(EnvConfigFile) {
			return ""
		}
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Scorer = strings.ToLower(strings.TrimSpace(c.Scorer))
	c.ReportFormat = strings.ToLower(strings.TrimSpace(c.ReportFormat))

	switch {
	case !slices.Contains(logLevels, c.LogLevel):
		return fmt.Errorf("%w: log_level %q must be one of %v", ErrInvalidConfig, c.LogLevel, logLevels)
	case !slices.Contains(scorers, c.Scorer):
		return fmt.Errorf("%w: scorer %q must be one of %v", ErrInvalidConfig, c.Scorer, scorers)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be at least 1, got %d", ErrInvalidConfig, c.WorkerCount)
	case !slices.Contains(reportFormats, c.ReportFormat):
		return fmt.Errorf("%w: report_format %q must be one of %v", ErrInvalidConfig, c.ReportFormat, reportFormats)
	case c.ModelPath == "" && c.Scorer == ScorerTree:
		return fmt.Errorf("%w: model_path must not be empty for the tree scorer", ErrInvalidConfig)
	case c.PublicCases == "":
		return fmt.Errorf("%w: public_cases must not be empty", ErrInvalidConfig)
	case c.PrivateCases == "":
		return fmt.Errorf("%w: private_cases must not be empty", ErrInvalidConfig)
	case c.ResultsPath == "":
		return fmt.Errorf("%w: results_path must not be empty", ErrInvalidConfig)
	}

	if _, err := features.Lookup(c.Schema); err != nil {
		return fmt.Errorf("%w: schema: %w", ErrInvalidConfig, err)
	}
	return nil
}
