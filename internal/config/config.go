// Package config defines the tools' configuration and how it is loaded.
//
// Conventions:
// - New() returns a Config holding the defaults.
// - Load layers a YAML file and environment variables over those defaults.
// - External errors are wrapped with this package's sentinels.
package config

// Scorer kinds.
const (
	ScorerTree   = "tree"
	ScorerLinear = "linear"
)

// Config contains process configuration shared by every binary.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Scorer selects the prediction backend: tree or linear.
	Scorer string `koanf:"scorer"`

	// Schema is the feature schema id the scorer was trained on.
	Schema string `koanf:"schema"`

	// ModelPath points at the tree-ensemble artifact.
	ModelPath string `koanf:"model_path"`

	// CoefficientsPath points at a coefficient CSV. Empty selects the
	// table compiled into the binary.
	CoefficientsPath string `koanf:"coefficients_path"`

	// PublicCases is the labeled case file read by the evaluation harness.
	PublicCases string `koanf:"public_cases"`

	// PrivateCases is the unlabeled case file read by the batch generator.
	PrivateCases string `koanf:"private_cases"`

	// ResultsPath is where the batch generator writes its lines.
	ResultsPath string `koanf:"results_path"`

	// WorkerCount sets how many cases are processed at once.
	WorkerCount int `koanf:"worker_count"`

	// ReportFormat selects the evaluation report: text, json, yaml.
	ReportFormat string `koanf:"report_format"`

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string `koanf:"metrics_file"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		Scorer:       ScorerTree,
		Schema:       "poly16",
		ModelPath:    "xgb_model.json",
		PublicCases:  "public_cases.json",
		PrivateCases: "private_cases.json",
		ResultsPath:  "private_results.txt",
		WorkerCount:  1,
		ReportFormat: "text",
	}
}
