// Package metrics provides Prometheus metrics for the reimbursement tools.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the collectors recorded during a single tool invocation.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	errorBuckets     []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	casesProcessed    *prometheus.CounterVec
	caseErrors        *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	absoluteError     prometheus.Histogram

	exactMatches      prometheus.Gauge
	closeMatches      prometheus.Gauge
	meanAbsoluteError prometheus.Gauge
	maxError          prometheus.Gauge
	evaluationScore   prometheus.Gauge
	workerCount       prometheus.Gauge
}

// Summary is the aggregate published after an evaluation run.
type Summary struct {
	ExactMatches      int
	CloseMatches      int
	MeanAbsoluteError float64
	MaxError          float64
	Score             float64
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level recorders

// Custom registry to avoid default Go metrics in the exported textfile.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry backing globalManager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "reimburse",
		subsystem:        "predictor",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		errorBuckets:     []float64{0.01, 0.1, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.casesProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cases_processed_total",
		Help:        "Cases scored successfully, by tool",
		ConstLabels: m.customLabels,
	}, []string{"tool"})

	m.caseErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "case_errors_total",
		Help:        "Cases that failed, by tool and failing stage",
		ConstLabels: m.customLabels,
	}, []string{"tool", "stage"})

	m.predictionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "prediction_latency_milliseconds",
		Help:        "Feature derivation plus scoring latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})

	m.absoluteError = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "absolute_error_dollars",
		Help:        "Absolute error between prediction and expected reimbursement",
		Buckets:     m.errorBuckets,
		ConstLabels: m.customLabels,
	})

	m.exactMatches = m.gauge(auto, "exact_matches", "Cases within $0.01 of the expected output")
	m.closeMatches = m.gauge(auto, "close_matches", "Cases within $1.00 of the expected output")
	m.meanAbsoluteError = m.gauge(auto, "mean_absolute_error_dollars", "Mean absolute error over successful cases")
	m.maxError = m.gauge(auto, "max_absolute_error_dollars", "Largest absolute error over successful cases")
	m.evaluationScore = m.gauge(auto, "evaluation_score", "Composite evaluation score (lower is better)")
	m.workerCount = m.gauge(auto, "worker_count", "Case workers used by the run")
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

// RecordCaseProcessed counts a successfully scored case.
func RecordCaseProcessed(tool string) {
	globalManager.casesProcessed.WithLabelValues(tool).Inc()
}

// RecordCaseError counts a failed case. Stage is decode, predict or write.
func RecordCaseError(tool, stage string) {
	globalManager.caseErrors.WithLabelValues(tool, stage).Inc()
}

// RecordPredictionLatency records prediction latency in milliseconds.
func RecordPredictionLatency(latencyMs float64) {
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordAbsoluteError records the absolute error of one evaluated case.
func RecordAbsoluteError(dollars float64) {
	globalManager.absoluteError.Observe(dollars)
}

// UpdateEvaluationSummary publishes the aggregates of an evaluation run.
func UpdateEvaluationSummary(s Summary) {
	globalManager.exactMatches.Set(float64(s.ExactMatches))
	globalManager.closeMatches.Set(float64(s.CloseMatches))
	globalManager.meanAbsoluteError.Set(s.MeanAbsoluteError)
	globalManager.maxError.Set(s.MaxError)
	globalManager.evaluationScore.Set(s.Score)
}

// UpdateWorkerCount sets the number of case workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile dumps the registry in the text exposition format, suitable for
// the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return nil
}
