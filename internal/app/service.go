// Package service wires configuration, artifacts and the domain packages into
// the operations the command-line tools expose.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/reimburse/internal/adapters/repository"
	"github.com/okian/reimburse/internal/adapters/worker"
	"github.com/okian/reimburse/internal/batch"
	"github.com/okian/reimburse/internal/config"
	"github.com/okian/reimburse/internal/domain/features"
	"github.com/okian/reimburse/internal/domain/model"
	"github.com/okian/reimburse/internal/domain/scoring"
	"github.com/okian/reimburse/internal/evaluation"
	"github.com/okian/reimburse/pkg/logger"
)

// Service holds the predictor for one invocation. Artifacts are loaded once,
// in Start, and stay read-only for the rest of the run.
type Service struct {
	mu sync.RWMutex

	// Configuration
	scorerKind       string
	schemaID         string
	modelPath        string
	coefficientsPath string
	workerCount      int

	// Acquired in Start
	predictor *scoring.Predictor
	pool      *worker.Pool
	runID     string

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithScorer selects the backend: config.ScorerTree or config.ScorerLinear.
func WithScorer(kind string) Option {
	return func(s *Service) {
		if kind != "" {
			s.scorerKind = kind
		}
	}
}

// WithSchema sets the feature schema id.
func WithSchema(id string) Option {
	return func(s *Service) {
		if id != "" {
			s.schemaID = id
		}
	}
}

// WithModelPath sets the tree-ensemble artifact path.
func WithModelPath(path string) Option {
	return func(s *Service) {
		s.modelPath = path
	}
}

// WithCoefficientsPath sets the coefficient CSV. Empty selects the embedded table.
func WithCoefficientsPath(path string) Option {
	return func(s *Service) {
		s.coefficientsPath = path
	}
}

// WithWorkerCount sets how many cases are processed at once.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig applies every scorer and artifact setting from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		for _, opt := range []Option{
			WithScorer(cfg.Scorer),
			WithSchema(cfg.Schema),
			WithModelPath(cfg.ModelPath),
			WithCoefficientsPath(cfg.CoefficientsPath),
			WithWorkerCount(cfg.WorkerCount),
		} {
			opt(s)
		}
	}
}

// New constructs a Service with the reference defaults: the poly16 tree
// model in the working directory, processed sequentially.
func New(opts ...Option) *Service {
	defaults := config.New()
	s := &Service{
		scorerKind:  defaults.Scorer,
		schemaID:    defaults.Schema,
		modelPath:   defaults.ModelPath,
		workerCount: defaults.WorkerCount,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start loads the artifacts and binds them to the feature schema. Any error
// here is fatal for the run.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.runID = uuid.NewString()
	s.logger = s.logger.With(logger.String("run_id", s.runID))

	schema, err := features.Lookup(s.schemaID)
	if err != nil {
		return err
	}

	scorer, err := s.loadScorer(ctx, schema)
	if err != nil {
		return err
	}

	predictor, err := scoring.NewPredictor(schema, scorer)
	if err != nil {
		return err
	}

	s.predictor = predictor
	s.pool = worker.NewPool(s.workerCount, worker.WithName("cases"), worker.WithLogger(s.logger.Named("worker")))
	s.started = true
	s.logger.Debug(ctx, "service started",
		logger.String("scorer", s.scorerKind),
		logger.String("schema", schema.ID()),
		logger.Int("workers", s.workerCount),
	)
	return nil
}

func (s *Service) loadScorer(ctx context.Context, schema features.Schema) (scoring.Scorer, error) {
	switch s.scorerKind {
	case config.ScorerTree:
		e, err := repository.LoadTreeModel(s.modelPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadArtifacts, err)
		}
		s.logger.Debug(ctx, "tree model loaded",
			logger.String("path", s.modelPath),
			logger.Int("trees", e.Trees()),
		)
		return e, nil

	case config.ScorerLinear:
		var (
			table scoring.CoefficientTable
			err   error
		)
		if s.coefficientsPath == "" {
			table, err = repository.DefaultCoefficients()
		} else {
			table, err = repository.LoadCoefficients(s.coefficientsPath)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadArtifacts, err)
		}
		lin, err := scoring.NewLinear(schema, table)
		if err != nil {
			return nil, err
		}
		s.logger.Debug(ctx, "coefficients loaded", logger.String("path", s.coefficientsPath))
		return lin, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScorer, s.scorerKind)
	}
}

// Stop releases the predictor. The service can be started again.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.predictor = nil
	s.pool = nil
	s.started = false
	s.logger.Debug(context.Background(), "service stopped")
}

// RunID identifies the current run in logs. Empty before Start.
func (s *Service) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// Logger returns the run-scoped logger, or nil before Start.
func (s *Service) Logger() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// Predict computes the reimbursement for one case.
func (s *Service) Predict(ctx context.Context, c model.Case) (float64, error) {
	p, _, err := s.acquire()
	if err != nil {
		return 0, err
	}
	return p.Predict(ctx, c)
}

// Evaluate scores the predictor against the labeled cases at path.
func (s *Service) Evaluate(ctx context.Context, path string) (*evaluation.Summary, error) {
	p, pool, err := s.acquire()
	if err != nil {
		return nil, err
	}

	raw, err := repository.LoadCases(path)
	if err != nil {
		return nil, err
	}

	return evaluation.New(p,
		evaluation.WithPool(pool),
		evaluation.WithLogger(s.Logger().Named("evaluation")),
	).Evaluate(ctx, raw)
}

// Generate predicts the cases at casesPath and writes one line per case to
// resultsPath. The results file is only created once the cases have loaded.
func (s *Service) Generate(ctx context.Context, casesPath, resultsPath string) (stats batch.Stats, err error) {
	p, pool, err := s.acquire()
	if err != nil {
		return batch.Stats{}, err
	}

	raw, err := repository.LoadCases(casesPath)
	if err != nil {
		return batch.Stats{}, err
	}

	out, err := repository.CreateResults(resultsPath)
	if err != nil {
		return batch.Stats{}, err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", resultsPath, closeErr)
		}
	}()

	return batch.New(p,
		batch.WithPool(pool),
		batch.WithLogger(s.Logger().Named("batch")),
	).Generate(ctx, raw, out)
}

// GetStats returns service state for diagnostics.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"started":     s.started,
		"scorer":      s.scorerKind,
		"schema":      s.schemaID,
		"workerCount": s.workerCount,
		"runID":       s.runID,
	}
}

func (s *Service) acquire() (*scoring.Predictor, *worker.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.predictor, s.pool, nil
}
