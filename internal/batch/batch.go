// Package batch predicts a file of unlabeled cases and writes one result line
// per case, in input order.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/reimburse/internal/adapters/worker"
	"github.com/okian/reimburse/internal/domain/model"
	"github.com/okian/reimburse/pkg/logger"
	"github.com/okian/reimburse/pkg/metrics"
)

// ErrorLine marks a case that could not be predicted.
const ErrorLine = "ERROR"

const tool = "batch"

// Predictor produces a reimbursement for one case.
type Predictor interface {
	Predict(ctx context.Context, c model.Case) (float64, error)
}

// LineWriter receives result lines.
type LineWriter interface {
	WriteLine(line string) error
}

// Stats counts what a run wrote.
type Stats struct {
	Total  int
	Failed int
}

// Generator turns cases into result lines.
type Generator struct {
	predictor Predictor
	pool      *worker.Pool
	logger    logger.Logger
}

// New creates a Generator. Cases run sequentially unless WithPool is given.
func New(p Predictor, opts ...Option) *Generator {
	g := &Generator{
		predictor: p,
		logger:    logger.Get().Named("batch"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.pool == nil {
		g.pool = worker.NewPool(1, worker.WithName("batch"), worker.WithLogger(g.logger))
	}
	return g
}

// Generate writes exactly one line per raw case: the prediction formatted to
// two decimals, or ErrorLine when the case fails. Nothing is written if ctx
// ends before every case ran.
func (g *Generator) Generate(ctx context.Context, raw []json.RawMessage, w LineWriter) (Stats, error) {
	results, err := worker.Run(ctx, g.pool, len(raw), func(ctx context.Context, i int) (float64, error) {
		return g.predictCase(ctx, raw[i])
	})
	if err != nil {
		return Stats{}, fmt.Errorf("generation interrupted: %w", err)
	}

	stats := Stats{Total: len(results)}
	for i, r := range results {
		line := ErrorLine
		if r.Err != nil {
			stats.Failed++
			g.logger.Error(ctx, "case failed", logger.Int("case", i+1), logger.Error(r.Err))
		} else {
			line = FormatResult(r.Value)
		}
		if err := w.WriteLine(line); err != nil {
			metrics.RecordCaseError(tool, "write")
			return stats, fmt.Errorf("write result for case %d: %w", i+1, err)
		}
	}

	g.logger.Info(ctx, "results generated", logger.Int("cases", stats.Total), logger.Int("failed", stats.Failed))
	return stats, nil
}

func (g *Generator) predictCase(ctx context.Context, raw json.RawMessage) (float64, error) {
	c, err := model.DecodeCase(raw)
	if err != nil {
		metrics.RecordCaseError(tool, "decode")
		return 0, err
	}

	start := time.Now()
	v, err := g.predictor.Predict(ctx, c)
	metrics.RecordPredictionLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordCaseError(tool, "predict")
		return 0, err
	}
	metrics.RecordCaseProcessed(tool)
	return v, nil
}

// FormatResult renders a prediction the way every tool prints it.
func FormatResult(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
