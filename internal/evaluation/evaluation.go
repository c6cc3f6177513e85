// Package evaluation scores a predictor against labeled cases and summarizes
// how far its answers land from the expected reimbursements.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/okian/reimburse/internal/adapters/worker"
	"github.com/okian/reimburse/internal/domain/model"
	"github.com/okian/reimburse/pkg/logger"
	"github.com/okian/reimburse/pkg/metrics"
)

// Match thresholds in dollars. Exact matches are a subset of close matches.
const (
	ExactThreshold = 0.01
	CloseThreshold = 1.00
)

const (
	tool                 = "eval"
	missPenalty          = 0.1
	errorWeight          = 100
	defaultProgressEvery = 100
	highestErrorCount    = 5
)

// Feedback tiers by number of exact matches.
const (
	excellentExact = 950
	greatExact     = 800
	goodExact      = 500
)

// Predictor produces a reimbursement for one case.
type Predictor interface {
	Predict(ctx context.Context, c model.Case) (float64, error)
}

// Record is the outcome of one successful case.
type Record struct {
	Case     int        `json:"case" yaml:"case"`
	Input    model.Case `json:"input" yaml:"input"`
	Expected float64    `json:"expected" yaml:"expected"`
	Actual   float64    `json:"actual" yaml:"actual"`
	Error    float64    `json:"error" yaml:"error"`
}

// CaseError is a case that could not be decoded or predicted.
type CaseError struct {
	Case    int    `json:"case" yaml:"case"`
	Message string `json:"error" yaml:"error"`
}

func (ce CaseError) String() string {
	return fmt.Sprintf("Case %d: %s", ce.Case, ce.Message)
}

// Summary aggregates an evaluation run. Percentages and the average error use
// the successful cases as denominator; the score counts every case.
type Summary struct {
	TotalCases    int         `json:"total_cases" yaml:"total_cases"`
	Successful    int         `json:"successful_runs" yaml:"successful_runs"`
	ExactMatches  int         `json:"exact_matches" yaml:"exact_matches"`
	CloseMatches  int         `json:"close_matches" yaml:"close_matches"`
	ExactPercent  float64     `json:"exact_percent" yaml:"exact_percent"`
	ClosePercent  float64     `json:"close_percent" yaml:"close_percent"`
	AverageError  float64     `json:"average_error" yaml:"average_error"`
	MaxError      float64     `json:"max_error" yaml:"max_error"`
	Score         float64     `json:"score" yaml:"score"`
	Feedback      string      `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	HighestErrors []Record    `json:"highest_error_cases" yaml:"highest_error_cases"`
	Errors        []CaseError `json:"errors" yaml:"errors"`
}

// Summarize folds per-case results, in case order, into a Summary.
func Summarize(results []worker.Result[Record]) *Summary {
	s := &Summary{
		TotalCases:    len(results),
		HighestErrors: []Record{},
		Errors:        []CaseError{},
	}

	records := make([]Record, 0, len(results))
	var totalError float64
	for i, r := range results {
		if r.Err != nil {
			s.Errors = append(s.Errors, CaseError{Case: i + 1, Message: r.Err.Error()})
			continue
		}
		rec := r.Value
		records = append(records, rec)
		totalError += rec.Error
		if rec.Error < ExactThreshold {
			s.ExactMatches++
		}
		if rec.Error < CloseThreshold {
			s.CloseMatches++
		}
		if rec.Error > s.MaxError {
			s.MaxError = rec.Error
		}
	}

	s.Successful = len(records)
	if s.Successful == 0 {
		return s
	}

	n := float64(s.Successful)
	s.AverageError = totalError / n
	s.ExactPercent = float64(s.ExactMatches) / n * 100
	s.ClosePercent = float64(s.CloseMatches) / n * 100
	s.Score = s.AverageError*errorWeight + float64(s.TotalCases-s.ExactMatches)*missPenalty
	s.Feedback = feedback(s.ExactMatches, s.TotalCases)

	sort.SliceStable(records, func(i, j int) bool { return records[i].Error > records[j].Error })
	if len(records) > highestErrorCount {
		records = records[:highestErrorCount]
	}
	s.HighestErrors = records
	return s
}

func feedback(exact, total int) string {
	switch {
	case exact == total:
		return "PERFECT SCORE! The system has been reverse-engineered completely."
	case exact > excellentExact:
		return "Excellent! Very close to the perfect solution."
	case exact > greatExact:
		return "Great work! Most of the system behavior is captured."
	case exact > goodExact:
		return "Good progress! Some key patterns are understood."
	default:
		return "Keep analyzing the patterns in the interviews and test cases."
	}
}

// Evaluator runs a Predictor over labeled cases.
type Evaluator struct {
	predictor     Predictor
	pool          *worker.Pool
	logger        logger.Logger
	progressEvery int
}

// New creates an Evaluator. Cases run sequentially unless WithPool is given.
func New(p Predictor, opts ...Option) *Evaluator {
	e := &Evaluator{
		predictor:     p,
		logger:        logger.Get().Named("evaluation"),
		progressEvery: defaultProgressEvery,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pool == nil {
		e.pool = worker.NewPool(1, worker.WithName("evaluation"), worker.WithLogger(e.logger))
	}
	return e
}

// Evaluate decodes and scores every raw labeled case. A case that fails is
// recorded in Summary.Errors and never stops the run; only ctx ending does.
func (e *Evaluator) Evaluate(ctx context.Context, raw []json.RawMessage) (*Summary, error) {
	total := len(raw)
	e.logger.Info(ctx, "evaluation started", logger.Int("cases", total), logger.Int("workers", e.pool.Size()))

	var done atomic.Int64
	results, err := worker.Run(ctx, e.pool, total, func(ctx context.Context, i int) (Record, error) {
		defer e.progress(ctx, done.Add(1), total)
		return e.evaluateCase(ctx, i, raw[i])
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	s := Summarize(results)
	for _, ce := range s.Errors {
		e.logger.Warn(ctx, "case failed", logger.Int("case", ce.Case), logger.String("error", ce.Message))
	}
	metrics.UpdateEvaluationSummary(metrics.Summary{
		ExactMatches:      s.ExactMatches,
		CloseMatches:      s.CloseMatches,
		MeanAbsoluteError: s.AverageError,
		MaxError:          s.MaxError,
		Score:             s.Score,
	})
	e.logger.Info(ctx, "evaluation complete",
		logger.Int("successful", s.Successful),
		logger.Int("failed", len(s.Errors)),
		logger.Float64("score", s.Score),
	)
	return s, nil
}

func (e *Evaluator) evaluateCase(ctx context.Context, i int, raw json.RawMessage) (Record, error) {
	lc, err := model.DecodeLabeledCase(raw)
	if err != nil {
		metrics.RecordCaseError(tool, "decode")
		return Record{}, err
	}

	start := time.Now()
	actual, err := e.predictor.Predict(ctx, lc.Input)
	metrics.RecordPredictionLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordCaseError(tool, "predict")
		return Record{}, err
	}

	diff := math.Abs(actual - lc.Expected)
	metrics.RecordCaseProcessed(tool)
	metrics.RecordAbsoluteError(diff)
	return Record{
		Case:     i + 1,
		Input:    lc.Input,
		Expected: lc.Expected,
		Actual:   actual,
		Error:    diff,
	}, nil
}

func (e *Evaluator) progress(ctx context.Context, done int64, total int) {
	if done%int64(e.progressEvery) == 0 {
		e.logger.Info(ctx, "progress", logger.Int("processed", int(done)), logger.Int("total", total))
	}
}
