// Package scoring turns feature vectors into reimbursement predictions.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/reimburse/internal/domain/features"
	"github.com/okian/reimburse/internal/domain/model"
)

// Scorer computes a prediction from a feature vector laid out by Schema.
type Scorer interface {
	// Schema returns the id of the feature schema the scorer was built for.
	Schema() string
	// Score computes a prediction, rejecting vectors of any other schema.
	Score(ctx context.Context, v features.Vector) (float64, error)
}

// Predictor pairs a feature schema with a scorer built for it.
type Predictor struct {
	schema features.Schema
	scorer Scorer
}

// NewPredictor binds schema to scorer, failing fast when the scorer was
// built for a different feature layout.
func NewPredictor(schema features.Schema, scorer Scorer) (*Predictor, error) {
	if scorer == nil {
		return nil, fmt.Errorf("%w: nil scorer", ErrSchemaMismatch)
	}
	if scorer.Schema() != schema.ID() {
		return nil, fmt.Errorf("%w: features are %q, scorer expects %q", ErrSchemaMismatch, schema.ID(), scorer.Schema())
	}
	return &Predictor{schema: schema, scorer: scorer}, nil
}

// Schema returns the bound feature schema.
func (p *Predictor) Schema() features.Schema { return p.schema }

// Predict derives the case's features and scores them.
func (p *Predictor) Predict(ctx context.Context, c model.Case) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}

	v := p.schema.Derive(c)
	out, err := p.scorer.Score(ctx, v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNonFinitePrediction, out)
	}
	return out, nil
}

// checkVector verifies v was produced by the schema the scorer expects.
func checkVector(schema string, width int, v features.Vector) error {
	if v.Schema != schema {
		return fmt.Errorf("%w: vector is %q, scorer expects %q", ErrSchemaMismatch, v.Schema, schema)
	}
	if len(v.Values) != width {
		return fmt.Errorf("%w: vector has %d values, scorer expects %d", ErrSchemaMismatch, len(v.Values), width)
	}
	return nil
}
