package scoring

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/reimburse/internal/domain/features"
)

// InterceptKey names the intercept row of a coefficient table.
const InterceptKey = "intercept"

// CoefficientTable maps feature names to weights, plus InterceptKey.
type CoefficientTable map[string]float64

// Linear evaluates intercept + w·x with weights bound to the schema by name.
type Linear struct {
	schema    string
	intercept float64
	weights   *mat.VecDense
}

// NewLinear lays the table's weights out in schema order. Every schema
// feature needs a row, the intercept is required and rows naming features
// outside the schema are rejected.
func NewLinear(schema features.Schema, table CoefficientTable) (*Linear, error) {
	intercept, ok := table[InterceptKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q row", ErrCoefficientMismatch, InterceptKey)
	}

	names := schema.Names()
	w := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		c, ok := table[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		w[i] = c
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: schema %q has no coefficient for %v", ErrCoefficientMismatch, schema.ID(), missing)
	}

	var extra []string
	for name := range table {
		if _, ok := schema.Index(name); !ok && name != InterceptKey {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: schema %q has no feature %v", ErrCoefficientMismatch, schema.ID(), extra)
	}

	return &Linear{
		schema:    schema.ID(),
		intercept: intercept,
		weights:   mat.NewVecDense(len(w), w),
	}, nil
}

// Schema implements Scorer.
func (l *Linear) Schema() string { return l.schema }

// Intercept returns the bound intercept.
func (l *Linear) Intercept() float64 { return l.intercept }

// Coef returns the weights in schema order.
func (l *Linear) Coef() []float64 {
	out := make([]float64, l.weights.Len())
	for i := range out {
		out[i] = l.weights.AtVec(i)
	}
	return out
}

// Score implements Scorer.
func (l *Linear) Score(_ context.Context, v features.Vector) (float64, error) {
	if err := checkVector(l.schema, l.weights.Len(), v); err != nil {
		return 0, err
	}
	x := mat.NewVecDense(len(v.Values), v.Values)
	return l.intercept + mat.Dot(l.weights, x), nil
}
