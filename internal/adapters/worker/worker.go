// Package worker runs independent per-case jobs on a bounded set of goroutines
// and hands the results back in input order.
package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/reimburse/pkg/logger"
	"github.com/okian/reimburse/pkg/metrics"
)

const defaultPoolSize = 1

// Job computes the result for case i.
type Job[T any] func(ctx context.Context, i int) (T, error)

// Result is the outcome of one job. A failed job never affects its siblings.
type Result[T any] struct {
	Value T
	Err   error
}

// Pool bounds how many jobs run at once.
type Pool struct {
	size   int
	name   string
	logger logger.Logger
}

// NewPool creates a pool running at most size jobs concurrently. A size below
// one falls back to sequential execution.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = defaultPoolSize
	}

	p := &Pool{
		size:   size,
		name:   "worker-pool",
		logger: logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	metrics.UpdateWorkerCount(size)
	return p
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Run executes job for every index in [0, n) and returns one Result per index,
// in index order. Job errors are stored in their slot. The returned error is
// non-nil only when ctx ends before every job ran; slots that never started
// carry that error.
func Run[T any](ctx context.Context, p *Pool, n int, job Job[T]) ([]Result[T], error) {
	results := make([]Result[T], n)
	if n == 0 {
		return results, ctx.Err()
	}

	start := time.Now()
	p.logger.Debug(ctx, "pool started",
		logger.String("pool", p.name),
		logger.Int("jobs", n),
		logger.Int("size", p.size),
	)

	var g errgroup.Group
	g.SetLimit(p.size)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			for j := i; j < n; j++ {
				results[j].Err = err
			}
			break
		}
		g.Go(func() error {
			v, err := job(ctx, i)
			results[i] = Result[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Debug(ctx, "pool finished",
		logger.String("pool", p.name),
		logger.Int("jobs", n),
		logger.Float64("elapsed_ms", float64(time.Since(start).Microseconds())/1000),
	)
	return results, ctx.Err()
}
