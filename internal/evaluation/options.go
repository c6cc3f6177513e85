package evaluation

import (
	"github.com/okian/reimburse/internal/adapters/worker"
	"github.com/okian/reimburse/pkg/logger"
)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPool runs cases on the given pool instead of sequentially.
func WithPool(p *worker.Pool) Option {
	return func(e *Evaluator) {
		if p != nil {
			e.pool = p
		}
	}
}

// WithLogger sets a custom logger for the evaluator.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProgressEvery sets how many processed cases separate progress log lines.
func WithProgressEvery(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.progressEvery = n
		}
	}
}
