package batch

import (
	"github.com/okian/reimburse/internal/adapters/worker"
	"github.com/okian/reimburse/pkg/logger"
)

// Option configures a Generator.
type Option func(*Generator)

// WithPool runs cases on the given pool instead of sequentially.
func WithPool(p *worker.Pool) Option {
	return func(g *Generator) {
		if p != nil {
			g.pool = p
		}
	}
}

// WithLogger sets a custom logger for the generator.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}
