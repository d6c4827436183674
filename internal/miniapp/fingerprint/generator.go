package fingerprint

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 3 * time.Second

// Collector is a primary entropy source. It may fail or block.
type Collector interface {
	Collect(ctx context.Context) (string, error)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(ctx context.Context) (string, error)

// Collect calls f.
func (f CollectorFunc) Collect(ctx context.Context) (string, error) {
	return f(ctx)
}

// Options configures a Generator.
type Options struct {
	Collector Collector
	Env       Environment
	Cache     *Cache
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Generator produces device fingerprints.
type Generator struct {
	collector Collector
	env       Environment
	cache     *Cache
	timeout   time.Duration
	logger    *zap.Logger
}

// NewGenerator builds a Generator. A nil Cache gets a private one.
func NewGenerator(opts Options) *Generator {
	if opts.Cache == nil {
		opts.Cache = NewCache()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Generator{
		collector: opts.Collector,
		env:       opts.Env,
		cache:     opts.Cache,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
}

// Generate returns the primary fingerprint, or the fallback hash when the
// primary source is unavailable. The result is never empty.
func (g *Generator) Generate(ctx context.Context) string {
	if g.collector != nil {
		value, err := g.primary(ctx)
		if err == nil {
			return value
		}
		g.logger.Debug("primary fingerprint unavailable, using fallback", zap.Error(err))
	}
	return Fallback(ReadInputs(g.env))
}

func (g *Generator) primary(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.cache.Get(ctx, g.collector.Collect)
}
