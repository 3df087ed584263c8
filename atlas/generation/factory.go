package generation

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/taskatlas/taskatlas/atlas/config"
	"github.com/taskatlas/taskatlas/atlas/generation/adapters"
	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// Factory creates and wires generation components from configuration.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewFactory creates a new generation factory.
func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateProvider creates the completion API client from config.
func (f *Factory) CreateProvider() ports.Provider {
	return adapters.NewHTTPProvider(adapters.HTTPProviderConfig{
		Endpoint: f.cfg.LLM.Endpoint,
		APIKey:   f.cfg.LLM.APIKey,
		Model:    f.cfg.LLM.Model,
		Timeout:  f.cfg.LLM.Timeout,
	})
}

// CreateCache creates the result cache from config.
func (f *Factory) CreateCache() ports.Cache {
	if !f.cfg.Search.CacheEnabled {
		return &noOpCache{}
	}
	return adapters.NewTTLCache(f.cfg.Search.CacheCapacity)
}

// CreateRateLimiter creates the completion API rate limiter from config.
func (f *Factory) CreateRateLimiter() ports.RateLimiter {
	if !f.cfg.Search.RateLimitOn {
		return &noOpRateLimiter{}
	}
	return adapters.NewTokenBucket(f.cfg.Search.RateLimit, f.cfg.Search.RateRefill)
}

// CreateTracer creates a tracer from config.
func (f *Factory) CreateTracer() ports.Tracer {
	if !f.cfg.Telemetry.EnableTracing {
		return &noOpTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

// CreateOptions maps the completion API settings to call options.
func (f *Factory) CreateOptions() ports.Options {
	return ports.Options{
		MaxNewTokens: f.cfg.LLM.MaxNewTokens,
		Temperature:  f.cfg.LLM.Temperature,
		TopP:         f.cfg.LLM.TopP,
		TimeoutMs:    int(f.cfg.LLM.Timeout.Milliseconds()),
	}
}

// CreateGuardrails creates output guardrails from config.
func (f *Factory) CreateGuardrails() *Guardrails {
	return NewGuardrails(f.cfg.Search.MaxOutputSize)
}

// noOpCache implements Cache with no-op behavior for disabled caching.
type noOpCache struct{}

func (c *noOpCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (c *noOpCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (c *noOpCache) Delete(ctx context.Context, key string) error { return nil }

// noOpRateLimiter implements RateLimiter with no-op behavior.
type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(ctx context.Context, key string) (release func(), err error) {
	return func() {}, nil
}

// noOpTracer implements Tracer with no-op behavior.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Cache       = (*noOpCache)(nil)
	_ ports.RateLimiter = (*noOpRateLimiter)(nil)
	_ ports.Tracer      = (*noOpTracer)(nil)
)
