package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/taskatlas/taskatlas/atlas/generation"
	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

var definitionSchema = []byte(`{
	"type": "object",
	"required": ["definition"],
	"properties": {
		"definition": {"type": "string", "minLength": 1}
	}
}`)

// Generator produces term definitions in batch and persists them.
type Generator struct {
	provider    ports.Provider
	builder     *generation.PromptBuilder
	parser      *generation.OutputParser
	guardrails  *generation.Guardrails
	limiter     ports.RateLimiter
	tracer      ports.Tracer
	templates   *TemplateStore
	store       TermStore
	opts        ports.Options
	concurrency int
	logger      zerolog.Logger
}

func NewGenerator(provider ports.Provider, guardrails *generation.Guardrails, limiter ports.RateLimiter, tracer ports.Tracer, templates *TemplateStore, store TermStore, opts ports.Options, concurrency int, logger zerolog.Logger) *Generator {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Generator{
		provider:    provider,
		builder:     generation.NewPromptBuilder(),
		parser:      generation.NewOutputParser(),
		guardrails:  guardrails,
		limiter:     limiter,
		tracer:      tracer,
		templates:   templates,
		store:       store,
		opts:        opts,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "catalog_generator").Logger(),
	}
}

// GenerateCatalog generates a definition for every term over a bounded
// worker pool and upserts the results. The first error cancels the
// remaining work.
func (g *Generator) GenerateCatalog(ctx context.Context, terms []string, lang string) ([]*CatalogTerm, error) {
	system, ok := g.templates.Get("definition_" + lang)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	p := pool.NewWithResults[*CatalogTerm]().
		WithContext(ctx).
		WithMaxGoroutines(g.concurrency).
		WithCancelOnError()

	for _, term := range terms {
		term := term
		p.Go(func(ctx context.Context) (*CatalogTerm, error) {
			return g.generateTerm(ctx, system, term, lang)
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	g.logger.Info().Int("terms", len(results)).Str("lang", lang).Msg("catalog generation complete")
	return results, nil
}

func (g *Generator) generateTerm(ctx context.Context, system, term, lang string) (*CatalogTerm, error) {
	release, err := g.limiter.Acquire(ctx, "catalog")
	if err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}
	defer release()

	ctx, finish := g.tracer.StartSpan(ctx, "generate_term", map[string]any{"term": term, "lang": lang})

	prompt := g.builder.Build(system, []ports.PromptMessage{
		{Role: "user", Content: term},
	}, nil, map[string]string{"operation": "catalog"})

	completion, err := g.provider.Complete(ctx, prompt, g.opts)
	if err != nil {
		finish(err)
		return nil, fmt.Errorf("provider call failed for %q: %w", term, err)
	}
	if err := g.guardrails.ValidateOutput(completion.Text); err != nil {
		finish(err)
		return nil, fmt.Errorf("definition output rejected for %q: %w", term, err)
	}
	raw, err := g.parser.ParseJSONOutput(completion.Text)
	if err != nil {
		finish(err)
		return nil, fmt.Errorf("definition output is not JSON for %q: %w", term, err)
	}
	if err := g.guardrails.ValidateJSONOutput(raw, definitionSchema); err != nil {
		finish(err)
		return nil, fmt.Errorf("definition failed validation for %q: %w", term, err)
	}

	var payload struct {
		Definition string `json:"definition"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		finish(err)
		return nil, fmt.Errorf("failed to decode definition for %q: %w", term, err)
	}

	entry := &CatalogTerm{
		ID:         uuid.New(),
		Term:       term,
		Lang:       lang,
		Definition: payload.Definition,
	}
	if err := g.store.UpsertTerm(ctx, entry); err != nil {
		finish(err)
		return nil, err
	}

	finish(nil)
	return entry, nil
}
