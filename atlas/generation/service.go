package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskatlas/taskatlas/atlas/generation/businesscase"
	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// businessCaseSchema constrains the structured output the model must
// produce for a business case.
var businessCaseSchema = []byte(`{
	"type": "object",
	"required": ["summary", "recommendation"],
	"properties": {
		"summary": {"type": "string"},
		"annual_hours_saved": {"type": "number"},
		"implementation_effort": {"type": "string"},
		"risks": {"type": "array", "items": {"type": "string"}},
		"recommendation": {"type": "string"}
	}
}`)

var businessCaseSystemPrompts = map[businesscase.Language]string{
	businesscase.LanguageEnglish: `You are an automation consultant. Given a job-role task, produce a business case for automating it.
Respond with strict JSON only, using the keys: summary, annual_hours_saved, implementation_effort, risks, recommendation.`,
	businesscase.LanguageGerman: `Du bist ein Automatisierungsberater. Erstelle zu einer Aufgabe einen Business Case für deren Automatisierung.
Antworte ausschliesslich mit striktem JSON und den Schlüsseln: summary, annual_hours_saved, implementation_effort, risks, recommendation.`,
}

// Service ties the completion API, output handling, and the single-flight
// cache together for business-case generation.
type Service struct {
	provider   ports.Provider
	builder    *PromptBuilder
	parser     *OutputParser
	guardrails *Guardrails
	limiter    ports.RateLimiter
	tracer     ports.Tracer
	cache      *businesscase.Cache
	opts       ports.Options
}

// NewService creates a generation service with the given dependencies.
func NewService(provider ports.Provider, cache *businesscase.Cache, guardrails *Guardrails, limiter ports.RateLimiter, tracer ports.Tracer, opts ports.Options) *Service {
	return &Service{
		provider:   provider,
		builder:    NewPromptBuilder(),
		parser:     NewOutputParser(),
		guardrails: guardrails,
		limiter:    limiter,
		tracer:     tracer,
		cache:      cache,
		opts:       opts,
	}
}

// Cache exposes the underlying single-flight cache for stats and clearing.
func (s *Service) Cache() *businesscase.Cache { return s.cache }

// GenerateBusinessCase returns the business case for a task, deduplicating
// concurrent requests for the same normalized task through the cache.
func (s *Service) GenerateBusinessCase(ctx context.Context, taskText string, auxInputs []string, lang businesscase.Language) (*businesscase.BusinessCase, error) {
	return s.cache.GetOrGenerate(ctx, taskText, auxInputs, lang, s.generate)
}

// generate performs one uncached generation run against the provider.
func (s *Service) generate(ctx context.Context, taskText string, auxInputs []string, lang businesscase.Language) (*businesscase.BusinessCase, error) {
	release, err := s.limiter.Acquire(ctx, "businesscase")
	if err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}
	defer release()

	ctx, finish := s.tracer.StartSpan(ctx, "generate_business_case", map[string]any{
		"lang":       string(lang),
		"aux_inputs": len(auxInputs),
	})

	system, ok := businessCaseSystemPrompts[lang]
	if !ok {
		finish(nil)
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	prompt := s.builder.Build(system, []ports.PromptMessage{
		{Role: "user", Content: taskText},
	}, auxInputs, map[string]string{"operation": "business_case"})

	completion, err := s.provider.Complete(ctx, prompt, s.opts)
	if err != nil {
		finish(err)
		return nil, fmt.Errorf("provider call failed: %w", err)
	}

	if err := s.guardrails.ValidateOutput(completion.Text); err != nil {
		finish(err)
		return nil, fmt.Errorf("business case output rejected: %w", err)
	}

	raw, err := s.parser.ParseJSONOutput(completion.Text)
	if err != nil {
		finish(err)
		return nil, fmt.Errorf("business case output is not JSON: %w", err)
	}
	if err := s.guardrails.ValidateJSONOutput(raw, businessCaseSchema); err != nil {
		finish(err)
		return nil, fmt.Errorf("business case output failed validation: %w", err)
	}

	var result businesscase.BusinessCase
	if err := json.Unmarshal(raw, &result); err != nil {
		finish(err)
		return nil, fmt.Errorf("failed to decode business case: %w", err)
	}

	finish(nil)
	return &result, nil
}
