// Package classify decides whether job-role tasks are automatable using the
// external completion API.
package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/taskatlas/taskatlas/atlas/generation"
	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// Label is the classification verdict for a task.
type Label string

const (
	LabelAutomatable   Label = "automatable"
	LabelHumanRequired Label = "human-required"
)

// Classification is the structured verdict for one task.
type Classification struct {
	Task       string  `json:"task"`
	Label      Label   `json:"classification"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

var classificationSchema = []byte(`{
	"type": "object",
	"required": ["classification"],
	"properties": {
		"classification": {"type": "string", "enum": ["automatable", "human-required"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reasoning": {"type": "string"}
	}
}`)

var systemPrompts = map[string]string{
	"en": `You classify job-role tasks. Decide whether the task can be automated with current technology.
Respond with strict JSON only: {"classification": "automatable" | "human-required", "confidence": 0..1, "reasoning": "..."}`,
	"de": `Du klassifizierst Aufgaben aus Berufsprofilen. Entscheide, ob die Aufgabe mit heutiger Technologie automatisierbar ist.
Antworte ausschliesslich mit striktem JSON: {"classification": "automatable" | "human-required", "confidence": 0..1, "reasoning": "..."}`,
}

// Classifier runs task classification against the completion API.
type Classifier struct {
	provider    ports.Provider
	builder     *generation.PromptBuilder
	parser      *generation.OutputParser
	guardrails  *generation.Guardrails
	limiter     ports.RateLimiter
	tracer      ports.Tracer
	opts        ports.Options
	concurrency int
}

// NewClassifier creates a classifier with the given dependencies.
func NewClassifier(provider ports.Provider, guardrails *generation.Guardrails, limiter ports.RateLimiter, tracer ports.Tracer, opts ports.Options, concurrency int) *Classifier {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Classifier{
		provider:    provider,
		builder:     generation.NewPromptBuilder(),
		parser:      generation.NewOutputParser(),
		guardrails:  guardrails,
		limiter:     limiter,
		tracer:      tracer,
		opts:        opts,
		concurrency: concurrency,
	}
}

// Classify returns the verdict for a single task. Unknown labels and
// malformed model output are errors, never guessed.
func (c *Classifier) Classify(ctx context.Context, taskText, lang string) (*Classification, error) {
	system, ok := systemPrompts[lang]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	release, err := c.limiter.Acquire(ctx, "classify")
	if err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}
	defer release()

	ctx, finish := c.tracer.StartSpan(ctx, "classify_task", map[string]any{"lang": lang})

	prompt := c.builder.Build(system, []ports.PromptMessage{
		{Role: "user", Content: taskText},
	}, nil, map[string]string{"operation": "classify"})

	completion, err := c.provider.Complete(ctx, prompt, c.opts)
	if err != nil {
		finish(err)
		return nil, fmt.Errorf("provider call failed: %w", err)
	}

	if err := c.guardrails.ValidateOutput(completion.Text); err != nil {
		finish(err)
		return nil, fmt.Errorf("classification output rejected: %w", err)
	}

	raw, err := c.parser.ParseJSONOutput(completion.Text)
	if err != nil {
		finish(err)
		return nil, fmt.Errorf("classification output is not JSON: %w", err)
	}
	if err := c.guardrails.ValidateJSONOutput(raw, classificationSchema); err != nil {
		finish(err)
		return nil, fmt.Errorf("classification output failed validation: %w", err)
	}

	var result Classification
	if err := json.Unmarshal(raw, &result); err != nil {
		finish(err)
		return nil, fmt.Errorf("failed to decode classification: %w", err)
	}
	result.Task = taskText

	finish(nil)
	return &result, nil
}

// ClassifyBatch fans out over a bounded worker pool. The first error
// cancels outstanding work.
func (c *Classifier) ClassifyBatch(ctx context.Context, tasks []string, lang string) ([]*Classification, error) {
	p := pool.NewWithResults[*Classification]().
		WithContext(ctx).
		WithMaxGoroutines(c.concurrency).
		WithCancelOnError()

	for _, task := range tasks {
		task := task
		p.Go(func(ctx context.Context) (*Classification, error) {
			return c.Classify(ctx, task, lang)
		})
	}

	return p.Wait()
}
