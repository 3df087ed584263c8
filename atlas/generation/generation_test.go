package generation

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskatlas/taskatlas/atlas/generation/businesscase"
	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// StubProvider implements Provider for testing.
type StubProvider struct {
	calls          atomic.Int64
	completionFunc func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error)
}

func (p *StubProvider) Complete(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
	p.calls.Add(1)
	if p.completionFunc != nil {
		return p.completionFunc(ctx, in, opts)
	}
	return ports.Completion{Text: "stub completion"}, nil
}

var _ ports.Provider = (*StubProvider)(nil)

// TestPromptBuilder_Build tests prompt construction and normalization.
func TestPromptBuilder_Build(t *testing.T) {
	builder := NewPromptBuilder()

	system := "  You are a helpful assistant\r\n"
	messages := []ports.PromptMessage{
		{Role: "user", Content: "Hello\r\nthere"},
	}
	aux := []string{" snippet one "}

	input := builder.Build(system, messages, aux, map[string]string{"test": "value"})

	assert.Equal(t, "You are a helpful assistant", input.System)
	assert.Equal(t, "Hello\nthere", input.Messages[0].Content)
	assert.Equal(t, "snippet one", input.Context[0])
	assert.Equal(t, "value", input.Meta["test"])
}

// TestOutputParser_ParseJSONOutput tests JSON extraction from model text.
func TestOutputParser_ParseJSONOutput(t *testing.T) {
	parser := NewOutputParser()

	// Plain JSON
	raw, err := parser.ParseJSONOutput(`{"summary": "x"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "x"}`, string(raw))

	// Markdown-fenced JSON
	raw, err = parser.ParseJSONOutput("Here you go:\n```json\n{\"summary\": \"y\"}\n```\nDone.")
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "y"}`, string(raw))

	// JSON embedded in prose
	raw, err = parser.ParseJSONOutput(`The result is {"summary": "z"} as requested.`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "z"}`, string(raw))

	// Trailing comma gets repaired
	raw, err = parser.ParseJSONOutput(`{"summary": "x",}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "x"}`, string(raw))

	// No JSON at all
	_, err = parser.ParseJSONOutput("Just a normal response")
	assert.Error(t, err)
}

// TestGuardrails_ValidateOutput tests size and filter enforcement.
func TestGuardrails_ValidateOutput(t *testing.T) {
	guardrails := NewGuardrails(50)

	assert.NoError(t, guardrails.ValidateOutput("short and harmless"))

	err := guardrails.ValidateOutput("this output is much much much much much too long for the limit")
	assert.Error(t, err)

	err = guardrails.ValidateOutput("api_key: sk-12345")
	assert.Error(t, err)

	masked := guardrails.SanitizeOutput("the password=hunter2 leaked")
	assert.NotContains(t, masked, "hunter2")
	assert.Contains(t, masked, "[REDACTED]")
}

// TestJSONValidator_Validate tests schema validation.
func TestJSONValidator_Validate(t *testing.T) {
	validator := NewJSONValidator()
	schema := []byte(`{"type": "object", "required": ["summary"], "properties": {"summary": {"type": "string"}}}`)

	assert.NoError(t, validator.Validate(json.RawMessage(`{"summary": "ok"}`), schema))
	assert.Error(t, validator.Validate(json.RawMessage(`{"other": 1}`), schema))
	assert.Error(t, validator.Validate(json.RawMessage(`{"summary": 42}`), schema))
	// No schema means no validation
	assert.NoError(t, validator.Validate(json.RawMessage(`{"anything": true}`), nil))
}

func newTestService(provider ports.Provider) *Service {
	cache := businesscase.NewCache(nil, zerolog.Nop())
	return NewService(provider, cache, NewGuardrails(10000), &noOpRateLimiter{}, &noOpTracer{}, ports.Options{})
}

// TestService_GenerateBusinessCase tests the provider-backed generation
// path including memoization.
func TestService_GenerateBusinessCase(t *testing.T) {
	provider := &StubProvider{
		completionFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
			return ports.Completion{
				Text: `{"summary": "automate invoice checks", "annual_hours_saved": 120, "implementation_effort": "low", "risks": ["data quality"], "recommendation": "automate"}`,
			}, nil
		},
	}
	svc := newTestService(provider)

	result, err := svc.GenerateBusinessCase(context.Background(), "Check invoices", nil, businesscase.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, "automate invoice checks", result.Summary)
	assert.Equal(t, float64(120), result.AnnualHoursSaved)
	assert.Equal(t, "automate", result.Recommendation)

	// Second call is a cache hit, no provider round trip.
	again, err := svc.GenerateBusinessCase(context.Background(), "  check invoices ", nil, businesscase.LanguageEnglish)
	require.NoError(t, err)
	assert.Same(t, result, again)
	assert.Equal(t, int64(1), provider.calls.Load())
}

// TestService_GenerateBusinessCase_BadOutput tests that malformed model
// output fails without populating the cache.
func TestService_GenerateBusinessCase_BadOutput(t *testing.T) {
	provider := &StubProvider{
		completionFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
			return ports.Completion{Text: "I cannot produce JSON today."}, nil
		},
	}
	svc := newTestService(provider)

	_, err := svc.GenerateBusinessCase(context.Background(), "some task", nil, businesscase.LanguageGerman)
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Cache().GetStats().CachedEntries)
}

// TestService_GenerateBusinessCase_ProviderError tests error propagation
// from the provider to the initiating caller.
func TestService_GenerateBusinessCase_ProviderError(t *testing.T) {
	providerErr := errors.New("upstream 503")
	provider := &StubProvider{
		completionFunc: func(ctx context.Context, in ports.PromptInput, opts ports.Options) (ports.Completion, error) {
			return ports.Completion{}, providerErr
		},
	}
	svc := newTestService(provider)

	_, err := svc.GenerateBusinessCase(context.Background(), "some task", nil, businesscase.LanguageEnglish)
	assert.ErrorIs(t, err, providerErr)
}

// TestService_UnsupportedLanguage tests the language enumeration boundary.
func TestService_UnsupportedLanguage(t *testing.T) {
	svc := newTestService(&StubProvider{})

	_, err := svc.GenerateBusinessCase(context.Background(), "some task", nil, businesscase.Language("fr"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}
