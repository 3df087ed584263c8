package generation

import (
	"strings"

	ports "github.com/taskatlas/taskatlas/atlas/generation/ports"
)

// PromptBuilder assembles model-ready inputs from system text and messages.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Build flattens system + chat messages into a Provider PromptInput.
func (b *PromptBuilder) Build(system string, messages []ports.PromptMessage, auxInputs []string, meta map[string]string) ports.PromptInput {
	// Normalize newlines and trim whitespace to reduce prompt diffs
	norm := func(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) }

	for i := range messages {
		messages[i].Content = norm(messages[i].Content)
	}
	for i := range auxInputs {
		auxInputs[i] = norm(auxInputs[i])
	}

	return ports.PromptInput{
		System:   norm(system),
		Messages: messages,
		Context:  auxInputs,
		Meta:     meta,
	}
}
