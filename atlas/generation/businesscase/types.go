package businesscase

import "context"

// Language identifies a supported output locale.
type Language string

const (
	LanguageGerman  Language = "de"
	LanguageEnglish Language = "en"
)

// BusinessCase is the structured result of a generation run.
type BusinessCase struct {
	Summary              string   `json:"summary"`
	AnnualHoursSaved     float64  `json:"annual_hours_saved"`
	ImplementationEffort string   `json:"implementation_effort"`
	Risks                []string `json:"risks"`
	Recommendation       string   `json:"recommendation"`
}

// GeneratorFunc produces a business case for a task. The cache treats it as
// an opaque capability: it either completes or fails.
type GeneratorFunc func(ctx context.Context, taskText string, auxInputs []string, lang Language) (*BusinessCase, error)
