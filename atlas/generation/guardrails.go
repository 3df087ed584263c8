package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Guardrails enforces output validation and size limits on model responses.
type Guardrails struct {
	maxOutputSize int
	outputFilters []*regexp.Regexp
	jsonValidator *JSONValidator
}

// NewGuardrails creates guardrails with default safety settings.
func NewGuardrails(maxOutputSize int) *Guardrails {
	if maxOutputSize <= 0 {
		maxOutputSize = 10000
	}
	return &Guardrails{
		maxOutputSize: maxOutputSize,
		outputFilters: []*regexp.Regexp{
			regexp.MustCompile(`(?i)password[:=]\s*\S+`),
			regexp.MustCompile(`(?i)api[_-]?key[:=]\s*\S+`),
			regexp.MustCompile(`(?i)secret[:=]\s*\S+`),
		},
		jsonValidator: NewJSONValidator(),
	}
}

// ValidateOutput checks size and safety filters on raw model text.
func (g *Guardrails) ValidateOutput(output string) error {
	if len(output) > g.maxOutputSize {
		return fmt.Errorf("output size %d exceeds maximum %d", len(output), g.maxOutputSize)
	}
	for _, filter := range g.outputFilters {
		if filter.MatchString(output) {
			return fmt.Errorf("output matches blocked pattern")
		}
	}
	return nil
}

// ValidateJSONOutput validates JSON output against a schema if provided.
func (g *Guardrails) ValidateJSONOutput(data json.RawMessage, schema []byte) error {
	return g.jsonValidator.Validate(data, schema)
}

// SanitizeOutput masks sensitive information in output.
func (g *Guardrails) SanitizeOutput(output string) string {
	sanitized := output
	for _, filter := range g.outputFilters {
		sanitized = filter.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}

// JSONValidator handles JSON schema validation.
type JSONValidator struct{}

// NewJSONValidator creates a new JSON validator.
func NewJSONValidator() *JSONValidator {
	return &JSONValidator{}
}

// Validate checks if JSON data conforms to a schema.
func (v *JSONValidator) Validate(data json.RawMessage, schema []byte) error {
	if len(schema) == 0 {
		return nil // no schema to validate against
	}

	if !json.Valid(data) {
		return fmt.Errorf("data is not valid JSON")
	}

	schemaLoader := gojsonschema.NewBytesLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
