package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// OutputParser handles extracting structured data from model responses.
type OutputParser struct {
	jsonPattern  *regexp.Regexp
	fencePattern *regexp.Regexp
}

// NewOutputParser creates a parser for JSON-bearing model output.
func NewOutputParser() *OutputParser {
	return &OutputParser{
		jsonPattern:  regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`),
		fencePattern: regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```"),
	}
}

// ParseJSONOutput extracts the JSON object or array embedded in text.
// Models wrap JSON in prose or markdown fences more often than not.
func (p *OutputParser) ParseJSONOutput(text string) (json.RawMessage, error) {
	if m := p.fencePattern.FindStringSubmatch(text); len(m) == 2 {
		text = m[1]
	}

	match := p.jsonPattern.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	cleaned := p.fixJSON(match)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("invalid JSON in response")
	}

	return json.RawMessage(cleaned), nil
}

// fixJSON attempts to fix common JSON formatting issues.
func (p *OutputParser) fixJSON(jsonStr string) string {
	if json.Valid([]byte(jsonStr)) {
		return jsonStr
	}

	// Remove trailing commas before closing braces/brackets
	jsonStr = regexp.MustCompile(`,\s*([}\]])`).ReplaceAllString(jsonStr, "$1")

	// Fix unquoted keys (basic heuristic)
	jsonStr = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`).ReplaceAllString(jsonStr, `$1"$2":`)

	// Fix single quotes to double quotes
	jsonStr = strings.ReplaceAll(jsonStr, "'", "\"")

	return jsonStr
}
