package examiner

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const fallbackPrefixLen = 280

// outputSchema validates the shape an examiner is instructed to return. A numeric
// score is the only hard requirement; feedback and strengths degrade to defaults.
var outputSchema = jsonschema.MustCompileString("examiner_output.json", `{
	"type": "object",
	"required": ["score"],
	"properties": {
		"score": {"type": "number"},
		"feedback": {"type": "string"},
		"strengths": {"type": "array", "items": {"type": "string"}}
	}
}`)

// ParsedOutput is the tagged result of interpreting a raw model response: either a
// structured score payload or a fallback carrying a prefix of the raw text.
type ParsedOutput struct {
	Structured bool
	Score      float64
	Feedback   string
	Strengths  []string
	RawPrefix  string
}

// ParseOutput locates the first balanced JSON object in the raw response and decodes
// it. Model output is not guaranteed to be well-formed JSON, so any extraction or
// validation failure resolves to the fallback variant rather than an error.
func ParseOutput(raw string) ParsedOutput {
	candidate, ok := ExtractJSONObject(raw)
	if !ok {
		return fallbackOutput(raw)
	}

	var generic interface{}
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		return fallbackOutput(raw)
	}
	if err := outputSchema.Validate(generic); err != nil {
		return fallbackOutput(raw)
	}

	var payload struct {
		Score     float64  `json:"score"`
		Feedback  string   `json:"feedback"`
		Strengths []string `json:"strengths"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return fallbackOutput(raw)
	}

	return ParsedOutput{
		Structured: true,
		Score:      payload.Score,
		Feedback:   strings.TrimSpace(payload.Feedback),
		Strengths:  payload.Strengths,
	}
}

// ExtractJSONObject returns the first balanced top-level JSON object substring,
// honouring string literals and escape sequences.
func ExtractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	return "", false
}

func fallbackOutput(raw string) ParsedOutput {
	return ParsedOutput{RawPrefix: truncate(strings.TrimSpace(raw), fallbackPrefixLen)}
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
