package examiner

import (
	"fmt"
	"strings"
)

// BuildPrompt resolves an examiner's template against the mark-scheme parameters.
// Pure; callers validate the question type before reaching this point.
func BuildPrompt(cfg Config, params PromptParams) string {
	return cfg.Prompt(params)
}

func buildSystemPrompt(subject, name, objective, focus string, maxScore int, params PromptParams) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("You are a senior %s examiner marking the %s (%s) strand of a %s %s question", subject, name, objective, params.Unit, params.QuestionType))
	if params.HasDiagram {
		builder.WriteString(". The student states their answer includes a diagram; credit diagram-based reasoning described in the text")
	}
	builder.WriteString(".\n\n")
	builder.WriteString(fmt.Sprintf("Assess only %s. Award an integer score between 0 and %d.\n", focus, maxScore))
	builder.WriteString("Respond with a single JSON object: ")
	builder.WriteString(fmt.Sprintf(`{"score": <0-%d>, "feedback": "<two or three sentences>", "strengths": ["<short point>", ...]}`, maxScore))
	builder.WriteString("\nDo not wrap the JSON in markdown fences or add commentary outside it.")
	return builder.String()
}

// BuildUserPrompt assembles the question/essay payload sent alongside the system prompt.
func BuildUserPrompt(question, essay string, hasDiagram bool) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(question)
	builder.WriteString("\n\n# Student Essay\n")
	builder.WriteString(essay)
	if hasDiagram {
		builder.WriteString("\n\n(The student indicates the essay is accompanied by a diagram.)")
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
