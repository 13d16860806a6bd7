package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/essaymark/essaymark-go-api/internal/examiner"
	"github.com/essaymark/essaymark-go-api/pkg/ai"
)

const (
	maxImprovements    = 3
	questionExcerptLen = 200
)

// SummaryConfig tunes the second-stage synthesis call.
type SummaryConfig struct {
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// SummaryGenerator synthesizes a natural-language summary from the per-examiner
// score breakdown. The full essay is never sent; only scores, objectives and a
// short question excerpt, to bound token usage.
type SummaryGenerator struct {
	completer ai.Completer
	cfg       SummaryConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewSummaryGenerator constructs a summary generator around the supplied completer.
func NewSummaryGenerator(completer ai.Completer, cfg SummaryConfig, logger zerolog.Logger) *SummaryGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}

	return &SummaryGenerator{
		completer: completer,
		cfg:       cfg,
		logger:    logger.With().Str("component", "summary_generator").Logger(),
		tracer:    otel.Tracer("github.com/essaymark/essaymark-go-api/internal/service/summary"),
	}
}

// Summarize produces the overall summary and up to three improvement points.
// Failure here is soft: the zero values are returned and the grading result stands.
func (g *SummaryGenerator) Summarize(parent context.Context, results []examiner.Result, question string) (string, []string) {
	ctx, span := g.tracer.Start(parent, "summary.generate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	raw, err := g.completer.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: summarySystemPrompt(),
		UserPrompt:   g.buildBreakdown(results, question),
		Temperature:  g.cfg.Temperature,
		MaxTokens:    g.cfg.MaxTokens,
		ForceJSON:    true,
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("summary generation failed")
		return "", nil
	}

	candidate, ok := examiner.ExtractJSONObject(raw)
	if !ok {
		g.logger.Warn().Msg("summary response contained no JSON object")
		return "", nil
	}

	var payload struct {
		Summary      string   `json:"summary"`
		Improvements []string `json:"improvements"`
	}
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		g.logger.Warn().Err(err).Msg("summary response was not valid JSON")
		return "", nil
	}

	improvements := payload.Improvements
	if len(improvements) > maxImprovements {
		improvements = improvements[:maxImprovements]
	}

	return strings.TrimSpace(payload.Summary), improvements
}

func summarySystemPrompt() string {
	return "You are a senior examiner writing a moderation summary from per-strand marks. " +
		`Respond with a single JSON object: {"summary": "<three or four sentences addressed to the student>", "improvements": ["<short actionable point>", ...]}. ` +
		"List at most three improvements. No commentary outside the JSON object."
}

func (g *SummaryGenerator) buildBreakdown(results []examiner.Result, question string) string {
	builder := strings.Builder{}
	builder.WriteString("# Question (excerpt)\n")
	excerpt := strings.TrimSpace(question)
	if len(excerpt) > questionExcerptLen {
		cut := questionExcerptLen
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}
	builder.WriteString(excerpt)
	builder.WriteString("\n\n# Marks by assessment objective\n")
	for _, result := range results {
		builder.WriteString(fmt.Sprintf("- %s %s: %.0f/%d", result.Objective, result.Name, result.Score, result.MaxScore))
		if !result.Succeeded {
			builder.WriteString(" (examiner unavailable, placeholder mark)")
		} else if result.Feedback != "" {
			builder.WriteString(" — " + result.Feedback)
		}
		builder.WriteString("\n")
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
