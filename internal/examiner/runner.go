package examiner

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/essaymark/essaymark-go-api/internal/observability"
	"github.com/essaymark/essaymark-go-api/pkg/ai"
)

const fallbackStrength = "Attempted a relevant response"

// RunnerConfig tunes the per-examiner completion call.
type RunnerConfig struct {
	Timeout       time.Duration
	Temperature   float32
	MaxTokens     int
	FallbackRatio float64
}

// Result is the outcome of one examiner run. Score is always within [0, MaxScore];
// a run that could not produce a usable verdict carries Succeeded=false and a
// placeholder score instead of an error.
type Result struct {
	ExaminerID    string
	Name          string
	Objective     string
	DisplayColor  string
	Score         float64
	MaxScore      int
	Feedback      string
	Strengths     []string
	Succeeded     bool
	FailureReason string
}

// Runner executes a single examiner evaluation against the language model.
type Runner struct {
	completer ai.Completer
	cfg       RunnerConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewRunner constructs a runner around the supplied completer.
func NewRunner(completer ai.Completer, cfg RunnerConfig, logger zerolog.Logger) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 700
	}
	if cfg.FallbackRatio <= 0 || cfg.FallbackRatio > 1 {
		cfg.FallbackRatio = 0.5
	}

	return &Runner{
		completer: completer,
		cfg:       cfg,
		logger:    logger.With().Str("component", "examiner_runner").Logger(),
		tracer:    otel.Tracer("github.com/essaymark/essaymark-go-api/internal/examiner"),
	}
}

// Run performs one examiner evaluation. It never returns an error: timeouts,
// transport failures and unparseable responses all resolve to a fallback result.
func (r *Runner) Run(parent context.Context, cfg Config, systemPrompt, question, essay string, hasDiagram bool) Result {
	ctx, span := r.tracer.Start(parent, "examiner.run", trace.WithAttributes(
		attribute.String("examiner_id", cfg.ID),
		attribute.String("objective", cfg.Objective),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	raw, err := r.completer.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   BuildUserPrompt(question, essay, hasDiagram),
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
		ForceJSON:    true,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("examiner_id", cfg.ID).Msg("examiner completion failed")
		observability.ExaminerFailures().WithLabelValues(cfg.ID, "completion").Inc()
		return r.fallbackResult(cfg, "The automated examiner was unavailable for this strand.", err.Error())
	}

	parsed := ParseOutput(raw)
	if !parsed.Structured {
		r.logger.Warn().Str("examiner_id", cfg.ID).Msg("examiner response was not valid JSON")
		observability.ExaminerFailures().WithLabelValues(cfg.ID, "parse").Inc()
		feedback := parsed.RawPrefix
		if feedback == "" {
			feedback = "The automated examiner returned an empty response."
		}
		return r.fallbackResult(cfg, feedback, "unparseable response")
	}

	feedback := parsed.Feedback
	if feedback == "" {
		feedback = "No detailed feedback was provided for this strand."
	}

	strengths := parsed.Strengths
	if strengths == nil {
		strengths = []string{}
	}

	return Result{
		ExaminerID:   cfg.ID,
		Name:         cfg.Name,
		Objective:    cfg.Objective,
		DisplayColor: cfg.DisplayColor,
		Score:        clampScore(parsed.Score, cfg.MaxScore),
		MaxScore:     cfg.MaxScore,
		Feedback:     feedback,
		Strengths:    strengths,
		Succeeded:    true,
	}
}

func (r *Runner) fallbackResult(cfg Config, feedback, reason string) Result {
	return Result{
		ExaminerID:    cfg.ID,
		Name:          cfg.Name,
		Objective:     cfg.Objective,
		DisplayColor:  cfg.DisplayColor,
		Score:         r.FallbackScore(cfg.MaxScore),
		MaxScore:      cfg.MaxScore,
		Feedback:      feedback,
		Strengths:     []string{fallbackStrength},
		Succeeded:     false,
		FailureReason: reason,
	}
}

// FallbackScore is the placeholder awarded when an examiner cannot produce a verdict:
// a fixed ratio of the maximum, rounded down, so one degraded examiner pulls the
// aggregate toward the midpoint instead of zero.
func (r *Runner) FallbackScore(maxScore int) float64 {
	return math.Floor(float64(maxScore) * r.cfg.FallbackRatio)
}

func clampScore(score float64, maxScore int) float64 {
	if score < 0 {
		return 0
	}
	if score > float64(maxScore) {
		return float64(maxScore)
	}
	return score
}
