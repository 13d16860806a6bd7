package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/essaymark/essaymark-go-api/internal/dto"
	"github.com/essaymark/essaymark-go-api/internal/examiner"
	"github.com/essaymark/essaymark-go-api/internal/models"
	"github.com/essaymark/essaymark-go-api/internal/observability"
	"github.com/essaymark/essaymark-go-api/internal/progress"
	"github.com/essaymark/essaymark-go-api/internal/ratelimit"
	"github.com/essaymark/essaymark-go-api/internal/repository"
)

// ErrCompleterUnavailable indicates no language model capability is configured.
var ErrCompleterUnavailable = errors.New("language model unavailable")

// ErrSubjectForbidden indicates the user may not grade essays in the requested subject.
var ErrSubjectForbidden = errors.New("subject not permitted")

// ErrGradingNotFound indicates the grading record cannot be located.
var ErrGradingNotFound = errors.New("grading not found")

// ErrContentEmpty indicates the question or essay was empty after sanitization.
var ErrContentEmpty = errors.New("content empty after sanitization")

// RateLimitError carries the denial decision so callers can surface retry timing.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded"
}

// UserContext is the pre-validated caller identity injected by the auth layer.
type UserContext struct {
	ID              string
	Tier            ratelimit.Tier
	AllowedSubjects []string
}

// GradingService orchestrates multi-examiner grading runs.
type GradingService interface {
	Grade(ctx context.Context, user UserContext, payload dto.GradeRequest) (dto.GradingResponse, error)
	Get(ctx context.Context, user UserContext, id string) (dto.GradingResponse, error)
	List(ctx context.Context, user UserContext, limit, offset int) (dto.GradingListResponse, error)
}

type gradingService struct {
	registry    *examiner.Registry
	runner      *examiner.Runner
	summarizer  *SummaryGenerator
	limiter     ratelimit.Limiter
	broadcaster progress.Broadcaster
	repo        repository.GradingRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	bands       []GradeBand
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewGradingService constructs the grading orchestrator. A nil runner or summarizer
// marks the language model capability as unconfigured; Grade fails fast with
// ErrCompleterUnavailable before any examiner call is made.
func NewGradingService(
	registry *examiner.Registry,
	runner *examiner.Runner,
	summarizer *SummaryGenerator,
	limiter ratelimit.Limiter,
	broadcaster progress.Broadcaster,
	repo repository.GradingRepository,
	validate *validator.Validate,
	bands []GradeBand,
	logger zerolog.Logger,
) GradingService {
	if broadcaster == nil {
		broadcaster = progress.Nop{}
	}
	if len(bands) == 0 {
		bands = DefaultGradeBands()
	}

	return &gradingService{
		registry:    registry,
		runner:      runner,
		summarizer:  summarizer,
		limiter:     limiter,
		broadcaster: broadcaster,
		repo:        repo,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		bands:       bands,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/essaymark/essaymark-go-api/internal/service/grading"),
	}
}

func (s *gradingService) Grade(parent context.Context, user UserContext, payload dto.GradeRequest) (dto.GradingResponse, error) {
	ctx, span := s.tracer.Start(parent, "grading.grade", trace.WithAttributes(
		attribute.String("subject", payload.Subject),
	))
	defer span.End()

	start := time.Now()

	if err := s.validator.Struct(payload); err != nil {
		observability.GradingRequests().WithLabelValues(payload.Subject, "rejected").Inc()
		return dto.GradingResponse{}, err
	}

	if !s.subjectAllowed(user, payload.Subject) {
		observability.GradingRequests().WithLabelValues(payload.Subject, "rejected").Inc()
		return dto.GradingResponse{}, ErrSubjectForbidden
	}

	question := strings.TrimSpace(s.sanitizer.Sanitize(payload.Question))
	essay := strings.TrimSpace(s.sanitizer.Sanitize(payload.Essay))
	if question == "" || essay == "" {
		observability.GradingRequests().WithLabelValues(payload.Subject, "rejected").Inc()
		return dto.GradingResponse{}, ErrContentEmpty
	}

	questionType := payload.QuestionType
	if questionType == "" {
		questionType = s.registry.DefaultQuestionType(payload.Subject)
	}
	unit := payload.Unit
	if unit == "" {
		unit = s.registry.DefaultUnit(payload.Subject)
	}

	panel, err := s.registry.Panel(payload.Subject, questionType)
	if err != nil {
		observability.GradingRequests().WithLabelValues(payload.Subject, "rejected").Inc()
		return dto.GradingResponse{}, err
	}

	if s.runner == nil {
		observability.GradingRequests().WithLabelValues(payload.Subject, "unavailable").Inc()
		return dto.GradingResponse{}, ErrCompleterUnavailable
	}

	decision, err := s.limiter.Check(ctx, user.ID, user.Tier)
	if err != nil {
		return dto.GradingResponse{}, fmt.Errorf("admission check: %w", err)
	}
	if !decision.Allowed {
		observability.GradingRequests().WithLabelValues(payload.Subject, "rate_limited").Inc()
		observability.RateLimitRejections().WithLabelValues(string(user.Tier)).Inc()
		return dto.GradingResponse{}, &RateLimitError{Decision: decision}
	}

	gradingID := uuid.NewString()
	params := examiner.PromptParams{Unit: unit, QuestionType: questionType, HasDiagram: payload.HasDiagram}

	s.broadcaster.Publish(ctx, progress.Event{
		Kind:      progress.KindStarted,
		GradingID: gradingID,
		UserID:    user.ID,
		Subject:   payload.Subject,
		Detail:    fmt.Sprintf("%d examiners assigned", len(panel)),
	})

	results := s.runPanel(ctx, gradingID, user, panel, params, question, essay, payload.HasDiagram)

	if ctx.Err() != nil {
		s.broadcaster.Publish(context.WithoutCancel(ctx), progress.Event{
			Kind:      progress.KindFailed,
			GradingID: gradingID,
			UserID:    user.ID,
			Subject:   payload.Subject,
			Detail:    "request cancelled",
		})
		observability.GradingRequests().WithLabelValues(payload.Subject, "cancelled").Inc()
		return dto.GradingResponse{}, ctx.Err()
	}

	overall, grade := Aggregate(results, s.bands)

	var summary string
	var improvements []string
	if s.summarizer != nil {
		summary, improvements = s.summarizer.Summarize(ctx, results, question)
	}
	if improvements == nil {
		improvements = []string{}
	}

	response := dto.GradingResponse{
		ID:           gradingID,
		Subject:      payload.Subject,
		Unit:         unit,
		QuestionType: questionType,
		OverallScore: overall,
		Grade:        grade,
		Examiners:    toExaminerResponses(results),
		Summary:      summary,
		Improvements: improvements,
		CreatedAt:    time.Now().UTC(),
	}

	s.broadcaster.Publish(ctx, progress.Event{
		Kind:      progress.KindCompleted,
		GradingID: gradingID,
		UserID:    user.ID,
		Subject:   payload.Subject,
		Percent:   100,
		Result:    response,
	})

	s.persist(ctx, gradingID, user, payload, unit, questionType, results, response)

	observability.GradingRequests().WithLabelValues(payload.Subject, "completed").Inc()
	observability.GradingDuration().WithLabelValues(payload.Subject).Observe(time.Since(start).Seconds())

	return response, nil
}

// runPanel fans out one goroutine per examiner and joins them all. Results land in
// panel order regardless of completion order; progress events are emitted in
// completion order with a running percentage. The publish happens inside the
// counter's critical section so subscribers never observe the percentage regress.
func (s *gradingService) runPanel(ctx context.Context, gradingID string, user UserContext, panel []examiner.Config, params examiner.PromptParams, question, essay string, hasDiagram bool) []examiner.Result {
	results := make([]examiner.Result, len(panel))
	total := len(panel)

	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	for i, cfg := range panel {
		wg.Add(1)
		go func(index int, cfg examiner.Config) {
			defer wg.Done()

			systemPrompt := examiner.BuildPrompt(cfg, params)
			result := s.runner.Run(ctx, cfg, systemPrompt, question, essay, hasDiagram)
			results[index] = result

			mu.Lock()
			completed++
			done := completed
			s.broadcaster.Publish(ctx, progress.Event{
				Kind:         progress.KindProgress,
				GradingID:    gradingID,
				UserID:       user.ID,
				ExaminerID:   result.ExaminerID,
				ExaminerName: result.Name,
				Percent:      int(math.Round(float64(done) / float64(total) * 100)),
				Result:       toExaminerResponse(result),
			})
			mu.Unlock()
		}(i, cfg)
	}

	wg.Wait()
	return results
}

func (s *gradingService) Get(ctx context.Context, user UserContext, id string) (dto.GradingResponse, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradingResponse{}, ErrGradingNotFound
		}
		return dto.GradingResponse{}, err
	}

	if record.UserID != user.ID {
		return dto.GradingResponse{}, ErrGradingNotFound
	}

	return dto.NewGradingResponse(record), nil
}

func (s *gradingService) List(ctx context.Context, user UserContext, limit, offset int) (dto.GradingListResponse, error) {
	records, total, err := s.repo.ListByUser(ctx, user.ID, limit, offset)
	if err != nil {
		return dto.GradingListResponse{}, err
	}

	items := make([]dto.GradingResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewGradingResponse(record))
	}

	return dto.GradingListResponse{Items: items, Total: total}, nil
}

// persist stores the grading outcome. Persistence failure is soft: the result has
// already been returned to the caller's control flow, so it is only logged.
func (s *gradingService) persist(ctx context.Context, gradingID string, user UserContext, payload dto.GradeRequest, unit, questionType string, results []examiner.Result, response dto.GradingResponse) {
	if s.repo == nil {
		return
	}

	record := models.GradingRecord{
		ID:           gradingID,
		UserID:       user.ID,
		Subject:      payload.Subject,
		Unit:         unit,
		QuestionType: questionType,
		Question:     payload.Question,
		HasDiagram:   payload.HasDiagram,
		OverallScore: response.OverallScore,
		Grade:        response.Grade,
		Summary:      response.Summary,
		Improvements: encodeStringList(response.Improvements),
	}

	for i, result := range results {
		record.Results = append(record.Results, models.ExaminerResultRecord{
			GradingID:     gradingID,
			Position:      i,
			ExaminerID:    result.ExaminerID,
			Name:          result.Name,
			Objective:     result.Objective,
			DisplayColor:  result.DisplayColor,
			Score:         result.Score,
			MaxScore:      result.MaxScore,
			Feedback:      result.Feedback,
			Strengths:     encodeStringList(result.Strengths),
			Succeeded:     result.Succeeded,
			FailureReason: result.FailureReason,
		})
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		s.logger.Error().Err(err).Str("grading_id", gradingID).Msg("failed to persist grading record")
	}
}

func (s *gradingService) subjectAllowed(user UserContext, subject string) bool {
	if len(user.AllowedSubjects) == 0 {
		return true
	}
	for _, allowed := range user.AllowedSubjects {
		if strings.EqualFold(allowed, subject) {
			return true
		}
	}
	return false
}

func toExaminerResponses(results []examiner.Result) []dto.ExaminerResultResponse {
	responses := make([]dto.ExaminerResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, toExaminerResponse(result))
	}
	return responses
}

func toExaminerResponse(result examiner.Result) dto.ExaminerResultResponse {
	strengths := result.Strengths
	if strengths == nil {
		strengths = []string{}
	}
	return dto.ExaminerResultResponse{
		ExaminerID:    result.ExaminerID,
		Name:          result.Name,
		Objective:     result.Objective,
		DisplayColor:  result.DisplayColor,
		Score:         result.Score,
		MaxScore:      result.MaxScore,
		Feedback:      result.Feedback,
		Strengths:     strengths,
		Succeeded:     result.Succeeded,
		FailureReason: result.FailureReason,
	}
}

func encodeStringList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}
