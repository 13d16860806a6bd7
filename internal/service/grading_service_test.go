package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/essaymark/essaymark-go-api/internal/dto"
	"github.com/essaymark/essaymark-go-api/internal/examiner"
	"github.com/essaymark/essaymark-go-api/internal/models"
	"github.com/essaymark/essaymark-go-api/internal/progress"
	"github.com/essaymark/essaymark-go-api/internal/ratelimit"
	"github.com/essaymark/essaymark-go-api/pkg/ai"
)

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	checks   int
}

func (s *stubLimiter) Check(_ context.Context, identity string, tier ratelimit.Tier) (ratelimit.Decision, error) {
	s.checks++
	if s.err != nil {
		return ratelimit.Decision{}, s.err
	}
	return s.decision, nil
}

type stubGradingRepo struct {
	mu      sync.Mutex
	created *models.GradingRecord
	stored  models.GradingRecord
	err     error
}

func (s *stubGradingRepo) Create(_ context.Context, record *models.GradingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	clone := *record
	s.created = &clone
	return nil
}

func (s *stubGradingRepo) GetByID(_ context.Context, id string) (models.GradingRecord, error) {
	if s.stored.ID == "" || s.stored.ID != id {
		return models.GradingRecord{}, gorm.ErrRecordNotFound
	}
	return s.stored, nil
}

func (s *stubGradingRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.GradingRecord, int64, error) {
	if s.stored.ID == "" || s.stored.UserID != userID {
		return nil, 0, nil
	}
	return []models.GradingRecord{s.stored}, 1, nil
}

type collectingBroadcaster struct {
	mu     sync.Mutex
	events []progress.Event
}

func (b *collectingBroadcaster) Publish(_ context.Context, event progress.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *collectingBroadcaster) snapshot() []progress.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]progress.Event(nil), b.events...)
}

// strandCompleter answers examiner calls with per-strand scripted responses and the
// summary call with a fixed moderation payload.
type strandCompleter struct {
	mu        sync.Mutex
	calls     int
	responses map[string]string
	errs      map[string]error
	summary   string
}

func (s *strandCompleter) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if strings.Contains(req.SystemPrompt, "moderation summary") {
		if s.summary == "" {
			return "", errors.New("summary unavailable")
		}
		return s.summary, nil
	}

	for strand, err := range s.errs {
		if strings.Contains(req.SystemPrompt, strand) {
			return "", err
		}
	}
	for strand, response := range s.responses {
		if strings.Contains(req.SystemPrompt, strand) {
			return response, nil
		}
	}
	return "", errors.New("no scripted response")
}

func allowAll() *stubLimiter {
	return &stubLimiter{decision: ratelimit.Decision{Allowed: true, Remaining: 4, ResetAt: time.Now().Add(time.Minute)}}
}

func testUser() UserContext {
	return UserContext{ID: "user-1", Tier: ratelimit.TierFree}
}

func geographyRequest() dto.GradeRequest {
	return dto.GradeRequest{
		Question:     "Assess the role of hard engineering in coastal management.",
		Essay:        "Hard engineering strategies such as sea walls and groynes...",
		Subject:      "geography",
		QuestionType: "20-mark",
	}
}

func newTestService(completer ai.Completer, limiter ratelimit.Limiter, repo *stubGradingRepo, broadcaster progress.Broadcaster) GradingService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.Nop()

	var runner *examiner.Runner
	var summarizer *SummaryGenerator
	if completer != nil {
		runner = examiner.NewRunner(completer, examiner.RunnerConfig{Timeout: time.Second}, logger)
		summarizer = NewSummaryGenerator(completer, SummaryConfig{Timeout: time.Second}, logger)
	}

	return NewGradingService(examiner.NewRegistry(), runner, summarizer, limiter, broadcaster, repo, validate, DefaultGradeBands(), logger)
}

func TestGradeAggregatesAllExaminers(t *testing.T) {
	completer := &strandCompleter{
		responses: map[string]string{
			"Knowledge & Understanding": `{"score": 3, "feedback": "Accurate terminology.", "strengths": ["key terms"]}`,
			"Application":               `{"score": 4, "feedback": "Well applied."}`,
			"Analysis":                  `{"score": 2, "feedback": "Chains are short."}`,
			"Evaluation":                `{"score": 3, "feedback": "Some judgement."}`,
		},
		summary: `{"summary": "A competent coastal management answer.", "improvements": ["Extend analysis chains"]}`,
	}
	repo := &stubGradingRepo{}
	broadcaster := &collectingBroadcaster{}

	svc := newTestService(completer, allowAll(), repo, broadcaster)
	response, err := svc.Grade(context.Background(), testUser(), geographyRequest())
	require.NoError(t, err)

	require.Equal(t, 6.0, response.OverallScore)
	require.Equal(t, "C", response.Grade)
	require.Equal(t, "A competent coastal management answer.", response.Summary)
	require.Equal(t, []string{"Extend analysis chains"}, response.Improvements)
	require.Equal(t, "physical", response.Unit)
	require.Equal(t, "20-mark", response.QuestionType)

	require.Len(t, response.Examiners, 4)
	objectives := make([]string, 0, 4)
	for _, result := range response.Examiners {
		objectives = append(objectives, result.Objective)
		require.True(t, result.Succeeded)
	}
	require.Equal(t, []string{"AO1", "AO2", "AO3", "AO4"}, objectives)
}

func TestGradeKeepsFailedExaminerInPanelOrder(t *testing.T) {
	completer := &strandCompleter{
		responses: map[string]string{
			"Knowledge & Understanding": `{"score": 3}`,
			"Application":               `{"score": 4}`,
			"Analysis":                  `{"score": 2}`,
		},
		errs: map[string]error{
			"Evaluation": errors.New("deadline exceeded"),
		},
		summary: `{"summary": "ok"}`,
	}
	repo := &stubGradingRepo{}

	svc := newTestService(completer, allowAll(), repo, &collectingBroadcaster{})
	response, err := svc.Grade(context.Background(), testUser(), geographyRequest())
	require.NoError(t, err)

	require.Len(t, response.Examiners, 4)
	failed := response.Examiners[3]
	require.Equal(t, "AO4", failed.Objective)
	require.False(t, failed.Succeeded)
	require.Equal(t, 2.0, failed.Score)
	require.Equal(t, "deadline exceeded", failed.FailureReason)

	// 3+4+2 plus the placeholder 2 out of 20.
	require.Equal(t, 5.5, response.OverallScore)
}

func TestGradeEmitsLifecycleEvents(t *testing.T) {
	completer := &strandCompleter{
		responses: map[string]string{
			"Knowledge & Understanding": `{"score": 3}`,
			"Application":               `{"score": 4}`,
			"Analysis":                  `{"score": 2}`,
			"Evaluation":                `{"score": 3}`,
		},
		summary: `{"summary": "ok"}`,
	}
	broadcaster := &collectingBroadcaster{}

	svc := newTestService(completer, allowAll(), &stubGradingRepo{}, broadcaster)
	response, err := svc.Grade(context.Background(), testUser(), geographyRequest())
	require.NoError(t, err)

	events := broadcaster.snapshot()
	require.Len(t, events, 6)
	require.Equal(t, progress.KindStarted, events[0].Kind)
	require.Equal(t, progress.KindCompleted, events[len(events)-1].Kind)
	require.Equal(t, 100, events[len(events)-1].Percent)
	require.Equal(t, response.ID, events[0].GradingID)

	percents := map[int]bool{}
	for _, event := range events[1:5] {
		require.Equal(t, progress.KindProgress, event.Kind)
		require.NotEmpty(t, event.ExaminerID)
		percents[event.Percent] = true
	}
	require.Equal(t, map[int]bool{25: true, 50: true, 75: true, 100: true}, percents)
}

// slowFirstBroadcaster stalls delivery of the first progress event so later
// completions would overtake it if emissions were not serialized.
type slowFirstBroadcaster struct {
	mu      sync.Mutex
	stalled bool
	events  []progress.Event
}

func (b *slowFirstBroadcaster) Publish(_ context.Context, event progress.Event) {
	if event.Kind == progress.KindProgress {
		b.mu.Lock()
		first := !b.stalled
		b.stalled = true
		b.mu.Unlock()
		if first {
			time.Sleep(50 * time.Millisecond)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *slowFirstBroadcaster) progressPercents() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	percents := make([]int, 0, len(b.events))
	for _, event := range b.events {
		if event.Kind == progress.KindProgress {
			percents = append(percents, event.Percent)
		}
	}
	return percents
}

func TestGradeEmitsProgressInCompletionOrder(t *testing.T) {
	completer := &strandCompleter{
		responses: map[string]string{
			"Knowledge & Understanding": `{"score": 3}`,
			"Application":               `{"score": 4}`,
			"Analysis":                  `{"score": 2}`,
			"Evaluation":                `{"score": 3}`,
		},
		summary: `{"summary": "ok"}`,
	}
	broadcaster := &slowFirstBroadcaster{}

	svc := newTestService(completer, allowAll(), &stubGradingRepo{}, broadcaster)
	_, err := svc.Grade(context.Background(), testUser(), geographyRequest())
	require.NoError(t, err)

	require.Equal(t, []int{25, 50, 75, 100}, broadcaster.progressPercents())
}

func TestGradePersistsRecordWithPanelOrder(t *testing.T) {
	completer := &strandCompleter{
		responses: map[string]string{
			"Knowledge & Understanding": `{"score": 3}`,
			"Application":               `{"score": 4}`,
			"Analysis":                  `{"score": 2}`,
			"Evaluation":                `{"score": 3}`,
		},
		summary: `{"summary": "ok"}`,
	}
	repo := &stubGradingRepo{}

	svc := newTestService(completer, allowAll(), repo, &collectingBroadcaster{})
	response, err := svc.Grade(context.Background(), testUser(), geographyRequest())
	require.NoError(t, err)

	require.NotNil(t, repo.created)
	require.Equal(t, response.ID, repo.created.ID)
	require.Equal(t, "user-1", repo.created.UserID)
	require.Len(t, repo.created.Results, 4)
	for i, result := range repo.created.Results {
		require.Equal(t, i, result.Position)
	}
}

func TestGradeSummaryFailureIsSoft(t *testing.T) {
	completer := &strandCompleter{
		responses: map[string]string{
			"Knowledge & Understanding": `{"score": 3}`,
			"Application":               `{"score": 4}`,
			"Analysis":                  `{"score": 2}`,
			"Evaluation":                `{"score": 3}`,
		},
	}

	svc := newTestService(completer, allowAll(), &stubGradingRepo{}, &collectingBroadcaster{})
	response, err := svc.Grade(context.Background(), testUser(), geographyRequest())
	require.NoError(t, err)
	require.Empty(t, response.Summary)
	require.Empty(t, response.Improvements)
	require.Equal(t, 6.0, response.OverallScore)
}

func TestGradeRateLimitDeniesBeforeAnyExaminerCall(t *testing.T) {
	completer := &strandCompleter{}
	resetAt := time.Now().Add(30 * time.Second)
	limiter := &stubLimiter{decision: ratelimit.Decision{Allowed: false, ResetAt: resetAt}}
	broadcaster := &collectingBroadcaster{}

	svc := newTestService(completer, limiter, &stubGradingRepo{}, broadcaster)
	_, err := svc.Grade(context.Background(), testUser(), geographyRequest())

	var rateLimited *RateLimitError
	require.True(t, errors.As(err, &rateLimited))
	require.Equal(t, resetAt, rateLimited.Decision.ResetAt)
	require.Zero(t, completer.calls)
	require.Empty(t, broadcaster.snapshot())
}

func TestGradeRequiresConfiguredCompleter(t *testing.T) {
	svc := newTestService(nil, allowAll(), &stubGradingRepo{}, &collectingBroadcaster{})
	_, err := svc.Grade(context.Background(), testUser(), geographyRequest())
	require.True(t, errors.Is(err, ErrCompleterUnavailable))
}

func TestGradeEnforcesSubjectAccess(t *testing.T) {
	completer := &strandCompleter{}
	svc := newTestService(completer, allowAll(), &stubGradingRepo{}, &collectingBroadcaster{})

	user := testUser()
	user.AllowedSubjects = []string{"economics"}

	_, err := svc.Grade(context.Background(), user, geographyRequest())
	require.True(t, errors.Is(err, ErrSubjectForbidden))
	require.Zero(t, completer.calls)
}

func TestGradeRejectsUnknownQuestionType(t *testing.T) {
	completer := &strandCompleter{}
	svc := newTestService(completer, allowAll(), &stubGradingRepo{}, &collectingBroadcaster{})

	payload := geographyRequest()
	payload.QuestionType = "40-mark"

	_, err := svc.Grade(context.Background(), testUser(), payload)
	require.True(t, errors.Is(err, examiner.ErrUnknownQuestionType))
}

func TestGradeRejectsMarkupOnlyContent(t *testing.T) {
	completer := &strandCompleter{}
	svc := newTestService(completer, allowAll(), &stubGradingRepo{}, &collectingBroadcaster{})

	payload := geographyRequest()
	payload.Question = "<b></b>"

	_, err := svc.Grade(context.Background(), testUser(), payload)
	require.True(t, errors.Is(err, ErrContentEmpty))
}

func TestGradeValidatesPayload(t *testing.T) {
	svc := newTestService(&strandCompleter{}, allowAll(), &stubGradingRepo{}, &collectingBroadcaster{})

	payload := geographyRequest()
	payload.Essay = ""

	_, err := svc.Grade(context.Background(), testUser(), payload)
	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
}

func TestGetReturnsOwnRecordOnly(t *testing.T) {
	repo := &stubGradingRepo{stored: models.GradingRecord{ID: "grading-1", UserID: "user-1", Grade: "B"}}
	svc := newTestService(&strandCompleter{}, allowAll(), repo, &collectingBroadcaster{})

	response, err := svc.Get(context.Background(), testUser(), "grading-1")
	require.NoError(t, err)
	require.Equal(t, "B", response.Grade)

	other := UserContext{ID: "user-2", Tier: ratelimit.TierFree}
	_, err = svc.Get(context.Background(), other, "grading-1")
	require.True(t, errors.Is(err, ErrGradingNotFound))

	_, err = svc.Get(context.Background(), testUser(), "missing")
	require.True(t, errors.Is(err, ErrGradingNotFound))
}

func TestListReturnsUserHistory(t *testing.T) {
	repo := &stubGradingRepo{stored: models.GradingRecord{ID: "grading-1", UserID: "user-1"}}
	svc := newTestService(&strandCompleter{}, allowAll(), repo, &collectingBroadcaster{})

	response, err := svc.List(context.Background(), testUser(), 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), response.Total)
	require.Len(t, response.Items, 1)
}
