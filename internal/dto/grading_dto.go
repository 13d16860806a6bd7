package dto

import (
	"encoding/json"
	"time"

	"github.com/essaymark/essaymark-go-api/internal/models"
)

// GradeRequest is the payload for one grading attempt.
type GradeRequest struct {
	Question     string `json:"question" validate:"required,min=1,max=2000"`
	Essay        string `json:"essay" validate:"required,min=1,max=10000"`
	Subject      string `json:"subject" validate:"required,oneof=economics geography"`
	Unit         string `json:"unit" validate:"omitempty,max=32"`
	QuestionType string `json:"question_type" validate:"omitempty,max=32"`
	HasDiagram   bool   `json:"has_diagram"`
}

// ExaminerResultResponse describes one examiner's verdict to API consumers.
type ExaminerResultResponse struct {
	ExaminerID    string   `json:"examiner_id"`
	Name          string   `json:"name"`
	Objective     string   `json:"objective"`
	DisplayColor  string   `json:"display_color"`
	Score         float64  `json:"score"`
	MaxScore      int      `json:"max_score"`
	Feedback      string   `json:"feedback"`
	Strengths     []string `json:"strengths"`
	Succeeded     bool     `json:"succeeded"`
	FailureReason string   `json:"failure_reason,omitempty"`
}

// GradingResponse is the aggregate grading outcome returned to the caller.
type GradingResponse struct {
	ID           string                   `json:"id"`
	Subject      string                   `json:"subject"`
	Unit         string                   `json:"unit"`
	QuestionType string                   `json:"question_type"`
	OverallScore float64                  `json:"overall_score"`
	Grade        string                   `json:"grade"`
	Examiners    []ExaminerResultResponse `json:"examiners"`
	Summary      string                   `json:"summary"`
	Improvements []string                 `json:"improvements"`
	CreatedAt    time.Time                `json:"created_at"`
}

// GradingListResponse wraps a page of grading history.
type GradingListResponse struct {
	Items []GradingResponse `json:"items"`
	Total int64             `json:"total"`
}

// NewGradingResponse builds a response DTO from a stored grading record.
func NewGradingResponse(record models.GradingRecord) GradingResponse {
	examiners := make([]ExaminerResultResponse, 0, len(record.Results))
	for _, result := range record.Results {
		examiners = append(examiners, ExaminerResultResponse{
			ExaminerID:    result.ExaminerID,
			Name:          result.Name,
			Objective:     result.Objective,
			DisplayColor:  result.DisplayColor,
			Score:         result.Score,
			MaxScore:      result.MaxScore,
			Feedback:      result.Feedback,
			Strengths:     decodeStringList(result.Strengths),
			Succeeded:     result.Succeeded,
			FailureReason: result.FailureReason,
		})
	}

	return GradingResponse{
		ID:           record.ID,
		Subject:      record.Subject,
		Unit:         record.Unit,
		QuestionType: record.QuestionType,
		OverallScore: record.OverallScore,
		Grade:        record.Grade,
		Examiners:    examiners,
		Summary:      record.Summary,
		Improvements: decodeStringList(record.Improvements),
		CreatedAt:    record.CreatedAt,
	}
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return []string{}
	}
	return values
}
