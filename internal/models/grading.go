package models

import (
	"time"

	"gorm.io/datatypes"
)

// GradingRecord stores one completed grading run and its aggregate outcome.
type GradingRecord struct {
	ID           string                 `gorm:"primaryKey;size:36" json:"id"`
	UserID       string                 `gorm:"size:64;index;not null" json:"user_id"`
	Subject      string                 `gorm:"size:32;not null" json:"subject"`
	Unit         string                 `gorm:"size:32" json:"unit"`
	QuestionType string                 `gorm:"size:32" json:"question_type"`
	Question     string                 `gorm:"type:text" json:"question"`
	HasDiagram   bool                   `json:"has_diagram"`
	OverallScore float64                `gorm:"not null" json:"overall_score"`
	Grade        string                 `gorm:"size:4" json:"grade"`
	Summary      string                 `gorm:"type:text" json:"summary"`
	Improvements datatypes.JSON         `json:"improvements"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	Results      []ExaminerResultRecord `gorm:"foreignKey:GradingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"results"`
}

// ExaminerResultRecord stores one examiner's verdict within a grading run.
// Position preserves the panel's configuration order.
type ExaminerResultRecord struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	GradingID     string         `gorm:"size:36;index;not null" json:"grading_id"`
	Position      int            `gorm:"not null" json:"position"`
	ExaminerID    string         `gorm:"size:64;not null" json:"examiner_id"`
	Name          string         `gorm:"size:64" json:"name"`
	Objective     string         `gorm:"size:8" json:"objective"`
	DisplayColor  string         `gorm:"size:16" json:"display_color"`
	Score         float64        `gorm:"not null" json:"score"`
	MaxScore      int            `gorm:"not null" json:"max_score"`
	Feedback      string         `gorm:"type:text" json:"feedback"`
	Strengths     datatypes.JSON `json:"strengths"`
	Succeeded     bool           `gorm:"not null" json:"succeeded"`
	FailureReason string         `gorm:"size:255" json:"failure_reason"`
	CreatedAt     time.Time      `json:"created_at"`
}
