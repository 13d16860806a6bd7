package examiner

import (
	"errors"
	"fmt"
	"strings"
)

// Subject enumerates the subjects the grading panel supports.
const (
	SubjectEconomics = "economics"
	SubjectGeography = "geography"
)

// ErrUnknownSubject indicates the requested subject has no examiner panel.
var ErrUnknownSubject = errors.New("unknown subject")

// ErrUnknownQuestionType indicates the question type is not part of the subject's mark scheme.
var ErrUnknownQuestionType = errors.New("unknown question type")

// PromptParams carries the mark-scheme parameters a prompt template resolves against.
type PromptParams struct {
	Unit         string
	QuestionType string
	HasDiagram   bool
}

// Config is the static definition of one examiner. Loaded once at start, never mutated.
type Config struct {
	ID           string
	Name         string
	Objective    string
	MaxScore     int
	DisplayColor string
	Prompt       func(PromptParams) string
}

type subjectPanel struct {
	defaultUnit         string
	units               []string
	defaultQuestionType string
	questionTypes       map[string][]Config
}

// Registry resolves examiner panels per subject and question type.
type Registry struct {
	subjects map[string]subjectPanel
}

// NewRegistry builds the built-in examiner registry for all supported subjects.
func NewRegistry() *Registry {
	return &Registry{
		subjects: map[string]subjectPanel{
			SubjectEconomics: {
				defaultUnit:         "micro",
				units:               []string{"micro", "macro"},
				defaultQuestionType: "25-mark",
				questionTypes: map[string][]Config{
					"25-mark": assessmentPanel(SubjectEconomics, [4]int{4, 4, 9, 8}),
					"15-mark": assessmentPanel(SubjectEconomics, [4]int{3, 3, 5, 4}),
					"9-mark":  assessmentPanel(SubjectEconomics, [4]int{2, 2, 3, 2}),
				},
			},
			SubjectGeography: {
				defaultUnit:         "physical",
				units:               []string{"physical", "human"},
				defaultQuestionType: "20-mark",
				questionTypes: map[string][]Config{
					"20-mark": assessmentPanel(SubjectGeography, [4]int{5, 5, 5, 5}),
					"12-mark": assessmentPanel(SubjectGeography, [4]int{3, 3, 3, 3}),
					"6-mark":  assessmentPanel(SubjectGeography, [4]int{2, 2, 1, 1}),
				},
			},
		},
	}
}

// Panel returns the examiner configurations for the given subject and question type,
// in the fixed order grading results must preserve.
func (r *Registry) Panel(subject, questionType string) ([]Config, error) {
	panel, ok := r.subjects[normalize(subject)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
	}

	if questionType == "" {
		questionType = panel.defaultQuestionType
	}

	configs, ok := panel.questionTypes[normalize(questionType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuestionType, questionType)
	}

	return configs, nil
}

// DefaultUnit returns the unit assumed when the request does not name one.
func (r *Registry) DefaultUnit(subject string) string {
	if panel, ok := r.subjects[normalize(subject)]; ok {
		return panel.defaultUnit
	}
	return ""
}

// DefaultQuestionType returns the question type assumed when the request does not name one.
func (r *Registry) DefaultQuestionType(subject string) string {
	if panel, ok := r.subjects[normalize(subject)]; ok {
		return panel.defaultQuestionType
	}
	return ""
}

// Subjects lists the subjects with a configured panel.
func (r *Registry) Subjects() []string {
	subjects := make([]string, 0, len(r.subjects))
	for subject := range r.subjects {
		subjects = append(subjects, subject)
	}
	return subjects
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// assessmentPanel builds the AO1-AO4 examiner set with the supplied max scores.
func assessmentPanel(subject string, maxScores [4]int) []Config {
	definitions := []struct {
		id        string
		name      string
		objective string
		color     string
		focus     string
	}{
		{"knowledge", "Knowledge & Understanding", "AO1", "#2563eb", "accurate definitions and relevant theory"},
		{"application", "Application", "AO2", "#16a34a", "use of the question context, data and examples"},
		{"analysis", "Analysis", "AO3", "#d97706", "developed chains of reasoning"},
		{"evaluation", "Evaluation", "AO4", "#dc2626", "balanced judgements supported by argument"},
	}

	configs := make([]Config, 0, len(definitions))
	for i, def := range definitions {
		def := def
		maxScore := maxScores[i]
		configs = append(configs, Config{
			ID:           fmt.Sprintf("%s-%s", subject, def.id),
			Name:         def.name,
			Objective:    def.objective,
			MaxScore:     maxScore,
			DisplayColor: def.color,
			Prompt: func(params PromptParams) string {
				return buildSystemPrompt(subject, def.name, def.objective, def.focus, maxScore, params)
			},
		})
	}

	return configs
}
