package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/essaymark/essaymark-go-api/internal/examiner"
)

func panelResults(scores []float64, maxScores []int) []examiner.Result {
	results := make([]examiner.Result, len(scores))
	for i := range scores {
		results[i] = examiner.Result{
			ExaminerID: "examiner",
			Score:      scores[i],
			MaxScore:   maxScores[i],
			Succeeded:  true,
		}
	}
	return results
}

func TestAggregateComputesOverallScore(t *testing.T) {
	results := panelResults([]float64{3, 4, 2, 3}, []int{4, 4, 4, 4})

	overall, grade := Aggregate(results, DefaultGradeBands())
	require.Equal(t, 7.5, overall)
	require.Equal(t, "B", grade)
}

func TestAggregateIncludesFailedExaminerPlaceholder(t *testing.T) {
	results := panelResults([]float64{3, 4, 3}, []int{4, 4, 4})
	results = append(results, examiner.Result{
		ExaminerID:    "economics-evaluation",
		Score:         2,
		MaxScore:      4,
		Succeeded:     false,
		FailureReason: "timeout",
	})

	overall, _ := Aggregate(results, DefaultGradeBands())
	require.Equal(t, 7.5, overall)
}

func TestAggregateIsMonotonicInScores(t *testing.T) {
	maxScores := []int{4, 4, 9, 8}
	previous := -1.0
	for bonus := 0; bonus <= 4; bonus++ {
		results := panelResults([]float64{float64(bonus), 2, 4, 3}, maxScores)
		overall, _ := Aggregate(results, DefaultGradeBands())
		require.GreaterOrEqual(t, overall, previous)
		previous = overall
	}
}

func TestAggregateRoundsToOneDecimal(t *testing.T) {
	results := panelResults([]float64{1, 1, 1}, []int{3, 3, 3})

	overall, _ := Aggregate(results, DefaultGradeBands())
	require.Equal(t, 3.3, overall)
}

func TestAggregateEmptyPanel(t *testing.T) {
	overall, grade := Aggregate(nil, DefaultGradeBands())
	require.Equal(t, 0.0, overall)
	require.Equal(t, "U", grade)
}

func TestAggregateGradeBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{20, "A*"},
		{18, "A*"},
		{16, "A"},
		{14, "B"},
		{12, "C"},
		{10, "D"},
		{8, "E"},
		{6, "U"},
	}

	for _, tc := range cases {
		results := panelResults([]float64{tc.score}, []int{20})
		_, grade := Aggregate(results, DefaultGradeBands())
		require.Equal(t, tc.grade, grade, "score %.0f/20", tc.score)
	}
}

func TestParseGradeBands(t *testing.T) {
	bands, err := ParseGradeBands("85:A,65:B,45:C")
	require.NoError(t, err)
	require.Equal(t, []GradeBand{{85, "A"}, {65, "B"}, {45, "C"}, {0, "U"}}, bands)

	results := panelResults([]float64{7}, []int{10})
	_, grade := Aggregate(results, bands)
	require.Equal(t, "B", grade)
}

func TestParseGradeBandsEmptyUsesDefaults(t *testing.T) {
	bands, err := ParseGradeBands("")
	require.NoError(t, err)
	require.Equal(t, DefaultGradeBands(), bands)
}

func TestParseGradeBandsRejectsMalformedInput(t *testing.T) {
	_, err := ParseGradeBands("ninety:A")
	require.Error(t, err)

	_, err = ParseGradeBands("90")
	require.Error(t, err)

	_, err = ParseGradeBands("90:")
	require.Error(t, err)
}
