package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/essaymark/essaymark-go-api/internal/examiner"
)

// GradeBand maps a minimum percentage to a letter grade.
type GradeBand struct {
	MinPercent float64
	Grade      string
}

// DefaultGradeBands returns the standard boundary table.
func DefaultGradeBands() []GradeBand {
	return []GradeBand{
		{90, "A*"},
		{80, "A"},
		{70, "B"},
		{60, "C"},
		{50, "D"},
		{40, "E"},
		{0, "U"},
	}
}

// ParseGradeBands parses a boundary table of the form "90:A*,80:A,70:B".
// Bands are sorted by descending threshold; a catch-all U band is appended when the
// table does not reach zero.
func ParseGradeBands(raw string) ([]GradeBand, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultGradeBands(), nil
	}

	var bands []GradeBand
	for _, part := range strings.Split(raw, ",") {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid grade band %q", part)
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid grade band threshold %q: %w", fields[0], err)
		}
		grade := strings.TrimSpace(fields[1])
		if grade == "" {
			return nil, fmt.Errorf("invalid grade band %q: empty grade", part)
		}
		bands = append(bands, GradeBand{MinPercent: threshold, Grade: grade})
	}

	sort.Slice(bands, func(i, j int) bool { return bands[i].MinPercent > bands[j].MinPercent })
	if bands[len(bands)-1].MinPercent > 0 {
		bands = append(bands, GradeBand{MinPercent: 0, Grade: "U"})
	}

	return bands, nil
}

// Aggregate computes the overall 0-10 score and letter grade from a complete panel
// of examiner results. Failed examiners contribute their placeholder scores exactly
// like any other result; excluding them would bias the aggregate upward in the
// failure case.
func Aggregate(results []examiner.Result, bands []GradeBand) (float64, string) {
	var sumScores, sumMax float64
	for _, result := range results {
		sumScores += result.Score
		sumMax += float64(result.MaxScore)
	}

	if sumMax == 0 {
		return 0, gradeFor(0, bands)
	}

	percent := sumScores / sumMax * 100
	overall := math.Round(sumScores/sumMax*10*10) / 10

	return overall, gradeFor(percent, bands)
}

func gradeFor(percent float64, bands []GradeBand) string {
	if len(bands) == 0 {
		bands = DefaultGradeBands()
	}
	for _, band := range bands {
		if percent >= band.MinPercent {
			return band.Grade
		}
	}
	return bands[len(bands)-1].Grade
}
