// Package scoring grades candidate answers against reference answers.
package scoring

import (
	"math"

	"finbench/internal/domain/benchmark"
)

// TaskScorer grades one task. Implementations never fail: malformed or
// missing candidate content scores 0 with a diagnostic.
type TaskScorer interface {
	Task() benchmark.TaskID
	Score(reference, candidate benchmark.Answer) ScoreBreakdown
}

// ScoreBreakdown is the immutable per-task result.
type ScoreBreakdown struct {
	Task        benchmark.TaskID `json:"task"`
	Score       float64          `json:"score"`
	RawScore    float64          `json:"raw_score"`
	Matched     []string         `json:"matched"`
	Unmatched   []string         `json:"unmatched"`
	Diagnostics []string         `json:"diagnostics,omitempty"`

	Classification *ClassificationDetail `json:"classification,omitempty"`
	Extraction     *ExtractionDetail     `json:"extraction,omitempty"`
	Consistency    *ConsistencyDetail    `json:"consistency,omitempty"`
}

// Failed returns the zero-score breakdown used when no candidate answer could
// be graded (exchange failure, missing section).
func Failed(task benchmark.TaskID, diagnostic string) ScoreBreakdown {
	return ScoreBreakdown{
		Task:        task,
		Matched:     []string{},
		Unmatched:   []string{},
		Diagnostics: []string{diagnostic},
	}
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Registry maps each task to its scorer.
type Registry map[benchmark.TaskID]TaskScorer

// DefaultRegistry returns the scorers for all three tasks.
func DefaultRegistry() Registry {
	r := Registry{}
	for _, s := range []TaskScorer{ClassificationScorer{}, ExtractionScorer{}, ConsistencyScorer{}} {
		r[s.Task()] = s
	}
	return r
}

// Score grades candidate with the scorer registered for task.
func (r Registry) Score(task benchmark.TaskID, reference, candidate benchmark.Answer) ScoreBreakdown {
	scorer, ok := r[task]
	if !ok {
		return Failed(task, "no scorer registered for task")
	}
	return scorer.Score(reference, candidate)
}

// Composite computes the weighted composite of the three tasks from their
// unrounded scores and rounds once. A task without a breakdown contributes 0.
func Composite(weights benchmark.Weights, breakdowns map[benchmark.TaskID]ScoreBreakdown) float64 {
	var total float64
	for _, task := range benchmark.AllTasks {
		if b, ok := breakdowns[task]; ok {
			total += weights.For(task) * b.RawScore
		}
	}
	return Round1(total)
}
