package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"finbench/evaluation/scoring"
	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
)

// Report is the terminal artifact of one evaluation run.
type Report struct {
	RunID        string               `json:"run_id"`
	Document     corpus.DocumentKey   `json:"document"`
	Task1        ClassificationReport `json:"task1"`
	Task2        ExtractionReport     `json:"task2"`
	Task3        ConsistencyReport    `json:"task3"`
	OverallScore float64              `json:"overall_score"`
	Weights      benchmark.Weights    `json:"weights"`
	Feedback     string               `json:"feedback"`
	StartedAt    time.Time            `json:"started_at"`
	CompletedAt  time.Time            `json:"completed_at"`

	Breakdowns map[benchmark.TaskID]scoring.ScoreBreakdown `json:"breakdowns"`
}

// ClassificationReport is the task1 section of the report.
type ClassificationReport struct {
	Score          float64  `json:"score"`
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	F1             float64  `json:"f1"`
	Matched        []string `json:"matched"`
	FalsePositives []string `json:"false_positives"`
	FalseNegatives []string `json:"false_negatives"`
}

// ExtractionReport is the task2 section of the report.
type ExtractionReport struct {
	Score         float64  `json:"score"`
	MatchedFields []string `json:"matched_fields"`
}

// ConsistencyReport is the task3 section of the report.
type ConsistencyReport struct {
	Score           float64  `json:"score"`
	ConsistencyRate float64  `json:"consistency_rate"`
	Confirmed       []string `json:"confirmed"`
	Missed          []string `json:"missed"`
}

// Score returns the rounded score of task.
func (r *Report) Score(task benchmark.TaskID) float64 {
	return r.Breakdowns[task].Score
}

func buildReport(runID string, doc corpus.DocumentKey, weights benchmark.Weights, breakdowns map[benchmark.TaskID]scoring.ScoreBreakdown) *Report {
	report := &Report{
		RunID:        runID,
		Document:     doc,
		OverallScore: scoring.Composite(weights, breakdowns),
		Weights:      weights,
		Breakdowns:   breakdowns,
		Task1: ClassificationReport{
			Matched:        []string{},
			FalsePositives: []string{},
			FalseNegatives: []string{},
		},
		Task2: ExtractionReport{MatchedFields: []string{}},
		Task3: ConsistencyReport{Confirmed: []string{}, Missed: []string{}},
	}

	b1 := breakdowns[benchmark.TaskRiskClassification]
	report.Task1.Score = b1.Score
	if d := b1.Classification; d != nil {
		report.Task1.Precision = d.Precision
		report.Task1.Recall = d.Recall
		report.Task1.F1 = d.F1
		report.Task1.Matched = nonNil(d.TruePositives)
		report.Task1.FalsePositives = nonNil(d.FalsePositives)
		report.Task1.FalseNegatives = nonNil(d.FalseNegatives)
	}

	b2 := breakdowns[benchmark.TaskBusinessSummary]
	report.Task2.Score = b2.Score
	if d := b2.Extraction; d != nil {
		report.Task2.MatchedFields = nonNil(d.MatchedFields)
	}

	b3 := breakdowns[benchmark.TaskConsistencyCheck]
	report.Task3.Score = b3.Score
	if d := b3.Consistency; d != nil {
		report.Task3.ConsistencyRate = d.ConsistencyRate
		report.Task3.Confirmed = nonNil(d.Confirmed)
		report.Task3.Missed = nonNil(d.Missed)
	}

	report.Feedback = feedback(report)
	return report
}

var taskTitles = map[benchmark.TaskID]string{
	benchmark.TaskRiskClassification: "Risk Classification",
	benchmark.TaskBusinessSummary:    "Business Summary",
	benchmark.TaskConsistencyCheck:   "Consistency Check",
}

func feedback(r *Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Multi-Task Evaluation Complete for company %s, fiscal year %d\n\n", r.Document.CompanyID, r.Document.Year)
	fmt.Fprintf(&sb, "Overall Score: %.1f/100\n\nTask Scores:\n", r.OverallScore)
	for _, task := range benchmark.AllTasks {
		b := r.Breakdowns[task]
		fmt.Fprintf(&sb, "- %s: %.1f/100 (weight: %.0f%%)", taskTitles[task], b.Score, r.Weights.For(task)*100)
		if len(b.Diagnostics) > 0 {
			fmt.Fprintf(&sb, " - %s", b.Diagnostics[0])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
