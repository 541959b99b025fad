// Package benchmark holds the vocabulary shared by every part of the harness:
// task identifiers, the fixed risk label set, answer payloads, task weights
// and the error kinds an evaluation run can end with.
package benchmark

import (
	"fmt"
	"math"
	"strings"
)

// TaskID identifies one of the three analytical tasks.
type TaskID string

const (
	TaskRiskClassification TaskID = "risk_classification"
	TaskBusinessSummary    TaskID = "business_summary"
	TaskConsistencyCheck   TaskID = "consistency_check"
)

// AllTasks lists the tasks in report order.
var AllTasks = []TaskID{TaskRiskClassification, TaskBusinessSummary, TaskConsistencyCheck}

// Valid reports whether t is a known task.
func (t TaskID) Valid() bool {
	switch t {
	case TaskRiskClassification, TaskBusinessSummary, TaskConsistencyCheck:
		return true
	}
	return false
}

// ParseTaskID accepts the canonical identifier or the report alias (task1..task3).
func ParseTaskID(raw string) (TaskID, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(TaskRiskClassification), "task1":
		return TaskRiskClassification, nil
	case string(TaskBusinessSummary), "task2":
		return TaskBusinessSummary, nil
	case string(TaskConsistencyCheck), "task3":
		return TaskConsistencyCheck, nil
	}
	return "", fmt.Errorf("unknown task %q", raw)
}

// RiskCategories is the fixed label set for risk classification.
var RiskCategories = []string{
	"Market Risk",
	"Operational Risk",
	"Financial Risk",
	"Legal/Regulatory Risk",
	"Technology Risk",
	"Cybersecurity Risk",
	"Competition Risk",
	"Supply Chain Risk",
	"Human Capital/Talent Risk",
	"Environmental/Climate Risk",
	"COVID-19/Pandemic Risk",
	"Geopolitical Risk",
}

var categoryIndex = func() map[string]string {
	idx := make(map[string]string, len(RiskCategories))
	for _, label := range RiskCategories {
		idx[strings.ToLower(label)] = label
	}
	return idx
}()

// CanonicalCategory maps label to its canonical spelling using a
// case-insensitive exact match. ok is false for labels outside the set.
func CanonicalCategory(label string) (canonical string, ok bool) {
	canonical, ok = categoryIndex[strings.ToLower(strings.TrimSpace(label))]
	return canonical, ok
}

// Weights are the composite weights of the three tasks.
type Weights struct {
	RiskClassification float64 `mapstructure:"risk_classification" yaml:"risk_classification" json:"risk_classification"`
	BusinessSummary    float64 `mapstructure:"business_summary" yaml:"business_summary" json:"business_summary"`
	ConsistencyCheck   float64 `mapstructure:"consistency_check" yaml:"consistency_check" json:"consistency_check"`
}

// DefaultWeights returns 0.4 / 0.3 / 0.3.
func DefaultWeights() Weights {
	return Weights{RiskClassification: 0.4, BusinessSummary: 0.3, ConsistencyCheck: 0.3}
}

// For returns the weight of task.
func (w Weights) For(task TaskID) float64 {
	switch task {
	case TaskRiskClassification:
		return w.RiskClassification
	case TaskBusinessSummary:
		return w.BusinessSummary
	case TaskConsistencyCheck:
		return w.ConsistencyCheck
	}
	return 0
}

// Validate requires non-negative weights summing to 1.
func (w Weights) Validate() error {
	for _, task := range AllTasks {
		if w.For(task) < 0 {
			return fmt.Errorf("weight for %s must be non-negative", task)
		}
	}
	sum := w.RiskClassification + w.BusinessSummary + w.ConsistencyCheck
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("task weights must sum to 1.0, got %v", sum)
	}
	return nil
}
