package scoring

import (
	"fmt"
	"strings"

	"finbench/internal/domain/benchmark"
)

// ClassificationDetail carries the set statistics of Task 1.
type ClassificationDetail struct {
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	F1             float64  `json:"f1"`
	TruePositives  []string `json:"matched"`
	FalsePositives []string `json:"false_positives"`
	FalseNegatives []string `json:"false_negatives"`
}

// ClassificationScorer grades risk classification by F1 over label sets.
type ClassificationScorer struct{}

// Task implements TaskScorer.
func (ClassificationScorer) Task() benchmark.TaskID { return benchmark.TaskRiskClassification }

// Score implements TaskScorer.
func (ClassificationScorer) Score(reference, candidate benchmark.Answer) ScoreBreakdown {
	var refLabels, candLabels []string
	if reference.Risk != nil {
		refLabels = reference.Risk.Categories
	}
	if candidate.Risk != nil {
		candLabels = candidate.Risk.Categories
	}

	refSet, _ := canonicalSet(refLabels)
	candSet, unknown := canonicalSet(candLabels)

	detail := &ClassificationDetail{
		TruePositives:  []string{},
		FalsePositives: []string{},
		FalseNegatives: []string{},
	}
	for _, label := range benchmark.RiskCategories {
		_, inRef := refSet[label]
		_, inCand := candSet[label]
		switch {
		case inRef && inCand:
			detail.TruePositives = append(detail.TruePositives, label)
		case inCand:
			detail.FalsePositives = append(detail.FalsePositives, label)
		case inRef:
			detail.FalseNegatives = append(detail.FalseNegatives, label)
		}
	}
	detail.FalsePositives = append(detail.FalsePositives, unknown...)

	tp, fp, fn := len(detail.TruePositives), len(detail.FalsePositives), len(detail.FalseNegatives)
	detail.Precision, detail.Recall, detail.F1 = f1(tp, fp, fn)

	raw := detail.F1 * 100
	b := ScoreBreakdown{
		Task:           benchmark.TaskRiskClassification,
		Score:          Round1(raw),
		RawScore:       raw,
		Matched:        detail.TruePositives,
		Unmatched:      append(append([]string{}, detail.FalsePositives...), detail.FalseNegatives...),
		Classification: detail,
	}
	b.Diagnostics = append(b.Diagnostics, fmt.Sprintf("TP=%d FP=%d FN=%d precision=%.2f recall=%.2f", tp, fp, fn, detail.Precision, detail.Recall))
	if len(unknown) > 0 {
		b.Diagnostics = append(b.Diagnostics, fmt.Sprintf("labels outside the category set: %s", strings.Join(unknown, ", ")))
	}
	if len(candLabels) == 0 {
		b.Diagnostics = append(b.Diagnostics, "candidate returned no categories")
	}
	return b
}

// f1 applies the zero-division conventions: precision is 0 for an empty
// candidate set, recall is 0 for an empty reference set, F1 is 0 when P+R is 0.
func f1(tp, fp, fn int) (precision, recall, f float64) {
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f
}

// canonicalSet maps labels onto the fixed category set. Labels outside the
// set are returned separately, deduplicated case-insensitively.
func canonicalSet(labels []string) (map[string]struct{}, []string) {
	set := make(map[string]struct{}, len(labels))
	var unknown []string
	seenUnknown := make(map[string]struct{})
	for _, label := range labels {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			continue
		}
		if canonical, ok := benchmark.CanonicalCategory(trimmed); ok {
			set[canonical] = struct{}{}
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seenUnknown[key]; dup {
			continue
		}
		seenUnknown[key] = struct{}{}
		unknown = append(unknown, trimmed)
	}
	return set, unknown
}
