package scoring

import (
	"fmt"
	"strings"

	"finbench/internal/domain/benchmark"
)

// FieldMatch records how one business field was judged.
type FieldMatch struct {
	Reference string `json:"reference"`
	Candidate string `json:"candidate"`
	Matched   bool   `json:"matched"`
	Reason    string `json:"reason"`
}

// ExtractionDetail carries the per-field outcome of Task 2.
type ExtractionDetail struct {
	MatchedFields   []string              `json:"matched_fields"`
	UnmatchedFields []string              `json:"unmatched_fields"`
	Fields          map[string]FieldMatch `json:"fields"`
}

// ExtractionScorer grades the business summary field by field.
type ExtractionScorer struct{}

// Task implements TaskScorer.
func (ExtractionScorer) Task() benchmark.TaskID { return benchmark.TaskBusinessSummary }

// Score implements TaskScorer. Each of the three fields is worth a third.
func (ExtractionScorer) Score(reference, candidate benchmark.Answer) ScoreBreakdown {
	var ref, cand benchmark.BusinessAnswer
	if reference.Business != nil {
		ref = *reference.Business
	}
	if candidate.Business != nil {
		cand = *candidate.Business
	}

	detail := &ExtractionDetail{
		MatchedFields:   []string{},
		UnmatchedFields: []string{},
		Fields:          make(map[string]FieldMatch, len(benchmark.BusinessFields)),
	}
	var diagnostics []string

	for _, field := range benchmark.BusinessFields {
		fm := FieldMatch{Reference: ref.Field(field), Candidate: cand.Field(field)}
		switch {
		case strings.TrimSpace(fm.Candidate) == "":
			fm.Reason = "candidate value missing"
		case isPlaceholder(fm.Reference):
			fm.Reason = "no reference value"
		default:
			m := LexicalMatch(fm.Candidate, fm.Reference)
			fm.Matched, fm.Reason = m.Matched, m.Reason
		}
		detail.Fields[field] = fm
		if fm.Matched {
			detail.MatchedFields = append(detail.MatchedFields, field)
		} else {
			detail.UnmatchedFields = append(detail.UnmatchedFields, field)
		}
		diagnostics = append(diagnostics, fmt.Sprintf("%s: %s", field, fm.Reason))
	}

	raw := float64(len(detail.MatchedFields)) / float64(len(benchmark.BusinessFields)) * 100
	return ScoreBreakdown{
		Task:        benchmark.TaskBusinessSummary,
		Score:       Round1(raw),
		RawScore:    raw,
		Matched:     detail.MatchedFields,
		Unmatched:   detail.UnmatchedFields,
		Diagnostics: diagnostics,
		Extraction:  detail,
	}
}

func isPlaceholder(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "n/a", "na", "none", "unknown":
		return true
	}
	return false
}
