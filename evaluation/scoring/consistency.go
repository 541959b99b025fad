package scoring

import (
	"fmt"

	"finbench/internal/domain/benchmark"
)

// ConsistencyDetail carries the risk alignment of Task 3.
type ConsistencyDetail struct {
	ConsistencyRate float64  `json:"consistency_rate"`
	ReferenceRisks  []string `json:"reference_risks"`
	// Discussed holds the reference risks confirmed as discussed in section 7.
	Discussed []string `json:"discussed"`
	Confirmed []string `json:"confirmed"`
	Missed    []string `json:"missed"`
	// Unaligned holds candidate entries matching no reference risk.
	Unaligned []string `json:"unaligned,omitempty"`
}

// ConsistencyScorer grades whether the candidate confirms the same
// section 1A risks as being discussed in section 7.
type ConsistencyScorer struct{}

// Task implements TaskScorer.
func (ConsistencyScorer) Task() benchmark.TaskID { return benchmark.TaskConsistencyCheck }

// Score implements TaskScorer. The rate is the share of reference 1A risks
// that are reference-confirmed in section 7 and also listed as discussed by
// the candidate; no reference risks at all is vacuously consistent (100).
func (ConsistencyScorer) Score(reference, candidate benchmark.Answer) ScoreBreakdown {
	var ref, cand benchmark.ConsistencyAnswer
	if reference.Consistency != nil {
		ref = *reference.Consistency
	}
	if candidate.Consistency != nil {
		cand = *candidate.Consistency
	}

	detail := &ConsistencyDetail{
		ReferenceRisks: append([]string{}, ref.RisksFoundIn1A...),
		Discussed:      []string{},
		Confirmed:      []string{},
		Missed:         []string{},
	}

	for _, risk := range ref.RisksFoundIn1A {
		if !matchesAny(risk, ref.RisksDiscussedIn7) {
			detail.Missed = append(detail.Missed, risk)
			continue
		}
		detail.Discussed = append(detail.Discussed, risk)
		if matchesAny(risk, cand.RisksDiscussedIn7) {
			detail.Confirmed = append(detail.Confirmed, risk)
		} else {
			detail.Missed = append(detail.Missed, risk)
		}
	}
	for _, claim := range cand.RisksDiscussedIn7 {
		if !matchesAny(claim, ref.RisksFoundIn1A) {
			detail.Unaligned = append(detail.Unaligned, claim)
		}
	}

	raw := 100.0
	if n := len(ref.RisksFoundIn1A); n > 0 {
		raw = float64(len(detail.Confirmed)) / float64(n) * 100
	}
	detail.ConsistencyRate = Round1(raw)

	diagnostics := []string{
		fmt.Sprintf("%d/%d reference risks confirmed as discussed in section 7", len(detail.Confirmed), len(ref.RisksFoundIn1A)),
	}
	if len(ref.RisksFoundIn1A) == 0 {
		diagnostics = append(diagnostics, "reference lists no section 1A risks; vacuously consistent")
	}
	if found := countAligned(ref.RisksFoundIn1A, cand.RisksFoundIn1A); len(ref.RisksFoundIn1A) > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("candidate listed %d/%d reference risks as present in section 1A", found, len(ref.RisksFoundIn1A)))
	}
	if len(detail.Unaligned) > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("%d candidate claims match no reference risk", len(detail.Unaligned)))
	}

	return ScoreBreakdown{
		Task:        benchmark.TaskConsistencyCheck,
		Score:       detail.ConsistencyRate,
		RawScore:    raw,
		Matched:     detail.Confirmed,
		Unmatched:   detail.Missed,
		Diagnostics: diagnostics,
		Consistency: detail,
	}
}

func matchesAny(value string, candidates []string) bool {
	for _, c := range candidates {
		if LexicalMatch(value, c).Matched {
			return true
		}
	}
	return false
}

func countAligned(reference, candidate []string) int {
	n := 0
	for _, r := range reference {
		if matchesAny(r, candidate) {
			n++
		}
	}
	return n
}
