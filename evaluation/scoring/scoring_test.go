package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbench/internal/domain/benchmark"
)

var (
	task1Reference = benchmark.NewRiskAnswer(
		"Market Risk", "Operational Risk", "Financial Risk", "Legal/Regulatory Risk",
		"Competition Risk", "Human Capital/Talent Risk", "COVID-19/Pandemic Risk",
	)
	task1Candidate = benchmark.NewRiskAnswer(
		"Market Risk", "Operational Risk", "Financial Risk", "Legal/Regulatory Risk",
		"Competition Risk", "Human Capital/Talent Risk", "COVID-19/Pandemic Risk",
		"Supply Chain Risk", "Reputational Risk", "Strategic Risk",
	)

	task2Reference = benchmark.NewBusinessAnswer(
		"Financial Technology (Fintech)",
		"Universal Electronic Payment System (UEPS)",
		"South Africa, emerging markets",
	)
	task2Candidate = benchmark.NewBusinessAnswer(
		"Financial Technology (Fintech)",
		"Universal Electronic Payment System (UEPS)",
		"South Africa (primary market), emerging economies",
	)

	task3Reference = benchmark.NewConsistencyAnswer(
		[]string{
			"Foreign currency exchange volatility",
			"Cybersecurity breaches",
			"Regulatory compliance",
			"Liquidity constraints",
			"Pandemic disruption",
		},
		[]string{
			"Foreign currency exchange volatility",
			"Cybersecurity breaches",
			"Regulatory compliance",
			"Liquidity constraints",
		},
	)
	task3Candidate = benchmark.NewConsistencyAnswer(
		[]string{"Currency volatility", "Cyber attacks", "Regulation", "Liquidity", "COVID-19"},
		[]string{
			"foreign currency exchange volatility",
			"Cybersecurity breaches and data loss",
			"regulatory compliance costs",
			"liquidity constraints",
		},
	)
)

func TestClassificationScenario(t *testing.T) {
	b := ClassificationScorer{}.Score(task1Reference, task1Candidate)

	require.NotNil(t, b.Classification)
	assert.InDelta(t, 0.70, b.Classification.Precision, 1e-9)
	assert.InDelta(t, 1.00, b.Classification.Recall, 1e-9)
	assert.InDelta(t, 0.8235, b.Classification.F1, 1e-4)
	assert.Equal(t, 82.4, b.Score)
	assert.Len(t, b.Classification.TruePositives, 7)
	assert.ElementsMatch(t, []string{"Supply Chain Risk", "Reputational Risk", "Strategic Risk"}, b.Classification.FalsePositives)
	assert.Empty(t, b.Classification.FalseNegatives)
}

func TestClassificationIsCaseInsensitiveAndDeduplicates(t *testing.T) {
	b := ClassificationScorer{}.Score(
		benchmark.NewRiskAnswer("Market Risk", "Cybersecurity Risk"),
		benchmark.NewRiskAnswer("market risk", "MARKET RISK", "cybersecurity risk", "  "),
	)
	assert.Equal(t, 100.0, b.Score)
	assert.Empty(t, b.Classification.FalsePositives)
}

func TestClassificationZeroDivisionConventions(t *testing.T) {
	empty := benchmark.NewRiskAnswer()
	some := benchmark.NewRiskAnswer("Market Risk")

	b := ClassificationScorer{}.Score(some, empty)
	assert.Equal(t, 0.0, b.Classification.Precision)
	assert.Equal(t, 0.0, b.Classification.Recall)
	assert.Equal(t, 0.0, b.Score)

	b = ClassificationScorer{}.Score(empty, some)
	assert.Equal(t, 0.0, b.Classification.Recall)
	assert.Equal(t, 0.0, b.Score)

	b = ClassificationScorer{}.Score(empty, empty)
	assert.Equal(t, 0.0, b.Score)
}

func TestClassificationMatchesF1Formula(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pick := func() []string {
		var out []string
		for _, label := range benchmark.RiskCategories {
			if rng.Intn(2) == 0 {
				out = append(out, label)
			}
		}
		if rng.Intn(3) == 0 {
			out = append(out, "Unlisted Risk")
		}
		return out
	}

	for i := 0; i < 200; i++ {
		ref, cand := pick(), pick()
		b := ClassificationScorer{}.Score(benchmark.NewRiskAnswer(ref...), benchmark.NewRiskAnswer(cand...))
		d := b.Classification

		tp, fp, fn := float64(len(d.TruePositives)), float64(len(d.FalsePositives)), float64(len(d.FalseNegatives))
		var p, r, want float64
		if tp+fp > 0 {
			p = tp / (tp + fp)
		}
		if tp+fn > 0 {
			r = tp / (tp + fn)
		}
		if p+r > 0 {
			want = 2 * p * r / (p + r) * 100
		}
		assert.InDelta(t, want, b.RawScore, 1e-9)
		assert.Equal(t, math.Round(want*10)/10, b.Score)
	}
}

func TestExtractionScenario(t *testing.T) {
	b := ExtractionScorer{}.Score(task2Reference, task2Candidate)
	assert.Equal(t, 100.0, b.Score)
	assert.Equal(t, []string{"industry", "products", "geography"}, b.Extraction.MatchedFields)
}

func TestExtractionPartialCredit(t *testing.T) {
	b := ExtractionScorer{}.Score(task2Reference, benchmark.NewBusinessAnswer("Banking", "", "South Africa"))

	assert.Equal(t, 33.3, b.Score)
	assert.Equal(t, []string{"geography"}, b.Matched)
	assert.Equal(t, "candidate value missing", b.Extraction.Fields["products"].Reason)
}

func TestExtractionCreditsStemsAndFragments(t *testing.T) {
	ref := benchmark.NewBusinessAnswer("Semiconductors", "Payments", "US")
	b := ExtractionScorer{}.Score(ref, benchmark.NewBusinessAnswer("Semi", "Payment", "USA"))
	assert.Equal(t, 100.0, b.Score)
	assert.Equal(t, []string{"industry", "products", "geography"}, b.Extraction.MatchedFields)
}

func TestExtractionNeverMatchesPlaceholderReference(t *testing.T) {
	ref := benchmark.NewBusinessAnswer("N/A", "N/A", "N/A")
	b := ExtractionScorer{}.Score(ref, benchmark.NewBusinessAnswer("N/A", "n/a", "na"))
	assert.Equal(t, 0.0, b.Score)
}

func TestConsistencyScenario(t *testing.T) {
	b := ConsistencyScorer{}.Score(task3Reference, task3Candidate)

	require.NotNil(t, b.Consistency)
	assert.Equal(t, 80.0, b.Consistency.ConsistencyRate)
	assert.Equal(t, 80.0, b.Score)
	assert.Len(t, b.Consistency.Confirmed, 4)
	assert.Equal(t, []string{"Pandemic disruption"}, b.Consistency.Missed)
}

func TestConsistencyCountsMissedDiscussions(t *testing.T) {
	cand := benchmark.NewConsistencyAnswer(nil, []string{"foreign currency exchange volatility", "liquidity constraints"})
	b := ConsistencyScorer{}.Score(task3Reference, cand)

	assert.Equal(t, 40.0, b.Score)
	assert.ElementsMatch(t, []string{"Cybersecurity breaches", "Regulatory compliance", "Pandemic disruption"}, b.Consistency.Missed)
}

func TestConsistencyVacuousReference(t *testing.T) {
	b := ConsistencyScorer{}.Score(benchmark.NewConsistencyAnswer(nil, nil), benchmark.NewConsistencyAnswer(nil, []string{"anything"}))
	assert.Equal(t, 100.0, b.Score)
}

func TestCompositeUsesUnroundedScores(t *testing.T) {
	reg := DefaultRegistry()
	breakdowns := map[benchmark.TaskID]ScoreBreakdown{
		benchmark.TaskRiskClassification: reg.Score(benchmark.TaskRiskClassification, task1Reference, task1Candidate),
		benchmark.TaskBusinessSummary:    reg.Score(benchmark.TaskBusinessSummary, task2Reference, task2Candidate),
		benchmark.TaskConsistencyCheck:   reg.Score(benchmark.TaskConsistencyCheck, task3Reference, task3Candidate),
	}

	assert.Equal(t, 82.4, breakdowns[benchmark.TaskRiskClassification].Score)
	assert.Equal(t, 100.0, breakdowns[benchmark.TaskBusinessSummary].Score)
	assert.Equal(t, 80.0, breakdowns[benchmark.TaskConsistencyCheck].Score)
	assert.Equal(t, 86.9, Composite(benchmark.DefaultWeights(), breakdowns))
}

func TestCompositeTreatsMissingTaskAsZero(t *testing.T) {
	breakdowns := map[benchmark.TaskID]ScoreBreakdown{
		benchmark.TaskBusinessSummary: {RawScore: 100},
	}
	assert.Equal(t, 30.0, Composite(benchmark.DefaultWeights(), breakdowns))
}

func TestScorersTolerateWrongPayload(t *testing.T) {
	reg := DefaultRegistry()
	wrong := benchmark.NewBusinessAnswer("x", "y", "z")
	assert.Equal(t, 0.0, reg.Score(benchmark.TaskRiskClassification, task1Reference, wrong).Score)
	assert.Equal(t, 0.0, reg.Score(benchmark.TaskConsistencyCheck, task3Reference, wrong).Score)
}

func TestLexicalMatch(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"South Africa, emerging markets", "South Africa (primary market), emerging economies", true},
		{"UEPS", "Universal Electronic Payment System (UEPS)", true},
		{"US", "United States", false},
		{"us", "business software", true},
		{"Payment", "Payments", true},
		{"tech", "Fintech", true},
		{"Semi", "Semiconductors", true},
		{"Bank", "Banking", true},
		{"Banking", "Financial Technology (Fintech)", false},
		{"", "anything", false},
		{"Payment processing", "payment processing services", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LexicalMatch(tc.a, tc.b).Matched, "%q vs %q", tc.a, tc.b)
		assert.Equal(t, tc.want, LexicalMatch(tc.b, tc.a).Matched, "%q vs %q", tc.b, tc.a)
	}
}
