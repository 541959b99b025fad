package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbench/internal/domain/benchmark"
)

func TestParseTextRiskWrappers(t *testing.T) {
	for _, text := range []string{
		`{"risk_classification": ["Market Risk"]}`,
		`{"categories": ["Market Risk"]}`,
		`{"risk_categories": ["Market Risk"]}`,
		`{"risk_classification": {"categories": ["Market Risk"]}}`,
		`["Market Risk"]`,
	} {
		answer, err := ParseText(benchmark.TaskRiskClassification, text)
		require.NoError(t, err, text)
		assert.Equal(t, []string{"Market Risk"}, answer.Risk.Categories, text)
	}
}

func TestParseTextBusinessMissingFieldsAreEmpty(t *testing.T) {
	answer, err := ParseText(benchmark.TaskBusinessSummary, `{"business_summary": {"industry": "Retail"}}`)
	require.NoError(t, err)
	assert.Equal(t, "Retail", answer.Business.Industry)
	assert.Equal(t, "", answer.Business.Products)

	_, err = ParseText(benchmark.TaskBusinessSummary, `{"summary": "n/a"}`)
	assert.Error(t, err)

	_, err = ParseText(benchmark.TaskBusinessSummary, `{"industry": 42}`)
	assert.Error(t, err)
}

func TestParseTextConsistencyShapes(t *testing.T) {
	answer, err := ParseText(benchmark.TaskConsistencyCheck, `{"consistency_check": ["Liquidity", "Currency"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Liquidity", "Currency"}, answer.Consistency.RisksDiscussedIn7)
	assert.Empty(t, answer.Consistency.RisksFoundIn1A)

	answer, err = ParseText(benchmark.TaskConsistencyCheck,
		`{"consistency_check": {"risks_found_in_1a": ["A", "B"], "risks_discussed_in_7": ["A"]}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, answer.Consistency.RisksFoundIn1A)

	answer, err = ParseText(benchmark.TaskConsistencyCheck, `{"consistent_risks": ["A"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, answer.Consistency.RisksDiscussedIn7)

	_, err = ParseText(benchmark.TaskConsistencyCheck, `{"risks_discussed_in_7": [1, 2]}`)
	assert.Error(t, err)
}

func TestParseTextNoJSON(t *testing.T) {
	_, err := ParseText(benchmark.TaskRiskClassification, "")
	assert.Error(t, err)
}
