package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
)

func longSection(r rune) string {
	return strings.Repeat(string(r), 30000)
}

func TestPromptsTruncateSectionsToBudget(t *testing.T) {
	sections := map[corpus.Section]string{
		corpus.SectionRiskFactors: longSection('ж'),
		corpus.SectionBusiness:    longSection('ф'),
		corpus.SectionMDA:         longSection('щ'),
	}
	ref := benchmark.NewConsistencyAnswer([]string{"Liquidity"}, []string{"Liquidity"})

	cases := []struct {
		task   benchmark.TaskID
		counts map[string]int
	}{
		{benchmark.TaskRiskClassification, map[string]int{"ж": 12000, "ф": 0, "щ": 0}},
		{benchmark.TaskBusinessSummary, map[string]int{"ж": 0, "ф": 10000, "щ": 0}},
		{benchmark.TaskConsistencyCheck, map[string]int{"ж": 12000, "ф": 0, "щ": 15000}},
	}
	for _, tc := range cases {
		t.Run(string(tc.task), func(t *testing.T) {
			prompt, err := buildPrompt(tc.task, sections, ref)
			require.NoError(t, err)
			for r, want := range tc.counts {
				assert.Equal(t, want, strings.Count(prompt, r), "runes of %s", r)
			}
			assert.Contains(t, prompt, "...[TRUNCATED]")
		})
	}
}

func TestPromptsKeepShortSectionsWhole(t *testing.T) {
	sections := map[corpus.Section]string{
		corpus.SectionRiskFactors: "  Currency risk is material.  ",
		corpus.SectionBusiness:    "We sell payment terminals.",
		corpus.SectionMDA:         "Currency moved against us.",
	}
	prompt, err := buildPrompt(benchmark.TaskRiskClassification, sections, benchmark.Answer{})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Risk Factors (Section 1A):\nCurrency risk is material.\n")
	assert.NotContains(t, prompt, "[TRUNCATED]")
}

func TestEveryPromptEmbedsItsSchema(t *testing.T) {
	sections := map[corpus.Section]string{
		corpus.SectionRiskFactors: "risks",
		corpus.SectionBusiness:    "business",
		corpus.SectionMDA:         "discussion",
	}
	for _, task := range benchmark.AllTasks {
		prompt, err := buildPrompt(task, sections, benchmark.Answer{})
		require.NoError(t, err)
		schema := benchmark.PromptSchema(task)
		require.NotEmpty(t, schema)
		assert.Contains(t, prompt, schema, "task %s", task)
	}
}

func TestBuildPromptRejectsUnknownTask(t *testing.T) {
	_, err := buildPrompt(benchmark.TaskID("sentiment"), nil, benchmark.Answer{})
	assert.Error(t, err)
}
