package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
	"finbench/internal/utils/textutil"
)

// Section budgets, in runes, for candidate prompts.
const (
	riskPromptBudget          = 12000
	businessPromptBudget      = 10000
	consistency1APromptBudget = 12000
	consistency7PromptBudget  = 15000
)

// buildPrompt renders the candidate prompt for task. The consistency prompt
// names the reference's section 1A risks so every candidate checks the
// same list.
func buildPrompt(task benchmark.TaskID, sections map[corpus.Section]string, ref benchmark.Answer) (string, error) {
	switch task {
	case benchmark.TaskRiskClassification:
		return riskTaskPrompt(sections[corpus.SectionRiskFactors]), nil
	case benchmark.TaskBusinessSummary:
		return businessTaskPrompt(sections[corpus.SectionBusiness]), nil
	case benchmark.TaskConsistencyCheck:
		var risks []string
		if ref.Consistency != nil {
			risks = ref.Consistency.RisksFoundIn1A
		}
		return consistencyTaskPrompt(sections[corpus.SectionRiskFactors], sections[corpus.SectionMDA], risks), nil
	}
	return "", fmt.Errorf("no prompt for task %q", task)
}

func riskTaskPrompt(section1A string) string {
	var sb strings.Builder
	sb.WriteString("TASK 1: Risk Classification\n\n")
	sb.WriteString("Analyze the following Risk Factors section and classify the main risk categories.\n\n")
	sb.WriteString("Risk Factors (Section 1A):\n")
	sb.WriteString(textutil.Excerpt(section1A, riskPromptBudget))
	sb.WriteString("\n\nChoose from the following categories. If a risk doesn't fit, do not include it.\n")
	sb.WriteString("Categories: ")
	sb.WriteString(strings.Join(benchmark.RiskCategories, ", "))
	sb.WriteString("\n\nThe risk_classification object must match this schema:\n")
	sb.WriteString(benchmark.PromptSchema(benchmark.TaskRiskClassification))
	sb.WriteString("\n")
	sb.WriteString(`Return JSON: {"risk_classification": {"categories": ["category1", "category2", ...]}}`)
	sb.WriteString("\n")
	return sb.String()
}

func businessTaskPrompt(section1 string) string {
	return fmt.Sprintf(`TASK 2: Business Summary

Analyze this business description and extract key information:

Business Description (Section 1):
%s

Extract: industry/sector, main products/services, geographic markets

The business_summary object must match this schema:
%s
Return JSON: {"business_summary": {"industry": "...", "products": "...", "geography": "..."}}
`, textutil.Excerpt(section1, businessPromptBudget), benchmark.PromptSchema(benchmark.TaskBusinessSummary))
}

func consistencyTaskPrompt(section1A, section7 string, risks []string) string {
	if risks == nil {
		risks = []string{}
	}
	list, _ := json.Marshal(risks)
	return fmt.Sprintf(`TASK 3: Consistency Check

Check which of these risks mentioned in Section 1A are actually discussed in Section 7 (MD&A):

Risks from Section 1A: %s

Section 1A (Risk Factors) text:
%s

Section 7 (MD&A) text:
%s

Which risks ARE discussed in Section 7?

The consistency_check object must match this schema:
%s
Return JSON: {"consistency_check": {"risks_found_in_1a": [...], "risks_discussed_in_7": [...]}}
`, list,
		textutil.Excerpt(section1A, consistency1APromptBudget),
		textutil.Excerpt(section7, consistency7PromptBudget),
		benchmark.PromptSchema(benchmark.TaskConsistencyCheck))
}
