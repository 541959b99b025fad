package reference

import (
	"encoding/json"
	"fmt"
	"strings"

	"finbench/internal/domain/benchmark"
	"finbench/internal/utils/textutil"
)

// Section budgets, in runes, for generator prompts.
const (
	riskSectionBudget          = 12000
	businessSectionBudget      = 10000
	consistency1ASectionBudget = 8000
	consistency7SectionBudget  = 8000

	// maxReferenceRisks caps the section 1A risks a consistency reference keeps.
	maxReferenceRisks = 5
)

const (
	riskSystemPrompt       = "You are a financial risk analyst. Classify risk factors accurately. Return only valid JSON."
	businessSystemPrompt   = "You are a business analyst. Extract key business information accurately. Return only valid JSON."
	riskTopicsSystemPrompt = "Extract risk topics. Return only valid JSON."
	discussionSystemPrompt = "Identify which risks are discussed. Return only valid JSON."
)

func riskPrompt(section string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following Risk Factors section from a 10-K filing and classify the main risk categories.\n\n")
	sb.WriteString("Risk Factors Text:\n")
	sb.WriteString(textutil.Excerpt(section, riskSectionBudget))
	sb.WriteString("\n\nIdentify and list the PRIMARY risk categories mentioned. Use only these categories:\n")
	for _, label := range benchmark.RiskCategories {
		sb.WriteString("- ")
		sb.WriteString(label)
		sb.WriteString("\n")
	}
	sb.WriteString("\nReturn ONLY a JSON object listing the categories found in this text.\n")
	sb.WriteString(`Example format: {"categories": ["Market Risk", "Operational Risk"]}`)
	sb.WriteString("\n")
	return sb.String()
}

func businessPrompt(section string) string {
	return fmt.Sprintf(`Analyze this business description from a 10-K filing and extract key information.

Business Description:
%s

Extract:
1. Industry/sector
2. Main products or services
3. Geographic markets

Return as JSON matching this schema:
%s
Example format: {"industry": "...", "products": "...", "geography": "..."}
`, textutil.Excerpt(section, businessSectionBudget), benchmark.PromptSchema(benchmark.TaskBusinessSummary))
}

func riskTopicsPrompt(section1A string) string {
	return fmt.Sprintf(`List the main risk topics mentioned in this Risk Factors section, most significant first:

%s

Return as a JSON object:
{"risks": ["risk topic 1", "risk topic 2", ...]}
`, textutil.Excerpt(section1A, consistency1ASectionBudget))
}

func discussionPrompt(risks []string, section7 string) string {
	list, _ := json.Marshal(risks)
	return fmt.Sprintf(`Check if the following risks are discussed in this MD&A section:

Risks to check: %s

MD&A text:
%s

Return JSON with the risks that ARE discussed, using the wording from the list above:
{"discussed_risks": ["risk 1", "risk 2", ...]}
`, list, textutil.Excerpt(section7, consistency7SectionBudget))
}
