package benchmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalCategoryIsCaseInsensitive(t *testing.T) {
	got, ok := CanonicalCategory("  cybersecurity RISK ")
	require.True(t, ok)
	assert.Equal(t, "Cybersecurity Risk", got)

	_, ok = CanonicalCategory("Reputational Risk")
	assert.False(t, ok)
	assert.Len(t, RiskCategories, 12)
}

func TestWeightsValidate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{RiskClassification: 0.5, BusinessSummary: 0.3, ConsistencyCheck: 0.3}.Validate())
	assert.Error(t, Weights{RiskClassification: 1.2, BusinessSummary: -0.2}.Validate())
}

func TestParseTaskID(t *testing.T) {
	task, err := ParseTaskID("task2")
	require.NoError(t, err)
	assert.Equal(t, TaskBusinessSummary, task)

	_, err = ParseTaskID("task9")
	assert.Error(t, err)
}

func TestAnswerValidateRequiresMatchingPayload(t *testing.T) {
	require.NoError(t, ValidateAnswer(NewRiskAnswer("Market Risk")))
	require.NoError(t, ValidateAnswer(NewBusinessAnswer("Fintech", "UEPS", "South Africa")))
	require.NoError(t, ValidateAnswer(NewConsistencyAnswer([]string{"liquidity"}, nil)))

	mismatched := Answer{Task: TaskBusinessSummary, Risk: &RiskAnswer{Categories: []string{}}}
	assert.Error(t, ValidateAnswer(mismatched))
	assert.Error(t, ValidateAnswer(Answer{Task: "task9"}))
}

func TestValidateAnswerJSONRejectsBrokenEntries(t *testing.T) {
	assert.NoError(t, ValidateAnswerJSON([]byte(`{"task":"risk_classification","risk_classification":{"categories":["Market Risk"]}}`)))
	assert.Error(t, ValidateAnswerJSON([]byte(`{"task":"risk_classification"}`)))
	assert.Error(t, ValidateAnswerJSON([]byte(`{"task":"business_summary","business_summary":{"industry":"x"}}`)))
	assert.Error(t, ValidateAnswerJSON([]byte(`{"task":"risk_classification","risk_classification":{"categories":"Market Risk"}}`)))
	assert.Error(t, ValidateAnswerJSON([]byte(`not json`)))
}

func TestValidatePayload(t *testing.T) {
	var payload any
	require.NoError(t, json.Unmarshal([]byte(`{"risks_found_in_1a":["a"],"risks_discussed_in_7":[]}`), &payload))
	assert.NoError(t, ValidatePayload(TaskConsistencyCheck, payload))
	assert.Error(t, ValidatePayload(TaskRiskClassification, payload))
}

func TestCloneDoesNotAlias(t *testing.T) {
	original := NewRiskAnswer("Market Risk")
	clone := original.Clone()
	clone.Risk.Categories[0] = "Financial Risk"
	assert.Equal(t, "Market Risk", original.Risk.Categories[0])
}

func TestNormalizedDropsBlankEntries(t *testing.T) {
	a := Answer{Task: TaskConsistencyCheck, Consistency: &ConsistencyAnswer{RisksFoundIn1A: []string{" liquidity ", ""}}}
	n := a.Normalized()
	assert.Equal(t, []string{"liquidity"}, n.Consistency.RisksFoundIn1A)
	assert.NotNil(t, n.Consistency.RisksDiscussedIn7)
	assert.NoError(t, ValidateAnswer(n))
}

func TestPromptSchemaListsPayloadFields(t *testing.T) {
	assert.Contains(t, PromptSchema(TaskRiskClassification), `"categories"`)
	assert.Contains(t, PromptSchema(TaskBusinessSummary), `"geography"`)
	assert.Contains(t, PromptSchema(TaskConsistencyCheck), `"risks_discussed_in_7"`)
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("resolve: %w", NewError(KindSectionMissing, TaskBusinessSummary, errors.New("section_1 absent")))

	assert.ErrorIs(t, err, ErrSectionMissing)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindSectionMissing, kind)
	assert.False(t, IsFatal(kind))
	assert.True(t, IsFatal(KindGenerationFailure))
	assert.Contains(t, err.Error(), "business_summary")

	kind, ok = KindOf(fmt.Errorf("wrapped: %w", ErrDocumentNotFound))
	require.True(t, ok)
	assert.Equal(t, KindDocumentNotFound, kind)
}
