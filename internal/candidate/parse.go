package candidate

import (
	"encoding/json"
	"fmt"
	"strings"

	"finbench/internal/domain/benchmark"
	"finbench/internal/jsonutil"
)

// Wrapper keys accepted around each task's payload.
var (
	riskWrapperKeys        = []string{"risk_classification", "risk_categories", "categories", "risks"}
	businessWrapperKeys    = []string{"business_summary"}
	consistencyWrapperKeys = []string{"consistency_check", "consistent_risks"}
)

// ParseText extracts a task answer from free-form candidate text.
func ParseText(task benchmark.TaskID, text string) (benchmark.Answer, error) {
	raw, err := jsonutil.Extract(text)
	if err != nil {
		return benchmark.Answer{}, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return benchmark.Answer{}, err
	}
	return ParseValue(task, decoded)
}

// ParseValue maps a decoded JSON value onto the task's payload, unwrapping
// the accepted wrapper keys, and validates it against the payload schema.
// Missing business fields become empty strings (scored as unmatched); a
// payload with none of the task's fields is an error.
func ParseValue(task benchmark.TaskID, value any) (benchmark.Answer, error) {
	var payload map[string]any
	switch task {
	case benchmark.TaskRiskClassification:
		list, ok := riskList(value)
		if !ok {
			return benchmark.Answer{}, fmt.Errorf("no risk category list in answer")
		}
		payload = map[string]any{"categories": list}

	case benchmark.TaskBusinessSummary:
		obj, ok := value.(map[string]any)
		if !ok {
			return benchmark.Answer{}, fmt.Errorf("business summary must be a JSON object")
		}
		obj = unwrap(obj, businessWrapperKeys)
		payload = make(map[string]any, len(benchmark.BusinessFields))
		present := 0
		for _, field := range benchmark.BusinessFields {
			v, ok := obj[field]
			if !ok || v == nil {
				payload[field] = ""
				continue
			}
			present++
			payload[field] = flattenField(v)
		}
		if present == 0 {
			return benchmark.Answer{}, fmt.Errorf("business summary has none of %s", strings.Join(benchmark.BusinessFields, ", "))
		}

	case benchmark.TaskConsistencyCheck:
		found, discussed, ok := consistencyLists(value)
		if !ok {
			return benchmark.Answer{}, fmt.Errorf("no consistency lists in answer")
		}
		payload = map[string]any{"risks_found_in_1a": found, "risks_discussed_in_7": discussed}

	default:
		return benchmark.Answer{}, fmt.Errorf("unknown task %q", task)
	}

	if err := benchmark.ValidatePayload(task, payload); err != nil {
		return benchmark.Answer{}, fmt.Errorf("answer does not match the %s schema: %w", task, err)
	}
	return decodePayload(task, payload)
}

func riskList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case map[string]any:
		for _, key := range riskWrapperKeys {
			inner, ok := v[key]
			if !ok {
				continue
			}
			if list, ok := riskList(inner); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func consistencyLists(value any) (found, discussed []any, ok bool) {
	switch v := value.(type) {
	case []any:
		// A bare list answers the question the prompt asks: which risks are discussed.
		return []any{}, v, true
	case map[string]any:
		for _, key := range consistencyWrapperKeys {
			if inner, exists := v[key]; exists {
				if f, d, ok := consistencyLists(inner); ok {
					return f, d, true
				}
			}
		}
		f, hasFound := v["risks_found_in_1a"]
		d, hasDiscussed := v["risks_discussed_in_7"]
		if !hasFound && !hasDiscussed {
			return nil, nil, false
		}
		return listOrEmpty(f), listOrEmpty(d), true
	}
	return nil, nil, false
}

func listOrEmpty(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	if v == nil {
		return []any{}
	}
	// Leave non-list values for schema validation to reject.
	return []any{v}
}

// flattenField joins a list of strings into one value ("a, b").
func flattenField(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return v
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func unwrap(obj map[string]any, keys []string) map[string]any {
	for _, key := range keys {
		if inner, ok := obj[key].(map[string]any); ok {
			return inner
		}
	}
	return obj
}

func decodePayload(task benchmark.TaskID, payload map[string]any) (benchmark.Answer, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return benchmark.Answer{}, err
	}
	answer := benchmark.Answer{Task: task}
	switch task {
	case benchmark.TaskRiskClassification:
		answer.Risk = &benchmark.RiskAnswer{}
		err = json.Unmarshal(raw, answer.Risk)
	case benchmark.TaskBusinessSummary:
		answer.Business = &benchmark.BusinessAnswer{}
		err = json.Unmarshal(raw, answer.Business)
	case benchmark.TaskConsistencyCheck:
		answer.Consistency = &benchmark.ConsistencyAnswer{}
		err = json.Unmarshal(raw, answer.Consistency)
	}
	if err != nil {
		return benchmark.Answer{}, err
	}
	return answer.Normalized(), nil
}
