package benchmark

import (
	"encoding/json"
	"fmt"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const stringListSchema = `{"type": "array", "items": {"type": "string"}}`

var payloadSchemas = map[TaskID]string{
	TaskRiskClassification: `{
  "type": "object",
  "required": ["categories"],
  "properties": {"categories": ` + stringListSchema + `}
}`,
	TaskBusinessSummary: `{
  "type": "object",
  "required": ["industry", "products", "geography"],
  "properties": {
    "industry": {"type": "string"},
    "products": {"type": "string"},
    "geography": {"type": "string"}
  }
}`,
	TaskConsistencyCheck: `{
  "type": "object",
  "required": ["risks_found_in_1a", "risks_discussed_in_7"],
  "properties": {
    "risks_found_in_1a": ` + stringListSchema + `,
    "risks_discussed_in_7": ` + stringListSchema + `
  }
}`,
}

// answerSchema validates the persisted, task-tagged form of an answer.
var answerSchema = `{
  "type": "object",
  "required": ["task"],
  "additionalProperties": false,
  "properties": {
    "task": {"enum": ["risk_classification", "business_summary", "consistency_check"]},
    "risk_classification": ` + payloadSchemas[TaskRiskClassification] + `,
    "business_summary": ` + payloadSchemas[TaskBusinessSummary] + `,
    "consistency_check": ` + payloadSchemas[TaskConsistencyCheck] + `
  },
  "allOf": [
    {"if": {"properties": {"task": {"const": "risk_classification"}}}, "then": {"required": ["risk_classification"]}},
    {"if": {"properties": {"task": {"const": "business_summary"}}}, "then": {"required": ["business_summary"]}},
    {"if": {"properties": {"task": {"const": "consistency_check"}}}, "then": {"required": ["consistency_check"]}}
  ]
}`

type schemaRegistry struct {
	once     sync.Once
	initErr  error
	answer   *jsonschema.Schema
	payloads map[TaskID]*jsonschema.Schema
}

var schemas schemaRegistry

func initSchemas() error {
	schemas.once.Do(func() {
		answer, err := jsonschema.CompileString("answer.json", answerSchema)
		if err != nil {
			schemas.initErr = fmt.Errorf("compile answer schema: %w", err)
			return
		}
		schemas.answer = answer

		schemas.payloads = make(map[TaskID]*jsonschema.Schema, len(payloadSchemas))
		for task, raw := range payloadSchemas {
			compiled, err := jsonschema.CompileString(string(task)+".json", raw)
			if err != nil {
				schemas.initErr = fmt.Errorf("compile %s schema: %w", task, err)
				return
			}
			schemas.payloads[task] = compiled
		}
	})
	return schemas.initErr
}

// ValidateAnswerJSON validates raw against the persisted answer schema.
func ValidateAnswerJSON(raw []byte) error {
	if err := initSchemas(); err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schemas.answer.Validate(doc)
}

// ValidateAnswer validates a in its serialized form and checks payload/task agreement.
func ValidateAnswer(a Answer) error {
	if err := a.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return ValidateAnswerJSON(raw)
}

// ValidatePayload validates a decoded task payload (the object inside the envelope).
func ValidatePayload(task TaskID, payload any) error {
	if err := initSchemas(); err != nil {
		return err
	}
	schema, ok := schemas.payloads[task]
	if !ok {
		return fmt.Errorf("unknown task %q", task)
	}
	return schema.Validate(payload)
}

var (
	promptSchemaOnce sync.Once
	promptSchemas    map[TaskID]string
)

// PromptSchema returns the JSON Schema of task's payload, reflected from the Go
// types, for embedding in prompts.
func PromptSchema(task TaskID) string {
	promptSchemaOnce.Do(func() {
		reflector := &invopop.Reflector{Anonymous: true, DoNotReference: true, ExpandedStruct: true}
		targets := map[TaskID]any{
			TaskRiskClassification: &RiskAnswer{},
			TaskBusinessSummary:    &BusinessAnswer{},
			TaskConsistencyCheck:   &ConsistencyAnswer{},
		}
		promptSchemas = make(map[TaskID]string, len(targets))
		for id, target := range targets {
			schema := reflector.Reflect(target)
			schema.Version = ""
			raw, err := json.Marshal(schema)
			if err != nil {
				promptSchemas[id] = payloadSchemas[id]
				continue
			}
			promptSchemas[id] = string(raw)
		}
	})
	return promptSchemas[task]
}
