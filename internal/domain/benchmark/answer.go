package benchmark

import (
	"fmt"
	"slices"
	"strings"
)

// RiskAnswer is the payload of the risk classification task.
type RiskAnswer struct {
	Categories []string `json:"categories" jsonschema_description:"Risk categories from the fixed label set that the filing discusses"`
}

// BusinessAnswer is the payload of the business summary task.
type BusinessAnswer struct {
	Industry  string `json:"industry" jsonschema_description:"Primary industry or sector"`
	Products  string `json:"products" jsonschema_description:"Main products or services"`
	Geography string `json:"geography" jsonschema_description:"Primary geographic markets"`
}

// Field returns the value of one of the three business fields.
func (b BusinessAnswer) Field(name string) string {
	switch name {
	case FieldIndustry:
		return b.Industry
	case FieldProducts:
		return b.Products
	case FieldGeography:
		return b.Geography
	}
	return ""
}

// Business summary field names, in scoring order.
const (
	FieldIndustry  = "industry"
	FieldProducts  = "products"
	FieldGeography = "geography"
)

// BusinessFields lists the business summary fields in scoring order.
var BusinessFields = []string{FieldIndustry, FieldProducts, FieldGeography}

// ConsistencyAnswer is the payload of the cross-section consistency task.
type ConsistencyAnswer struct {
	RisksFoundIn1A    []string `json:"risks_found_in_1a" jsonschema_description:"Key risks identified in Item 1A (Risk Factors)"`
	RisksDiscussedIn7 []string `json:"risks_discussed_in_7" jsonschema_description:"Subset of those risks that Item 7 (MD&A) also discusses"`
}

// Answer is a task-tagged structured payload. Exactly the payload matching
// Task is set. Reference answers and candidate answers share this shape.
type Answer struct {
	Task        TaskID             `json:"task"`
	Risk        *RiskAnswer        `json:"risk_classification,omitempty"`
	Business    *BusinessAnswer    `json:"business_summary,omitempty"`
	Consistency *ConsistencyAnswer `json:"consistency_check,omitempty"`
}

// NewRiskAnswer builds a risk classification answer.
func NewRiskAnswer(categories ...string) Answer {
	return Answer{Task: TaskRiskClassification, Risk: &RiskAnswer{Categories: nonNil(categories)}}
}

// NewBusinessAnswer builds a business summary answer.
func NewBusinessAnswer(industry, products, geography string) Answer {
	return Answer{Task: TaskBusinessSummary, Business: &BusinessAnswer{Industry: industry, Products: products, Geography: geography}}
}

// NewConsistencyAnswer builds a consistency answer.
func NewConsistencyAnswer(found, discussed []string) Answer {
	return Answer{Task: TaskConsistencyCheck, Consistency: &ConsistencyAnswer{
		RisksFoundIn1A:    nonNil(found),
		RisksDiscussedIn7: nonNil(discussed),
	}}
}

// Validate checks that the answer carries the payload its task requires and no other.
func (a Answer) Validate() error {
	if !a.Task.Valid() {
		return fmt.Errorf("unknown task %q", a.Task)
	}
	set := 0
	for _, present := range []bool{a.Risk != nil, a.Business != nil, a.Consistency != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("answer for %s must carry exactly one payload, got %d", a.Task, set)
	}
	switch a.Task {
	case TaskRiskClassification:
		if a.Risk == nil {
			return fmt.Errorf("answer for %s is missing its payload", a.Task)
		}
	case TaskBusinessSummary:
		if a.Business == nil {
			return fmt.Errorf("answer for %s is missing its payload", a.Task)
		}
	case TaskConsistencyCheck:
		if a.Consistency == nil {
			return fmt.Errorf("answer for %s is missing its payload", a.Task)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can never alias stored answers.
func (a Answer) Clone() Answer {
	out := Answer{Task: a.Task}
	if a.Risk != nil {
		out.Risk = &RiskAnswer{Categories: slices.Clone(nonNil(a.Risk.Categories))}
	}
	if a.Business != nil {
		b := *a.Business
		out.Business = &b
	}
	if a.Consistency != nil {
		out.Consistency = &ConsistencyAnswer{
			RisksFoundIn1A:    slices.Clone(nonNil(a.Consistency.RisksFoundIn1A)),
			RisksDiscussedIn7: slices.Clone(nonNil(a.Consistency.RisksDiscussedIn7)),
		}
	}
	return out
}

// Normalized trims whitespace, drops empty list entries and replaces nil lists
// with empty ones, so the persisted form always validates.
func (a Answer) Normalized() Answer {
	out := a.Clone()
	if out.Risk != nil {
		out.Risk.Categories = cleanList(out.Risk.Categories)
	}
	if out.Business != nil {
		out.Business.Industry = strings.TrimSpace(out.Business.Industry)
		out.Business.Products = strings.TrimSpace(out.Business.Products)
		out.Business.Geography = strings.TrimSpace(out.Business.Geography)
	}
	if out.Consistency != nil {
		out.Consistency.RisksFoundIn1A = cleanList(out.Consistency.RisksFoundIn1A)
		out.Consistency.RisksDiscussedIn7 = cleanList(out.Consistency.RisksDiscussedIn7)
	}
	return out
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
