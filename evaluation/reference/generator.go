package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"finbench/evaluation/scoring"
	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
	fberrors "finbench/internal/errors"
	"finbench/internal/jsonutil"
	"finbench/internal/llm"
	"finbench/internal/logging"
)

// Generator produces a reference answer for one task from section text.
// It may fail transiently; retrying is the caller's decision.
type Generator interface {
	Generate(ctx context.Context, task benchmark.TaskID, sections map[corpus.Section]string) (benchmark.Answer, error)
}

// RequiredSections lists the sections each task reads.
var RequiredSections = map[benchmark.TaskID][]corpus.Section{
	benchmark.TaskRiskClassification: {corpus.SectionRiskFactors},
	benchmark.TaskBusinessSummary:    {corpus.SectionBusiness},
	benchmark.TaskConsistencyCheck:   {corpus.SectionRiskFactors, corpus.SectionMDA},
}

// Wrapper keys models use for each payload, in lookup order.
var (
	categoryKeys  = []string{"categories", "risk_categories", "risks", "risk_classification"}
	riskTopicKeys = []string{"risks", "risk_topics", "risks_found_in_1a", "topics"}
	discussedKeys = []string{"discussed_risks", "risks_discussed_in_7", "discussed"}
)

// LLMGenerator asks a Completer for reference answers.
type LLMGenerator struct {
	completer   llm.Completer
	temperature float64
	maxTokens   int
	logger      logging.Logger
}

// GeneratorOption configures an LLMGenerator.
type GeneratorOption func(*LLMGenerator)

// WithTemperature sets the sampling temperature (default 0.1).
func WithTemperature(t float64) GeneratorOption {
	return func(g *LLMGenerator) { g.temperature = t }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *LLMGenerator) { g.maxTokens = n }
}

// WithGeneratorLogger sets the generator logger.
func WithGeneratorLogger(logger logging.Logger) GeneratorOption {
	return func(g *LLMGenerator) { g.logger = logging.OrNop(logger) }
}

// NewLLMGenerator builds a generator over completer.
func NewLLMGenerator(completer llm.Completer, opts ...GeneratorOption) *LLMGenerator {
	g := &LLMGenerator{
		completer:   completer,
		temperature: 0.1,
		logger:      logging.NewComponentLogger("ReferenceGenerator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the underlying model name.
func (g *LLMGenerator) Model() string { return g.completer.Model() }

// Generate implements Generator. Unparsable or schema-invalid output is a
// permanent GenerationFailure; upstream errors keep their retry class.
func (g *LLMGenerator) Generate(ctx context.Context, task benchmark.TaskID, sections map[corpus.Section]string) (benchmark.Answer, error) {
	for _, section := range RequiredSections[task] {
		if strings.TrimSpace(sections[section]) == "" {
			return benchmark.Answer{}, benchmark.NewError(benchmark.KindSectionMissing, task,
				fmt.Errorf("%s is required", section.Title()))
		}
	}

	start := time.Now()
	var (
		answer benchmark.Answer
		err    error
	)
	switch task {
	case benchmark.TaskRiskClassification:
		answer, err = g.generateRisk(ctx, sections[corpus.SectionRiskFactors])
	case benchmark.TaskBusinessSummary:
		answer, err = g.generateBusiness(ctx, sections[corpus.SectionBusiness])
	case benchmark.TaskConsistencyCheck:
		answer, err = g.generateConsistency(ctx, sections[corpus.SectionRiskFactors], sections[corpus.SectionMDA])
	default:
		return benchmark.Answer{}, benchmark.NewError(benchmark.KindInvalidRequest, task, fmt.Errorf("unknown task"))
	}
	if err != nil {
		return benchmark.Answer{}, err
	}

	answer = answer.Normalized()
	if err := benchmark.ValidateAnswer(answer); err != nil {
		return benchmark.Answer{}, malformed(task, err)
	}
	logging.FromContext(ctx, g.logger).Debug("generated %s reference in %s", task, time.Since(start).Round(time.Millisecond))
	return answer, nil
}

func (g *LLMGenerator) generateRisk(ctx context.Context, section string) (benchmark.Answer, error) {
	obj, err := g.completeObject(ctx, benchmark.TaskRiskClassification, riskSystemPrompt, riskPrompt(section))
	if err != nil {
		return benchmark.Answer{}, err
	}
	labels, ok := stringList(obj, categoryKeys)
	if !ok {
		return benchmark.Answer{}, malformed(benchmark.TaskRiskClassification, fmt.Errorf("no category list in response"))
	}

	seen := make(map[string]struct{}, len(labels))
	categories := make([]string, 0, len(labels))
	var dropped []string
	for _, label := range labels {
		canonical, ok := benchmark.CanonicalCategory(label)
		if !ok {
			dropped = append(dropped, label)
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		categories = append(categories, canonical)
	}
	if len(dropped) > 0 {
		logging.FromContext(ctx, g.logger).Warn("dropped labels outside the category set: %s", strings.Join(dropped, ", "))
	}
	return benchmark.NewRiskAnswer(categories...), nil
}

func (g *LLMGenerator) generateBusiness(ctx context.Context, section string) (benchmark.Answer, error) {
	obj, err := g.completeObject(ctx, benchmark.TaskBusinessSummary, businessSystemPrompt, businessPrompt(section))
	if err != nil {
		return benchmark.Answer{}, err
	}
	if nested, ok := obj["business_summary"].(map[string]any); ok {
		obj = nested
	}

	values := make(map[string]string, len(benchmark.BusinessFields))
	found := 0
	for _, field := range benchmark.BusinessFields {
		v := strings.TrimSpace(scalarString(obj[field]))
		if v == "" {
			v = "N/A"
		} else {
			found++
		}
		values[field] = v
	}
	if found == 0 {
		return benchmark.Answer{}, malformed(benchmark.TaskBusinessSummary, fmt.Errorf("no business fields in response"))
	}
	return benchmark.NewBusinessAnswer(values[benchmark.FieldIndustry], values[benchmark.FieldProducts], values[benchmark.FieldGeography]), nil
}

// generateConsistency lists the top section 1A risks, then asks which of them
// section 7 discusses. Discussed entries are mapped back onto the 1A wording,
// so the discussed list is always a subset of the found list.
func (g *LLMGenerator) generateConsistency(ctx context.Context, section1A, section7 string) (benchmark.Answer, error) {
	task := benchmark.TaskConsistencyCheck
	obj, err := g.completeObject(ctx, task, riskTopicsSystemPrompt, riskTopicsPrompt(section1A))
	if err != nil {
		return benchmark.Answer{}, err
	}
	risks, ok := stringList(obj, riskTopicKeys)
	if !ok {
		return benchmark.Answer{}, malformed(task, fmt.Errorf("no risk list in response"))
	}
	risks = dedupe(risks)
	if len(risks) > maxReferenceRisks {
		risks = risks[:maxReferenceRisks]
	}
	if len(risks) == 0 {
		return benchmark.NewConsistencyAnswer(nil, nil), nil
	}

	obj, err = g.completeObject(ctx, task, discussionSystemPrompt, discussionPrompt(risks, section7))
	if err != nil {
		return benchmark.Answer{}, err
	}
	claimed, ok := stringList(obj, discussedKeys)
	if !ok {
		return benchmark.Answer{}, malformed(task, fmt.Errorf("no discussed risk list in response"))
	}

	discussed := make([]string, 0, len(risks))
	for _, risk := range risks {
		for _, claim := range claimed {
			if scoring.LexicalMatch(risk, claim).Matched {
				discussed = append(discussed, risk)
				break
			}
		}
	}
	return benchmark.NewConsistencyAnswer(risks, discussed), nil
}

func (g *LLMGenerator) completeObject(ctx context.Context, task benchmark.TaskID, system, prompt string) (map[string]any, error) {
	resp, err := g.completer.Complete(ctx, llm.Request{
		System:      system,
		Prompt:      prompt,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s reference: %w", task, err)
	}

	raw, err := jsonutil.Extract(resp.Content)
	if err != nil {
		return nil, malformed(task, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, malformed(task, err)
	}
	switch v := decoded.(type) {
	case map[string]any:
		return v, nil
	case []any:
		// A bare array stands for the task's primary list.
		return map[string]any{"categories": v, "risks": v, "discussed_risks": v}, nil
	}
	return nil, malformed(task, fmt.Errorf("response is not a JSON object"))
}

func malformed(task benchmark.TaskID, err error) error {
	return fberrors.NewPermanentError(
		benchmark.NewError(benchmark.KindGenerationFailure, task, err),
		"reference generator returned an unusable answer",
	)
}

// stringList returns the first list found under keys. Non-string items are
// stringified; nested objects with a "name" or "risk" field use that field.
func stringList(obj map[string]any, keys []string) ([]string, bool) {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := strings.TrimSpace(scalarString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	case map[string]any:
		for _, k := range []string{"name", "risk", "category", "topic"} {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
	}
	return ""
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		k := strings.ToLower(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
