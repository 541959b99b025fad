// Package orchestrator drives one evaluation run: it picks the filing,
// resolves the reference answers, exchanges the three task prompts with the
// candidate, grades the answers and assembles the report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"finbench/evaluation/reference"
	"finbench/evaluation/scoring"
	"finbench/internal/candidate"
	"finbench/internal/corpus"
	"finbench/internal/domain/benchmark"
	fberrors "finbench/internal/errors"
	"finbench/internal/logging"
	"finbench/internal/observability"
	id "finbench/internal/utils/id"
)

// DefaultRole is the participant role graded by the harness.
const DefaultRole = "analyst"

// ReferenceStore resolves reference answers, generating on first demand.
type ReferenceStore interface {
	GetOrCreate(ctx context.Context, key reference.Key, generate reference.GenerateFunc) (benchmark.Answer, error)
}

// Orchestrator runs evaluations. It is safe for concurrent use; runs share
// only the reference store.
type Orchestrator struct {
	corpus    corpus.Accessor
	store     ReferenceStore
	generator reference.Generator
	candidate candidate.Asker
	scorers   scoring.Registry

	weights benchmark.Weights
	role    string
	years   []int
	retry   fberrors.RetryConfig

	rngMu sync.Mutex
	rng   *rand.Rand

	logger  logging.Logger
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
	now     func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithWeights overrides the composite weights.
func WithWeights(w benchmark.Weights) Option {
	return func(o *Orchestrator) { o.weights = w }
}

// WithRole sets the participant role whose endpoint is evaluated.
func WithRole(role string) Option {
	return func(o *Orchestrator) {
		if role != "" {
			o.role = role
		}
	}
}

// WithYears restricts requests to the given fiscal years.
func WithYears(years []int) Option {
	return func(o *Orchestrator) { o.years = slices.Clone(years) }
}

// WithRetryConfig sets the retry policy for reference generation.
func WithRetryConfig(cfg fberrors.RetryConfig) Option {
	return func(o *Orchestrator) { o.retry = cfg }
}

// WithRand sets the source used to pick a random filing.
func WithRand(r *rand.Rand) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.rng = r
		}
	}
}

// WithScorers replaces the scorer registry.
func WithScorers(r scoring.Registry) Option {
	return func(o *Orchestrator) { o.scorers = r }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.OrNop(logger) }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer sets the tracer provider.
func WithTracer(tp *observability.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an Orchestrator.
func New(accessor corpus.Accessor, store ReferenceStore, generator reference.Generator, asker candidate.Asker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		corpus:    accessor,
		store:     store,
		generator: generator,
		candidate: asker,
		scorers:   scoring.DefaultRegistry(),
		weights:   benchmark.DefaultWeights(),
		role:      DefaultRole,
		retry:     fberrors.DefaultRetryConfig(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    logging.NewComponentLogger("Orchestrator"),
		tracer:    observability.NoopTracerProvider(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Role returns the participant role the orchestrator evaluates.
func (o *Orchestrator) Role() string { return o.role }

// Validate checks a request before any work is done.
func (o *Orchestrator) Validate(req Request) error {
	endpoint, ok := req.Participants[o.role]
	if !ok || endpoint == "" {
		return invalidRequest("missing participant role %q", o.role)
	}
	if len(o.years) > 0 && !slices.Contains(o.years, req.Config.Year) {
		return invalidRequest("year %d outside the available years %v", req.Config.Year, o.years)
	}
	return nil
}

// run is the mutable state of one evaluation.
type run struct {
	o        *Orchestrator
	id       string
	req      Request
	observer Observer
	logger   logging.Logger

	doc      corpus.DocumentKey
	sections map[corpus.Section]string
	skipped  map[benchmark.TaskID]error

	mu         sync.Mutex
	references map[benchmark.TaskID]benchmark.Answer
	answers    map[benchmark.TaskID]benchmark.Answer
	exchange   map[benchmark.TaskID]error
	breakdowns map[benchmark.TaskID]scoring.ScoreBreakdown
}

// Run executes one evaluation. Per-run failures (invalid request, missing
// document, reference generation) return an error and no report; per-task
// failures score that task 0 and the run continues.
func (o *Orchestrator) Run(ctx context.Context, req Request, observer Observer) (report *Report, err error) {
	if observer == nil {
		observer = nopObserver{}
	}
	started := o.now()

	runID := id.RunIDFromContext(ctx)
	if runID == "" {
		runID = id.NewRunID()
		ctx = id.WithRunID(ctx, runID)
	}
	if id.LogIDFromContext(ctx) == "" {
		ctx = id.WithLogID(ctx, runID)
	}

	r := &run{
		o:          o,
		id:         runID,
		req:        req,
		observer:   observer,
		logger:     logging.FromContext(ctx, o.logger),
		sections:   map[corpus.Section]string{},
		skipped:    map[benchmark.TaskID]error{},
		references: map[benchmark.TaskID]benchmark.Answer{},
		answers:    map[benchmark.TaskID]benchmark.Answer{},
		exchange:   map[benchmark.TaskID]error{},
		breakdowns: map[benchmark.TaskID]scoring.ScoreBreakdown{},
	}

	ctx, span := o.tracer.StartSpan(ctx, observability.SpanEvaluation)
	defer func() {
		status := "completed"
		if err != nil {
			status = "failed"
			r.emit(ctx, Event{Phase: PhaseFailed, Message: err.Error(), Err: err})
			r.logger.Warn("evaluation %s failed: %v", runID, err)
		}
		o.metrics.RecordEvaluation(ctx, status, o.now().Sub(started))
		observability.EndSpan(span, err)
	}()

	if err := o.Validate(req); err != nil {
		return nil, err
	}

	steps := []struct {
		phase Phase
		fn    func(context.Context) error
	}{
		{PhaseSelectDocument, r.selectDocument},
		{PhaseResolveReferences, r.resolveReferences},
		{PhaseDispatchTasks, r.dispatchTasks},
		{PhaseScoreTasks, r.scoreTasks},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.phase(ctx, step.phase, step.fn); err != nil {
			return nil, err
		}
	}

	r.emit(ctx, Event{Phase: PhaseAggregate, Message: "Aggregating task scores..."})
	report = buildReport(runID, r.doc, o.weights, r.breakdowns)
	report.StartedAt = started
	report.CompletedAt = o.now()
	span.SetAttributes(attribute.Float64(observability.AttrScore, report.OverallScore))

	r.emit(ctx, Event{Phase: PhaseDone, Message: fmt.Sprintf("Evaluation complete: overall score %.1f/100", report.OverallScore)})
	r.logger.Info("evaluation %s of %s scored %.1f in %s", runID, r.doc, report.OverallScore, report.CompletedAt.Sub(started).Round(time.Millisecond))
	return report, nil
}

var phaseMessages = map[Phase]string{
	PhaseSelectDocument:    "Selecting 10-K filing...",
	PhaseResolveReferences: "Resolving reference answers...",
	PhaseDispatchTasks:     "Sending task prompts to the analyst...",
	PhaseScoreTasks:        "Scoring task answers...",
}

func (r *run) phase(ctx context.Context, phase Phase, fn func(context.Context) error) error {
	msg := phaseMessages[phase]
	if phase == PhaseSelectDocument {
		msg = fmt.Sprintf("Loading 10-K filing for year %d...", r.req.Config.Year)
	}
	r.emit(ctx, Event{Phase: phase, Message: msg})
	ctx, span := r.o.tracer.StartSpan(ctx, observability.SpanPhase, attribute.String(observability.AttrPhase, string(phase)))
	err := fn(ctx)
	observability.EndSpan(span, err)
	return err
}

func (r *run) emit(ctx context.Context, event Event) {
	event.RunID = r.id
	if r.doc.CompanyID != "" {
		doc := r.doc
		event.Document = &doc
	}
	r.observer.OnEvent(ctx, event)
}

// selectDocument resolves the filing and loads the sections the tasks need.
// A missing section only disables the tasks that require it.
func (r *run) selectDocument(ctx context.Context) error {
	year := r.req.Config.Year
	keys, err := r.o.corpus.List(ctx, year)
	if err != nil {
		return fmt.Errorf("list filings for %d: %w", year, err)
	}
	if len(keys) == 0 {
		return benchmark.NewError(benchmark.KindDocumentNotFound, "", fmt.Errorf("no filings found for year %d", year))
	}

	if want := corpus.NormalizeCompanyID(r.req.Config.CompanyID); want != "" {
		i := slices.IndexFunc(keys, func(k corpus.DocumentKey) bool { return k.CompanyID == want })
		if i < 0 {
			return benchmark.NewError(benchmark.KindDocumentNotFound, "", fmt.Errorf("filing not found: %s_%d", want, year))
		}
		r.doc = keys[i]
	} else {
		r.doc = keys[r.o.pick(len(keys))]
	}
	ctx, span := r.o.tracer.StartSpan(ctx, observability.SpanCorpusFetch, observability.DocumentAttrs(r.doc.Year, r.doc.CompanyID)...)
	defer span.End()

	missing := map[corpus.Section]error{}
	for _, section := range []corpus.Section{corpus.SectionBusiness, corpus.SectionRiskFactors, corpus.SectionMDA} {
		text, err := r.o.corpus.Fetch(ctx, r.doc, section)
		switch {
		case err == nil:
			r.sections[section] = text
		case errors.Is(err, benchmark.ErrSectionMissing):
			missing[section] = err
		default:
			return err
		}
	}
	for _, task := range benchmark.AllTasks {
		for _, section := range reference.RequiredSections[task] {
			if cause, ok := missing[section]; ok {
				r.skipped[task] = benchmark.NewError(benchmark.KindSectionMissing, task, cause)
				r.logger.Warn("task %s skipped for %s: %s missing", task, r.doc, section.Title())
				break
			}
		}
	}
	r.logger.Info("evaluating filing %s (%d/%d tasks runnable)", r.doc, len(r.runnable()), len(benchmark.AllTasks))
	return nil
}

func (o *Orchestrator) pick(n int) int {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.rng.Intn(n)
}

func (r *run) runnable() []benchmark.TaskID {
	tasks := make([]benchmark.TaskID, 0, len(benchmark.AllTasks))
	for _, task := range benchmark.AllTasks {
		if _, skip := r.skipped[task]; !skip {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

func (r *run) sectionsFor(task benchmark.TaskID) map[corpus.Section]string {
	out := make(map[corpus.Section]string, len(reference.RequiredSections[task]))
	for _, section := range reference.RequiredSections[task] {
		out[section] = r.sections[section]
	}
	return out
}

// resolveReferences obtains every runnable task's reference answer. A
// fatal failure fails the run; any other classified failure skips only
// that task.
func (r *run) resolveReferences(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range r.runnable() {
		g.Go(func() error {
			answer, err := r.resolve(id.WithTaskID(gctx, string(task)), task)
			if kind, ok := benchmark.KindOf(err); ok && !benchmark.IsFatal(kind) {
				r.mu.Lock()
				r.skipped[task] = err
				r.mu.Unlock()
				r.logger.Warn("task %s skipped for %s: %v", task, r.doc, err)
				return nil
			}
			if err != nil {
				return err
			}
			r.mu.Lock()
			r.references[task] = answer
			r.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (r *run) resolve(ctx context.Context, task benchmark.TaskID) (benchmark.Answer, error) {
	sections := r.sectionsFor(task)
	generate := func(genCtx context.Context) (benchmark.Answer, error) {
		genCtx, span := r.o.tracer.StartSpan(genCtx, observability.SpanReferenceGenerate, observability.DocumentAttrs(r.doc.Year, r.doc.CompanyID)...)
		answer, err := fberrors.RetryWithResultAndLog(genCtx, r.o.retry, func(attemptCtx context.Context) (benchmark.Answer, error) {
			return r.o.generator.Generate(attemptCtx, task, sections)
		}, r.logger)
		observability.EndSpan(span, err)
		return answer, err
	}

	answer, err := r.o.store.GetOrCreate(ctx, reference.NewKey(r.doc, task), generate)
	if err == nil {
		return answer, nil
	}
	if ctx.Err() != nil {
		return benchmark.Answer{}, ctx.Err()
	}
	if _, classified := benchmark.KindOf(err); classified {
		return benchmark.Answer{}, err
	}
	return benchmark.Answer{}, benchmark.NewError(benchmark.KindGenerationFailure, task, err)
}

// dispatchTasks exchanges every runnable task with the candidate
// concurrently. A failed exchange is recorded for scoring and never stops
// the other tasks.
func (r *run) dispatchTasks(ctx context.Context) error {
	endpoint := r.req.Participants[r.o.role]
	var g errgroup.Group
	for _, task := range r.runnable() {
		g.Go(func() error {
			tctx := id.WithTaskID(ctx, string(task))
			answer, err := r.ask(tctx, endpoint, task)

			r.mu.Lock()
			if err != nil {
				r.exchange[task] = err
			} else {
				r.answers[task] = answer
			}
			r.mu.Unlock()

			event := Event{Phase: PhaseDispatchTasks, Task: task, Message: fmt.Sprintf("Received %s answer", task), Err: err}
			if err != nil {
				event.Message = fmt.Sprintf("%s exchange failed: %v", task, err)
			}
			r.emit(ctx, event)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (r *run) ask(ctx context.Context, endpoint string, task benchmark.TaskID) (answer benchmark.Answer, err error) {
	ctx, span := r.o.tracer.StartSpan(ctx, observability.SpanCandidateExchange)
	defer func() { observability.EndSpan(span, err) }()

	r.mu.Lock()
	ref := r.references[task]
	r.mu.Unlock()

	prompt, err := buildPrompt(task, r.sectionsFor(task), ref)
	if err != nil {
		return benchmark.Answer{}, err
	}
	return r.o.candidate.Ask(ctx, endpoint, task, prompt)
}

// scoreTasks grades every task; skipped and failed tasks score 0.
func (r *run) scoreTasks(ctx context.Context) error {
	for _, task := range benchmark.AllTasks {
		var b scoring.ScoreBreakdown
		if cause, skipped := r.skipped[task]; skipped {
			b = scoring.Failed(task, cause.Error())
		} else if cause, failed := r.exchange[task]; failed {
			b = scoring.Failed(task, fmt.Sprintf("candidate exchange failed: %v", cause))
		} else {
			b = r.o.scorers.Score(task, r.references[task], r.answers[task])
		}
		r.breakdowns[task] = b
		r.o.metrics.RecordTaskScore(ctx, string(task), b.Score)
		r.logger.Debug("task %s scored %.1f", task, b.Score)
	}
	return nil
}
