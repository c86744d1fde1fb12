package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/semgeo/semgeo/pkg/graph"
	"github.com/semgeo/semgeo/pkg/rules"
	"github.com/semgeo/semgeo/pkg/scenario"
)

// Options configures an Orchestrator.
type Options struct {
	// Ontologies are loaded in order before any scenario.
	Ontologies []string

	// Resolve maps scenario instance paths to files. Nil leaves them as is.
	Resolve func(string) string

	// Missing decides what happens when a tool or propagation has no rules.
	Missing rules.MissingPolicy

	// Writer receives the final graph. Nil skips writing.
	Writer *ResultWriter

	Logger *slog.Logger

	// Now is the clock used for report timestamps.
	Now func() time.Time
}

// Orchestrator drives one run over one graph.
type Orchestrator struct {
	graph    graph.Store
	registry *rules.Registry
	catalog  *scenario.Catalog
	opts     Options
	logger   *slog.Logger

	loader *OntologyLoader
	step   *EnrichmentStep
	tests  *TestRunner

	report *Report
}

// New creates an orchestrator. The graph should be fresh: a run loads the
// ontologies into it and every selected scenario accumulates on top.
func New(g graph.Store, registry *rules.Registry, catalog *scenario.Catalog, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Resolve == nil {
		opts.Resolve = func(path string) string { return path }
	}
	if opts.Missing == "" {
		opts.Missing = rules.MissingWarn
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		graph:    g,
		registry: registry,
		catalog:  catalog,
		opts:     opts,
		logger:   logger,
		loader:   NewOntologyLoader(g, logger),
		step:     NewEnrichmentStep(g, logger),
		tests:    NewTestRunner(g, logger),
	}
}

// Run loads the ontologies, runs every selected scenario in catalog order
// and writes the result. Unknown selectors are skipped with a warning. The
// report is returned even when the run fails.
func (o *Orchestrator) Run(ctx context.Context, selectors []string) (*Report, error) {
	o.report = &Report{
		RunID:     uuid.NewString(),
		StartedAt: o.opts.Now(),
	}
	o.transition(StateInit, "", "")

	err := o.run(ctx, selectors)

	o.report.FinishedAt = o.opts.Now()
	o.report.Duration = o.report.FinishedAt.Sub(o.report.StartedAt)
	o.report.Triples = o.graph.Size()
	if err != nil {
		o.report.Error = err.Error()
		o.logger.Error("Run failed", "run_id", o.report.RunID, "state", o.report.State, "error", err)
		return o.report, err
	}

	o.logger.Info("Run finished",
		"run_id", o.report.RunID,
		"triples", o.report.Triples,
		"passed", o.report.Passed(),
		"failed", o.report.Failed(),
		"duration", o.report.Duration)
	return o.report, nil
}

func (o *Orchestrator) run(ctx context.Context, selectors []string) error {
	o.logger.Info("Loading ontologies", "count", len(o.opts.Ontologies))
	steps, err := o.loader.LoadAll(ctx, o.opts.Ontologies)
	o.report.Steps = append(o.report.Steps, steps...)
	if err != nil {
		return err
	}
	o.transition(StateOntologiesLoaded, "", "")

	selected, unknown := o.catalog.Select(selectors)
	for _, name := range unknown {
		o.logger.Warn("Unknown scenario skipped", "scenario", name, "known", o.catalog.Names())
	}
	o.report.Skipped = unknown

	for _, s := range selected {
		if err := o.runScenario(ctx, s); err != nil {
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
	}

	o.transition(StateDone, "", "")

	if o.opts.Writer != nil {
		step, err := o.opts.Writer.Write(o.graph)
		if err != nil {
			return err
		}
		o.report.Steps = append(o.report.Steps, step)
		o.report.Output = o.opts.Writer.Path()
	}
	return nil
}

func (o *Orchestrator) runScenario(ctx context.Context, s scenario.Scenario) error {
	o.logger.Info("Scenario", "scenario", s.Name)
	summary := ScenarioSummary{
		Name:         s.Name,
		Instance:     s.Instance,
		Tools:        s.Tools,
		Propagations: s.Propagations,
		Before:       o.graph.Size(),
	}
	defer func() {
		summary.After = o.graph.Size()
		o.report.Scenarios = append(o.report.Scenarios, summary)
	}()

	step, err := o.loader.Load(ctx, o.opts.Resolve(s.Instance))
	if err != nil {
		return err
	}
	step.Scenario = s.Name
	o.report.Steps = append(o.report.Steps, step)
	o.transition(StateInstanceLoaded, s.Name, "")

	if err := o.expandClosure(ctx, s.Name); err != nil {
		return err
	}
	o.transition(StateClosureExpanded, s.Name, "")

	for _, tool := range s.Tools {
		if err := o.runEntity(ctx, s.Name, tool, []rules.Category{rules.ToolInput, rules.ToolOutput}, rules.ToolTest); err != nil {
			return err
		}
		o.transition(StateToolApplied, s.Name, tool)
	}

	for _, propagation := range s.Propagations {
		if err := o.runEntity(ctx, s.Name, propagation, []rules.Category{rules.PropagationApply}, rules.PropagationTest); err != nil {
			return err
		}
		o.transition(StatePropagationApplied, s.Name, propagation)
	}

	return nil
}

func (o *Orchestrator) expandClosure(ctx context.Context, scenarioName string) error {
	start := time.Now()
	before := o.graph.Size()

	if _, err := o.graph.ExpandClosure(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrClosure, err)
	}

	after := o.graph.Size()
	o.report.Steps = append(o.report.Steps, Step{
		Kind:     StepClosure,
		Scenario: scenarioName,
		Source:   "rdfs",
		Before:   before,
		After:    after,
		Delta:    after - before,
		Duration: time.Since(start),
	})
	o.logger.Info("RDFS closure expanded", "scenario", scenarioName, "triples", after, "delta", after-before)
	return nil
}

// runEntity applies the update categories in order, then runs the tests.
func (o *Orchestrator) runEntity(ctx context.Context, scenarioName, entity string, updates []rules.Category, test rules.Category) error {
	if err := o.checkMissing(scenarioName, entity, append(updates, test)); err != nil {
		return err
	}

	for _, category := range updates {
		for _, rule := range o.registry.Lookup(entity, category) {
			if err := ctx.Err(); err != nil {
				return err
			}
			step, err := o.step.Apply(ctx, rule)
			if err != nil {
				return err
			}
			step.Scenario = scenarioName
			o.report.Steps = append(o.report.Steps, step)
		}
	}

	for _, rule := range o.registry.Lookup(entity, test) {
		outcome, err := o.tests.Run(ctx, rule)
		if err != nil {
			return err
		}
		outcome.Scenario = scenarioName
		o.report.Tests = append(o.report.Tests, outcome)
	}
	return nil
}

func (o *Orchestrator) checkMissing(scenarioName, entity string, categories []rules.Category) error {
	if o.registry.Has(entity, categories...) {
		return nil
	}

	switch o.opts.Missing {
	case rules.MissingIgnore:
		return nil
	case rules.MissingError:
		return fmt.Errorf("%w: no rule files for %s", ErrMissingRules, entity)
	}

	o.logger.Warn("No rule files found", "scenario", scenarioName, "entity", entity)
	o.report.Steps = append(o.report.Steps, Step{
		Kind:     StepMissing,
		Scenario: scenarioName,
		Entity:   entity,
		Category: categories[0],
		Before:   o.graph.Size(),
		After:    o.graph.Size(),
		Message:  "no rule files found",
	})
	return nil
}

func (o *Orchestrator) transition(state State, scenarioName, entity string) {
	o.report.State = state
	o.report.Transitions = append(o.report.Transitions, Transition{
		State:    state,
		Scenario: scenarioName,
		Entity:   entity,
	})
	o.logger.Debug("State", "state", state, "scenario", scenarioName, "entity", entity)
}
