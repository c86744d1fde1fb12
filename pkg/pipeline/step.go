package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/semgeo/semgeo/pkg/graph"
	"github.com/semgeo/semgeo/pkg/rules"
)

// EnrichmentStep applies update rules to the graph.
type EnrichmentStep struct {
	graph  graph.Store
	logger *slog.Logger
}

// NewEnrichmentStep creates an enrichment step for g.
func NewEnrichmentStep(g graph.Store, logger *slog.Logger) *EnrichmentStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichmentStep{graph: g, logger: logger}
}

// Apply runs one update rule and records the size change.
func (s *EnrichmentStep) Apply(ctx context.Context, rule rules.Rule) (Step, error) {
	start := time.Now()
	before := s.graph.Size()

	if err := s.graph.ApplyUpdate(ctx, rule.Text); err != nil {
		return Step{}, fmt.Errorf("%w: %s: %w", ErrUpdate, rule.Path, err)
	}

	after := s.graph.Size()
	step := Step{
		Kind:     StepUpdate,
		Entity:   rule.Entity,
		Category: rule.Category,
		Source:   rule.Path,
		Before:   before,
		After:    after,
		Delta:    after - before,
		Duration: time.Since(start),
	}
	s.logger.Info("Enrichment", "rule", rule.Name, "triples", after, "delta", step.Delta)
	return step, nil
}

// TestRunner evaluates test rules. It never changes the graph and never
// fails the run because of a test.
type TestRunner struct {
	graph  graph.Store
	logger *slog.Logger
}

// NewTestRunner creates a test runner for g.
func NewTestRunner(g graph.Store, logger *slog.Logger) *TestRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &TestRunner{graph: g, logger: logger}
}

// Run evaluates one test rule. An ASK test passes when it answers true, any
// other query form when it yields at least one row. A rule that cannot be
// parsed or evaluated is recorded as failed. Only cancellation of ctx is
// returned as an error.
func (r *TestRunner) Run(ctx context.Context, rule rules.Rule) (TestOutcome, error) {
	start := time.Now()
	outcome := TestOutcome{
		Key:     rule.Key,
		Variant: rule.Variant,
		Source:  rule.Path,
	}

	result, err := r.graph.Query(ctx, rule.Text)
	outcome.Duration = time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome, ctxErr
		}
		outcome.Error = err.Error()
		r.logger.Warn("Test could not run", "rule", rule.Name, "error", err)
		return outcome, nil
	}

	outcome.Passed = result.Bool()
	outcome.Rows = result.Count
	r.logger.Info("Test", "rule", rule.Name, "passed", outcome.Passed, "rows", outcome.Rows)
	return outcome, nil
}
