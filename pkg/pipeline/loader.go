package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/semgeo/semgeo/pkg/graph"
)

// OntologyLoader loads RDF sources into the graph in order.
type OntologyLoader struct {
	graph  graph.Store
	logger *slog.Logger
}

// NewOntologyLoader creates a loader for g.
func NewOntologyLoader(g graph.Store, logger *slog.Logger) *OntologyLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &OntologyLoader{graph: g, logger: logger}
}

// LoadAll loads each source strictly in order and stops at the first
// failure. The steps of the sources loaded so far are returned either way.
func (l *OntologyLoader) LoadAll(ctx context.Context, paths []string) ([]Step, error) {
	steps := make([]Step, 0, len(paths))
	for _, path := range paths {
		step, err := l.Load(ctx, path)
		if err != nil {
			return steps, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Load adds one source to the graph.
func (l *OntologyLoader) Load(ctx context.Context, path string) (Step, error) {
	start := time.Now()
	before := l.graph.Size()

	if err := l.graph.Load(ctx, path); err != nil {
		return Step{}, fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}

	after := l.graph.Size()
	step := Step{
		Kind:     StepLoad,
		Source:   path,
		Before:   before,
		After:    after,
		Delta:    after - before,
		Duration: time.Since(start),
	}
	l.logger.Info("Loaded RDF file", "path", path, "triples", after, "delta", step.Delta)
	return step, nil
}
