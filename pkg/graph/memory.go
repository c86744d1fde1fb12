package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/semgeo/semgeo/pkg/inference"
	"github.com/semgeo/semgeo/pkg/query"
	"github.com/semgeo/semgeo/pkg/store"
)

// Memory is a Store held entirely in memory.
type Memory struct {
	ts       *store.TripleStore
	executor *query.Executor
	closure  *inference.Engine
	prefixes map[string]string
	loads    int
	logger   *slog.Logger

	closureOpts inference.Options
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClosureOptions selects the RDFS closure variant used by ExpandClosure.
func WithClosureOptions(opts inference.Options) MemoryOption {
	return func(m *Memory) {
		m.closureOpts = opts
	}
}

// WithLogger sets the logger used for load and closure messages.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPrefixes registers prefix declarations for rule text and serialization.
func WithPrefixes(prefixes map[string]string) MemoryOption {
	return func(m *Memory) {
		for prefix, namespace := range prefixes {
			m.prefixes[prefix] = namespace
		}
	}
}

// NewMemory creates an empty in-memory graph.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		ts:          store.NewTripleStore(),
		prefixes:    make(map[string]string),
		logger:      slog.Default(),
		closureOpts: inference.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.closure = inference.New(m.closureOpts, m.logger)
	m.rebuildExecutor()
	return m
}

func (m *Memory) rebuildExecutor() {
	m.executor = query.NewExecutor(m.ts, query.WithPrefixes(m.prefixes))
}

// AddPrefixes registers more prefix declarations.
func (m *Memory) AddPrefixes(prefixes map[string]string) {
	for prefix, namespace := range prefixes {
		m.prefixes[prefix] = namespace
	}
	m.rebuildExecutor()
}

// Load implements Store. Blank node labels are scoped to the load so two
// files never share a blank node by accident.
func (m *Memory) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	format, err := store.FormatForPath(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m.loads++
	added, err := m.ts.Decode(f, format, fmt.Sprintf("l%d", m.loads))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	m.logger.Debug("graph loaded", "path", path, "format", format, "added", added, "triples", m.ts.Count())
	return nil
}

// ApplyUpdate implements Store.
func (m *Memory) ApplyUpdate(ctx context.Context, text string) error {
	_, err := m.Update(ctx, text)
	return err
}

// Update is ApplyUpdate that also returns the update counters.
func (m *Memory) Update(ctx context.Context, text string) (*query.UpdateResult, error) {
	return m.executor.ExecuteUpdateString(ctx, text)
}

// Query implements Store.
func (m *Memory) Query(ctx context.Context, text string) (*query.QueryResult, error) {
	return m.executor.ExecuteStringWithContext(ctx, text)
}

// Size implements Store.
func (m *Memory) Size() int {
	return m.ts.Count()
}

// Serialize implements Store.
func (m *Memory) Serialize(w io.Writer, format store.Format) error {
	return m.ts.Encode(w, format, m.prefixMappings())
}

// ExpandClosure implements Store.
func (m *Memory) ExpandClosure(ctx context.Context) (int, error) {
	return m.closure.Expand(ctx, m.ts)
}

// TripleStore exposes the underlying indexed store.
func (m *Memory) TripleStore() *store.TripleStore {
	return m.ts
}

func (m *Memory) prefixMappings() []store.PrefixMapping {
	names := make([]string, 0, len(m.prefixes))
	for prefix := range m.prefixes {
		names = append(names, prefix)
	}
	sort.Strings(names)

	mappings := make([]store.PrefixMapping, 0, len(names))
	for _, prefix := range names {
		mappings = append(mappings, store.PrefixMapping{Prefix: prefix, Namespace: m.prefixes[prefix]})
	}
	return mappings
}

var _ Store = (*Memory)(nil)
