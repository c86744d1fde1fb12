package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semgeo/semgeo/pkg/graph"
	"github.com/semgeo/semgeo/pkg/inference"
	"github.com/semgeo/semgeo/pkg/query"
	"github.com/semgeo/semgeo/pkg/rules"
	"github.com/semgeo/semgeo/pkg/scenario"
	"github.com/semgeo/semgeo/pkg/store"
)

var fixtureFiles = map[string]string{
	"ontologies/tools.ttl": `@prefix wf: <http://example.org/wf#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .

wf:CostPath rdfs:subClassOf wf:Tool .
wf:CostDistance rdfs:subClassOf wf:Tool .
`,
	"ontologies/data.nt": `<http://example.org/wf#Raster> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://example.org/wf#Layer> .
`,
	"workflows/lcp.ttl": `@prefix wf: <http://example.org/wf#> .

wf:step1 a wf:CostDistance ;
    wf:output wf:costSurface .
wf:step2 a wf:CostPath ;
    wf:input wf:costSurface ;
    wf:output wf:path .
`,
	"rdf_prefixes.txt": `PREFIX wf: <http://example.org/wf#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
`,
	"enrichments/enrich_costpath_in.ru": `INSERT DATA {
  wf:costSurface a wf:Raster ; wf:cellSize 30 ; wf:unit "m" .
  wf:step2 wf:requires wf:costSurface ; wf:checked true .
}`,
	"enrichments/enrich_costpath_out.ru": `INSERT { ?out a wf:Path ; wf:derivedFrom ?in ; wf:producedBy ?s }
WHERE { ?s a wf:CostPath ; wf:input ?in ; wf:output ?out }`,
	"enrichments/enrich_costpath_test.ru":     `ASK { wf:path wf:derivedFrom wf:costSurface }`,
	"enrichments/enrich_costdistance_in.ru":   `INSERT { ?s wf:annotation _:a . _:a wf:note "distance" } WHERE { ?s a wf:CostDistance }`,
	"enrichments/enrich_costdistance_test.ru": `SELECT ?x WHERE { ?x wf:note "missing" }`,
	"enrichments/propagate_path.ru":           `INSERT { ?p wf:quality "high" } WHERE { ?p a wf:Path }`,
	"enrichments/propagate_path_test.ru":      `ASK { wf:path wf:quality "high" }`,
}

type fixture struct {
	dir      string
	registry *rules.Registry
	catalog  *scenario.Catalog
}

func newFixture(t *testing.T, extra map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()

	files := make(map[string]string, len(fixtureFiles)+len(extra))
	for name, content := range fixtureFiles {
		files[name] = content
	}
	for name, content := range extra {
		files[name] = content
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	registry, err := rules.Scan(filepath.Join(dir, "enrichments"), rules.ScanOptions{
		PrefixFile: filepath.Join(dir, "rdf_prefixes.txt"),
	})
	require.NoError(t, err)

	catalog, err := scenario.NewCatalog(
		scenario.Scenario{
			Name:         "lcp",
			Instance:     "workflows/lcp.ttl",
			Tools:        []string{"costdistance", "costpath"},
			Propagations: []string{"path"},
		},
		scenario.Scenario{
			Name:     "bare",
			Instance: "workflows/lcp.ttl",
			Tools:    []string{"euclideandistance"},
		},
	)
	require.NoError(t, err)

	return &fixture{dir: dir, registry: registry, catalog: catalog}
}

func (f *fixture) options(writer *ResultWriter) Options {
	return Options{
		Ontologies: []string{
			filepath.Join(f.dir, "ontologies/tools.ttl"),
			filepath.Join(f.dir, "ontologies/data.nt"),
		},
		Resolve: func(path string) string { return filepath.Join(f.dir, path) },
		Writer:  writer,
	}
}

func newGraph() *graph.Memory {
	return graph.NewMemory(graph.WithClosureOptions(inference.Options{}))
}

func stepFor(t *testing.T, report *Report, name string) Step {
	t.Helper()
	for _, step := range report.Steps {
		if filepath.Base(step.Source) == name {
			return step
		}
	}
	t.Fatalf("no step for %s", name)
	return Step{}
}

func TestOrchestrator_Run(t *testing.T) {
	f := newFixture(t, nil)
	output := filepath.Join(f.dir, "output", "workflows_output.ttl")

	g := newGraph()
	opts := f.options(NewResultWriter(output, store.FormatTurtle, nil))
	report, err := New(g, f.registry, f.catalog, opts).Run(context.Background(), []string{"lcp"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.True(t, report.Succeeded())
	assert.Equal(t, g.Size(), report.Triples)
	assert.Equal(t, output, report.Output)

	assert.Equal(t, 2, stepFor(t, report, "tools.ttl").Delta)
	assert.Equal(t, 1, stepFor(t, report, "data.nt").Delta)
	assert.Equal(t, 5, stepFor(t, report, "lcp.ttl").Delta)
	assert.Equal(t, 2, stepFor(t, report, "enrich_costdistance_in.ru").Delta)
	assert.Equal(t, 5, stepFor(t, report, "enrich_costpath_in.ru").Delta)
	assert.Equal(t, 3, stepFor(t, report, "enrich_costpath_out.ru").Delta)
	assert.Equal(t, 1, stepFor(t, report, "propagate_path.ru").Delta)

	require.Len(t, report.Tests, 3)
	assert.Equal(t, rules.Key{Entity: "costdistance", Category: rules.ToolTest}, report.Tests[0].Key)
	assert.False(t, report.Tests[0].Passed)
	assert.Equal(t, 0, report.Tests[0].Rows)
	assert.Equal(t, rules.Key{Entity: "costpath", Category: rules.ToolTest}, report.Tests[1].Key)
	assert.True(t, report.Tests[1].Passed)
	assert.Equal(t, rules.Key{Entity: "path", Category: rules.PropagationTest}, report.Tests[2].Key)
	assert.True(t, report.Tests[2].Passed)
	assert.Equal(t, 2, report.Passed())
	assert.Equal(t, 1, report.Failed())

	assert.Equal(t, []Transition{
		{State: StateInit},
		{State: StateOntologiesLoaded},
		{State: StateInstanceLoaded, Scenario: "lcp"},
		{State: StateClosureExpanded, Scenario: "lcp"},
		{State: StateToolApplied, Scenario: "lcp", Entity: "costdistance"},
		{State: StateToolApplied, Scenario: "lcp", Entity: "costpath"},
		{State: StatePropagationApplied, Scenario: "lcp", Entity: "path"},
		{State: StateDone},
	}, report.Transitions)

	require.Len(t, report.Scenarios, 1)
	assert.Equal(t, "lcp", report.Scenarios[0].Name)
	assert.Equal(t, g.Size(), report.Scenarios[0].After)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "derivedFrom")

	reloaded := graph.NewMemory()
	require.NoError(t, reloaded.Load(context.Background(), output))
	assert.Equal(t, g.Size(), reloaded.Size())
}

func TestOrchestrator_RulesRunInOrder(t *testing.T) {
	// The second input rule depends on the first one.
	f := newFixture(t, map[string]string{
		"enrichments/enrich_costpath_in2.ru": `INSERT { ?s wf:order 2 } WHERE { ?s wf:checked true }`,
	})

	report, err := New(newGraph(), f.registry, f.catalog, f.options(nil)).Run(context.Background(), []string{"lcp"})
	require.NoError(t, err)
	assert.Equal(t, 1, stepFor(t, report, "enrich_costpath_in2.ru").Delta)

	var order []string
	for _, step := range report.Steps {
		if step.Kind == StepUpdate {
			order = append(order, filepath.Base(step.Source))
		}
	}
	assert.Equal(t, []string{
		"enrich_costdistance_in.ru",
		"enrich_costpath_in.ru",
		"enrich_costpath_in2.ru",
		"enrich_costpath_out.ru",
		"propagate_path.ru",
	}, order)
}

// sizeWatcher fails the test when a query changes the graph size.
type sizeWatcher struct {
	*graph.Memory
	t       *testing.T
	queries int
}

func (w *sizeWatcher) Query(ctx context.Context, text string) (*query.QueryResult, error) {
	before := w.Size()
	result, err := w.Memory.Query(ctx, text)
	assert.Equal(w.t, before, w.Size(), "query changed the graph")
	w.queries++
	return result, err
}

func TestOrchestrator_TestsDoNotMutateGraph(t *testing.T) {
	f := newFixture(t, map[string]string{
		"enrichments/enrich_costpath_test2.ru": `CONSTRUCT { ?s wf:copy _:b } WHERE { ?s ?p ?o }`,
	})
	watcher := &sizeWatcher{Memory: newGraph(), t: t}

	report, err := New(watcher, f.registry, f.catalog, f.options(nil)).Run(context.Background(), []string{"lcp"})
	require.NoError(t, err)
	assert.Equal(t, 4, watcher.queries)
	assert.Len(t, report.Tests, 4)
}

func TestOrchestrator_Repeatable(t *testing.T) {
	f := newFixture(t, nil)

	serialize := func() (string, int) {
		g := newGraph()
		_, err := New(g, f.registry, f.catalog, f.options(nil)).Run(context.Background(), []string{"lcp"})
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, g.Serialize(&buf, store.FormatNTriples))
		return buf.String(), g.Size()
	}

	first, firstSize := serialize()
	second, secondSize := serialize()
	assert.Equal(t, firstSize, secondSize)
	assert.Equal(t, first, second)
}

func TestOrchestrator_ScenariosAccumulate(t *testing.T) {
	f := newFixture(t, nil)
	opts := f.options(nil)
	opts.Missing = rules.MissingIgnore

	report, err := New(newGraph(), f.registry, f.catalog, opts).Run(context.Background(), []string{"bare", "lcp", "rivers"})
	require.NoError(t, err)

	// Catalog order, not selector order.
	require.Len(t, report.Scenarios, 2)
	assert.Equal(t, "lcp", report.Scenarios[0].Name)
	assert.Equal(t, "bare", report.Scenarios[1].Name)
	assert.Equal(t, report.Scenarios[0].After, report.Scenarios[1].Before)
	assert.Equal(t, []string{"rivers"}, report.Skipped)
}

func TestOrchestrator_NoScenarios(t *testing.T) {
	f := newFixture(t, nil)
	g := newGraph()

	report, err := New(g, f.registry, f.catalog, f.options(nil)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Size())
	assert.Empty(t, report.Tests)
	assert.Equal(t, StateDone, report.State)
}

func TestOrchestrator_MissingRules(t *testing.T) {
	tests := []struct {
		name        string
		policy      rules.MissingPolicy
		wantErr     error
		wantMissing int
	}{
		{"ignore", rules.MissingIgnore, nil, 0},
		{"warn", rules.MissingWarn, nil, 1},
		{"default is warn", "", nil, 1},
		{"error", rules.MissingError, ErrMissingRules, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			opts := f.options(nil)
			opts.Missing = tt.policy

			report, err := New(newGraph(), f.registry, f.catalog, opts).Run(context.Background(), []string{"bare"})
			require.NotNil(t, report)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, StateClosureExpanded, report.State)
				assert.NotEmpty(t, report.Error)
				return
			}
			require.NoError(t, err)
			missing := report.Missing()
			assert.Len(t, missing, tt.wantMissing)
			if tt.wantMissing > 0 {
				assert.Equal(t, "euclideandistance", missing[0].Entity)
			}
		})
	}
}

func TestOrchestrator_LoadFailure(t *testing.T) {
	f := newFixture(t, nil)
	opts := f.options(nil)
	opts.Ontologies = append(opts.Ontologies, filepath.Join(f.dir, "ontologies/absent.rdf"))

	report, err := New(newGraph(), f.registry, f.catalog, opts).Run(context.Background(), []string{"lcp"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "absent.rdf")
	assert.Equal(t, StateInit, report.State)
	assert.Len(t, report.Steps, 2)
}

func TestOrchestrator_UpdateFailure(t *testing.T) {
	f := newFixture(t, map[string]string{
		"enrichments/enrich_costpath_out.ru": `INSERT DATA { wf:a }`,
	})
	output := filepath.Join(f.dir, "out.ttl")

	report, err := New(newGraph(), f.registry, f.catalog, f.options(NewResultWriter(output, store.FormatTurtle, nil))).
		Run(context.Background(), []string{"lcp"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpdate)
	assert.Contains(t, err.Error(), "enrich_costpath_out.ru")
	assert.Equal(t, StateToolApplied, report.State)
	assert.Equal(t, 5, stepFor(t, report, "enrich_costpath_in.ru").Delta)

	_, statErr := os.Stat(output)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "no output after a fatal error")
}

func TestOrchestrator_BrokenTestIsRecorded(t *testing.T) {
	f := newFixture(t, map[string]string{
		"enrichments/enrich_costpath_test_syntax.ru": `ASK {`,
	})

	report, err := New(newGraph(), f.registry, f.catalog, f.options(nil)).Run(context.Background(), []string{"lcp"})
	require.NoError(t, err)

	var broken *TestOutcome
	for i := range report.Tests {
		if strings.HasSuffix(report.Tests[i].Source, "enrich_costpath_test_syntax.ru") {
			broken = &report.Tests[i]
		}
	}
	require.NotNil(t, broken)
	assert.False(t, broken.Passed)
	assert.Equal(t, "_syntax", broken.Variant)
	assert.Contains(t, broken.Error, "parse error")
	assert.Equal(t, StateDone, report.State)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(newGraph(), f.registry, f.catalog, f.options(nil)).Run(ctx, []string{"lcp"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, StateDone, report.State)
}

func TestReport_Output(t *testing.T) {
	f := newFixture(t, nil)
	report, err := New(newGraph(), f.registry, f.catalog, f.options(nil)).Run(context.Background(), []string{"lcp"})
	require.NoError(t, err)

	text := report.String()
	assert.Contains(t, text, "[FAIL]")
	assert.Contains(t, text, "[PASS]")
	assert.Contains(t, text, "Tests: 2 passed, 1 failed")

	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, report.SaveJSON(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "`+report.RunID+`"`)
	assert.Contains(t, string(data), `"state": "DONE"`)
	assert.Len(t, report.FailedTests(), 1)
}
