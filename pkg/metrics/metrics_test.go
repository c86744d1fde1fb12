package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semgeo/semgeo/pkg/pipeline"
	"github.com/semgeo/semgeo/pkg/rules"
)

func sampleReport() *pipeline.Report {
	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &pipeline.Report{
		RunID:      "run-1",
		FinishedAt: finished,
		Duration:   1500 * time.Millisecond,
		State:      pipeline.StateDone,
		Triples:    42,
		Scenarios: []pipeline.ScenarioSummary{
			{Name: "lcpath", Before: 20, After: 42},
		},
		Steps: []pipeline.Step{
			{Kind: pipeline.StepLoad, Scenario: "lcpath", Source: "lcp.ttl", Delta: 12, Duration: time.Millisecond},
			{Kind: pipeline.StepUpdate, Scenario: "lcpath", Source: "enrich_costpath_in.ru", Delta: 5, Duration: time.Millisecond},
			{Kind: pipeline.StepMissing, Scenario: "lcpath", Entity: "slope"},
		},
		Tests: []pipeline.TestOutcome{
			{Key: rules.Key{Entity: "costpath", Category: rules.ToolTest}, Passed: true},
			{Key: rules.Key{Entity: "path", Category: rules.PropagationTest}},
		},
	}
}

func readTextfile(t *testing.T, c *Collector) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "textfile", "semgeo.prom")
	require.NoError(t, c.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestObserve(t *testing.T) {
	c := New()
	c.Observe(sampleReport())

	out := readTextfile(t, c)
	assert.Contains(t, out, `semgeo_runs_total{state="DONE"} 1`)
	assert.Contains(t, out, "semgeo_graph_triples 42")
	assert.Contains(t, out, `semgeo_tests{result="passed"} 1`)
	assert.Contains(t, out, `semgeo_tests{result="failed"} 1`)
	assert.Contains(t, out, `semgeo_step_triples_added{kind="update",scenario="lcpath",source="enrich_costpath_in.ru"} 5`)
	assert.Contains(t, out, `semgeo_scenario_triples_added{scenario="lcpath"} 22`)
	assert.Contains(t, out, "semgeo_run_duration_seconds 1.5")
	assert.Contains(t, out, `semgeo_step_duration_seconds_count{kind="load"} 1`)
	assert.NotContains(t, out, `kind="missing"`)
}

func TestObserveAccumulatesRuns(t *testing.T) {
	c := New()
	c.Observe(sampleReport())

	second := sampleReport()
	second.Steps = second.Steps[:1]
	second.Triples = 12
	c.Observe(second)
	c.Observe(nil)

	out := readTextfile(t, c)
	assert.Contains(t, out, `semgeo_runs_total{state="DONE"} 2`)
	assert.Contains(t, out, "semgeo_graph_triples 12")
	assert.NotContains(t, out, "enrich_costpath_in.ru")
}

func TestWriteTextfileError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := New().WriteTextfile(filepath.Join(blocker, "semgeo.prom"))
	assert.Error(t, err)
}
