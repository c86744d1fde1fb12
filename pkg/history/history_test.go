package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semgeo/semgeo/pkg/pipeline"
	"github.com/semgeo/semgeo/pkg/rules"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(id string, started time.Time, failing bool) *pipeline.Report {
	report := &pipeline.Report{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Duration:   2 * time.Second,
		State:      pipeline.StateDone,
		Scenarios: []pipeline.ScenarioSummary{
			{Name: "lcpath", Instance: "instances/lcpath.ttl", Before: 10, After: 40},
		},
		Triples: 40,
		Output:  "out/enriched.ttl",
		Tests: []pipeline.TestOutcome{
			{
				Key:      rules.Key{Entity: "costpath", Category: rules.ToolTest},
				Scenario: "lcpath",
				Source:   "enrich_costpath_test.rq",
				Passed:   true,
				Rows:     1,
			},
		},
	}
	if failing {
		report.Tests = append(report.Tests, pipeline.TestOutcome{
			Key:      rules.Key{Entity: "path", Category: rules.PropagationTest},
			Scenario: "lcpath",
			Source:   "propagate_path_test.rq",
			Error:    "no solutions",
		})
	}
	return report
}

func TestRecordAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	report := sampleReport("run-1", started, true)
	require.NoError(t, s.Record(ctx, report))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 40, got.Triples)
	assert.True(t, got.StartedAt.Equal(started))
	require.Len(t, got.Tests, 2)
	assert.Equal(t, rules.PropagationTest, got.Tests[1].Key.Category)
	assert.Equal(t, 1, got.Failed())
}

func TestGetUnknown(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, sampleReport("run-1", base, false)))
	require.NoError(t, s.Record(ctx, sampleReport("run-2", base.Add(time.Hour), true)))
	failed := sampleReport("run-3", base.Add(2*time.Hour), false)
	failed.State = pipeline.StateInstanceLoaded
	failed.Error = "update failed"
	failed.Output = ""
	require.NoError(t, s.Record(ctx, failed))

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-3", runs[0].RunID)
	assert.Equal(t, "run-1", runs[2].RunID)

	assert.False(t, runs[0].Succeeded())
	assert.Equal(t, "update failed", runs[0].Error)
	assert.Empty(t, runs[0].Output)

	assert.True(t, runs[1].Succeeded())
	assert.Equal(t, 1, runs[1].Passed)
	assert.Equal(t, 1, runs[1].Failed)
	assert.Equal(t, []string{"lcpath"}, runs[1].Scenarios)
	assert.Equal(t, 2*time.Second, runs[1].Duration)
	assert.True(t, runs[1].FinishedAt.Equal(base.Add(time.Hour+2*time.Second)))

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordReplacesRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, sampleReport("run-1", started, true)))
	require.NoError(t, s.Record(ctx, sampleReport("run-1", started, false)))

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].Failed)

	failures, err := s.Failures(ctx)
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestFailures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, sampleReport("run-1", base, true)))
	require.NoError(t, s.Record(ctx, sampleReport("run-2", base.Add(time.Minute), true)))
	require.NoError(t, s.Record(ctx, sampleReport("run-3", base.Add(2*time.Minute), false)))

	failures, err := s.Failures(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"propagate_path_test.rq": 2}, failures)
}

func TestRecordRejectsEmptyRunID(t *testing.T) {
	s := newTestStore(t)

	err := s.Record(context.Background(), &pipeline.Report{})
	assert.Error(t, err)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, sampleReport("run-1", time.Now(), false)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
