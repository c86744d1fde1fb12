package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semgeo/semgeo/pkg/graph"
	"github.com/semgeo/semgeo/pkg/store"
)

func TestResultWriter_Write(t *testing.T) {
	g := graph.NewMemory(graph.WithPrefixes(map[string]string{"wf": "http://example.org/wf#"}))
	require.NoError(t, g.ApplyUpdate(context.Background(), `INSERT DATA { wf:step1 a wf:CostPath }`))

	path := filepath.Join(t.TempDir(), "nested", "dir", "graph.nt")
	writer := NewResultWriter(path, store.FormatNTriples, nil)

	step, err := writer.Write(g)
	require.NoError(t, err)
	assert.Equal(t, StepWrite, step.Kind)
	assert.Equal(t, 1, step.After)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<http://example.org/wf#step1> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org/wf#CostPath> .\n", string(data))

	// A second write replaces the content and leaves no temp files.
	require.NoError(t, g.ApplyUpdate(context.Background(), `CLEAR ALL`))
	_, err = writer.Write(g)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResultWriter_Errors(t *testing.T) {
	g := graph.NewMemory()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewResultWriter(filepath.Join(blocker, "out.ttl"), store.FormatTurtle, nil).Write(g)
	assert.ErrorIs(t, err, ErrWrite)

	_, err = NewResultWriter(filepath.Join(t.TempDir(), "out.json"), store.Format("jsonld"), nil).Write(g)
	assert.ErrorIs(t, err, ErrWrite)
}
