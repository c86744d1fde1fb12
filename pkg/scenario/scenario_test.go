package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin(t *testing.T) {
	catalog, err := NewCatalog(Builtin()...)
	require.NoError(t, err)

	assert.Equal(t, []string{"lights", "lcpath"}, catalog.Names())

	lights, ok := catalog.Get("lights")
	require.True(t, ok)
	assert.Empty(t, lights.Tools)
	assert.Empty(t, lights.Propagations)

	lcpath, ok := catalog.Get("lcpath")
	require.True(t, ok)
	assert.Equal(t, "workflows/workflow_lcpath/workflow_lcpath.ttl", lcpath.Instance)
	assert.Equal(t, []string{
		"euclideandistance", "polygontoraster", "localmapalgebra", "pointtoraster",
		"costdistance", "costpath", "toline",
	}, lcpath.Tools)
	assert.Equal(t, []string{"qquality", "path"}, lcpath.Propagations)
}

func TestCatalog_Select(t *testing.T) {
	catalog, err := NewCatalog(Builtin()...)
	require.NoError(t, err)

	tests := []struct {
		name        string
		selectors   []string
		wantNames   []string
		wantUnknown []string
	}{
		{"none", nil, nil, nil},
		{"catalog order wins", []string{"lcpath", "lights"}, []string{"lights", "lcpath"}, nil},
		{"unknown names reported", []string{"rivers", "lcpath", "rivers"}, []string{"lcpath"}, []string{"rivers"}},
		{"duplicates collapse", []string{"lights", "lights"}, []string{"lights"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, unknown := catalog.Select(tt.selectors)
			var names []string
			for _, s := range selected {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantUnknown, unknown)
		})
	}
}

func TestCatalog_Entities(t *testing.T) {
	catalog, err := NewCatalog(
		Scenario{Name: "a", Instance: "a.ttl", Tools: []string{"cost_index", "slope"}, Propagations: []string{"path"}},
		Scenario{Name: "b", Instance: "b.ttl", Tools: []string{"slope", "zonal_stats"}, Propagations: []string{"path", "quality"}},
	)
	require.NoError(t, err)

	tools, propagations := catalog.Entities()
	assert.Equal(t, []string{"cost_index", "slope", "zonal_stats"}, tools)
	assert.Equal(t, []string{"path", "quality"}, propagations)
}

func TestNewCatalog_Errors(t *testing.T) {
	_, err := NewCatalog(Scenario{Name: "a", Instance: "a.ttl"}, Scenario{Name: "a", Instance: "b.ttl"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewCatalog(Scenario{Name: "a"})
	assert.ErrorContains(t, err, "instance")

	_, err = NewCatalog(Scenario{Instance: "a.ttl"})
	assert.Error(t, err)

	_, err = NewCatalog(Scenario{Name: "a", Instance: "a.ttl", Tools: []string{" "}})
	assert.ErrorContains(t, err, "tool")
}
