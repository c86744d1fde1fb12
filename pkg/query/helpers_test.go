package query

import (
	"testing"

	"github.com/semgeo/semgeo/pkg/store"
)

const ex = "http://example.org/wf#"

const prologue = "PREFIX ex: <http://example.org/wf#>\n"

func integer(lexical string) string {
	return store.NewTypedLiteral(lexical, store.XSDInteger)
}

// newWorkflowStore builds a small workflow graph:
//
//	step1 a CostPath, order 1, label "least cost path"
//	step2 a CostDistance, order 2, output layer2
//	step3 a CostPath, order 3, label "Pfad"@de
//	CostPath, CostDistance subClassOf Operation subClassOf Tool
func newWorkflowStore(t *testing.T) *store.TripleStore {
	t.Helper()

	ts := store.NewTripleStore()
	add := func(s, p, o string) {
		if err := ts.Add(s, p, o); err != nil {
			t.Fatalf("Add(%s, %s, %s) error = %v", s, p, o, err)
		}
	}

	add(ex+"step1", store.RDFType, ex+"CostPath")
	add(ex+"step1", ex+"order", integer("1"))
	add(ex+"step1", store.RDFSLabel, store.NewLiteral("least cost path"))
	add(ex+"step2", store.RDFType, ex+"CostDistance")
	add(ex+"step2", ex+"order", integer("2"))
	add(ex+"step2", ex+"output", ex+"layer2")
	add(ex+"step3", store.RDFType, ex+"CostPath")
	add(ex+"step3", ex+"order", integer("3"))
	add(ex+"step3", store.RDFSLabel, store.NewLangLiteral("Pfad", "de"))
	add(ex+"CostPath", store.RDFSSubClassOf, ex+"Operation")
	add(ex+"CostDistance", store.RDFSSubClassOf, ex+"Operation")
	add(ex+"Operation", store.RDFSSubClassOf, ex+"Tool")

	return ts
}

func mustSelect(t *testing.T, executor *Executor, queryStr string) *QueryResult {
	t.Helper()
	result, err := executor.ExecuteString(prologue + queryStr)
	if err != nil {
		t.Fatalf("ExecuteString() error = %v", err)
	}
	return result
}

// column returns the values of one variable across the result rows.
func column(result *QueryResult, variable string) []string {
	values := make([]string, len(result.Bindings))
	for i, binding := range result.Bindings {
		values[i] = binding[variable]
	}
	return values
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
