package inference

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/semgeo/semgeo/pkg/store"
)

const ex = "http://example.org/wf#"

func newStore(t *testing.T, triples ...store.Triple) *store.TripleStore {
	t.Helper()
	ts := store.NewTripleStore()
	for _, triple := range triples {
		if err := ts.AddTriple(triple); err != nil {
			t.Fatalf("AddTriple(%v) error = %v", triple, err)
		}
	}
	return ts
}

func tr(s, p, o string) store.Triple {
	return store.NewTriple(s, p, o)
}

func TestEngine_Rules(t *testing.T) {
	minimal := Options{}

	tests := []struct {
		name  string
		input []store.Triple
		want  []store.Triple
		never []store.Triple
	}{
		{
			name:  "rdf1 types predicates as properties",
			input: []store.Triple{tr(ex+"step1", ex+"order", ex+"one")},
			want:  []store.Triple{tr(ex+"order", store.RDFType, store.RDFProperty)},
		},
		{
			name: "rdfs2 domain",
			input: []store.Triple{
				tr(ex+"hasInput", store.RDFSDomain, ex+"Tool"),
				tr(ex+"step1", ex+"hasInput", ex+"layer1"),
			},
			want: []store.Triple{tr(ex+"step1", store.RDFType, ex+"Tool")},
		},
		{
			name: "rdfs3 range skips literals",
			input: []store.Triple{
				tr(ex+"hasInput", store.RDFSRange, ex+"Layer"),
				tr(ex+"step1", ex+"hasInput", ex+"layer1"),
				tr(ex+"step2", ex+"hasInput", store.NewLiteral("raw")),
			},
			want:  []store.Triple{tr(ex+"layer1", store.RDFType, ex+"Layer")},
			never: []store.Triple{tr(store.NewLiteral("raw"), store.RDFType, ex+"Layer")},
		},
		{
			name: "rdfs5 and rdfs7 subproperties",
			input: []store.Triple{
				tr(ex+"hasCostInput", store.RDFSSubPropertyOf, ex+"hasInput"),
				tr(ex+"hasInput", store.RDFSSubPropertyOf, ex+"relatedTo"),
				tr(ex+"step1", ex+"hasCostInput", ex+"layer1"),
			},
			want: []store.Triple{
				tr(ex+"hasCostInput", store.RDFSSubPropertyOf, ex+"relatedTo"),
				tr(ex+"step1", ex+"hasInput", ex+"layer1"),
				tr(ex+"step1", ex+"relatedTo", ex+"layer1"),
			},
		},
		{
			name: "rdfs9 and rdfs11 subclasses",
			input: []store.Triple{
				tr(ex+"CostPath", store.RDFSSubClassOf, ex+"Operation"),
				tr(ex+"Operation", store.RDFSSubClassOf, ex+"Tool"),
				tr(ex+"step1", store.RDFType, ex+"CostPath"),
			},
			want: []store.Triple{
				tr(ex+"CostPath", store.RDFSSubClassOf, ex+"Tool"),
				tr(ex+"step1", store.RDFType, ex+"Operation"),
				tr(ex+"step1", store.RDFType, ex+"Tool"),
			},
		},
		{
			name:  "rdfs6 reflexive property",
			input: []store.Triple{tr(ex+"order", store.RDFType, store.RDFProperty)},
			want:  []store.Triple{tr(ex+"order", store.RDFSSubPropertyOf, ex+"order")},
		},
		{
			name:  "rdfs8 and rdfs10 classes",
			input: []store.Triple{tr(ex+"Tool", store.RDFType, store.RDFSClass)},
			want: []store.Triple{
				tr(ex+"Tool", store.RDFSSubClassOf, store.RDFSResource),
				tr(ex+"Tool", store.RDFSSubClassOf, ex+"Tool"),
			},
		},
		{
			name:  "rdfs12 container membership",
			input: []store.Triple{tr(ex+"list", store.NamespaceRDF+"_1", ex+"a")},
			want: []store.Triple{
				tr(store.NamespaceRDF+"_1", store.RDFType, store.RDFSContainerMembershipProperty),
				tr(store.NamespaceRDF+"_1", store.RDFSSubPropertyOf, store.RDFSMember),
				tr(ex+"list", store.RDFSMember, ex+"a"),
			},
		},
		{
			name:  "rdfs13 datatypes",
			input: []store.Triple{tr(ex+"Meters", store.RDFType, store.RDFSDatatype)},
			want:  []store.Triple{tr(ex+"Meters", store.RDFSSubClassOf, store.RDFSLiteral)},
		},
		{
			name:  "resource typing is optional",
			input: []store.Triple{tr(ex+"step1", ex+"order", ex+"one")},
			never: []store.Triple{tr(ex+"step1", store.RDFType, store.RDFSResource)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newStore(t, tt.input...)
			if _, err := New(minimal, nil).Expand(context.Background(), ts); err != nil {
				t.Fatalf("Expand() error = %v", err)
			}
			for _, want := range tt.want {
				if !ts.Exists(want.Subject, want.Predicate, want.Object) {
					t.Errorf("missing %s", want)
				}
			}
			for _, never := range tt.never {
				if ts.Exists(never.Subject, never.Predicate, never.Object) {
					t.Errorf("unexpected %s", never)
				}
			}
		})
	}
}

func TestEngine_ResourceTyping(t *testing.T) {
	ts := newStore(t, tr(ex+"step1", ex+"output", ex+"layer1"), tr(ex+"step1", store.RDFSLabel, store.NewLiteral("x")))
	if _, err := New(Options{ResourceTyping: true}, nil).Expand(context.Background(), ts); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if !ts.Exists(ex+"step1", store.RDFType, store.RDFSResource) {
		t.Error("subject not typed as resource")
	}
	if !ts.Exists(ex+"layer1", store.RDFType, store.RDFSResource) {
		t.Error("object not typed as resource")
	}
	for _, triple := range ts.All() {
		if store.IsLiteral(triple.Subject) {
			t.Errorf("literal subject produced: %s", triple)
		}
	}
}

func TestEngine_Axioms(t *testing.T) {
	ts := store.NewTripleStore()
	added, err := New(DefaultOptions(), nil).Expand(context.Background(), ts)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if added == 0 || added != ts.Count() {
		t.Errorf("added = %d, Count() = %d", added, ts.Count())
	}
	if !ts.Exists(store.RDFSLabel, store.RDFSRange, store.RDFSLiteral) {
		t.Error("rdfs:label range axiom missing")
	}
	// Axioms are closed like any other data.
	if !ts.Exists(store.RDFSClass, store.RDFSSubClassOf, store.RDFSResource) {
		t.Error("rdfs:Class should be a subclass of rdfs:Resource")
	}
}

func TestEngine_Idempotent(t *testing.T) {
	// Three sources of 50, 30 and 20 disjoint triples.
	ts := store.NewTripleStore()
	for source, size := range []int{50, 30, 20} {
		for i := 0; i < size; i++ {
			subject := fmt.Sprintf("%ssource%d/item%d", ex, source, i)
			class := fmt.Sprintf("%sClass%d", ex, source)
			if err := ts.Add(subject, store.RDFType, class); err != nil {
				t.Fatal(err)
			}
		}
	}
	if ts.Count() != 100 {
		t.Fatalf("Count() = %d, want 100", ts.Count())
	}

	engine := New(DefaultOptions(), nil)

	first, err := engine.ExpandWithStats(context.Background(), ts)
	if err != nil {
		t.Fatalf("first Expand() error = %v", err)
	}
	afterFirst := ts.Count()
	if afterFirst < 100 {
		t.Errorf("Count() after closure = %d, want >= 100", afterFirst)
	}
	if first.Added != afterFirst-100 {
		t.Errorf("Added = %d, want %d", first.Added, afterFirst-100)
	}
	if first.Rounds < 2 {
		t.Errorf("Rounds = %d, want at least 2", first.Rounds)
	}

	second, err := engine.ExpandWithStats(context.Background(), ts)
	if err != nil {
		t.Fatalf("second Expand() error = %v", err)
	}
	if second.Added != 0 {
		t.Errorf("second Expand() added %d triples", second.Added)
	}
	if second.Rounds != 1 {
		t.Errorf("second Expand() rounds = %d, want 1", second.Rounds)
	}
	if ts.Count() != afterFirst {
		t.Errorf("Count() = %d, want %d", ts.Count(), afterFirst)
	}
}

func TestEngine_Cancelled(t *testing.T) {
	ts := newStore(t, tr(ex+"step1", store.RDFType, ex+"CostPath"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}, nil).Expand(ctx, ts)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expand() error = %v, want context.Canceled", err)
	}
	if ts.Count() != 1 {
		t.Errorf("Count() = %d, want 1", ts.Count())
	}
}
