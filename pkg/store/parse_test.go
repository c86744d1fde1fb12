package store

import (
	"bytes"
	"strings"
	"testing"
)

const workflowTurtle = `@prefix wf: <http://geographicknowledge.de/vocab/Workflow.rdf#> .
@prefix gis: <http://geographicknowledge.de/vocab/GISConcepts.rdf#> .
@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .

<http://example.org/lcp#wf1> a wf:Workflow ;
    wf:edge _:e1 .
_:e1 wf:applicationOf gis:CostPath ;
    rdfs:label "cost path" ;
    wf:order "6"^^xsd:integer .
`

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path     string
		expected Format
		wantErr  bool
	}{
		{"workflows/workflow_lcpath/workflow_lcpath.ttl", FormatTurtle, false},
		{"a.n3", FormatTurtle, false},
		{"ontologies/Workflow.rdf", FormatRDFXML, false},
		{"x.owl", FormatRDFXML, false},
		{"dump.nt", FormatNTriples, false},
		{"out.jsonld", FormatJSONLD, false},
		{"noext", "", true},
		{"data.json", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatForPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("FormatForPath(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestDecode_Turtle(t *testing.T) {
	store := NewTripleStore()

	added, err := store.Decode(strings.NewReader(workflowTurtle), FormatTurtle, "l1")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if added != 5 {
		t.Errorf("Expected 5 triples, got %d", added)
	}

	if !store.Exists("http://example.org/lcp#wf1", RDFType, NamespaceWF+"Workflow") {
		t.Error("Missing rdf:type triple")
	}

	edges := store.Find("http://example.org/lcp#wf1", NamespaceWF+"edge", "")
	if len(edges) != 1 || !strings.HasPrefix(edges[0].Object, "_:l1_") {
		t.Fatalf("Expected scoped blank node, got %v", edges)
	}

	if !store.Exists(edges[0].Object, NamespaceWF+"order", NewTypedLiteral("6", XSDInteger)) {
		t.Error("Missing typed literal")
	}
	if !store.Exists(edges[0].Object, RDFSLabel, NewLiteral("cost path")) {
		t.Error("Missing plain literal")
	}
}

func TestDecode_BlankNodeScopes(t *testing.T) {
	store := NewTripleStore()

	if _, err := store.Decode(strings.NewReader(workflowTurtle), FormatTurtle, "l1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Decode(strings.NewReader(workflowTurtle), FormatTurtle, "l2"); err != nil {
		t.Fatal(err)
	}

	// The named workflow triple is shared, the blank edge is not.
	if store.Count() != 9 {
		t.Errorf("Expected 9 triples after loading twice with distinct scopes, got %d", store.Count())
	}
}

func TestDecode_Invalid(t *testing.T) {
	store := NewTripleStore()
	if _, err := store.Decode(strings.NewReader("<a> <b"), FormatNTriples, ""); err == nil {
		t.Error("Expected error for malformed input")
	}
}

func TestEncode_NTriplesRoundTrip(t *testing.T) {
	original := NewTripleStore()
	if _, err := original.Decode(strings.NewReader(workflowTurtle), FormatTurtle, "l1"); err != nil {
		t.Fatal(err)
	}

	var buffer bytes.Buffer
	if err := original.Encode(&buffer, FormatNTriples, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	reloaded := NewTripleStore()
	if _, err := reloaded.Decode(&buffer, FormatNTriples, ""); err != nil {
		t.Fatalf("Decode of encoded output failed: %v", err)
	}
	if reloaded.Count() != original.Count() {
		t.Errorf("Round trip changed triple count: %d -> %d", original.Count(), reloaded.Count())
	}
}

func TestEncode_UnknownFormat(t *testing.T) {
	var buffer bytes.Buffer
	if err := NewTripleStore().Encode(&buffer, Format("trig"), nil); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestDecode_JSONLDUnsupported(t *testing.T) {
	if _, err := NewTripleStore().Decode(strings.NewReader("{}"), FormatJSONLD, ""); err == nil {
		t.Error("Expected error decoding JSON-LD")
	}
}
