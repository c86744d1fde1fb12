package store

import (
	"strings"
	"testing"
)

func TestNamespaces(t *testing.T) {
	namespaces := []struct {
		name      string
		namespace string
	}{
		{"RDF", NamespaceRDF},
		{"RDFS", NamespaceRDFS},
		{"OWL", NamespaceOWL},
		{"XSD", NamespaceXSD},
		{"DC", NamespaceDC},
		{"WF", NamespaceWF},
		{"GIS", NamespaceGIS},
		{"Analysis", NamespaceAnalysis},
	}

	for _, ns := range namespaces {
		t.Run(ns.name, func(t *testing.T) {
			if !strings.HasPrefix(ns.namespace, "http") {
				t.Errorf("Namespace %s should be an http IRI: %s", ns.name, ns.namespace)
			}
			if !strings.HasSuffix(ns.namespace, "#") && !strings.HasSuffix(ns.namespace, "/") {
				t.Errorf("Namespace %s should end with # or /: %s", ns.name, ns.namespace)
			}
		})
	}
}

func TestVocabularyTerms(t *testing.T) {
	terms := map[string]string{
		RDFType:                         NamespaceRDF,
		RDFProperty:                     NamespaceRDF,
		RDFLangString:                   NamespaceRDF,
		RDFSSubClassOf:                  NamespaceRDFS,
		RDFSSubPropertyOf:               NamespaceRDFS,
		RDFSDomain:                      NamespaceRDFS,
		RDFSRange:                       NamespaceRDFS,
		RDFSContainerMembershipProperty: NamespaceRDFS,
		XSDInteger:                      NamespaceXSD,
		XSDDateTime:                     NamespaceXSD,
	}

	for term, namespace := range terms {
		if !strings.HasPrefix(term, namespace) {
			t.Errorf("%s should be in namespace %s", term, namespace)
		}
		if len(term) == len(namespace) {
			t.Errorf("%s has no local name", term)
		}
	}
}

func TestIsNumericDatatype(t *testing.T) {
	tests := []struct {
		datatype string
		want     bool
	}{
		{XSDInteger, true},
		{XSDDecimal, true},
		{XSDDouble, true},
		{NamespaceXSD + "nonNegativeInteger", true},
		{XSDString, false},
		{XSDBoolean, false},
		{XSDDateTime, false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsNumericDatatype(tt.datatype); got != tt.want {
			t.Errorf("IsNumericDatatype(%q) = %v, want %v", tt.datatype, got, tt.want)
		}
	}
}

func TestDefaultPrefixes(t *testing.T) {
	prefixes := DefaultPrefixes()

	seen := make(map[string]string, len(prefixes))
	for _, mapping := range prefixes {
		if _, dup := seen[mapping.Prefix]; dup {
			t.Errorf("duplicate prefix %q", mapping.Prefix)
		}
		seen[mapping.Prefix] = mapping.Namespace
	}

	want := map[string]string{
		"rdf":  NamespaceRDF,
		"rdfs": NamespaceRDFS,
		"wf":   NamespaceWF,
		"gis":  NamespaceGIS,
		"ana":  NamespaceAnalysis,
	}
	for prefix, namespace := range want {
		if seen[prefix] != namespace {
			t.Errorf("prefix %s = %q, want %q", prefix, seen[prefix], namespace)
		}
	}

	// Callers may modify the result.
	prefixes[0].Prefix = "changed"
	if DefaultPrefixes()[0].Prefix == "changed" {
		t.Error("DefaultPrefixes should return a fresh slice")
	}
}
