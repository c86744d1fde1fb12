package store

import (
	"strings"
	"testing"
)

func TestRDFXMLSerialize_EmptyStore(t *testing.T) {
	output := NewRDFXMLSerializer().Serialize(NewTripleStore())

	if !strings.HasPrefix(output, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<rdf:RDF") {
		t.Errorf("Missing XML header: %s", output)
	}
	if !strings.HasSuffix(output, "</rdf:RDF>\n") {
		t.Errorf("Missing closing element: %s", output)
	}
}

func TestRDFXMLSerialize_Terms(t *testing.T) {
	store := NewTripleStore()
	store.Add(exStep, RDFType, exCostPath)
	store.Add(exStep, RDFSLabel, NewLangLiteral("Pfad", "de"))
	store.Add(exStep, NamespaceWF+"order", NewTypedLiteral("3", XSDInteger))
	store.Add(exStep, exOutput, "_:g1")
	store.Add("_:g1", RDFSComment, NewLiteral("a < b & c"))

	output := NewRDFXMLSerializer().Serialize(store)

	expectations := []string{
		`<rdf:Description rdf:about="http://example.org/wf#step1">`,
		`<rdf:type rdf:resource="` + exCostPath + `"/>`,
		`<rdfs:label xml:lang="de">Pfad</rdfs:label>`,
		`<wf:order rdf:datatype="` + XSDInteger + `">3</wf:order>`,
		`<wf:output rdf:nodeID="g1"/>`,
		`<rdf:Description rdf:nodeID="g1">`,
		`<rdfs:comment>a &lt; b &amp; c</rdfs:comment>`,
	}
	for _, expected := range expectations {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected %q in output:\n%s", expected, output)
		}
	}
}

func TestRDFXMLSerialize_GeneratedNamespace(t *testing.T) {
	store := NewTripleStore()
	store.Add(exStep, "http://example.org/vocab#uses", exStep2)

	output := NewRDFXMLSerializer().Serialize(store)

	if !strings.Contains(output, `xmlns:ns1="http://example.org/vocab#"`) {
		t.Errorf("Expected generated namespace declaration:\n%s", output)
	}
	if !strings.Contains(output, `<ns1:uses rdf:resource="http://example.org/wf#step2"/>`) {
		t.Errorf("Expected generated QName:\n%s", output)
	}
}

func TestSplitIRI(t *testing.T) {
	tests := []struct {
		iri, namespace, local string
	}{
		{"http://example.org/vocab#uses", "http://example.org/vocab#", "uses"},
		{"http://example.org/vocab/uses", "http://example.org/vocab/", "uses"},
		{"http://example.org/vocab/", "", ""},
		{"urn:x", "", ""},
	}

	for _, tt := range tests {
		namespace, local := splitIRI(tt.iri)
		if namespace != tt.namespace || local != tt.local {
			t.Errorf("splitIRI(%q) = (%q, %q), want (%q, %q)", tt.iri, namespace, local, tt.namespace, tt.local)
		}
	}
}
