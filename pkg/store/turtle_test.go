package store

import (
	"strings"
	"testing"
)

func TestNewTurtleSerializer(t *testing.T) {
	serializer := NewTurtleSerializer()

	for _, prefix := range []string{"rdf", "rdfs", "owl", "xsd", "wf", "gis", "ana"} {
		if _, ok := serializer.prefixIndex[prefix]; !ok {
			t.Errorf("Expected default prefix %q", prefix)
		}
	}
}

func TestNewTurtleSerializer_PrefixOverride(t *testing.T) {
	serializer := NewTurtleSerializer(WithPrefix("wf", "http://example.org/wf#"))

	if serializer.prefixIndex["wf"] != "http://example.org/wf#" {
		t.Errorf("Expected override for wf, got %q", serializer.prefixIndex["wf"])
	}

	count := 0
	for _, mapping := range serializer.prefixMappings {
		if mapping.Prefix == "wf" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected wf declared once, got %d", count)
	}
}

func TestEscapeLiteralString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{`a "quoted" word`, `a \"quoted\" word`},
		{`back\slash`, `back\\slash`},
		{"line\nbreak", `line\nbreak`},
		{"tab\there", `tab\there`},
	}

	for _, tt := range tests {
		if got := escapeLiteralString(tt.input); got != tt.expected {
			t.Errorf("escapeLiteralString(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCompactURI(t *testing.T) {
	serializer := NewTurtleSerializer()

	tests := []struct {
		uri      string
		expected string
		ok       bool
	}{
		{RDFSSubClassOf, "rdfs:subClassOf", true},
		{NamespaceGIS + "CostPath", "gis:CostPath", true},
		{"http://example.org/unknown#x", "", false},
		{NamespaceGIS + "has space", "", false},
		{NamespaceGIS + "a/b", "", false},
	}

	for _, tt := range tests {
		got, ok := serializer.compactURI(tt.uri)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("compactURI(%q) = (%q, %v), want (%q, %v)", tt.uri, got, ok, tt.expected, tt.ok)
		}
	}
}

func TestFormatObject(t *testing.T) {
	serializer := NewTurtleSerializer()

	tests := []struct {
		name     string
		object   string
		expected string
	}{
		{"compacted IRI", NamespaceWF + "Tool", "wf:Tool"},
		{"full IRI", "http://example.org/x", "<http://example.org/x>"},
		{"blank", "_:l1_b0", "_:l1_b0"},
		{"plain literal", NewLiteral("raster"), `"raster"`},
		{"lang literal", NewLangLiteral("Rastern", "de"), `"Rastern"@de`},
		{"typed literal", NewTypedLiteral("7", XSDInteger), `"7"^^xsd:integer`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serializer.formatObject(tt.object); got != tt.expected {
				t.Errorf("formatObject(%q) = %q, want %q", tt.object, got, tt.expected)
			}
		})
	}
}

func TestSerialize_EmptyStore(t *testing.T) {
	output := NewTurtleSerializer(WithoutDefaultPrefixes()).Serialize(NewTripleStore())
	if output != "" {
		t.Errorf("Expected empty output, got %q", output)
	}
}

func TestSerialize_SubjectGrouping(t *testing.T) {
	store := NewTripleStore()
	store.Add(exStep, RDFType, exCostPath)
	store.Add(exStep, RDFSLabel, NewLiteral("least cost path"))
	store.Add(exStep, exOutput, exStep2)

	output := NewTurtleSerializer().Serialize(store)

	expected := "<http://example.org/wf#step1> a gis:CostPath ;\n" +
		"    rdfs:label \"least cost path\" ;\n" +
		"    wf:output <http://example.org/wf#step2> .\n"
	if !strings.Contains(output, expected) {
		t.Errorf("Expected grouped subject block:\n%s\ngot:\n%s", expected, output)
	}
}

func TestSerialize_MultipleObjects(t *testing.T) {
	store := NewTripleStore()
	store.Add(exStep, RDFType, exOp)
	store.Add(exStep, RDFType, exCostPath)

	output := NewTurtleSerializer().Serialize(store)

	if !strings.Contains(output, "a gis:CostPath ,\n        gis:GISOperation .") {
		t.Errorf("Expected comma-separated objects, got:\n%s", output)
	}
}

func TestSerialize_DeterministicOutput(t *testing.T) {
	build := func() *TripleStore {
		store := NewTripleStore()
		store.Add(exStep2, RDFType, exOp)
		store.Add(exStep, RDFType, exCostPath)
		store.Add(exStep, exOutput, "_:g1")
		store.Add("_:g1", RDFSLabel, NewLiteral("out"))
		return store
	}

	first := NewTurtleSerializer().Serialize(build())
	for i := 0; i < 5; i++ {
		if again := NewTurtleSerializer().Serialize(build()); again != first {
			t.Fatalf("Serialization not deterministic:\n%s\nvs\n%s", first, again)
		}
	}
}

func TestSerialize_PrefixDeclarations(t *testing.T) {
	output := NewTurtleSerializer(WithoutDefaultPrefixes(), WithPrefix("ex", "http://example.org/wf#")).
		Serialize(NewTripleStore())

	if output != "@prefix ex: <http://example.org/wf#> .\n\n" {
		t.Errorf("Unexpected prefix block %q", output)
	}
}
