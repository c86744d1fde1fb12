package store

import (
	"bytes"
	"encoding/json"
	"testing"
)

const ex = "http://example.org/lcp#"

func jsonldStore(t *testing.T) *TripleStore {
	t.Helper()
	ts := NewTripleStore()
	triples := [][3]string{
		{ex + "step1", RDFType, NamespaceWF + "Step"},
		{ex + "step1", RDFType, NamespaceGIS + "CostPath"},
		{ex + "step1", NamespaceWF + "output", ex + "path"},
		{ex + "step1", RDFSLabel, NewLangLiteral("Pfad", "de")},
		{ex + "path", NamespaceAnalysis + "cellSize", NewTypedLiteral("30", XSDInteger)},
		{ex + "path", RDFSComment, NewLiteral("least cost")},
		{ex + "path", NamespaceWF + "annotation", "_:g1"},
	}
	for _, triple := range triples {
		if err := ts.Add(triple[0], triple[1], triple[2]); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	return ts
}

func decodeDocument(t *testing.T, data []byte) (map[string]interface{}, map[string]map[string]interface{}) {
	t.Helper()
	var document struct {
		Context map[string]interface{}   `json:"@context"`
		Graph   []map[string]interface{} `json:"@graph"`
	}
	if err := json.Unmarshal(data, &document); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, data)
	}
	nodes := make(map[string]map[string]interface{}, len(document.Graph))
	for _, node := range document.Graph {
		nodes[node["@id"].(string)] = node
	}
	return document.Context, nodes
}

func TestJSONLD_Compact(t *testing.T) {
	data, err := NewJSONLDSerializer(WithJSONLDPrefixes([]PrefixMapping{
		{Prefix: "lcp", Namespace: ex},
	})).Serialize(jsonldStore(t))
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	context, nodes := decodeDocument(t, data)
	if context["wf"] != NamespaceWF || context["lcp"] != ex {
		t.Errorf("context missing prefixes: %v", context)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}

	step, ok := nodes["lcp:step1"]
	if !ok {
		t.Fatalf("no node lcp:step1 in %v", nodes)
	}
	types := step["@type"].([]interface{})
	if len(types) != 2 || types[0] != "gis:CostPath" || types[1] != "wf:Step" {
		t.Errorf("@type = %v", types)
	}
	output := step["wf:output"].([]interface{})[0].(map[string]interface{})
	if output["@id"] != "lcp:path" {
		t.Errorf("wf:output = %v", output)
	}
	label := step["rdfs:label"].([]interface{})[0].(map[string]interface{})
	if label["@value"] != "Pfad" || label["@language"] != "de" {
		t.Errorf("rdfs:label = %v", label)
	}

	path := nodes["lcp:path"]
	cellSize := path["ana:cellSize"].([]interface{})[0].(map[string]interface{})
	if cellSize["@value"] != "30" || cellSize["@type"] != "xsd:integer" {
		t.Errorf("ana:cellSize = %v", cellSize)
	}
	comment := path["rdfs:comment"].([]interface{})[0].(map[string]interface{})
	if _, typed := comment["@type"]; typed || comment["@value"] != "least cost" {
		t.Errorf("rdfs:comment = %v", comment)
	}
	annotation := path["wf:annotation"].([]interface{})[0].(map[string]interface{})
	if annotation["@id"] != "_:g1" {
		t.Errorf("wf:annotation = %v", annotation)
	}
}

func TestJSONLD_Expanded(t *testing.T) {
	data, err := NewJSONLDSerializer(WithExpandedForm()).Serialize(jsonldStore(t))
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	context, nodes := decodeDocument(t, data)
	if context != nil {
		t.Errorf("expanded form should have no context, got %v", context)
	}
	step, ok := nodes[ex+"step1"]
	if !ok {
		t.Fatalf("no node %s", ex+"step1")
	}
	if _, ok := step[NamespaceWF+"output"]; !ok {
		t.Errorf("expected full predicate IRI in %v", step)
	}
}

func TestJSONLD_Stable(t *testing.T) {
	first, err := NewJSONLDSerializer().Serialize(jsonldStore(t))
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewJSONLDSerializer().Serialize(jsonldStore(t))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("serialization is not deterministic")
	}
}

func TestEncode_JSONLD(t *testing.T) {
	var buffer bytes.Buffer
	if err := jsonldStore(t).Encode(&buffer, FormatJSONLD, nil); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !json.Valid(buffer.Bytes()) {
		t.Errorf("Encode() produced invalid JSON:\n%s", buffer.String())
	}
}
