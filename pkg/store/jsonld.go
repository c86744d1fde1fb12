package store

import (
	"encoding/json"
	"sort"
	"strings"
)

// JSONLDContext represents a JSON-LD @context document.
type JSONLDContext map[string]interface{}

// JSONLDSerializer converts a TripleStore into JSON-LD.
type JSONLDSerializer struct {
	prefixMappings []PrefixMapping
	namespaceIndex map[string]string // namespace -> prefix
	compactForm    bool              // If true, compact IRIs against @context; otherwise expanded
}

// JSONLDOption is a functional option for configuring the JSONLDSerializer.
type JSONLDOption func(*JSONLDSerializer)

// NewJSONLDSerializer creates a JSONLDSerializer with standard prefix declarations.
func NewJSONLDSerializer(options ...JSONLDOption) *JSONLDSerializer {
	serializer := &JSONLDSerializer{
		prefixMappings: DefaultPrefixes(),
		compactForm:    true,
	}

	for _, option := range options {
		option(serializer)
	}

	serializer.prefixMappings = dedupePrefixes(serializer.prefixMappings)
	serializer.namespaceIndex = make(map[string]string, len(serializer.prefixMappings))
	for _, mapping := range serializer.prefixMappings {
		serializer.namespaceIndex[mapping.Namespace] = mapping.Prefix
	}

	return serializer
}

// WithJSONLDPrefixes adds prefix mappings; later mappings for the same prefix win.
func WithJSONLDPrefixes(mappings []PrefixMapping) JSONLDOption {
	return func(serializer *JSONLDSerializer) {
		serializer.prefixMappings = append(serializer.prefixMappings, mappings...)
	}
}

// WithExpandedForm configures the serializer to output expanded JSON-LD.
func WithExpandedForm() JSONLDOption {
	return func(serializer *JSONLDSerializer) {
		serializer.compactForm = false
	}
}

// BuildContext creates the @context document from the prefix mappings.
func (serializer *JSONLDSerializer) BuildContext() JSONLDContext {
	context := make(JSONLDContext, len(serializer.prefixMappings))
	for _, mapping := range serializer.prefixMappings {
		context[mapping.Prefix] = mapping.Namespace
	}
	return context
}

// JSONLDDocument represents a complete JSON-LD document.
type JSONLDDocument struct {
	Context JSONLDContext            `json:"@context,omitempty"`
	Graph   []map[string]interface{} `json:"@graph"`
}

// Serialize converts all triples in the store to JSON-LD. Nodes, properties
// and values are sorted so the output is stable across runs.
func (serializer *JSONLDSerializer) Serialize(store *TripleStore) ([]byte, error) {
	subjectGroups := make(map[string]map[string][]string)
	for _, triple := range store.All() {
		if subjectGroups[triple.Subject] == nil {
			subjectGroups[triple.Subject] = make(map[string][]string)
		}
		subjectGroups[triple.Subject][triple.Predicate] = append(subjectGroups[triple.Subject][triple.Predicate], triple.Object)
	}

	document := JSONLDDocument{Graph: make([]map[string]interface{}, 0, len(subjectGroups))}
	if serializer.compactForm {
		document.Context = serializer.BuildContext()
	}

	for _, subject := range sortedKeys(subjectGroups) {
		document.Graph = append(document.Graph, serializer.buildNode(subject, subjectGroups[subject]))
	}

	return json.MarshalIndent(document, "", "  ")
}

func (serializer *JSONLDSerializer) buildNode(subject string, predicateObjectMap map[string][]string) map[string]interface{} {
	node := map[string]interface{}{"@id": serializer.iri(subject)}

	for predicate, objects := range predicateObjectMap {
		sort.Strings(objects)

		if predicate == RDFType {
			types := make([]string, 0, len(objects))
			values := make([]interface{}, 0)
			for _, object := range objects {
				if IsLiteral(object) {
					values = append(values, serializer.value(object))
					continue
				}
				types = append(types, serializer.iri(object))
			}
			if len(types) > 0 {
				node["@type"] = types
			}
			if len(values) > 0 {
				node[serializer.iri(predicate)] = values
			}
			continue
		}

		values := make([]interface{}, len(objects))
		for i, object := range objects {
			values[i] = serializer.value(object)
		}
		node[serializer.iri(predicate)] = values
	}

	return node
}

// value renders an object term as a JSON-LD node reference or value object.
func (serializer *JSONLDSerializer) value(term string) interface{} {
	lexical, lang, datatype, ok := SplitLiteral(term)
	if !ok {
		return map[string]string{"@id": serializer.iri(term)}
	}
	object := map[string]string{"@value": lexical}
	switch {
	case lang != "":
		object["@language"] = lang
	case datatype != "" && datatype != XSDString:
		object["@type"] = serializer.iri(datatype)
	}
	return object
}

// iri compacts an IRI against the prefixes in compact form. Blank nodes keep
// their _: label.
func (serializer *JSONLDSerializer) iri(term string) string {
	if !serializer.compactForm || IsBlank(term) {
		return term
	}

	bestPrefix := ""
	bestNamespace := ""
	for namespace, prefix := range serializer.namespaceIndex {
		if strings.HasPrefix(term, namespace) && len(namespace) > len(bestNamespace) {
			if isValidLocalName(term[len(namespace):]) {
				bestPrefix = prefix
				bestNamespace = namespace
			}
		}
	}
	if bestNamespace == "" {
		return term
	}
	return bestPrefix + ":" + term[len(bestNamespace):]
}
