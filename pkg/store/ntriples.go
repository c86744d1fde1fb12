package store

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// SerializeNTriples renders every triple on its own line, sorted.
func SerializeNTriples(store *TripleStore) string {
	triples := store.All()
	lines := make([]string, len(triples))
	for i, triple := range triples {
		lines[i] = triple.NTriples()
	}
	sort.Strings(lines)

	var builder strings.Builder
	for _, line := range lines {
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	return builder.String()
}

// Encode writes the whole store to w in the requested format. Extra prefix
// mappings are added to the defaults for the formats that use them.
func (ts *TripleStore) Encode(w io.Writer, format Format, prefixes []PrefixMapping) error {
	var output string

	switch format {
	case FormatTurtle:
		output = NewTurtleSerializer(WithPrefixes(prefixes)).Serialize(ts)
	case FormatRDFXML:
		output = NewRDFXMLSerializer(WithRDFXMLPrefixes(prefixes)).Serialize(ts)
	case FormatNTriples:
		output = SerializeNTriples(ts)
	case FormatJSONLD:
		data, err := NewJSONLDSerializer(WithJSONLDPrefixes(prefixes)).Serialize(ts)
		if err != nil {
			return err
		}
		output = string(data) + "\n"
	default:
		return fmt.Errorf("no encoder for format %q", format)
	}

	_, err := io.WriteString(w, output)
	return err
}
