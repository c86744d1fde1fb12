package store

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/knakk/rdf"
)

// Format identifies an RDF serialization syntax.
type Format string

const (
	// FormatTurtle is Turtle (also used for the N3 subset the workflow files use).
	FormatTurtle Format = "turtle"
	// FormatRDFXML is RDF/XML, used by the ontology files.
	FormatRDFXML Format = "rdfxml"
	// FormatNTriples is line-based N-Triples.
	FormatNTriples Format = "ntriples"
	// FormatJSONLD is JSON-LD. It can be written but not read.
	FormatJSONLD Format = "jsonld"
)

// ParseFormat maps a user-facing format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "turtle", "ttl", "n3":
		return FormatTurtle, nil
	case "rdfxml", "rdf/xml", "xml", "rdf", "owl":
		return FormatRDFXML, nil
	case "ntriples", "n-triples", "nt":
		return FormatNTriples, nil
	case "jsonld", "json-ld":
		return FormatJSONLD, nil
	}
	return "", fmt.Errorf("unknown RDF format %q", name)
}

// FormatForPath infers the serialization syntax from a file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer RDF format of %s: no extension", path)
	}
	return ParseFormat(ext)
}

func (f Format) decoderFormat() (rdf.Format, error) {
	switch f {
	case FormatTurtle:
		return rdf.Turtle, nil
	case FormatRDFXML:
		return rdf.RDFXML, nil
	case FormatNTriples:
		return rdf.NTriples, nil
	}
	var unsupported rdf.Format
	return unsupported, fmt.Errorf("no decoder for format %q", f)
}

// Decode parses a serialized graph from r and adds its triples to the store.
// Blank node labels are rewritten with the scope prefix so that labels from
// separately loaded documents never collide. Returns the number of triples
// that were not already present.
func (ts *TripleStore) Decode(r io.Reader, format Format, scope string) (int, error) {
	decoderFormat, err := format.decoderFormat()
	if err != nil {
		return 0, err
	}

	decoder := rdf.NewTripleDecoder(r, decoderFormat)

	var batch []Triple
	for {
		decoded, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("decode %s: %w", format, err)
		}

		batch = append(batch, Triple{
			Subject:   encodeTerm(decoded.Subj, scope),
			Predicate: encodeTerm(decoded.Pred, scope),
			Object:    encodeTerm(decoded.Obj, scope),
		})
	}

	return ts.BulkAdd(batch), nil
}

// encodeTerm converts a decoded term into the store encoding.
func encodeTerm(term rdf.Term, scope string) string {
	switch term.Type() {
	case rdf.TermBlank:
		label := strings.TrimPrefix(term.String(), "_:")
		if scope != "" {
			label = scope + "_" + label
		}
		return "_:" + label
	case rdf.TermLiteral:
		literal, ok := term.(rdf.Literal)
		if !ok {
			return NewLiteral(term.String())
		}
		if lang := literal.Lang(); lang != "" {
			return NewLangLiteral(literal.String(), lang)
		}
		return NewTypedLiteral(literal.String(), literal.DataType.String())
	default:
		return term.String()
	}
}
