package store

import (
	"strings"
)

// Terms are stored as plain strings so the indexes stay simple map lookups.
// The encoding is unambiguous by first character:
//   - IRI:     the bare IRI text, e.g. "http://www.w3.org/2000/01/rdf-schema#Class"
//   - blank:   "_:" followed by the label, e.g. "_:b12"
//   - literal: N-Triples form, e.g. `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`,
//     `"Haus"@de` or `"plain"`

// TermKind classifies an encoded term.
type TermKind int

const (
	// KindIRI is an IRI reference.
	KindIRI TermKind = iota
	// KindBlank is a blank node.
	KindBlank
	// KindLiteral is a literal value.
	KindLiteral
)

// String returns the lowercase name of the kind.
func (k TermKind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "iri"
	}
}

// Kind reports the kind of an encoded term.
func Kind(term string) TermKind {
	switch {
	case IsLiteral(term):
		return KindLiteral
	case IsBlank(term):
		return KindBlank
	default:
		return KindIRI
	}
}

// IsLiteral reports whether term is an encoded literal.
func IsLiteral(term string) bool {
	return strings.HasPrefix(term, `"`)
}

// IsBlank reports whether term is a blank node.
func IsBlank(term string) bool {
	return strings.HasPrefix(term, "_:")
}

// IsIRI reports whether term is an IRI.
func IsIRI(term string) bool {
	return term != "" && !IsLiteral(term) && !IsBlank(term)
}

// NewLiteral encodes a plain (xsd:string) literal.
func NewLiteral(lexical string) string {
	return `"` + escapeLiteralString(lexical) + `"`
}

// NewLangLiteral encodes a language-tagged literal.
func NewLangLiteral(lexical, lang string) string {
	if lang == "" {
		return NewLiteral(lexical)
	}
	return NewLiteral(lexical) + "@" + strings.ToLower(lang)
}

// NewTypedLiteral encodes a literal with a datatype IRI. xsd:string and an
// empty datatype collapse to the plain form so both spellings compare equal.
func NewTypedLiteral(lexical, datatype string) string {
	if datatype == "" || datatype == XSDString {
		return NewLiteral(lexical)
	}
	if datatype == RDFLangString {
		return NewLiteral(lexical)
	}
	return NewLiteral(lexical) + "^^<" + datatype + ">"
}

// SplitLiteral decodes an encoded literal into its lexical form, language tag
// and datatype IRI. Plain literals report XSDString as datatype; language
// literals report RDFLangString.
func SplitLiteral(term string) (lexical, lang, datatype string, ok bool) {
	if !IsLiteral(term) {
		return "", "", "", false
	}

	end := closingQuote(term)
	if end < 0 {
		return "", "", "", false
	}

	lexical = unescapeLiteralString(term[1:end])
	rest := term[end+1:]

	switch {
	case rest == "":
		return lexical, "", XSDString, true
	case strings.HasPrefix(rest, "@"):
		return lexical, rest[1:], RDFLangString, true
	case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
		return lexical, "", rest[3 : len(rest)-1], true
	}

	return "", "", "", false
}

// LexicalForm returns the lexical form of a literal, the IRI text of an IRI
// and the label of a blank node.
func LexicalForm(term string) string {
	if lexical, _, _, ok := SplitLiteral(term); ok {
		return lexical
	}
	if IsBlank(term) {
		return term[2:]
	}
	return term
}

// closingQuote finds the index of the unescaped quote closing the lexical form.
func closingQuote(term string) int {
	for i := 1; i < len(term); i++ {
		switch term[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// FormatTerm renders an encoded term in N-Triples syntax.
func FormatTerm(term string) string {
	switch Kind(term) {
	case KindLiteral, KindBlank:
		return term
	default:
		return "<" + escapeIRI(term) + ">"
	}
}

func unescapeLiteralString(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}

	var builder strings.Builder
	builder.Grow(len(value))

	for i := 0; i < len(value); i++ {
		char := value[i]
		if char != '\\' || i+1 >= len(value) {
			builder.WriteByte(char)
			continue
		}
		i++
		switch value[i] {
		case 'n':
			builder.WriteByte('\n')
		case 'r':
			builder.WriteByte('\r')
		case 't':
			builder.WriteByte('\t')
		case '"':
			builder.WriteByte('"')
		case '\\':
			builder.WriteByte('\\')
		default:
			builder.WriteByte('\\')
			builder.WriteByte(value[i])
		}
	}

	return builder.String()
}
