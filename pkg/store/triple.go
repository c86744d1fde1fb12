package store

import "fmt"

// Triple represents an RDF Subject-Predicate-Object statement. Each
// component is an encoded term (see term.go):
//   - Subject: an IRI or blank node (e.g. a workflow step)
//   - Predicate: an IRI (e.g. rdf:type expanded to its full IRI)
//   - Object: an IRI, blank node or literal
type Triple struct {
	Subject   string
	Predicate string
	Object    string
}

// NewTriple creates a new triple with the given components.
func NewTriple(subject, predicate, object string) Triple {
	return Triple{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	}
}

// String returns a human-readable representation of the triple.
func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s", FormatTerm(t.Subject), FormatTerm(t.Predicate), FormatTerm(t.Object))
}

// NTriples returns the triple in N-Triples format.
func (t Triple) NTriples() string {
	return t.String() + " ."
}

// IsValid returns true if all components are non-empty and positioned
// legally: literals only as objects, IRIs only as predicates.
func (t Triple) IsValid() bool {
	if t.Subject == "" || t.Predicate == "" || t.Object == "" {
		return false
	}
	if IsLiteral(t.Subject) {
		return false
	}
	return IsIRI(t.Predicate)
}
