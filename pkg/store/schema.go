// Package store provides the in-memory RDF triple store, term encoding,
// parsing of serialized graphs and serializers for the enrichment pipeline.
package store

// Namespace URIs used by the workflow ontologies and rule files.
const (
	// NamespaceRDF is the standard RDF namespace.
	NamespaceRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// NamespaceRDFS is the RDF Schema namespace.
	NamespaceRDFS = "http://www.w3.org/2000/01/rdf-schema#"

	// NamespaceOWL is the Web Ontology Language namespace.
	NamespaceOWL = "http://www.w3.org/2002/07/owl#"

	// NamespaceXSD is the XML Schema namespace for datatypes.
	NamespaceXSD = "http://www.w3.org/2001/XMLSchema#"

	// NamespaceDC is the Dublin Core terms namespace.
	NamespaceDC = "http://purl.org/dc/terms/"

	// NamespaceWF is the workflow ontology namespace.
	NamespaceWF = "http://geographicknowledge.de/vocab/Workflow.rdf#"

	// NamespaceGIS is the GIS concepts ontology namespace.
	NamespaceGIS = "http://geographicknowledge.de/vocab/GISConcepts.rdf#"

	// NamespaceAnalysis is the analysis data ontology namespace.
	NamespaceAnalysis = "http://geographicknowledge.de/vocab/AnalysisData.rdf#"
)

// RDF vocabulary terms.
const (
	RDFType       = NamespaceRDF + "type"
	RDFProperty   = NamespaceRDF + "Property"
	RDFStatement  = NamespaceRDF + "Statement"
	RDFSubject    = NamespaceRDF + "subject"
	RDFPredicate  = NamespaceRDF + "predicate"
	RDFObject     = NamespaceRDF + "object"
	RDFFirst      = NamespaceRDF + "first"
	RDFRest       = NamespaceRDF + "rest"
	RDFNil        = NamespaceRDF + "nil"
	RDFValue      = NamespaceRDF + "value"
	RDFList       = NamespaceRDF + "List"
	RDFAlt        = NamespaceRDF + "Alt"
	RDFBag        = NamespaceRDF + "Bag"
	RDFSeq        = NamespaceRDF + "Seq"
	RDFXMLLiteral = NamespaceRDF + "XMLLiteral"
	RDFLangString = NamespaceRDF + "langString"
)

// RDFS vocabulary terms.
const (
	RDFSResource                    = NamespaceRDFS + "Resource"
	RDFSClass                       = NamespaceRDFS + "Class"
	RDFSLiteral                     = NamespaceRDFS + "Literal"
	RDFSDatatype                    = NamespaceRDFS + "Datatype"
	RDFSContainer                   = NamespaceRDFS + "Container"
	RDFSContainerMembershipProperty = NamespaceRDFS + "ContainerMembershipProperty"
	RDFSSubClassOf                  = NamespaceRDFS + "subClassOf"
	RDFSSubPropertyOf               = NamespaceRDFS + "subPropertyOf"
	RDFSDomain                      = NamespaceRDFS + "domain"
	RDFSRange                       = NamespaceRDFS + "range"
	RDFSMember                      = NamespaceRDFS + "member"
	RDFSLabel                       = NamespaceRDFS + "label"
	RDFSComment                     = NamespaceRDFS + "comment"
	RDFSSeeAlso                     = NamespaceRDFS + "seeAlso"
	RDFSIsDefinedBy                 = NamespaceRDFS + "isDefinedBy"
)

// XSD datatypes the query engine treats specially.
const (
	XSDString   = NamespaceXSD + "string"
	XSDBoolean  = NamespaceXSD + "boolean"
	XSDInteger  = NamespaceXSD + "integer"
	XSDInt      = NamespaceXSD + "int"
	XSDLong     = NamespaceXSD + "long"
	XSDDecimal  = NamespaceXSD + "decimal"
	XSDDouble   = NamespaceXSD + "double"
	XSDFloat    = NamespaceXSD + "float"
	XSDDateTime = NamespaceXSD + "dateTime"
)

// IsNumericDatatype reports whether datatype is one of the XSD numeric types.
func IsNumericDatatype(datatype string) bool {
	switch datatype {
	case XSDInteger, XSDInt, XSDLong, XSDDecimal, XSDDouble, XSDFloat,
		NamespaceXSD + "short", NamespaceXSD + "byte",
		NamespaceXSD + "nonNegativeInteger", NamespaceXSD + "positiveInteger",
		NamespaceXSD + "nonPositiveInteger", NamespaceXSD + "negativeInteger",
		NamespaceXSD + "unsignedInt", NamespaceXSD + "unsignedLong":
		return true
	}
	return false
}

// DefaultPrefixes returns the prefix mappings every serializer starts with.
func DefaultPrefixes() []PrefixMapping {
	return []PrefixMapping{
		{Prefix: "rdf", Namespace: NamespaceRDF},
		{Prefix: "rdfs", Namespace: NamespaceRDFS},
		{Prefix: "owl", Namespace: NamespaceOWL},
		{Prefix: "xsd", Namespace: NamespaceXSD},
		{Prefix: "dc", Namespace: NamespaceDC},
		{Prefix: "wf", Namespace: NamespaceWF},
		{Prefix: "gis", Namespace: NamespaceGIS},
		{Prefix: "ana", Namespace: NamespaceAnalysis},
	}
}
