package inference

import "github.com/semgeo/semgeo/pkg/store"

// axiomaticTriples returns the RDF and RDFS axiomatic triples, without the
// infinite rdf:_n family (those are typed when they occur in the data).
func axiomaticTriples() []store.Triple {
	triples := []store.Triple{
		// RDF axioms
		store.NewTriple(store.RDFType, store.RDFType, store.RDFProperty),
		store.NewTriple(store.RDFSubject, store.RDFType, store.RDFProperty),
		store.NewTriple(store.RDFPredicate, store.RDFType, store.RDFProperty),
		store.NewTriple(store.RDFObject, store.RDFType, store.RDFProperty),
		store.NewTriple(store.RDFFirst, store.RDFType, store.RDFProperty),
		store.NewTriple(store.RDFRest, store.RDFType, store.RDFProperty),
		store.NewTriple(store.RDFValue, store.RDFType, store.RDFProperty),
		store.NewTriple(store.RDFNil, store.RDFType, store.RDFList),
		store.NewTriple(store.RDFXMLLiteral, store.RDFType, store.RDFSDatatype),
		store.NewTriple(store.RDFLangString, store.RDFType, store.RDFSDatatype),

		// RDFS subclass and subproperty axioms
		store.NewTriple(store.RDFAlt, store.RDFSSubClassOf, store.RDFSContainer),
		store.NewTriple(store.RDFBag, store.RDFSSubClassOf, store.RDFSContainer),
		store.NewTriple(store.RDFSeq, store.RDFSSubClassOf, store.RDFSContainer),
		store.NewTriple(store.RDFSContainerMembershipProperty, store.RDFSSubClassOf, store.RDFProperty),
		store.NewTriple(store.RDFSDatatype, store.RDFSSubClassOf, store.RDFSClass),
		store.NewTriple(store.RDFSIsDefinedBy, store.RDFSSubPropertyOf, store.RDFSSeeAlso),
	}

	domains := [][2]string{
		{store.RDFType, store.RDFSResource},
		{store.RDFSDomain, store.RDFProperty},
		{store.RDFSRange, store.RDFProperty},
		{store.RDFSSubPropertyOf, store.RDFProperty},
		{store.RDFSSubClassOf, store.RDFSClass},
		{store.RDFSubject, store.RDFStatement},
		{store.RDFPredicate, store.RDFStatement},
		{store.RDFObject, store.RDFStatement},
		{store.RDFSMember, store.RDFSResource},
		{store.RDFFirst, store.RDFList},
		{store.RDFRest, store.RDFList},
		{store.RDFSSeeAlso, store.RDFSResource},
		{store.RDFSIsDefinedBy, store.RDFSResource},
		{store.RDFSComment, store.RDFSResource},
		{store.RDFSLabel, store.RDFSResource},
		{store.RDFValue, store.RDFSResource},
	}
	for _, d := range domains {
		triples = append(triples, store.NewTriple(d[0], store.RDFSDomain, d[1]))
	}

	ranges := [][2]string{
		{store.RDFType, store.RDFSClass},
		{store.RDFSDomain, store.RDFSClass},
		{store.RDFSRange, store.RDFSClass},
		{store.RDFSSubPropertyOf, store.RDFProperty},
		{store.RDFSSubClassOf, store.RDFSClass},
		{store.RDFSubject, store.RDFSResource},
		{store.RDFPredicate, store.RDFSResource},
		{store.RDFObject, store.RDFSResource},
		{store.RDFSMember, store.RDFSResource},
		{store.RDFFirst, store.RDFSResource},
		{store.RDFRest, store.RDFList},
		{store.RDFSSeeAlso, store.RDFSResource},
		{store.RDFSIsDefinedBy, store.RDFSResource},
		{store.RDFSComment, store.RDFSLiteral},
		{store.RDFSLabel, store.RDFSLiteral},
		{store.RDFValue, store.RDFSResource},
	}
	for _, r := range ranges {
		triples = append(triples, store.NewTriple(r[0], store.RDFSRange, r[1]))
	}

	return triples
}
