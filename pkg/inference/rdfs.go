// Package inference expands a triple store with the RDFS entailments of its
// contents.
//
// The closure is computed by applying the RDFS entailment rules to the whole
// store in rounds until a round derives nothing new:
//
//	rdf1    (s p o)                              => (p rdf:type rdf:Property)
//	rdfs2   (p rdfs:domain c) (s p o)            => (s rdf:type c)
//	rdfs3   (p rdfs:range c) (s p o)             => (o rdf:type c)
//	rdfs4a  (s p o)                              => (s rdf:type rdfs:Resource)
//	rdfs4b  (s p o)                              => (o rdf:type rdfs:Resource)
//	rdfs5   (p subPropertyOf q) (q subPropertyOf r) => (p subPropertyOf r)
//	rdfs6   (p rdf:type rdf:Property)            => (p subPropertyOf p)
//	rdfs7   (p subPropertyOf q) (s p o)          => (s q o)
//	rdfs8   (c rdf:type rdfs:Class)              => (c subClassOf rdfs:Resource)
//	rdfs9   (c subClassOf d) (s rdf:type c)      => (s rdf:type d)
//	rdfs10  (c rdf:type rdfs:Class)              => (c subClassOf c)
//	rdfs11  (c subClassOf d) (d subClassOf e)    => (c subClassOf e)
//	rdfs12  (p rdf:type rdfs:ContainerMembershipProperty) => (p subPropertyOf rdfs:member)
//	rdfs13  (d rdf:type rdfs:Datatype)           => (d subClassOf rdfs:Literal)
//
// rdfs4a/4b and the axiomatic triples can be switched off through Options.
// Triples that would put a literal in subject position are never produced.
//
// Example:
//
//	engine := inference.New(inference.DefaultOptions(), logger)
//	added, err := engine.Expand(ctx, ts)
package inference

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/semgeo/semgeo/pkg/store"
)

// Options selects the optional parts of the closure.
type Options struct {
	// Axioms adds the RDF and RDFS axiomatic triples before the first round.
	Axioms bool `yaml:"axioms" json:"axioms"`

	// ResourceTyping enables rdfs4a/rdfs4b, typing every subject and
	// non-literal object as rdfs:Resource.
	ResourceTyping bool `yaml:"resource_typing" json:"resource_typing"`
}

// DefaultOptions returns the full RDFS closure.
func DefaultOptions() Options {
	return Options{
		Axioms:         true,
		ResourceTyping: true,
	}
}

// Stats describes one closure expansion.
type Stats struct {
	Added    int           `json:"added"`
	Rounds   int           `json:"rounds"`
	Duration time.Duration `json:"duration"`
}

// Engine computes RDFS closures.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New creates an engine. A nil logger falls back to slog.Default().
func New(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts, logger: logger}
}

// Expand adds every entailed triple to ts and returns how many were added.
// Running it on an already closed store adds nothing.
func (e *Engine) Expand(ctx context.Context, ts *store.TripleStore) (int, error) {
	stats, err := e.ExpandWithStats(ctx, ts)
	return stats.Added, err
}

// ExpandWithStats is Expand that also reports the number of rounds. The
// context is checked between rounds; on cancellation the triples derived so
// far stay in the store.
func (e *Engine) ExpandWithStats(ctx context.Context, ts *store.TripleStore) (Stats, error) {
	start := time.Now()
	stats := Stats{}

	if e.opts.Axioms {
		stats.Added += ts.BulkAdd(axiomaticTriples())
	}

	for {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}

		derived := e.round(ts)
		added := ts.BulkAdd(derived)
		stats.Rounds++
		stats.Added += added

		e.logger.Debug("closure round",
			"round", stats.Rounds,
			"derived", len(derived),
			"added", added)

		if added == 0 {
			break
		}
	}

	stats.Duration = time.Since(start)
	e.logger.Debug("closure expanded",
		"added", stats.Added,
		"rounds", stats.Rounds,
		"duration", stats.Duration)
	return stats, nil
}

var containerMembership = regexp.MustCompile(`^` + regexp.QuoteMeta(store.NamespaceRDF) + `_[1-9][0-9]*$`)

// round applies every rule once to a snapshot of the store.
func (e *Engine) round(ts *store.TripleStore) []store.Triple {
	var derived []store.Triple
	emit := func(s, p, o string) {
		if store.IsLiteral(s) {
			return
		}
		derived = append(derived, store.NewTriple(s, p, o))
	}

	domains := newObjectCache(ts, store.RDFSDomain)
	ranges := newObjectCache(ts, store.RDFSRange)
	superProperties := newObjectCache(ts, store.RDFSSubPropertyOf)
	superClasses := newObjectCache(ts, store.RDFSSubClassOf)

	for _, t := range ts.All() {
		s, p, o := t.Subject, t.Predicate, t.Object

		// rdf1
		emit(p, store.RDFType, store.RDFProperty)
		if containerMembership.MatchString(p) {
			emit(p, store.RDFType, store.RDFSContainerMembershipProperty)
		}

		if e.opts.ResourceTyping {
			emit(s, store.RDFType, store.RDFSResource)
			if !store.IsLiteral(o) {
				emit(o, store.RDFType, store.RDFSResource)
			}
		}

		for _, class := range domains.get(p) {
			emit(s, store.RDFType, class)
		}
		if !store.IsLiteral(o) {
			for _, class := range ranges.get(p) {
				emit(o, store.RDFType, class)
			}
		}
		for _, super := range superProperties.get(p) {
			if super != p {
				emit(s, super, o)
			}
		}

		switch p {
		case store.RDFType:
			for _, super := range superClasses.get(o) {
				emit(s, store.RDFType, super)
			}
			switch o {
			case store.RDFProperty:
				emit(s, store.RDFSSubPropertyOf, s)
			case store.RDFSClass:
				emit(s, store.RDFSSubClassOf, store.RDFSResource)
				emit(s, store.RDFSSubClassOf, s)
			case store.RDFSContainerMembershipProperty:
				emit(s, store.RDFSSubPropertyOf, store.RDFSMember)
			case store.RDFSDatatype:
				emit(s, store.RDFSSubClassOf, store.RDFSLiteral)
			}
		case store.RDFSSubPropertyOf:
			for _, super := range superProperties.get(o) {
				emit(s, store.RDFSSubPropertyOf, super)
			}
		case store.RDFSSubClassOf:
			for _, super := range superClasses.get(o) {
				emit(s, store.RDFSSubClassOf, super)
			}
		}
	}

	return derived
}

// objectCache memoizes the objects of (subject, predicate) lookups for the
// duration of one round.
type objectCache struct {
	ts        *store.TripleStore
	predicate string
	entries   map[string][]string
}

func newObjectCache(ts *store.TripleStore, predicate string) *objectCache {
	return &objectCache{ts: ts, predicate: predicate, entries: make(map[string][]string)}
}

func (c *objectCache) get(subject string) []string {
	if objects, ok := c.entries[subject]; ok {
		return objects
	}
	var objects []string
	if !store.IsLiteral(subject) {
		for _, t := range c.ts.Find(subject, c.predicate, "") {
			objects = append(objects, t.Object)
		}
	}
	c.entries[subject] = objects
	return objects
}
