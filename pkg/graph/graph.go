// Package graph defines the mutable knowledge graph the enrichment pipeline
// works on, and its in-memory implementation.
package graph

import (
	"context"
	"io"

	"github.com/semgeo/semgeo/pkg/query"
	"github.com/semgeo/semgeo/pkg/store"
)

// Store is a mutable set of triples that can be loaded from files, changed
// with SPARQL Update text, queried with SPARQL query text and serialized.
type Store interface {
	// Load parses the file at path and adds its triples. The syntax is
	// chosen from the file extension.
	Load(ctx context.Context, path string) error

	// ApplyUpdate runs a SPARQL Update request. The request is parsed in
	// full before anything changes.
	ApplyUpdate(ctx context.Context, text string) error

	// Query runs a SPARQL query without changing the graph.
	Query(ctx context.Context, text string) (*query.QueryResult, error)

	// Size returns the number of distinct triples.
	Size() int

	// Serialize writes the whole graph to w.
	Serialize(w io.Writer, format store.Format) error

	// ExpandClosure adds the RDFS closure of the current contents and
	// returns the number of triples added.
	ExpandClosure(ctx context.Context) (int, error)
}
