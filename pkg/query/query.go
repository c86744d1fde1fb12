// Package query provides SPARQL query and update parsing, evaluation against
// the triple store, and result formatting.
package query

import "strings"

// Query represents a parsed SPARQL query.
type Query struct {
	Type      QueryType
	Select    *SelectQuery
	Ask       *AskQuery
	Construct *ConstructQuery
	Prefixes  map[string]string // Prefix declarations
}

// QueryType represents the type of SPARQL query.
type QueryType string

const (
	// SelectQueryType represents a SELECT query.
	SelectQueryType QueryType = "SELECT"
	// AskQueryType represents an ASK query.
	AskQueryType QueryType = "ASK"
	// ConstructQueryType represents a CONSTRUCT query.
	ConstructQueryType QueryType = "CONSTRUCT"
)

// AggregateFunction represents a SPARQL aggregate function.
type AggregateFunction string

const (
	AggregateCOUNT       AggregateFunction = "COUNT"
	AggregateSUM         AggregateFunction = "SUM"
	AggregateAVG         AggregateFunction = "AVG"
	AggregateMIN         AggregateFunction = "MIN"
	AggregateMAX         AggregateFunction = "MAX"
	AggregateSAMPLE      AggregateFunction = "SAMPLE"
	AggregateGROUPCONCAT AggregateFunction = "GROUP_CONCAT"
)

// Projection is a SELECT expression bound to a variable, e.g. (COUNT(?x) AS ?n).
type Projection struct {
	Expr  Expression
	Alias string // Result variable (e.g., "?count")
}

// SelectQuery represents a parsed SELECT query.
type SelectQuery struct {
	Variables   []string     // Plain variables to select, or ["*"]
	Projections []Projection // Expression projections, including aggregates
	Distinct    bool         // DISTINCT modifier
	Reduced     bool         // REDUCED modifier, treated as DISTINCT
	Where       *GroupPattern
	GroupBy     []Expression // GROUP BY expressions
	Having      []Expression // HAVING constraints
	OrderBy     []OrderBy    // ORDER BY clauses
	Limit       int          // LIMIT (-1 = no limit)
	Offset      int          // OFFSET (0 = no offset)
}

// HasAggregates returns true if the query groups its solutions.
func (q *SelectQuery) HasAggregates() bool {
	if len(q.GroupBy) > 0 {
		return true
	}
	for _, projection := range q.Projections {
		if containsAggregate(projection.Expr) {
			return true
		}
	}
	for _, having := range q.Having {
		if containsAggregate(having) {
			return true
		}
	}
	return false
}

// AllOutputVariables returns the projected variables in SELECT order,
// without the ? prefix. A star projection returns nil.
func (q *SelectQuery) AllOutputVariables() []string {
	if q.IsStar() {
		return nil
	}
	var outputVars []string
	for _, v := range q.Variables {
		outputVars = append(outputVars, StripVariable(v))
	}
	for _, projection := range q.Projections {
		outputVars = append(outputVars, StripVariable(projection.Alias))
	}
	return outputVars
}

// IsStar reports whether the query projects every in-scope variable.
func (q *SelectQuery) IsStar() bool {
	return len(q.Variables) == 1 && q.Variables[0] == "*"
}

// AskQuery represents a parsed ASK query.
type AskQuery struct {
	Where *GroupPattern
}

// ConstructQuery represents a parsed CONSTRUCT query.
type ConstructQuery struct {
	Template []TriplePattern // CONSTRUCT template patterns
	Where    *GroupPattern
	OrderBy  []OrderBy
	Limit    int
	Offset   int
}

// TriplePattern represents a triple pattern. Each position holds either a
// variable (?name) or an encoded store term. Path is set when the predicate
// is a property path other than a single IRI or variable.
type TriplePattern struct {
	Subject   string
	Predicate string
	Object    string
	Path      Path
}

// Variables returns the distinct variables of the pattern in position order.
func (p TriplePattern) Variables() []string {
	var vars []string
	for _, term := range []string{p.Subject, p.Predicate, p.Object} {
		if IsVariable(term) && !containsString(vars, term) {
			vars = append(vars, term)
		}
	}
	return vars
}

// OrderBy represents an ORDER BY condition.
type OrderBy struct {
	Expr       Expression
	Descending bool
}

// GroupPattern is a { ... } group graph pattern.
type GroupPattern struct {
	Elements []PatternElement
}

// PatternElement is one element of a group graph pattern.
type PatternElement interface {
	isPatternElement()
}

// BasicPattern is a block of adjacent triple patterns.
type BasicPattern struct {
	Triples []TriplePattern
}

// OptionalPattern is an OPTIONAL { ... } block.
type OptionalPattern struct {
	Group *GroupPattern
}

// MinusPattern is a MINUS { ... } block.
type MinusPattern struct {
	Group *GroupPattern
}

// UnionPattern is a chain of { ... } UNION { ... } alternatives.
type UnionPattern struct {
	Alternatives []*GroupPattern
}

// FilterPattern is a FILTER constraint. Filters apply to the whole group.
type FilterPattern struct {
	Expr Expression
}

// BindPattern is a BIND(expr AS ?var) assignment.
type BindPattern struct {
	Expr     Expression
	Variable string
}

// ValuesPattern is an inline VALUES data block. An empty row cell means UNDEF.
type ValuesPattern struct {
	Variables []string
	Rows      [][]string
}

func (*GroupPattern) isPatternElement()    {}
func (*BasicPattern) isPatternElement()    {}
func (*OptionalPattern) isPatternElement() {}
func (*MinusPattern) isPatternElement()    {}
func (*UnionPattern) isPatternElement()    {}
func (*FilterPattern) isPatternElement()   {}
func (*BindPattern) isPatternElement()     {}
func (*ValuesPattern) isPatternElement()   {}

// TriplePatterns returns every triple pattern in the group, recursively.
func (g *GroupPattern) TriplePatterns() []TriplePattern {
	if g == nil {
		return nil
	}
	var patterns []TriplePattern
	for _, element := range g.Elements {
		switch el := element.(type) {
		case *BasicPattern:
			patterns = append(patterns, el.Triples...)
		case *GroupPattern:
			patterns = append(patterns, el.TriplePatterns()...)
		case *OptionalPattern:
			patterns = append(patterns, el.Group.TriplePatterns()...)
		case *MinusPattern:
			patterns = append(patterns, el.Group.TriplePatterns()...)
		case *UnionPattern:
			for _, alt := range el.Alternatives {
				patterns = append(patterns, alt.TriplePatterns()...)
			}
		}
	}
	return patterns
}

// Update represents a parsed SPARQL update request: one or more operations
// separated by semicolons, applied in order.
type Update struct {
	Operations []UpdateOperation
	Prefixes   map[string]string
}

// UpdateOperation is one operation of an update request.
type UpdateOperation interface {
	isUpdateOperation()
}

// InsertData is INSERT DATA { ground triples }.
type InsertData struct {
	Triples []TriplePattern
}

// DeleteData is DELETE DATA { ground triples }.
type DeleteData struct {
	Triples []TriplePattern
}

// DeleteWhere is DELETE WHERE { patterns }.
type DeleteWhere struct {
	Patterns []TriplePattern
}

// Modify is DELETE { ... } INSERT { ... } WHERE { ... } with either template
// optional.
type Modify struct {
	Delete []TriplePattern
	Insert []TriplePattern
	Where  *GroupPattern
}

// Clear is CLEAR [SILENT] (DEFAULT | ALL | GRAPH <g>). Only the default
// graph exists, so every target clears the store.
type Clear struct {
	Target string
	Silent bool
}

func (*InsertData) isUpdateOperation()  {}
func (*DeleteData) isUpdateOperation()  {}
func (*DeleteWhere) isUpdateOperation() {}
func (*Modify) isUpdateOperation()      {}
func (*Clear) isUpdateOperation()       {}

// IsVariable checks if a string is a SPARQL variable.
func IsVariable(s string) bool {
	return len(s) > 0 && s[0] == '?'
}

// StripVariable removes the ? prefix from a variable.
func StripVariable(s string) string {
	if IsVariable(s) {
		return s[1:]
	}
	return s
}

// VariableName returns the variable name without the ? prefix, or empty if not a variable.
func VariableName(s string) string {
	if IsVariable(s) {
		return s[1:]
	}
	return ""
}

// isHiddenVariable reports whether a variable was introduced for a blank
// node in a query pattern. Such variables are never projected by SELECT *.
func isHiddenVariable(name string) bool {
	return strings.HasPrefix(StripVariable(name), "_:")
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
