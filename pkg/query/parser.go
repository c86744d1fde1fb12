package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/semgeo/semgeo/pkg/store"
)

// Well-known prefixes available to every request without declaration.
var defaultPrefixes = map[string]string{
	"rdf":  store.NamespaceRDF,
	"rdfs": store.NamespaceRDFS,
	"owl":  store.NamespaceOWL,
	"xsd":  store.NamespaceXSD,
}

// Parser parses SPARQL query and update text into the AST.
type Parser struct {
	input    string
	tokens   []token
	pos      int
	prefixes map[string]string
	base     string

	// blankAsVar turns blank nodes into hidden variables (query patterns)
	// instead of template blank nodes (CONSTRUCT and update templates).
	blankAsVar bool
	anonCount  int
}

// NewParser creates a parser with the default prefixes plus extra.
func NewParser(extra map[string]string) *Parser {
	prefixes := make(map[string]string, len(defaultPrefixes)+len(extra))
	for prefix, namespace := range defaultPrefixes {
		prefixes[prefix] = namespace
	}
	for prefix, namespace := range extra {
		prefixes[prefix] = namespace
	}
	return &Parser{prefixes: prefixes}
}

// ParseQuery parses a SPARQL SELECT, ASK or CONSTRUCT query.
func ParseQuery(queryStr string) (*Query, error) {
	return NewParser(nil).ParseQuery(queryStr)
}

// ParseUpdate parses a SPARQL update request.
func ParseUpdate(updateStr string) (*Update, error) {
	return NewParser(nil).ParseUpdate(updateStr)
}

// ParseQuery parses a SPARQL SELECT, ASK or CONSTRUCT query.
func (p *Parser) ParseQuery(queryStr string) (*Query, error) {
	if err := p.reset(queryStr); err != nil {
		return nil, err
	}
	if err := p.parsePrologue(); err != nil {
		return nil, err
	}

	query := &Query{}
	tok := p.peek()
	var err error
	switch {
	case tok.isKeyword("SELECT"):
		query.Type = SelectQueryType
		query.Select, err = p.parseSelect()
	case tok.isKeyword("ASK"):
		query.Type = AskQueryType
		query.Ask, err = p.parseAsk()
	case tok.isKeyword("CONSTRUCT"):
		query.Type = ConstructQueryType
		query.Construct, err = p.parseConstruct()
	default:
		return nil, p.errorf(tok, "expected SELECT, ASK or CONSTRUCT, got %s", tok)
	}
	if err != nil {
		return nil, err
	}

	// VALUES after the WHERE clause joins with the whole result.
	if p.peek().isKeyword("VALUES") {
		values, err := p.parseValues()
		if err != nil {
			return nil, err
		}
		switch {
		case query.Select != nil:
			query.Select.Where.Elements = append(query.Select.Where.Elements, values)
		case query.Ask != nil:
			query.Ask.Where.Elements = append(query.Ask.Where.Elements, values)
		case query.Construct != nil:
			query.Construct.Where.Elements = append(query.Construct.Where.Elements, values)
		}
	}

	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s after query", tok)
	}
	query.Prefixes = p.prefixes
	return query, nil
}

// ParseUpdate parses a SPARQL update request of one or more operations.
func (p *Parser) ParseUpdate(updateStr string) (*Update, error) {
	if err := p.reset(updateStr); err != nil {
		return nil, err
	}

	update := &Update{}
	for {
		if err := p.parsePrologue(); err != nil {
			return nil, err
		}
		if p.peek().kind == tokEOF {
			break
		}

		operation, err := p.parseUpdateOperation()
		if err != nil {
			return nil, err
		}
		update.Operations = append(update.Operations, operation)

		if !p.acceptPunct(";") {
			break
		}
	}

	if err := p.parsePrologue(); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s after update operation", tok)
	}
	update.Prefixes = p.prefixes
	return update, nil
}

func (p *Parser) reset(text string) error {
	tokens, err := tokenize(text)
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	p.input = text
	p.tokens = tokens
	p.pos = 0
	p.anonCount = 0
	return nil
}

// --- token helpers ---

func (p *Parser) peek() token {
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(offset int) token {
	if p.pos+offset < len(p.tokens) {
		return p.tokens[p.pos+offset]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) acceptPunct(symbol string) bool {
	if p.peek().isPunct(symbol) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) acceptKeyword(word string) bool {
	if p.peek().isKeyword(word) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectPunct(symbol string) error {
	if tok := p.peek(); !tok.isPunct(symbol) {
		return p.errorf(tok, "expected %q, got %s", symbol, tok)
	}
	p.advance()
	return nil
}

func (p *Parser) expectKeyword(word string) error {
	if tok := p.peek(); !tok.isKeyword(word) {
		return p.errorf(tok, "expected %s, got %s", word, tok)
	}
	p.advance()
	return nil
}

func (p *Parser) errorf(tok token, format string, args ...any) error {
	lx := &lexer{input: p.input}
	return fmt.Errorf("parse error: %w", lx.errorf(tok.pos, format, args...))
}

// --- prologue ---

func (p *Parser) parsePrologue() error {
	for {
		switch tok := p.peek(); {
		case tok.isKeyword("PREFIX"):
			p.advance()
			name := p.advance()
			if name.kind != tokPName || !strings.HasSuffix(name.text, ":") {
				return p.errorf(name, "expected prefix name, got %s", name)
			}
			iri := p.advance()
			if iri.kind != tokIRI {
				return p.errorf(iri, "expected namespace IRI, got %s", iri)
			}
			p.prefixes[strings.TrimSuffix(name.text, ":")] = p.resolveIRI(iri.text)
		case tok.isKeyword("BASE"):
			p.advance()
			iri := p.advance()
			if iri.kind != tokIRI {
				return p.errorf(iri, "expected base IRI, got %s", iri)
			}
			p.base = iri.text
		default:
			return nil
		}
	}
}

func (p *Parser) resolveIRI(iri string) string {
	if p.base == "" || strings.Contains(iri, ":") {
		return iri
	}
	if strings.HasPrefix(iri, "#") || iri == "" {
		return strings.SplitN(p.base, "#", 2)[0] + iri
	}
	if i := strings.LastIndex(p.base, "/"); i >= 0 {
		return p.base[:i+1] + iri
	}
	return p.base + iri
}

func (p *Parser) expandPName(tok token) (string, error) {
	idx := strings.Index(tok.text, ":")
	prefix, local := tok.text[:idx], tok.text[idx+1:]
	namespace, ok := p.prefixes[prefix]
	if !ok {
		return "", p.errorf(tok, "undeclared prefix %q", prefix)
	}
	return namespace + local, nil
}

// --- query forms ---

func (p *Parser) parseSelect() (*SelectQuery, error) {
	p.advance() // SELECT
	query := &SelectQuery{Limit: -1}

	switch {
	case p.acceptKeyword("DISTINCT"):
		query.Distinct = true
	case p.acceptKeyword("REDUCED"):
		query.Reduced = true
	}

	if p.acceptPunct("*") {
		query.Variables = []string{"*"}
	} else {
		for {
			tok := p.peek()
			if tok.kind == tokVar {
				p.advance()
				query.Variables = append(query.Variables, "?"+tok.text)
				continue
			}
			if tok.isPunct("(") {
				p.advance()
				expr, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if err := p.expectKeyword("AS"); err != nil {
					return nil, err
				}
				alias := p.advance()
				if alias.kind != tokVar {
					return nil, p.errorf(alias, "expected variable after AS, got %s", alias)
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				query.Projections = append(query.Projections, Projection{Expr: expr, Alias: "?" + alias.text})
				continue
			}
			break
		}
		if len(query.Variables) == 0 && len(query.Projections) == 0 {
			return nil, p.errorf(p.peek(), "SELECT needs at least one variable or *")
		}
	}

	where, err := p.parseWhereClause(true)
	if err != nil {
		return nil, err
	}
	query.Where = where

	if err := p.parseSolutionModifiers(query); err != nil {
		return nil, err
	}
	return query, nil
}

func (p *Parser) parseAsk() (*AskQuery, error) {
	p.advance() // ASK
	where, err := p.parseWhereClause(true)
	if err != nil {
		return nil, err
	}
	return &AskQuery{Where: where}, nil
}

func (p *Parser) parseConstruct() (*ConstructQuery, error) {
	p.advance() // CONSTRUCT
	query := &ConstructQuery{Limit: -1}

	if p.peek().isKeyword("WHERE") {
		// CONSTRUCT WHERE { triples } uses the pattern as its own template.
		p.advance()
		triples, err := p.parseQuadData(true)
		if err != nil {
			return nil, err
		}
		query.Template = triples
		query.Where = &GroupPattern{Elements: []PatternElement{&BasicPattern{Triples: triples}}}
	} else {
		template, err := p.parseQuadData(false)
		if err != nil {
			return nil, err
		}
		query.Template = template
		where, err := p.parseWhereClause(false)
		if err != nil {
			return nil, err
		}
		query.Where = where
	}

	modifiers := &SelectQuery{Limit: -1}
	if err := p.parseSolutionModifiers(modifiers); err != nil {
		return nil, err
	}
	if len(modifiers.GroupBy) > 0 || len(modifiers.Having) > 0 {
		return nil, fmt.Errorf("parse error: GROUP BY is not allowed in CONSTRUCT")
	}
	query.OrderBy = modifiers.OrderBy
	query.Limit = modifiers.Limit
	query.Offset = modifiers.Offset
	return query, nil
}

func (p *Parser) parseWhereClause(optionalKeyword bool) (*GroupPattern, error) {
	if !p.acceptKeyword("WHERE") && !optionalKeyword {
		return nil, p.errorf(p.peek(), "expected WHERE, got %s", p.peek())
	}
	return p.parseGroup()
}

func (p *Parser) parseSolutionModifiers(query *SelectQuery) error {
	if p.peek().isKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for {
			tok := p.peek()
			switch {
			case tok.kind == tokVar:
				p.advance()
				query.GroupBy = append(query.GroupBy, &VariableExpr{Name: "?" + tok.text})
				continue
			case tok.isPunct("("):
				p.advance()
				expr, err := p.parseExpression()
				if err != nil {
					return err
				}
				if err := p.expectPunct(")"); err != nil {
					return err
				}
				query.GroupBy = append(query.GroupBy, expr)
				continue
			case isBuiltinCall(tok):
				expr, err := p.parsePrimary()
				if err != nil {
					return err
				}
				query.GroupBy = append(query.GroupBy, expr)
				continue
			}
			break
		}
		if len(query.GroupBy) == 0 {
			return p.errorf(p.peek(), "GROUP BY needs at least one condition")
		}
	}

	if p.acceptKeyword("HAVING") {
		for p.peek().isPunct("(") || isBuiltinCall(p.peek()) {
			expr, err := p.parseConstraint()
			if err != nil {
				return err
			}
			query.Having = append(query.Having, expr)
		}
		if len(query.Having) == 0 {
			return p.errorf(p.peek(), "HAVING needs at least one constraint")
		}
	}

	if p.peek().isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for {
			tok := p.peek()
			var order OrderBy
			switch {
			case tok.isKeyword("ASC") || tok.isKeyword("DESC"):
				p.advance()
				order.Descending = tok.isKeyword("DESC")
				if err := p.expectPunct("("); err != nil {
					return err
				}
				expr, err := p.parseExpression()
				if err != nil {
					return err
				}
				if err := p.expectPunct(")"); err != nil {
					return err
				}
				order.Expr = expr
			case tok.kind == tokVar:
				p.advance()
				order.Expr = &VariableExpr{Name: "?" + tok.text}
			case tok.isPunct("(") || isBuiltinCall(tok):
				expr, err := p.parseConstraint()
				if err != nil {
					return err
				}
				order.Expr = expr
			}
			if order.Expr == nil {
				break
			}
			query.OrderBy = append(query.OrderBy, order)
		}
		if len(query.OrderBy) == 0 {
			return p.errorf(p.peek(), "ORDER BY needs at least one condition")
		}
	}

	for {
		switch {
		case p.acceptKeyword("LIMIT"):
			n, err := p.parseNonNegativeInt()
			if err != nil {
				return err
			}
			query.Limit = n
		case p.acceptKeyword("OFFSET"):
			n, err := p.parseNonNegativeInt()
			if err != nil {
				return err
			}
			query.Offset = n
		default:
			return nil
		}
	}
}

func (p *Parser) parseNonNegativeInt() (int, error) {
	tok := p.advance()
	if tok.kind != tokInteger {
		return 0, p.errorf(tok, "expected integer, got %s", tok)
	}
	n, err := strconv.Atoi(tok.text)
	if err != nil {
		return 0, p.errorf(tok, "invalid integer %q", tok.text)
	}
	return n, nil
}

// --- updates ---

func (p *Parser) parseUpdateOperation() (UpdateOperation, error) {
	tok := p.peek()
	switch {
	case tok.isKeyword("INSERT") && p.peekAt(1).isKeyword("DATA"):
		p.pos += 2
		triples, err := p.parseQuadData(false)
		if err != nil {
			return nil, err
		}
		if err := p.checkGround(triples, "INSERT DATA"); err != nil {
			return nil, err
		}
		return &InsertData{Triples: triples}, nil

	case tok.isKeyword("DELETE") && p.peekAt(1).isKeyword("DATA"):
		p.pos += 2
		triples, err := p.parseQuadData(false)
		if err != nil {
			return nil, err
		}
		if err := p.checkGround(triples, "DELETE DATA"); err != nil {
			return nil, err
		}
		for _, triple := range triples {
			if store.IsBlank(triple.Subject) || store.IsBlank(triple.Object) {
				return nil, p.errorf(tok, "blank nodes are not allowed in DELETE DATA")
			}
		}
		return &DeleteData{Triples: triples}, nil

	case tok.isKeyword("DELETE") && p.peekAt(1).isKeyword("WHERE"):
		p.pos += 2
		patterns, err := p.parseQuadData(true)
		if err != nil {
			return nil, err
		}
		return &DeleteWhere{Patterns: patterns}, nil

	case tok.isKeyword("DELETE") || tok.isKeyword("INSERT"):
		return p.parseModify()

	case tok.isKeyword("CLEAR"):
		p.advance()
		clear := &Clear{}
		clear.Silent = p.acceptKeyword("SILENT")
		target := p.advance()
		switch {
		case target.isKeyword("DEFAULT") || target.isKeyword("ALL") || target.isKeyword("NAMED"):
			clear.Target = strings.ToUpper(target.text)
		case target.isKeyword("GRAPH"):
			iri := p.advance()
			if iri.kind != tokIRI && iri.kind != tokPName {
				return nil, p.errorf(iri, "expected graph IRI, got %s", iri)
			}
			clear.Target = "GRAPH"
		default:
			return nil, p.errorf(target, "expected DEFAULT, ALL, NAMED or GRAPH, got %s", target)
		}
		return clear, nil

	case tok.isKeyword("WITH") || tok.isKeyword("LOAD") || tok.isKeyword("CREATE") ||
		tok.isKeyword("DROP") || tok.isKeyword("COPY") || tok.isKeyword("MOVE") || tok.isKeyword("ADD"):
		return nil, p.errorf(tok, "unsupported update operation %s", strings.ToUpper(tok.text))
	}

	return nil, p.errorf(tok, "expected update operation, got %s", tok)
}

func (p *Parser) parseModify() (UpdateOperation, error) {
	modify := &Modify{}

	if p.acceptKeyword("DELETE") {
		triples, err := p.parseQuadData(false)
		if err != nil {
			return nil, err
		}
		for _, triple := range triples {
			if store.IsBlank(triple.Subject) || store.IsBlank(triple.Object) {
				return nil, fmt.Errorf("parse error: blank nodes are not allowed in DELETE templates")
			}
		}
		modify.Delete = triples
	}
	if p.acceptKeyword("INSERT") {
		triples, err := p.parseQuadData(false)
		if err != nil {
			return nil, err
		}
		modify.Insert = triples
	}
	if tok := p.peek(); tok.isKeyword("USING") {
		return nil, p.errorf(tok, "USING is not supported")
	}

	where, err := p.parseWhereClause(false)
	if err != nil {
		return nil, err
	}
	modify.Where = where
	return modify, nil
}

// parseQuadData parses { triples } as used by templates and data blocks.
func (p *Parser) parseQuadData(patternMode bool) ([]TriplePattern, error) {
	saved := p.blankAsVar
	p.blankAsVar = patternMode
	defer func() { p.blankAsVar = saved }()

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var triples []TriplePattern
	for !p.peek().isPunct("}") {
		if tok := p.peek(); tok.isKeyword("GRAPH") {
			return nil, p.errorf(tok, "named graphs are not supported")
		}
		block, err := p.parseTriplesSameSubject()
		if err != nil {
			return nil, err
		}
		triples = append(triples, block...)
		if !p.acceptPunct(".") {
			break
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	for _, triple := range triples {
		if triple.Path != nil {
			return nil, fmt.Errorf("parse error: property paths are only allowed in WHERE patterns")
		}
	}
	return triples, nil
}

func (p *Parser) checkGround(triples []TriplePattern, operation string) error {
	for _, triple := range triples {
		for _, term := range []string{triple.Subject, triple.Predicate, triple.Object} {
			if IsVariable(term) {
				return fmt.Errorf("parse error: variable %s is not allowed in %s", term, operation)
			}
		}
	}
	return nil
}

// --- group graph patterns ---

func (p *Parser) parseGroup() (*GroupPattern, error) {
	saved := p.blankAsVar
	p.blankAsVar = true
	defer func() { p.blankAsVar = saved }()

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	group := &GroupPattern{}
	var basic *BasicPattern

	flush := func() {
		if basic != nil && len(basic.Triples) > 0 {
			group.Elements = append(group.Elements, basic)
		}
		basic = nil
	}

	for {
		tok := p.peek()
		switch {
		case tok.isPunct("}"):
			p.advance()
			flush()
			return group, nil

		case tok.kind == tokEOF:
			return nil, p.errorf(tok, "unterminated group pattern")

		case tok.isPunct("."):
			p.advance()

		case tok.isKeyword("OPTIONAL"):
			p.advance()
			flush()
			inner, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, &OptionalPattern{Group: inner})

		case tok.isKeyword("MINUS"):
			p.advance()
			flush()
			inner, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, &MinusPattern{Group: inner})

		case tok.isKeyword("FILTER"):
			p.advance()
			expr, err := p.parseConstraint()
			if err != nil {
				return nil, err
			}
			flush()
			group.Elements = append(group.Elements, &FilterPattern{Expr: expr})

		case tok.isKeyword("BIND"):
			p.advance()
			flush()
			bind, err := p.parseBind()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, bind)

		case tok.isKeyword("VALUES"):
			flush()
			values, err := p.parseValues()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, values)

		case tok.isKeyword("GRAPH") || tok.isKeyword("SERVICE"):
			return nil, p.errorf(tok, "%s patterns are not supported", strings.ToUpper(tok.text))

		case tok.isPunct("{"):
			flush()
			element, err := p.parseGroupOrUnion()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, element)

		default:
			triples, err := p.parseTriplesSameSubject()
			if err != nil {
				return nil, err
			}
			if basic == nil {
				basic = &BasicPattern{}
			}
			basic.Triples = append(basic.Triples, triples...)
			if !p.peek().isPunct(".") && !p.peek().isPunct("}") && !isGroupKeyword(p.peek()) {
				return nil, p.errorf(p.peek(), "expected '.' or '}', got %s", p.peek())
			}
		}
	}
}

func isGroupKeyword(tok token) bool {
	for _, word := range []string{"OPTIONAL", "MINUS", "FILTER", "BIND", "VALUES", "GRAPH", "SERVICE"} {
		if tok.isKeyword(word) {
			return true
		}
	}
	return tok.isPunct("{")
}

func (p *Parser) parseGroupOrUnion() (PatternElement, error) {
	first, err := p.parseGroup()
	if err != nil {
		return nil, err
	}
	if !p.peek().isKeyword("UNION") {
		return first, nil
	}
	union := &UnionPattern{Alternatives: []*GroupPattern{first}}
	for p.acceptKeyword("UNION") {
		alt, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		union.Alternatives = append(union.Alternatives, alt)
	}
	return union, nil
}

func (p *Parser) parseBind() (*BindPattern, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	v := p.advance()
	if v.kind != tokVar {
		return nil, p.errorf(v, "expected variable after AS, got %s", v)
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &BindPattern{Expr: expr, Variable: "?" + v.text}, nil
}

func (p *Parser) parseValues() (*ValuesPattern, error) {
	p.advance() // VALUES
	values := &ValuesPattern{}

	single := false
	if tok := p.peek(); tok.kind == tokVar {
		p.advance()
		values.Variables = []string{"?" + tok.text}
		single = true
	} else {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		for p.peek().kind == tokVar {
			values.Variables = append(values.Variables, "?"+p.advance().text)
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.acceptPunct("}") {
		if single {
			value, err := p.parseDataValue()
			if err != nil {
				return nil, err
			}
			values.Rows = append(values.Rows, []string{value})
			continue
		}
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var row []string
		for !p.acceptPunct(")") {
			value, err := p.parseDataValue()
			if err != nil {
				return nil, err
			}
			row = append(row, value)
		}
		if len(row) != len(values.Variables) {
			return nil, fmt.Errorf("parse error: VALUES row has %d values for %d variables", len(row), len(values.Variables))
		}
		values.Rows = append(values.Rows, row)
	}
	return values, nil
}

func (p *Parser) parseDataValue() (string, error) {
	if p.acceptKeyword("UNDEF") {
		return "", nil
	}
	tok := p.peek()
	if tok.kind == tokVar || tok.kind == tokBlank {
		return "", p.errorf(tok, "VALUES data must be constant, got %s", tok)
	}
	return p.parseTerm()
}

// --- triples ---

// parseTriplesSameSubject parses "subject predicate-object-list" including
// blank node property lists and collections.
func (p *Parser) parseTriplesSameSubject() ([]TriplePattern, error) {
	var triples []TriplePattern

	var subject string
	tok := p.peek()
	switch {
	case tok.isPunct("["):
		node, inner, err := p.parseBlankNodePropertyList()
		if err != nil {
			return nil, err
		}
		subject = node
		triples = append(triples, inner...)
		// [ :p :o ] . is a complete statement on its own
		if p.peek().isPunct(".") || p.peek().isPunct("}") {
			return triples, nil
		}
	case tok.isPunct("("):
		node, inner, err := p.parseCollection()
		if err != nil {
			return nil, err
		}
		subject = node
		triples = append(triples, inner...)
	default:
		term, err := p.parseVarOrTerm()
		if err != nil {
			return nil, err
		}
		subject = term
	}

	more, err := p.parsePropertyList(subject)
	if err != nil {
		return nil, err
	}
	return append(triples, more...), nil
}

func (p *Parser) parsePropertyList(subject string) ([]TriplePattern, error) {
	var triples []TriplePattern
	for {
		predicate, path, err := p.parseVerb()
		if err != nil {
			return nil, err
		}
		for {
			object, inner, err := p.parseObject()
			if err != nil {
				return nil, err
			}
			triples = append(triples, inner...)
			triples = append(triples, TriplePattern{Subject: subject, Predicate: predicate, Object: object, Path: path})
			if !p.acceptPunct(",") {
				break
			}
		}
		if !p.acceptPunct(";") {
			return triples, nil
		}
		for p.acceptPunct(";") {
		}
		if tok := p.peek(); tok.isPunct(".") || tok.isPunct("]") || tok.isPunct("}") {
			return triples, nil
		}
	}
}

// parseVerb returns a predicate term or variable, or a path when the
// predicate is more than a single IRI.
//
// Path patterns leave Predicate empty.
func (p *Parser) parseVerb() (string, Path, error) {
	tok := p.peek()
	if tok.kind == tokVar {
		p.advance()
		return "?" + tok.text, nil, nil
	}
	path, err := p.parsePathAlternative()
	if err != nil {
		return "", nil, err
	}
	if iri, ok := path.(*PathIRI); ok {
		return iri.IRI, nil, nil
	}
	return "", path, nil
}

func (p *Parser) parsePathAlternative() (Path, error) {
	first, err := p.parsePathSequence()
	if err != nil {
		return nil, err
	}
	if !p.peek().isPunct("|") {
		return first, nil
	}
	alt := &PathAlternative{Options: []Path{first}}
	for p.acceptPunct("|") {
		next, err := p.parsePathSequence()
		if err != nil {
			return nil, err
		}
		alt.Options = append(alt.Options, next)
	}
	return alt, nil
}

func (p *Parser) parsePathSequence() (Path, error) {
	first, err := p.parsePathElt()
	if err != nil {
		return nil, err
	}
	if !p.peek().isPunct("/") {
		return first, nil
	}
	seq := &PathSequence{Steps: []Path{first}}
	for p.acceptPunct("/") {
		next, err := p.parsePathElt()
		if err != nil {
			return nil, err
		}
		seq.Steps = append(seq.Steps, next)
	}
	return seq, nil
}

func (p *Parser) parsePathElt() (Path, error) {
	inverse := p.acceptPunct("^")

	var path Path
	tok := p.peek()
	switch {
	case tok.isPunct("("):
		p.advance()
		inner, err := p.parsePathAlternative()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		path = inner
	case tok.isKeyword("a"):
		p.advance()
		path = &PathIRI{IRI: store.RDFType}
	case tok.kind == tokIRI || tok.kind == tokPName:
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		path = &PathIRI{IRI: iri}
	default:
		return nil, p.errorf(tok, "expected predicate, got %s", tok)
	}

	if next := p.peek(); next.isPunct("*") || next.isPunct("+") || next.isPunct("?") {
		p.advance()
		path = &PathModifier{Path: path, Modifier: next.text[0]}
	}

	if inverse {
		path = &PathInverse{Path: path}
	}
	return path, nil
}

func (p *Parser) parseObject() (string, []TriplePattern, error) {
	tok := p.peek()
	switch {
	case tok.isPunct("["):
		return p.parseBlankNodePropertyList()
	case tok.isPunct("("):
		return p.parseCollection()
	}
	term, err := p.parseVarOrTerm()
	return term, nil, err
}

func (p *Parser) parseBlankNodePropertyList() (string, []TriplePattern, error) {
	p.advance() // [
	node := p.newAnon()
	if p.acceptPunct("]") {
		return node, nil, nil
	}
	triples, err := p.parsePropertyList(node)
	if err != nil {
		return "", nil, err
	}
	if err := p.expectPunct("]"); err != nil {
		return "", nil, err
	}
	return node, triples, nil
}

// parseCollection expands ( a b c ) into an rdf:first/rdf:rest list.
func (p *Parser) parseCollection() (string, []TriplePattern, error) {
	p.advance() // (
	var items []string
	var triples []TriplePattern
	for !p.acceptPunct(")") {
		item, inner, err := p.parseObject()
		if err != nil {
			return "", nil, err
		}
		items = append(items, item)
		triples = append(triples, inner...)
	}
	if len(items) == 0 {
		return store.RDFNil, triples, nil
	}

	nodes := make([]string, len(items))
	for i := range items {
		nodes[i] = p.newAnon()
	}
	for i, item := range items {
		rest := store.RDFNil
		if i+1 < len(nodes) {
			rest = nodes[i+1]
		}
		triples = append(triples,
			TriplePattern{Subject: nodes[i], Predicate: store.RDFFirst, Object: item},
			TriplePattern{Subject: nodes[i], Predicate: store.RDFRest, Object: rest},
		)
	}
	return nodes[0], triples, nil
}

func (p *Parser) newAnon() string {
	p.anonCount++
	return p.blankTerm(fmt.Sprintf("anon%d", p.anonCount))
}

func (p *Parser) blankTerm(label string) string {
	if p.blankAsVar {
		return "?_:" + label
	}
	return "_:" + label
}

// parseVarOrTerm parses a variable or an RDF term into its encoded form.
func (p *Parser) parseVarOrTerm() (string, error) {
	tok := p.peek()
	switch tok.kind {
	case tokVar:
		p.advance()
		return "?" + tok.text, nil
	case tokBlank:
		p.advance()
		return p.blankTerm(tok.text), nil
	}
	return p.parseTerm()
}

// parseTerm parses an IRI, literal, number or boolean.
func (p *Parser) parseTerm() (string, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokIRI || tok.kind == tokPName:
		return p.parseIRI()
	case tok.kind == tokString:
		return p.parseLiteral()
	case tok.kind == tokInteger || tok.kind == tokDecimal || tok.kind == tokDouble:
		p.advance()
		return numericLiteral(tok, ""), nil
	case tok.isPunct("-") || tok.isPunct("+"):
		next := p.peekAt(1)
		if next.kind == tokInteger || next.kind == tokDecimal || next.kind == tokDouble {
			p.pos += 2
			sign := ""
			if tok.text == "-" {
				sign = "-"
			}
			return numericLiteral(next, sign), nil
		}
	case tok.isKeyword("true") || tok.isKeyword("false"):
		p.advance()
		return store.NewTypedLiteral(strings.ToLower(tok.text), store.XSDBoolean), nil
	case tok.isKeyword("a"):
		p.advance()
		return store.RDFType, nil
	}
	return "", p.errorf(tok, "expected RDF term, got %s", tok)
}

func (p *Parser) parseIRI() (string, error) {
	tok := p.advance()
	switch tok.kind {
	case tokIRI:
		return p.resolveIRI(tok.text), nil
	case tokPName:
		return p.expandPName(tok)
	}
	return "", p.errorf(tok, "expected IRI, got %s", tok)
}

func (p *Parser) parseLiteral() (string, error) {
	tok := p.advance()
	switch next := p.peek(); {
	case next.kind == tokLangTag:
		p.advance()
		return store.NewLangLiteral(tok.text, next.text), nil
	case next.isPunct("^^"):
		p.advance()
		datatype, err := p.parseIRI()
		if err != nil {
			return "", err
		}
		return store.NewTypedLiteral(tok.text, datatype), nil
	}
	return store.NewLiteral(tok.text), nil
}

func numericLiteral(tok token, sign string) string {
	switch tok.kind {
	case tokDecimal:
		return store.NewTypedLiteral(sign+tok.text, store.XSDDecimal)
	case tokDouble:
		return store.NewTypedLiteral(sign+tok.text, store.XSDDouble)
	}
	return store.NewTypedLiteral(sign+tok.text, store.XSDInteger)
}

// --- expressions ---

// parseConstraint parses a FILTER/HAVING constraint: a bracketed expression
// or a function call.
func (p *Parser) parseConstraint() (Expression, error) {
	if p.peek().isPunct("(") {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	if isBuiltinCall(p.peek()) || p.peek().kind == tokIRI || p.peek().kind == tokPName {
		return p.parsePrimary()
	}
	return nil, p.errorf(p.peek(), "expected constraint, got %s", p.peek())
}

func (p *Parser) parseExpression() (Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Operator: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expression, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct("&&") {
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Operator: "&&", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	for _, op := range []string{"=", "!=", "<", ">", "<=", ">="} {
		if tok.isPunct(op) {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &BinaryExpr{Operator: op, Left: left, Right: right}, nil
		}
	}

	negated := false
	if tok.isKeyword("NOT") && p.peekAt(1).isKeyword("IN") {
		p.advance()
		negated = true
	}
	if p.acceptKeyword("IN") {
		list, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &InExpr{Operand: left, List: list, Negated: negated}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if !tok.isPunct("+") && !tok.isPunct("-") {
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Operator: tok.text, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if !tok.isPunct("*") && !tok.isPunct("/") {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Operator: tok.text, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Expression, error) {
	tok := p.peek()
	if tok.isPunct("!") || tok.isPunct("-") || tok.isPunct("+") {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: tok.text, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.peek()
	switch {
	case tok.isPunct("("):
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return expr, nil

	case tok.kind == tokVar:
		p.advance()
		return &VariableExpr{Name: "?" + tok.text}, nil

	case tok.kind == tokIRI || tok.kind == tokPName:
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		if p.peek().isPunct("(") {
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return &CallExpr{Function: iri, Args: args}, nil
		}
		return &TermExpr{Term: iri}, nil

	case tok.kind == tokString || tok.kind == tokInteger || tok.kind == tokDecimal ||
		tok.kind == tokDouble || tok.isKeyword("true") || tok.isKeyword("false"):
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &TermExpr{Term: term}, nil

	case tok.isKeyword("NOT") && p.peekAt(1).isKeyword("EXISTS"):
		p.pos += 2
		group, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &ExistsExpr{Group: group, Negated: true}, nil

	case tok.isKeyword("EXISTS"):
		p.advance()
		group, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &ExistsExpr{Group: group}, nil

	case tok.kind == tokWord:
		name := strings.ToUpper(tok.text)
		if isAggregateName(name) {
			return p.parseAggregate()
		}
		if _, ok := builtinFunctions[name]; ok {
			p.advance()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return &CallExpr{Function: name, Args: args}, nil
		}
	}
	return nil, p.errorf(tok, "unexpected %s in expression", tok)
}

func (p *Parser) parseArgList() ([]Expression, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []Expression
	if p.acceptPunct(")") {
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.acceptPunct(")") {
			return args, nil
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseAggregate() (Expression, error) {
	name := strings.ToUpper(p.advance().text)
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}

	agg := &AggregateExpr{Function: AggregateFunction(name), Separator: " "}
	agg.Distinct = p.acceptKeyword("DISTINCT")

	if p.acceptPunct("*") {
		if agg.Function != AggregateCOUNT {
			return nil, fmt.Errorf("parse error: only COUNT accepts *")
		}
	} else {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		agg.Arg = arg
	}

	if agg.Function == AggregateGROUPCONCAT && p.acceptPunct(";") {
		if err := p.expectKeyword("SEPARATOR"); err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		sep := p.advance()
		if sep.kind != tokString {
			return nil, p.errorf(sep, "expected separator string, got %s", sep)
		}
		agg.Separator = sep.text
	}

	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return agg, nil
}

func isAggregateName(name string) bool {
	switch AggregateFunction(name) {
	case AggregateCOUNT, AggregateSUM, AggregateAVG, AggregateMIN, AggregateMAX,
		AggregateSAMPLE, AggregateGROUPCONCAT:
		return true
	}
	return false
}

func isBuiltinCall(tok token) bool {
	if tok.kind != tokWord {
		return false
	}
	name := strings.ToUpper(tok.text)
	if _, ok := builtinFunctions[name]; ok {
		return true
	}
	return isAggregateName(name) || name == "EXISTS" || name == "NOT"
}
