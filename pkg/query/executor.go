package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/semgeo/semgeo/pkg/store"
)

// Binding maps variable names (without ?) to encoded terms.
type Binding = map[string]string

// Executor executes SPARQL queries and updates against a triple store.
type Executor struct {
	store          *store.TripleStore
	planner        *QueryPlanner
	enablePlanning bool
	timeout        time.Duration
	prefixes       map[string]string
	now            func() time.Time
}

// ExecutorOption configures an executor.
type ExecutorOption func(*Executor)

// WithPlanning enables or disables query planning/optimization.
func WithPlanning(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.enablePlanning = enabled
	}
}

// WithTimeout sets the query execution timeout. Zero means no timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithPrefixes adds prefix declarations available to every request text
// parsed by the executor.
func WithPrefixes(prefixes map[string]string) ExecutorOption {
	return func(e *Executor) {
		for prefix, namespace := range prefixes {
			e.prefixes[prefix] = namespace
		}
	}
}

// WithClock overrides the time source used by NOW().
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates a new query executor.
func NewExecutor(tripleStore *store.TripleStore, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:          tripleStore,
		planner:        NewQueryPlanner(tripleStore.Stats()),
		enablePlanning: true,
		prefixes:       make(map[string]string),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RefreshStats updates the query planner with current store statistics.
func (e *Executor) RefreshStats() {
	e.planner = NewQueryPlanner(e.store.Stats())
}

// QueryResult represents the result of a query execution.
type QueryResult struct {
	Variables []string            // Variable names (without ?)
	Bindings  []map[string]string // Variable bindings for each result row
	Count     int                 // Number of result rows or constructed triples
	Boolean   *bool               // ASK result
	Triples   []store.Triple      // CONSTRUCT result
	Metrics   QueryMetrics        // Execution metrics
}

// Bool returns the ASK answer, or whether any solution or triple was produced
// for the other query forms.
func (r *QueryResult) Bool() bool {
	if r.Boolean != nil {
		return *r.Boolean
	}
	return r.Count > 0
}

// QueryMetrics contains performance metrics for query execution.
type QueryMetrics struct {
	ParseTime     time.Duration `json:"parse_time"`
	PlanTime      time.Duration `json:"plan_time"`
	ExecuteTime   time.Duration `json:"execute_time"`
	TotalTime     time.Duration `json:"total_time"`
	PatternsCount int           `json:"patterns_count"`
	ResultCount   int           `json:"result_count"`
}

// Execute executes a parsed query.
func (e *Executor) Execute(query *Query) (*QueryResult, error) {
	return e.ExecuteWithContext(context.Background(), query)
}

// ExecuteWithContext executes a parsed query with context for cancellation.
func (e *Executor) ExecuteWithContext(ctx context.Context, query *Query) (*QueryResult, error) {
	startTime := time.Now()
	metrics := QueryMetrics{}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	planStart := time.Now()
	if e.enablePlanning {
		e.RefreshStats()
	}
	metrics.PlanTime = time.Since(planStart)

	var (
		result *QueryResult
		err    error
	)
	executeStart := time.Now()
	switch query.Type {
	case SelectQueryType:
		metrics.PatternsCount = len(query.Select.Where.TriplePatterns())
		result, err = e.executeSelect(ctx, query.Select)
	case AskQueryType:
		metrics.PatternsCount = len(query.Ask.Where.TriplePatterns())
		result, err = e.executeAsk(ctx, query.Ask)
	case ConstructQueryType:
		metrics.PatternsCount = len(query.Construct.Where.TriplePatterns())
		result, err = e.executeConstruct(ctx, query.Construct)
	default:
		return nil, fmt.Errorf("unsupported query type: %s", query.Type)
	}
	if err != nil {
		return nil, err
	}

	metrics.ExecuteTime = time.Since(executeStart)
	metrics.ResultCount = result.Count
	metrics.TotalTime = time.Since(startTime)
	result.Metrics = metrics
	return result, nil
}

// ExecuteString parses and executes a SPARQL query string.
func (e *Executor) ExecuteString(queryStr string) (*QueryResult, error) {
	return e.ExecuteStringWithContext(context.Background(), queryStr)
}

// ExecuteStringWithContext parses and executes a SPARQL query string with context.
func (e *Executor) ExecuteStringWithContext(ctx context.Context, queryStr string) (*QueryResult, error) {
	parseStart := time.Now()

	query, err := NewParser(e.prefixes).ParseQuery(queryStr)
	if err != nil {
		return nil, err
	}
	parseTime := time.Since(parseStart)

	result, err := e.ExecuteWithContext(ctx, query)
	if err != nil {
		return nil, err
	}

	result.Metrics.ParseTime = parseTime
	result.Metrics.TotalTime += parseTime
	return result, nil
}

// executeSelect executes a SELECT query.
func (e *Executor) executeSelect(ctx context.Context, query *SelectQuery) (*QueryResult, error) {
	solutions, err := e.evalGroup(ctx, query.Where, []Binding{{}})
	if err != nil {
		return nil, err
	}

	if query.HasAggregates() {
		solutions, err = e.aggregate(ctx, query, solutions)
		if err != nil {
			return nil, err
		}
	} else if len(query.Projections) > 0 {
		solutions = e.extendProjections(ctx, query.Projections, solutions)
	}

	if len(query.OrderBy) > 0 {
		solutions = e.applyOrderBy(ctx, query.OrderBy, solutions)
	}

	variables := query.AllOutputVariables()
	if query.IsStar() {
		variables = visibleVariables(solutions)
	}
	solutions = project(solutions, variables)

	if query.Distinct || query.Reduced {
		solutions = applyDistinct(solutions, variables)
	}
	solutions = slice(solutions, query.Offset, query.Limit)

	return &QueryResult{
		Variables: variables,
		Bindings:  solutions,
		Count:     len(solutions),
	}, nil
}

// executeAsk executes an ASK query.
func (e *Executor) executeAsk(ctx context.Context, query *AskQuery) (*QueryResult, error) {
	solutions, err := e.evalGroup(ctx, query.Where, []Binding{{}})
	if err != nil {
		return nil, err
	}
	answer := len(solutions) > 0
	count := 0
	if answer {
		count = 1
	}
	return &QueryResult{Boolean: &answer, Count: count}, nil
}

// executeConstruct executes a CONSTRUCT query.
func (e *Executor) executeConstruct(ctx context.Context, query *ConstructQuery) (*QueryResult, error) {
	solutions, err := e.evalGroup(ctx, query.Where, []Binding{{}})
	if err != nil {
		return nil, err
	}
	if len(query.OrderBy) > 0 {
		solutions = e.applyOrderBy(ctx, query.OrderBy, solutions)
	}
	solutions = slice(solutions, query.Offset, query.Limit)

	triples := e.instantiateTemplate(query.Template, solutions)
	return &QueryResult{Triples: triples, Count: len(triples)}, nil
}

// evalGroup evaluates a group graph pattern against each seed solution.
// Filters are applied once the whole group has been evaluated.
func (e *Executor) evalGroup(ctx context.Context, group *GroupPattern, seeds []Binding) ([]Binding, error) {
	solutions := seeds
	var filters []Expression

	for _, element := range group.Elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(solutions) == 0 {
			break
		}

		var err error
		switch el := element.(type) {
		case *BasicPattern:
			patterns := el.Triples
			if e.enablePlanning && len(patterns) > 1 {
				patterns = e.planner.OrderPatterns(patterns, boundVariables(solutions))
			}
			for _, pattern := range patterns {
				solutions = e.matchPattern(pattern, solutions)
				if len(solutions) == 0 {
					break
				}
			}

		case *GroupPattern:
			solutions, err = e.evalGroup(ctx, el, solutions)

		case *OptionalPattern:
			solutions, err = e.processOptional(ctx, el.Group, solutions)

		case *UnionPattern:
			var merged []Binding
			for _, alt := range el.Alternatives {
				matches, altErr := e.evalGroup(ctx, alt, solutions)
				if altErr != nil {
					return nil, altErr
				}
				merged = append(merged, matches...)
			}
			solutions = merged

		case *MinusPattern:
			var excluded []Binding
			excluded, err = e.evalGroup(ctx, el.Group, []Binding{{}})
			solutions = minus(solutions, excluded)

		case *FilterPattern:
			filters = append(filters, el.Expr)

		case *BindPattern:
			solutions = e.applyBind(ctx, el, solutions)

		case *ValuesPattern:
			solutions = joinValues(solutions, el)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, filter := range filters {
		solutions = e.applyFilter(ctx, filter, solutions)
	}
	return solutions, nil
}

// matchPattern matches a triple pattern against the store.
func (e *Executor) matchPattern(pattern TriplePattern, currentBindings []Binding) []Binding {
	var newBindings []Binding

	for _, binding := range currentBindings {
		subject := resolveValue(pattern.Subject, binding)
		object := resolveValue(pattern.Object, binding)

		if pattern.Path != nil {
			for _, pair := range e.evalPath(pattern.Path, subject, object) {
				newBinding := copyBinding(binding)
				if bindTerm(newBinding, pattern.Subject, pair.start) && bindTerm(newBinding, pattern.Object, pair.end) {
					newBindings = append(newBindings, newBinding)
				}
			}
			continue
		}

		predicate := resolveValue(pattern.Predicate, binding)
		for _, triple := range e.store.Find(subject, predicate, object) {
			newBinding := copyBinding(binding)
			if bindTerm(newBinding, pattern.Subject, triple.Subject) &&
				bindTerm(newBinding, pattern.Predicate, triple.Predicate) &&
				bindTerm(newBinding, pattern.Object, triple.Object) {
				newBindings = append(newBindings, newBinding)
			}
		}
	}

	return newBindings
}

// processOptional extends each binding with the optional group's matches,
// keeping the binding unchanged when there are none.
func (e *Executor) processOptional(ctx context.Context, group *GroupPattern, currentBindings []Binding) ([]Binding, error) {
	var result []Binding
	for _, binding := range currentBindings {
		matches, err := e.evalGroup(ctx, group, []Binding{binding})
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			result = append(result, binding)
		} else {
			result = append(result, matches...)
		}
	}
	return result, nil
}

func (e *Executor) applyBind(ctx context.Context, bind *BindPattern, currentBindings []Binding) []Binding {
	name := StripVariable(bind.Variable)
	result := make([]Binding, 0, len(currentBindings))
	for _, binding := range currentBindings {
		value, err := e.evaluate(bind.Expr, &evalScope{ctx: ctx, binding: binding})
		if err != nil {
			result = append(result, binding)
			continue
		}
		newBinding := copyBinding(binding)
		newBinding[name] = value
		result = append(result, newBinding)
	}
	return result
}

// applyFilter keeps the bindings whose filter evaluates to true. Evaluation
// errors count as false.
func (e *Executor) applyFilter(ctx context.Context, filter Expression, bindings []Binding) []Binding {
	var result []Binding
	for _, binding := range bindings {
		ok, err := e.evaluateBool(filter, &evalScope{ctx: ctx, binding: binding})
		if err == nil && ok {
			result = append(result, binding)
		}
	}
	return result
}

func (e *Executor) extendProjections(ctx context.Context, projections []Projection, solutions []Binding) []Binding {
	result := make([]Binding, len(solutions))
	for i, solution := range solutions {
		extended := copyBinding(solution)
		for _, projection := range projections {
			value, err := e.evaluate(projection.Expr, &evalScope{ctx: ctx, binding: extended})
			if err == nil {
				extended[StripVariable(projection.Alias)] = value
			}
		}
		result[i] = extended
	}
	return result
}

// instantiateTemplate builds the triples of a template for each solution.
// Template blank nodes get fresh labels per solution; triples with unbound
// variables or illegal positions are skipped.
func (e *Executor) instantiateTemplate(template []TriplePattern, solutions []Binding) []store.Triple {
	var triples []store.Triple
	seen := make(map[store.Triple]bool)

	for _, solution := range solutions {
		blanks := make(map[string]string)
		for _, pattern := range template {
			triple, ok := e.instantiate(pattern, solution, blanks)
			if !ok || seen[triple] {
				continue
			}
			seen[triple] = true
			triples = append(triples, triple)
		}
	}
	return triples
}

func (e *Executor) instantiate(pattern TriplePattern, solution Binding, blanks map[string]string) (store.Triple, bool) {
	resolve := func(term string) string {
		if IsVariable(term) {
			return solution[VariableName(term)]
		}
		if store.IsBlank(term) {
			if fresh, ok := blanks[term]; ok {
				return fresh
			}
			fresh := e.store.NewBlankNode()
			blanks[term] = fresh
			return fresh
		}
		return term
	}

	triple := store.NewTriple(resolve(pattern.Subject), resolve(pattern.Predicate), resolve(pattern.Object))
	return triple, triple.IsValid()
}

// aggregate groups the solutions and computes projections per group.
func (e *Executor) aggregate(ctx context.Context, query *SelectQuery, solutions []Binding) ([]Binding, error) {
	type group struct {
		keyValues []string
		members   []Binding
	}

	var groups []*group
	index := make(map[string]*group)

	if len(query.GroupBy) == 0 {
		groups = append(groups, &group{members: solutions})
	} else {
		for _, solution := range solutions {
			keyValues := make([]string, len(query.GroupBy))
			for i, expr := range query.GroupBy {
				value, err := e.evaluate(expr, &evalScope{ctx: ctx, binding: solution})
				if err == nil {
					keyValues[i] = value
				}
			}
			key := strings.Join(keyValues, "\x00")
			g, ok := index[key]
			if !ok {
				g = &group{keyValues: keyValues}
				index[key] = g
				groups = append(groups, g)
			}
			g.members = append(g.members, solution)
		}
	}

	var aggregates []*AggregateExpr
	for _, projection := range query.Projections {
		aggregates = collectAggregates(projection.Expr, aggregates)
	}
	for _, having := range query.Having {
		aggregates = collectAggregates(having, aggregates)
	}

	var rows []Binding
	for _, g := range groups {
		row := Binding{}
		for i, expr := range query.GroupBy {
			if v, ok := expr.(*VariableExpr); ok && g.keyValues[i] != "" {
				row[StripVariable(v.Name)] = g.keyValues[i]
			}
		}

		values := make(map[*AggregateExpr]string, len(aggregates))
		for _, agg := range aggregates {
			values[agg] = e.computeAggregate(ctx, agg, g.members)
		}
		scope := &evalScope{ctx: ctx, binding: row, aggregates: values}

		keep := true
		for _, having := range query.Having {
			ok, err := e.evaluateBool(having, scope)
			if err != nil || !ok {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}

		for _, projection := range query.Projections {
			value, err := e.evaluate(projection.Expr, scope)
			if err == nil {
				row[StripVariable(projection.Alias)] = value
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func collectAggregates(expr Expression, found []*AggregateExpr) []*AggregateExpr {
	switch ex := expr.(type) {
	case *AggregateExpr:
		return append(found, ex)
	case *UnaryExpr:
		return collectAggregates(ex.Operand, found)
	case *BinaryExpr:
		return collectAggregates(ex.Right, collectAggregates(ex.Left, found))
	case *InExpr:
		found = collectAggregates(ex.Operand, found)
		for _, item := range ex.List {
			found = collectAggregates(item, found)
		}
	case *CallExpr:
		for _, arg := range ex.Args {
			found = collectAggregates(arg, found)
		}
	}
	return found
}

// computeAggregate evaluates one aggregate over a group. An empty string
// means the aggregate is undefined for the group.
func (e *Executor) computeAggregate(ctx context.Context, agg *AggregateExpr, members []Binding) string {
	var values []string
	for _, member := range members {
		if agg.Arg == nil {
			values = append(values, canonicalKey(member))
			continue
		}
		value, err := e.evaluate(agg.Arg, &evalScope{ctx: ctx, binding: member})
		if err == nil {
			values = append(values, value)
		}
	}

	if agg.Distinct {
		seen := make(map[string]bool, len(values))
		unique := values[:0:0]
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				unique = append(unique, v)
			}
		}
		values = unique
	}

	switch agg.Function {
	case AggregateCOUNT:
		return store.NewTypedLiteral(strconv.Itoa(len(values)), store.XSDInteger)

	case AggregateSUM, AggregateAVG:
		total := number{datatype: store.XSDInteger}
		for _, v := range values {
			n, ok := numericValue(v)
			if !ok {
				return ""
			}
			total.value += n.value
			total.datatype = promote(total.datatype, n.datatype)
		}
		if agg.Function == AggregateAVG && len(values) > 0 {
			total.value /= float64(len(values))
			if total.datatype == store.XSDInteger {
				total.datatype = store.XSDDecimal
			}
		}
		return total.term()

	case AggregateMIN, AggregateMAX:
		if len(values) == 0 {
			return ""
		}
		best := values[0]
		for _, v := range values[1:] {
			cmp := orderCompare(v, best)
			if agg.Function == AggregateMIN && cmp < 0 || agg.Function == AggregateMAX && cmp > 0 {
				best = v
			}
		}
		return best

	case AggregateSAMPLE:
		if len(values) == 0 {
			return ""
		}
		return values[0]

	case AggregateGROUPCONCAT:
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = store.LexicalForm(v)
		}
		return store.NewLiteral(strings.Join(parts, agg.Separator))
	}
	return ""
}

// applyOrderBy sorts bindings by the ORDER BY conditions. The sort is stable
// so equal keys keep evaluation order.
func (e *Executor) applyOrderBy(ctx context.Context, orderBys []OrderBy, bindings []Binding) []Binding {
	keys := make([][]string, len(bindings))
	for i, binding := range bindings {
		keys[i] = make([]string, len(orderBys))
		for j, order := range orderBys {
			value, err := e.evaluate(order.Expr, &evalScope{ctx: ctx, binding: binding})
			if err == nil {
				keys[i][j] = value
			}
		}
	}

	indexes := make([]int, len(bindings))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		for j, order := range orderBys {
			cmp := orderCompare(keys[indexes[a]][j], keys[indexes[b]][j])
			if cmp == 0 {
				continue
			}
			if order.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	sorted := make([]Binding, len(bindings))
	for i, idx := range indexes {
		sorted[i] = bindings[idx]
	}
	return sorted
}

// orderCompare is the total order used by ORDER BY: unbound, blank nodes,
// IRIs, then literals. Comparable literals compare by value.
func orderCompare(a, b string) int {
	rank := func(term string) int {
		switch {
		case term == "":
			return 0
		case store.IsBlank(term):
			return 1
		case store.IsIRI(term):
			return 2
		}
		return 3
	}
	if ra, rb := rank(a), rank(b); ra != rb {
		return ra - rb
	}
	if store.IsLiteral(a) {
		if cmp, err := compareValues(a, b); err == nil && cmp != 0 {
			return cmp
		}
		if cmp := strings.Compare(store.LexicalForm(a), store.LexicalForm(b)); cmp != 0 {
			return cmp
		}
	}
	return strings.Compare(a, b)
}

// applyDistinct removes duplicate bindings over the projected variables.
func applyDistinct(bindings []Binding, variables []string) []Binding {
	seen := make(map[string]bool)
	var unique []Binding

	for _, binding := range bindings {
		var keyBuilder strings.Builder
		for _, v := range variables {
			keyBuilder.WriteString(binding[v])
			keyBuilder.WriteString("\x00")
		}
		key := keyBuilder.String()
		if !seen[key] {
			seen[key] = true
			unique = append(unique, binding)
		}
	}

	return unique
}

func project(bindings []Binding, variables []string) []Binding {
	projected := make([]Binding, len(bindings))
	for i, binding := range bindings {
		row := make(Binding, len(variables))
		for _, v := range variables {
			if value, ok := binding[v]; ok && value != "" {
				row[v] = value
			}
		}
		projected[i] = row
	}
	return projected
}

func slice(bindings []Binding, offset, limit int) []Binding {
	if offset > 0 {
		if offset < len(bindings) {
			bindings = bindings[offset:]
		} else {
			bindings = []Binding{}
		}
	}
	if limit >= 0 && limit < len(bindings) {
		bindings = bindings[:limit]
	}
	return bindings
}

// visibleVariables returns the sorted variables bound in any solution,
// excluding those introduced for blank nodes.
func visibleVariables(bindings []Binding) []string {
	set := make(map[string]bool)
	for _, binding := range bindings {
		for v := range binding {
			if !isHiddenVariable(v) {
				set[v] = true
			}
		}
	}
	return sortedSet(set)
}

func boundVariables(bindings []Binding) map[string]bool {
	bound := make(map[string]bool)
	if len(bindings) > 0 {
		for v, value := range bindings[0] {
			if value != "" {
				bound["?"+v] = true
			}
		}
	}
	return bound
}

func minus(left, right []Binding) []Binding {
	var result []Binding
	for _, l := range left {
		excluded := false
		for _, r := range right {
			if compatible(l, r) && sharesVariable(l, r) {
				excluded = true
				break
			}
		}
		if !excluded {
			result = append(result, l)
		}
	}
	return result
}

func joinValues(bindings []Binding, values *ValuesPattern) []Binding {
	var result []Binding
	for _, binding := range bindings {
		for _, row := range values.Rows {
			candidate := Binding{}
			for i, v := range values.Variables {
				if row[i] != "" {
					candidate[StripVariable(v)] = row[i]
				}
			}
			if !compatible(binding, candidate) {
				continue
			}
			merged := copyBinding(binding)
			for k, v := range candidate {
				merged[k] = v
			}
			result = append(result, merged)
		}
	}
	return result
}

func compatible(a, b Binding) bool {
	for k, va := range a {
		if vb, ok := b[k]; ok && va != "" && vb != "" && va != vb {
			return false
		}
	}
	return true
}

func sharesVariable(a, b Binding) bool {
	for k, va := range a {
		if vb, ok := b[k]; ok && va != "" && vb != "" {
			return true
		}
	}
	return false
}

// resolveValue returns the bound value of a variable, "" when unbound, or
// the constant term itself.
func resolveValue(value string, binding Binding) string {
	if IsVariable(value) {
		return binding[VariableName(value)]
	}
	return value
}

// bindTerm binds a pattern variable to value, reporting false on a conflict
// with an existing binding.
func bindTerm(binding Binding, patternTerm, value string) bool {
	if !IsVariable(patternTerm) {
		return true
	}
	name := VariableName(patternTerm)
	if existing, ok := binding[name]; ok && existing != "" {
		return existing == value
	}
	binding[name] = value
	return true
}

func copyBinding(binding Binding) Binding {
	copied := make(Binding, len(binding)+2)
	for k, v := range binding {
		copied[k] = v
	}
	return copied
}

// canonicalKey renders a binding as a stable string for sorting and dedupe.
func canonicalKey(binding Binding) string {
	keys := make([]string, 0, len(binding))
	for k := range binding {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var builder strings.Builder
	for _, k := range keys {
		builder.WriteString(k)
		builder.WriteString("=")
		builder.WriteString(binding[k])
		builder.WriteString("\x00")
	}
	return builder.String()
}
