package query

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/semgeo/semgeo/pkg/store"
)

// Expression is a SPARQL expression node.
type Expression interface {
	isExpression()
}

// VariableExpr references a variable (?name).
type VariableExpr struct {
	Name string
}

// TermExpr is a constant encoded term.
type TermExpr struct {
	Term string
}

// UnaryExpr is !x, -x or +x.
type UnaryExpr struct {
	Operator string
	Operand  Expression
}

// BinaryExpr is a logical, comparison or arithmetic operation.
type BinaryExpr struct {
	Operator    string
	Left, Right Expression
}

// InExpr is x [NOT] IN (list).
type InExpr struct {
	Operand Expression
	List    []Expression
	Negated bool
}

// CallExpr is a built-in function call (upper-case name) or an IRI function
// such as an XSD cast (full IRI).
type CallExpr struct {
	Function string
	Args     []Expression
}

// ExistsExpr is [NOT] EXISTS { pattern }.
type ExistsExpr struct {
	Group   *GroupPattern
	Negated bool
}

// AggregateExpr is an aggregate over a solution group.
type AggregateExpr struct {
	Function  AggregateFunction
	Distinct  bool
	Arg       Expression // nil for COUNT(*)
	Separator string     // GROUP_CONCAT only
}

func (*VariableExpr) isExpression()  {}
func (*TermExpr) isExpression()      {}
func (*UnaryExpr) isExpression()     {}
func (*BinaryExpr) isExpression()    {}
func (*InExpr) isExpression()        {}
func (*CallExpr) isExpression()      {}
func (*ExistsExpr) isExpression()    {}
func (*AggregateExpr) isExpression() {}

func containsAggregate(expr Expression) bool {
	switch e := expr.(type) {
	case *AggregateExpr:
		return true
	case *UnaryExpr:
		return containsAggregate(e.Operand)
	case *BinaryExpr:
		return containsAggregate(e.Left) || containsAggregate(e.Right)
	case *InExpr:
		if containsAggregate(e.Operand) {
			return true
		}
		for _, item := range e.List {
			if containsAggregate(item) {
				return true
			}
		}
	case *CallExpr:
		for _, arg := range e.Args {
			if containsAggregate(arg) {
				return true
			}
		}
	}
	return false
}

// Evaluation errors. An erroring FILTER rejects the solution; an erroring
// BIND or projection leaves the variable unbound.
var (
	errUnbound   = errors.New("unbound variable")
	errTypeError = errors.New("type error")
)

// evalScope is the input to expression evaluation.
type evalScope struct {
	ctx        context.Context
	binding    Binding
	aggregates map[*AggregateExpr]string
}

// builtinFunctions maps SPARQL built-in names to their minimum and maximum
// argument counts (-1 for unbounded).
var builtinFunctions = map[string][2]int{
	"BOUND": {1, 1}, "IF": {3, 3}, "COALESCE": {0, -1}, "SAMETERM": {2, 2},
	"ISIRI": {1, 1}, "ISURI": {1, 1}, "ISBLANK": {1, 1}, "ISLITERAL": {1, 1}, "ISNUMERIC": {1, 1},
	"STR": {1, 1}, "LANG": {1, 1}, "DATATYPE": {1, 1}, "IRI": {1, 1}, "URI": {1, 1},
	"BNODE": {0, 1}, "STRDT": {2, 2}, "STRLANG": {2, 2}, "LANGMATCHES": {2, 2},
	"STRLEN": {1, 1}, "SUBSTR": {2, 3}, "UCASE": {1, 1}, "LCASE": {1, 1},
	"STRSTARTS": {2, 2}, "STRENDS": {2, 2}, "CONTAINS": {2, 2},
	"STRBEFORE": {2, 2}, "STRAFTER": {2, 2}, "ENCODE_FOR_URI": {1, 1},
	"CONCAT": {0, -1}, "REGEX": {2, 3}, "REPLACE": {3, 4},
	"ABS": {1, 1}, "ROUND": {1, 1}, "CEIL": {1, 1}, "FLOOR": {1, 1}, "RAND": {0, 0},
	"NOW": {0, 0}, "YEAR": {1, 1}, "MONTH": {1, 1}, "DAY": {1, 1},
	"HOURS": {1, 1}, "MINUTES": {1, 1}, "SECONDS": {1, 1},
	"MD5": {1, 1}, "SHA1": {1, 1}, "SHA256": {1, 1}, "SHA512": {1, 1},
	"UUID": {0, 0}, "STRUUID": {0, 0},
}

var (
	xsdTrue  = store.NewTypedLiteral("true", store.XSDBoolean)
	xsdFalse = store.NewTypedLiteral("false", store.XSDBoolean)
)

func boolTerm(b bool) string {
	if b {
		return xsdTrue
	}
	return xsdFalse
}

// evaluate computes the value of expr as an encoded term.
func (e *Executor) evaluate(expr Expression, scope *evalScope) (string, error) {
	switch ex := expr.(type) {
	case *VariableExpr:
		if value, ok := scope.binding[StripVariable(ex.Name)]; ok && value != "" {
			return value, nil
		}
		return "", errUnbound

	case *TermExpr:
		return ex.Term, nil

	case *AggregateExpr:
		if value, ok := scope.aggregates[ex]; ok {
			if value == "" {
				return "", errTypeError
			}
			return value, nil
		}
		return "", fmt.Errorf("aggregate %s outside of a group", ex.Function)

	case *UnaryExpr:
		return e.evaluateUnary(ex, scope)

	case *BinaryExpr:
		return e.evaluateBinary(ex, scope)

	case *InExpr:
		value, err := e.evaluate(ex.Operand, scope)
		if err != nil {
			return "", err
		}
		found := false
		var lastErr error
		for _, item := range ex.List {
			candidate, err := e.evaluate(item, scope)
			if err != nil {
				lastErr = err
				continue
			}
			if eq, err := termsEqual(value, candidate); err == nil && eq {
				found = true
				break
			}
		}
		if !found && lastErr != nil {
			return "", lastErr
		}
		return boolTerm(found != ex.Negated), nil

	case *ExistsExpr:
		solutions, err := e.evalGroup(scope.ctx, ex.Group, []Binding{scope.binding})
		if err != nil {
			return "", err
		}
		return boolTerm((len(solutions) > 0) != ex.Negated), nil

	case *CallExpr:
		return e.evaluateCall(ex, scope)
	}
	return "", fmt.Errorf("unsupported expression %T", expr)
}

// effectiveBoolean computes the SPARQL effective boolean value of a term.
func effectiveBoolean(term string) (bool, error) {
	lexical, _, datatype, ok := store.SplitLiteral(term)
	if !ok {
		return false, errTypeError
	}
	switch {
	case datatype == store.XSDBoolean:
		return lexical == "true" || lexical == "1", nil
	case datatype == store.XSDString || datatype == store.RDFLangString:
		return lexical != "", nil
	case store.IsNumericDatatype(datatype):
		n, err := strconv.ParseFloat(lexical, 64)
		if err != nil {
			return false, nil
		}
		return n != 0 && !math.IsNaN(n), nil
	}
	return false, errTypeError
}

func (e *Executor) evaluateBool(expr Expression, scope *evalScope) (bool, error) {
	value, err := e.evaluate(expr, scope)
	if err != nil {
		return false, err
	}
	return effectiveBoolean(value)
}

func (e *Executor) evaluateUnary(ex *UnaryExpr, scope *evalScope) (string, error) {
	if ex.Operator == "!" {
		b, err := e.evaluateBool(ex.Operand, scope)
		if err != nil {
			return "", err
		}
		return boolTerm(!b), nil
	}

	value, err := e.evaluate(ex.Operand, scope)
	if err != nil {
		return "", err
	}
	n, ok := numericValue(value)
	if !ok {
		return "", errTypeError
	}
	if ex.Operator == "-" {
		n.value = -n.value
	}
	return n.term(), nil
}

func (e *Executor) evaluateBinary(ex *BinaryExpr, scope *evalScope) (string, error) {
	switch ex.Operator {
	case "||":
		left, leftErr := e.evaluateBool(ex.Left, scope)
		if leftErr == nil && left {
			return xsdTrue, nil
		}
		right, rightErr := e.evaluateBool(ex.Right, scope)
		if rightErr == nil && right {
			return xsdTrue, nil
		}
		if leftErr != nil {
			return "", leftErr
		}
		if rightErr != nil {
			return "", rightErr
		}
		return xsdFalse, nil

	case "&&":
		left, leftErr := e.evaluateBool(ex.Left, scope)
		if leftErr == nil && !left {
			return xsdFalse, nil
		}
		right, rightErr := e.evaluateBool(ex.Right, scope)
		if rightErr == nil && !right {
			return xsdFalse, nil
		}
		if leftErr != nil {
			return "", leftErr
		}
		if rightErr != nil {
			return "", rightErr
		}
		return xsdTrue, nil
	}

	left, err := e.evaluate(ex.Left, scope)
	if err != nil {
		return "", err
	}
	right, err := e.evaluate(ex.Right, scope)
	if err != nil {
		return "", err
	}

	switch ex.Operator {
	case "=":
		eq, err := termsEqual(left, right)
		if err != nil {
			return "", err
		}
		return boolTerm(eq), nil
	case "!=":
		eq, err := termsEqual(left, right)
		if err != nil {
			return "", err
		}
		return boolTerm(!eq), nil
	case "<", ">", "<=", ">=":
		cmp, err := compareValues(left, right)
		if err != nil {
			return "", err
		}
		switch ex.Operator {
		case "<":
			return boolTerm(cmp < 0), nil
		case ">":
			return boolTerm(cmp > 0), nil
		case "<=":
			return boolTerm(cmp <= 0), nil
		default:
			return boolTerm(cmp >= 0), nil
		}
	case "+", "-", "*", "/":
		return arithmetic(ex.Operator, left, right)
	}
	return "", fmt.Errorf("unknown operator %q", ex.Operator)
}

// number is a numeric literal value with its XSD datatype.
type number struct {
	value    float64
	datatype string
}

func numericValue(term string) (number, bool) {
	lexical, _, datatype, ok := store.SplitLiteral(term)
	if !ok || !store.IsNumericDatatype(datatype) {
		return number{}, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(lexical), 64)
	if err != nil {
		return number{}, false
	}
	switch datatype {
	case store.XSDDecimal, store.XSDDouble, store.XSDFloat:
	default:
		datatype = store.XSDInteger
	}
	return number{value: value, datatype: datatype}, true
}

func (n number) term() string {
	switch n.datatype {
	case store.XSDInteger:
		return store.NewTypedLiteral(strconv.FormatInt(int64(n.value), 10), store.XSDInteger)
	case store.XSDDecimal:
		text := strconv.FormatFloat(n.value, 'f', -1, 64)
		if !strings.Contains(text, ".") {
			text += ".0"
		}
		return store.NewTypedLiteral(text, store.XSDDecimal)
	default:
		return store.NewTypedLiteral(strconv.FormatFloat(n.value, 'E', -1, 64), n.datatype)
	}
}

// promote returns the datatype of an arithmetic result per XPath type promotion.
func promote(a, b string) string {
	rank := func(datatype string) int {
		switch datatype {
		case store.XSDDouble:
			return 3
		case store.XSDFloat:
			return 2
		case store.XSDDecimal:
			return 1
		}
		return 0
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func arithmetic(operator, left, right string) (string, error) {
	a, ok := numericValue(left)
	if !ok {
		return "", errTypeError
	}
	b, ok := numericValue(right)
	if !ok {
		return "", errTypeError
	}

	result := number{datatype: promote(a.datatype, b.datatype)}
	switch operator {
	case "+":
		result.value = a.value + b.value
	case "-":
		result.value = a.value - b.value
	case "*":
		result.value = a.value * b.value
	case "/":
		if b.value == 0 && result.datatype != store.XSDDouble && result.datatype != store.XSDFloat {
			return "", errTypeError
		}
		result.value = a.value / b.value
		if result.datatype == store.XSDInteger {
			result.datatype = store.XSDDecimal
		}
	}
	return result.term(), nil
}

// termsEqual implements RDFterm-equal with value comparison for numbers,
// booleans and date-times.
func termsEqual(left, right string) (bool, error) {
	if left == right {
		return true, nil
	}
	if a, ok := numericValue(left); ok {
		if b, ok := numericValue(right); ok {
			return a.value == b.value, nil
		}
	}
	if store.IsLiteral(left) && store.IsLiteral(right) {
		lexA, langA, dtA, _ := store.SplitLiteral(left)
		lexB, langB, dtB, _ := store.SplitLiteral(right)
		if dtA == dtB && dtA == store.XSDDateTime {
			ta, errA := time.Parse(time.RFC3339Nano, lexA)
			tb, errB := time.Parse(time.RFC3339Nano, lexB)
			if errA == nil && errB == nil {
				return ta.Equal(tb), nil
			}
		}
		if dtA == dtB && dtA == store.XSDBoolean {
			return canonicalBool(lexA) == canonicalBool(lexB), nil
		}
		if dtA == dtB && strings.EqualFold(langA, langB) {
			return lexA == lexB, nil
		}
	}
	return false, nil
}

func canonicalBool(lexical string) bool {
	return lexical == "true" || lexical == "1"
}

// compareValues orders two literals of comparable types.
func compareValues(left, right string) (int, error) {
	if a, ok := numericValue(left); ok {
		if b, ok := numericValue(right); ok {
			return compareFloat(a.value, b.value), nil
		}
		return 0, errTypeError
	}

	lexA, langA, dtA, okA := store.SplitLiteral(left)
	lexB, langB, dtB, okB := store.SplitLiteral(right)
	if !okA || !okB {
		return 0, errTypeError
	}

	switch {
	case dtA == store.XSDDateTime && dtB == store.XSDDateTime:
		ta, errA := time.Parse(time.RFC3339Nano, lexA)
		tb, errB := time.Parse(time.RFC3339Nano, lexB)
		if errA != nil || errB != nil {
			return strings.Compare(lexA, lexB), nil
		}
		return ta.Compare(tb), nil
	case dtA == store.XSDBoolean && dtB == store.XSDBoolean:
		a, b := canonicalBool(lexA), canonicalBool(lexB)
		switch {
		case a == b:
			return 0, nil
		case !a:
			return -1, nil
		}
		return 1, nil
	case isStringLike(dtA) && isStringLike(dtB) && strings.EqualFold(langA, langB):
		return strings.Compare(lexA, lexB), nil
	case dtA == dtB:
		return strings.Compare(lexA, lexB), nil
	}
	return 0, errTypeError
}

func isStringLike(datatype string) bool {
	return datatype == store.XSDString || datatype == store.RDFLangString
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// stringArg extracts the lexical form and language of a string literal argument.
func stringArg(term string) (lexical, lang string, err error) {
	lexical, lang, datatype, ok := store.SplitLiteral(term)
	if !ok || !isStringLike(datatype) {
		return "", "", errTypeError
	}
	return lexical, lang, nil
}

// withLang rebuilds a string result carrying the language of its source.
func withLang(lexical, lang string) string {
	return store.NewLangLiteral(lexical, lang)
}

func (e *Executor) evaluateCall(call *CallExpr, scope *evalScope) (string, error) {
	if arity, ok := builtinFunctions[call.Function]; ok {
		if len(call.Args) < arity[0] || arity[1] >= 0 && len(call.Args) > arity[1] {
			return "", fmt.Errorf("%s: wrong number of arguments (%d)", call.Function, len(call.Args))
		}
	}

	// Functions that must see unevaluated or erroring arguments.
	switch call.Function {
	case "BOUND":
		v, ok := call.Args[0].(*VariableExpr)
		if !ok {
			return "", errTypeError
		}
		value, bound := scope.binding[StripVariable(v.Name)]
		return boolTerm(bound && value != ""), nil
	case "IF":
		cond, err := e.evaluateBool(call.Args[0], scope)
		if err != nil {
			return "", err
		}
		if cond {
			return e.evaluate(call.Args[1], scope)
		}
		return e.evaluate(call.Args[2], scope)
	case "COALESCE":
		for _, arg := range call.Args {
			if value, err := e.evaluate(arg, scope); err == nil {
				return value, nil
			}
		}
		return "", errUnbound
	case "BNODE":
		return e.store.NewBlankNode(), nil
	case "RAND":
		return store.NewTypedLiteral(strconv.FormatFloat(rand.Float64(), 'E', -1, 64), store.XSDDouble), nil
	case "NOW":
		return store.NewTypedLiteral(e.now().Format(time.RFC3339Nano), store.XSDDateTime), nil
	case "UUID":
		return "urn:uuid:" + uuid.NewString(), nil
	case "STRUUID":
		return store.NewLiteral(uuid.NewString()), nil
	}

	args := make([]string, len(call.Args))
	for i, arg := range call.Args {
		value, err := e.evaluate(arg, scope)
		if err != nil {
			return "", err
		}
		args[i] = value
	}

	switch call.Function {
	case "SAMETERM":
		return boolTerm(args[0] == args[1]), nil
	case "ISIRI", "ISURI":
		return boolTerm(store.IsIRI(args[0])), nil
	case "ISBLANK":
		return boolTerm(store.IsBlank(args[0])), nil
	case "ISLITERAL":
		return boolTerm(store.IsLiteral(args[0])), nil
	case "ISNUMERIC":
		_, ok := numericValue(args[0])
		return boolTerm(ok), nil

	case "STR":
		if store.IsBlank(args[0]) {
			return "", errTypeError
		}
		return store.NewLiteral(store.LexicalForm(args[0])), nil
	case "LANG":
		_, lang, _, ok := store.SplitLiteral(args[0])
		if !ok {
			return "", errTypeError
		}
		return store.NewLiteral(lang), nil
	case "DATATYPE":
		_, _, datatype, ok := store.SplitLiteral(args[0])
		if !ok {
			return "", errTypeError
		}
		return datatype, nil
	case "IRI", "URI":
		if store.IsIRI(args[0]) {
			return args[0], nil
		}
		lexical, _, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		return lexical, nil
	case "STRDT":
		lexical, lang, err := stringArg(args[0])
		if err != nil || lang != "" || !store.IsIRI(args[1]) {
			return "", errTypeError
		}
		return store.NewTypedLiteral(lexical, args[1]), nil
	case "STRLANG":
		lexical, lang, err := stringArg(args[0])
		if err != nil || lang != "" {
			return "", errTypeError
		}
		tag, _, err := stringArg(args[1])
		if err != nil || tag == "" {
			return "", errTypeError
		}
		return store.NewLangLiteral(lexical, tag), nil
	case "LANGMATCHES":
		tag, _, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		pattern, _, err := stringArg(args[1])
		if err != nil {
			return "", err
		}
		return boolTerm(langMatches(tag, pattern)), nil

	case "STRLEN":
		lexical, _, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		return store.NewTypedLiteral(strconv.Itoa(utf8.RuneCountInString(lexical)), store.XSDInteger), nil
	case "SUBSTR":
		lexical, lang, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		return substr(lexical, lang, args[1:])
	case "UCASE", "LCASE":
		lexical, lang, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		if call.Function == "UCASE" {
			return withLang(strings.ToUpper(lexical), lang), nil
		}
		return withLang(strings.ToLower(lexical), lang), nil
	case "STRSTARTS", "STRENDS", "CONTAINS", "STRBEFORE", "STRAFTER":
		return stringPair(call.Function, args[0], args[1])
	case "ENCODE_FOR_URI":
		lexical, _, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		return store.NewLiteral(strings.ReplaceAll(url.QueryEscape(lexical), "+", "%20")), nil
	case "CONCAT":
		var builder strings.Builder
		commonLang := ""
		for i, arg := range args {
			lexical, lang, err := stringArg(arg)
			if err != nil {
				return "", err
			}
			if i == 0 {
				commonLang = lang
			} else if commonLang != lang {
				commonLang = ""
			}
			builder.WriteString(lexical)
		}
		return withLang(builder.String(), commonLang), nil
	case "REGEX":
		lexical, _, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		re, err := compileRegex(args[1], args[2:])
		if err != nil {
			return "", err
		}
		return boolTerm(re.MatchString(lexical)), nil
	case "REPLACE":
		lexical, lang, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		re, err := compileRegex(args[1], args[3:])
		if err != nil {
			return "", err
		}
		replacement, _, err := stringArg(args[2])
		if err != nil {
			return "", err
		}
		return withLang(re.ReplaceAllString(lexical, replacement), lang), nil

	case "ABS", "ROUND", "CEIL", "FLOOR":
		n, ok := numericValue(args[0])
		if !ok {
			return "", errTypeError
		}
		switch call.Function {
		case "ABS":
			n.value = math.Abs(n.value)
		case "ROUND":
			n.value = math.Floor(n.value + 0.5)
		case "CEIL":
			n.value = math.Ceil(n.value)
		case "FLOOR":
			n.value = math.Floor(n.value)
		}
		return n.term(), nil

	case "YEAR", "MONTH", "DAY", "HOURS", "MINUTES", "SECONDS":
		return dateTimePart(call.Function, args[0])

	case "MD5", "SHA1", "SHA256", "SHA512":
		lexical, _, err := stringArg(args[0])
		if err != nil {
			return "", err
		}
		return store.NewLiteral(hashString(call.Function, lexical)), nil
	}

	if strings.HasPrefix(call.Function, store.NamespaceXSD) {
		return castTo(call.Function, args)
	}
	return "", fmt.Errorf("unknown function %s", call.Function)
}

func langMatches(tag, pattern string) bool {
	if pattern == "*" {
		return tag != ""
	}
	tag, pattern = strings.ToLower(tag), strings.ToLower(pattern)
	return tag == pattern || strings.HasPrefix(tag, pattern+"-")
}

func substr(lexical, lang string, bounds []string) (string, error) {
	start, ok := numericValue(bounds[0])
	if !ok {
		return "", errTypeError
	}
	runes := []rune(lexical)
	from := int(math.Floor(start.value+0.5)) - 1
	to := len(runes)
	if len(bounds) > 1 {
		length, ok := numericValue(bounds[1])
		if !ok {
			return "", errTypeError
		}
		to = from + int(math.Floor(length.value+0.5))
	}
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if from >= to {
		return withLang("", lang), nil
	}
	return withLang(string(runes[from:to]), lang), nil
}

func stringPair(function, left, right string) (string, error) {
	a, langA, err := stringArg(left)
	if err != nil {
		return "", err
	}
	b, langB, err := stringArg(right)
	if err != nil {
		return "", err
	}
	if langB != "" && !strings.EqualFold(langA, langB) {
		return "", errTypeError
	}

	switch function {
	case "STRSTARTS":
		return boolTerm(strings.HasPrefix(a, b)), nil
	case "STRENDS":
		return boolTerm(strings.HasSuffix(a, b)), nil
	case "CONTAINS":
		return boolTerm(strings.Contains(a, b)), nil
	case "STRBEFORE":
		if i := strings.Index(a, b); i >= 0 {
			return withLang(a[:i], langA), nil
		}
		return store.NewLiteral(""), nil
	default: // STRAFTER
		if i := strings.Index(a, b); i >= 0 {
			return withLang(a[i+len(b):], langA), nil
		}
		return store.NewLiteral(""), nil
	}
}

func compileRegex(patternTerm string, flagTerms []string) (*regexp.Regexp, error) {
	pattern, _, err := stringArg(patternTerm)
	if err != nil {
		return nil, err
	}
	if len(flagTerms) > 0 {
		flags, _, err := stringArg(flagTerms[0])
		if err != nil {
			return nil, err
		}
		var goFlags strings.Builder
		for _, flag := range flags {
			switch flag {
			case 'i', 'm', 's':
				goFlags.WriteRune(flag)
			case 'x':
				pattern = regexp.MustCompile(`\s+`).ReplaceAllString(pattern, "")
			default:
				return nil, errTypeError
			}
		}
		if goFlags.Len() > 0 {
			pattern = "(?" + goFlags.String() + ")" + pattern
		}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errTypeError
	}
	return re, nil
}

func dateTimePart(function, term string) (string, error) {
	lexical, _, datatype, ok := store.SplitLiteral(term)
	if !ok || datatype != store.XSDDateTime {
		return "", errTypeError
	}
	t, err := time.Parse(time.RFC3339Nano, lexical)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", lexical)
		if err != nil {
			return "", errTypeError
		}
	}

	integer := func(n int) string {
		return store.NewTypedLiteral(strconv.Itoa(n), store.XSDInteger)
	}
	switch function {
	case "YEAR":
		return integer(t.Year()), nil
	case "MONTH":
		return integer(int(t.Month())), nil
	case "DAY":
		return integer(t.Day()), nil
	case "HOURS":
		return integer(t.Hour()), nil
	case "MINUTES":
		return integer(t.Minute()), nil
	}
	seconds := float64(t.Second()) + float64(t.Nanosecond())/1e9
	return number{value: seconds, datatype: store.XSDDecimal}.term(), nil
}

func hashString(function, value string) string {
	switch function {
	case "MD5":
		sum := md5.Sum([]byte(value))
		return hex.EncodeToString(sum[:])
	case "SHA1":
		sum := sha1.Sum([]byte(value))
		return hex.EncodeToString(sum[:])
	case "SHA256":
		sum := sha256.Sum256([]byte(value))
		return hex.EncodeToString(sum[:])
	}
	sum := sha512.Sum512([]byte(value))
	return hex.EncodeToString(sum[:])
}

// castTo implements the XSD constructor functions.
func castTo(datatype string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s: expects one argument", datatype)
	}
	if store.IsBlank(args[0]) {
		return "", errTypeError
	}
	lexical := strings.TrimSpace(store.LexicalForm(args[0]))

	switch datatype {
	case store.XSDString:
		return store.NewLiteral(store.LexicalForm(args[0])), nil
	case store.XSDBoolean:
		if n, ok := numericValue(args[0]); ok {
			return boolTerm(n.value != 0), nil
		}
		switch lexical {
		case "true", "1":
			return xsdTrue, nil
		case "false", "0":
			return xsdFalse, nil
		}
		return "", errTypeError
	case store.XSDInteger, store.XSDInt, store.XSDLong:
		if n, ok := numericValue(args[0]); ok {
			return store.NewTypedLiteral(strconv.FormatInt(int64(math.Trunc(n.value)), 10), datatype), nil
		}
		i, err := strconv.ParseInt(lexical, 10, 64)
		if err != nil {
			return "", errTypeError
		}
		return store.NewTypedLiteral(strconv.FormatInt(i, 10), datatype), nil
	case store.XSDDecimal, store.XSDDouble, store.XSDFloat:
		f, err := strconv.ParseFloat(lexical, 64)
		if err != nil {
			if b, bErr := strconv.ParseBool(lexical); bErr == nil {
				f = 0
				if b {
					f = 1
				}
			} else {
				return "", errTypeError
			}
		}
		return number{value: f, datatype: datatype}.term(), nil
	case store.XSDDateTime:
		if _, err := time.Parse(time.RFC3339Nano, lexical); err != nil {
			return "", errTypeError
		}
		return store.NewTypedLiteral(lexical, store.XSDDateTime), nil
	}
	return "", fmt.Errorf("unsupported cast to %s", datatype)
}
