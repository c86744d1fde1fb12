package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokVar
	tokBlank
	tokString
	tokLangTag
	tokInteger
	tokDecimal
	tokDouble
	tokWord
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIRI:
		return "IRI"
	case tokPName:
		return "prefixed name"
	case tokVar:
		return "variable"
	case tokBlank:
		return "blank node"
	case tokString:
		return "string"
	case tokLangTag:
		return "language tag"
	case tokInteger, tokDecimal, tokDouble:
		return "number"
	case tokWord:
		return "keyword"
	default:
		return "punctuation"
	}
}

type token struct {
	kind tokenKind
	text string // IRI without brackets, unescaped string value, name without sigil
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

// isKeyword reports whether the token is the given keyword, case-insensitively.
func (t token) isKeyword(word string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, word)
}

func (t token) isPunct(symbol string) bool {
	return t.kind == tokPunct && t.text == symbol
}

// lexer splits SPARQL text into tokens.
type lexer struct {
	input string
	pos   int
}

// tokenize lexes the whole input up front; SPARQL requests are small.
func tokenize(input string) ([]token, error) {
	lx := &lexer{input: input}
	var tokens []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) errorf(pos int, format string, args ...any) error {
	line, col := 1, 1
	for i := 0; i < pos && i < len(lx.input); i++ {
		if lx.input[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return fmt.Errorf("line %d col %d: %s", line, col, fmt.Sprintf(format, args...))
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.pos < len(lx.input) {
		c := lx.input[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			lx.pos++
		case c == '#':
			for lx.pos < len(lx.input) && lx.input[lx.pos] != '\n' {
				lx.pos++
			}
		default:
			return
		}
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipSpaceAndComments()
	start := lx.pos
	if lx.pos >= len(lx.input) {
		return token{kind: tokEOF, pos: start}, nil
	}

	c := lx.input[lx.pos]
	switch {
	case c == '<':
		if iri, ok := lx.scanIRIRef(); ok {
			return token{kind: tokIRI, text: iri, pos: start}, nil
		}
		return lx.punct(start)
	case c == '?' || c == '$':
		lx.pos++
		name := lx.scanWhile(isVarChar)
		if name == "" {
			if c == '?' {
				// zero-or-one path modifier
				return token{kind: tokPunct, text: "?", pos: start}, nil
			}
			return token{}, lx.errorf(start, "empty variable name")
		}
		return token{kind: tokVar, text: name, pos: start}, nil
	case c == '"' || c == '\'':
		value, err := lx.scanString()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, text: value, pos: start}, nil
	case c == '@':
		lx.pos++
		tag := lx.scanWhile(func(r rune) bool {
			return r == '-' || r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
		})
		if tag == "" {
			return token{}, lx.errorf(start, "empty language tag")
		}
		return token{kind: tokLangTag, text: tag, pos: start}, nil
	case c >= '0' && c <= '9' || c == '.' && lx.peekDigit(1):
		return lx.scanNumber(start)
	case c == '_' && lx.peekByte(1) == ':':
		lx.pos += 2
		label := lx.scanName(true)
		if label == "" {
			return token{}, lx.errorf(start, "empty blank node label")
		}
		return token{kind: tokBlank, text: label, pos: start}, nil
	case c == ':':
		lx.pos++
		local, err := lx.scanLocalName()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokPName, text: ":" + local, pos: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(lx.input[lx.pos:])
	if isNameStartChar(r) {
		name := lx.scanName(false)
		if lx.peekByte(0) == ':' {
			lx.pos++
			local, err := lx.scanLocalName()
			if err != nil {
				return token{}, err
			}
			return token{kind: tokPName, text: name + ":" + local, pos: start}, nil
		}
		return token{kind: tokWord, text: name, pos: start}, nil
	}

	return lx.punct(start)
}

var punctuation = []string{
	"^^", "&&", "||", "!=", "<=", ">=",
	"{", "}", "(", ")", "[", "]", ".", ",", ";",
	"=", "<", ">", "!", "+", "-", "*", "/", "|", "^",
}

func (lx *lexer) punct(start int) (token, error) {
	for _, symbol := range punctuation {
		if strings.HasPrefix(lx.input[lx.pos:], symbol) {
			lx.pos += len(symbol)
			return token{kind: tokPunct, text: symbol, pos: start}, nil
		}
	}
	return token{}, lx.errorf(start, "unexpected character %q", lx.input[lx.pos])
}

// scanIRIRef tries to read <...>. It fails without consuming input when the
// text cannot be an IRI, so '<' falls back to the comparison operator.
func (lx *lexer) scanIRIRef() (string, bool) {
	for i := lx.pos + 1; i < len(lx.input); i++ {
		switch c := lx.input[i]; {
		case c == '>':
			iri := lx.input[lx.pos+1 : i]
			lx.pos = i + 1
			return iri, true
		case c <= ' ' || strings.IndexByte("<\"{}|^`", c) >= 0:
			return "", false
		}
	}
	return "", false
}

func (lx *lexer) scanString() (string, error) {
	start := lx.pos
	quote := lx.input[lx.pos]
	long := strings.HasPrefix(lx.input[lx.pos:], strings.Repeat(string(quote), 3))
	if long {
		lx.pos += 3
	} else {
		lx.pos++
	}

	var builder strings.Builder
	for lx.pos < len(lx.input) {
		c := lx.input[lx.pos]
		switch {
		case long && strings.HasPrefix(lx.input[lx.pos:], strings.Repeat(string(quote), 3)):
			lx.pos += 3
			return builder.String(), nil
		case !long && c == quote:
			lx.pos++
			return builder.String(), nil
		case !long && (c == '\n' || c == '\r'):
			return "", lx.errorf(start, "unterminated string")
		case c == '\\':
			if err := lx.scanEscape(&builder); err != nil {
				return "", err
			}
		default:
			builder.WriteByte(c)
			lx.pos++
		}
	}
	return "", lx.errorf(start, "unterminated string")
}

func (lx *lexer) scanEscape(builder *strings.Builder) error {
	start := lx.pos
	if lx.pos+1 >= len(lx.input) {
		return lx.errorf(start, "dangling escape")
	}
	c := lx.input[lx.pos+1]
	lx.pos += 2
	switch c {
	case 't':
		builder.WriteByte('\t')
	case 'n':
		builder.WriteByte('\n')
	case 'r':
		builder.WriteByte('\r')
	case 'b':
		builder.WriteByte('\b')
	case 'f':
		builder.WriteByte('\f')
	case '"', '\'', '\\':
		builder.WriteByte(c)
	case 'u', 'U':
		width := 4
		if c == 'U' {
			width = 8
		}
		if lx.pos+width > len(lx.input) {
			return lx.errorf(start, "short unicode escape")
		}
		code, err := strconv.ParseUint(lx.input[lx.pos:lx.pos+width], 16, 32)
		if err != nil {
			return lx.errorf(start, "bad unicode escape")
		}
		builder.WriteRune(rune(code))
		lx.pos += width
	default:
		return lx.errorf(start, "unknown escape \\%c", c)
	}
	return nil
}

func (lx *lexer) scanNumber(start int) (token, error) {
	kind := tokInteger
	lx.scanWhile(isDigit)
	if lx.peekByte(0) == '.' && lx.peekDigit(1) {
		kind = tokDecimal
		lx.pos++
		lx.scanWhile(isDigit)
	}
	if c := lx.peekByte(0); c == 'e' || c == 'E' {
		save := lx.pos
		lx.pos++
		if c := lx.peekByte(0); c == '+' || c == '-' {
			lx.pos++
		}
		if lx.scanWhile(isDigit) == "" {
			lx.pos = save
		} else {
			kind = tokDouble
		}
	}
	return token{kind: kind, text: lx.input[start:lx.pos], pos: start}, nil
}

// scanName reads a prefix or blank node label: name characters with inner
// dots, never a trailing dot.
func (lx *lexer) scanName(allowLeadingDigit bool) string {
	start := lx.pos
	for lx.pos < len(lx.input) {
		r, size := utf8.DecodeRuneInString(lx.input[lx.pos:])
		switch {
		case isNameChar(r) && (lx.pos > start || allowLeadingDigit || isNameStartChar(r)):
			lx.pos += size
		case r == '.' && lx.pos > start && lx.nameContinuesAfterDot():
			lx.pos += size
		default:
			return lx.input[start:lx.pos]
		}
	}
	return lx.input[start:lx.pos]
}

// scanLocalName reads the local part of a prefixed name, decoding backslash
// escapes and keeping %XX escapes verbatim.
func (lx *lexer) scanLocalName() (string, error) {
	var builder strings.Builder
	for lx.pos < len(lx.input) {
		r, size := utf8.DecodeRuneInString(lx.input[lx.pos:])
		switch {
		case isNameChar(r) || r == ':':
			builder.WriteRune(r)
			lx.pos += size
		case r == '.' && builder.Len() > 0 && lx.nameContinuesAfterDot():
			builder.WriteByte('.')
			lx.pos++
		case r == '%' && lx.pos+2 < len(lx.input) && isHex(lx.input[lx.pos+1]) && isHex(lx.input[lx.pos+2]):
			builder.WriteString(lx.input[lx.pos : lx.pos+3])
			lx.pos += 3
		case r == '\\' && lx.pos+1 < len(lx.input) && strings.IndexByte("_~.-!$&'()*+,;=/?#@%", lx.input[lx.pos+1]) >= 0:
			builder.WriteByte(lx.input[lx.pos+1])
			lx.pos += 2
		default:
			return builder.String(), nil
		}
	}
	return builder.String(), nil
}

func (lx *lexer) nameContinuesAfterDot() bool {
	i := lx.pos + 1
	for i < len(lx.input) && lx.input[i] == '.' {
		i++
	}
	if i >= len(lx.input) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(lx.input[i:])
	return isNameChar(r) || r == ':'
}

func (lx *lexer) scanWhile(accept func(rune) bool) string {
	start := lx.pos
	for lx.pos < len(lx.input) {
		r, size := utf8.DecodeRuneInString(lx.input[lx.pos:])
		if !accept(r) {
			break
		}
		lx.pos += size
	}
	return lx.input[start:lx.pos]
}

func (lx *lexer) peekByte(offset int) byte {
	if lx.pos+offset < len(lx.input) {
		return lx.input[lx.pos+offset]
	}
	return 0
}

func (lx *lexer) peekDigit(offset int) bool {
	return isDigit(rune(lx.peekByte(offset)))
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func isNameStartChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return isNameStartChar(r) || r == '-' || unicode.IsDigit(r) || r == 0xB7
}

func isVarChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || r == 0xB7
}
