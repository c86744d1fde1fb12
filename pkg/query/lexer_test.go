package query

import "testing"

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kinds []tokenKind
		texts []string
	}{
		{
			name:  "iri and prefixed name",
			input: `<http://example.org/a> wf:Step`,
			kinds: []tokenKind{tokIRI, tokPName, tokEOF},
			texts: []string{"http://example.org/a", "wf:Step", ""},
		},
		{
			name:  "less-than is an operator when not an IRI",
			input: `?o < 3`,
			kinds: []tokenKind{tokVar, tokPunct, tokInteger, tokEOF},
			texts: []string{"o", "<", "3", ""},
		},
		{
			name:  "less-or-equal",
			input: `?o <= 3`,
			kinds: []tokenKind{tokVar, tokPunct, tokInteger, tokEOF},
			texts: []string{"o", "<=", "3", ""},
		},
		{
			name:  "language literal",
			input: `"Pfad"@de`,
			kinds: []tokenKind{tokString, tokLangTag, tokEOF},
			texts: []string{"Pfad", "de", ""},
		},
		{
			name:  "typed literal",
			input: `"7"^^xsd:integer`,
			kinds: []tokenKind{tokString, tokPunct, tokPName, tokEOF},
			texts: []string{"7", "^^", "xsd:integer", ""},
		},
		{
			name:  "escapes in strings",
			input: `"a\"b\n" 'c'`,
			kinds: []tokenKind{tokString, tokString, tokEOF},
			texts: []string{"a\"b\n", "c", ""},
		},
		{
			name: "long string",
			input: `"""two
lines"""`,
			kinds: []tokenKind{tokString, tokEOF},
			texts: []string{"two\nlines", ""},
		},
		{
			name:  "numbers",
			input: `42 4.2 4e2 .5`,
			kinds: []tokenKind{tokInteger, tokDecimal, tokDouble, tokDecimal, tokEOF},
			texts: []string{"42", "4.2", "4e2", ".5", ""},
		},
		{
			name:  "trailing dot ends a prefixed name",
			input: `?s a wf:Step.`,
			kinds: []tokenKind{tokVar, tokWord, tokPName, tokPunct, tokEOF},
			texts: []string{"s", "a", "wf:Step", ".", ""},
		},
		{
			name:  "blank node and comment",
			input: "_:b1 # comment\n?x",
			kinds: []tokenKind{tokBlank, tokVar, tokEOF},
			texts: []string{"b1", "x", ""},
		},
		{
			name:  "empty prefix",
			input: `:local`,
			kinds: []tokenKind{tokPName, tokEOF},
			texts: []string{":local", ""},
		},
		{
			name:  "logical operators",
			input: `&& || !=`,
			kinds: []tokenKind{tokPunct, tokPunct, tokPunct, tokEOF},
			texts: []string{"&&", "||", "!=", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := tokenize(tt.input)
			if err != nil {
				t.Fatalf("tokenize() error = %v", err)
			}
			if len(tokens) != len(tt.kinds) {
				t.Fatalf("got %d tokens %v, want %d", len(tokens), tokens, len(tt.kinds))
			}
			for i, tok := range tokens {
				if tok.kind != tt.kinds[i] {
					t.Errorf("token %d kind = %v, want %v", i, tok.kind, tt.kinds[i])
				}
				if tok.text != tt.texts[i] {
					t.Errorf("token %d text = %q, want %q", i, tok.text, tt.texts[i])
				}
			}
		})
	}
}

func TestTokenize_Errors(t *testing.T) {
	inputs := []string{
		`"unterminated`,
		`"bad \q escape"`,
		`$`,
		`@`,
		"~",
	}
	for _, input := range inputs {
		if _, err := tokenize(input); err == nil {
			t.Errorf("tokenize(%q) expected error", input)
		}
	}
}
