package store

import "testing"

func TestKind(t *testing.T) {
	tests := []struct {
		term     string
		expected TermKind
	}{
		{"http://example.org/a", KindIRI},
		{"_:b0", KindBlank},
		{`"plain"`, KindLiteral},
		{`"chat"@fr`, KindLiteral},
		{`"5"^^<http://www.w3.org/2001/XMLSchema#integer>`, KindLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			if got := Kind(tt.term); got != tt.expected {
				t.Errorf("Kind(%q) = %v, want %v", tt.term, got, tt.expected)
			}
		})
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	tests := []struct {
		name             string
		encoded          string
		lexical          string
		lang             string
		datatype         string
		expectedEncoding string
	}{
		{"plain", NewLiteral("raster"), "raster", "", XSDString, `"raster"`},
		{"explicit string", NewTypedLiteral("raster", XSDString), "raster", "", XSDString, `"raster"`},
		{"lang", NewLangLiteral("Kosten", "DE"), "Kosten", "de", RDFLangString, `"Kosten"@de`},
		{"typed", NewTypedLiteral("42", XSDInteger), "42", "", XSDInteger, `"42"^^<` + XSDInteger + `>`},
		{"quotes", NewLiteral(`say "hi"`), `say "hi"`, "", XSDString, `"say \"hi\""`},
		{"newline", NewLiteral("a\nb"), "a\nb", "", XSDString, `"a\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.encoded != tt.expectedEncoding {
				t.Errorf("encoded = %s, want %s", tt.encoded, tt.expectedEncoding)
			}
			lexical, lang, datatype, ok := SplitLiteral(tt.encoded)
			if !ok {
				t.Fatalf("SplitLiteral(%s) failed", tt.encoded)
			}
			if lexical != tt.lexical || lang != tt.lang || datatype != tt.datatype {
				t.Errorf("SplitLiteral(%s) = (%q, %q, %q), want (%q, %q, %q)",
					tt.encoded, lexical, lang, datatype, tt.lexical, tt.lang, tt.datatype)
			}
		})
	}
}

func TestSplitLiteral_NotLiteral(t *testing.T) {
	if _, _, _, ok := SplitLiteral("http://example.org/a"); ok {
		t.Error("IRI must not split as literal")
	}
}

func TestLexicalForm(t *testing.T) {
	if got := LexicalForm(NewTypedLiteral("3.5", XSDDecimal)); got != "3.5" {
		t.Errorf("LexicalForm(typed) = %q", got)
	}
	if got := LexicalForm("_:b1"); got != "b1" {
		t.Errorf("LexicalForm(blank) = %q", got)
	}
	if got := LexicalForm("http://example.org/a"); got != "http://example.org/a" {
		t.Errorf("LexicalForm(iri) = %q", got)
	}
}

func TestTriple_NTriples(t *testing.T) {
	triple := NewTriple("http://example.org/a", RDFSLabel, NewLangLiteral("A", "en"))
	expected := `<http://example.org/a> <` + RDFSLabel + `> "A"@en .`
	if got := triple.NTriples(); got != expected {
		t.Errorf("NTriples() = %s, want %s", got, expected)
	}
}
