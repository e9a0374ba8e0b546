package cql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Tokenizer
// =============================================================================

func TestTokenize(t *testing.T) {
	t.Run("operators words and quoted strings", func(t *testing.T) {
		toks, err := Tokenize(`title<="Karlheinz, Mörth" and (ʕēn)`)
		require.NoError(t, err)
		assert.Equal(t, []Token{
			{Text: "title", Kind: BareWord},
			{Text: "<=", Kind: Operator},
			{Text: "Karlheinz, Mörth", Kind: QuotedString},
			{Text: "and", Kind: BareWord},
			{Text: "(", Kind: Operator},
			{Text: "ʕēn", Kind: BareWord},
			{Text: ")", Kind: Operator},
		}, toks)
	})

	t.Run("escaped quotes inside quoted string", func(t *testing.T) {
		toks, err := Tokenize(`"say \"hi\""`)
		require.NoError(t, err)
		require.Len(t, toks, 1)
		assert.Equal(t, `say "hi"`, toks[0].Text)
		assert.Equal(t, QuotedString, toks[0].Kind)
	})

	t.Run("longest operator wins", func(t *testing.T) {
		toks, err := Tokenize("a==b<>c")
		require.NoError(t, err)
		assert.Equal(t, "==", toks[1].Text)
		assert.Equal(t, "<>", toks[3].Text)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := Tokenize("   \t ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("unterminated quote", func(t *testing.T) {
		_, err := Tokenize(`dog "cat`)
		assert.ErrorIs(t, err, ErrUnrecognizedToken)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := Tokenize("dog \xff")
		assert.ErrorIs(t, err, ErrUnrecognizedToken)
	})

	t.Run("tokenizer is exhausted once", func(t *testing.T) {
		tz := NewTokenizer("a")
		_, _, ok, err := tz.Next()
		require.NoError(t, err)
		require.True(t, ok)
		_, _, ok, err = tz.Next()
		require.NoError(t, err)
		assert.False(t, ok)
		_, _, ok, _ = tz.Next()
		assert.False(t, ok)
	})
}

func TestTokenClassification(t *testing.T) {
	assert.True(t, Token{Text: "AND", Kind: BareWord}.IsAndOrNot())
	assert.False(t, Token{Text: "and", Kind: QuotedString}.IsAndOrNot())
	assert.True(t, Token{Text: "Prox", Kind: BareWord}.IsBoolean())
	assert.False(t, Token{Text: "prox", Kind: BareWord}.IsAndOrNot())
	assert.True(t, Token{Text: ">=", Kind: Operator}.IsRelation())
	assert.True(t, Token{Text: "/", Kind: Operator}.IsModifier())
	assert.True(t, Token{Text: "(", Kind: Operator}.IsOpeningBracket())
	assert.True(t, Token{Text: ")", Kind: Operator}.IsClosingBracket())
}

// =============================================================================
// Parser
// =============================================================================

func TestParseRendering(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"a or b", "(a or b)"},
		{"(a or b) and c", "((a or b) and c)"},
		{"a and (b or c)", "(a and (b or c))"},
		{"a AND b Or c", "((a and b) or c)"},
		{"dog", "dog"},
		{"dog cat", "(dog and cat)"},
		{"a b c", "((a and b) and c)"},
		{"((a))", "a"},
		{"(a or b) and (c not d)", "((a or b) and (c not d))"},
		{`"lazy dog" or fox`, `("lazy dog" or fox)`},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			q, err := Parse(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, q.String())
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	queries := []string{
		"a or b",
		"(a or b) and c",
		"a and (b or (c and d)) or e",
		`"x y" and (z or w)`,
	}
	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			first, err := Parse(query)
			require.NoError(t, err)
			second, err := Parse(first.String())
			require.NoError(t, err)
			assert.Equal(t, first.String(), second.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		query string
		want  error
	}{
		{"", ErrEmptyQuery},
		{"(a", ErrUnbalancedBrackets},
		{"a)", ErrUnbalancedBrackets},
		{"(a or b", ErrUnbalancedBrackets},
		{"a and", ErrMissingLeftOperand},
		{"not (a or b)", ErrDanglingOperator},
		{"and a", ErrDanglingOperator},
		{"a (b)", ErrMissingOperator},
		{"a b and c", ErrMissingOperator},
		{"title = dog", ErrUnsupportedConstruct},
		{"dog/fuzzy", ErrUnsupportedConstruct},
		{"a prox b and c", ErrUnsupportedConstruct},
		{"dog prox cat", ErrUnsupportedConstruct},
		{"prox", ErrUnsupportedConstruct},
		{"()", ErrEmptyTerm},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			_, err := Parse(tc.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParseErrorCarriesToken(t *testing.T) {
	_, err := Parse("dog = cat")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "=", pe.Token.Text)
	assert.Equal(t, 4, pe.Pos)
}

// =============================================================================
// Compiler
// =============================================================================

func TestTsquery(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"dog", "dog"},
		{"dog and cat", "(dog & cat)"},
		{"dog or cat", "(dog | cat)"},
		{"dog not cat", "(dog & !cat)"},
		{"(a or b) and c", "((a | b) & c)"},
		{`"lazy dog" or fox`, "((lazy & dog) | fox)"},
		{"e-mail", "(e & mail)"},
		{"it's", "(it & s)"},
		{"Mörth", "Mörth"},
		{`"and" cat`, "(and & cat)"},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, err := Compile(tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSimpleFormMatchesExplicitAnd(t *testing.T) {
	implicit, err := Compile("dog cat")
	require.NoError(t, err)
	explicit, err := Compile("dog and cat")
	require.NoError(t, err)
	assert.Equal(t, explicit, implicit)

	implicit, err = Compile("a b c")
	require.NoError(t, err)
	explicit, err = Compile("a and b and c")
	require.NoError(t, err)
	assert.Equal(t, explicit, implicit)
}

func TestTsqueryEmptyTerm(t *testing.T) {
	_, err := Compile("--- or dog")
	assert.ErrorIs(t, err, ErrEmptyTerm)
}

func TestLexemesNormalisesToNFC(t *testing.T) {
	decomposed := "Mo\u0308rth"
	assert.Equal(t, []string{"M\u00f6rth"}, Lexemes(decomposed))
}

func BenchmarkCompile(b *testing.B) {
	query := `("lazy dog" or fox) and (quick not slow) and (a or (b and c))`
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Compile(query); err != nil {
			b.Fatal(err)
		}
	}
}
