package cql

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// twoCharOperators are tried before single characters so that e.g. "<="
// yields one relation token.
var twoCharOperators = []string{"<=", ">=", "==", "<>"}

const singleCharOperators = "()/<=>"

// Tokenizer yields the tokens of a query one at a time. It is single pass:
// once exhausted it stays exhausted.
type Tokenizer struct {
	input string
	pos   int
}

// NewTokenizer returns a Tokenizer positioned at the start of query.
func NewTokenizer(query string) *Tokenizer {
	return &Tokenizer{input: query}
}

// Next returns the next token and its byte offset. ok is false once the input
// is consumed. Input that matches no token rule is a hard error.
func (t *Tokenizer) Next() (tok Token, pos int, ok bool, err error) {
	t.skipSpace()
	if t.pos >= len(t.input) {
		return Token{}, t.pos, false, nil
	}
	pos = t.pos
	rest := t.input[t.pos:]

	for _, op := range twoCharOperators {
		if strings.HasPrefix(rest, op) {
			t.pos += len(op)
			return Token{Text: op, Kind: Operator}, pos, true, nil
		}
	}
	if strings.IndexByte(singleCharOperators, rest[0]) >= 0 {
		t.pos++
		return Token{Text: rest[:1], Kind: Operator}, pos, true, nil
	}
	if rest[0] == '"' {
		text, n, found := scanQuoted(rest)
		if !found {
			return Token{}, pos, false, newParseError(ErrUnrecognizedToken, Token{Text: rest, Kind: QuotedString}, pos)
		}
		t.pos += n
		return Token{Text: text, Kind: QuotedString}, pos, true, nil
	}

	n := 0
	for n < len(rest) {
		r, size := utf8.DecodeRuneInString(rest[n:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		if unicode.IsSpace(r) || r == '"' || strings.ContainsRune(singleCharOperators, r) {
			break
		}
		n += size
	}
	if n == 0 {
		return Token{}, pos, false, newParseError(ErrUnrecognizedToken, Token{Text: rest}, pos)
	}
	t.pos += n
	return Token{Text: rest[:n], Kind: BareWord}, pos, true, nil
}

func (t *Tokenizer) skipSpace() {
	for t.pos < len(t.input) {
		r, size := utf8.DecodeRuneInString(t.input[t.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		t.pos += size
	}
}

// scanQuoted reads a double-quoted string starting at s[0]. A backslash
// escapes the following quote or backslash. It returns the unescaped content
// and the number of bytes consumed including both quotes.
func scanQuoted(s string) (string, int, bool) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
				b.WriteByte(s[i+1])
				i++
				continue
			}
			b.WriteByte(s[i])
		case '"':
			return b.String(), i + 1, true
		default:
			b.WriteByte(s[i])
		}
	}
	return "", 0, false
}

type positionedToken struct {
	Token
	pos int
}

// Tokenize splits query into tokens. It fails with ErrEmptyQuery when the
// query holds no tokens at all.
func Tokenize(query string) ([]Token, error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, err
	}
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = t.Token
	}
	return out, nil
}

func tokenize(query string) ([]positionedToken, error) {
	tz := NewTokenizer(query)
	var toks []positionedToken
	for {
		tok, pos, ok, err := tz.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		toks = append(toks, positionedToken{Token: tok, pos: pos})
	}
	if len(toks) == 0 {
		return nil, newParseError(ErrEmptyQuery, Token{}, 0)
	}
	return toks, nil
}
