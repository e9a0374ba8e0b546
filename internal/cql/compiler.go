package cql

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tsquery compiles the query into PostgreSQL tsquery syntax. Boolean nodes
// keep the parenthesised shape of String(); and/or map to & and |, "a not b"
// becomes "(a & !b)".
func (q *Query) Tsquery() (string, error) {
	var b strings.Builder
	if err := compileTerm(&b, q.Root); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Compile parses query and returns its tsquery rendering.
func Compile(query string) (string, error) {
	q, err := Parse(query)
	if err != nil {
		return "", err
	}
	return q.Tsquery()
}

func compileNode(b *strings.Builder, n Node) error {
	switch v := n.(type) {
	case *Term:
		return compileTerm(b, v)
	case *Leaf:
		return compileLeaf(b, v)
	default:
		return newParseError(ErrEmptyTerm, Token{}, 0)
	}
}

func compileTerm(b *strings.Builder, t *Term) error {
	if t == nil || t.Left == nil {
		return newParseError(ErrEmptyTerm, Token{}, 0)
	}
	if t.Operator == "" {
		return compileNode(b, t.Left)
	}
	if t.Right == nil {
		return newParseError(ErrDanglingOperator, Token{Text: t.Operator}, 0)
	}

	var op string
	switch t.Operator {
	case "and":
		op = " & "
	case "or":
		op = " | "
	case "not":
		op = " & !"
	default:
		return newParseError(ErrUnsupportedConstruct, Token{Text: t.Operator}, 0)
	}
	b.WriteByte('(')
	if err := compileNode(b, t.Right); err != nil {
		return err
	}
	b.WriteString(op)
	if err := compileNode(b, t.Left); err != nil {
		return err
	}
	b.WriteByte(')')
	return nil
}

// compileLeaf emits the words of a term. Only letters and digits survive, so
// nothing in a leaf can be read as tsquery syntax; a term holding several
// words (a phrase, or a hyphenated word) becomes an AND chain.
func compileLeaf(b *strings.Builder, l *Leaf) error {
	words := Lexemes(l.Text)
	switch len(words) {
	case 0:
		return newParseError(ErrEmptyTerm, Token{Text: l.Text}, 0)
	case 1:
		b.WriteString(words[0])
		return nil
	}
	b.WriteByte('(')
	b.WriteString(strings.Join(words, " & "))
	b.WriteByte(')')
	return nil
}

// Lexemes NFC-normalises text and splits it on every rune that is neither a
// letter, a digit nor a combining mark.
func Lexemes(text string) []string {
	text = norm.NFC.String(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
}
