// Package cql parses the subset of the Contextual Query Language accepted by
// the endpoint (bare and quoted terms combined with and/or/not and brackets)
// and compiles the resulting expression tree into a PostgreSQL tsquery.
package cql

import "strings"

// TokenKind classifies a raw token.
type TokenKind int

const (
	Operator TokenKind = iota + 1
	BareWord
	QuotedString
)

func (k TokenKind) String() string {
	switch k {
	case Operator:
		return "operator"
	case BareWord:
		return "word"
	case QuotedString:
		return "quoted"
	default:
		return "unknown"
	}
}

const (
	openingBracket = "("
	closingBracket = ")"
	modifier       = "/"
)

var relations = map[string]struct{}{
	"=": {}, ">": {}, "<": {}, ">=": {}, "<=": {}, "<>": {}, "==": {},
}

var booleans = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "prox": {},
}

// Token is a single lexical unit of a query. For quoted strings Text holds the
// unquoted, unescaped content.
type Token struct {
	Text string
	Kind TokenKind
}

func (t Token) IsString() bool {
	return t.Kind == BareWord || t.Kind == QuotedString
}

func (t Token) IsOpeningBracket() bool {
	return t.Kind == Operator && t.Text == openingBracket
}

func (t Token) IsClosingBracket() bool {
	return t.Kind == Operator && t.Text == closingBracket
}

func (t Token) IsRelation() bool {
	if t.Kind != Operator {
		return false
	}
	_, ok := relations[t.Text]
	return ok
}

func (t Token) IsModifier() bool {
	return t.Kind == Operator && t.Text == modifier
}

// IsBoolean reports whether t is one of the CQL boolean keywords, prox included.
func (t Token) IsBoolean() bool {
	if t.Kind != BareWord {
		return false
	}
	_, ok := booleans[strings.ToLower(t.Text)]
	return ok
}

// IsAndOrNot reports whether t is a boolean keyword the parser can combine
// terms with. Quoted keywords are plain search terms.
func (t Token) IsAndOrNot() bool {
	if t.Kind != BareWord {
		return false
	}
	switch strings.ToLower(t.Text) {
	case "and", "or", "not":
		return true
	}
	return false
}
