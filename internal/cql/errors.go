package cql

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery           = errors.New("empty query")
	ErrUnrecognizedToken    = errors.New("unrecognized token")
	ErrUnbalancedBrackets   = errors.New("opening and closing brackets count don't match")
	ErrMissingLeftOperand   = errors.New("boolean operator with no left term")
	ErrDanglingOperator     = errors.New("boolean operator with no right term")
	ErrMissingOperator      = errors.New("terms not separated by a boolean operator")
	ErrUnsupportedConstruct = errors.New("query construct not supported")
	ErrEmptyTerm            = errors.New("empty term")
)

// ParseError describes why a query could not be parsed or compiled. Kind is
// one of the sentinel errors above; Token is the offending input, if any.
type ParseError struct {
	Kind  error
	Token Token
	Pos   int
}

func (e *ParseError) Error() string {
	if e.Token.Text == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %q", e.Kind.Error(), e.Token.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

func newParseError(kind error, tok Token, pos int) *ParseError {
	return &ParseError{Kind: kind, Token: tok, Pos: pos}
}
