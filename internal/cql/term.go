package cql

import "strings"

// Node is an operand of a Term: either a *Leaf or a nested *Term.
type Node interface {
	String() string
}

// Leaf is a search term as written in the query.
type Leaf struct {
	Text   string
	Quoted bool
}

func (l *Leaf) String() string {
	if !l.Quoted {
		return l.Text
	}
	return `"` + quoteEscaper.Replace(l.Text) + `"`
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Term is a binary expression node. The parser reads the query right to left,
// so Right holds the operand that appears first in the input and Left the one
// that appears last. Operator is set only for boolean nodes; a Term without an
// operator is a transparent wrapper around Left.
type Term struct {
	Left     Node
	Right    Node
	Operator string
}

// push attaches n to the first free operand slot.
func (t *Term) push(n Node) bool {
	switch {
	case t.Left == nil:
		t.Left = n
	case t.Right == nil:
		t.Right = n
	default:
		return false
	}
	return true
}

// pop detaches the most recently filled operand.
func (t *Term) pop() (Node, error) {
	if t.Right != nil {
		n := t.Right
		t.Right = nil
		return n, nil
	}
	if t.Operator != "" {
		return nil, ErrDanglingOperator
	}
	n := t.Left
	t.Left = nil
	return n, nil
}

func (t *Term) setOperator(op string) {
	t.Operator = strings.ToLower(op)
}

func (t *Term) empty() bool {
	return t.Left == nil
}

// String renders the expression in input order with every boolean node
// parenthesised, e.g. "(a or b) and c" renders as "((a or b) and c)".
func (t *Term) String() string {
	if t.Left == nil {
		return "_"
	}
	if t.Operator == "" {
		return t.Left.String()
	}
	right := "_"
	if t.Right != nil {
		right = t.Right.String()
	}
	return "(" + right + " " + t.Operator + " " + t.Left.String() + ")"
}

// validate walks the finished tree and reports empty brackets and boolean
// nodes missing their input-side-first operand.
func (t *Term) validate() error {
	if t.Left == nil {
		return ErrEmptyTerm
	}
	if err := validateNode(t.Left); err != nil {
		return err
	}
	if t.Operator == "" {
		return nil
	}
	if t.Right == nil {
		return ErrDanglingOperator
	}
	if sub, ok := t.Right.(*Term); ok && sub.empty() {
		return ErrDanglingOperator
	}
	return validateNode(t.Right)
}

func validateNode(n Node) error {
	if sub, ok := n.(*Term); ok {
		return sub.validate()
	}
	return nil
}
