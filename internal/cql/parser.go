package cql

// Query is a parsed CQL query.
type Query struct {
	Raw  string
	Root *Term
}

// String returns the normalised rendering of the expression tree.
func (q *Query) String() string {
	return q.Root.String()
}

// Parse tokenizes and parses query. A plain list of terms is read as an
// implicit conjunction; anything else goes through the boolean grammar.
func Parse(query string) (*Query, error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, err
	}
	root, ok := parseSimple(toks)
	if !ok {
		root, err = parseLogical(toks)
		if err != nil {
			return nil, err
		}
	}
	return &Query{Raw: query, Root: root}, nil
}

// parseSimple accepts only bare or quoted terms, none of them a bare boolean
// keyword (prox included, so it reaches the unsupported-operator error). It
// builds the same right-to-left shaped chain the logical parser
// produces for "t1 and t2 and ... tn", so both forms compile identically.
func parseSimple(toks []positionedToken) (*Term, bool) {
	for _, t := range toks {
		if !t.IsString() || t.IsBoolean() {
			return nil, false
		}
	}
	root := &Term{}
	cur := root
	for i := len(toks) - 1; i >= 0; i-- {
		cur.Left = leafOf(toks[i].Token)
		if i == 0 {
			break
		}
		next := &Term{}
		cur.setOperator("and")
		cur.Right = next
		cur = next
	}
	return root, true
}

// parseLogical reads tokens from last to first keeping a stack of terms that
// were open when a closing bracket was met. Brackets are therefore seen in
// reverse: ")" opens a group, "(" closes it.
func parseLogical(toks []positionedToken) (*Term, error) {
	root := &Term{}
	stack := []*Term{root}
	cur := root

	for i := len(toks) - 1; i >= 0; i-- {
		tok := toks[i]
		switch {
		case tok.IsClosingBracket():
			if cur.Left != nil {
				return nil, newParseError(ErrMissingOperator, tok.Token, tok.pos)
			}
			stack = append(stack, cur)
			child := &Term{}
			cur.push(child)
			cur = child

		case tok.IsOpeningBracket():
			if len(stack) == 1 {
				return nil, newParseError(ErrUnbalancedBrackets, tok.Token, tok.pos)
			}
			parent := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group, err := parent.pop()
			if err != nil {
				return nil, newParseError(err, tok.Token, tok.pos)
			}
			wrapper := &Term{}
			parent.push(wrapper)
			wrapper.push(group)
			cur = wrapper

		case tok.IsAndOrNot():
			if cur.Left == nil {
				return nil, newParseError(ErrMissingLeftOperand, tok.Token, tok.pos)
			}
			cur.setOperator(tok.Text)
			child := &Term{}
			cur.push(child)
			cur = child

		case tok.IsBoolean():
			return nil, newParseError(ErrUnsupportedConstruct, tok.Token, tok.pos)

		case tok.IsString():
			if cur.Left != nil {
				return nil, newParseError(ErrMissingOperator, tok.Token, tok.pos)
			}
			cur.push(leafOf(tok.Token))

		default:
			return nil, newParseError(ErrUnsupportedConstruct, tok.Token, tok.pos)
		}
	}
	if len(stack) != 1 {
		last := toks[0]
		return nil, newParseError(ErrUnbalancedBrackets, last.Token, last.pos)
	}
	if err := root.validate(); err != nil {
		return nil, newParseError(err, Token{}, 0)
	}
	return root, nil
}

func leafOf(t Token) *Leaf {
	return &Leaf{Text: t.Text, Quoted: t.Kind == QuotedString}
}
