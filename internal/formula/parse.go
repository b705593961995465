package formula

import (
	"errors"
	"math"
	"strconv"
)

// Grammar of canonical expressions. Unary minus binds looser than ** and
// tighter than * and /, so -2**2 is -(2**2) and 2**-1 is 2**(-1).
//
//	expression := term (('+'|'-') term)*
//	term       := unary (('*'|'/') unary)*
//	unary      := '-' unary | power
//	power      := atom ('**' unary)?
//	atom       := number | identifier | call | '(' expression ')'
//	call       := name '(' expression (',' expression)* ')'

// DefaultMaxDepth is the nesting limit used by Parse.
const DefaultMaxDepth = 256

type parser struct {
	toks     []token
	pos      int
	depth    int
	maxDepth int
}

// Parse builds a syntax tree from a canonical expression.
func Parse(s string) (Node, error) {
	return parseDepth(s, DefaultMaxDepth)
}

func parseDepth(s string, maxDepth int) (Node, error) {
	p := &parser{toks: tokenize(s), maxDepth: maxDepth}
	if p.peek().kind == tokenEOF {
		return nil, newError(CodeSyntaxError, nil, "empty expression")
	}
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokenEOF {
		return nil, p.unexpected(t, "trailing input")
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return exhausted("depth", "expression nested deeper than %d", p.maxDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) expression() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) term() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOp || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) unary() (Node, error) {
	if t := p.peek(); t.kind == tokenOp && t.text == "-" {
		p.next()
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Neg{Operand: operand}, nil
	}
	return p.power()
}

func (p *parser) power() (Node, error) {
	base, err := p.atom()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokenOp || t.text != "**" {
		return base, nil
	}
	p.next()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: "**", Left: base, Right: exp}, nil
}

func (p *parser) atom() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokenNum:
		v, err := strconv.ParseFloat(t.text, 64)
		if errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0) {
			return nil, wrapError(CodeNumericOverflow, err, map[string]string{"pos": strconv.Itoa(t.start + 1)},
				"number %q at column %d is out of range", t.text, t.start+1)
		}
		if err != nil {
			return nil, wrapError(CodeSyntaxError, err, map[string]string{"pos": strconv.Itoa(t.start + 1)},
				"malformed number %q at column %d", t.text, t.start+1)
		}
		return &Number{Value: v}, nil
	case tokenIdent:
		if p.peek().kind == tokenOpen && p.peek().text == "(" {
			return p.call(t)
		}
		return &Ident{Name: t.text}, nil
	case tokenOpen:
		if t.text != "(" {
			return nil, p.unexpected(t, "")
		}
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, p.unexpected(t, "")
}

func (p *parser) call(name token) (Node, error) {
	p.next() // (
	var args []Node
	for {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().kind != tokenSep {
			break
		}
		p.next()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return &Call{Name: name.text, Args: args}, nil
}

func (p *parser) expect(text string) error {
	t := p.next()
	if t.text != text {
		if t.kind == tokenEOF {
			return newError(CodeSyntaxError, map[string]string{"pos": strconv.Itoa(t.start + 1)},
				"unbalanced parentheses: expected %q at end of input", text)
		}
		return p.unexpected(t, "expected "+strconv.Quote(text))
	}
	return nil
}

func (p *parser) unexpected(t token, detail string) error {
	meta := map[string]string{"pos": strconv.Itoa(t.start + 1), "token": t.text}
	if t.kind == tokenEOF {
		return newError(CodeSyntaxError, meta, "unexpected end of input")
	}
	if detail == "" {
		return newError(CodeSyntaxError, meta, "unexpected %s", t)
	}
	return newError(CodeSyntaxError, meta, "%s: unexpected %s", detail, t)
}
