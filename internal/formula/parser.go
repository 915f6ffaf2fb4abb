package formula

import (
	"fmt"
	"math"

	"github.com/sdsinventory/backend/internal/shared"
)

type node interface {
	eval(vars map[string]float64) (float64, error)
}

type numberNode float64

type identNode string

type unaryNode struct {
	op      byte
	operand node
}

type binaryNode struct {
	op    byte
	left  node
	right node
}

func (n numberNode) eval(map[string]float64) (float64, error) { return float64(n), nil }

func (n identNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", shared.ErrUnknownVariable, string(n))
	}
	return v, nil
}

func (n unaryNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return 0, err
	}
	if n.op == '-' {
		return -v, nil
	}
	return v, nil
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, invalid("division by zero")
		}
		return l / r, nil
	case '%':
		if r == 0 {
			return 0, invalid("modulo by zero")
		}
		m := math.Mod(l, r)
		// result takes the sign of the divisor
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	case '^':
		if l == 0 && r < 0 {
			return 0, invalid("zero raised to a negative power")
		}
		return math.Pow(l, r), nil
	}
	return 0, invalid("unsupported operator %q", n.op)
}

// parser is a recursive-descent parser over:
//
//	expr    := term (('+'|'-') term)*
//	term    := unary (('*'|'/'|'%') unary)*
//	unary   := ('+'|'-') unary | power
//	power   := primary ('^' unary)?
//	primary := NUMBER | IDENT | '(' expr ')'
type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) isOp(ops string) bool {
	if p.tok.kind != tokOp || len(p.tok.text) != 1 {
		return false
	}
	for i := 0; i < len(ops); i++ {
		if ops[i] == p.tok.text[0] {
			return true
		}
	}
	return false
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+-") {
		op := p.tok.text[0]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*/%") {
		op := p.tok.text[0]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOp("+-") {
		op := p.tok.text[0]
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.isOp("^") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: '^', left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.tok
	switch tok.kind {
	case tokNumber:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return numberNode(tok.num), nil
	case tokIdent:
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch {
		case p.tok.kind == tokLParen:
			return nil, invalid("function calls are not allowed: %s(...)", tok.text)
		case p.tok.kind == tokPunct && p.tok.text == ".":
			return nil, invalid("attribute access is not allowed on %s", tok.text)
		case p.tok.kind == tokPunct && p.tok.text == "[":
			return nil, invalid("indexing is not allowed on %s", tok.text)
		}
		return identNode(tok.text), nil
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, invalid("missing closing parenthesis at position %d", p.tok.pos)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return inner, nil
	case tokEOF:
		return nil, invalid("unexpected end of expression")
	}
	return nil, invalid("unexpected %q at position %d", tok.text, tok.pos)
}
