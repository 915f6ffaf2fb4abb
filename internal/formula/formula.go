// Package formula parses and evaluates the arithmetic expressions used by recipe
// items to derive quantities from dimensions, variables and options.
//
// The grammar is closed: numbers, identifiers, parentheses, unary +/- and the
// binary operators + - * / % ^ (** is accepted as an alias of ^). Anything else,
// function calls and attribute or index access included, is rejected at parse time.
package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sdsinventory/backend/internal/shared"
)

// MaxLength bounds the source length accepted by Validate.
const MaxLength = 200

// Expr is a parsed formula.
type Expr struct {
	src   string
	root  node
	names []string
}

// Parse compiles src into an Expr. Identifiers are lower-cased.
func Parse(src string) (*Expr, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokEOF {
		return nil, invalid("empty expression")
	}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, invalid("unexpected %q at position %d", p.tok.text, p.tok.pos)
	}
	seen := make(map[string]struct{})
	collectNames(root, seen)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Expr{src: src, root: root, names: names}, nil
}

// String returns the source text.
func (e *Expr) String() string { return e.src }

// Names returns the distinct identifiers referenced, sorted.
func (e *Expr) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Eval evaluates the expression. vars must be keyed by lower-case names.
func (e *Expr) Eval(vars map[string]float64) (float64, error) {
	v, err := e.root.eval(vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid("result is not finite")
	}
	return v, nil
}

// Evaluate parses and evaluates src against vars. Variable names are matched
// case-insensitively.
func Evaluate(src string, vars map[string]float64) (float64, error) {
	expr, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return expr.Eval(normalizeVars(vars))
}

// Validate checks that src is a usable quantity formula and returns the names it
// references. When allowed is non-nil every referenced name must appear in it.
// The formula is smoke-evaluated with every variable set to 1 and must yield a
// finite value greater than zero.
func Validate(src string, allowed []string) ([]string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, invalid("empty expression")
	}
	if len(src) > MaxLength {
		return nil, invalid("expression longer than %d characters", MaxLength)
	}
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if allowed != nil {
		permitted := make(map[string]struct{}, len(allowed))
		for _, name := range allowed {
			permitted[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
		}
		for _, name := range expr.names {
			if _, ok := permitted[name]; !ok {
				return nil, fmt.Errorf("%w: variable %q is not allowed", shared.ErrInvalidFormula, name)
			}
		}
	}
	smoke := make(map[string]float64, len(expr.names))
	for _, name := range expr.names {
		smoke[name] = 1
	}
	v, err := expr.Eval(smoke)
	if err != nil {
		return nil, err
	}
	if v <= 0 {
		return nil, invalid("formula must yield a positive quantity")
	}
	return expr.Names(), nil
}

func normalizeVars(vars map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(vars))
	for k, v := range vars {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", shared.ErrInvalidFormula, fmt.Sprintf(format, args...))
}

func collectNames(n node, seen map[string]struct{}) {
	switch v := n.(type) {
	case identNode:
		seen[string(v)] = struct{}{}
	case unaryNode:
		collectNames(v.operand, seen)
	case binaryNode:
		collectNames(v.left, seen)
		collectNames(v.right, seen)
	}
}
