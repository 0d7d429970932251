package sqlparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sprouterdb/sprouter/errors"
)

// Span is the half-open source range [Start, End) covered by a token or AST
// node. Every node's span covers the spans of all its children.
type Span struct {
	Start lexer.Position
	End   lexer.Position
}

func NewSpan(start, end lexer.Position) Span {
	return Span{Start: start, End: end}
}

// Covers reports whether s fully contains other.
func (s Span) Covers(other Span) bool {
	return s.Start.Offset <= other.Start.Offset && s.End.Offset >= other.End.Offset
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Expr is an expression AST node produced by folding the parse tree. Binary
// nodes own their children; the result is a tree, never a graph.
type Expr interface {
	ExprSpan() Span
}

// NumberLit is a numeric literal, carrying both the parsed value and the span
// of the literal token.
type NumberLit struct {
	Span    Span
	IsFloat bool
	Int     int64
	Float   float64
}

func (n *NumberLit) ExprSpan() Span { return n.Span }

type StringLit struct {
	Span  Span
	Value string
}

func (s *StringLit) ExprSpan() Span { return s.Span }

type ColumnRef struct {
	Span Span
	Path []string
}

func (c *ColumnRef) ExprSpan() Span { return c.Span }

func (c *ColumnRef) String() string { return strings.Join(c.Path, ".") }

type FuncCall struct {
	Span Span
	Name string
	Args []Expr
}

func (f *FuncCall) ExprSpan() Span { return f.Span }

// Negate is unary minus.
type Negate struct {
	Span Span
	Expr Expr
}

func (n *Negate) ExprSpan() Span { return n.Span }

// Mul is a multiplicative binary operation: '*', '/' or '%'.
type Mul struct {
	Span  Span
	Op    string
	Left  Expr
	Right Expr
}

func (m *Mul) ExprSpan() Span { return m.Span }

// Add is an additive binary operation: '+' or '-'.
type Add struct {
	Span  Span
	Op    string
	Left  Expr
	Right Expr
}

func (a *Add) ExprSpan() Span { return a.Span }

type CompareExpr struct {
	Span  Span
	Op    string
	Left  Expr
	Right Expr
}

func (c *CompareExpr) ExprSpan() Span { return c.Span }

type And struct {
	Span  Span
	Left  Expr
	Right Expr
}

func (a *And) ExprSpan() Span { return a.Span }

type Or struct {
	Span  Span
	Left  Expr
	Right Expr
}

func (o *Or) ExprSpan() Span { return o.Span }

type Not struct {
	Span Span
	Expr Expr
}

func (n *Not) ExprSpan() Span { return n.Span }

// Fold collapses the parse tree into the expression AST, left-folding
// repetition so that chained operators associate left.
func (e *Expression) Fold() (Expr, error) {
	acc, err := e.Or[0].fold()
	if err != nil {
		return nil, err
	}
	for _, or := range e.Or[1:] {
		right, err := or.fold()
		if err != nil {
			return nil, err
		}
		acc = &Or{Span: NewSpan(acc.ExprSpan().Start, right.ExprSpan().End), Left: acc, Right: right}
	}
	return acc, nil
}

func (o *OrCondition) fold() (Expr, error) {
	acc, err := o.And[0].fold()
	if err != nil {
		return nil, err
	}
	for _, cond := range o.And[1:] {
		right, err := cond.fold()
		if err != nil {
			return nil, err
		}
		acc = &And{Span: NewSpan(acc.ExprSpan().Start, right.ExprSpan().End), Left: acc, Right: right}
	}
	return acc, nil
}

func (c *Condition) fold() (Expr, error) {
	if c.Not != nil {
		inner, err := c.Not.fold()
		if err != nil {
			return nil, err
		}
		return &Not{Span: NewSpan(c.Pos, c.EndPos), Expr: inner}, nil
	}
	return c.Operand.fold()
}

func (c *ConditionOperand) fold() (Expr, error) {
	left, err := c.Operand.fold()
	if err != nil {
		return nil, err
	}
	if c.Compare == nil {
		return left, nil
	}
	right, err := c.Compare.Operand.fold()
	if err != nil {
		return nil, err
	}
	return &CompareExpr{
		Span:  NewSpan(left.ExprSpan().Start, right.ExprSpan().End),
		Op:    c.Compare.Operator,
		Left:  left,
		Right: right,
	}, nil
}

func (o *Operand) fold() (Expr, error) {
	acc, err := o.Left.fold()
	if err != nil {
		return nil, err
	}
	for _, op := range o.Rest {
		right, err := op.Term.fold()
		if err != nil {
			return nil, err
		}
		acc = &Add{
			Span:  NewSpan(acc.ExprSpan().Start, right.ExprSpan().End),
			Op:    op.Op,
			Left:  acc,
			Right: right,
		}
	}
	return acc, nil
}

func (t *Term) fold() (Expr, error) {
	acc, err := t.Left.fold()
	if err != nil {
		return nil, err
	}
	for _, op := range t.Rest {
		right, err := op.Factor.fold()
		if err != nil {
			return nil, err
		}
		acc = &Mul{
			Span:  NewSpan(acc.ExprSpan().Start, right.ExprSpan().End),
			Op:    op.Op,
			Left:  acc,
			Right: right,
		}
	}
	return acc, nil
}

func (f *Factor) fold() (Expr, error) {
	span := NewSpan(f.Pos, f.EndPos)
	switch {
	case f.Number != nil:
		return f.Number.fold()
	case f.String != nil:
		return &StringLit{Span: span, Value: *f.String}, nil
	case f.Func != nil:
		args := make([]Expr, len(f.Func.Args))
		for i, arg := range f.Func.Args {
			folded, err := arg.Fold()
			if err != nil {
				return nil, err
			}
			args[i] = folded
		}
		return &FuncCall{Span: span, Name: strings.ToLower(f.Func.Name), Args: args}, nil
	case f.Column != nil:
		return &ColumnRef{Span: span, Path: f.Column.Path}, nil
	case f.Sub != nil:
		// Parentheses group but do not appear in the AST.
		return f.Sub.Fold()
	case f.Minus != nil:
		inner, err := f.Minus.fold()
		if err != nil {
			return nil, err
		}
		return &Negate{Span: span, Expr: inner}, nil
	}
	return nil, errors.NewInternalError("empty factor in parse tree")
}

func (n *NumberValue) fold() (Expr, error) {
	span := NewSpan(n.Pos, n.EndPos)
	if strings.ContainsAny(n.Value, ".eE") {
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, errors.NewSprouterErrorf(errors.ValueOutOfRange, "invalid number literal %s at %s", n.Value, span)
		}
		return &NumberLit{Span: span, IsFloat: true, Float: f}, nil
	}
	i, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return nil, errors.NewSprouterErrorf(errors.ValueOutOfRange, "integer literal %s out of range at %s", n.Value, span)
	}
	return &NumberLit{Span: span, Int: i}, nil
}
