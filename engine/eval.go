package engine

import (
	"math"
	"strings"

	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/sqlparser"
)

// evalContext supplies column values during evaluation. table and row are nil
// when evaluating a bare expression, e.g. SELECT 1 + 2, in which case any
// column reference is an error.
type evalContext struct {
	table *TableInfo
	row   []Value
}

func evaluate(expr sqlparser.Expr, ctx *evalContext) (Value, error) {
	switch e := expr.(type) {
	case *sqlparser.NumberLit:
		if e.IsFloat {
			return FloatValue(e.Float), nil
		}
		return IntValue(e.Int), nil
	case *sqlparser.StringLit:
		return StringValue(e.Value), nil
	case *sqlparser.ColumnRef:
		return evaluateColumnRef(e, ctx)
	case *sqlparser.Negate:
		return evaluateNegate(e, ctx)
	case *sqlparser.Mul:
		return evaluateArith(e.Op, e.Left, e.Right, e.ExprSpan(), ctx)
	case *sqlparser.Add:
		return evaluateArith(e.Op, e.Left, e.Right, e.ExprSpan(), ctx)
	case *sqlparser.CompareExpr:
		return evaluateCompare(e, ctx)
	case *sqlparser.And:
		left, err := evaluate(e.Left, ctx)
		if err != nil {
			return Null, err
		}
		if !left.IsTrue() {
			return BoolValue(false), nil
		}
		right, err := evaluate(e.Right, ctx)
		if err != nil {
			return Null, err
		}
		return BoolValue(right.IsTrue()), nil
	case *sqlparser.Or:
		left, err := evaluate(e.Left, ctx)
		if err != nil {
			return Null, err
		}
		if left.IsTrue() {
			return BoolValue(true), nil
		}
		right, err := evaluate(e.Right, ctx)
		if err != nil {
			return Null, err
		}
		return BoolValue(right.IsTrue()), nil
	case *sqlparser.Not:
		inner, err := evaluate(e.Expr, ctx)
		if err != nil {
			return Null, err
		}
		return BoolValue(!inner.IsTrue()), nil
	case *sqlparser.FuncCall:
		return evaluateFunc(e, ctx)
	}
	return Null, errors.NewInternalError("unknown expression node")
}

func evaluateColumnRef(ref *sqlparser.ColumnRef, ctx *evalContext) (Value, error) {
	if ctx == nil || ctx.table == nil {
		return Null, errors.NewInvalidStatementError("Column " + ref.String() + " cannot be used without a FROM clause")
	}
	name := ref.Path[len(ref.Path)-1]
	if len(ref.Path) == 2 && !strings.EqualFold(ref.Path[0], ctx.table.Name) {
		return Null, errors.NewUnknownTableError(ref.Path[0])
	}
	idx := ctx.table.columnIndex(name)
	if idx == -1 {
		return Null, errors.NewUnknownColumnError(name, ctx.table.Name)
	}
	return ctx.row[idx], nil
}

func evaluateNegate(neg *sqlparser.Negate, ctx *evalContext) (Value, error) {
	inner, err := evaluate(neg.Expr, ctx)
	if err != nil {
		return Null, err
	}
	switch inner.Kind {
	case KindNull:
		return Null, nil
	case KindInt:
		return IntValue(-inner.Int), nil
	case KindFloat:
		return FloatValue(-inner.Float), nil
	}
	return Null, errors.NewSprouterErrorf(errors.InvalidOperandTypes, "Cannot negate a string")
}

// evaluateArith applies a binary arithmetic operator. Integer operands stay
// integers, mixing an integer with a double promotes to double. '+' also
// concatenates two strings.
func evaluateArith(op string, leftExpr, rightExpr sqlparser.Expr, span sqlparser.Span, ctx *evalContext) (Value, error) {
	left, err := evaluate(leftExpr, ctx)
	if err != nil {
		return Null, err
	}
	right, err := evaluate(rightExpr, ctx)
	if err != nil {
		return Null, err
	}
	if left.IsNull() || right.IsNull() {
		return Null, nil
	}
	if left.Kind == KindString || right.Kind == KindString {
		if op == "+" && left.Kind == KindString && right.Kind == KindString {
			return StringValue(left.Str + right.Str), nil
		}
		return Null, errors.NewSprouterErrorf(errors.InvalidOperandTypes,
			"Invalid operands for %s at %s", op, span)
	}
	if left.Kind == KindFloat || right.Kind == KindFloat {
		lf, rf := left.AsFloat(), right.AsFloat()
		switch op {
		case "+":
			return FloatValue(lf + rf), nil
		case "-":
			return FloatValue(lf - rf), nil
		case "*":
			return FloatValue(lf * rf), nil
		case "/":
			if rf == 0 {
				return Null, errors.NewDivisionByZeroError(span.Start)
			}
			return FloatValue(lf / rf), nil
		case "%":
			if rf == 0 {
				return Null, errors.NewDivisionByZeroError(span.Start)
			}
			return FloatValue(math.Mod(lf, rf)), nil
		}
	}
	switch op {
	case "+":
		return IntValue(left.Int + right.Int), nil
	case "-":
		return IntValue(left.Int - right.Int), nil
	case "*":
		return IntValue(left.Int * right.Int), nil
	case "/":
		if right.Int == 0 {
			return Null, errors.NewDivisionByZeroError(span.Start)
		}
		return IntValue(left.Int / right.Int), nil
	case "%":
		if right.Int == 0 {
			return Null, errors.NewDivisionByZeroError(span.Start)
		}
		return IntValue(left.Int % right.Int), nil
	}
	return Null, errors.NewInternalError("unknown arithmetic operator " + op)
}

func evaluateCompare(cmp *sqlparser.CompareExpr, ctx *evalContext) (Value, error) {
	left, err := evaluate(cmp.Left, ctx)
	if err != nil {
		return Null, err
	}
	right, err := evaluate(cmp.Right, ctx)
	if err != nil {
		return Null, err
	}
	if left.IsNull() || right.IsNull() {
		return Null, nil
	}
	c, err := compareValues(left, right)
	if err != nil {
		return Null, err
	}
	switch cmp.Op {
	case "=":
		return BoolValue(c == 0), nil
	case "<>", "!=":
		return BoolValue(c != 0), nil
	case "<":
		return BoolValue(c < 0), nil
	case "<=":
		return BoolValue(c <= 0), nil
	case ">":
		return BoolValue(c > 0), nil
	case ">=":
		return BoolValue(c >= 0), nil
	}
	return Null, errors.NewInternalError("unknown comparison operator " + cmp.Op)
}

func evaluateFunc(call *sqlparser.FuncCall, ctx *evalContext) (Value, error) {
	args := make([]Value, len(call.Args))
	for i, argExpr := range call.Args {
		arg, err := evaluate(argExpr, ctx)
		if err != nil {
			return Null, err
		}
		args[i] = arg
	}
	switch call.Name {
	case "abs":
		if err := checkArity(call, 1, args); err != nil {
			return Null, err
		}
		switch args[0].Kind {
		case KindNull:
			return Null, nil
		case KindInt:
			if args[0].Int < 0 {
				return IntValue(-args[0].Int), nil
			}
			return args[0], nil
		case KindFloat:
			return FloatValue(math.Abs(args[0].Float)), nil
		}
		return Null, errors.NewSprouterErrorf(errors.InvalidOperandTypes, "abs requires a numeric argument")
	case "length":
		if err := checkArity(call, 1, args); err != nil {
			return Null, err
		}
		if args[0].IsNull() {
			return Null, nil
		}
		if args[0].Kind != KindString {
			return Null, errors.NewSprouterErrorf(errors.InvalidOperandTypes, "length requires a string argument")
		}
		return IntValue(int64(len(args[0].Str))), nil
	case "upper", "lower":
		if err := checkArity(call, 1, args); err != nil {
			return Null, err
		}
		if args[0].IsNull() {
			return Null, nil
		}
		if args[0].Kind != KindString {
			return Null, errors.NewSprouterErrorf(errors.InvalidOperandTypes, "%s requires a string argument", call.Name)
		}
		if call.Name == "upper" {
			return StringValue(strings.ToUpper(args[0].Str)), nil
		}
		return StringValue(strings.ToLower(args[0].Str)), nil
	}
	return Null, errors.NewUnknownFunctionError(call.Name)
}

func checkArity(call *sqlparser.FuncCall, expected int, args []Value) error {
	if len(args) != expected {
		return errors.NewSprouterErrorf(errors.InvalidStatement,
			"Function %s takes %d argument(s) but got %d", call.Name, expected, len(args))
	}
	return nil
}
