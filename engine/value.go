package engine

import (
	"math"
	"strconv"

	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/errors"
)

type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindString
)

// Value is a single runtime value, either a column value read from storage or
// the result of evaluating an expression.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
}

var Null = Value{Kind: KindNull}

func IntValue(v int64) Value {
	return Value{Kind: KindInt, Int: v}
}

func FloatValue(v float64) Value {
	return Value{Kind: KindFloat, Float: v}
}

func StringValue(v string) Value {
	return Value{Kind: KindString, Str: v}
}

func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// AsFloat widens an integer value. Only valid for numeric kinds.
func (v Value) AsFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// IsTrue is SQL truthiness: null and zero are false, everything else true.
func (v Value) IsTrue() bool {
	switch v.Kind {
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindString:
		return v.Str != ""
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	default:
		return "null"
	}
}

// Compare orders two non-null values. Numeric kinds compare numerically with
// integer to float promotion, strings compare lexically. Comparing a string
// with a number is an error.
func compareValues(left, right Value) (int, error) {
	if left.Kind == KindString || right.Kind == KindString {
		if left.Kind != KindString || right.Kind != KindString {
			return 0, errors.NewSprouterErrorf(errors.InvalidOperandTypes, "Cannot compare string with number")
		}
		switch {
		case left.Str < right.Str:
			return -1, nil
		case left.Str > right.Str:
			return 1, nil
		}
		return 0, nil
	}
	if left.Kind == KindFloat || right.Kind == KindFloat {
		lf, rf := left.AsFloat(), right.AsFloat()
		switch {
		case lf < rf:
			return -1, nil
		case lf > rf:
			return 1, nil
		}
		return 0, nil
	}
	switch {
	case left.Int < right.Int:
		return -1, nil
	case left.Int > right.Int:
		return 1, nil
	}
	return 0, nil
}

// coerceToColumn converts an evaluated value to the storage type of a column.
// Integers widen to double, in-range integer kinds narrow with a range check,
// anything else is a type error.
func coerceToColumn(v Value, colName string, colType common.ColumnType) (Value, error) {
	if v.IsNull() {
		return Null, nil
	}
	switch colType.Type {
	case common.TypeTinyInt, common.TypeInt, common.TypeBigInt:
		if v.Kind != KindInt {
			return Null, errors.NewSprouterErrorf(errors.InvalidOperandTypes,
				"Cannot store %s value in %s column %s", kindName(v.Kind), colType.Type, colName)
		}
		if err := checkIntRange(v.Int, colName, colType.Type); err != nil {
			return Null, err
		}
		return v, nil
	case common.TypeDouble:
		if v.Kind == KindInt {
			return FloatValue(float64(v.Int)), nil
		}
		if v.Kind != KindFloat {
			return Null, errors.NewSprouterErrorf(errors.InvalidOperandTypes,
				"Cannot store %s value in double column %s", kindName(v.Kind), colName)
		}
		return v, nil
	case common.TypeVarchar:
		if v.Kind != KindString {
			return Null, errors.NewSprouterErrorf(errors.InvalidOperandTypes,
				"Cannot store %s value in varchar column %s", kindName(v.Kind), colName)
		}
		return v, nil
	}
	return Null, errors.NewInternalError("unknown column type")
}

func checkIntRange(v int64, colName string, t common.Type) error {
	var lo, hi int64
	switch t {
	case common.TypeTinyInt:
		lo, hi = math.MinInt8, math.MaxInt8
	case common.TypeInt:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return nil
	}
	if v < lo || v > hi {
		return errors.NewSprouterErrorf(errors.ValueOutOfRange,
			"Value %d out of range for %s column %s", v, t, colName)
	}
	return nil
}

func kindName(k ValueKind) string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "double"
	case KindString:
		return "string"
	default:
		return "null"
	}
}
