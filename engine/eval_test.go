package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/errors"
	"github.com/sprouterdb/sprouter/sqlparser"
)

func evalString(t *testing.T, input string, ctx *evalContext) (Value, error) {
	t.Helper()
	expr, err := sqlparser.ParseExpression(input)
	require.NoError(t, err)
	return evaluate(expr, ctx)
}

func TestEvaluateArithmetic(t *testing.T) {
	tests := []struct {
		input    string
		expected Value
	}{
		{"1 + 2", IntValue(3)},
		{"2 - 1", IntValue(1)},
		{"2 * 3 + 1", IntValue(7)},
		{"1 + 2 * 3", IntValue(7)},
		{"(1 + 2) * 3", IntValue(9)},
		{"10 / 3", IntValue(3)},
		{"10 % 3", IntValue(1)},
		{"100 - 10 - 5", IntValue(85)},
		{"-5 + 3", IntValue(-2)},
		{"- (2 * 3)", IntValue(-6)},
		{"1.5 * 2", FloatValue(3)},
		{"7 / 2.0", FloatValue(3.5)},
		{"1e2 + 1", FloatValue(101)},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			v, err := evalString(t, test.input, nil)
			require.NoError(t, err)
			require.Equal(t, test.expected, v)
		})
	}
}

func TestEvaluateComparisonsAndLogic(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 4", false},
		{"1 = 1", true},
		{"1 <> 1", false},
		{"1 != 2", true},
		{"1 < 2 AND 2 < 3", true},
		{"1 > 2 OR 2 < 3", true},
		{"NOT 1 > 2", true},
		{"'apple' < 'banana'", true},
		{"'a' = 'a'", true},
		{"1 + 1 = 2 AND 2 * 2 = 4", true},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			v, err := evalString(t, test.input, nil)
			require.NoError(t, err)
			require.Equal(t, BoolValue(test.expected), v)
		})
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	for _, input := range []string{"1 / 0", "1 % 0", "1.5 / 0", "1 / (2 - 2)"} {
		t.Run(input, func(t *testing.T) {
			_, err := evalString(t, input, nil)
			require.Error(t, err)
			serr, ok := err.(errors.SprouterError)
			require.True(t, ok)
			require.Equal(t, errors.ErrorCode(errors.DivisionByZero), serr.Code)
		})
	}
}

func TestEvaluateFunctions(t *testing.T) {
	tests := []struct {
		input    string
		expected Value
	}{
		{"abs(-3)", IntValue(3)},
		{"abs(3)", IntValue(3)},
		{"abs(-1.5)", FloatValue(1.5)},
		{"length('hello')", IntValue(5)},
		{"length('')", IntValue(0)},
		{"upper('abc')", StringValue("ABC")},
		{"lower('ABC')", StringValue("abc")},
		{"UPPER('abc')", StringValue("ABC")},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			v, err := evalString(t, test.input, nil)
			require.NoError(t, err)
			require.Equal(t, test.expected, v)
		})
	}
}

func TestEvaluateUnknownFunction(t *testing.T) {
	_, err := evalString(t, "frobnicate(1)", nil)
	require.Error(t, err)
	serr, ok := err.(errors.SprouterError)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCode(errors.UnknownFunction), serr.Code)
}

func TestEvaluateStringConcat(t *testing.T) {
	v, err := evalString(t, "'foo' + 'bar'", nil)
	require.NoError(t, err)
	require.Equal(t, StringValue("foobar"), v)

	_, err = evalString(t, "'foo' - 'bar'", nil)
	require.Error(t, err)

	_, err = evalString(t, "'foo' + 1", nil)
	require.Error(t, err)
}

func TestEvaluateColumnRefs(t *testing.T) {
	info := &TableInfo{
		Name:        "readings",
		ColumnNames: []string{"id", "temp", "label"},
		ColumnTypes: []common.ColumnType{common.BigIntColumnType, common.DoubleColumnType, common.VarcharColumnType},
	}
	ctx := &evalContext{table: info, row: []Value{IntValue(7), FloatValue(21.5), StringValue("Kitchen")}}

	v, err := evalString(t, "temp * 2", ctx)
	require.NoError(t, err)
	require.Equal(t, FloatValue(43), v)

	v, err = evalString(t, "readings.id + 1", ctx)
	require.NoError(t, err)
	require.Equal(t, IntValue(8), v)

	v, err = evalString(t, "lower(label)", ctx)
	require.NoError(t, err)
	require.Equal(t, StringValue("kitchen"), v)

	_, err = evalString(t, "nosuch + 1", ctx)
	require.Error(t, err)
	serr, ok := err.(errors.SprouterError)
	require.True(t, ok)
	require.Equal(t, errors.ErrorCode(errors.UnknownColumn), serr.Code)

	_, err = evalString(t, "othertable.id", ctx)
	require.Error(t, err)
}

func TestEvaluateColumnRefWithoutTable(t *testing.T) {
	_, err := evalString(t, "temp + 1", nil)
	require.Error(t, err)
}

func TestEvaluateNullPropagation(t *testing.T) {
	info := &TableInfo{
		Name:        "t",
		ColumnNames: []string{"a"},
		ColumnTypes: []common.ColumnType{common.BigIntColumnType},
	}
	ctx := &evalContext{table: info, row: []Value{Null}}

	v, err := evalString(t, "a + 1", ctx)
	require.NoError(t, err)
	require.True(t, v.IsNull())

	v, err = evalString(t, "a = 1", ctx)
	require.NoError(t, err)
	require.True(t, v.IsNull())

	// Null is not true, so it filters a row out.
	require.False(t, v.IsTrue())
}
