// Package sqlparser contains the SQL statement and expression parser.
//
//nolint:govet
package sqlparser

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/sprouterdb/sprouter/common"
)

// A Ref to a table or column, optionally qualified.
type Ref struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Path []string `@Ident ("." @Ident)*`
}

func (r *Ref) String() string {
	return strings.Join(r.Path, ".")
}

// NumberValue is a numeric literal token. The raw text is kept so the folded
// AST can carry both the parsed value and the exact token span.
type NumberValue struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Value string `@Number`
}

// Call is a function invocation, e.g. abs(x).
type Call struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Name string        `@Ident`
	Args []*Expression `"(" (@@ ("," @@)*)? ")"`
}

// Factor is the atom level of the expression grammar: a parenthesized
// sub-expression, a literal, a column reference or a function call.
// Parentheses only affect grouping and produce no node of their own.
type Factor struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Number *NumberValue `  @@`
	String *string      `| @String`
	Func   *Call        `| @@`
	Column *Ref         `| @@`
	Sub    *Expression  `| "(" @@ ")"`
	Minus  *Factor      `| "-" @@`
}

// OpFactor is one '*', '/' or '%' step in a Term. Repetition here is what
// makes the multiplicative level left-associative.
type OpFactor struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Op     string  `@("*" | "/" | "%")`
	Factor *Factor `@@`
}

// Term is the multiplicative level of the expression grammar.
type Term struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Left *Factor     `@@`
	Rest []*OpFactor `( @@ )*`
}

// OpTerm is one '+' or '-' step in an Operand.
type OpTerm struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Op   string `@("+" | "-")`
	Term *Term  `@@`
}

// Operand is the additive level of the expression grammar.
type Operand struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Left *Term     `@@`
	Rest []*OpTerm `( @@ )*`
}

type Compare struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Operator string   `@("<>" | "<=" | ">=" | "=" | "<" | ">" | "!=")`
	Operand  *Operand `@@`
}

type ConditionOperand struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Operand *Operand `@@`
	Compare *Compare `( @@ )?`
}

type Condition struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Not     *Condition        `  "NOT" @@`
	Operand *ConditionOperand `| @@`
}

type OrCondition struct {
	Pos    lexer.Position
	EndPos lexer.Position

	And []*Condition `@@ ("AND" @@)*`
}

// Expression is the grammar root for expressions, spanning from OR conditions
// down to integer literals.
type Expression struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Or []*OrCondition `@@ ("OR" @@)*`
}

// SelectStmt is SELECT exprs [FROM table [WHERE cond]]. FROM is optional so
// bare expressions, e.g. SELECT 1 + 2, can be evaluated without a table.
type SelectStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Star  bool          `( @"*"`
	Exprs []*Expression `| @@ ("," @@)* )`
	From  string        `("FROM" @Ident)?`
	Where *Expression   `("WHERE" @@)?`
}

type ValueTuple struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Exprs []*Expression `"(" @@ ("," @@)* ")"`
}

type InsertStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Table   string        `"INTO" @Ident`
	Columns []string      `("(" @Ident ("," @Ident)* ")")?`
	Rows    []*ValueTuple `"VALUES" @@ ("," @@)*`
}

type Assignment struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Column string      `@Ident "="`
	Value  *Expression `@@`
}

type UpdateStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Table       string        `@Ident`
	Assignments []*Assignment `"SET" @@ ("," @@)*`
	Where       *Expression   `("WHERE" @@)?`
}

type DeleteStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Table string      `"FROM" @Ident`
	Where *Expression `("WHERE" @@)?`
}

type ColumnDef struct {
	Pos lexer.Position

	Name string      `@Ident`
	Type common.Type `@("VARCHAR"|"TINYINT"|"INT"|"BIGINT"|"DOUBLE")` // Conversion done by common.Type.Capture()
}

func (c *ColumnDef) ToColumnType() (common.ColumnType, error) {
	ct, ok := common.ColumnTypesByType[c.Type]
	if !ok {
		return common.ColumnType{}, participle.Errorf(c.Pos, "unknown column type")
	}
	return ct, nil
}

type TableOption struct {
	PrimaryKey []string   `  "PRIMARY" "KEY" "(" @Ident ( "," @Ident )* ")"`
	Column     *ColumnDef `| @@`
}

type CreateTableStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Name    string         `"TABLE" @Ident`
	Options []*TableOption `"(" @@ ("," @@)* ")"`
}

// AST root.
type AST struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Select *SelectStmt      `( "SELECT" @@`
	Insert *InsertStmt      `| "INSERT" @@`
	Update *UpdateStmt      `| "UPDATE" @@`
	Delete *DeleteStmt      `| "DELETE" @@`
	Create *CreateTableStmt `| "CREATE" @@ ) ";"?`
}
