package sqlparser

import (
	stderrors "errors"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer/stateful"

	"github.com/sprouterdb/sprouter/errors"
)

var (
	// The Number rule deliberately has no leading sign so that '-' always
	// lexes as Punct and binary minus parses; negative literals come from
	// the unary minus rule in Factor.
	lex = stateful.MustSimple([]stateful.Rule{
		{`Ident`, "((?i)[a-zA-Z_][a-zA-Z_0-9]*)|`[^`]*`", nil},
		{`Number`, `\d*\.?\d+([eE][-+]?\d+)?`, nil},
		{`String`, `'[^']*'|"[^"]*"`, nil},
		{`Punct`, `<>|!=|<=|>=|[-+*/%,.()=<>;]`, nil},
		{`Whitespace`, `\s+`, nil},
	})
	parser = participle.MustBuild(&AST{},
		participle.Lexer(lex),
		participle.CaseInsensitive("Ident"),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
		participle.Unquote("String"),
	)
	exprParser = participle.MustBuild(&Expression{},
		participle.Lexer(lex),
		participle.CaseInsensitive("Ident"),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
		participle.Unquote("String"),
	)
)

// Parse an SQL statement.
func Parse(sql string) (*AST, error) {
	ast := &AST{}
	if err := parser.ParseString("", sql, ast); err != nil {
		return nil, translateError(err)
	}
	return ast, nil
}

// ParseExpression parses a standalone expression and folds it into the
// expression AST.
func ParseExpression(input string) (Expr, error) {
	exp := &Expression{}
	if err := exprParser.ParseString("", input, exp); err != nil {
		return nil, translateError(err)
	}
	return exp.Fold()
}

// translateError converts participle's positioned errors into user facing
// parse errors carrying the source position and the expectation message.
func translateError(err error) error {
	var perr participle.Error
	if stderrors.As(err, &perr) {
		return errors.NewParseError(perr.Position(), perr.Message())
	}
	return errors.MaybeAddStack(err)
}
