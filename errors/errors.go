package errors

import (
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
	gerrors "github.com/pkg/errors"
)

type ErrorCode int

const (
	InternalError = iota
	InvalidStatement
	InvalidConfiguration
	ParseError

	UnknownTable
	UnknownColumn
	TableAlreadyExists
	WrongNumberValues
	MissingPrimaryKey

	ValueOutOfRange
	DivisionByZero
	InvalidOperandTypes
	UnknownFunction

	PageFull
	ItemTooBig
	ChecksumMismatch
	UnknownPage
	CorruptPage
)

func NewInternalError(msg string) SprouterError {
	return NewSprouterErrorf(InternalError, "Internal error: %s - please consult server logs for details", msg)
}

func NewInvalidStatementError(msg string) SprouterError {
	return NewSprouterErrorf(InvalidStatement, msg)
}

func NewInvalidConfigurationError(msg string) SprouterError {
	return NewSprouterErrorf(InvalidConfiguration, "Invalid configuration: %s", msg)
}

// NewParseError creates a user facing parse failure carrying the source
// position of the offending token and what the parser expected instead.
func NewParseError(pos lexer.Position, msg string) SprouterError {
	return NewSprouterErrorf(ParseError, "Parse error at line %d column %d: %s", pos.Line, pos.Column, msg)
}

func NewUnknownTableError(tableName string) SprouterError {
	return NewSprouterErrorf(UnknownTable, "Unknown table %s", tableName)
}

func NewUnknownColumnError(columnName string, tableName string) SprouterError {
	return NewSprouterErrorf(UnknownColumn, "Unknown column %s in table %s", columnName, tableName)
}

func NewTableAlreadyExistsError(tableName string) SprouterError {
	return NewSprouterErrorf(TableAlreadyExists, "Table %s already exists", tableName)
}

func NewWrongNumberValuesError(expected int, actual int) SprouterError {
	return NewSprouterErrorf(WrongNumberValues, "Expected %d values but got %d", expected, actual)
}

func NewDivisionByZeroError(pos lexer.Position) SprouterError {
	return NewSprouterErrorf(DivisionByZero, "Division by zero at line %d column %d", pos.Line, pos.Column)
}

func NewUnknownFunctionError(name string) SprouterError {
	return NewSprouterErrorf(UnknownFunction, "Unknown function %s", name)
}

func NewSprouterErrorf(errorCode ErrorCode, msgFormat string, args ...interface{}) SprouterError {
	msg := fmt.Sprintf(fmt.Sprintf("SPR%04d - %s", errorCode, msgFormat), args...)
	return SprouterError{Code: errorCode, Msg: msg}
}

func NewSprouterError(errorCode ErrorCode, msg string) SprouterError {
	return SprouterError{Code: errorCode, Msg: msg}
}

// SprouterError is any kind of error that is exposed to the user via external
// interfaces like the CLI
type SprouterError struct {
	Code ErrorCode
	Msg  string
}

func (u SprouterError) Error() string {
	return u.Msg
}

// MaybeAddStack wraps a non user facing error with a stack trace. User facing
// errors pass through unchanged.
func MaybeAddStack(err error) error {
	_, ok := err.(SprouterError)
	if !ok {
		return gerrors.WithStack(err)
	}
	return err
}
