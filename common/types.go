package common

import (
	"strings"

	"github.com/pkg/errors"
)

type Type int

const (
	TypeUnknown Type = iota
	TypeTinyInt
	TypeInt
	TypeBigInt
	TypeDouble
	TypeVarchar
)

// Capture converts a column type keyword matched by the parser into a Type.
func (t *Type) Capture(tokens []string) error {
	text := strings.ToUpper(strings.Join(tokens, " "))
	switch text {
	case "TINYINT":
		*t = TypeTinyInt
	case "INT":
		*t = TypeInt
	case "BIGINT":
		*t = TypeBigInt
	case "DOUBLE":
		*t = TypeDouble
	case "VARCHAR":
		*t = TypeVarchar
	default:
		return errors.Errorf("unknown column type %s", text)
	}
	return nil
}

func (t Type) String() string {
	switch t {
	case TypeTinyInt:
		return "tinyint"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeDouble:
		return "double"
	case TypeVarchar:
		return "varchar"
	default:
		return "unknown"
	}
}

type ColumnType struct {
	Type Type `json:"type"`
}

var (
	TinyIntColumnType = ColumnType{Type: TypeTinyInt}
	IntColumnType     = ColumnType{Type: TypeInt}
	BigIntColumnType  = ColumnType{Type: TypeBigInt}
	DoubleColumnType  = ColumnType{Type: TypeDouble}
	VarcharColumnType = ColumnType{Type: TypeVarchar}
	UnknownColumnType = ColumnType{Type: TypeUnknown}

	// ColumnTypesByType allows lookup of ColumnType by Type.
	ColumnTypesByType = map[Type]ColumnType{
		TypeTinyInt: TinyIntColumnType,
		TypeInt:     IntColumnType,
		TypeBigInt:  BigIntColumnType,
		TypeDouble:  DoubleColumnType,
		TypeVarchar: VarcharColumnType,
	}
)
