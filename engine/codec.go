package engine

import (
	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/errors"
)

// Row values are stored as a one byte status header followed by one entry per
// column. Each entry is a null flag byte, then for non null columns the value
// in the fixed little endian layout for its type. Deletes write a bare
// tombstone header under the same key, later scans skip it.
const (
	rowStatusLive      = 0
	rowStatusTombstone = 1
)

var tombstoneRow = []byte{rowStatusTombstone}

func encodeRow(buffer []byte, colTypes []common.ColumnType, row []Value) ([]byte, error) {
	if len(row) != len(colTypes) {
		return nil, errors.NewInternalError("row arity does not match column types")
	}
	buffer = append(buffer, rowStatusLive)
	for i, v := range row {
		if v.IsNull() {
			buffer = append(buffer, 0)
			continue
		}
		buffer = append(buffer, 1)
		switch colTypes[i].Type {
		case common.TypeTinyInt, common.TypeInt, common.TypeBigInt:
			buffer = common.AppendUint64ToBufferLE(buffer, uint64(v.Int))
		case common.TypeDouble:
			buffer = common.AppendFloat64ToBufferLE(buffer, v.Float)
		case common.TypeVarchar:
			buffer = common.AppendStringToBufferLE(buffer, v.Str)
		default:
			return nil, errors.NewInternalError("unknown column type in row encode")
		}
	}
	return buffer, nil
}

func decodeRow(buffer []byte, colTypes []common.ColumnType) ([]Value, error) {
	if len(buffer) == 0 {
		return nil, errors.NewSprouterErrorf(errors.CorruptPage, "Empty row value")
	}
	if buffer[0] == rowStatusTombstone {
		return nil, nil
	}
	row := make([]Value, len(colTypes))
	offset := 1
	for i, ct := range colTypes {
		if offset >= len(buffer) {
			return nil, errors.NewSprouterErrorf(errors.CorruptPage, "Truncated row value")
		}
		isNull := buffer[offset] == 0
		offset++
		if isNull {
			row[i] = Null
			continue
		}
		switch ct.Type {
		case common.TypeTinyInt, common.TypeInt, common.TypeBigInt:
			var u uint64
			u, offset = common.ReadUint64FromBufferLE(buffer, offset)
			row[i] = IntValue(int64(u))
		case common.TypeDouble:
			var f float64
			f, offset = common.ReadFloat64FromBufferLE(buffer, offset)
			row[i] = FloatValue(f)
		case common.TypeVarchar:
			var s string
			s, offset = common.ReadStringFromBufferLE(buffer, offset)
			row[i] = StringValue(s)
		default:
			return nil, errors.NewInternalError("unknown column type in row decode")
		}
	}
	return row, nil
}

// encodeTableKey builds the storage key for a row: the table id big endian so
// rows of a table are contiguous, then the primary key columns in the
// memcomparable encoding for their types.
func encodeTableKey(tableID uint32, info *TableInfo, row []Value) ([]byte, error) {
	key := common.AppendUint32ToBufferBE(nil, tableID)
	for _, colIdx := range info.PrimaryKeyCols {
		v := row[colIdx]
		if v.IsNull() {
			return nil, errors.NewSprouterErrorf(errors.MissingPrimaryKey,
				"Primary key column %s cannot be null", info.ColumnNames[colIdx])
		}
		switch info.ColumnTypes[colIdx].Type {
		case common.TypeTinyInt, common.TypeInt, common.TypeBigInt:
			key = common.KeyEncodeInt64(key, v.Int)
		case common.TypeDouble:
			key = common.KeyEncodeFloat64(key, v.Float)
		case common.TypeVarchar:
			key = common.KeyEncodeString(key, v.Str)
		default:
			return nil, errors.NewInternalError("unknown primary key column type")
		}
	}
	return key, nil
}
