package common

import (
	"encoding/binary"
	"math"
)

var littleEndian = binary.LittleEndian
var bigEndian = binary.BigEndian

func AppendUint16ToBufferBE(buffer []byte, v uint16) []byte {
	return append(buffer, byte(v>>8), byte(v))
}

func AppendUint16ToBufferLE(buffer []byte, v uint16) []byte {
	return append(buffer, byte(v), byte(v>>8))
}

func AppendUint32ToBufferLE(buffer []byte, v uint32) []byte {
	return append(buffer, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func AppendUint32ToBufferBE(buffer []byte, v uint32) []byte {
	return append(buffer, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func AppendUint64ToBufferLE(buffer []byte, v uint64) []byte {
	return append(buffer, byte(v), byte(v>>8), byte(v>>16), byte(v>>24), byte(v>>32),
		byte(v>>40), byte(v>>48), byte(v>>56))
}

func AppendUint64ToBufferBE(buffer []byte, v uint64) []byte {
	return append(buffer, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func AppendFloat64ToBufferLE(buffer []byte, value float64) []byte {
	u := math.Float64bits(value)
	return AppendUint64ToBufferLE(buffer, u)
}

func AppendStringToBufferLE(buffer []byte, value string) []byte {
	buffer = AppendUint32ToBufferLE(buffer, uint32(len(value)))
	return append(buffer, value...)
}

func ReadUint16FromBufferBE(buffer []byte, offset int) (uint16, int) {
	return bigEndian.Uint16(buffer[offset:]), offset + 2
}

func ReadUint16FromBufferLE(buffer []byte, offset int) (uint16, int) {
	return littleEndian.Uint16(buffer[offset:]), offset + 2
}

func ReadUint32FromBufferBE(buffer []byte, offset int) (uint32, int) {
	return bigEndian.Uint32(buffer[offset:]), offset + 4
}

func ReadUint32FromBufferLE(buffer []byte, offset int) (uint32, int) {
	return littleEndian.Uint32(buffer[offset:]), offset + 4
}

func ReadUint64FromBufferBE(buffer []byte, offset int) (uint64, int) {
	return bigEndian.Uint64(buffer[offset:]), offset + 8
}

func ReadUint64FromBufferLE(buffer []byte, offset int) (uint64, int) {
	return littleEndian.Uint64(buffer[offset:]), offset + 8
}

func ReadFloat64FromBufferLE(buffer []byte, offset int) (float64, int) {
	u, offset := ReadUint64FromBufferLE(buffer, offset)
	return math.Float64frombits(u), offset
}

func ReadStringFromBufferLE(buffer []byte, offset int) (string, int) {
	l, offset := ReadUint32FromBufferLE(buffer, offset)
	s := string(buffer[offset : offset+int(l)])
	return s, offset + int(l)
}
