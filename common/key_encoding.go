package common

import (
	"math"
)

/*
Keys must be encoded in a way that keys are comparable with each other as byte
strings - without this the btree key ordering would not match SQL ordering.
We use an encoding scheme that is similar to how MySQL/RocksDB encodes keys
(memcomparable). Key values are stored in big-endian order.
*/

const SignBitMask uint64 = 1 << 63

func KeyEncodeInt64(buffer []byte, val int64) []byte {
	uVal := uint64(val) ^ SignBitMask
	return AppendUint64ToBufferBE(buffer, uVal)
}

func KeyDecodeInt64(buffer []byte, offset int) (int64, int) {
	uVal, offset := ReadUint64FromBufferBE(buffer, offset)
	return int64(uVal ^ SignBitMask), offset
}

func KeyEncodeFloat64(buffer []byte, val float64) []byte {
	uVal := math.Float64bits(val)
	if val >= 0 {
		uVal |= SignBitMask
	} else {
		uVal = ^uVal
	}
	return AppendUint64ToBufferBE(buffer, uVal)
}

func KeyEncodeString(buffer []byte, val string) []byte {
	buffer = AppendUint32ToBufferBE(buffer, uint32(len(val)))
	return append(buffer, val...)
}
