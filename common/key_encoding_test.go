package common

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyEncodeInt64(t *testing.T) {
	vals := []int64{
		math.MinInt64,
		math.MinInt64 + 1,
		math.MinInt64 + 1000,
		-1000,
		-1,
		0,
		1,
		1000,
		math.MaxInt64 - 1000,
		math.MaxInt64 - 1,
		math.MaxInt64,
	}
	for i := 0; i < len(vals)-1; i++ {
		checkLessThan(t, KeyEncodeInt64(nil, vals[i]), KeyEncodeInt64(nil, vals[i+1]))
	}
}

func TestKeyEncodeDecodeInt64(t *testing.T) {
	vals := []int64{math.MinInt64, -1000, -1, 0, 1, 1000, math.MaxInt64}
	for _, val := range vals {
		buff := KeyEncodeInt64(nil, val)
		decoded, offset := KeyDecodeInt64(buff, 0)
		require.Equal(t, val, decoded)
		require.Equal(t, 8, offset)
	}
}

func TestKeyEncodeFloat64(t *testing.T) {
	vals := []float64{
		-math.MaxFloat64,
		-1.234e10,
		-1e3,
		-1.1,
		-1.0,
		-0.5,
		0.0,
		0.5,
		1.0,
		1.1,
		1e3,
		1.234e10,
		math.MaxFloat64,
	}
	for i := 0; i < len(vals)-1; i++ {
		checkLessThan(t, KeyEncodeFloat64(nil, vals[i]), KeyEncodeFloat64(nil, vals[i+1]))
	}
}

func TestKeyEncodeString(t *testing.T) {
	// Same length strings compare lexicographically.
	vals := []string{"aardvark", "antelope", "hedgehog", "pangolin", "tortoise"}
	for i := 0; i < len(vals)-1; i++ {
		checkLessThan(t, KeyEncodeString(nil, vals[i]), KeyEncodeString(nil, vals[i+1]))
	}
}

func checkLessThan(t *testing.T, b1 []byte, b2 []byte) {
	t.Helper()
	require.Equal(t, -1, bytes.Compare(b1, b2))
}
