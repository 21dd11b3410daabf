package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorFixedWidthRoundTrip(t *testing.T) {
	v := NewVector(Int64(), 8)
	v.SetInt64(0, 42)
	v.SetInt64(1, -7)
	v.SetNull(2)

	require.Equal(t, int64(42), v.GetInt64(0))
	require.Equal(t, int64(-7), v.GetInt64(1))
	require.True(t, v.IsNull(2))
	require.False(t, v.IsNull(0))
}

func TestVectorStringInlineAndOverflow(t *testing.T) {
	v := NewVector(Str(), 4)
	v.SetString(0, "short")
	long := "this string is definitely longer than the inline prefix length"
	v.SetString(1, long)

	require.Equal(t, "short", v.GetString(0))
	require.Equal(t, long, v.GetString(1))
}

func TestVectorListEntries(t *testing.T) {
	v := NewVector(ListOf(Int32()), 2)
	child := v.Children[0]
	child.SetInt32(0, 1)
	child.SetInt32(1, 2)
	child.SetInt32(2, 3)
	v.SetListEntry(0, 0, 3)

	off, size := v.ListEntry(0)
	require.EqualValues(t, 0, off)
	require.EqualValues(t, 3, size)
}

func TestSelectionVectorFilter(t *testing.T) {
	sel := NewSequentialSelection(5)
	keep := []bool{true, false, true, false, true}
	out := sel.Filter(keep)
	require.Equal(t, 3, out.Count)
	require.EqualValues(t, []uint32{0, 2, 4}, out.Positions)
}

func TestInt128RoundTrip(t *testing.T) {
	v := NewVector(Int128(), 2)
	big := Int128FromInt64(-123456789)
	v.SetInt128(0, big)
	require.Equal(t, 0, big.Cmp(v.GetInt128(0)))
}

func TestIntervalRoundTrip(t *testing.T) {
	v := NewVector(Interval(), 2)
	iv := IntervalValue{Months: 3, Days: 10, Micros: 5000}
	v.SetInterval(0, iv)
	require.Equal(t, iv, v.GetInterval(0))
}
