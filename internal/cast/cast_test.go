package cast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

func TestScalarRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	cases := []struct {
		typ  types.LogicalType
		text string
	}{
		{types.Bool(), "true"},
		{types.Int32(), "-42"},
		{types.UInt64(), "18446744073709551615"},
		{types.Int128(), "-170141183460469231731687303715884105"},
		{types.Double(), "3.5"},
		{types.Date(), "2024-01-15"},
		{types.Str(), "hello world"},
		{types.Blob(), "abc\\xFF"},
		{types.Decimal(10, 2), "123.40"},
	}
	for _, c := range cases {
		vec := types.NewVector(c.typ, 1)
		err := CopyStringToVector(vec, 0, c.text, opts)
		require.NoError(t, err, "cast of %q to %s", c.text, c.typ)
		require.False(t, vec.IsNull(0))

		printed := FormatValue(vec, 0, opts)
		vec2 := types.NewVector(c.typ, 1)
		err = CopyStringToVector(vec2, 0, printed, opts)
		require.NoError(t, err, "re-cast of printed %q", printed)
		require.Equal(t, FormatValue(vec, 0, opts), FormatValue(vec2, 0, opts))
	}
}

func TestNullToken(t *testing.T) {
	vec := types.NewVector(types.Int32(), 1)
	require.NoError(t, CopyStringToVector(vec, 0, "NULL", DefaultOptions()))
	require.True(t, vec.IsNull(0))
	require.NoError(t, CopyStringToVector(vec, 0, "null", DefaultOptions()))
	require.True(t, vec.IsNull(0))
}

func TestCastScalarFailureIsConversionError(t *testing.T) {
	vec := types.NewVector(types.Int32(), 1)
	err := CopyStringToVector(vec, 0, "not-a-number", DefaultOptions())
	require.Error(t, err)
	require.Equal(t, cyqerr.KindConversion, cyqerr.KindOf(err))
}

func TestListRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	vec := types.NewVector(types.ListOf(types.Int32()), 2)
	require.NoError(t, CopyStringToVector(vec, 0, "[1, 2, 3]", opts))
	require.NoError(t, CopyStringToVector(vec, 1, "[4, 5]", opts))

	off, size := vec.ListEntry(0)
	require.EqualValues(t, 0, off)
	require.EqualValues(t, 3, size)
	require.EqualValues(t, 1, vec.Children[0].GetInt32(0))
	require.EqualValues(t, 2, vec.Children[0].GetInt32(1))
	require.EqualValues(t, 3, vec.Children[0].GetInt32(2))

	off2, size2 := vec.ListEntry(1)
	require.EqualValues(t, 3, off2)
	require.EqualValues(t, 2, size2)

	printed := FormatValue(vec, 0, opts)
	vec2 := types.NewVector(types.ListOf(types.Int32()), 1)
	require.NoError(t, CopyStringToVector(vec2, 0, printed, opts))
	require.Equal(t, FormatValue(vec, 0, opts), FormatValue(vec2, 0, opts))
}

func TestArrayLengthMismatchFails(t *testing.T) {
	vec := types.NewVector(types.ArrayOf(types.Int32(), 3), 1)
	err := CopyStringToVector(vec, 0, "[1, 2]", DefaultOptions())
	require.Error(t, err)
}

func TestMapRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	vec := types.NewVector(types.MapOf(types.Str(), types.Int32()), 1)
	require.NoError(t, CopyStringToVector(vec, 0, "{a=1, b=2}", opts))

	_, size := vec.ListEntry(0)
	require.EqualValues(t, 2, size)
	child := vec.Children[0]
	require.Equal(t, "a", child.Children[0].GetString(0))
	require.EqualValues(t, 1, child.Children[1].GetInt32(0))
	require.Equal(t, "b", child.Children[0].GetString(1))
	require.EqualValues(t, 2, child.Children[1].GetInt32(1))

	printed := FormatValue(vec, 0, opts)
	vec2 := types.NewVector(types.MapOf(types.Str(), types.Int32()), 1)
	require.NoError(t, CopyStringToVector(vec2, 0, printed, opts))
	require.Equal(t, FormatValue(vec, 0, opts), FormatValue(vec2, 0, opts))
}

func TestStructUnknownFieldFails(t *testing.T) {
	st := types.StructOf(
		types.StructField{Name: "x", Type: types.Int32()},
		types.StructField{Name: "y", Type: types.Str()},
	)
	vec := types.NewVector(st, 1)
	err := CopyStringToVector(vec, 0, "{x: 1, z: 2}", DefaultOptions())
	require.Error(t, err)
}

func TestStructMissingFieldBecomesNull(t *testing.T) {
	st := types.StructOf(
		types.StructField{Name: "x", Type: types.Int32()},
		types.StructField{Name: "y", Type: types.Str()},
	)
	vec := types.NewVector(st, 1)
	require.NoError(t, CopyStringToVector(vec, 0, "{x: 1}", DefaultOptions()))
	require.EqualValues(t, 1, vec.Children[0].GetInt32(0))
	require.True(t, vec.Children[1].IsNull(0))
}

func TestUnionFirstMatchWins(t *testing.T) {
	un := types.UnionOf(
		types.StructField{Name: "i", Type: types.Int32()},
		types.StructField{Name: "s", Type: types.Str()},
	)
	vec := types.NewVector(un, 2)
	require.NoError(t, CopyStringToVector(vec, 0, "42", DefaultOptions()))
	require.EqualValues(t, 0, vec.UnionTags[0])
	require.EqualValues(t, 42, vec.Children[0].GetInt32(0))
	require.True(t, vec.Children[1].IsNull(0))

	require.NoError(t, CopyStringToVector(vec, 1, "hello", DefaultOptions()))
	require.EqualValues(t, 1, vec.UnionTags[1])
	require.True(t, vec.Children[0].IsNull(1))
	require.Equal(t, "hello", vec.Children[1].GetString(1))
}

func TestIntervalTextRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	vec := types.NewVector(types.Interval(), 1)
	require.NoError(t, CopyStringToVector(vec, 0, "3 years 2 months 1 day", opts))
	iv := vec.GetInterval(0)
	require.EqualValues(t, 38, iv.Months)
	require.EqualValues(t, 1, iv.Days)

	require.NoError(t, CopyStringToVector(vec, 0, iv.String(), opts))
	require.Equal(t, iv, vec.GetInterval(0))
}
