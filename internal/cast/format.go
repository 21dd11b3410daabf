package cast

import (
	"strconv"
	"strings"
	"time"

	"github.com/dreamware/cyq/internal/types"
)

// FormatValue renders the value at vec[pos] back to the textual form
// CopyStringToVector would accept, the canonical printer used by the
// round-trip property the tests hold it to: every value produced by a
// scalar/list cast, re-printed and re-cast, yields an equal value.
func FormatValue(vec *types.Vector, pos uint32, opts Options) string {
	if vec.IsNull(pos) {
		return "NULL"
	}
	switch vec.Type.Kind {
	case types.BOOL:
		if vec.GetBool(pos) {
			return "true"
		}
		return "false"
	case types.INT8:
		return strconv.FormatInt(int64(vec.GetInt8(pos)), 10)
	case types.INT16:
		return strconv.FormatInt(int64(vec.GetInt16(pos)), 10)
	case types.INT32:
		return strconv.FormatInt(int64(vec.GetInt32(pos)), 10)
	case types.INT64, types.SERIAL, types.INTERNAL_ID:
		return strconv.FormatInt(vec.GetInt64(pos), 10)
	case types.UINT8:
		return strconv.FormatUint(uint64(vec.GetUint8(pos)), 10)
	case types.UINT16:
		return strconv.FormatUint(uint64(vec.GetUint16(pos)), 10)
	case types.UINT32:
		return strconv.FormatUint(uint64(vec.GetUint32(pos)), 10)
	case types.UINT64:
		return strconv.FormatUint(vec.GetUint64(pos), 10)
	case types.INT128:
		return vec.GetInt128(pos).String()
	case types.FLOAT:
		return strconv.FormatFloat(float64(vec.GetFloat(pos)), 'g', -1, 32)
	case types.DOUBLE:
		return strconv.FormatFloat(vec.GetDouble(pos), 'g', -1, 64)
	case types.DECIMAL:
		return formatDecimal(vec.GetInt128(pos), vec.Type.Scale)
	case types.DATE:
		return dateEpoch.AddDate(0, 0, int(vec.GetDate(pos))).Format("2006-01-02")
	case types.TIMESTAMP:
		unit := timestampUnit(vec.Type.TsRes)
		t := time.Unix(0, 0).UTC().Add(time.Duration(vec.GetTimestamp(pos)) * unit)
		return t.Format("2006-01-02T15:04:05.999999999")
	case types.INTERVAL:
		iv := vec.GetInterval(pos)
		return iv.String()
	case types.STRING:
		return vec.GetString(pos)
	case types.BLOB:
		return FormatBlob(vec.GetBytes(pos))
	case types.UUID:
		return vec.GetUUID(pos).String()
	case types.LIST, types.ARRAY:
		return formatList(vec, pos, opts)
	case types.MAP:
		return formatMap(vec, pos, opts)
	case types.STRUCT:
		return formatStruct(vec, pos, opts)
	case types.UNION:
		return formatUnion(vec, pos, opts)
	default:
		return ""
	}
}

// formatDecimal reprints an Int128-scaled DECIMAL(precision,scale) value as
// "123.450", inserting the decimal point scale digits from the right.
func formatDecimal(v types.Int128, scale uint8) string {
	s := v.BigInt().String()
	if scale == 0 {
		return s
	}
	digits := s
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign = "-"
		digits = digits[1:]
	}
	for len(digits) <= int(scale) {
		digits = "0" + digits
	}
	cut := len(digits) - int(scale)
	return sign + digits[:cut] + "." + digits[cut:]
}

func formatList(vec *types.Vector, pos uint32, opts Options) string {
	offset, size := vec.ListEntry(pos)
	child := vec.Children[0]
	parts := make([]string, size)
	for i := uint32(0); i < size; i++ {
		parts[i] = FormatValue(child, offset+i, opts)
	}
	return string(opts.ListBegin) + strings.Join(parts, string(opts.Delimiter)+" ") + string(opts.ListEnd)
}

func formatMap(vec *types.Vector, pos uint32, opts Options) string {
	offset, size := vec.ListEntry(pos)
	child := vec.Children[0]
	keyVec, valVec := child.Children[0], child.Children[1]
	parts := make([]string, size)
	for i := uint32(0); i < size; i++ {
		idx := offset + i
		parts[i] = FormatValue(keyVec, idx, opts) + "=" + FormatValue(valVec, idx, opts)
	}
	return string(opts.StructBegin) + strings.Join(parts, string(opts.Delimiter)+" ") + string(opts.StructEnd)
}

func formatStruct(vec *types.Vector, pos uint32, opts Options) string {
	parts := make([]string, 0, len(vec.Type.Fields))
	for i, f := range vec.Type.Fields {
		parts = append(parts, f.Name+": "+FormatValue(vec.Children[i], pos, opts))
	}
	return string(opts.StructBegin) + strings.Join(parts, string(opts.Delimiter)+" ") + string(opts.StructEnd)
}

func formatUnion(vec *types.Vector, pos uint32, opts Options) string {
	tag := vec.UnionTags[pos]
	return FormatValue(vec.Children[tag], pos, opts)
}
