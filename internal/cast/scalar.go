package cast

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// scalarCastFunc parses text (already trimmed of quoting, NOT of
// surrounding whitespace) into vec at pos. text is the raw token as it
// appeared in the source, whitespace and all, so every scalar parser trims
// it itself: leading/trailing spaces are stripped around every scalar
// token but preserved inside quoted strings.
type scalarCastFunc func(vec *types.Vector, pos uint32, text string, opts Options) error

var scalarCasts map[types.Kind]scalarCastFunc

func init() {
	scalarCasts = map[types.Kind]scalarCastFunc{
		types.BOOL:        castBool,
		types.INT8:        castIntWidth(8, true),
		types.INT16:       castIntWidth(16, true),
		types.INT32:       castIntWidth(32, true),
		types.INT64:       castIntWidth(64, true),
		types.UINT8:       castIntWidth(8, false),
		types.UINT16:      castIntWidth(16, false),
		types.UINT32:      castIntWidth(32, false),
		types.UINT64:      castIntWidth(64, false),
		types.INT128:      castInt128,
		types.FLOAT:       castFloat,
		types.DOUBLE:      castDouble,
		types.DATE:        castDate,
		types.TIMESTAMP:   castTimestamp,
		types.INTERVAL:    castInterval,
		types.STRING:      castString,
		types.BLOB:        castBlob,
		types.UUID:        castUUID,
		types.DECIMAL:     castDecimal,
		types.SERIAL:      castIntWidth(64, true),
		types.INTERNAL_ID: castIntWidth(64, true),
	}
}

// IsNullToken reports whether field, once space-trimmed, is the literal
// NULL token (case-insensitive)
func IsNullToken(field string) bool {
	return strings.EqualFold(strings.TrimSpace(field), "NULL")
}

func conversionErr(targetType, text string) error {
	return cyqerr.Newf(cyqerr.KindConversion,
		"Cast failed. Could not convert %q to %s.", text, targetType).WithSubstr(text)
}

func castBool(vec *types.Vector, pos uint32, text string, _ Options) error {
	t := strings.TrimSpace(text)
	switch strings.ToLower(t) {
	case "true":
		vec.SetBool(pos, true)
	case "false":
		vec.SetBool(pos, false)
	default:
		return conversionErr("BOOL", text)
	}
	return nil
}

func castIntWidth(bits int, signed bool) scalarCastFunc {
	return func(vec *types.Vector, pos uint32, text string, _ Options) error {
		t := strings.TrimSpace(text)
		if t == "" {
			return conversionErr(intTypeName(bits, signed), text)
		}
		if !signed && (strings.HasPrefix(t, "-")) {
			return conversionErr(intTypeName(bits, signed), text)
		}
		if signed {
			v, err := strconv.ParseInt(t, 10, bits)
			if err != nil {
				return conversionErr(intTypeName(bits, signed), text)
			}
			setSignedInt(vec, pos, bits, v)
		} else {
			v, err := strconv.ParseUint(t, 10, bits)
			if err != nil {
				return conversionErr(intTypeName(bits, signed), text)
			}
			setUnsignedInt(vec, pos, bits, v)
		}
		return nil
	}
}

func intTypeName(bits int, signed bool) string {
	if signed {
		return "INT" + strconv.Itoa(bits)
	}
	return "UINT" + strconv.Itoa(bits)
}

func setSignedInt(vec *types.Vector, pos uint32, bits int, v int64) {
	switch bits {
	case 8:
		vec.SetInt8(pos, int8(v))
	case 16:
		vec.SetInt16(pos, int16(v))
	case 32:
		vec.SetInt32(pos, int32(v))
	case 64:
		vec.SetInt64(pos, v)
	}
}

func setUnsignedInt(vec *types.Vector, pos uint32, bits int, v uint64) {
	switch bits {
	case 8:
		vec.SetUint8(pos, uint8(v))
	case 16:
		vec.SetUint16(pos, uint16(v))
	case 32:
		vec.SetUint32(pos, uint32(v))
	case 64:
		vec.SetUint64(pos, v)
	}
}

func castInt128(vec *types.Vector, pos uint32, text string, _ Options) error {
	t := strings.TrimSpace(text)
	big, ok := new(bigIntParser).parse(t)
	if !ok {
		return conversionErr("INT128", text)
	}
	vec.SetInt128(pos, big)
	return nil
}

func castFloat(vec *types.Vector, pos uint32, text string, _ Options) error {
	t := strings.TrimSpace(text)
	v, err := strconv.ParseFloat(t, 32)
	if err != nil {
		return conversionErr("FLOAT", text)
	}
	vec.SetFloat(pos, float32(v))
	return nil
}

func castDouble(vec *types.Vector, pos uint32, text string, _ Options) error {
	t := strings.TrimSpace(text)
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return conversionErr("DOUBLE", text)
	}
	vec.SetDouble(pos, v)
	return nil
}

func castString(vec *types.Vector, pos uint32, text string, _ Options) error {
	if !utf8.ValidString(text) {
		return conversionErr("STRING", text)
	}
	vec.SetString(pos, text)
	return nil
}

func castUUID(vec *types.Vector, pos uint32, text string, _ Options) error {
	t := strings.TrimSpace(text)
	u, err := uuid.Parse(t)
	if err != nil {
		return conversionErr("UUID", text)
	}
	vec.SetUUID(pos, u)
	return nil
}

func castDecimal(vec *types.Vector, pos uint32, text string, opts Options) error {
	t := strings.TrimSpace(text)
	scaled, ok := parseDecimal(t, vec.Type.Precision, vec.Type.Scale)
	if !ok {
		return conversionErr(vec.Type.String(), text)
	}
	vec.SetInt128(pos, scaled)
	return nil
}

// CastScalar dispatches text to the scalar parser registered for vec's
// logical type, writing the result into vec at pos. It never handles the
// NULL token or nested kinds; callers route those before calling in.
func CastScalar(vec *types.Vector, pos uint32, text string, opts Options) error {
	fn, ok := scalarCasts[vec.Type.Kind]
	if !ok {
		return cyqerr.Newf(cyqerr.KindInternal, "no scalar cast registered for %s", vec.Type)
	}
	return fn(vec, pos, text, opts)
}
