package exec

import (
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// copyValue copies src[srcPos] into dst[dstPos], including null state. It
// covers the scalar physical kinds exec's operators evaluate directly
// (a superset of readVector's coverage); LIST/STRUCT/UNION columns are not yet
// supported here since no operator materializes one as an intermediate
// column today — extending that coverage is only needed once a query
// projects a nested-typed property through an EXTEND or HASH_JOIN.
func copyValue(src *types.Vector, srcPos uint32, dst *types.Vector, dstPos uint32) error {
	if src.IsNull(srcPos) {
		dst.SetNull(dstPos)
		return nil
	}
	dst.ClearNull(dstPos)
	switch src.Type.Kind {
	case types.BOOL:
		dst.SetBool(dstPos, src.GetBool(srcPos))
	case types.INT8:
		dst.SetInt8(dstPos, src.GetInt8(srcPos))
	case types.INT16:
		dst.SetInt16(dstPos, src.GetInt16(srcPos))
	case types.INT32, types.DATE:
		dst.SetInt32(dstPos, src.GetInt32(srcPos))
	case types.INT64, types.INTERNAL_ID, types.SERIAL, types.TIMESTAMP:
		dst.SetInt64(dstPos, src.GetInt64(srcPos))
	case types.UINT8:
		dst.SetUint8(dstPos, src.GetUint8(srcPos))
	case types.UINT16:
		dst.SetUint16(dstPos, src.GetUint16(srcPos))
	case types.UINT32:
		dst.SetUint32(dstPos, src.GetUint32(srcPos))
	case types.UINT64:
		dst.SetUint64(dstPos, src.GetUint64(srcPos))
	case types.FLOAT:
		dst.SetFloat(dstPos, src.GetFloat(srcPos))
	case types.DOUBLE:
		dst.SetDouble(dstPos, src.GetDouble(srcPos))
	case types.STRING, types.BLOB:
		dst.AppendBytes(dstPos, src.GetBytes(srcPos))
	default:
		return cyqerr.Newf(cyqerr.KindRuntime, "copying %s columns across EXTEND/HASH_JOIN is not yet implemented", src.Type)
	}
	return nil
}
