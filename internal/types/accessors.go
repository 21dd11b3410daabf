package types

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Typed get/set accessors matching each physical type. Callers must consult IsNull before reading; these accessors never
// check it themselves so null-propagation stays the caller's explicit
// three-valued-logic decision.

func (v *Vector) GetBool(pos uint32) bool { return v.fixedSlice(pos)[0] != 0 }
func (v *Vector) SetBool(pos uint32, b bool) {
	s := v.fixedSlice(pos)
	if b {
		s[0] = 1
	} else {
		s[0] = 0
	}
}

func (v *Vector) GetInt8(pos uint32) int8 { return int8(v.fixedSlice(pos)[0]) }
func (v *Vector) SetInt8(pos uint32, x int8) { v.fixedSlice(pos)[0] = byte(x) }

func (v *Vector) GetInt16(pos uint32) int16 {
	return int16(binary.LittleEndian.Uint16(v.fixedSlice(pos)))
}
func (v *Vector) SetInt16(pos uint32, x int16) {
	binary.LittleEndian.PutUint16(v.fixedSlice(pos), uint16(x))
}

func (v *Vector) GetInt32(pos uint32) int32 {
	return int32(binary.LittleEndian.Uint32(v.fixedSlice(pos)))
}
func (v *Vector) SetInt32(pos uint32, x int32) {
	binary.LittleEndian.PutUint32(v.fixedSlice(pos), uint32(x))
}

func (v *Vector) GetInt64(pos uint32) int64 {
	return int64(binary.LittleEndian.Uint64(v.fixedSlice(pos)))
}
func (v *Vector) SetInt64(pos uint32, x int64) {
	binary.LittleEndian.PutUint64(v.fixedSlice(pos), uint64(x))
}

func (v *Vector) GetUint8(pos uint32) uint8 { return v.fixedSlice(pos)[0] }
func (v *Vector) SetUint8(pos uint32, x uint8) { v.fixedSlice(pos)[0] = x }

func (v *Vector) GetUint16(pos uint32) uint16 {
	return binary.LittleEndian.Uint16(v.fixedSlice(pos))
}
func (v *Vector) SetUint16(pos uint32, x uint16) {
	binary.LittleEndian.PutUint16(v.fixedSlice(pos), x)
}

func (v *Vector) GetUint32(pos uint32) uint32 {
	return binary.LittleEndian.Uint32(v.fixedSlice(pos))
}
func (v *Vector) SetUint32(pos uint32, x uint32) {
	binary.LittleEndian.PutUint32(v.fixedSlice(pos), x)
}

func (v *Vector) GetUint64(pos uint32) uint64 {
	return binary.LittleEndian.Uint64(v.fixedSlice(pos))
}
func (v *Vector) SetUint64(pos uint32, x uint64) {
	binary.LittleEndian.PutUint64(v.fixedSlice(pos), x)
}

func (v *Vector) GetFloat(pos uint32) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v.fixedSlice(pos)))
}
func (v *Vector) SetFloat(pos uint32, x float32) {
	binary.LittleEndian.PutUint32(v.fixedSlice(pos), math.Float32bits(x))
}

func (v *Vector) GetDouble(pos uint32) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(v.fixedSlice(pos)))
}
func (v *Vector) SetDouble(pos uint32, x float64) {
	binary.LittleEndian.PutUint64(v.fixedSlice(pos), math.Float64bits(x))
}

func (v *Vector) GetInt128(pos uint32) Int128 {
	s := v.fixedSlice(pos)
	return Int128{
		Lo: binary.LittleEndian.Uint64(s[0:8]),
		Hi: int64(binary.LittleEndian.Uint64(s[8:16])),
	}
}
func (v *Vector) SetInt128(pos uint32, x Int128) {
	s := v.fixedSlice(pos)
	binary.LittleEndian.PutUint64(s[0:8], x.Lo)
	binary.LittleEndian.PutUint64(s[8:16], uint64(x.Hi))
}

// GetString/SetString cover STRING payloads via the overflow buffer.
func (v *Vector) GetString(pos uint32) string { return string(v.GetBytes(pos)) }
func (v *Vector) SetString(pos uint32, s string) { v.AppendBytes(pos, []byte(s)) }

// GetUUID/SetUUID store UUIDs as their 16-byte binary form through
// AppendBytes; 16 bytes exceeds StringPrefixLen, so a UUID always lands in
// the overflow buffer.
func (v *Vector) GetUUID(pos uint32) uuid.UUID {
	b := v.GetBytes(pos)
	var u uuid.UUID
	copy(u[:], b)
	return u
}
func (v *Vector) SetUUID(pos uint32, u uuid.UUID) { v.AppendBytes(pos, u[:]) }

// Date is stored as days since the Unix epoch, matching the DATE physical
// width of 4 bytes.
func (v *Vector) GetDate(pos uint32) int32 { return v.GetInt32(pos) }
func (v *Vector) SetDate(pos uint32, days int32) { v.SetInt32(pos, days) }

// Timestamp is stored as an int64 in the unit implied by Type.TsRes.
func (v *Vector) GetTimestamp(pos uint32) int64 { return v.GetInt64(pos) }
func (v *Vector) SetTimestamp(pos uint32, x int64) { v.SetInt64(pos, x) }
