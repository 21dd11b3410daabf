package storage

import (
	"encoding/binary"

	"github.com/klauspost/compress/zstd"

	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// ChunkStats holds the min/max computed when a chunk is finalized, valid
// only for fixed-width integer-like kinds.
type ChunkStats struct {
	Min, Max int64
	Valid    bool
}

// ColumnChunk is one column of one node group (or one CSR data column):
// a bounded columnar buffer of a single logical type plus null state. A
// chunk is created empty, filled during copy, finalized (sealed) and then
// flushed; sealed chunks reject writes.
type ColumnChunk struct {
	Type types.LogicalType

	data   *types.Vector
	n      int
	cap    int
	sealed bool
	stats  ChunkStats
}

// NewColumnChunk allocates an empty chunk of capacity rows.
func NewColumnChunk(t types.LogicalType, capacity int) *ColumnChunk {
	return &ColumnChunk{Type: t, data: types.NewVector(t, capacity), cap: capacity}
}

// NumValues returns how many rows have been appended.
func (c *ColumnChunk) NumValues() int { return c.n }

// Capacity returns the row capacity the chunk was allocated with.
func (c *ColumnChunk) Capacity() int { return c.cap }

// Full reports whether another Append would overflow the chunk.
func (c *ColumnChunk) Full() bool { return c.n >= c.cap }

// Sealed reports whether Finalize has run.
func (c *ColumnChunk) Sealed() bool { return c.sealed }

// Stats returns the finalize-time min/max.
func (c *ColumnChunk) Stats() ChunkStats { return c.stats }

// Append copies src[srcPos] (including null state) into the next row.
func (c *ColumnChunk) Append(src *types.Vector, srcPos uint32) error {
	if c.sealed {
		return cyqerr.Newf(cyqerr.KindInternal, "append to sealed column chunk")
	}
	if c.Full() {
		return cyqerr.Newf(cyqerr.KindInternal, "append past column chunk capacity %d", c.cap)
	}
	if err := copyVectorValue(src, srcPos, c.data, uint32(c.n)); err != nil {
		return err
	}
	c.n++
	return nil
}

// AppendInt64 appends a non-null int64 row directly, for offset columns
// the partitioner synthesizes rather than copies from input vectors.
func (c *ColumnChunk) AppendInt64(x int64) error {
	if c.sealed || c.Full() {
		return cyqerr.Newf(cyqerr.KindInternal, "append to sealed or full column chunk")
	}
	c.data.SetInt64(uint32(c.n), x)
	c.n++
	return nil
}

// AppendNull appends one null row.
func (c *ColumnChunk) AppendNull() error {
	if c.sealed || c.Full() {
		return cyqerr.Newf(cyqerr.KindInternal, "append to sealed or full column chunk")
	}
	c.data.SetNull(uint32(c.n))
	c.n++
	return nil
}

// FillNull extends the chunk to n rows, all null. Used when a CSR data
// chunk is sized up front and then populated out of order.
func (c *ColumnChunk) FillNull(n int) error {
	if c.sealed {
		return cyqerr.Newf(cyqerr.KindInternal, "fill of sealed column chunk")
	}
	if n > c.cap {
		return cyqerr.Newf(cyqerr.KindInternal, "fill %d past column chunk capacity %d", n, c.cap)
	}
	for i := c.n; i < n; i++ {
		c.data.SetNull(uint32(i))
	}
	if n > c.n {
		c.n = n
	}
	return nil
}

// Set overwrites row dstPos with src[srcPos]. The row must already exist
// (Append/FillNull decide the chunk's length; Set never extends it).
func (c *ColumnChunk) Set(src *types.Vector, srcPos uint32, dstPos uint32) error {
	if int(dstPos) >= c.n {
		return cyqerr.Newf(cyqerr.KindInternal, "set at row %d past chunk length %d", dstPos, c.n)
	}
	if src.IsNull(srcPos) {
		c.data.SetNull(dstPos)
		return nil
	}
	c.data.ClearNull(dstPos)
	return copyVectorValue(src, srcPos, c.data, dstPos)
}

// CopyInto copies row pos into out at outPos, including null state.
func (c *ColumnChunk) CopyInto(pos uint32, out *types.Vector, outPos uint32) error {
	return copyVectorValue(c.data, pos, out, outPos)
}

// IsNull reports row pos's null state.
func (c *ColumnChunk) IsNull(pos uint32) bool { return c.data.IsNull(pos) }

// Vector exposes the backing vector for typed reads (primary-key
// iteration, CSR cursor bookkeeping). Callers must not write through it.
func (c *ColumnChunk) Vector() *types.Vector { return c.data }

// Finalize seals the chunk, computing min/max for integer-like kinds.
// Compression happens at flush time (the in-memory form stays decoded).
func (c *ColumnChunk) Finalize() {
	if c.sealed {
		return
	}
	c.sealed = true
	switch c.Type.Kind {
	case types.INT8, types.INT16, types.INT32, types.INT64,
		types.SERIAL, types.INTERNAL_ID, types.DATE, types.TIMESTAMP:
	default:
		return
	}
	for i := 0; i < c.n; i++ {
		pos := uint32(i)
		if c.data.IsNull(pos) {
			continue
		}
		v := c.intAt(pos)
		if !c.stats.Valid {
			c.stats = ChunkStats{Min: v, Max: v, Valid: true}
			continue
		}
		if v < c.stats.Min {
			c.stats.Min = v
		}
		if v > c.stats.Max {
			c.stats.Max = v
		}
	}
}

func (c *ColumnChunk) intAt(pos uint32) int64 {
	switch c.Type.Kind {
	case types.INT8:
		return int64(c.data.GetInt8(pos))
	case types.INT16:
		return int64(c.data.GetInt16(pos))
	case types.INT32, types.DATE:
		return int64(c.data.GetInt32(pos))
	default:
		return c.data.GetInt64(pos)
	}
}

// copyVectorValue copies src[srcPos] into dst[dstPos], including null
// state, across every storable kind. Nested kinds (LIST/ARRAY/MAP/STRUCT/
// UNION) round-trip through their canonical textual form, which keeps the
// chunk layout uniform at the price of a parse on the nested path.
func copyVectorValue(src *types.Vector, srcPos uint32, dst *types.Vector, dstPos uint32) error {
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
	case types.INT64, types.SERIAL, types.INTERNAL_ID, types.TIMESTAMP:
		dst.SetInt64(dstPos, src.GetInt64(srcPos))
	case types.INT128, types.DECIMAL:
		dst.SetInt128(dstPos, src.GetInt128(srcPos))
	case types.INTERVAL:
		dst.SetInterval(dstPos, src.GetInterval(srcPos))
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
	case types.STRING, types.BLOB, types.UUID:
		dst.AppendBytes(dstPos, src.GetBytes(srcPos))
	case types.LIST, types.ARRAY, types.MAP, types.STRUCT, types.UNION:
		text := cast.FormatValue(src, srcPos, cast.DefaultOptions())
		return cast.CopyStringToVector(dst, dstPos, text, cast.DefaultOptions())
	default:
		return cyqerr.Newf(cyqerr.KindInternal, "unstorable column type %s", src.Type)
	}
	return nil
}

// chunkMagic identifies a serialized column chunk file.
var chunkMagic = [4]byte{'C', 'Y', 'Q', 'C'}

const chunkFlagCompressed = 1

var (
	zstdEnc, _ = zstd.NewWriter(nil)
	zstdDec, _ = zstd.NewReader(nil)
)

// Serialize encodes the chunk for flushing: a fixed header, the null
// bitmap, then the payload. Fixed-width payloads are zstd-compressed when
// that actually shrinks them; variable-length and nested payloads are
// stored as length-prefixed values (textual form for nested kinds).
func (c *ColumnChunk) Serialize() ([]byte, error) {
	nulls, err := c.data.NullBitmap().ToBytes()
	if err != nil {
		return nil, cyqerr.Wrap(err, cyqerr.KindIO, "serializing null bitmap")
	}

	var payload []byte
	var flags uint8
	switch c.Type.Physical() {
	case types.PhysVarLen, types.PhysListEntry, types.PhysStruct:
		payload = c.serializeValues()
	default:
		w := c.Type.Width()
		raw := make([]byte, c.n*w)
		for i := 0; i < c.n; i++ {
			copy(raw[i*w:], c.data.GetRaw(uint32(i)))
		}
		compressed := zstdEnc.EncodeAll(raw, nil)
		if len(compressed) < len(raw) {
			payload = compressed
			flags |= chunkFlagCompressed
		} else {
			payload = raw
		}
	}

	out := make([]byte, 0, 32+len(nulls)+len(payload))
	out = append(out, chunkMagic[:]...)
	out = append(out, uint8(c.Type.Kind), flags)
	var u32 [4]byte
	put := func(x uint32) {
		binary.LittleEndian.PutUint32(u32[:], x)
		out = append(out, u32[:]...)
	}
	put(uint32(c.n))
	put(uint32(c.cap))
	put(uint32(len(nulls)))
	out = append(out, nulls...)
	put(uint32(len(payload)))
	out = append(out, payload...)
	var s [16]byte
	binary.LittleEndian.PutUint64(s[0:8], uint64(c.stats.Min))
	binary.LittleEndian.PutUint64(s[8:16], uint64(c.stats.Max))
	out = append(out, s[:]...)
	if c.stats.Valid {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out, nil
}

func (c *ColumnChunk) serializeValues() []byte {
	var out []byte
	var u32 [4]byte
	for i := 0; i < c.n; i++ {
		pos := uint32(i)
		var val []byte
		if !c.data.IsNull(pos) {
			if c.Type.Physical() == types.PhysVarLen {
				val = c.data.GetBytes(pos)
			} else {
				val = []byte(cast.FormatValue(c.data, pos, cast.DefaultOptions()))
			}
		}
		binary.LittleEndian.PutUint32(u32[:], uint32(len(val)))
		out = append(out, u32[:]...)
		out = append(out, val...)
	}
	return out
}

// DeserializeColumnChunk reconstructs a chunk from Serialize's output.
// The declared type must match what the chunk was written with; only the
// kind byte is cross-checked.
func DeserializeColumnChunk(t types.LogicalType, data []byte) (*ColumnChunk, error) {
	if len(data) < 18 || [4]byte(data[0:4]) != chunkMagic {
		return nil, cyqerr.Newf(cyqerr.KindIO, "not a column chunk file")
	}
	if types.Kind(data[4]) != t.Kind {
		return nil, cyqerr.Newf(cyqerr.KindIO, "column chunk kind mismatch: file has %d, schema wants %s", data[4], t)
	}
	flags := data[5]
	off := 6
	read32 := func() uint32 {
		v := binary.LittleEndian.Uint32(data[off:])
		off += 4
		return v
	}
	n := int(read32())
	capacity := int(read32())
	nullsLen := int(read32())
	nullsBytes := data[off : off+nullsLen]
	off += nullsLen
	payloadLen := int(read32())
	payload := data[off : off+payloadLen]
	off += payloadLen

	c := NewColumnChunk(t, capacity)
	if err := c.data.NullBitmap().UnmarshalBinary(nullsBytes); err != nil {
		return nil, cyqerr.Wrap(err, cyqerr.KindIO, "deserializing null bitmap")
	}
	switch t.Physical() {
	case types.PhysVarLen, types.PhysListEntry, types.PhysStruct:
		vo := 0
		for i := 0; i < n; i++ {
			vlen := int(binary.LittleEndian.Uint32(payload[vo:]))
			vo += 4
			val := payload[vo : vo+vlen]
			vo += vlen
			pos := uint32(i)
			if c.data.IsNull(pos) {
				continue
			}
			if t.Physical() == types.PhysVarLen {
				c.data.AppendBytes(pos, append([]byte(nil), val...))
			} else if err := cast.CopyStringToVector(c.data, pos, string(val), cast.DefaultOptions()); err != nil {
				return nil, err
			}
		}
	default:
		raw := payload
		if flags&chunkFlagCompressed != 0 {
			var err error
			raw, err = zstdDec.DecodeAll(payload, nil)
			if err != nil {
				return nil, cyqerr.Wrap(err, cyqerr.KindIO, "decompressing column chunk")
			}
		}
		w := t.Width()
		for i := 0; i < n; i++ {
			copy(c.data.GetRaw(uint32(i)), raw[i*w:(i+1)*w])
		}
	}
	c.n = n
	c.stats = ChunkStats{
		Min:   int64(binary.LittleEndian.Uint64(data[off : off+8])),
		Max:   int64(binary.LittleEndian.Uint64(data[off+8 : off+16])),
		Valid: data[off+16] == 1,
	}
	c.sealed = true
	return c, nil
}
