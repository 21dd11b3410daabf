package storage

import (
	"sync"

	"github.com/google/btree"

	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// pkEntry is one primary-key index entry. Exactly one of intKey/strKey is
// meaningful, decided by the index's key kind.
type pkEntry struct {
	intKey int64
	strKey string
	offset uint64
}

// PrimaryKeyIndex maps a node table's primary-key values to node offsets.
// It is built under an exclusive lock during bulk copy and durable across
// queries; lookups after the copy commits are read-only.
type PrimaryKeyIndex struct {
	mu       sync.Mutex
	keyKind  types.Kind
	isString bool
	tree     *btree.BTreeG[pkEntry]
}

// NewPrimaryKeyIndex builds an empty index for keys of kind k. SERIAL
// tables have no index (offsets are the key); callers must not construct
// one for them.
func NewPrimaryKeyIndex(k types.Kind) *PrimaryKeyIndex {
	isString := k == types.STRING || k == types.UUID
	var less btree.LessFunc[pkEntry]
	if isString {
		less = func(a, b pkEntry) bool { return a.strKey < b.strKey }
	} else {
		less = func(a, b pkEntry) bool { return a.intKey < b.intKey }
	}
	return &PrimaryKeyIndex{keyKind: k, isString: isString, tree: btree.NewG(32, less)}
}

// Len returns the number of indexed keys.
func (ix *PrimaryKeyIndex) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.tree.Len()
}

// AppendChunk indexes every value of a finalized primary-key chunk,
// mapping row i to node offset base+i. The whole chunk is inserted under
// one lock acquisition; a duplicate or null key aborts with the offending
// value's string form.
func (ix *PrimaryKeyIndex) AppendChunk(pk *ColumnChunk, base uint64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i := 0; i < pk.NumValues(); i++ {
		pos := uint32(i)
		if pk.IsNull(pos) {
			return cyqerr.Newf(cyqerr.KindCopy, "Null found around offset %d, which violates the non-null constraint of the primary key column.", base+uint64(i))
		}
		e, err := ix.entryFor(pk.Vector(), pos)
		if err != nil {
			return err
		}
		e.offset = base + uint64(i)
		if _, dup := ix.tree.ReplaceOrInsert(e); dup {
			return cyqerr.Newf(cyqerr.KindCopy,
				"Found duplicated primary key value %s, which violates the uniqueness constraint of the primary key column.",
				cast.FormatValue(pk.Vector(), pos, cast.DefaultOptions())).
				WithSubstr(cast.FormatValue(pk.Vector(), pos, cast.DefaultOptions()))
		}
	}
	return nil
}

// Lookup returns the node offset a key vector position maps to.
func (ix *PrimaryKeyIndex) Lookup(key *types.Vector, pos uint32) (uint64, bool) {
	e, err := ix.entryFor(key, pos)
	if err != nil {
		return 0, false
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	got, ok := ix.tree.Get(e)
	if !ok {
		return 0, false
	}
	return got.offset, true
}

func (ix *PrimaryKeyIndex) entryFor(v *types.Vector, pos uint32) (pkEntry, error) {
	if ix.isString {
		if ix.keyKind == types.UUID {
			return pkEntry{strKey: v.GetUUID(pos).String()}, nil
		}
		return pkEntry{strKey: v.GetString(pos)}, nil
	}
	switch v.Type.Kind {
	case types.INT8:
		return pkEntry{intKey: int64(v.GetInt8(pos))}, nil
	case types.INT16:
		return pkEntry{intKey: int64(v.GetInt16(pos))}, nil
	case types.INT32, types.DATE:
		return pkEntry{intKey: int64(v.GetInt32(pos))}, nil
	case types.INT64, types.SERIAL, types.INTERNAL_ID, types.TIMESTAMP:
		return pkEntry{intKey: v.GetInt64(pos)}, nil
	case types.UINT8:
		return pkEntry{intKey: int64(v.GetUint8(pos))}, nil
	case types.UINT16:
		return pkEntry{intKey: int64(v.GetUint16(pos))}, nil
	case types.UINT32:
		return pkEntry{intKey: int64(v.GetUint32(pos))}, nil
	case types.UINT64:
		return pkEntry{intKey: int64(v.GetUint64(pos))}, nil
	default:
		return pkEntry{}, cyqerr.Newf(cyqerr.KindInternal, "unsupported primary key type %s", v.Type)
	}
}
