package types

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// State is the cardinality mode of a Vector: flat means
// "one active logical position" (e.g. the probe side of a hash join after a
// key lookup), unflat means up to DefaultVectorCapacity positions, optionally
// narrowed by a filtered SelectionVector.
type State uint8

const (
	StateFlat State = iota
	StateUnflat
)

// SelectionVector is a view over a Vector's active positions. A nil
// Positions slice means "all positions 0..Count are active" (the common,
// allocation-free case); Positions is populated only once FILTER or a
// similar operator narrows the set.
type SelectionVector struct {
	Positions []uint32
	Count     int
}

// NewSequentialSelection returns a SelectionVector selecting [0, n).
func NewSequentialSelection(n int) *SelectionVector {
	return &SelectionVector{Count: n}
}

// At returns the logical position backing selected index i.
func (s *SelectionVector) At(i int) uint32 {
	if s.Positions == nil {
		return uint32(i)
	}
	return s.Positions[i]
}

// Filter narrows the selection to the positions for which keep[idx] is true,
// idx ranging over the current selection's indices (the FILTER operator
// prunes rather than copies).
func (s *SelectionVector) Filter(keep []bool) *SelectionVector {
	out := &SelectionVector{Positions: make([]uint32, 0, len(keep))}
	for i, ok := range keep {
		if ok {
			out.Positions = append(out.Positions, s.At(i))
		}
	}
	out.Count = len(out.Positions)
	return out
}

// overflowEntry is the inline {length, prefix, pointer} representation for
// variable-length payloads.
type overflowEntry struct {
	Length  uint32
	Prefix  [StringPrefixLen]byte
	Inline  bool
	Overptr int // index into Vector.overflow when !Inline
}

// Vector is a columnar batch of values of one LogicalType, with a null
// bitmap and (for unflat vectors) a selection vector
type Vector struct {
	Type LogicalType

	state State

	// fixed holds the fixed-width physical buffer for scalar types, sized
	// Width() * capacity bytes. Unused for PhysListEntry/PhysStruct, which
	// store their payload in entries/children instead.
	fixed []byte

	// entries holds {length,prefix,pointer} for PhysVarLen and
	// {offset,size} for PhysListEntry. Unused for fixed-width scalars.
	entries []overflowEntry
	listOff []uint32
	listLen []uint32

	// overflow holds the byte payload for variable-length values too long
	// to inline, owned by this vector alone.
	overflow [][]byte

	// nulls is a roaring bitmap of null positions; membership must be
	// consulted before reading the typed value.
	nulls *roaring.Bitmap

	// Children is the data vector for LIST children or the per-field vectors
	// for STRUCT/UNION, all sharing Selection.
	Children []*Vector
	// UnionTags holds the selected alternative index per position, valid
	// only when Type.Kind == UNION.
	UnionTags []uint8

	Selection *SelectionVector
	capacity  int

	// childCursor is the next free position in Children[0]'s data vector for
	// LIST/MAP vectors, advanced as internal/cast appends elements across
	// repeated CopyStringToVector calls within one batch; the child only
	// ever grows within a batch.
	childCursor uint32
}

// NewVector allocates a Vector of the given type and capacity, sharing no
// state with any other vector; vectors live and die with one pipeline.
func NewVector(t LogicalType, capacity int) *Vector {
	v := &Vector{
		Type:      t,
		state:     StateUnflat,
		nulls:     roaring.New(),
		Selection: NewSequentialSelection(capacity),
		capacity:  capacity,
	}
	switch t.Physical() {
	case PhysVarLen:
		v.entries = make([]overflowEntry, capacity)
	case PhysListEntry:
		v.listOff = make([]uint32, capacity)
		v.listLen = make([]uint32, capacity)
		var elemType LogicalType
		if t.Kind == MAP {
			elemType = StructOf(
				StructField{Name: "key", Type: *t.Key},
				StructField{Name: "value", Type: *t.Value},
			)
		} else {
			elemType = *t.Elem
		}
		child := NewVector(elemType, capacity)
		v.Children = []*Vector{child}
	case PhysStruct:
		if t.Kind == UNION {
			v.UnionTags = make([]uint8, capacity)
		}
		for _, f := range t.Fields {
			v.Children = append(v.Children, NewVector(f.Type, capacity))
		}
	default:
		v.fixed = make([]byte, t.Width()*capacity)
	}
	return v
}

// IsFlat reports single-position semantics.
func (v *Vector) IsFlat() bool { return v.state == StateFlat }

// Capacity returns the number of positions this vector was allocated for,
// so a new vector addressing the same positions (e.g. a SCAN_PROPERTY
// output joining an existing id vector) can be sized to match.
func (v *Vector) Capacity() int { return v.capacity }

// SetFlat marks the vector flat, active at logical position pos.
func (v *Vector) SetFlat(pos uint32) {
	v.state = StateFlat
	v.Selection = &SelectionVector{Positions: []uint32{pos}, Count: 1}
}

// Reset clears the vector between batches, keeping its allocated buffers
// across batches.
func (v *Vector) Reset() {
	v.state = StateUnflat
	v.nulls.Clear()
	v.overflow = v.overflow[:0]
	v.childCursor = 0
	v.Selection = NewSequentialSelection(v.capacity)
	for _, c := range v.Children {
		c.Reset()
	}
}

// SetNull marks position pos null.
func (v *Vector) SetNull(pos uint32) { v.nulls.Add(pos) }

// IsNull tests whether position pos is null; consult it before any typed
// read.
func (v *Vector) IsNull(pos uint32) bool { return v.nulls.Contains(pos) }

// ClearNull marks position pos non-null (used when overwriting a
// previously-null slot, e.g. during SET).
func (v *Vector) ClearNull(pos uint32) { v.nulls.Remove(pos) }

// NullBitmap exposes the underlying bitmap for set-algebra consumers (e.g.
// aligning struct-child selections via intersection).
func (v *Vector) NullBitmap() *roaring.Bitmap { return v.nulls }

// AppendBytes stores a variable-length payload for pos, inlining it when it
// fits within StringPrefixLen and otherwise appending to the overflow
// buffer
func (v *Vector) AppendBytes(pos uint32, data []byte) {
	e := overflowEntry{Length: uint32(len(data))}
	if len(data) <= StringPrefixLen {
		copy(e.Prefix[:], data)
		e.Inline = true
	} else {
		copy(e.Prefix[:], data[:StringPrefixLen])
		e.Overptr = len(v.overflow)
		v.overflow = append(v.overflow, data)
	}
	v.entries[pos] = e
}

// GetBytes reconstructs the payload written by AppendBytes.
func (v *Vector) GetBytes(pos uint32) []byte {
	e := v.entries[pos]
	if e.Inline {
		return append([]byte(nil), e.Prefix[:e.Length]...)
	}
	return v.overflow[e.Overptr]
}

// ChildWriteOffset returns the next free position in a LIST/MAP vector's
// Children[0] data vector, tracked across repeated element appends within
// one batch.
func (v *Vector) ChildWriteOffset() uint32 { return v.childCursor }

// AdvanceChildWriteOffset reserves the next n positions in Children[0].
func (v *Vector) AdvanceChildWriteOffset(n uint32) { v.childCursor += n }

// SetListEntry records the {offset,size} pair for a LIST/MAP position,
// pointing into Children[0].
func (v *Vector) SetListEntry(pos uint32, offset, size uint32) {
	v.listOff[pos] = offset
	v.listLen[pos] = size
}

// ListEntry returns the {offset,size} pair written by SetListEntry.
func (v *Vector) ListEntry(pos uint32) (offset, size uint32) {
	return v.listOff[pos], v.listLen[pos]
}

// GetRaw exposes position pos's fixed-width byte window for serialization
// consumers (column chunk flush); the bytes are already little-endian.
// Only valid for fixed-width physical types.
func (v *Vector) GetRaw(pos uint32) []byte { return v.fixedSlice(pos) }

// fixedSlice returns the byte window for position pos in a fixed-width
// vector, for use by the typed accessors in accessors.go.
func (v *Vector) fixedSlice(pos uint32) []byte {
	w := v.Type.Width()
	return v.fixed[int(pos)*w : int(pos)*w+w]
}
