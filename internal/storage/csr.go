package storage

import (
	"math"

	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// CSRGroup is the packed adjacency of one (rel table, direction,
// bound-node group): a header of per-node offsets and lengths plus
// contiguous data chunks for neighbor offsets and rel properties. The
// header keeps the sentinel offsets[n] equal to the data chunk length, and
// offsets[i]+lengths[i] <= offsets[i+1] always holds — the slack between a
// node's list and the next node's start is the gap bulk ingest leaves so a
// later single-rel insertion can land without rewriting the chunk.
type CSRGroup struct {
	NodeGroupIdx uint64

	offsets []uint64 // len = numNodes+1, offsets[numNodes] is the sentinel
	lengths []uint64 // len = numNodes

	nbr   *ColumnChunk
	props []*ColumnChunk
}

// NumNodes returns how many bound nodes the group covers.
func (g *CSRGroup) NumNodes() int { return len(g.lengths) }

// Len returns the data chunk length (slots, including interior gaps).
func (g *CSRGroup) Len() uint64 { return g.offsets[len(g.offsets)-1] }

// NumRels returns the number of stored rels (sum of lengths, no gaps).
func (g *CSRGroup) NumRels() uint64 {
	var n uint64
	for _, l := range g.lengths {
		n += l
	}
	return n
}

// Slice returns the slot range holding node offsetInGroup's rels.
func (g *CSRGroup) Slice(offsetInGroup uint64) (start, count uint64) {
	return g.offsets[offsetInGroup], g.lengths[offsetInGroup]
}

// Header exposes the offset and length arrays for invariant checks.
func (g *CSRGroup) Header() (offsets, lengths []uint64) { return g.offsets, g.lengths }

// Neighbor returns the neighbor node offset stored in slot.
func (g *CSRGroup) Neighbor(slot uint64) uint64 {
	return uint64(g.nbr.Vector().GetInt64(uint32(slot)))
}

// Prop returns the data chunk of the ordinal-th rel property.
func (g *CSRGroup) Prop(ordinal int) *ColumnChunk { return g.props[ordinal] }

// CheckInvariant verifies the packed-CSR header shape: monotone offsets
// with room for every length, and the end sentinel equal to the chunk
// length.
func (g *CSRGroup) CheckInvariant() error {
	n := len(g.lengths)
	for i := 0; i < n; i++ {
		if g.offsets[i]+g.lengths[i] > g.offsets[i+1] {
			return cyqerr.Newf(cyqerr.KindInternal,
				"csr header violation at node %d: offset %d + length %d > next offset %d",
				i, g.offsets[i], g.lengths[i], g.offsets[i+1])
		}
	}
	if want := uint64(g.nbr.NumValues()); g.offsets[n] != want {
		return cyqerr.Newf(cyqerr.KindInternal,
			"csr sentinel %d does not match chunk length %d", g.offsets[n], want)
	}
	return nil
}

// csrSlots applies the gap policy: a node's list gets ceil(length /
// PackedCSRDensity) slots, and an empty list still gets one gap slot.
func csrSlots(length uint64) uint64 {
	if length == 0 {
		return 1
	}
	return uint64(math.Ceil(float64(length) / types.PackedCSRDensity))
}

// buildCSRGroup assembles one partition's chunked tuples into a packed
// CSR. numNodes is how many bound nodes live in this node group; single
// rejects any bound node with more than one rel. Tuples' bound offsets are
// translated to offsets within the group here.
func buildCSRGroup(nodeGroupIdx uint64, numNodes int, groupSize int, tuples []*ChunkedGroup,
	propTypes []types.LogicalType, single bool, tableName string) (*CSRGroup, error) {

	g := &CSRGroup{
		NodeGroupIdx: nodeGroupIdx,
		offsets:      make([]uint64, numNodes+1),
		lengths:      make([]uint64, numNodes),
	}
	base := nodeGroupIdx * uint64(groupSize)

	// Pass 1: count each bound node's rels and enforce multiplicity.
	for _, cg := range tuples {
		for i := 0; i < cg.NumRows(); i++ {
			in := cg.Bound(i) - base
			if in >= uint64(numNodes) {
				return nil, cyqerr.Newf(cyqerr.KindCopy,
					"bound node offset %d is beyond table %s's row count", cg.Bound(i), tableName)
			}
			g.lengths[in]++
			if single && g.lengths[in] > 1 {
				return nil, cyqerr.Newf(cyqerr.KindCopy,
					"Node with offset %d has more than one relationship in a single-multiplicity direction of table %s.",
					cg.Bound(i), tableName)
			}
		}
	}

	// Prefix-sum lengths plus gaps into the offset header. The chunk is
	// sized to the last node's list end; the trailing gap is dropped.
	var cursor uint64
	for i := 0; i < numNodes; i++ {
		g.offsets[i] = cursor
		cursor += csrSlots(g.lengths[i])
	}
	chunkLen := uint64(0)
	if numNodes > 0 {
		chunkLen = g.offsets[numNodes-1] + g.lengths[numNodes-1]
	}
	g.offsets[numNodes] = chunkLen

	// Size the data chunks and initialize to all-null.
	g.nbr = NewColumnChunk(types.InternalID(), int(chunkLen))
	if err := g.nbr.FillNull(int(chunkLen)); err != nil {
		return nil, err
	}
	for _, t := range propTypes {
		pc := NewColumnChunk(t, int(chunkLen))
		if err := pc.FillNull(int(chunkLen)); err != nil {
			return nil, err
		}
		g.props = append(g.props, pc)
	}

	// Pass 2: place each tuple at its bound node's write cursor.
	writeCursor := make([]uint64, numNodes)
	copy(writeCursor, g.offsets[:numNodes])
	nbrScratch := types.NewVector(types.InternalID(), 1)
	for _, cg := range tuples {
		for i := 0; i < cg.NumRows(); i++ {
			in := cg.Bound(i) - base
			slot := writeCursor[in]
			writeCursor[in]++
			nbrScratch.SetInt64(0, cg.cols[1].Vector().GetInt64(uint32(i)))
			if err := g.nbr.Set(nbrScratch, 0, uint32(slot)); err != nil {
				return nil, err
			}
			for p := range propTypes {
				if err := g.props[p].Set(cg.cols[2+p].Vector(), uint32(i), uint32(slot)); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, pc := range g.props {
		pc.Finalize()
	}
	g.nbr.Finalize()
	return g, nil
}
