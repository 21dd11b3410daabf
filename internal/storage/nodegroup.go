package storage

import (
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// NodeGroup is one bounded horizontal partition of a node table: one
// column chunk per property plus the row count. A group is in-memory while
// a bulk copy fills it and immutable once finalized.
type NodeGroup struct {
	Idx    uint64
	chunks []*ColumnChunk
	n      int
	cap    int
}

// NewNodeGroup allocates an empty group of the given row capacity with one
// chunk per property, in ordinal order.
func NewNodeGroup(idx uint64, props []catalog.Property, capacity int) *NodeGroup {
	g := &NodeGroup{Idx: idx, cap: capacity}
	for _, p := range props {
		g.chunks = append(g.chunks, NewColumnChunk(p.Type, capacity))
	}
	return g
}

// NumRows returns how many rows the group holds.
func (g *NodeGroup) NumRows() int { return g.n }

// Full reports whether the group has reached capacity.
func (g *NodeGroup) Full() bool { return g.n >= g.cap }

// Chunk returns the column chunk at ordinal.
func (g *NodeGroup) Chunk(ordinal int) *ColumnChunk { return g.chunks[ordinal] }

// AppendFrom copies rows from the batch's selection, starting at selected
// index from, until the group fills or the batch is exhausted. Returns how
// many rows were appended. cols must be in property-ordinal order.
func (g *NodeGroup) AppendFrom(cols []*types.Vector, sel *types.SelectionVector, from int) (int, error) {
	if len(cols) != len(g.chunks) {
		return 0, cyqerr.Newf(cyqerr.KindInternal, "node group has %d columns, batch has %d", len(g.chunks), len(cols))
	}
	appended := 0
	for i := from; i < sel.Count && !g.Full(); i++ {
		pos := sel.At(i)
		for c, chunk := range g.chunks {
			if err := chunk.Append(cols[c], pos); err != nil {
				return appended, err
			}
		}
		g.n++
		appended++
	}
	return appended, nil
}

// Finalize seals every chunk (stats, ready to flush).
func (g *NodeGroup) Finalize() {
	for _, c := range g.chunks {
		c.Finalize()
	}
}
