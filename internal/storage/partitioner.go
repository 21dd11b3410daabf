package storage

import (
	"sort"
	"sync"

	"github.com/dreamware/cyq/internal/types"
)

// ChunkedGroup is one append-only columnar chunk of rel tuples awaiting
// CSR assembly: column 0 is the bound-node offset, column 1 the neighbor
// offset, the rest the rel properties in ordinal order.
type ChunkedGroup struct {
	cols []*ColumnChunk
}

func newChunkedGroup(propTypes []types.LogicalType, capacity int) *ChunkedGroup {
	g := &ChunkedGroup{}
	g.cols = append(g.cols, NewColumnChunk(types.InternalID(), capacity))
	g.cols = append(g.cols, NewColumnChunk(types.InternalID(), capacity))
	for _, t := range propTypes {
		g.cols = append(g.cols, NewColumnChunk(t, capacity))
	}
	return g
}

// NumRows returns the tuple count.
func (g *ChunkedGroup) NumRows() int { return g.cols[0].NumValues() }

// Bound returns row i's bound-node offset.
func (g *ChunkedGroup) Bound(i int) uint64 { return uint64(g.cols[0].Vector().GetInt64(uint32(i))) }

// partition accumulates one bound-node-group's contributions. The
// partitioner exclusively owns the chunks until Drain hands them to the
// CSR builder.
type partition struct {
	mu     sync.Mutex
	groups []*ChunkedGroup
}

// NodeGroupPartitioner groups incoming rel tuples by the node group of
// their bound node, so each partition can be assembled into a packed CSR
// independently. Shard-style assignment: the partition for an offset is a
// pure function of the offset, so concurrent appenders never rebalance.
type NodeGroupPartitioner struct {
	groupSize int
	propTypes []types.LogicalType
	chunkCap  int

	mu    sync.RWMutex
	parts map[uint64]*partition
}

// NewNodeGroupPartitioner builds a partitioner for tuples whose rel
// properties have the given types.
func NewNodeGroupPartitioner(groupSize int, propTypes []types.LogicalType) *NodeGroupPartitioner {
	return &NodeGroupPartitioner{
		groupSize: groupSize,
		propTypes: propTypes,
		chunkCap:  types.DefaultVectorCapacity,
		parts:     make(map[uint64]*partition),
	}
}

// Append routes one tuple to its bound-node-group partition. bound and nbr
// are node offsets; props[i][pos] is the i-th rel property.
func (p *NodeGroupPartitioner) Append(bound, nbr uint64, props []*types.Vector, pos uint32) error {
	part := p.partitionFor(bound / uint64(p.groupSize))

	part.mu.Lock()
	defer part.mu.Unlock()
	var g *ChunkedGroup
	if n := len(part.groups); n > 0 && !part.groups[n-1].cols[0].Full() {
		g = part.groups[n-1]
	} else {
		g = newChunkedGroup(p.propTypes, p.chunkCap)
		part.groups = append(part.groups, g)
	}
	if err := g.cols[0].AppendInt64(int64(bound)); err != nil {
		return err
	}
	if err := g.cols[1].AppendInt64(int64(nbr)); err != nil {
		return err
	}
	for i, pv := range props {
		if err := g.cols[2+i].Append(pv, pos); err != nil {
			return err
		}
	}
	return nil
}

func (p *NodeGroupPartitioner) partitionFor(groupIdx uint64) *partition {
	p.mu.RLock()
	part, ok := p.parts[groupIdx]
	p.mu.RUnlock()
	if ok {
		return part
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if part, ok = p.parts[groupIdx]; ok {
		return part
	}
	part = &partition{}
	p.parts[groupIdx] = part
	return part
}

// Drain transfers ownership of every partition's chunks to the caller and
// resets the partitioner. Keys are bound node-group indices, ascending.
func (p *NodeGroupPartitioner) Drain() (indices []uint64, chunks map[uint64][]*ChunkedGroup) {
	p.mu.Lock()
	parts := p.parts
	p.parts = make(map[uint64]*partition)
	p.mu.Unlock()

	chunks = make(map[uint64][]*ChunkedGroup, len(parts))
	for idx, part := range parts {
		part.mu.Lock()
		chunks[idx] = part.groups
		part.groups = nil
		part.mu.Unlock()
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices, chunks
}
