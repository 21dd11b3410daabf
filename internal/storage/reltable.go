package storage

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// Rel ids encode their storage address: direction bit, bound node group,
// and CSR slot. Both directions store a full copy of the rel's properties,
// so an id minted from either direction's adjacency resolves without
// consulting the other.
const (
	relIDDirShift   = 62
	relIDGroupShift = 32
	relIDSlotMask   = (1 << relIDGroupShift) - 1
)

func encodeRelID(dir catalog.Direction, groupIdx, slot uint64) uint64 {
	return uint64(dir)<<relIDDirShift | groupIdx<<relIDGroupShift | slot
}

func decodeRelID(id uint64) (dir catalog.Direction, groupIdx, slot uint64) {
	return catalog.Direction(id >> relIDDirShift),
		(id >> relIDGroupShift) & ((1 << (relIDDirShift - relIDGroupShift)) - 1),
		id & relIDSlotMask
}

// RelTable is the persistent store for one rel label: per direction, a
// packed CSR per bound-node group, plus the bulk-copy partitioners.
type RelTable struct {
	schema    catalog.RelTableSchema
	groupSize int
	fs        FileSystem
	dir       string
	propTypes []types.LogicalType

	// boundRows reports the current row count of the direction's bound
	// node table (FWD: source label, BWD: destination label), installed by
	// the Manager when the table is registered.
	boundRows [2]func() uint64

	mu      sync.Mutex
	csr     [2]map[uint64]*CSRGroup
	parts   [2]*NodeGroupPartitioner
	numRels uint64
	copying bool
}

func newRelTable(schema catalog.RelTableSchema, groupSize int, fs FileSystem, dir string) *RelTable {
	t := &RelTable{schema: schema, groupSize: groupSize, fs: fs, dir: dir}
	for _, p := range schema.Properties {
		t.propTypes = append(t.propTypes, p.Type)
	}
	t.csr[catalog.Fwd] = make(map[uint64]*CSRGroup)
	t.csr[catalog.Bwd] = make(map[uint64]*CSRGroup)
	return t
}

// Schema returns the table's catalog schema.
func (t *RelTable) Schema() catalog.RelTableSchema { return t.schema }

// NumRels returns the committed rel count.
func (t *RelTable) NumRels() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numRels
}

// CSRGroups returns the direction's built groups, for invariant checks.
func (t *RelTable) CSRGroups(dir catalog.Direction) []*CSRGroup {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*CSRGroup, 0, len(t.csr[dir]))
	for _, g := range t.csr[dir] {
		out = append(out, g)
	}
	return out
}

func (t *RelTable) beginCopy() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.numRels > 0 {
		return cyqerr.Newf(cyqerr.KindCopy, "Bulk copy into non-empty table %s is not supported.", t.schema.Name)
	}
	t.copying = true
	t.parts[catalog.Fwd] = NewNodeGroupPartitioner(t.groupSize, t.propTypes)
	t.parts[catalog.Bwd] = NewNodeGroupPartitioner(t.groupSize, t.propTypes)
	return nil
}

// appendBatch routes one batch of {src, dst, ...props} tuples into both
// directions' partitioners: FWD bound by source, BWD bound by
// destination.
func (t *RelTable) appendBatch(src, dst *types.Vector, props []*types.Vector, sel *types.SelectionVector) (int, error) {
	t.mu.Lock()
	fwd, bwd := t.parts[catalog.Fwd], t.parts[catalog.Bwd]
	t.mu.Unlock()
	if fwd == nil {
		return 0, cyqerr.Newf(cyqerr.KindInternal, "rel batch append outside a copy into %s", t.schema.Name)
	}
	for i := 0; i < sel.Count; i++ {
		pos := sel.At(i)
		if src.IsNull(pos) || dst.IsNull(pos) {
			return i, cyqerr.Newf(cyqerr.KindCopy, "relationship endpoints may not be null in table %s", t.schema.Name)
		}
		s := uint64(src.GetInt64(pos))
		d := uint64(dst.GetInt64(pos))
		if err := fwd.Append(s, d, props, pos); err != nil {
			return i, err
		}
		if err := bwd.Append(d, s, props, pos); err != nil {
			return i, err
		}
	}
	return sel.Count, nil
}

// finalizeCopy assembles both directions' partitions into packed CSR
// groups, FWD first, BWD last. Partitions of one direction build and flush
// in parallel; each worker owns its partition's chunks exclusively.
func (t *RelTable) finalizeCopy() (int64, error) {
	t.mu.Lock()
	fwd, bwd := t.parts[catalog.Fwd], t.parts[catalog.Bwd]
	t.parts[catalog.Fwd], t.parts[catalog.Bwd] = nil, nil
	t.mu.Unlock()
	if fwd == nil {
		return 0, cyqerr.Newf(cyqerr.KindInternal, "copy finalize without a begun copy into %s", t.schema.Name)
	}

	for _, d := range []catalog.Direction{catalog.Fwd, catalog.Bwd} {
		part := fwd
		if d == catalog.Bwd {
			part = bwd
		}
		if err := t.buildDirection(d, part); err != nil {
			return 0, err
		}
	}

	t.mu.Lock()
	var total uint64
	for _, g := range t.csr[catalog.Fwd] {
		total += g.NumRels()
	}
	t.numRels = total
	t.copying = false
	t.mu.Unlock()
	return int64(total), nil
}

func (t *RelTable) buildDirection(d catalog.Direction, part *NodeGroupPartitioner) error {
	indices, chunks := part.Drain()
	boundTotal := uint64(0)
	if t.boundRows[d] != nil {
		boundTotal = t.boundRows[d]()
	}
	single := t.schema.Multi.IsSingle(d)

	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	var mu sync.Mutex
	for _, idx := range indices {
		idx := idx
		tuples := chunks[idx]
		eg.Go(func() error {
			numNodes := 0
			if boundTotal > idx*uint64(t.groupSize) {
				have := boundTotal - idx*uint64(t.groupSize)
				if have > uint64(t.groupSize) {
					have = uint64(t.groupSize)
				}
				numNodes = int(have)
			}
			g, err := buildCSRGroup(idx, numNodes, t.groupSize, tuples, t.propTypes, single, t.schema.Name)
			if err != nil {
				return err
			}
			if err := g.CheckInvariant(); err != nil {
				return err
			}
			if err := t.flushCSRGroup(d, g); err != nil {
				return err
			}
			mu.Lock()
			t.csr[d][idx] = g
			mu.Unlock()
			return nil
		})
	}
	return eg.Wait()
}

// flushCSRGroup writes a built group's header and data chunks to disk.
func (t *RelTable) flushCSRGroup(d catalog.Direction, g *CSRGroup) error {
	header := make([]byte, 0, (len(g.offsets)+len(g.lengths))*8)
	header = appendUint64s(header, g.offsets)
	header = appendUint64s(header, g.lengths)
	if err := t.fs.WriteFile(t.csrPath(d, g.NodeGroupIdx, "hdr"), header); err != nil {
		return cyqerr.Wrap(err, cyqerr.KindIO, "flushing csr header")
	}
	data, err := g.nbr.Serialize()
	if err != nil {
		return err
	}
	if err := t.fs.WriteFile(t.csrPath(d, g.NodeGroupIdx, "nbr"), data); err != nil {
		return cyqerr.Wrap(err, cyqerr.KindIO, "flushing csr neighbors")
	}
	for p, pc := range g.props {
		data, err := pc.Serialize()
		if err != nil {
			return err
		}
		if err := t.fs.WriteFile(t.csrPath(d, g.NodeGroupIdx, fmt.Sprintf("p%d", p)), data); err != nil {
			return cyqerr.Wrap(err, cyqerr.KindIO, "flushing csr property chunk")
		}
	}
	return nil
}

func (t *RelTable) csrPath(d catalog.Direction, groupIdx uint64, part string) string {
	return filepath.Join(t.dir, fmt.Sprintf("%s.g%d.%s.col", d, groupIdx, part))
}

// Adjacency returns the rel ids and neighbor offsets adjacent to nodeID in
// direction d, sliced out of the node's CSR range.
func (t *RelTable) Adjacency(d catalog.Direction, nodeID uint64) (relIDs, nbrIDs []uint64) {
	groupIdx := nodeID / uint64(t.groupSize)
	t.mu.Lock()
	g := t.csr[d][groupIdx]
	t.mu.Unlock()
	if g == nil {
		return nil, nil
	}
	in := nodeID % uint64(t.groupSize)
	if in >= uint64(g.NumNodes()) {
		return nil, nil
	}
	start, count := g.Slice(in)
	for slot := start; slot < start+count; slot++ {
		relIDs = append(relIDs, encodeRelID(d, groupIdx, slot))
		nbrIDs = append(nbrIDs, g.Neighbor(slot))
	}
	return relIDs, nbrIDs
}

// ReadProperty copies rel relID's ordinal-th property into out at pos.
func (t *RelTable) ReadProperty(ordinal int, relID uint64, out *types.Vector, pos uint32) error {
	d, groupIdx, slot := decodeRelID(relID)
	t.mu.Lock()
	g := t.csr[d][groupIdx]
	t.mu.Unlock()
	if g == nil {
		return cyqerr.Newf(cyqerr.KindInternal, "rel id %d addresses a missing csr group", relID)
	}
	return g.Prop(ordinal).CopyInto(uint32(slot), out, pos)
}

// WriteProperty overwrites rel relID's ordinal-th property from in[pos].
// The property is written to the addressed direction's chunk and mirrored
// into the sibling direction so both copies agree.
func (t *RelTable) WriteProperty(ordinal int, relID uint64, in *types.Vector, pos uint32) error {
	d, groupIdx, slot := decodeRelID(relID)
	t.mu.Lock()
	g := t.csr[d][groupIdx]
	t.mu.Unlock()
	if g == nil {
		return cyqerr.Newf(cyqerr.KindInternal, "rel id %d addresses a missing csr group", relID)
	}
	pc := g.Prop(ordinal)
	pc.sealed = false
	err := pc.Set(in, pos, uint32(slot))
	pc.sealed = true
	if err != nil {
		return err
	}
	return t.mirrorWrite(d, g, slot, ordinal, in, pos)
}

// mirrorWrite locates the same rel in the opposite direction (by matching
// bound/neighbor pair and walking the neighbor's list) and applies the
// write there too.
func (t *RelTable) mirrorWrite(d catalog.Direction, g *CSRGroup, slot uint64, ordinal int, in *types.Vector, pos uint32) error {
	// Recover the bound node for slot by scanning the header range it
	// falls into.
	var bound uint64
	for i := 0; i < g.NumNodes(); i++ {
		start, count := g.Slice(uint64(i))
		if slot >= start && slot < start+count {
			bound = g.NodeGroupIdx*uint64(t.groupSize) + uint64(i)
			break
		}
	}
	nbr := g.Neighbor(slot)
	other := catalog.Bwd
	if d == catalog.Bwd {
		other = catalog.Fwd
	}
	t.mu.Lock()
	og := t.csr[other][nbr/uint64(t.groupSize)]
	t.mu.Unlock()
	if og == nil {
		return nil
	}
	start, count := og.Slice(nbr % uint64(t.groupSize))
	for s := start; s < start+count; s++ {
		if og.Neighbor(s) == bound {
			pc := og.Prop(ordinal)
			pc.sealed = false
			err := pc.Set(in, pos, uint32(s))
			pc.sealed = true
			return err
		}
	}
	return nil
}

// extendBound pads each existing CSR group's header when the bound node
// table grows past it, so every live node offset has a header entry. New
// nodes get empty lists pointing at the chunk end; the chunk itself is not
// resized.
func (t *RelTable) extendBound(d catalog.Direction, totalRows uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for idx, g := range t.csr[d] {
		covered := totalRows - idx*uint64(t.groupSize)
		if covered > uint64(t.groupSize) {
			covered = uint64(t.groupSize)
		}
		for uint64(g.NumNodes()) < covered {
			end := g.offsets[len(g.offsets)-1]
			g.lengths = append(g.lengths, 0)
			g.offsets = append(g.offsets, end)
			g.offsets[len(g.offsets)-2] = end
		}
	}
}

func appendUint64s(dst []byte, xs []uint64) []byte {
	for _, x := range xs {
		dst = append(dst,
			byte(x), byte(x>>8), byte(x>>16), byte(x>>24),
			byte(x>>32), byte(x>>40), byte(x>>48), byte(x>>56))
	}
	return dst
}
