package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// NodeTable is the persistent store for one node label: a list of node
// groups, the primary-key index, and the bulk-copy accumulator. A node
// offset decomposes uniquely into (group index, offset in group).
type NodeTable struct {
	schema    catalog.NodeTableSchema
	groupSize int
	fs        FileSystem
	dir       string

	// cache holds node groups re-loaded from disk, shared across the
	// manager's tables so repeated scans don't re-read and re-decompress
	// the same chunks.
	cache *lru.Cache[string, *NodeGroup]

	mu      sync.Mutex
	groups  []*NodeGroup
	shared  *NodeGroup // bulk-copy accumulator, guarded by mu
	numRows uint64
	copying bool

	pk *PrimaryKeyIndex // nil for SERIAL primary keys

	// onResize callbacks run after a copy commits, so rel tables bound to
	// this label can size their CSR structures to the new max offset.
	onResize []func(totalRows uint64)
}

// newNodeTable builds an empty table rooted at dir.
func newNodeTable(schema catalog.NodeTableSchema, groupSize int, fs FileSystem, dir string) *NodeTable {
	t := &NodeTable{schema: schema, groupSize: groupSize, fs: fs, dir: dir}
	if pk := schema.PrimaryKey(); pk.Type.Kind != types.SERIAL {
		t.pk = NewPrimaryKeyIndex(pk.Type.Kind)
	}
	return t
}

// Schema returns the table's catalog schema.
func (t *NodeTable) Schema() catalog.NodeTableSchema { return t.schema }

// NumRows returns the committed row count.
func (t *NodeTable) NumRows() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numRows
}

// PKIndex exposes the primary-key index, nil for SERIAL tables.
func (t *NodeTable) PKIndex() *PrimaryKeyIndex { return t.pk }

// RegisterResize adds a callback invoked when a copy commits.
func (t *NodeTable) RegisterResize(fn func(totalRows uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResize = append(t.onResize, fn)
}

// beginCopy validates the bulk-copy precondition: the table must be empty.
func (t *NodeTable) beginCopy() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.numRows > 0 || len(t.groups) > 0 {
		return cyqerr.Newf(cyqerr.KindCopy, "Bulk copy into non-empty table %s is not supported.", t.schema.Name)
	}
	t.copying = true
	return nil
}

// appendBatch feeds one batch of rows into the shared accumulator,
// flushing each group that fills. cols are in property-ordinal order.
func (t *NodeTable) appendBatch(cols []*types.Vector, sel *types.SelectionVector) (int, error) {
	done := 0
	total := sel.Count
	for done < total {
		t.mu.Lock()
		if t.shared == nil {
			t.shared = NewNodeGroup(uint64(len(t.groups)), t.schema.Properties, t.groupSize)
		}
		g := t.shared
		n, err := g.AppendFrom(cols, sel, done)
		if err != nil {
			t.mu.Unlock()
			return done, err
		}
		done += n
		var full *NodeGroup
		if g.Full() {
			full = g
			t.shared = nil
			t.groups = append(t.groups, full)
		}
		t.mu.Unlock()

		if full != nil {
			if err := t.flushGroup(full); err != nil {
				return done, err
			}
		}
	}
	return done, nil
}

// flushGroup finalizes a full group, indexes its primary keys under the
// index lock, and writes its chunks to disk. Chunk finalization and file
// writes run without holding the table mutex.
func (t *NodeTable) flushGroup(g *NodeGroup) error {
	g.Finalize()
	if t.pk != nil {
		pkOrdinal := t.schema.PrimaryKey().Ordinal
		base := g.Idx * uint64(t.groupSize)
		if err := t.pk.AppendChunk(g.Chunk(pkOrdinal), base); err != nil {
			return err
		}
	}
	for c, chunk := range g.chunks {
		data, err := chunk.Serialize()
		if err != nil {
			return err
		}
		if err := t.fs.WriteFile(t.chunkPath(c, g.Idx), data); err != nil {
			return cyqerr.Wrap(err, cyqerr.KindIO, "flushing node group chunk")
		}
	}
	return nil
}

// finalizeCopy seals the partial shared group, commits the total row
// count, persists table metadata, and notifies resize listeners.
func (t *NodeTable) finalizeCopy() (int64, error) {
	t.mu.Lock()
	partial := t.shared
	t.shared = nil
	if partial != nil && partial.NumRows() > 0 {
		t.groups = append(t.groups, partial)
	} else {
		partial = nil
	}
	t.mu.Unlock()

	if partial != nil {
		if err := t.flushGroup(partial); err != nil {
			return 0, err
		}
	}

	t.mu.Lock()
	var total uint64
	for _, g := range t.groups {
		total += uint64(g.NumRows())
	}
	t.numRows = total
	t.copying = false
	listeners := append([]func(uint64){}, t.onResize...)
	t.mu.Unlock()

	if err := t.writeMeta(); err != nil {
		return 0, err
	}
	for _, fn := range listeners {
		fn(total)
	}
	return int64(total), nil
}

// group returns the group at index idx, loading it from disk if it is not
// resident.
func (t *NodeTable) group(idx uint64) (*NodeGroup, error) {
	t.mu.Lock()
	if idx < uint64(len(t.groups)) && t.groups[idx] != nil {
		g := t.groups[idx]
		t.mu.Unlock()
		return g, nil
	}
	t.mu.Unlock()
	return t.loadGroup(idx)
}

// loadGroup reads a flushed group's chunks back from disk, going through
// the shared LRU cache when one is installed.
func (t *NodeTable) loadGroup(idx uint64) (*NodeGroup, error) {
	key := fmt.Sprintf("n%d.g%d", t.schema.LabelID, idx)
	if t.cache != nil {
		if g, ok := t.cache.Get(key); ok {
			return g, nil
		}
	}
	g := &NodeGroup{Idx: idx, cap: t.groupSize}
	for c, p := range t.schema.Properties {
		data, release, err := t.fs.OpenMmap(t.chunkPath(c, idx))
		if err != nil {
			return nil, cyqerr.Wrap(err, cyqerr.KindIO, "reading node group chunk")
		}
		chunk, derr := DeserializeColumnChunk(p.Type, data)
		release()
		if derr != nil {
			return nil, derr
		}
		g.chunks = append(g.chunks, chunk)
	}
	if len(g.chunks) > 0 {
		g.n = g.chunks[0].NumValues()
	}
	if t.cache != nil {
		t.cache.Add(key, g)
	}
	return g, nil
}

// ReadProperty copies node nodeID's ordinal-th property into out at pos.
func (t *NodeTable) ReadProperty(ordinal int, nodeID uint64, out *types.Vector, pos uint32) error {
	g, err := t.group(nodeID / uint64(t.groupSize))
	if err != nil {
		return err
	}
	return g.Chunk(ordinal).CopyInto(uint32(nodeID%uint64(t.groupSize)), out, pos)
}

// WriteProperty overwrites node nodeID's ordinal-th property from in[pos]
// (the SET operator's write path), then rewrites the chunk's file so the
// update survives cache eviction.
func (t *NodeTable) WriteProperty(ordinal int, nodeID uint64, in *types.Vector, pos uint32) error {
	idx := nodeID / uint64(t.groupSize)
	g, err := t.group(idx)
	if err != nil {
		return err
	}
	c := g.Chunk(ordinal)
	c.sealed = false
	err = c.Set(in, pos, uint32(nodeID%uint64(t.groupSize)))
	c.sealed = true
	if err != nil {
		return err
	}
	data, err := c.Serialize()
	if err != nil {
		return err
	}
	return t.fs.WriteFile(t.chunkPath(ordinal, idx), data)
}

func (t *NodeTable) chunkPath(columnID int, groupIdx uint64) string {
	return filepath.Join(t.dir, fmt.Sprintf("c%d.g%d.col", columnID, groupIdx))
}

func (t *NodeTable) metaPath() string { return filepath.Join(t.dir, "meta") }

func (t *NodeTable) writeMeta() error {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], t.numRows)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(t.groups)))
	return t.fs.WriteFile(t.metaPath(), buf[:])
}

// openExisting restores committed state from the meta file; groups load
// lazily, the primary-key index eagerly (it must answer lookups before any
// group is touched).
func (t *NodeTable) openExisting() error {
	data, err := t.fs.ReadFile(t.metaPath())
	if err != nil {
		return nil // never copied into; empty table
	}
	if len(data) != 16 {
		return cyqerr.Newf(cyqerr.KindIO, "corrupt node table meta for %s", t.schema.Name)
	}
	t.numRows = binary.LittleEndian.Uint64(data[0:8])
	numGroups := binary.LittleEndian.Uint64(data[8:16])
	t.groups = make([]*NodeGroup, numGroups)
	if t.pk == nil {
		return nil
	}
	pkOrdinal := t.schema.PrimaryKey().Ordinal
	for idx := uint64(0); idx < numGroups; idx++ {
		g, err := t.loadGroup(idx)
		if err != nil {
			return err
		}
		if err := t.pk.AppendChunk(g.Chunk(pkOrdinal), idx*uint64(t.groupSize)); err != nil {
			return err
		}
	}
	return nil
}
