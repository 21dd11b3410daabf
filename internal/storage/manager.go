package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// Config sizes the storage layer. Built by functional options so callers
// only name what they change.
type Config struct {
	NodeGroupSize int
	FS            FileSystem
	CacheSize     int
}

// Option mutates a Config.
type Option func(*Config)

// WithNodeGroupSize overrides the node group row capacity (tests use small
// groups to exercise multi-group paths cheaply).
func WithNodeGroupSize(n int) Option { return func(c *Config) { c.NodeGroupSize = n } }

// WithFileSystem substitutes the file-system abstraction.
func WithFileSystem(fs FileSystem) Option { return func(c *Config) { c.FS = fs } }

// WithCacheSize bounds the LRU cache of re-loaded persistent node groups.
func WithCacheSize(n int) Option { return func(c *Config) { c.CacheSize = n } }

// Manager owns every table's storage for one database directory: it maps
// label ids to node/rel tables, serves the execution layer's read and
// write surface, and drives bulk copy including its WAL record.
type Manager struct {
	cfg Config
	dir string
	cat *catalog.Catalog
	wal *WAL

	cache *lru.Cache[string, *NodeGroup]

	mu    sync.RWMutex
	nodes map[int32]*NodeTable
	rels  map[int32]*RelTable
}

// Open initializes the storage layer rooted at dir against cat.
func Open(dir string, cat *catalog.Catalog, opts ...Option) (*Manager, error) {
	cfg := Config{NodeGroupSize: types.NodeGroupSize, FS: OSFileSystem{}, CacheSize: 64}
	for _, o := range opts {
		o(&cfg)
	}
	wal, err := OpenWAL(filepath.Join(dir, "wal"))
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *NodeGroup](cfg.CacheSize)
	if err != nil {
		return nil, cyqerr.Wrap(err, cyqerr.KindInternal, "building node group cache")
	}
	return &Manager{
		cfg:   cfg,
		dir:   dir,
		cat:   cat,
		wal:   wal,
		cache: cache,
		nodes: make(map[int32]*NodeTable),
		rels:  make(map[int32]*RelTable),
	}, nil
}

// Close releases the WAL.
func (m *Manager) Close() error { return m.wal.Close() }

// NodeTable returns (building lazily) the storage for a node label.
func (m *Manager) NodeTable(labelID int32) (*NodeTable, error) {
	m.mu.RLock()
	t, ok := m.nodes[labelID]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}

	schema, ok := m.cat.NodeTableByID(labelID)
	if !ok {
		return nil, cyqerr.Newf(cyqerr.KindRuntime, "node label %d has no catalog entry", labelID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok = m.nodes[labelID]; ok {
		return t, nil
	}
	t = newNodeTable(schema, m.cfg.NodeGroupSize, m.cfg.FS, filepath.Join(m.dir, "data", fmt.Sprintf("n%d", labelID)))
	t.cache = m.cache
	if err := t.openExisting(); err != nil {
		return nil, err
	}
	m.nodes[labelID] = t
	return t, nil
}

// RelTable returns (building lazily) the storage for a rel label, wiring
// its bound-table row counts and resize notifications.
func (m *Manager) RelTable(relLabelID int32) (*RelTable, error) {
	m.mu.RLock()
	t, ok := m.rels[relLabelID]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}

	schema, ok := m.cat.RelTableByID(relLabelID)
	if !ok {
		return nil, cyqerr.Newf(cyqerr.KindRuntime, "rel label %d has no catalog entry", relLabelID)
	}
	src, err := m.NodeTable(schema.SrcLabel)
	if err != nil {
		return nil, err
	}
	dst, err := m.NodeTable(schema.DstLabel)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if t, ok = m.rels[relLabelID]; ok {
		m.mu.Unlock()
		return t, nil
	}
	t = newRelTable(schema, m.cfg.NodeGroupSize, m.cfg.FS, filepath.Join(m.dir, "data", fmt.Sprintf("r%d", relLabelID)))
	t.boundRows[catalog.Fwd] = src.NumRows
	t.boundRows[catalog.Bwd] = dst.NumRows
	m.rels[relLabelID] = t
	m.mu.Unlock()

	src.RegisterResize(func(total uint64) { t.extendBound(catalog.Fwd, total) })
	dst.RegisterResize(func(total uint64) { t.extendBound(catalog.Bwd, total) })
	return t, nil
}

// NodeCount implements the execution layer's read surface.
func (m *Manager) NodeCount(labelID int32) uint64 {
	t, err := m.NodeTable(labelID)
	if err != nil {
		return 0
	}
	return t.NumRows()
}

// RelCount implements the execution layer's read surface.
func (m *Manager) RelCount(relLabelID int32) uint64 {
	t, err := m.RelTable(relLabelID)
	if err != nil {
		return 0
	}
	return t.NumRels()
}

// ReadNodeProperty copies one node property value into out at pos; lookup
// failures surface as null (the id was minted by a scan, so a miss is a
// concurrent-schema-change race, not user error).
func (m *Manager) ReadNodeProperty(labelID int32, ordinal int, nodeID uint64, out *types.Vector, pos uint32) {
	t, err := m.NodeTable(labelID)
	if err != nil {
		out.SetNull(pos)
		return
	}
	if err := t.ReadProperty(ordinal, nodeID, out, pos); err != nil {
		out.SetNull(pos)
	}
}

// ReadRelProperty copies one rel property value into out at pos.
func (m *Manager) ReadRelProperty(relLabelID int32, ordinal int, relID uint64, out *types.Vector, pos uint32) {
	t, err := m.RelTable(relLabelID)
	if err != nil {
		out.SetNull(pos)
		return
	}
	if err := t.ReadProperty(ordinal, relID, out, pos); err != nil {
		out.SetNull(pos)
	}
}

// WriteNodeProperty writes in[pos] into a node's property column chunk.
func (m *Manager) WriteNodeProperty(labelID int32, ordinal int, nodeID uint64, in *types.Vector, pos uint32) {
	t, err := m.NodeTable(labelID)
	if err != nil {
		return
	}
	_ = t.WriteProperty(ordinal, nodeID, in, pos)
}

// WriteRelProperty writes in[pos] into a rel's property column chunk.
func (m *Manager) WriteRelProperty(relLabelID int32, ordinal int, relID uint64, in *types.Vector, pos uint32) {
	t, err := m.RelTable(relLabelID)
	if err != nil {
		return
	}
	_ = t.WriteProperty(ordinal, relID, in, pos)
}

// Adjacency returns rel ids and neighbor offsets adjacent to nodeID.
func (m *Manager) Adjacency(relLabelID int32, dir catalog.Direction, nodeID uint64) (relIDs, nbrIDs []uint64) {
	t, err := m.RelTable(relLabelID)
	if err != nil {
		return nil, nil
	}
	return t.Adjacency(dir, nodeID)
}

// LoadNodeBatch implements the bulk-copy surface: the first batch for a
// label logs the WAL record and validates the copy precondition.
func (m *Manager) LoadNodeBatch(labelID int32, cols []*types.Vector, sel *types.SelectionVector) (int, error) {
	t, err := m.NodeTable(labelID)
	if err != nil {
		return 0, err
	}
	if err := m.ensureCopyBegun(t, nil, labelID); err != nil {
		return 0, err
	}
	return t.appendBatch(cols, sel)
}

// LoadRelBatch implements the bulk-copy surface for rel tables. The first
// two columns are the endpoint keys: primary-key values when the source
// file carries them (resolved here against the endpoint tables' indexes)
// or raw internal ids.
func (m *Manager) LoadRelBatch(relLabelID int32, _ catalog.Direction, cols []*types.Vector, sel *types.SelectionVector) (int, error) {
	if len(cols) < 2 {
		return 0, cyqerr.Newf(cyqerr.KindCopy, "rel copy input needs source and destination columns")
	}
	t, err := m.RelTable(relLabelID)
	if err != nil {
		return 0, err
	}
	if err := m.ensureCopyBegun(nil, t, relLabelID); err != nil {
		return 0, err
	}
	src, err := m.resolveEndpoints(t.schema.SrcLabel, cols[0], sel)
	if err != nil {
		return 0, err
	}
	dst, err := m.resolveEndpoints(t.schema.DstLabel, cols[1], sel)
	if err != nil {
		return 0, err
	}
	return t.appendBatch(src, dst, cols[2:], sel)
}

// resolveEndpoints turns a column of endpoint keys into internal node
// offsets. INTERNAL_ID columns pass through; anything else is looked up in
// the endpoint table's primary-key index.
func (m *Manager) resolveEndpoints(labelID int32, keys *types.Vector, sel *types.SelectionVector) (*types.Vector, error) {
	if keys.Type.Kind == types.INTERNAL_ID {
		return keys, nil
	}
	t, err := m.NodeTable(labelID)
	if err != nil {
		return nil, err
	}
	ix := t.PKIndex()
	if ix == nil {
		return nil, cyqerr.Newf(cyqerr.KindCopy, "table %s has a SERIAL primary key; rel copy must reference internal ids", t.schema.Name)
	}
	out := types.NewVector(types.InternalID(), keys.Capacity())
	for i := 0; i < sel.Count; i++ {
		pos := sel.At(i)
		if keys.IsNull(pos) {
			out.SetNull(pos)
			continue
		}
		off, ok := ix.Lookup(keys, pos)
		if !ok {
			return nil, cyqerr.Newf(cyqerr.KindCopy,
				"Unable to find primary key value %s in table %s.",
				formatKey(keys, pos), t.schema.Name)
		}
		out.SetInt64(pos, int64(off))
	}
	return out, nil
}

// Finalize seals a bulk copy, returning the total row count.
func (m *Manager) Finalize(labelID int32, isRel bool) (int64, error) {
	if isRel {
		t, err := m.RelTable(labelID)
		if err != nil {
			return 0, err
		}
		return t.finalizeCopy()
	}
	t, err := m.NodeTable(labelID)
	if err != nil {
		return 0, err
	}
	return t.finalizeCopy()
}

// formatKey renders an endpoint key value for error messages.
func formatKey(v *types.Vector, pos uint32) string {
	return cast.FormatValue(v, pos, cast.DefaultOptions())
}

func (m *Manager) ensureCopyBegun(nt *NodeTable, rt *RelTable, labelID int32) error {
	if nt != nil {
		nt.mu.Lock()
		begun := nt.copying
		nt.mu.Unlock()
		if begun {
			return nil
		}
		if err := m.wal.LogCopyTable(labelID, false); err != nil {
			return err
		}
		return nt.beginCopy()
	}
	rt.mu.Lock()
	begun := rt.copying
	rt.mu.Unlock()
	if begun {
		return nil
	}
	if err := m.wal.LogCopyTable(labelID, true); err != nil {
		return err
	}
	return rt.beginCopy()
}

// Stats adapts committed row counts to the planner's cardinality surface.
type Stats struct{ m *Manager }

// PlannerStats returns the cardinality view the join enumerator costs
// plans with.
func (m *Manager) PlannerStats() *Stats { return &Stats{m: m} }

// NodeCount returns the committed node count for a label.
func (s *Stats) NodeCount(labelID int32) int64 { return int64(s.m.NodeCount(labelID)) }

// RelCount returns the committed rel count for a rel label. The bound
// label and direction refine nothing today: a rel table has exactly one
// (src, dst) label pair, so its total count is already per-pair.
func (s *Stats) RelCount(relLabelID int32, _ catalog.Direction, _ int32) int64 {
	return int64(s.m.RelCount(relLabelID))
}
