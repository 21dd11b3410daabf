// Package catalog implements the schema catalog: the
// mapping from label id to table schema that the binder consults to
// resolve names and adjacency, and that DDL and bulk copy mutate. It is
// read-only during query execution — every read path here takes an RLock
// and returns copies.
package catalog

import (
	"sync"

	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// Direction names which side of a relationship table a query is walking.
type Direction uint8

const (
	Fwd Direction = iota
	Bwd
)

func (d Direction) String() string {
	if d == Fwd {
		return "FWD"
	}
	return "BWD"
}

// Multiplicity constrains how many rels of a table may touch one bound
// node in a given direction.
type Multiplicity uint8

const (
	OneToOne Multiplicity = iota
	OneToMany
	ManyToOne
	ManyToMany
)

// IsSingle reports whether dir has single-multiplicity for this
// relationship table.
func (m Multiplicity) IsSingle(dir Direction) bool {
	switch m {
	case OneToOne:
		return true
	case OneToMany:
		return dir == Bwd
	case ManyToOne:
		return dir == Fwd
	default:
		return false
	}
}

// ConflictAction is the behavior requested for a DDL statement whose
// target already exists or is missing.
type ConflictAction uint8

const (
	Fail ConflictAction = iota
	OnConflictDoNothing
)

// Property describes one column of a table schema: name, logical type,
// declaration ordinal (stable once assigned, per the append-only
// invariant) and whether it is the primary key.
type Property struct {
	Name      string
	Type      types.LogicalType
	Ordinal   int
	IsPrimary bool
}

// NodeTableSchema is a node label's schema: its properties (exactly one of
// which is the primary key) in ordinal order.
type NodeTableSchema struct {
	Name       string
	LabelID    int32
	Properties []Property
	Comment    string

	primaryOrdinal int
}

// RelTableSchema is a relationship label's schema: its properties plus the
// endpoint node labels and multiplicity.
type RelTableSchema struct {
	Name       string
	LabelID    int32
	SrcLabel   int32
	DstLabel   int32
	Multi      Multiplicity
	Properties []Property
	Comment    string
}

// Catalog is the mutable-by-DDL, read-only-during-execution schema
// store: an RWMutex-guarded map keyed by a small integer id, read paths
// returning copies so callers can't corrupt shared state.
type Catalog struct {
	mu sync.RWMutex

	nodeTables map[string]*NodeTableSchema
	relTables  map[string]*RelTableSchema
	nodeByID   map[int32]*NodeTableSchema
	relByID    map[int32]*RelTableSchema
	sequences  map[string]int64
	extensions map[string]bool

	nextNodeLabel int32
	nextRelLabel  int32
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		nodeTables: make(map[string]*NodeTableSchema),
		relTables:  make(map[string]*RelTableSchema),
		nodeByID:   make(map[int32]*NodeTableSchema),
		relByID:    make(map[int32]*RelTableSchema),
		sequences:  make(map[string]int64),
		extensions: make(map[string]bool),
	}
}

func (c *Catalog) ContainsNodeLabel(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.nodeTables[name]
	return ok
}

func (c *Catalog) ContainsRelLabel(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.relTables[name]
	return ok
}

func (c *Catalog) NodeLabelID(name string) (int32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.nodeTables[name]
	if !ok {
		return types.ANY_LABEL, false
	}
	return t.LabelID, true
}

func (c *Catalog) RelLabelID(name string) (int32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.relTables[name]
	if !ok {
		return types.ANY_LABEL, false
	}
	return t.LabelID, true
}

// PrimaryKey returns the schema's sole primary-key property.
func (t NodeTableSchema) PrimaryKey() Property {
	return t.Properties[t.primaryOrdinal]
}

// NodeTable returns a copy of the named node table schema.
func (c *Catalog) NodeTable(name string) (NodeTableSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.nodeTables[name]
	if !ok {
		return NodeTableSchema{}, false
	}
	return *t, true
}

// NodeTableByID returns a copy of the node table schema for labelID.
func (c *Catalog) NodeTableByID(labelID int32) (NodeTableSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.nodeByID[labelID]
	if !ok {
		return NodeTableSchema{}, false
	}
	return *t, true
}

// RelTable returns a copy of the named relationship table schema.
func (c *Catalog) RelTable(name string) (RelTableSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.relTables[name]
	if !ok {
		return RelTableSchema{}, false
	}
	return *t, true
}

// RelTableByID returns a copy of the relationship table schema for labelID.
func (c *Catalog) RelTableByID(labelID int32) (RelTableSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.relByID[labelID]
	if !ok {
		return RelTableSchema{}, false
	}
	return *t, true
}

// GetProperty returns the property descriptor named propertyName on the
// table named label (node or rel).
func (c *Catalog) GetProperty(label, propertyName string) (Property, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.nodeTables[label]; ok {
		return findProperty(t.Properties, propertyName)
	}
	if t, ok := c.relTables[label]; ok {
		return findProperty(t.Properties, propertyName)
	}
	return Property{}, false
}

func findProperty(props []Property, name string) (Property, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// RelsAdjacentToNodeLabel returns the rel label ids with an endpoint at
// nodeLabel in the given direction.
func (c *Catalog) RelsAdjacentToNodeLabel(nodeLabel int32, dir Direction) []int32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []int32
	for _, r := range c.relByID {
		endpoint := r.SrcLabel
		if dir == Bwd {
			endpoint = r.DstLabel
		}
		if endpoint == nodeLabel || nodeLabel == types.ANY_LABEL {
			out = append(out, r.LabelID)
		}
	}
	return out
}

// IsSingleMultiplicity reports whether relLabel has single-multiplicity in
// direction dir.
func (c *Catalog) IsSingleMultiplicity(relLabel int32, dir Direction) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.relByID[relLabel]
	if !ok {
		return false, cyqerr.Newf(cyqerr.KindInternal, "unknown rel label %d", relLabel)
	}
	return r.Multi.IsSingle(dir), nil
}

// AdjacencyExists reports whether a relationship table with relLabel
// connects srcLabel to dstLabel in the declared direction; MATCH binding
// requires the edge to exist in the catalog for the given direction.
func (c *Catalog) AdjacencyExists(relLabel, srcLabel, dstLabel int32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.relByID[relLabel]
	if !ok {
		return false
	}
	srcOK := srcLabel == types.ANY_LABEL || r.SrcLabel == srcLabel
	dstOK := dstLabel == types.ANY_LABEL || r.DstLabel == dstLabel
	return srcOK && dstOK
}

// ListTables returns every node and rel table name, for the SHOW_TABLES
// table function.
func (c *Catalog) ListTables() []TableInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]TableInfo, 0, len(c.nodeTables)+len(c.relTables))
	for _, t := range c.nodeTables {
		out = append(out, TableInfo{Name: t.Name, Type: "NODE", Comment: t.Comment})
	}
	for _, t := range c.relTables {
		out = append(out, TableInfo{Name: t.Name, Type: "REL", Comment: t.Comment})
	}
	return out
}

// TableInfo is one SHOW_TABLES row.
type TableInfo struct {
	Name    string
	Type    string
	Comment string
}

func tableExistsErr(name string) error {
	return cyqerr.Newf(cyqerr.KindBinder, "table %q already exists", name)
}

func tableMissingErr(name string) error {
	return cyqerr.Newf(cyqerr.KindBinder, "table %q does not exist", name)
}
