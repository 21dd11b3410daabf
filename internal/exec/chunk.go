package exec

import "github.com/dreamware/cyq/internal/types"

// DataChunk is the factorized working unit a pipeline passes between
// operators: a set of vectors sharing one selection
// vector, plus the column names addressing them. Schema utilities enforce
// "at most one unflat group" per chunk; this implementation represents
// that as a single shared Selection rather than per-vector selections, so
// the constraint holds by construction rather than by separate check.
type DataChunk struct {
	Schema    []string
	Vectors   []*types.Vector
	Selection *types.SelectionVector
	Count     int
}

// NewDataChunk allocates a chunk with one vector per (name, type) pair.
func NewDataChunk(names []string, vtypes []types.LogicalType, capacity int) *DataChunk {
	vecs := make([]*types.Vector, len(names))
	for i, t := range vtypes {
		vecs[i] = types.NewVector(t, capacity)
	}
	return &DataChunk{Schema: append([]string{}, names...), Vectors: vecs}
}

// ColumnIndex returns the position of name in Schema, or -1.
func (c *DataChunk) ColumnIndex(name string) int {
	for i, n := range c.Schema {
		if n == name {
			return i
		}
	}
	return -1
}

// Vector returns the vector bound to name, or nil.
func (c *DataChunk) Vector(name string) *types.Vector {
	i := c.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	return c.Vectors[i]
}

// Reset clears every vector and reinstates a full sequential selection over
// n logical rows, ready for the next batch.
func (c *DataChunk) Reset(n int) {
	for _, v := range c.Vectors {
		v.Reset()
	}
	c.Selection = types.NewSequentialSelection(n)
	c.Count = n
}

// AddColumn appends a new vector to the chunk (used by SCAN_PROPERTY and
// PROJECTION, which grow a chunk's schema as they materialize columns).
func (c *DataChunk) AddColumn(name string, v *types.Vector) {
	c.Schema = append(c.Schema, name)
	c.Vectors = append(c.Vectors, v)
}

// Narrow replaces the chunk's Selection with sel, the effect of FILTER
// pruning the selection vector of its input data chunk (FILTER
// 4.G) without touching any vector's own storage.
func (c *DataChunk) Narrow(sel *types.SelectionVector) {
	c.Selection = sel
	c.Count = sel.Count
}
