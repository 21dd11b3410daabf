package exec

import (
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/types"
)

// Store is the narrow read/write surface exec needs from internal/storage,
// the same decoupling planner.Stats uses to let a package be built and
// tested ahead of the storage layer it will eventually run against. A node
// or rel id here is an offset local to its label; callers outside this
// package carry the label alongside the id.
type Store interface {
	// NodeCount returns the number of materialized nodes for labelID.
	NodeCount(labelID int32) uint64
	// RelCount returns the number of materialized rels for relLabelID.
	RelCount(relLabelID int32) uint64

	// ReadNodeProperty copies node nodeID's ordinal-th property of labelID
	// into out at pos, including null state.
	ReadNodeProperty(labelID int32, ordinal int, nodeID uint64, out *types.Vector, pos uint32)
	// ReadRelProperty copies rel relID's ordinal-th property of relLabelID
	// into out at pos, including null state.
	ReadRelProperty(relLabelID int32, ordinal int, relID uint64, out *types.Vector, pos uint32)

	// WriteNodeProperty writes in[pos] into node nodeID's ordinal-th
	// property column chunk (the SET operator's node-property path).
	WriteNodeProperty(labelID int32, ordinal int, nodeID uint64, in *types.Vector, pos uint32)
	// WriteRelProperty writes in[pos] into rel relID's ordinal-th property
	// column chunk (the SET operator's rel-property path).
	WriteRelProperty(relLabelID int32, ordinal int, relID uint64, in *types.Vector, pos uint32)

	// Adjacency returns the rel ids and neighbor node ids CSR-adjacent to
	// nodeID across relLabelID in direction dir, sliced out of the packed
	// CSR by offset/length.
	Adjacency(relLabelID int32, dir catalog.Direction, nodeID uint64) (relIDs, nbrIDs []uint64)
}

// CSVSource is the narrow surface the LOAD CSV operator needs from
// internal/csvload's block-based parallel scanner, the
// same decoupling Store gives SCAN_NODE_ID/SCAN_PROPERTY/EXTEND ahead of
// internal/storage.
type CSVSource interface {
	// OpenCSV opens path for reading, honoring withHeaders by skipping (not
	// yielding) the first line rather than exposing it as data.
	OpenCSV(path string, withHeaders bool) (CSVReader, error)
}

// CSVReader yields successive raw string rows of an open CSV file.
type CSVReader interface {
	// ReadRow returns the next row's fields, or ok=false once exhausted.
	ReadRow() (fields []string, ok bool, err error)
	// HandleRowError reports a conversion failure on the row ReadRow last
	// returned. A nil result means the row was recorded as a warning and
	// the caller should skip it; otherwise the returned error (carrying
	// file, line number, and the reconstructed line) aborts the scan.
	HandleRowError(cause error) error
	Close() error
}

// BulkLoader is the narrow surface CopyNode/RelBatchInsert need from
// internal/storage's bulk-copy machinery. The exec
// operators here are thin: they drain an input pipeline and hand completed
// batches to the loader, which owns the node-group/CSR accumulation, the
// primary-key index, and the WAL record.
type BulkLoader interface {
	// LoadNodeBatch appends one batch of node rows (one vector per declared
	// column, in schema order) for labelID, returning the row count
	// inserted or an error (e.g. existedPKException).
	LoadNodeBatch(labelID int32, cols []*types.Vector, sel *types.SelectionVector) (int, error)
	// LoadRelBatch appends one batch of rel rows {boundNode, nbrNode,
	// ...props} for relLabelID in direction dir.
	LoadRelBatch(relLabelID int32, dir catalog.Direction, cols []*types.Vector, sel *types.SelectionVector) (int, error)
	// Finalize seals a bulk copy into relLabelID/labelID, returning the
	// total row count copied for the "<N> tuples have been copied" message.
	Finalize(labelID int32, isRel bool) (int64, error)
}
