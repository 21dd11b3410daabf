package exec

import (
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// ScanNodeID is the SCAN_NODE_ID operator: it produces
// successive node offsets in batches of DefaultVectorCapacity into one
// flat id-vector, walking each label in LabelIDs in turn.
//
// Rows from different labels share one id column with no per-row label
// tag; this is correct for the id column alone, but every downstream
// operator that resolves a property ordinal or CSR adjacency for this
// variable (ScanProperty, Extend) does so against a single label chosen at
// build time. A pattern variable with more than one possible label (no
// explicit `:Label`, multiple node tables in scope) only works correctly
// today if those tables happen to share the property/adjacency the query
// references; true per-row heterogeneous scanning needs a label vector
// threaded alongside the id vector, not yet built.
//
// Every operator in this package follows the same Next contract: it never
// assumes the *DataChunk handed to it is pre-shaped, and always populates
// it by value-assigning a freshly built chunk (`*out = *fresh`). That lets
// a plan's leaves and its cardinality-changing operators (Extend,
// Projection, HashJoin) compose without a caller having to pre-allocate
// vectors matching a schema it may not know yet.
type ScanNodeID struct {
	store    Store
	outVar   string
	labelIDs []int32

	labelIdx int
	cursor   uint64
}

func NewScanNodeID(store Store, outVar string, labelIDs []int32) *ScanNodeID {
	return &ScanNodeID{store: store, outVar: outVar, labelIDs: labelIDs}
}

func (s *ScanNodeID) Schema() []string { return []string{s.outVar} }

func (s *ScanNodeID) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if ctx.Interrupted() {
		return false, cyqerr.Newf(cyqerr.KindRuntime, "query interrupted")
	}
	for s.labelIdx < len(s.labelIDs) {
		label := s.labelIDs[s.labelIdx]
		total := s.store.NodeCount(label)
		if s.cursor >= total {
			s.labelIdx++
			s.cursor = 0
			continue
		}
		n := int(total - s.cursor)
		if n > types.DefaultVectorCapacity {
			n = types.DefaultVectorCapacity
		}
		fresh := NewDataChunk([]string{s.outVar}, []types.LogicalType{types.InternalID()}, n)
		for i := 0; i < n; i++ {
			fresh.Vectors[0].SetInt64(uint32(i), int64(s.cursor)+int64(i))
		}
		fresh.Selection = types.NewSequentialSelection(n)
		fresh.Count = n
		s.cursor += uint64(n)
		*out = *fresh
		return true, nil
	}
	return false, nil
}
