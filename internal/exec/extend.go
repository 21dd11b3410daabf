package exec

import (
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// Extend is the EXTEND operator: given a bound node id
// vector, walks the adjacency for the given rel label and direction to
// produce (bound-id, rel-id, nbr-id) triples, using CSR offset/length to
// slice. Each bound row can expand into zero or more output rows, so
// Extend builds a fresh DataChunk
// rather than narrowing its input's selection vector in place.
type Extend struct {
	child       Operator
	store       Store
	relLabelIDs []int32
	dir         catalog.Direction
	fromVar     string
	relVar      string
	toVar       string

	schema []string
	vtypes []types.LogicalType

	varLen bool
	lo, hi int

	in       *DataChunk // input morsel currently being expanded
	inPos    int        // next input selection index to start expanding
	relIDs   []uint64   // the bound row at inPos-1's adjacency, in progress
	nbrIDs   []uint64
	adjCursor int
	srcPos   uint32 // the physical position in `in` the current adjacency belongs to
}

// NewExtend builds an EXTEND operator. relLabelIDs may name more than one
// rel table (a `:A|B` alternation in the pattern); adjacency across all of
// them is concatenated per bound node.
func NewExtend(child Operator, store Store, relLabelIDs []int32, dir catalog.Direction, fromVar, relVar, toVar string) *Extend {
	return &Extend{child: child, store: store, relLabelIDs: relLabelIDs, dir: dir, fromVar: fromVar, relVar: relVar, toVar: toVar}
}

// maxVarLengthHops caps an unbounded `*lo..` pattern so a cyclic graph
// cannot recurse forever.
const maxVarLengthHops = 30

// SetVarLength turns the operator into a bounded multi-hop walk: each
// output row is one path of length in [lo, hi], carrying the path's last
// rel id and its terminal neighbor. Rel-uniqueness per path keeps cycles
// finite within the bound.
func (e *Extend) SetVarLength(lo, hi int) {
	if lo < 1 {
		lo = 1
	}
	if hi < 0 || hi > maxVarLengthHops {
		hi = maxVarLengthHops
	}
	e.varLen = true
	e.lo, e.hi = lo, hi
}

// walkVarLength enumerates every path of length in [e.lo, e.hi] out of
// boundID, depth-first with per-path rel uniqueness, appending the final
// hop's rel id and terminal node per path.
func (e *Extend) walkVarLength(boundID uint64) (relIDs, nbrIDs []uint64) {
	used := make(map[uint64]bool)
	var walk func(node uint64, depth int, lastRel uint64)
	walk = func(node uint64, depth int, lastRel uint64) {
		if depth >= e.lo {
			relIDs = append(relIDs, lastRel)
			nbrIDs = append(nbrIDs, node)
		}
		if depth >= e.hi {
			return
		}
		for _, relLabelID := range e.relLabelIDs {
			rs, ns := e.store.Adjacency(relLabelID, e.dir, node)
			for i, rid := range rs {
				if used[rid] {
					continue
				}
				used[rid] = true
				walk(ns[i], depth+1, rid)
				used[rid] = false
			}
		}
	}
	walk(boundID, 0, 0)
	return relIDs, nbrIDs
}

func (e *Extend) Schema() []string {
	return append(append([]string{}, e.child.Schema()...), e.relVar, e.toVar)
}

func (e *Extend) ensureSchema(in *DataChunk) {
	if e.schema != nil {
		return
	}
	e.schema = append(append([]string{}, in.Schema...), e.relVar, e.toVar)
	e.vtypes = make([]types.LogicalType, len(e.schema))
	for i, v := range in.Vectors {
		e.vtypes[i] = v.Type
	}
	e.vtypes[len(e.schema)-2] = types.InternalID()
	e.vtypes[len(e.schema)-1] = types.InternalID()
}

func (e *Extend) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	const batchCap = types.DefaultVectorCapacity
	fresh := (*DataChunk)(nil)
	outRow := 0

	for {
		if ctx.Interrupted() {
			return false, cyqerr.Newf(cyqerr.KindRuntime, "query interrupted")
		}
		// Drain whatever is left of the row currently in progress first.
		for e.adjCursor < len(e.relIDs) {
			if fresh == nil {
				e.ensureSchema(e.in)
				fresh = NewDataChunk(e.schema, e.vtypes, batchCap)
			}
			if outRow >= batchCap {
				fresh.Selection = types.NewSequentialSelection(outRow)
				fresh.Count = outRow
				*out = *fresh
				return true, nil
			}
			for c := range e.in.Schema {
				if err := copyValue(e.in.Vectors[c], e.srcPos, fresh.Vectors[c], uint32(outRow)); err != nil {
					return false, err
				}
			}
			fresh.Vectors[len(e.schema)-2].SetInt64(uint32(outRow), int64(e.relIDs[e.adjCursor]))
			fresh.Vectors[len(e.schema)-1].SetInt64(uint32(outRow), int64(e.nbrIDs[e.adjCursor]))
			outRow++
			e.adjCursor++
		}

		// Advance to the next bound row, pulling a new input morsel if the
		// current one is exhausted.
		if e.in == nil || e.inPos >= e.in.Selection.Count {
			in := &DataChunk{}
			ok, err := e.child.Next(ctx, in)
			if err != nil {
				return false, err
			}
			if !ok {
				if outRow > 0 {
					fresh.Selection = types.NewSequentialSelection(outRow)
					fresh.Count = outRow
					*out = *fresh
					return true, nil
				}
				return false, nil
			}
			e.in = in
			e.inPos = 0
		}
		e.ensureSchema(e.in)

		fromVec := e.in.Vector(e.fromVar)
		if fromVec == nil {
			return false, cyqerr.Newf(cyqerr.KindRuntime, "EXTEND: column %q not found", e.fromVar)
		}
		e.srcPos = e.in.Selection.At(e.inPos)
		e.inPos++
		boundID := uint64(fromVec.GetInt64(e.srcPos))
		e.relIDs, e.nbrIDs = nil, nil
		if e.varLen {
			e.relIDs, e.nbrIDs = e.walkVarLength(boundID)
		} else {
			for _, relLabelID := range e.relLabelIDs {
				r, n := e.store.Adjacency(relLabelID, e.dir, boundID)
				e.relIDs = append(e.relIDs, r...)
				e.nbrIDs = append(e.nbrIDs, n...)
			}
		}
		e.adjCursor = 0
	}
}
