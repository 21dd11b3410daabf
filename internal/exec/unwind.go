package exec

import (
	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/types"
)

// Unwind is the UNWIND operator: evaluates a list expression per input row
// and emits one output row per element, carrying the input row's other
// columns along unchanged. Like EXTEND it multiplies cardinality, so it
// builds a fresh DataChunk rather than narrowing its input in place.
type Unwind struct {
	child Operator
	list  *binder.BoundExpr
	as    string

	schema []string
	vtypes []types.LogicalType

	in    *DataChunk
	inPos int

	elems     []any
	elemIdx   int
	srcPos    uint32
}

func NewUnwind(child Operator, list *binder.BoundExpr, as string, elemType types.LogicalType) *Unwind {
	return &Unwind{child: child, list: list, as: as, vtypes: []types.LogicalType{elemType}}
}

func (u *Unwind) Schema() []string { return append(append([]string{}, u.child.Schema()...), u.as) }

func (u *Unwind) ensureSchema(in *DataChunk) {
	if u.schema != nil {
		return
	}
	u.schema = append(append([]string{}, in.Schema...), u.as)
	vtypes := make([]types.LogicalType, len(u.schema))
	for i, v := range in.Vectors {
		vtypes[i] = v.Type
	}
	vtypes[len(u.schema)-1] = u.vtypes[0]
	u.vtypes = vtypes
}

func (u *Unwind) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	const batchCap = types.DefaultVectorCapacity
	var fresh *DataChunk
	outRow := 0

	for {
		for u.elemIdx < len(u.elems) {
			if fresh == nil {
				u.ensureSchema(u.in)
				fresh = NewDataChunk(u.schema, u.vtypes, batchCap)
			}
			if outRow >= batchCap {
				fresh.Selection = types.NewSequentialSelection(outRow)
				fresh.Count = outRow
				*out = *fresh
				return true, nil
			}
			for c := range u.in.Schema {
				if err := copyValue(u.in.Vectors[c], u.srcPos, fresh.Vectors[c], uint32(outRow)); err != nil {
					return false, err
				}
			}
			v := u.elems[u.elemIdx]
			last := fresh.Vectors[len(u.schema)-1]
			if v == nil {
				last.SetNull(uint32(outRow))
			} else if err := writeScalar(last, uint32(outRow), v); err != nil {
				return false, err
			}
			outRow++
			u.elemIdx++
		}

		if u.in == nil || u.inPos >= u.in.Selection.Count {
			in := &DataChunk{}
			ok, err := u.child.Next(ctx, in)
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
			u.in = in
			u.inPos = 0
		}
		u.ensureSchema(u.in)

		u.srcPos = u.in.Selection.At(u.inPos)
		u.inPos++
		v, isNull, err := evalScalar(ctx, u.list, u.in, u.srcPos)
		if err != nil {
			return false, err
		}
		if isNull {
			u.elems = nil
		} else if lst, ok := v.([]any); ok {
			u.elems = lst
		} else {
			u.elems = []any{v}
		}
		u.elemIdx = 0
	}
}
