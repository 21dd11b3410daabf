package exec

import (
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// ScanProperty is the SCAN_NODE_PROPERTY / SCAN_REL_PROPERTY operator:
// for each id-vector position in its child, fetch the
// property value from the column chunk of its node/rel group.
type ScanProperty struct {
	child    Operator
	store    Store
	labelID  int32
	ordinal  int
	isRel    bool
	idColumn string
	outType  types.LogicalType
	outName  string
}

func NewScanProperty(child Operator, store Store, labelID int32, ordinal int, isRel bool, idColumn, outName string, outType types.LogicalType) *ScanProperty {
	return &ScanProperty{child: child, store: store, labelID: labelID, ordinal: ordinal, isRel: isRel, idColumn: idColumn, outName: outName, outType: outType}
}

func (s *ScanProperty) Schema() []string { return append(s.child.Schema(), s.outName) }

func (s *ScanProperty) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	in := &DataChunk{}
	ok, err := s.child.Next(ctx, in)
	if err != nil || !ok {
		return ok, err
	}
	if ctx.Interrupted() {
		return false, cyqerr.Newf(cyqerr.KindRuntime, "query interrupted")
	}
	idVec := in.Vector(s.idColumn)
	if idVec == nil {
		return false, cyqerr.Newf(cyqerr.KindRuntime, "id column %q not found for property scan", s.idColumn)
	}

	fresh := &DataChunk{
		Schema:    append(append([]string{}, in.Schema...), s.outName),
		Vectors:   append(append([]*types.Vector{}, in.Vectors...), types.NewVector(s.outType, idVec.Capacity())),
		Selection: in.Selection,
		Count:     in.Count,
	}
	propVec := fresh.Vectors[len(fresh.Vectors)-1]
	for i := 0; i < in.Selection.Count; i++ {
		pos := in.Selection.At(i)
		id := uint64(idVec.GetInt64(pos))
		if s.isRel {
			s.store.ReadRelProperty(s.labelID, s.ordinal, id, propVec, pos)
		} else {
			s.store.ReadNodeProperty(s.labelID, s.ordinal, id, propVec, pos)
		}
	}
	*out = *fresh
	return true, nil
}
