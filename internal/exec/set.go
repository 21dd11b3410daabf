package exec

import (
	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/types"
)

// SetTarget is one `SET var.prop = expr` assignment compiled for execution.
type SetTarget struct {
	Var      string
	Property string
	IsRel    bool
	LabelID  int32
	Ordinal  int
	Type     types.LogicalType
	Value    *binder.BoundExpr
}

// Set is the SET operator: writes a scalar value into
// the node/rel property column chunk for each row. Passes every input row
// through unchanged, the way a write operator in a read-write pipeline
// does in a command-log apply path.
type Set struct {
	child   Operator
	store   Store
	targets []SetTarget
}

func NewSet(child Operator, store Store, targets []SetTarget) *Set {
	return &Set{child: child, store: store, targets: targets}
}

func (s *Set) Schema() []string { return s.child.Schema() }

func (s *Set) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	in := &DataChunk{}
	ok, err := s.child.Next(ctx, in)
	if err != nil || !ok {
		return ok, err
	}
	for _, t := range s.targets {
		idVec := in.Vector(t.Var)
		if idVec == nil {
			continue
		}
		for i := 0; i < in.Selection.Count; i++ {
			pos := in.Selection.At(i)
			id := uint64(idVec.GetInt64(pos))
			v, isNull, err := evalScalar(ctx, t.Value, in, pos)
			if err != nil {
				return false, err
			}
			// The scratch vector carries the property's own type so the
			// write lands with the column chunk's physical width, not the
			// value expression's.
			scratch := types.NewVector(t.Type, 1)
			if isNull {
				scratch.SetNull(0)
			} else if err := writeScalar(scratch, 0, v); err != nil {
				return false, err
			}
			if t.IsRel {
				s.store.WriteRelProperty(t.LabelID, t.Ordinal, id, scratch, 0)
			} else {
				s.store.WriteNodeProperty(t.LabelID, t.Ordinal, id, scratch, 0)
			}
		}
	}
	*out = *in
	return true, nil
}
