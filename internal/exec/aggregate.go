package exec

import (
	"strings"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// writeScalar writes the boxed value v (of the shape evalScalar produces)
// into dst at pos.
func writeScalar(dst *types.Vector, pos uint32, v any) error {
	switch x := v.(type) {
	case bool:
		dst.SetBool(pos, x)
	case int64:
		switch dst.Type.Kind {
		case types.INT32:
			dst.SetInt32(pos, int32(x))
		case types.UINT32:
			dst.SetUint32(pos, uint32(x))
		case types.UINT64:
			dst.SetUint64(pos, uint64(x))
		default:
			dst.SetInt64(pos, x)
		}
	case uint64:
		dst.SetUint64(pos, x)
	case float64:
		if dst.Type.Kind == types.FLOAT {
			dst.SetFloat(pos, float32(x))
		} else {
			dst.SetDouble(pos, x)
		}
	case string:
		dst.AppendBytes(pos, []byte(x))
	default:
		return cyqerr.Newf(cyqerr.KindRuntime, "cannot project value of type %T", v)
	}
	return nil
}

// aggGroup accumulates one row group's aggregate state across every
// aggregate projection item, keyed by the item's index in Projection.items
// (grouping is implicit over the non-aggregate items; this is the
// per-group running state for the aggregate ones).
type aggGroup struct {
	keyVals []any
	acc     []*aggState
}

type aggState struct {
	fn      string
	star    bool // the call has no argument expression
	count   int64
	sum     float64
	sumIsFl bool
	min     any
	max     any
	hasMin  bool
	first   any
	hasFirst bool
	collect []any
}

func newAggGroup(items []binder.BoundProjectionItem, keyVals []any) *aggGroup {
	g := &aggGroup{keyVals: keyVals, acc: make([]*aggState, len(items))}
	for i, it := range items {
		if it.Expr.ContainsAggregate() {
			g.acc[i] = &aggState{fn: strings.ToLower(it.Expr.FuncName), star: len(it.Expr.Args) == 0}
		}
	}
	return g
}

func (g *aggGroup) accumulate(ctx *ExecContext, items []binder.BoundProjectionItem, chunk *DataChunk, pos uint32) error {
	for i, it := range items {
		st := g.acc[i]
		if st == nil {
			continue
		}
		var v any
		var isNull bool
		var err error
		if len(it.Expr.Args) > 0 {
			v, isNull, err = evalScalar(ctx, it.Expr.Args[0], chunk, pos)
			if err != nil {
				return err
			}
		}
		st.apply(v, isNull)
	}
	return nil
}

func (st *aggState) apply(v any, isNull bool) {
	switch st.fn {
	case "count":
		if st.isCountStar() || !isNull {
			st.count++
		}
	case "sum", "avg":
		if isNull {
			return
		}
		f, isFl, _ := asNumber(v)
		st.sum += f
		st.sumIsFl = st.sumIsFl || isFl
		st.count++
	case "min":
		if isNull {
			return
		}
		if !st.hasMin {
			st.min, st.hasMin = v, true
			return
		}
		if c, _ := compare(v, st.min); c < 0 {
			st.min = v
		}
	case "max":
		if isNull {
			return
		}
		if !st.hasMin {
			st.min, st.hasMin = v, true
			return
		}
		if c, _ := compare(v, st.min); c > 0 {
			st.min = v
		}
	case "collect":
		if !isNull {
			st.collect = append(st.collect, v)
		}
	}
}

// isCountStar reports count() with no argument expression, i.e. count(*)
// in source form — binder normalizes COUNT(*) to a zero-arg aggregate call.
func (st *aggState) isCountStar() bool { return st.star }

func (g *aggGroup) result(idx int, e *binder.BoundExpr) (any, bool) {
	st := g.acc[idx]
	if st == nil {
		return g.keyVals[keyIndexFor(idx, g)], false
	}
	switch st.fn {
	case "count":
		return st.count, false
	case "sum":
		if st.count == 0 {
			return int64(0), false
		}
		if st.sumIsFl {
			return st.sum, false
		}
		return int64(st.sum), false
	case "avg":
		if st.count == 0 {
			return nil, true
		}
		return st.sum / float64(st.count), false
	case "min", "max":
		if !st.hasMin {
			return nil, true
		}
		return st.min, false
	case "collect":
		return st.collect, false
	default:
		return nil, true
	}
}

// keyIndexFor maps a non-aggregate projection item's position to its slot
// in keyVals, which only holds values for non-aggregate items in order.
func keyIndexFor(idx int, g *aggGroup) int {
	k := 0
	for i := 0; i < idx; i++ {
		if g.acc[i] == nil {
			k++
		}
	}
	return k
}
