package exec

import (
	"fmt"
	"sort"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/types"
)

// Projection is the PROJECTION operator: evaluates
// expressions into a new set of vectors. When the clause contains an
// aggregate (binder.BoundProjection.HasAggregation), Cypher groups
// implicitly by every non-aggregate projection item, so Projection
// buffers its whole input and emits one row per distinct group — there is
// no separate GROUP_BY operator in this plan shape.
type Projection struct {
	child    Operator
	items    []binder.BoundProjectionItem
	distinct bool

	done bool
	rows []projRow // not read; DISTINCT dedup goes through seen
	seen map[string]bool
}

type projRow struct {
	chunk *DataChunk
	pos   uint32
}

func NewProjection(child Operator, items []binder.BoundProjectionItem, distinct bool) *Projection {
	return &Projection{child: child, items: items, distinct: distinct}
}

func (p *Projection) Schema() []string {
	out := make([]string, len(p.items))
	for i, it := range p.items {
		out[i] = it.Alias
	}
	return out
}

func (p *Projection) outTypes() []types.LogicalType {
	out := make([]types.LogicalType, len(p.items))
	for i, it := range p.items {
		out[i] = it.Expr.Type
	}
	return out
}

func (p *Projection) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if p.hasAggregate() {
		return p.nextAggregated(ctx, out)
	}
	return p.nextRow(ctx, out)
}

func (p *Projection) hasAggregate() bool {
	for _, it := range p.items {
		if it.Expr.ContainsAggregate() {
			return true
		}
	}
	return false
}

// nextRow handles the common, non-aggregating case: evaluate every item
// against each input row, packing results into a fresh compacted chunk.
func (p *Projection) nextRow(ctx *ExecContext, out *DataChunk) (bool, error) {
	if p.done {
		return false, nil
	}
	for {
		in := &DataChunk{}
		ok, err := p.child.Next(ctx, in)
		if err != nil {
			return false, err
		}
		if !ok {
			p.done = true
			return false, nil
		}
		fresh := NewDataChunk(p.Schema(), p.outTypes(), in.Selection.Count)
		n := 0
		for i := 0; i < in.Selection.Count; i++ {
			pos := in.Selection.At(i)
			var key string
			if p.distinct {
				k, err := rowKey(ctx, p, in, pos)
				if err != nil {
					return false, err
				}
				key = k
				if p.seen == nil {
					p.seen = map[string]bool{}
				}
				if p.seen[key] {
					continue
				}
				p.seen[key] = true
			}
			for c, it := range p.items {
				v, isNull, err := evalScalar(ctx, it.Expr, in, pos)
				if err != nil {
					return false, err
				}
				if isNull {
					fresh.Vectors[c].SetNull(uint32(n))
					continue
				}
				if err := writeScalar(fresh.Vectors[c], uint32(n), v); err != nil {
					return false, err
				}
			}
			n++
		}
		if n == 0 {
			continue
		}
		fresh.Selection = types.NewSequentialSelection(n)
		fresh.Count = n
		*out = *fresh
		return true, nil
	}
}

func rowKey(ctx *ExecContext, p *Projection, chunk *DataChunk, pos uint32) (string, error) {
	var b []byte
	for _, it := range p.items {
		v, isNull, err := evalScalar(ctx, it.Expr, chunk, pos)
		if err != nil {
			return "", err
		}
		if isNull {
			v = nil
		}
		b = append(b, []byte(fmt.Sprintf("%v|", v))...)
	}
	return string(b), nil
}

// nextAggregated buffers the entire input, groups by the non-aggregate
// items' values, computes each aggregate item over its group, and emits
// one row per distinct group on the first call (subsequent calls report
// exhaustion).
func (p *Projection) nextAggregated(ctx *ExecContext, out *DataChunk) (bool, error) {
	if p.done {
		return false, nil
	}
	p.done = true

	groups := map[string]*aggGroup{}
	var order []string

	for {
		in := &DataChunk{}
		ok, err := p.child.Next(ctx, in)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		for i := 0; i < in.Selection.Count; i++ {
			pos := in.Selection.At(i)
			key, keyVals, err := p.groupKey(ctx, in, pos)
			if err != nil {
				return false, err
			}
			g, ok := groups[key]
			if !ok {
				g = newAggGroup(p.items, keyVals)
				groups[key] = g
				order = append(order, key)
			}
			if err := g.accumulate(ctx, p.items, in, pos); err != nil {
				return false, err
			}
		}
	}

	if len(groups) == 0 {
		if p.isScalarAggregate() {
			groups[""] = newAggGroup(p.items, nil)
			order = []string{""}
		} else {
			return false, nil
		}
	}

	sort.Strings(order) // deterministic row order absent an ORDER BY above this node
	fresh := NewDataChunk(p.Schema(), p.outTypes(), len(order))
	for r, key := range order {
		g := groups[key]
		for c, it := range p.items {
			v, isNull := g.result(c, it.Expr)
			if isNull {
				fresh.Vectors[c].SetNull(uint32(r))
				continue
			}
			if err := writeScalar(fresh.Vectors[c], uint32(r), v); err != nil {
				return false, err
			}
		}
	}
	fresh.Selection = types.NewSequentialSelection(len(order))
	fresh.Count = len(order)
	*out = *fresh
	return true, nil
}

// isScalarAggregate reports whether every projection item is an aggregate
// (no grouping keys), in which case an empty input still yields one row
// (e.g. "RETURN count(*)" over zero matches yields 0, not no rows).
func (p *Projection) isScalarAggregate() bool {
	for _, it := range p.items {
		if !it.Expr.ContainsAggregate() {
			return false
		}
	}
	return true
}

func (p *Projection) groupKey(ctx *ExecContext, chunk *DataChunk, pos uint32) (string, []any, error) {
	var keyVals []any
	var b []byte
	for _, it := range p.items {
		if it.Expr.ContainsAggregate() {
			continue
		}
		v, isNull, err := evalScalar(ctx, it.Expr, chunk, pos)
		if err != nil {
			return "", nil, err
		}
		if isNull {
			v = nil
		}
		keyVals = append(keyVals, v)
		b = append(b, []byte(fmt.Sprintf("%v|", v))...)
	}
	return string(b), keyVals, nil
}
