package exec

import (
	"sort"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// Sort is the SORT operator: buffers its entire input, orders it by
// OrderBy, then applies SKIP/LIMIT Like PROJECTION's
// aggregated path, there is no streaming top-k here; a later optimization
// could push a bounded Limit down as an online k-selection, but nothing in
// this plan shape calls for one yet.
type Sort struct {
	child   Operator
	orderBy []binder.BoundSortItem
	skip    *binder.BoundExpr
	limit   *binder.BoundExpr

	done bool
}

func NewSort(child Operator, orderBy []binder.BoundSortItem, skip, limit *binder.BoundExpr) *Sort {
	return &Sort{child: child, orderBy: orderBy, skip: skip, limit: limit}
}

func (s *Sort) Schema() []string { return s.child.Schema() }

type sortRow struct {
	chunk *DataChunk
	pos   uint32
	keys  []any
	nulls []bool
}

func (s *Sort) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if s.done {
		return false, nil
	}
	s.done = true

	var rows []sortRow
	var schema []string
	var vtypes []types.LogicalType
	for {
		in := &DataChunk{}
		ok, err := s.child.Next(ctx, in)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		if schema == nil {
			schema = append([]string{}, in.Schema...)
			vtypes = make([]types.LogicalType, len(in.Vectors))
			for i, v := range in.Vectors {
				vtypes[i] = v.Type
			}
		}
		for i := 0; i < in.Selection.Count; i++ {
			pos := in.Selection.At(i)
			r := sortRow{chunk: in, pos: pos, keys: make([]any, len(s.orderBy)), nulls: make([]bool, len(s.orderBy))}
			for k, ob := range s.orderBy {
				v, isNull, err := evalScalar(ctx, ob.Expr, in, pos)
				if err != nil {
					return false, err
				}
				r.keys[k], r.nulls[k] = v, isNull
			}
			rows = append(rows, r)
		}
	}
	if schema == nil {
		return false, nil
	}

	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		for k, ob := range s.orderBy {
			if a.nulls[k] != b.nulls[k] {
				return a.nulls[k] // NULLs sort first
			}
			if a.nulls[k] {
				continue
			}
			c, err := compare(a.keys[k], b.keys[k])
			if err != nil {
				sortErr = err
				return false
			}
			if c == 0 {
				continue
			}
			if ob.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if sortErr != nil {
		return false, sortErr
	}

	lo, hi, err := s.bounds(ctx, len(rows))
	if err != nil {
		return false, err
	}
	rows = rows[lo:hi]

	if len(rows) == 0 {
		return false, nil
	}
	fresh := NewDataChunk(schema, vtypes, len(rows))
	for r, row := range rows {
		for c := range schema {
			if err := copyValue(row.chunk.Vectors[c], row.pos, fresh.Vectors[c], uint32(r)); err != nil {
				return false, err
			}
		}
	}
	fresh.Selection = types.NewSequentialSelection(len(rows))
	fresh.Count = len(rows)
	*out = *fresh
	return true, nil
}

func (s *Sort) bounds(ctx *ExecContext, n int) (int, int, error) {
	lo := 0
	if s.skip != nil {
		v, isNull, err := evalScalar(ctx, s.skip, nil, 0)
		if err != nil {
			return 0, 0, err
		}
		if !isNull {
			if i, ok := v.(int64); ok {
				lo = int(i)
			}
		}
	}
	if lo > n {
		lo = n
	}
	hi := n
	if s.limit != nil {
		v, isNull, err := evalScalar(ctx, s.limit, nil, 0)
		if err != nil {
			return 0, 0, err
		}
		if !isNull {
			if i, ok := v.(int64); ok && lo+int(i) < hi {
				hi = lo + int(i)
			}
		}
	}
	if lo > hi {
		return 0, 0, cyqerr.Newf(cyqerr.KindRuntime, "SORT: SKIP exceeds LIMIT bound")
	}
	return lo, hi, nil
}
