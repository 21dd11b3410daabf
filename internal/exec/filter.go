package exec

import "github.com/dreamware/cyq/internal/binder"

// Filter is the FILTER operator: evaluates a BOOL
// expression and prunes the selection vector of its input data chunk. A
// NULL predicate result (three-valued logic) excludes the row, the same
// as false.
type Filter struct {
	child     Operator
	predicate *binder.BoundExpr
}

func NewFilter(child Operator, predicate *binder.BoundExpr) *Filter {
	return &Filter{child: child, predicate: predicate}
}

func (f *Filter) Schema() []string { return f.child.Schema() }

func (f *Filter) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	for {
		in := &DataChunk{}
		ok, err := f.child.Next(ctx, in)
		if err != nil || !ok {
			return ok, err
		}
		keep := make([]bool, in.Selection.Count)
		any := false
		for i := 0; i < in.Selection.Count; i++ {
			pos := in.Selection.At(i)
			v, isNull, err := evalBool(ctx, f.predicate, in, pos)
			if err != nil {
				return false, err
			}
			keep[i] = !isNull && v
			any = any || keep[i]
		}
		if !any {
			// Every row in this morsel was pruned: pull the next one
			// instead of handing the caller an empty-but-not-exhausted
			// batch, so operators above never have to special-case it.
			continue
		}
		in.Narrow(in.Selection.Filter(keep))
		*out = *in
		return true, nil
	}
}
