package exec

import (
	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// LoadCSV is the LOAD CSV operator: for every
// input row, opens From once (on the first call) and emits one output row
// per CSV line, binding As to a LIST(STRING) of that line's fields. Actual
// block-based parallel scanning lives behind the CSVSource this operator is
// handed; this operator is just the row-at-a-time pipeline glue between
// the scanner and the rest of the plan.
//
// Per-column typed/struct binding (WithHeaders naming each field) needs a
// STRUCT-typed output column, which copyValue does not support yet; until
// then every row surfaces as the raw field list regardless of WithHeaders,
// and WithHeaders only controls whether the first line is skipped.
type LoadCSV struct {
	child       Operator
	source      CSVSource
	pathExpr    *binder.BoundExpr
	withHeaders bool
	as          string

	schema []string
	vtypes []types.LogicalType

	in     *DataChunk
	inPos  int
	reader CSVReader
	srcPos uint32
}

func NewLoadCSV(child Operator, source CSVSource, pathExpr *binder.BoundExpr, withHeaders bool, as string) *LoadCSV {
	return &LoadCSV{child: child, source: source, pathExpr: pathExpr, withHeaders: withHeaders, as: as}
}

func (l *LoadCSV) Schema() []string { return append(append([]string{}, l.child.Schema()...), l.as) }

func (l *LoadCSV) ensureSchema(in *DataChunk) {
	if l.schema != nil {
		return
	}
	l.schema = append(append([]string{}, in.Schema...), l.as)
	l.vtypes = make([]types.LogicalType, len(l.schema))
	for i, v := range in.Vectors {
		l.vtypes[i] = v.Type
	}
	l.vtypes[len(l.schema)-1] = types.ListOf(types.Str())
}

func (l *LoadCSV) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	const batchCap = types.DefaultVectorCapacity
	var fresh *DataChunk
	outRow := 0

	for {
		if ctx.Interrupted() {
			return false, cyqerr.Newf(cyqerr.KindRuntime, "query interrupted")
		}
		if l.reader != nil {
			row, ok, err := l.reader.ReadRow()
			if err != nil {
				return false, err
			}
			if ok {
				if fresh == nil {
					l.ensureSchema(l.in)
					fresh = NewDataChunk(l.schema, l.vtypes, batchCap)
				}
				if outRow >= batchCap {
					fresh.Selection = types.NewSequentialSelection(outRow)
					fresh.Count = outRow
					*out = *fresh
					return true, nil
				}
				for c := range l.in.Schema {
					if err := copyValue(l.in.Vectors[c], l.srcPos, fresh.Vectors[c], uint32(outRow)); err != nil {
						return false, err
					}
				}
				listVec := fresh.Vectors[len(l.schema)-1]
				child := listVec.Children[0]
				offset := listVec.ChildWriteOffset()
				for i, f := range row {
					child.SetString(offset+uint32(i), f)
				}
				listVec.SetListEntry(uint32(outRow), offset, uint32(len(row)))
				listVec.AdvanceChildWriteOffset(uint32(len(row)))
				outRow++
				continue
			}
			l.reader.Close()
			l.reader = nil
		}

		if l.in == nil || l.inPos >= l.in.Selection.Count {
			in := &DataChunk{}
			ok, err := l.child.Next(ctx, in)
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
			l.in = in
			l.inPos = 0
		}
		l.ensureSchema(l.in)

		l.srcPos = l.in.Selection.At(l.inPos)
		l.inPos++
		pathVal, isNull, err := evalScalar(ctx, l.pathExpr, l.in, l.srcPos)
		if err != nil {
			return false, err
		}
		if isNull {
			continue
		}
		path, _ := pathVal.(string)
		reader, err := l.source.OpenCSV(path, l.withHeaders)
		if err != nil {
			return false, err
		}
		l.reader = reader
	}
}
