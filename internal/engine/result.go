package engine

import (
	"time"

	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/exec"
	"github.com/dreamware/cyq/internal/types"
)

// Result is one query's materialized output: column names and types, the
// flat tuples in canonical textual form, the query's warnings, and its
// total duration.
type Result struct {
	Columns  []string
	Types    []types.LogicalType
	rows     [][]string
	Warnings []exec.WarningRow
	Elapsed  time.Duration

	cursor int
}

// NumTuples returns the row count.
func (r *Result) NumTuples() int { return len(r.rows) }

// Next advances the tuple cursor, returning false once exhausted.
func (r *Result) Next() bool {
	if r.cursor >= len(r.rows) {
		return false
	}
	r.cursor++
	return true
}

// Values returns the current tuple's values, one canonical string per
// column ("NULL" for nulls).
func (r *Result) Values() []string { return r.rows[r.cursor-1] }

// Rows returns every tuple, for callers that prefer a slice to the
// cursor.
func (r *Result) Rows() [][]string { return r.rows }

// drain pulls op to exhaustion, rendering each batch's selected positions
// into res.
func drain(ctx *exec.ExecContext, op exec.Operator, res *Result) error {
	opts := cast.DefaultOptions()
	for {
		chunk := &exec.DataChunk{}
		ok, err := op.Next(ctx, chunk)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if res.Types == nil {
			for _, v := range chunk.Vectors {
				res.Types = append(res.Types, v.Type)
			}
		}
		sel := chunk.Selection
		if sel == nil {
			sel = types.NewSequentialSelection(chunk.Count)
		}
		for i := 0; i < sel.Count; i++ {
			pos := sel.At(i)
			row := make([]string, len(chunk.Vectors))
			for c, v := range chunk.Vectors {
				row[c] = cast.FormatValue(v, pos, opts)
			}
			res.rows = append(res.rows, row)
		}
	}
}
