package exec

import (
	"fmt"

	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// CopyScan is the row source COPY FROM feeds CopyNode/RelBatchInsert: it
// reads raw CSV rows straight off a CSVSource (no LOAD CSV row-per-line
// LIST(STRING) indirection) and casts each field into the destination
// table's declared column types via internal/cast's
// "bulk copy path casts each field directly into its column chunk rather
// than building a row object first."
//
// For a rel table, COPY FROM's first two fields are the bound/neighbor
// node's primary-key values; they are cast to the endpoint tables' key
// types here and resolved to internal offsets by the BulkLoader.
type CopyScan struct {
	source  CSVSource
	path    string
	headers bool
	cols    []catalog.Property
	opts    cast.Options

	reader CSVReader
	opened bool
}

func NewCopyScan(source CSVSource, path string, withHeaders bool, cols []catalog.Property, opts cast.Options) *CopyScan {
	return &CopyScan{source: source, path: path, headers: withHeaders, cols: cols, opts: opts}
}

func (s *CopyScan) Schema() []string {
	names := make([]string, len(s.cols))
	for i, c := range s.cols {
		names[i] = c.Name
	}
	return names
}

func (s *CopyScan) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if !s.opened {
		r, err := s.source.OpenCSV(s.path, s.headers)
		if err != nil {
			return false, err
		}
		s.reader = r
		s.opened = true
	}

	const batchCap = types.DefaultVectorCapacity
	vtypes := make([]types.LogicalType, len(s.cols))
	for i, c := range s.cols {
		vtypes[i] = c.Type
	}
	fresh := NewDataChunk(s.Schema(), vtypes, batchCap)
	opts := s.opts

	n := 0
	for n < batchCap {
		if ctx.Interrupted() {
			return false, cyqerr.Newf(cyqerr.KindRuntime, "query interrupted")
		}
		row, ok, err := s.reader.ReadRow()
		if err != nil {
			return false, err
		}
		if !ok {
			if err := s.reader.Close(); err != nil {
				return false, err
			}
			break
		}
		rowErr := error(nil)
		for c := range s.cols {
			field := ""
			if c < len(row) {
				field = row[c]
			}
			if err := cast.CopyStringToVector(fresh.Vectors[c], uint32(n), field, opts); err != nil {
				rowErr = err
				break
			}
		}
		if rowErr != nil {
			// Route the failure through the reader's error handler: either
			// the row becomes a warning and is skipped (position n gets
			// overwritten by the next row), or the scan aborts.
			if err := s.reader.HandleRowError(rowErr); err != nil {
				return false, err
			}
			continue
		}
		n++
	}
	if n == 0 {
		return false, nil
	}
	fresh.Selection = types.NewSequentialSelection(n)
	fresh.Count = n
	*out = *fresh
	return true, nil
}

// CopyNode is the COPY FROM ... (node table) operator:
// 4.H): it is a thin pipe between a row source (a CopyScan over a
// CSVSource; see internal/csvload) and the BulkLoader, which owns node-group
// accumulation, the primary-key index, and the WAL record.
type CopyNode struct {
	child   Operator
	loader  BulkLoader
	labelID int32

	done bool
}

func NewCopyNode(child Operator, loader BulkLoader, labelID int32) *CopyNode {
	return &CopyNode{child: child, loader: loader, labelID: labelID}
}

func (c *CopyNode) Schema() []string { return []string{"message"} }

func (c *CopyNode) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if c.done {
		return false, nil
	}
	c.done = true
	var total int64
	for {
		if ctx.Interrupted() {
			return false, cyqerr.Newf(cyqerr.KindRuntime, "query interrupted")
		}
		in := &DataChunk{}
		ok, err := c.child.Next(ctx, in)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		n, err := c.loader.LoadNodeBatch(c.labelID, in.Vectors, in.Selection)
		if err != nil {
			return false, err
		}
		total += int64(n)
	}
	final, err := c.loader.Finalize(c.labelID, false)
	if err != nil {
		return false, err
	}
	if final > total {
		total = final
	}
	return emitCopyMessage(out, total)
}

// RelBatchInsert is the COPY FROM ... (rel table) operator: identical shape
// to CopyNode but inserts into the CSR-backed rel storage in the given
// direction.
type RelBatchInsert struct {
	child      Operator
	loader     BulkLoader
	relLabelID int32
	dir        catalog.Direction

	done bool
}

func NewRelBatchInsert(child Operator, loader BulkLoader, relLabelID int32, dir catalog.Direction) *RelBatchInsert {
	return &RelBatchInsert{child: child, loader: loader, relLabelID: relLabelID, dir: dir}
}

func (r *RelBatchInsert) Schema() []string { return []string{"message"} }

func (r *RelBatchInsert) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if r.done {
		return false, nil
	}
	r.done = true
	var total int64
	for {
		if ctx.Interrupted() {
			return false, cyqerr.Newf(cyqerr.KindRuntime, "query interrupted")
		}
		in := &DataChunk{}
		ok, err := r.child.Next(ctx, in)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		n, err := r.loader.LoadRelBatch(r.relLabelID, r.dir, in.Vectors, in.Selection)
		if err != nil {
			return false, err
		}
		total += int64(n)
	}
	final, err := r.loader.Finalize(r.relLabelID, true)
	if err != nil {
		return false, err
	}
	if final > total {
		total = final
	}
	return emitCopyMessage(out, total)
}

func emitCopyMessage(out *DataChunk, n int64) (bool, error) {
	fresh := NewDataChunk([]string{"message"}, []types.LogicalType{types.Str()}, 1)
	fresh.Vectors[0].AppendBytes(0, []byte(fmt.Sprintf("%d tuples have been copied to the table.", n)))
	fresh.Selection = types.NewSequentialSelection(1)
	fresh.Count = 1
	*out = *fresh
	return true, nil
}
