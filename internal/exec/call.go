package exec

import (
	"strings"

	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// WarningRow is one skipped-row record as SHOW_WARNINGS renders it.
type WarningRow struct {
	QueryID    string
	Message    string
	FilePath   string
	LineNumber uint64
	Skipped    string
}

// WarningsSource is the read surface SHOW_WARNINGS renders; the client
// session's warning context implements it.
type WarningsSource interface {
	Warnings() []WarningRow
}

// Call is the CALL operator for a built-in table function: SHOW_TABLES
// over the catalog and SHOW_WARNINGS over the session's warning context.
// Anything else errors rather than silently returning no rows.
type Call struct {
	cat      *catalog.Catalog
	warnings WarningsSource
	function string
	yield    []string

	done bool
}

func NewCall(cat *catalog.Catalog, warnings WarningsSource, function string, yield []string) *Call {
	return &Call{cat: cat, warnings: warnings, function: function, yield: yield}
}

func (c *Call) Schema() []string {
	if len(c.yield) > 0 {
		return c.yield
	}
	switch strings.ToLower(c.function) {
	case "show_warnings":
		return []string{"query_id", "message", "file_path", "line_number", "skipped_line_or_record"}
	default:
		return []string{"name", "type", "comment"}
	}
}

func (c *Call) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	if c.done {
		return false, nil
	}
	c.done = true

	switch strings.ToLower(c.function) {
	case "show_tables":
		return c.showTables(out)
	case "show_warnings":
		return c.showWarnings(out)
	default:
		return false, cyqerr.Newf(cyqerr.KindRuntime, "unknown table function %q", c.function)
	}
}

func (c *Call) showTables(out *DataChunk) (bool, error) {
	tables := c.cat.ListTables()
	schema := []string{"name", "type", "comment"}
	vtypes := []types.LogicalType{types.Str(), types.Str(), types.Str()}
	fresh := NewDataChunk(schema, vtypes, len(tables))
	for i, t := range tables {
		fresh.Vectors[0].AppendBytes(uint32(i), []byte(t.Name))
		fresh.Vectors[1].AppendBytes(uint32(i), []byte(t.Type))
		fresh.Vectors[2].AppendBytes(uint32(i), []byte(t.Comment))
	}
	fresh.Selection = types.NewSequentialSelection(len(tables))
	fresh.Count = len(tables)
	*out = *fresh
	return true, nil
}

func (c *Call) showWarnings(out *DataChunk) (bool, error) {
	var ws []WarningRow
	if c.warnings != nil {
		ws = c.warnings.Warnings()
	}
	schema := []string{"query_id", "message", "file_path", "line_number", "skipped_line_or_record"}
	vtypes := []types.LogicalType{types.Str(), types.Str(), types.Str(), types.UInt64(), types.Str()}
	fresh := NewDataChunk(schema, vtypes, len(ws))
	for i, w := range ws {
		pos := uint32(i)
		fresh.Vectors[0].AppendBytes(pos, []byte(w.QueryID))
		fresh.Vectors[1].AppendBytes(pos, []byte(w.Message))
		fresh.Vectors[2].AppendBytes(pos, []byte(w.FilePath))
		fresh.Vectors[3].SetUint64(pos, w.LineNumber)
		fresh.Vectors[4].AppendBytes(pos, []byte(w.Skipped))
	}
	fresh.Selection = types.NewSequentialSelection(len(ws))
	fresh.Count = len(ws)
	*out = *fresh
	return true, nil
}
