package csvload

import (
	"bytes"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/storage"
	"github.com/dreamware/cyq/internal/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Source opens CSV files for the copy and LOAD CSV operators. One Source
// carries a client's dialect options and warning context; each Open
// call produces an independent Reader (OpenGlob a MultiReader).
type Source struct {
	FS           storage.FileSystem
	Opts         cast.Options
	Warn         *WarningContext
	IgnoreErrors bool
	QueryID      string
	// BlockSize overrides the parallel block size (tests shrink it).
	BlockSize int
}

// NewSource builds a Source over fs with the given dialect.
func NewSource(fs storage.FileSystem, opts cast.Options) *Source {
	return &Source{FS: fs, Opts: opts, BlockSize: types.ParallelBlockSize}
}

// rowMeta pairs a parsed record with the bookkeeping HandleRowError needs.
type rowMeta struct {
	fields      []string
	blockIdx    int
	lineInBlock uint64
	start, end  int64
}

// Reader yields one file's records in order. Serial mode streams off a
// single state machine; parallel mode fans blocks out to workers up
// front and then serves the concatenated rows.
type Reader struct {
	src  *Source
	path string
	h    *ErrorHandler

	// serial
	m       *machine
	serialN uint64

	// parallel
	parsed []rowMeta
	next   int

	last     rowMeta
	hasLast  bool
	parallel bool
}

// Open reads path and prepares a Reader, honoring withHeaders by
// consuming (not yielding) the first record.
func (s *Source) Open(path string, withHeaders bool) (*Reader, error) {
	data, err := s.FS.ReadFile(path)
	if err != nil {
		return nil, cyqerr.Wrap(err, cyqerr.KindIO, "opening CSV file")
	}
	base := int64(0)
	if bytes.HasPrefix(data, utf8BOM) {
		data = data[len(utf8BOM):]
		base = int64(len(utf8BOM))
	}
	readRange := func(start, end int64) string {
		full, err := s.FS.ReadFile(path)
		if err != nil || start < 0 || end > int64(len(full)) || start > end {
			return ""
		}
		return string(bytes.TrimRight(full[start:end], "\r\n"))
	}
	r := &Reader{
		src:      s,
		path:     path,
		h:        NewErrorHandler(path, s.IgnoreErrors, readRange),
		parallel: s.Opts.Parallel,
	}
	if r.parallel {
		if err := r.parseBlocks(data, base, withHeaders); err != nil {
			return nil, err
		}
	} else {
		r.m = newMachine(data, base, s.Opts, true)
		if withHeaders {
			if _, err := r.m.nextRow(); err != nil {
				return nil, err
			}
			// The header is line 1 of the file, as in the parallel path.
			r.serialN = 1
			r.h.CountLine(0)
		}
	}
	return r, nil
}

// parseBlocks splits data into fixed-size blocks and parses them in
// parallel. A row belongs to the block its first byte falls in; each
// worker keeps parsing past its block end to finish the row it started.
func (r *Reader) parseBlocks(data []byte, base int64, withHeaders bool) error {
	blockSize := r.src.BlockSize
	if blockSize <= 0 {
		blockSize = types.ParallelBlockSize
	}
	numBlocks := (len(data) + blockSize - 1) / blockSize
	if numBlocks == 0 {
		numBlocks = 1
	}
	perBlock := make([][]rowMeta, numBlocks)

	var eg errgroup.Group
	eg.SetLimit(runtime.NumCPU())
	var mu sync.Mutex
	for b := 0; b < numBlocks; b++ {
		b := b
		eg.Go(func() error {
			blockStart := b * blockSize
			blockEnd := blockStart + blockSize
			start := blockStart
			if b > 0 {
				start = alignToRow(data, blockStart)
				if start < 0 || (start >= blockEnd && b < numBlocks-1) {
					// No row starts inside this block.
					r.h.ensureBlockDone(b)
					return nil
				}
			}
			m := newMachine(data[start:], base+int64(start), r.src.Opts, false)
			var line uint64
			var rows []rowMeta
			for {
				if m.offset() >= base+int64(blockEnd) && b < numBlocks-1 {
					break
				}
				rw, err := m.nextRow()
				if err != nil {
					return err
				}
				if rw == nil {
					break
				}
				if rw.start >= base+int64(blockEnd) && b < numBlocks-1 {
					break
				}
				if b == 0 && withHeaders && line == 0 && len(rows) == 0 {
					// Header row is consumed and not yielded, but counted so
					// reported line numbers stay file line numbers.
					r.h.CountLine(b)
					line++
					continue
				}
				rows = append(rows, rowMeta{
					fields:      rw.fields,
					blockIdx:    b,
					lineInBlock: line,
					start:       rw.start,
					end:         rw.end,
				})
				r.h.CountLine(b)
				line++
			}
			mu.Lock()
			perBlock[b] = rows
			mu.Unlock()
			r.h.ensureBlockDone(b)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for _, rows := range perBlock {
		r.parsed = append(r.parsed, rows...)
	}
	return nil
}

// alignToRow returns the offset of the first row starting at or after
// blockStart, or -1 when no row starts inside the remainder of data.
func alignToRow(data []byte, blockStart int) int {
	for k := blockStart - 1; k < len(data); k++ {
		if data[k] == '\n' {
			return k + 1
		}
		if data[k] == '\r' && (k+1 >= len(data) || data[k+1] != '\n') {
			return k + 1
		}
	}
	return -1
}

// ReadRow returns the next record, or ok=false once exhausted.
func (r *Reader) ReadRow() ([]string, bool, error) {
	if r.parallel {
		if r.next >= len(r.parsed) {
			return nil, false, nil
		}
		r.last = r.parsed[r.next]
		r.hasLast = true
		r.next++
		return r.last.fields, true, nil
	}
	rw, err := r.m.nextRow()
	if err != nil {
		return nil, false, err
	}
	if rw == nil {
		return nil, false, nil
	}
	r.last = rowMeta{fields: rw.fields, blockIdx: 0, lineInBlock: r.serialN, start: rw.start, end: rw.end}
	r.hasLast = true
	r.serialN++
	r.h.CountLine(0)
	return rw.fields, true, nil
}

// HandleRowError routes a conversion failure on the most recently read
// row through the error handler. A nil return means the row is skipped
// and the caller should continue; a non-nil return aborts the scan with
// the file, line number, and reconstructed line attached.
func (r *Reader) HandleRowError(cause error) error {
	if !r.hasLast {
		return cause
	}
	msg := cause.Error()
	var ce *cyqerr.Error
	if cyqerr.KindOf(cause) == cyqerr.KindConversion {
		if e, ok := cause.(*cyqerr.Error); ok {
			ce = e
		}
		if ce != nil {
			msg = "Conversion exception: " + ce.Msg
		} else {
			msg = "Conversion exception: " + msg
		}
	}
	return r.h.Handle(r.last.blockIdx, r.last.lineInBlock, msg, r.last.start, r.last.end)
}

// Close finishes the scan: serial mode completes its single block, and
// any cached failures drain into the warning context.
func (r *Reader) Close() error {
	if !r.parallel {
		if err := r.h.FinishBlock(0); err != nil {
			return err
		}
	}
	if r.src.Warn != nil {
		r.src.Warn.Append(r.h.DrainWarnings(r.src.QueryID)...)
	}
	return nil
}

// InvalidLines reports how many rows the scan skipped.
func (r *Reader) InvalidLines() uint64 { return r.h.InvalidLines() }

// MultiReader chains the readers of every file a copy-source pattern
// matched, preserving per-file error handling and warnings. Files open
// lazily, in glob order.
type MultiReader struct {
	src         *Source
	paths       []string
	withHeaders bool

	cur  *Reader
	next int
}

// OpenGlob expands pattern, rejects mixed or non-CSV formats, and returns
// a reader over every matched file's rows in sequence.
func (s *Source) OpenGlob(pattern string, withHeaders bool) (*MultiReader, error) {
	paths, format, err := ExpandPaths(s.FS, pattern)
	if err != nil {
		return nil, err
	}
	if format != FormatCSV && format != FormatUnknown {
		return nil, cyqerr.Newf(cyqerr.KindCopy, "%s copy sources are not supported by this build; only CSV decoding is available", format)
	}
	return &MultiReader{src: s, paths: paths, withHeaders: withHeaders}, nil
}

// ReadRow yields the next record across all matched files.
func (m *MultiReader) ReadRow() ([]string, bool, error) {
	for {
		if m.cur == nil {
			if m.next >= len(m.paths) {
				return nil, false, nil
			}
			r, err := m.src.Open(m.paths[m.next], m.withHeaders)
			if err != nil {
				return nil, false, err
			}
			m.cur = r
			m.next++
		}
		fields, ok, err := m.cur.ReadRow()
		if err != nil {
			return nil, false, err
		}
		if ok {
			return fields, true, nil
		}
		if err := m.cur.Close(); err != nil {
			return nil, false, err
		}
		m.cur = nil
	}
}

// HandleRowError delegates to the file the last row came from.
func (m *MultiReader) HandleRowError(cause error) error {
	if m.cur == nil {
		return cause
	}
	return m.cur.HandleRowError(cause)
}

// Close finishes the current file, if any.
func (m *MultiReader) Close() error {
	if m.cur == nil {
		return nil
	}
	err := m.cur.Close()
	m.cur = nil
	return err
}
