package csvload

import (
	"sort"
	"sync"

	"github.com/dreamware/cyq/internal/cyqerr"
)

// maxCachedErrorCount bounds how many per-file errors are cached before
// further ones are counted but dropped.
const maxCachedErrorCount = 100

// blockState tracks one parse block's progress: how many lines it has
// committed (valid and skipped) and whether it finished parsing. Line
// numbers of a block's rows are only resolvable once every preceding
// block is done.
type blockState struct {
	validLines   uint64
	invalidLines uint64
	done         bool
}

// cachedError is one conversion failure awaiting line-number resolution.
type cachedError struct {
	blockIdx    int
	lineInBlock uint64 // 0-based line within the block at failure time
	msg         string
	start, end  int64 // byte range of the offending row
}

// ErrorHandler aggregates per-block parse state and conversion failures
// for one file. With ignoreErrors the failures become warnings; without
// it the earliest failure aborts the scan as soon as its true line number
// can be computed.
type ErrorHandler struct {
	filePath     string
	ignoreErrors bool
	// readRange re-reads a byte range of the file so an error message can
	// quote the offending line.
	readRange func(start, end int64) string

	mu     sync.Mutex
	blocks []blockState
	cached []cachedError
	// dropped counts errors past the cache bound.
	dropped uint64
}

// NewErrorHandler builds a handler for one file's scan.
func NewErrorHandler(filePath string, ignoreErrors bool, readRange func(start, end int64) string) *ErrorHandler {
	return &ErrorHandler{filePath: filePath, ignoreErrors: ignoreErrors, readRange: readRange}
}

func (h *ErrorHandler) ensureBlock(idx int) *blockState {
	for len(h.blocks) <= idx {
		h.blocks = append(h.blocks, blockState{})
	}
	return &h.blocks[idx]
}

// CountLine credits one committed row to a block. Rows later found
// invalid move from the valid to the invalid count in Handle; the sum
// stays the block's total line count.
func (h *ErrorHandler) CountLine(blockIdx int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureBlock(blockIdx).validLines++
}

// ensureBlockDone marks a block finished without checking deferred
// errors, for scan workers that have nothing to resolve yet.
func (h *ErrorHandler) ensureBlockDone(blockIdx int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureBlock(blockIdx).done = true
}

// Handle reports one failed row. When the failure is immediately
// resolvable (every preceding block done) and errors are not ignored, the
// returned error carries the 1-based line number and the reconstructed
// line; otherwise the failure caches and Handle returns nil.
func (h *ErrorHandler) Handle(blockIdx int, lineInBlock uint64, msg string, start, end int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.ensureBlock(blockIdx)
	if b.validLines > 0 {
		b.validLines--
	}
	b.invalidLines++
	ce := cachedError{blockIdx: blockIdx, lineInBlock: lineInBlock, msg: msg, start: start, end: end}

	if !h.ignoreErrors {
		if line, ok := h.lineNumberLocked(blockIdx, lineInBlock); ok {
			return h.errorFor(ce, line)
		}
	}
	if len(h.cached) < maxCachedErrorCount {
		h.cached = append(h.cached, ce)
	} else {
		h.dropped++
	}
	return nil
}

// FinishBlock marks a block done. If errors are not ignored and a cached
// error's prefix just completed, the earliest such error is returned.
func (h *ErrorHandler) FinishBlock(blockIdx int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ensureBlock(blockIdx).done = true
	if h.ignoreErrors || len(h.cached) == 0 {
		return nil
	}
	type resolved struct {
		ce   cachedError
		line uint64
	}
	var best *resolved
	for _, ce := range h.cached {
		line, ok := h.lineNumberLocked(ce.blockIdx, ce.lineInBlock)
		if !ok {
			continue
		}
		if best == nil || line < best.line {
			best = &resolved{ce: ce, line: line}
		}
	}
	if best == nil {
		return nil
	}
	return h.errorFor(best.ce, best.line)
}

// lineNumberLocked computes a row's 1-based global line number, possible
// only when every preceding block has finished counting.
func (h *ErrorHandler) lineNumberLocked(blockIdx int, lineInBlock uint64) (uint64, bool) {
	var before uint64
	for i := 0; i < blockIdx; i++ {
		if i >= len(h.blocks) || !h.blocks[i].done {
			return 0, false
		}
		before += h.blocks[i].validLines + h.blocks[i].invalidLines
	}
	return before + lineInBlock + 1, true
}

func (h *ErrorHandler) errorFor(ce cachedError, line uint64) error {
	skipped := ""
	if h.readRange != nil {
		skipped = h.readRange(ce.start, ce.end)
	}
	return cyqerr.Newf(cyqerr.KindCopy, "Error in file %s on line %d: %s Line containing the error: %q",
		h.filePath, line, ce.msg, skipped).WithSubstr(skipped)
}

// DrainWarnings resolves every cached error to a Warning, in line order.
// Call after all blocks finished (line numbers are then all resolvable).
func (h *ErrorHandler) DrainWarnings(queryID string) []Warning {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Warning, 0, len(h.cached))
	for _, ce := range h.cached {
		line, _ := h.lineNumberLocked(ce.blockIdx, ce.lineInBlock)
		skipped := ""
		if h.readRange != nil {
			skipped = h.readRange(ce.start, ce.end)
		}
		out = append(out, Warning{
			QueryID:    queryID,
			Message:    ce.msg,
			FilePath:   h.filePath,
			LineNumber: line,
			Skipped:    skipped,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNumber < out[j].LineNumber })
	h.cached = nil
	return out
}

// InvalidLines returns the total count of skipped rows, including ones
// past the cache bound.
func (h *ErrorHandler) InvalidLines() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n uint64
	for _, b := range h.blocks {
		n += b.invalidLines
	}
	return n
}
