package csvload

import "sync"

// Warning is one skipped-row record surfaced by SHOW_WARNINGS: which
// query produced it, the conversion message, and where in which file the
// skipped line sat.
type Warning struct {
	QueryID    string
	Message    string
	FilePath   string
	LineNumber uint64
	Skipped    string
}

// WarningContext collects a client session's warnings across queries.
// Appends may race between parallel scan workers; a mutex guards them.
type WarningContext struct {
	mu       sync.Mutex
	warnings []Warning
	limit    int
}

// NewWarningContext builds a context bounded to limit warnings (0 means
// the package default).
func NewWarningContext(limit int) *WarningContext {
	if limit <= 0 {
		limit = maxCachedErrorCount
	}
	return &WarningContext{limit: limit}
}

// Append records warnings up to the bound.
func (w *WarningContext) Append(ws ...Warning) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, x := range ws {
		if len(w.warnings) >= w.limit {
			return
		}
		w.warnings = append(w.warnings, x)
	}
}

// Snapshot returns a copy of the accumulated warnings.
func (w *WarningContext) Snapshot() []Warning {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Warning(nil), w.warnings...)
}

// CountForQuery returns how many warnings queryID produced.
func (w *WarningContext) CountForQuery(queryID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, x := range w.warnings {
		if x.QueryID == queryID {
			n++
		}
	}
	return n
}

// Clear drops all warnings (a new query scope).
func (w *WarningContext) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warnings = nil
}
