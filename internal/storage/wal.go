package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// walRecordCopyTable tags a table as being bulk-copied. The record is
// logged and fsynced before any copy work begins, so a crash mid-copy can
// identify which table holds partial data.
const walRecordCopyTable uint8 = 1

// WAL is the write-ahead log for bulk copy. It appends fixed-size records
// and fsyncs on every append; append ordering is serialized by a mutex.
// The WAL bypasses the FileSystem abstraction because it needs append and
// fsync semantics, not whole-file replacement.
type WAL struct {
	mu sync.Mutex
	f  *os.File
}

// OpenWAL opens (or creates) the log file under dir.
func OpenWAL(dir string) (*WAL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating wal directory")
	}
	f, err := os.OpenFile(filepath.Join(dir, "wal.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening wal")
	}
	return &WAL{f: f}, nil
}

// LogCopyTable appends a CopyTableRecord for tableID and flushes it to
// disk before returning.
func (w *WAL) LogCopyTable(tableID int32, isRel bool) error {
	var rec [6]byte
	rec[0] = walRecordCopyTable
	if isRel {
		rec[1] = 1
	}
	binary.LittleEndian.PutUint32(rec[2:], uint32(tableID))

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(rec[:]); err != nil {
		return errors.Wrap(err, "appending wal record")
	}
	return errors.Wrap(w.f.Sync(), "flushing wal")
}

// Close releases the log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
