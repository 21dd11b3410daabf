package storage

import (
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

// FileSystem is the file-system abstraction the storage layer runs against.
// Production code uses OSFileSystem; tests may substitute an in-memory
// implementation. The query engine treats this as an external collaborator:
// everything above it only sees whole-file reads, atomic whole-file writes,
// and glob expansion.
type FileSystem interface {
	// ReadFile returns the entire contents of path.
	ReadFile(path string) ([]byte, error)
	// WriteFile atomically replaces path with data, creating parent
	// directories as needed.
	WriteFile(path string, data []byte) error
	// OpenMmap maps path read-only, returning the mapping and a release
	// function.
	OpenMmap(path string) ([]byte, func() error, error)
	// Glob expands a shell glob pattern to matching paths.
	Glob(pattern string) ([]string, error)
	// Truncate shortens (or extends) path to size bytes.
	Truncate(path string, size int64) error
	// Remove deletes path; missing paths are not an error.
	Remove(path string) error
}

// OSFileSystem is the operating-system backed FileSystem.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OSFileSystem) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (OSFileSystem) OpenMmap(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	release := func() error {
		uerr := m.Unmap()
		cerr := f.Close()
		if uerr != nil {
			return uerr
		}
		return cerr
	}
	return m, release, nil
}

func (OSFileSystem) Glob(pattern string) ([]string, error) { return filepath.Glob(pattern) }

func (OSFileSystem) Truncate(path string, size int64) error { return os.Truncate(path, size) }

func (OSFileSystem) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
