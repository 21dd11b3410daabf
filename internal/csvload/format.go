package csvload

import (
	"path/filepath"
	"strings"

	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/storage"
)

// FileFormat names a detected copy-source format.
type FileFormat string

const (
	FormatCSV     FileFormat = "CSV"
	FormatParquet FileFormat = "PARQUET"
	FormatNPY     FileFormat = "NPY"
	FormatUnknown FileFormat = "UNKNOWN"
)

// DetectFormat classifies a path by extension.
func DetectFormat(path string) FileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	case ".npy":
		return FormatNPY
	default:
		return FormatUnknown
	}
}

// ExpandPaths globs pattern and verifies every match shares one detected
// format, rejecting mixed-format copies before any file is opened.
func ExpandPaths(fs storage.FileSystem, pattern string) ([]string, FileFormat, error) {
	paths, err := fs.Glob(pattern)
	if err != nil {
		return nil, FormatUnknown, cyqerr.Wrap(err, cyqerr.KindIO, "expanding copy source pattern")
	}
	if len(paths) == 0 {
		// A literal path with no glob matches still names one file; let
		// the open fail with the real I/O error if it is missing.
		paths = []string{pattern}
	}
	format := DetectFormat(paths[0])
	for _, p := range paths[1:] {
		if f := DetectFormat(p); f != format {
			return nil, FormatUnknown, cyqerr.Newf(cyqerr.KindCopy,
				"Copy source files must share one format: %s is %s but %s is %s.",
				paths[0], format, p, f)
		}
	}
	return paths, format, nil
}
