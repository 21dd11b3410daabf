package csvload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/storage"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readAll(t *testing.T, r *Reader) [][]string {
	t.Helper()
	var rows [][]string
	for {
		fields, ok, err := r.ReadRow()
		require.NoError(t, err)
		if !ok {
			break
		}
		rows = append(rows, fields)
	}
	require.NoError(t, r.Close())
	return rows
}

func TestSerialReaderBasic(t *testing.T) {
	path := writeFile(t, "a,b,c\n1, 2 ,3\r\n4,,6\n")
	s := NewSource(storage.OSFileSystem{}, cast.DefaultOptions())
	r, err := s.Open(path, false)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Equal(t, [][]string{
		{"a", "b", "c"},
		{"1", "2", "3"}, // unquoted tokens are trimmed
		{"4", "", "6"},
	}, rows)
}

func TestSerialReaderHeaderAndBOM(t *testing.T) {
	path := writeFile(t, "\xEF\xBB\xBFid,name\n1,ada\n2,bix\n")
	s := NewSource(storage.OSFileSystem{}, cast.DefaultOptions())
	r, err := s.Open(path, true)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Equal(t, [][]string{{"1", "ada"}, {"2", "bix"}}, rows)
}

func TestQuotingAndEscapes(t *testing.T) {
	content := `"a,b",plain` + "\n" +
		`"he said ""hi""",x` + "\n" +
		`"esc\"aped",y` + "\n" +
		"\"multi\nline\",z\n"
	path := writeFile(t, content)
	s := NewSource(storage.OSFileSystem{}, cast.DefaultOptions())
	r, err := s.Open(path, false)
	require.NoError(t, err)
	rows := readAll(t, r)
	require.Equal(t, [][]string{
		{"a,b", "plain"},
		{`he said "hi"`, "x"},
		{`esc"aped`, "y"},
		{"multi\nline", "z"},
	}, rows)
}

func TestUnterminatedQuoteFails(t *testing.T) {
	path := writeFile(t, "\"open,1\n")
	s := NewSource(storage.OSFileSystem{}, cast.DefaultOptions())
	r, err := s.Open(path, false)
	require.NoError(t, err)
	_, _, err = r.ReadRow()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated")
}

func TestQuotedNewlineRejectedInParallel(t *testing.T) {
	path := writeFile(t, "\"multi\nline\",z\n")
	opts := cast.DefaultOptions()
	opts.Parallel = true
	s := NewSource(storage.OSFileSystem{}, opts)
	_, err := s.Open(path, false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Quoted newlines")
}

// Serial and parallel modes must agree row for row whenever the block
// size is at least one line long.
func TestSerialParallelDeterminism(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "%d,row-%d,%d\n", i, i, i*i)
	}
	path := writeFile(t, sb.String())

	serial := NewSource(storage.OSFileSystem{}, cast.DefaultOptions())
	sr, err := serial.Open(path, false)
	require.NoError(t, err)
	want := readAll(t, sr)
	require.Len(t, want, 500)

	for _, blockSize := range []int{32, 64, 100, 1 << 20} {
		opts := cast.DefaultOptions()
		opts.Parallel = true
		par := NewSource(storage.OSFileSystem{}, opts)
		par.BlockSize = blockSize
		pr, err := par.Open(path, false)
		require.NoError(t, err)
		got := readAll(t, pr)
		require.Equal(t, want, got, "block size %d", blockSize)
	}
}

func TestHandleRowErrorIgnoreErrorsCollectsWarnings(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("1152921504606846976\n")
	}
	path := writeFile(t, sb.String())

	warn := NewWarningContext(0)
	s := NewSource(storage.OSFileSystem{}, cast.DefaultOptions())
	s.Warn = warn
	s.IgnoreErrors = true
	s.QueryID = "q1"
	r, err := s.Open(path, false)
	require.NoError(t, err)

	for line := 1; ; line++ {
		_, ok, err := r.ReadRow()
		require.NoError(t, err)
		if !ok {
			break
		}
		cause := cyqerr.Newf(cyqerr.KindConversion, "Cast failed. Could not convert %q to INT32.", "1152921504606846976")
		require.NoError(t, r.HandleRowError(cause))
	}
	require.NoError(t, r.Close())

	ws := warn.Snapshot()
	require.Len(t, ws, 10)
	require.Equal(t, 10, warn.CountForQuery("q1"))
	for i, w := range ws {
		require.Equal(t, uint64(i+1), w.LineNumber)
		require.True(t, strings.HasPrefix(w.Message,
			`Conversion exception: Cast failed. Could not convert "1152921504606846976" to INT32.`), w.Message)
		require.Equal(t, "1152921504606846976", w.Skipped)
		require.Equal(t, path, w.FilePath)
	}
}

func TestHandleRowErrorWithoutIgnoreAborts(t *testing.T) {
	path := writeFile(t, "ok\nboom\n")
	s := NewSource(storage.OSFileSystem{}, cast.DefaultOptions())
	r, err := s.Open(path, false)
	require.NoError(t, err)

	_, ok, err := r.ReadRow()
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = r.ReadRow()
	require.NoError(t, err)
	require.True(t, ok)

	cause := cyqerr.Newf(cyqerr.KindConversion, "Cast failed. Could not convert %q to INT32.", "boom")
	abort := r.HandleRowError(cause)
	require.Error(t, abort)
	require.Contains(t, abort.Error(), "on line 2")
	require.Contains(t, abort.Error(), `"boom"`)
}

func TestErrorHandlerDefersUntilPrefixDone(t *testing.T) {
	h := NewErrorHandler("f.csv", false, func(start, end int64) string { return "bad" })
	// Block 1 fails at its first line while block 0 is still parsing.
	require.NoError(t, h.Handle(1, 0, "Conversion exception: nope", 0, 3))

	// Block 0 finishes with 7 lines; the deferred error resolves to
	// global line 8.
	for i := 0; i < 7; i++ {
		h.CountLine(0)
	}
	err := h.FinishBlock(0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "on line 8")
}

func TestDetectAndExpandFormats(t *testing.T) {
	require.Equal(t, FormatCSV, DetectFormat("x/a.csv"))
	require.Equal(t, FormatParquet, DetectFormat("b.PARQUET"))
	require.Equal(t, FormatNPY, DetectFormat("c.npy"))

	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv", "c.parquet"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644))
	}
	paths, format, err := ExpandPaths(storage.OSFileSystem{}, filepath.Join(dir, "*.csv"))
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, FormatCSV, format)

	_, _, err = ExpandPaths(storage.OSFileSystem{}, filepath.Join(dir, "*"))
	require.Error(t, err)
	require.Equal(t, cyqerr.KindCopy, cyqerr.KindOf(err))
}
