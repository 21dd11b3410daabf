// Package cast implements the string-to-typed-value casting layer:
// scalar, nested list/array, map, struct and union parsing
// from text, shared by the CAST expression surface and the CSV ingestion
// fast path.
//
// Dispatch is table-driven (map[types.Kind]scalarCastFunc): one table,
// uniform signatures, no per-type specializations.
package cast

// Options configures the textual dialect a cast call should parse under.
// The zero value is
// not valid; use DefaultOptions().
type Options struct {
	Delimiter   byte
	Escape      byte
	Quote       byte
	ListBegin   byte
	ListEnd     byte
	StructBegin byte
	StructEnd   byte
	HasHeader   bool
	Parallel    bool
	SampleSize  int
}

// FromCopyOptions derives a dialect from a COPY statement's validated
// option list (upper-cased keys, literal values). Single-char options
// accept a bare character or a backslash escape.
func FromCopyOptions(bound map[string]string) Options {
	opts := DefaultOptions()
	ch := func(v string, def byte) byte {
		if len(v) == 1 {
			return v[0]
		}
		if len(v) == 2 && v[0] == '\\' {
			switch v[1] {
			case 't':
				return '\t'
			case 'n':
				return '\n'
			default:
				return v[1]
			}
		}
		return def
	}
	isTrue := func(v string) bool {
		return v == "true" || v == "TRUE" || v == "True" || v == "1"
	}
	for k, v := range bound {
		switch k {
		case "DELIM":
			opts.Delimiter = ch(v, opts.Delimiter)
		case "ESCAPE":
			opts.Escape = ch(v, opts.Escape)
		case "QUOTE":
			opts.Quote = ch(v, opts.Quote)
		case "PARALLEL":
			opts.Parallel = isTrue(v)
		case "HEADER":
			opts.HasHeader = isTrue(v)
		}
	}
	return opts
}

// DefaultOptions returns the standard dialect: comma delimiter,
// backslash escape, double-quote quoting, square-bracket lists, brace
// structs.
func DefaultOptions() Options {
	return Options{
		Delimiter:   ',',
		Escape:      '\\',
		Quote:       '"',
		ListBegin:   '[',
		ListEnd:     ']',
		StructBegin: '{',
		StructEnd:   '}',
		SampleSize:  1024,
	}
}
