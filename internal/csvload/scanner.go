package csvload

import (
	"github.com/dreamware/cyq/internal/cast"
	"github.com/dreamware/cyq/internal/cyqerr"
)

// machineState enumerates the field parser's states.
type machineState uint8

const (
	stateValueStart machineState = iota
	stateNormal
	stateInQuotes
	stateUnquote
	stateHandleEscape
	stateCarriageReturn
)

// row is one parsed CSV record plus the byte range it occupied, kept so a
// failed row can be reconstructed for its error message.
type row struct {
	fields []string
	start  int64 // file offset of the row's first byte
	end    int64 // file offset one past the row's terminator
}

// machine is the field/row state machine shared by serial and parallel
// scanning. It walks a byte window whose first byte sits at file offset
// base; allowQuotedNewline distinguishes serial from block mode.
type machine struct {
	data               []byte
	pos                int
	base               int64
	opts               cast.Options
	allowQuotedNewline bool
}

func newMachine(data []byte, base int64, opts cast.Options, allowQuotedNewline bool) *machine {
	return &machine{data: data, base: base, opts: opts, allowQuotedNewline: allowQuotedNewline}
}

// offset returns the file offset of the next unread byte.
func (m *machine) offset() int64 { return m.base + int64(m.pos) }

// exhausted reports whether the window has no bytes left.
func (m *machine) exhausted() bool { return m.pos >= len(m.data) }

// nextRow parses one record. It returns nil with no error at end of
// input (a trailing newline does not produce an empty record).
func (m *machine) nextRow() (*row, error) {
	if m.exhausted() {
		return nil, nil
	}
	r := &row{start: m.offset()}
	var field []byte
	// Escape and doubled-quote positions found inside a quoted field,
	// de-escaped in one pass when the field completes.
	var escapes []int
	quoted := false
	state := stateValueStart

	commitField := func() {
		val := field
		if len(escapes) > 0 {
			val = deEscape(val, escapes)
		}
		s := string(val)
		if !quoted {
			s = trimSpace(s)
		}
		r.fields = append(r.fields, s)
		field = field[:0]
		escapes = escapes[:0]
		quoted = false
	}

	for m.pos < len(m.data) {
		c := m.data[m.pos]
		switch state {
		case stateValueStart:
			switch c {
			case m.opts.Quote:
				quoted = true
				state = stateInQuotes
			case m.opts.Delimiter:
				commitField()
			case '\r':
				state = stateCarriageReturn
			case '\n':
				m.pos++
				commitField()
				r.end = m.offset()
				return m.finishRow(r)
			default:
				field = append(field, c)
				state = stateNormal
			}
		case stateNormal:
			switch c {
			case m.opts.Delimiter:
				commitField()
				state = stateValueStart
			case '\r':
				state = stateCarriageReturn
			case '\n':
				m.pos++
				commitField()
				r.end = m.offset()
				return m.finishRow(r)
			default:
				field = append(field, c)
			}
		case stateInQuotes:
			switch c {
			case m.opts.Escape:
				state = stateHandleEscape
			case m.opts.Quote:
				// Doubled quote is a literal quote; a lone quote closes.
				if m.pos+1 < len(m.data) && m.data[m.pos+1] == m.opts.Quote {
					escapes = append(escapes, len(field))
					field = append(field, c, c)
					m.pos++
				} else {
					state = stateUnquote
				}
			case '\n', '\r':
				if !m.allowQuotedNewline {
					return nil, cyqerr.Newf(cyqerr.KindCopy,
						"Quoted newlines are not supported in parallel CSV reading (line offset %d). Specify PARALLEL=FALSE.", r.start)
				}
				field = append(field, c)
			default:
				field = append(field, c)
			}
		case stateHandleEscape:
			escapes = append(escapes, len(field))
			field = append(field, m.opts.Escape, c)
			state = stateInQuotes
		case stateUnquote:
			switch c {
			case m.opts.Delimiter:
				commitField()
				state = stateValueStart
			case '\r':
				state = stateCarriageReturn
			case '\n':
				m.pos++
				commitField()
				r.end = m.offset()
				return m.finishRow(r)
			default:
				return nil, cyqerr.Newf(cyqerr.KindCopy,
					"Error in file around offset %d: quoted value must be followed by a delimiter or newline", m.offset())
			}
		case stateCarriageReturn:
			if c == '\n' {
				m.pos++
			}
			commitField()
			r.end = m.offset()
			return m.finishRow(r)
		}
		m.pos++
	}

	// End of input.
	switch state {
	case stateInQuotes, stateHandleEscape:
		return nil, cyqerr.Newf(cyqerr.KindCopy,
			"Error in file around offset %d: unterminated quoted value", m.offset())
	case stateCarriageReturn:
		commitField()
	default:
		commitField()
	}
	r.end = m.offset()
	return m.finishRow(r)
}

// finishRow drops the phantom empty record a trailing newline or blank
// line would otherwise produce.
func (m *machine) finishRow(r *row) (*row, error) {
	if len(r.fields) == 1 && r.fields[0] == "" {
		if m.exhausted() {
			return nil, nil
		}
		return m.nextRow()
	}
	return r, nil
}

// deEscape collapses each recorded two-byte escape (escape char + literal,
// or doubled quote) into its single literal byte.
func deEscape(field []byte, escapes []int) []byte {
	out := make([]byte, 0, len(field))
	prev := 0
	for _, at := range escapes {
		out = append(out, field[prev:at]...)
		out = append(out, field[at+1]) // keep the escaped byte, drop the marker
		prev = at + 2
	}
	return append(out, field[prev:]...)
}

// trimSpace strips surrounding blanks from an unquoted token. Quoted
// fields keep their whitespace; the cast layer handles the NULL token.
func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}
