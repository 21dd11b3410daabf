package cast

import (
	"strings"

	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// CopyStringToVector is the casting layer's entry point: it
// writes text into vec at pos, honoring the NULL token, then dispatching to
// either the scalar cast table or one of the nested (list/array/map/
// struct/union) parsers based on vec's logical type.
func CopyStringToVector(vec *types.Vector, pos uint32, text string, opts Options) error {
	if IsNullToken(text) {
		vec.SetNull(pos)
		return nil
	}
	// The position may be reused after a skipped row; stale null state
	// must not survive a successful cast.
	vec.ClearNull(pos)
	switch vec.Type.Kind {
	case types.LIST, types.ARRAY:
		return castList(vec, pos, text, opts)
	case types.MAP:
		return castMap(vec, pos, text, opts)
	case types.STRUCT:
		return castStruct(vec, pos, text, opts)
	case types.UNION:
		return castUnion(vec, pos, text, opts)
	default:
		unquoted, err := unquote(text, opts)
		if err != nil {
			return err
		}
		return CastScalar(vec, pos, unquoted, opts)
	}
}

// splitTopLevel breaks s into the top-level delimiter-separated elements
// inside a bracketed/braced body, tracking quote state and nested bracket
// depth with a small state machine so element boundaries inside nested
// structures don't split.
func splitTopLevel(s string, delim byte, opts Options) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	inQuotes := false
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case inQuotes:
			if c == opts.Escape && i+1 < len(s) {
				cur.WriteByte(c)
				cur.WriteByte(s[i+1])
				i += 2
				continue
			}
			if c == opts.Quote {
				if i+1 < len(s) && s[i+1] == opts.Quote {
					cur.WriteByte(c)
					cur.WriteByte(c)
					i += 2
					continue
				}
				inQuotes = false
			}
			cur.WriteByte(c)
			i++
		case c == opts.Quote:
			inQuotes = true
			cur.WriteByte(c)
			i++
		case c == opts.ListBegin || c == opts.StructBegin:
			depth++
			cur.WriteByte(c)
			i++
		case c == opts.ListEnd || c == opts.StructEnd:
			depth--
			cur.WriteByte(c)
			i++
		case c == delim && depth == 0:
			out = append(out, cur.String())
			cur.Reset()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	if cur.Len() > 0 || len(out) > 0 {
		out = append(out, cur.String())
	}
	return out
}

// unquote strips a balanced pair of opts.Quote characters and resolves
// doubled-quote and escaped-quote literals, erroring on an unterminated
// quote.
func unquote(s string, opts Options) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" || t[0] != opts.Quote {
		return t, nil
	}
	var sb strings.Builder
	i := 1
	closed := false
	for i < len(t) {
		c := t[i]
		if c == opts.Escape && i+1 < len(t) {
			sb.WriteByte(t[i+1])
			i += 2
			continue
		}
		if c == opts.Quote {
			if i+1 < len(t) && t[i+1] == opts.Quote {
				sb.WriteByte(opts.Quote)
				i += 2
				continue
			}
			closed = true
			i++
			break
		}
		sb.WriteByte(c)
		i++
	}
	if !closed {
		return "", cyqerr.Newf(cyqerr.KindConversion, "unterminated quote in %q", s).WithSubstr(s)
	}
	return sb.String(), nil
}

// castList parses "[e1, e2, ...]" into vec's list-entry + child data
// vector in two passes: pass 1 counts elements, pass 2
// allocates the list entry and re-scans to populate the child vector. For
// ARRAY(T,N) the element count must equal N.
func castList(vec *types.Vector, pos uint32, text string, opts Options) error {
	t := strings.TrimSpace(text)
	if len(t) < 2 || t[0] != opts.ListBegin || t[len(t)-1] != opts.ListEnd {
		return conversionErr(vec.Type.String(), text)
	}
	body := t[1 : len(t)-1]
	var elems []string
	if strings.TrimSpace(body) != "" {
		elems = splitTopLevel(body, opts.Delimiter, opts)
	}
	if vec.Type.Kind == types.ARRAY && uint32(len(elems)) != vec.Type.Length {
		return cyqerr.Newf(cyqerr.KindConversion,
			"Cast failed. Expected array of length %d but got %d elements.", vec.Type.Length, len(elems))
	}

	child := vec.Children[0]
	offset := childWriteOffset(vec)
	for i, e := range elems {
		if err := CopyStringToVector(child, offset+uint32(i), strings.TrimSpace(e), opts); err != nil {
			return err
		}
	}
	vec.SetListEntry(pos, offset, uint32(len(elems)))
	advanceChildWriteOffset(vec, uint32(len(elems)))
	return nil
}

// childWriteOffset/advanceChildWriteOffset track the next free position in
// a list vector's child data vector across repeated castList calls within
// one CopyStringToVector batch; the child data vector only ever grows
// monotonically within a batch.
func childWriteOffset(vec *types.Vector) uint32 {
	return vec.ChildWriteOffset()
}
func advanceChildWriteOffset(vec *types.Vector, n uint32) {
	vec.AdvanceChildWriteOffset(n)
}

// castMap parses "{k=v, k=v, ...}" as a list of two-field structs, with
// "=" separating key and value.
func castMap(vec *types.Vector, pos uint32, text string, opts Options) error {
	t := strings.TrimSpace(text)
	if len(t) < 2 || t[0] != opts.StructBegin || t[len(t)-1] != opts.StructEnd {
		return conversionErr(vec.Type.String(), text)
	}
	body := t[1 : len(t)-1]
	var pairs []string
	if strings.TrimSpace(body) != "" {
		pairs = splitTopLevel(body, opts.Delimiter, opts)
	}

	child := vec.Children[0] // struct{key,value} data vector
	keyVec := child.Children[0]
	valVec := child.Children[1]
	offset := childWriteOffset(vec)
	for i, p := range pairs {
		eq := splitOnce(p, '=', opts)
		if eq < 0 {
			return conversionErr(vec.Type.String(), text)
		}
		k := strings.TrimSpace(p[:eq])
		v := strings.TrimSpace(p[eq+1:])
		if err := CopyStringToVector(keyVec, offset+uint32(i), k, opts); err != nil {
			return err
		}
		if err := CopyStringToVector(valVec, offset+uint32(i), v, opts); err != nil {
			return err
		}
	}
	vec.SetListEntry(pos, offset, uint32(len(pairs)))
	advanceChildWriteOffset(vec, uint32(len(pairs)))
	return nil
}

// splitOnce finds the first top-level occurrence of sep outside quotes.
func splitOnce(s string, sep byte, opts Options) int {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == opts.Escape && i+1 < len(s) {
			i++
			continue
		}
		if c == opts.Quote {
			inQuotes = !inQuotes
			continue
		}
		if c == sep && !inQuotes {
			return i
		}
	}
	return -1
}

// castStruct parses "{field: value, field: value, ...}": unknown field
// names fail, missing fields become null.
func castStruct(vec *types.Vector, pos uint32, text string, opts Options) error {
	t := strings.TrimSpace(text)
	if len(t) < 2 || t[0] != opts.StructBegin || t[len(t)-1] != opts.StructEnd {
		return conversionErr(vec.Type.String(), text)
	}
	body := t[1 : len(t)-1]
	var pairs []string
	if strings.TrimSpace(body) != "" {
		pairs = splitTopLevel(body, opts.Delimiter, opts)
	}

	seen := make([]bool, len(vec.Type.Fields))
	for _, p := range pairs {
		colon := splitOnce(p, ':', opts)
		if colon < 0 {
			return conversionErr(vec.Type.String(), text)
		}
		name := strings.TrimSpace(p[:colon])
		value := strings.TrimSpace(p[colon+1:])
		idx := fieldIndex(vec.Type.Fields, name)
		if idx < 0 {
			return cyqerr.Newf(cyqerr.KindConversion, "Cast failed. Unknown field %q for %s.", name, vec.Type)
		}
		seen[idx] = true
		if err := CopyStringToVector(vec.Children[idx], pos, value, opts); err != nil {
			return err
		}
	}
	for i, wasSeen := range seen {
		if !wasSeen {
			vec.Children[i].SetNull(pos)
		}
	}
	return nil
}

func fieldIndex(fields []types.StructField, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// castUnion tries each alternative in declared order; the first successful
// parse wins, the tag field is set, and sibling alternatives are null, per
// declaration order. If none parses, cast fails.
func castUnion(vec *types.Vector, pos uint32, text string, opts Options) error {
	for i, f := range vec.Type.Fields {
		child := vec.Children[i]
		if err := CopyStringToVector(child, pos, text, opts); err == nil {
			vec.UnionTags[pos] = uint8(i)
			for j, other := range vec.Children {
				if j != i {
					other.SetNull(pos)
				}
			}
			_ = f
			return nil
		}
	}
	return conversionErr(vec.Type.String(), text)
}
