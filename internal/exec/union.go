package exec

import "fmt"

// Union is the UNION / UNION ALL operator: concatenates its two children's
// rows, deduping across both sides when All is false (Cypher's UNION
// semantics, not a per-side DISTINCT).
type Union struct {
	left, right Operator
	all         bool

	leftDone bool
	seen     map[string]bool
}

func NewUnion(left, right Operator, all bool) *Union {
	return &Union{left: left, right: right, all: all}
}

func (u *Union) Schema() []string { return u.left.Schema() }

func (u *Union) Next(ctx *ExecContext, out *DataChunk) (bool, error) {
	for {
		var ok bool
		var err error
		in := &DataChunk{}
		if !u.leftDone {
			ok, err = u.left.Next(ctx, in)
			if err != nil {
				return false, err
			}
			if !ok {
				u.leftDone = true
				continue
			}
		} else {
			ok, err = u.right.Next(ctx, in)
			if err != nil || !ok {
				return ok, err
			}
		}
		if u.all {
			*out = *in
			return true, nil
		}
		if u.seen == nil {
			u.seen = map[string]bool{}
		}
		keep := make([]bool, in.Selection.Count)
		any := false
		for i := 0; i < in.Selection.Count; i++ {
			pos := in.Selection.At(i)
			key, err := rowKeyRaw(in, pos)
			if err != nil {
				return false, err
			}
			if u.seen[key] {
				continue
			}
			u.seen[key] = true
			keep[i] = true
			any = true
		}
		if !any {
			continue
		}
		in.Narrow(in.Selection.Filter(keep))
		*out = *in
		return true, nil
	}
}

func rowKeyRaw(chunk *DataChunk, pos uint32) (string, error) {
	var b []byte
	for _, v := range chunk.Vectors {
		val, isNull, err := readVector(v, pos)
		if err != nil {
			return "", err
		}
		if isNull {
			val = nil
		}
		b = append(b, []byte(fmt.Sprintf("%v|", val))...)
	}
	return string(b), nil
}
