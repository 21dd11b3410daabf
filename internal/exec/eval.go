package exec

import (
	"strconv"
	"strings"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/parser/ast"
	"github.com/dreamware/cyq/internal/parser/token"
	"github.com/dreamware/cyq/internal/types"
)

// evalBool evaluates e at chunk row pos (a selected index, not a raw
// position — callers pass chunk.Selection.At(i)), returning its value and
// null state. Null handling follows three-valued logic for comparisons and
// AND/OR: a NULL operand makes AND false-dominant,
// OR true-dominant, and everything else propagates NULL.
func evalBool(ctx *ExecContext, e *binder.BoundExpr, chunk *DataChunk, pos uint32) (bool, bool, error) {
	switch e.Kind {
	case binder.KindBinary:
		switch e.Op {
		case token.AND:
			lv, ln, err := evalBool(ctx, e.Left, chunk, pos)
			if err != nil {
				return false, false, err
			}
			if !ln && !lv {
				return false, false, nil
			}
			rv, rn, err := evalBool(ctx, e.Right, chunk, pos)
			if err != nil {
				return false, false, err
			}
			if !rn && !rv {
				return false, false, nil
			}
			if ln || rn {
				return false, true, nil
			}
			return true, false, nil
		case token.OR:
			lv, ln, err := evalBool(ctx, e.Left, chunk, pos)
			if err != nil {
				return false, false, err
			}
			if !ln && lv {
				return true, false, nil
			}
			rv, rn, err := evalBool(ctx, e.Right, chunk, pos)
			if err != nil {
				return false, false, err
			}
			if !rn && rv {
				return true, false, nil
			}
			if ln || rn {
				return false, true, nil
			}
			return false, false, nil
		case token.XOR:
			lv, ln, err := evalBool(ctx, e.Left, chunk, pos)
			if err != nil {
				return false, false, err
			}
			rv, rn, err := evalBool(ctx, e.Right, chunk, pos)
			if err != nil {
				return false, false, err
			}
			if ln || rn {
				return false, true, nil
			}
			return lv != rv, false, nil
		case token.EQ, token.NEQ, token.LT, token.GT, token.LTE, token.GTE:
			return evalComparison(ctx, e, chunk, pos)
		}
		return false, false, cyqerr.Newf(cyqerr.KindRuntime, "operator %s does not yield BOOL", e.Op)

	case binder.KindUnary:
		if e.Op == token.NOT {
			v, n, err := evalBool(ctx, e.Operand, chunk, pos)
			if err != nil || n {
				return false, n, err
			}
			return !v, false, nil
		}
		return false, false, cyqerr.Newf(cyqerr.KindRuntime, "unary operator %s does not yield BOOL", e.Op)

	case binder.KindIsNull:
		_, isNull, err := evalScalar(ctx, e.Operand, chunk, pos)
		if err != nil {
			return false, false, err
		}
		if e.Negated {
			return !isNull, false, nil
		}
		return isNull, false, nil

	case binder.KindStringPredicate:
		return evalStringPredicate(ctx, e, chunk, pos)

	case binder.KindLiteral:
		if e.LitKind == ast.LitNull {
			return false, true, nil
		}
		return e.Raw == "true", false, nil

	case binder.KindParameter:
		v, ok := ctx.Params[e.Param]
		if !ok {
			return false, true, nil
		}
		b, _ := v.(bool)
		return b, false, nil

	default:
		v, isNull, err := evalScalar(ctx, e, chunk, pos)
		if err != nil {
			return false, false, err
		}
		if isNull {
			return false, true, nil
		}
		b, _ := v.(bool)
		return b, false, nil
	}
}

// scalarValue is the boxed-at-the-boundary representation evalScalar
// returns; every operator that needs a typed comparison or arithmetic
// result unboxes it immediately rather than carrying it further, the
// expression tree never storing boxed values itself.
func evalScalar(ctx *ExecContext, e *binder.BoundExpr, chunk *DataChunk, pos uint32) (any, bool, error) {
	switch e.Kind {
	case binder.KindLiteral:
		if e.LitKind == ast.LitNull {
			return nil, true, nil
		}
		return literalValue(e)

	case binder.KindParameter:
		v, ok := ctx.Params[e.Param]
		return v, !ok, nil

	case binder.KindVar:
		vec := chunk.Vector(e.Var)
		if vec == nil {
			return nil, false, cyqerr.Newf(cyqerr.KindRuntime, "column %q not materialized", e.Var)
		}
		return readVector(vec, pos)

	case binder.KindProperty:
		col := e.Base.Var + "." + e.Property
		vec := chunk.Vector(col)
		if vec == nil {
			return nil, false, cyqerr.Newf(cyqerr.KindRuntime, "property %q not materialized", col)
		}
		return readVector(vec, pos)

	case binder.KindBinary:
		return evalBinaryScalar(ctx, e, chunk, pos)

	case binder.KindUnary:
		switch e.Op {
		case token.DASH:
			v, isNull, err := evalScalar(ctx, e.Operand, chunk, pos)
			if err != nil || isNull {
				return nil, isNull, err
			}
			return negate(v)
		case token.PLUS:
			return evalScalar(ctx, e.Operand, chunk, pos)
		}
		b, n, err := evalBool(ctx, e, chunk, pos)
		return b, n, err

	case binder.KindCase:
		return evalCase(ctx, e, chunk, pos)

	case binder.KindList:
		out := make([]any, len(e.Elements))
		for i, el := range e.Elements {
			v, isNull, err := evalScalar(ctx, el, chunk, pos)
			if err != nil {
				return nil, false, err
			}
			if isNull {
				v = nil
			}
			out[i] = v
		}
		return out, false, nil

	default:
		b, n, err := evalBool(ctx, e, chunk, pos)
		return b, n, err
	}
}

func literalValue(e *binder.BoundExpr) (any, bool, error) {
	switch e.Type.Kind {
	case types.BOOL:
		return e.Raw == "true", false, nil
	case types.STRING:
		return e.Raw, false, nil
	default:
		if e.Type.IsNumeric() {
			return parseNumericLiteral(e.Raw)
		}
		return e.Raw, false, nil
	}
}

func readVector(vec *types.Vector, pos uint32) (any, bool, error) {
	if vec.IsNull(pos) {
		return nil, true, nil
	}
	switch vec.Type.Kind {
	case types.BOOL:
		return vec.GetBool(pos), false, nil
	case types.INT32:
		return int64(vec.GetInt32(pos)), false, nil
	case types.INT64, types.INTERNAL_ID, types.SERIAL:
		return vec.GetInt64(pos), false, nil
	case types.UINT32:
		return uint64(vec.GetUint32(pos)), false, nil
	case types.UINT64:
		return vec.GetUint64(pos), false, nil
	case types.FLOAT:
		return float64(vec.GetFloat(pos)), false, nil
	case types.DOUBLE:
		return vec.GetDouble(pos), false, nil
	case types.STRING, types.BLOB:
		return string(vec.GetBytes(pos)), false, nil
	default:
		return nil, false, cyqerr.Newf(cyqerr.KindRuntime, "evaluation of %s columns is not yet implemented", vec.Type)
	}
}

func evalBinaryScalar(ctx *ExecContext, e *binder.BoundExpr, chunk *DataChunk, pos uint32) (any, bool, error) {
	l, ln, err := evalScalar(ctx, e.Left, chunk, pos)
	if err != nil {
		return nil, false, err
	}
	r, rn, err := evalScalar(ctx, e.Right, chunk, pos)
	if err != nil {
		return nil, false, err
	}
	if ln || rn {
		return nil, true, nil
	}
	if e.Op == token.PLUS {
		if ls, ok := l.(string); ok {
			rs, _ := r.(string)
			return ls + rs, false, nil
		}
	}
	lf, lIsFloat, ok1 := asNumber(l)
	rf, rIsFloat, ok2 := asNumber(r)
	if !ok1 || !ok2 {
		return nil, false, cyqerr.Newf(cyqerr.KindRuntime, "arithmetic over non-numeric operand")
	}
	res := arith(e.Op, lf, rf)
	if lIsFloat || rIsFloat || e.Type.Kind == types.DOUBLE || e.Type.Kind == types.FLOAT {
		return res, false, nil
	}
	return int64(res), false, nil
}

func arith(op token.Type, l, r float64) float64 {
	switch op {
	case token.PLUS:
		return l + r
	case token.DASH:
		return l - r
	case token.ASTERISK:
		return l * r
	case token.SLASH:
		return l / r
	case token.PERCENT:
		li, ri := int64(l), int64(r)
		if ri == 0 {
			return 0
		}
		return float64(li % ri)
	default:
		return 0
	}
}

func asNumber(v any) (float64, bool, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), false, true
	case uint64:
		return float64(x), false, true
	case float64:
		return x, true, true
	default:
		return 0, false, false
	}
}

// parseNumericLiteral re-parses a literal's source text per target type
//; here it is re-parsed once more at evaluation time rather than
// cached on the BoundExpr, since a literal is evaluated once per row
// regardless and the cost is negligible next to the cast layer's own
// string-to-value work.
func parseNumericLiteral(raw string) (any, bool, error) {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if i, ierr := strconv.ParseInt(raw, 10, 64); ierr == nil {
			return i, false, nil
		}
		return f, false, nil
	}
	return nil, false, cyqerr.Newf(cyqerr.KindRuntime, "invalid numeric literal %q", raw)
}

func negate(v any) (any, bool, error) {
	switch x := v.(type) {
	case int64:
		return -x, false, nil
	case float64:
		return -x, false, nil
	default:
		return nil, false, cyqerr.Newf(cyqerr.KindRuntime, "cannot negate non-numeric value")
	}
}

func evalComparison(ctx *ExecContext, e *binder.BoundExpr, chunk *DataChunk, pos uint32) (bool, bool, error) {
	l, ln, err := evalScalar(ctx, e.Left, chunk, pos)
	if err != nil {
		return false, false, err
	}
	r, rn, err := evalScalar(ctx, e.Right, chunk, pos)
	if err != nil {
		return false, false, err
	}
	if ln || rn {
		return false, true, nil
	}
	cmp, err := compare(l, r)
	if err != nil {
		return false, false, err
	}
	switch e.Op {
	case token.EQ:
		return cmp == 0, false, nil
	case token.NEQ:
		return cmp != 0, false, nil
	case token.LT:
		return cmp < 0, false, nil
	case token.LTE:
		return cmp <= 0, false, nil
	case token.GT:
		return cmp > 0, false, nil
	case token.GTE:
		return cmp >= 0, false, nil
	default:
		return false, false, cyqerr.Newf(cyqerr.KindRuntime, "unsupported comparison operator %s", e.Op)
	}
}

func compare(l, r any) (int, error) {
	if ls, ok := l.(string); ok {
		rs, _ := r.(string)
		return strings.Compare(ls, rs), nil
	}
	if lb, ok := l.(bool); ok {
		rb, _ := r.(bool)
		if lb == rb {
			return 0, nil
		}
		if !lb {
			return -1, nil
		}
		return 1, nil
	}
	lf, _, ok1 := asNumber(l)
	rf, _, ok2 := asNumber(r)
	if !ok1 || !ok2 {
		return 0, cyqerr.Newf(cyqerr.KindRuntime, "cannot compare %T with %T", l, r)
	}
	switch {
	case lf < rf:
		return -1, nil
	case lf > rf:
		return 1, nil
	default:
		return 0, nil
	}
}

func evalStringPredicate(ctx *ExecContext, e *binder.BoundExpr, chunk *DataChunk, pos uint32) (bool, bool, error) {
	l, ln, err := evalScalar(ctx, e.Left, chunk, pos)
	if err != nil {
		return false, false, err
	}
	r, rn, err := evalScalar(ctx, e.Right, chunk, pos)
	if err != nil {
		return false, false, err
	}
	if ln || rn {
		return false, true, nil
	}
	ls, _ := l.(string)
	rs, _ := r.(string)
	switch e.StrPredKind {
	case ast.StartsWith:
		return strings.HasPrefix(ls, rs), false, nil
	case ast.EndsWith:
		return strings.HasSuffix(ls, rs), false, nil
	case ast.Contains:
		return strings.Contains(ls, rs), false, nil
	default:
		return false, false, cyqerr.Newf(cyqerr.KindRuntime, "unsupported string predicate %v", e.StrPredKind)
	}
}

func evalCase(ctx *ExecContext, e *binder.BoundExpr, chunk *DataChunk, pos uint32) (any, bool, error) {
	for _, w := range e.CaseWhens {
		var matched bool
		var isNull bool
		var err error
		if e.CaseTest != nil {
			tv, tn, terr := evalScalar(ctx, e.CaseTest, chunk, pos)
			if terr != nil {
				return nil, false, terr
			}
			wv, wn, werr := evalScalar(ctx, w.Condition, chunk, pos)
			if werr != nil {
				return nil, false, werr
			}
			if tn || wn {
				matched = false
			} else {
				cmp, cerr := compare(tv, wv)
				if cerr != nil {
					return nil, false, cerr
				}
				matched = cmp == 0
			}
		} else {
			matched, isNull, err = evalBool(ctx, w.Condition, chunk, pos)
			if err != nil {
				return nil, false, err
			}
			if isNull {
				matched = false
			}
		}
		if matched {
			return evalScalar(ctx, w.Result, chunk, pos)
		}
	}
	if e.CaseElse != nil {
		return evalScalar(ctx, e.CaseElse, chunk, pos)
	}
	return nil, true, nil
}
