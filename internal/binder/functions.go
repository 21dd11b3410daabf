package binder

import (
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

// paramSpec is one declared parameter slot of a function signature: either
// a fixed Kind or the Any wildcard; each function declares a set of
// signatures of these plus a return type.
type paramSpec struct {
	any  bool
	kind types.Kind
}

func any_() paramSpec          { return paramSpec{any: true} }
func k(kind types.Kind) paramSpec { return paramSpec{kind: kind} }

func (p paramSpec) matches(t types.LogicalType) bool {
	if p.any {
		return true
	}
	return t.Kind == p.kind
}

// signature is one declared overload of a function.
type signature struct {
	params   []paramSpec
	variadic bool // last param repeats for any additional args
	ret      types.LogicalType
	// refine, when set, recomputes the return type from the actual bound
	// arguments (e.g. coalesce/min/max return their first argument's
	// type rather than a fixed one) — the "scalar ...
	// binder that may refine types".
	refine func(args []*BoundExpr) types.LogicalType
}

// funcDef is one entry of the function registry: its signatures plus
// whether it is an aggregate (only legal at the root of a projection
// expression).
type funcDef struct {
	name       string
	aggregate  bool
	signatures []signature
}

// Registry resolves function-call names to their declared signatures.
type Registry struct {
	fns map[string]funcDef
}

// DefaultRegistry returns the built-in scalar and aggregate functions
// named across the query surface and the built-in CALL table
// functions' scalar counterparts.
func DefaultRegistry() *Registry {
	r := &Registry{fns: make(map[string]funcDef)}
	reg := func(d funcDef) { r.fns[d.name] = d }

	reg(funcDef{name: "count", aggregate: true, signatures: []signature{
		{params: []paramSpec{any_()}, ret: types.Int64()},
	}})
	reg(funcDef{name: "sum", aggregate: true, signatures: []signature{
		{params: []paramSpec{any_()}, refine: firstArgType},
	}})
	reg(funcDef{name: "avg", aggregate: true, signatures: []signature{
		{params: []paramSpec{any_()}, ret: types.Double()},
	}})
	reg(funcDef{name: "min", aggregate: true, signatures: []signature{
		{params: []paramSpec{any_()}, refine: firstArgType},
	}})
	reg(funcDef{name: "max", aggregate: true, signatures: []signature{
		{params: []paramSpec{any_()}, refine: firstArgType},
	}})
	reg(funcDef{name: "collect", aggregate: true, signatures: []signature{
		{params: []paramSpec{any_()}, refine: func(args []*BoundExpr) types.LogicalType {
			return types.ListOf(args[0].Type)
		}},
	}})

	reg(funcDef{name: "abs", signatures: []signature{
		{params: []paramSpec{any_()}, refine: firstArgType},
	}})
	reg(funcDef{name: "ceil", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Double()}}})
	reg(funcDef{name: "floor", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Double()}}})
	reg(funcDef{name: "round", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Double()}}})
	reg(funcDef{name: "length", signatures: []signature{{params: []paramSpec{k(types.STRING)}, ret: types.Int64()}}})
	reg(funcDef{name: "size", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Int64()}}})
	reg(funcDef{name: "upper", signatures: []signature{{params: []paramSpec{k(types.STRING)}, ret: types.Str()}}})
	reg(funcDef{name: "lower", signatures: []signature{{params: []paramSpec{k(types.STRING)}, ret: types.Str()}}})
	reg(funcDef{name: "substring", signatures: []signature{
		{params: []paramSpec{k(types.STRING), k(types.INT64), k(types.INT64)}, ret: types.Str()},
	}})
	reg(funcDef{name: "concat", signatures: []signature{
		{params: []paramSpec{k(types.STRING)}, variadic: true, ret: types.Str()},
	}})
	reg(funcDef{name: "coalesce", signatures: []signature{
		{params: []paramSpec{any_()}, variadic: true, refine: firstArgType},
	}})
	reg(funcDef{name: "id", signatures: []signature{{params: []paramSpec{any_()}, ret: types.InternalID()}}})
	reg(funcDef{name: "label", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Str()}}})
	reg(funcDef{name: "properties", signatures: []signature{
		{params: []paramSpec{any_()}, ret: types.MapOf(types.Str(), types.Str())},
	}})
	reg(funcDef{name: "tostring", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Str()}}})
	reg(funcDef{name: "tointeger", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Int64()}}})
	reg(funcDef{name: "tofloat", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Double()}}})
	reg(funcDef{name: "toboolean", signatures: []signature{{params: []paramSpec{any_()}, ret: types.Bool()}}})

	return r
}

func firstArgType(args []*BoundExpr) types.LogicalType { return args[0].Type }

// Resolve finds a signature for name matching args' bound types and
// returns the call's result type and whether it is an aggregate.
func (r *Registry) Resolve(name string, args []*BoundExpr, star bool) (types.LogicalType, bool, error) {
	def, ok := r.fns[lower(name)]
	if !ok {
		return types.LogicalType{}, false, cyqerr.Newf(cyqerr.KindBinder, "unknown function %q", name)
	}
	if star {
		if lower(name) != "count" {
			return types.LogicalType{}, false, cyqerr.Newf(cyqerr.KindBinder, "%s(*) is not permitted", name)
		}
		return types.Int64(), true, nil
	}
	for _, sig := range def.signatures {
		if !sig.matchesArgs(args) {
			continue
		}
		ret := sig.ret
		if sig.refine != nil {
			ret = sig.refine(args)
		}
		return ret, def.aggregate, nil
	}
	return types.LogicalType{}, false, cyqerr.Newf(cyqerr.KindBinder,
		"no matching signature for %s(...) with %d argument(s)", name, len(args))
}

func (s signature) matchesArgs(args []*BoundExpr) bool {
	if s.variadic {
		if len(args) < len(s.params) {
			return false
		}
	} else if len(args) != len(s.params) {
		return false
	}
	for i, a := range args {
		p := s.params[len(s.params)-1]
		if i < len(s.params) {
			p = s.params[i]
		}
		if !p.matches(a.Type) {
			return false
		}
	}
	return true
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
