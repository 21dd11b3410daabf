package planner

import (
	"fmt"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/parser/token"
)

// splitConjuncts flattens a WHERE expression's top-level AND tree into its
// individual conjuncts's "any WHERE conjunct".
func splitConjuncts(e *binder.BoundExpr) []*binder.BoundExpr {
	if e == nil {
		return nil
	}
	if e.Kind == binder.KindBinary && e.Op == token.AND {
		return append(splitConjuncts(e.Left), splitConjuncts(e.Right)...)
	}
	return []*binder.BoundExpr{e}
}

// collectVars gathers every KindVar reference inside e (the base of a
// property access counts as a reference to that variable).
func collectVars(e *binder.BoundExpr) map[string]bool {
	out := make(map[string]bool)
	var walk func(*binder.BoundExpr)
	walk = func(e *binder.BoundExpr) {
		if e == nil {
			return
		}
		switch e.Kind {
		case binder.KindVar:
			out[e.Var] = true
		case binder.KindProperty:
			walk(e.Base)
		case binder.KindBinary, binder.KindStringPredicate:
			walk(e.Left)
			walk(e.Right)
		case binder.KindUnary, binder.KindIsNull:
			walk(e.Operand)
		case binder.KindFunctionCall:
			for _, a := range e.Args {
				walk(a)
			}
		case binder.KindCase:
			walk(e.CaseTest)
			for _, w := range e.CaseWhens {
				walk(w.Condition)
				walk(w.Result)
			}
			walk(e.CaseElse)
		case binder.KindList:
			for _, el := range e.Elements {
				walk(el)
			}
		case binder.KindMap:
			for _, v := range e.MapValues {
				walk(v)
			}
		case binder.KindExists:
			walk(e.ExistsWhere)
			for _, n := range e.ExistsGraph.Nodes {
				out[n.Alias] = true
			}
		}
	}
	walk(e)
	return out
}

// propRef is one property access a predicate needs materialized before it
// can evaluate.
type propRef struct {
	Var  string
	Prop string
}

func collectPropertyRefs(e *binder.BoundExpr) []propRef {
	var out []propRef
	var walk func(*binder.BoundExpr)
	walk = func(e *binder.BoundExpr) {
		if e == nil {
			return
		}
		switch e.Kind {
		case binder.KindProperty:
			if e.Base != nil && e.Base.Kind == binder.KindVar {
				out = append(out, propRef{Var: e.Base.Var, Prop: e.Property})
			}
		case binder.KindBinary, binder.KindStringPredicate:
			walk(e.Left)
			walk(e.Right)
		case binder.KindUnary, binder.KindIsNull:
			walk(e.Operand)
		case binder.KindFunctionCall:
			for _, a := range e.Args {
				walk(a)
			}
		case binder.KindCase:
			walk(e.CaseTest)
			for _, w := range e.CaseWhens {
				walk(w.Condition)
				walk(w.Result)
			}
			walk(e.CaseElse)
		case binder.KindList:
			for _, el := range e.Elements {
				walk(el)
			}
		case binder.KindMap:
			for _, v := range e.MapValues {
				walk(v)
			}
		}
	}
	walk(e)
	return out
}

// isRelAlias reports whether alias names one of g's bound relationships
// (as opposed to a node, or a variable from an enclosing WITH scope).
func isRelAlias(g *binder.QueryGraph, alias string) bool {
	for _, r := range g.Rels {
		if r.Alias == alias {
			return true
		}
	}
	return false
}

// resolvableAt reports whether every pattern variable in vars is already
// bound by (nodeMask, relMask). A variable this graph doesn't declare
// (one carried in from an enclosing WITH/MATCH scope) is always
// considered available.
func resolvableAt(vars map[string]bool, g *binder.QueryGraph, nodeMask, relMask uint64) bool {
	for v := range vars {
		found := false
		for i, n := range g.Nodes {
			if n.Alias == v {
				found = true
				if nodeMask&(uint64(1)<<uint(i)) == 0 {
					return false
				}
				break
			}
		}
		if found {
			continue
		}
		for i, r := range g.Rels {
			if r.Alias == v {
				found = true
				if relMask&(uint64(1)<<uint(i)) == 0 {
					return false
				}
				break
			}
		}
	}
	return true
}

// ensureProperties wraps plan with a SCAN_NODE_PROPERTY/SCAN_REL_PROPERTY
// for every property conj references that isn't already in plan's
// schema, so the filter can evaluate without reaching into storage
// itself.
func ensureProperties(plan *Plan, g *binder.QueryGraph, conj *binder.BoundExpr) *Plan {
	relVars := make(map[string]bool, len(g.Rels))
	for _, r := range g.Rels {
		relVars[r.Alias] = true
	}
	return ensurePropertiesForExpr(plan, relVars, conj)
}

// ensurePropertiesForExpr is ensureProperties generalized to a plain
// relVars set, for call sites (WITH/RETURN projection items) that don't
// have a single QueryGraph in scope — a projection item can reference
// variables bound across several MATCH clauses.
func ensurePropertiesForExpr(plan *Plan, relVars map[string]bool, e *binder.BoundExpr) *Plan {
	for _, ref := range collectPropertyRefs(e) {
		col := fmt.Sprintf("%s.%s", ref.Var, ref.Prop)
		if hasColumn(plan.Schema, col) {
			continue
		}
		plan = &Plan{
			Kind: KindScanProperty, Children: []*Plan{plan},
			Base: ref.Var, Property: ref.Prop, IsRel: relVars[ref.Var],
			Schema: append(append([]string{}, plan.Schema...), col),
		}
	}
	return plan
}

// pushFilters applies every conjunct that becomes resolvable at cand's
// mask but was not resolvable at either predecessor. (Section
// 4.F's filter-pushdown rule.
func pushFilters(cand *candidate, predA, predB *candidate, g *binder.QueryGraph, conjuncts []*binder.BoundExpr) {
	for _, conj := range conjuncts {
		vars := collectVars(conj)
		if !resolvableAt(vars, g, cand.mask, cand.relMask) {
			continue
		}
		if predA != nil && resolvableAt(vars, g, predA.mask, predA.relMask) {
			continue
		}
		if predB != nil && resolvableAt(vars, g, predB.mask, predB.relMask) {
			continue
		}
		cand.plan = ensureProperties(cand.plan, g, conj)
		cand.plan = &Plan{Kind: KindFilter, Children: []*Plan{cand.plan}, Predicate: conj, Schema: cand.plan.Schema}
	}
}
