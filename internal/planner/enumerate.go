package planner

import (
	"math/bits"
	"sort"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/parser/ast"
	"github.com/dreamware/cyq/internal/types"
)

// candidate is one entry of the bottom-up subgraph table: the plan that
// currently wins for a given set of bound nodes, the set of rels it has
// already consumed (tracked separately from the node mask so the
// "both-endpoints-already-bound" diagnostic can be
// raised once the winning full-graph plan is known), and its cumulative
// estimated cost.
type candidate struct {
	plan    *Plan
	mask    uint64 // node bitmask
	relMask uint64 // rel bitmask
	cost    float64
}

// Enumerate builds and selects a logical plan for one MATCH clause's
// pattern: seed every node as SCAN_NODE_ID, expand by
// one rel at a time via EXTEND, join disjoint-but-overlapping subgraphs
// via HASH_JOIN once the target size reaches 4, pushing WHERE conjuncts
// down to the smallest subgraph that resolves them. The subgraph table is
// keyed purely by node mask (one winning candidate per mask); which rels
// that candidate consumed travels with it as plain data, so a redundant
// edge (both endpoints already bound — a cycle in the pattern) is simply
// never selected for expansion and is caught as an unsupported
// intersection once the full-graph winner is chosen.
func Enumerate(g *binder.QueryGraph, where *binder.BoundExpr, stats Stats) (*Plan, error) {
	n := len(g.Nodes)
	if n == 0 {
		return nil, cyqerr.New(cyqerr.KindRuntime, "cannot plan an empty pattern")
	}
	if n > 62 {
		return nil, cyqerr.New(cyqerr.KindRuntime, "pattern too large to plan (more than 62 nodes)")
	}

	conjuncts := splitConjuncts(where)
	best := make(map[uint64]*candidate)

	for i, node := range g.Nodes {
		mask := uint64(1) << uint(i)
		plan := &Plan{Kind: KindScanNodeID, NodeVar: node.Alias, LabelIDs: node.LabelIDs, Schema: []string{node.Alias}}
		cand := &candidate{plan: plan, mask: mask, cost: costScan(stats, node.LabelIDs)}
		pushFilters(cand, nil, nil, g, conjuncts)
		best[mask] = cand
	}

	full := uint64(1)<<uint(n) - 1
	if n == 1 {
		return finish(g, best[full])
	}

	for size := 2; size <= n; size++ {
		destinations := make(map[uint64]*candidate)

		for _, mask := range sortedMasks(best) {
			if bits.OnesCount64(mask) != size-1 {
				continue
			}
			expandOne(g, stats, conjuncts, mask, best[mask], destinations)
		}

		if size >= 4 {
			joinPairs(g, conjuncts, best, size, destinations)
		}

		for mask, cand := range destinations {
			if existing, ok := best[mask]; !ok || cand.cost < existing.cost {
				best[mask] = cand
			}
		}
	}

	winner, ok := best[full]
	if !ok {
		return nil, cyqerr.New(cyqerr.KindRuntime, "no plan connects the full pattern")
	}
	return finish(g, winner)
}

func finish(g *binder.QueryGraph, winner *candidate) (*Plan, error) {
	for ri, r := range g.Rels {
		if winner.relMask&(uint64(1)<<uint(ri)) == 0 {
			return nil, cyqerr.Newf(cyqerr.KindRuntime,
				"relationship %q has both endpoints already bound; intersection plans are not supported", r.Alias)
		}
	}
	return winner.plan, nil
}

func expandOne(g *binder.QueryGraph, stats Stats, conjuncts []*binder.BoundExpr, mask uint64, cand *candidate, destinations map[uint64]*candidate) {
	for ri, r := range g.Rels {
		rbit := uint64(1) << uint(ri)
		if cand.relMask&rbit != 0 {
			continue
		}
		srcIn := mask&(uint64(1)<<uint(r.Src)) != 0
		dstIn := mask&(uint64(1)<<uint(r.Dst)) != 0
		if srcIn == dstIn {
			continue // frontier edges only: exactly one endpoint already bound
		}
		var fromIdx, toIdx binder.NodeIdx
		var fromIsSrc bool
		if srcIn {
			fromIdx, toIdx, fromIsSrc = r.Src, r.Dst, true
		} else {
			fromIdx, toIdx, fromIsSrc = r.Dst, r.Src, false
		}
		newMask := mask | (uint64(1) << uint(toIdx))
		dir := walkDirection(r, fromIsSrc)
		boundLabel := singleLabel(g.Nodes[fromIdx].LabelIDs)
		cost := cand.cost + costExtend(stats, r.LabelIDs, dir, boundLabel, cand.cost)

		if existing, ok := destinations[newMask]; ok && existing.cost <= cost {
			continue
		}
		toNode := g.Nodes[toIdx]
		plan := &Plan{
			Kind: KindExtend, Children: []*Plan{cand.plan},
			RelVar: r.Alias, RelLabelIDs: r.LabelIDs, Direction: dir,
			FromVar: g.Nodes[fromIdx].Alias, ToVar: toNode.Alias,
			VarLength: r.VarLength.Set,
			VarLenLo:  r.VarLength.Lo,
			VarLenHi:  r.VarLength.Hi,
			Schema:    append(append([]string{}, cand.plan.Schema...), r.Alias, toNode.Alias),
		}
		nc := &candidate{plan: plan, mask: newMask, relMask: cand.relMask | rbit, cost: cost}
		pushFilters(nc, cand, nil, g, conjuncts)
		destinations[newMask] = nc
	}
}

func joinPairs(g *binder.QueryGraph, conjuncts []*binder.BoundExpr, best map[uint64]*candidate, size int, destinations map[uint64]*candidate) {
	masks := sortedMasks(best)
	for i, left := range masks {
		leftCand := best[left]
		if bits.OnesCount64(left) >= size {
			continue
		}
		for _, right := range masks[i+1:] {
			rightCand := best[right]
			if bits.OnesCount64(right) >= size {
				continue
			}
			overlap := left & right
			union := left | right
			if bits.OnesCount64(overlap) != 1 || bits.OnesCount64(union) != size {
				continue
			}
			joinKeyIdx := binder.NodeIdx(bits.TrailingZeros64(overlap))
			joinKeyAlias := g.Nodes[joinKeyIdx].Alias

			build, probe := leftCand, rightCand
			if rightCand.cost < leftCand.cost {
				build, probe = rightCand, leftCand
			}
			cost := costHashJoin(build.cost) + probe.cost
			if existing, ok := destinations[union]; ok && existing.cost <= cost {
				continue
			}
			plan := &Plan{
				Kind: KindHashJoin, Children: []*Plan{build.plan, probe.plan},
				JoinKey: joinKeyAlias, Schema: mergeSchema(build.plan.Schema, probe.plan.Schema),
			}
			nc := &candidate{plan: plan, mask: union, relMask: build.relMask | probe.relMask, cost: cost}
			pushFilters(nc, build, probe, g, conjuncts)
			destinations[union] = nc
		}
	}
}

// walkDirection maps a pattern's textual direction plus which endpoint is
// already bound to the catalog's Fwd/Bwd convention. DirRight and
// DirEither are treated identically (walking from the textual-left
// endpoint is Fwd); a fully bidirectional EXTEND that probes both CSR
// directions for DirEither is future work (see DESIGN.md).
func walkDirection(r *binder.QueryGraphRel, fromIsTextualSrc bool) catalog.Direction {
	if r.Direction == ast.DirLeft {
		if fromIsTextualSrc {
			return catalog.Bwd
		}
		return catalog.Fwd
	}
	if fromIsTextualSrc {
		return catalog.Fwd
	}
	return catalog.Bwd
}

func singleLabel(ids []int32) int32 {
	if len(ids) == 1 {
		return ids[0]
	}
	return types.ANY_LABEL
}

func sortedMasks(best map[uint64]*candidate) []uint64 {
	masks := make([]uint64, 0, len(best))
	for m := range best {
		masks = append(masks, m)
	}
	sort.Slice(masks, func(i, j int) bool { return masks[i] < masks[j] })
	return masks
}

func mergeSchema(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
