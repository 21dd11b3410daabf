package planner

import (
	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
)

// Planner composes Enumerate's per-MATCH plans with the rest of a bound
// statement's clauses (UNWIND, LOAD CSV, CALL, WITH/RETURN projections,
// UNION, DDL) into one logical plan tree: "after the
// final MATCH, projections, updates (SET), and RETURN are appended. For
// multi-MATCH and multi-part (WITH) queries, plans from each part are
// composed in declaration order."
type Planner struct {
	cat   *catalog.Catalog
	stats Stats
}

// New returns a Planner using stats for cardinality estimates; pass
// NewCatalogStats(cat) until internal/storage can supply real row counts.
func New(cat *catalog.Catalog, stats Stats) *Planner {
	return &Planner{cat: cat, stats: stats}
}

// Plan turns a bound statement into its logical plan tree.
func (p *Planner) Plan(bs *binder.BoundStatement) (*Plan, error) {
	if bs.DDL != nil {
		return p.planDDL(bs.DDL)
	}
	return p.planQuery(bs.Query)
}

func (p *Planner) planDDL(ddl *binder.BoundDDL) (*Plan, error) {
	if ddl.CopyFrom != nil {
		kind := KindCopyNode
		if p.cat.ContainsRelLabel(ddl.CopyFrom.Table) {
			kind = KindRelBatchInsert
		}
		return &Plan{Kind: kind, DDL: ddl, Schema: []string{"result"}}, nil
	}
	return &Plan{Kind: KindDDL, DDL: ddl, Schema: []string{"result"}}, nil
}

func (p *Planner) planQuery(q *binder.BoundQuery) (*Plan, error) {
	var cur *Plan
	relVars := map[string]bool{}
	for _, part := range q.Parts {
		rp, err := p.planReadingClauses(part.Reading, cur, relVars)
		if err != nil {
			return nil, err
		}
		cur = attachProjection(rp, part.With, relVars)
	}

	rp, err := p.planReadingClauses(q.FinalReading, cur, relVars)
	if err != nil {
		return nil, err
	}
	cur = rp
	if len(q.Set) > 0 {
		for _, it := range q.Set {
			cur = ensurePropertiesForExpr(cur, relVars, it.Value)
		}
		cur = chain(cur, &Plan{Kind: KindSet, SetItems: q.Set, Schema: schemaOf(cur)})
	}
	if q.Return != nil {
		cur = attachProjection(cur, q.Return, relVars)
	}

	for _, u := range q.Unions {
		right, err := p.planQuery(u.Query)
		if err != nil {
			return nil, err
		}
		cur = &Plan{Kind: KindUnion, Children: []*Plan{cur, right}, All: u.All, Schema: cur.Schema}
	}
	return cur, nil
}

func (p *Planner) planReadingClauses(clauses []binder.BoundReadingClause, cur *Plan, relVars map[string]bool) (*Plan, error) {
	for _, c := range clauses {
		switch {
		case c.Match != nil:
			if c.Match.Optional {
				// Null-padding unmatched patterns needs an outer join the
				// execution layer does not have; planning it as a plain
				// MATCH would silently drop outer rows, so refuse instead.
				return nil, cyqerr.New(cyqerr.KindRuntime,
					"OPTIONAL MATCH is not supported; its unmatched rows would require outer-join null padding")
			}
			mp, err := Enumerate(c.Match.Graph, c.Match.Where, p.stats)
			if err != nil {
				return nil, err
			}
			for _, r := range c.Match.Graph.Rels {
				relVars[r.Alias] = true
			}
			cur = chain(cur, mp)
		case c.Unwind != nil:
			cur = chain(cur, &Plan{
				Kind: KindUnwind, Unwind: c.Unwind,
				Schema: append(append([]string{}, schemaOf(cur)...), c.Unwind.As),
			})
		case c.LoadCSV != nil:
			cur = chain(cur, &Plan{
				Kind: KindLoadCSV, LoadCSV: c.LoadCSV,
				Schema: append(append([]string{}, schemaOf(cur)...), c.LoadCSV.As),
			})
		case c.Call != nil:
			cur = chain(cur, &Plan{
				Kind: KindCall, Call: c.Call,
				Schema: append(append([]string{}, schemaOf(cur)...), c.Call.Yield...),
			})
		}
	}
	return cur, nil
}

// attachProjection builds the PROJECTION node for a WITH/RETURN clause,
// chaining it onto cur, then layers a FILTER for WITH's own WHERE (which
// the binder resolves against the projection's *output* aliases, so it
// must sit above the projection, not below) and a SORT for ORDER BY/SKIP/
// LIMIT on top of that.
func attachProjection(cur *Plan, proj *binder.BoundProjection, relVars map[string]bool) *Plan {
	if proj == nil {
		return cur
	}
	for _, it := range proj.Items {
		cur = ensurePropertiesForExpr(cur, relVars, it.Expr)
	}
	schema := make([]string, len(proj.Items))
	for i, it := range proj.Items {
		schema[i] = it.Alias
	}
	p := chain(cur, &Plan{Kind: KindProjection, Items: proj.Items, Distinct: proj.Distinct, Schema: schema})
	if proj.Where != nil {
		p = &Plan{Kind: KindFilter, Children: []*Plan{p}, Predicate: proj.Where, Schema: schema}
	}
	if len(proj.OrderBy) > 0 || proj.Skip != nil || proj.Limit != nil {
		p = &Plan{Kind: KindSort, Children: []*Plan{p}, OrderBy: proj.OrderBy, Skip: proj.Skip, Limit: proj.Limit, Schema: schema}
	}
	return p
}

func schemaOf(p *Plan) []string {
	if p == nil {
		return nil
	}
	return p.Schema
}

// chain threads cur in as the first child of next, composing pipeline
// stages "in declaration order" A nil cur means
// next has no upstream input (e.g. the first clause of a query part).
func chain(cur, next *Plan) *Plan {
	if cur == nil {
		return next
	}
	next.Children = append([]*Plan{cur}, next.Children...)
	return next
}
