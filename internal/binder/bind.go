package binder

import (
	"fmt"
	"sort"

	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/parser/ast"
	"github.com/dreamware/cyq/internal/parser/token"
	"github.com/dreamware/cyq/internal/types"
)

// scope is the variables-in-scope mapping: alias to the bound expression
// (always a KindVar BoundExpr) it currently refers to. It is threaded and
// mutated clause-by-clause, then wholesale-replaced at each WITH boundary.
type scope map[string]*BoundExpr

func cloneScope(sc scope) scope {
	out := make(scope, len(sc))
	for k, v := range sc {
		out[k] = v
	}
	return out
}

func scopeVarNames(sc scope) []string {
	names := make([]string, 0, len(sc))
	for k := range sc {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Binder resolves a parsed statement against a Catalog. The query graph
// is an arena plus stable indices (see querygraph.go); the binder itself
// holds no mutable state beyond its function registry and accumulates no
// errors across calls — each Bind call is independent, the same
// request-scoped shape as a single coordinator RPC handler.
type Binder struct {
	cat *catalog.Catalog
	fns *Registry
}

// New returns a Binder consulting cat for label ids, adjacency, and
// property types.
func New(cat *catalog.Catalog) *Binder {
	return &Binder{cat: cat, fns: DefaultRegistry()}
}

// BoundStatement is the result of Bind: exactly one of Query or DDL is set.
type BoundStatement struct {
	Query *BoundQuery
	DDL   *BoundDDL
}

// Bind resolves stmt against the catalog, returning a typed, scope-checked
// tree ready for planning.
func (b *Binder) Bind(stmt ast.Statement) (*BoundStatement, error) {
	if rq, ok := stmt.(*ast.RegularQueryStmt); ok {
		q, err := b.bindRegularQuery(rq.Query)
		if err != nil {
			return nil, err
		}
		return &BoundStatement{Query: q}, nil
	}
	ddl, err := b.bindDDL(stmt)
	if err != nil {
		return nil, err
	}
	return &BoundStatement{DDL: ddl}, nil
}

// -----------------------------------------------------------------------
// Query graph + reading clauses
// -----------------------------------------------------------------------

// BoundQuery is a bound RegularQuery: a SingleQuery plus any UNION [ALL]
// continuations.
type BoundQuery struct {
	Parts        []BoundQueryPart
	FinalReading []BoundReadingClause
	Set          []BoundSetItem
	Return       *BoundProjection
	Unions       []BoundUnion
}

// BoundSetItem is one resolved "SET var.prop = value" assignment: the
// target's label and property ordinal are fixed at bind time so the
// operator writes straight into the column chunk.
type BoundSetItem struct {
	Var      string
	Property string
	IsRel    bool
	LabelID  int32
	Ordinal  int
	Type     types.LogicalType
	Value    *BoundExpr
}

type BoundUnion struct {
	All   bool
	Query *BoundQuery
}

// BoundQueryPart is one WITH-terminated run of reading clauses.
type BoundQueryPart struct {
	Reading []BoundReadingClause
	With    *BoundProjection
}

// BoundReadingClause holds exactly one of its fields, mirroring the
// ast.ReadingClause variants.
type BoundReadingClause struct {
	Match   *BoundMatch
	Unwind  *BoundUnwind
	LoadCSV *BoundLoadCSV
	Call    *BoundCall
}

// BoundMatch is one bound MATCH/OPTIONAL MATCH clause: its own connected
// query graph plus an optional WHERE filter.
type BoundMatch struct {
	Optional bool
	Graph    *QueryGraph
	Where    *BoundExpr
}

type BoundUnwind struct {
	List *BoundExpr
	As   string
}

type BoundLoadCSV struct {
	WithHeaders bool
	From        *BoundExpr
	As          string
}

type BoundCall struct {
	Function string
	Args     []*BoundExpr
	Yield    []string
}

func (b *Binder) bindRegularQuery(rq *ast.RegularQuery) (*BoundQuery, error) {
	first, err := b.bindSingleQuery(rq.First, scope{})
	if err != nil {
		return nil, err
	}
	for _, u := range rq.Unions {
		uq, err := b.bindSingleQuery(u.Query, scope{})
		if err != nil {
			return nil, err
		}
		if err := unionCompatible(first.Return, uq.Return); err != nil {
			return nil, err
		}
		first.Unions = append(first.Unions, BoundUnion{All: u.All, Query: uq})
	}
	return first, nil
}

// unionCompatible enforces the coercion lattice a UNION [ALL] needs: equal
// column counts, and each pair of aligned columns must either be equal or
// both numeric (numeric widening), the same rule binary arithmetic uses.
func unionCompatible(a, b *BoundProjection) error {
	if a == nil || b == nil {
		return cyqerr.New(cyqerr.KindBinder, "UNION branches must both end in RETURN")
	}
	if len(a.Items) != len(b.Items) {
		return cyqerr.Newf(cyqerr.KindBinder, "UNION branches have different column counts: %d vs %d",
			len(a.Items), len(b.Items))
	}
	for i := range a.Items {
		ta, tb := a.Items[i].Expr.Type, b.Items[i].Expr.Type
		if ta.Equal(tb) {
			continue
		}
		if ta.IsNumeric() && tb.IsNumeric() {
			continue
		}
		return cyqerr.Newf(cyqerr.KindBinder, "UNION column %d types do not match: %s vs %s", i+1, ta, tb)
	}
	return nil
}

func (b *Binder) bindSingleQuery(sq *ast.SingleQuery, sc scope) (*BoundQuery, error) {
	q := &BoundQuery{}
	cur := sc
	for _, part := range sq.Parts {
		reading, err := b.bindReadingClauses(part.ReadingParts, cur)
		if err != nil {
			return nil, err
		}
		if part.With == nil {
			return nil, cyqerr.New(cyqerr.KindBinder, "query part is missing its WITH clause")
		}
		with, newScope, err := b.bindProjection(part.With.Items, cur, true, part.With.Distinct)
		if err != nil {
			return nil, err
		}
		if part.With.Where != nil {
			where, err := b.bindExpression(part.With.Where, newScope)
			if err != nil {
				return nil, err
			}
			if where.Type.Kind != types.BOOL && !where.Unknown {
				return nil, cyqerr.Newf(cyqerr.KindBinder, "WITH ... WHERE must be BOOL, got %s", where.Type)
			}
			with.Where = where
		}
		order, skip, limit, err := b.bindOrderSkipLimit(part.With.OrderBy, part.With.Skip, part.With.Limit, newScope)
		if err != nil {
			return nil, err
		}
		with.OrderBy, with.Skip, with.Limit = order, skip, limit

		q.Parts = append(q.Parts, BoundQueryPart{Reading: reading, With: with})
		cur = newScope
	}

	finalReading, err := b.bindReadingClauses(sq.ReadingParts, cur)
	if err != nil {
		return nil, err
	}
	q.FinalReading = finalReading

	if sq.Set != nil {
		set, err := b.bindSetClause(sq.Set, cur)
		if err != nil {
			return nil, err
		}
		q.Set = set
	}

	if sq.Return != nil {
		ret, newScope, err := b.bindProjection(sq.Return.Items, cur, false, sq.Return.Distinct)
		if err != nil {
			return nil, err
		}
		order, skip, limit, err := b.bindOrderSkipLimit(sq.Return.OrderBy, sq.Return.Skip, sq.Return.Limit, newScope)
		if err != nil {
			return nil, err
		}
		ret.OrderBy, ret.Skip, ret.Limit = order, skip, limit
		q.Return = ret
	}
	return q, nil
}

func (b *Binder) bindReadingClauses(clauses []ast.ReadingClause, sc scope) ([]BoundReadingClause, error) {
	var out []BoundReadingClause
	for _, c := range clauses {
		switch v := c.(type) {
		case *ast.MatchClause:
			m, err := b.bindMatchClause(v, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, BoundReadingClause{Match: m})
		case *ast.UnwindClause:
			u, err := b.bindUnwindClause(v, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, BoundReadingClause{Unwind: u})
		case *ast.LoadCSVClause:
			l, err := b.bindLoadCSVClause(v, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, BoundReadingClause{LoadCSV: l})
		case *ast.CallClause:
			call, err := b.bindCallClause(v, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, BoundReadingClause{Call: call})
		default:
			return nil, cyqerr.Newf(cyqerr.KindInternal, "unhandled reading clause %T", c)
		}
	}
	return out, nil
}

func (b *Binder) bindMatchClause(m *ast.MatchClause, sc scope) (*BoundMatch, error) {
	g := newQueryGraph()
	for _, pe := range m.Pattern {
		if err := b.bindPatternElement(pe, g, sc); err != nil {
			return nil, err
		}
	}
	if !g.connected() {
		return nil, cyqerr.New(cyqerr.KindBinder, "Disconnect query graph is not supported.")
	}
	bm := &BoundMatch{Optional: m.Optional, Graph: g}
	if m.Where != nil {
		where, err := b.bindExpression(m.Where, sc)
		if err != nil {
			return nil, err
		}
		if where.Type.Kind != types.BOOL && !where.Unknown {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "WHERE must be BOOL, got %s", where.Type)
		}
		bm.Where = where
	}
	return bm, nil
}

func (b *Binder) bindPatternElement(pe *ast.PatternElement, g *QueryGraph, sc scope) error {
	prev, err := b.bindNodePattern(pe.Start, g, sc)
	if err != nil {
		return err
	}
	for _, link := range pe.Chain {
		next, err := b.bindNodePattern(link.Node, g, sc)
		if err != nil {
			return err
		}
		if _, err := b.bindRelPattern(link.Rel, g, sc, prev, next); err != nil {
			return err
		}
		prev = next
	}
	return nil
}

func (b *Binder) bindNodePattern(np *ast.NodePattern, g *QueryGraph, sc scope) (NodeIdx, error) {
	if np.Variable != "" {
		if idx, ok := g.nodeIdx(np.Variable); ok {
			return idx, nil
		}
		if existing, ok := sc[np.Variable]; ok {
			if existing.Type.Kind != types.NODE {
				return 0, cyqerr.Newf(cyqerr.KindBinder, "variable %q is not a node", np.Variable)
			}
			if len(np.Labels) > 0 && existing.Type.Table != "" && existing.Type.Table != np.Labels[0] {
				return 0, cyqerr.Newf(cyqerr.KindBinder,
					"variable %q is bound to %q, cannot rematch against %q", np.Variable, existing.Type.Table, np.Labels[0])
			}
			labelIDs, err := b.resolveNodeLabels(np.Labels)
			if err != nil {
				return 0, err
			}
			return g.addNode(QueryGraphNode{Alias: np.Variable, Labels: np.Labels, LabelIDs: labelIDs, Properties: np.Properties}), nil
		}
	}

	labelIDs, err := b.resolveNodeLabels(np.Labels)
	if err != nil {
		return 0, err
	}
	alias := np.Variable
	if alias == "" {
		alias = fmt.Sprintf("_anon_node_%d", len(g.Nodes))
	}
	idx := g.addNode(QueryGraphNode{Alias: alias, Labels: np.Labels, LabelIDs: labelIDs, Properties: np.Properties})
	table := ""
	if len(np.Labels) > 0 {
		table = np.Labels[0]
	}
	sc[alias] = &BoundExpr{Kind: KindVar, Var: alias, Type: types.NodeType(table)}
	return idx, nil
}

func (b *Binder) resolveNodeLabels(labels []string) ([]int32, error) {
	ids := make([]int32, 0, len(labels))
	for _, l := range labels {
		id, ok := b.cat.NodeLabelID(l)
		if !ok {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "Node label %s does not exist.", l)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *Binder) bindRelPattern(rp *ast.RelPattern, g *QueryGraph, sc scope, src, dst NodeIdx) (RelIdx, error) {
	labelIDs := make([]int32, 0, len(rp.Types))
	for _, t := range rp.Types {
		id, ok := b.cat.RelLabelID(t)
		if !ok {
			return 0, cyqerr.Newf(cyqerr.KindBinder, "unknown relationship table %q", t)
		}
		labelIDs = append(labelIDs, id)
	}

	srcLabels, dstLabels := g.Nodes[src].LabelIDs, g.Nodes[dst].LabelIDs
	if rp.Direction == ast.DirLeft {
		srcLabels, dstLabels = dstLabels, srcLabels
	}
	if rp.Direction != ast.DirEither && len(labelIDs) == 1 && len(srcLabels) == 1 && len(dstLabels) == 1 {
		if !b.cat.AdjacencyExists(labelIDs[0], srcLabels[0], dstLabels[0]) {
			return 0, cyqerr.Newf(cyqerr.KindBinder,
				"relationship table %q does not connect %s to %s in the given direction",
				rp.Types[0], g.Nodes[src].Labels, g.Nodes[dst].Labels)
		}
	}

	alias := rp.Variable
	if alias == "" {
		alias = fmt.Sprintf("_anon_rel_%d", len(g.Rels))
	} else if existing, ok := sc[alias]; ok && existing.Type.Kind != types.REL {
		return 0, cyqerr.Newf(cyqerr.KindBinder, "variable %q is not a relationship", alias)
	}

	idx := g.addRel(QueryGraphRel{
		Alias: alias, Types: rp.Types, LabelIDs: labelIDs,
		Direction: rp.Direction, VarLength: rp.VarLength,
		Src: src, Dst: dst, Properties: rp.Properties,
	})
	if _, ok := sc[alias]; !ok {
		table := ""
		if len(rp.Types) > 0 {
			table = rp.Types[0]
		}
		sc[alias] = &BoundExpr{Kind: KindVar, Var: alias, Type: types.RelType(table)}
	}
	return idx, nil
}

func (b *Binder) bindUnwindClause(u *ast.UnwindClause, sc scope) (*BoundUnwind, error) {
	list, err := b.bindExpression(u.List, sc)
	if err != nil {
		return nil, err
	}
	var elem types.LogicalType
	switch {
	case list.Unknown:
		elem = types.LogicalType{}
	case list.Type.Kind == types.LIST || list.Type.Kind == types.ARRAY:
		elem = *list.Type.Elem
	default:
		return nil, cyqerr.Newf(cyqerr.KindBinder, "UNWIND requires a list, got %s", list.Type)
	}
	sc[u.As] = &BoundExpr{Kind: KindVar, Var: u.As, Type: elem}
	return &BoundUnwind{List: list, As: u.As}, nil
}

func (b *Binder) bindLoadCSVClause(l *ast.LoadCSVClause, sc scope) (*BoundLoadCSV, error) {
	from, err := b.bindExpression(l.From, sc)
	if err != nil {
		return nil, err
	}
	if from.Type.Kind != types.STRING && !from.Unknown {
		return nil, cyqerr.Newf(cyqerr.KindBinder, "LOAD CSV FROM requires a STRING path, got %s", from.Type)
	}
	// The row shape depends on the file's header row, unknowable at bind
	// time, so the bound variable carries a generic string-keyed row type
	// until the CSV reader resolves concrete columns at execution time.
	sc[l.As] = &BoundExpr{Kind: KindVar, Var: l.As, Type: types.MapOf(types.Str(), types.Str())}
	return &BoundLoadCSV{WithHeaders: l.WithHeaders, From: from, As: l.As}, nil
}

// tableFunctionColumns are the result columns of the table functions
// the engine ships: SHOW_TABLES and
// SHOW_WARNINGS.
var tableFunctionColumns = map[string][]catalog.Property{
	"show_tables": {
		{Name: "name", Type: types.Str()},
		{Name: "type", Type: types.Str()},
		{Name: "comment", Type: types.Str()},
	},
	"show_warnings": {
		{Name: "query_id", Type: types.Str()},
		{Name: "message", Type: types.Str()},
		{Name: "file_path", Type: types.Str()},
		{Name: "line_number", Type: types.UInt64()},
		{Name: "skipped_line_or_record", Type: types.Str()},
	},
}

func (b *Binder) bindCallClause(c *ast.CallClause, sc scope) (*BoundCall, error) {
	args := make([]*BoundExpr, len(c.Args))
	for i, a := range c.Args {
		be, err := b.bindExpression(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = be
	}
	cols, known := tableFunctionColumns[lower(c.Function)]
	for _, y := range c.Yield {
		t := types.Str()
		if known {
			for _, col := range cols {
				if col.Name == y {
					t = col.Type
					break
				}
			}
		}
		sc[y] = &BoundExpr{Kind: KindVar, Var: y, Type: t}
	}
	return &BoundCall{Function: c.Function, Args: args, Yield: c.Yield}, nil
}

// -----------------------------------------------------------------------
// Projections (WITH / RETURN)
// -----------------------------------------------------------------------

// bindSetClause resolves each assignment's target against the scope: the
// target must be a property access on an in-scope node or relationship
// variable, and the value's type must match the property's (or widen to
// it numerically).
func (b *Binder) bindSetClause(set *ast.SetClause, sc scope) ([]BoundSetItem, error) {
	out := make([]BoundSetItem, 0, len(set.Items))
	for _, item := range set.Items {
		target, err := b.bindExpression(item.Target, sc)
		if err != nil {
			return nil, err
		}
		if target.Kind != KindProperty || target.Base == nil || target.Base.Kind != KindVar {
			return nil, cyqerr.Newf(cyqerr.KindBinder,
				"SET target must be a property of a bound variable, got %q", item.Target.String())
		}
		value, err := b.bindExpression(item.Value, sc)
		if err != nil {
			return nil, err
		}
		if !value.Unknown && !value.Type.Equal(target.Type) &&
			!(value.Type.IsNumeric() && target.Type.IsNumeric()) {
			return nil, cyqerr.Newf(cyqerr.KindBinder,
				"SET cannot assign %s to property %q of type %s", value.Type, target.Property, target.Type)
		}

		isRel := target.Base.Type.Kind == types.REL
		table := target.Base.Type.Table
		var labelID int32
		if isRel {
			rel, ok := b.cat.RelTable(table)
			if !ok {
				return nil, cyqerr.Newf(cyqerr.KindBinder, "unknown relationship table %q", table)
			}
			labelID = rel.LabelID
		} else {
			node, ok := b.cat.NodeTable(table)
			if !ok {
				return nil, cyqerr.Newf(cyqerr.KindBinder, "Node label %s does not exist.", table)
			}
			labelID = node.LabelID
		}
		prop, ok := b.cat.GetProperty(table, target.Property)
		if !ok {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "unknown property %q on table %q", target.Property, table)
		}
		out = append(out, BoundSetItem{
			Var:      target.Base.Var,
			Property: target.Property,
			IsRel:    isRel,
			LabelID:  labelID,
			Ordinal:  prop.Ordinal,
			Type:     prop.Type,
			Value:    value,
		})
	}
	return out, nil
}

type BoundProjectionItem struct {
	Expr  *BoundExpr
	Alias string
}

// BoundProjection is a bound WITH or RETURN clause.
type BoundProjection struct {
	Distinct       bool
	Items          []BoundProjectionItem
	HasAggregation bool
	Where          *BoundExpr
	OrderBy        []BoundSortItem
	Skip, Limit    *BoundExpr
}

type BoundSortItem struct {
	Expr       *BoundExpr
	Descending bool
}

// bindProjection binds items against sc, enforcing explicit-AS aliasing
// when requireAlias is true (WITH), expanding "*" to every in-scope
// variable, rejecting duplicate column names, and enforcing that any
// aggregation call sits at the root of its projection expression (no
// nesting inside a non-aggregation). It returns the bound projection and
// the scope rebuilt
// from its aliases.
func (b *Binder) bindProjection(items []ast.ProjectionItem, sc scope, requireAlias, distinct bool) (*BoundProjection, scope, error) {
	proj := &BoundProjection{Distinct: distinct}
	seen := make(map[string]bool)

	addItem := func(alias string, be *BoundExpr) error {
		if seen[alias] {
			return cyqerr.Newf(cyqerr.KindBinder, "duplicate projection column %q", alias)
		}
		seen[alias] = true
		proj.Items = append(proj.Items, BoundProjectionItem{Expr: be, Alias: alias})
		if be.Kind == KindFunctionCall && be.IsAggregate {
			proj.HasAggregation = true
		} else if be.ContainsAggregate() {
			return cyqerr.New(cyqerr.KindBinder,
				"Aggregation function must be the root of expression tree.")
		}
		return nil
	}

	for _, item := range items {
		if _, ok := item.Expr.(*ast.StarExpr); ok {
			names := scopeVarNames(sc)
			if len(names) == 0 {
				return nil, nil, cyqerr.New(cyqerr.KindBinder, "* requires a nonempty scope")
			}
			for _, n := range names {
				if err := addItem(n, sc[n]); err != nil {
					return nil, nil, err
				}
			}
			continue
		}
		be, err := b.bindExpression(item.Expr, sc)
		if err != nil {
			return nil, nil, err
		}
		alias := item.Alias
		if alias == "" {
			if requireAlias {
				return nil, nil, cyqerr.Newf(cyqerr.KindBinder,
					"expression %q must be aliased in WITH (use AS)", item.Expr.String())
			}
			alias = item.Expr.String()
		}
		if err := addItem(alias, be); err != nil {
			return nil, nil, err
		}
	}

	newScope := make(scope, len(proj.Items))
	for _, it := range proj.Items {
		newScope[it.Alias] = &BoundExpr{Kind: KindVar, Var: it.Alias, Type: it.Expr.Type}
	}
	return proj, newScope, nil
}

func (b *Binder) bindOrderSkipLimit(order []ast.SortItem, skip, limit ast.Expression, sc scope) ([]BoundSortItem, *BoundExpr, *BoundExpr, error) {
	var out []BoundSortItem
	for _, o := range order {
		be, err := b.bindExpression(o.Expr, sc)
		if err != nil {
			return nil, nil, nil, err
		}
		out = append(out, BoundSortItem{Expr: be, Descending: o.Descending})
	}
	var boundSkip, boundLimit *BoundExpr
	if skip != nil {
		s, err := b.bindExpression(skip, sc)
		if err != nil {
			return nil, nil, nil, err
		}
		boundSkip = s
	}
	if limit != nil {
		l, err := b.bindExpression(limit, sc)
		if err != nil {
			return nil, nil, nil, err
		}
		boundLimit = l
	}
	return out, boundSkip, boundLimit, nil
}

// -----------------------------------------------------------------------
// Expressions
// -----------------------------------------------------------------------

func (b *Binder) bindExpression(e ast.Expression, sc scope) (*BoundExpr, error) {
	switch v := e.(type) {
	case *ast.Identifier:
		if be, ok := sc[v.Value]; ok {
			return be, nil
		}
		return nil, cyqerr.Newf(cyqerr.KindBinder, "unknown variable %q", v.Value)

	case *ast.PropertyAccess:
		base, err := b.bindExpression(v.Base, sc)
		if err != nil {
			return nil, err
		}
		if base.Type.Kind != types.NODE && base.Type.Kind != types.REL {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "cannot access property %q on %s", v.Property, base.Type)
		}
		prop, ok := b.cat.GetProperty(base.Type.Table, v.Property)
		if !ok {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "unknown property %q on table %q", v.Property, base.Type.Table)
		}
		return &BoundExpr{Kind: KindProperty, Base: base, Property: v.Property, Type: prop.Type}, nil

	case *ast.Literal:
		return bindLiteral(v), nil

	case *ast.Parameter:
		return &BoundExpr{Kind: KindParameter, Param: v.Name, Unknown: true}, nil

	case *ast.ListLiteral:
		elems := make([]*BoundExpr, len(v.Elements))
		var elemType types.LogicalType
		for i, el := range v.Elements {
			be, err := b.bindExpression(el, sc)
			if err != nil {
				return nil, err
			}
			elems[i] = be
			if i == 0 {
				elemType = be.Type
			}
		}
		return &BoundExpr{Kind: KindList, Elements: elems, Type: types.ListOf(elemType)}, nil

	case *ast.MapLiteral:
		vals := make([]*BoundExpr, len(v.Values))
		fields := make([]types.StructField, len(v.Values))
		for i, ve := range v.Values {
			be, err := b.bindExpression(ve, sc)
			if err != nil {
				return nil, err
			}
			vals[i] = be
			fields[i] = types.StructField{Name: v.Keys[i], Type: be.Type}
		}
		return &BoundExpr{Kind: KindMap, MapKeys: v.Keys, MapValues: vals, Type: types.StructOf(fields...)}, nil

	case *ast.BinaryExpr:
		l, err := b.bindExpression(v.Left, sc)
		if err != nil {
			return nil, err
		}
		r, err := b.bindExpression(v.Right, sc)
		if err != nil {
			return nil, err
		}
		if l.Unknown || r.Unknown {
			return &BoundExpr{Kind: KindBinary, Op: v.Op, Left: l, Right: r, Unknown: true}, nil
		}
		t, err := resolveBinary(v.Op, l, r)
		if err != nil {
			return nil, err
		}
		return &BoundExpr{Kind: KindBinary, Op: v.Op, Left: l, Right: r, Type: t}, nil

	case *ast.UnaryExpr:
		operand, err := b.bindExpression(v.Operand, sc)
		if err != nil {
			return nil, err
		}
		if operand.Unknown {
			return &BoundExpr{Kind: KindUnary, Op: v.Op, Operand: operand, Unknown: true}, nil
		}
		switch v.Op {
		case token.NOT:
			if operand.Type.Kind != types.BOOL {
				return nil, cyqerr.Newf(cyqerr.KindBinder, "NOT requires a BOOL operand, got %s", operand.Type)
			}
			return &BoundExpr{Kind: KindUnary, Op: v.Op, Operand: operand, Type: types.Bool()}, nil
		default: // DASH, PLUS
			if !operand.Type.IsNumeric() {
				return nil, cyqerr.Newf(cyqerr.KindBinder, "unary %s requires a numeric operand, got %s", v.Op, operand.Type)
			}
			return &BoundExpr{Kind: KindUnary, Op: v.Op, Operand: operand, Type: operand.Type}, nil
		}

	case *ast.IsNullExpr:
		operand, err := b.bindExpression(v.Operand, sc)
		if err != nil {
			return nil, err
		}
		return &BoundExpr{Kind: KindIsNull, Operand: operand, Negated: v.Negated, Type: types.Bool()}, nil

	case *ast.StringPredicateExpr:
		l, err := b.bindExpression(v.Left, sc)
		if err != nil {
			return nil, err
		}
		r, err := b.bindExpression(v.Right, sc)
		if err != nil {
			return nil, err
		}
		if !l.Unknown && l.Type.Kind != types.STRING {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "%s requires STRING operands, got %s", tokenForPred(v.Kind), l.Type)
		}
		if !r.Unknown && r.Type.Kind != types.STRING {
			return nil, cyqerr.Newf(cyqerr.KindBinder, "%s requires STRING operands, got %s", tokenForPred(v.Kind), r.Type)
		}
		return &BoundExpr{Kind: KindStringPredicate, StrPredKind: v.Kind, Left: l, Right: r, Type: types.Bool()}, nil

	case *ast.FunctionCall:
		args := make([]*BoundExpr, len(v.Args))
		for i, a := range v.Args {
			be, err := b.bindExpression(a, sc)
			if err != nil {
				return nil, err
			}
			args[i] = be
		}
		rt, isAgg, err := b.fns.Resolve(v.Name, args, v.Star)
		if err != nil {
			return nil, err
		}
		return &BoundExpr{Kind: KindFunctionCall, FuncName: v.Name, Args: args, Distinct: v.Distinct, IsAggregate: isAgg, Type: rt}, nil

	case *ast.CaseExpr:
		var test *BoundExpr
		var err error
		if v.Test != nil {
			test, err = b.bindExpression(v.Test, sc)
			if err != nil {
				return nil, err
			}
		}
		var whens []BoundCaseWhen
		var resultType types.LogicalType
		for i, w := range v.Whens {
			cond, err := b.bindExpression(w.Condition, sc)
			if err != nil {
				return nil, err
			}
			if v.Test == nil && !cond.Unknown && cond.Type.Kind != types.BOOL {
				return nil, cyqerr.Newf(cyqerr.KindBinder, "CASE WHEN condition must be BOOL, got %s", cond.Type)
			}
			res, err := b.bindExpression(w.Result, sc)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				resultType = res.Type
			} else if res.Type.IsNumeric() && resultType.IsNumeric() {
				resultType = widenNumeric(resultType, res.Type)
			}
			whens = append(whens, BoundCaseWhen{Condition: cond, Result: res})
		}
		var elseExpr *BoundExpr
		if v.Else != nil {
			elseExpr, err = b.bindExpression(v.Else, sc)
			if err != nil {
				return nil, err
			}
		}
		return &BoundExpr{Kind: KindCase, CaseTest: test, CaseWhens: whens, CaseElse: elseExpr, Type: resultType}, nil

	case *ast.ExistsExpr:
		g := newQueryGraph()
		inner := cloneScope(sc)
		for _, pe := range v.Pattern {
			if err := b.bindPatternElement(pe, g, inner); err != nil {
				return nil, err
			}
		}
		if !g.connected() {
			return nil, cyqerr.New(cyqerr.KindBinder, "EXISTS pattern is not connected")
		}
		var where *BoundExpr
		if v.Where != nil {
			w, err := b.bindExpression(v.Where, inner)
			if err != nil {
				return nil, err
			}
			if w.Type.Kind != types.BOOL && !w.Unknown {
				return nil, cyqerr.Newf(cyqerr.KindBinder, "EXISTS ... WHERE must be BOOL, got %s", w.Type)
			}
			where = w
		}
		return &BoundExpr{Kind: KindExists, Type: types.Bool(), ExistsGraph: g, ExistsWhere: where}, nil

	case *ast.StarExpr:
		return nil, cyqerr.New(cyqerr.KindBinder, "* is only valid as a WITH/RETURN projection item")

	default:
		return nil, cyqerr.Newf(cyqerr.KindInternal, "unhandled expression type %T", e)
	}
}

func tokenForPred(k ast.StringPredicateKind) string {
	switch k {
	case ast.StartsWith:
		return "STARTS WITH"
	case ast.EndsWith:
		return "ENDS WITH"
	default:
		return "CONTAINS"
	}
}

func bindLiteral(v *ast.Literal) *BoundExpr {
	switch v.Kind {
	case ast.LitInt:
		return &BoundExpr{Kind: KindLiteral, LitKind: v.Kind, Raw: v.Raw, Type: types.Int64()}
	case ast.LitFloat:
		return &BoundExpr{Kind: KindLiteral, LitKind: v.Kind, Raw: v.Raw, Type: types.Double()}
	case ast.LitString:
		return &BoundExpr{Kind: KindLiteral, LitKind: v.Kind, Raw: v.Raw, Type: types.Str()}
	case ast.LitBool:
		return &BoundExpr{Kind: KindLiteral, LitKind: v.Kind, Raw: v.Raw, Type: types.Bool()}
	default: // LitNull
		return &BoundExpr{Kind: KindLiteral, LitKind: v.Kind, Raw: v.Raw, Unknown: true}
	}
}
