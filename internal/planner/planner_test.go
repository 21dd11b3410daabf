package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/parser/lexer"
	"github.com/dreamware/cyq/internal/parser/parser"
	"github.com/dreamware/cyq/internal/types"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.CreateNodeTable("Person", []catalog.Property{
		{Name: "id", Type: types.Int64(), IsPrimary: true},
		{Name: "name", Type: types.Str()},
		{Name: "age", Type: types.Int32()},
	}, catalog.Fail))
	require.NoError(t, c.CreateNodeTable("City", []catalog.Property{
		{Name: "id", Type: types.Int64(), IsPrimary: true},
		{Name: "name", Type: types.Str()},
	}, catalog.Fail))
	personID, _ := c.NodeLabelID("Person")
	cityID, _ := c.NodeLabelID("City")
	require.NoError(t, c.CreateRelTable("Knows", personID, personID, catalog.ManyToMany, nil, catalog.Fail))
	require.NoError(t, c.CreateRelTable("LivesIn", personID, cityID, catalog.ManyToOne, nil, catalog.Fail))
	return c
}

func bindAndPlan(t *testing.T, cat *catalog.Catalog, src string) (*Plan, error) {
	t.Helper()
	p := parser.New(lexer.New(src))
	stmt, err := p.ParseStatement()
	require.NoError(t, err)
	bs, err := binder.New(cat).Bind(stmt)
	require.NoError(t, err)
	return New(cat, NewCatalogStats(cat)).Plan(bs)
}

func TestPlanSimpleScanReturn(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)
	require.Equal(t, KindProjection, plan.Kind)
	require.Len(t, plan.Children, 1)
	require.Equal(t, KindScanNodeID, plan.Children[0].Kind)
	require.Equal(t, "n", plan.Children[0].NodeVar)
}

func TestPlanExtendsAcrossRel(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "MATCH (a:Person)-[r:Knows]->(b:Person) RETURN a, b")
	require.NoError(t, err)
	require.Equal(t, KindProjection, plan.Kind)
	extend := plan.Children[0]
	require.Equal(t, KindExtend, extend.Kind)
	require.Equal(t, "r", extend.RelVar)
	require.Equal(t, catalog.Fwd, extend.Direction)
	require.Equal(t, KindScanNodeID, extend.Children[0].Kind)
}

func TestPlanPushesFilterToSmallestSubgraph(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "MATCH (a:Person)-[:Knows]->(b:Person) WHERE a.age > 30 RETURN a, b")
	require.NoError(t, err)
	extend := plan.Children[0]
	require.Equal(t, KindExtend, extend.Kind)
	// The WHERE references only "a", so it must be pushed below the
	// EXTEND, directly onto the seed scan for "a", not evaluated after
	// both sides are bound.
	filter := extend.Children[0]
	require.Equal(t, KindFilter, filter.Kind)
	scanProp := filter.Children[0]
	require.Equal(t, KindScanProperty, scanProp.Kind)
	require.Equal(t, "a", scanProp.Base)
	require.Equal(t, "age", scanProp.Property)
	require.Equal(t, KindScanNodeID, scanProp.Children[0].Kind)
}

func TestPlanFilterNotResolvableUntilBothSidesBound(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "MATCH (a:Person)-[:Knows]->(b:Person) WHERE a.age = b.age RETURN a")
	require.NoError(t, err)
	// References both "a" and "b": can't resolve until the EXTEND has run,
	// so the FILTER sits above it, not below.
	require.Equal(t, KindFilter, plan.Children[0].Kind)
}

// skewedStats drives the enumerator with asymmetric degrees so the
// encoding tests pin a deterministic direction choice.
type skewedStats struct {
	nodes   int64
	fwdDeg  int64
	bwdDeg  int64
}

func (s skewedStats) NodeCount(labelID int32) int64 { return s.nodes }
func (s skewedStats) RelCount(relLabelID int32, dir catalog.Direction, boundLabelID int32) int64 {
	if dir == catalog.Fwd {
		return s.nodes * s.fwdDeg
	}
	return s.nodes * s.bwdDeg
}

func TestPlanOneHopEncoding(t *testing.T) {
	cat := newTestCatalog(t)
	p := parser.New(lexer.New("MATCH (a:Person)-[:Knows]->(b:Person) RETURN MIN(a.age) AS m"))
	stmt, err := p.ParseStatement()
	require.NoError(t, err)
	bs, err := binder.New(cat).Bind(stmt)
	require.NoError(t, err)
	plan, err := New(cat, skewedStats{nodes: 10000, fwdDeg: 10, bwdDeg: 20}).Plan(bs)
	require.NoError(t, err)

	// Two-node patterns stay pure scan+extend: the enumerator only tries
	// hash joins for subgraphs of four or more nodes, joining two partial
	// matches that share one node. The cheaper FWD walk (degree 10 vs 20)
	// wins the direction choice.
	require.Equal(t, "E(b)S(a)", plan.Encode())
}

func TestPlanJoinForFourNodePattern(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat,
		"MATCH (a:Person)-[:Knows]->(b:Person), (c:Person)-[:Knows]->(d:Person), (b)-[:Knows]->(c) RETURN a, b, c, d")
	require.NoError(t, err)
	require.Equal(t, KindProjection, plan.Kind)
	// A 4-node, 3-edge connected pattern stays buildable purely by chained
	// EXTEND (a->b->c->d); a HASH_JOIN of two partial matches that share
	// one node is the other candidate shape. Either shape
	// is a valid enumeration; just confirm it plans successfully
	// and reaches all four variables.
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.Subset(t, plan.Children[0].Schema, []string{"a", "b", "c", "d"})
}

func TestPlanRejectsUnsupportedIntersection(t *testing.T) {
	cat := newTestCatalog(t)
	// A triangle: the third edge's endpoints are both already bound by
	// the time it would be considered, the intersection case called out
	// as an unsupported intersection case.
	_, err := bindAndPlan(t, cat,
		"MATCH (a:Person)-[:Knows]->(b:Person), (b)-[:Knows]->(c:Person), (a)-[:Knows]->(c) RETURN a, b, c")
	require.Error(t, err)
}

func TestPlanCreateNodeTableDDL(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "CREATE NODE TABLE Company (id INT64 PRIMARY KEY, name STRING)")
	require.NoError(t, err)
	require.Equal(t, KindDDL, plan.Kind)
	require.NotNil(t, plan.DDL.CreateTable)
}

func TestPlanCopyFromPicksNodeOrRelOperator(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "COPY Person FROM 'people.csv'")
	require.NoError(t, err)
	require.Equal(t, KindCopyNode, plan.Kind)

	plan, err = bindAndPlan(t, cat, "COPY Knows FROM 'knows.csv'")
	require.NoError(t, err)
	require.Equal(t, KindRelBatchInsert, plan.Kind)
}

func TestPlanUnionComposesBothBranches(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "MATCH (n:Person) RETURN n.name UNION ALL MATCH (c:City) RETURN c.name")
	require.NoError(t, err)
	require.Equal(t, KindUnion, plan.Kind)
	require.True(t, plan.All)
	require.Len(t, plan.Children, 2)
}

func TestPlanWithThenMatchComposesInOrder(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat,
		"MATCH (a:Person) WITH a.name AS nm MATCH (b:Person) WHERE b.name = nm RETURN b")
	require.NoError(t, err)
	require.Equal(t, KindProjection, plan.Kind)
	// The second MATCH's plan is chained on top of the WITH projection
	// from the first part's declaration-order
	// composition.
	require.NotEmpty(t, plan.Children)
}

func TestPlanSetClause(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "MATCH (a:Person) SET a.age = 35")
	require.NoError(t, err)
	require.Equal(t, KindSet, plan.Kind)
	require.Len(t, plan.SetItems, 1)
	require.Equal(t, "a", plan.SetItems[0].Var)
	require.Equal(t, KindScanNodeID, plan.Children[0].Kind)
}

func TestPlanSetValueReferencingPropertyScansIt(t *testing.T) {
	cat := newTestCatalog(t)
	plan, err := bindAndPlan(t, cat, "MATCH (a:Person) SET a.age = a.age + 1")
	require.NoError(t, err)
	require.Equal(t, KindSet, plan.Kind)
	// The value expression reads a.age, so a property scan sits between
	// the seed scan and the SET.
	require.Equal(t, KindScanProperty, plan.Children[0].Kind)
}

func TestPlanOptionalMatchRejected(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindAndPlan(t, cat, "MATCH (a:Person) OPTIONAL MATCH (a)-[:Knows]->(b:Person) RETURN a, b")
	require.Error(t, err)
	require.Contains(t, err.Error(), "OPTIONAL MATCH is not supported")
}
