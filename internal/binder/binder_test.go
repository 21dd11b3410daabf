package binder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/parser/ast"
	"github.com/dreamware/cyq/internal/parser/lexer"
	"github.com/dreamware/cyq/internal/parser/parser"
	"github.com/dreamware/cyq/internal/types"
)

// newTestCatalog builds Person/Knows/City/LivesIn, matching the kind of
// small social-graph schema the examples use throughout.
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
	require.NoError(t, c.CreateRelTable("Knows", personID, personID, catalog.ManyToMany, []catalog.Property{
		{Name: "since", Type: types.Date()},
	}, catalog.Fail))
	require.NoError(t, c.CreateRelTable("LivesIn", personID, cityID, catalog.ManyToOne, nil, catalog.Fail))
	return c
}

func bindQuery(t *testing.T, cat *catalog.Catalog, src string) (*BoundStatement, error) {
	t.Helper()
	p := parser.New(lexer.New(src))
	stmt, err := p.ParseStatement()
	require.NoError(t, err)
	return New(cat).Bind(stmt)
}

func TestBindSimpleMatchReturn(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "MATCH (n:Person) RETURN n.name, n.age")
	require.NoError(t, err)
	require.NotNil(t, bs.Query)
	m := bs.Query.FinalReading[0].Match
	require.Len(t, m.Graph.Nodes, 1)
	require.Equal(t, []string{"Person"}, m.Graph.Nodes[0].Labels)
	require.Len(t, bs.Query.Return.Items, 2)
	require.Equal(t, types.Str(), bs.Query.Return.Items[0].Expr.Type)
	require.Equal(t, types.Int32(), bs.Query.Return.Items[1].Expr.Type)
}

func TestBindUnknownPropertyFails(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (n:Person) RETURN n.nickname")
	require.Error(t, err)
}

func TestBindUnknownLabelFails(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (n:Alien) RETURN n")
	require.Error(t, err)
}

func TestBindRelationshipAdjacencyValidated(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (a:City)-[r:Knows]->(b:City) RETURN r")
	require.Error(t, err)

	bs, err := bindQuery(t, cat, "MATCH (a:Person)-[r:Knows]->(b:Person) RETURN r")
	require.NoError(t, err)
	require.Len(t, bs.Query.FinalReading[0].Match.Graph.Rels, 1)
}

func TestBindDisconnectedPatternFails(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (a:Person), (b:City) RETURN a, b")
	require.Error(t, err)
}

func TestBindWithRequiresExplicitAlias(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (n:Person) WITH n.name RETURN n.name")
	require.Error(t, err)

	_, err = bindQuery(t, cat, "MATCH (n:Person) WITH n.name AS nm RETURN nm")
	require.NoError(t, err)
}

func TestBindReturnDoesNotRequireAlias(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)
	require.Equal(t, "n.name", bs.Query.Return.Items[0].Alias)
}

func TestBindStarExpansion(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "MATCH (n:Person) RETURN *")
	require.NoError(t, err)
	require.Len(t, bs.Query.Return.Items, 1)
	require.Equal(t, "n", bs.Query.Return.Items[0].Alias)
}

func TestBindAggregationMustBeAtRoot(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "MATCH (n:Person) RETURN count(n) AS c")
	require.NoError(t, err)
	require.True(t, bs.Query.Return.HasAggregation)

	_, err = bindQuery(t, cat, "MATCH (n:Person) RETURN count(n) + 1 AS c")
	require.Error(t, err)
}

func TestBindWhereMustBeBool(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (n:Person) WHERE n.name RETURN n")
	require.Error(t, err)

	_, err = bindQuery(t, cat, "MATCH (n:Person) WHERE n.age > 18 RETURN n")
	require.NoError(t, err)
}

func TestBindDateIntervalArithmetic(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "MATCH ()-[r:Knows]->() RETURN r.since")
	require.NoError(t, err)
	require.Equal(t, types.Date(), bs.Query.Return.Items[0].Expr.Type)

	bs, err = bindQuery(t, cat, "MATCH ()-[r:Knows]->() RETURN r.since - r.since AS d")
	require.NoError(t, err)
	require.Equal(t, types.Interval(), bs.Query.Return.Items[0].Expr.Type)
}

func TestBindInternalIDArithmeticForbidden(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (n:Person) RETURN id(n) + 1 AS x")
	require.Error(t, err)
}

func TestBindDuplicateProjectionAliasFails(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (n:Person) RETURN n.name AS x, n.age AS x")
	require.Error(t, err)
}

func TestBindUnionRequiresMatchingColumnCounts(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (n:Person) RETURN n.name UNION ALL MATCH (c:City) RETURN c.name, c.id")
	require.Error(t, err)

	bs, err := bindQuery(t, cat, "MATCH (n:Person) RETURN n.name UNION ALL MATCH (c:City) RETURN c.name")
	require.NoError(t, err)
	require.Len(t, bs.Query.Unions, 1)
}

func TestBindCreateNodeTableDDL(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "CREATE NODE TABLE Company (id INT64 PRIMARY KEY, name STRING)")
	require.NoError(t, err)
	require.NotNil(t, bs.DDL.CreateTable)
	require.Equal(t, "Company", bs.DDL.CreateTable.Name)
	require.Equal(t, types.Int64(), bs.DDL.CreateTable.Properties[0].Type)
}

func TestBindCreateRelTableResolvesEndpointLabels(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "CREATE REL TABLE WorksAt (FROM Person TO City, since DATE)")
	require.NoError(t, err)
	ct := bs.DDL.CreateTable
	require.True(t, ct.IsRelTable)
	personID, _ := cat.NodeLabelID("Person")
	cityID, _ := cat.NodeLabelID("City")
	require.Equal(t, personID, ct.FromLabel)
	require.Equal(t, cityID, ct.ToLabel)
}

func TestBindUnwindElementType(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "UNWIND [1, 2, 3] AS x RETURN x")
	require.NoError(t, err)
	require.Equal(t, types.Int64(), bs.Query.Return.Items[0].Expr.Type)
}

func TestBindExistsSubquery(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "MATCH (n:Person) WHERE EXISTS { MATCH (n)-[:Knows]->(m:Person) } RETURN n")
	require.NoError(t, err)
	require.NotNil(t, bs)
}

func TestBindParameterSkipsTypeChecks(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := bindQuery(t, cat, "MATCH (n:Person) WHERE n.age > $minAge RETURN n")
	require.NoError(t, err)
}

var _ = ast.StarExpr{}

func TestBindSetClause(t *testing.T) {
	cat := newTestCatalog(t)
	bs, err := bindQuery(t, cat, "MATCH (a:Person) SET a.age = 35")
	require.NoError(t, err)
	require.Len(t, bs.Query.Set, 1)
	it := bs.Query.Set[0]
	require.Equal(t, "a", it.Var)
	require.Equal(t, "age", it.Property)
	require.False(t, it.IsRel)
	require.Equal(t, types.INT32, it.Type.Kind)

	schema, _ := cat.NodeTable("Person")
	prop, _ := cat.GetProperty("Person", "age")
	require.Equal(t, schema.LabelID, it.LabelID)
	require.Equal(t, prop.Ordinal, it.Ordinal)
}

func TestBindSetClauseRejectsBadTargets(t *testing.T) {
	cat := newTestCatalog(t)
	// Not a property access.
	_, err := bindQuery(t, cat, "MATCH (a:Person) SET a = 35")
	require.Error(t, err)

	// Unknown property.
	_, err = bindQuery(t, cat, "MATCH (a:Person) SET a.height = 35")
	require.Error(t, err)

	// Type mismatch: STRING value into an INT32 property.
	_, err = bindQuery(t, cat, "MATCH (a:Person) SET a.age = 'old'")
	require.Error(t, err)
}
