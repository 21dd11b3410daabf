package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/parser/ast"
	"github.com/dreamware/cyq/internal/parser/lexer"
)

func parseOne(t *testing.T, src string) ast.Statement {
	t.Helper()
	p := New(lexer.New(src))
	stmt, err := p.ParseStatement()
	require.NoError(t, err, "parse errors: %v", p.Errors())
	return stmt
}

func TestParseSimpleMatchReturn(t *testing.T) {
	stmt := parseOne(t, "MATCH (n:Person) RETURN n.name")
	rq, ok := stmt.(*ast.RegularQueryStmt)
	require.True(t, ok)
	sq := rq.Query.First
	require.Len(t, sq.ReadingParts, 1)
	m := sq.ReadingParts[0].(*ast.MatchClause)
	require.False(t, m.Optional)
	require.Len(t, m.Pattern, 1)
	require.Equal(t, "n", m.Pattern[0].Start.Variable)
	require.Equal(t, []string{"Person"}, m.Pattern[0].Start.Labels)
	require.NotNil(t, sq.Return)
	require.Len(t, sq.Return.Items, 1)
	prop, ok := sq.Return.Items[0].Expr.(*ast.PropertyAccess)
	require.True(t, ok)
	require.Equal(t, "name", prop.Property)
}

func TestParseRelationshipPatternWithDirection(t *testing.T) {
	stmt := parseOne(t, "MATCH (a)-[r:KNOWS]->(b) RETURN r")
	rq := stmt.(*ast.RegularQueryStmt)
	m := rq.Query.First.ReadingParts[0].(*ast.MatchClause)
	require.Len(t, m.Pattern[0].Chain, 1)
	link := m.Pattern[0].Chain[0]
	require.Equal(t, ast.DirRight, link.Rel.Direction)
	require.Equal(t, []string{"KNOWS"}, link.Rel.Types)
	require.Equal(t, "b", link.Node.Variable)
}

func TestParseOptionalMatchWhere(t *testing.T) {
	stmt := parseOne(t, "OPTIONAL MATCH (n) WHERE n.age > 21 RETURN n")
	rq := stmt.(*ast.RegularQueryStmt)
	m := rq.Query.First.ReadingParts[0].(*ast.MatchClause)
	require.True(t, m.Optional)
	require.NotNil(t, m.Where)
	bin, ok := m.Where.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, "(n.age > 21)", bin.String())
}

func TestParseWithAndReturn(t *testing.T) {
	stmt := parseOne(t, "MATCH (n) WITH n, count(*) AS c WHERE c > 1 RETURN n, c ORDER BY c DESC LIMIT 10")
	rq := stmt.(*ast.RegularQueryStmt)
	sq := rq.Query.First
	require.Len(t, sq.Parts, 1)
	w := sq.Parts[0].With
	require.Len(t, w.Items, 2)
	require.Equal(t, "c", w.Items[1].Alias)
	fn, ok := w.Items[1].Expr.(*ast.FunctionCall)
	require.True(t, ok)
	require.True(t, fn.Star)
	require.NotNil(t, w.Where)
	require.Len(t, sq.Return.OrderBy, 1)
	require.True(t, sq.Return.OrderBy[0].Descending)
	require.NotNil(t, sq.Return.Limit)
}

func TestParseUnwind(t *testing.T) {
	stmt := parseOne(t, "UNWIND [1, 2, 3] AS x RETURN x")
	rq := stmt.(*ast.RegularQueryStmt)
	u := rq.Query.First.ReadingParts[0].(*ast.UnwindClause)
	require.Equal(t, "x", u.As)
	list, ok := u.List.(*ast.ListLiteral)
	require.True(t, ok)
	require.Len(t, list.Elements, 3)
}

func TestParseStartsWithEndsWithContains(t *testing.T) {
	stmt := parseOne(t, `MATCH (n) WHERE n.name STARTS WITH 'A' RETURN n`)
	rq := stmt.(*ast.RegularQueryStmt)
	m := rq.Query.First.ReadingParts[0].(*ast.MatchClause)
	sp, ok := m.Where.(*ast.StringPredicateExpr)
	require.True(t, ok)
	require.Equal(t, ast.StartsWith, sp.Kind)
}

func TestParseCaseExpression(t *testing.T) {
	stmt := parseOne(t, "RETURN CASE WHEN n.age > 18 THEN 'adult' ELSE 'minor' END")
	rq := stmt.(*ast.RegularQueryStmt)
	sq := rq.Query.First
	c, ok := sq.Return.Items[0].Expr.(*ast.CaseExpr)
	require.True(t, ok)
	require.Len(t, c.Whens, 1)
	require.NotNil(t, c.Else)
}

func TestParseUnionAll(t *testing.T) {
	stmt := parseOne(t, "MATCH (n:A) RETURN n.x UNION ALL MATCH (n:B) RETURN n.x")
	rq := stmt.(*ast.RegularQueryStmt)
	require.Len(t, rq.Query.Unions, 1)
	require.True(t, rq.Query.Unions[0].All)
}

func TestParseCreateNodeTable(t *testing.T) {
	stmt := parseOne(t, "CREATE NODE TABLE Person (id INT64 PRIMARY KEY, name STRING)")
	c, ok := stmt.(*ast.CreateTableStmt)
	require.True(t, ok)
	require.False(t, c.IsRelTable)
	require.Equal(t, "Person", c.Name)
	require.Len(t, c.Columns, 2)
	require.True(t, c.Columns[0].IsPrimary)
}

func TestParseCreateRelTable(t *testing.T) {
	stmt := parseOne(t, "CREATE REL TABLE Knows (FROM Person TO Person, since DATE)")
	c, ok := stmt.(*ast.CreateTableStmt)
	require.True(t, ok)
	require.True(t, c.IsRelTable)
	require.Equal(t, "Person", c.FromLabel)
	require.Equal(t, "Person", c.ToLabel)
	require.Len(t, c.Columns, 1)
}

func TestParseAlterTableAddColumn(t *testing.T) {
	stmt := parseOne(t, "ALTER TABLE Person ADD COLUMN nickname STRING")
	a, ok := stmt.(*ast.AlterTableStmt)
	require.True(t, ok)
	require.NotNil(t, a.Add)
	require.Equal(t, "nickname", a.Add.Name)
}

func TestParseDropTable(t *testing.T) {
	stmt := parseOne(t, "DROP TABLE Person")
	d, ok := stmt.(*ast.DropStmt)
	require.True(t, ok)
	require.Equal(t, "Person", d.Name)
}

func TestParseCommentOnTable(t *testing.T) {
	stmt := parseOne(t, `COMMENT ON TABLE Person IS 'people in the graph'`)
	c, ok := stmt.(*ast.CommentOnStmt)
	require.True(t, ok)
	require.Equal(t, "Person", c.Table)
	require.Equal(t, "people in the graph", c.Comment)
}

func TestParseCopyFrom(t *testing.T) {
	stmt := parseOne(t, `COPY Person FROM 'people.csv' WITH HEADERS`)
	c, ok := stmt.(*ast.CopyFromStmt)
	require.True(t, ok)
	require.Equal(t, "Person", c.Table)
	require.True(t, c.Headers)
}

func TestParseNotEqualGivesHelpfulError(t *testing.T) {
	p := New(lexer.New("MATCH (n) WHERE n.x != 1 RETURN n"))
	_, err := p.ParseStatement()
	require.Error(t, err)
	require.Contains(t, err.Error(), "<>")
}

func TestParseVariableLengthRelationship(t *testing.T) {
	stmt := parseOne(t, "MATCH (a)-[r:KNOWS*1..3]->(b) RETURN b")
	rq := stmt.(*ast.RegularQueryStmt)
	m := rq.Query.First.ReadingParts[0].(*ast.MatchClause)
	bound := m.Pattern[0].Chain[0].Rel.VarLength
	require.True(t, bound.Set)
	require.Equal(t, 1, bound.Lo)
	require.Equal(t, 3, bound.Hi)
}

func TestParseSetClause(t *testing.T) {
	stmt := parseOne(t, "MATCH (a:Person) SET a.age = 35 RETURN a.age")
	rq, ok := stmt.(*ast.RegularQueryStmt)
	require.True(t, ok)
	sq := rq.Query.First
	require.NotNil(t, sq.Set)
	require.Len(t, sq.Set.Items, 1)
	require.Equal(t, "a.age", sq.Set.Items[0].Target.String())
	require.Equal(t, "35", sq.Set.Items[0].Value.String())
	require.NotNil(t, sq.Return)
}

func TestParseSetClauseMultipleItems(t *testing.T) {
	stmt := parseOne(t, "MATCH (a:Person) SET a.age = a.age + 1, a.name = 'x' SET a.id = 2")
	rq := stmt.(*ast.RegularQueryStmt)
	sq := rq.Query.First
	require.NotNil(t, sq.Set)
	require.Len(t, sq.Set.Items, 3)
	require.Equal(t, "a.name", sq.Set.Items[1].Target.String())
	require.Nil(t, sq.Return)
}
