package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/binder"
	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/parser/lexer"
	"github.com/dreamware/cyq/internal/parser/parser"
	"github.com/dreamware/cyq/internal/planner"
	"github.com/dreamware/cyq/internal/types"
)

// fakeStore serves a tiny fixed graph: nodes with {id, age} properties
// and a single rel table with a {since} property, adjacency as explicit
// maps.
type fakeStore struct {
	nodes   int
	ages    []int32
	fwd     map[uint64][]uint64 // bound -> neighbors
	bwd     map[uint64][]uint64
	since   map[uint64]int32 // relID -> since
	relSeq  map[[2]uint64]uint64
	nextRel uint64
}

func newFakeStore(ages []int32, edges [][2]uint64) *fakeStore {
	s := &fakeStore{
		nodes: len(ages), ages: ages,
		fwd: map[uint64][]uint64{}, bwd: map[uint64][]uint64{},
		since: map[uint64]int32{}, relSeq: map[[2]uint64]uint64{},
	}
	for _, e := range edges {
		id := s.nextRel
		s.nextRel++
		s.fwd[e[0]] = append(s.fwd[e[0]], e[1])
		s.bwd[e[1]] = append(s.bwd[e[1]], e[0])
		s.relSeq[e] = id
		s.since[id] = int32(2000 + id)
	}
	return s
}

func (s *fakeStore) NodeCount(labelID int32) uint64 { return uint64(s.nodes) }
func (s *fakeStore) RelCount(relLabelID int32) uint64 {
	return uint64(len(s.since))
}

func (s *fakeStore) ReadNodeProperty(labelID int32, ordinal int, nodeID uint64, out *types.Vector, pos uint32) {
	switch ordinal {
	case 0:
		out.SetInt64(pos, int64(nodeID))
	case 1:
		out.SetInt32(pos, s.ages[nodeID])
	default:
		out.SetNull(pos)
	}
}

func (s *fakeStore) ReadRelProperty(relLabelID int32, ordinal int, relID uint64, out *types.Vector, pos uint32) {
	out.SetInt32(pos, s.since[relID])
}

func (s *fakeStore) WriteNodeProperty(labelID int32, ordinal int, nodeID uint64, in *types.Vector, pos uint32) {
	if ordinal == 1 {
		s.ages[nodeID] = in.GetInt32(pos)
	}
}

func (s *fakeStore) WriteRelProperty(relLabelID int32, ordinal int, relID uint64, in *types.Vector, pos uint32) {
	s.since[relID] = in.GetInt32(pos)
}

func (s *fakeStore) Adjacency(relLabelID int32, dir catalog.Direction, nodeID uint64) (relIDs, nbrIDs []uint64) {
	adj := s.fwd
	if dir == catalog.Bwd {
		adj = s.bwd
	}
	for _, nbr := range adj[nodeID] {
		key := [2]uint64{nodeID, nbr}
		if dir == catalog.Bwd {
			key = [2]uint64{nbr, nodeID}
		}
		relIDs = append(relIDs, s.relSeq[key])
		nbrIDs = append(nbrIDs, nbr)
	}
	return relIDs, nbrIDs
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.New()
	require.NoError(t, cat.CreateNodeTable("person", []catalog.Property{
		{Name: "id", Type: types.Int64(), IsPrimary: true},
		{Name: "age", Type: types.Int32()},
	}, catalog.Fail))
	personID, _ := cat.NodeLabelID("person")
	require.NoError(t, cat.CreateRelTable("knows", personID, personID, catalog.ManyToMany,
		[]catalog.Property{{Name: "since", Type: types.Int32()}}, catalog.Fail))
	return cat
}

// runQuery drives a query text through the full parse/bind/plan/build
// pipeline against the fake store and returns the drained rows.
func runQuery(t *testing.T, cat *catalog.Catalog, store Store, q string) ([][]string, []string) {
	t.Helper()
	stmt, err := parser.New(lexer.New(q)).ParseStatement()
	require.NoError(t, err)
	bound, err := binder.New(cat).Bind(stmt)
	require.NoError(t, err)
	plan, err := planner.New(cat, planner.NewCatalogStats(cat)).Plan(bound)
	require.NoError(t, err)
	op, err := Build(plan, Env{Cat: cat, Store: store})
	require.NoError(t, err)

	ctx := NewExecContext(context.Background(), nil)
	var rows [][]string
	for {
		chunk := &DataChunk{}
		ok, err := op.Next(ctx, chunk)
		require.NoError(t, err)
		if !ok {
			break
		}
		sel := chunk.Selection
		if sel == nil {
			sel = types.NewSequentialSelection(chunk.Count)
		}
		for i := 0; i < sel.Count; i++ {
			pos := sel.At(i)
			row := make([]string, len(chunk.Vectors))
			for c, v := range chunk.Vectors {
				row[c] = formatForTest(v, pos)
			}
			rows = append(rows, row)
		}
	}
	return rows, op.Schema()
}

func formatForTest(v *types.Vector, pos uint32) string {
	if v.IsNull(pos) {
		return "NULL"
	}
	switch v.Type.Kind {
	case types.INT32:
		return itoa(int64(v.GetInt32(pos)))
	case types.INT64, types.INTERNAL_ID, types.SERIAL:
		return itoa(v.GetInt64(pos))
	case types.STRING:
		return v.GetString(pos)
	case types.BOOL:
		if v.GetBool(pos) {
			return "true"
		}
		return "false"
	default:
		return v.Type.String()
	}
}

func itoa(x int64) string {
	if x == 0 {
		return "0"
	}
	neg := x < 0
	if neg {
		x = -x
	}
	var b [20]byte
	i := len(b)
	for x > 0 {
		i--
		b[i] = byte('0' + x%10)
		x /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

func TestScanFilterProjection(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore([]int32{10, 20, 30, 40}, nil)

	rows, schema := runQuery(t, cat, store, "MATCH (a:person) WHERE a.age > 15 RETURN a.age")
	require.Equal(t, []string{"a.age"}, schema)
	require.ElementsMatch(t, [][]string{{"20"}, {"30"}, {"40"}}, rows)
}

func TestExtendProducesAdjacency(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore([]int32{10, 20, 30}, [][2]uint64{{0, 1}, {0, 2}, {2, 1}})

	rows, _ := runQuery(t, cat, store, "MATCH (a:person)-[:knows]->(b:person) RETURN a.age, b.age")
	require.ElementsMatch(t, [][]string{{"10", "20"}, {"10", "30"}, {"30", "20"}}, rows)
}

func TestAggregationCountAndMin(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore([]int32{10, 20, 30, 40}, [][2]uint64{{0, 1}, {2, 3}})

	rows, _ := runQuery(t, cat, store, "MATCH (a:person) RETURN COUNT(*) AS n")
	require.Equal(t, [][]string{{"4"}}, rows)

	rows, _ = runQuery(t, cat, store, "MATCH (a:person)-[:knows]->(b:person) RETURN MIN(a.age) AS m")
	require.Equal(t, [][]string{{"10"}}, rows)
}

func TestUnwindAndOrderBy(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore(nil, nil)

	rows, _ := runQuery(t, cat, store, "UNWIND [3, 1, 2] AS x RETURN x ORDER BY x")
	require.Equal(t, [][]string{{"1"}, {"2"}, {"3"}}, rows)

	rows, _ = runQuery(t, cat, store, "UNWIND [1, 2, 3] AS x RETURN x SKIP 1 LIMIT 1")
	require.Equal(t, [][]string{{"2"}}, rows)
}

func TestUnionDedupesUnlessAll(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore(nil, nil)

	rows, _ := runQuery(t, cat, store, "UNWIND [1, 2] AS x RETURN x UNION UNWIND [2, 3] AS x RETURN x")
	require.ElementsMatch(t, [][]string{{"1"}, {"2"}, {"3"}}, rows)

	rows, _ = runQuery(t, cat, store, "UNWIND [1, 2] AS x RETURN x UNION ALL UNWIND [2, 3] AS x RETURN x")
	require.Len(t, rows, 4)
}

func TestExtendVariableLength(t *testing.T) {
	cat := testCatalog(t)
	// A chain 0 -> 1 -> 2 -> 3.
	store := newFakeStore([]int32{10, 20, 30, 40}, [][2]uint64{{0, 1}, {1, 2}, {2, 3}})

	rows, _ := runQuery(t, cat, store,
		"MATCH (a:person)-[:knows*1..2]->(b:person) WHERE a.age = 10 RETURN b.age")
	// Paths of length 1 and 2 out of node 0: b in {1, 2}.
	require.ElementsMatch(t, [][]string{{"20"}, {"30"}}, rows)
}

// fakeCSV serves fixed rows and records HandleRowError calls.
type fakeCSV struct {
	rows    [][]string
	cursor  int
	skipped int
	abort   bool
}

func (f *fakeCSV) OpenCSV(path string, withHeaders bool) (CSVReader, error) { return f, nil }

func (f *fakeCSV) ReadRow() ([]string, bool, error) {
	if f.cursor >= len(f.rows) {
		return nil, false, nil
	}
	r := f.rows[f.cursor]
	f.cursor++
	return r, true, nil
}

func (f *fakeCSV) HandleRowError(cause error) error {
	if f.abort {
		return cause
	}
	f.skipped++
	return nil
}

func (f *fakeCSV) Close() error { return nil }

// fakeLoader counts loaded rows.
type fakeLoader struct {
	nodeRows int
	relRows  int
}

func (f *fakeLoader) LoadNodeBatch(labelID int32, cols []*types.Vector, sel *types.SelectionVector) (int, error) {
	f.nodeRows += sel.Count
	return sel.Count, nil
}

func (f *fakeLoader) LoadRelBatch(relLabelID int32, dir catalog.Direction, cols []*types.Vector, sel *types.SelectionVector) (int, error) {
	f.relRows += sel.Count
	return sel.Count, nil
}

func (f *fakeLoader) Finalize(labelID int32, isRel bool) (int64, error) {
	if isRel {
		return int64(f.relRows), nil
	}
	return int64(f.nodeRows), nil
}

func TestCopyNodeSkipsFailedRowsViaHandler(t *testing.T) {
	cat := testCatalog(t)
	csv := &fakeCSV{rows: [][]string{{"1", "10"}, {"boom", "20"}, {"3", "30"}}}
	loader := &fakeLoader{}

	stmt, err := parser.New(lexer.New("COPY person FROM 'x.csv'")).ParseStatement()
	require.NoError(t, err)
	bound, err := binder.New(cat).Bind(stmt)
	require.NoError(t, err)
	plan, err := planner.New(cat, planner.NewCatalogStats(cat)).Plan(bound)
	require.NoError(t, err)
	op, err := Build(plan, Env{Cat: cat, Loader: loader, CSV: csv})
	require.NoError(t, err)

	ctx := NewExecContext(context.Background(), nil)
	chunk := &DataChunk{}
	ok, err := op.Next(ctx, chunk)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, csv.skipped)
	require.Equal(t, 2, loader.nodeRows)
	require.Contains(t, chunk.Vectors[0].GetString(0), "2 tuples have been copied")
}

func TestCopyAbortsWhenHandlerPropagates(t *testing.T) {
	cat := testCatalog(t)
	csv := &fakeCSV{rows: [][]string{{"boom", "20"}}, abort: true}
	loader := &fakeLoader{}

	stmt, err := parser.New(lexer.New("COPY person FROM 'x.csv'")).ParseStatement()
	require.NoError(t, err)
	bound, err := binder.New(cat).Bind(stmt)
	require.NoError(t, err)
	plan, err := planner.New(cat, planner.NewCatalogStats(cat)).Plan(bound)
	require.NoError(t, err)
	op, err := Build(plan, Env{Cat: cat, Loader: loader, CSV: csv})
	require.NoError(t, err)

	ctx := NewExecContext(context.Background(), nil)
	_, err = op.Next(ctx, &DataChunk{})
	require.Error(t, err)
	require.Equal(t, cyqerr.KindConversion, cyqerr.KindOf(err))
}

// fakeWarnings serves a fixed warning list to SHOW_WARNINGS.
type fakeWarnings struct{ rows []WarningRow }

func (f fakeWarnings) Warnings() []WarningRow { return f.rows }

func TestCallShowWarnings(t *testing.T) {
	cat := testCatalog(t)
	call := NewCall(cat, fakeWarnings{rows: []WarningRow{
		{QueryID: "q1", Message: "m", FilePath: "f.csv", LineNumber: 3, Skipped: "bad"},
	}}, "show_warnings", nil)

	ctx := NewExecContext(context.Background(), nil)
	chunk := &DataChunk{}
	ok, err := call.Next(ctx, chunk)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, chunk.Count)
	require.Equal(t, "q1", chunk.Vectors[0].GetString(0))
	require.EqualValues(t, 3, chunk.Vectors[3].GetUint64(0))

	ok, err = call.Next(ctx, chunk)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDDLOperatorsAreOneShot(t *testing.T) {
	cat := testCatalog(t)
	op := NewCreateTable(cat, &binder.BoundCreateTable{
		Name: "city",
		Properties: []catalog.Property{
			{Name: "id", Type: types.Int64(), IsPrimary: true},
		},
		OnConflict: catalog.OnConflictDoNothing,
	})

	ctx := NewExecContext(context.Background(), nil)
	chunk := &DataChunk{}
	ok, err := op.Next(ctx, chunk)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = op.Next(ctx, chunk)
	require.False(t, ok)
	require.True(t, cat.ContainsNodeLabel("city"))

	// A second create with do-nothing conflict action still succeeds.
	op2 := NewCreateTable(cat, &binder.BoundCreateTable{
		Name: "city",
		Properties: []catalog.Property{
			{Name: "id", Type: types.Int64(), IsPrimary: true},
		},
		OnConflict: catalog.OnConflictDoNothing,
	})
	ok, err = op2.Next(ctx, &DataChunk{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSetWritesNodeProperties(t *testing.T) {
	cat := testCatalog(t)
	store := newFakeStore([]int32{10, 20, 30}, nil)

	rows, _ := runQuery(t, cat, store, "MATCH (a:person) SET a.age = 35")
	require.Len(t, rows, 3) // SET passes every input row through
	require.Equal(t, []int32{35, 35, 35}, store.ages)

	// A value expression reading the property it updates.
	_, _ = runQuery(t, cat, store, "MATCH (a:person) SET a.age = a.age + 1")
	require.Equal(t, []int32{36, 36, 36}, store.ages)
}
