package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/catalog"
	"github.com/dreamware/cyq/internal/cyqerr"
	"github.com/dreamware/cyq/internal/types"
)

const testGroupSize = 64

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	require.NoError(t, c.CreateNodeTable("person", []catalog.Property{
		{Name: "id", Type: types.Int64(), IsPrimary: true},
		{Name: "name", Type: types.Str()},
		{Name: "age", Type: types.Int32()},
	}, catalog.Fail))
	personID, _ := c.NodeLabelID("person")
	require.NoError(t, c.CreateRelTable("knows", personID, personID, catalog.ManyToMany,
		[]catalog.Property{{Name: "since", Type: types.Int32()}}, catalog.Fail))
	return c
}

func openTestManager(t *testing.T) (*Manager, *catalog.Catalog) {
	t.Helper()
	cat := newTestCatalog(t)
	m, err := Open(t.TempDir(), cat, WithNodeGroupSize(testGroupSize))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, cat
}

// personBatch builds a {id, name, age} batch for rows [from, from+n).
func personBatch(from, n int) ([]*types.Vector, *types.SelectionVector) {
	ids := types.NewVector(types.Int64(), n)
	names := types.NewVector(types.Str(), n)
	ages := types.NewVector(types.Int32(), n)
	for i := 0; i < n; i++ {
		pos := uint32(i)
		ids.SetInt64(pos, int64(from+i))
		names.SetString(pos, fmt.Sprintf("p%d", from+i))
		ages.SetInt32(pos, int32((from+i)%90))
	}
	return []*types.Vector{ids, names, ages}, types.NewSequentialSelection(n)
}

func copyPersons(t *testing.T, m *Manager, cat *catalog.Catalog, n int) int32 {
	t.Helper()
	personID, _ := cat.NodeLabelID("person")
	batch := testGroupSize / 2
	for from := 0; from < n; from += batch {
		cnt := batch
		if from+cnt > n {
			cnt = n - from
		}
		cols, sel := personBatch(from, cnt)
		_, err := m.LoadNodeBatch(personID, cols, sel)
		require.NoError(t, err)
	}
	total, err := m.Finalize(personID, false)
	require.NoError(t, err)
	require.EqualValues(t, n, total)
	return personID
}

func TestNodeCopyBuildsGroupsAndPKIndex(t *testing.T) {
	m, cat := openTestManager(t)
	const n = 3 * testGroupSize
	personID := copyPersons(t, m, cat, n)

	require.EqualValues(t, n, m.NodeCount(personID))

	table, err := m.NodeTable(personID)
	require.NoError(t, err)
	ix := table.PKIndex()
	require.NotNil(t, ix)
	require.Equal(t, n, ix.Len())

	// Every distinct key resolves back to its own offset.
	key := types.NewVector(types.Int64(), 1)
	for i := 0; i < n; i++ {
		key.SetInt64(0, int64(i))
		off, ok := ix.Lookup(key, 0)
		require.True(t, ok, "pk %d missing", i)
		require.EqualValues(t, i, off)
	}
}

func TestNodeCopyIntoNonEmptyTableRejected(t *testing.T) {
	m, cat := openTestManager(t)
	personID := copyPersons(t, m, cat, 10)

	cols, sel := personBatch(100, 5)
	_, err := m.LoadNodeBatch(personID, cols, sel)
	require.Error(t, err)
	require.Equal(t, cyqerr.KindCopy, cyqerr.KindOf(err))
}

func TestNodeCopyDuplicatePKAborts(t *testing.T) {
	m, cat := openTestManager(t)
	personID, _ := cat.NodeLabelID("person")

	cols, sel := personBatch(0, 10)
	// Duplicate one key.
	cols[0].SetInt64(7, 3)
	_, err := m.LoadNodeBatch(personID, cols, sel)
	if err == nil {
		_, err = m.Finalize(personID, false)
	}
	require.Error(t, err)
	require.Equal(t, cyqerr.KindCopy, cyqerr.KindOf(err))
	require.Contains(t, err.Error(), "duplicated primary key")
}

func TestReadNodePropertyAcrossGroups(t *testing.T) {
	m, cat := openTestManager(t)
	const n = 2*testGroupSize + 7
	personID := copyPersons(t, m, cat, n)

	out := types.NewVector(types.Str(), 1)
	for _, id := range []uint64{0, uint64(testGroupSize - 1), uint64(testGroupSize), uint64(n - 1)} {
		m.ReadNodeProperty(personID, 1, id, out, 0)
		require.False(t, out.IsNull(0))
		require.Equal(t, fmt.Sprintf("p%d", id), out.GetString(0))
	}
}

func relBatch(pairs [][2]int64, since []int32) ([]*types.Vector, *types.SelectionVector) {
	n := len(pairs)
	src := types.NewVector(types.Int64(), n)
	dst := types.NewVector(types.Int64(), n)
	sv := types.NewVector(types.Int32(), n)
	for i, p := range pairs {
		pos := uint32(i)
		src.SetInt64(pos, p[0])
		dst.SetInt64(pos, p[1])
		sv.SetInt32(pos, since[i])
	}
	return []*types.Vector{src, dst, sv}, types.NewSequentialSelection(n)
}

func TestRelCopyPackedCSRInvariant(t *testing.T) {
	m, cat := openTestManager(t)
	const n = 3 * testGroupSize
	copyPersons(t, m, cat, n)
	knowsID, _ := cat.RelLabelID("knows")

	// Spread rels over every node group, with skewed degrees.
	var pairs [][2]int64
	var since []int32
	for i := 0; i < 10*testGroupSize; i++ {
		src := int64(i % n)
		dst := int64((i * 7) % n)
		pairs = append(pairs, [2]int64{src, dst})
		since = append(since, int32(2000+i%25))
	}
	for from := 0; from < len(pairs); from += 100 {
		end := from + 100
		if end > len(pairs) {
			end = len(pairs)
		}
		cols, sel := relBatch(pairs[from:end], since[from:end])
		_, err := m.LoadRelBatch(knowsID, catalog.Fwd, cols, sel)
		require.NoError(t, err)
	}
	total, err := m.Finalize(knowsID, true)
	require.NoError(t, err)
	require.EqualValues(t, len(pairs), total)

	table, err := m.RelTable(knowsID)
	require.NoError(t, err)
	for _, dir := range []catalog.Direction{catalog.Fwd, catalog.Bwd} {
		groups := table.CSRGroups(dir)
		require.NotEmpty(t, groups)
		for _, g := range groups {
			require.NoError(t, g.CheckInvariant())
			offsets, lengths := g.Header()
			for i := 0; i < g.NumNodes(); i++ {
				require.LessOrEqual(t, offsets[i]+lengths[i], offsets[i+1])
			}
		}
	}
}

func TestRelCopyGapPolicy(t *testing.T) {
	require.EqualValues(t, 1, csrSlots(0))
	require.EqualValues(t, 2, csrSlots(1))  // ceil(1/0.8)
	require.EqualValues(t, 5, csrSlots(4))  // ceil(4/0.8)
	require.EqualValues(t, 10, csrSlots(8)) // ceil(8/0.8)
}

func TestRelCopyAdjacencyRoundTrip(t *testing.T) {
	m, cat := openTestManager(t)
	copyPersons(t, m, cat, 10)
	knowsID, _ := cat.RelLabelID("knows")

	cols, sel := relBatch([][2]int64{{0, 1}, {0, 2}, {3, 0}}, []int32{2001, 2002, 2003})
	_, err := m.LoadRelBatch(knowsID, catalog.Fwd, cols, sel)
	require.NoError(t, err)
	_, err = m.Finalize(knowsID, true)
	require.NoError(t, err)

	relIDs, nbrs := m.Adjacency(knowsID, catalog.Fwd, 0)
	require.Len(t, relIDs, 2)
	require.ElementsMatch(t, []uint64{1, 2}, nbrs)

	// BWD adjacency of node 0 sees the rel from node 3.
	_, bwdNbrs := m.Adjacency(knowsID, catalog.Bwd, 0)
	require.Equal(t, []uint64{3}, bwdNbrs)

	// Property reads through the rel id.
	out := types.NewVector(types.Int32(), 1)
	for i, rid := range relIDs {
		m.ReadRelProperty(knowsID, 0, rid, out, 0)
		require.False(t, out.IsNull(0))
		got := out.GetInt32(0)
		require.Contains(t, []int32{2001, 2002}, got, "rel %d", i)
	}
}

func TestRelCopySingleMultiplicityViolation(t *testing.T) {
	cat := newTestCatalog(t)
	personID, _ := cat.NodeLabelID("person")
	require.NoError(t, cat.CreateRelTable("owns", personID, personID, catalog.ManyToOne,
		nil, catalog.Fail))
	m, err := Open(t.TempDir(), cat, WithNodeGroupSize(testGroupSize))
	require.NoError(t, err)
	defer m.Close()
	copyPersons(t, m, cat, 10)
	ownsID, _ := cat.RelLabelID("owns")

	// Node 4 is bound twice in the single-multiplicity FWD direction.
	src := types.NewVector(types.Int64(), 2)
	dst := types.NewVector(types.Int64(), 2)
	src.SetInt64(0, 4)
	dst.SetInt64(0, 1)
	src.SetInt64(1, 4)
	dst.SetInt64(1, 2)
	_, err = m.LoadRelBatch(ownsID, catalog.Fwd, []*types.Vector{src, dst}, types.NewSequentialSelection(2))
	require.NoError(t, err)
	_, err = m.Finalize(ownsID, true)
	require.Error(t, err)
	require.Equal(t, cyqerr.KindCopy, cyqerr.KindOf(err))
	require.Contains(t, err.Error(), "more than one relationship")
}

func TestRelCopyResolvesStringPrimaryKeys(t *testing.T) {
	cat := catalog.New()
	require.NoError(t, cat.CreateNodeTable("city", []catalog.Property{
		{Name: "name", Type: types.Str(), IsPrimary: true},
	}, catalog.Fail))
	cityID, _ := cat.NodeLabelID("city")
	require.NoError(t, cat.CreateRelTable("road", cityID, cityID, catalog.ManyToMany, nil, catalog.Fail))
	roadID, _ := cat.RelLabelID("road")

	m, err := Open(t.TempDir(), cat, WithNodeGroupSize(testGroupSize))
	require.NoError(t, err)
	defer m.Close()

	names := types.NewVector(types.Str(), 3)
	for i, s := range []string{"ada", "bix", "cor"} {
		names.SetString(uint32(i), s)
	}
	_, err = m.LoadNodeBatch(cityID, []*types.Vector{names}, types.NewSequentialSelection(3))
	require.NoError(t, err)
	_, err = m.Finalize(cityID, false)
	require.NoError(t, err)

	src := types.NewVector(types.Str(), 1)
	dst := types.NewVector(types.Str(), 1)
	src.SetString(0, "ada")
	dst.SetString(0, "cor")
	_, err = m.LoadRelBatch(roadID, catalog.Fwd, []*types.Vector{src, dst}, types.NewSequentialSelection(1))
	require.NoError(t, err)
	_, err = m.Finalize(roadID, true)
	require.NoError(t, err)

	_, nbrs := m.Adjacency(roadID, catalog.Fwd, 0)
	require.Equal(t, []uint64{2}, nbrs)

	// Unknown key fails the copy.
	src.SetString(0, "zzz")
	_, err = m.LoadRelBatch(roadID, catalog.Fwd, []*types.Vector{src, dst}, types.NewSequentialSelection(1))
	require.Error(t, err)
}

func TestColumnChunkSerializeRoundTrip(t *testing.T) {
	ints := NewColumnChunk(types.Int64(), 8)
	for i := 0; i < 6; i++ {
		require.NoError(t, ints.AppendInt64(int64(i*100)))
	}
	require.NoError(t, ints.AppendNull())
	ints.Finalize()
	require.True(t, ints.Stats().Valid)
	require.EqualValues(t, 0, ints.Stats().Min)
	require.EqualValues(t, 500, ints.Stats().Max)

	data, err := ints.Serialize()
	require.NoError(t, err)
	back, err := DeserializeColumnChunk(types.Int64(), data)
	require.NoError(t, err)
	require.Equal(t, 7, back.NumValues())
	require.True(t, back.IsNull(6))
	require.EqualValues(t, 300, back.Vector().GetInt64(3))

	strs := NewColumnChunk(types.Str(), 4)
	src := types.NewVector(types.Str(), 4)
	src.SetString(0, "short")
	src.SetString(1, "a rather longer string that spills to overflow")
	require.NoError(t, strs.Append(src, 0))
	require.NoError(t, strs.Append(src, 1))
	require.NoError(t, strs.AppendNull())
	strs.Finalize()
	data, err = strs.Serialize()
	require.NoError(t, err)
	back, err = DeserializeColumnChunk(types.Str(), data)
	require.NoError(t, err)
	require.Equal(t, "short", back.Vector().GetString(0))
	require.Equal(t, "a rather longer string that spills to overflow", back.Vector().GetString(1))
	require.True(t, back.IsNull(2))
}

func TestReopenDatabaseServesPersistedData(t *testing.T) {
	dir := t.TempDir()
	cat := newTestCatalog(t)
	m, err := Open(dir, cat, WithNodeGroupSize(testGroupSize))
	require.NoError(t, err)
	const n = testGroupSize + 9
	personID := copyPersons(t, m, cat, n)
	require.NoError(t, m.Close())

	m2, err := Open(dir, cat, WithNodeGroupSize(testGroupSize))
	require.NoError(t, err)
	defer m2.Close()
	require.EqualValues(t, n, m2.NodeCount(personID))

	out := types.NewVector(types.Str(), 1)
	m2.ReadNodeProperty(personID, 1, uint64(n-1), out, 0)
	require.Equal(t, fmt.Sprintf("p%d", n-1), out.GetString(0))

	table, err := m2.NodeTable(personID)
	require.NoError(t, err)
	key := types.NewVector(types.Int64(), 1)
	key.SetInt64(0, int64(n-1))
	off, ok := table.PKIndex().Lookup(key, 0)
	require.True(t, ok)
	require.EqualValues(t, n-1, off)
}

func TestPartitionerRoutesByNodeGroup(t *testing.T) {
	p := NewNodeGroupPartitioner(testGroupSize, nil)
	require.NoError(t, p.Append(0, 1, nil, 0))
	require.NoError(t, p.Append(testGroupSize-1, 2, nil, 0))
	require.NoError(t, p.Append(testGroupSize, 3, nil, 0))
	require.NoError(t, p.Append(2*testGroupSize+5, 4, nil, 0))

	indices, chunks := p.Drain()
	require.Equal(t, []uint64{0, 1, 2}, indices)
	require.Equal(t, 2, totalRows(chunks[0]))
	require.Equal(t, 1, totalRows(chunks[1]))
	require.Equal(t, 1, totalRows(chunks[2]))

	// Drained partitioner is empty.
	indices, _ = p.Drain()
	require.Empty(t, indices)
}

func totalRows(gs []*ChunkedGroup) int {
	n := 0
	for _, g := range gs {
		n += g.NumRows()
	}
	return n
}
