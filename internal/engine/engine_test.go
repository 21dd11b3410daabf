package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/cyq/internal/cyqerr"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(t.TempDir(), WithNodeGroupSize(256), WithWorkerCount(2))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func mustQuery(t *testing.T, c *Connection, q string) *Result {
	t.Helper()
	res, err := c.Query(q)
	require.NoError(t, err, "query: %s", q)
	return res
}

func seedPeople(t *testing.T, c *Connection, n int) {
	t.Helper()
	mustQuery(t, c, "CREATE NODE TABLE person (id INT64 PRIMARY KEY, name STRING, age INT32)")
	mustQuery(t, c, "CREATE REL TABLE knows (FROM person TO person, since INT32)")

	dir := t.TempDir()
	people := filepath.Join(dir, "people.csv")
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d,p%d,%d\n", i, i, 20+i%50)
	}
	require.NoError(t, os.WriteFile(people, []byte(sb.String()), 0o644))
	res := mustQuery(t, c, fmt.Sprintf("COPY person FROM '%s'", people))
	require.Contains(t, res.Rows()[0][0], fmt.Sprintf("%d tuples", n))

	rels := filepath.Join(dir, "knows.csv")
	sb.Reset()
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d,%d,%d\n", i, (i+1)%n, 2000+i%20)
	}
	require.NoError(t, os.WriteFile(rels, []byte(sb.String()), 0o644))
	mustQuery(t, c, fmt.Sprintf("COPY knows FROM '%s'", rels))
}

func TestBindErrorUnknownLabel(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	mustQuery(t, c, "CREATE NODE TABLE person (id INT64 PRIMARY KEY)")

	_, err := c.Query("MATCH (a:PERSON) RETURN COUNT(*)")
	require.Error(t, err)
	require.Equal(t, cyqerr.KindBinder, cyqerr.KindOf(err))
	require.Contains(t, err.Error(), "Node label PERSON does not exist.")
}

func TestBindErrorDisconnectedGraph(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	mustQuery(t, c, "CREATE NODE TABLE person (id INT64 PRIMARY KEY)")

	_, err := c.Query("MATCH (a:person), (b:person) RETURN COUNT(*)")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Disconnect query graph is not supported.")
}

func TestBindErrorAggregationPlacement(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	mustQuery(t, c, "CREATE NODE TABLE person (id INT64 PRIMARY KEY, age INT32)")

	_, err := c.Query("MATCH (a:person) WITH SUM(a.age) > a.age AS x RETURN x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Aggregation function must be the root of expression tree.")
}

func TestCreateTableIfNotExistsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()

	r1 := mustQuery(t, c, "CREATE NODE TABLE IF NOT EXISTS t (id INT64 PRIMARY KEY)")
	r2 := mustQuery(t, c, "CREATE NODE TABLE IF NOT EXISTS t (id INT64 PRIMARY KEY)")
	require.Equal(t, 1, r1.NumTuples())
	require.Equal(t, 1, r2.NumTuples())

	tables := mustQuery(t, c, "CALL show_tables() YIELD name, type, comment")
	require.Equal(t, 1, tables.NumTuples())

	// Without the clause the second create fails.
	_, err := c.Query("CREATE NODE TABLE t (id INT64 PRIMARY KEY)")
	require.Error(t, err)
}

func TestCopyWithIgnoreErrorsCollectsWarnings(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	mustQuery(t, c, "CREATE NODE TABLE Test (id INT32, PRIMARY KEY(id))")

	file := filepath.Join(t.TempDir(), "bad.csv")
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("1152921504606846976\n")
	}
	require.NoError(t, os.WriteFile(file, []byte(sb.String()), 0o644))

	res := mustQuery(t, c, fmt.Sprintf("COPY Test FROM '%s' (IGNORE_ERRORS=true)", file))
	require.Len(t, res.Warnings, 10)
	require.Contains(t, res.Rows()[0][0], "0 tuples")
	for i, w := range res.Warnings {
		require.True(t, strings.HasPrefix(w.Message,
			`Conversion exception: Cast failed. Could not convert "1152921504606846976" to INT32.`), w.Message)
		require.EqualValues(t, i+1, w.LineNumber)
	}

	// SHOW WARNINGS surfaces the same rows.
	ws := mustQuery(t, c, "CALL show_warnings() YIELD query_id, message, file_path, line_number, skipped_line_or_record")
	require.Equal(t, 10, ws.NumTuples())
}

func TestCopyWithoutIgnoreErrorsAborts(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	mustQuery(t, c, "CREATE NODE TABLE Test (id INT32, PRIMARY KEY(id))")

	file := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(file, []byte("7\nnope\n"), 0o644))

	_, err := c.Query(fmt.Sprintf("COPY Test FROM '%s'", file))
	require.Error(t, err)
	require.Contains(t, err.Error(), "on line 2")
}

func TestMatchCountAfterCopy(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	seedPeople(t, c, 100)

	res := mustQuery(t, c, "MATCH (a:person) RETURN COUNT(*) AS n")
	require.Equal(t, [][]string{{"100"}}, res.Rows())
}

func TestMatchOneHop(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	seedPeople(t, c, 50)

	// Every person knows exactly one other person.
	res := mustQuery(t, c, "MATCH (a:person)-[:knows]->(b:person) RETURN COUNT(*) AS n")
	require.Equal(t, "50", res.Rows()[0][0])

	// Property scan through the one-hop pattern.
	res = mustQuery(t, c, "MATCH (a:person)-[:knows]->(b:person) WHERE a.id = 0 RETURN b.name")
	require.Equal(t, [][]string{{"p1"}}, res.Rows())
}

func TestQueryResultMetadata(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	seedPeople(t, c, 10)

	res := mustQuery(t, c, "MATCH (a:person) WHERE a.id < 3 RETURN a.name ORDER BY a.name")
	require.Equal(t, []string{"a.name"}, res.Columns)
	require.Equal(t, 3, res.NumTuples())
	require.Greater(t, res.Elapsed.Nanoseconds(), int64(0))
	var got []string
	for res.Next() {
		got = append(got, res.Values()[0])
	}
	require.Equal(t, []string{"p0", "p1", "p2"}, got)
}

func TestCatalogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, WithNodeGroupSize(256))
	require.NoError(t, err)
	c := db.Connect()
	mustQuery(t, c, "CREATE NODE TABLE person (id INT64 PRIMARY KEY, name STRING)")
	mustQuery(t, c, "COMMENT ON TABLE person IS 'people table'")
	require.NoError(t, db.Close())

	db2, err := Open(dir, WithNodeGroupSize(256))
	require.NoError(t, err)
	defer db2.Close()
	res := mustQuery(t, db2.Connect(), "CALL show_tables() YIELD name, type, comment")
	require.Equal(t, 1, res.NumTuples())
	require.Equal(t, "person", res.Rows()[0][0])
	require.Equal(t, "people table", res.Rows()[0][2])
}

func TestWorkerPoolRunsSubmittedWork(t *testing.T) {
	p := NewWorkerPool(3)
	defer p.Stop()
	results := make(chan int, 10)
	for i := 0; i < 10; i++ {
		i := i
		p.Submit(func() { results <- i })
	}
	seen := map[int]bool{}
	for i := 0; i < 10; i++ {
		seen[<-results] = true
	}
	require.Len(t, seen, 10)
}

func TestSetUpdatesStoredProperty(t *testing.T) {
	db := openTestDB(t)
	c := db.Connect()
	seedPeople(t, c, 10)

	mustQuery(t, c, "MATCH (a:person) SET a.age = 99")
	res := mustQuery(t, c, "MATCH (a:person) WHERE a.id = 3 RETURN a.age")
	require.Equal(t, [][]string{{"99"}}, res.Rows())

	_, err := c.Query("MATCH (a:person) OPTIONAL MATCH (a)-[:knows]->(b:person) RETURN a, b")
	require.Error(t, err)
	require.Contains(t, err.Error(), "OPTIONAL MATCH is not supported")
}
