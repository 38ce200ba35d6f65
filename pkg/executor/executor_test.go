package executor

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphqlite/graphqlite/pkg/agtype"
	"github.com/graphqlite/graphqlite/pkg/config"
	"github.com/graphqlite/graphqlite/pkg/schema"

	_ "modernc.org/sqlite"
)

func newTestExecutor(t *testing.T) (*Executor, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, schema.Init(context.Background(), db))
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)
	return New(db, config.Default(), ""), db
}

func mustExecute(t *testing.T, e *Executor, cypher string, params map[string]any) *Result {
	t.Helper()
	result, err := e.Execute(context.Background(), cypher, params)
	require.NoError(t, err)
	return result
}

func TestCreateAndMatchRoundTrip(t *testing.T) {
	e, _ := newTestExecutor(t)

	write := mustExecute(t, e, `CREATE (n:Person {name: 'Ada', age: 36})`, nil)
	require.Equal(t, 1, write.Counts.NodesCreated)
	require.Equal(t, "Query executed successfully - nodes created: 1, relationships created: 0", write.StatusString())

	result := mustExecute(t, e, `MATCH (n:Person) RETURN n`, nil)
	require.Equal(t, []string{"n"}, result.Columns)
	require.Len(t, result.Rows, 1)
	require.Equal(t, agtype.KindVertex, result.Rows[0][0].Kind)
	require.Equal(t, []string{"Person"}, result.Rows[0][0].Vertex.Labels)
}

func TestQueryCacheServesRepeatedRead(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (n:Person {name: 'Grace'})`, nil)

	first := mustExecute(t, e, `MATCH (n:Person) RETURN n.name AS name`, nil)
	second := mustExecute(t, e, `MATCH (n:Person) RETURN n.name AS name`, nil)
	require.Same(t, first, second)
}

func TestWriteInvalidatesCache(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (n:Person {name: 'Grace'})`, nil)

	first := mustExecute(t, e, `MATCH (n:Person) RETURN n.name AS name`, nil)
	mustExecute(t, e, `CREATE (n:Person {name: 'Ada'})`, nil)
	second := mustExecute(t, e, `MATCH (n:Person) RETURN n.name AS name`, nil)

	require.NotSame(t, first, second)
	require.Len(t, second.Rows, 2)
}

func TestRelationshipCreateAndMatch(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (a:Person {name: 'Ada'})-[:KNOWS {since: 2020}]->(b:Person {name: 'Grace'})`, nil)

	result := mustExecute(t, e, `MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN a.name AS a, r.since AS since, b.name AS b`, nil)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "Ada", result.Rows[0][0].Str)
	require.Equal(t, int64(2020), result.Rows[0][1].Int)
	require.Equal(t, "Grace", result.Rows[0][2].Str)
}

func TestParameterizedQuery(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (n:Person {name: $name})`, map[string]any{"name": "Ada"})

	result := mustExecute(t, e, `MATCH (n:Person {name: $name}) RETURN n.name AS name`, map[string]any{"name": "Ada"})
	require.Len(t, result.Rows, 1)
	require.Equal(t, "Ada", result.Rows[0][0].Str)
}

func TestMergeCreatesOnceThenMatches(t *testing.T) {
	e, _ := newTestExecutor(t)

	mustExecute(t, e, `MERGE (n:Person {name: 'Ada'}) ON CREATE SET n.age = 30`, nil)
	mustExecute(t, e, `MERGE (n:Person {name: 'Ada'}) ON MATCH SET n.age = 31`, nil)

	result := mustExecute(t, e, `MATCH (n:Person {name: 'Ada'}) RETURN n.age AS age`, nil)
	require.Len(t, result.Rows, 1)
	require.Equal(t, int64(31), result.Rows[0][0].Int)
}

func TestBoolPropertyRoundTripsThroughLoadVertex(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (n:Person {active: true})`, nil)

	row := e.db.QueryRowContext(context.Background(), `SELECT id FROM nodes LIMIT 1`)
	var id int64
	require.NoError(t, row.Scan(&id))

	vertex, err := e.loadVertex(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, vertex.Properties, 1)
	require.Equal(t, agtype.KindBool, vertex.Properties[0].Value.Kind)
	require.True(t, vertex.Properties[0].Value.Bool)
}
