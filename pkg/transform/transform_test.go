package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphqlite/graphqlite/pkg/cypher/parser"
)

func compileSrc(t *testing.T, src string, params map[string]any) *Plan {
	t.Helper()
	q, err := parser.Parse(src)
	require.NoError(t, err)
	plan, err := Compile(q, params, "", 15)
	require.NoError(t, err)
	return plan
}

func TestSimpleMatchReturnLowersToSelect(t *testing.T) {
	plan := compileSrc(t, `MATCH (n:Person) WHERE n.age > 21 RETURN n.name AS name`, nil)
	require.NotNil(t, plan.Query)
	require.Contains(t, plan.Query.SQL, "SELECT")
	require.Contains(t, plan.Query.SQL, "FROM nodes AS n_0")
	require.Contains(t, plan.Query.SQL, `AS "name"`)
	require.Equal(t, ResultRows, plan.ResultKind)
	require.NotEmpty(t, plan.Query.Params)
}

func TestOptionalMatchLowersToLeftJoin(t *testing.T) {
	plan := compileSrc(t, `MATCH (a:Person) OPTIONAL MATCH (a)-[:KNOWS]->(b:Person) RETURN a, b`, nil)
	require.NotNil(t, plan.Query)
	require.Contains(t, plan.Query.SQL, "LEFT JOIN")
	require.Contains(t, plan.Query.SQL, "edges AS")
}

func TestVariableLengthIsDeferredToPostProcess(t *testing.T) {
	plan := compileSrc(t, `MATCH (a)-[:KNOWS*1..3]->(b) RETURN b`, nil)
	require.NotEmpty(t, plan.PostProcess)
	_, ok := plan.PostProcess[0].(*VarLengthStep)
	require.True(t, ok, "expected a VarLengthStep, got %T", plan.PostProcess[0])
	require.NotContains(t, plan.Query.SQL, "*1..3")
}

func TestShortestPathProducesShortestPathStep(t *testing.T) {
	plan := compileSrc(t, `MATCH p = shortestPath((a)-[:KNOWS*..5]->(b)) RETURN p`, nil)
	require.Len(t, plan.PostProcess, 1)
	step, ok := plan.PostProcess[0].(*ShortestPathStep)
	require.True(t, ok)
	require.Equal(t, 5, step.MaxHops)
}

func TestCreateLowersToNodeThenEdgeInserts(t *testing.T) {
	plan := compileSrc(t, `CREATE (a:Person {name: "Ann"})-[:KNOWS]->(b:Person {name: "Bo"})`, nil)
	require.Equal(t, ResultWriteOnly, plan.ResultKind)
	require.NotEmpty(t, plan.Prologue)
	require.Contains(t, plan.Prologue[0].SQL, "INSERT INTO nodes")
	sawEdgeInsert := false
	for _, stmt := range plan.Prologue {
		if strings.Contains(stmt.SQL, "INSERT INTO edges") {
			sawEdgeInsert = true
		}
	}
	require.True(t, sawEdgeInsert)
	require.Equal(t, 2, plan.Counts.NodesCreated)
	require.Equal(t, 1, plan.Counts.RelationshipsCreated)
}

func TestSetScopesWriteToMatchedRows(t *testing.T) {
	plan := compileSrc(t, `MATCH (n:Person) WHERE n.name = $name SET n.age = 30`, map[string]any{"name": "Ann"})
	require.Equal(t, ResultWriteOnly, plan.ResultKind)
	require.NotEmpty(t, plan.Prologue)
	found := false
	for _, stmt := range plan.Prologue {
		if strings.Contains(stmt.SQL, "INSERT OR REPLACE INTO node_props_int") {
			found = true
			// SQLite has no PostgreSQL-style column-aliased derived table (AS matched(id));
			// the driving subquery must already expose its column as id.
			require.Contains(t, stmt.SQL, "AS matched")
			require.NotContains(t, stmt.SQL, "AS matched(id)")
		}
	}
	require.True(t, found)
}

func TestDetachDeleteEmitsEdgeCleanupAndNodeDelete(t *testing.T) {
	plan := compileSrc(t, `MATCH (n:Person) DETACH DELETE n`, nil)
	var sawEdgeCleanup, sawNodeDelete bool
	for _, stmt := range plan.Prologue {
		if strings.Contains(stmt.SQL, "DELETE FROM edges") {
			sawEdgeCleanup = true
		}
		if strings.Contains(stmt.SQL, "DELETE FROM nodes") {
			sawNodeDelete = true
		}
	}
	require.True(t, sawEdgeCleanup)
	require.True(t, sawNodeDelete)
}

func TestMergeProducesMergeStep(t *testing.T) {
	plan := compileSrc(t, `MERGE (n:Person {name: "Ann"}) ON CREATE SET n.created = true`, nil)
	require.Len(t, plan.PostProcess, 1)
	step, ok := plan.PostProcess[0].(*MergeStep)
	require.True(t, ok)
	require.NotEmpty(t, step.MatchQuery.SQL)
	require.NotEmpty(t, step.CreateStmts)
	require.NotEmpty(t, step.OnCreate)
}

func TestWithProjectionResetsScopeAndRehydratesEntities(t *testing.T) {
	plan := compileSrc(t, `MATCH (n:Person) WITH n, count(*) AS c WHERE c > 1 RETURN n.name AS name`, nil)
	require.NotNil(t, plan.Query)
	require.Contains(t, plan.Query.SQL, "with_0")
	require.Contains(t, plan.Query.SQL, "JOIN nodes AS")
}

func TestUnwindJoinsJSONEach(t *testing.T) {
	plan := compileSrc(t, `UNWIND [1, 2, 3] AS x RETURN x`, nil)
	require.NotNil(t, plan.Query)
	require.Contains(t, plan.Query.SQL, "json_each")
}

func TestUnionOfTwoReturnsConcatenatesSQL(t *testing.T) {
	plan := compileSrc(t, `MATCH (a:Person) RETURN a.name AS name UNION MATCH (b:Company) RETURN b.name AS name`, nil)
	require.NotNil(t, plan.Query)
	require.Contains(t, plan.Query.SQL, "UNION")
	require.NotContains(t, plan.Query.SQL, "UNION ALL")
}

func TestPropertyInListParameterUsesJSONEachMembership(t *testing.T) {
	plan := compileSrc(t, `MATCH (n:Person) WHERE n.name IN $names RETURN n.name AS name`, map[string]any{"names": []any{"Ann", "Bo"}})
	require.NotNil(t, plan.Query)
	require.Contains(t, plan.Query.SQL, "json_each")
}

func TestIsNullChecksPropertyAbsence(t *testing.T) {
	plan := compileSrc(t, `MATCH (n:Person) WHERE n.email IS NULL RETURN n.name AS name`, nil)
	require.NotNil(t, plan.Query)
	require.Contains(t, plan.Query.SQL, "NOT")
	require.Contains(t, plan.Query.SQL, "EXISTS")
}
