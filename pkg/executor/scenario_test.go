package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graphqlite/graphqlite/pkg/agtype"
)

const testTraversalTimeout = 5 * time.Second

// The TestScenario... tests here follow spec §8's concrete input/output scenarios. The first two
// assert against the JSON a row-bearing query produces, matching how a real caller (through
// pkg/bindings' cypher() function) would observe the result; the rest inspect the agtype rows
// directly. The TestInvariant... tests cover two of §8's invariants: vertex round-trip and
// variable-length cycle safety.

func TestScenarioCreateAndReadBackScalarProperty(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (:Person {name: "Alice", age: 30})`, nil)

	result := mustExecute(t, e, `MATCH (p:Person {name: "Alice"}) RETURN p.age AS age`, nil)
	data, err := result.JSON()
	require.NoError(t, err)
	require.JSONEq(t, `[{"age": 30}]`, string(data))
}

func TestScenarioParameterSubstitution(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (:Person {name: "Alice", age: 30})`, nil)

	found := mustExecute(t, e, `MATCH (p:Person {name: $n}) RETURN p.name AS name`, map[string]any{"n": "Alice"})
	data, err := found.JSON()
	require.NoError(t, err)
	require.JSONEq(t, `[{"name": "Alice"}]`, string(data))

	notFound := mustExecute(t, e, `MATCH (p:Person {name: $n}) RETURN p.name AS name`, map[string]any{"n": "Bob"})
	data, err = notFound.JSON()
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(data))
}

func seedABCDChain(t *testing.T, e *Executor) {
	t.Helper()
	mustExecute(t, e, `CREATE (a:Person {name: "A"})-[:KNOWS]->(b:Person {name: "B"})-[:KNOWS]->(c:Person {name: "C"})-[:KNOWS]->(d:Person {name: "D"})`, nil)
}

func TestScenarioVariableLengthExactHop(t *testing.T) {
	e, _ := newTestExecutor(t)
	seedABCDChain(t, e)

	result := mustExecute(t, e, `MATCH (a:Person {name: "A"})-[*2]->(x) RETURN x.name AS name`, nil)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "C", result.Rows[0][0].Str)
}

func TestScenarioVariableLengthRange(t *testing.T) {
	e, _ := newTestExecutor(t)
	seedABCDChain(t, e)

	result := mustExecute(t, e, `MATCH (a:Person {name: "A"})-[*1..3]->(x) RETURN x.name AS name`, nil)
	require.Len(t, result.Rows, 3)
	names := []string{result.Rows[0][0].Str, result.Rows[1][0].Str, result.Rows[2][0].Str}
	require.ElementsMatch(t, []string{"B", "C", "D"}, names)
}

// TestScenarioDegreeCentrality exercises spec §8 scenario 4's algorithm and output shape on a
// linear A→B→C→D chain rather than the scenario's literal branching graph (A→B, A→D, B→C, D→B):
// that graph needs a relationship connecting two already-created nodes from separate CREATE
// paths, which pkg/transform's lowerCreate rejects outright (see DESIGN.md's Known limitations —
// CREATE can only wire a chain of brand-new nodes, never reconnect a node bound anywhere earlier,
// including by an earlier path in the same clause). The expected in/out/total degrees below are
// recomputed for the chain topology; the algorithm and result shape under test are identical.
func TestScenarioDegreeCentrality(t *testing.T) {
	e, _ := newTestExecutor(t)
	// user_id is read from each node's own `id` property, so the chain's nodes carry one.
	mustExecute(t, e, `CREATE (a:Person {id: "A"})-[:KNOWS]->(b:Person {id: "B"})-[:KNOWS]->(c:Person {id: "C"})-[:KNOWS]->(d:Person {id: "D"})`, nil)

	result := mustExecute(t, e, `RETURN degreeCentrality()`, nil)
	require.Len(t, result.Rows, 4)
	require.Equal(t, []string{"node_id", "user_id", "in_degree", "out_degree", "degree"}, result.Columns)

	userIDCol := columnIndex(result.Columns, "user_id")
	inCol := columnIndex(result.Columns, "in_degree")
	outCol := columnIndex(result.Columns, "out_degree")
	degCol := columnIndex(result.Columns, "degree")

	byUserID := map[string][3]int64{}
	for _, row := range result.Rows {
		byUserID[row[userIDCol].Str] = [3]int64{row[inCol].Int, row[outCol].Int, row[degCol].Int}
	}
	require.Equal(t, [3]int64{0, 1, 1}, byUserID["A"])
	require.Equal(t, [3]int64{1, 1, 2}, byUserID["B"])
	require.Equal(t, [3]int64{1, 1, 2}, byUserID["C"])
	require.Equal(t, [3]int64{1, 0, 1}, byUserID["D"])
}

func TestScenarioReturningWholeVertex(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (:X {name: "Test", value: 42})`, nil)

	result := mustExecute(t, e, `MATCH (n:X) RETURN n`, nil)
	require.Len(t, result.Rows, 1)

	v := result.Rows[0][0]
	require.Equal(t, agtype.KindVertex, v.Kind)
	require.Equal(t, []string{"X"}, v.Vertex.Labels)

	byKey := map[string]agtype.Value{}
	for _, p := range v.Vertex.Properties {
		byKey[p.Key] = p.Value
	}
	require.Equal(t, "Test", byKey["name"].Str)
	require.Equal(t, int64(42), byKey["value"].Int)
}

func TestScenarioCaseCoalesceIsNull(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (:Person {name: "HasEmail", email: "a@example.com"})`, nil)
	mustExecute(t, e, `CREATE (:Person {name: "NoEmail"})`, nil)

	result := mustExecute(t, e, `MATCH (p:Person) WHERE p.email IS NULL RETURN p.name AS name`, nil)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "NoEmail", result.Rows[0][0].Str)

	coalesced := mustExecute(t, e, `RETURN coalesce(NULL, NULL, "x", "y") AS r`, nil)
	require.Len(t, coalesced.Rows, 1)
	require.Equal(t, "x", coalesced.Rows[0][0].Str)
}

func TestInvariantRoundTripVertexFields(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExecute(t, e, `CREATE (:Person {name: "Ada", age: 36})`, nil)

	result := mustExecute(t, e, `MATCH (n:Person {name: "Ada"}) RETURN n`, nil)
	require.Len(t, result.Rows, 1)
	v := result.Rows[0][0].Vertex
	require.Equal(t, []string{"Person"}, v.Labels)

	byKey := map[string]agtype.Value{}
	for _, p := range v.Properties {
		byKey[p.Key] = p.Value
	}
	require.Equal(t, "Ada", byKey["name"].Str)
	require.Equal(t, int64(36), byKey["age"].Int)
}

// TestInvariantVariableLengthCycleSafety builds its A→B→C→A cycle with direct SQL rather than
// Cypher CREATE: closing a cycle means reconnecting the relationship's end to a node that was
// already bound earlier in the same pattern, which pkg/transform's lowerCreate rejects (see
// DESIGN.md's Known limitations). The traversal under test — BFS over a cyclic graph — only cares
// that the graph exists, not how it was populated.
func TestInvariantVariableLengthCycleSafety(t *testing.T) {
	e, db := newTestExecutor(t)
	ctx := context.Background()

	var a, b, c int64
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO nodes DEFAULT VALUES RETURNING id`).Scan(&a))
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO nodes DEFAULT VALUES RETURNING id`).Scan(&b))
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO nodes DEFAULT VALUES RETURNING id`).Scan(&c))
	for _, edge := range [][2]int64{{a, b}, {b, c}, {c, a}} {
		_, err := db.ExecContext(ctx, `INSERT INTO edges (source_id, target_id, type) VALUES (?, ?, 'NEXT')`, edge[0], edge[1])
		require.NoError(t, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, testTraversalTimeout)
	defer cancel()
	result, err := e.Execute(runCtx, `MATCH (a)-[*1..10]->(x) WHERE id(a) = $start RETURN id(x) AS id`, map[string]any{"start": a})
	require.NoError(t, err)
	require.NotEmpty(t, result.Rows)
}
