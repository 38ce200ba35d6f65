package executor

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// seededRand returns a generator seeded per-test rather than process-global, so a failure is
// reproducible from the printed seed without the pack's tests stepping on each other's randomness
// (no quickcheck-style library in the pack to do this for us).
func seededRand(t *testing.T, seed int64) *rand.Rand {
	t.Helper()
	t.Logf("seed: %d", seed)
	return rand.New(rand.NewSource(seed))
}

// TestPropertyCreateThenMatchIsAlwaysObservable covers spec §8's "(a) every CREATE followed by
// MATCH is observable" property over randomly generated scalar property values.
func TestPropertyCreateThenMatchIsAlwaysObservable(t *testing.T) {
	r := seededRand(t, 1)
	e, _ := newTestExecutor(t)

	for i := 0; i < 25; i++ {
		name := fmt.Sprintf("Person%d", r.Intn(1_000_000))
		age := int64(r.Intn(100))

		mustExecute(t, e, `CREATE (:Person {name: $name, age: $age})`, map[string]any{"name": name, "age": age})

		result := mustExecute(t, e, `MATCH (p:Person {name: $name}) RETURN p.age AS age`, map[string]any{"name": name})
		require.Len(t, result.Rows, 1, "round trip %d for name %q", i, name)
		require.Equal(t, age, result.Rows[0][0].Int)
	}
}

// TestPropertyDeleteLeavesNoOrphans covers spec §8's "(b) DELETE leaves no orphan properties or
// edges" property: after DETACH DELETEing a randomly property-laden node, no typed property table
// or edge table row may still reference its id.
func TestPropertyDeleteLeavesNoOrphans(t *testing.T) {
	r := seededRand(t, 2)
	e, db := newTestExecutor(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		mustExecute(t, e, `CREATE (a:Person {name: $name, age: $age})-[:KNOWS {since: $since}]->(b:Person {name: $other})`,
			map[string]any{
				"name":  fmt.Sprintf("A%d", i),
				"age":   int64(r.Intn(100)),
				"since": int64(2000 + r.Intn(25)),
				"other": fmt.Sprintf("B%d", i),
			})
	}

	var targetID int64
	row := db.QueryRowContext(ctx, `SELECT id FROM nodes LIMIT 1`)
	require.NoError(t, row.Scan(&targetID))

	mustExecute(t, e, `MATCH (n) WHERE id(n) = $id DETACH DELETE n`, map[string]any{"id": targetID})

	for _, table := range []string{"node_props_int", "node_props_text", "node_props_real", "node_props_bool"} {
		var count int
		row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE node_id = ?`, table), targetID)
		require.NoError(t, row.Scan(&count))
		require.Zero(t, count, "orphaned rows in %s for deleted node %d", table, targetID)
	}

	var labelCount int
	row = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM node_labels WHERE node_id = ?`, targetID)
	require.NoError(t, row.Scan(&labelCount))
	require.Zero(t, labelCount)

	var edgeCount int
	row = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges WHERE source_id = ? OR target_id = ?`, targetID, targetID)
	require.NoError(t, row.Scan(&edgeCount))
	require.Zero(t, edgeCount)
}

// TestPropertyPageRankIsAPermutationSummingToOne covers spec §8's "(c) PageRank output is a
// permutation of node ids, scores sum to ≈1" property. The graph is seeded with direct SQL rather
// than Cypher CREATE, for the same reason scenario_test.go's cycle-safety fixture is: an arbitrary
// random adjacency (multi-edges, self-loops included) is not a shape CREATE's lowering can build in
// one query (see DESIGN.md's Known limitations).
func TestPropertyPageRankIsAPermutationSummingToOne(t *testing.T) {
	r := seededRand(t, 3)
	e, db := newTestExecutor(t)
	ctx := context.Background()

	const n = 8
	ids := make([]int64, n)
	for i := range ids {
		row := db.QueryRowContext(ctx, `INSERT INTO nodes DEFAULT VALUES RETURNING id`)
		require.NoError(t, row.Scan(&ids[i]))
	}

	// A random sample of directed edges, allowing multi-edges and self-loops: PageRank must hold
	// over whatever shape the graph happens to take, including degenerate ones.
	edgeAttempts := n * 3
	for i := 0; i < edgeAttempts; i++ {
		src := ids[r.Intn(n)]
		dst := ids[r.Intn(n)]
		_, err := db.ExecContext(ctx, `INSERT INTO edges (source_id, target_id, type) VALUES (?, ?, 'LINK')`, src, dst)
		require.NoError(t, err)
	}

	result := mustExecute(t, e, `RETURN pageRank()`, nil)
	require.Len(t, result.Rows, n)

	nodeIDCol := columnIndex(result.Columns, "node_id")
	scoreCol := columnIndex(result.Columns, "score")

	seen := map[int64]bool{}
	var sum float64
	for _, row := range result.Rows {
		id := row[nodeIDCol].Int
		require.False(t, seen[id], "duplicate node id %d in PageRank output", id)
		seen[id] = true
		sum += row[scoreCol].Float
	}
	for _, id := range ids {
		require.True(t, seen[id], "PageRank output missing node id %d", id)
	}
	require.InDelta(t, 1.0, sum, 1e-6)
}
