package csr

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// openGraph builds an in-memory sqlite database with the minimal nodes/edges tables Load scans,
// independent of pkg/schema's full DDL so this package's tests don't import the executor stack.
func openGraph(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE nodes (id INTEGER PRIMARY KEY AUTOINCREMENT);
		CREATE TABLE edges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id INTEGER NOT NULL REFERENCES nodes(id),
			target_id INTEGER NOT NULL REFERENCES nodes(id),
			type TEXT NOT NULL
		);
	`)
	require.NoError(t, err)
	return db
}

func insertNode(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO nodes DEFAULT VALUES`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func insertEdge(t *testing.T, db *sql.DB, src, dst int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO edges (source_id, target_id, type) VALUES (?, ?, 'REL')`, src, dst)
	require.NoError(t, err)
}

func TestLoadBuildsAdjacency(t *testing.T) {
	db := openGraph(t)
	defer db.Close()

	a := insertNode(t, db)
	b := insertNode(t, db)
	c := insertNode(t, db)
	insertEdge(t, db, a, b)
	insertEdge(t, db, b, c)

	snap, err := Load(context.Background(), db, "")
	require.NoError(t, err)
	require.Equal(t, 3, snap.NodeCount())
	require.Len(t, snap.ColIdx, 2)

	aDense := snap.IDToDense[a]
	require.Equal(t, []int64{int64(snap.IDToDense[b])}, snap.outNeighbors(aDense))
}

func TestLoadSkipsDanglingEdges(t *testing.T) {
	db := openGraph(t)
	defer db.Close()

	a := insertNode(t, db)
	insertEdge(t, db, a, a+999) // target never inserted

	snap, err := Load(context.Background(), db, "")
	require.NoError(t, err)
	require.Equal(t, 1, snap.NodeCount())
	require.Empty(t, snap.ColIdx)
}

// fourNodeCycle builds the directed cycle a->b->c->d->a, a symmetric graph on which every node
// has in/out degree 1 and PageRank converges to equal scores.
func fourNodeCycle(t *testing.T, db *sql.DB) (a, b, c, d int64) {
	t.Helper()
	a = insertNode(t, db)
	b = insertNode(t, db)
	c = insertNode(t, db)
	d = insertNode(t, db)
	insertEdge(t, db, a, b)
	insertEdge(t, db, b, c)
	insertEdge(t, db, c, d)
	insertEdge(t, db, d, a)
	return
}

func TestDegreeCentralityOnCycle(t *testing.T) {
	db := openGraph(t)
	defer db.Close()
	fourNodeCycle(t, db)

	snap, err := Load(context.Background(), db, "")
	require.NoError(t, err)
	results := snap.DegreeCentrality()
	require.Len(t, results, 4)
	for _, r := range results {
		require.Equal(t, int64(1), r.InDegree)
		require.Equal(t, int64(1), r.OutDegree)
		require.Equal(t, int64(2), r.Degree)
	}
}

func TestDegreeCentralitySelfLoopCountsBoth(t *testing.T) {
	db := openGraph(t)
	defer db.Close()
	a := insertNode(t, db)
	insertEdge(t, db, a, a)

	snap, err := Load(context.Background(), db, "")
	require.NoError(t, err)
	results := snap.DegreeCentrality()
	require.Len(t, results, 1)
	require.Equal(t, int64(1), results[0].InDegree)
	require.Equal(t, int64(1), results[0].OutDegree)
	require.Equal(t, int64(2), results[0].Degree)
}

func TestPageRankScoresSumToOne(t *testing.T) {
	db := openGraph(t)
	defer db.Close()
	fourNodeCycle(t, db)

	snap, err := Load(context.Background(), db, "")
	require.NoError(t, err)
	results := snap.PageRank(0.85, 50)
	require.Len(t, results, 4)

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	require.InDelta(t, 1.0, sum, 1e-6)

	// a symmetric cycle converges to equal scores for every node.
	for _, r := range results {
		require.InDelta(t, results[0].Score, r.Score, 1e-6)
	}
}

func TestPageRankRedistributesDanglingMass(t *testing.T) {
	db := openGraph(t)
	defer db.Close()
	a := insertNode(t, db)
	b := insertNode(t, db)
	insertEdge(t, db, a, b) // b has no out-edges: dangling

	snap, err := Load(context.Background(), db, "")
	require.NoError(t, err)
	results := snap.PageRank(0.85, 50)

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	require.InDelta(t, 1.0, sum, 1e-6)
}

func TestLabelPropagationConvergesTwoComponents(t *testing.T) {
	db := openGraph(t)
	defer db.Close()
	a := insertNode(t, db)
	b := insertNode(t, db)
	c := insertNode(t, db)
	d := insertNode(t, db)
	insertEdge(t, db, a, b)
	insertEdge(t, db, c, d)

	snap, err := Load(context.Background(), db, "")
	require.NoError(t, err)
	results := snap.LabelPropagation(20)
	require.Len(t, results, 4)

	byID := make(map[int64]int64)
	for _, r := range results {
		byID[r.NodeID] = r.CommunityID
	}
	require.Equal(t, byID[a], byID[b])
	require.Equal(t, byID[c], byID[d])
	require.NotEqual(t, byID[a], byID[c])
}

func TestLabelPropagationEmptyGraph(t *testing.T) {
	db := openGraph(t)
	defer db.Close()

	snap, err := Load(context.Background(), db, "")
	require.NoError(t, err)
	require.Empty(t, snap.LabelPropagation(20))
	require.Empty(t, snap.PageRank(0.85, 20))
	require.Empty(t, snap.DegreeCentrality())
}
