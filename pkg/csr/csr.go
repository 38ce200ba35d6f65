// Package csr snapshots the graph into a compressed-sparse-row adjacency and runs the three
// algorithms spec §4.6 names (PageRank, label propagation, degree centrality) over the dense
// arrays instead of `*Node`/`*Relationship` pointer graphs, adapted from the teacher's
// apoc/algo/algo.go (PageRank, Community, DegreeCentrality).
package csr

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/graphqlite/graphqlite/pkg/errs"
)

// queryer is the narrow slice of *sql.DB/*sql.Conn/*sql.Tx the loader needs, mirroring
// pkg/schema.InternKey's duck-typed exec parameter so Load works against whichever handle the
// executor holds for its connection.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Snapshot is one point-in-time adjacency: row_ptr[i]..row_ptr[i+1] indexes the out-edges of the
// dense node i in col_idx, each entry itself a dense node index. Freshness is the caller's
// responsibility (spec §4.6: "staleness after external writes is documented as call-site's
// responsibility to reload") — the executor reloads it whenever it observes a write.
type Snapshot struct {
	RowPtr    []int64
	ColIdx    []int64
	DenseToID []int64 // dense index -> nodes.id
	IDToDense map[int64]int
}

// Load scans nodes sorted by id (establishing the dense numbering) then edges in source-id order,
// filling row_ptr with cumulative out-degree and col_idx with target dense indices (spec §4.6).
func Load(ctx context.Context, db queryer, schemaPrefix string) (*Snapshot, error) {
	nodeRows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %snodes ORDER BY id", schemaPrefix))
	if err != nil {
		return nil, errs.Wrap(errs.Execute, err, "csr: scan nodes")
	}
	var denseToID []int64
	idToDense := make(map[int64]int)
	for nodeRows.Next() {
		var id int64
		if err := nodeRows.Scan(&id); err != nil {
			nodeRows.Close()
			return nil, errs.Wrap(errs.Execute, err, "csr: scan node id")
		}
		idToDense[id] = len(denseToID)
		denseToID = append(denseToID, id)
	}
	if err := nodeRows.Err(); err != nil {
		nodeRows.Close()
		return nil, errs.Wrap(errs.Execute, err, "csr: iterate nodes")
	}
	nodeRows.Close()

	n := len(denseToID)
	outDeg := make([]int64, n)
	type rawEdge struct{ src, dst int }
	var edges []rawEdge

	edgeRows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT source_id, target_id FROM %sedges ORDER BY source_id", schemaPrefix))
	if err != nil {
		return nil, errs.Wrap(errs.Execute, err, "csr: scan edges")
	}
	for edgeRows.Next() {
		var src, dst int64
		if err := edgeRows.Scan(&src, &dst); err != nil {
			edgeRows.Close()
			return nil, errs.Wrap(errs.Execute, err, "csr: scan edge")
		}
		si, sok := idToDense[src]
		di, dok := idToDense[dst]
		if !sok || !dok {
			continue // dangling reference would violate schema.3.1's FK invariant; skip defensively
		}
		edges = append(edges, rawEdge{si, di})
		outDeg[si]++
	}
	if err := edgeRows.Err(); err != nil {
		edgeRows.Close()
		return nil, errs.Wrap(errs.Execute, err, "csr: iterate edges")
	}
	edgeRows.Close()

	rowPtr := make([]int64, n+1)
	for i := 0; i < n; i++ {
		rowPtr[i+1] = rowPtr[i] + outDeg[i]
	}
	colIdx := make([]int64, len(edges))
	cursor := append([]int64(nil), rowPtr[:n]...)
	for _, e := range edges {
		colIdx[cursor[e.src]] = int64(e.dst)
		cursor[e.src]++
	}

	return &Snapshot{RowPtr: rowPtr, ColIdx: colIdx, DenseToID: denseToID, IDToDense: idToDense}, nil
}

// NodeCount reports how many nodes the snapshot covers.
func (s *Snapshot) NodeCount() int { return len(s.DenseToID) }

func (s *Snapshot) outNeighbors(dense int) []int64 {
	return s.ColIdx[s.RowPtr[dense]:s.RowPtr[dense+1]]
}
