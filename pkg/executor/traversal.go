package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// neighbors returns the node ids reachable from nodeID by one edge matching relTypes (any type if
// empty) in the given direction, sorted ascending for deterministic BFS expansion order. Grounded on
// the teacher's pkg/cypher/traversal.go GetOutgoingEdges/GetIncomingEdges direction dispatch, adapted
// from in-memory storage.Engine calls to a direct SQL query against the row store.
func (e *Executor) neighbors(ctx context.Context, nodeID int64, relTypes []string, dir ast.Direction) ([]int64, error) {
	typeFilter, args := "", []any{}
	if len(relTypes) > 0 {
		placeholders := make([]string, len(relTypes))
		for i, t := range relTypes {
			placeholders[i] = "?"
			args = append(args, t)
		}
		typeFilter = fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ", "))
	}

	var query string
	switch dir {
	case ast.DirRight:
		query = fmt.Sprintf(`SELECT target_id FROM %sedges WHERE source_id = ?%s`, e.schemaPrefix, typeFilter)
	case ast.DirLeft:
		query = fmt.Sprintf(`SELECT source_id FROM %sedges WHERE target_id = ?%s`, e.schemaPrefix, typeFilter)
	case ast.DirBoth:
		query = fmt.Sprintf(
			`SELECT target_id FROM %sedges WHERE source_id = ?%s
			 UNION
			 SELECT source_id FROM %sedges WHERE target_id = ?%s`,
			e.schemaPrefix, typeFilter, e.schemaPrefix, typeFilter)
	default:
		return nil, errs.New(errs.Execute, "unknown direction %v", dir)
	}

	var rowArgs []any
	if dir == ast.DirBoth {
		rowArgs = append(rowArgs, nodeID)
		rowArgs = append(rowArgs, args...)
		rowArgs = append(rowArgs, nodeID)
		rowArgs = append(rowArgs, args...)
	} else {
		rowArgs = append(rowArgs, nodeID)
		rowArgs = append(rowArgs, args...)
	}

	rows, err := e.db.QueryContext(ctx, query, rowArgs...)
	if err != nil {
		return nil, errs.Wrap(errs.Execute, err, "query neighbors")
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(errs.Execute, err, "scan neighbor row")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Execute, err, "iterate neighbor rows")
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// hopsReachable reports whether end is reachable from start in at least minHops and at most maxHops
// edges, via breadth-first search layered by depth so the first depth end appears at is the minimum
// one (spec §4.4's `(a)-[*min..max]->(b)` semantics: any path whose length falls in the range
// qualifies, not only the shortest one, but reachability at all is all VarLengthStep needs to decide
// whether to keep the driving row).
func (e *Executor) hopsReachable(ctx context.Context, start, end int64, relTypes []string, dir ast.Direction, minHops, maxHops int) (bool, error) {
	if minHops <= 0 && start == end {
		return true, nil
	}
	frontier := []int64{start}
	visited := map[int64]bool{start: true}
	for depth := 1; depth <= maxHops; depth++ {
		var next []int64
		for _, n := range frontier {
			nbrs, err := e.neighbors(ctx, n, relTypes, dir)
			if err != nil {
				return false, err
			}
			for _, nb := range nbrs {
				if nb == end && depth >= minHops {
					return true, nil
				}
				if !visited[nb] {
					visited[nb] = true
					next = append(next, nb)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return false, nil
}

// shortestPathBFS finds the minimum-hop path from start to end, grounded on the teacher's
// pkg/cypher/traversal.go shortestPath (FIFO queue, parent-pointer reconstruction, early return on
// reaching the end node). Returns the node id sequence including both endpoints, or nil if end is
// unreachable within maxHops.
func (e *Executor) shortestPathBFS(ctx context.Context, start, end int64, relTypes []string, dir ast.Direction, maxHops int) ([]int64, error) {
	if start == end {
		return []int64{start}, nil
	}
	type queueItem struct {
		id    int64
		depth int
	}
	parent := map[int64]int64{start: start}
	queue := []queueItem{{id: start, depth: 0}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= maxHops {
			continue
		}
		nbrs, err := e.neighbors(ctx, item.id, relTypes, dir)
		if err != nil {
			return nil, err
		}
		for _, nb := range nbrs {
			if _, seen := parent[nb]; seen {
				continue
			}
			parent[nb] = item.id
			if nb == end {
				return reconstructPath(parent, start, end), nil
			}
			queue = append(queue, queueItem{id: nb, depth: item.depth + 1})
		}
	}
	return nil, nil
}

func reconstructPath(parent map[int64]int64, start, end int64) []int64 {
	var path []int64
	for cur := end; ; {
		path = append(path, cur)
		if cur == start {
			break
		}
		cur = parent[cur]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
