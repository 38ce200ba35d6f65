package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/graphqlite/graphqlite/pkg/agtype"
	"github.com/graphqlite/graphqlite/pkg/errs"
	"github.com/graphqlite/graphqlite/pkg/schema"
)

// runAlgorithm dispatches one AlgorithmStep against the executor's CSR snapshot and returns the
// rows in spec §4.6's exact flat-field shape: node_id/user_id/score for pageRank, node_id/community
// for labelPropagation, node_id/user_id/in_degree/out_degree/degree for degreeCentrality. user_id is
// populated only for nodes carrying a distinguishable `id` property, otherwise null.
func (e *Executor) runAlgorithm(ctx context.Context, name string, args []any) ([]string, [][]agtype.Value, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	switch algorithmName(name) {
	case "pagerank":
		damping := e.cfg.Algorithms.PageRankDamping
		iterations := e.cfg.Algorithms.PageRankIterations
		if len(args) > 0 {
			d, err := asFloat64Arg(args[0])
			if err != nil {
				return nil, nil, errs.Wrap(errs.Execute, err, "pageRank damping argument")
			}
			damping = d
		}
		if len(args) > 1 {
			n, err := asIntArg(args[1])
			if err != nil {
				return nil, nil, errs.Wrap(errs.Execute, err, "pageRank iterations argument")
			}
			iterations = n
		}
		results := snap.PageRank(damping, iterations)
		rows := make([][]agtype.Value, len(results))
		for i, r := range results {
			userID, err := e.lookupUserID(ctx, r.NodeID)
			if err != nil {
				return nil, nil, err
			}
			rows[i] = []agtype.Value{agtype.NewInteger(r.NodeID), userID, agtype.NewFloat(r.Score)}
		}
		return []string{"node_id", "user_id", "score"}, rows, nil

	case "labelpropagation":
		maxIterations := e.cfg.Algorithms.LabelPropagationMax
		if len(args) > 0 {
			n, err := asIntArg(args[0])
			if err != nil {
				return nil, nil, errs.Wrap(errs.Execute, err, "labelPropagation iterations argument")
			}
			maxIterations = n
		}
		results := snap.LabelPropagation(maxIterations)
		rows := make([][]agtype.Value, len(results))
		for i, r := range results {
			rows[i] = []agtype.Value{agtype.NewInteger(r.NodeID), agtype.NewInteger(r.CommunityID)}
		}
		return []string{"node_id", "community"}, rows, nil

	case "degreecentrality":
		results := snap.DegreeCentrality()
		rows := make([][]agtype.Value, len(results))
		for i, r := range results {
			userID, err := e.lookupUserID(ctx, r.NodeID)
			if err != nil {
				return nil, nil, err
			}
			rows[i] = []agtype.Value{
				agtype.NewInteger(r.NodeID), userID,
				agtype.NewInteger(r.InDegree), agtype.NewInteger(r.OutDegree), agtype.NewInteger(r.Degree),
			}
		}
		return []string{"node_id", "user_id", "in_degree", "out_degree", "degree"}, rows, nil

	default:
		return nil, nil, errs.New(errs.Execute, "unknown algorithm %q", name)
	}
}

func asFloat64Arg(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, errs.New(errs.Execute, "expected numeric argument, got %T", v)
	}
}

func asIntArg(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, errs.New(errs.Execute, "expected numeric argument, got %T", v)
	}
}

// scalarPropertyTables lists the typed property tables lookupUserID probes, in the fixed order its
// UNION ALL query relies on to know which scalar kind a matched row came from.
var scalarPropertyTables = []string{"int", "real", "text", "bool"}

// lookupUserID finds the value of a node's own "id" property, the distinguishable application-level
// identifier spec §4.6 distinguishes from the internal row id (r.NodeID). Returns agtype.Null if the
// node carries no such property.
func (e *Executor) lookupUserID(ctx context.Context, nodeID int64) (agtype.Value, error) {
	for _, kind := range scalarPropertyTables {
		table := schema.PropertyTableFor(e.schemaPrefix, "node", kind)
		query := fmt.Sprintf(
			`SELECT t.value FROM %s t JOIN %sproperty_keys pk ON pk.id = t.key_id WHERE t.node_id = ? AND pk.key = 'id'`,
			table, e.schemaPrefix)
		var raw any
		err := e.db.QueryRowContext(ctx, query, nodeID).Scan(&raw)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return agtype.Value{}, errs.Wrap(errs.Execute, err, "look up user id for node %d", nodeID)
		}
		return scalarFromColumn(kind, raw)
	}
	return agtype.Null, nil
}
