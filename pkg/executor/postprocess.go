package executor

import (
	"context"

	"github.com/graphqlite/graphqlite/pkg/agtype"
	"github.com/graphqlite/graphqlite/pkg/errs"
	"github.com/graphqlite/graphqlite/pkg/transform"
)

// applyPostProcess carries out one compiled PlanStep the driving SQL could not express on its own
// (spec §4.4): variable-length/shortestPath row filtering, MERGE's match-then-create dispatch, and
// CSR-backed algorithm dispatch.
func (e *Executor) applyPostProcess(ctx context.Context, step transform.PlanStep, result *Result, params map[string]any) error {
	switch s := step.(type) {
	case *transform.VarLengthStep:
		return e.applyVarLengthStep(ctx, s, result)
	case *transform.ShortestPathStep:
		return e.applyShortestPathStep(ctx, s, result)
	case *transform.PathMaterializeStep:
		return e.applyPathMaterializeStep(ctx, s, result)
	case *transform.MergeStep:
		return e.applyMergeStep(ctx, s, result)
	case *transform.AlgorithmStep:
		return e.applyAlgorithmStep(ctx, s, result, params)
	default:
		return errs.New(errs.Execute, "unknown plan step %T", step)
	}
}

func rowNodeID(v agtype.Value) (int64, error) {
	if v.Kind != agtype.KindInteger {
		return 0, errs.New(errs.Execute, "expected integer id column, got kind %v", v.Kind)
	}
	return v.Int, nil
}

// applyVarLengthStep drops every row whose start/end ids (read from the hidden ExtraColumns tail)
// are not connected by a path whose hop count falls in [MinHops, MaxHops].
func (e *Executor) applyVarLengthStep(ctx context.Context, s *transform.VarLengthStep, result *Result) error {
	maxHops := s.MaxHops
	if maxHops < 0 {
		maxHops = e.cfg.MaxVarLengthHops
	}
	reject := map[int]bool{}
	for i, hidden := range result.hidden {
		start, err := rowNodeID(hidden[s.StartCol])
		if err != nil {
			return err
		}
		end, err := rowNodeID(hidden[s.EndCol])
		if err != nil {
			return err
		}
		ok, err := e.hopsReachable(ctx, start, end, s.RelTypes, s.Direction, s.MinHops, maxHops)
		if err != nil {
			return err
		}
		if !ok {
			reject[i] = true
		}
	}
	result.removeRows(reject)
	return nil
}

// applyShortestPathStep drops every row whose endpoints have no path within MaxHops, and — when the
// pattern bound a path variable — overwrites that column's NULL placeholder with the assembled
// agtype Path (spec §9 Open Question decision 8).
func (e *Executor) applyShortestPathStep(ctx context.Context, s *transform.ShortestPathStep, result *Result) error {
	pathCol := -1
	if s.PathVar != "" {
		pathCol = columnIndex(result.Columns, s.PathVar)
	}

	reject := map[int]bool{}
	for i, hidden := range result.hidden {
		start, err := rowNodeID(hidden[s.StartCol])
		if err != nil {
			return err
		}
		end, err := rowNodeID(hidden[s.EndCol])
		if err != nil {
			return err
		}
		nodeIDs, err := e.shortestPathBFS(ctx, start, end, s.RelTypes, s.Direction, s.MaxHops)
		if err != nil {
			return err
		}
		if nodeIDs == nil {
			reject[i] = true
			continue
		}
		if pathCol >= 0 {
			path, err := e.materializePath(ctx, nodeIDs, s.RelTypes)
			if err != nil {
				return err
			}
			result.Rows[i][pathCol] = path
		}
	}
	result.removeRows(reject)
	return nil
}

// applyPathMaterializeStep assembles a non-shortestPath path variable's agtype Path from the
// already-bound node/relationship id columns RETURN projected (spec §4.4; a fixed-length pattern's
// node ids are join-bound directly by the driving SQL, so no BFS is needed here).
func (e *Executor) applyPathMaterializeStep(ctx context.Context, s *transform.PathMaterializeStep, result *Result) error {
	pathCol := columnIndex(result.Columns, s.PathVar)
	if pathCol < 0 {
		return nil
	}
	nodeCols := make([]int, len(s.NodeVars))
	for i, v := range s.NodeVars {
		nodeCols[i] = columnIndex(result.Columns, v)
	}
	relCols := make([]int, len(s.RelVars))
	for i, v := range s.RelVars {
		relCols[i] = columnIndex(result.Columns, v)
	}

	for i, row := range result.Rows {
		elements := make([]agtype.Value, 0, len(nodeCols)+len(relCols))
		for j, col := range nodeCols {
			if col < 0 {
				continue
			}
			nodeID, err := rowNodeID(row[col])
			if err != nil {
				return err
			}
			vertex, err := e.loadVertex(ctx, nodeID)
			if err != nil {
				return err
			}
			elements = append(elements, agtype.NewVertex(vertex))
			if j < len(relCols) && relCols[j] >= 0 {
				edgeID, err := rowNodeID(row[relCols[j]])
				if err != nil {
					return err
				}
				edge, err := e.loadEdge(ctx, edgeID)
				if err != nil {
					return err
				}
				elements = append(elements, agtype.NewEdge(edge))
			}
		}
		path, err := agtype.NewPath(elements)
		if err != nil {
			return err
		}
		result.Rows[i][pathCol] = path
	}
	return nil
}

// materializePath loads every vertex/edge along a BFS-found node sequence into an agtype Path.
func (e *Executor) materializePath(ctx context.Context, nodeIDs []int64, relTypes []string) (agtype.Value, error) {
	elements := make([]agtype.Value, 0, 2*len(nodeIDs)-1)
	for i, nodeID := range nodeIDs {
		vertex, err := e.loadVertex(ctx, nodeID)
		if err != nil {
			return agtype.Value{}, err
		}
		elements = append(elements, agtype.NewVertex(vertex))
		if i+1 < len(nodeIDs) {
			edgeID, err := e.edgeBetween(ctx, nodeID, nodeIDs[i+1], relTypes)
			if err != nil {
				return agtype.Value{}, err
			}
			edge, err := e.loadEdge(ctx, edgeID)
			if err != nil {
				return agtype.Value{}, err
			}
			elements = append(elements, agtype.NewEdge(edge))
		}
	}
	return agtype.NewPath(elements)
}

// applyAlgorithmStep runs the CSR-backed algorithm and replaces the result wholesale: the driving
// query's columns were only ever a NULL placeholder (pkg/transform/expr.go's lowerFuncCall), so
// there is no prior row data worth keeping (spec §9 Open Question decision 9).
func (e *Executor) applyAlgorithmStep(ctx context.Context, s *transform.AlgorithmStep, result *Result, params map[string]any) error {
	args := make([]any, len(s.Args))
	for i, a := range s.Args {
		v, err := evalArgExpr(a, params)
		if err != nil {
			return err
		}
		args[i] = v
	}
	columns, rows, err := e.runAlgorithm(ctx, s.Name, args)
	if err != nil {
		return err
	}
	result.Columns = columns
	result.Rows = rows
	result.hidden = nil
	result.Kind = transform.ResultAlgorithm
	return nil
}
