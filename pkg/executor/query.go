package executor

import (
	"context"

	"github.com/graphqlite/graphqlite/pkg/agtype"
	"github.com/graphqlite/graphqlite/pkg/errs"
	"github.com/graphqlite/graphqlite/pkg/transform"
)

// runDrivingQuery issues the compiled Plan's single SELECT and converts every row into agtype
// values, splitting the RETURN-visible columns from the hidden ExtraColumns tail a PlanStep may
// need (spec §4.3/§4.4). A RETURN pageRank()/labelPropagation()/degreeCentrality() query still
// drives a placeholder SELECT here; applyPostProcess's AlgorithmStep case replaces the result
// wholesale once the CSR-backed algorithm has actually run.
func (e *Executor) runDrivingQuery(ctx context.Context, plan *transform.Plan) (*Result, error) {
	rows, err := e.db.QueryContext(ctx, plan.Query.SQL, plan.Query.Params...)
	if err != nil {
		return nil, errs.Wrap(errs.Execute, err, "run driving query")
	}
	defer rows.Close()

	width := len(plan.Columns) + len(plan.ExtraColumns)
	result := &Result{Kind: plan.ResultKind, Columns: plan.Columns}

	for rows.Next() {
		raw := make([]any, width)
		ptrs := make([]any, width)
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errs.Wrap(errs.Execute, err, "scan driving query row")
		}

		visible := make([]agtype.Value, len(plan.Columns))
		for i := range plan.Columns {
			v, err := sqlValueToAgtype(raw[i])
			if err != nil {
				return nil, err
			}
			visible[i] = v
		}
		result.Rows = append(result.Rows, visible)

		if len(plan.ExtraColumns) > 0 {
			hidden := make([]agtype.Value, len(plan.ExtraColumns))
			for i := range plan.ExtraColumns {
				v, err := sqlValueToAgtype(raw[len(plan.Columns)+i])
				if err != nil {
					return nil, err
				}
				hidden[i] = v
			}
			result.hidden = append(result.hidden, hidden)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Execute, err, "iterate driving query rows")
	}
	return result, nil
}
