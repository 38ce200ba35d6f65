package transform

import (
	"fmt"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// compiler holds the state threaded through one query's compilation: the active variable scope,
// the bound parameter map, and the schema prefix for an attached-graph target (spec §4.3(9)).
type compiler struct {
	scope             *Scope
	params            map[string]any
	schemaPrefix      string
	plan              Plan
	maxVarHopsDefault int
	withSeq           int
	unwindSeq         int
}

// Compile rewrites query into a Plan against params, per spec §4.3. schemaPrefix is "" for the
// default graph, or "name." when the query runs against an attached graph. maxVarHopsDefault is
// carried on the compiler and its sub-compilers but not applied here: an unbounded `*` compiles to
// MaxHops -1, and the executor substitutes its configured ceiling when it runs the step.
func Compile(query *ast.Query, params map[string]any, schemaPrefix string, maxVarHopsDefault int) (*Plan, error) {
	c := &compiler{
		scope:             NewScope(),
		params:            params,
		schemaPrefix:      schemaPrefix,
		maxVarHopsDefault: maxVarHopsDefault,
	}
	if err := c.compileSingleQuery(query.First); err != nil {
		return nil, err
	}
	for _, u := range query.Unions {
		if err := c.appendUnion(u); err != nil {
			return nil, err
		}
	}
	return &c.plan, nil
}

// addExtraColumn reserves a hidden tail column on the driving SELECT for a PlanStep that needs an
// alias's id but RETURN never projected it, and returns the index the executor will find it at
// (see Plan.ExtraColumns).
func (c *compiler) addExtraColumn(expr string) int {
	idx := len(c.plan.ExtraColumns)
	c.plan.ExtraColumns = append(c.plan.ExtraColumns, expr)
	return idx
}

func (c *compiler) appendUnion(u ast.UnionPart) error {
	if c.plan.Query == nil {
		return errs.New(errs.Transform, "UNION requires a RETURN-bearing query on both sides")
	}
	sub := &compiler{scope: NewScope(), params: c.params, schemaPrefix: c.schemaPrefix, maxVarHopsDefault: c.maxVarHopsDefault}
	if err := sub.compileSingleQuery(u.Query); err != nil {
		return err
	}
	if sub.plan.Query == nil {
		return errs.New(errs.Transform, "UNION requires a RETURN-bearing query on both sides")
	}
	op := "UNION"
	if u.All {
		op = "UNION ALL"
	}
	c.plan.Query.SQL = fmt.Sprintf("%s %s %s", c.plan.Query.SQL, op, sub.plan.Query.SQL)
	c.plan.Query.Params = append(c.plan.Query.Params, sub.plan.Query.Params...)
	c.plan.Prologue = append(c.plan.Prologue, sub.plan.Prologue...)
	c.plan.PostProcess = append(c.plan.PostProcess, sub.plan.PostProcess...)
	return nil
}

// compileSingleQuery walks clauses in source order, honoring spec §5's ordering rule: prologue
// writes complete before the driving SELECT is issued; node creates precede edge creates within a
// clause (handled inside write.go); across clauses, everything runs in the order written. The
// accumulated matchFragment (accum) carries every MATCH/OPTIONAL MATCH seen so far in this single
// query, so a later SET/REMOVE/DELETE/CREATE clause can scope its writes to the matched rows via a
// correlated subquery (write.go's matchScopeSQL).
func (c *compiler) compileSingleQuery(sq *ast.SingleQuery) error {
	var accum matchFragment

	for _, clause := range sq.Clauses {
		switch cl := clause.(type) {
		case *ast.MatchClause:
			frag, err := c.lowerMatchPattern(cl.Pattern, cl.Optional)
			if err != nil {
				return err
			}
			accum.From = append(accum.From, frag.From...)
			accum.Joins = append(accum.Joins, frag.Joins...)
			accum.JoinParams = append(accum.JoinParams, frag.JoinParams...)
			accum.WhereParts = append(accum.WhereParts, frag.WhereParts...)
			accum.WhereParams = append(accum.WhereParams, frag.WhereParams...)
			if cl.Where != nil {
				sql, params, err := c.lowerExpr(cl.Where)
				if err != nil {
					return err
				}
				accum.WhereParts = append(accum.WhereParts, sql)
				accum.WhereParams = append(accum.WhereParams, params...)
			}
		case *ast.CreateClause:
			stmts, err := c.lowerCreate(cl.Pattern)
			if err != nil {
				return err
			}
			c.plan.Prologue = append(c.plan.Prologue, stmts...)
		case *ast.MergeClause:
			step, err := c.lowerMerge(cl)
			if err != nil {
				return err
			}
			c.plan.PostProcess = append(c.plan.PostProcess, step)
		case *ast.SetClause:
			stmts, err := c.lowerSet(cl.Items, &accum)
			if err != nil {
				return err
			}
			c.plan.Prologue = append(c.plan.Prologue, stmts...)
		case *ast.RemoveClause:
			stmts, err := c.lowerRemove(cl.Items, &accum)
			if err != nil {
				return err
			}
			c.plan.Prologue = append(c.plan.Prologue, stmts...)
		case *ast.DeleteClause:
			stmts, err := c.lowerDelete(cl, &accum)
			if err != nil {
				return err
			}
			c.plan.Prologue = append(c.plan.Prologue, stmts...)
		case *ast.WithClause:
			if err := c.applyWithProjection(cl, &accum); err != nil {
				return err
			}
		case *ast.UnwindClause:
			if err := c.applyUnwind(cl, &accum); err != nil {
				return err
			}
		case *ast.CallClause:
			c.plan.PostProcess = append(c.plan.PostProcess, &AlgorithmStep{Name: cl.Name, Args: cl.Args})
		case *ast.ReturnClause:
			return c.lowerReturn(cl, accum.From, accum.Joins, accum.JoinParams, accum.WhereParts, accum.WhereParams)
		default:
			return errs.New(errs.Transform, "unsupported clause type %T", clause)
		}
	}

	if c.plan.Query == nil {
		c.plan.ResultKind = ResultWriteOnly
	}
	return nil
}
