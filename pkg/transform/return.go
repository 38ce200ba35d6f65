package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// lowerReturn assembles the final SELECT from the accumulated FROM/JOIN/WHERE fragments and the
// RETURN clause's projection list, column naming, DISTINCT, ORDER BY / SKIP / LIMIT (spec
// §4.3(7)(8)). It is always the last clause processed in a single query.
func (c *compiler) lowerReturn(rc *ast.ReturnClause, from, joins []string, joinParams []any, whereParts []string, whereParams []any) error {
	var cols []string
	var colParams []any
	var colNames []string

	for _, item := range rc.Items {
		if item.Star {
			names := make([]string, 0, len(c.scope.entries))
			for name := range c.scope.entries {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				sql, params, err := c.projectVariable(name, c.scope.entries[name])
				if err != nil {
					return err
				}
				cols = append(cols, sql)
				colParams = append(colParams, params...)
				colNames = append(colNames, name)
			}
			continue
		}
		sql, params, err := c.lowerProjection(item.Expr)
		if err != nil {
			return err
		}
		cols = append(cols, sql)
		colParams = append(colParams, params...)
		colNames = append(colNames, columnName(item))
	}

	if len(cols) == 0 {
		return errs.New(errs.Transform, "RETURN has no projection items")
	}
	visibleCount := len(colNames)
	for i, extra := range c.plan.ExtraColumns {
		cols = append(cols, extra)
		colNames = append(colNames, fmt.Sprintf("__hidden_%d", i))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if rc.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s AS %s", col, quoteAlias(colNames[i]))
	}
	var params []any
	params = append(params, colParams...)

	if len(from) > 0 {
		b.WriteString(" FROM ")
		b.WriteString(strings.Join(from, ", "))
	}
	for _, j := range joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	params = append(params, joinParams...)
	if len(whereParts) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(whereParts, " AND "))
	}
	params = append(params, whereParams...)

	if len(rc.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range rc.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			sql, p, err := c.lowerExpr(o.Expr)
			if err != nil {
				return err
			}
			b.WriteString(sql)
			params = append(params, p...)
			if o.Descending {
				b.WriteString(" DESC")
			}
		}
	}
	if rc.Limit != nil {
		limSQL, limParams, err := c.lowerExpr(rc.Limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, " LIMIT %s", limSQL)
		params = append(params, limParams...)
	}
	if rc.Skip != nil {
		skipSQL, skipParams, err := c.lowerExpr(rc.Skip)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, " OFFSET %s", skipSQL)
		params = append(params, skipParams...)
	}

	c.plan.Query = &Statement{SQL: b.String(), Params: params}
	c.plan.Columns = colNames[:visibleCount]
	c.plan.ResultKind = ResultRows
	for _, name := range c.plan.Columns {
		if isAlgorithmFuncItem(rc.Items, name) {
			c.plan.ResultKind = ResultAlgorithm
		}
	}
	return nil
}

func isAlgorithmFuncItem(items []ast.ProjectionItem, name string) bool {
	for _, it := range items {
		fc, ok := it.Expr.(*ast.FuncCall)
		if !ok {
			continue
		}
		switch strings.ToLower(fc.Name) {
		case "pagerank", "labelpropagation", "degreecentrality":
			if (it.Alias != "" && it.Alias == name) || (it.Alias == "" && name == fc.Name) {
				return true
			}
		}
	}
	return false
}

// columnName derives a RETURN/WITH column's name following spec §4.3(7)'s three rules in order:
// explicit AS alias; `n.k` becomes "n.k"; a bare variable becomes its own name.
func columnName(item ast.ProjectionItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	switch e := item.Expr.(type) {
	case *ast.PropertyAccess:
		if id, ok := e.Target.(*ast.Ident); ok {
			return id.Name + "." + e.Key
		}
	case *ast.Ident:
		return e.Name
	}
	return exprFallbackName(item.Expr)
}

func exprFallbackName(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.FuncCall:
		return v.Name
	default:
		return "expr"
	}
}

// projectVariable projects a bare `RETURN *`-expanded variable: a vertex/edge aggregates its id,
// labels/type, and properties into a JSON object (spec §4.3(7)); a scalar projects directly.
func (c *compiler) projectVariable(name string, entry ScopeEntry) (string, []any, error) {
	switch entry.Kind {
	case KindNode:
		return c.vertexJSONSQL(entry.Alias), nil, nil
	case KindEdge:
		return c.edgeJSONSQL(entry.Alias), nil, nil
	default:
		return entry.Alias, nil, nil
	}
}

// lowerProjection lowers one RETURN/WITH expression. A bare vertex/edge variable becomes its JSON
// aggregate; everything else is a normal scalar SQL expression (spec §4.3(7)).
func (c *compiler) lowerProjection(e ast.Expr) (string, []any, error) {
	if id, ok := e.(*ast.Ident); ok {
		if entry, bound := c.scope.Resolve(id.Name); bound {
			sql, params, _ := c.projectVariable(id.Name, entry)
			return sql, params, nil
		}
	}
	return c.lowerExpr(e)
}

// vertexJSONSQL renders the host JSON aggregate for a vertex, matching spec §4.5's shape exactly:
// {"id": i, "labels": [...], "properties": {...}}.
func (c *compiler) vertexJSONSQL(alias string) string {
	labelsSQL := fmt.Sprintf(
		"(SELECT json_group_array(label) FROM %snode_labels WHERE node_id = %s.id)",
		c.schemaPrefix, alias)
	propsSQL := c.propertiesJSONSQL(alias, KindNode)
	return fmt.Sprintf(
		"json_object('id', %s.id, 'labels', json(COALESCE(%s, '[]')), 'properties', json(%s))",
		alias, labelsSQL, propsSQL)
}

// edgeJSONSQL renders the host JSON aggregate for an edge: {"id","type","startNode","endNode","properties"}.
func (c *compiler) edgeJSONSQL(alias string) string {
	propsSQL := c.propertiesJSONSQL(alias, KindEdge)
	return fmt.Sprintf(
		"json_object('id', %s.id, 'type', %s.type, 'startNode', %s.source_id, 'endNode', %s.target_id, 'properties', json(%s))",
		alias, alias, alias, alias, propsSQL)
}

// propertiesJSONSQL aggregates every typed property row for an entity into one JSON object by
// unioning across the four typed tables and grouping by key.
func (c *compiler) propertiesJSONSQL(alias string, kind EntityKind) string {
	col := entityColumn(kind)
	var parts []string
	for _, sk := range scalarTableKinds {
		table := entityPropTable(c.schemaPrefix, kind, sk)
		parts = append(parts, fmt.Sprintf(
			"SELECT pk.key AS k, t.value AS v FROM %s t JOIN %sproperty_keys pk ON pk.id = t.key_id WHERE t.%s = %s.id",
			table, c.schemaPrefix, col, alias))
	}
	union := strings.Join(parts, " UNION ALL ")
	return fmt.Sprintf(
		"(SELECT COALESCE(json_group_object(k, v), '{}') FROM (%s))", union)
}

func quoteAlias(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
