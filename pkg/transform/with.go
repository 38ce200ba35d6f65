package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// carriedVar is one WITH/UNWIND-projected column: its source name and the kind it should be
// rebound as on the far side of the boundary.
type carriedVar struct {
	name string
	kind EntityKind
}

// applyWithProjection lowers a WITH clause as a scope/query boundary (spec §3.4): it materializes
// the rows matched so far as a derived table, then resets both the variable scope and the
// in-progress match fragment so later clauses build on exactly — and only — what WITH projected.
// A carried node/edge variable is rehydrated by rejoining its underlying table on the derived
// table's id column, so property/label access after WITH works exactly as it did before it.
func (c *compiler) applyWithProjection(wc *ast.WithClause, accum *matchFragment) error {
	var cols []string
	var colParams []any
	var colNames []string
	var carried []carriedVar

	items := wc.Items
	if len(items) == 1 && items[0].Star {
		names := make([]string, 0, len(c.scope.entries))
		for name := range c.scope.entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entry := c.scope.entries[name]
			sql, err := c.withColumnSQL(name, entry)
			if err != nil {
				return err
			}
			cols = append(cols, sql)
			colNames = append(colNames, name)
			carried = append(carried, carriedVar{name: name, kind: entry.Kind})
		}
	} else {
		for _, item := range items {
			name := columnName(item)
			if id, ok := item.Expr.(*ast.Ident); ok {
				if entry, bound := c.scope.Resolve(id.Name); bound && entry.Kind != KindScalar {
					cols = append(cols, entry.Alias+".id")
					colNames = append(colNames, name)
					carried = append(carried, carriedVar{name: name, kind: entry.Kind})
					continue
				}
			}
			sql, params, err := c.lowerExpr(item.Expr)
			if err != nil {
				return err
			}
			cols = append(cols, sql)
			colParams = append(colParams, params...)
			colNames = append(colNames, name)
			carried = append(carried, carriedVar{name: name, kind: KindScalar})
		}
	}
	if len(cols) == 0 {
		return errs.New(errs.Transform, "WITH has no projection items")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if wc.Distinct {
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

	if len(accum.From) > 0 {
		b.WriteString(" FROM ")
		b.WriteString(strings.Join(accum.From, ", "))
	}
	for _, j := range accum.Joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	params = append(params, accum.JoinParams...)

	whereParts := append([]string{}, accum.WhereParts...)
	whereParams := append([]any{}, accum.WhereParams...)
	if wc.Where != nil {
		sql, p, err := c.lowerExpr(wc.Where)
		if err != nil {
			return err
		}
		whereParts = append(whereParts, sql)
		whereParams = append(whereParams, p...)
	}
	if len(whereParts) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(whereParts, " AND "))
		params = append(params, whereParams...)
	}

	if len(wc.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range wc.OrderBy {
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
	if wc.Limit != nil {
		limSQL, limParams, err := c.lowerExpr(wc.Limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, " LIMIT %s", limSQL)
		params = append(params, limParams...)
	}
	if wc.Skip != nil {
		skipSQL, skipParams, err := c.lowerExpr(wc.Skip)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, " OFFSET %s", skipSQL)
		params = append(params, skipParams...)
	}

	withAlias := fmt.Sprintf("with_%d", c.withSeq)
	c.withSeq++

	newScope := NewScope()
	newAccum := matchFragment{
		From:       []string{fmt.Sprintf("(%s) AS %s", b.String(), withAlias)},
		JoinParams: params,
	}
	for _, cv := range carried {
		if cv.kind == KindScalar {
			newScope.entries[cv.name] = ScopeEntry{Alias: fmt.Sprintf("%s.%s", withAlias, quoteAlias(cv.name)), Kind: KindScalar, Inherited: true}
			continue
		}
		entry := newScope.bindNew(cv.name, cv.kind)
		entry.Inherited = true
		newScope.entries[cv.name] = entry
		table := entityTable(cv.kind)
		newAccum.Joins = append(newAccum.Joins, fmt.Sprintf(
			"JOIN %s%s AS %s ON %s.id = %s.%s",
			c.schemaPrefix, table, entry.Alias, entry.Alias, withAlias, quoteAlias(cv.name)))
	}

	c.scope = newScope
	*accum = newAccum
	if wc.Where != nil {
		sql, p, err := c.lowerExpr(wc.Where)
		if err != nil {
			return err
		}
		accum.WhereParts = append(accum.WhereParts, sql)
		accum.WhereParams = append(accum.WhereParams, p...)
	}
	return nil
}

// withColumnSQL renders the projection SQL for a `WITH *`-expanded variable: entities by id (so
// they can be rehydrated past the boundary), scalars by their current alias.
func (c *compiler) withColumnSQL(name string, entry ScopeEntry) (string, error) {
	if entry.Kind == KindScalar {
		return entry.Alias, nil
	}
	return entry.Alias + ".id", nil
}

// applyUnwind lowers UNWIND as a join against the host's json_each table function over the source
// list expression, binding Variable to one row per element (spec §4.2's UNWIND clause). The list
// must already be representable as a JSON array text (a list literal, a list-valued parameter, or
// an expression that renders one via lowerExpr, e.g. collect(...) or a property holding a JSON
// array).
func (c *compiler) applyUnwind(uc *ast.UnwindClause, accum *matchFragment) error {
	sourceSQL, sourceParams, err := c.lowerExpr(uc.Source)
	if err != nil {
		return err
	}
	alias := fmt.Sprintf("je_%d", c.unwindSeq)
	c.unwindSeq++

	accum.Joins = append(accum.Joins, fmt.Sprintf("JOIN json_each(%s) AS %s", sourceSQL, alias))
	accum.JoinParams = append(accum.JoinParams, sourceParams...)

	c.scope.entries[uc.Variable] = ScopeEntry{Alias: alias + ".value", Kind: KindScalar}
	return nil
}
