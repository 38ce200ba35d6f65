package transform

import (
	"fmt"
	"strings"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// Entity ids created within the same CREATE clause are threaded via Ref, captured off a RETURNING
// clause (plan.go's Statement.CaptureAs), since last_insert_rowid() is unsafe once a clause
// interleaves inserts into more than one table.

// lowerCreate lowers a CREATE clause's pattern into INSERT statements, nodes before edges within
// each path (spec §4.3(6), §5). A node/relationship variable already bound by an earlier MATCH in
// the same single query is treated as pre-existing; connecting a CREATE edge to one requires
// resolving that row's id per matched tuple, which this engine does not support — such a pattern
// is rejected with a clear error rather than silently mis-lowered.
func (c *compiler) lowerCreate(pattern *ast.Pattern) ([]Statement, error) {
	var stmts []Statement
	for _, path := range pattern.Paths {
		nodeAliases := make([]string, len(path.Nodes))
		nodeIsNew := make([]bool, len(path.Nodes))

		for i, n := range path.Nodes {
			var preBound bool
			if n.Variable != "" {
				_, preBound = c.scope.Resolve(n.Variable)
			}
			entry := c.bindNodePattern(n)
			nodeAliases[i] = entry.Alias
			if preBound {
				continue
			}
			nodeIsNew[i] = true

			stmts = append(stmts, Statement{
				SQL:       fmt.Sprintf("INSERT INTO %snodes DEFAULT VALUES RETURNING id", c.schemaPrefix),
				CaptureAs: entry.Alias,
			})
			for _, label := range n.Labels {
				stmts = append(stmts, Statement{
					SQL:    fmt.Sprintf("INSERT INTO %snode_labels (node_id, label) VALUES (?, ?)", c.schemaPrefix),
					Params: []any{Ref{Alias: entry.Alias}, label},
				})
			}
			propStmts, err := c.propertyInsertStatements(KindNode, Ref{Alias: entry.Alias}, n.Properties)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, propStmts...)
			c.plan.Counts.NodesCreated++
		}

		for i, rel := range path.Rels {
			if rel.VarLength {
				return nil, errs.New(errs.Transform, "CREATE does not support variable-length relationships")
			}
			if !nodeIsNew[i] || !nodeIsNew[i+1] {
				return nil, errs.New(errs.Transform, "CREATE cannot connect a relationship to a node bound by an earlier MATCH")
			}
			if len(rel.Types) != 1 {
				return nil, errs.New(errs.Transform, "CREATE relationship requires exactly one type")
			}

			leftRef := Ref{Alias: nodeAliases[i]}
			rightRef := Ref{Alias: nodeAliases[i+1]}
			sourceRef, targetRef := leftRef, rightRef
			if rel.Direction == ast.DirLeft {
				sourceRef, targetRef = rightRef, leftRef
			}

			entry := c.bindRelPattern(rel)
			stmts = append(stmts, Statement{
				SQL:       fmt.Sprintf("INSERT INTO %sedges (source_id, target_id, type) VALUES (?, ?, ?) RETURNING id", c.schemaPrefix),
				Params:    []any{sourceRef, targetRef, rel.Types[0]},
				CaptureAs: entry.Alias,
			})
			propStmts, err := c.propertyInsertStatements(KindEdge, Ref{Alias: entry.Alias}, rel.Properties)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, propStmts...)
			c.plan.Counts.RelationshipsCreated++
		}
	}
	return stmts, nil
}

// propertyInsertStatements interns each property's key and inserts its typed value, keyed by
// idParam (an int64 literal or a Ref to a just-captured id) — spec §4.3(6): "typed property
// inserts for each (k,v) after interning k into property_keys".
func (c *compiler) propertyInsertStatements(kind EntityKind, idParam any, props []ast.PropertyEntry) ([]Statement, error) {
	var stmts []Statement
	keyTable := c.schemaPrefix + "property_keys"
	col := entityColumn(kind)
	for _, prop := range props {
		scalarKind, ok := c.scalarKindOfValue(prop.Value)
		if !ok {
			return nil, errs.New(errs.Transform, "cannot determine scalar type of property %q", prop.Key)
		}
		_, valueParams, err := c.lowerExpr(prop.Value)
		if err != nil {
			return nil, err
		}
		if len(valueParams) != 1 {
			return nil, errs.New(errs.Transform, "property %q must be a literal or parameter value", prop.Key)
		}
		table := entityPropTable(c.schemaPrefix, kind, scalarKind)
		stmts = append(stmts,
			Statement{SQL: fmt.Sprintf("INSERT OR IGNORE INTO %s (key) VALUES (?)", keyTable), Params: []any{prop.Key}},
			Statement{
				SQL: fmt.Sprintf(
					"INSERT OR REPLACE INTO %s (%s, key_id, value) VALUES (?, (SELECT id FROM %s WHERE key = ?), ?)",
					table, col, keyTable),
				Params: []any{idParam, prop.Key, valueParams[0]},
			},
		)
	}
	return stmts, nil
}

// matchScopeSQL renders a correlated subquery selecting alias.id from the accumulated match
// fragment, so a SET/REMOVE/DELETE clause can scope a bulk write to exactly the matched rows
// (spec §4.3(6)): `WHERE node_id IN (SELECT n_0.id FROM ... WHERE ...)`.
func matchScopeSQL(alias string, accum *matchFragment) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s.id FROM ", alias)
	b.WriteString(strings.Join(accum.From, ", "))
	for _, j := range accum.Joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	var params []any
	params = append(params, accum.JoinParams...)
	if len(accum.WhereParts) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(accum.WhereParts, " AND "))
		params = append(params, accum.WhereParams...)
	}
	return b.String(), params
}

// lowerSet lowers a SET clause's items into prologue statements scoped to the rows matched so far
// in the current single query (spec §4.3(6)): a property assignment replaces any existing typed
// value for that key across all four typed tables before inserting into the one matching the new
// value's type, and `n:Label` is an insert-ignore into node_labels.
func (c *compiler) lowerSet(items []ast.SetItem, accum *matchFragment) ([]Statement, error) {
	var stmts []Statement
	for _, item := range items {
		entry, ok := c.scope.Resolve(item.Variable)
		if !ok {
			return nil, errs.New(errs.Transform, "SET references unbound variable %q", item.Variable)
		}
		scopeSQL, scopeParams := matchScopeSQL(entry.Alias, accum)

		if item.AddLabels {
			for _, label := range item.Labels {
				stmts = append(stmts, Statement{
					SQL: fmt.Sprintf(
						"INSERT OR IGNORE INTO %snode_labels (node_id, label) SELECT id, ? FROM (%s) AS matched",
						c.schemaPrefix, scopeSQL),
					Params: append([]any{label}, scopeParams...),
				})
			}
			continue
		}

		if item.Property == "" {
			return nil, errs.New(errs.Transform, "SET item has neither a property nor labels")
		}
		if lit, isLit := item.Value.(*ast.Literal); isLit && lit.Kind == ast.LitNull {
			col := entityColumn(entry.Kind)
			keyTable := c.schemaPrefix + "property_keys"
			for _, sk := range scalarTableKinds {
				table := entityPropTable(c.schemaPrefix, entry.Kind, sk)
				stmts = append(stmts, Statement{
					SQL: fmt.Sprintf(
						"DELETE FROM %s WHERE %s IN (%s) AND key_id = (SELECT id FROM %s WHERE key = ?)",
						table, col, scopeSQL, keyTable),
					Params: append(append([]any{}, scopeParams...), item.Property),
				})
			}
			continue
		}
		scalarKind, ok := c.scalarKindOfValue(item.Value)
		if !ok {
			return nil, errs.New(errs.Transform, "cannot determine scalar type of SET value for %q", item.Property)
		}
		_, valueParams, err := c.lowerExpr(item.Value)
		if err != nil {
			return nil, err
		}
		if len(valueParams) != 1 {
			return nil, errs.New(errs.Transform, "SET value for %q must be a literal or parameter", item.Property)
		}
		col := entityColumn(entry.Kind)
		keyTable := c.schemaPrefix + "property_keys"

		stmts = append(stmts, Statement{
			SQL:    fmt.Sprintf("INSERT OR IGNORE INTO %s (key) VALUES (?)", keyTable),
			Params: []any{item.Property},
		})
		for _, sk := range scalarTableKinds {
			if sk == scalarKind {
				continue
			}
			table := entityPropTable(c.schemaPrefix, entry.Kind, sk)
			stmts = append(stmts, Statement{
				SQL: fmt.Sprintf(
					"DELETE FROM %s WHERE %s IN (%s) AND key_id = (SELECT id FROM %s WHERE key = ?)",
					table, col, scopeSQL, keyTable),
				Params: append(append([]any{}, scopeParams...), item.Property),
			})
		}
		table := entityPropTable(c.schemaPrefix, entry.Kind, scalarKind)
		stmts = append(stmts, Statement{
			SQL: fmt.Sprintf(
				"INSERT OR REPLACE INTO %s (%s, key_id, value) SELECT id, (SELECT id FROM %s WHERE key = ?), ? FROM (%s) AS matched",
				table, col, keyTable, scopeSQL),
			Params: append([]any{item.Property, valueParams[0]}, scopeParams...),
		})
	}
	return stmts, nil
}

// lowerRemove lowers REMOVE items: the inverse of SET for labels and properties (spec §4.3(6)).
func (c *compiler) lowerRemove(items []ast.RemoveItem, accum *matchFragment) ([]Statement, error) {
	var stmts []Statement
	for _, item := range items {
		entry, ok := c.scope.Resolve(item.Variable)
		if !ok {
			return nil, errs.New(errs.Transform, "REMOVE references unbound variable %q", item.Variable)
		}
		scopeSQL, scopeParams := matchScopeSQL(entry.Alias, accum)

		if len(item.Labels) > 0 {
			for _, label := range item.Labels {
				stmts = append(stmts, Statement{
					SQL: fmt.Sprintf(
						"DELETE FROM %snode_labels WHERE node_id IN (%s) AND label = ?",
						c.schemaPrefix, scopeSQL),
					Params: append(append([]any{}, scopeParams...), label),
				})
			}
			continue
		}
		if item.Property == "" {
			return nil, errs.New(errs.Transform, "REMOVE item has neither a property nor labels")
		}
		col := entityColumn(entry.Kind)
		keyTable := c.schemaPrefix + "property_keys"
		for _, sk := range scalarTableKinds {
			table := entityPropTable(c.schemaPrefix, entry.Kind, sk)
			stmts = append(stmts, Statement{
				SQL: fmt.Sprintf(
					"DELETE FROM %s WHERE %s IN (%s) AND key_id = (SELECT id FROM %s WHERE key = ?)",
					table, col, scopeSQL, keyTable),
				Params: append(append([]any{}, scopeParams...), item.Property),
			})
		}
	}
	return stmts, nil
}

// lowerDelete lowers DELETE/DETACH DELETE. Deleting a node removes its `nodes` row; on a
// connection with foreign key enforcement on, the schema's ON DELETE CASCADE keys then remove its
// labels, typed properties and any edges touching it. DETACH DELETE additionally issues an
// explicit delete of the node's edges first. Deleting a relationship removes its `edges` row.
func (c *compiler) lowerDelete(dc *ast.DeleteClause, accum *matchFragment) ([]Statement, error) {
	var stmts []Statement
	for _, varName := range dc.Variables {
		entry, ok := c.scope.Resolve(varName)
		if !ok {
			return nil, errs.New(errs.Transform, "DELETE references unbound variable %q", varName)
		}
		scopeSQL, scopeParams := matchScopeSQL(entry.Alias, accum)

		if entry.Kind == KindEdge {
			stmts = append(stmts, Statement{
				SQL:    fmt.Sprintf("DELETE FROM %sedges WHERE id IN (%s)", c.schemaPrefix, scopeSQL),
				Params: scopeParams,
			})
			continue
		}

		if dc.Detach {
			stmts = append(stmts, Statement{
				SQL: fmt.Sprintf(
					"DELETE FROM %sedges WHERE source_id IN (%s) OR target_id IN (%s)",
					c.schemaPrefix, scopeSQL, scopeSQL),
				Params: append(append([]any{}, scopeParams...), scopeParams...),
			})
		}
		stmts = append(stmts, Statement{
			SQL:    fmt.Sprintf("DELETE FROM %snodes WHERE id IN (%s)", c.schemaPrefix, scopeSQL),
			Params: scopeParams,
		})
	}
	return stmts, nil
}

// lowerMerge compiles a MERGE clause's path into a MergeStep: a driving match query, the create
// statements to run when it finds no rows, and the ON MATCH / ON CREATE SET actions for either
// branch (spec §4.3(6)). It reuses the normal MATCH and CREATE lowering against a private scope
// fork so its aliases don't leak into the outer query.
func (c *compiler) lowerMerge(mc *ast.MergeClause) (*MergeStep, error) {
	matchScope := NewScope()
	for k, v := range c.scope.entries {
		matchScope.entries[k] = v
	}
	matcher := &compiler{scope: matchScope, params: c.params, schemaPrefix: c.schemaPrefix, maxVarHopsDefault: c.maxVarHopsDefault}
	pattern := &ast.Pattern{Pos: mc.Path.Pos, Paths: []*ast.PathPattern{mc.Path}}
	frag, err := matcher.lowerMatchPattern(pattern, false)
	if err != nil {
		return nil, err
	}
	matchSQL, matchParams := matchScopeSQL(pathDrivingAlias(mc.Path, matcher), &frag)
	matchStmt := Statement{SQL: matchSQL, Params: matchParams}

	creator := &compiler{scope: NewScope(), params: c.params, schemaPrefix: c.schemaPrefix, maxVarHopsDefault: c.maxVarHopsDefault}
	createStmts, err := creator.lowerCreate(pattern)
	if err != nil {
		return nil, err
	}

	// Merge the matcher's resulting bindings into the outer scope so a subsequent RETURN can
	// reference the path's variables regardless of which branch ran.
	for k, v := range matchScope.entries {
		if _, already := c.scope.Resolve(k); !already {
			c.scope.entries[k] = v
		}
	}

	onCreate, err := c.lowerSetItemsUnscoped(mc.OnCreate)
	if err != nil {
		return nil, err
	}
	onMatch, err := c.lowerSetItemsUnscoped(mc.OnMatch)
	if err != nil {
		return nil, err
	}

	return &MergeStep{
		MatchQuery:  matchStmt,
		OnMatch:     onMatch,
		CreateStmts: createStmts,
		OnCreate:    onCreate,
	}, nil
}

// pathDrivingAlias picks the first node's alias in a MERGE path as the one the match probe selects
// by, since matchScopeSQL needs exactly one driving column.
func pathDrivingAlias(path *ast.PathPattern, c *compiler) string {
	entry, _ := c.scope.Resolve(path.Nodes[0].Variable)
	if entry.Alias != "" {
		return entry.Alias
	}
	return "n_0"
}

// lowerSetItemsUnscoped renders ON CREATE/ON MATCH SET items as standalone statements operating on
// a single id bound at execution time via Ref (the MergeStep executor substitutes the matched or
// newly created row's id once it knows which branch ran).
func (c *compiler) lowerSetItemsUnscoped(items []ast.SetItem) ([]Statement, error) {
	var stmts []Statement
	for _, item := range items {
		entry, ok := c.scope.Resolve(item.Variable)
		if !ok {
			return nil, errs.New(errs.Transform, "ON CREATE/ON MATCH references unbound variable %q", item.Variable)
		}
		idRef := Ref{Alias: entry.Alias}
		col := entityColumn(entry.Kind)
		keyTable := c.schemaPrefix + "property_keys"

		if item.AddLabels {
			for _, label := range item.Labels {
				stmts = append(stmts, Statement{
					SQL:    fmt.Sprintf("INSERT OR IGNORE INTO %snode_labels (node_id, label) VALUES (?, ?)", c.schemaPrefix),
					Params: []any{idRef, label},
				})
			}
			continue
		}
		scalarKind, ok := c.scalarKindOfValue(item.Value)
		if !ok {
			return nil, errs.New(errs.Transform, "cannot determine scalar type of ON CREATE/ON MATCH value for %q", item.Property)
		}
		_, valueParams, err := c.lowerExpr(item.Value)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, Statement{
			SQL:    fmt.Sprintf("INSERT OR IGNORE INTO %s (key) VALUES (?)", keyTable),
			Params: []any{item.Property},
		})
		table := entityPropTable(c.schemaPrefix, entry.Kind, scalarKind)
		stmts = append(stmts, Statement{
			SQL: fmt.Sprintf(
				"INSERT OR REPLACE INTO %s (%s, key_id, value) VALUES (?, (SELECT id FROM %s WHERE key = ?), ?)",
				table, col, keyTable),
			Params: []any{idRef, item.Property, valueParams[0]},
		})
	}
	return stmts, nil
}
