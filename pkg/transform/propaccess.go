package transform

import (
	"fmt"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
)

// scalarTableKinds lists the typed property tables in the priority used when a property's type
// cannot be determined from context (e.g. a bare `n.k` projection): first table with a matching
// row wins. This is the same order as pkg/schema's scalarKinds.
var scalarTableKinds = []string{"int", "real", "text", "bool"}

func entityTable(kind EntityKind) string {
	if kind == KindEdge {
		return "edges"
	}
	return "nodes"
}

func entityColumn(kind EntityKind) string {
	if kind == KindEdge {
		return "edge_id"
	}
	return "node_id"
}

func entityPropTable(prefix string, kind EntityKind, scalarKind string) string {
	entity := "node"
	if kind == KindEdge {
		entity = "edge"
	}
	return fmt.Sprintf("%s%s_props_%s", prefix, entity, scalarKind)
}

// scalarKindForLiteral maps a literal's AST kind to the typed property table it would live in.
func scalarKindForLiteral(lit *ast.Literal) (string, bool) {
	switch lit.Kind {
	case ast.LitInteger:
		return "int", true
	case ast.LitFloat:
		return "real", true
	case ast.LitString:
		return "text", true
	case ast.LitBool:
		return "bool", true
	default:
		return "", false
	}
}

// propertyValueSQL renders a scalar expression selecting the value of entityAlias.key, trying
// each typed property table and coalescing — spec §4.3(4): "the transform selects the typed table
// matching the RHS literal or parameter" when the type is statically known, and otherwise falls
// back to a coalesce across all four, which is this function's general-purpose path.
func (c *compiler) propertyValueSQL(prefix string, alias string, kind EntityKind, key string) (string, []any) {
	col := entityColumn(kind)
	var parts []string
	var params []any
	for _, sk := range scalarTableKinds {
		table := entityPropTable(prefix, kind, sk)
		keyID, p := c.lookupKeyIDExpr(key)
		parts = append(parts, fmt.Sprintf(
			"(SELECT value FROM %s WHERE %s = %s.id AND key_id = (%s))",
			table, col, alias, keyID))
		params = append(params, p...)
	}
	expr := "COALESCE(" + join(parts, ", ") + ")"
	return expr, params
}

// propertyValueSQLTyped renders the value lookup against exactly one typed table, used when the
// comparison's RHS has a statically known literal/parameter type (spec §4.3(4)).
func (c *compiler) propertyValueSQLTyped(prefix, alias string, kind EntityKind, key, scalarKind string) (string, []any) {
	table := entityPropTable(prefix, kind, scalarKind)
	col := entityColumn(kind)
	keyID, params := c.lookupKeyIDExpr(key)
	expr := fmt.Sprintf("(SELECT value FROM %s WHERE %s = %s.id AND key_id = (%s))", table, col, alias, keyID)
	return expr, params
}

// propertyExistsSQL renders `EXISTS(...)` over every typed table for (entityAlias, key), used for
// `IS NULL` / `IS NOT NULL` (spec §4.3(4)) and the property form of `EXISTS(n.prop)`.
func (c *compiler) propertyExistsSQL(prefix, alias string, kind EntityKind, key string) (string, []any) {
	col := entityColumn(kind)
	var parts []string
	var params []any
	for _, sk := range scalarTableKinds {
		table := entityPropTable(prefix, kind, sk)
		keyID, p := c.lookupKeyIDExpr(key)
		parts = append(parts, fmt.Sprintf(
			"EXISTS(SELECT 1 FROM %s WHERE %s = %s.id AND key_id = (%s))", table, col, alias, keyID))
		params = append(params, p...)
	}
	return "(" + join(parts, " OR ") + ")", params
}

// lookupKeyIDExpr renders a subquery resolving a property key's interned id. Keys are always
// known at compile time (literal identifiers in source text); the key is bound as a host parameter
// and the subquery does not correlate with the outer row.
func (c *compiler) lookupKeyIDExpr(key string) (string, []any) {
	return fmt.Sprintf("SELECT id FROM %sproperty_keys WHERE key = ?", c.schemaPrefix), []any{key}
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
