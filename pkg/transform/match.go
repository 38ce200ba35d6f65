package transform

import (
	"fmt"

	"github.com/graphqlite/graphqlite/pkg/cypher/ast"
	"github.com/graphqlite/graphqlite/pkg/errs"
)

// matchFragment is the SQL fragment produced by lowering one MATCH pattern: table references,
// join conditions, and any extra WHERE-position predicates contributed by inline property maps
// (spec §4.3(2)(3)).
type matchFragment struct {
	From        []string
	Joins       []string
	JoinParams  []any // placeholders embedded in Joins' ON clauses, in emission order
	WhereParts  []string
	WhereParams []any
}

// lowerMatchPattern lowers every path in pattern (spec §4.3(2)). A fixed-hop relationship becomes
// a join; a variable-length relationship is NOT joined here — it is deferred to a VarLengthStep
// (spec §4.3(5)) and recorded on c.plan.PostProcess, keyed by the driving row's bound start alias.
func (c *compiler) lowerMatchPattern(pat *ast.Pattern, optional bool) (matchFragment, error) {
	var frag matchFragment
	for _, path := range pat.Paths {
		if err := c.lowerPath(path, optional, &frag); err != nil {
			return matchFragment{}, err
		}
	}
	return frag, nil
}

func (c *compiler) lowerPath(path *ast.PathPattern, optional bool, frag *matchFragment) error {
	if len(path.Nodes) == 0 {
		return errs.New(errs.Transform, "empty pattern path")
	}

	nodeAliases := make([]string, len(path.Nodes))
	for i, n := range path.Nodes {
		entry := c.bindNodePattern(n)
		nodeAliases[i] = entry.Alias
		if i == 0 || !optional {
			// The path's anchor (first node) is never nullable, and a non-OPTIONAL MATCH
			// composes every element as a comma-joined, WHERE-filtered row set.
			if err := c.lowerNodeFrom(n, entry, frag, i == 0); err != nil {
				return err
			}
		}
		// Non-anchor nodes of an OPTIONAL MATCH are introduced by lowerFixedRel below, as the
		// right-hand side of a LEFT JOIN, so their table reference isn't added here.
	}

	for i, rel := range path.Rels {
		leftAlias := nodeAliases[i]
		rightAlias := nodeAliases[i+1]
		if rel.VarLength {
			endVar := path.Nodes[i+1].Variable
			c.plan.PostProcess = append(c.plan.PostProcess, &VarLengthStep{
				StartAlias: leftAlias,
				EndAlias:   rightAlias,
				StartCol:   c.addExtraColumn(leftAlias + ".id"),
				EndCol:     c.addExtraColumn(rightAlias + ".id"),
				EndVar:     endVar,
				RelVar:     rel.Variable,
				RelTypes:   rel.Types,
				Direction:  rel.Direction,
				MinHops:    rel.MinHops,
				MaxHops:    rel.MaxHops,
			})
			continue
		}
		if optional {
			if err := c.lowerFixedRelOuter(rel, leftAlias, rightAlias, path.Nodes[i+1], frag); err != nil {
				return err
			}
			continue
		}
		if err := c.lowerFixedRel(rel, leftAlias, rightAlias, frag); err != nil {
			return err
		}
	}

	if path.ShortestPath {
		if len(path.Nodes) < 2 || len(path.Rels) != 1 || !path.Rels[0].VarLength {
			return errs.New(errs.Transform, "shortestPath requires a single variable-length relationship")
		}
		rel := path.Rels[0]
		// Replace the deferred VarLengthStep just appended with a ShortestPathStep instead, reusing
		// the same hidden tail columns it already reserved.
		prior := c.plan.PostProcess[len(c.plan.PostProcess)-1].(*VarLengthStep)
		c.plan.PostProcess[len(c.plan.PostProcess)-1] = &ShortestPathStep{
			StartAlias: nodeAliases[0],
			EndAlias:   nodeAliases[1],
			StartCol:   prior.StartCol,
			EndCol:     prior.EndCol,
			RelTypes:   rel.Types,
			Direction:  rel.Direction,
			MaxHops:    rel.MaxHops,
			PathVar:    path.Variable,
		}
		if path.Variable != "" {
			// The driving SQL has nothing to project for a path variable yet — the executor
			// fills this column in once the ShortestPathStep's BFS has actually assembled the
			// agtype Path, so the placeholder just has to be a valid scalar expression.
			c.scope.entries[path.Variable] = ScopeEntry{Alias: "NULL", Kind: KindScalar}
		}
	}
	return nil
}

func (c *compiler) bindNodePattern(n *ast.NodePattern) ScopeEntry {
	if n.Variable == "" {
		return c.scope.BindAnonymous(KindNode)
	}
	return c.scope.Bind(n.Variable, KindNode)
}

func (c *compiler) lowerNodeFrom(n *ast.NodePattern, entry ScopeEntry, frag *matchFragment, first bool) error {
	table := fmt.Sprintf("%snodes AS %s", c.schemaPrefix, entry.Alias)
	frag.From = append(frag.From, table)
	for _, label := range n.Labels {
		frag.WhereParts = append(frag.WhereParts, fmt.Sprintf(
			"EXISTS(SELECT 1 FROM %snode_labels WHERE node_id = %s.id AND label = ?)",
			c.schemaPrefix, entry.Alias))
		frag.WhereParams = append(frag.WhereParams, label)
	}
	for _, prop := range n.Properties {
		sql, params, err := c.lowerPropertyConstraint(entry.Alias, KindNode, prop)
		if err != nil {
			return err
		}
		frag.WhereParts = append(frag.WhereParts, sql)
		frag.WhereParams = append(frag.WhereParams, params...)
	}
	return nil
}

// lowerPropertyConstraint lowers one `{k: v}` entry from an inline pattern map into an
// existence/equality predicate against the typed property table matching v's type, substituting
// parameter references as host parameters rather than interpolating them (spec §4.3(3)).
func (c *compiler) lowerPropertyConstraint(alias string, kind EntityKind, prop ast.PropertyEntry) (string, []any, error) {
	scalarKind, ok := c.scalarKindOfValue(prop.Value)
	if !ok {
		return "", nil, errs.New(errs.Transform, "cannot determine scalar type of property %q", prop.Key)
	}
	valueSQL, valueParams, err := c.lowerExpr(prop.Value)
	if err != nil {
		return "", nil, err
	}
	col := entityColumn(kind)
	table := entityPropTable(c.schemaPrefix, kind, scalarKind)
	keyIDSQL, keyParams := c.lookupKeyIDExpr(prop.Key)
	sql := fmt.Sprintf(
		"EXISTS(SELECT 1 FROM %s WHERE %s = %s.id AND key_id = (%s) AND value = %s)",
		table, col, alias, keyIDSQL, valueSQL)
	params := append(append([]any{}, keyParams...), valueParams...)
	return sql, params, nil
}

// scalarKindOfValue determines the typed property table an expression's value belongs in, when
// statically knowable (a literal, or a parameter resolved against the bound parameter map).
func (c *compiler) scalarKindOfValue(e ast.Expr) (string, bool) {
	switch v := e.(type) {
	case *ast.Literal:
		return scalarKindForLiteral(v)
	case *ast.Parameter:
		val, ok := c.params[v.Name]
		if !ok {
			return "", false
		}
		return scalarKindForGoValue(val)
	default:
		return "", false
	}
}

func scalarKindForGoValue(v any) (string, bool) {
	switch v.(type) {
	case int, int64, int32:
		return "int", true
	case float32, float64:
		return "real", true
	case string:
		return "text", true
	case bool:
		return "bool", true
	default:
		return "", false
	}
}

// lowerFixedRelOuter lowers one fixed-hop relationship of an OPTIONAL MATCH path as two LEFT
// JOINs (edge, then the newly-reached node), so the whole right-hand side is a nullable tuple
// when no match exists — spec §4.3(2): "OPTIONAL MATCH becomes LEFT JOIN (nullable tuple on the
// optional side)". The edge JOIN's ON clause only references the already-bound left endpoint and
// the relationship's own type/property constraints; the node JOIN's ON clause ties the new node
// to whichever endpoint of the edge isn't the known left side, plus that node's own label/property
// constraints — so neither ON clause references a table that hasn't been joined yet.
func (c *compiler) lowerFixedRelOuter(rel *ast.RelPattern, leftAlias, rightAlias string, rightNode *ast.NodePattern, frag *matchFragment) error {
	entry := c.bindRelPattern(rel)
	var edgeOn []string
	switch rel.Direction {
	case ast.DirRight:
		edgeOn = append(edgeOn, fmt.Sprintf("%s.source_id = %s.id", entry.Alias, leftAlias))
	case ast.DirLeft:
		edgeOn = append(edgeOn, fmt.Sprintf("%s.target_id = %s.id", entry.Alias, leftAlias))
	default:
		edgeOn = append(edgeOn, fmt.Sprintf("(%s.source_id = %s.id OR %s.target_id = %s.id)", entry.Alias, leftAlias, entry.Alias, leftAlias))
	}
	var edgeParams []any
	if len(rel.Types) == 1 {
		edgeOn = append(edgeOn, fmt.Sprintf("%s.type = ?", entry.Alias))
		edgeParams = append(edgeParams, rel.Types[0])
	} else if len(rel.Types) > 1 {
		ph := ""
		for i, t := range rel.Types {
			if i > 0 {
				ph += ", "
			}
			ph += "?"
			edgeParams = append(edgeParams, t)
		}
		edgeOn = append(edgeOn, fmt.Sprintf("%s.type IN (%s)", entry.Alias, ph))
	}
	for _, prop := range rel.Properties {
		sql, params, err := c.lowerPropertyConstraint(entry.Alias, KindEdge, prop)
		if err != nil {
			return err
		}
		edgeOn = append(edgeOn, sql)
		edgeParams = append(edgeParams, params...)
	}
	frag.Joins = append(frag.Joins, fmt.Sprintf("LEFT JOIN %sedges AS %s ON (%s)", c.schemaPrefix, entry.Alias, join(edgeOn, " AND ")))
	frag.JoinParams = append(frag.JoinParams, edgeParams...)

	var nodeOn []string
	switch rel.Direction {
	case ast.DirRight:
		nodeOn = append(nodeOn, fmt.Sprintf("%s.id = %s.target_id", rightAlias, entry.Alias))
	case ast.DirLeft:
		nodeOn = append(nodeOn, fmt.Sprintf("%s.id = %s.source_id", rightAlias, entry.Alias))
	default:
		nodeOn = append(nodeOn, fmt.Sprintf(
			"((%s.source_id = %s.id AND %s.id = %s.target_id) OR (%s.target_id = %s.id AND %s.id = %s.source_id))",
			entry.Alias, leftAlias, rightAlias, entry.Alias,
			entry.Alias, leftAlias, rightAlias, entry.Alias))
	}
	var nodeParams []any
	for _, label := range rightNode.Labels {
		nodeOn = append(nodeOn, fmt.Sprintf(
			"EXISTS(SELECT 1 FROM %snode_labels WHERE node_id = %s.id AND label = ?)", c.schemaPrefix, rightAlias))
		nodeParams = append(nodeParams, label)
	}
	for _, prop := range rightNode.Properties {
		sql, params, err := c.lowerPropertyConstraint(rightAlias, KindNode, prop)
		if err != nil {
			return err
		}
		nodeOn = append(nodeOn, sql)
		nodeParams = append(nodeParams, params...)
	}
	frag.Joins = append(frag.Joins, fmt.Sprintf("LEFT JOIN %snodes AS %s ON (%s)", c.schemaPrefix, rightAlias, join(nodeOn, " AND ")))
	frag.JoinParams = append(frag.JoinParams, nodeParams...)
	return nil
}

func (c *compiler) lowerFixedRel(rel *ast.RelPattern, leftAlias, rightAlias string, frag *matchFragment) error {
	entry := c.bindRelPattern(rel)
	table := fmt.Sprintf("%sedges AS %s", c.schemaPrefix, entry.Alias)
	frag.From = append(frag.From, table)

	var dirParts []string
	switch rel.Direction {
	case ast.DirRight:
		dirParts = []string{fmt.Sprintf("%s.source_id = %s.id AND %s.target_id = %s.id", entry.Alias, leftAlias, entry.Alias, rightAlias)}
	case ast.DirLeft:
		dirParts = []string{fmt.Sprintf("%s.source_id = %s.id AND %s.target_id = %s.id", entry.Alias, rightAlias, entry.Alias, leftAlias)}
	default: // DirBoth: disjunction of both directions (spec §4.3(2))
		dirParts = []string{fmt.Sprintf(
			"((%s.source_id = %s.id AND %s.target_id = %s.id) OR (%s.source_id = %s.id AND %s.target_id = %s.id))",
			entry.Alias, leftAlias, entry.Alias, rightAlias,
			entry.Alias, rightAlias, entry.Alias, leftAlias)}
	}
	frag.WhereParts = append(frag.WhereParts, dirParts...)

	if len(rel.Types) == 1 {
		frag.WhereParts = append(frag.WhereParts, fmt.Sprintf("%s.type = ?", entry.Alias))
		frag.WhereParams = append(frag.WhereParams, rel.Types[0])
	} else if len(rel.Types) > 1 {
		placeholders := make([]any, len(rel.Types))
		for i, t := range rel.Types {
			placeholders[i] = t
		}
		ph := ""
		for i := range placeholders {
			if i > 0 {
				ph += ", "
			}
			ph += "?"
		}
		frag.WhereParts = append(frag.WhereParts, fmt.Sprintf("%s.type IN (%s)", entry.Alias, ph))
		frag.WhereParams = append(frag.WhereParams, placeholders...)
	}

	for _, prop := range rel.Properties {
		sql, params, err := c.lowerPropertyConstraint(entry.Alias, KindEdge, prop)
		if err != nil {
			return err
		}
		frag.WhereParts = append(frag.WhereParts, sql)
		frag.WhereParams = append(frag.WhereParams, params...)
	}
	return nil
}

func (c *compiler) bindRelPattern(rel *ast.RelPattern) ScopeEntry {
	if rel.Variable == "" {
		return c.scope.BindAnonymous(KindEdge)
	}
	return c.scope.Bind(rel.Variable, KindEdge)
}
