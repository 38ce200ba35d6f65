package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphqlite/graphqlite/pkg/agtype"
	"github.com/graphqlite/graphqlite/pkg/errs"
	"github.com/graphqlite/graphqlite/pkg/schema"
)

// sqlValueToAgtype converts one driver-returned column value into an agtype.Value. RETURN
// projections of a vertex/edge variable arrive as a JSON string (return.go's vertexJSONSQL /
// edgeJSONSQL); everything else is a plain scalar. Sniffing the string's leading byte tells the two
// apart without the executor needing to carry per-column type metadata from the Plan.
func sqlValueToAgtype(raw any) (agtype.Value, error) {
	switch v := raw.(type) {
	case nil:
		return agtype.Null, nil
	case int64:
		return agtype.NewInteger(v), nil
	case float64:
		return agtype.NewFloat(v), nil
	case bool:
		return agtype.NewBool(v), nil
	case string:
		return stringOrJSON(v)
	case []byte:
		return stringOrJSON(string(v))
	default:
		return agtype.Value{}, errs.New(errs.Execute, "unsupported sql value type %T", raw)
	}
}

func stringOrJSON(s string) (agtype.Value, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return agtype.NewString(s), nil
	}
	switch trimmed[0] {
	case '{':
		if v, err := agtype.ParseVertexJSON([]byte(trimmed)); err == nil {
			return v, nil
		}
		if v, err := agtype.ParseEdgeJSON([]byte(trimmed)); err == nil {
			return v, nil
		}
		if v, err := agtype.FromJSON([]byte(trimmed)); err == nil {
			return v, nil
		}
	case '[':
		if v, err := agtype.FromJSON([]byte(trimmed)); err == nil {
			return v, nil
		}
	}
	return agtype.NewString(s), nil
}

// scalarFromColumn converts a typed-property-table value into agtype using the column's own known
// scalar kind rather than sniffing, so a bool column (stored as SQLite INTEGER 0/1 per §3.1) comes
// back as KindBool instead of KindInteger.
func scalarFromColumn(scalarKind string, raw any) (agtype.Value, error) {
	switch scalarKind {
	case "int":
		n, err := asInt64(raw)
		if err != nil {
			return agtype.Value{}, err
		}
		return agtype.NewInteger(n), nil
	case "real":
		f, err := asFloat64(raw)
		if err != nil {
			return agtype.Value{}, err
		}
		return agtype.NewFloat(f), nil
	case "text":
		return agtype.NewString(asString(raw)), nil
	case "bool":
		n, err := asInt64(raw)
		if err != nil {
			return agtype.Value{}, err
		}
		return agtype.NewBool(n != 0), nil
	default:
		return agtype.Value{}, errs.New(errs.Execute, "unknown scalar kind %q", scalarKind)
	}
}

func asInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, errs.New(errs.Execute, "expected integer column value, got %T", raw)
	}
}

func asFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, errs.New(errs.Execute, "expected real column value, got %T", raw)
	}
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// loadProperties reads every typed property row for one node/edge across all four scalar tables,
// converting each via scalarFromColumn rather than a JSON text round trip, so a bool property
// materializes as KindBool instead of the integer return.go's JSON aggregate produces.
func (e *Executor) loadProperties(ctx context.Context, entityID int64, entityKind string) ([]agtype.Property, error) {
	var props []agtype.Property
	idCol := entityKind + "_id"
	for _, kind := range scalarPropertyTables {
		table := schema.PropertyTableFor(e.schemaPrefix, entityKind, kind)
		query := fmt.Sprintf(
			`SELECT pk.key, t.value FROM %s t JOIN %sproperty_keys pk ON pk.id = t.key_id WHERE t.%s = ?`,
			table, e.schemaPrefix, idCol)
		rows, err := e.db.QueryContext(ctx, query, entityID)
		if err != nil {
			return nil, errs.Wrap(errs.Execute, err, "load %s properties", entityKind)
		}
		for rows.Next() {
			var key string
			var raw any
			if err := rows.Scan(&key, &raw); err != nil {
				rows.Close()
				return nil, errs.Wrap(errs.Execute, err, "scan %s property row", entityKind)
			}
			v, err := scalarFromColumn(kind, raw)
			if err != nil {
				rows.Close()
				return nil, err
			}
			props = append(props, agtype.Property{Key: key, Value: v})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, errs.Wrap(errs.Execute, err, "iterate %s property rows", entityKind)
		}
		rows.Close()
	}
	return props, nil
}

// loadVertex materializes one node's full agtype.Vertex (labels + typed properties) for path
// assembly, grounded on return.go's vertexJSONSQL shape but built from Go-side typed scans instead
// of a SQL JSON aggregate.
func (e *Executor) loadVertex(ctx context.Context, nodeID int64) (*agtype.Vertex, error) {
	labels, err := e.loadLabels(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	props, err := e.loadProperties(ctx, nodeID, "node")
	if err != nil {
		return nil, err
	}
	return &agtype.Vertex{ID: nodeID, Labels: labels, Properties: props}, nil
}

func (e *Executor) loadLabels(ctx context.Context, nodeID int64) ([]string, error) {
	query := fmt.Sprintf(`SELECT label FROM %snode_labels WHERE node_id = ? ORDER BY label`, e.schemaPrefix)
	rows, err := e.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, errs.Wrap(errs.Execute, err, "load node labels")
	}
	defer rows.Close()
	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, errs.Wrap(errs.Execute, err, "scan node label")
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Execute, err, "iterate node label rows")
	}
	return labels, nil
}

// loadEdge materializes one edge's type, endpoints, and typed properties for path assembly.
func (e *Executor) loadEdge(ctx context.Context, edgeID int64) (*agtype.Edge, error) {
	query := fmt.Sprintf(`SELECT source_id, target_id, type FROM %sedges WHERE id = ?`, e.schemaPrefix)
	var startID, endID int64
	var edgeType string
	if err := e.db.QueryRowContext(ctx, query, edgeID).Scan(&startID, &endID, &edgeType); err != nil {
		return nil, errs.Wrap(errs.Execute, err, "load edge %d", edgeID)
	}
	props, err := e.loadProperties(ctx, edgeID, "edge")
	if err != nil {
		return nil, err
	}
	return &agtype.Edge{ID: edgeID, Type: edgeType, StartID: startID, EndID: endID, Properties: props}, nil
}

// edgeBetween finds the id of one edge connecting a and b (in either direction) matching
// relTypes, used to materialize the relationship elements of a BFS-built path.
func (e *Executor) edgeBetween(ctx context.Context, a, b int64, relTypes []string) (int64, error) {
	typeFilter, args := "", []any{a, b}
	if len(relTypes) > 0 {
		placeholders := make([]string, len(relTypes))
		for i, t := range relTypes {
			placeholders[i] = "?"
			args = append(args, t)
		}
		typeFilter = fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ", "))
	}
	query := fmt.Sprintf(
		`SELECT id FROM %sedges WHERE ((source_id = ? AND target_id = ?) OR (source_id = ? AND target_id = ?))%s LIMIT 1`,
		e.schemaPrefix, typeFilter)
	args = append([]any{a, b, b, a}, args[2:]...)
	var id int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, errs.Wrap(errs.Execute, err, "find edge between %d and %d", a, b)
	}
	return id, nil
}
