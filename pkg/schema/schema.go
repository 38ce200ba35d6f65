// Package schema creates and checks the typed EAV schema that backs the graph (spec §3.1): nodes,
// edges, labels, an interned property-key table, and one typed property table per scalar kind.
// Creation is idempotent and runs in a single transaction, grounded on the original C extension's
// src/schema.c DDL and on the teacher's idempotency-check pattern in pkg/storage/schema.go.
package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/graphqlite/graphqlite/pkg/errs"
)

// scalarKinds enumerates the typed property tables (spec §3.1): one per agtype scalar kind.
var scalarKinds = []string{"int", "real", "text", "bool"}

const ddlTemplate = `
CREATE TABLE IF NOT EXISTS %[1]snodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT
);

CREATE TABLE IF NOT EXISTS %[1]sedges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL REFERENCES %[1]snodes(id) ON DELETE CASCADE,
	target_id INTEGER NOT NULL REFERENCES %[1]snodes(id) ON DELETE CASCADE,
	type TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]sidx_edges_source_type ON %[1]sedges (source_id, type);
CREATE INDEX IF NOT EXISTS %[1]sidx_edges_target_type ON %[1]sedges (target_id, type);
CREATE INDEX IF NOT EXISTS %[1]sidx_edges_type ON %[1]sedges (type);

CREATE TABLE IF NOT EXISTS %[1]snode_labels (
	node_id INTEGER NOT NULL REFERENCES %[1]snodes(id) ON DELETE CASCADE,
	label TEXT NOT NULL,
	PRIMARY KEY (node_id, label)
);
CREATE INDEX IF NOT EXISTS %[1]sidx_node_labels_label ON %[1]snode_labels (label, node_id);

CREATE TABLE IF NOT EXISTS %[1]sproperty_keys (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL UNIQUE
);
`

const propTableTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s%[2]s_props_%[3]s (
	%[2]s_id INTEGER NOT NULL REFERENCES %[1]s%[2]ss(id) ON DELETE CASCADE,
	key_id INTEGER NOT NULL REFERENCES %[1]sproperty_keys(id),
	value %[4]s NOT NULL,
	PRIMARY KEY (%[2]s_id, key_id)
);
CREATE INDEX IF NOT EXISTS %[1]sidx_%[2]s_props_%[3]s_kv ON %[1]s%[2]s_props_%[3]s (key_id, value, %[2]s_id);
`

var sqlColumnType = map[string]string{
	"int":  "INTEGER",
	"real": "REAL",
	"text": "TEXT",
	"bool": "INTEGER", // SQLite has no native boolean; stored as 0/1.
}

// Init creates the schema idempotently on the given connection or database, scoped to the default
// (main) graph. It is safe to call on every connection open; existing tables are left untouched.
func Init(ctx context.Context, db *sql.DB) error {
	return InitGraph(ctx, db, "")
}

// InitGraph creates the schema under an attached-graph prefix (spec §4.3(9), `FROM graph_name`).
// schemaPrefix is "" for the default graph or "graphname." (including the trailing dot) for an
// attached one.
func InitGraph(ctx context.Context, db *sql.DB, schemaPrefix string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Schema, err, "begin schema transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(ddlTemplate, schemaPrefix)); err != nil {
		return errs.Wrap(errs.Schema, err, "create core tables")
	}
	for _, entity := range []string{"node", "edge"} {
		for _, kind := range scalarKinds {
			stmt := fmt.Sprintf(propTableTemplate, schemaPrefix, entity, kind, sqlColumnType[kind])
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errs.Wrap(errs.Schema, err, "create %s_props_%s", entity, kind)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Schema, err, "commit schema transaction")
	}
	return nil
}

// Exists reports whether the schema has already been created (spec §3.1 lifecycle: "created on
// first connection/attach that observes no nodes table").
func Exists(ctx context.Context, db *sql.DB, schemaPrefix string) (bool, error) {
	table := schemaPrefix + "nodes"
	schemaName := "main"
	if schemaPrefix != "" {
		schemaName = schemaPrefix[:len(schemaPrefix)-1]
	}
	row := db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s.sqlite_master WHERE type='table' AND name=?`, quoteIdent(schemaName)),
		trimPrefix(table, schemaPrefix))
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.Schema, err, "check schema existence")
	}
	return true, nil
}

func trimPrefix(table, prefix string) string {
	if prefix == "" {
		return table
	}
	return table[len(prefix):]
}

func quoteIdent(ident string) string {
	return `"` + ident + `"`
}

// PropertyTableFor returns the typed property table name for the given entity kind ("node" or
// "edge") and scalar kind ("int", "real", "text", "bool").
func PropertyTableFor(schemaPrefix, entity, scalarKind string) string {
	return fmt.Sprintf("%s%s_props_%s", schemaPrefix, entity, scalarKind)
}

// InternKey interns a property key name, returning its id, inserting it on first use (spec §4.3.6:
// "typed property inserts for each (k,v) after interning k into property_keys").
func InternKey(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, schemaPrefix, key string) (int64, error) {
	table := schemaPrefix + "property_keys"
	if _, err := exec.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR IGNORE INTO %s (key) VALUES (?)`, table), key); err != nil {
		return 0, errs.Wrap(errs.Schema, err, "intern property key %q", key)
	}
	row := exec.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE key = ?`, table), key)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, errs.Wrap(errs.Schema, err, "resolve interned key %q", key)
	}
	return id, nil
}
