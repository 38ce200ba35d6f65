package bindings

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphqlite/graphqlite/pkg/config"

	_ "modernc.org/sqlite"
)

func newActivatedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, EnsureSchema(context.Background(), db, ""))
	b := New(db, config.Default(), "")
	require.NoError(t, b.Activate())
	return db
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, EnsureSchema(context.Background(), db, ""))
	require.NoError(t, EnsureSchema(context.Background(), db, ""))
}

func TestOpenReturnsIndependentExecutors(t *testing.T) {
	db := newActivatedDB(t)
	b := New(db, config.Default(), "")

	_, execA, releaseA, err := b.Open(context.Background())
	require.NoError(t, err)
	defer releaseA()

	_, execB, releaseB, err := b.Open(context.Background())
	require.NoError(t, err)
	defer releaseB()

	require.NotSame(t, execA, execB)
}

func TestCypherFunctionRunsAWriteThenARead(t *testing.T) {
	db := newActivatedDB(t)

	var status string
	row := db.QueryRow(`SELECT cypher('CREATE (n:Person {name: "Ada"})')`)
	require.NoError(t, row.Scan(&status))
	require.Contains(t, status, "nodes created: 1")

	var jsonOut string
	row = db.QueryRow(`SELECT cypher('MATCH (n:Person) RETURN n.name AS name')`)
	require.NoError(t, row.Scan(&jsonOut))
	require.Contains(t, jsonOut, "Ada")
}

func TestCypherFunctionWithParams(t *testing.T) {
	db := newActivatedDB(t)

	var status string
	row := db.QueryRow(`SELECT cypher('CREATE (n:Person {name: $name})', '{"name": "Grace"}')`)
	require.NoError(t, row.Scan(&status))
	require.Contains(t, status, "nodes created: 1")
}

func TestRegexpFunction(t *testing.T) {
	db := newActivatedDB(t)

	var matched int64
	row := db.QueryRow(`SELECT regexp('^[A-Z][a-z]+$', 'Grace')`)
	require.NoError(t, row.Scan(&matched))
	require.Equal(t, int64(1), matched)

	row = db.QueryRow(`SELECT regexp('^[A-Z][a-z]+$', 'grace')`)
	require.NoError(t, row.Scan(&matched))
	require.Equal(t, int64(0), matched)

	row = db.QueryRow(`SELECT regexp('(?i)^grace$', 'Grace')`)
	require.NoError(t, row.Scan(&matched))
	require.Equal(t, int64(1), matched)
}

func TestRegexpFunctionNullInputsReturnNull(t *testing.T) {
	db := newActivatedDB(t)

	var result sql.NullInt64
	row := db.QueryRow(`SELECT regexp(NULL, 'grace')`)
	require.NoError(t, row.Scan(&result))
	require.False(t, result.Valid)
}
