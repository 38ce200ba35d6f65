package schema

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ok, err := Exists(ctx, db, "")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, Init(ctx, db))
	ok, err = Exists(ctx, db, "")
	require.NoError(t, err)
	require.True(t, ok)

	// Calling Init again must not fail or duplicate anything.
	require.NoError(t, Init(ctx, db))
}

func TestPropertyTablesCreatedForEachScalarKind(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, Init(ctx, db))

	for _, entity := range []string{"node", "edge"} {
		for _, kind := range scalarKinds {
			table := PropertyTableFor("", entity, kind)
			row := db.QueryRowContext(ctx, `SELECT 1 FROM sqlite_master WHERE type='table' AND name=?`, table)
			var one int
			require.NoError(t, row.Scan(&one), "expected table %s to exist", table)
		}
	}
}

func TestInternKeyIsStableAcrossCalls(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, Init(ctx, db))

	id1, err := InternKey(ctx, db, "", "name")
	require.NoError(t, err)
	id2, err := InternKey(ctx, db, "", "name")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	id3, err := InternKey(ctx, db, "", "age")
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)
}
