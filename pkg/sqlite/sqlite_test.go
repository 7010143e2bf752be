package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/sqltest"
)

func TestSchemaAndTables(t *testing.T) {
	db, err := Open(sqltest.StoreDB(t))
	require.NoError(t, err)
	defer db.Close()

	schema, err := db.Schema(context.Background())
	require.NoError(t, err)
	assert.Contains(t, schema, "CREATE TABLE genres")
	assert.Contains(t, schema, "CREATE TABLE tracks")
	assert.Contains(t, schema, "CREATE VIEW cheap_tracks")

	tables, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"genres", "tracks"}, tables)
}

func TestOpenEscapesPath(t *testing.T) {
	src, err := os.ReadFile(sqltest.StoreDB(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cache?v=1#x", "store 100%.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, src, 0644))

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	tables, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Contains(t, tables, "tracks")

	_, err = Open(filepath.Join(t.TempDir(), "missing?.db"))
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	db, err := Open(sqltest.StoreDB(t))
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Query(context.Background(), `
		SELECT g.name AS genre, COUNT(*) AS n
		FROM tracks t JOIN genres g ON g.id = t.genre_id
		GROUP BY g.name ORDER BY n DESC`)
	require.NoError(t, err)

	assert.Equal(t, []string{"genre", "n"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Rock", res.Rows[0]["genre"])
	assert.EqualValues(t, 2, res.Rows[0]["n"])
	assert.False(t, res.Truncated)

	db.MaxRows = 1
	res, err = db.Query(context.Background(), "SELECT * FROM tracks")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.True(t, res.Truncated)
}

func TestQueryRejectsWrites(t *testing.T) {
	db, err := Open(sqltest.StoreDB(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Query(context.Background(), "DELETE FROM tracks")
	assert.ErrorIs(t, err, ErrNotReadOnly)

	_, err = db.Query(context.Background(), "SELECT * FROM missing_table")
	assert.Error(t, err)
}

func TestIsReadOnly(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"-- top genres\nSELECT 1", true},
		{"/* note */ PRAGMA table_info(t)", true},
		{"INSERT INTO t VALUES (1)", false},
		{"DROP TABLE t", false},
		{"", false},
		{"-- only a comment", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReadOnly(tt.query))
		})
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}
