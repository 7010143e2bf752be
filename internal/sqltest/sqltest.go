// Package sqltest builds small SQLite files for tests.
package sqltest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// StoreDB writes a music store database with genres, tracks and a view and
// returns its path.
func StoreDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE genres (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE tracks (id INTEGER PRIMARY KEY, genre_id INTEGER, title TEXT, price REAL)`,
		`CREATE VIEW cheap_tracks AS SELECT * FROM tracks WHERE price < 1`,
		`INSERT INTO genres VALUES (1, 'Rock'), (2, 'Jazz')`,
		`INSERT INTO tracks VALUES (1, 1, 'A', 0.99), (2, 1, 'B', 1.29), (3, 2, 'C', 0.99)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}
