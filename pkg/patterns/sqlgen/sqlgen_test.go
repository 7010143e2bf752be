package sqlgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/llmtest"
	"github.com/xhad/agentic/internal/sqltest"
	"github.com/xhad/agentic/pkg/sqlite"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1;", "SELECT 1"},
		{"fenced", "Here you go:\n```sql\nSELECT name FROM genres;\n```", "SELECT name FROM genres"},
		{"label", "SQL: SELECT 2", "SELECT 2"},
		{"blank", "  \n ", ""},
		{"only semicolons", ";;", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestGenerate(t *testing.T) {
	m := llmtest.Replies("```sql\nSELECT COUNT(*) AS n FROM tracks;\n```")

	q, err := Generate(context.Background(), m, "CREATE TABLE tracks (id INTEGER)", "how many tracks?")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS n FROM tracks", q)

	calls := m.Calls()
	require.Len(t, calls, 1)
	prompt := llmtest.Prompt(calls[0])
	assert.Contains(t, prompt, "CREATE TABLE tracks")
	assert.Contains(t, prompt, "how many tracks?")
}

func TestGenerateEmpty(t *testing.T) {
	_, err := Generate(context.Background(), llmtest.Replies("```sql\n```"), "", "anything")
	assert.ErrorIs(t, err, ErrEmptySQL)
}

func TestRun(t *testing.T) {
	db, err := sqlite.Open(sqltest.StoreDB(t))
	require.NoError(t, err)
	defer db.Close()

	m := llmtest.Replies("SELECT title FROM tracks ORDER BY id")
	res, err := Run(context.Background(), m, db, "list track titles", 2)
	require.NoError(t, err)

	assert.Equal(t, "SELECT title FROM tracks ORDER BY id", res.SQL)
	assert.Equal(t, []string{"title"}, res.Columns)
	assert.Equal(t, 3, res.Preview.Count)
	require.Len(t, res.Preview.Items, 2)
	assert.Equal(t, "A", res.Preview.Items[0]["title"])
}

func TestRunRejectsWrites(t *testing.T) {
	db, err := sqlite.Open(sqltest.StoreDB(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = Run(context.Background(), llmtest.Replies("DELETE FROM tracks"), db, "remove everything", 5)
	assert.ErrorIs(t, err, sqlite.ErrNotReadOnly)
}
