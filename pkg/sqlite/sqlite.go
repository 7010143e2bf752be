// Package sqlite opens downloaded SQLite files read-only and runs generated
// queries against them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var ErrNotReadOnly = errors.New("only SELECT, WITH, PRAGMA and EXPLAIN statements are allowed")

const defaultMaxRows = 10000

// DB is a read-only handle on a SQLite file. The file is locked as a whole,
// so a single connection serves every caller in turn.
type DB struct {
	db      *sql.DB
	path    string
	MaxRows int
}

// Result is a query result with rows keyed by column name.
type Result struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated,omitempty"`
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}

	return &DB{db: db, path: path, MaxRows: defaultMaxRows}, nil
}

// readOnlyDSN builds a file: URI for path with every segment escaped, so
// names containing '?', '#' or '%' survive URI parsing.
func readOnlyDSN(path string) string {
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	u := url.URL{
		Scheme:   "file",
		Opaque:   strings.Join(segments, "/"),
		RawQuery: "mode=ro&_pragma=busy_timeout(5000)",
	}
	return u.String()
}

func (d *DB) Path() string {
	return d.path
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Schema returns the CREATE statements of all user tables and views.
func (d *DB) Schema(ctx context.Context) (string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT sql FROM sqlite_master
		WHERE type IN ('table', 'view')
		  AND name NOT LIKE 'sqlite_%'
		  AND sql IS NOT NULL
		ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("failed to scan schema row: %w", err)
		}
		stmts = append(stmts, strings.TrimSpace(stmt)+";")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}

	return strings.Join(stmts, "\n\n"), nil
}

func (d *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Query runs a read statement and collects at most MaxRows rows.
func (d *DB) Query(ctx context.Context, query string) (*Result, error) {
	if !IsReadOnly(query) {
		return nil, ErrNotReadOnly
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if d.MaxRows > 0 && len(result.Rows) >= d.MaxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	return result, nil
}

// IsReadOnly reports whether the first keyword of query, after comments,
// starts a read statement.
func IsReadOnly(query string) bool {
	q := stripLeadingComments(query)
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		q = q[:end]
	}
	switch strings.ToUpper(q) {
	case "SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES":
		return true
	}
	return false
}

func stripLeadingComments(q string) string {
	for {
		q = strings.TrimSpace(q)
		switch {
		case strings.HasPrefix(q, "--"):
			nl := strings.IndexByte(q, '\n')
			if nl < 0 {
				return ""
			}
			q = q[nl+1:]
		case strings.HasPrefix(q, "/*"):
			end := strings.Index(q, "*/")
			if end < 0 {
				return ""
			}
			q = q[end+2:]
		default:
			return q
		}
	}
}
