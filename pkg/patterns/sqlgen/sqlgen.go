// Package sqlgen turns a natural-language request into a SQLite query with a
// single prompt and runs it.
package sqlgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/xhad/agentic/pkg/llm"
	"github.com/xhad/agentic/pkg/preview"
	"github.com/xhad/agentic/pkg/sqlite"
)

var ErrEmptySQL = errors.New("generated SQL is empty")

const systemPrompt = `You are an expert SQLite analyst.
Write one SQLite query that answers the user's request using only the tables
and columns in the schema. Prefer readable column aliases and add LIMIT when the
request does not need every row.
Respond with the SQL query only: no explanation, no markdown.`

var template = prompt.FromMessages(schema.FString,
	schema.SystemMessage(systemPrompt),
	schema.UserMessage("Schema:\n{schema}\n\nRequest: {request}"),
)

// Result is an executed query with its preview.
type Result struct {
	Request string       `json:"request"`
	SQL     string       `json:"sql"`
	Columns []string     `json:"columns"`
	Preview preview.Rows `json:"preview"`
}

// Generate asks m for a query answering request against schema.
func Generate(ctx context.Context, m model.BaseChatModel, dbSchema, request string) (string, error) {
	msgs, err := template.Format(ctx, map[string]any{
		"schema":  dbSchema,
		"request": request,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format sql prompt: %w", err)
	}

	resp, err := m.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("failed to generate sql: %w", err)
	}

	query := Clean(resp.Content)
	if query == "" {
		return "", ErrEmptySQL
	}
	return query, nil
}

// Clean strips code fences, a leading "SQL:" label and trailing semicolons.
func Clean(text string) string {
	q := llm.ExtractCodeBlock(text, "sql")
	if len(q) >= 4 && strings.EqualFold(q[:4], "sql:") {
		q = strings.TrimSpace(q[4:])
	}
	return strings.TrimSpace(strings.TrimRight(q, "; \t\n"))
}

// Run generates a query for request, executes it on db and keeps the first
// previewItems rows.
func Run(ctx context.Context, m model.BaseChatModel, db *sqlite.DB, request string, previewItems int) (*Result, error) {
	dbSchema, err := db.Schema(ctx)
	if err != nil {
		return nil, err
	}

	query, err := Generate(ctx, m, dbSchema, request)
	if err != nil {
		return nil, err
	}

	res, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to run generated sql %q: %w", query, err)
	}

	return &Result{
		Request: request,
		SQL:     query,
		Columns: res.Columns,
		Preview: preview.NewRows(res.Rows, previewItems),
	}, nil
}
