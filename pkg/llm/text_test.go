package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/llmtest"
	"github.com/xhad/agentic/pkg/llm"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"prose around", `Sure! Here it is: {"a": {"b": [1, 2]}} hope that helps`, `{"a": {"b": [1, 2]}}`, false},
		{"fenced", "```json\n[{\"x\": \"}\"}]\n```", `[{"x": "}"}]`, false},
		{"escaped quote", `{"s": "say \"hi\" {"}`, `{"s": "say \"hi\" {"}`, false},
		{"bracketed prose first", "Here is the plan [draft]:\n{\"goal\": \"g\", \"steps\": [1]}", `{"goal": "g", "steps": [1]}`, false},
		{"invalid object first", `{not json} then {"ok": true}`, `{"ok": true}`, false},
		{"none", "no json here", "", true},
		{"unterminated", `{"a": [1, 2}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := llm.ExtractJSON(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, llm.ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCodeBlock(t *testing.T) {
	text := "Here:\n```python\nprint(1)\n```\nand\n```sql\nSELECT 1;\n```"
	assert.Equal(t, "SELECT 1;", llm.ExtractCodeBlock(text, "sql"))
	assert.Equal(t, "print(1)", llm.ExtractCodeBlock(text, "go"))
	assert.Equal(t, "SELECT 2", llm.ExtractCodeBlock("  SELECT 2 \n", "sql"))
}

func TestDecodeJSON(t *testing.T) {
	type verdict struct {
		Approved bool `json:"approved"`
	}
	v, err := llm.DecodeJSON[verdict]("```json\n{\"approved\": true}\n```")
	require.NoError(t, err)
	assert.True(t, v.Approved)

	_, err = llm.DecodeJSON[verdict](`{"approved": "maybe"}`)
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	m := llmtest.Replies("  answer \n")
	out, err := llm.Complete(context.Background(), m, "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)

	calls := m.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, "sys", calls[0][0].Content)
	assert.Equal(t, "question", calls[0][1].Content)
}
