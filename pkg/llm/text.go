package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var ErrNoJSON = errors.New("no JSON value found in model output")

var fencePattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \\t]*\\n(.*?)```")

// Complete sends a single system + user turn and returns the trimmed reply.
func Complete(ctx context.Context, m model.BaseChatModel, system, user string, opts ...model.Option) (string, error) {
	var msgs []*schema.Message
	if system != "" {
		msgs = append(msgs, schema.SystemMessage(system))
	}
	msgs = append(msgs, schema.UserMessage(user))

	resp, err := m.Generate(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// ExtractCodeBlock returns the body of the first fenced block tagged lang,
// falling back to the first fenced block of any language and then to the
// whole trimmed text.
func ExtractCodeBlock(text, lang string) string {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	for _, m := range matches {
		if strings.EqualFold(m[1], lang) {
			return strings.TrimSpace(m[2])
		}
	}
	if len(matches) > 0 {
		return strings.TrimSpace(matches[0][2])
	}
	return strings.TrimSpace(text)
}

// ExtractJSON returns the first balanced object or array in text that is
// valid JSON. Bracketed prose such as "[draft]" before the value is skipped.
func ExtractJSON(text string) (string, error) {
	text = ExtractCodeBlock(text, "json")

	for from := 0; from < len(text); {
		i := strings.IndexAny(text[from:], "{[")
		if i < 0 {
			break
		}
		start := from + i
		if end, ok := balancedEnd(text, start); ok && json.Valid([]byte(text[start:end])) {
			return text[start:end], nil
		}
		from = start + 1
	}
	return "", ErrNoJSON
}

// balancedEnd returns the offset just past the bracket that closes the one
// at start, honoring JSON strings.
func balancedEnd(text string, start int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// DecodeJSON extracts the first JSON value from model output into T.
func DecodeJSON[T any](text string) (T, error) {
	var v T
	raw, err := ExtractJSON(text)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("failed to decode model JSON: %w", err)
	}
	return v, nil
}
