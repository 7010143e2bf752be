// Package preview shortens JSON-shaped values for prompts and console
// output. Any list longer than the limit becomes
// {"items": <first n>, "count": <total>}.
package preview

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Truncate returns a copy of v in which every array longer than n is replaced
// by an object holding its first n items and its original length. Arrays of n
// items or fewer and scalars are returned unchanged. Objects and kept items
// are truncated recursively.
func Truncate(v any, n int) any {
	if n < 0 {
		n = 0
	}

	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Truncate(item, n)
		}
		return out
	case []any:
		return truncateList(val, n)
	case []map[string]any:
		items := make([]any, len(val))
		for i, row := range val {
			items[i] = row
		}
		return truncateList(items, n)
	}

	// Other slices, arrays and maps go through their JSON form.
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct, reflect.Pointer:
		data, err := json.Marshal(v)
		if err != nil {
			return v
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return v
		}
		return Truncate(generic, n)
	}
	return v
}

func truncateList(items []any, n int) any {
	if len(items) <= n {
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = Truncate(item, n)
		}
		return out
	}

	kept := make([]any, n)
	for i := 0; i < n; i++ {
		kept[i] = Truncate(items[i], n)
	}
	return map[string]any{
		"items": kept,
		"count": len(items),
	}
}

// Rows is the preview of a query result. It always carries the count so the
// reader can tell whether rows were dropped.
type Rows struct {
	Items []map[string]any `json:"items"`
	Count int              `json:"count"`
}

func NewRows(rows []map[string]any, n int) Rows {
	if n < 0 {
		n = 0
	}
	kept := rows
	if len(rows) > n {
		kept = rows[:n]
	}
	if kept == nil {
		kept = []map[string]any{}
	}
	return Rows{Items: kept, Count: len(rows)}
}

// Marshal renders v as indented JSON after truncating it.
func Marshal(v any, n int) (string, error) {
	data, err := json.MarshalIndent(Truncate(v, n), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal preview: %w", err)
	}
	return string(data), nil
}

// String is Marshal for prompt building, where a failure degrades to %v.
func String(v any, n int) string {
	s, err := Marshal(v, n)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}
