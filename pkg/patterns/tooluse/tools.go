// Package tooluse exposes a handful of local functions as tools and lets a
// ReAct agent decide when to call them.
package tooluse

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/preview"
	"github.com/xhad/agentic/pkg/sqlite"
)

const maxPageChars = 4000

// funcTool adapts a typed function to eino's InvokableTool by decoding the
// JSON arguments into T.
type funcTool[T any] struct {
	info *schema.ToolInfo
	fn   func(ctx context.Context, args T) (string, error)
}

var _ tool.InvokableTool = (*funcTool[struct{}])(nil)

func newTool[T any](info *schema.ToolInfo, fn func(context.Context, T) (string, error)) tool.InvokableTool {
	return &funcTool[T]{info: info, fn: fn}
}

func (t *funcTool[T]) Info(context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

func (t *funcTool[T]) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var args T
	if s := strings.TrimSpace(argumentsInJSON); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return "", fmt.Errorf("invalid arguments for %s: %w", t.info.Name, err)
		}
	}
	return t.fn(ctx, args)
}

type timeArgs struct {
	Timezone string `json:"timezone"`
}

// CurrentTime reports now() in an optional IANA zone. now defaults to
// time.Now.
func CurrentTime(now func() time.Time) tool.InvokableTool {
	if now == nil {
		now = time.Now
	}
	info := &schema.ToolInfo{
		Name: "get_current_time",
		Desc: "Returns the current date and time.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"timezone": {Type: schema.String, Desc: "IANA time zone such as Europe/Berlin. Defaults to UTC."},
		}),
	}
	return newTool(info, func(_ context.Context, args timeArgs) (string, error) {
		zone := args.Timezone
		if zone == "" {
			zone = "UTC"
		}
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return "", fmt.Errorf("unknown time zone %q", zone)
		}
		t := now().In(loc)
		return fmt.Sprintf("%s (%s)", t.Format(time.RFC3339), t.Weekday()), nil
	})
}

type calcArgs struct {
	Expression string `json:"expression"`
}

func Calculator() tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: "calculate",
		Desc: "Evaluates an arithmetic expression with + - * / % ^ and parentheses.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"expression": {Type: schema.String, Desc: "The expression, for example (3 + 4) * 2", Required: true},
		}),
	}
	return newTool(info, func(_ context.Context, args calcArgs) (string, error) {
		v, err := Evaluate(args.Expression)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	})
}

// PageFetcher loads one web page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*models.Document, error)
}

type pageArgs struct {
	URL string `json:"url"`
}

func FetchPage(f PageFetcher) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: "fetch_page",
		Desc: "Downloads a web page and returns its title and main text.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"url": {Type: schema.String, Desc: "Absolute http or https URL", Required: true},
		}),
	}
	return newTool(info, func(ctx context.Context, args pageArgs) (string, error) {
		if args.URL == "" {
			return "", fmt.Errorf("url is required")
		}
		doc, err := f.FetchPage(ctx, args.URL)
		if err != nil {
			return "", err
		}
		text := doc.Content
		if len(text) > maxPageChars {
			text = text[:maxPageChars] + "..."
		}
		return fmt.Sprintf("Title: %s\n\n%s", doc.Title, text), nil
	})
}

type sqlArgs struct {
	Query string `json:"query"`
}

// RunSQL runs read-only queries on db and returns a preview of at most
// previewItems rows.
func RunSQL(db *sqlite.DB, previewItems int) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: "run_sql",
		Desc: "Runs a read-only SQLite query and returns the first rows as JSON with the total row count.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "A single SELECT statement", Required: true},
		}),
	}
	return newTool(info, func(ctx context.Context, args sqlArgs) (string, error) {
		res, err := db.Query(ctx, args.Query)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(preview.NewRows(res.Rows, previewItems))
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}

func ListTables(db *sqlite.DB) tool.InvokableTool {
	info := &schema.ToolInfo{
		Name: "list_tables",
		Desc: "Returns the CREATE statements of every table and view in the database.",
	}
	return newTool(info, func(ctx context.Context, _ struct{}) (string, error) {
		return db.Schema(ctx)
	})
}
