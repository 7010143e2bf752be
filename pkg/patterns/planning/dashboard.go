package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudwego/eino/components/model"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/llm"
)

const bodyPrompt = `You are a front-end developer building a static analytics dashboard.
Write the HTML for the inside of <body> only: no <html>, <head>, <script> or
external resources. Use semantic elements (header, section, table, figure).
For every finding add a section with its title, a one sentence insight and the
preview rows as a table. Use inline CSS sparingly. Reply with HTML only.`

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 960px; color: #1f2933; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #cbd2d9; padding: .25rem .5rem; text-align: left; }
footer { margin-top: 3rem; font-size: .8rem; color: #7b8794; }
</style>
</head>
<body>
{{.Body}}
<footer>{{.Description}} · generated {{.Generated}}</footer>
</body>
</html>
`))

type page struct {
	Title       string
	Description string
	Body        template.HTML
	Generated   string
}

// GenerateBody asks m for the dashboard body given the plan and findings.
func GenerateBody(ctx context.Context, m model.BaseChatModel, in models.DatasetInput, plan *models.Plan, findings []models.Finding) (string, error) {
	data, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal findings: %w", err)
	}

	user := fmt.Sprintf("Dashboard title: %s\nGoal: %s\nRequest: %s\n\nFindings:\n%s",
		in.Name, plan.Goal, in.Request, data)

	raw, err := llm.Complete(ctx, m, bodyPrompt, user)
	if err != nil {
		return "", fmt.Errorf("failed to generate dashboard body: %w", err)
	}
	return ExtractBody(raw)
}

// ExtractBody strips code fences and, when the model returned a whole
// document, keeps only the inner HTML of its body. Script elements are
// removed.
func ExtractBody(raw string) (string, error) {
	text := llm.ExtractCodeBlock(raw, "html")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("failed to parse dashboard html: %w", err)
	}
	doc.Find("script").Remove()

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("failed to extract dashboard body: %w", err)
	}
	return strings.TrimSpace(body), nil
}

// RenderPage wraps body in the dashboard page.
func RenderPage(in models.DatasetInput, body string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, page{
		Title:       in.Name,
		Description: in.Description,
		Body:        template.HTML(body),
		Generated:   now.UTC().Format("2006-01-02 15:04 MST"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render dashboard: %w", err)
	}
	return buf.Bytes(), nil
}
