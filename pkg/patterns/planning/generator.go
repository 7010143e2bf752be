package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/fetch"
	"github.com/xhad/agentic/pkg/patterns/sqlgen"
	"github.com/xhad/agentic/pkg/patterns/tooluse"
	"github.com/xhad/agentic/pkg/sqlite"
)

const executorPrompt = `You answer one analysis question about a SQLite database.
Call list_tables first, then run_sql as often as needed. Finish with a short
answer that quotes the numbers you found.`

type Config struct {
	OutputDir    string
	PreviewItems int
	MaxSteps     int
	Logger       *slog.Logger
	// OnStep is called before each plan step runs.
	OnStep func(i, total int, step models.PlanStep)
	Now    func() time.Time
}

// Output lists what a run produced.
type Output struct {
	Plan         *models.Plan     `json:"plan"`
	Findings     []models.Finding `json:"findings"`
	Dir          string           `json:"dir"`
	HTMLPath     string           `json:"html_path"`
	PlanPath     string           `json:"plan_path"`
	FindingsPath string           `json:"findings_path"`
}

// job is threaded through the chain; each step fills in its part.
type job struct {
	input    models.DatasetInput
	db       *sqlite.DB
	schema   string
	plan     *models.Plan
	findings []models.Finding
	body     string
}

type Generator struct {
	fast       model.ToolCallingChatModel
	smart      model.ToolCallingChatModel
	downloader *fetch.Downloader
	config     Config
	logger     *slog.Logger
	runner     compose.Runnable[models.DatasetInput, *Output]
}

// NewGenerator wires the dashboard script: fetch, plan, execute, render and
// write, in that order.
func NewGenerator(ctx context.Context, fast, smart model.ToolCallingChatModel, downloader *fetch.Downloader, config Config) (*Generator, error) {
	if config.OutputDir == "" {
		config.OutputDir = "output"
	}
	if config.PreviewItems <= 0 {
		config.PreviewItems = 5
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = 12
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Generator{
		fast:       fast,
		smart:      smart,
		downloader: downloader,
		config:     config,
		logger:     logger,
	}

	chain := compose.NewChain[models.DatasetInput, *Output]()
	chain.
		AppendLambda(compose.InvokableLambda(g.load), compose.WithNodeName("load")).
		AppendLambda(compose.InvokableLambda(g.makePlan), compose.WithNodeName("plan")).
		AppendLambda(compose.InvokableLambda(g.execute), compose.WithNodeName("execute")).
		AppendLambda(compose.InvokableLambda(g.render), compose.WithNodeName("render")).
		AppendLambda(compose.InvokableLambda(g.write), compose.WithNodeName("write"))

	runner, err := chain.Compile(ctx, compose.WithGraphName("dashboard"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile dashboard chain: %w", err)
	}
	g.runner = runner
	return g, nil
}

func (g *Generator) Run(ctx context.Context, in models.DatasetInput) (*Output, error) {
	return g.runner.Invoke(ctx, in)
}

func (g *Generator) load(ctx context.Context, in models.DatasetInput) (*job, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res, err := g.downloader.Fetch(ctx, in.URL)
	if err != nil {
		return nil, err
	}
	if res.Skipped {
		g.logger.Info("using cached dataset", slog.String("path", res.Path))
	} else {
		g.logger.Info("downloaded dataset", slog.String("path", res.Path), slog.Int64("bytes", res.Size))
	}

	db, err := sqlite.Open(res.Path)
	if err != nil {
		return nil, err
	}
	dbSchema, err := db.Schema(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &job{input: in, db: db, schema: dbSchema}, nil
}

func (g *Generator) makePlan(ctx context.Context, j *job) (*job, error) {
	plan, err := MakePlan(ctx, g.smart, j.input, j.schema)
	if err != nil {
		j.db.Close()
		return nil, err
	}
	g.logger.Info("plan ready", slog.String("goal", plan.Goal), slog.Int("steps", len(plan.Steps)))
	j.plan = plan
	return j, nil
}

// execute runs the plan steps one after another: the SQLite file allows one
// reader connection.
func (g *Generator) execute(ctx context.Context, j *job) (*job, error) {
	defer j.db.Close()

	for i, step := range j.plan.Steps {
		if g.config.OnStep != nil {
			g.config.OnStep(i, len(j.plan.Steps), step)
		}
		j.findings = append(j.findings, g.runStep(ctx, j, step))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (g *Generator) runStep(ctx context.Context, j *job, step models.PlanStep) models.Finding {
	f := models.Finding{Step: step}

	res, err := sqlgen.Run(ctx, g.smart, j.db, step.Question, g.config.PreviewItems)
	if err == nil {
		f.SQL = res.SQL
		f.Preview = res.Preview
		return f
	}
	g.logger.Warn("sql generation failed, falling back to agent",
		slog.String("step", step.Title), slog.String("error", err.Error()))

	agent, err := tooluse.NewAgent(ctx, g.fast, []tool.BaseTool{
		tooluse.ListTables(j.db),
		tooluse.RunSQL(j.db, g.config.PreviewItems),
	}, executorPrompt, g.config.MaxSteps)
	if err == nil {
		var answer string
		answer, err = agent.Ask(ctx, step.Question)
		if err == nil {
			f.Summary = answer
			return f
		}
	}

	g.logger.Warn("step failed", slog.String("step", step.Title), slog.String("error", err.Error()))
	f.Error = err.Error()
	return f
}

func (g *Generator) render(ctx context.Context, j *job) (*job, error) {
	body, err := GenerateBody(ctx, g.smart, j.input, j.plan, j.findings)
	if err != nil {
		return nil, err
	}
	j.body = body
	return j, nil
}

func (g *Generator) write(_ context.Context, j *job) (*Output, error) {
	dir := filepath.Join(g.config.OutputDir, Slug(j.input.Name))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	page, err := RenderPage(j.input, j.body, g.config.Now())
	if err != nil {
		return nil, err
	}

	out := &Output{
		Plan:         j.plan,
		Findings:     j.findings,
		Dir:          dir,
		HTMLPath:     filepath.Join(dir, "index.html"),
		PlanPath:     filepath.Join(dir, "plan.json"),
		FindingsPath: filepath.Join(dir, "findings.json"),
	}

	if err := os.WriteFile(out.HTMLPath, page, 0644); err != nil {
		return nil, fmt.Errorf("failed to write dashboard: %w", err)
	}
	if err := writeJSON(out.PlanPath, j.plan); err != nil {
		return nil, err
	}
	if err := writeJSON(out.FindingsPath, j.findings); err != nil {
		return nil, err
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a dataset name into a directory name.
func Slug(name string) string {
	s := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "dashboard"
	}
	return s
}
