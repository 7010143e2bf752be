package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/fetch"
	"github.com/xhad/agentic/pkg/patterns/planning"
	"github.com/xhad/agentic/pkg/patterns/sqlgen"
	"github.com/xhad/agentic/pkg/patterns/tooluse"
	"github.com/xhad/agentic/pkg/preview"
	"github.com/xhad/agentic/pkg/sqlite"
)

var (
	dbFlag  = &cli.StringFlag{Name: "db", Usage: "local SQLite `FILE`"}
	urlFlag = &cli.StringFlag{Name: "url", Usage: "download the SQLite file from `URL` (cached)"}
)

// downloader reports transfers with a byte progress bar.
func (e *env) downloader() *fetch.Downloader {
	d := e.newDownloader()
	d.Progress = func(total int64, name string) io.Writer {
		return progressbar.DefaultBytes(total, "Downloading "+name)
	}
	return d
}

// openDatabase opens --db, or downloads --url into the cache first.
func (e *env) openDatabase(c *cli.Context) (*sqlite.DB, error) {
	path := c.String("db")
	if u := c.String("url"); u != "" {
		res, err := e.downloader().Fetch(c.Context, u)
		if err != nil {
			return nil, err
		}
		if res.Skipped {
			color.Blue("Using cached %s", res.Path)
		}
		path = res.Path
	}
	if path == "" {
		return nil, cli.Exit("one of --db or --url is required", 2)
	}
	return sqlite.Open(path)
}

func sqlCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "sql",
		Usage:     "Answer a question about a SQLite database with one generated query",
		ArgsUsage: "[request]",
		Flags: []cli.Flag{
			dbFlag,
			urlFlag,
			fileFlag,
			jsonFlag,
			&cli.BoolFlag{Name: "schema", Usage: "print the database schema and exit"},
		},
		Action: func(c *cli.Context) error {
			db, err := e.openDatabase(c)
			if err != nil {
				return err
			}
			defer db.Close()

			if c.Bool("schema") {
				s, err := db.Schema(c.Context)
				if err != nil {
					return err
				}
				fmt.Println(s)
				return nil
			}

			request, err := readInput(c)
			if err != nil {
				return err
			}
			m, err := e.chatModels()
			if err != nil {
				return err
			}

			res, err := spin("Generating SQL...", func() (*sqlgen.Result, error) {
				return sqlgen.Run(c.Context, m.Smart, db, request, e.cfg.Data.PreviewItems)
			})
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(res)
			}

			heading("SQL")
			fmt.Println(res.SQL)
			heading("\nPreview")
			fmt.Println(preview.String(res.Preview, e.cfg.Data.PreviewItems))
			return nil
		},
	}
}

func planCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Plan and build an HTML dashboard for a dataset described in a JSON file",
		ArgsUsage: "<input.json>",
		Flags: []cli.Flag{
			jsonFlag,
			&cli.StringFlag{Name: "output-dir", Usage: "where dashboards are written (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one input file", 2)
			}
			in, err := models.LoadDatasetInput(c.Args().First())
			if err != nil {
				return err
			}
			m, err := e.chatModels()
			if err != nil {
				return err
			}

			outputDir := e.cfg.Data.OutputDir
			if c.IsSet("output-dir") {
				outputDir = c.String("output-dir")
			}

			g, err := planning.NewGenerator(c.Context, m.Fast, m.Smart, e.downloader(), planning.Config{
				OutputDir:    outputDir,
				PreviewItems: e.cfg.Data.PreviewItems,
				MaxSteps:     e.cfg.Tools.MaxSteps,
				Logger:       e.logger,
				OnStep: func(i, total int, step models.PlanStep) {
					color.Blue("[%d/%d] %s", i+1, total, step.Title)
				},
			})
			if err != nil {
				return err
			}

			color.Cyan("Building dashboard for %s", in.Name)
			out, err := g.Run(c.Context, in)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(out)
			}

			for _, f := range out.Findings {
				if f.Error != "" {
					color.Red("✗ %s: %s", f.Step.Title, f.Error)
				} else {
					color.Green("✓ %s", f.Step.Title)
				}
			}
			fmt.Printf("\nDashboard: %s\nPlan:      %s\nFindings:  %s\n", out.HTMLPath, out.PlanPath, out.FindingsPath)
			return nil
		},
	}
}

func toolsCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "tools",
		Usage:     "Ask an agent that can use a clock, a calculator, web pages and a database",
		ArgsUsage: "[question]",
		Flags: []cli.Flag{
			dbFlag,
			urlFlag,
			&cli.BoolFlag{Name: "stream", Usage: "stream the answer (default from config)"},
		},
		Action: func(c *cli.Context) error {
			m, err := e.chatModels()
			if err != nil {
				return err
			}
			s, err := e.newScraper("", nil)
			if err != nil {
				return err
			}

			tools := []tool.BaseTool{
				tooluse.CurrentTime(time.Now),
				tooluse.Calculator(),
				tooluse.FetchPage(s),
			}
			if c.IsSet("db") || c.IsSet("url") {
				db, err := e.openDatabase(c)
				if err != nil {
					return err
				}
				defer db.Close()
				tools = append(tools, tooluse.ListTables(db), tooluse.RunSQL(db, e.cfg.Data.PreviewItems))
			}

			agent, err := tooluse.NewAgent(c.Context, m.Smart, tools, "", e.cfg.Tools.MaxSteps)
			if err != nil {
				return err
			}

			if c.NArg() > 0 {
				question := strings.Join(c.Args().Slice(), " ")
				stream := e.cfg.UI.Streaming
				if c.IsSet("stream") {
					stream = c.Bool("stream")
				}
				if stream {
					return streamAnswer(c.Context, agent, question)
				}
				answer, err := spin("Thinking...", func() (string, error) {
					return agent.Ask(c.Context, question)
				})
				if err != nil {
					return err
				}
				fmt.Println(answer)
				return nil
			}

			var history []*schema.Message
			return chatLoop("Chat with the tool agent", func(line string) error {
				history = append(history, schema.UserMessage(line))
				reply, err := spin("Thinking...", func() (*schema.Message, error) {
					return agent.Chat(c.Context, history)
				})
				if err != nil {
					history = history[:len(history)-1]
					return err
				}
				history = append(history, reply)
				assistantPrompt("Assistant: %s\n", strings.TrimSpace(reply.Content))
				return nil
			})
		},
	}
}

func streamAnswer(ctx context.Context, agent *tooluse.Agent, question string) error {
	sr, err := agent.Stream(ctx, question)
	if err != nil {
		return err
	}
	defer sr.Close()

	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, chunk.Content)
	}
	fmt.Println()
	return nil
}
