package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/llm"
	"github.com/xhad/agentic/pkg/patterns/chaining"
	"github.com/xhad/agentic/pkg/patterns/parallel"
	"github.com/xhad/agentic/pkg/patterns/reflection"
	"github.com/xhad/agentic/pkg/patterns/routing"
)

func chainCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "chain",
		Usage:     "Turn raw product notes into a polished description (prompt chaining)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			fileFlag,
			jsonFlag,
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "also write the final text to `PATH`"},
		},
		Action: func(c *cli.Context) error {
			input, err := readInput(c)
			if err != nil {
				return err
			}
			m, err := e.chatModels()
			if err != nil {
				return err
			}
			ch, err := chaining.New(c.Context, m.Fast, m.Smart)
			if err != nil {
				return err
			}

			res, err := spin("Running chain...", func() (*chaining.Result, error) {
				return ch.Run(c.Context, input)
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(res)
			}
			heading("Facts")
			fmt.Println(res.Facts)
			heading("\nDraft")
			fmt.Println(res.Draft)
			heading("\nFinal")
			fmt.Println(res.Final)
			return writeOutput(c, res.Final)
		},
	}
}

func routeCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "route",
		Usage:     "Classify support tickets and answer each with its route's handler",
		ArgsUsage: "[ticket text]",
		Flags: []cli.Flag{
			fileFlag,
			jsonFlag,
			&cli.StringFlag{Name: "tickets", Aliases: []string{"t"}, Usage: "JSON file with a list of tickets"},
		},
		Action: func(c *cli.Context) error {
			var tickets []models.SupportTicket
			if path := c.String("tickets"); path != "" {
				var err error
				if tickets, err = models.LoadTickets(path); err != nil {
					return err
				}
			} else {
				text, err := readInput(c)
				if err != nil {
					return err
				}
				tickets = []models.SupportTicket{{ID: "1", Text: text}}
			}

			m, err := e.chatModels()
			if err != nil {
				return err
			}
			r, err := routing.New(c.Context, m.Fast, m.Smart, routing.DefaultRoutes)
			if err != nil {
				return err
			}

			decisions, err := spin(fmt.Sprintf("Routing %d tickets...", len(tickets)), func() ([]*routing.Decision, error) {
				return r.RouteAll(c.Context, tickets, e.cfg.Parallel.MaxConcurrency)
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(decisions)
			}
			for _, d := range decisions {
				color.Yellow("\n#%s → %s", d.TicketID, d.Label)
				fmt.Println(d.Reply)
			}
			return nil
		},
	}
}

func parallelCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "parallel",
		Usage: "Run independent prompts at the same time",
		Subcommands: []*cli.Command{
			{
				Name:      "sections",
				Usage:     "Review an idea from several angles at once and merge the reviews",
				ArgsUsage: "[idea]",
				Flags:     []cli.Flag{fileFlag, jsonFlag},
				Action: func(c *cli.Context) error {
					input, err := readInput(c)
					if err != nil {
						return err
					}
					m, err := e.chatModels()
					if err != nil {
						return err
					}
					s, err := parallel.NewSectioner(c.Context, m.Fast, m.Smart, parallel.DefaultAspects)
					if err != nil {
						return err
					}

					res, err := spin("Reviewing...", func() (*parallel.SectionResult, error) {
						return s.Run(c.Context, input)
					})
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(res)
					}

					names := make([]string, 0, len(res.Sections))
					for name := range res.Sections {
						names = append(names, name)
					}
					sort.Strings(names)
					for _, name := range names {
						heading(strings.ToUpper(name))
						fmt.Println(res.Sections[name] + "\n")
					}
					heading("SUMMARY")
					fmt.Println(res.Summary)
					return nil
				},
			},
			{
				Name:      "vote",
				Usage:     "Ask the same yes/no question several times and take the majority",
				ArgsUsage: "[text]",
				Flags: []cli.Flag{
					fileFlag,
					jsonFlag,
					&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Required: true, Usage: "yes/no question about the text"},
					&cli.IntFlag{Name: "votes", Aliases: []string{"n"}, Usage: "number of samples (default from config)"},
				},
				Action: func(c *cli.Context) error {
					input, err := readInput(c)
					if err != nil {
						return err
					}
					n := e.cfg.Parallel.Votes
					if c.IsSet("votes") {
						n = c.Int("votes")
					}
					m, err := e.chatModels()
					if err != nil {
						return err
					}
					v, err := parallel.NewVoter(c.Context, m.Fast, n)
					if err != nil {
						return err
					}

					res, err := spin(fmt.Sprintf("Collecting %d votes...", n), func() (*parallel.VoteResult, error) {
						return v.Judge(c.Context, c.String("question"), input)
					})
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(res)
					}

					for i, vote := range res.Votes {
						mark := color.RedString("no ")
						if vote.Approve {
							mark = color.GreenString("yes")
						}
						fmt.Printf("%2d. %s %s\n", i+1, mark, vote.Reason)
					}
					if res.Approved {
						color.Green("\nApproved %d to %d", res.Yes, res.No)
					} else {
						color.Red("\nRejected %d to %d", res.No, res.Yes)
					}
					return nil
				},
			},
			{
				Name:  "batch",
				Usage: "Apply one prompt to every line of a file with a concurrency ceiling",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Required: true, Usage: "input file, one item per line"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "JSONL file to append results to"},
					&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Value: "Summarize the following text in one sentence.", Usage: "system prompt applied to every item"},
					&cli.IntFlag{Name: "concurrency", Usage: "parallel calls (default from config)"},
				},
				Action: func(c *cli.Context) error {
					inputs, err := readLines(c.String("in"))
					if err != nil {
						return err
					}
					m, err := e.chatModels()
					if err != nil {
						return err
					}

					out, err := os.OpenFile(c.String("out"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
					if err != nil {
						return fmt.Errorf("failed to open output: %w", err)
					}
					defer out.Close()

					concurrency := e.cfg.Parallel.MaxConcurrency
					if c.IsSet("concurrency") {
						concurrency = c.Int("concurrency")
					}
					system := c.String("prompt")
					bar := getProgressBar(e.cfg.UI, len(inputs), "Processing items")

					items, err := parallel.RunBatch(c.Context, inputs, func(ctx context.Context, input string) (string, error) {
						return llm.Complete(ctx, m.Fast, system, input)
					}, parallel.BatchConfig{
						Concurrency: concurrency,
						Out:         out,
						OnProgress: func(done, total int) {
							bar.Set(done)
						},
					})
					bar.Finish()
					if err != nil {
						return err
					}

					failed := 0
					for _, it := range items {
						if it.Error != "" {
							failed++
						}
					}
					color.Green("✓ Processed %d items (%d failed) into %s", len(items), failed, c.String("out"))
					return nil
				},
			},
		},
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

func reflectCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "reflect",
		Usage:     "Write, critique and revise until the reviewer approves",
		ArgsUsage: "[task]",
		Flags: []cli.Flag{
			fileFlag,
			jsonFlag,
			&cli.IntFlag{Name: "max-iterations", Usage: "review rounds (default from config)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "also write the final draft to `PATH`"},
		},
		Action: func(c *cli.Context) error {
			task, err := readInput(c)
			if err != nil {
				return err
			}
			rounds := e.cfg.Reflection.MaxIterations
			if c.IsSet("max-iterations") {
				rounds = c.Int("max-iterations")
			}
			m, err := e.chatModels()
			if err != nil {
				return err
			}
			loop, err := reflection.New(c.Context, m.Smart, m.Fast, rounds)
			if err != nil {
				return err
			}

			res, err := spin("Writing and reviewing...", func() (*reflection.Result, error) {
				return loop.Run(c.Context, task)
			})
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(res)
			}

			for i, it := range res.Iterations {
				status := color.RedString("changes requested")
				if it.Critique.Approved {
					status = color.GreenString("approved")
				}
				fmt.Printf("Round %d: %s\n", i+1, status)
				if it.Critique.Feedback != "" {
					fmt.Printf("  %s\n", it.Critique.Feedback)
				}
			}
			heading("\nFinal")
			fmt.Println(res.Final)
			if !res.Approved {
				color.Yellow("\nStopped after %d rounds without approval", len(res.Iterations))
			}
			return writeOutput(c, res.Final)
		},
	}
}
