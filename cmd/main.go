package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	e := &env{}
	return &cli.App{
		Name:  "agentic",
		Usage: "Agentic workflow patterns on local and hosted models",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config file"},
			&cli.StringFlag{Name: "provider", Usage: "model provider: ollama, openai or anthropic"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every component run"},
		},
		Before: e.setup,
		After:  e.teardown,
		Commands: []*cli.Command{
			chainCommand(e),
			routeCommand(e),
			parallelCommand(e),
			reflectCommand(e),
			toolsCommand(e),
			planCommand(e),
			sqlCommand(e),
			ragCommand(e),
			serveCommand(e),
			doctorCommand(e),
		},
	}
}
