package main

import (
	"log/slog"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"github.com/xhad/agentic/pkg/patterns/routing"
	"github.com/xhad/agentic/server"
)

func serveCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve knowledge base questions and ticket routing over a websocket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (default from config)"},
		},
		Action: func(c *cli.Context) error {
			m, err := e.chatModels()
			if err != nil {
				return err
			}
			router, err := routing.New(c.Context, m.Fast, m.Smart, routing.DefaultRoutes)
			if err != nil {
				return err
			}

			var asker server.Asker
			if a, err := e.answerer(c); err != nil {
				e.logger.Warn("knowledge base unavailable, serving routing only", slog.String("error", err.Error()))
			} else {
				asker = a
			}

			addr := e.cfg.Server.Addr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}

			srv := server.NewWSServer(server.Config{
				Addr:        addr,
				Metrics:     e.metrics.Handler(),
				Logger:      e.logger,
				MaxInFlight: e.cfg.Server.MaxInFlight,
			}, asker, router)

			color.Cyan("Listening on %s (ws: /ws, health: /health, metrics: /metrics)", addr)
			return srv.ListenAndServe(c.Context)
		},
	}
}
