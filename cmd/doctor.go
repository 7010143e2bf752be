package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fatih/color"
	ollama "github.com/ollama/ollama/api"
	"github.com/urfave/cli/v2"
	"github.com/xhad/agentic/pkg/config"
	"github.com/xhad/agentic/pkg/store"
)

type check struct {
	name   string
	detail string
	err    error
}

func doctorCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check configuration, model provider, cache and vector store",
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()

			var checks []check
			if len(e.invalid) == 0 {
				checks = append(checks, check{name: "config", detail: "valid"})
			}
			for _, v := range e.invalid {
				checks = append(checks, check{name: "config", err: v})
			}

			llmCfg := e.cfg.LLM
			switch llmCfg.Provider {
			case config.ProviderOllama:
				checks = append(checks, checkOllama(ctx, llmCfg.BaseURL, llmCfg.FastModel, llmCfg.SmartModel, llmCfg.EmbeddingModel)...)
			default:
				checks = append(checks, check{name: llmCfg.Provider, detail: fmt.Sprintf("fast=%s smart=%s", llmCfg.FastModel, llmCfg.SmartModel)})
			}

			if e.cfg.Cache.RedisURL != "" {
				checks = append(checks, checkRedis(ctx, e.cfg.Cache.RedisURL))
			} else {
				checks = append(checks, check{name: "cache", detail: "disabled"})
			}

			if len(e.invalid) == 0 {
				checks = append(checks, e.checkStore(ctx))
			}

			if failed := printChecks(checks); failed > 0 {
				return cli.Exit(fmt.Sprintf("%d checks failed", failed), 1)
			}
			return nil
		},
	}
}

// checkOllama reports the server version and whether every wanted model has
// been pulled.
func checkOllama(ctx context.Context, baseURL string, want ...string) []check {
	u, err := url.Parse(baseURL)
	if err != nil {
		return []check{{name: "ollama", err: fmt.Errorf("invalid base URL: %w", err)}}
	}
	client := ollama.NewClient(u, &http.Client{Timeout: 10 * time.Second})

	version, err := client.Version(ctx)
	if err != nil {
		return []check{{name: "ollama", err: err}}
	}
	checks := []check{{name: "ollama", detail: "version " + version + " at " + baseURL}}

	list, err := client.List(ctx)
	if err != nil {
		return append(checks, check{name: "ollama models", err: err})
	}
	pulled := make(map[string]bool)
	for _, m := range list.Models {
		pulled[m.Name] = true
		pulled[strings.TrimSuffix(m.Name, ":latest")] = true
	}

	seen := make(map[string]bool)
	for _, name := range want {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if pulled[name] {
			checks = append(checks, check{name: "model " + name, detail: "available"})
		} else {
			checks = append(checks, check{name: "model " + name, err: fmt.Errorf("not pulled, run: ollama pull %s", name)})
		}
	}
	return checks
}

func checkRedis(ctx context.Context, redisURL string) check {
	cache, err := store.DialEmbeddingCache(ctx, redisURL, 0)
	if err != nil {
		return check{name: "redis", err: err}
	}
	defer cache.Close()
	return check{name: "redis", detail: "reachable"}
}

func (e *env) checkStore(ctx context.Context) check {
	name := "store (" + e.cfg.Store.Backend + ")"
	emb, err := e.newEmbedder(ctx)
	if err != nil {
		return check{name: name, err: err}
	}
	index, err := e.openIndex(ctx, emb)
	if err != nil {
		return check{name: name, err: err}
	}
	n, err := index.Count(ctx)
	if err != nil {
		return check{name: name, err: err}
	}
	return check{name: name, detail: fmt.Sprintf("%d chunks", n)}
}

func printChecks(checks []check) int {
	failed := 0
	for _, c := range checks {
		if c.err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", color.RedString("✗"), c.name, c.err)
			continue
		}
		fmt.Printf("%s %s: %s\n", color.GreenString("✓"), c.name, c.detail)
	}
	return failed
}
