package main

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/patterns/rag"
)

func ragCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "rag",
		Usage: "Build and question a knowledge base",
		Subcommands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "Chunk, embed and index local documents and web pages",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "directory of .txt and .md files"},
					&cli.StringSliceFlag{Name: "url", Aliases: []string{"u"}, Usage: "site to crawl (repeatable)"},
					&cli.BoolFlag{Name: "fixed", Usage: "split by chunk size instead of by topic"},
				},
				Action: e.ingest,
			},
			{
				Name:      "ask",
				Usage:     "Answer one question from the knowledge base",
				ArgsUsage: "<question>",
				Flags:     []cli.Flag{jsonFlag},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("a question is required", 2)
					}
					a, err := e.answerer(c)
					if err != nil {
						return err
					}
					ans, err := spin("Searching documentation...", func() (*rag.Answer, error) {
						return a.Ask(c.Context, strings.Join(c.Args().Slice(), " "))
					})
					if err != nil && !errors.Is(err, rag.ErrNoRelevantContext) {
						return err
					}
					if c.Bool("json") {
						return printJSON(ans)
					}
					printAnswer(ans)
					return nil
				},
			},
			{
				Name:  "chat",
				Usage: "Ask questions interactively",
				Action: func(c *cli.Context) error {
					a, err := e.answerer(c)
					if err != nil {
						return err
					}
					return chatLoop("Chat with your knowledge base", func(line string) error {
						ans, err := spin("Searching documentation...", func() (*rag.Answer, error) {
							return a.Ask(c.Context, line)
						})
						if err != nil && !errors.Is(err, rag.ErrNoRelevantContext) {
							return err
						}
						printAnswer(ans)
						return nil
					})
				},
			},
		},
	}
}

func printAnswer(ans *rag.Answer) {
	assistantPrompt("\nAssistant: %s\n", ans.Text)
	for i, src := range ans.Sources {
		color.New(color.Faint).Printf("  [%d] %s (%.2f)\n", i+1, src.Source, src.Score)
	}
}

func (e *env) answerer(c *cli.Context) (*rag.Answerer, error) {
	m, err := e.chatModels()
	if err != nil {
		return nil, err
	}
	emb, err := e.newEmbedder(c.Context)
	if err != nil {
		return nil, err
	}
	index, err := e.openIndex(c.Context, emb)
	if err != nil {
		return nil, err
	}
	return rag.NewAnswerer(c.Context, emb, index, m.Fast, m.Smart, rag.AskConfig{
		TopK:        e.cfg.RAG.TopK,
		Concurrency: e.cfg.RAG.RelevanceConcurrency,
	})
}

func (e *env) ingest(c *cli.Context) error {
	dir, urls := c.String("dir"), c.StringSlice("url")
	if dir == "" && len(urls) == 0 {
		return cli.Exit("nothing to ingest: pass --dir and/or --url", 2)
	}

	var docs []models.Document
	if dir != "" {
		local, err := rag.LoadDir(dir)
		if err != nil {
			return err
		}
		color.Green("✓ Loaded %d documents from %s", len(local), dir)
		docs = append(docs, local...)
	}

	for _, u := range urls {
		pages, err := e.scrape(c, u)
		if err != nil {
			return err
		}
		docs = append(docs, pages...)
	}
	if len(docs) == 0 {
		color.Yellow("No documents found")
		return nil
	}

	emb, err := e.newEmbedder(c.Context)
	if err != nil {
		return err
	}
	index, err := e.openIndex(c.Context, emb)
	if err != nil {
		return err
	}

	bar := getProgressBar(e.cfg.UI, -1, "Storing in vector database")
	in := rag.NewIngester(e.newProcessor(), emb, index, rag.IngestConfig{
		BatchSize: e.cfg.Store.BatchSize,
		FixedSize: c.Bool("fixed"),
		Logger:    e.logger,
		OnProgress: func(done, total int) {
			bar.ChangeMax(total)
			bar.Set(done)
		},
	})

	color.Blue("Chunking %d documents...", len(docs))
	stats, err := in.Ingest(c.Context, docs)
	bar.Finish()
	if err != nil {
		return err
	}

	total, err := index.Count(c.Context)
	if err != nil {
		return err
	}
	color.Green("✓ Indexed %d chunks from %d documents (%d in index)", stats.Chunks, stats.Documents, total)
	return nil
}

// scrape crawls u while a progress bar shows the page rate.
func (e *env) scrape(c *cli.Context, u string) ([]models.Document, error) {
	var count int32
	s, err := e.newScraper(u, func(string) {
		atomic.AddInt32(&count, 1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}

	bar := getProgressBar(e.cfg.UI, -1, "Scraping "+u)
	done := make(chan struct{})
	go func() {
		start := time.Now()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				n := atomic.LoadInt32(&count)
				bar.Set(int(n))
				if elapsed := time.Since(start).Seconds(); n > 0 {
					bar.Describe(color.BlueString("Scraping %s (%.1f pages/sec)", u, float64(n)/elapsed))
				}
			}
		}
	}()

	pages, err := rag.LoadURLs(c.Context, s, []string{u})
	close(done)
	bar.Finish()
	if err != nil {
		return nil, err
	}
	color.Green("✓ Scraped %d pages from %s", len(pages), u)
	return pages, nil
}
