package parallel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one input. A failed item carries Error and no
// Output; it does not stop the batch.
type BatchItem struct {
	Index  int    `json:"index"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type BatchConfig struct {
	Concurrency int
	// Out receives one JSON line per item in completion order.
	Out        io.Writer
	OnProgress func(done, total int)
}

// RunBatch applies fn to every input with at most cfg.Concurrency calls in
// flight. The returned items are in input order.
func RunBatch(ctx context.Context, inputs []string, fn func(context.Context, string) (string, error), cfg BatchConfig) ([]BatchItem, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	items := make([]BatchItem, len(inputs))
	done := make(chan BatchItem)

	var (
		writeErr error
		wg       sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		var enc *json.Encoder
		if cfg.Out != nil {
			enc = json.NewEncoder(cfg.Out)
		}
		n := 0
		for item := range done {
			n++
			if enc != nil && writeErr == nil {
				if err := enc.Encode(item); err != nil {
					writeErr = fmt.Errorf("failed to write batch result: %w", err)
				}
			}
			if cfg.OnProgress != nil {
				cfg.OnProgress(n, len(inputs))
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i, input := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item := BatchItem{Index: i, Input: input}
			out, err := fn(gctx, input)
			if err != nil {
				item.Error = err.Error()
			} else {
				item.Output = out
			}
			items[i] = item
			done <- item
			return nil
		})
	}

	err := g.Wait()
	close(done)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	if writeErr != nil {
		return nil, writeErr
	}
	return items, nil
}
