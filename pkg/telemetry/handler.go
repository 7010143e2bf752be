// Package telemetry logs and measures every component run inside eino chains,
// graphs and agents through a global callback handler.
package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type startKey struct{}

// NewHandler returns a callback handler that logs component start, end and
// error events and feeds metrics when m is non-nil.
func NewHandler(logger *slog.Logger, m *Metrics) callbacks.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			component, name := describe(info)
			logger.Debug("component start",
				slog.String("component", component),
				slog.String("name", name),
			)
			return context.WithValue(ctx, startKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			usage, _ := usageOf(output)
			end(logger, m, info, since(ctx), usage, false)
			return ctx
		}).
		OnEndWithStreamOutputFn(func(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
			go func() {
				defer output.Close()
				var usage *schema.TokenUsage
				for {
					chunk, err := output.Recv()
					if errors.Is(err, io.EOF) {
						break
					}
					if err != nil {
						component, name := describe(info)
						m.observeRun(component, name, false, since(ctx))
						logger.Warn("component stream error",
							slog.String("component", component),
							slog.String("name", name),
							slog.String("error", err.Error()),
						)
						return
					}
					// providers report usage on the last chunk
					if u, ok := usageOf(chunk); ok {
						usage = u
					}
				}
				end(logger, m, info, since(ctx), usage, true)
			}()
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			component, name := describe(info)
			elapsed := since(ctx)
			m.observeRun(component, name, false, elapsed)
			logger.Warn("component error",
				slog.String("component", component),
				slog.String("name", name),
				slog.Duration("duration", elapsed),
				slog.String("error", err.Error()),
			)
			return ctx
		}).
		Build()
}

func end(logger *slog.Logger, m *Metrics, info *callbacks.RunInfo, elapsed time.Duration, usage *schema.TokenUsage, streamed bool) {
	component, name := describe(info)
	m.observeRun(component, name, true, elapsed)

	attrs := []any{
		slog.String("component", component),
		slog.String("name", name),
		slog.Duration("duration", elapsed),
	}
	if streamed {
		attrs = append(attrs, slog.Bool("streamed", true))
	}
	if usage != nil {
		m.observeTokens(name, usage.PromptTokens, usage.CompletionTokens)
		attrs = append(attrs,
			slog.Int("prompt_tokens", usage.PromptTokens),
			slog.Int("completion_tokens", usage.CompletionTokens),
		)
	}
	logger.Debug("component end", attrs...)
}

func usageOf(output callbacks.CallbackOutput) (*schema.TokenUsage, bool) {
	switch o := output.(type) {
	case *schema.Message:
		if o != nil && o.ResponseMeta != nil && o.ResponseMeta.Usage != nil {
			return o.ResponseMeta.Usage, true
		}
	case *model.CallbackOutput:
		if o == nil {
			break
		}
		if o.TokenUsage != nil {
			return &schema.TokenUsage{
				PromptTokens:     o.TokenUsage.PromptTokens,
				CompletionTokens: o.TokenUsage.CompletionTokens,
				TotalTokens:      o.TokenUsage.TotalTokens,
			}, true
		}
		return usageOf(o.Message)
	}
	return nil, false
}

// Install registers the handler for every subsequent graph run in the process.
func Install(logger *slog.Logger, m *Metrics) {
	callbacks.AppendGlobalHandlers(NewHandler(logger, m))
}

func describe(info *callbacks.RunInfo) (component, name string) {
	if info == nil {
		return "unknown", "unknown"
	}
	component = string(info.Component)
	if component == "" {
		component = "unknown"
	}
	name = info.Name
	if name == "" {
		name = info.Type
	}
	if name == "" {
		name = component
	}
	return component, name
}

func since(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}
