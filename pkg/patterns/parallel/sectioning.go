// Package parallel holds the fan-out patterns: sectioning one input into
// independent prompts, voting over repeated samples, and batch runs over many
// inputs.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/xhad/agentic/pkg/llm"
)

// Aspect is one independent section prompt. Prompt is used as the system
// message; the input is sent as the user message.
type Aspect struct {
	Name   string
	Prompt string
}

var DefaultAspects = []Aspect{
	{Name: "strengths", Prompt: "List the three strongest points of this product idea. Be specific."},
	{Name: "risks", Prompt: "List the three biggest risks of this product idea, technical or commercial."},
	{Name: "audience", Prompt: "Describe who would pay for this product idea and why, in at most five sentences."},
}

const aggregatePrompt = `You combine independent reviews into one short report.
Write a two sentence verdict first, then one paragraph per section. Do not add
points that are not in the sections.`

type SectionResult struct {
	Sections map[string]string `json:"sections"`
	Summary  string            `json:"summary"`
}

type Sectioner struct {
	runner compose.Runnable[map[string]any, *SectionResult]
}

// NewSectioner runs every aspect on worker at the same time and hands the
// collected sections to aggregator.
func NewSectioner(ctx context.Context, worker, aggregator model.BaseChatModel, aspects []Aspect) (*Sectioner, error) {
	if len(aspects) < 2 {
		return nil, errors.New("sectioning needs at least two aspects")
	}

	par := compose.NewParallel()
	for _, a := range aspects {
		section, err := sectionChain(worker, a)
		if err != nil {
			return nil, err
		}
		par.AddGraph(a.Name, section, compose.WithNodeName(a.Name))
	}

	chain := compose.NewChain[map[string]any, *SectionResult]()
	chain.
		AppendParallel(par).
		AppendLambda(compose.InvokableLambda(func(ctx context.Context, out map[string]any) (*SectionResult, error) {
			return aggregate(ctx, aggregator, out)
		}), compose.WithNodeName("aggregate"))

	runner, err := chain.Compile(ctx, compose.WithGraphName("sectioning"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile sectioning chain: %w", err)
	}
	return &Sectioner{runner: runner}, nil
}

func (s *Sectioner) Run(ctx context.Context, input string) (*SectionResult, error) {
	return s.runner.Invoke(ctx, map[string]any{"input": input})
}

func sectionChain(m model.BaseChatModel, a Aspect) (*compose.Chain[map[string]any, string], error) {
	if strings.ContainsAny(a.Prompt, "{}") {
		return nil, fmt.Errorf("aspect %s: prompt must not contain braces", a.Name)
	}

	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage(a.Prompt),
		schema.UserMessage("{input}"),
	)

	c := compose.NewChain[map[string]any, string]()
	c.
		AppendChatTemplate(tpl).
		AppendChatModel(m).
		AppendLambda(compose.InvokableLambda(func(_ context.Context, msg *schema.Message) (string, error) {
			return strings.TrimSpace(msg.Content), nil
		}))
	return c, nil
}

func aggregate(ctx context.Context, m model.BaseChatModel, out map[string]any) (*SectionResult, error) {
	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &SectionResult{Sections: make(map[string]string, len(out))}
	var b strings.Builder
	for _, name := range names {
		text, _ := out[name].(string)
		res.Sections[name] = text
		fmt.Fprintf(&b, "## %s\n%s\n\n", name, text)
	}

	summary, err := llm.Complete(ctx, m, aggregatePrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sections: %w", err)
	}
	res.Summary = summary
	return res, nil
}
