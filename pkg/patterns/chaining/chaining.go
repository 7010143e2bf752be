// Package chaining runs a fixed sequence of prompts where each step consumes
// the previous step's output and a gate stops the chain early.
package chaining

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

var ErrGate = errors.New("no facts could be extracted from the input")

const noFacts = "NONE"

var (
	extractTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage(`Extract the concrete product facts from the text: features, numbers, materials, prices, audiences.
Write one fact per line starting with "- ". Do not invent anything.
If the text contains no product facts, reply with exactly `+noFacts+`.`),
		schema.UserMessage("{input}"),
	)

	draftTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage("You write short product descriptions for an online store."),
		schema.UserMessage("Write a product description of two short paragraphs using only these facts:\n\n{facts}"),
	)

	polishTemplate = prompt.FromMessages(schema.FString,
		schema.SystemMessage("You are a copy editor. Return only the edited text."),
		schema.UserMessage(`Tighten this description: fix grammar, drop filler words and keep it under 120 words.

{draft}`),
	)
)

// Result holds the output of every step.
type Result struct {
	Facts string `json:"facts"`
	Draft string `json:"draft"`
	Final string `json:"final"`
}

type trace struct {
	facts string
	draft string
}

type Chain struct {
	runner compose.Runnable[map[string]any, *Result]
}

// New compiles the chain. fast handles extraction and polishing; smart writes
// the draft.
func New(ctx context.Context, fast, smart model.BaseChatModel) (*Chain, error) {
	chain := compose.NewChain[map[string]any, *Result](
		compose.WithGenLocalState(func(context.Context) *trace { return &trace{} }),
	)

	chain.
		AppendChatTemplate(extractTemplate, compose.WithNodeName("extract_prompt")).
		AppendChatModel(fast, compose.WithNodeName("extract")).
		AppendLambda(compose.InvokableLambda(gate), compose.WithNodeName("gate")).
		AppendChatTemplate(draftTemplate, compose.WithNodeName("draft_prompt")).
		AppendChatModel(smart, compose.WithNodeName("draft")).
		AppendLambda(compose.InvokableLambda(keepDraft), compose.WithNodeName("keep_draft")).
		AppendChatTemplate(polishTemplate, compose.WithNodeName("polish_prompt")).
		AppendChatModel(fast, compose.WithNodeName("polish")).
		AppendLambda(compose.InvokableLambda(collect), compose.WithNodeName("collect"))

	runner, err := chain.Compile(ctx, compose.WithGraphName("prompt_chain"))
	if err != nil {
		return nil, fmt.Errorf("failed to compile chain: %w", err)
	}
	return &Chain{runner: runner}, nil
}

func (c *Chain) Run(ctx context.Context, input string) (*Result, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrGate
	}
	return c.runner.Invoke(ctx, map[string]any{"input": input})
}

func gate(ctx context.Context, msg *schema.Message) (map[string]any, error) {
	facts := strings.TrimSpace(msg.Content)
	if facts == "" || strings.EqualFold(strings.Trim(facts, ". "), noFacts) {
		return nil, ErrGate
	}

	err := compose.ProcessState(ctx, func(_ context.Context, t *trace) error {
		t.facts = facts
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"facts": facts}, nil
}

func keepDraft(ctx context.Context, msg *schema.Message) (map[string]any, error) {
	draft := strings.TrimSpace(msg.Content)
	err := compose.ProcessState(ctx, func(_ context.Context, t *trace) error {
		t.draft = draft
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"draft": draft}, nil
}

func collect(ctx context.Context, msg *schema.Message) (*Result, error) {
	res := &Result{Final: strings.TrimSpace(msg.Content)}
	err := compose.ProcessState(ctx, func(_ context.Context, t *trace) error {
		res.Facts = t.facts
		res.Draft = t.draft
		return nil
	})
	return res, err
}
