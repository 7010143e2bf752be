// Package reflection improves a draft in a loop: one model writes, another
// reviews, and the writer revises until the reviewer approves or the
// iteration limit is reached.
package reflection

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/llm"
)

const (
	writerPrompt = `You are a careful technical writer. Produce the requested text directly,
without preamble.`

	reviewerPrompt = `You review drafts against the task they were written for. Check correctness,
completeness and clarity.
Reply with a JSON object with two fields: "approved" (boolean) and "feedback"
(string with concrete changes, empty when approved). Reply with JSON only.`
)

const (
	nodeGenerate = "generate"
	nodeCritique = "critique"
	nodeRevise   = "revise"
	nodeFinish   = "finish"
)

type Iteration struct {
	Draft    string          `json:"draft"`
	Critique models.Critique `json:"critique"`
}

type Result struct {
	Final      string      `json:"final"`
	Approved   bool        `json:"approved"`
	Iterations []Iteration `json:"iterations"`
}

type loopState struct {
	task    string
	draft   string
	history []Iteration
}

type Loop struct {
	runner        compose.Runnable[string, *Result]
	maxIterations int
}

// New compiles the loop. maxIterations bounds the number of reviews.
func New(ctx context.Context, writer, reviewer model.BaseChatModel, maxIterations int) (*Loop, error) {
	if maxIterations < 1 {
		maxIterations = 1
	}

	g := compose.NewGraph[string, *Result](
		compose.WithGenLocalState(func(context.Context) *loopState { return &loopState{} }),
	)

	generate := func(ctx context.Context, task string) (string, error) {
		draft, err := llm.Complete(ctx, writer, writerPrompt, task)
		if err != nil {
			return "", err
		}
		return draft, compose.ProcessState(ctx, func(_ context.Context, s *loopState) error {
			s.task = task
			s.draft = draft
			return nil
		})
	}

	critique := func(ctx context.Context, draft string) (models.Critique, error) {
		var task string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *loopState) error {
			task = s.task
			return nil
		}); err != nil {
			return models.Critique{}, err
		}

		raw, err := llm.Complete(ctx, reviewer, reviewerPrompt, fmt.Sprintf("Task:\n%s\n\nDraft:\n%s", task, draft))
		if err != nil {
			return models.Critique{}, err
		}
		c := ParseCritique(raw)

		return c, compose.ProcessState(ctx, func(_ context.Context, s *loopState) error {
			s.history = append(s.history, Iteration{Draft: draft, Critique: c})
			return nil
		})
	}

	revise := func(ctx context.Context, c models.Critique) (string, error) {
		var task, previous string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *loopState) error {
			task, previous = s.task, s.draft
			return nil
		}); err != nil {
			return "", err
		}

		draft, err := llm.Complete(ctx, writer, writerPrompt, fmt.Sprintf(
			"Task:\n%s\n\nYour previous draft:\n%s\n\nReviewer feedback:\n%s\n\nWrite the improved version.",
			task, previous, c.Feedback))
		if err != nil {
			return "", err
		}
		return draft, compose.ProcessState(ctx, func(_ context.Context, s *loopState) error {
			s.draft = draft
			return nil
		})
	}

	finish := func(ctx context.Context, c models.Critique) (*Result, error) {
		res := &Result{Approved: c.Approved}
		err := compose.ProcessState(ctx, func(_ context.Context, s *loopState) error {
			res.Final = s.draft
			res.Iterations = append([]Iteration(nil), s.history...)
			return nil
		})
		return res, err
	}

	next := func(ctx context.Context, c models.Critique) (string, error) {
		var rounds int
		if err := compose.ProcessState(ctx, func(_ context.Context, s *loopState) error {
			rounds = len(s.history)
			return nil
		}); err != nil {
			return "", err
		}
		if c.Approved || rounds >= maxIterations {
			return nodeFinish, nil
		}
		return nodeRevise, nil
	}

	steps := []struct {
		key string
		fn  *compose.Lambda
	}{
		{nodeGenerate, compose.InvokableLambda(generate)},
		{nodeCritique, compose.InvokableLambda(critique)},
		{nodeRevise, compose.InvokableLambda(revise)},
		{nodeFinish, compose.InvokableLambda(finish)},
	}
	for _, s := range steps {
		if err := g.AddLambdaNode(s.key, s.fn, compose.WithNodeName(s.key)); err != nil {
			return nil, fmt.Errorf("failed to add node %s: %w", s.key, err)
		}
	}

	edges := [][2]string{
		{compose.START, nodeGenerate},
		{nodeGenerate, nodeCritique},
		{nodeRevise, nodeCritique},
		{nodeFinish, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("failed to add edge %s -> %s: %w", e[0], e[1], err)
		}
	}

	branch := compose.NewGraphBranch(next, map[string]bool{nodeRevise: true, nodeFinish: true})
	if err := g.AddBranch(nodeCritique, branch); err != nil {
		return nil, fmt.Errorf("failed to add branch: %w", err)
	}

	runner, err := g.Compile(ctx,
		compose.WithGraphName("reflection"),
		compose.WithMaxRunSteps(2*maxIterations+4),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reflection graph: %w", err)
	}
	return &Loop{runner: runner, maxIterations: maxIterations}, nil
}

func (l *Loop) Run(ctx context.Context, task string) (*Result, error) {
	return l.runner.Invoke(ctx, task)
}

// ParseCritique decodes the reviewer's JSON verdict. Output that is not valid
// JSON counts as a rejection with the raw text as feedback.
func ParseCritique(raw string) models.Critique {
	c, err := llm.DecodeJSON[models.Critique](raw)
	if err != nil {
		return models.Critique{Approved: false, Feedback: strings.TrimSpace(raw)}
	}
	return c
}
