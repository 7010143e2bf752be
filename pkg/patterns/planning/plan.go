// Package planning builds an HTML dashboard for a downloaded SQLite dataset:
// a planner model proposes questions, each question is answered with SQL and
// a final prompt lays the findings out as HTML.
package planning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/llm"
)

var ErrEmptyPlan = errors.New("planner returned no steps")

const maxSteps = 6

const plannerPrompt = `You are a data analyst planning a dashboard.
Given a dataset description, its SQLite schema and the user's request, propose
between 3 and 6 analysis steps. Each step must be answerable with one SQL query
against the schema.

Reply with JSON only, in this shape:
{"goal": "one sentence", "steps": [{"title": "short title", "question": "what to compute", "chart": "table|bar|line|number"}]}`

// MakePlan asks m for an analysis plan. Steps without a question are dropped
// and at most six are kept.
func MakePlan(ctx context.Context, m model.BaseChatModel, in models.DatasetInput, dbSchema string) (*models.Plan, error) {
	user := fmt.Sprintf("Dataset: %s\nDescription: %s\n\nSchema:\n%s\n\nRequest: %s",
		in.Name, in.Description, dbSchema, in.Request)

	raw, err := llm.Complete(ctx, m, plannerPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("failed to plan: %w", err)
	}
	return ParsePlan(raw)
}

func ParsePlan(raw string) (*models.Plan, error) {
	plan, err := llm.DecodeJSON[models.Plan](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	steps := plan.Steps[:0]
	for _, s := range plan.Steps {
		s.Question = strings.TrimSpace(s.Question)
		if s.Question == "" {
			continue
		}
		if s.Title == "" {
			s.Title = s.Question
		}
		steps = append(steps, s)
	}
	if len(steps) == 0 {
		return nil, ErrEmptyPlan
	}
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	plan.Steps = steps
	return &plan, nil
}
