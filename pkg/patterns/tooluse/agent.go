package tooluse

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

const DefaultSystemPrompt = `You are a helpful assistant with tools. Use a tool whenever the answer depends
on the current time, arithmetic, a web page or the database. Never guess a
number you can compute. When you have enough information, answer concisely.`

type Agent struct {
	agent *react.Agent
}

// NewAgent builds a ReAct agent over tools. maxSteps bounds the number of
// model and tool nodes run for one question.
func NewAgent(ctx context.Context, m model.ToolCallingChatModel, tools []tool.BaseTool, systemPrompt string, maxSteps int) (*Agent, error) {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	a, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: m,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: reportErrors(tools),
			UnknownToolsHandler: func(_ context.Context, name, _ string) (string, error) {
				return fmt.Sprintf("tool %q does not exist; use one of the listed tools", name), nil
			},
		},
		MessageModifier: func(_ context.Context, input []*schema.Message) []*schema.Message {
			return append([]*schema.Message{schema.SystemMessage(systemPrompt)}, input...)
		},
		MaxStep: maxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return &Agent{agent: a}, nil
}

func (a *Agent) Ask(ctx context.Context, question string) (string, error) {
	msg, err := a.agent.Generate(ctx, []*schema.Message{schema.UserMessage(question)})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

// Stream asks question and returns the final answer as it is generated.
func (a *Agent) Stream(ctx context.Context, question string) (*schema.StreamReader[*schema.Message], error) {
	return a.agent.Stream(ctx, []*schema.Message{schema.UserMessage(question)})
}

// Chat continues a conversation and returns the agent's reply.
func (a *Agent) Chat(ctx context.Context, history []*schema.Message) (*schema.Message, error) {
	return a.agent.Generate(ctx, history)
}

// errorReporting hands tool failures back to the model as the tool result
// so it can correct its call instead of aborting the run.
type errorReporting struct {
	tool.InvokableTool
}

func (t errorReporting) InvokableRun(ctx context.Context, args string, opts ...tool.Option) (string, error) {
	out, err := t.InvokableTool.InvokableRun(ctx, args, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "error: " + err.Error(), nil
	}
	return out, nil
}

func reportErrors(tools []tool.BaseTool) []tool.BaseTool {
	out := make([]tool.BaseTool, len(tools))
	for i, t := range tools {
		if it, ok := t.(tool.InvokableTool); ok {
			out[i] = errorReporting{it}
			continue
		}
		out[i] = t
	}
	return out
}
