// Package llmtest provides a scripted chat model for deterministic tests of
// chains, graphs and agents.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type RespondFunc func(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)

type recorder struct {
	mu    sync.Mutex
	calls [][]*schema.Message
}

type Model struct {
	respond RespondFunc
	rec     *recorder
	tools   []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*Model)(nil)

func New(respond RespondFunc) *Model {
	return &Model{respond: respond, rec: &recorder{}}
}

// Text answers every call with the output of fn applied to the full prompt.
func Text(fn func(prompt string) string) *Model {
	return New(func(_ context.Context, msgs []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(fn(Prompt(msgs)), nil), nil
	})
}

// Replies answers calls in order and repeats the last reply once exhausted.
func Replies(replies ...string) *Model {
	var (
		mu sync.Mutex
		i  int
	)
	return New(func(context.Context, []*schema.Message) (*schema.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		reply := replies[len(replies)-1]
		if i < len(replies) {
			reply = replies[i]
		}
		i++
		return schema.AssistantMessage(reply, nil), nil
	})
}

func (m *Model) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.rec.mu.Lock()
	m.rec.calls = append(m.rec.calls, append([]*schema.Message(nil), input...))
	m.rec.mu.Unlock()
	return m.respond(ctx, input)
}

func (m *Model) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools returns a copy bound to tools that records into the same history.
func (m *Model) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &Model{respond: m.respond, rec: m.rec, tools: tools}, nil
}

func (m *Model) Tools() []*schema.ToolInfo {
	return m.tools
}

func (m *Model) Calls() [][]*schema.Message {
	m.rec.mu.Lock()
	defer m.rec.mu.Unlock()
	return append([][]*schema.Message(nil), m.rec.calls...)
}

// Prompt joins the contents of every message.
func Prompt(msgs []*schema.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n")
}
