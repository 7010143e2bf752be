package llm_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/agentic/pkg/llm"
)

// fakeLLM records what it was asked and answers from a fixed choice.
type fakeLLM struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	choice   *llms.ContentChoice
	chunks   []string
	err      error
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	f.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&f.options)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.options.StreamingFunc != nil {
		for _, c := range f.chunks {
			if err := f.options.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{f.choice}}, nil
}

func TestGenerateConvertsMessages(t *testing.T) {
	fake := &fakeLLM{choice: &llms.ContentChoice{
		Content:    "Paris",
		StopReason: "stop",
		GenerationInfo: map[string]any{
			"PromptTokens":     12,
			"CompletionTokens": 3,
		},
	}}
	cm := llm.NewChatModel(fake, llm.ChatConfig{Model: "fast", Temperature: 0.2, MaxTokens: 100})

	input := []*schema.Message{
		schema.SystemMessage("be brief"),
		schema.UserMessage("capital of France?"),
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: "lookup", Arguments: `{"q":"france"}`},
		}}),
		schema.ToolMessage("Paris", "call_1", schema.WithToolName("lookup")),
	}

	resp, err := cm.Generate(context.Background(), input, model.WithTemperature(0.9))
	require.NoError(t, err)

	assert.Equal(t, schema.Assistant, resp.Role)
	assert.Equal(t, "Paris", resp.Content)
	require.NotNil(t, resp.ResponseMeta)
	assert.Equal(t, "stop", resp.ResponseMeta.FinishReason)
	require.NotNil(t, resp.ResponseMeta.Usage)
	assert.Equal(t, 15, resp.ResponseMeta.Usage.TotalTokens)

	require.Len(t, fake.messages, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, fake.messages[2].Role)
	call, ok := fake.messages[2].Parts[0].(llms.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "lookup", call.FunctionCall.Name)
	toolResp, ok := fake.messages[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", toolResp.ToolCallID)
	assert.Equal(t, "lookup", toolResp.Name)

	assert.Equal(t, "fast", fake.options.Model)
	assert.Equal(t, 100, fake.options.MaxTokens)
	assert.InDelta(t, 0.9, fake.options.Temperature, 1e-6)
}

func TestWithToolsReturnsCopy(t *testing.T) {
	fake := &fakeLLM{choice: &llms.ContentChoice{
		ToolCalls: []llms.ToolCall{{
			ID:           "abc",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "calculate", Arguments: `{"expression":"1+1"}`},
		}},
	}}
	base := llm.NewChatModel(fake, llm.ChatConfig{Model: "m"})

	bound, err := base.WithTools([]*schema.ToolInfo{{
		Name: "calculate",
		Desc: "evaluate arithmetic",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"expression": {Type: schema.String, Desc: "expression", Required: true},
		}),
	}})
	require.NoError(t, err)

	resp, err := bound.Generate(context.Background(), []*schema.Message{schema.UserMessage("1+1")})
	require.NoError(t, err)
	require.Len(t, fake.options.Tools, 1)
	assert.Equal(t, "calculate", fake.options.Tools[0].Function.Name)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "abc", resp.ToolCalls[0].ID)
	assert.Equal(t, `{"expression":"1+1"}`, resp.ToolCalls[0].Function.Arguments)

	_, err = base.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Empty(t, fake.options.Tools)
}

func TestStream(t *testing.T) {
	fake := &fakeLLM{
		choice: &llms.ContentChoice{Content: "Hello world"},
		chunks: []string{"Hello", " world"},
	}
	cm := llm.NewChatModel(fake, llm.ChatConfig{})

	sr, err := cm.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	defer sr.Close()

	var sb strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sb.WriteString(msg.Content)
	}
	assert.Equal(t, "Hello world", sb.String())
}

func TestGenerateErrors(t *testing.T) {
	cm := llm.NewChatModel(&fakeLLM{err: errors.New("boom")}, llm.ChatConfig{})
	_, err := cm.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.ErrorContains(t, err, "boom")

	empty := llm.NewChatModel(&fakeLLM{}, llm.ChatConfig{})
	_, err = empty.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.ErrorIs(t, err, llm.ErrNoChoices)
}
