package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"
)

var ErrNoChoices = errors.New("model returned no choices")

// ChatConfig represents the per-handle settings of a chat model.
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	// Limiter paces requests when set. Handles built from the same config
	// share it.
	Limiter *rate.Limiter
}

// ChatModel adapts a langchaingo model to eino's tool calling chat model, so
// the same provider clients can be placed in chains, graphs and agents.
type ChatModel struct {
	config ChatConfig
	llm    llms.Model
	tools  []llms.Tool
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)

func NewChatModel(llm llms.Model, config ChatConfig) *ChatModel {
	return &ChatModel{
		config: config,
		llm:    llm,
	}
}

func (cm *ChatModel) GetType() string {
	return "LangChainGo"
}

// WithTools returns a copy of the model bound to the given tools.
func (cm *ChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted, err := toLLMTools(tools)
	if err != nil {
		return nil, err
	}
	return &ChatModel{
		config: cm.config,
		llm:    cm.llm,
		tools:  converted,
	}, nil
}

func (cm *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	callOpts, err := cm.callOptions(opts)
	if err != nil {
		return nil, err
	}
	return cm.generate(ctx, input, callOpts)
}

// Stream emits content chunks as they arrive and a final chunk carrying tool
// calls and usage. When tools are bound the response is delivered as a single
// chunk, since providers stream raw tool call JSON through the same callback.
func (cm *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	callOpts, err := cm.callOptions(opts)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](16)

	go func() {
		defer sw.Close()

		streamed := false
		if len(cm.tools) == 0 {
			callOpts = append(callOpts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				streamed = true
				if closed := sw.Send(&schema.Message{Role: schema.Assistant, Content: string(chunk)}, nil); closed {
					return errors.New("stream closed by reader")
				}
				return nil
			}))
		}

		msg, err := cm.generate(ctx, input, callOpts)
		if err != nil {
			sw.Send(nil, err)
			return
		}

		if streamed {
			msg.Content = ""
		}
		sw.Send(msg, nil)
	}()

	return sr, nil
}

func (cm *ChatModel) generate(ctx context.Context, input []*schema.Message, callOpts []llms.CallOption) (*schema.Message, error) {
	if cm.config.Limiter != nil {
		if err := cm.config.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
	}

	content, err := toMessageContent(input)
	if err != nil {
		return nil, err
	}

	resp, err := cm.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("chat error: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, ErrNoChoices
	}

	return fromChoice(resp.Choices[0]), nil
}

func (cm *ChatModel) callOptions(opts []model.Option) ([]llms.CallOption, error) {
	temperature := float32(cm.config.Temperature)
	maxTokens := cm.config.MaxTokens
	modelName := cm.config.Model

	options := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Model:       &modelName,
	}, opts...)

	var callOpts []llms.CallOption
	if options.Model != nil && *options.Model != "" {
		callOpts = append(callOpts, llms.WithModel(*options.Model))
	}
	if options.Temperature != nil {
		callOpts = append(callOpts, llms.WithTemperature(float64(*options.Temperature)))
	}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(*options.MaxTokens))
	}
	if options.TopP != nil {
		callOpts = append(callOpts, llms.WithTopP(float64(*options.TopP)))
	}
	if len(options.Stop) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(options.Stop))
	}

	tools := cm.tools
	if len(options.Tools) > 0 {
		converted, err := toLLMTools(options.Tools)
		if err != nil {
			return nil, err
		}
		tools = converted
	}
	if len(tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(tools))
	}

	return callOpts, nil
}

func toMessageContent(input []*schema.Message) ([]llms.MessageContent, error) {
	content := make([]llms.MessageContent, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))
		case schema.User:
			content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		case schema.Assistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if msg.Content != "" {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			content = append(content, mc)
		case schema.Tool:
			content = append(content, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: msg.ToolCallID,
						Name:       msg.ToolName,
						Content:    msg.Content,
					},
				},
			})
		default:
			return nil, fmt.Errorf("unsupported message role: %q", msg.Role)
		}
	}
	return content, nil
}

func fromChoice(choice *llms.ContentChoice) *schema.Message {
	msg := &schema.Message{
		Role:    schema.Assistant,
		Content: choice.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: choice.StopReason,
			Usage:        usageFrom(choice.GenerationInfo),
		},
	}

	for i, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			ID:   id,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			},
		})
	}

	return msg
}

// usageFrom reads token counts from provider generation info. OpenAI and
// Ollama report Prompt/Completion tokens, Anthropic reports Input/Output.
func usageFrom(info map[string]any) *schema.TokenUsage {
	if len(info) == 0 {
		return nil
	}

	usage := &schema.TokenUsage{
		PromptTokens:     firstInt(info, "PromptTokens", "InputTokens"),
		CompletionTokens: firstInt(info, "CompletionTokens", "OutputTokens"),
		TotalTokens:      firstInt(info, "TotalTokens"),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	if usage.TotalTokens == 0 {
		return nil
	}
	return usage
}

func firstInt(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

func toLLMTools(tools []*schema.ToolInfo) ([]llms.Tool, error) {
	converted := make([]llms.Tool, 0, len(tools))
	for _, info := range tools {
		if info == nil {
			continue
		}

		var params any = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("failed to convert parameters of tool %s: %w", info.Name, err)
			}
			if js != nil {
				params = js
			}
		}

		converted = append(converted, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        info.Name,
				Description: info.Desc,
				Parameters:  params,
			},
		})
	}
	return converted, nil
}
