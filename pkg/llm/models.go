package llm

import (
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/xhad/agentic/pkg/config"
	"golang.org/x/time/rate"
)

// Models holds the two pre-configured handles every example uses: a cheap,
// fast model for classification and extraction, and a stronger model for
// planning and final answers.
type Models struct {
	Fast  model.ToolCallingChatModel
	Smart model.ToolCallingChatModel
}

func NewModels(cfg config.LLMConfig) (*Models, error) {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	build := func(name string) (model.ToolCallingChatModel, error) {
		llm, err := NewLLM(cfg, name)
		if err != nil {
			return nil, err
		}
		return NewChatModel(llm, ChatConfig{
			Model:       name,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Limiter:     limiter,
		}), nil
	}

	fast, err := build(cfg.FastModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create fast model: %w", err)
	}
	smart, err := build(cfg.SmartModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create smart model: %w", err)
	}

	return &Models{Fast: fast, Smart: smart}, nil
}
