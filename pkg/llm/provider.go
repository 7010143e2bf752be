package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/agentic/pkg/config"
)

const defaultOllamaURL = "http://localhost:11434"

// NewLLM creates a langchaingo model for the configured provider.
func NewLLM(cfg config.LLMConfig, modelName string) (llms.Model, error) {
	var (
		llm llms.Model
		err error
	)

	switch cfg.Provider {
	case config.ProviderOllama, "":
		llm, err = ollama.New(
			ollama.WithModel(modelName),
			ollama.WithServerURL(ollamaURL(cfg)),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(modelName),
			openai.WithToken(cfg.OpenAIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case config.ProviderAnthropic:
		llm, err = anthropic.New(
			anthropic.WithModel(modelName),
			anthropic.WithToken(cfg.AnthropicKey),
		)
	default:
		return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s model %s: %w", cfg.Provider, modelName, err)
	}

	return llm, nil
}

// NewEmbeddingClient creates the langchaingo embedder for the configured
// embedding provider.
func NewEmbeddingClient(cfg config.LLMConfig) (embeddings.Embedder, error) {
	var (
		client embeddings.EmbedderClient
		err    error
	)

	switch cfg.EmbeddingProvider {
	case config.ProviderOllama, "":
		client, err = ollama.New(
			ollama.WithModel(cfg.EmbeddingModel),
			ollama.WithServerURL(ollamaURL(cfg)),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIKey),
			openai.WithEmbeddingModel(cfg.EmbeddingModel),
		}
		if cfg.BaseURL != "" && cfg.Provider == config.ProviderOpenAI {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.EmbeddingProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}

func ollamaURL(cfg config.LLMConfig) string {
	if cfg.Provider == config.ProviderOllama && cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return defaultOllamaURL
}
