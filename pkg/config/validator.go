package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors joins a Validate result into a single error.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, msg string) {
		errors = append(errors, ValidationError{Field: field, Message: msg})
	}

	switch c.LLM.Provider {
	case ProviderOllama:
		if c.LLM.BaseURL == "" {
			add("llm.base_url", "Ollama base URL is required")
		} else if !validURL(c.LLM.BaseURL) {
			add("llm.base_url", "invalid Ollama base URL")
		}
	case ProviderOpenAI:
		if c.LLM.OpenAIKey == "" {
			add("llm.openai_api_key", "OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderAnthropic:
		if c.LLM.AnthropicKey == "" {
			add("llm.anthropic_api_key", "ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	default:
		add("llm.provider", fmt.Sprintf("unknown provider: %q", c.LLM.Provider))
	}

	switch c.LLM.EmbeddingProvider {
	case ProviderOllama, ProviderOpenAI:
	default:
		add("llm.embedding_provider", fmt.Sprintf("unsupported embedding provider: %q", c.LLM.EmbeddingProvider))
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		add("llm.max_tokens", "max_tokens must be between 1 and 8192")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", "temperature must be between 0 and 2")
	}
	if c.LLM.RequestsPerSecond < 0 {
		add("llm.requests_per_second", "requests_per_second must not be negative")
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			add("store.path", "path is required for the file backend")
		}
	case BackendPGVector:
		if c.Store.DatabaseURL == "" {
			add("store.database_url", "database URL is required for the pgvector backend")
		} else if !validURL(c.Store.DatabaseURL) {
			add("store.database_url", "invalid database URL")
		}
	case BackendChroma:
		if !validURL(c.Store.ChromaURL) {
			add("store.chroma_url", "invalid chroma URL")
		}
	default:
		add("store.backend", fmt.Sprintf("unknown backend: %q", c.Store.Backend))
	}
	if c.Store.VectorDim < 1 {
		add("store.vector_dim", "vector_dim must be positive")
	}
	if c.Store.BatchSize < 1 {
		add("store.batch_size", "batch_size must be positive")
	}

	if c.Cache.RedisURL != "" && !strings.HasPrefix(c.Cache.RedisURL, "redis://") && !strings.HasPrefix(c.Cache.RedisURL, "rediss://") {
		add("cache.redis_url", "redis URL must start with redis:// or rediss://")
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl", "ttl must not be negative")
	}

	if c.Scraper.MaxDepth < 1 {
		add("scraper.max_depth", "max_depth must be positive")
	}
	if c.Scraper.RateLimit <= 0 {
		add("scraper.rate_limit", "rate_limit must be positive")
	}
	for _, ext := range c.Scraper.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			add("scraper.allowed_extensions", fmt.Sprintf("invalid extension format: %s", ext))
		}
	}

	if c.Processor.ChunkSize < 1 {
		add("processor.chunk_size", "chunk_size must be positive")
	}
	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		add("processor.chunk_overlap", "chunk_overlap must be non-negative and less than chunk_size")
	}
	if c.Processor.BreakpointPercentile <= 0 || c.Processor.BreakpointPercentile > 100 {
		add("processor.breakpoint_percentile", "breakpoint_percentile must be in (0, 100]")
	}

	if c.RAG.TopK < 1 {
		add("rag.top_k", "top_k must be positive")
	}
	if c.RAG.RelevanceConcurrency < 1 {
		add("rag.relevance_concurrency", "relevance_concurrency must be positive")
	}
	if c.Server.MaxInFlight < 1 {
		add("server.max_in_flight", "max_in_flight must be positive")
	}
	if c.Parallel.MaxConcurrency < 1 {
		add("parallel.max_concurrency", "max_concurrency must be positive")
	}
	if c.Parallel.Votes < 2 {
		add("parallel.votes", "votes must be at least 2")
	}
	if c.Reflection.MaxIterations < 1 {
		add("reflection.max_iterations", "max_iterations must be positive")
	}
	if c.Tools.MaxSteps < 2 {
		add("tools.max_steps", "max_steps must be at least 2")
	}
	if c.Data.PreviewItems < 1 {
		add("data.preview_items", "preview_items must be positive")
	}

	return errors
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
