package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	BackendFile     = "file"
	BackendPGVector = "pgvector"
	BackendChroma   = "chroma"
)

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Processor  ProcessorConfig  `yaml:"processor"`
	RAG        RAGConfig        `yaml:"rag"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Reflection ReflectionConfig `yaml:"reflection"`
	Tools      ToolsConfig      `yaml:"tools"`
	Data       DataConfig       `yaml:"data"`
	Server     ServerConfig     `yaml:"server"`
	UI         UIConfig         `yaml:"ui"`
}

// LLMConfig holds the provider settings shared by the fast and smart model
// handles.
type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	OpenAIKey         string  `yaml:"openai_api_key"`
	AnthropicKey      string  `yaml:"anthropic_api_key"`
	FastModel         string  `yaml:"fast_model"`
	SmartModel        string  `yaml:"smart_model"`
	EmbeddingProvider string  `yaml:"embedding_provider"`
	EmbeddingModel    string  `yaml:"embedding_model"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
	TableName   string `yaml:"table_name"`
	VectorDim   int    `yaml:"vector_dim"`
	BatchSize   int    `yaml:"batch_size"`
	ChromaURL   string `yaml:"chroma_url"`
	Collection  string `yaml:"collection"`
}

// CacheConfig configures the Redis embedding cache. An empty RedisURL
// disables caching.
type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type ScraperConfig struct {
	MaxDepth          int      `yaml:"max_depth"`
	MaxPages          int      `yaml:"max_pages"`
	RateLimit         float64  `yaml:"rate_limit"`
	UserAgent         string   `yaml:"user_agent"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ProcessorConfig struct {
	ChunkSize            int     `yaml:"chunk_size"`
	ChunkOverlap         int     `yaml:"chunk_overlap"`
	RemoveStopwords      bool    `yaml:"remove_stopwords"`
	BreakpointPercentile float64 `yaml:"breakpoint_percentile"`
	MinChunkLength       int     `yaml:"min_chunk_length"`
}

type RAGConfig struct {
	TopK                 int `yaml:"top_k"`
	RelevanceConcurrency int `yaml:"relevance_concurrency"`
}

type ParallelConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
	Votes          int `yaml:"votes"`
}

type ReflectionConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

type ToolsConfig struct {
	MaxSteps int `yaml:"max_steps"`
}

type DataConfig struct {
	CacheDir     string `yaml:"cache_dir"`
	OutputDir    string `yaml:"output_dir"`
	PreviewItems int    `yaml:"preview_items"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MaxInFlight caps concurrently handled messages per websocket.
	MaxInFlight int `yaml:"max_in_flight"`
}

type UIConfig struct {
	Streaming bool   `yaml:"streaming"`
	Theme     string `yaml:"theme"`
}

// LoadConfig reads the YAML file at path, or the first file found in the
// default locations when path is empty. Environment variables (including a
// .env file in the working directory) override file values, and defaults fill
// whatever is still unset.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func findConfigFile() string {
	locations := []string{
		"agentic.yaml",
		"agentic.yml",
		filepath.Join(os.Getenv("HOME"), ".config/agentic/config.yaml"),
		"/etc/agentic/config.yaml",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

func getDefaultConfig() *Config {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config
}

// Default returns a configuration with every default applied and no
// environment overrides.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	applyLLMDefaults(&config.LLM)

	if config.Store.Backend == "" {
		config.Store.Backend = BackendFile
	}
	if config.Store.Path == "" {
		config.Store.Path = filepath.Join(".agentic", "index.json")
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "chunks"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}
	if config.Store.BatchSize == 0 {
		config.Store.BatchSize = 100
	}
	if config.Store.ChromaURL == "" {
		config.Store.ChromaURL = "http://localhost:8000"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "agentic"
	}

	if config.Cache.TTL == 0 {
		config.Cache.TTL = 7 * 24 * time.Hour
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 2
	}
	if config.Scraper.MaxPages == 0 {
		config.Scraper.MaxPages = 50
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.UserAgent == "" {
		config.Scraper.UserAgent = "agentic/1.0"
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}
	if config.Processor.BreakpointPercentile == 0 {
		config.Processor.BreakpointPercentile = 95
	}
	if config.Processor.MinChunkLength == 0 {
		config.Processor.MinChunkLength = 100
	}

	if config.RAG.TopK == 0 {
		config.RAG.TopK = 8
	}
	if config.RAG.RelevanceConcurrency == 0 {
		config.RAG.RelevanceConcurrency = 4
	}

	if config.Parallel.MaxConcurrency == 0 {
		config.Parallel.MaxConcurrency = 4
	}
	if config.Parallel.Votes == 0 {
		config.Parallel.Votes = 3
	}

	if config.Reflection.MaxIterations == 0 {
		config.Reflection.MaxIterations = 3
	}

	if config.Tools.MaxSteps == 0 {
		config.Tools.MaxSteps = 12
	}

	if config.Data.CacheDir == "" {
		config.Data.CacheDir = filepath.Join(".agentic", "cache")
	}
	if config.Data.OutputDir == "" {
		config.Data.OutputDir = "output"
	}
	if config.Data.PreviewItems == 0 {
		config.Data.PreviewItems = 5
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxInFlight == 0 {
		config.Server.MaxInFlight = 4
	}

	if config.UI.Theme == "" {
		config.UI.Theme = "default"
	}
}

func applyLLMDefaults(c *LLMConfig) {
	if c.Provider == "" {
		c.Provider = ProviderOllama
	}
	if c.EmbeddingProvider == "" {
		// Anthropic has no embeddings endpoint.
		c.EmbeddingProvider = c.Provider
		if c.Provider == ProviderAnthropic {
			c.EmbeddingProvider = ProviderOllama
		}
	}

	switch c.Provider {
	case ProviderOpenAI:
		setDefault(&c.FastModel, "gpt-4o-mini")
		setDefault(&c.SmartModel, "gpt-4o")
	case ProviderAnthropic:
		setDefault(&c.FastModel, "claude-3-5-haiku-latest")
		setDefault(&c.SmartModel, "claude-3-5-sonnet-latest")
	default:
		setDefault(&c.FastModel, "llama3.2")
		setDefault(&c.SmartModel, "llama3.1:8b")
	}

	switch c.EmbeddingProvider {
	case ProviderOpenAI:
		setDefault(&c.EmbeddingModel, "text-embedding-3-small")
	default:
		setDefault(&c.EmbeddingModel, "nomic-embed-text")
	}

	if c.BaseURL == "" && c.Provider == ProviderOllama {
		c.BaseURL = "http://localhost:11434"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func mergeWithEnv(config *Config) {
	if provider := os.Getenv("AGENTIC_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.OpenAIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.LLM.AnthropicKey = key
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.DatabaseURL = dbURL
	}
	if chromaURL := os.Getenv("CHROMA_URL"); chromaURL != "" {
		config.Store.ChromaURL = chromaURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Cache.RedisURL = redisURL
	}
}
