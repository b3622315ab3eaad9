// ABOUTME: Centralized configuration for ragcore
// ABOUTME: Loads from environment variables and an optional YAML file, with validation and defaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/harper/ragcore/internal/embedding"
	"github.com/harper/ragcore/internal/index"
	"github.com/harper/ragcore/internal/llm"
	"github.com/harper/ragcore/internal/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Embedders
const (
	EmbedderOpenAI = "openai"
	EmbedderHash   = "hash"
)

// Config holds all configuration for ragcore
type Config struct {
	// Endpoint settings
	APIKey           string        `yaml:"api_key"`
	BaseURL          string        `yaml:"base_url"`
	ChatModel        string        `yaml:"chat_model"`
	EmbeddingModel   string        `yaml:"embedding_model"`
	EmbeddingBaseURL string        `yaml:"embedding_base_url"`
	Embedder         string        `yaml:"embedder"`
	Dimension        int           `yaml:"dimension"`
	EmbedBatchSize   int           `yaml:"embed_batch_size"`
	EmbedConcurrency int           `yaml:"embed_concurrency"`
	TopP             float64       `yaml:"top_p"`
	SystemPrompt     string        `yaml:"system_prompt"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`

	// Storage settings
	Backend       string `yaml:"backend"`
	DataDir       string `yaml:"data_dir"`
	KnowledgeBase string `yaml:"knowledge_base"`
	DBPath        string `yaml:"db_path"`
	Collection    string `yaml:"collection"`

	// Charm settings
	CharmHost   string `yaml:"charm_host"`
	CharmDBName string `yaml:"charm_db"`
	AutoSync    bool   `yaml:"auto_sync"`

	LogLevel string `yaml:"log_level"`

	// Retrieval and generation settings
	RAG models.RagConfig `yaml:"rag"`
}

// DefaultDataDir is where knowledge bases live unless configured otherwise
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, "ragcore")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := fromEnv()
	return cfg, cfg.Validate()
}

// LoadFile overlays the YAML file at path on the environment configuration.
// An empty path is the same as Load.
func LoadFile(path string) (*Config, error) {
	cfg := fromEnv()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.NotFoundf("config file %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	dataDir := cfg.DataDir
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, models.Validationf("invalid config file %s: %v", path, err)
	}
	// Paths derived from the data dir follow it when only the dir was overridden
	if cfg.DataDir != dataDir {
		if cfg.KnowledgeBase == filepath.Join(dataDir, "knowledge_base.json") {
			cfg.KnowledgeBase = filepath.Join(cfg.DataDir, "knowledge_base.json")
		}
		if cfg.DBPath == filepath.Join(dataDir, "ragcore.db") {
			cfg.DBPath = filepath.Join(cfg.DataDir, "ragcore.db")
		}
	}
	return cfg, cfg.Validate()
}

// LoadEnvFiles loads .env files into the environment; missing files are skipped
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func fromEnv() *Config {
	dataDir := getEnv("RAGCORE_DATA_DIR", DefaultDataDir())
	defaults := models.DefaultRagConfig()

	apiKey := os.Getenv("RAGCORE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return &Config{
		APIKey:           apiKey,
		BaseURL:          getEnv("RAGCORE_BASE_URL", llm.DefaultBaseURL),
		ChatModel:        getEnv("RAGCORE_CHAT_MODEL", llm.DefaultChatModel),
		EmbeddingModel:   getEnv("RAGCORE_EMBEDDING_MODEL", embedding.DefaultModel),
		EmbeddingBaseURL: os.Getenv("RAGCORE_EMBEDDING_BASE_URL"),
		Embedder:         getEnv("RAGCORE_EMBEDDER", EmbedderOpenAI),
		Dimension:        getEnvInt("RAGCORE_DIMENSION", index.DefaultDimension),
		EmbedBatchSize:   getEnvInt("RAGCORE_EMBED_BATCH_SIZE", 32),
		EmbedConcurrency: getEnvInt("RAGCORE_EMBED_CONCURRENCY", 4),
		TopP:             getEnvFloat("RAGCORE_TOP_P", 0.9),
		SystemPrompt:     os.Getenv("RAGCORE_SYSTEM_PROMPT"),
		Timeout:          getEnvDuration("RAGCORE_TIMEOUT", 30*time.Second),
		MaxRetries:       getEnvInt("RAGCORE_MAX_RETRIES", 3),
		RetryDelay:       getEnvDuration("RAGCORE_RETRY_DELAY", time.Second),

		Backend:       getEnv("RAGCORE_BACKEND", BackendMemory),
		DataDir:       dataDir,
		KnowledgeBase: getEnv("RAGCORE_KB_PATH", filepath.Join(dataDir, "knowledge_base.json")),
		DBPath:        getEnv("RAGCORE_DB_PATH", filepath.Join(dataDir, "ragcore.db")),
		Collection:    getEnv("RAGCORE_COLLECTION", index.DefaultConfig().CollectionName),

		CharmHost:   getEnv("CHARM_HOST", "cloud.charm.sh"),
		CharmDBName: getEnv("CHARM_DB", "ragcore"),
		AutoSync:    getEnvBool("CHARM_AUTO_SYNC", false),

		LogLevel: getEnv("RAGCORE_LOG_LEVEL", "warn"),

		RAG: models.RagConfig{
			TopK:                getEnvInt("RAGCORE_TOP_K", defaults.TopK),
			SimilarityThreshold: getEnvFloat("RAGCORE_SIMILARITY_THRESHOLD", defaults.SimilarityThreshold),
			MaxTokens:           getEnvInt("RAGCORE_MAX_TOKENS", defaults.MaxTokens),
			Temperature:         getEnvFloat("RAGCORE_TEMPERATURE", defaults.Temperature),
			UseReranking:        getEnvBool("RAGCORE_USE_RERANKING", defaults.UseReranking),
			KeywordWeight:       getEnvFloat("RAGCORE_KEYWORD_WEIGHT", defaults.KeywordWeight),
			PromptTemplate:      os.Getenv("RAGCORE_PROMPT_TEMPLATE"),
			Chunking: models.ChunkConfig{
				Strategy:     models.ChunkStrategy(getEnv("RAGCORE_CHUNK_STRATEGY", string(defaults.Chunking.Strategy))),
				ChunkSize:    getEnvInt("RAGCORE_CHUNK_SIZE", defaults.Chunking.ChunkSize),
				OverlapSize:  getEnvInt("RAGCORE_CHUNK_OVERLAP", defaults.Chunking.OverlapSize),
				MinChunkSize: getEnvInt("RAGCORE_MIN_CHUNK_SIZE", defaults.Chunking.MinChunkSize),
				MaxChunkSize: getEnvInt("RAGCORE_MAX_CHUNK_SIZE", defaults.Chunking.MaxChunkSize),
			},
		},
	}
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	if c.Dimension < 1 {
		return models.Validationf("RAGCORE_DIMENSION must be >= 1, got %d", c.Dimension)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return models.Validationf("RAGCORE_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return models.Validationf("RAGCORE_TOP_P must be in (0, 1], got %f", c.TopP)
	}
	if c.Timeout <= 0 {
		return models.Validationf("RAGCORE_TIMEOUT must be positive, got %v", c.Timeout)
	}
	switch c.Backend {
	case BackendMemory, BackendSQLite:
	default:
		return models.Validationf("RAGCORE_BACKEND must be %s or %s, got %q", BackendMemory, BackendSQLite, c.Backend)
	}
	switch c.Embedder {
	case EmbedderOpenAI, EmbedderHash:
	default:
		return models.Validationf("RAGCORE_EMBEDDER must be %s or %s, got %q", EmbedderOpenAI, EmbedderHash, c.Embedder)
	}
	return c.RAG.Validate()
}

// HasAPIKey reports whether remote endpoints can be used
func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// EmbeddingConfig derives the embedding client configuration
func (c *Config) EmbeddingConfig() embedding.Config {
	baseURL := c.EmbeddingBaseURL
	if baseURL == "" {
		baseURL = c.BaseURL
	}
	return embedding.Config{
		APIKey:      c.APIKey,
		BaseURL:     baseURL,
		Model:       c.EmbeddingModel,
		Dimension:   c.Dimension,
		BatchSize:   c.EmbedBatchSize,
		Concurrency: c.EmbedConcurrency,
		MaxRetries:  c.MaxRetries,
		RetryDelay:  c.RetryDelay,
		Timeout:     c.Timeout,
	}
}

// GeneratorConfig derives the chat client configuration
func (c *Config) GeneratorConfig() llm.Config {
	return llm.Config{
		APIKey:       c.APIKey,
		BaseURL:      c.BaseURL,
		Model:        c.ChatModel,
		MaxTokens:    c.RAG.MaxTokens,
		Temperature:  c.RAG.Temperature,
		TopP:         c.TopP,
		Timeout:      c.Timeout,
		MaxRetries:   c.MaxRetries,
		RetryDelay:   c.RetryDelay,
		SystemPrompt: c.SystemPrompt,
	}
}

// IndexConfig derives the vector index configuration
func (c *Config) IndexConfig() index.Config {
	cfg := index.DefaultConfig()
	cfg.Dimension = c.Dimension
	cfg.CollectionName = c.Collection
	cfg.StorePath = c.KnowledgeBase
	return cfg
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
