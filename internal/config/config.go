package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/montarelab/rev-ai/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Database  DBConfig        `mapstructure:"database"`
	Review    ReviewConfig    `mapstructure:"review"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Logging   logger.Config   `mapstructure:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AIConfig selects and tunes the model providers.
type AIConfig struct {
	LLMProvider       string        `mapstructure:"llm_provider"`
	GeneratorModel    string        `mapstructure:"generator_model"`
	SummaryModel      string        `mapstructure:"summary_model"`
	EmbedderProvider  string        `mapstructure:"embedder_provider"`
	EmbedderModel     string        `mapstructure:"embedder_model"`
	OllamaHost        string        `mapstructure:"ollama_host"`
	QdrantHost        string        `mapstructure:"qdrant_host"`
	GeminiAPIKey      string        `mapstructure:"gemini_api_key"`
	AnthropicAPIKey   string        `mapstructure:"anthropic_api_key"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	MaxContextTokens  int           `mapstructure:"max_context_tokens"`
	MaxAgentSteps     int           `mapstructure:"max_agent_steps"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	OpenTimeout       time.Duration `mapstructure:"open_timeout"`
}

// DBConfig configures the relational store used for run history and the dedup ledger.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// ReviewConfig tunes the orchestration core.
type ReviewConfig struct {
	FileTimeout    time.Duration `mapstructure:"file_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxJobs        int           `mapstructure:"max_jobs"`
	DedupBackend   string        `mapstructure:"dedup_backend"`
	DedupTTL       time.Duration `mapstructure:"dedup_ttl"`
	StateTTL       time.Duration `mapstructure:"state_ttl"`
	ResultTTL      time.Duration `mapstructure:"result_ttl"`
	KeepRaw        bool          `mapstructure:"keep_raw"`
	Fetch          bool          `mapstructure:"fetch"`
}

// KnowledgeConfig configures the knowledge base loader and retriever.
type KnowledgeConfig struct {
	Collection   string `mapstructure:"collection"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	BatchSize    int    `mapstructure:"batch_size"`
	TopK         int    `mapstructure:"top_k"`
	Enabled      bool   `mapstructure:"enabled"`
}

// GitHubConfig holds the token used to comment on pull requests.
type GitHubConfig struct {
	Token  string `mapstructure:"token"`
	APIURL string `mapstructure:"api_url"`
}

var (
	validProviders     = map[string]bool{"ollama": true, "gemini": true, "anthropic": true}
	validDBDrivers     = map[string]bool{"sqlite": true, "postgres": true}
	validDedupBackends = map[string]bool{"memory": true, "database": true}
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// SetDefaults registers every configuration key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "20s")

	v.SetDefault("ai.llm_provider", "ollama")
	v.SetDefault("ai.generator_model", "gemma3:latest")
	v.SetDefault("ai.summary_model", "")
	v.SetDefault("ai.embedder_provider", "ollama")
	v.SetDefault("ai.embedder_model", "nomic-embed-text")
	v.SetDefault("ai.ollama_host", "http://localhost:11434")
	v.SetDefault("ai.qdrant_host", "localhost:6334")
	v.SetDefault("ai.gemini_api_key", "")
	v.SetDefault("ai.anthropic_api_key", "")
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("ai.max_context_tokens", 32000)
	v.SetDefault("ai.max_agent_steps", 8)
	v.SetDefault("ai.requests_per_second", 2.0)
	v.SetDefault("ai.burst", 4)
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("ai.initial_backoff", time.Second)
	v.SetDefault("ai.failure_threshold", 5)
	v.SetDefault("ai.open_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", ".rev-ai/rev-ai.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "rev-ai")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "rev_ai")
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("review.file_timeout", 5*time.Minute)
	v.SetDefault("review.max_concurrency", 0)
	v.SetDefault("review.max_jobs", 2)
	v.SetDefault("review.dedup_backend", "memory")
	v.SetDefault("review.dedup_ttl", 24*time.Hour)
	v.SetDefault("review.state_ttl", time.Hour)
	v.SetDefault("review.result_ttl", 24*time.Hour)
	v.SetDefault("review.keep_raw", true)
	v.SetDefault("review.fetch", false)

	v.SetDefault("knowledge.collection", "knowledge_base")
	v.SetDefault("knowledge.chunk_size", 1000)
	v.SetDefault("knowledge.chunk_overlap", 200)
	v.SetDefault("knowledge.batch_size", 100)
	v.SetDefault("knowledge.top_k", 4)
	v.SetDefault("knowledge.enabled", false)

	v.SetDefault("github.token", "")
	v.SetDefault("github.api_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
}

// LoadConfig reads configuration from config.yaml (if present) and REVAI_*
// environment variables on top of the defaults, and validates the result.
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load is LoadConfig against an explicit viper instance.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.rev-ai")

	v.SetEnvPrefix("REVAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Well-known provider variables work without the prefix.
	_ = v.BindEnv("ai.gemini_api_key", "REVAI_AI_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("ai.anthropic_api_key", "REVAI_AI_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("github.token", "REVAI_GITHUB_TOKEN", "GITHUB_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if !validProviders[c.AI.LLMProvider] {
		return fmt.Errorf("%w: unsupported LLM provider %q", ErrInvalidConfig, c.AI.LLMProvider)
	}
	if c.AI.LLMProvider == "gemini" && c.AI.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY must be set for the gemini provider", ErrInvalidConfig)
	}
	if c.AI.LLMProvider == "anthropic" && c.AI.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY must be set for the anthropic provider", ErrInvalidConfig)
	}
	if c.AI.GeneratorModel == "" {
		return fmt.Errorf("%w: generator model cannot be empty", ErrInvalidConfig)
	}
	if !validDBDrivers[c.Database.Driver] {
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if !validDedupBackends[c.Review.DedupBackend] {
		return fmt.Errorf("%w: unsupported dedup backend %q", ErrInvalidConfig, c.Review.DedupBackend)
	}
	if c.Review.FileTimeout <= 0 {
		return fmt.Errorf("%w: review file timeout must be positive", ErrInvalidConfig)
	}
	if c.Review.MaxConcurrency < 0 {
		return fmt.Errorf("%w: review max concurrency cannot be negative", ErrInvalidConfig)
	}
	if c.Knowledge.ChunkSize <= 0 || c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return fmt.Errorf("%w: knowledge chunk overlap must be in [0, chunk_size)", ErrInvalidConfig)
	}
	return nil
}

// SummaryModelName returns the model used for aggregation, defaulting to the generator model.
func (c *AIConfig) SummaryModelName() string {
	if c.SummaryModel != "" {
		return c.SummaryModel
	}
	return c.GeneratorModel
}

// LogLevel parses the configured level string.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		slog.Warn("unrecognized log level, defaulting to info", "provided", c.Logging.Level)
		return slog.LevelInfo
	}
	return level
}
