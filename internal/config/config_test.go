package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		AI:        AIConfig{LLMProvider: "ollama", GeneratorModel: "gemma3:latest"},
		Database:  DBConfig{Driver: "sqlite"},
		Review:    ReviewConfig{FileTimeout: time.Minute, DedupBackend: "memory"},
		Knowledge: KnowledgeConfig{ChunkSize: 1000, ChunkOverlap: 200},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "Valid config", mutate: func(_ *Config) {}},
		{name: "Unknown provider", mutate: func(c *Config) { c.AI.LLMProvider = "openai" }, wantErr: true},
		{name: "Gemini without key", mutate: func(c *Config) { c.AI.LLMProvider = "gemini" }, wantErr: true},
		{
			name: "Anthropic with key",
			mutate: func(c *Config) {
				c.AI.LLMProvider = "anthropic"
				c.AI.AnthropicAPIKey = "sk-test"
			},
		},
		{name: "Anthropic without key", mutate: func(c *Config) { c.AI.LLMProvider = "anthropic" }, wantErr: true},
		{name: "Empty generator model", mutate: func(c *Config) { c.AI.GeneratorModel = "" }, wantErr: true},
		{name: "Unknown database driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "Unknown dedup backend", mutate: func(c *Config) { c.Review.DedupBackend = "redis" }, wantErr: true},
		{name: "Zero file timeout", mutate: func(c *Config) { c.Review.FileTimeout = 0 }, wantErr: true},
		{name: "Negative concurrency", mutate: func(c *Config) { c.Review.MaxConcurrency = -1 }, wantErr: true},
		{name: "Overlap not below chunk size", mutate: func(c *Config) { c.Knowledge.ChunkOverlap = 1000 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REVAI_REVIEW_FILE_TIMEOUT", "90s")
	t.Setenv("REVAI_AI_GENERATOR_MODEL", "llama3.2")
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.AI.LLMProvider)
	assert.Equal(t, "llama3.2", cfg.AI.GeneratorModel)
	assert.Equal(t, "llama3.2", cfg.AI.SummaryModelName())
	assert.Equal(t, "sk-from-env", cfg.AI.AnthropicAPIKey)
	assert.Equal(t, 90*time.Second, cfg.Review.FileTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 200, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 100, cfg.Knowledge.BatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.Review.StateTTL)
	assert.Equal(t, 24*time.Hour, cfg.Review.ResultTTL)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	content := "ai:\n  llm_provider: gemini\n  gemini_api_key: g-key\nreview:\n  max_concurrency: 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.AI.LLMProvider)
	assert.Equal(t, "g-key", cfg.AI.GeminiAPIKey)
	assert.Equal(t, 3, cfg.Review.MaxConcurrency)
}

func TestLoadRepoConfig(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := LoadRepoConfig(t.TempDir())
		assert.ErrorIs(t, err, ErrConfigNotFound)
		require.NotNil(t, cfg)
		assert.Contains(t, cfg.ExcludeDirs, "vendor")
	})

	t.Run("parses custom values", func(t *testing.T) {
		dir := t.TempDir()
		body := "custom_instructions:\n  - Prefer table-driven tests\nexclude_exts: [\".md\"]\nmax_file_bytes: 1024\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, RepoConfigFile), []byte(body), 0o600))

		cfg, err := LoadRepoConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"Prefer table-driven tests"}, cfg.CustomInstructions)
		assert.Equal(t, []string{".md"}, cfg.ExcludeExts)
		assert.Equal(t, int64(1024), cfg.MaxFileBytes)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, RepoConfigFile), []byte("exclude_dirs: [unclosed"), 0o600))

		_, err := LoadRepoConfig(dir)
		assert.ErrorIs(t, err, ErrConfigParsing)
	})
}
