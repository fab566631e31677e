package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvDBPath         = "NEUMANN_DB_PATH"
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvEmbeddingModel = "NEUMANN_EMBEDDING_MODEL"
	EnvLinesPerChunk  = "NEUMANN_LINES_PER_CHUNK"
	EnvOverlap        = "NEUMANN_OVERLAP"
	EnvAssetBaseURL   = "NEUMANN_ASSET_BASE_URL"
)

// Defaults
const (
	DefaultDBPath         = "~/.neumann/index.db"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultLinesPerChunk  = 180
	DefaultOverlap        = 30
	DefaultAssetBaseURL   = "http://127.0.0.1:8000"
)

var (
	// ErrInvalidConfig is returned when chunking parameters are inconsistent.
	// It is fatal: the caller must fix configuration, it is never retried.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrMissingAPIKey is returned when an operation needs the embedding
	// provider but no API key is configured.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY is required for summaries/embeddings")
)

// Config holds all runtime configuration, loaded from environment variables
// with optional .env file support.
type Config struct {
	DBPath         string
	OpenAIAPIKey   string
	EmbeddingModel string
	LinesPerChunk  int
	Overlap        int
	AssetBaseURL   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	// Ignore a missing .env; only explicit parse failures matter.
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:         getEnvDefault(EnvDBPath, DefaultDBPath),
		OpenAIAPIKey:   os.Getenv(EnvOpenAIAPIKey),
		EmbeddingModel: getEnvDefault(EnvEmbeddingModel, DefaultEmbeddingModel),
		LinesPerChunk:  DefaultLinesPerChunk,
		Overlap:        DefaultOverlap,
		AssetBaseURL:   getEnvDefault(EnvAssetBaseURL, DefaultAssetBaseURL),
	}

	var err error
	if cfg.LinesPerChunk, err = getEnvInt(EnvLinesPerChunk, DefaultLinesPerChunk); err != nil {
		return nil, err
	}
	if cfg.Overlap, err = getEnvInt(EnvOverlap, DefaultOverlap); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks parameter consistency.
func (c *Config) Validate() error {
	if c.LinesPerChunk <= 0 {
		return fmt.Errorf("%w: lines per chunk must be positive, got %d", ErrInvalidConfig, c.LinesPerChunk)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.LinesPerChunk {
		return fmt.Errorf("%w: overlap (%d) must be less than lines per chunk (%d)",
			ErrInvalidConfig, c.Overlap, c.LinesPerChunk)
	}
	return nil
}

// HasOpenAIKey reports whether the embedding provider is configured.
func (c *Config) HasOpenAIKey() bool {
	return c.OpenAIAPIKey != ""
}

// RequireOpenAI returns an error when the embedding provider is not configured.
func (c *Config) RequireOpenAI() error {
	if !c.HasOpenAIKey() {
		return ErrMissingAPIKey
	}
	return nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidConfig, key, v)
	}
	return n, nil
}
