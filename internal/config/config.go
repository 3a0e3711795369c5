package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"shopassist/internal/logger"
)

// RedisConfig holds Redis connection settings. URL is a redis:// URL as
// accepted by redis.ParseURL.
type RedisConfig struct {
	URL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
}

// LLMConfig holds settings for the external language services.
type LLMConfig struct {
	Provider       string  `envconfig:"CHAT_PROVIDER" default:"openai"` // openai or ollama
	APIKey         string  `envconfig:"OPENAI_API_KEY"`
	BaseURL        string  `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	ChatModel      string  `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	OllamaBaseURL  string  `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	EmbeddingModel string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	MaxTokens      int     `envconfig:"CHAT_MAX_TOKENS" default:"1500"`
	Temperature    float64 `envconfig:"CHAT_TEMPERATURE" default:"0.4"`
}

// CatalogConfig points at the on-disk vector store artifacts produced by the
// indexer.
type CatalogConfig struct {
	VectorsPath    string `envconfig:"CATALOG_VECTORS_PATH" default:"data/vector_store/products.vectors.json"`
	MetadataPath   string `envconfig:"CATALOG_METADATA_PATH" default:"data/vector_store/products_meta.json"`
	CategoriesPath string `envconfig:"CATALOG_CATEGORIES_PATH" default:"config/categories.yaml"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `envconfig:"SERVER_ADDR" default:":8000"`
}

// Config is the full process configuration, assembled from the environment.
type Config struct {
	Log     logger.Config `envconfig:""`
	Redis   RedisConfig   `envconfig:""`
	LLM     LLMConfig     `envconfig:""`
	Catalog CatalogConfig `envconfig:""`
	Server  ServerConfig  `envconfig:""`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}
	return &config, nil
}
