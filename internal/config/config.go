// Package config provides configuration loading for ragd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with hardcoded defaults as the base layer.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete ragd configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Retrieval   RetrievalConfig   `koanf:"retrieval"`
	Generator   GeneratorConfig   `koanf:"generator"`
	Uploads     UploadsConfig     `koanf:"uploads"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// VectorStoreConfig selects and configures the chunk store backend.
type VectorStoreConfig struct {
	// Provider is "chromem" (embedded, default) or "qdrant".
	Provider string `koanf:"provider"`

	// Collection is the collection name used by either backend.
	Collection string `koanf:"collection"`

	// VectorSize is the embedding dimension the collection is created with.
	// Must match the embedding model's output dimension.
	VectorSize int `koanf:"vector_size"`

	Chromem ChromemConfig `koanf:"chromem"`
	Qdrant  QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds the embedded store settings.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds the external Qdrant server settings.
type QdrantConfig struct {
	Host         string   `koanf:"host"`
	Port         int      `koanf:"grpc_port"`
	Distance     string   `koanf:"distance"`
	UseTLS       bool     `koanf:"use_tls"`
	MaxRetries   int      `koanf:"max_retries"`
	RetryBackoff Duration `koanf:"retry_backoff"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX, default) or "openai".
	Provider string `koanf:"provider"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// BaseURL is the API base for the openai provider.
	BaseURL string `koanf:"base_url"`

	// APIKey authenticates the openai provider.
	APIKey Secret `koanf:"api_key"`

	// CacheDir caches model files for the fastembed provider.
	CacheDir string `koanf:"cache_dir"`

	// Dimension overrides automatic dimension detection when non-zero.
	Dimension int `koanf:"dimension"`
}

// RetrievalConfig holds chunking and two-stage retrieval parameters.
type RetrievalConfig struct {
	// ChunkSize is the chunk window in words.
	ChunkSize int `koanf:"chunk_size"`

	// ChunkOverlap is the number of words shared between consecutive chunks.
	ChunkOverlap int `koanf:"chunk_overlap"`

	// RetrieveK is the similarity-search candidate count.
	RetrieveK int `koanf:"retrieve_k"`

	// RerankTopN is how many candidates survive reranking.
	RerankTopN int `koanf:"rerank_top_n"`

	// SnippetLength bounds citation snippets, in runes.
	SnippetLength int `koanf:"snippet_length"`
}

// GeneratorConfig holds answer generation configuration.
type GeneratorConfig struct {
	BaseURL           string   `koanf:"base_url"`
	Model             string   `koanf:"model"`
	APIKey            Secret   `koanf:"api_key"`
	Temperature       float64  `koanf:"temperature"`
	MaxTokens         int      `koanf:"max_tokens"`
	MaxRetries        int      `koanf:"max_retries"`
	RetryBackoff      Duration `koanf:"retry_backoff"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
}

// UploadsConfig holds document upload limits.
type UploadsConfig struct {
	// MaxFileSizeMB bounds a single uploaded file.
	MaxFileSizeMB int `koanf:"max_file_size_mb"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// VectorStore defaults (chromem is default - embedded, no external deps)
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "ragd_default"
	}
	if cfg.VectorStore.VectorSize == 0 {
		cfg.VectorStore.VectorSize = 384 // bge-small-en-v1.5 dimensions
	}
	if cfg.VectorStore.Chromem.Path == "" {
		cfg.VectorStore.Chromem.Path = "~/.config/ragd/vectorstore"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.Distance == "" {
		cfg.VectorStore.Qdrant.Distance = "cosine"
	}
	if cfg.VectorStore.Qdrant.MaxRetries == 0 {
		cfg.VectorStore.Qdrant.MaxRetries = 3
	}
	if cfg.VectorStore.Qdrant.RetryBackoff == 0 {
		cfg.VectorStore.Qdrant.RetryBackoff = Duration(time.Second)
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "fastembed"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.Retrieval.ChunkSize == 0 {
		cfg.Retrieval.ChunkSize = 500
	}
	if cfg.Retrieval.ChunkOverlap == 0 {
		cfg.Retrieval.ChunkOverlap = 50
	}
	if cfg.Retrieval.RetrieveK == 0 {
		cfg.Retrieval.RetrieveK = 12
	}
	if cfg.Retrieval.RerankTopN == 0 {
		cfg.Retrieval.RerankTopN = 4
	}
	if cfg.Retrieval.SnippetLength == 0 {
		cfg.Retrieval.SnippetLength = 400
	}

	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Generator.Temperature == 0 {
		cfg.Generator.Temperature = 0.2
	}
	if cfg.Generator.MaxTokens == 0 {
		cfg.Generator.MaxTokens = 1024
	}
	if cfg.Generator.MaxRetries == 0 {
		cfg.Generator.MaxRetries = 2
	}
	if cfg.Generator.RetryBackoff == 0 {
		cfg.Generator.RetryBackoff = Duration(500 * time.Millisecond)
	}

	if cfg.Uploads.MaxFileSizeMB == 0 {
		cfg.Uploads.MaxFileSizeMB = 20
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("invalid vectorstore provider: %q", c.VectorStore.Provider)
	}
	if c.VectorStore.VectorSize <= 0 {
		return errors.New("vector size must be positive")
	}
	switch c.VectorStore.Qdrant.Distance {
	case "cosine", "dot", "euclid":
	default:
		return fmt.Errorf("invalid distance metric: %q", c.VectorStore.Qdrant.Distance)
	}

	switch c.Embeddings.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("invalid embeddings provider: %q", c.Embeddings.Provider)
	}
	// A dimension mismatch would poison the collection: vectors either fail
	// to insert or rank nonsensically. Refuse to start.
	if c.Embeddings.Dimension != 0 && c.Embeddings.Dimension != c.VectorStore.VectorSize {
		return fmt.Errorf("embedding dimension %d does not match vector size %d",
			c.Embeddings.Dimension, c.VectorStore.VectorSize)
	}

	if c.Retrieval.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.Retrieval.ChunkOverlap < 0 {
		return errors.New("chunk overlap cannot be negative")
	}
	if c.Retrieval.RetrieveK <= 0 {
		return errors.New("retrieve_k must be positive")
	}
	if c.Retrieval.RerankTopN <= 0 {
		return errors.New("rerank_top_n must be positive")
	}
	if c.Retrieval.RerankTopN > c.Retrieval.RetrieveK {
		return fmt.Errorf("rerank_top_n (%d) cannot exceed retrieve_k (%d)",
			c.Retrieval.RerankTopN, c.Retrieval.RetrieveK)
	}

	if c.Generator.Model == "" {
		return errors.New("generator model required")
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		return errors.New("generator temperature must be in [0, 2]")
	}

	if c.Uploads.MaxFileSizeMB <= 0 {
		return errors.New("max file size must be positive")
	}

	return nil
}
