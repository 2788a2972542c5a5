package vectorstore

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider names for store selection.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
)

// Config selects and configures a Store backend.
type Config struct {
	// Provider is "chromem" (embedded, default) or "qdrant" (external server).
	Provider string

	// Collection is the collection name, shared by both backends.
	Collection string

	// VectorSize is the embedding dimension, shared by both backends.
	VectorSize int

	// Path is the on-disk directory for the chromem backend.
	Path string

	// Compress enables gzip persistence for the chromem backend.
	Compress bool

	// Host, Port, Distance, UseTLS, MaxRetries and RetryBackoff configure
	// the qdrant backend.
	Host         string
	Port         int
	Distance     string
	UseTLS       bool
	MaxRetries   int
	RetryBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderChromem
	}
	if c.Collection == "" {
		c.Collection = "ragd_default"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// New creates the Store named by cfg.Provider.
func New(cfg Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	cfg.ApplyDefaults()

	switch cfg.Provider {
	case ProviderChromem:
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Path,
			Compress:   cfg.Compress,
			Collection: cfg.Collection,
			VectorSize: cfg.VectorSize,
		}, embedder, logger)
	case ProviderQdrant:
		return NewQdrantStore(QdrantConfig{
			Host:         cfg.Host,
			Port:         cfg.Port,
			Collection:   cfg.Collection,
			VectorSize:   uint64(cfg.VectorSize),
			Distance:     cfg.Distance,
			UseTLS:       cfg.UseTLS,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (want %s or %s)", ErrInvalidConfig, cfg.Provider, ProviderChromem, ProviderQdrant)
	}
}
