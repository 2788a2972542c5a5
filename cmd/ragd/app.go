package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/generator"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/pipeline"
	"github.com/fyrsmithlabs/ragd/internal/reranker"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// app holds the wired service stack shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	embedder  embeddings.Provider
	store     vectorstore.Store
	ingestor  *pipeline.Ingestor
	retriever *pipeline.Retriever
}

// buildApp loads configuration and wires the full stack: logger, embedding
// provider, vector store, reranker, generator and the two pipelines.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	if cfg.Embeddings.Provider == "fastembed" {
		if _, err := embeddings.EnsureONNXRuntime(ctx); err != nil {
			return nil, fmt.Errorf("preparing onnx runtime: %w", err)
		}
	}

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cfg.Embeddings.CacheDir,
		Dimension: cfg.Embeddings.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	if dim := embedder.Dimension(); dim > 0 && dim != cfg.VectorStore.VectorSize {
		embedder.Close()
		return nil, fmt.Errorf("embedding model %q produces %d-dimensional vectors but the collection expects %d",
			cfg.Embeddings.Model, dim, cfg.VectorStore.VectorSize)
	}

	store, err := vectorstore.New(vectorstore.Config{
		Provider:     cfg.VectorStore.Provider,
		Collection:   cfg.VectorStore.Collection,
		VectorSize:   cfg.VectorStore.VectorSize,
		Path:         cfg.VectorStore.Chromem.Path,
		Compress:     cfg.VectorStore.Chromem.Compress,
		Host:         cfg.VectorStore.Qdrant.Host,
		Port:         cfg.VectorStore.Qdrant.Port,
		Distance:     cfg.VectorStore.Qdrant.Distance,
		UseTLS:       cfg.VectorStore.Qdrant.UseTLS,
		MaxRetries:   cfg.VectorStore.Qdrant.MaxRetries,
		RetryBackoff: cfg.VectorStore.Qdrant.RetryBackoff.Duration(),
	}, embedder, logger)
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	gen, err := generator.New(generator.Config{
		BaseURL:           cfg.Generator.BaseURL,
		Model:             cfg.Generator.Model,
		APIKey:            cfg.Generator.APIKey.Value(),
		Temperature:       cfg.Generator.Temperature,
		MaxTokens:         cfg.Generator.MaxTokens,
		MaxRetries:        cfg.Generator.MaxRetries,
		RetryBackoff:      cfg.Generator.RetryBackoff.Duration(),
		RequestsPerSecond: cfg.Generator.RequestsPerSecond,
	}, logger)
	if err != nil {
		store.Close()
		embedder.Close()
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	ingestor, err := pipeline.NewIngestor(store, pipeline.IngestOptions{
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
	}, logger)
	if err != nil {
		store.Close()
		embedder.Close()
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}

	retriever, err := pipeline.NewRetriever(store, reranker.NewLexicalReranker(), gen, pipeline.RetrieveOptions{
		RetrieveK:     cfg.Retrieval.RetrieveK,
		RerankTopN:    cfg.Retrieval.RerankTopN,
		SnippetLength: cfg.Retrieval.SnippetLength,
	}, logger)
	if err != nil {
		store.Close()
		embedder.Close()
		return nil, fmt.Errorf("creating retriever: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		embedder:  embedder,
		store:     store,
		ingestor:  ingestor,
		retriever: retriever,
	}, nil
}

// Close releases the store, the embedder and flushes the logger.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing vector store", zap.Error(err))
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			a.logger.Warn("closing embedding provider", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = logging.Sync(a.logger)
	}
}
