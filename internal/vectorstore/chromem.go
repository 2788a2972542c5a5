// Package vectorstore provides scoped chunk storage implementations.
package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("ragd.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/ragd/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name.
	// Default: "ragd_default"
	Collection string

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.config/ragd/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "ragd_default"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database with gob-file persistence. It fills the same role the
// embedded Qdrant mode does elsewhere: one on-disk collection, no external
// service, contents survive process restarts.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandHomePath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.String("collection", config.Collection),
		zap.Int("vector_size", config.VectorSize),
		zap.Bool("compress", config.Compress),
	)

	return store, nil
}

// expandHomePath expands a leading ~ to the home directory.
func expandHomePath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc bridges our Embedder to chromem's query-time embedding hook.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// EnsureCollection creates the collection if absent.
//
// chromem's GetOrCreateCollection never resets an existing collection, so
// repeated calls are safe. The embedding function must always be passed:
// chromem falls back to its OpenAI default when given nil for a persisted
// collection.
func (s *ChromemStore) EnsureCollection(ctx context.Context) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()

	span.SetAttributes(attribute.String("collection", s.config.Collection))

	if _, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: ensuring collection %s: %v", ErrStorage, s.config.Collection, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Upsert embeds the chunks and writes them with fresh UUID point IDs.
func (s *ChromemStore) Upsert(ctx context.Context, chunks []Chunk) (int, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int("chunk_count", len(chunks)),
		attribute.String("collection", s.config.Collection),
	)

	if len(chunks) == 0 {
		return 0, ErrEmptyChunks
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			err := fmt.Errorf("%w: chunk %d of %s has no text", ErrEmbeddingFailed, c.Position, c.Source)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		texts[i] = c.Text
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	collection, err := s.db.GetOrCreateCollection(s.config.Collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: getting collection: %v", ErrStorage, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		c.PointID = uuid.New().String()
		docs[i] = chromem.Document{
			ID:        c.PointID,
			Content:   c.Text,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				fieldScope:    c.Scope,
				fieldSource:   c.Source,
				fieldChunkKey: c.Key(),
				fieldSection:  c.Section,
				fieldPosition: strconv.Itoa(c.Position),
			},
		}
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("%w: adding documents: %v", ErrStorage, err)
	}

	span.SetAttributes(attribute.Int("chunks_written", len(docs)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted chunks",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)),
	)

	return len(docs), nil
}

// ScopedSearch returns up to k chunks from the scope, most similar first.
// The scope restriction is an exact-equality metadata filter applied inside
// chromem before similarity ranking.
func (s *ChromemStore) ScopedSearch(ctx context.Context, query, scope string, k int) ([]ScoredChunk, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.ScopedSearch")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.String("scope", scope),
		attribute.Int("k", k),
	)

	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if err := ValidateScope(scope); err != nil {
		return nil, err
	}

	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		// Lazy creation means a never-written collection is simply empty.
		return []ScoredChunk{}, nil
	}

	// chromem rejects nResults larger than the document count.
	docCount := collection.Count()
	if docCount == 0 {
		return []ScoredChunk{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.Query(ctx, query, k, map[string]string{fieldScope: scope}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: querying collection %s: %v", ErrStorage, s.config.Collection, err)
	}

	scored := make([]ScoredChunk, len(results))
	for i, r := range results {
		scored[i] = ScoredChunk{
			Chunk: chunkFromChromem(r.ID, r.Content, r.Metadata),
			Score: r.Similarity,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(scored)))
	span.SetStatus(codes.Ok, "success")
	return scored, nil
}

// DeleteScope removes every chunk whose scope field equals scope exactly.
func (s *ChromemStore) DeleteScope(ctx context.Context, scope string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteScope")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.String("scope", scope),
	)

	if err := ValidateScope(scope); err != nil {
		return err
	}

	collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc())
	if collection == nil {
		// Nothing stored yet; deleting an empty scope is a no-op.
		return nil
	}

	if err := collection.Delete(ctx, map[string]string{fieldScope: scope}, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: deleting scope %q: %v", ErrStorage, scope, err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("deleted scope",
		zap.String("collection", s.config.Collection),
		zap.String("scope", scope),
	)
	return nil
}

// Info returns point count and vector size of the collection.
func (s *ChromemStore) Info(ctx context.Context) (*CollectionInfo, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Info")
	defer span.End()

	info := &CollectionInfo{
		Name:       s.config.Collection,
		VectorSize: s.config.VectorSize,
	}
	if collection := s.db.GetCollection(s.config.Collection, s.embeddingFunc()); collection != nil {
		info.PointCount = collection.Count()
	}

	span.SetAttributes(attribute.Int("point_count", info.PointCount))
	span.SetStatus(codes.Ok, "success")
	return info, nil
}

// Close closes the store. chromem persists on every write, so there is
// nothing to flush.
func (s *ChromemStore) Close() error {
	s.logger.Debug("chromem store closed")
	return nil
}

// chunkFromChromem rebuilds a Chunk from a stored chromem document.
func chunkFromChromem(id, content string, metadata map[string]string) Chunk {
	position, _ := strconv.Atoi(metadata[fieldPosition])
	return Chunk{
		Text:     content,
		Source:   metadata[fieldSource],
		Scope:    metadata[fieldScope],
		Position: position,
		Section:  metadata[fieldSection],
		PointID:  id,
	}
}

// Ensure ChromemStore implements Store.
var _ Store = (*ChromemStore)(nil)
