// Package vectorstore defines the interface for scoped chunk storage.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyChunks indicates an empty or nil chunk batch.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrConnectionFailed indicates a connection problem with the backend.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrStorage indicates a read, write, or delete failure in the backend.
	ErrStorage = errors.New("vector store operation failed")

	// ErrInvalidScope indicates a structurally invalid scope string.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// DefaultScope is used when callers pass no scope.
const DefaultScope = "default"

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special characters, and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// maxScopeLength bounds scope names to keep payloads and logs sane.
const maxScopeLength = 128

// ValidateScope validates a scope string.
//
// The empty string is a valid scope (it names the literal empty scope, and
// callers default it to DefaultScope before it gets here). Colons are
// rejected because the chunk key embeds the scope ahead of a colon
// separator; control characters are rejected outright.
func ValidateScope(scope string) error {
	if len(scope) > maxScopeLength {
		return fmt.Errorf("%w: scope exceeds %d characters", ErrInvalidScope, maxScopeLength)
	}
	if strings.ContainsRune(scope, ':') {
		return fmt.Errorf("%w: scope %q contains ':'", ErrInvalidScope, scope)
	}
	for _, r := range scope {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: scope contains control characters", ErrInvalidScope)
		}
	}
	return nil
}

// Chunk is a bounded text window from a source document, the unit of
// embedding and retrieval.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// Source identifies the originating document (base filename or logical name).
	Source string

	// Scope is the logical namespace this chunk is indexed under.
	Scope string

	// Position is the zero-based index of this chunk within its document.
	Position int

	// Section is an optional sub-location hint such as a page number.
	Section string

	// PointID is the storage-layer primary key, assigned by the store at
	// upsert time. The backends require keys drawn from a restricted ID
	// space (UUIDs), which is why the human-readable chunk key cannot be
	// the primary key.
	PointID string
}

// Key returns the composite chunk key "scope:source:position". It is stored
// in the payload for citation display; scope isolation filters on the
// dedicated scope field, never on this key, so one scope name being a prefix
// of another can never leak results across scopes.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s:%s:%d", c.Scope, c.Source, c.Position)
}

// ScoredChunk is a chunk returned from similarity search.
type ScoredChunk struct {
	Chunk

	// Score is the similarity score from the backend; higher is closer.
	Score float32
}

// CollectionInfo contains metadata about the backing collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	PointCount int    `json:"point_count"`
	VectorSize int    `json:"vector_size"`
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// encode queries differently from documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for scope-isolated chunk storage.
//
// A Store owns exactly one collection, created lazily with a fixed vector
// size and distance metric. Chunks from all scopes share the collection and
// are isolated by an exact-equality filter on the scope payload field.
//
// Implementations:
//   - ChromemStore: embedded chromem-go with on-disk persistence (default)
//   - QdrantStore: external Qdrant server over gRPC
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	// Idempotent: repeated calls never reset or duplicate an existing
	// collection.
	EnsureCollection(ctx context.Context) error

	// Upsert embeds each chunk's text and writes it with a fresh point ID.
	// Returns the number of chunks written. The whole batch is aborted on
	// the first embedding or write failure; nothing is silently skipped.
	Upsert(ctx context.Context, chunks []Chunk) (int, error)

	// ScopedSearch embeds the query and returns up to k chunks from the
	// given scope, ordered by decreasing similarity. The scope restriction
	// is a hard storage-level filter: chunks outside the scope are never
	// returned. An empty scope yields an empty result, not an error.
	ScopedSearch(ctx context.Context, query, scope string, k int) ([]ScoredChunk, error)

	// DeleteScope removes every chunk in the scope. Deleting a scope with
	// no chunks is a no-op.
	DeleteScope(ctx context.Context, scope string) error

	// Info returns point count and vector size of the collection.
	Info(ctx context.Context) (*CollectionInfo, error)

	// Close releases backend resources.
	Close() error
}

// Payload field names shared by all Store implementations.
const (
	fieldScope    = "scope"
	fieldSource   = "source"
	fieldChunkKey = "chunk_key"
	fieldSection  = "section"
	fieldPosition = "position"
	fieldText     = "text"
)
