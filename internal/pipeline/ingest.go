// Package pipeline wires loading, chunking, retrieval, reranking and answer
// generation into the two top-level operations: ingest and query.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/loader"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

var pipelineTracer = otel.Tracer("ragd.pipeline")

// IngestOptions controls chunking during ingestion.
type IngestOptions struct {
	// ChunkSize is the chunk window in words. Default: 500
	ChunkSize int

	// ChunkOverlap is the number of words shared between consecutive
	// chunks. Default: 50
	ChunkOverlap int
}

// ApplyDefaults sets default values for unset fields.
func (o *IngestOptions) ApplyDefaults() {
	if o.ChunkSize == 0 {
		o.ChunkSize = 500
	}
	if o.ChunkOverlap == 0 {
		o.ChunkOverlap = 50
	}
}

// IngestResult reports what an ingestion wrote.
type IngestResult struct {
	// Source is the logical document name the chunks were indexed under.
	Source string `json:"source"`

	// Scope is the scope the chunks landed in.
	Scope string `json:"scope"`

	// ChunkCount is the number of chunks written.
	ChunkCount int `json:"chunk_count"`

	// Refreshed is true when the scope was wiped before writing.
	Refreshed bool `json:"refreshed"`
}

// Ingestor turns documents into scoped, embedded chunks.
type Ingestor struct {
	store   vectorstore.Store
	options IngestOptions
	logger  *zap.Logger
}

// NewIngestor creates an Ingestor writing to the given store.
func NewIngestor(store vectorstore.Store, options IngestOptions, logger *zap.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	options.ApplyDefaults()

	return &Ingestor{
		store:   store,
		options: options,
		logger:  logger,
	}, nil
}

// IngestFile loads, chunks and indexes one document file.
// With fresh set, the scope is emptied before the new chunks are written.
func (ing *Ingestor) IngestFile(ctx context.Context, path, scope string, fresh bool) (*IngestResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Ingestor.IngestFile")
	defer span.End()

	units, err := loader.Load(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return ing.ingestUnits(ctx, filepath.Base(path), units, scope, fresh)
}

// IngestText indexes raw text under the given logical name.
func (ing *Ingestor) IngestText(ctx context.Context, name, text, scope string, fresh bool) (*IngestResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Ingestor.IngestText")
	defer span.End()

	units, err := loader.FromString(text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if name == "" {
		name = "pasted_text"
	}

	return ing.ingestUnits(ctx, name, units, scope, fresh)
}

// ingestUnits chunks each unit and writes the batch. Chunk positions are
// global across the document: unit boundaries (pages) never reset them, so
// the chunk key stays unique per document.
func (ing *Ingestor) ingestUnits(ctx context.Context, source string, units []loader.Unit, scope string, fresh bool) (*IngestResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Ingestor.ingestUnits")
	defer span.End()

	if scope == "" {
		scope = vectorstore.DefaultScope
	}
	if err := vectorstore.ValidateScope(scope); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("source", source),
		attribute.String("scope", scope),
		attribute.Bool("fresh", fresh),
	)

	var chunks []vectorstore.Chunk
	position := 0
	for _, unit := range units {
		for _, text := range chunker.Split(unit.Text, ing.options.ChunkSize, ing.options.ChunkOverlap) {
			chunks = append(chunks, vectorstore.Chunk{
				Text:     text,
				Source:   source,
				Scope:    scope,
				Position: position,
				Section:  unit.Section,
			})
			position++
		}
	}
	if len(chunks) == 0 {
		return nil, loader.ErrEmptyDocument
	}

	if err := ing.store.EnsureCollection(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if fresh {
		if err := ing.store.DeleteScope(ctx, scope); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("refreshing scope %q: %w", scope, err)
		}
	}

	written, err := ing.store.Upsert(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ing.logger.Info("ingested document",
		zap.String("source", source),
		zap.String("scope", scope),
		zap.Int("chunks", written),
		zap.Bool("fresh", fresh),
	)

	span.SetAttributes(attribute.Int("chunks_written", written))
	span.SetStatus(codes.Ok, "success")

	return &IngestResult{
		Source:     source,
		Scope:      scope,
		ChunkCount: written,
		Refreshed:  fresh,
	}, nil
}

// Reset drops every chunk in the scope.
func (ing *Ingestor) Reset(ctx context.Context, scope string) error {
	if scope == "" {
		scope = vectorstore.DefaultScope
	}
	return ing.store.DeleteScope(ctx, scope)
}
