package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/reranker"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// RetrieveOptions controls the two retrieval stages.
type RetrieveOptions struct {
	// RetrieveK is the similarity-search candidate count. Default: 12
	RetrieveK int

	// RerankTopN is how many candidates survive reranking and feed the
	// answer. Default: 4
	RerankTopN int

	// SnippetLength bounds citation snippets, in runes. Default: 400
	SnippetLength int
}

// ApplyDefaults sets default values for unset fields.
func (o *RetrieveOptions) ApplyDefaults() {
	if o.RetrieveK == 0 {
		o.RetrieveK = 12
	}
	if o.RerankTopN == 0 {
		o.RerankTopN = 4
	}
	if o.SnippetLength == 0 {
		o.SnippetLength = 400
	}
}

// AnswerGenerator produces an answer from a question and numbered context
// blocks. Block i corresponds to citation marker [i+1].
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, contexts []string) (string, error)
	Model() string
}

// Citation points an answer's bracketed marker back at a stored chunk.
type Citation struct {
	// Marker is the inline reference as it appears in the answer, like "[1]".
	Marker string `json:"marker"`

	// Source is the originating document name.
	Source string `json:"source"`

	// Section is the sub-location within the source, if any.
	Section string `json:"section,omitempty"`

	// ChunkKey is the composite key "scope:source:position".
	ChunkKey string `json:"chunk_key"`

	// Position is the chunk's zero-based index within its document.
	Position int `json:"position"`

	// Snippet is a bounded prefix of the chunk text.
	Snippet string `json:"snippet"`
}

// QueryResult is a generated answer with its supporting citations.
type QueryResult struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Scope     string     `json:"scope"`
	Model     string     `json:"model"`
	LatencyMS int64      `json:"latency_ms"`
}

// Retriever answers questions against one scope of the store.
type Retriever struct {
	store     vectorstore.Store
	reranker  reranker.Reranker
	generator AnswerGenerator
	options   RetrieveOptions
	logger    *zap.Logger
}

// NewRetriever creates a Retriever over the given store, reranker and
// generator.
func NewRetriever(store vectorstore.Store, rr reranker.Reranker, gen AnswerGenerator, options RetrieveOptions, logger *zap.Logger) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if rr == nil {
		return nil, fmt.Errorf("reranker is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	options.ApplyDefaults()

	return &Retriever{
		store:     store,
		reranker:  rr,
		generator: gen,
		options:   options,
		logger:    logger,
	}, nil
}

// Query retrieves context for the question from the scope, reranks it, and
// generates a cited answer. An empty or unknown scope is not an error: the
// answer is generated without context and the citation list is empty.
func (r *Retriever) Query(ctx context.Context, question, scope string) (*QueryResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Retriever.Query")
	defer span.End()

	start := time.Now()

	if scope == "" {
		scope = vectorstore.DefaultScope
	}
	if err := vectorstore.ValidateScope(scope); err != nil {
		return nil, err
	}
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	span.SetAttributes(
		attribute.String("scope", scope),
		attribute.Int("retrieve_k", r.options.RetrieveK),
		attribute.Int("rerank_top_n", r.options.RerankTopN),
	)

	candidates, err := r.store.ScopedSearch(ctx, question, scope, r.options.RetrieveK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ranked, err := r.reranker.Rerank(ctx, question, candidates, r.options.RerankTopN)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("reranking candidates: %w", err)
	}

	contexts := make([]string, len(ranked))
	citations := make([]Citation, len(ranked))
	for i, c := range ranked {
		contexts[i] = c.Text
		citations[i] = Citation{
			Marker:   fmt.Sprintf("[%d]", i+1),
			Source:   c.Source,
			Section:  c.Section,
			ChunkKey: c.Key(),
			Position: c.Position,
			Snippet:  snippet(c.Text, r.options.SnippetLength),
		}
	}

	answer, err := r.generator.Generate(ctx, question, contexts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	latency := time.Since(start).Milliseconds()

	r.logger.Info("answered query",
		zap.String("scope", scope),
		zap.Int("candidates", len(candidates)),
		zap.Int("citations", len(citations)),
		zap.Int64("latency_ms", latency),
	)

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("citations", len(citations)),
	)
	span.SetStatus(codes.Ok, "success")

	return &QueryResult{
		Answer:    answer,
		Citations: citations,
		Scope:     scope,
		Model:     r.generator.Model(),
		LatencyMS: latency,
	}, nil
}

// snippet returns a prefix of text bounded to limit runes. The cut is purely
// positional so the same chunk always yields the same snippet.
func snippet(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
