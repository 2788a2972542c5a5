// Package reranker provides second-stage ranking of retrieved chunks.
package reranker

import (
	"context"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Candidate is a chunk that survived reranking.
type Candidate struct {
	vectorstore.ScoredChunk

	// RerankScore is the score assigned by the reranker.
	RerankScore float32

	// OriginalRank is the chunk's position in the similarity-ordered input
	// (0-indexed).
	OriginalRank int
}

// Reranker re-orders similarity-search candidates by query relevance.
type Reranker interface {
	// Rerank scores the candidates against the query and returns up to topN
	// of them, best first. The input order is the similarity ranking and is
	// preserved between candidates with equal scores; the input slice itself
	// is never modified. topN <= 0 means no limit.
	Rerank(ctx context.Context, query string, candidates []vectorstore.ScoredChunk, topN int) ([]Candidate, error)

	// Close releases any resources held by the reranker.
	Close() error
}
