package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

func candidate(text string, score float32, position int) vectorstore.ScoredChunk {
	return vectorstore.ScoredChunk{
		Chunk: vectorstore.Chunk{
			Text:     text,
			Source:   "doc.txt",
			Scope:    "s1",
			Position: position,
		},
		Score: score,
	}
}

func TestRerank_NilContext(t *testing.T) {
	r := NewLexicalReranker()
	//nolint:staticcheck // nil context is the case under test
	_, err := r.Rerank(nil, "query", []vectorstore.ScoredChunk{candidate("x", 1, 0)}, 2)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestRerank_EmptyCandidates(t *testing.T) {
	r := NewLexicalReranker()
	result, err := r.Rerank(context.Background(), "query", nil, 4)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestRerank_BoostsTermOverlap(t *testing.T) {
	r := NewLexicalReranker()

	// The second candidate repeats the query terms; despite the lower
	// similarity it must outrank the first.
	candidates := []vectorstore.ScoredChunk{
		candidate("completely unrelated content here", 0.60, 0),
		candidate("gophers burrow underground tunnels", 0.55, 1),
	}

	result, err := r.Rerank(context.Background(), "gophers tunnels", candidates, 2)
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, 1, result[0].Position)
	assert.Equal(t, 1, result[0].OriginalRank)
	assert.Greater(t, result[0].RerankScore, result[1].RerankScore)
}

func TestRerank_TruncatesToTopN(t *testing.T) {
	r := NewLexicalReranker()
	candidates := []vectorstore.ScoredChunk{
		candidate("alpha", 0.9, 0),
		candidate("beta", 0.8, 1),
		candidate("gamma", 0.7, 2),
	}

	result, err := r.Rerank(context.Background(), "alpha", candidates, 2)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestRerank_TopNLargerThanInput(t *testing.T) {
	r := NewLexicalReranker()
	candidates := []vectorstore.ScoredChunk{
		candidate("alpha", 0.9, 0),
	}

	result, err := r.Rerank(context.Background(), "alpha", candidates, 10)
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestRerank_StableTies(t *testing.T) {
	r := NewLexicalReranker()

	// Identical text and identical similarity produce identical combined
	// scores; the similarity-search order must survive.
	candidates := []vectorstore.ScoredChunk{
		candidate("same words here", 0.5, 0),
		candidate("same words here", 0.5, 1),
		candidate("same words here", 0.5, 2),
	}

	result, err := r.Rerank(context.Background(), "same words", candidates, 3)
	require.NoError(t, err)
	require.Len(t, result, 3)

	for i, c := range result {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, i, c.OriginalRank)
	}
}

func TestRerank_Deterministic(t *testing.T) {
	r := NewLexicalReranker()
	candidates := []vectorstore.ScoredChunk{
		candidate("gophers dig tunnels", 0.4, 0),
		candidate("tunnels and gophers", 0.4, 1),
		candidate("unrelated", 0.9, 2),
	}

	first, err := r.Rerank(context.Background(), "gophers tunnels", candidates, 3)
	require.NoError(t, err)
	second, err := r.Rerank(context.Background(), "gophers tunnels", candidates, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRerank_DoesNotMutateInput(t *testing.T) {
	r := NewLexicalReranker()
	candidates := []vectorstore.ScoredChunk{
		candidate("low overlap", 0.9, 0),
		candidate("gophers tunnels everywhere", 0.1, 1),
	}

	_, err := r.Rerank(context.Background(), "gophers tunnels", candidates, 2)
	require.NoError(t, err)

	assert.Equal(t, 0, candidates[0].Position)
	assert.Equal(t, float32(0.9), candidates[0].Score)
	assert.Equal(t, 1, candidates[1].Position)
}

func TestRerank_StopwordOnlyQueryKeepsOrder(t *testing.T) {
	r := NewLexicalReranker()
	candidates := []vectorstore.ScoredChunk{
		candidate("first", 0.9, 0),
		candidate("second", 0.8, 1),
	}

	result, err := r.Rerank(context.Background(), "the and of", candidates, 2)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, 0, result[0].Position)
	assert.Equal(t, 1, result[1].Position)
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("The quick-brown Fox, and the lazy dog!")
	assert.Equal(t, []string{"quick", "brown", "fox", "lazy", "dog"}, tokens)

	assert.Empty(t, tokenize("a an the"))
	assert.Empty(t, tokenize(""))
}

func TestTermOverlap(t *testing.T) {
	q := []string{"gophers", "tunnels"}

	assert.Equal(t, float32(1.0), termOverlap(q, []string{"gophers", "dig", "tunnels"}))
	assert.Equal(t, float32(0.5), termOverlap(q, []string{"gophers"}))
	assert.Equal(t, float32(0.0), termOverlap(q, []string{"unrelated"}))
	assert.Equal(t, float32(0.0), termOverlap(nil, []string{"x"}))
}
