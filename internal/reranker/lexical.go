package reranker

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// LexicalReranker combines the vector similarity score with lexical term
// overlap between query and chunk text. It needs no model and no network,
// which keeps the second stage deterministic and cheap.
type LexicalReranker struct{}

// NewLexicalReranker creates a new LexicalReranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Score weights. Half the final score comes from the similarity search, so a
// chunk with no literal term overlap can still rank if it is semantically
// close; the other half boosts chunks that repeat the query's words.
const (
	similarityWeight = 0.5
	overlapWeight    = 0.5
)

// Rerank scores candidates by combined similarity and term overlap.
//
// Ties keep their similarity-search order: the sort is stable and the input
// arrives ordered by decreasing similarity, so equal combined scores resolve
// to the closer chunk first. The same input always yields the same output.
func (r *LexicalReranker) Rerank(ctx context.Context, query string, candidates []vectorstore.ScoredChunk, topN int) ([]Candidate, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(candidates) == 0 {
		return []Candidate{}, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	queryTokens := tokenize(query)

	scored := make([]Candidate, len(candidates))
	for i, c := range candidates {
		overlap := termOverlap(queryTokens, tokenize(c.Text))
		scored[i] = Candidate{
			ScoredChunk:  c,
			RerankScore:  similarityWeight*c.Score + overlapWeight*overlap,
			OriginalRank: i,
		}
	}

	if len(queryTokens) > 0 {
		sort.SliceStable(scored, func(i, j int) bool {
			return scored[i].RerankScore > scored[j].RerankScore
		})
	}
	// With no query tokens every overlap is zero and the combined score is a
	// constant fraction of the similarity, so the input order already holds.

	return scored[:topN:topN], nil
}

// Close closes the reranker. LexicalReranker has no resources to clean up.
func (r *LexicalReranker) Close() error {
	return nil
}

// tokenize splits text into lowercase terms, filtering out common stopwords
// and tokens shorter than three characters.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

// isAlphanumeric returns true if the rune is alphanumeric or underscore.
func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

// isStopword returns true if the token is a common English stopword.
func isStopword(token string) bool {
	return stopwords[token]
}

// termOverlap returns the fraction of unique query terms found in the
// document tokens, between 0.0 and 1.0.
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0.0
	}

	docTokenSet := make(map[string]bool, len(docTokens))
	for _, token := range docTokens {
		docTokenSet[token] = true
	}

	matchCount := 0
	counted := make(map[string]bool, len(queryTokens))
	for _, queryToken := range queryTokens {
		if docTokenSet[queryToken] && !counted[queryToken] {
			matchCount++
			counted[queryToken] = true
		}
	}

	return float32(matchCount) / float32(len(queryTokens))
}

// Ensure LexicalReranker implements Reranker.
var _ Reranker = (*LexicalReranker)(nil)
