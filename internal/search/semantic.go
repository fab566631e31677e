package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvenker/neumann/internal/embedder"
	"github.com/benvenker/neumann/internal/store"
	"github.com/benvenker/neumann/pkg/types"
)

// SemanticEngine ranks documents by vector distance between the query
// embedding and stored summary embeddings.
type SemanticEngine struct {
	store    store.Store
	embedder embedder.Embedder
}

// NewSemanticEngine creates a semantic search engine.
func NewSemanticEngine(s store.Store, e embedder.Embedder) *SemanticEngine {
	return &SemanticEngine{store: s, embedder: e}
}

// Search embeds the query, retrieves the k nearest summaries, and converts
// raw distances to similarity scores in (0,1].
func (e *SemanticEngine) Search(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return []types.SearchResult{}, nil
	}

	vectors, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(vectors))
	}

	candidates, err := e.store.QuerySemantic(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("semantic query failed: %w", err)
	}

	results := make([]types.SearchResult, len(candidates))
	for i, cand := range candidates {
		score := distanceToScore(cand.Distance)
		results[i] = types.SearchResult{
			DocID:      cand.DocID,
			SourcePath: cand.Metadata.SourcePath,
			Score:      score,
			SemScore:   score,
			PageURIs:   cand.Metadata.PageURIs,
			Metadata:   cand.Metadata,
			Why: []types.Reason{{
				Kind:     types.ReasonSemantic,
				Pattern:  query,
				Distance: cand.Distance,
			}},
		}
	}
	return results, nil
}

// distanceToScore maps a raw non-negative distance to a similarity in (0,1]
// with a fixed monotonic-decreasing normalization.
func distanceToScore(distance float64) float64 {
	return 1 / (1 + distance)
}
