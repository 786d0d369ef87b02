package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"local_rag/internal/config"
	"local_rag/internal/store"
)

// ErrInvalidQuery is returned for an empty question or a non-positive topK.
var ErrInvalidQuery = errors.New("invalid query")

// Result is a chunk returned for a question.
type Result struct {
	ID         string  `json:"id" yaml:"id"`
	Source     string  `json:"source" yaml:"source"`
	Section    string  `json:"section,omitempty" yaml:"section,omitempty"`
	ChunkIndex int     `json:"chunk_index" yaml:"chunk_index"`
	Content    string  `json:"content" yaml:"content"`
	Similarity float32 `json:"similarity" yaml:"similarity"`
}

// Query returns the topK chunks most similar to question, best first. Ties
// keep insertion order. Matches below MIN_SIMILARITY are dropped.
//
// Querying an empty index yields an empty result, or store.ErrEmptyStore
// when EMPTY_STORE_POLICY is "error".
func (a *App) Query(ctx context.Context, question string, topK int) ([]Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidQuery)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidQuery, topK)
	}

	n, err := a.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if a.cfg.EmptyStorePolicy == config.EmptyStoreError {
			return nil, store.ErrEmptyStore
		}
		return []Result{}, nil
	}

	vec, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	matches, err := a.store.Query(ctx, vec, topK)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if a.cfg.MinSimilarity > -1 && m.Score < a.cfg.MinSimilarity {
			continue
		}
		idx, _ := strconv.Atoi(m.Metadata[store.MetaChunkIndex])
		results = append(results, Result{
			ID:         m.ID,
			Source:     m.Metadata[store.MetaSource],
			Section:    m.Metadata[store.MetaSection],
			ChunkIndex: idx,
			Content:    m.Content,
			Similarity: m.Score,
		})
	}

	log.Printf("🔍 Found %d relevant chunks", len(results))
	return results, nil
}
