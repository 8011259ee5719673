// Package rerank re-orders a first-stage ranking with scores from an
// external model, such as a bi-encoder or cross-encoder service.
package rerank

import (
	"context"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
)

// Scorer returns one score per document text, in input order.
type Scorer interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}

// Rerank scores every candidate with s and sorts by the new scores, ties
// broken by ascending document ID. Candidates absent from texts are scored
// on an empty string.
func Rerank(ctx context.Context, s Scorer, query string, candidates []ranker.ScoredDoc, texts map[string]string) ([]ranker.ScoredDoc, error) {
	if len(candidates) == 0 {
		return []ranker.ScoredDoc{}, nil
	}
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = texts[c.DocID]
	}
	scores, err := s.Score(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("re-ranking %d candidates: %w", len(candidates), err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("scorer returned %d scores for %d candidates: %w",
			len(scores), len(candidates), apperrors.ErrInvalidInput)
	}

	out := make([]ranker.ScoredDoc, len(candidates))
	for i, c := range candidates {
		if math.IsNaN(scores[i]) || math.IsInf(scores[i], 0) {
			return nil, fmt.Errorf("non-finite score for %s: %w", c.DocID, apperrors.ErrInvalidInput)
		}
		out[i] = ranker.ScoredDoc{DocID: c.DocID, Score: scores[i]}
	}
	ranker.Sort(out)
	return out, nil
}
