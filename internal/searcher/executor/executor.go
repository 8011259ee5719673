// Package executor serves ranked queries against the active index snapshot.
// The snapshot is swapped atomically on reload, so concurrent queries see
// either the previous or the new index and never a partial one.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/scorer"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/metrics"
)

// Loader is the part of a store the executor needs.
type Loader interface {
	Load(ctx context.Context, prefix string) (*index.Snapshot, error)
}

// Analyzer turns raw query text into index terms.
type Analyzer func(text string) []string

// Query is either raw text or pre-tokenized terms. Tokens win when set.
type Query struct {
	ID     string   `json:"id,omitempty"`
	Text   string   `json:"text"`
	Tokens []string `json:"tokens,omitempty"`
}

type SearchResult struct {
	QueryID   string             `json:"query_id,omitempty"`
	Query     string             `json:"query"`
	Terms     []string           `json:"terms"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
	TermStats map[string]int     `json:"term_stats"`
}

type Executor struct {
	snap       atomic.Pointer[index.Snapshot]
	generation atomic.Uint64
	loader   Loader
	prefix   string
	analyzer Analyzer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates an Executor with no snapshot. Queries fail with ErrNoIndex
// until Reload or Swap succeeds. loader and m may be nil.
func New(loader Loader, prefix string, analyzer Analyzer, m *metrics.Metrics) *Executor {
	return &Executor{
		loader:   loader,
		prefix:   prefix,
		analyzer: analyzer,
		metrics:  m,
		logger:   logger.WithComponent("query-executor"),
	}
}

func (e *Executor) Prefix() string {
	return e.prefix
}

// Snapshot returns the active snapshot, or nil before the first load.
func (e *Executor) Snapshot() *index.Snapshot {
	return e.snap.Load()
}

// Generation counts installed snapshots. It changes after every Swap, and
// a caller that reads it before Execute never sees results older than it.
func (e *Executor) Generation() uint64 {
	return e.generation.Load()
}

// Swap installs snap as the active snapshot. A nil snap is ignored.
func (e *Executor) Swap(snap *index.Snapshot) {
	if snap == nil {
		e.logger.Warn("ignoring nil snapshot swap", "prefix", e.prefix)
		return
	}
	e.snap.Store(snap)
	e.generation.Add(1)
	if e.metrics != nil {
		e.metrics.IndexTerms.Set(float64(snap.NumTerms()))
		e.metrics.IndexDocuments.Set(float64(snap.N()))
	}
}

// Reload loads the configured prefix and swaps it in. On failure the
// previous snapshot, if any, stays active.
func (e *Executor) Reload(ctx context.Context) error {
	if e.loader == nil {
		return fmt.Errorf("reloading %s: no loader configured: %w", e.prefix, apperrors.ErrNoIndex)
	}
	start := time.Now()
	snap, err := e.loader.Load(ctx, e.prefix)
	if err != nil {
		e.observeLoad("error")
		return fmt.Errorf("reloading index %s: %w", e.prefix, err)
	}
	if snap == nil {
		e.observeLoad("error")
		return fmt.Errorf("reloading index %s: loader returned no snapshot: %w", e.prefix, apperrors.ErrNoIndex)
	}
	e.Swap(snap)
	e.observeLoad("ok")
	e.logger.Info("index snapshot activated",
		"prefix", e.prefix,
		"terms", snap.NumTerms(),
		"docs", snap.N(),
		"load_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Execute scores q against the active snapshot and returns the top limit
// documents. A query with no indexed terms yields an empty result, not an
// error.
func (e *Executor) Execute(ctx context.Context, q Query, limit int) (*SearchResult, error) {
	snap := e.snap.Load()
	if snap == nil {
		e.observeQuery("no_index")
		return nil, apperrors.ErrNoIndex
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	terms := q.Tokens
	if terms == nil && e.analyzer != nil {
		terms = e.analyzer(q.Text)
	}

	termStats := make(map[string]int)
	for _, t := range terms {
		if df := snap.DF(t); df > 0 {
			termStats[t] = df
		}
	}
	scores := scorer.Score(snap, terms)
	ranked := ranker.Finalize(scores, limit)

	if e.metrics != nil {
		e.metrics.SearchLatency.WithLabelValues("miss").Observe(time.Since(start).Seconds())
		e.metrics.SearchResultsCount.Observe(float64(len(ranked)))
	}
	if len(ranked) == 0 {
		e.observeQuery("empty")
	} else {
		e.observeQuery("hit")
	}
	e.logger.Debug("query executed",
		"query_id", q.ID,
		"terms", len(terms),
		"matched_terms", len(termStats),
		"candidates", len(scores),
		"results", len(ranked),
	)
	if terms == nil {
		terms = []string{}
	}
	return &SearchResult{
		QueryID:   q.ID,
		Query:     q.Text,
		Terms:     terms,
		TotalHits: len(scores),
		Results:   ranked,
		TermStats: termStats,
	}, nil
}

func (e *Executor) observeQuery(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (e *Executor) observeLoad(status string) {
	if e.metrics != nil {
		e.metrics.IndexLoadsTotal.WithLabelValues(status).Inc()
	}
}
