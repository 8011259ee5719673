// Package indexer runs the offline pipeline: build a snapshot from
// preprocessed documents, persist it under a prefix and announce it.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/metrics"
)

type Engine struct {
	store     store.Store
	backend   string
	opts      index.Options
	workers   int
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Config describes one Engine. Publisher and Metrics may be nil.
type Config struct {
	Store     store.Store
	Backend   string
	Options   index.Options
	Workers   int
	Publisher events.Publisher
	Metrics   *metrics.Metrics
}

func NewEngine(cfg Config) *Engine {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		store:     cfg.Store,
		backend:   cfg.Backend,
		opts:      cfg.Options,
		workers:   workers,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    logger.WithComponent("indexer"),
		now:       time.Now,
	}
}

// Build runs both passes over docs and returns the finalized snapshot.
func (e *Engine) Build(ctx context.Context, docs []index.Document) (*index.Snapshot, error) {
	start := time.Now()
	snap, err := index.BuildParallel(ctx, docs, e.opts, e.workers)
	if err != nil {
		return nil, fmt.Errorf("building index over %d documents: %w", len(docs), err)
	}
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
		e.metrics.DocsIndexedTotal.Add(float64(len(docs)))
	}
	e.logger.Info("index built",
		"docs", snap.N(),
		"terms", snap.NumTerms(),
		"fields", e.opts.Fields,
		"smooth_idf", e.opts.SmoothIDF,
		"workers", e.workers,
		"duration_ms", elapsed.Milliseconds(),
	)
	return snap, nil
}

// Publish saves snap under prefix and, when a publisher is configured,
// announces it. A failed announcement is returned but the saved group stays
// in place.
func (e *Engine) Publish(ctx context.Context, prefix string, snap *index.Snapshot) error {
	if err := e.store.Save(ctx, prefix, snap); err != nil {
		e.observeSave("error")
		return fmt.Errorf("saving index %s to %s: %w", prefix, e.backend, err)
	}
	e.observeSave("ok")
	e.logger.Info("index saved", "prefix", prefix, "backend", e.backend)

	if e.publisher == nil {
		return nil
	}
	evt := events.NewIndexPublished(prefix, e.backend, snap, e.now())
	if err := events.Publish(ctx, e.publisher, evt); err != nil {
		return err
	}
	e.logger.Info("index announced", "prefix", prefix)
	return nil
}

// Run is Build followed by Publish.
func (e *Engine) Run(ctx context.Context, prefix string, docs []index.Document) (*index.Snapshot, error) {
	snap, err := e.Build(ctx, docs)
	if err != nil {
		return nil, err
	}
	if err := e.Publish(ctx, prefix, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (e *Engine) observeSave(status string) {
	if e.metrics != nil {
		e.metrics.IndexSavesTotal.WithLabelValues(e.backend, status).Inc()
	}
}
