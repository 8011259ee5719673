package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/logger"
)

type SearchExecutor interface {
	Execute(ctx context.Context, q executor.Query, limit int) (*executor.SearchResult, error)
	Reload(ctx context.Context) error
	Prefix() string
	Generation() uint64
}

type Handler struct {
	executor     SearchExecutor
	analyzer     executor.Analyzer
	cache        *cache.QueryCache
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires the HTTP API. queryCache may be nil to serve every query from
// the executor.
func New(exec SearchExecutor, analyzer executor.Analyzer, queryCache *cache.QueryCache, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		analyzer:     analyzer,
		cache:        queryCache,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       logger.WithComponent("search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&limit=... .
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	text := r.URL.Query().Get("q")
	if text == "" {
		h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	q := executor.Query{ID: r.URL.Query().Get("id"), Text: text, Tokens: h.analyzer(text)}
	if q.Tokens == nil {
		q.Tokens = []string{}
	}
	exec := func() (*executor.SearchResult, error) {
		return h.executor.Execute(ctx, q, limit)
	}

	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil && len(q.Tokens) > 0 {
		// Read the generation before executing so a result computed on an
		// older snapshot is never keyed under a newer one.
		gen := h.executor.Generation()
		result, cacheHit, err = h.cache.GetOrCompute(ctx, h.executor.Prefix(), gen, q.Tokens, limit, exec)
		if err == nil {
			// Cached and shared results carry the first requester's query.
			own := *result
			own.QueryID, own.Query = q.ID, q.Text
			result = &own
		}
	} else {
		result, err = exec()
	}
	if err != nil {
		log.Error("search failed", "query", text, "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("search completed",
		"query", text,
		"terms", len(q.Tokens),
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	w.Header().Set("X-Cache", cacheStatus(h.cache != nil, cacheHit))
	h.writeJSON(w, http.StatusOK, result)
}

// Reload handles POST /api/v1/index/reload. A successful reload also clears
// the query cache.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.executor.Reload(ctx); err != nil {
		logger.FromContext(ctx).Error("index reload failed", "prefix", h.executor.Prefix(), "error", err)
		h.writeAppError(w, err)
		return
	}
	resp := map[string]any{"status": "reloaded", "prefix": h.executor.Prefix()}
	if h.cache != nil {
		deleted, err := h.cache.Invalidate(ctx)
		if err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
		resp["cache_keys_deleted"] = deleted
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeAppError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// parseLimit defaults an empty value and clamps to maxResults.
func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer, got %q", raw)
	}
	return min(n, h.maxResults), nil
}

func cacheStatus(enabled, hit bool) string {
	switch {
	case !enabled:
		return "BYPASS"
	case hit:
		return "HIT"
	default:
		return "MISS"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
}
