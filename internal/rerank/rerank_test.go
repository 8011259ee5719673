package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
)

type scorerFunc func(ctx context.Context, query string, docs []string) ([]float64, error)

func (f scorerFunc) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	return f(ctx, query, docs)
}

// byLength scores each document by its text length.
var byLength = scorerFunc(func(ctx context.Context, query string, docs []string) ([]float64, error) {
	out := make([]float64, len(docs))
	for i, d := range docs {
		out[i] = float64(len(d))
	}
	return out, nil
})

func TestRerankOrdersWithTieBreak(t *testing.T) {
	candidates := []ranker.ScoredDoc{{DocID: "d3", Score: 0.9}, {DocID: "d1", Score: 0.8}, {DocID: "d2", Score: 0.7}, {DocID: "d4", Score: 0.1}}
	texts := map[string]string{"d1": "aa", "d2": "aaaa", "d3": "aa", "d4": "a"}
	got, err := Rerank(context.Background(), byLength, "q", candidates, texts)
	if err != nil {
		t.Fatal(err)
	}
	want := []ranker.ScoredDoc{{DocID: "d2", Score: 4}, {DocID: "d1", Score: 2}, {DocID: "d3", Score: 2}, {DocID: "d4", Score: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rerank = %v, want %v", got, want)
	}
	if candidates[0].DocID != "d3" {
		t.Error("input ranking was modified")
	}
}

func TestRerankMissingText(t *testing.T) {
	got, err := Rerank(context.Background(), byLength, "q", []ranker.ScoredDoc{{DocID: "x", Score: 1}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Score != 0 {
		t.Errorf("missing text scored %v", got[0].Score)
	}
}

func TestRerankLengthMismatch(t *testing.T) {
	short := scorerFunc(func(context.Context, string, []string) ([]float64, error) {
		return []float64{1}, nil
	})
	_, err := Rerank(context.Background(), short, "q", []ranker.ScoredDoc{{DocID: "a", Score: 1}, {DocID: "b", Score: 1}}, nil)
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRerankEmpty(t *testing.T) {
	called := false
	s := scorerFunc(func(context.Context, string, []string) ([]float64, error) {
		called = true
		return nil, nil
	})
	got, err := Rerank(context.Background(), s, "q", nil, nil)
	if err != nil || len(got) != 0 || called {
		t.Errorf("got=%v err=%v called=%v", got, err, called)
	}
}

func TestHTTPScorer(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scores := make([]float64, len(req.Documents))
		for i, d := range req.Documents {
			scores[i] = float64(len(d)) / 10
		}
		json.NewEncoder(w).Encode(scoreResponse{Scores: scores})
	}))
	defer srv.Close()

	s := NewHTTPScorer(config.RerankConfig{Endpoint: srv.URL, Timeout: time.Second, MaxAttempts: 3})
	got, err := s.Score(context.Background(), "query", []string{"abc", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []float64{0.3, 0.1}) {
		t.Errorf("scores = %v", got)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want a retry after 503", attempts.Load())
	}
}

func TestHTTPScorerClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	s := NewHTTPScorer(config.RerankConfig{Endpoint: srv.URL, Timeout: time.Second, MaxAttempts: 3})
	if _, err := s.Score(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1", attempts.Load())
	}
}

func TestHTTPScorerDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := NewHTTPScorer(config.RerankConfig{Endpoint: srv.URL, Timeout: time.Second, MaxAttempts: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := s.Score(ctx, "q", []string{"a"})
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if apperrors.HTTPStatusCode(err) != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", apperrors.HTTPStatusCode(err))
	}
}
