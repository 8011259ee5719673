package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/resilience"
)

type scoreRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// HTTPScorer posts {"query", "documents"} to a model server and expects
// {"scores"} back. 5xx responses and transport errors are retried; other
// non-200 responses fail immediately. Repeated failures open a circuit
// breaker so a dead model server fails fast.
type HTTPScorer struct {
	endpoint string
	client   *http.Client
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

func NewHTTPScorer(cfg config.RerankConfig) *HTTPScorer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPScorer{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: timeout},
		retry:    resilience.RetryConfig{MaxAttempts: cfg.MaxAttempts, InitialDelay: 200 * time.Millisecond},
		breaker:  resilience.NewCircuitBreaker("rerank", resilience.CircuitBreakerConfig{}),
	}
}

// Score returns one score per document. Deadline failures wrap
// apperrors.ErrTimeout.
func (s *HTTPScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	body, err := json.Marshal(scoreRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("encoding rerank request: %w", err)
	}
	var resp scoreResponse
	err = s.breaker.Execute(func() error {
		return resilience.Retry(ctx, "rerank", s.retry, func(ctx context.Context) error {
			return s.post(ctx, body, &resp)
		})
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("rerank %s: %w: %w", s.endpoint, apperrors.ErrTimeout, err)
	}
	if err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

func (s *HTTPScorer) post(ctx context.Context, body []byte, out *scoreResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return resilience.Permanent(fmt.Errorf("building rerank request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", s.endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		err := fmt.Errorf("rerank server returned %d: %s", res.StatusCode, bytes.TrimSpace(msg))
		if res.StatusCode >= 500 {
			return err
		}
		return resilience.Permanent(err)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decoding rerank response: %w", err))
	}
	return nil
}
