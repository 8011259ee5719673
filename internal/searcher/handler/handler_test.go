package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/executor"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memBackend) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string][]byte)
	return n, nil
}

type staticLoader struct{ snap *index.Snapshot }

func (l staticLoader) Load(ctx context.Context, prefix string) (*index.Snapshot, error) {
	return l.snap, nil
}

func workedExample(t *testing.T) *index.Snapshot {
	t.Helper()
	snap, err := index.Build([]index.Document{
		{ID: "A", Fields: map[string][]string{"TEXT": {"cat", "dog", "dog"}}},
		{ID: "B", Fields: map[string][]string{"TEXT": {"cat", "cat", "bird"}}},
		{ID: "C", Fields: map[string][]string{"TEXT": {"dog"}}},
	}, index.Options{Fields: []string{"TEXT"}})
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func newServer(t *testing.T, withCache bool, loaded bool) (*httptest.Server, *executor.Executor) {
	t.Helper()
	exec := executor.New(staticLoader{workedExample(t)}, "test", strings.Fields, nil)
	if loaded {
		if err := exec.Reload(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&memBackend{data: map[string][]byte{}}, time.Minute, nil)
	}
	h := New(exec, strings.Fields, qc, 100, 500)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, exec
}

func getJSON(t *testing.T, method, url string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatal(err)
		}
	}
	return resp
}

func TestSearchValidation(t *testing.T) {
	srv, _ := newServer(t, false, true)
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing q", "", http.StatusBadRequest},
		{"zero limit", "?q=dog&limit=0", http.StatusBadRequest},
		{"bad limit", "?q=dog&limit=ten", http.StatusBadRequest},
		{"ok", "?q=dog&limit=5", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search"+tt.query, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSearchRanksAndCaches(t *testing.T) {
	srv, _ := newServer(t, true, true)

	var res executor.SearchResult
	resp := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog", &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q on first query", resp.Header.Get("X-Cache"))
	}
	if len(res.Results) != 2 || res.Results[0].DocID != "C" || res.Results[1].DocID != "A" {
		t.Fatalf("results = %+v", res.Results)
	}

	var cached executor.SearchResult
	resp = getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog", &cached)
	if resp.Header.Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache = %q on repeat query", resp.Header.Get("X-Cache"))
	}
	if cached.Results[1].Score != res.Results[1].Score {
		t.Errorf("cached score %v != %v", cached.Results[1].Score, res.Results[1].Score)
	}

	var stats map[string]any
	getJSON(t, http.MethodGet, srv.URL+"/api/v1/cache/stats", &stats)
	if stats["hits"].(float64) != 1 || stats["misses"].(float64) != 1 {
		t.Errorf("stats = %v", stats)
	}

	var inv map[string]any
	resp = getJSON(t, http.MethodPost, srv.URL+"/api/v1/cache/invalidate", &inv)
	if resp.StatusCode != http.StatusOK || inv["keys_deleted"].(float64) != 1 {
		t.Errorf("invalidate = %d %v", resp.StatusCode, inv)
	}
}

func TestSearchUnknownTermsIsEmpty(t *testing.T) {
	srv, _ := newServer(t, true, true)
	var res executor.SearchResult
	resp := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=zebra", &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(res.Results) != 0 || res.TotalHits != 0 {
		t.Errorf("results = %+v", res)
	}
}

func TestSearchBeforeLoad(t *testing.T) {
	srv, _ := newServer(t, false, false)
	resp := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}

	var body map[string]any
	resp = getJSON(t, http.MethodPost, srv.URL+"/api/v1/index/reload", &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "reloaded" {
		t.Fatalf("reload = %d %v", resp.StatusCode, body)
	}
	resp = getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status after reload = %d", resp.StatusCode)
	}
}

func TestCacheDisabled(t *testing.T) {
	srv, _ := newServer(t, false, true)
	var stats map[string]string
	getJSON(t, http.MethodGet, srv.URL+"/api/v1/cache/stats", &stats)
	if stats["status"] != "disabled" {
		t.Errorf("stats = %v", stats)
	}
	resp := getJSON(t, http.MethodPost, srv.URL+"/api/v1/cache/invalidate", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestLimitClamped(t *testing.T) {
	h := New(nil, strings.Fields, nil, 10, 50)
	for raw, want := range map[string]int{"": 10, "7": 7, "5000": 50} {
		got, err := h.parseLimit(raw)
		if err != nil || got != want {
			t.Errorf("parseLimit(%q) = %d, %v; want %d", raw, got, err, want)
		}
	}
}

func TestCachedResultEchoesCurrentQuery(t *testing.T) {
	srv, _ := newServer(t, true, true)

	var first executor.SearchResult
	getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog&id=1", &first)

	var second executor.SearchResult
	resp := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog+&id=2", &second)
	if resp.Header.Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache = %q, want HIT", resp.Header.Get("X-Cache"))
	}
	if second.Query != "dog " || second.QueryID != "2" {
		t.Errorf("query = %q id = %q, want the second request's", second.Query, second.QueryID)
	}
}

func TestSwapBypassesOldCacheEntries(t *testing.T) {
	srv, exec := newServer(t, true, true)
	getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog", nil)

	next, err := index.Build([]index.Document{
		{ID: "X", Fields: map[string][]string{"TEXT": {"dog"}}},
		{ID: "Y", Fields: map[string][]string{"TEXT": {"cat"}}},
	}, index.Options{Fields: []string{"TEXT"}})
	if err != nil {
		t.Fatal(err)
	}
	exec.Swap(next)

	var res executor.SearchResult
	resp := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog", &res)
	if resp.Header.Get("X-Cache") != "MISS" {
		t.Errorf("X-Cache = %q after swap, want MISS", resp.Header.Get("X-Cache"))
	}
	if len(res.Results) != 1 || res.Results[0].DocID != "X" {
		t.Errorf("results = %+v, want the new snapshot's", res.Results)
	}
}

func TestErrorBody(t *testing.T) {
	srv, _ := newServer(t, false, true)
	var body map[string]string
	resp := getJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=dog&limit=-3", &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body["error"], "invalid input") || !strings.Contains(body["error"], `"-3"`) {
		t.Errorf("error = %q", body["error"])
	}
}
