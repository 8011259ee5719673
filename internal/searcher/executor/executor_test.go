package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeLoader struct {
	mu    sync.Mutex
	snaps []*index.Snapshot
	err   error
	calls int
}

func (f *fakeLoader) Load(ctx context.Context, prefix string) (*index.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := f.snaps[0]
	if len(f.snaps) > 1 {
		f.snaps = f.snaps[1:]
	}
	return s, nil
}

func snapshot(t *testing.T, docs map[string]string) *index.Snapshot {
	t.Helper()
	b := index.NewBuilder(index.Options{Fields: []string{"TEXT"}})
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if err := b.Add(index.Document{ID: id, Fields: map[string][]string{"TEXT": strings.Fields(docs[id])}}); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := b.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestExecuteWithoutIndex(t *testing.T) {
	e := New(nil, "prefix", strings.Fields, nil)
	_, err := e.Execute(context.Background(), Query{Text: "dog"}, 10)
	if !errors.Is(err, apperrors.ErrNoIndex) {
		t.Errorf("err = %v, want ErrNoIndex", err)
	}
	if err := e.Reload(context.Background()); !errors.Is(err, apperrors.ErrNoIndex) {
		t.Errorf("reload without loader: %v", err)
	}
}

func TestExecuteRanks(t *testing.T) {
	loader := &fakeLoader{snaps: []*index.Snapshot{snapshot(t, map[string]string{
		"A": "cat dog dog",
		"B": "cat cat bird",
		"C": "dog",
	})}}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := New(loader, "scifact", strings.Fields, m)
	if err := e.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, err := e.Execute(context.Background(), Query{ID: "1", Text: "dog"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalHits != 2 || len(res.Results) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Results[0].DocID != "C" || res.Results[1].DocID != "A" {
		t.Errorf("ranking = %v, want C then A", res.Results)
	}
	if res.TermStats["dog"] != 2 {
		t.Errorf("term stats = %v", res.TermStats)
	}

	res, err = e.Execute(context.Background(), Query{Tokens: []string{"bird"}, Text: "ignored"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 1 || res.Results[0].DocID != "B" {
		t.Errorf("pre-tokenized query ranking = %v", res.Results)
	}

	res, err = e.Execute(context.Background(), Query{Text: "zebra"}, 10)
	if err != nil {
		t.Fatalf("unknown terms must not error: %v", err)
	}
	if len(res.Results) != 0 || res.Results == nil {
		t.Errorf("unknown-term results = %#v, want empty slice", res.Results)
	}
}

func TestExecuteLimit(t *testing.T) {
	docs := make(map[string]string)
	for i := 0; i < 30; i++ {
		text := fmt.Sprintf("filler%d", i)
		if i%3 != 0 {
			text = strings.Repeat("gene ", 1+i%4) + text
		}
		docs[fmt.Sprintf("d%02d", i)] = text
	}
	e := New(nil, "p", strings.Fields, nil)
	e.Swap(snapshot(t, docs))
	res, err := e.Execute(context.Background(), Query{Text: "gene"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 5 || res.TotalHits != 20 {
		t.Errorf("got %d results of %d hits", len(res.Results), res.TotalHits)
	}
}

func TestReloadFailureKeepsSnapshot(t *testing.T) {
	first := snapshot(t, map[string]string{"A": "dog"})
	loader := &fakeLoader{snaps: []*index.Snapshot{first}}
	e := New(loader, "p", strings.Fields, nil)
	if err := e.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	loader.err = fmt.Errorf("disk gone: %w", apperrors.ErrNotFound)
	if err := e.Reload(context.Background()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if e.Snapshot() != first {
		t.Error("failed reload replaced the active snapshot")
	}
}

func TestSwapGeneration(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	loader := &fakeLoader{snaps: []*index.Snapshot{nil}}
	e := New(loader, "p", strings.Fields, m)

	e.Swap(nil)
	if e.Snapshot() != nil || e.Generation() != 0 {
		t.Fatalf("nil swap installed a snapshot (generation %d)", e.Generation())
	}
	if err := e.Reload(context.Background()); !errors.Is(err, apperrors.ErrNoIndex) {
		t.Errorf("reload of nil snapshot: err = %v, want ErrNoIndex", err)
	}

	first := snapshot(t, map[string]string{"A": "dog"})
	e.Swap(first)
	e.Swap(first)
	if e.Generation() != 2 {
		t.Errorf("generation = %d after two swaps, want 2", e.Generation())
	}
	if e.Snapshot() != first {
		t.Error("swap did not install the snapshot")
	}
}

func TestConcurrentQueriesDuringSwap(t *testing.T) {
	a := snapshot(t, map[string]string{"A": "dog cat", "B": "dog", "C": "cat bird"})
	b := snapshot(t, map[string]string{"X": "dog", "Y": "dog bird", "Z": "cat"})
	e := New(nil, "p", strings.Fields, nil)
	e.Swap(a)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				res, err := e.Execute(context.Background(), Query{Text: "dog"}, 10)
				if err != nil {
					errs <- err
					return
				}
				if n := len(res.Results); n != 2 {
					errs <- fmt.Errorf("saw %d results, want 2 from either snapshot", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			e.Swap(b)
		} else {
			e.Swap(a)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
