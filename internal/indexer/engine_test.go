package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/events"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type capturePublisher struct {
	key string
	evt events.IndexPublished
	err error
}

func (c *capturePublisher) Publish(ctx context.Context, key string, value any) error {
	c.key = key
	c.evt = value.(events.IndexPublished)
	return c.err
}

func docs() []index.Document {
	return []index.Document{
		{ID: "A", Fields: map[string][]string{"HEAD": {"cat"}, "TEXT": {"dog", "dog"}}},
		{ID: "B", Fields: map[string][]string{"HEAD": {"cat", "cat"}, "TEXT": {"bird"}}},
		{ID: "C", Fields: map[string][]string{"TEXT": {"dog"}}},
	}
}

func TestRunSavesAndAnnounces(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "scifact_head_text")
	pub := &capturePublisher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEngine(Config{
		Store:     store.NewFileStore(),
		Backend:   "file",
		Options:   index.Options{Fields: []string{"HEAD", "TEXT"}},
		Workers:   2,
		Publisher: pub,
		Metrics:   m,
	})

	snap, err := e.Run(context.Background(), prefix, docs())
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := store.NewFileStore().Load(context.Background(), prefix)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Equal(snap) {
		t.Error("saved snapshot differs from built snapshot")
	}
	if pub.key != prefix || pub.evt.N != 3 || pub.evt.Terms != 3 || pub.evt.Backend != "file" {
		t.Errorf("announcement = %q %+v", pub.key, pub.evt)
	}
	if got := testutil.ToFloat64(m.DocsIndexedTotal); got != 3 {
		t.Errorf("docs indexed = %v", got)
	}
	if got := testutil.ToFloat64(m.IndexSavesTotal.WithLabelValues("file", "ok")); got != 1 {
		t.Errorf("saves = %v", got)
	}
}

func TestRunBuildFailureSavesNothing(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "p")
	e := NewEngine(Config{Store: store.NewFileStore(), Backend: "file", Options: index.Options{Fields: []string{"TEXT"}}})
	bad := append(docs(), index.Document{Fields: map[string][]string{"TEXT": {"x"}}})
	if _, err := e.Run(context.Background(), prefix, bad); !errors.Is(err, apperrors.ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}
	if _, err := store.NewFileStore().Load(context.Background(), prefix); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("load after failed build: %v", err)
	}
}

func TestPublishFailureKeepsSavedGroup(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "p")
	pub := &capturePublisher{err: errors.New("broker unreachable")}
	e := NewEngine(Config{Store: store.NewFileStore(), Backend: "file", Options: index.Options{Fields: []string{"TEXT"}}, Publisher: pub})
	snap, err := e.Run(context.Background(), prefix, docs())
	if !errors.Is(err, pub.err) {
		t.Fatalf("err = %v", err)
	}
	if snap == nil {
		t.Fatal("snapshot not returned alongside announce error")
	}
	if _, err := store.NewFileStore().Load(context.Background(), prefix); err != nil {
		t.Errorf("saved group unreadable: %v", err)
	}
}
