package scorer

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/ranker"
)

func benchSnapshot(b *testing.B, n int) *index.Snapshot {
	b.Helper()
	vocab := []string{"gene", "cell", "protein", "tumor", "express", "receptor", "signal", "mous"}
	docs := make([]index.Document, n)
	for i := range docs {
		text := []string{fmt.Sprintf("uniq%d", i)}
		for j := 0; j < 30; j++ {
			text = append(text, vocab[(i+j*j)%len(vocab)])
		}
		docs[i] = index.Document{ID: fmt.Sprintf("%d", i), Fields: map[string][]string{"TEXT": text}}
	}
	snap, err := index.Build(docs, index.Options{Fields: []string{"TEXT"}})
	if err != nil {
		b.Fatal(err)
	}
	return snap
}

func BenchmarkScoreAndRank(b *testing.B) {
	snap := benchSnapshot(b, 5000)
	queries := map[string][]string{
		"one-term":   {"protein"},
		"three-term": {"gene", "tumor", "receptor"},
		"selective":  {"uniq42", "signal"},
	}
	for name, q := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = ranker.Finalize(Score(snap, q), ranker.DefaultK)
			}
		})
	}
}
