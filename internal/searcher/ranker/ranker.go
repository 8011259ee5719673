package ranker

import (
	"container/heap"
	"sort"
)

// DefaultK is the ranking depth used when the caller does not pick one.
const DefaultK = 100

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Before reports whether a ranks above b: higher score first, ties broken
// by ascending document ID.
func Before(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// Finalize orders scores and keeps the best k (DefaultK when k <= 0). The
// result does not depend on the iteration order of scores.
func Finalize(scores map[string]float64, k int) []ScoredDoc {
	if k <= 0 {
		k = DefaultK
	}
	h := make(worstFirst, 0, min(k, len(scores))+1)
	for docID, score := range scores {
		doc := ScoredDoc{DocID: docID, Score: score}
		if h.Len() < k {
			heap.Push(&h, doc)
			continue
		}
		if Before(doc, h[0]) {
			h[0] = doc
			heap.Fix(&h, 0)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ScoredDoc)
	}
	return result
}

// Sort orders docs in place with the same rule as Finalize.
func Sort(docs []ScoredDoc) {
	sort.SliceStable(docs, func(i, j int) bool {
		return Before(docs[i], docs[j])
	})
}

// DocIDs returns the ranked document IDs, rank 1 first.
func DocIDs(ranking []ScoredDoc) []string {
	ids := make([]string, len(ranking))
	for i, d := range ranking {
		ids[i] = d.DocID
	}
	return ids
}

// worstFirst is a min-heap on ranking order: the root is the entry that
// would be dropped first.
type worstFirst []ScoredDoc

func (h worstFirst) Len() int { return len(h) }

func (h worstFirst) Less(i, j int) bool { return Before(h[j], h[i]) }

func (h worstFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *worstFirst) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
