// Package scorer computes cosine similarity between a tokenized query and
// every document sharing at least one term with it, using tf-idf weights
// from an index snapshot. Only the postings of the query terms are touched.
package scorer

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
)

// Score returns doc -> cosine similarity for every document with a non-zero
// dot product against the query. Query terms without an idf entry are
// skipped. An empty map means the query carries no retrievable weight.
func Score(snap *index.Snapshot, tokens []string) map[string]float64 {
	queryTF := make(map[string]int, len(tokens))
	for _, t := range tokens {
		queryTF[t]++
	}
	terms := make([]string, 0, len(queryTF))
	for t := range queryTF {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	scores := make(map[string]float64)
	var querySq float64
	for _, term := range terms {
		idf, ok := snap.IDF(term)
		if !ok {
			continue
		}
		wq := float64(queryTF[term]) * idf
		querySq += wq * wq
		for _, p := range snap.PostingList(term) {
			scores[p.DocID] += wq * (float64(p.Frequency) * idf)
		}
	}

	queryNorm := math.Sqrt(querySq)
	if queryNorm == 0 {
		return map[string]float64{}
	}
	for docID, dot := range scores {
		docNorm := snap.DocNorm(docID)
		var cos float64
		if docNorm != 0 {
			cos = dot / (queryNorm * docNorm)
		}
		if cos == 0 {
			delete(scores, docID)
			continue
		}
		scores[docID] = cos
	}
	return scores
}
