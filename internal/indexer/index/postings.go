package index

import (
	"sort"
)

// Postings is the term -> document -> term frequency store filled during the
// first build pass. It is owned by a single Builder and is not safe for
// concurrent writers.
type Postings struct {
	index map[string]map[string]int
	df    map[string]int
	docs  int
}

func NewPostings() *Postings {
	return &Postings{
		index: make(map[string]map[string]int),
		df:    make(map[string]int),
	}
}

// AddDocument records the term frequencies of one document. Each distinct
// term bumps its document frequency by exactly one.
func (p *Postings) AddDocument(docID string, termFreqs map[string]int) {
	for term, tf := range termFreqs {
		docs, exists := p.index[term]
		if !exists {
			docs = make(map[string]int)
			p.index[term] = docs
		}
		docs[docID] = tf
		p.df[term]++
	}
	p.docs++
}

// Merge folds other into p. Document sets of the two stores must be disjoint.
func (p *Postings) Merge(other *Postings) {
	for term, docs := range other.index {
		dst, exists := p.index[term]
		if !exists {
			dst = make(map[string]int, len(docs))
			p.index[term] = dst
		}
		for docID, tf := range docs {
			dst[docID] = tf
		}
		p.df[term] += other.df[term]
	}
	p.docs += other.docs
}

func (p *Postings) DocFreq(term string) int {
	return p.df[term]
}

func (p *Postings) Terms() []string {
	terms := make([]string, 0, len(p.index))
	for term := range p.index {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// DocCount is the number of documents added, including those that
// contributed no terms.
func (p *Postings) DocCount() int {
	return p.docs
}

// Snapshot returns every term with its postings sorted by DocID, terms in
// ascending order.
func (p *Postings) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(p.index))
	for _, term := range p.Terms() {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: sortedPostings(p.index[term]),
		})
	}
	return entries
}

func sortedPostings(docs map[string]int) PostingList {
	result := make(PostingList, 0, len(docs))
	for docID, tf := range docs {
		result = append(result, Posting{DocID: docID, Frequency: tf})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}
