package index

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
)

// Snapshot is a complete, read-only index: postings, df, idf, document norms
// and the collection size N. It is safe for concurrent readers.
type Snapshot struct {
	postings map[string]PostingList
	df       map[string]int
	idf      map[string]float64
	norms    map[string]float64
	n        int
}

// Parts is the persisted shape of a snapshot, one field per artifact.
type Parts struct {
	Postings map[string]map[string]int
	DF       map[string]int
	IDF      map[string]float64
	DocNorms map[string]float64
	N        int
}

// N is the number of documents the snapshot was built from.
func (s *Snapshot) N() int { return s.n }

func (s *Snapshot) NumTerms() int { return len(s.postings) }

func (s *Snapshot) NumDocs() int { return len(s.norms) }

func (s *Snapshot) DF(term string) int { return s.df[term] }

// IDF reports the idf of term and whether the term is indexed at all.
func (s *Snapshot) IDF(term string) (float64, bool) {
	v, ok := s.idf[term]
	return v, ok
}

// DocNorm returns the stored norm; documents without indexed tokens have 0.
func (s *Snapshot) DocNorm(docID string) float64 {
	return s.norms[docID]
}

// Postings returns a copy of term's doc -> tf mapping, empty if the term is
// unseen.
func (s *Snapshot) Postings(term string) map[string]int {
	list := s.postings[term]
	out := make(map[string]int, len(list))
	for _, p := range list {
		out[p.DocID] = p.Frequency
	}
	return out
}

// PostingList returns term's postings sorted by DocID. The slice is shared
// and must not be modified.
func (s *Snapshot) PostingList(term string) PostingList {
	return s.postings[term]
}

func (s *Snapshot) Terms() []string {
	terms := make([]string, 0, len(s.postings))
	for t := range s.postings {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Docs lists the documents that carry a norm, in ascending order.
func (s *Snapshot) Docs() []string {
	docs := make([]string, 0, len(s.norms))
	for d := range s.norms {
		docs = append(docs, d)
	}
	sort.Strings(docs)
	return docs
}

// Parts copies the snapshot into its persisted shape.
func (s *Snapshot) Parts() Parts {
	p := Parts{
		Postings: make(map[string]map[string]int, len(s.postings)),
		DF:       make(map[string]int, len(s.df)),
		IDF:      make(map[string]float64, len(s.idf)),
		DocNorms: make(map[string]float64, len(s.norms)),
		N:        s.n,
	}
	for term := range s.postings {
		p.Postings[term] = s.Postings(term)
	}
	for k, v := range s.df {
		p.DF[k] = v
	}
	for k, v := range s.idf {
		p.IDF[k] = v
	}
	for k, v := range s.norms {
		p.DocNorms[k] = v
	}
	return p
}

// FromParts rebuilds a snapshot from persisted artifacts, rejecting any set
// of parts that could not have come from a single build.
func FromParts(p Parts) (*Snapshot, error) {
	if p.N < 0 {
		return nil, fmt.Errorf("negative document count %d: %w", p.N, apperrors.ErrParse)
	}
	if len(p.DF) != len(p.Postings) || len(p.IDF) != len(p.Postings) {
		return nil, fmt.Errorf("artifact term counts differ (postings=%d df=%d idf=%d): %w",
			len(p.Postings), len(p.DF), len(p.IDF), apperrors.ErrParse)
	}
	s := &Snapshot{
		postings: make(map[string]PostingList, len(p.Postings)),
		df:       make(map[string]int, len(p.DF)),
		idf:      make(map[string]float64, len(p.IDF)),
		norms:    make(map[string]float64, len(p.DocNorms)),
		n:        p.N,
	}
	for term, docs := range p.Postings {
		if !utf8.ValidString(term) {
			return nil, fmt.Errorf("term %q is not valid utf-8: %w", term, apperrors.ErrParse)
		}
		df, ok := p.DF[term]
		if !ok || df != len(docs) {
			return nil, fmt.Errorf("term %q: df %d does not match %d postings: %w", term, df, len(docs), apperrors.ErrParse)
		}
		if df > p.N {
			return nil, fmt.Errorf("term %q: df %d exceeds N %d: %w", term, df, p.N, apperrors.ErrParse)
		}
		idf, ok := p.IDF[term]
		if !ok || math.IsNaN(idf) || math.IsInf(idf, 0) {
			return nil, fmt.Errorf("term %q: missing or non-finite idf: %w", term, apperrors.ErrParse)
		}
		for docID, tf := range docs {
			if !utf8.ValidString(docID) {
				return nil, fmt.Errorf("term %q: doc id %q is not valid utf-8: %w", term, docID, apperrors.ErrParse)
			}
			if tf <= 0 {
				return nil, fmt.Errorf("term %q doc %q: non-positive tf %d: %w", term, docID, tf, apperrors.ErrParse)
			}
		}
		s.postings[term] = sortedPostings(docs)
		s.df[term] = df
		s.idf[term] = idf
	}
	for docID, norm := range p.DocNorms {
		if !utf8.ValidString(docID) {
			return nil, fmt.Errorf("doc id %q is not valid utf-8: %w", docID, apperrors.ErrParse)
		}
		if norm < 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			return nil, fmt.Errorf("doc %q: invalid norm %v: %w", docID, norm, apperrors.ErrParse)
		}
		s.norms[docID] = norm
	}
	return s, nil
}

// Equal reports field-for-field equality, comparing floats bit for bit.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.n != o.n || len(s.postings) != len(o.postings) || len(s.norms) != len(o.norms) {
		return false
	}
	for term, list := range s.postings {
		other, ok := o.postings[term]
		if !ok || len(list) != len(other) {
			return false
		}
		for i := range list {
			if list[i] != other[i] {
				return false
			}
		}
		if s.df[term] != o.df[term] {
			return false
		}
		if math.Float64bits(s.idf[term]) != math.Float64bits(o.idf[term]) {
			return false
		}
	}
	for docID, norm := range s.norms {
		other, ok := o.norms[docID]
		if !ok || math.Float64bits(norm) != math.Float64bits(other) {
			return false
		}
	}
	return true
}
