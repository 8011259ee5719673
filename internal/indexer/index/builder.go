package index

import (
	"fmt"
	"math"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
)

// Builder accumulates postings over a fixed document collection. Add runs
// the first pass; Finalize computes idf and then document norms and hands
// the result over as an immutable Snapshot. A Builder is single use.
type Builder struct {
	opts      Options
	postings  *Postings
	seen      map[string]struct{}
	err       error
	finalized bool
}

func NewBuilder(opts Options) *Builder {
	return &Builder{
		opts:     opts,
		postings: NewPostings(),
		seen:     make(map[string]struct{}),
	}
}

// Add indexes one document. A document without an ID, or with an ID or term
// that is not valid UTF-8, poisons the builder: the error is returned now and
// again from Finalize. Invalid UTF-8 would not survive the JSON artifacts.
func (b *Builder) Add(doc Document) error {
	if b.finalized {
		return apperrors.ErrBuilderFinalized
	}
	if b.err != nil {
		return b.err
	}
	if doc.ID == "" {
		b.err = fmt.Errorf("document #%d has no id: %w", b.postings.DocCount()+1, apperrors.ErrMissingField)
		return b.err
	}
	if _, dup := b.seen[doc.ID]; dup {
		b.err = fmt.Errorf("document %q: %w", doc.ID, apperrors.ErrDuplicateDocument)
		return b.err
	}
	if !utf8.ValidString(doc.ID) {
		b.err = fmt.Errorf("document id %q is not valid utf-8: %w", doc.ID, apperrors.ErrInvalidInput)
		return b.err
	}
	tf := termFrequencies(doc, b.opts.Fields)
	for term := range tf {
		if !utf8.ValidString(term) {
			b.err = fmt.Errorf("document %q: term %q is not valid utf-8: %w", doc.ID, term, apperrors.ErrInvalidInput)
			return b.err
		}
	}
	b.seen[doc.ID] = struct{}{}
	b.postings.AddDocument(doc.ID, tf)
	return nil
}

// absorb merges a finished partial builder into b, preserving the
// duplicate-ID guarantee across partials.
func (b *Builder) absorb(part *Builder) error {
	if b.err != nil {
		return b.err
	}
	if part.err != nil {
		b.err = part.err
		return b.err
	}
	for id := range part.seen {
		if _, dup := b.seen[id]; dup {
			b.err = fmt.Errorf("document %q: %w", id, apperrors.ErrDuplicateDocument)
			return b.err
		}
		b.seen[id] = struct{}{}
	}
	b.postings.Merge(part.postings)
	return nil
}

// Finalize computes idf for every term, then the L2 norm of every document's
// tf-idf vector, and returns the snapshot.
func (b *Builder) Finalize() (*Snapshot, error) {
	if b.finalized {
		return nil, apperrors.ErrBuilderFinalized
	}
	if b.err != nil {
		return nil, b.err
	}
	b.finalized = true

	n := b.postings.DocCount()
	entries := b.postings.Snapshot()

	postings := make(map[string]PostingList, len(entries))
	df := make(map[string]int, len(entries))
	idf := make(map[string]float64, len(entries))
	for _, e := range entries {
		d := b.postings.DocFreq(e.Term)
		postings[e.Term] = e.Postings
		df[e.Term] = d
		if b.opts.SmoothIDF {
			idf[e.Term] = SmoothedIDF(n, d)
		} else {
			idf[e.Term] = RawIDF(n, d)
		}
	}

	// Terms are visited in sorted order so each document's sum is built in
	// the same order on every run.
	normSq := make(map[string]float64)
	for _, e := range entries {
		w := idf[e.Term]
		for _, p := range e.Postings {
			tw := float64(p.Frequency) * w
			normSq[p.DocID] += tw * tw
		}
	}
	norms := make(map[string]float64, len(normSq))
	for docID, sq := range normSq {
		norms[docID] = math.Sqrt(sq)
	}

	b.postings = nil
	b.seen = nil
	return &Snapshot{
		postings: postings,
		df:       df,
		idf:      idf,
		norms:    norms,
		n:        n,
	}, nil
}

// Build runs both passes over docs.
func Build(docs []Document, opts Options) (*Snapshot, error) {
	b := NewBuilder(opts)
	for _, doc := range docs {
		if err := b.Add(doc); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}

// RawIDF is ln(N/df). It is zero for a term present in every document.
func RawIDF(n, df int) float64 {
	return math.Log(float64(n) / float64(df))
}

// SmoothedIDF is ln((N+1)/(df+1)) + 1.
func SmoothedIDF(n, df int) float64 {
	return math.Log(float64(n+1)/float64(df+1)) + 1.0
}

func termFrequencies(doc Document, fields []string) map[string]int {
	tf := make(map[string]int)
	for _, field := range fields {
		for _, term := range doc.Field(field) {
			tf[term]++
		}
	}
	return tf
}
