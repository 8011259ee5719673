// Package runfile writes rankings in the TREC run format:
//
//	<qid> Q0 <doc_id> <rank> <score> <run_tag>
//
// Ranks start at 1 and scores carry six decimals.
package runfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
)

type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	tag    string
	lines  int
}

// NewWriter buffers output to w. Call Flush when done.
func NewWriter(w io.Writer, runTag string) (*Writer, error) {
	if runTag == "" || strings.ContainsAny(runTag, " \t\n") {
		return nil, fmt.Errorf("run tag %q must be a single non-empty word: %w", runTag, apperrors.ErrInvalidInput)
	}
	return &Writer{w: bufio.NewWriter(w), tag: runTag}, nil
}

// Create writes the run to a new file at path. Close flushes and closes it.
func Create(path, runTag string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating run file: %w", err)
	}
	w, err := NewWriter(f, runTag)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// WriteQuery emits one line per ranked document in the order given. An
// empty ranking writes nothing.
func (w *Writer) WriteQuery(queryID string, ranking []ranker.ScoredDoc) error {
	if queryID == "" || strings.ContainsAny(queryID, " \t\n") {
		return fmt.Errorf("query id %q: %w", queryID, apperrors.ErrInvalidInput)
	}
	for i, doc := range ranking {
		if _, err := fmt.Fprintf(w.w, "%s Q0 %s %d %.6f %s\n", queryID, doc.DocID, i+1, doc.Score, w.tag); err != nil {
			return fmt.Errorf("writing run line for query %s: %w", queryID, err)
		}
		w.lines++
	}
	return nil
}

// Lines reports how many lines have been written.
func (w *Writer) Lines() int {
	return w.lines
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes buffered lines and closes the file opened by Create. It is
// safe to call more than once; only the first call closes the file.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
		w.closer = nil
	}
	if err != nil {
		return fmt.Errorf("closing run file: %w", err)
	}
	return nil
}
