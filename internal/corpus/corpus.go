// Package corpus reads JSON Lines collections and query sets and maps them
// onto index documents.
package corpus

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/vsm-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vsm-retrieval/pkg/errors"
)

// Field names documents are indexed under.
const (
	FieldHead = "HEAD"
	FieldText = "TEXT"
)

const maxLineBytes = 16 << 20

// ID accepts both JSON strings and numbers, since collections disagree on
// how identifiers are encoded.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

type Record struct {
	ID    ID
	Title string
	Text  string
}

// DefaultIDField is the identifier key used when none is configured.
const DefaultIDField = "_id"

// ReadRecords decodes one record per non-blank line, taking the identifier
// from idField and the content from "title" and "text". Other keys are
// ignored. A malformed line fails with ErrParse naming its line number.
func ReadRecords(r io.Reader, idField string) ([]Record, error) {
	if idField == "" {
		idField = DefaultIDField
	}
	var records []Record
	err := eachLine(r, func(lineNo int, line []byte) error {
		rec, err := decodeRecord(line, idField)
		if err != nil {
			return fmt.Errorf("line %d: %v: %w", lineNo, err, apperrors.ErrParse)
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

func decodeRecord(line []byte, idField string) (Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Record{}, err
	}
	var rec Record
	if v, ok := raw[idField]; ok {
		if err := rec.ID.UnmarshalJSON(v); err != nil {
			return Record{}, fmt.Errorf("field %s: %w", idField, err)
		}
	}
	for key, dst := range map[string]*string{"title": &rec.Title, "text": &rec.Text} {
		v, ok := raw[key]
		if !ok || bytes.Equal(v, []byte("null")) {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return Record{}, fmt.Errorf("field %s: %w", key, err)
		}
	}
	return rec, nil
}

func LoadRecords(path, idField string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	records, err := ReadRecords(f, idField)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	return records, nil
}

// ReadQueries decodes {"_id", "text"} lines.
func ReadQueries(r io.Reader) ([]Query, error) {
	records, err := ReadRecords(r, DefaultIDField)
	if err != nil {
		return nil, err
	}
	queries := make([]Query, len(records))
	for i, rec := range records {
		queries[i] = Query{ID: string(rec.ID), Text: rec.Text}
	}
	return queries, nil
}

func LoadQueries(path string) ([]Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening queries: %w", err)
	}
	defer f.Close()
	queries, err := ReadQueries(f)
	if err != nil {
		return nil, fmt.Errorf("reading queries %s: %w", path, err)
	}
	return queries, nil
}

// ToDocuments analyzes title into HEAD and text into TEXT. Records keep
// their order; an empty ID is passed through for the builder to reject.
func ToDocuments(records []Record, analyze func(string) []string) []index.Document {
	docs := make([]index.Document, len(records))
	for i, rec := range records {
		docs[i] = index.Document{
			ID: string(rec.ID),
			Fields: map[string][]string{
				FieldHead: analyze(rec.Title),
				FieldText: analyze(rec.Text),
			},
		}
	}
	return docs
}

// DocText joins title and text as "title. text" for re-rankers, falling back
// to whichever part is present.
func DocText(title, text string) string {
	title, text = strings.TrimSpace(title), strings.TrimSpace(text)
	if title != "" && text != "" {
		return title + ". " + text
	}
	if title != "" {
		return title
	}
	return text
}

// Texts maps document IDs to DocText.
func Texts(records []Record) map[string]string {
	texts := make(map[string]string, len(records))
	for _, rec := range records {
		texts[string(rec.ID)] = DocText(rec.Title, rec.Text)
	}
	return texts
}

// FilterOddIDs keeps queries whose ID is an odd integer. Non-numeric IDs
// are dropped.
func FilterOddIDs(queries []Query) []Query {
	out := make([]Query, 0, len(queries)/2+1)
	for _, q := range queries {
		n, err := strconv.ParseInt(q.ID, 10, 64)
		if err == nil && n%2 != 0 {
			out = append(out, q)
		}
	}
	return out
}

// SortQueries orders queries by ascending numeric ID. Non-numeric IDs sort
// after all numeric ones, lexicographically.
func SortQueries(queries []Query) {
	sort.SliceStable(queries, func(i, j int) bool {
		return LessID(queries[i].ID, queries[j].ID)
	})
}

// LessID is the query ordering used for run files.
func LessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

func eachLine(r io.Reader, fn func(lineNo int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return sc.Err()
}
