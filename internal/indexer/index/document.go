package index

// Document is a preprocessed record: a unique ID and named token sequences.
type Document struct {
	ID     string              `json:"id"`
	Fields map[string][]string `json:"fields"`
}

// Field returns the tokens of the named field, or nil when the document
// does not carry it.
func (d Document) Field(name string) []string {
	if d.Fields == nil {
		return nil
	}
	return d.Fields[name]
}

// Options selects which fields are indexed and which idf formula is used.
type Options struct {
	// Fields are concatenated in this order before counting.
	Fields    []string
	SmoothIDF bool
}
