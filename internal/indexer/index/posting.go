package index

// Posting records how often a term occurs in one document.
type Posting struct {
	DocID     string `json:"doc_id"`
	Frequency int    `json:"tf"`
}

// PostingList is a term's postings ordered by ascending DocID.
type PostingList []Posting

// TermEntry pairs a term with its sorted postings.
type TermEntry struct {
	Term     string
	Postings PostingList
}
