// Package document handles loading source files and splitting their text
// into overlapping chunks sized for embedding and retrieval.
package document

// Document is the raw text of one uploaded source. It exists only for the
// duration of an ingest; once chunked and indexed it is discarded.
type Document struct {
	Source  string
	Content string
}

// Chunk is a contiguous piece of a document, the unit of indexing and
// retrieval. Index is the chunk's position within its document.
type Chunk struct {
	Content string
	Source  string
	Index   int
}
