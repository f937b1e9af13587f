package store

import "coderag/internal/chunker"

// SearchResult is a chunk with its distance to the query vector. Smaller
// distances are closer matches.
type SearchResult struct {
	Chunk    chunker.Chunk
	Distance float64
}

// FileSummary is one indexed file and how many chunks it holds.
type FileSummary struct {
	Path   string
	Chunks int
}
