// Package biz implements the QA pipeline business logic: document
// loading, chunking, indexing, retrieval, answer generation, citation
// extraction, and response quality evaluation.
package biz

import (
	"fmt"
	"sort"

	"github.com/kart-io/anchora/internal/qa/store"
	"github.com/kart-io/anchora/pkg/utils/errors"
)

// PageSpan marks where a page begins inside a document's character stream.
type PageSpan struct {
	// Page is the 1-based page number.
	Page int

	// Start is the character offset at which the page begins.
	Start int
}

// Document is the loader output handed to the chunker.
type Document struct {
	// Source identifies the document, typically its filename.
	Source string

	// Text is the full document content.
	Text string

	// Pages maps character offsets to page numbers. Empty for formats
	// without pages.
	Pages []PageSpan
}

// Chunker splits documents into overlapping windows of Unicode
// characters. Byte offsets never appear: sizes and offsets are all in
// runes so multi-byte text chunks the same as ASCII.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window configuration and returns a chunker.
// The overlap must be strictly smaller than the size or the window
// could never advance.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, errors.ErrQAInvalidConfig.WithMessagef("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, errors.ErrQAInvalidConfig.WithMessagef("chunk overlap must be non-negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, errors.ErrQAInvalidConfig.WithMessagef("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits doc.Text into windows of the configured size, advancing
// size-overlap characters per step. The final window may be shorter.
// Each chunk carries the page containing its starting offset.
func (c *Chunker) Chunk(doc *Document) []store.Chunk {
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]store.Chunk, 0, (len(runes)+step-1)/step)

	for start, idx := 0, 0; start < len(runes); start, idx = start+step, idx+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, store.Chunk{
			ID:          chunkID(doc.Source, idx),
			Source:      doc.Source,
			Page:        pageAt(doc.Pages, start),
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}

// pageAt returns the page containing the given character offset, or 0
// when the document has no page information.
func pageAt(pages []PageSpan, offset int) int {
	if len(pages) == 0 {
		return 0
	}
	// Find the last span starting at or before the offset.
	i := sort.Search(len(pages), func(i int) bool { return pages[i].Start > offset })
	if i == 0 {
		return pages[0].Page
	}
	return pages[i-1].Page
}

func chunkID(source string, idx int) string {
	return fmt.Sprintf("%s:%d", source, idx)
}
