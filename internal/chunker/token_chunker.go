// Package chunker splits documents into overlapping token windows for
// retrieval indexing.
package chunker

import (
	"strconv"
	"strings"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

// TokenChunker splits text into fixed-size token windows with overlap.
// Tokens are whitespace-separated words.
type TokenChunker struct {
	chunkSize int
	overlap   int
}

// NewTokenChunker creates a chunker. chunkSize must be positive; overlap is
// clamped to [0, chunkSize-1].
func NewTokenChunker(chunkSize, overlap int) *TokenChunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &TokenChunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk splits the document into windows of at most chunkSize tokens where
// consecutive windows share overlap tokens. Whitespace-only documents yield
// no chunks.
func (c *TokenChunker) Chunk(doc domain.Document) []domain.Chunk {
	tokens := strings.Fields(doc.Content)
	if len(tokens) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	step := c.chunkSize - c.overlap

	for start, idx := 0, 0; start < len(tokens); start, idx = start+step, idx+1 {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         doc.ID + ":" + strconv.Itoa(idx),
			DocumentID: doc.ID,
			Index:      idx,
			Text:       strings.Join(tokens[start:end], " "),
			Path:       doc.Path,
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks
}
