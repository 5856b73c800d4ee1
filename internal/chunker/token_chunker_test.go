package chunker

import (
	"strconv"
	"strings"
	"testing"

	"github.com/thaidata-cloud/lexrag/internal/domain"
)

func wordDoc(n int) domain.Document {
	words := make([]string, n)
	for i := range words {
		words[i] = "w" + strconv.Itoa(i)
	}
	return domain.Document{ID: "doc", Path: "doc.txt", Content: strings.Join(words, " ")}
}

func TestChunk_EmptyDocument(t *testing.T) {
	c := NewTokenChunker(512, 128)
	if chunks := c.Chunk(domain.Document{ID: "d", Content: "  \n\t "}); chunks != nil {
		t.Fatalf("expected no chunks for whitespace document, got %d", len(chunks))
	}
}

func TestChunk_SingleWindow(t *testing.T) {
	c := NewTokenChunker(10, 2)
	chunks := c.Chunk(wordDoc(7))

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ID != "doc:0" || chunks[0].Index != 0 {
		t.Errorf("unexpected chunk identity: %+v", chunks[0])
	}
	if chunks[0].Path != "doc.txt" {
		t.Errorf("expected path carried through, got %q", chunks[0].Path)
	}
}

func TestChunk_OverlapInvariant(t *testing.T) {
	c := NewTokenChunker(10, 3)
	chunks := c.Chunk(wordDoc(25))

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		cur := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)
		if len(cur) > 10 {
			t.Errorf("chunk %d exceeds window: %d tokens", i, len(cur))
		}
		// last 3 tokens of each window reappear at the start of the next
		tail := cur[len(cur)-3:]
		head := next[:3]
		for j := range tail {
			if tail[j] != head[j] {
				t.Fatalf("chunk %d/%d overlap mismatch: %v vs %v", i, i+1, tail, head)
			}
		}
	}
}

func TestChunk_CoversAllTokens(t *testing.T) {
	c := NewTokenChunker(10, 3)
	chunks := c.Chunk(wordDoc(25))

	last := strings.Fields(chunks[len(chunks)-1].Text)
	if last[len(last)-1] != "w24" {
		t.Errorf("expected final token w24, got %q", last[len(last)-1])
	}
}

func TestNewTokenChunker_ClampsOverlap(t *testing.T) {
	c := NewTokenChunker(5, 9)
	chunks := c.Chunk(wordDoc(12))
	// step of at least 1 guarantees termination and forward progress
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Index != chunks[i-1].Index+1 {
			t.Fatalf("chunk indexes not sequential: %d after %d", chunks[i].Index, chunks[i-1].Index)
		}
	}
}
