package biz

import (
	"github.com/kart-io/ragchat/pkg/errors"
)

// Chunk is a contiguous segment of a source document.
type Chunk struct {
	// Index is the ordinal position of the chunk in the document.
	Index int
	// Text is the chunk content.
	Text string
}

// SplitText splits text into consecutive segments of size runes; the last
// segment holds the remainder. Concatenating the chunks in order yields text.
func SplitText(text string, size int) ([]Chunk, error) {
	if size <= 0 {
		return nil, errors.ErrInvalidRequest.WithMessagef("chunk size must be positive, got %d", size)
	}
	if text == "" {
		return []Chunk{}, nil
	}

	runes := []rune(text)
	chunks := make([]Chunk, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
	}
	return chunks, nil
}
