package chunker

import (
	"errors"

	"chatpdf/internal/domain"
)

// CharacterChunker applies a sliding window of runes over each segment.
// Windows never cross segment boundaries.
type CharacterChunker struct {
	size    int
	overlap int
}

// NewCharacterChunker validates 0 <= overlap < size.
func NewCharacterChunker(size, overlap int) (*CharacterChunker, error) {
	if size <= 0 {
		return nil, errors.New("chunk_size must be > 0")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk_overlap must be >= 0 and < chunk_size")
	}
	return &CharacterChunker{size: size, overlap: overlap}, nil
}

// Chunk implements Chunker. Every chunk of a segment but the last holds
// exactly size runes; consecutive chunks share overlap runes.
func (c *CharacterChunker) Chunk(segments []domain.Segment) ([]domain.Chunk, error) {
	step := c.size - c.overlap
	var chunks []domain.Chunk
	for _, seg := range segments {
		runes := []rune(seg.Text)
		if len(runes) == 0 {
			continue
		}
		ordinal := 0
		for start := 0; start < len(runes); start += step {
			end := min(start+c.size, len(runes))
			chunks = append(chunks, newChunk(seg, string(runes[start:end]), ordinal, start, end))
			ordinal++
			if end == len(runes) {
				break
			}
		}
	}
	return chunks, nil
}
