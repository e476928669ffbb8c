package chunker

import (
	"strings"

	"chatpdf/internal/domain"
	"chatpdf/internal/textutil"
)

// SentenceChunker groups whole sentences into chunks with sentence overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

// Chunk implements Chunker. Offsets are sentence indices within the segment.
func (c *SentenceChunker) Chunk(segments []domain.Segment) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, seg := range segments {
		sentences := textutil.Sentences(seg.Text)
		ordinal := 0
		for i := 0; i < len(sentences); {
			end := min(i+c.sentencesPerChunk, len(sentences))
			text := strings.Join(sentences[i:end], " ")
			chunks = append(chunks, newChunk(seg, text, ordinal, i, end))
			if end == len(sentences) {
				break
			}
			i = end - c.overlapSentences
			ordinal++
		}
	}
	return chunks, nil
}
