// Package chunker splits loader segments into overlapping windows.
package chunker

import (
	"fmt"
	"maps"

	"github.com/google/uuid"

	"chatpdf/internal/domain"
)

// Chunker splits ordered segments into chunks suitable for embedding.
type Chunker interface {
	Chunk(segments []domain.Segment) ([]domain.Chunk, error)
}

// chunkID is a deterministic UUIDv5 of the document, page and ordinal.
func chunkID(src domain.SourceRef, ordinal int) string {
	ns, err := uuid.Parse(src.DocumentID)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceOID, []byte(src.DocumentID))
	}
	return uuid.NewSHA1(ns, []byte(fmt.Sprintf("%d:%d", src.Page, ordinal))).String()
}

func newChunk(seg domain.Segment, text string, ordinal, start, end int) domain.Chunk {
	meta := make(map[string]any, len(seg.Metadata)+3)
	maps.Copy(meta, seg.Metadata)
	meta["chunk_index"] = ordinal
	meta["start"] = start
	meta["end"] = end
	src := seg.Source
	src.Offset = start
	return domain.Chunk{
		ID:       chunkID(seg.Source, ordinal),
		Text:     text,
		Source:   src,
		Metadata: meta,
	}
}
