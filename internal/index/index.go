// Package index binds an embedding provider to a vector storage backend.
package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"chatpdf/internal/domain"
	"chatpdf/internal/embedding"
	"chatpdf/internal/vectorstore"
)

// Index embeds chunks and queries on the way in. Writes are serialized
// against each other and against queries.
type Index struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
	log      *slog.Logger

	mu        sync.RWMutex
	attached  bool
	dimension int
}

func New(embedder embedding.Embedder, store vectorstore.Storage, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Index{embedder: embedder, store: store, log: logger}
}

// Write embeds every chunk and then persists all of them in one append.
// An embedding failure writes nothing. The persisted index is created on
// first use and appended to afterwards.
func (ix *Index) Write(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]domain.IndexedVector, len(chunks))
	for i, ch := range chunks {
		vec, err := ix.embedder.Embed(ctx, ch.Text)
		if err != nil {
			return fmt.Errorf("%w: chunk %d (%s): %w", domain.ErrEmbeddingProvider, i, ch.ID, err)
		}
		if i > 0 && len(vec) != len(records[0].Embedding) {
			return fmt.Errorf("%w: %w: chunk %d has %d, want %d", domain.ErrEmbeddingProvider, domain.ErrDimensionMismatch, i, len(vec), len(records[0].Embedding))
		}
		records[i] = domain.IndexedVector{ChunkID: ch.ID, Embedding: vec, Chunk: ch}
	}
	dim := len(records[0].Embedding)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.attached {
		if err := ix.store.Open(ctx, dim); err != nil {
			return err
		}
		ix.attached, ix.dimension = true, dim
	} else if dim != ix.dimension {
		return fmt.Errorf("%w: index has %d, embedder produced %d", domain.ErrDimensionMismatch, ix.dimension, dim)
	}
	if err := ix.store.Append(ctx, records); err != nil {
		return err
	}
	ix.log.Debug("index write", "chunks", len(records), "dimension", dim)
	return nil
}

// Query returns the topK stored chunks most similar to text whose score is
// at least threshold. No match is an empty result, not an error.
func (ix *Index) Query(ctx context.Context, text string, topK int, threshold float64) (domain.RetrievalResult, error) {
	if topK <= 0 {
		return nil, domain.ErrInvalidTopK
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.attached {
		return nil, domain.ErrNotIngested
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, err)
	}
	if len(vec) != ix.dimension {
		return nil, fmt.Errorf("%w: index has %d, query has %d", domain.ErrDimensionMismatch, ix.dimension, len(vec))
	}
	res, err := ix.store.Search(ctx, vec, topK, threshold)
	if err != nil {
		return nil, err
	}
	ix.log.Debug("index query", "top_k", topK, "threshold", threshold, "results", len(res))
	return domain.RetrievalResult(res), nil
}

// Load attaches to a previously persisted index without re-embedding.
func (ix *Index) Load(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	dim, err := ix.store.Attach(ctx)
	if errors.Is(err, vectorstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrNotIngested, err)
	}
	if err != nil {
		return err
	}
	if want := ix.embedder.Dimension(); want > 0 && want != dim {
		return fmt.Errorf("%w: index has %d, embedder %s produces %d", domain.ErrDimensionMismatch, dim, ix.embedder.Name(), want)
	}
	ix.attached, ix.dimension = true, dim
	ix.log.Debug("index loaded", "dimension", dim)
	return nil
}

// Exists reports whether persisted vectors are available to Load.
func (ix *Index) Exists(ctx context.Context) (bool, error) {
	return ix.store.Exists(ctx)
}

// Attached reports whether Write or Load has bound the index to storage.
func (ix *Index) Attached() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.attached
}

// Detach releases storage handles. Persisted data stays for a later Load.
func (ix *Index) Detach() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.attached, ix.dimension = false, 0
	return ix.store.Close()
}

// Reset deletes all persisted vectors.
func (ix *Index) Reset(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.attached, ix.dimension = false, 0
	return ix.store.Clear(ctx)
}
