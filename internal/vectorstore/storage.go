package vectorstore

import (
	"context"
	"errors"

	"chatpdf/internal/domain"
)

// ErrNotFound is returned by Attach when nothing is persisted.
var ErrNotFound = errors.New("vector store not found")

// Storage persists vectors and supports similarity search. Implementations
// are safe for concurrent use; the index above them serializes writes.
type Storage interface {
	// Open creates the store for vectors of the given dimension, or attaches
	// to an existing one, failing on a dimension mismatch.
	Open(ctx context.Context, dimension int) error
	// Attach opens an existing store and reports its dimension.
	Attach(ctx context.Context) (int, error)
	Exists(ctx context.Context) (bool, error)
	// Append writes all records or none of them.
	Append(ctx context.Context, records []domain.IndexedVector) error
	// Search returns at most topK results scoring at least threshold,
	// ordered by descending score with ties in insertion order.
	Search(ctx context.Context, vector []float64, topK int, threshold float64) ([]domain.SearchResult, error)
	// Clear deletes all persisted vectors.
	Clear(ctx context.Context) error
	// Close releases handles; persisted data stays.
	Close() error
}
