package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chatpdf/internal/domain"
	"chatpdf/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Nothing survives the process.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.IndexedVector
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Open(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("%w: store has %d, got %d", domain.ErrDimensionMismatch, s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Attach(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension == 0 {
		return 0, vectorstore.ErrNotFound
	}
	return s.dimension, nil
}

func (s *Storage) Exists(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) > 0, nil
}

func (s *Storage) Append(_ context.Context, records []domain.IndexedVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("storage not opened")
	}
	for _, r := range records {
		if len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: store has %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(r.Embedding))
		}
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int, threshold float64) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ranker := vectorstore.NewRanker(vector, threshold)
	for _, r := range s.records {
		ranker.Add(r.Chunk, r.Embedding)
	}
	return ranker.Top(topK), nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.dimension = 0
	return nil
}

// Close is a no-op; records stay available for a later Attach.
func (s *Storage) Close() error { return nil }
