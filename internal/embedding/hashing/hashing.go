package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"

	"chatpdf/internal/textutil"
)

// DefaultDimension is used when a non-positive dimension is configured.
const DefaultDimension = 512

// Embedder is a local, stateless term-frequency vectorizer. Tokens are
// hashed into a fixed number of buckets with a sign bit to spread
// collisions, weighted by sublinear term frequency and L2-normalized.
// It needs no corpus preparation, so vectors stay comparable across
// separate ingest runs appending to one index.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder with the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed term-frequency embedding for text. Text
// without content tokens yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.dimension <= 0 {
		return nil, errors.New("hashing embedder has no dimension")
	}
	tf := make(map[string]int)
	for _, tok := range textutil.ContentTokens(text) {
		tf[tok]++
	}
	vec := make([]float64, e.dimension)
	for tok, count := range tf {
		idx, sign := e.bucket(tok)
		vec[idx] += sign * (1 + math.Log(float64(count)))
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (e *Embedder) bucket(token string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	sign := 1.0
	if sum&(1<<63) != 0 {
		sign = -1.0
	}
	return int(sum % uint64(e.dimension)), sign
}
