package vectorstore

import (
	"math"
	"sort"

	"chatpdf/internal/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func Cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Ranker accumulates candidates in insertion order and yields the top K.
type Ranker struct {
	query     []float64
	threshold float64
	results   []domain.SearchResult
}

// NewRanker scores candidates against query.
func NewRanker(query []float64, threshold float64) *Ranker {
	return &Ranker{query: query, threshold: threshold}
}

// Add scores one candidate. Candidates must be added in insertion order.
func (r *Ranker) Add(chunk domain.Chunk, vector []float64) {
	score := Cosine(r.query, vector)
	if score < r.threshold {
		return
	}
	r.results = append(r.results, domain.SearchResult{Chunk: chunk, Score: score})
}

// Top returns at most k results by descending score; equal scores keep
// insertion order.
func (r *Ranker) Top(k int) []domain.SearchResult {
	sort.SliceStable(r.results, func(i, j int) bool { return r.results[i].Score > r.results[j].Score })
	if k < len(r.results) {
		r.results = r.results[:k]
	}
	return r.results
}
