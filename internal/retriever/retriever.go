// Package retriever applies a fixed neighbor policy to index queries.
package retriever

import (
	"context"

	"chatpdf/internal/domain"
)

// Querier is the read side of the vector index.
type Querier interface {
	Query(ctx context.Context, text string, topK int, threshold float64) (domain.RetrievalResult, error)
}

// Policy decides how many neighbors are returned and how close they must be.
type Policy struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// DefaultPolicy returns ten neighbors with no minimum score.
func DefaultPolicy() Policy {
	return Policy{TopK: 10, ScoreThreshold: 0.0}
}

// Retriever is bound to one policy for its lifetime.
type Retriever struct {
	index  Querier
	policy Policy
}

func New(index Querier, policy Policy) *Retriever {
	return &Retriever{index: index, policy: policy}
}

// Policy returns the bound policy.
func (r *Retriever) Policy() Policy { return r.policy }

// Query binds text to the policy.
func (r *Retriever) Query(text string) domain.Query {
	return domain.Query{Text: text, TopK: r.policy.TopK, ScoreThreshold: r.policy.ScoreThreshold}
}

// Retrieve queries the index with the bound policy.
func (r *Retriever) Retrieve(ctx context.Context, text string) (domain.RetrievalResult, error) {
	q := r.Query(text)
	return r.index.Query(ctx, q.Text, q.TopK, q.ScoreThreshold)
}
