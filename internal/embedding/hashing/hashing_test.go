package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbedIsNormalizedAndDeterministic(t *testing.T) {
	e := NewEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Refunds are processed within ten business days")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Refunds are processed within ten business days")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, math.Sqrt(dot(a, a)), 1e-9)
}

func TestEmbedSimilarity(t *testing.T) {
	e := NewEmbedder(1024)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "refund business days")
	near, _ := e.Embed(ctx, "Refunds take ten business days. A refund is issued in days.")
	far, _ := e.Embed(ctx, "The office cafeteria serves pasta on Fridays")

	assert.Greater(t, dot(q, near), dot(q, far))
}

func TestEmbedStopwordsOnly(t *testing.T) {
	v, err := NewEmbedder(8).Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 8), v)
}

func TestDefaultDimension(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, "hashing", e.Name())
}

func TestEmbedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
