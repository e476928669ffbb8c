package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// A provider instance produces vectors of one fixed dimensionality.
type Embedder interface {
	Name() string
	// Dimension may return 0 until the first successful Embed for remote
	// providers that learn it from the response.
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}
