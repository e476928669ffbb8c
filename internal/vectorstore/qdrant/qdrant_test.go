package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpdf/internal/domain"
	"chatpdf/internal/vectorstore"
)

// fakeQdrant serves one collection from memory.
type fakeQdrant struct {
	mu      sync.Mutex
	size    int
	exists  bool
	points  []point
	apiKeys []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	path := strings.TrimPrefix(r.URL.Path, "/collections/docs")
	switch {
	case path == "" && r.Method == http.MethodGet:
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var info collectionInfo
		info.Result.PointsCount = len(f.points)
		info.Result.Config.Params.Vectors.Size = f.size
		_ = json.NewEncoder(w).Encode(info)
	case path == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.exists, f.size = true, body.Vectors.Size
		_, _ = w.Write([]byte(`{"result":true}`))
	case path == "" && r.Method == http.MethodDelete:
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.exists, f.points = false, nil
		_, _ = w.Write([]byte(`{"result":true}`))
	case path == "/points" && r.Method == http.MethodPut:
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case path == "/points/search" && r.Method == http.MethodPost:
		var req struct {
			Vector         []float64 `json:"vector"`
			Limit          int       `json:"limit"`
			ScoreThreshold float64   `json:"score_threshold"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		type hit struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		}
		var hits []hit
		for _, p := range f.points {
			score := vectorstore.Cosine(req.Vector, p.Vector)
			if score >= req.ScoreThreshold {
				hits = append(hits, hit{Score: score, Payload: p.Payload})
			}
		}
		if len(hits) > req.Limit {
			hits = hits[:req.Limit]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": hits})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newStorage(t *testing.T) (*Storage, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL + "/", APIKey: "k", Collection: "docs"}), fake
}

func TestQdrantLifecycle(t *testing.T) {
	ctx := context.Background()
	s, fake := newStorage(t)

	ok, err := s.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Attach(ctx)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)

	require.NoError(t, s.Open(ctx, 2))
	records := []domain.IndexedVector{
		{ChunkID: "0f8fad5b-d9cb-469f-a165-70867728950e", Embedding: []float64{1, 0}, Chunk: domain.Chunk{
			ID: "0f8fad5b-d9cb-469f-a165-70867728950e", Text: "alpha",
			Source: domain.SourceRef{DocumentID: "doc", Path: "a.pdf", Page: 2, Offset: 7},
		}},
		{ChunkID: "not-a-uuid", Embedding: []float64{0, 1}, Chunk: domain.Chunk{ID: "not-a-uuid", Text: "beta"}},
	}
	require.NoError(t, s.Append(ctx, records))
	fake.mu.Lock()
	for _, p := range fake.points {
		assert.Len(t, p.ID, 36)
	}
	fake.mu.Unlock()

	ok, err = s.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	dim, err := s.Attach(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dim)

	res, err := s.Search(ctx, []float64{1, 0.2}, 1, 0.1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "alpha", res[0].Chunk.Text)
	assert.Equal(t, 2, res[0].Chunk.Source.Page)
	assert.Equal(t, 7, res[0].Chunk.Source.Offset)

	assert.ErrorIs(t, s.Open(ctx, 3), domain.ErrDimensionMismatch)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx), "clearing a missing collection is not an error")
	require.NoError(t, s.Close())

	for _, key := range fake.apiKeys {
		assert.Equal(t, "k", key)
	}
}

func TestPointID(t *testing.T) {
	assert.Equal(t, "0f8fad5b-d9cb-469f-a165-70867728950e", pointID("0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Equal(t, pointID("doc:1"), pointID("doc:1"))
	assert.Len(t, pointID("doc:1"), 36)
}
