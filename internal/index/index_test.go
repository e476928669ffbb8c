package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpdf/internal/domain"
	"chatpdf/internal/embedding/hashing"
	"chatpdf/internal/vectorstore/bolt"
	"chatpdf/internal/vectorstore/memory"
)

// failingEmbedder fails on texts listed in fail.
type failingEmbedder struct {
	*hashing.Embedder
	fail map[string]bool
}

func (f failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if f.fail[text] {
		return nil, errors.New("provider unavailable")
	}
	return f.Embedder.Embed(ctx, text)
}

func chunk(id, text string) domain.Chunk {
	return domain.Chunk{ID: id, Text: text, Source: domain.SourceRef{DocumentID: "doc", Page: 1}}
}

var corpus = []domain.Chunk{
	chunk("c1", "Invoices are sent on the first business day of each month."),
	chunk("c2", "Refunds are processed within ten business days of approval."),
	chunk("c3", "Support is available by phone from nine to five."),
	chunk("c4", "Late payments incur a fee of two percent per month."),
}

func TestQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	ix := New(hashing.NewEmbedder(256), memory.NewStorage(), nil)
	require.NoError(t, ix.Write(ctx, corpus))

	for _, c := range corpus {
		res, err := ix.Query(ctx, c.Text, 1, 0.0)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, c.ID, res[0].Chunk.ID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	}
}

func TestQueryRespectsTopKAndThreshold(t *testing.T) {
	ctx := context.Background()
	ix := New(hashing.NewEmbedder(256), memory.NewStorage(), nil)
	require.NoError(t, ix.Write(ctx, corpus))

	for _, k := range []int{1, 2, 3, 10} {
		for _, threshold := range []float64{-1, 0, 0.1, 0.5} {
			res, err := ix.Query(ctx, "business days refunds month", k, threshold)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(res), k)
			for i, r := range res {
				assert.GreaterOrEqual(t, r.Score, threshold)
				if i > 0 {
					assert.GreaterOrEqual(t, res[i-1].Score, r.Score)
				}
			}
		}
	}
}

func TestQueryNoMatchIsEmpty(t *testing.T) {
	ctx := context.Background()
	ix := New(hashing.NewEmbedder(256), memory.NewStorage(), nil)
	require.NoError(t, ix.Write(ctx, corpus))

	res, err := ix.Query(ctx, "refunds", 5, 1.01)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestQueryValidation(t *testing.T) {
	ctx := context.Background()
	ix := New(hashing.NewEmbedder(16), memory.NewStorage(), nil)

	_, err := ix.Query(ctx, "x", 3, 0)
	assert.ErrorIs(t, err, domain.ErrNotIngested)

	require.NoError(t, ix.Write(ctx, corpus[:1]))
	_, err = ix.Query(ctx, "x", 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTopK)
}

func TestWriteEmbeddingFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	emb := failingEmbedder{Embedder: hashing.NewEmbedder(16), fail: map[string]bool{corpus[2].Text: true}}
	ix := New(emb, store, nil)

	err := ix.Write(ctx, corpus)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)

	ok, err := ix.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, ix.Attached())
}

func TestQueryEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	emb := failingEmbedder{Embedder: hashing.NewEmbedder(16), fail: map[string]bool{"boom": true}}
	ix := New(emb, memory.NewStorage(), nil)
	require.NoError(t, ix.Write(ctx, corpus))

	_, err := ix.Query(ctx, "boom", 1, 0)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}

func TestLoadPersistedIndex(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "chroma_db")

	first := New(hashing.NewEmbedder(128), bolt.NewStorage(bolt.Config{Dir: dir}), nil)
	ok, err := first.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, first.Load(ctx), domain.ErrNotIngested)

	require.NoError(t, first.Write(ctx, corpus))
	require.NoError(t, first.Detach())
	assert.False(t, first.Attached())

	second := New(hashing.NewEmbedder(128), bolt.NewStorage(bolt.Config{Dir: dir}), nil)
	defer second.Detach()
	ok, err = second.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Load(ctx))

	res, err := second.Query(ctx, corpus[3].Text, 1, 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "c4", res[0].Chunk.ID)

	require.NoError(t, second.Write(ctx, []domain.Chunk{chunk("c5", "Parking is free for visitors.")}))
	res, err = second.Query(ctx, "parking visitors", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, "c5", res[0].Chunk.ID)
}

func TestLoadDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := New(hashing.NewEmbedder(64), bolt.NewStorage(bolt.Config{Dir: dir}), nil)
	require.NoError(t, first.Write(ctx, corpus))
	require.NoError(t, first.Detach())

	second := New(hashing.NewEmbedder(32), bolt.NewStorage(bolt.Config{Dir: dir}), nil)
	defer second.Detach()
	assert.ErrorIs(t, second.Load(ctx), domain.ErrDimensionMismatch)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	ix := New(hashing.NewEmbedder(16), bolt.NewStorage(bolt.Config{Dir: t.TempDir()}), nil)
	defer ix.Detach()
	require.NoError(t, ix.Write(ctx, corpus))

	require.NoError(t, ix.Reset(ctx))
	ok, err := ix.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = ix.Query(ctx, "x", 1, 0)
	assert.ErrorIs(t, err, domain.ErrNotIngested)
}

func TestConcurrentWriteAndQuery(t *testing.T) {
	ctx := context.Background()
	ix := New(hashing.NewEmbedder(64), bolt.NewStorage(bolt.Config{Dir: t.TempDir()}), nil)
	defer ix.Detach()
	require.NoError(t, ix.Write(ctx, corpus))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, ix.Write(ctx, []domain.Chunk{chunk(fmt.Sprintf("w%d", i), fmt.Sprintf("extra note number %d", i))}))
		}(i)
		go func() {
			defer wg.Done()
			res, err := ix.Query(ctx, "refunds", 3, 0)
			assert.NoError(t, err)
			assert.LessOrEqual(t, len(res), 3)
		}()
	}
	wg.Wait()

	res, err := ix.Query(ctx, "extra note number", 100, -2)
	require.NoError(t, err)
	assert.Len(t, res, len(corpus)+8)
}
