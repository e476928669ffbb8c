package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpdf/internal/config"
	"chatpdf/internal/domain"
	"chatpdf/internal/service"
	"chatpdf/internal/vectorstore/bolt"
)

func TestBuildEndToEnd(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "The PDF says refunds take ten days."},
			"done":    true,
		})
	}))
	defer ollama.Close()

	dir := t.TempDir()
	doc := filepath.Join(dir, "policy.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Refunds are processed within ten business days. Shipping is free over fifty euros."), 0o644))

	cfg := config.Default()
	cfg.VectorStore.Bolt.Path = filepath.Join(dir, "index")
	cfg.Chat.Ollama.BaseURL = ollama.URL
	cfg.Chunker.ChunkSize = 48
	cfg.Chunker.ChunkOverlap = 8

	s, err := Build(cfg, nil)
	require.NoError(t, err)
	defer s.Clear()

	_, err = s.Ask(context.Background(), "refunds?")
	require.ErrorIs(t, err, domain.ErrNotIngested)

	report, err := s.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pages)
	assert.Greater(t, report.Chunks, 1)
	assert.Equal(t, service.StateReady, s.State())
	_, err = os.Stat(filepath.Join(cfg.VectorStore.Bolt.Path, bolt.FileName))
	require.NoError(t, err)

	ans, err := s.Ask(context.Background(), "How long do refunds take?")
	require.NoError(t, err)
	text, err := ans.Text()
	require.NoError(t, err)
	assert.Equal(t, "The  says refunds take ten days.", text)
	assert.Contains(t, ans.Sources[0].Chunk.Text, "Refunds")
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Chat.Mode = "carrier-pigeon"
	_, err := Build(cfg, nil)
	require.Error(t, err)
}

func TestFactories(t *testing.T) {
	t.Setenv("CHATPDF_TEST_MISSING_KEY", "")

	_, err := NewChatProvider(config.ChatConfig{Type: "openai", OpenAI: config.OpenAIChatConfig{APIKeyEnv: "CHATPDF_TEST_MISSING_KEY"}})
	require.Error(t, err)
	_, err = NewEmbedder(config.EmbedderConfig{Type: "openai", OpenAI: config.OpenAIEmbedderConfig{APIKeyEnv: "CHATPDF_TEST_MISSING_KEY"}})
	require.Error(t, err)
	_, err = NewStorage(config.VectorStoreConfig{Type: "chroma"})
	require.Error(t, err)
	_, err = NewChunker(config.ChunkerConfig{Type: "character", ChunkSize: 10, ChunkOverlap: 10})
	require.Error(t, err)

	emb, err := NewEmbedder(config.EmbedderConfig{Type: "hashing", Hashing: config.HashingEmbedderConfig{Dimension: 64}})
	require.NoError(t, err)
	assert.Equal(t, 64, emb.Dimension())

	chat, err := NewChatProvider(config.ChatConfig{Type: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", chat.Name())
}
