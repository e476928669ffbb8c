// Package app assembles a session from configuration.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"chatpdf/internal/chunker"
	"chatpdf/internal/composer"
	"chatpdf/internal/config"
	"chatpdf/internal/embedding"
	"chatpdf/internal/embedding/hashing"
	embopenai "chatpdf/internal/embedding/openai"
	"chatpdf/internal/index"
	"chatpdf/internal/llm"
	"chatpdf/internal/llm/ollama"
	chatopenai "chatpdf/internal/llm/openai"
	"chatpdf/internal/loader"
	"chatpdf/internal/logging"
	"chatpdf/internal/retriever"
	"chatpdf/internal/service"
	"chatpdf/internal/summarizer"
	"chatpdf/internal/vectorstore"
	"chatpdf/internal/vectorstore/bolt"
	"chatpdf/internal/vectorstore/memory"
	"chatpdf/internal/vectorstore/qdrant"
)

// Build wires every component named in cfg into a session.
func Build(cfg *config.AppConfig, logger *slog.Logger) (*service.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	ch, err := NewChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	st, err := NewStorage(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	chat, err := NewChatProvider(cfg.Chat)
	if err != nil {
		return nil, err
	}
	comp, err := composer.New(chat, composer.Options{
		Mode:            composer.Mode(cfg.Chat.Mode),
		SystemPrompt:    cfg.Chat.SystemPrompt,
		StripReferences: cfg.Chat.StripReferences,
	}, logger.With("component", "composer"))
	if err != nil {
		return nil, err
	}

	sc := service.Config{
		Loader:   loader.New(),
		Chunker:  ch,
		Index:    index.New(emb, st, logger.With("component", "index")),
		Policy:   retriever.Policy{TopK: cfg.Retriever.TopK, ScoreThreshold: cfg.Retriever.ScoreThreshold},
		Composer: comp,
		Logger:   logger.With("component", "session"),
	}
	if cfg.Summarizer.Type == "frequency" {
		sc.Summarizer = summarizer.NewFrequencySummarizer(cfg.Summarizer.MaxSentences)
	}
	logger.Debug("session assembled",
		"embedder", emb.Name(), "vector_store", cfg.VectorStore.Type,
		"chat", chat.Name(), "mode", cfg.Chat.Mode, "top_k", cfg.Retriever.TopK)
	return service.NewSession(sc)
}

func NewEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Hashing.Dimension), nil
	case "openai":
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Timeout:           seconds(cfg.OpenAI.TimeoutSecs),
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
			MaxRetries:        cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func NewChunker(cfg config.ChunkerConfig) (chunker.Chunker, error) {
	switch cfg.Type {
	case "character", "":
		return chunker.NewCharacterChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	case "sentence":
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func NewStorage(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "bolt", "":
		return bolt.NewStorage(bolt.Config{Dir: cfg.Bolt.Path, OpenTimeout: seconds(cfg.Bolt.OpenTimeoutSecs)}), nil
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    seconds(cfg.Qdrant.TimeoutSecs),
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func NewChatProvider(cfg config.ChatConfig) (llm.ChatProvider, error) {
	switch cfg.Type {
	case "ollama", "":
		return ollama.NewClient(ollama.Config{
			BaseURL:           cfg.Ollama.BaseURL,
			Model:             cfg.Ollama.Model,
			Timeout:           seconds(cfg.Ollama.TimeoutSecs),
			RequestsPerSecond: cfg.Ollama.RequestsPerSecond,
		}), nil
	case "openai":
		client, err := chatopenai.NewClient(chatopenai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Timeout:           seconds(cfg.OpenAI.TimeoutSecs),
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("openai chat init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", cfg.Type)
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
