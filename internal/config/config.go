package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// HashingEmbedderConfig configures the local hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                `yaml:"type"`
	Hashing HashingEmbedderConfig `yaml:"hashing"`
	OpenAI  OpenAIEmbedderConfig  `yaml:"openai"`
}

// BoltConfig locates the persisted index directory.
type BoltConfig struct {
	Path            string `yaml:"path"`
	OpenTimeoutSecs int    `yaml:"open_timeout_secs"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string       `yaml:"type"`
	Bolt   BoltConfig   `yaml:"bolt"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// RetrieverConfig is the neighbor policy applied to every question.
type RetrieverConfig struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// OllamaChatConfig configures the Ollama chat provider.
type OllamaChatConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// OpenAIChatConfig configures the OpenAI-compatible chat provider.
type OpenAIChatConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ChatConfig selects the chat provider and how answers are delivered.
type ChatConfig struct {
	Type            string           `yaml:"type"`
	Mode            string           `yaml:"mode"`
	SystemPrompt    string           `yaml:"system_prompt"`
	StripReferences bool             `yaml:"strip_references"`
	Ollama          OllamaChatConfig `yaml:"ollama"`
	OpenAI          OpenAIChatConfig `yaml:"openai"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Document is ingested at startup when set.
	Document              string `yaml:"document"`
	ReadHeaderTimeoutSecs int    `yaml:"read_header_timeout_secs"`
	ShutdownTimeoutSecs   int    `yaml:"shutdown_timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	Chat        ChatConfig        `yaml:"chat"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Server      ServerConfig      `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults. Keys missing from the file keep their default values.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults after expanding ${VAR} references
// from the environment.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(expandEnv(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/chatpdf/config.yaml.
// If neither exists, it writes defaults to ~/.config/chatpdf/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chatpdf", "config.yaml"), nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	return &AppConfig{
		Log:     LogConfig{Level: "info", Format: "text"},
		Chunker: ChunkerConfig{Type: "character", ChunkSize: 1024, ChunkOverlap: 100, SentencesPerChunk: 5, OverlapSentences: 1},
		Embedder: EmbedderConfig{
			Type:    "hashing",
			Hashing: HashingEmbedderConfig{Dimension: 512},
			OpenAI: OpenAIEmbedderConfig{
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				Model:       "text-embedding-3-small",
				TimeoutSecs: 30,
				MaxRetries:  3,
			},
		},
		VectorStore: VectorStoreConfig{
			Type:   "bolt",
			Bolt:   BoltConfig{Path: "chroma_db", OpenTimeoutSecs: 5},
			Qdrant: QdrantConfig{URL: "http://localhost:6333", Collection: "chatpdf", TimeoutSecs: 15},
		},
		Retriever: RetrieverConfig{TopK: 10, ScoreThreshold: 0.0},
		Chat: ChatConfig{
			Type:            "ollama",
			Mode:            "batch",
			SystemPrompt:    "You are a helpful assistant that can answer questions about the PDF document provided.",
			StripReferences: true,
			Ollama:          OllamaChatConfig{BaseURL: "http://localhost:11434", Model: "mistral", TimeoutSecs: 120},
			OpenAI: OpenAIChatConfig{
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				Model:       "gpt-4o-mini",
				TimeoutSecs: 120,
			},
		},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Server:     ServerConfig{Addr: ":5000", ReadHeaderTimeoutSecs: 10, ShutdownTimeoutSecs: 10},
	}
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Chunker.Type {
	case "character":
		if c.Chunker.ChunkSize <= 0 {
			errs = append(errs, fmt.Errorf("chunker.chunk_size must be > 0, got %d", c.Chunker.ChunkSize))
		} else if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
			errs = append(errs, fmt.Errorf("chunker.chunk_overlap must be in [0, %d), got %d", c.Chunker.ChunkSize, c.Chunker.ChunkOverlap))
		}
	case "sentence":
		if c.Chunker.SentencesPerChunk <= 0 {
			errs = append(errs, fmt.Errorf("chunker.sentences_per_chunk must be > 0, got %d", c.Chunker.SentencesPerChunk))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown chunker type %q", c.Chunker.Type))
	}
	switch c.Embedder.Type {
	case "hashing", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown embedder type %q", c.Embedder.Type))
	}
	switch c.VectorStore.Type {
	case "bolt":
		if c.VectorStore.Bolt.Path == "" {
			errs = append(errs, errors.New("vector_store.bolt.path is required"))
		}
	case "qdrant":
		if c.VectorStore.Qdrant.URL == "" || c.VectorStore.Qdrant.Collection == "" {
			errs = append(errs, errors.New("vector_store.qdrant needs url and collection"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown vector store type %q", c.VectorStore.Type))
	}
	if c.Retriever.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retriever.top_k must be > 0, got %d", c.Retriever.TopK))
	}
	switch c.Chat.Type {
	case "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown chat type %q", c.Chat.Type))
	}
	switch c.Chat.Mode {
	case "batch", "stream":
	default:
		errs = append(errs, fmt.Errorf("unknown chat mode %q", c.Chat.Mode))
	}
	switch c.Summarizer.Type {
	case "frequency", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown summarizer type %q", c.Summarizer.Type))
	}
	return errors.Join(errs...)
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} with its value. Bare $ signs are left alone.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}
