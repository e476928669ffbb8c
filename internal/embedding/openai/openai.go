package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
// It also understands the Ollama-native response shape.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration

	mu        sync.Mutex
	dimension int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// RequestsPerSecond throttles outgoing requests; 0 disables the limit.
	RequestsPerSecond float64
	MaxRetries        int
	// RetryBaseDelay is the first backoff step, doubled per attempt.
	RetryBaseDelay time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
// An empty APIKeyEnv means the endpoint needs no authentication.
func NewClient(cfg Config) (*Client, error) {
	var key string
	if cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     key,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		limiter:    limiter,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the dimensionality learned from the first response.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

type reqBody struct {
	Input  string `json:"input,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Model  string `json:"model"`
}

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	url := c.baseURL + "/embeddings"
	data, err := json.Marshal(reqBody{Input: text, Prompt: text, Model: c.model})
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.retryDelay(attempt-1, lastErr)); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		v, retry, err := c.do(ctx, url, data)
		if err == nil {
			return v, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

type retryAfterError struct {
	status string
	after  time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("openai embeddings failed: %s", e.status)
}

func (c *Client) do(ctx context.Context, url string, data []byte) ([]float64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	payload, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		rae := &retryAfterError{status: resp.Status}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			rae.after = time.Duration(secs) * time.Second
		}
		return nil, true, rae
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("openai embeddings failed: %s", resp.Status)
	}
	if err != nil {
		return nil, true, err
	}

	// Try OpenAI-compatible response first
	var openaiOut struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return c.accept(openaiOut.Data[0].Embedding)
		}
	}
	// Fallback to Ollama-native shape: { "embedding": [...] }
	var ollamaOut struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return c.accept(ollamaOut.Embedding)
	}
	return nil, true, errors.New("no embedding returned")
}

func (c *Client) accept(v []float64) ([]float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dimension == 0 {
		c.dimension = len(v)
	}
	if len(v) != c.dimension {
		return nil, false, fmt.Errorf("embedding dimension changed from %d to %d", c.dimension, len(v))
	}
	return v, false, nil
}

func (c *Client) retryDelay(attempt int, lastErr error) time.Duration {
	var rae *retryAfterError
	if errors.As(lastErr, &rae) && rae.after > 0 {
		return rae.after
	}
	// exponential backoff capped at 5s
	d := c.baseDelay << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
