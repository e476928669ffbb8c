// Package ollama talks to a local Ollama server through /api/chat.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"chatpdf/internal/llm"
)

// Config configures the Ollama chat client.
type Config struct {
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client implements llm.ChatProvider.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "mistral"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  llm.NewHTTPClient(cfg.Timeout),
		limiter: llm.NewLimiter(cfg.RequestsPerSecond),
	}
}

func (c *Client) Name() string { return "ollama" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (c *Client) post(ctx context.Context, messages []llm.Message, stream bool) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	data, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, llm.StatusError("ollama", resp)
	}
	return resp, nil
}

// Generate returns the complete answer.
func (c *Client) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := c.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	return out.Message.Content, nil
}

// Stream reads the newline-delimited JSON stream of /api/chat.
func (c *Client) Stream(ctx context.Context, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := c.post(ctx, messages, true)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var ev chatResponse
			if err := json.Unmarshal(line, &ev); err != nil {
				yield("", err)
				return
			}
			if ev.Error != "" {
				yield("", errors.New(ev.Error))
				return
			}
			if ev.Message.Content != "" && !yield(ev.Message.Content, nil) {
				return
			}
			if ev.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", err)
			return
		}
		yield("", errors.New("ollama stream ended without done"))
	}
}
