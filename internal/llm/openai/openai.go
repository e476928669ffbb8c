// Package openai talks to OpenAI-compatible /chat/completions endpoints.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"chatpdf/internal/llm"
)

// Config configures the OpenAI-compatible chat client.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client implements llm.ChatProvider.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient reads the API key from the configured environment variable.
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
		cfg.Model = "gpt-4o-mini"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  key,
		model:   cfg.Model,
		client:  llm.NewHTTPClient(cfg.Timeout),
		limiter: llm.NewLimiter(cfg.RequestsPerSecond),
	}, nil
}

func (c *Client) Name() string { return "openai" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, messages []llm.Message, stream bool) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	data, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, llm.StatusError("openai", resp)
	}
	return resp, nil
}

// Generate returns the first choice of a non-streamed completion.
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
	if out.Error != nil {
		return "", errors.New(out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Stream reads server-sent events until the [DONE] marker.
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
			line := strings.TrimSpace(scanner.Text())
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return
			}
			var ev chatResponse
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				yield("", err)
				return
			}
			if ev.Error != nil {
				yield("", errors.New(ev.Error.Message))
				return
			}
			if len(ev.Choices) == 0 || ev.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(ev.Choices[0].Delta.Content, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", err)
			return
		}
		yield("", errors.New("openai stream ended without [DONE]"))
	}
}
