// Package llm defines the chat provider contract shared by the model clients.
package llm

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Role of a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatProvider generates an answer for a prompt, whole or as a stream.
type ChatProvider interface {
	Name() string
	Generate(ctx context.Context, messages []Message) (string, error)
	// Stream issues the request on first iteration. Fragments arrive as the
	// provider produces them; a non-nil error ends the sequence. Breaking
	// out of the loop closes the connection.
	Stream(ctx context.Context, messages []Message) iter.Seq2[string, error]
}

// NewLimiter returns a limiter admitting rps requests per second, or an
// unlimited one when rps is not positive.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// NewHTTPClient bounds the wait for response headers only, so long
// streamed bodies are not cut off.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
	}}
}

// StatusError builds an error from a non-2xx response, including a short
// excerpt of its body.
func StatusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%s request failed: %s", provider, resp.Status)
	}
	return fmt.Errorf("%s request failed: %s: %s", provider, resp.Status, msg)
}
