// Package composer turns retrieved context and a question into an answer.
package composer

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"chatpdf/internal/domain"
	"chatpdf/internal/llm"
)

// Mode selects how answers are delivered.
type Mode string

const (
	ModeBatch  Mode = "batch"
	ModeStream Mode = "stream"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant that can answer questions about the PDF document provided."
	userTemplate        = "Here are some document pieces: %s\nQuestion: %s"
)

// Options configure a Composer. Zero values fall back to batch mode and the
// default system prompt.
type Options struct {
	Mode         Mode
	SystemPrompt string
	// StripReferences removes mentions of the source document from answers.
	StripReferences bool
}

// Composer builds prompts and invokes the chat provider.
type Composer struct {
	chat llm.ChatProvider
	opts Options
	log  *slog.Logger
}

func New(chat llm.ChatProvider, opts Options, logger *slog.Logger) (*Composer, error) {
	switch opts.Mode {
	case "":
		opts.Mode = ModeBatch
	case ModeBatch, ModeStream:
	default:
		return nil, fmt.Errorf("unknown answer mode %q", opts.Mode)
	}
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Composer{chat: chat, opts: opts, log: logger}, nil
}

// Mode returns the delivery mode answers are composed in.
func (c *Composer) Mode() Mode { return c.opts.Mode }

// BuildPrompt renders the system instruction and the user turn carrying the
// retrieved context.
func (c *Composer) BuildPrompt(question string, sources domain.RetrievalResult) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: c.opts.SystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(userTemplate, strings.Join(sources.Texts(), "\n\n"), question)},
	}
}

// Compose answers question from the retrieved context. In stream mode the
// provider is not contacted until the answer's fragments are pulled.
func (c *Composer) Compose(ctx context.Context, question string, sources domain.RetrievalResult) (*domain.Answer, error) {
	messages := c.BuildPrompt(question, sources)
	if c.opts.Mode == ModeStream {
		return domain.NewStreamAnswer(c.stream(ctx, messages), sources), nil
	}

	text, err := c.chat.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrGeneration, c.chat.Name(), err)
	}
	if c.opts.StripReferences {
		text = StripReferences(text)
	}
	c.log.Debug("answer generated", "provider", c.chat.Name(), "length", len(text))
	return domain.NewBatchAnswer(text, sources), nil
}

func (c *Composer) stream(ctx context.Context, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var filter *referenceFilter
		if c.opts.StripReferences {
			filter = &referenceFilter{}
		}
		emit := func(s string) bool {
			return s == "" || yield(s, nil)
		}
		for frag, err := range c.chat.Stream(ctx, messages) {
			if err != nil {
				yield("", fmt.Errorf("%w: %s: %w", domain.ErrGeneration, c.chat.Name(), err))
				return
			}
			if filter != nil {
				frag = filter.Push(frag)
			}
			if !emit(frag) {
				c.log.Debug("answer stream abandoned", "provider", c.chat.Name())
				return
			}
		}
		if filter != nil {
			emit(filter.Flush())
		}
	}
}
