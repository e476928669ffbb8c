// Package service exposes the ingest and question pipeline as a session.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chatpdf/internal/chunker"
	"chatpdf/internal/composer"
	"chatpdf/internal/domain"
	"chatpdf/internal/loader"
	"chatpdf/internal/retriever"
	"chatpdf/internal/sanitize"
)

// State of a session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
)

// VectorIndex is the part of the index the session drives.
type VectorIndex interface {
	retriever.Querier
	Write(ctx context.Context, chunks []domain.Chunk) error
	Load(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
	Attached() bool
	Detach() error
	Reset(ctx context.Context) error
}

// Summarizer condenses ingested text for the ingest report.
type Summarizer interface {
	Summarize(text string) string
}

// Config wires a session. Summarizer and Logger are optional; a zero
// Policy means retriever.DefaultPolicy.
type Config struct {
	Loader     loader.Loader
	Chunker    chunker.Chunker
	Index      VectorIndex
	Policy     retriever.Policy
	Composer   *composer.Composer
	Summarizer Summarizer
	Logger     *slog.Logger
}

// IngestReport describes a completed ingest.
type IngestReport struct {
	DocumentID string        `json:"document_id"`
	Path       string        `json:"path"`
	Pages      int           `json:"pages"`
	Chunks     int           `json:"chunks"`
	Summary    string        `json:"summary,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Session runs ingest and ask requests against one index. The mutex guards
// state transitions only; generation runs outside it.
type Session struct {
	loader     loader.Loader
	chunker    chunker.Chunker
	index      VectorIndex
	policy     retriever.Policy
	composer   *composer.Composer
	summarizer Summarizer
	log        *slog.Logger

	mu        sync.Mutex
	state     State
	retriever *retriever.Retriever
}

func NewSession(cfg Config) (*Session, error) {
	if cfg.Loader == nil || cfg.Chunker == nil || cfg.Index == nil || cfg.Composer == nil {
		return nil, errors.New("session needs a loader, chunker, index and composer")
	}
	if cfg.Policy == (retriever.Policy{}) {
		cfg.Policy = retriever.DefaultPolicy()
	}
	if cfg.Policy.TopK <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidTopK, cfg.Policy.TopK)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		loader:     cfg.Loader,
		chunker:    cfg.Chunker,
		index:      cfg.Index,
		policy:     cfg.Policy,
		composer:   cfg.Composer,
		summarizer: cfg.Summarizer,
		log:        logger,
		state:      StateUninitialized,
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ingest loads, chunks, sanitizes and indexes the document at path,
// appending to any persisted index. On failure the state is unchanged.
func (s *Session) Ingest(ctx context.Context, path string) (IngestReport, error) {
	start := time.Now()
	segments, err := s.loader.Load(ctx, path)
	if err != nil {
		return IngestReport{}, err
	}
	chunks, err := s.chunker.Chunk(segments)
	if err != nil {
		return IngestReport{}, err
	}
	chunks = sanitize.Chunks(chunks)

	if err := s.index.Write(ctx, chunks); err != nil {
		s.log.Error("ingest failed", "path", path, "error", err)
		return IngestReport{}, err
	}
	s.mu.Lock()
	// A Clear that ran during the write has detached the index; the
	// session stays uninitialized and the next Ask attaches again.
	if s.index.Attached() {
		s.ready()
	}
	s.mu.Unlock()

	report := IngestReport{
		Path:     path,
		Pages:    len(segments),
		Chunks:   len(chunks),
		Duration: time.Since(start),
	}
	if len(segments) > 0 {
		report.DocumentID = segments[0].Source.DocumentID
	}
	if s.summarizer != nil {
		texts := make([]string, len(segments))
		for i, seg := range segments {
			texts[i] = seg.Text
		}
		report.Summary = s.summarizer.Summarize(strings.Join(texts, "\n"))
	}
	s.log.Info("document ingested", "path", path, "pages", report.Pages, "chunks", report.Chunks, "duration", report.Duration)
	return report, nil
}

// Persisted reports whether an earlier ingest left vectors to Load.
func (s *Session) Persisted(ctx context.Context) (bool, error) {
	return s.index.Exists(ctx)
}

// Load attaches to the persisted index without re-embedding.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Session) load(ctx context.Context) error {
	if err := s.index.Load(ctx); err != nil {
		return err
	}
	s.ready()
	s.log.Info("index loaded")
	return nil
}

func (s *Session) ready() {
	s.state = StateReady
	if s.retriever == nil {
		s.retriever = retriever.New(s.index, s.policy)
	}
}

// Ask answers question from the indexed context. An uninitialized session
// first attaches to the persisted index and fails with ErrNotIngested when
// there is none.
func (s *Session) Ask(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	s.mu.Lock()
	if s.state != StateReady {
		if err := s.load(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	r := s.retriever
	s.mu.Unlock()

	results, err := r.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	s.log.Debug("context retrieved", "top_k", r.Policy().TopK, "results", len(results))
	return s.composer.Compose(ctx, question, results)
}

// Clear detaches from the index. Persisted data is kept for a later Load.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUninitialized
	s.retriever = nil
	return s.index.Detach()
}

// Reset deletes every persisted vector and returns to uninitialized.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateUninitialized
	s.retriever = nil
	return s.index.Reset(ctx)
}
