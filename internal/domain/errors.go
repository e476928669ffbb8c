package domain

import "errors"

var (
	// ErrUnreadableDocument is returned when a source file is missing,
	// unsupported or corrupt.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrEmbeddingProvider wraps any failure of the embedding provider.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrGeneration wraps any failure of the chat provider.
	ErrGeneration = errors.New("generation error")

	// ErrNotIngested is returned when a question is asked and no index
	// has been ingested or persisted.
	ErrNotIngested = errors.New("no document ingested")

	ErrInvalidTopK       = errors.New("top_k must be positive")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyQuestion     = errors.New("question is empty")

	// ErrAnswerConsumed is yielded when a streamed answer is iterated twice.
	ErrAnswerConsumed = errors.New("streamed answer already consumed")
)
