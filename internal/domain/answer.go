package domain

import (
	"iter"
	"strings"
	"sync"
)

// Answer is the result of a question: either a complete string or a lazy,
// finite, non-restartable sequence of fragments.
type Answer struct {
	// Sources holds the chunks the answer was composed from.
	Sources RetrievalResult

	streamed  bool
	text      string
	fragments iter.Seq2[string, error]

	mu       sync.Mutex
	consumed bool
}

// NewBatchAnswer wraps a complete answer.
func NewBatchAnswer(text string, sources RetrievalResult) *Answer {
	return &Answer{text: text, Sources: sources}
}

// NewStreamAnswer wraps a fragment sequence. The sequence is pulled at most once.
func NewStreamAnswer(fragments iter.Seq2[string, error], sources RetrievalResult) *Answer {
	return &Answer{streamed: true, fragments: fragments, Sources: sources}
}

// Streamed reports whether the answer is delivered incrementally.
func (a *Answer) Streamed() bool { return a.streamed }

// Fragments yields the answer piece by piece. A batch answer yields its text
// once. Breaking out of the loop releases the underlying provider stream.
func (a *Answer) Fragments() iter.Seq2[string, error] {
	if !a.streamed {
		return func(yield func(string, error) bool) {
			if a.text != "" {
				yield(a.text, nil)
			}
		}
	}
	return func(yield func(string, error) bool) {
		a.mu.Lock()
		if a.consumed {
			a.mu.Unlock()
			yield("", ErrAnswerConsumed)
			return
		}
		a.consumed = true
		a.mu.Unlock()
		for frag, err := range a.fragments {
			if !yield(frag, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// Text returns the complete answer, draining the stream if necessary.
func (a *Answer) Text() (string, error) {
	if !a.streamed {
		return a.text, nil
	}
	var b strings.Builder
	for frag, err := range a.Fragments() {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}
