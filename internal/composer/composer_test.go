package composer

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpdf/internal/domain"
	"chatpdf/internal/llm"
)

// scripted replays fixed fragments for every request.
type scripted struct {
	fragments []string
	err       error
	prompts   [][]llm.Message
	pulled    int
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Generate(_ context.Context, messages []llm.Message) (string, error) {
	s.prompts = append(s.prompts, messages)
	if s.err != nil {
		return "", s.err
	}
	return strings.Join(s.fragments, ""), nil
}

func (s *scripted) Stream(_ context.Context, messages []llm.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.prompts = append(s.prompts, messages)
		for _, f := range s.fragments {
			s.pulled++
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

var sources = domain.RetrievalResult{
	{Chunk: domain.Chunk{ID: "a", Text: "Bees dance."}, Score: 0.9},
	{Chunk: domain.Chunk{ID: "b", Text: "Ants march."}, Score: 0.4},
}

func TestBuildPrompt(t *testing.T) {
	c, err := New(&scripted{}, Options{}, nil)
	require.NoError(t, err)

	msgs := c.BuildPrompt("Who dances?", sources)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, DefaultSystemPrompt, msgs[0].Content)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "Here are some document pieces: Bees dance.\n\nAnts march.\nQuestion: Who dances?", msgs[1].Content)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(&scripted{}, Options{Mode: "carrier-pigeon"}, nil)
	require.Error(t, err)
}

func TestComposeBatch(t *testing.T) {
	chat := &scripted{fragments: []string{" This PDF explains ", "the Document. "}}
	c, err := New(chat, Options{Mode: ModeBatch, StripReferences: true}, nil)
	require.NoError(t, err)

	ans, err := c.Compose(context.Background(), "q", sources)
	require.NoError(t, err)
	assert.False(t, ans.Streamed())
	assert.Equal(t, sources, ans.Sources)
	text, err := ans.Text()
	require.NoError(t, err)
	assert.Equal(t, "This  explains the .", text)
}

func TestComposeBatchWithoutFilter(t *testing.T) {
	chat := &scripted{fragments: []string{"The PDF says hi."}}
	c, err := New(chat, Options{}, nil)
	require.NoError(t, err)

	ans, err := c.Compose(context.Background(), "q", nil)
	require.NoError(t, err)
	text, _ := ans.Text()
	assert.Equal(t, "The PDF says hi.", text)
}

func TestComposeBatchError(t *testing.T) {
	boom := errors.New("connection refused")
	c, err := New(&scripted{err: boom}, Options{}, nil)
	require.NoError(t, err)

	_, err = c.Compose(context.Background(), "q", sources)
	require.ErrorIs(t, err, domain.ErrGeneration)
	require.ErrorIs(t, err, boom)
}

func TestStreamMatchesBatch(t *testing.T) {
	fragments := []string{"  Acc", "ording to the pd", "f, bees dan", "ce. The docu", "ment ends", " here.  "}
	for _, strip := range []bool{true, false} {
		batch, err := New(&scripted{fragments: fragments}, Options{Mode: ModeBatch, StripReferences: strip}, nil)
		require.NoError(t, err)
		stream, err := New(&scripted{fragments: fragments}, Options{Mode: ModeStream, StripReferences: strip}, nil)
		require.NoError(t, err)

		want, err := batch.Compose(context.Background(), "q", sources)
		require.NoError(t, err)
		got, err := stream.Compose(context.Background(), "q", sources)
		require.NoError(t, err)
		assert.True(t, got.Streamed())

		wantText, _ := want.Text()
		var b strings.Builder
		for frag, err := range got.Fragments() {
			require.NoError(t, err)
			b.WriteString(frag)
		}
		assert.Equal(t, wantText, b.String())
	}
}

func TestStreamIsLazy(t *testing.T) {
	chat := &scripted{fragments: []string{"a"}}
	c, err := New(chat, Options{Mode: ModeStream}, nil)
	require.NoError(t, err)

	ans, err := c.Compose(context.Background(), "q", sources)
	require.NoError(t, err)
	assert.Empty(t, chat.prompts)

	text, err := ans.Text()
	require.NoError(t, err)
	assert.Equal(t, "a", text)
	assert.Len(t, chat.prompts, 1)
}

func TestStreamError(t *testing.T) {
	boom := errors.New("model unloaded")
	c, err := New(&scripted{fragments: []string{"partial "}, err: boom}, Options{Mode: ModeStream, StripReferences: true}, nil)
	require.NoError(t, err)

	ans, err := c.Compose(context.Background(), "q", sources)
	require.NoError(t, err)
	var frags []string
	var last error
	for frag, err := range ans.Fragments() {
		if err != nil {
			last = err
			break
		}
		frags = append(frags, frag)
	}
	assert.Equal(t, []string{"partial"}, frags)
	require.ErrorIs(t, last, domain.ErrGeneration)
	require.ErrorIs(t, last, boom)
}

func TestStreamAbandon(t *testing.T) {
	chat := &scripted{fragments: []string{"one ", "two ", "three"}}
	c, err := New(chat, Options{Mode: ModeStream}, nil)
	require.NoError(t, err)

	ans, err := c.Compose(context.Background(), "q", sources)
	require.NoError(t, err)
	for frag, err := range ans.Fragments() {
		require.NoError(t, err)
		assert.Equal(t, "one ", frag)
		break
	}
	assert.Equal(t, 1, chat.pulled)

	for _, err := range ans.Fragments() {
		require.ErrorIs(t, err, domain.ErrAnswerConsumed)
	}

	// The composer keeps working after an abandoned stream.
	again, err := c.Compose(context.Background(), "q", sources)
	require.NoError(t, err)
	text, err := again.Text()
	require.NoError(t, err)
	assert.Equal(t, "one two three", text)
}
