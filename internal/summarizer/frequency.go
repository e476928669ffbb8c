// Package summarizer produces short extractive summaries of ingested text.
package summarizer

import (
	"math"
	"slices"
	"sort"
	"strings"

	"chatpdf/internal/textutil"
)

// DefaultSentences is used when a non-positive sentence count is requested.
const DefaultSentences = 3

// FrequencySummarizer ranks sentences by the normalized frequency of their
// content words and keeps the best ones in document order.
type FrequencySummarizer struct {
	maxSentences int
}

func NewFrequencySummarizer(maxSentences int) *FrequencySummarizer {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	return &FrequencySummarizer{maxSentences: maxSentences}
}

// Summarize returns up to the configured number of sentences from text.
func (s *FrequencySummarizer) Summarize(text string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return ""
	}

	freq := map[string]float64{}
	tokens := make([][]string, len(sentences))
	for i, sent := range sentences {
		tokens[i] = textutil.Tokens(sent)
		for _, tok := range tokens[i] {
			if !textutil.IsStopword(tok) {
				freq[tok]++
			}
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = max(maxF, v)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i := range sentences {
		total := 0.0
		for _, tok := range tokens[i] {
			if maxF > 0 {
				total += freq[tok] / maxF
			}
		}
		// Long sentences would otherwise always win.
		if n := len(tokens[i]); n > 0 {
			total /= math.Sqrt(float64(n))
		}
		scores[i] = scored{i, total}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(s.maxSentences, len(scores))
	selected := make([]int, n)
	for i := range n {
		selected[i] = scores[i].idx
	}
	slices.Sort(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}
