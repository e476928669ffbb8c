// Package textutil holds the tokenizer, stopword list and sentence splitter
// shared by the embedder, summarizer and terminal UI.
package textutil

import (
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe = regexp.MustCompile(`[^.!?]*[.!?]+`)
	stopwords  = buildStopwords()
)

// Tokens returns the lower-cased word tokens of text.
func Tokens(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// ContentTokens returns Tokens with stopwords removed.
func ContentTokens(text string) []string {
	raw := Tokens(text)
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokens(text)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// IsStopword reports whether the lower-cased token is a stopword.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Sentences splits text after each run of terminal punctuation and trims
// the pieces. Text after the last terminator is the final sentence, so no
// words are lost.
func Sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "how", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
