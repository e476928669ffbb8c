package composer

import (
	"strings"
	"unicode"
)

// Words removed from answers, matched case-insensitively.
var referenceWords = [][]rune{[]rune("document"), []rune("pdf")}

// referenceFilter removes every case-insensitive occurrence of the
// reference words from a stream of fragments, repeating until none remain,
// and trims surrounding whitespace. Text is released as soon as no future
// input can turn it into part of a match, so any split of the same input
// produces the same output as filtering it whole.
type referenceFilter struct {
	tail    []rune // unreleased text, already free of complete matches
	started bool   // leading whitespace has been dropped
}

// Push consumes a fragment and returns the text that is now final.
func (f *referenceFilter) Push(fragment string) string {
	for _, r := range fragment {
		f.tail = append(f.tail, r)
		f.tail = dropMatchAtEnd(f.tail)
	}
	cut := f.safePrefix()
	// Whitespace before a pending prefix may still end up trailing.
	for cut > 0 && unicode.IsSpace(f.tail[cut-1]) {
		cut--
	}
	return f.release(cut)
}

// Flush returns the remaining text once the input has ended.
func (f *referenceFilter) Flush() string {
	end := len(f.tail)
	for end > 0 && unicode.IsSpace(f.tail[end-1]) {
		end--
	}
	out := f.release(end)
	f.tail = f.tail[:0]
	return out
}

func (f *referenceFilter) release(n int) string {
	out := f.tail[:n]
	if !f.started {
		i := 0
		for i < len(out) && unicode.IsSpace(out[i]) {
			i++
		}
		out = out[i:]
		if len(out) > 0 {
			f.started = true
		}
	}
	s := string(out)
	f.tail = append(f.tail[:0], f.tail[n:]...)
	return s
}

// safePrefix returns the length of the longest prefix of tail that can
// never be removed. A position can still be removed only if the text from
// it to the end splits into proper prefixes of reference words: future
// input may complete the last one, its removal exposes the one before, and
// so on.
func (f *referenceFilter) safePrefix() int {
	n := len(f.tail)
	open := make([]bool, n+1)
	open[n] = true
	first := n
	for i := n - 1; i >= 0; i-- {
		for _, w := range referenceWords {
			for l := 1; l < len(w) && i+l <= n; l++ {
				if !foldEqual(f.tail[i:i+l], w[:l]) {
					break
				}
				if open[i+l] {
					open[i] = true
					break
				}
			}
			if open[i] {
				break
			}
		}
		if open[i] {
			first = i
		}
	}
	return first
}

func dropMatchAtEnd(tail []rune) []rune {
	for _, w := range referenceWords {
		if len(tail) >= len(w) && foldEqual(tail[len(tail)-len(w):], w) {
			return tail[:len(tail)-len(w)]
		}
	}
	return tail
}

func foldEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if unicode.ToLower(a[i]) != b[i] {
			return false
		}
	}
	return true
}

// StripReferences applies the reference filter to a complete answer.
func StripReferences(text string) string {
	var f referenceFilter
	var b strings.Builder
	b.WriteString(f.Push(text))
	b.WriteString(f.Flush())
	return b.String()
}
