package index

import (
	"strings"
	"unicode/utf8"
)

// chunkText splits text into windows of at most size runes on word
// boundaries. Consecutive chunks share up to overlap runes of trailing words.
// A single word longer than size is split mid-word.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 8
	}

	var words []string
	for _, w := range strings.Fields(text) {
		for utf8.RuneCountInString(w) > size {
			r := []rune(w)
			words = append(words, string(r[:size]))
			w = string(r[size:])
		}
		words = append(words, w)
	}

	var (
		chunks  []string
		current []string
		length  int
	)
	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		if len(current) > 0 && length+1+wl > size {
			chunks = append(chunks, strings.Join(current, " "))
			current, length = tail(current, overlap)
			for len(current) > 0 && length+1+wl > size {
				current = current[1:]
				length = joinedLen(current)
			}
		}
		if len(current) > 0 {
			length++
		}
		current = append(current, w)
		length += wl
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// tail returns the longest suffix of words whose joined length is at most n runes.
func tail(words []string, n int) ([]string, int) {
	length := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		add := utf8.RuneCountInString(words[i])
		if start < len(words) {
			add++
		}
		if length+add > n {
			break
		}
		length += add
		start = i
	}
	out := make([]string, len(words)-start)
	copy(out, words[start:])
	return out, length
}

func joinedLen(words []string) int {
	if len(words) == 0 {
		return 0
	}
	n := len(words) - 1
	for _, w := range words {
		n += utf8.RuneCountInString(w)
	}
	return n
}
