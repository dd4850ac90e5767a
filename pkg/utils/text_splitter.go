package utils

import (
	"strings"
	"unicode"
)

// SplitText splits text into segments of at most chunkSize runes where each
// segment repeats up to overlap runes of the previous one. A segment ends at
// the last paragraph break, newline or space inside its second half when one
// exists, so words are rarely cut.
func SplitText(text string, chunkSize int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	runes := []rune(text)
	totalLen := len(runes)
	if totalLen <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < totalLen {
		end := start + chunkSize
		if end >= totalLen {
			end = totalLen
		} else {
			end = breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == totalLen {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// breakPoint looks back from end for a separator, never further than half a chunk.
func breakPoint(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for _, sep := range []string{"\n\n", "\n", " "} {
		sepRunes := []rune(sep)
		for i := end - len(sepRunes); i > floor; i-- {
			if matchAt(runes, i, sepRunes) {
				return i + len(sepRunes)
			}
		}
	}
	for i := end - 1; i > floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

func matchAt(runes []rune, i int, sep []rune) bool {
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
