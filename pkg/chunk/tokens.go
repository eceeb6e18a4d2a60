// ABOUTME: Token count approximation for chunk budgeting
// ABOUTME: Word/punctuation heuristic, ~1.3 tokens per word

package chunk

import (
	"strings"
	"unicode"
)

// CountTokens approximates the token count of text the way common BPE
// tokenizers behave: roughly 1.3 tokens per word plus a share of the
// punctuation. Budget decisions only need a stable approximation, not an
// exact tokenizer.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	wordCount := len(strings.Fields(text))
	punctCount := 0
	for _, r := range text {
		if unicode.IsPunct(r) {
			punctCount++
		}
	}
	return int(float64(wordCount)*1.3) + punctCount/2
}
