// ABOUTME: Text normalization and semantic segmentation of statute bodies
// ABOUTME: Segments partition the normalized text exactly, no gaps or overlap

package chunk

import (
	"regexp"
	"sort"
	"strings"
)

// subdivisionRE matches statutory subdivision markers at the start of a
// line: "(a)", "(1)", "(A)", "(iv)".
var subdivisionRE = regexp.MustCompile(`(?m)^\([0-9a-zA-Z]{1,4}\)\s`)

// Normalize canonicalizes a node body before segmentation: CRLF to LF,
// trailing whitespace stripped per line, runs of blank lines collapsed to
// one, outer whitespace trimmed. Chunk texts are substrings of the
// normalized body, so their concatenation reproduces it exactly.
func Normalize(body string) string {
	s := strings.ReplaceAll(body, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	s = strings.Join(lines, "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

// segments splits normalized text at semantic boundaries already present in
// the legal structure: subdivision markers opening a line and paragraph
// breaks. The returned slices are consecutive substrings of text.
func segments(text string) []string {
	if text == "" {
		return nil
	}
	boundaries := []int{0}
	for _, loc := range subdivisionRE.FindAllStringIndex(text, -1) {
		if loc[0] > 0 {
			boundaries = append(boundaries, loc[0])
		}
	}
	for i := 0; i+1 < len(text); i++ {
		if text[i] == '\n' && text[i+1] == '\n' {
			boundaries = append(boundaries, i+2)
		}
	}
	sort.Ints(boundaries)
	boundaries = dedupeInts(boundaries)

	out := make([]string, 0, len(boundaries))
	for i, start := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		if start < end {
			out = append(out, text[start:end])
		}
	}
	return out
}

func dedupeInts(xs []int) []int {
	out := xs[:0]
	for i, x := range xs {
		if i == 0 || x != xs[i-1] {
			out = append(out, x)
		}
	}
	return out
}
