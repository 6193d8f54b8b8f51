package mrz

import (
	"strings"
)

// ExtractLines turns raw OCR text into candidate MRZ lines. Spaces are
// removed, the text is split into lines, empty lines are dropped and every
// line shorter than the mean line length is discarded as noise. Line order
// is preserved. It returns nil when nothing survives.
func ExtractLines(text string) []string {
	text = strings.ReplaceAll(text, " ", "")

	var lines []string
	total := 0
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, "\r")
		if l == "" {
			continue
		}
		lines = append(lines, l)
		total += len(l)
	}
	if len(lines) == 0 {
		return nil
	}

	// len(l) >= total/n, kept in integers
	n := len(lines)
	kept := lines[:0]
	for _, l := range lines {
		if len(l)*n >= total {
			kept = append(kept, l)
		}
	}
	return kept
}
