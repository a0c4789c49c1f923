// Package layout holds the pure geometry and typography helpers used by the renderer
package layout

import (
	"strings"
)

// Line height multipliers, applied to the font size
const (
	HeadlineLineHeight  = 1.0
	SecondaryLineHeight = 1.2
)

// Wrap greedily breaks text into lines no wider than maxWidth as reported by
// measure. A word that does not fit on its own is still placed as the first
// word of its line, so the first line is never empty.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		candidate := line + " " + word
		if measure(candidate) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = word
	}

	return append(lines, line)
}

// SplitLines breaks text on explicit newlines only
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// BlockHeight returns the height of a stack of lines
func BlockHeight(lines int, fontSize, lineHeight float64) float64 {
	if lines <= 0 {
		return 0
	}
	return float64(lines) * fontSize * lineHeight
}
