package scrape

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	blockRe = regexp.MustCompile(`(?i)</(p|div|li|pre|blockquote|h[1-6])>|<br\s*/?>`)
)

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripHTML reduces an HTML fragment to readable plain text: block
// boundaries become newlines, remaining tags are dropped, and entities
// are unescaped.
func stripHTML(s string) string {
	s = blockRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
