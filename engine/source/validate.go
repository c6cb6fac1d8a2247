package source

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Per-source URL shape rules, applied to the URL path only. Hostname
// membership is checked separately via Infer so that, for example, a
// reddit-shaped path on an unrelated host does not validate.
var (
	redditPathRe        = regexp.MustCompile(`(?i)/comments/[a-z0-9]+`)
	twitterPathRe       = regexp.MustCompile(`/status(?:es)?/[0-9]+`)
	stackOverflowPathRe = regexp.MustCompile(`/questions/[0-9]+(/|$)`)
)

const (
	// MinScriptLength rejects trivial or accidental submissions.
	MinScriptLength = 10
	// MaxScriptLength bounds direct script input.
	MaxScriptLength = 10000
)

// Validate confirms that a reference (URL for the network-backed
// sources, raw text for Script) is well-formed enough to attempt a
// scrape. Failures are returned as *ValidationError with a stable
// reason; they are caller-input problems, not internal errors.
func Validate(tag Tag, ref string) error {
	switch tag {
	case Reddit:
		return validateURL(tag, ref, redditPathRe, ErrInvalidRedditURL)
	case Twitter:
		return validateURL(tag, ref, twitterPathRe, ErrInvalidTwitterURL)
	case StackOverflow:
		return validateURL(tag, ref, stackOverflowPathRe, ErrInvalidStackOverflowURL)
	case Script:
		return validateScript(ref)
	default:
		return NewValidationError("source", string(tag), ErrUnsupportedSource)
	}
}

func validateURL(tag Tag, rawURL string, pathRe *regexp.Regexp, invalid error) error {
	if strings.TrimSpace(rawURL) == "" {
		return NewValidationError("url", rawURL, ErrMissingURL)
	}
	if Infer(rawURL) != tag {
		return NewValidationError("url", rawURL, invalid)
	}
	if !pathRe.MatchString(pathOf(rawURL)) {
		return NewValidationError("url", rawURL, invalid)
	}
	return nil
}

func validateScript(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return NewValidationError("script", "", ErrMissingScript)
	}
	n := utf8.RuneCountInString(trimmed)
	if n < MinScriptLength {
		return NewValidationError("script", trimmed, ErrScriptTooShort)
	}
	if n > MaxScriptLength {
		return NewValidationError("script", truncateRunes(trimmed, 64), ErrScriptTooLong)
	}
	return nil
}

// truncateRunes shortens s to at most n runes without splitting a
// multi-byte character.
func truncateRunes(s string, n int) string {
	var count int
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
