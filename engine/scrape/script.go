package scrape

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// ScriptScraper is the degenerate variant: no network I/O, the
// submitted text becomes the body directly.
type ScriptScraper struct{}

// NewScriptScraper creates the script variant.
func NewScriptScraper() ScriptScraper { return ScriptScraper{} }

// Fetch maps the raw script text into a Content. Text that is empty
// after trimming fails instead of producing an empty record.
func (ScriptScraper) Fetch(_ context.Context, raw string) (*Content, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, newError("script", KindUpstreamError, errors.New("script text is empty"))
	}
	return &Content{
		Body: body,
		Metadata: map[string]any{
			"length": utf8.RuneCountInString(body),
		},
	}, nil
}
