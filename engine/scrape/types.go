// Package scrape fetches content from external providers and
// normalizes the heterogeneous response shapes into one canonical
// Content record. One scraper variant exists per source tag; all
// variants fail with a classified *Error so the worker can map
// failures onto terminal job states.
package scrape

import (
	"context"
	"errors"
	"fmt"

	"github.com/toksmith/toksmith/engine/source"
)

// Content is the source-agnostic output of a successful scrape.
// Title and Body are never both empty: a scraper that cannot produce
// non-empty content must fail instead.
type Content struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Author   string         `json:"author,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Comments []Comment      `json:"comments"`
}

// Comment is a single comment, answer, or reply attached to the
// scraped content.
type Comment struct {
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
	Score  int    `json:"score"`
}

// Scraper is the capability all variants implement. ref is a URL for
// network-backed sources and the raw text for the script variant.
type Scraper interface {
	Fetch(ctx context.Context, ref string) (*Content, error)
}

// ErrNoScraper indicates no variant is registered for a source tag.
// Hitting it at execution time is an internal invariant violation: the
// validator rejects unknown tags before a job is ever created.
var ErrNoScraper = errors.New("no scraper registered for source")

// Registry maps source tags to scraper variants. It is populated once
// at startup and read-only afterwards.
type Registry struct {
	variants map[source.Tag]Scraper
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{variants: make(map[source.Tag]Scraper)}
}

// Register binds a scraper variant to a tag, replacing any previous
// binding.
func (r *Registry) Register(tag source.Tag, s Scraper) {
	r.variants[tag] = s
}

// Resolve returns the variant for tag, or ErrNoScraper.
func (r *Registry) Resolve(tag source.Tag) (Scraper, error) {
	s, ok := r.variants[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoScraper, tag)
	}
	return s, nil
}
