// Package source classifies submitted content references and validates
// them against per-source structural rules. It acts as the validation
// gate at the submission entry point: a reference that passes here is
// well-formed enough to hand to a scraper.
package source

import (
	"net/url"
	"strings"
)

// Tag identifies which external provider (or raw script) a submission
// originates from.
type Tag string

const (
	Reddit        Tag = "reddit"
	Twitter       Tag = "twitter"
	StackOverflow Tag = "stackoverflow"
	Script        Tag = "script"
	Unknown       Tag = "unknown"
)

// hostRule maps a hostname to a tag. Rules are checked in order and the
// first match wins.
type hostRule struct {
	host string
	tag  Tag
}

var hostRules = []hostRule{
	{"reddit.com", Reddit},
	{"redd.it", Reddit},
	{"twitter.com", Twitter},
	{"x.com", Twitter},
	{"stackoverflow.com", StackOverflow},
}

// Infer maps a raw URL to a source tag without any I/O. It tolerates
// URLs with or without a scheme, trailing slashes, query strings, and
// mixed-case hostnames. URLs that match no rule yield Unknown.
func Infer(rawURL string) Tag {
	host := hostOf(rawURL)
	if host == "" {
		return Unknown
	}
	for _, r := range hostRules {
		if host == r.host || strings.HasSuffix(host, "."+r.host) {
			return r.tag
		}
	}
	return Unknown
}

// hostOf extracts the lowercase hostname from a raw URL, which may omit
// the scheme. Returns "" if no hostname can be extracted.
func hostOf(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// pathOf extracts the URL path, tolerating a missing scheme.
func pathOf(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}

// Supported is the fixed set of source tags a caller may submit.
// Unknown is deliberately excluded.
func Supported() []Tag {
	return []Tag{Reddit, Twitter, StackOverflow, Script}
}

// ParseTag resolves a caller-supplied source string to a supported tag.
// The empty string and unrecognised values map to Unknown.
func ParseTag(s string) Tag {
	t := Tag(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Supported() {
		if t == known {
			return t
		}
	}
	return Unknown
}

// Descriptor describes a supported source for the sources listing
// endpoint.
type Descriptor struct {
	Name         Tag    `json:"name"`
	Description  string `json:"description"`
	RequiresURL  bool   `json:"requires_url"`
	RequiresText bool   `json:"requires_text,omitempty"`
}

// Descriptors returns the supported sources with their submission
// requirements.
func Descriptors() []Descriptor {
	return []Descriptor{
		{Name: Reddit, Description: "Reddit threads and discussions", RequiresURL: true},
		{Name: Twitter, Description: "Twitter/X threads and conversations", RequiresURL: true},
		{Name: StackOverflow, Description: "StackOverflow questions and answers", RequiresURL: true},
		{Name: Script, Description: "Direct script input", RequiresText: true},
	}
}
