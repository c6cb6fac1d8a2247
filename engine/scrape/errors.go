package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a scrape failure. The worker maps kinds onto the
// terminal job state; no retry decision is made inside a scraper.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindRateLimited   Kind = "rate_limited"
	KindAuthFailed    Kind = "auth_failed"
	KindUpstreamError Kind = "upstream_error"
	KindTimeout       Kind = "timeout"
)

// Error is a classified failure from an external provider.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape %s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("scrape %s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the human-readable form stored on a failed job.
func (e *Error) Message() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("content not found at %s", e.Provider)
	case KindRateLimited:
		return fmt.Sprintf("rate limited by %s, try again later", e.Provider)
	case KindAuthFailed:
		return fmt.Sprintf("authentication failed for %s", e.Provider)
	case KindTimeout:
		return fmt.Sprintf("timed out fetching from %s", e.Provider)
	default:
		return fmt.Sprintf("upstream error from %s", e.Provider)
	}
}

func newError(provider string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// statusError classifies a non-2xx HTTP response.
func statusError(provider string, status int) *Error {
	err := fmt.Errorf("http %d", status)
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return newError(provider, KindNotFound, err)
	case status == http.StatusTooManyRequests:
		return newError(provider, KindRateLimited, err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(provider, KindAuthFailed, err)
	default:
		return newError(provider, KindUpstreamError, err)
	}
}

// transportError classifies a failed round trip. Context deadlines and
// client timeouts become KindTimeout so a slow provider resolves to a
// terminal failed state instead of a stuck job.
func transportError(provider string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(provider, KindTimeout, err)
	}
	var tErr interface{ Timeout() bool }
	if errors.As(err, &tErr) && tErr.Timeout() {
		return newError(provider, KindTimeout, err)
	}
	return newError(provider, KindUpstreamError, err)
}
