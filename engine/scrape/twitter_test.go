package scrape

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

const tweetLookupBody = `{
  "data": {
    "id": "123456",
    "text": "go  is   nice",
    "author_id": "u1",
    "conversation_id": "123456",
    "public_metrics": {"retweet_count": 7, "like_count": 30, "reply_count": 2}
  },
  "includes": {"users": [{"id": "u1", "username": "gopher"}]}
}`

const tweetSearchBody = `{
  "data": [
    {"id": "123457", "text": "agreed", "author_id": "u2", "public_metrics": {"like_count": 3}},
    {"id": "123458", "text": "same here", "author_id": "u3", "public_metrics": {"like_count": 1}}
  ],
  "includes": {"users": [
    {"id": "u2", "username": "alice"},
    {"id": "u3", "username": "bob"}
  ]}
}`

func twitterTestServer(t *testing.T, lookupStatus, searchStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2/tweets/123456", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if lookupStatus != http.StatusOK {
			w.WriteHeader(lookupStatus)
			return
		}
		io.WriteString(w, tweetLookupBody)
	})
	mux.HandleFunc("GET /2/tweets/search/recent", func(w http.ResponseWriter, r *http.Request) {
		if searchStatus != http.StatusOK {
			w.WriteHeader(searchStatus)
			return
		}
		io.WriteString(w, tweetSearchBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTwitterFetch(t *testing.T) {
	srv := twitterTestServer(t, http.StatusOK, http.StatusOK)
	s := NewTwitterScraper(TwitterConfig{BearerToken: "tok", BaseURL: srv.URL}, discardLogger())

	content, err := s.Fetch(context.Background(), "https://x.com/gopher/status/123456")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if content.Title != "Tweet by @gopher" {
		t.Errorf("unexpected title %q", content.Title)
	}
	if content.Body != "go is nice" {
		t.Errorf("body not normalized: %q", content.Body)
	}
	if content.Metadata["likes"] != 30 || content.Metadata["retweets"] != 7 {
		t.Errorf("unexpected metadata %v", content.Metadata)
	}
	if len(content.Comments) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(content.Comments))
	}
	if content.Comments[0].Author != "alice" || content.Comments[0].Score != 3 {
		t.Errorf("unexpected reply %+v", content.Comments[0])
	}
}

func TestTwitterRepliesBestEffort(t *testing.T) {
	srv := twitterTestServer(t, http.StatusOK, http.StatusInternalServerError)
	s := NewTwitterScraper(TwitterConfig{BearerToken: "tok", BaseURL: srv.URL}, discardLogger())

	content, err := s.Fetch(context.Background(), "https://twitter.com/gopher/status/123456")
	if err != nil {
		t.Fatalf("tweet should survive a failed reply search: %v", err)
	}
	if len(content.Comments) != 0 {
		t.Fatalf("expected no replies, got %d", len(content.Comments))
	}
}

func TestTwitterFetchNotFound(t *testing.T) {
	srv := twitterTestServer(t, http.StatusNotFound, http.StatusOK)
	s := NewTwitterScraper(TwitterConfig{BearerToken: "tok", BaseURL: srv.URL}, discardLogger())

	_, err := s.Fetch(context.Background(), "https://twitter.com/gopher/status/123456")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Kind != KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestTwitterFetchMissingToken(t *testing.T) {
	s := NewTwitterScraper(TwitterConfig{}, discardLogger())
	_, err := s.Fetch(context.Background(), "https://twitter.com/gopher/status/123456")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Kind != KindAuthFailed {
		t.Fatalf("expected auth_failed without token, got %v", err)
	}
}

func TestTwitterFetchBadReference(t *testing.T) {
	s := NewTwitterScraper(TwitterConfig{BearerToken: "tok"}, discardLogger())
	_, err := s.Fetch(context.Background(), "https://twitter.com/gopher")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Kind != KindUpstreamError {
		t.Fatalf("expected upstream_error for missing tweet id, got %v", err)
	}
}
