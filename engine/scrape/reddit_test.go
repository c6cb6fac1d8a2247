package scrape

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const redditThread = `[
  {"data": {"children": [{"kind": "t3", "data": {
    "id": "abc123",
    "subreddit": "golang",
    "title": "How do you test scrapers?",
    "author": "gopher",
    "selftext": "I   keep\nmocking  servers.",
    "url": "https://www.reddit.com/r/golang/comments/abc123/",
    "permalink": "/r/golang/comments/abc123/",
    "score": 42,
    "upvote_ratio": 0.97,
    "num_comments": 3
  }}]}},
  {"data": {"children": [
    {"kind": "t1", "data": {"author": "alice", "body": "httptest works", "score": 10}},
    {"kind": "t1", "data": {"author": "bob", "body": "[deleted]", "score": 2}},
    {"kind": "t1", "data": {"author": "carol", "body": "so does a fake client", "score": 5}},
    {"kind": "more", "data": {}}
  ]}}
]`

func redditTestServer(t *testing.T, threadStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token": "tok", "expires_in": 3600}`)
	})
	mux.HandleFunc("GET /r/golang/comments/abc123/thread.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if threadStatus != http.StatusOK {
			w.WriteHeader(threadStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, redditThread)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func redditTestScraper(srv *httptest.Server) *RedditScraper {
	return NewRedditScraper(RedditConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/api/v1/access_token",
	}, discardLogger())
}

func TestRedditFetch(t *testing.T) {
	srv := redditTestServer(t, http.StatusOK)
	s := redditTestScraper(srv)

	content, err := s.Fetch(context.Background(), "https://www.reddit.com/r/golang/comments/abc123/thread/")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if content.Title != "How do you test scrapers?" {
		t.Errorf("unexpected title %q", content.Title)
	}
	if content.Body != "I keep mocking servers." {
		t.Errorf("body not normalized: %q", content.Body)
	}
	if content.Author != "gopher" {
		t.Errorf("unexpected author %q", content.Author)
	}
	if content.Metadata["subreddit"] != "golang" || content.Metadata["upvotes"] != 42 {
		t.Errorf("unexpected metadata %v", content.Metadata)
	}
	// The deleted comment and the "more" stub are filtered out.
	if len(content.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(content.Comments))
	}
	if content.Comments[0].Author != "alice" || content.Comments[1].Author != "carol" {
		t.Errorf("unexpected comments %+v", content.Comments)
	}
}

func TestRedditFetchNotFound(t *testing.T) {
	srv := redditTestServer(t, http.StatusNotFound)
	s := redditTestScraper(srv)

	_, err := s.Fetch(context.Background(), "https://www.reddit.com/r/golang/comments/abc123/thread/")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Kind != KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestRedditFetchRateLimited(t *testing.T) {
	srv := redditTestServer(t, http.StatusTooManyRequests)
	s := redditTestScraper(srv)

	_, err := s.Fetch(context.Background(), "https://www.reddit.com/r/golang/comments/abc123/thread/")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Kind != KindRateLimited {
		t.Fatalf("expected rate_limited, got %v", err)
	}
}

func TestRedditFetchMissingCredentials(t *testing.T) {
	s := NewRedditScraper(RedditConfig{}, discardLogger())
	_, err := s.Fetch(context.Background(), "https://www.reddit.com/r/golang/comments/abc123/")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Kind != KindAuthFailed {
		t.Fatalf("expected auth_failed without credentials, got %v", err)
	}
}

func TestRedditTokenCached(t *testing.T) {
	var tokenCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		io.WriteString(w, `{"access_token": "tok", "expires_in": 3600}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, redditThread)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	s := redditTestScraper(srv)

	for i := 0; i < 3; i++ {
		if _, err := s.Fetch(context.Background(), "https://www.reddit.com/r/golang/comments/abc123/thread/"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if tokenCalls != 1 {
		t.Fatalf("expected one token request, got %d", tokenCalls)
	}
}

func TestPermalinkPath(t *testing.T) {
	got, err := permalinkPath("https://www.reddit.com/r/golang/comments/abc123/title/")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/r/golang/comments/abc123/title" {
		t.Fatalf("unexpected path %q", got)
	}

	if _, err := permalinkPath("https://www.reddit.com/"); err == nil {
		t.Fatal("expected error for bare host")
	}
}
