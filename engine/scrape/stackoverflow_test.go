package scrape

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const soQuestionBody = `{
  "items": [{
    "title": "How to mock HTTP in Go?",
    "body": "<p>Use <code>httptest</code>.</p><p>It ships with the stdlib.</p>",
    "score": 12,
    "view_count": 340,
    "answer_count": 2,
    "tags": ["go", "testing"],
    "is_answered": true,
    "owner": {"display_name": "asker"}
  }]
}`

const soAnswersBody = `{
  "items": [
    {"body": "<p>httptest.NewServer is the way.</p>", "score": 20, "is_accepted": true, "owner": {"display_name": "alice"}},
    {"body": "<p>Or inject a RoundTripper.</p>", "score": 8, "is_accepted": false, "owner": {"display_name": "bob"}}
  ]
}`

func soTestServer(t *testing.T, questionStatus, answersStatus int, questionBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /2.3/questions/12345", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if questionStatus != http.StatusOK {
			w.WriteHeader(questionStatus)
			return
		}
		io.WriteString(w, questionBody)
	})
	mux.HandleFunc("GET /2.3/questions/12345/answers", func(w http.ResponseWriter, r *http.Request) {
		if answersStatus != http.StatusOK {
			w.WriteHeader(answersStatus)
			return
		}
		io.WriteString(w, soAnswersBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStackOverflowFetch(t *testing.T) {
	srv := soTestServer(t, http.StatusOK, http.StatusOK, soQuestionBody)
	s := NewStackOverflowScraper(StackOverflowConfig{Key: "k", BaseURL: srv.URL}, discardLogger())

	content, err := s.Fetch(context.Background(), "https://stackoverflow.com/questions/12345/how-to-mock")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if content.Title != "How to mock HTTP in Go?" {
		t.Errorf("unexpected title %q", content.Title)
	}
	if content.Body != "Use httptest.\nIt ships with the stdlib." {
		t.Errorf("body not stripped: %q", content.Body)
	}
	if content.Author != "asker" {
		t.Errorf("unexpected author %q", content.Author)
	}
	if content.Metadata["is_answered"] != true {
		t.Errorf("unexpected metadata %v", content.Metadata)
	}
	if len(content.Comments) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(content.Comments))
	}
	if !strings.HasPrefix(content.Comments[0].Text, "[accepted answer] ") {
		t.Errorf("accepted answer not flagged: %q", content.Comments[0].Text)
	}
	if strings.HasPrefix(content.Comments[1].Text, "[accepted answer]") {
		t.Errorf("non-accepted answer flagged: %q", content.Comments[1].Text)
	}
}

func TestStackOverflowAnswersBestEffort(t *testing.T) {
	srv := soTestServer(t, http.StatusOK, http.StatusInternalServerError, soQuestionBody)
	s := NewStackOverflowScraper(StackOverflowConfig{Key: "k", BaseURL: srv.URL}, discardLogger())

	content, err := s.Fetch(context.Background(), "https://stackoverflow.com/questions/12345")
	if err != nil {
		t.Fatalf("question should survive a failed answers fetch: %v", err)
	}
	if len(content.Comments) != 0 {
		t.Fatalf("expected no answers, got %d", len(content.Comments))
	}
}

func TestStackOverflowFetchNotFound(t *testing.T) {
	srv := soTestServer(t, http.StatusOK, http.StatusOK, `{"items": []}`)
	s := NewStackOverflowScraper(StackOverflowConfig{Key: "k", BaseURL: srv.URL}, discardLogger())

	_, err := s.Fetch(context.Background(), "https://stackoverflow.com/questions/12345")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Kind != KindNotFound {
		t.Fatalf("expected not_found for empty items, got %v", err)
	}
}

func TestStackOverflowFetchMissingKey(t *testing.T) {
	s := NewStackOverflowScraper(StackOverflowConfig{}, discardLogger())
	_, err := s.Fetch(context.Background(), "https://stackoverflow.com/questions/12345")
	var sErr *Error
	if !errors.As(err, &sErr) || sErr.Kind != KindAuthFailed {
		t.Fatalf("expected auth_failed without key, got %v", err)
	}
}
