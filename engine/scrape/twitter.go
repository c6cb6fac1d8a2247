package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/toksmith/toksmith/pkg/fn"
)

var tweetIDRe = regexp.MustCompile(`/status(?:es)?/([0-9]+)`)

// TwitterConfig carries the injected credentials for the Twitter/X
// variant.
type TwitterConfig struct {
	BearerToken string
	MaxReplies  int
	// BaseURL exists for tests; zero value hits the real API.
	BaseURL string
}

// TwitterScraper fetches a single tweet and its conversation replies
// through the Twitter API v2.
type TwitterScraper struct {
	cfg     TwitterConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewTwitterScraper creates the Twitter variant.
func NewTwitterScraper(cfg TwitterConfig, log *slog.Logger) *TwitterScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com"
	}
	if cfg.MaxReplies <= 0 {
		cfg.MaxReplies = 20
	}
	return &TwitterScraper{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		log:     log,
	}
}

// Fetch retrieves the tweet behind a /status/<id> URL and normalizes
// it, attaching conversation replies as comments when available.
func (s *TwitterScraper) Fetch(ctx context.Context, ref string) (*Content, error) {
	if s.cfg.BearerToken == "" {
		return nil, newError("twitter", KindAuthFailed, errors.New("bearer token not configured"))
	}

	m := tweetIDRe.FindStringSubmatch(ref)
	if m == nil {
		return nil, newError("twitter", KindUpstreamError, fmt.Errorf("no tweet id in %q", ref))
	}
	tweetID := m[1]

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, transportError("twitter", err)
	}

	u := fmt.Sprintf("%s/2/tweets/%s?tweet.fields=created_at,public_metrics,author_id,conversation_id&expansions=author_id&user.fields=username",
		s.cfg.BaseURL, tweetID)
	lookup, err := s.doGet(ctx, u).Unwrap()
	if err != nil {
		return nil, err
	}
	if lookup.Data.ID == "" || lookup.Data.Text == "" {
		return nil, newError("twitter", KindNotFound, fmt.Errorf("tweet %s not found", tweetID))
	}

	username := lookup.username(lookup.Data.AuthorID)
	content := &Content{
		Title:  fmt.Sprintf("Tweet by @%s", username),
		Body:   cleanText(lookup.Data.Text),
		Author: username,
		Metadata: map[string]any{
			"tweet_id": tweetID,
			"retweets": lookup.Data.PublicMetrics.Retweets,
			"likes":    lookup.Data.PublicMetrics.Likes,
			"replies":  lookup.Data.PublicMetrics.Replies,
		},
	}

	// Replies are best-effort: a failed conversation search still
	// yields the tweet itself.
	if convID := lookup.Data.ConversationID; convID != "" {
		replies, err := s.fetchReplies(ctx, convID)
		if err != nil {
			s.log.Warn("twitter conversation fetch failed", "tweet_id", tweetID, "error", err)
		} else {
			content.Comments = replies
		}
	}
	return content, nil
}

func (s *TwitterScraper) fetchReplies(ctx context.Context, conversationID string) ([]Comment, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, transportError("twitter", err)
	}
	q := url.QueryEscape("conversation_id:" + conversationID)
	u := fmt.Sprintf("%s/2/tweets/search/recent?query=%s&max_results=%d&tweet.fields=public_metrics,author_id&expansions=author_id&user.fields=username",
		s.cfg.BaseURL, q, min(s.cfg.MaxReplies, 100))
	search, err := s.doSearch(ctx, u).Unwrap()
	if err != nil {
		return nil, err
	}

	var out []Comment
	for _, tw := range search.Data {
		out = append(out, Comment{
			Author: search.username(tw.AuthorID),
			Text:   cleanText(tw.Text),
			Score:  tw.PublicMetrics.Likes,
		})
		if len(out) >= s.cfg.MaxReplies {
			break
		}
	}
	return out, nil
}

func (s *TwitterScraper) doGet(ctx context.Context, u string) fn.Result[*tweetLookup] {
	body, err := s.httpGet(ctx, u)
	if err != nil {
		return fn.Err[*tweetLookup](err)
	}
	defer body.Close()

	var resp tweetLookup
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return fn.Err[*tweetLookup](newError("twitter", KindUpstreamError, fmt.Errorf("decode tweet: %w", err)))
	}
	return fn.Ok(&resp)
}

func (s *TwitterScraper) doSearch(ctx context.Context, u string) fn.Result[*tweetSearch] {
	body, err := s.httpGet(ctx, u)
	if err != nil {
		return fn.Err[*tweetSearch](err)
	}
	defer body.Close()

	var resp tweetSearch
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return fn.Err[*tweetSearch](newError("twitter", KindUpstreamError, fmt.Errorf("decode search: %w", err)))
	}
	return fn.Ok(&resp)
}

func (s *TwitterScraper) httpGet(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, newError("twitter", KindUpstreamError, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.BearerToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError("twitter", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, statusError("twitter", resp.StatusCode)
	}
	return resp.Body, nil
}

// Twitter API v2 response types.

type tweetMetrics struct {
	Retweets int `json:"retweet_count"`
	Likes    int `json:"like_count"`
	Replies  int `json:"reply_count"`
}

type tweetData struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	AuthorID       string       `json:"author_id"`
	ConversationID string       `json:"conversation_id"`
	PublicMetrics  tweetMetrics `json:"public_metrics"`
}

type tweetIncludes struct {
	Users []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"users"`
}

func (i tweetIncludes) username(authorID string) string {
	for _, u := range i.Users {
		if u.ID == authorID {
			return u.Username
		}
	}
	return "unknown"
}

type tweetLookup struct {
	Data     tweetData     `json:"data"`
	Includes tweetIncludes `json:"includes"`
}

func (l *tweetLookup) username(id string) string { return l.Includes.username(id) }

type tweetSearch struct {
	Data     []tweetData   `json:"data"`
	Includes tweetIncludes `json:"includes"`
}

func (l *tweetSearch) username(id string) string { return l.Includes.username(id) }
