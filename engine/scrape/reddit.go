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
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/toksmith/toksmith/pkg/fn"
)

// RedditConfig carries the injected credentials and knobs for the
// Reddit variant. Credentials are resolved at startup, never looked up
// ambiently.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	MaxComments  int
	// BaseURL and TokenURL exist for tests; zero values hit the real API.
	BaseURL  string
	TokenURL string
}

// RedditScraper fetches a single thread permalink through Reddit's
// OAuth JSON API.
type RedditScraper struct {
	cfg     RedditConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewRedditScraper creates the Reddit variant.
func NewRedditScraper(cfg RedditConfig, log *slog.Logger) *RedditScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://oauth.reddit.com"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://www.reddit.com/api/v1/access_token"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "toksmith/1.0 (content ingestion)"
	}
	if cfg.MaxComments <= 0 {
		cfg.MaxComments = 50
	}
	return &RedditScraper{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		log:     log,
	}
}

// Fetch retrieves the thread behind a permalink URL and normalizes it.
func (s *RedditScraper) Fetch(ctx context.Context, ref string) (*Content, error) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return nil, newError("reddit", KindAuthFailed, errors.New("credentials not configured"))
	}

	permalink, err := permalinkPath(ref)
	if err != nil {
		return nil, newError("reddit", KindUpstreamError, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, transportError("reddit", err)
	}

	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s%s.json?raw_json=1&limit=%d&sort=top", s.cfg.BaseURL, permalink, s.cfg.MaxComments)
	listings, err := s.doGet(ctx, u, token).Unwrap()
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return nil, newError("reddit", KindNotFound, errors.New("empty listing"))
	}

	post := listings[0].Data.Children[0].Data
	content := &Content{
		Title:  post.Title,
		Body:   cleanText(post.SelfText),
		Author: post.Author,
		Metadata: map[string]any{
			"subreddit":    post.Subreddit,
			"upvotes":      post.Score,
			"upvote_ratio": post.UpvoteRatio,
			"num_comments": post.NumComments,
			"permalink":    post.Permalink,
		},
	}
	if content.Body == "" {
		// Link posts have no selftext; carry the target URL as the body.
		content.Body = post.URL
	}
	if content.Title == "" && content.Body == "" {
		return nil, newError("reddit", KindUpstreamError, errors.New("thread has no usable content"))
	}

	if len(listings) > 1 {
		content.Comments = flattenRedditComments(listings[1], s.cfg.MaxComments)
	}
	return content, nil
}

// accessToken returns a cached app-only OAuth token, refreshing it via
// the client-credentials grant when missing or near expiry.
func (s *RedditScraper) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Now().Before(s.tokenExp.Add(-time.Minute)) {
		return s.token, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, form)
	if err != nil {
		return "", newError("reddit", KindUpstreamError, err)
	}
	req.SetBasicAuth(s.cfg.ClientID, s.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", transportError("reddit", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError("reddit", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", newError("reddit", KindUpstreamError, fmt.Errorf("decode token: %w", err))
	}
	if body.AccessToken == "" {
		return "", newError("reddit", KindAuthFailed, errors.New("token response missing access_token"))
	}
	s.token = body.AccessToken
	s.tokenExp = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return s.token, nil
}

func (s *RedditScraper) doGet(ctx context.Context, u, token string) fn.Result[[]redditListing] {
	body, err := s.httpGet(ctx, u, token)
	if err != nil {
		return fn.Err[[]redditListing](err)
	}
	defer body.Close()

	// Reddit returns [postListing, commentListing] for a permalink.
	var listings []redditListing
	if err := json.NewDecoder(body).Decode(&listings); err != nil {
		return fn.Err[[]redditListing](newError("reddit", KindUpstreamError, fmt.Errorf("decode listing: %w", err)))
	}
	return fn.Ok(listings)
}

func (s *RedditScraper) httpGet(ctx context.Context, u, token string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, newError("reddit", KindUpstreamError, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError("reddit", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, statusError("reddit", resp.StatusCode)
	}
	return resp.Body, nil
}

// permalinkPath extracts the path component of a thread URL.
func permalinkPath(ref string) (string, error) {
	raw := strings.TrimSpace(ref)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "", fmt.Errorf("no permalink path in %q", ref)
	}
	return strings.TrimSuffix(u.Path, "/"), nil
}

func flattenRedditComments(listing redditListing, limit int) []Comment {
	var out []Comment
	for _, child := range listing.Data.Children {
		if child.Kind != "t1" {
			continue
		}
		d := child.Data
		if d.Body == "[deleted]" || d.Body == "[removed]" {
			continue
		}
		out = append(out, Comment{
			Author: d.Author,
			Text:   cleanText(d.Body),
			Score:  d.Score,
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Reddit JSON API response types.

type redditListing struct {
	Data struct {
		Children []redditChild `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Kind string     `json:"kind"`
	Data redditData `json:"data"`
}

type redditData struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	SelfText    string  `json:"selftext"`
	Body        string  `json:"body"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	NumComments int     `json:"num_comments"`
}
