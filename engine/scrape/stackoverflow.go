package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/toksmith/toksmith/pkg/fn"
)

var questionIDRe = regexp.MustCompile(`/questions/([0-9]+)`)

// StackOverflowConfig carries the injected Stack Exchange API key.
type StackOverflowConfig struct {
	Key        string
	MaxAnswers int
	// BaseURL exists for tests; zero value hits the real API.
	BaseURL string
}

// StackOverflowScraper fetches a question and its answers through the
// Stack Exchange API.
type StackOverflowScraper struct {
	cfg     StackOverflowConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewStackOverflowScraper creates the StackOverflow variant.
func NewStackOverflowScraper(cfg StackOverflowConfig, log *slog.Logger) *StackOverflowScraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stackexchange.com"
	}
	if cfg.MaxAnswers <= 0 {
		cfg.MaxAnswers = 20
	}
	return &StackOverflowScraper{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		log:     log,
	}
}

// Fetch retrieves the question behind a /questions/<id>/ URL together
// with its answers, ordered by votes.
func (s *StackOverflowScraper) Fetch(ctx context.Context, ref string) (*Content, error) {
	if s.cfg.Key == "" {
		return nil, newError("stackoverflow", KindAuthFailed, errors.New("api key not configured"))
	}

	m := questionIDRe.FindStringSubmatch(ref)
	if m == nil {
		return nil, newError("stackoverflow", KindUpstreamError, fmt.Errorf("no question id in %q", ref))
	}
	questionID := m[1]

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, transportError("stackoverflow", err)
	}

	u := fmt.Sprintf("%s/2.3/questions/%s?site=stackoverflow&filter=withbody&key=%s", s.cfg.BaseURL, questionID, s.cfg.Key)
	questions, err := s.doGet(ctx, u).Unwrap()
	if err != nil {
		return nil, err
	}
	if len(questions.Items) == 0 {
		return nil, newError("stackoverflow", KindNotFound, fmt.Errorf("question %s not found", questionID))
	}
	q := questions.Items[0]

	content := &Content{
		Title:  stripHTML(q.Title),
		Body:   stripHTML(q.Body),
		Author: q.Owner.DisplayName,
		Metadata: map[string]any{
			"question_id":  questionID,
			"score":        q.Score,
			"view_count":   q.ViewCount,
			"answer_count": q.AnswerCount,
			"tags":         q.Tags,
			"is_answered":  q.IsAnswered,
		},
	}
	if content.Title == "" && content.Body == "" {
		return nil, newError("stackoverflow", KindUpstreamError, errors.New("question has no usable content"))
	}

	// Answers are best-effort: the question alone is still a result.
	answers, err := s.fetchAnswers(ctx, questionID)
	if err != nil {
		s.log.Warn("stackoverflow answers fetch failed", "question_id", questionID, "error", err)
	} else {
		content.Comments = answers
	}
	return content, nil
}

func (s *StackOverflowScraper) fetchAnswers(ctx context.Context, questionID string) ([]Comment, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, transportError("stackoverflow", err)
	}
	u := fmt.Sprintf("%s/2.3/questions/%s/answers?site=stackoverflow&filter=withbody&order=desc&sort=votes&pagesize=%d&key=%s",
		s.cfg.BaseURL, questionID, s.cfg.MaxAnswers, s.cfg.Key)
	answers, err := s.doGet(ctx, u).Unwrap()
	if err != nil {
		return nil, err
	}

	var out []Comment
	for _, a := range answers.Items {
		text := stripHTML(a.Body)
		if text == "" {
			continue
		}
		if a.IsAccepted {
			text = "[accepted answer] " + text
		}
		out = append(out, Comment{
			Author: a.Owner.DisplayName,
			Text:   text,
			Score:  a.Score,
		})
		if len(out) >= s.cfg.MaxAnswers {
			break
		}
	}
	return out, nil
}

func (s *StackOverflowScraper) doGet(ctx context.Context, u string) fn.Result[*stackExchangeResponse] {
	body, err := s.httpGet(ctx, u)
	if err != nil {
		return fn.Err[*stackExchangeResponse](err)
	}
	defer body.Close()

	var resp stackExchangeResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return fn.Err[*stackExchangeResponse](newError("stackoverflow", KindUpstreamError, fmt.Errorf("decode response: %w", err)))
	}
	return fn.Ok(&resp)
}

func (s *StackOverflowScraper) httpGet(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, newError("stackoverflow", KindUpstreamError, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError("stackoverflow", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, statusError("stackoverflow", resp.StatusCode)
	}
	return resp.Body, nil
}

// Stack Exchange API response types. Questions and answers share one
// item shape; unused fields stay zero.

type stackExchangeResponse struct {
	Items []stackExchangeItem `json:"items"`
}

type stackExchangeItem struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Score       int      `json:"score"`
	ViewCount   int      `json:"view_count"`
	AnswerCount int      `json:"answer_count"`
	Tags        []string `json:"tags"`
	IsAnswered  bool     `json:"is_answered"`
	IsAccepted  bool     `json:"is_accepted"`
	Owner       struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
}
