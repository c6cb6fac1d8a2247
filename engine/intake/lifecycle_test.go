package intake

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/toksmith/toksmith/engine/job"
	"github.com/toksmith/toksmith/engine/scrape"
	"github.com/toksmith/toksmith/engine/source"
	"github.com/toksmith/toksmith/engine/worker"
)

// queueStub collects published ids so the test can drive the worker
// the way the queue consumer would.
type queueStub struct {
	ids []string
}

func (q *queueStub) Publish(_ context.Context, _ string, msg JobMessage) error {
	q.ids = append(q.ids, msg.JobID)
	return nil
}

type fixedScraper struct {
	content *scrape.Content
	err     error
}

func (f fixedScraper) Fetch(context.Context, string) (*scrape.Content, error) {
	return f.content, f.err
}

func lifecycleFixture(t *testing.T, redditScraper scrape.Scraper) (*Service, *worker.Processor, *queueStub) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := job.NewMemStore()
	queue := &queueStub{}
	svc := New(store, queue, log)

	registry := scrape.NewRegistry()
	registry.Register(source.Reddit, redditScraper)
	registry.Register(source.Script, scrape.NewScriptScraper())
	proc := worker.New(worker.Deps{Store: store, Scrapers: registry, Logger: log})
	return svc, proc, queue
}

func TestLifecycleSubmitToCompleted(t *testing.T) {
	ctx := context.Background()
	svc, proc, queue := lifecycleFixture(t, fixedScraper{
		content: &scrape.Content{Title: "T", Body: "B"},
	})

	res, err := svc.Submit(ctx, SubmitRequest{URL: "https://www.reddit.com/r/golang/comments/abc123/title"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Caller polls before the worker runs and sees pending.
	j, err := svc.Status(ctx, res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.StatusPending {
		t.Fatalf("expected pending before processing, got %s", j.Status)
	}

	for _, id := range queue.ids {
		proc.Process(ctx, id)
	}

	j, err = svc.Status(ctx, res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", j.Status, j.ErrorMessage)
	}
	c, err := j.Content()
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "T" {
		t.Fatalf("unexpected result %+v", c)
	}
}

func TestLifecycleScrapeFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	svc, proc, queue := lifecycleFixture(t, fixedScraper{
		err: &scrape.Error{Kind: scrape.KindRateLimited, Provider: "reddit"},
	})

	res, err := svc.Submit(ctx, SubmitRequest{URL: "https://www.reddit.com/r/golang/comments/abc123/title"})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range queue.ids {
		proc.Process(ctx, id)
	}

	j, err := svc.Status(ctx, res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.StatusFailed {
		t.Fatalf("expected failed, got %s", j.Status)
	}
	if j.ErrorMessage == nil || *j.ErrorMessage != "rate limited by reddit, try again later" {
		t.Fatalf("unexpected message %v", j.ErrorMessage)
	}
}

func TestLifecycleScriptBypassesNetwork(t *testing.T) {
	ctx := context.Background()
	svc, proc, queue := lifecycleFixture(t, fixedScraper{
		err: errors.New("network must not be touched"),
	})

	res, err := svc.Submit(ctx, SubmitRequest{Script: "echo hello from a test script"})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range queue.ids {
		proc.Process(ctx, id)
	}

	j, err := svc.Status(ctx, res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", j.Status, j.ErrorMessage)
	}
	c, err := j.Content()
	if err != nil {
		t.Fatal(err)
	}
	if c.Body != "echo hello from a test script" {
		t.Fatalf("unexpected body %q", c.Body)
	}
}
