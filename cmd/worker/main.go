// Package main implements the toksmith scrape worker: a pool of
// goroutines consuming job ids from NATS, executing the matching
// scraper, and writing terminal job state back to the store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/toksmith/toksmith/engine/intake"
	"github.com/toksmith/toksmith/engine/job"
	"github.com/toksmith/toksmith/engine/scrape"
	"github.com/toksmith/toksmith/engine/source"
	"github.com/toksmith/toksmith/engine/worker"
	"github.com/toksmith/toksmith/pkg/metrics"
	"github.com/toksmith/toksmith/pkg/natsutil"
)

// queueGroup makes each job id land on exactly one worker process.
const queueGroup = "scrape-workers"

var met = metrics.New()

// Config holds all environment-based configuration, including the
// per-provider scraper credentials.
type Config struct {
	DatabaseURL   string
	NATSURL       string
	Concurrency   int
	ScrapeTimeout time.Duration
	MetricsPort   int

	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	TwitterBearerToken string
	StackExchangeKey   string
}

func loadConfig() Config {
	return Config{
		DatabaseURL:   envOr("DATABASE_URL", "toksmith.db"),
		NATSURL:       envOr("NATS_URL", nats.DefaultURL),
		Concurrency:   envInt("WORKER_CONCURRENCY", 4),
		ScrapeTimeout: envDuration("SCRAPE_TIMEOUT", worker.DefaultTimeout),
		MetricsPort:   envInt("METRICS_PORT", 9091),

		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:    envOr("REDDIT_USER_AGENT", "toksmith/1.0 (content ingestion)"),
		TwitterBearerToken: os.Getenv("TWITTER_BEARER_TOKEN"),
		StackExchangeKey:   os.Getenv("STACKEXCHANGE_KEY"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found")
	}

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met.CollectRuntime("toksmith_worker", 15*time.Second)
	met.ServeAsync(cfg.MetricsPort)

	// --- Open the job store ---
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	store, err := job.NewGormStore(db)
	if err != nil {
		return fmt.Errorf("migrate job store: %w", err)
	}

	// --- Scraper variants ---
	registry := scrape.NewRegistry()
	registry.Register(source.Reddit, scrape.NewRedditScraper(scrape.RedditConfig{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
	}, logger))
	registry.Register(source.Twitter, scrape.NewTwitterScraper(scrape.TwitterConfig{
		BearerToken: cfg.TwitterBearerToken,
	}, logger))
	registry.Register(source.StackOverflow, scrape.NewStackOverflowScraper(scrape.StackOverflowConfig{
		Key: cfg.StackExchangeKey,
	}, logger))
	registry.Register(source.Script, scrape.NewScriptScraper())

	processor := worker.New(worker.Deps{
		Store:    store,
		Scrapers: registry,
		Timeout:  cfg.ScrapeTimeout,
		Logger:   logger,
		Metrics:  met,
	})

	// --- Connect to NATS and start the pool ---
	drained := make(chan struct{})
	nc, err := nats.Connect(cfg.NATSURL, nats.ClosedHandler(func(*nats.Conn) {
		close(drained)
	}))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}

	workers := newPool(cfg.Concurrency, processor.Process)

	_, err = natsutil.QueueSubscribe(nc, intake.SubjectScrape, queueGroup, func(msgCtx context.Context, msg intake.JobMessage) {
		workers.submit(msgCtx, msg.JobID)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", intake.SubjectScrape, err)
	}

	logger.Info("worker pool started",
		"subject", intake.SubjectScrape,
		"concurrency", cfg.Concurrency,
		"scrape_timeout", cfg.ScrapeTimeout,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Drain stops intake and delivers pending messages; the closed
	// handler fires once all subscription callbacks have returned, so
	// closing the task channel afterwards is safe. If the drain times
	// out a callback may still be blocked mid-submit, so that path
	// abandons the pool instead of closing under a live sender.
	if err := nc.Drain(); err != nil {
		logger.Error("drain failed", "err", err)
		nc.Close()
	}
	select {
	case <-drained:
		workers.drainAndWait()
	case <-time.After(30 * time.Second):
		logger.Warn("drain timed out")
		workers.abandon()
	}
	return nil
}

// openDB opens postgres when DATABASE_URL looks like a postgres DSN,
// sqlite otherwise.
func openDB(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}
