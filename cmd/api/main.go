// Package main implements the toksmith input API: content submission,
// job status, and source listing. Scraping itself happens in the
// worker service; this process only validates, records, and enqueues.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
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
	"github.com/toksmith/toksmith/engine/source"
	"github.com/toksmith/toksmith/pkg/mid"
	"github.com/toksmith/toksmith/pkg/natsutil"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	DatabaseURL string
	NATSURL     string
	CORSOrigin  string
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		DatabaseURL: envOr("DATABASE_URL", "toksmith.db"),
		NATSURL:     envOr("NATS_URL", nats.DefaultURL),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		// Environment variables may be set directly.
		logger.Info("no .env file found")
	}

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Open the job store ---
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	store, err := job.NewGormStore(db)
	if err != nil {
		return fmt.Errorf("migrate job store: %w", err)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	svc := intake.New(store, &natsPublisher{nc: nc}, logger)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/input/health", handleHealth)
	mux.HandleFunc("POST /api/v1/input/scrape", handleSubmit(svc, logger))
	mux.HandleFunc("GET /api/v1/input/jobs/{id}", handleStatus(svc, logger))
	mux.HandleFunc("GET /api/v1/input/sources", handleSources(svc))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("toksmith-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// openDB opens postgres when DATABASE_URL looks like a postgres DSN,
// sqlite otherwise.
func openDB(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

// natsPublisher adapts a NATS connection to the intake.Publisher
// interface.
type natsPublisher struct {
	nc *nats.Conn
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, msg intake.JobMessage) error {
	return natsutil.Publish(ctx, p.nc, subject, msg)
}

// --- Handlers ---

// SubmitResponse is the JSON response for POST /api/v1/input/scrape.
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

// StatusResponse is the JSON response for GET /api/v1/input/jobs/{id}.
type StatusResponse struct {
	JobID        string     `json:"job_id"`
	Source       source.Tag `json:"source"`
	Reference    *string    `json:"reference,omitempty"`
	Status       job.Status `json:"status"`
	Result       any        `json:"result,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "input-layer",
	})
}

func handleSubmit(svc *intake.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req intake.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, SubmitResponse{Message: "invalid request body"})
			return
		}

		res, err := svc.Submit(r.Context(), req)
		if err != nil {
			var vErr *source.ValidationError
			if errors.As(err, &vErr) {
				writeJSON(w, http.StatusBadRequest, SubmitResponse{Message: vErr.Reason()})
				return
			}
			logger.Error("submit failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, SubmitResponse{Message: "internal server error"})
			return
		}

		writeJSON(w, http.StatusAccepted, SubmitResponse{
			Success: true,
			Message: "job queued successfully",
			JobID:   res.JobID,
		})
	}
}

func handleStatus(svc *intake.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		j, err := svc.Status(r.Context(), r.PathValue("id"))
		if errors.Is(err, job.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, SubmitResponse{Message: "job not found"})
			return
		}
		if err != nil {
			logger.Error("status lookup failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, SubmitResponse{Message: "internal server error"})
			return
		}

		resp := StatusResponse{
			JobID:        j.ID,
			Source:       j.Source,
			Reference:    j.Reference,
			Status:       j.Status,
			ErrorMessage: j.ErrorMessage,
			CreatedAt:    j.CreatedAt,
			UpdatedAt:    j.UpdatedAt,
		}
		if j.Status == job.StatusCompleted {
			content, err := j.Content()
			if err != nil {
				logger.Error("decode stored result failed", "job_id", j.ID, "err", err)
			} else {
				resp.Result = content
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSources(svc *intake.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"sources": svc.Sources()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
