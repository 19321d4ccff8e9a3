// jobhunt-discovery
//
// Scrape worker. Fires the ingestion pipeline on a cron schedule
// (SCRAPE_CRON, evaluated in SCRAPE_TIMEZONE), upserts postings into
// PostgreSQL and appends one scrape_audit row per run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobmate/jobhunt/internal/config"
	"jobmate/jobhunt/internal/db"
	"jobmate/jobhunt/internal/events"
	"jobmate/jobhunt/internal/ingest"
	"jobmate/jobhunt/internal/logging"
	"jobmate/jobhunt/internal/scheduler"
	"jobmate/jobhunt/internal/scraper"
	"jobmate/jobhunt/internal/store"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[discovery] Config error: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", "discovery", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Println("[discovery] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, "jobhunt-discovery")
	if err != nil {
		log.Fatalf("[discovery] PostgreSQL: %v", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("[discovery] Migrations: %v", err)
	}
	log.Println("[discovery] PostgreSQL connected ✓")

	log.Println("[discovery] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "jobhunt-discovery")
	if err != nil {
		log.Fatalf("[discovery] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[discovery] Redis connected ✓")

	st := store.NewPostgres(pool)
	producer, err := scraper.New(cfg, logger)
	if err != nil {
		log.Fatalf("[discovery] Producer: %v", err)
	}
	pipeline := ingest.New(st, producer, logger,
		ingest.WithFetchTimeout(cfg.ScrapeTimeout),
		ingest.WithEvents(events.NewRedis(rdb, logger)),
	)

	sched, err := scheduler.New(cfg.ScrapeCron, cfg.ScrapeTZ, func(ctx context.Context) error {
		_, err := pipeline.Run(ctx)
		return err
	}, logger)
	if err != nil {
		log.Fatalf("[discovery] Scheduler: %v", err)
	}
	if err := sched.Start(ctx, cfg.ScrapeOnStart); err != nil {
		log.Fatalf("[discovery] Scheduler: %v", err)
	}
	log.Printf("[discovery] Cron %q (%s) ✓", cfg.ScrapeCron, cfg.ScrapeTZ)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(st, sched, logger))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.DiscoveryPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[discovery] v%s listening on :%s", version, cfg.DiscoveryPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[discovery] HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[discovery] Shutting down…")
	// In-flight runs observe cancellation and audit themselves as failed.
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		log.Println("[discovery] Timed out waiting for the running scrape")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[discovery] Shutdown error: %v", err)
	}
	log.Println("[discovery] Stopped.")
}

type healthResponse struct {
	Status     string    `json:"status"`
	Service    string    `json:"service"`
	Version    string    `json:"version"`
	NextScrape time.Time `json:"next_scrape"`
	LastScrape any       `json:"last_scrape"`
}

func healthHandler(st *store.Postgres, sched *scheduler.Scheduler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:     "ok",
			Service:    "discovery",
			Version:    version,
			NextScrape: sched.Next(time.Now()),
		}
		if a, err := st.LatestAudit(r.Context()); err != nil {
			logger.Warn("health: latest audit", "err", err)
			resp.Status = "degraded"
		} else if a != nil {
			resp.LastScrape = a
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}
