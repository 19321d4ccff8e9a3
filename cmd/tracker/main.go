// jobhunt-tracker
//
// Read and tracking surface for scraped psychiatry postings.
// Exposes a REST API and a JobTracker gRPC service used to:
//   - list and inspect postings (paginated, filterable)
//   - toggle favorites, move status and edit notes
//   - trigger a manual scrape and read the latest audit record
//
// Publishes EVENT_TRACKING_UPDATED and scrape events to Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"jobmate/jobhunt/internal/config"
	"jobmate/jobhunt/internal/db"
	"jobmate/jobhunt/internal/events"
	"jobmate/jobhunt/internal/grpcserver"
	"jobmate/jobhunt/internal/httpapi"
	"jobmate/jobhunt/internal/ingest"
	"jobmate/jobhunt/internal/logging"
	"jobmate/jobhunt/internal/query"
	"jobmate/jobhunt/internal/scraper"
	"jobmate/jobhunt/internal/store"
	"jobmate/jobhunt/internal/tracking"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[tracker] Config error: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", "tracker", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[tracker] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, "jobhunt-tracker")
	if err != nil {
		log.Fatalf("[tracker] PostgreSQL: %v", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("[tracker] Migrations: %v", err)
	}
	log.Println("[tracker] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[tracker] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "jobhunt-tracker")
	if err != nil {
		log.Fatalf("[tracker] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[tracker] Redis connected ✓")

	// ── Services ─────────────────────────────────────────────────────────────
	pub := events.NewRedis(rdb, logger)
	st := store.NewPostgres(pool)

	producer, err := scraper.New(cfg, logger)
	if err != nil {
		log.Fatalf("[tracker] Producer: %v", err)
	}
	pipeline := ingest.New(st, producer, logger,
		ingest.WithFetchTimeout(cfg.ScrapeTimeout),
		ingest.WithEvents(pub),
	)

	mode, err := query.ParseCountMode(cfg.PaginationMode)
	if err != nil {
		log.Fatalf("[tracker] %v", err)
	}
	queries := query.NewService(st, mode, query.WithPageSizes(cfg.DefaultPageSize, cfg.MaxPageSize))
	mutator := tracking.NewMutator(st, logger, tracking.WithEvents(pub))

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	httpapi.NewHandler(queries, mutator, pipeline, logger).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      httpapi.Wrap(mux, cfg.AllowedOrigins, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ScrapeTimeout + 30*time.Second,
	}

	go func() {
		log.Printf("[tracker] v%s HTTP listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[tracker] HTTP server error: %v", err)
		}
	}()

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatalf("[tracker] gRPC listen: %v", err)
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger(logger)))
	grpcserver.Register(gs, grpcserver.NewServer(queries, mutator, pipeline))

	go func() {
		log.Printf("[tracker] gRPC listening on :%s", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			log.Fatalf("[tracker] gRPC server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[tracker] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	gs.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[tracker] Shutdown error: %v", err)
	}
	log.Println("[tracker] Stopped.")
}
