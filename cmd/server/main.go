package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/config"
	"github.com/testply/guestexam-backend/internal/database"
	"github.com/testply/guestexam-backend/internal/handler"
	"github.com/testply/guestexam-backend/internal/kv"
	"github.com/testply/guestexam-backend/internal/ledger"
	"github.com/testply/guestexam-backend/internal/logger"
	"github.com/testply/guestexam-backend/internal/repository"
	"github.com/testply/guestexam-backend/internal/router"
	"github.com/testply/guestexam-backend/internal/service"
	"github.com/testply/guestexam-backend/internal/session"
	"github.com/testply/guestexam-backend/internal/validator"
	"github.com/testply/guestexam-backend/internal/variant"
	"github.com/testply/guestexam-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting GuestExam Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	accessRepo := repository.NewAccessRequestRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	catalogService := service.NewCatalogService(examRepo, rdb, log)

	store := kv.NewRedisStore(rdb)
	attemptLedger := ledger.New(store, log)
	examService := service.NewGuestExamService(
		attemptLedger,
		catalogService,
		variant.NewGenerator(nil),
		session.LocalGrader{},
		accessRepo,
		store,
		rdb,
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Guest:   handler.NewGuestHandler(examService, authService),
		Attempt: handler.NewAttemptHandler(examService),
		WS:      handler.NewWSHandler(examService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	archiveWorker := worker.NewAttemptArchiveWorker(pool, rdb, log)

	go violationWorker.Start(workerCtx)
	go archiveWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := catalogService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
