package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/database"
	"github.com/stemsi/quiz-overview/internal/handler"
	"github.com/stemsi/quiz-overview/internal/logger"
	"github.com/stemsi/quiz-overview/internal/metrics"
	"github.com/stemsi/quiz-overview/internal/middleware"
	"github.com/stemsi/quiz-overview/internal/regrade"
	"github.com/stemsi/quiz-overview/internal/repository"
	"github.com/stemsi/quiz-overview/internal/router"
	"github.com/stemsi/quiz-overview/internal/scoring"
	"github.com/stemsi/quiz-overview/internal/service"
	"github.com/stemsi/quiz-overview/internal/validator"
	"github.com/stemsi/quiz-overview/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, "server")
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting quiz overview service")

	// ─── Initialize Validator and Metrics ──────────────────────────────
	validator.Setup()
	metrics.Init()

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
	quizRepo := repository.NewQuizRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	regradeRepo := repository.NewRegradeRepository(pool)
	gradeRepo := repository.NewGradeRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	gradeSync := service.NewGradeSyncService(pool, attemptRepo, gradeRepo, rdb, log)
	engine := regrade.NewEngine(
		attemptRepo,
		regradeRepo,
		service.NewPgTransactor(pool, scoring.NewScorer()),
		gradeSync,
		log,
	)
	runStore := service.NewRunStore(rdb, cfg.RegradeRunTTL, log)
	regradeService := service.NewRegradeService(
		quizRepo,
		attemptRepo,
		regradeRepo,
		engine,
		service.NewQuizLock(rdb, cfg.RegradeLockTTL, log),
		runStore,
		log,
	)
	overviewService := service.NewOverviewService(quizRepo, dashboardRepo, regradeService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Overview: handler.NewOverviewHandler(overviewService),
		Regrade:  handler.NewRegradeHandler(regradeService),
		WS:       handler.NewWSHandler(runStore, log, cfg.AllowedOrigins),
		Health: handler.NewHealthHandler(map[string]handler.Probe{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	gradebookWorker := worker.NewGradebookWorker(pool, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		gradebookWorker.Start(workerCtx)
	}()

	regradeLimiter := middleware.NewRateLimiter(cfg.RegradeRateLimit, time.Minute)
	go regradeLimiter.Cleanup(workerCtx.Done())

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, regradeLimiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// 2. Let background regrade batches finish so no run is left "running".
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.RegradeDrainTimeout)
	defer drainCancel()
	if err := regradeService.Wait(drainCtx); err != nil {
		log.Warn().Err(err).Msg("Regrade batches still running at shutdown")
	}

	// 3. Stop background workers and wait for the gradebook queue batch to flush.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Workers did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
