package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stemsi/courseware-backend/internal/bootstrap"
	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/database"
	"github.com/stemsi/courseware-backend/internal/handler"
	"github.com/stemsi/courseware-backend/internal/logger"
	"github.com/stemsi/courseware-backend/internal/middleware"
	"github.com/stemsi/courseware-backend/internal/realtime"
	"github.com/stemsi/courseware-backend/internal/router"
	"github.com/stemsi/courseware-backend/internal/service"
	"github.com/stemsi/courseware-backend/internal/storage"
	"github.com/stemsi/courseware-backend/internal/validator"
	"github.com/stemsi/courseware-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("db_driver", cfg.DBDriver).
		Str("blob_backend", cfg.BlobBackend).
		Msg("Starting Courseware Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Stores ───────────────────────────────────────────────────
	stores, closeStores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer closeStores()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	locker := realtime.NewLocker(rdb, cfg.ReorderLockTTL)
	publisher := realtime.NewPublisher(rdb)
	editQueue := realtime.NewQueue(rdb, config.WorkerKey.BlockEditQueue)
	counter := realtime.NewCounter(rdb)

	// ─── Blob Storage ──────────────────────────────────────────────────
	blobs, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize blob storage")
	}
	if closer, ok := blobs.(io.Closer); ok {
		defer closer.Close()
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, stores.Users, log)
	courseService := service.NewCourseService(stores, log)
	authoringService := service.NewAuthoringService(stores, locker, publisher, editQueue, log)
	submissionService := service.NewSubmissionService(stores, blobs, cfg.MaxVideoBytes, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	limiters := router.Limiters{
		Login:  middleware.NewRateLimiter(counter, "login", cfg.LoginRateLimit, time.Minute, log),
		Submit: middleware.NewRateLimiter(counter, "submit", cfg.SubmitRateLimit, time.Minute, log),
	}
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, log),
		Course:     handler.NewCourseHandler(courseService, log),
		Authoring:  handler.NewAuthoringHandler(authoringService, log),
		Submission: handler.NewSubmissionHandler(submissionService, cfg.MaxVideoBytes, log),
		WS:         handler.NewWSHandler(publisher, courseService, authoringService, submissionService, limiters.Submit, log, cfg.AllowedOrigins),
		System:     handler.NewSystemHandler(editQueue, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workers, workersCtx := errgroup.WithContext(workerCtx)
	for i := 0; i < cfg.EditQueueWorkers; i++ {
		w := worker.NewBlockEditWorker(editQueue, authoringService, cfg.EditMaxAttempts,
			log.With().Int("worker", i).Logger())
		workers.Go(func() error {
			w.Start(workersCtx)
			return nil
		})
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, limiters, cfg, log)

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

	// 2. Stop the edit workers; each drains the queue before returning.
	workerCancel()
	_ = workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
