package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/database"
	"github.com/talentgate/exam-backend/internal/handler"
	"github.com/talentgate/exam-backend/internal/integrity"
	"github.com/talentgate/exam-backend/internal/logger"
	"github.com/talentgate/exam-backend/internal/middleware"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/repository"
	"github.com/talentgate/exam-backend/internal/router"
	"github.com/talentgate/exam-backend/internal/service"
	"github.com/talentgate/exam-backend/internal/validator"
	"github.com/talentgate/exam-backend/internal/worker"
	"k8s.io/utils/clock"
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
		Msg("Starting Talent Gate exam backend")

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

	clk := clock.RealClock{}

	// ─── Initialize Repositories ───────────────────────────────────────
	assignmentRepo := repository.NewAssignmentRepository(pool)
	candidateRepo := repository.NewCandidateRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	integrityRepo := repository.NewIntegrityRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	resolver := service.NewAssignmentResolver(assignmentRepo, rdb, clk)
	notificationService := service.NewNotificationService(notificationRepo, adminRepo, rdb, clk, log)
	examService := service.NewExamService(examRepo, resolver, rdb, notificationService, clk, log)
	candidateService := service.NewCandidateService(resolver, assignmentRepo, candidateRepo, examService, clk, log)
	authService := service.NewAuthService(cfg, adminRepo, roleRepo, rdb)
	menuService := service.NewMenuService(model.MenuCatalog)
	proctorService := service.NewProctorService(
		examService,
		resolver,
		rdb,
		notificationService,
		integrity.NewRedisReloadFlags(rdb, 0),
		service.ProctorOptions{
			Clock:            clk,
			AutoSubmitDelay:  cfg.AutoSubmitDelay,
			DefaultTimeLimit: cfg.DefaultQuestionTimeLimit,
		},
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:         handler.NewAuthHandler(authService, log),
		Candidate:    handler.NewCandidateHandler(candidateService, log),
		Exam:         handler.NewExamHandler(examService, log),
		WS:           handler.NewWSHandler(proctorService, log, cfg.AllowedOrigins),
		Admin:        handler.NewAdminHandler(menuService, integrityRepo, log),
		Notification: handler.NewNotificationHandler(notificationService, log, cfg.AllowedOrigins),
		System:       handler.NewSystemHandler(pool, rdb, proctorService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	submissionWorker := worker.NewSubmissionWorker(submissionRepo, rdb, worker.Options{}, log)
	integrityWorker := worker.NewIntegrityWorker(integrityRepo, rdb, worker.Options{}, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		submissionWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		integrityWorker.Start(workerCtx)
	}()

	candidateLimiter := middleware.NewRateLimiter(cfg.CandidateRateLimit, time.Minute, clk)
	go candidateLimiter.Run(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Exams with open assignments are cached before traffic arrives.
	if err := examService.PrewarmCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, candidateLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
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

	// 2. Stop background workers; each flushes its pending batch.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
