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
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/database"
	"github.com/stemsi/exampin-backend/internal/handler"
	"github.com/stemsi/exampin-backend/internal/logger"
	"github.com/stemsi/exampin-backend/internal/metrics"
	"github.com/stemsi/exampin-backend/internal/middleware"
	"github.com/stemsi/exampin-backend/internal/notify"
	"github.com/stemsi/exampin-backend/internal/pin"
	"github.com/stemsi/exampin-backend/internal/repository"
	"github.com/stemsi/exampin-backend/internal/router"
	"github.com/stemsi/exampin-backend/internal/service"
	"github.com/stemsi/exampin-backend/internal/session"
	"github.com/stemsi/exampin-backend/internal/validator"
	"github.com/stemsi/exampin-backend/internal/worker"
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
		Bool("admin_key", cfg.AdminAPIKey != "").
		Msg("Starting ExamPin Backend")

	if cfg.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY is empty, admin routes are unprotected")
	}

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
	examRepo := repository.NewExamRepository(pool)
	pinRepo := repository.NewPinRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	notifications := notify.NewBus()
	monitorService := service.NewMonitorService(monitorRepo, rdb, log)
	examService := service.NewExamService(examRepo, rdb, log)
	pinService := service.NewPinService(pinRepo, examRepo, pin.NewGenerator(), log)
	resultService := service.NewResultService(resultRepo, rdb, monitorService, log)
	autosaver := service.NewAnswerAutosaver(rdb, cfg.SessionTokenExpiry)

	// Session timers outlive individual requests and stop on shutdown.
	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	sessions := session.NewManager(sessionCtx, session.ManagerConfig{
		Loader:    examService,
		Submitter: resultService,
		Recorder:  autosaver,
		Notifier:  notifications,
		Policy: session.Policy{
			SubmitOnHidden: session.DefaultPolicy.SubmitOnHidden,
			RedirectDelay:  cfg.ResultRedirectDelay,
		},
		TickInterval: time.Second,
		MaxAge:       cfg.SessionTokenExpiry,
		Log:          log,
	})

	sessionService := service.NewSessionService(pinService, sessions, monitorService,
		cfg.SessionTokenSecret, cfg.SessionTokenExpiry, log)
	dashboardService := service.NewDashboardService(dashboardRepo, sessions)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:      handler.NewExamHandler(examService, log),
		Pin:       handler.NewPinHandler(pinService, log),
		Result:    handler.NewResultHandler(resultService, log),
		Student:   handler.NewStudentHandler(sessionService, examService, log),
		WS:        handler.NewWSHandler(sessionService, notifications, log, cfg.AllowedOrigins),
		Dashboard: handler.NewDashboardHandler(dashboardService, log),
		Monitor:   handler.NewMonitorHandler(rdb, examService, monitorService, log),
		System:    handler.NewSystemHandler(pool, rdb, sessions, log),
	}

	redeemLimiter := middleware.NewRateLimiter(cfg.RedeemRatePerMinute, time.Minute)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	resultWorker := worker.NewResultWorker(resultRepo, rdb, log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		resultWorker.Start(workerCtx)
	}()

	scheduler, err := worker.NewScheduler(sessions, redeemLimiter, cfg.SessionRetention, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure scheduler")
	}
	scheduler.Start()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams into Redis BEFORE accepting traffic.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(sessionService, redeemLimiter, handlers, cfg)

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

	// 2. Stop session timers and scheduled jobs.
	<-scheduler.Stop().Done()
	sessions.Shutdown()
	sessionCancel()

	// 3. Stop the result worker and wait for its queue to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
