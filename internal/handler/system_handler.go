package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LiveSessions reports how many exam sessions are held in memory.
type LiveSessions interface {
	Count() int
}

// SystemHandler reports process and dependency health.
type SystemHandler struct {
	db        Pinger
	rdb       *redis.Client
	sessions  LiveSessions
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(db Pinger, rdb *redis.Client, sessions LiveSessions, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		sessions:  sessions,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	Database     string `json:"database"`
	Redis        string `json:"redis"`
	ResultQueue  int64  `json:"result_queue"`
	LiveSessions int    `json:"live_sessions"`
	Goroutines   int    `json:"goroutines"`
	GoVersion    string `json:"go_version"`
}

// Health godoc
// GET /health
// Returns 503 when PostgreSQL or Redis cannot be reached.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:     "ok",
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Database:   "disabled",
		Redis:      "disabled",
		Goroutines: runtime.NumGoroutine(),
		GoVersion:  runtime.Version(),
	}
	if h.sessions != nil {
		report.LiveSessions = h.sessions.Count()
	}

	if h.db != nil {
		report.Database = "ok"
		if err := h.db.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Database health check failed")
			report.Database, report.Status = "down", "degraded"
		}
	}

	if h.rdb != nil {
		report.Redis = "ok"
		pipe := h.rdb.Pipeline()
		pingCmd := pipe.Ping(ctx)
		queueCmd := pipe.LLen(ctx, config.WorkerKey.PersistResultsQueue)
		if _, err := pipe.Exec(ctx); err != nil || pingCmd.Err() != nil {
			h.log.Warn().Err(err).Msg("Redis health check failed")
			report.Redis, report.Status = "down", "degraded"
		} else {
			report.ResultQueue, _ = queueCmd.Result()
		}
	}

	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, report)
}
