package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	rdb            *redis.Client
	examService    *service.ExamService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	examService *service.ExamService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		examService:    examService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Streams pin redemptions and submissions of one exam, with periodic
// counter refreshes.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, exam)

	var live <-chan *redis.Message
	if h.rdb != nil {
		pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID.String()))
		defer pubsub.Close()
		live = pubsub.Channel()
	}

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes until something happens on the exam.
	dirty := false

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-live:
			if !ok {
				return
			}
			// Events are already JSON; forward them untouched.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			h.sendRefresh(c, reqCtx, examID)
			dirty = false

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, ctx context.Context, exam *model.Exam) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	snap, err := h.monitorService.Snapshot(fetchCtx, exam.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to build monitor snapshot")
		snap = &service.MonitorSnapshot{}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"exam":  exam.Summary(),
			"stats": snap,
		},
	})
	c.Writer.Flush()
}

func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, examID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snap, err := h.monitorService.Snapshot(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to refresh monitor counters")
		return
	}

	c.SSEvent("message", map[string]interface{}{
		"type":  "refresh",
		"stats": snap,
	})
	c.Writer.Flush()
}
