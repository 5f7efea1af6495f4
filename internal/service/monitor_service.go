package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/repository"
)

// Monitor event types published on the exam monitor channel.
const (
	MonitorEventPinRedeemed = "pin_redeemed"
	MonitorEventSubmitted   = "submitted"
)

// MonitorEvent is one live update for admins watching an exam.
type MonitorEvent struct {
	Type        string    `json:"type"`
	ExamID      uuid.UUID `json:"exam_id"`
	SessionID   uuid.UUID `json:"session_id"`
	Pin         string    `json:"pin,omitempty"`
	StudentName string    `json:"student_name,omitempty"`
	Score       *int      `json:"score,omitempty"`
	TotalPoints *int      `json:"total_points,omitempty"`
	Percentage  *int      `json:"percentage,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// MonitorStore is the persistence used by MonitorService.
type MonitorStore interface {
	GetPinCounts(ctx context.Context, examID uuid.UUID) (*repository.PinCounts, error)
	GetResultStats(ctx context.Context, examID uuid.UUID) (*repository.ResultStats, error)
}

// MonitorSnapshot is the aggregate view of one exam.
type MonitorSnapshot struct {
	Pins    repository.PinCounts   `json:"pins"`
	Results repository.ResultStats `json:"results"`
}

// MonitorService publishes live exam events and builds monitor snapshots.
type MonitorService struct {
	repo MonitorStore
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewMonitorService creates a new MonitorService. rdb may be nil, which
// disables publishing.
func NewMonitorService(repo MonitorStore, rdb *redis.Client, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "monitor_service").Logger(),
	}
}

// Publish sends ev to the exam's monitor channel. Failures are logged only.
func (s *MonitorService) Publish(ctx context.Context, ev MonitorEvent) {
	if s == nil || s.rdb == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	channel := config.CacheKey.ExamMonitorChannel(ev.ExamID.String())
	if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", ev.ExamID.String()).Msg("Failed to publish monitor event")
	}
}

// Snapshot fetches pin and result counters concurrently.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		pins             *repository.PinCounts
		stats            *repository.ResultStats
		pinsErr, statErr error
		wg               sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		pins, pinsErr = s.repo.GetPinCounts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		stats, statErr = s.repo.GetResultStats(ctx, examID)
	}()
	wg.Wait()

	if pinsErr != nil {
		return nil, pinsErr
	}
	if statErr != nil {
		return nil, statErr
	}
	return &MonitorSnapshot{Pins: *pins, Results: *stats}, nil
}
