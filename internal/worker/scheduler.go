package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/metrics"
)

const (
	sessionSweepSpec   = "@every 1m"
	visitorCleanupSpec = "@every 5m"
)

// SessionSweeper is satisfied by *session.Manager.
type SessionSweeper interface {
	Sweep(now time.Time, retention time.Duration) int
	Count() int
}

// VisitorCleaner is satisfied by *middleware.RateLimiter.
type VisitorCleaner interface {
	Cleanup() int
}

// Scheduler runs periodic housekeeping: finished sessions are dropped from
// the live registry and idle rate-limit buckets are released.
type Scheduler struct {
	cron      *cron.Cron
	sessions  SessionSweeper
	visitors  VisitorCleaner
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewScheduler(sessions SessionSweeper, visitors VisitorCleaner, retention time.Duration, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		sessions:  sessions,
		visitors:  visitors,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("component", "scheduler").Logger(),
	}

	if _, err := s.cron.AddFunc(sessionSweepSpec, s.sweepSessions); err != nil {
		return nil, err
	}
	if visitors != nil {
		if _, err := s.cron.AddFunc(visitorCleanupSpec, s.cleanupVisitors); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop prevents new runs; the returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) sweepSessions() {
	removed := s.sessions.Sweep(s.now(), s.retention)
	live := s.sessions.Count()
	metrics.LiveSessions.Set(float64(live))
	if removed > 0 {
		s.log.Info().Int("removed", removed).Int("live", live).Msg("Finished sessions swept")
	}
}

func (s *Scheduler) cleanupVisitors() {
	if n := s.visitors.Cleanup(); n > 0 {
		s.log.Debug().Int("removed", n).Msg("Idle rate-limit visitors released")
	}
}
