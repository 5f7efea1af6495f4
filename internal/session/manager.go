package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/notify"
)

var ErrSessionNotFound = errors.New("session not found")

// ExamLoader fetches the full exam definition, including the answer key.
type ExamLoader interface {
	LoadExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Loader       ExamLoader
	Submitter    Submitter
	Recorder     AnswerRecorder
	Notifier     notify.Publisher
	Policy       Policy
	TickInterval time.Duration
	// MaxAge bounds how long any session stays registered, whatever its
	// state. Zero disables the bound.
	MaxAge time.Duration
	Log    zerolog.Logger
}

// Manager owns the live sessions of this process.
type Manager struct {
	cfg ManagerConfig
	ctx context.Context
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a Manager. Session timers stop when ctx is cancelled.
func NewManager(ctx context.Context, cfg ManagerConfig) *Manager {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Manager{
		cfg:      cfg,
		ctx:      ctx,
		log:      cfg.Log.With().Str("component", "session_manager").Logger(),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open creates a session for examID, loads the exam and starts the timer.
// A session whose exam could not be loaded is still registered in the
// failed state and the load error is returned alongside it.
func (m *Manager) Open(ctx context.Context, id, examID uuid.UUID, pin string) (*Session, error) {
	s := New(Options{
		ID:        id,
		ExamID:    examID,
		Pin:       pin,
		Policy:    m.cfg.Policy,
		Submitter: m.cfg.Submitter,
		Recorder:  m.cfg.Recorder,
		Notifier:  m.cfg.Notifier,
		Log:       m.cfg.Log,
	})

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	exam, err := m.cfg.Loader.LoadExam(ctx, examID)
	if err := s.Load(exam, err); err != nil {
		m.log.Warn().Err(err).Str("session_id", s.ID().String()).Msg("Session failed to load")
		return s, err
	}
	s.Start(m.ctx, m.cfg.TickInterval)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions that finished or ran out of time more than retention
// ago, and sessions older than MaxAge plus retention.
func (m *Manager) Sweep(now time.Time, retention time.Duration) int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if m.stale(s, now, retention) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		m.log.Debug().Int("removed", len(stale)).Msg("Swept finished sessions")
	}
	return len(stale)
}

func (m *Manager) stale(s *Session, now time.Time, retention time.Duration) bool {
	if idle, at := s.idle(); idle && now.Sub(at) >= retention {
		return true
	}
	return m.cfg.MaxAge > 0 && now.Sub(s.createdAt) >= m.cfg.MaxAge+retention
}

// Shutdown stops every session timer.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}
