// Package session implements the exam-taking state machine: a countdown,
// per-question answer capture, navigation, and submission with scoring.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/notify"
	"github.com/stemsi/exampin-backend/internal/scoring"
)

// State is a step of the session lifecycle.
type State string

const (
	StateLoading    State = "loading"
	StateInProgress State = "in_progress"
	StateConfirming State = "confirming"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateFailed     State = "failed"
)

// MaxNameLength bounds the display name entered before submission.
const MaxNameLength = 60

var (
	ErrNotActive       = errors.New("session is not in progress")
	ErrNotConfirming   = errors.New("session is not awaiting confirmation")
	ErrUnknownQuestion = errors.New("question does not belong to this exam")
	ErrTimeUp          = errors.New("time is up, answers can no longer change")
	ErrNameRequired    = errors.New("name is required before submitting")
	ErrNameTooLong     = errors.New("name must be at most 60 characters")
	ErrNoAnswers       = errors.New("at least one question must be answered before submitting")
)

// Submission is handed to the Submitter once scoring has run.
type Submission struct {
	SessionID   uuid.UUID
	ExamID      uuid.UUID
	ExamTitle   string
	Pin         string
	StudentName string
	Reason      model.SubmitReason
	Outcome     scoring.Outcome
}

// Submitter persists a scored submission and returns the result id.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (uuid.UUID, error)
}

// AnswerRecorder mirrors captured answers outside the process (autosave).
type AnswerRecorder interface {
	RecordAnswer(ctx context.Context, sessionID uuid.UUID, questionID, value string) error
}

// Policy holds the product rules that shape forced submission.
type Policy struct {
	// SubmitOnHidden submits immediately when the student surface is hidden
	// while a question is on screen, skipping the confirmation overlay.
	SubmitOnHidden bool
	// RedirectDelay is how long the client shows the score before moving to
	// the results view.
	RedirectDelay time.Duration
}

// DefaultPolicy is the policy used when none is configured.
var DefaultPolicy = Policy{SubmitOnHidden: true, RedirectDelay: 3 * time.Second}

// Outcome is reported to the student once the session is submitted.
type Outcome struct {
	ResultID        uuid.UUID          `json:"result_id"`
	Persisted       bool               `json:"persisted"`
	Score           int                `json:"score"`
	TotalPoints     int                `json:"total_points"`
	Percentage      int                `json:"percentage"`
	Passed          bool               `json:"passed"`
	Reason          model.SubmitReason `json:"reason"`
	RedirectAfterMS int64              `json:"redirect_after_ms"`
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID             uuid.UUID         `json:"session_id"`
	ExamID         uuid.UUID         `json:"exam_id"`
	ExamTitle      string            `json:"exam_title,omitempty"`
	State          State             `json:"state"`
	CurrentIndex   int               `json:"current_index"`
	QuestionCount  int               `json:"question_count"`
	TimeLeft       int               `json:"time_left"`
	Expired        bool              `json:"expired"`
	AnsweredCount  int               `json:"answered_count"`
	Answers        map[string]string `json:"answers"`
	StudentName    string            `json:"student_name,omitempty"`
	Outcome        *Outcome          `json:"outcome,omitempty"`
	Error          string            `json:"error,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
	CurrentQuestID string            `json:"current_question_id,omitempty"`
}

// Options configures a new Session.
type Options struct {
	ID        uuid.UUID
	ExamID    uuid.UUID
	Pin       string
	Policy    Policy
	Submitter Submitter
	Recorder  AnswerRecorder
	Notifier  notify.Publisher
	Log       zerolog.Logger
}

// Session is one student's attempt at one exam. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	id     uuid.UUID
	examID uuid.UUID
	pin    string
	policy Policy

	state      State
	loadErr    error
	exam       *model.Exam
	index      int
	answers    map[string]string
	name       string
	timeLeft   int
	expired    bool
	expiredAt  *time.Time
	outcome    *Outcome
	createdAt  time.Time
	finishedAt *time.Time

	stopTimer context.CancelFunc
	listeners map[chan Event]struct{}

	submitter Submitter
	recorder  AnswerRecorder
	notifier  notify.Publisher
	log       zerolog.Logger
}

// New creates a session in the loading state.
func New(opts Options) *Session {
	if opts.ID == uuid.Nil {
		opts.ID = uuid.New()
	}
	return &Session{
		id:        opts.ID,
		examID:    opts.ExamID,
		pin:       opts.Pin,
		policy:    opts.Policy,
		state:     StateLoading,
		createdAt: time.Now(),
		answers:   make(map[string]string),
		listeners: make(map[chan Event]struct{}),
		submitter: opts.Submitter,
		recorder:  opts.Recorder,
		notifier:  opts.Notifier,
		log: opts.Log.With().
			Str("component", "exam_session").
			Str("session_id", opts.ID.String()).
			Str("exam_id", opts.ExamID.String()).
			Logger(),
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// Topic is the notification topic for this session.
func (s *Session) Topic() string { return Topic(s.id) }

// Topic returns the notification topic of a session id.
func Topic(id uuid.UUID) string { return "session:" + id.String() }

// Load moves the session out of loading. A fetch error, a missing exam or an
// exam that cannot be taken leaves the session in the failed state.
func (s *Session) Load(exam *model.Exam, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoading {
		return fmt.Errorf("load: session is %s", s.state)
	}

	switch {
	case fetchErr != nil:
		s.loadErr = fmt.Errorf("fetch exam: %w", fetchErr)
	case exam == nil:
		s.loadErr = errors.New("exam not found")
	default:
		s.loadErr = exam.Usable()
	}
	if s.loadErr != nil {
		s.state = StateFailed
		s.finish()
		s.emitLocked(Event{Type: EventState, State: s.state})
		return s.loadErr
	}

	s.exam = exam
	s.timeLeft = exam.DurationSeconds()
	s.index = 0
	s.state = StateInProgress
	s.emitLocked(Event{Type: EventState, State: s.state})
	return nil
}

// Start runs the countdown until it expires, the session leaves in-progress
// or ctx is cancelled. It returns immediately if the session is not in
// progress.
func (s *Session) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.state != StateInProgress || s.stopTimer != nil {
		s.mu.Unlock()
		return
	}
	timerCtx, cancel := context.WithCancel(ctx)
	s.stopTimer = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-timerCtx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick advances the countdown by one second. When the remaining time
// reaches zero the timer stops and submission is forced once.
func (s *Session) Tick(ctx context.Context) {
	s.mu.Lock()
	if !s.activeLocked() || s.expired {
		s.mu.Unlock()
		return
	}
	s.timeLeft--
	left := s.timeLeft
	s.emitLocked(Event{Type: EventTick, TimeLeft: left})
	if left > 0 {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	s.expired = true
	s.expiredAt = &now
	s.cancelTimerLocked()
	s.mu.Unlock()

	s.log.Info().Msg("Time is up, forcing submission")
	if _, err := s.submit(ctx, model.SubmitReasonTimeout); err != nil {
		s.log.Warn().Err(err).Msg("Forced submission refused")
	}
}

// Close stops the timer and releases listeners. The session state is kept.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelTimerLocked()
	for ch := range s.listeners {
		close(ch)
		delete(s.listeners, ch)
	}
}

// Next moves to the following question, staying on the last one.
func (s *Session) Next() (int, error) { return s.move(func(i int) int { return i + 1 }) }

// Previous moves to the preceding question, staying on the first one.
func (s *Session) Previous() (int, error) { return s.move(func(i int) int { return i - 1 }) }

// Jump moves directly to index, clamped to the question range.
func (s *Session) Jump(index int) (int, error) { return s.move(func(int) int { return index }) }

func (s *Session) move(to func(int) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return s.index, ErrNotActive
	}
	s.index = clamp(to(s.index), 0, len(s.exam.Questions)-1)
	return s.index, nil
}

// SetAnswer records value for questionID, replacing any previous answer.
// An empty value clears the answer.
func (s *Session) SetAnswer(ctx context.Context, questionID, value string) error {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return ErrNotActive
	}
	if s.expired {
		s.mu.Unlock()
		return ErrTimeUp
	}
	if _, ok := s.exam.QuestionByID(questionID); !ok {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}
	if value == "" {
		delete(s.answers, questionID)
	} else {
		s.answers[questionID] = value
	}
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.RecordAnswer(ctx, s.id, questionID, value); err != nil {
			s.log.Warn().Err(err).Str("question_id", questionID).Msg("Autosave failed")
		}
	}
	return nil
}

// SetName stores the display name used on submission.
func (s *Session) SetName(name string) error {
	name, err := validateName(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return ErrNotActive
	}
	s.name = name
	return nil
}

// RequestSubmit opens the confirmation overlay.
func (s *Session) RequestSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrNotActive
	}
	s.state = StateConfirming
	s.emitLocked(Event{Type: EventState, State: s.state})
	return nil
}

// Cancel closes the confirmation overlay. Timer and answers are untouched.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfirming {
		return ErrNotConfirming
	}
	s.state = StateInProgress
	s.emitLocked(Event{Type: EventState, State: s.state})
	return nil
}

// Confirm submits from the confirmation overlay using name.
func (s *Session) Confirm(ctx context.Context, name string) (*Outcome, error) {
	valid, err := validateName(name)
	if err != nil {
		s.notify(notify.Notification{
			Title:       "Name required",
			Description: "Please enter your name before submitting the exam",
			Variant:     notify.VariantDestructive,
		})
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateConfirming {
		s.mu.Unlock()
		return nil, ErrNotConfirming
	}
	s.name = valid
	s.mu.Unlock()

	return s.submit(ctx, model.SubmitReasonStudent)
}

// Hidden applies the SubmitOnHidden rule. It reports whether a submission
// was attempted.
func (s *Session) Hidden(ctx context.Context) (bool, *Outcome, error) {
	s.mu.Lock()
	trigger := s.policy.SubmitOnHidden && s.activeLocked() && s.exam != nil && len(s.exam.Questions) > 0
	s.mu.Unlock()
	if !trigger {
		return false, nil, nil
	}

	s.log.Info().Msg("Student surface hidden, forcing submission")
	out, err := s.submit(ctx, model.SubmitReasonHidden)
	return true, out, err
}

// submit runs the submission precondition, scores once and hands the
// result to the Submitter.
func (s *Session) submit(ctx context.Context, reason model.SubmitReason) (*Outcome, error) {
	s.mu.Lock()
	if !s.activeLocked() {
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	if s.name == "" {
		s.mu.Unlock()
		s.notify(notify.Notification{
			Title:       "Name required",
			Description: "Please enter your name before submitting the exam",
			Variant:     notify.VariantDestructive,
		})
		return nil, ErrNameRequired
	}
	if len(s.answers) == 0 {
		s.mu.Unlock()
		s.notify(notify.Notification{
			Title:       "No answers",
			Description: "Please answer at least one question before submitting the exam",
			Variant:     notify.VariantDestructive,
		})
		return nil, ErrNoAnswers
	}

	s.state = StateSubmitting
	s.cancelTimerLocked()
	s.emitLocked(Event{Type: EventState, State: s.state})

	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	scored := scoring.Score(s.exam.Questions, answers)
	sub := Submission{
		SessionID:   s.id,
		ExamID:      s.examID,
		ExamTitle:   s.exam.Title,
		Pin:         s.pin,
		StudentName: s.name,
		Reason:      reason,
		Outcome:     scored,
	}
	s.mu.Unlock()

	var (
		resultID uuid.UUID
		err      error
	)
	if s.submitter == nil {
		err = errors.New("no submitter configured")
	} else {
		resultID, err = s.submitter.Submit(ctx, sub)
	}

	out := &Outcome{
		ResultID:        resultID,
		Persisted:       err == nil,
		Score:           scored.Score,
		TotalPoints:     scored.TotalPoints,
		Percentage:      scored.Percentage,
		Passed:          scored.Passed,
		Reason:          reason,
		RedirectAfterMS: s.policy.RedirectDelay.Milliseconds(),
	}

	s.mu.Lock()
	s.state = StateSubmitted
	s.outcome = out
	s.finish()
	s.emitLocked(Event{Type: EventSubmitted, State: s.state, Outcome: out})
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("reason", string(reason)).Msg("Result could not be saved")
		s.notify(notify.Notification{
			Title:       "Submission error",
			Description: fmt.Sprintf("Your score is %d/%d (%d%%) but the result could not be saved", out.Score, out.TotalPoints, out.Percentage),
			Variant:     notify.VariantDestructive,
		})
		return out, nil
	}

	s.log.Info().
		Int("score", out.Score).
		Int("total", out.TotalPoints).
		Str("reason", string(reason)).
		Msg("Exam submitted and scored")
	s.notify(notify.Notification{
		Title:       "Exam submitted",
		Description: fmt.Sprintf("Your score: %d/%d (%d%%)", out.Score, out.TotalPoints, out.Percentage),
	})
	return out, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:            s.id,
		ExamID:        s.examID,
		State:         s.state,
		CurrentIndex:  s.index,
		TimeLeft:      s.timeLeft,
		Expired:       s.expired,
		AnsweredCount: len(s.answers),
		Answers:       make(map[string]string, len(s.answers)),
		StudentName:   s.name,
		FinishedAt:    s.finishedAt,
	}
	for k, v := range s.answers {
		snap.Answers[k] = v
	}
	if s.exam != nil {
		snap.ExamTitle = s.exam.Title
		snap.QuestionCount = len(s.exam.Questions)
		if len(s.exam.Questions) > 0 {
			snap.CurrentQuestID = s.exam.Questions[s.index].ID
		}
	}
	if s.outcome != nil {
		out := *s.outcome
		snap.Outcome = &out
	}
	if s.loadErr != nil {
		snap.Error = s.loadErr.Error()
	}
	return snap
}

// idle reports since when the session has stopped progressing: the finish
// time, or the expiry time of a session whose forced submission was refused.
// A Confirm is still accepted on an expired session until it is swept.
func (s *Session) idle() (bool, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.finishedAt != nil:
		return true, *s.finishedAt
	case s.expiredAt != nil:
		return true, *s.expiredAt
	}
	return false, time.Time{}
}

func (s *Session) activeLocked() bool {
	return s.state == StateInProgress || s.state == StateConfirming
}

func (s *Session) cancelTimerLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
	}
}

func (s *Session) finish() {
	now := time.Now()
	s.finishedAt = &now
	s.cancelTimerLocked()
}

func (s *Session) notify(n notify.Notification) {
	if s.notifier != nil {
		s.notifier.Publish(s.Topic(), n)
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
