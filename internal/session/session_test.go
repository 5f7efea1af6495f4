package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/notify"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []Submission
	id    uuid.UUID
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, sub Submission) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sub)
	return f.id, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Publish(_ string, n notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

func (f *fakeNotifier) last() notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return notify.Notification{}
	}
	return f.sent[len(f.sent)-1]
}

type fakeRecorder struct {
	saved map[string]string
}

func (f *fakeRecorder) RecordAnswer(_ context.Context, _ uuid.UUID, q, v string) error {
	f.saved[q] = v
	return nil
}

func testExam(minutes int) *model.Exam {
	return &model.Exam{
		ID:              uuid.New(),
		Title:           "Geography",
		DurationMinutes: minutes,
		Questions: []model.Question{
			{ID: "q1", Type: model.QuestionTypeMultipleChoice, Text: "Capital of France?", Points: 10, Options: []model.Option{
				{ID: "A", Text: "Paris", IsCorrect: true},
				{ID: "B", Text: "Rome"},
			}},
			{ID: "q2", Type: model.QuestionTypeShortAnswer, Text: "Largest ocean?", Points: 5, CorrectAnswer: "Pacific"},
			{ID: "q3", Type: model.QuestionTypeEssay, Text: "Describe a river.", Points: 5},
		},
	}
}

func newTestSession(t *testing.T, exam *model.Exam, policy Policy) (*Session, *fakeSubmitter, *fakeNotifier) {
	t.Helper()
	sub := &fakeSubmitter{id: uuid.New()}
	n := &fakeNotifier{}
	s := New(Options{
		ExamID:    exam.ID,
		Pin:       "ABC123",
		Policy:    policy,
		Submitter: sub,
		Notifier:  n,
		Log:       zerolog.Nop(),
	})
	if err := s.Load(exam, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, sub, n
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name string
		exam *model.Exam
		err  error
	}{
		{"fetch error", nil, errors.New("connection refused")},
		{"missing exam", nil, nil},
		{"no questions", &model.Exam{ID: uuid.New(), DurationMinutes: 10}, nil},
		{"zero duration", &model.Exam{ID: uuid.New(), Questions: testExam(1).Questions}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{Log: zerolog.Nop()})
			if err := s.Load(tt.exam, tt.err); err == nil {
				t.Fatal("expected load error")
			}
			snap := s.Snapshot()
			if snap.State != StateFailed {
				t.Errorf("state = %s, want %s", snap.State, StateFailed)
			}
			if snap.Error == "" {
				t.Error("expected error message in snapshot")
			}
			if _, err := s.Next(); !errors.Is(err, ErrNotActive) {
				t.Errorf("Next on failed session: got %v", err)
			}
		})
	}
}

func TestLoad_SetsTimer(t *testing.T) {
	s, _, _ := newTestSession(t, testExam(2), DefaultPolicy)
	snap := s.Snapshot()
	if snap.State != StateInProgress {
		t.Fatalf("state = %s", snap.State)
	}
	if snap.TimeLeft != 120 {
		t.Errorf("time left = %d, want 120", snap.TimeLeft)
	}
	if snap.CurrentIndex != 0 || snap.CurrentQuestID != "q1" {
		t.Errorf("current = %d/%s", snap.CurrentIndex, snap.CurrentQuestID)
	}
}

func TestNavigation_Clamps(t *testing.T) {
	s, _, _ := newTestSession(t, testExam(5), DefaultPolicy)

	if i, _ := s.Previous(); i != 0 {
		t.Errorf("Previous at first = %d", i)
	}
	s.Next()
	s.Next()
	if i, _ := s.Next(); i != 2 {
		t.Errorf("Next past last = %d", i)
	}
	if i, _ := s.Jump(1); i != 1 {
		t.Errorf("Jump(1) = %d", i)
	}
	if i, _ := s.Jump(99); i != 2 {
		t.Errorf("Jump(99) = %d", i)
	}
	if i, _ := s.Jump(-3); i != 0 {
		t.Errorf("Jump(-3) = %d", i)
	}
}

func TestSetAnswer(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, testExam(5), DefaultPolicy)
	rec := &fakeRecorder{saved: map[string]string{}}
	s.recorder = rec

	if err := s.SetAnswer(ctx, "q1", "B"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnswer(ctx, "q1", "A"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnswer(ctx, "nope", "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("unknown question: got %v", err)
	}

	snap := s.Snapshot()
	if snap.Answers["q1"] != "A" || snap.AnsweredCount != 1 {
		t.Errorf("answers = %v", snap.Answers)
	}
	if rec.saved["q1"] != "A" {
		t.Errorf("recorder saw %v", rec.saved)
	}

	if err := s.SetAnswer(ctx, "q1", ""); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().AnsweredCount; got != 0 {
		t.Errorf("answered after clear = %d", got)
	}
}

func TestSubmit_RefusedWithoutNameOrAnswers(t *testing.T) {
	ctx := context.Background()
	s, sub, n := newTestSession(t, testExam(5), DefaultPolicy)

	s.RequestSubmit()
	if _, err := s.Confirm(ctx, "   "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("blank name: got %v", err)
	}
	if n.last().Variant != notify.VariantDestructive {
		t.Errorf("expected destructive notification, got %+v", n.last())
	}

	if _, err := s.Confirm(ctx, "Ann"); !errors.Is(err, ErrNoAnswers) {
		t.Fatalf("no answers: got %v", err)
	}
	if got := s.Snapshot().State; got != StateConfirming {
		t.Errorf("state after refusal = %s", got)
	}
	if sub.count() != 0 {
		t.Errorf("submitter called %d times", sub.count())
	}

	if _, err := s.Confirm(ctx, strings.Repeat("x", MaxNameLength+1)); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("long name: got %v", err)
	}
}

func TestSubmit_ScoresOnce(t *testing.T) {
	ctx := context.Background()
	s, sub, n := newTestSession(t, testExam(5), DefaultPolicy)

	s.SetAnswer(ctx, "q1", "A")
	s.SetAnswer(ctx, "q2", "  pacific ")
	s.SetAnswer(ctx, "q3", "It flows.")
	if err := s.RequestSubmit(); err != nil {
		t.Fatal(err)
	}
	out, err := s.Confirm(ctx, "  Ann Lee ")
	if err != nil {
		t.Fatal(err)
	}

	if out.Score != 15 || out.TotalPoints != 20 || out.Percentage != 75 || !out.Passed {
		t.Errorf("outcome = %+v", out)
	}
	if !out.Persisted || out.ResultID != sub.id {
		t.Errorf("persisted=%v id=%s", out.Persisted, out.ResultID)
	}
	if out.RedirectAfterMS != 3000 {
		t.Errorf("redirect = %d", out.RedirectAfterMS)
	}
	if sub.count() != 1 {
		t.Fatalf("submitter called %d times", sub.count())
	}
	if got := sub.calls[0]; got.StudentName != "Ann Lee" || got.Pin != "ABC123" || got.Reason != model.SubmitReasonStudent {
		t.Errorf("submission = %+v", got)
	}
	if n.last().Title != "Exam submitted" {
		t.Errorf("notification = %+v", n.last())
	}

	if _, err := s.Confirm(ctx, "Ann"); !errors.Is(err, ErrNotConfirming) {
		t.Errorf("second confirm: got %v", err)
	}
	if err := s.SetAnswer(ctx, "q1", "B"); !errors.Is(err, ErrNotActive) {
		t.Errorf("answer after submit: got %v", err)
	}
	if sub.count() != 1 {
		t.Errorf("submitter called %d times", sub.count())
	}
}

func TestSubmit_PersistFailureStillReportsScore(t *testing.T) {
	ctx := context.Background()
	s, sub, n := newTestSession(t, testExam(5), DefaultPolicy)
	sub.err = errors.New("redis down")

	s.SetAnswer(ctx, "q1", "A")
	s.RequestSubmit()
	out, err := s.Confirm(ctx, "Ann")
	if err != nil {
		t.Fatal(err)
	}
	if out.Persisted {
		t.Error("expected persisted=false")
	}
	if out.Score != 10 {
		t.Errorf("score = %d", out.Score)
	}
	if s.Snapshot().State != StateSubmitted {
		t.Errorf("state = %s", s.Snapshot().State)
	}
	if n.last().Variant != notify.VariantDestructive {
		t.Errorf("notification = %+v", n.last())
	}
}

func TestCancel_KeepsTimerAndAnswers(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, testExam(1), DefaultPolicy)
	s.SetAnswer(ctx, "q1", "A")
	s.RequestSubmit()
	s.Tick(ctx)
	if err := s.Cancel(); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.State != StateInProgress || snap.TimeLeft != 59 || snap.Answers["q1"] != "A" {
		t.Errorf("snapshot = %+v", snap)
	}
	if err := s.Cancel(); !errors.Is(err, ErrNotConfirming) {
		t.Errorf("second cancel: got %v", err)
	}
}

func TestTimeout_ForcesSubmissionOnce(t *testing.T) {
	ctx := context.Background()
	s, sub, _ := newTestSession(t, testExam(1), DefaultPolicy)
	s.SetName("Ann")
	s.SetAnswer(ctx, "q1", "B")

	for i := 0; i < 75; i++ {
		s.Tick(ctx)
	}

	if sub.count() != 1 {
		t.Fatalf("submitter called %d times", sub.count())
	}
	if got := sub.calls[0].Reason; got != model.SubmitReasonTimeout {
		t.Errorf("reason = %s", got)
	}
	snap := s.Snapshot()
	if snap.TimeLeft != 0 || !snap.Expired || snap.State != StateSubmitted {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestTimeout_RefusedLeavesSessionOpen(t *testing.T) {
	ctx := context.Background()
	s, sub, n := newTestSession(t, testExam(1), DefaultPolicy)
	s.SetAnswer(ctx, "q1", "A")

	for i := 0; i < 60; i++ {
		s.Tick(ctx)
	}
	if sub.count() != 0 {
		t.Fatalf("submitter called without a name")
	}
	if n.last().Title != "Name required" {
		t.Errorf("notification = %+v", n.last())
	}
	if err := s.SetAnswer(ctx, "q2", "Pacific"); !errors.Is(err, ErrTimeUp) {
		t.Errorf("answer after expiry: got %v", err)
	}

	s.Tick(ctx)
	if sub.count() != 0 {
		t.Errorf("forced submission retried")
	}

	s.RequestSubmit()
	out, err := s.Confirm(ctx, "Ann")
	if err != nil {
		t.Fatal(err)
	}
	if out.Score != 10 || sub.count() != 1 {
		t.Errorf("outcome = %+v calls = %d", out, sub.count())
	}
}

func TestHidden(t *testing.T) {
	ctx := context.Background()

	t.Run("submits when enabled", func(t *testing.T) {
		s, sub, _ := newTestSession(t, testExam(5), DefaultPolicy)
		s.SetName("Ann")
		s.SetAnswer(ctx, "q1", "A")
		tried, out, err := s.Hidden(ctx)
		if !tried || err != nil || out == nil {
			t.Fatalf("tried=%v out=%v err=%v", tried, out, err)
		}
		if sub.calls[0].Reason != model.SubmitReasonHidden {
			t.Errorf("reason = %s", sub.calls[0].Reason)
		}
	})

	t.Run("ignored when disabled", func(t *testing.T) {
		s, sub, _ := newTestSession(t, testExam(5), Policy{SubmitOnHidden: false})
		s.SetName("Ann")
		s.SetAnswer(ctx, "q1", "A")
		tried, _, _ := s.Hidden(ctx)
		if tried || sub.count() != 0 {
			t.Errorf("tried=%v calls=%d", tried, sub.count())
		}
	})

	t.Run("refused without answers", func(t *testing.T) {
		s, sub, _ := newTestSession(t, testExam(5), DefaultPolicy)
		s.SetName("Ann")
		tried, _, err := s.Hidden(ctx)
		if !tried || !errors.Is(err, ErrNoAnswers) || sub.count() != 0 {
			t.Errorf("tried=%v err=%v calls=%d", tried, err, sub.count())
		}
		if s.Snapshot().State != StateInProgress {
			t.Errorf("state = %s", s.Snapshot().State)
		}
	})
}

func TestListen_ReceivesEvents(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, testExam(1), DefaultPolicy)
	events, stop := s.Listen()
	defer stop()

	s.Tick(ctx)
	select {
	case ev := <-events:
		if ev.Type != EventTick || ev.TimeLeft != 59 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no tick event")
	}
}

type stubLoader struct {
	exam *model.Exam
	err  error
}

func (l stubLoader) LoadExam(context.Context, uuid.UUID) (*model.Exam, error) {
	return l.exam, l.err
}

func TestManager_OpenGetSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exam := testExam(5)
	sub := &fakeSubmitter{id: uuid.New()}
	m := NewManager(ctx, ManagerConfig{
		Loader:       stubLoader{exam: exam},
		Submitter:    sub,
		Policy:       DefaultPolicy,
		TickInterval: time.Hour,
		Log:          zerolog.Nop(),
	})

	s, err := m.Open(ctx, uuid.New(), exam.ID, "ABC123")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := m.Get(s.ID()); err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}

	failed, err := m.Open(ctx, uuid.New(), uuid.New(), "ZZZ999")
	if err != nil {
		t.Fatal(err)
	}
	_ = failed

	m2 := NewManager(ctx, ManagerConfig{Loader: stubLoader{err: errors.New("boom")}, Log: zerolog.Nop()})
	bad, err := m2.Open(ctx, uuid.New(), uuid.New(), "ZZZ999")
	if err == nil || bad.Snapshot().State != StateFailed {
		t.Fatalf("expected failed session, err=%v", err)
	}

	if n := m.Sweep(time.Now(), time.Minute); n != 0 {
		t.Errorf("swept %d live sessions", n)
	}

	s.SetName("Ann")
	s.SetAnswer(ctx, "q1", "A")
	s.RequestSubmit()
	if _, err := s.Confirm(ctx, "Ann"); err != nil {
		t.Fatal(err)
	}
	if n := m.Sweep(time.Now().Add(2*time.Minute), time.Minute); n != 1 {
		t.Errorf("swept %d, want 1", n)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after sweep: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("count = %d", m.Count())
	}

	// Time runs out before a name is entered: the forced submission is
	// refused, and the session is swept once retention has passed.
	short := testExam(1)
	m3 := NewManager(ctx, ManagerConfig{
		Loader:       stubLoader{exam: short},
		Submitter:    sub,
		Policy:       DefaultPolicy,
		TickInterval: time.Hour,
		Log:          zerolog.Nop(),
	})
	abandoned, err := m3.Open(ctx, uuid.New(), short.ID, "EXP001")
	if err != nil {
		t.Fatal(err)
	}
	abandoned.SetAnswer(ctx, "q1", "A")
	for i := 0; i < short.DurationSeconds(); i++ {
		abandoned.Tick(ctx)
	}
	if snap := abandoned.Snapshot(); !snap.Expired || snap.State != StateInProgress {
		t.Fatalf("state = %s expired = %v", snap.State, snap.Expired)
	}
	if n := m3.Sweep(time.Now(), time.Minute); n != 0 {
		t.Errorf("swept expired session inside retention: %d", n)
	}
	if n := m3.Sweep(time.Now().Add(2*time.Minute), time.Minute); n != 1 {
		t.Errorf("swept %d expired sessions, want 1", n)
	}
	if m3.Count() != 0 {
		t.Errorf("count after expiry sweep = %d", m3.Count())
	}

	// A session that never finishes nor expires is dropped after MaxAge.
	m4 := NewManager(ctx, ManagerConfig{
		Loader:       stubLoader{exam: exam},
		Submitter:    sub,
		Policy:       DefaultPolicy,
		TickInterval: time.Hour,
		MaxAge:       time.Hour,
		Log:          zerolog.Nop(),
	})
	if _, err := m4.Open(ctx, uuid.New(), exam.ID, "OLD001"); err != nil {
		t.Fatal(err)
	}
	if n := m4.Sweep(time.Now().Add(30*time.Minute), time.Minute); n != 0 {
		t.Errorf("swept young session: %d", n)
	}
	if n := m4.Sweep(time.Now().Add(2*time.Hour), time.Minute); n != 1 {
		t.Errorf("swept %d aged sessions, want 1", n)
	}
}
