package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/middleware"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/notify"
	"github.com/stemsi/exampin-backend/internal/service"
	"github.com/stemsi/exampin-backend/internal/session"
)

type stubRedeemer struct{ exam *model.Exam }

func (r stubRedeemer) Redeem(_ context.Context, raw string) (*model.Pin, error) {
	return &model.Pin{Pin: strings.ToUpper(raw), ExamID: r.exam.ID, ExamTitle: r.exam.Title, Status: model.PinStatusUsed}, nil
}

type stubLoader struct{ exam *model.Exam }

func (l stubLoader) LoadExam(context.Context, uuid.UUID) (*model.Exam, error) { return l.exam, nil }

type stubSubmitter struct{ id uuid.UUID }

func (s stubSubmitter) Submit(context.Context, session.Submission) (uuid.UUID, error) { return s.id, nil }

func streamExam() *model.Exam {
	return &model.Exam{
		ID:              uuid.New(),
		Title:           "Geography",
		DurationMinutes: 30,
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

func newStreamServer(t *testing.T) (*httptest.Server, *service.SessionService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	exam := streamExam()
	bus := notify.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mgr := session.NewManager(ctx, session.ManagerConfig{
		Loader:       stubLoader{exam: exam},
		Submitter:    stubSubmitter{id: uuid.New()},
		Notifier:     bus,
		Policy:       session.DefaultPolicy,
		TickInterval: time.Hour,
		Log:          zerolog.Nop(),
	})
	t.Cleanup(mgr.Shutdown)

	svc := service.NewSessionService(stubRedeemer{exam: exam}, mgr, nil, "test-secret", time.Hour, zerolog.Nop())
	h := NewWSHandler(svc, bus, zerolog.Nop(), nil)

	r := gin.New()
	r.GET("/ws", middleware.RequireSessionToken(svc), h.SessionStream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func dialStream(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

// expectEvent reads until an event of the given type arrives.
func expectEvent(t *testing.T, conn *websocket.Conn, event string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		m := readEvent(t, conn)
		if m["event"] == event {
			return m
		}
	}
	t.Fatalf("no %q event received", event)
	return nil
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSessionStream_FullAttempt(t *testing.T) {
	srv, svc := newStreamServer(t)
	redeemed, err := svc.Redeem(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	conn := dialStream(t, srv, redeemed.SessionToken)

	first := readEvent(t, conn)
	if first["event"] != "state" {
		t.Fatalf("first event = %v", first["event"])
	}
	data := first["data"].(map[string]any)
	if data["state"] != string(session.StateInProgress) || data["time_left"].(float64) != 1800 {
		t.Fatalf("initial snapshot = %v", data)
	}

	send(t, conn, map[string]any{"action": "ping"})
	expectEvent(t, conn, "pong")

	send(t, conn, map[string]any{"action": "answer", "q_id": "q1", "ans": "A"})
	state := expectEvent(t, conn, "state")
	if got := state["data"].(map[string]any)["answered_count"].(float64); got != 1 {
		t.Errorf("answered_count = %v, want 1", got)
	}

	send(t, conn, map[string]any{"action": "answer", "q_id": "nope", "ans": "A"})
	if e := expectEvent(t, conn, "error"); e["code"] != "UNKNOWN_QUESTION" {
		t.Errorf("error code = %v", e["code"])
	}

	send(t, conn, map[string]any{"action": "request_submit"})
	send(t, conn, map[string]any{"action": "confirm", "name": "Ada"})

	var submitted, notified map[string]any
	for submitted == nil || notified == nil {
		m := readEvent(t, conn)
		switch m["event"] {
		case "submitted":
			submitted = m
		case "notification":
			notified = m
		}
	}

	if submitted["score"].(float64) != 10 || submitted["total_points"].(float64) != 20 || submitted["percentage"].(float64) != 50 {
		t.Errorf("submitted = %v", submitted)
	}
	if submitted["passed"].(bool) {
		t.Error("50% must not pass")
	}
	if submitted["redirect_after_ms"].(float64) != 3000 {
		t.Errorf("redirect_after_ms = %v", submitted["redirect_after_ms"])
	}
	if n := notified["data"].(map[string]any); n["title"] != "Exam submitted" {
		t.Errorf("notification = %v", n)
	}
}

func TestSessionStream_ReconnectKeepsSession(t *testing.T) {
	srv, svc := newStreamServer(t)
	redeemed, err := svc.Redeem(context.Background(), "xyz789")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	conn := dialStream(t, srv, redeemed.SessionToken)
	readEvent(t, conn)
	send(t, conn, map[string]any{"action": "answer", "q_id": "q2", "ans": "pacific"})
	expectEvent(t, conn, "state")
	conn.Close()

	again := dialStream(t, srv, redeemed.SessionToken)
	data := readEvent(t, again)["data"].(map[string]any)
	if data["state"] != string(session.StateInProgress) {
		t.Errorf("state after reconnect = %v", data["state"])
	}
	if data["answers"].(map[string]any)["q2"] != "pacific" {
		t.Errorf("answers after reconnect = %v", data["answers"])
	}
}

func TestSessionStream_RejectsBadToken(t *testing.T) {
	srv, _ := newStreamServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded with an invalid token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Errorf("response = %v", resp)
	}
}
