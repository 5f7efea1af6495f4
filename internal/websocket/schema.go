package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/exampin-backend/internal/notify"
	"github.com/stemsi/exampin-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer        Action = "answer"
	ActionNavigate      Action = "navigate"
	ActionVisibility    Action = "visibility"
	ActionName          Action = "name"
	ActionRequestSubmit Action = "request_submit"
	ActionConfirm       Action = "confirm"
	ActionCancel        Action = "cancel"
	ActionPing          Action = "ping"
)

// Navigation targets of ActionNavigate.
const (
	NavigateNext     = "next"
	NavigatePrevious = "previous"
	NavigateJump     = "jump"
)

// RequestPayload carries every client action; fields unused by an action
// are ignored.
type RequestPayload struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
	To     string `json:"to,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState        Event = "state"
	EventTick         Event = "tick"
	EventNotification Event = "notification"
	EventSubmitted    Event = "submitted"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// StateResponse carries a full session snapshot.
type StateResponse struct {
	Event Event            `json:"event"`
	Data  session.Snapshot `json:"data"`
}

// TickResponse carries the remaining seconds.
type TickResponse struct {
	Event    Event `json:"event"`
	TimeLeft int   `json:"time_left"`
}

// NotificationResponse forwards one notification.
type NotificationResponse struct {
	Event Event               `json:"event"`
	Data  notify.Notification `json:"data"`
}

// SubmittedResponse tells the client its score and when to show the result.
type SubmittedResponse struct {
	Event           Event     `json:"event"`
	ResultID        uuid.UUID `json:"result_id"`
	Persisted       bool      `json:"persisted"`
	Score           int       `json:"score"`
	TotalPoints     int       `json:"total_points"`
	Percentage      int       `json:"percentage"`
	Passed          bool      `json:"passed"`
	RedirectAfterMS int64     `json:"redirect_after_ms"`
}

// ErrorResponse reports a rejected action.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// Submitted builds the submitted event from a session outcome.
func Submitted(out *session.Outcome) SubmittedResponse {
	return SubmittedResponse{
		Event:           EventSubmitted,
		ResultID:        out.ResultID,
		Persisted:       out.Persisted,
		Score:           out.Score,
		TotalPoints:     out.TotalPoints,
		Percentage:      out.Percentage,
		Passed:          out.Passed,
		RedirectAfterMS: out.RedirectAfterMS,
	}
}
