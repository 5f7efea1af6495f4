package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/middleware"
	"github.com/stemsi/exampin-backend/internal/notify"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/service"
	"github.com/stemsi/exampin-backend/internal/session"
	ws "github.com/stemsi/exampin-backend/internal/websocket"
)

var errUnknownAction = errors.New("unknown action")

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Subscriber attaches to a notification topic.
type Subscriber interface {
	Subscribe(topic string) *notify.Subscription
}

// WSHandler streams a live exam session to the student.
type WSHandler struct {
	sessionService *service.SessionService
	notifications  Subscriber
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, notifications Subscriber, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		notifications:  notifications,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/session/stream?token=...
// Upgrades to WebSocket. The client sends actions, the server pushes state
// changes, timer ticks, notifications and the final score. Closing the
// connection leaves the session and its timer running.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sess, err := h.sessionService.Session(claims)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", sess.ID().String()).
		Str("exam_id", claims.ExamID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// Actions run to completion even if the socket drops mid-submission.
	actionCtx := context.WithoutCancel(c.Request.Context())
	streamCtx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, stopEvents := sess.Listen()
	defer stopEvents()
	sub := h.notifications.Subscribe(sess.Topic())
	defer sub.Unsubscribe()

	replies := make(chan interface{}, 8)
	replies <- ws.StateResponse{Event: ws.EventState, Data: sess.Snapshot()}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// The writer owns every write to conn; on failure it closes the
		// socket so the read loop below returns.
		defer conn.Close()
		for {
			var msg interface{}
			select {
			case <-streamCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				msg = eventMessage(sess, ev)
			case n, ok := <-sub.C():
				if !ok {
					return
				}
				msg = ws.NotificationResponse{Event: ws.EventNotification, Data: n}
			case msg = <-replies:
			}
			if err := ws.WriteTyped(conn, msg); err != nil {
				wsLog.Debug().Err(err).Msg("Write failed")
				return
			}
		}
	}()

	for {
		var req ws.RequestPayload
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply := h.dispatch(actionCtx, sess, &req)
		if reply == nil {
			continue
		}
		select {
		case replies <- reply:
		case <-writerDone:
		}
	}

	cancel()
	<-writerDone
	wsLog.Info().Msg("Student disconnected")
}

// dispatch applies one client action. Actions whose effect is already
// pushed through the session listener return nil.
func (h *WSHandler) dispatch(ctx context.Context, sess *session.Session, req *ws.RequestPayload) interface{} {
	var err error
	switch req.Action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}

	case ws.ActionAnswer:
		if req.QID == "" {
			return ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrValidation), Error: "q_id is required"}
		}
		err = sess.SetAnswer(ctx, req.QID, req.Answer)

	case ws.ActionNavigate:
		switch req.To {
		case ws.NavigateNext:
			_, err = sess.Next()
		case ws.NavigatePrevious:
			_, err = sess.Previous()
		case ws.NavigateJump:
			if req.Index == nil {
				return ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrValidation), Error: "index is required for jump"}
			}
			_, err = sess.Jump(*req.Index)
		default:
			return ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrValidation), Error: "to must be next, previous or jump"}
		}

	case ws.ActionName:
		err = sess.SetName(req.Name)

	case ws.ActionVisibility:
		if !req.Hidden {
			return nil
		}
		if _, _, err = sess.Hidden(ctx); err == nil {
			return nil
		}

	case ws.ActionRequestSubmit:
		if err = sess.RequestSubmit(); err == nil {
			return nil
		}

	case ws.ActionCancel:
		if err = sess.Cancel(); err == nil {
			return nil
		}

	case ws.ActionConfirm:
		if _, err = sess.Confirm(ctx, req.Name); err == nil {
			return nil
		}

	default:
		err = errUnknownAction
	}

	if err != nil {
		return actionError(err)
	}
	return ws.StateResponse{Event: ws.EventState, Data: sess.Snapshot()}
}

func eventMessage(sess *session.Session, ev session.Event) interface{} {
	switch ev.Type {
	case session.EventTick:
		return ws.TickResponse{Event: ws.EventTick, TimeLeft: ev.TimeLeft}
	case session.EventSubmitted:
		if ev.Outcome != nil {
			return ws.Submitted(ev.Outcome)
		}
	}
	return ws.StateResponse{Event: ws.EventState, Data: sess.Snapshot()}
}

func actionError(err error) ws.ErrorResponse {
	if errors.Is(err, errUnknownAction) {
		return ws.ErrorResponse{Event: ws.EventError, Code: string(response.ErrInvalidPayload), Error: err.Error()}
	}
	_, code := classify(err)
	return ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)}
}
