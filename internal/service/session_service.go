package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/session"
)

// SessionClaims is the payload of the token handed out on redemption.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID uuid.UUID `json:"sid"`
	ExamID    uuid.UUID `json:"eid"`
	Pin       string    `json:"pin"`
}

// Redeemer consumes a pin.
type Redeemer interface {
	Redeem(ctx context.Context, raw string) (*model.Pin, error)
}

// SessionRegistry opens and finds live exam sessions.
type SessionRegistry interface {
	Open(ctx context.Context, id, examID uuid.UUID, pin string) (*session.Session, error)
	Get(id uuid.UUID) (*session.Session, error)
}

// SessionService turns a redeemed pin into a live exam session and issues
// the token that addresses it.
type SessionService struct {
	pins     Redeemer
	registry SessionRegistry
	monitor  *MonitorService
	secret   []byte
	expiry   time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	pins Redeemer,
	registry SessionRegistry,
	monitor *MonitorService,
	secret string,
	expiry time.Duration,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		pins:     pins,
		registry: registry,
		monitor:  monitor,
		secret:   []byte(secret),
		expiry:   expiry,
		now:      time.Now,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// Redeem consumes the pin, starts a session on its exam and returns the
// session token.
func (s *SessionService) Redeem(ctx context.Context, raw string) (*model.RedeemResponse, error) {
	p, err := s.pins.Redeem(ctx, raw)
	if err != nil {
		return nil, err
	}

	sess, err := s.registry.Open(ctx, uuid.New(), p.ExamID, p.Pin)
	if err != nil {
		s.log.Error().Err(err).Str("pin", p.Pin).Str("exam_id", p.ExamID.String()).Msg("Session failed to start")
		return nil, fmt.Errorf("%w: %v", ErrSessionFailed, err)
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)
	token, err := s.issueToken(sess.ID(), p.ExamID, p.Pin, now, expiresAt)
	if err != nil {
		return nil, err
	}

	s.monitor.Publish(ctx, MonitorEvent{
		Type:      MonitorEventPinRedeemed,
		ExamID:    p.ExamID,
		SessionID: sess.ID(),
		Pin:       p.Pin,
	})

	return &model.RedeemResponse{
		ExamID:       p.ExamID,
		ExamTitle:    p.ExamTitle,
		SessionID:    sess.ID(),
		SessionToken: token,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *SessionService) issueToken(sessionID, examID uuid.UUID, pin string, now, expiresAt time.Time) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		ExamID:    examID,
		Pin:       pin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a session token, returning the claims.
func (s *SessionService) ValidateToken(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Session returns the live session addressed by claims.
func (s *SessionService) Session(claims *SessionClaims) (*session.Session, error) {
	sess, err := s.registry.Get(claims.SessionID)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// IsTokenExpired reports whether err came from an expired token.
func IsTokenExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
