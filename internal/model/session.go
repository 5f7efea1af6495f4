package model

import (
	"time"

	"github.com/google/uuid"
)

// RedeemResponse is returned when a pin is accepted.
type RedeemResponse struct {
	ExamID       uuid.UUID `json:"exam_id"`
	ExamTitle    string    `json:"exam_title"`
	SessionID    uuid.UUID `json:"session_id"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
