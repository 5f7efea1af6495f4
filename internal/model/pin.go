package model

import (
	"time"

	"github.com/google/uuid"
)

// PinStatus enumerates the lifecycle of an access pin.
type PinStatus string

const (
	PinStatusUnused PinStatus = "unused"
	PinStatusUsed   PinStatus = "used"
)

// Pin is a one-time access code binding a student session to an exam.
type Pin struct {
	ID        uuid.UUID  `json:"id"`
	Pin       string     `json:"pin"`
	ExamID    uuid.UUID  `json:"exam_id"`
	ExamTitle string     `json:"exam_title"`
	Status    PinStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// GeneratePinsRequest asks for a batch of pins for one exam.
type GeneratePinsRequest struct {
	Count int `json:"count" binding:"required,oneof=5 10 20 50 100 200 300 400 500 600"`
}

// RedeemPinRequest is submitted by a student on the login screen.
type RedeemPinRequest struct {
	Pin string `json:"pin" binding:"required,max=32"`
}
