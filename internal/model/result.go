package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitReason records what triggered a submission.
type SubmitReason string

const (
	SubmitReasonStudent SubmitReason = "student"
	SubmitReasonTimeout SubmitReason = "timeout"
	SubmitReasonHidden  SubmitReason = "hidden"
)

// Result is the persisted outcome of one completed exam session.
type Result struct {
	ID           uuid.UUID    `json:"id"`
	SessionID    uuid.UUID    `json:"session_id"`
	StudentName  string       `json:"student_name"`
	Pin          string       `json:"pin"`
	ExamID       uuid.UUID    `json:"exam_id"`
	ExamTitle    string       `json:"exam_title"`
	Score        int          `json:"score"`
	TotalPoints  int          `json:"total_points"`
	Percentage   int          `json:"percentage"`
	Passed       bool         `json:"passed"`
	SubmitReason SubmitReason `json:"submit_reason"`
	CreatedAt    time.Time    `json:"created_at"`
}
