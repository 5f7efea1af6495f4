// Package scoring computes exam scores from a set of questions and the
// answers captured during a session. Scoring is pure: identical inputs
// always produce identical outcomes.
package scoring

import (
	"math"
	"strings"

	"github.com/stemsi/exampin-backend/internal/model"
)

// PassThreshold is the minimum percentage required to pass an exam.
const PassThreshold = 70

// Reason explains how a single question was scored.
type Reason string

const (
	ReasonCorrect    Reason = "correct"
	ReasonWrong      Reason = "wrong"
	ReasonUnanswered Reason = "unanswered"
	ReasonManual     Reason = "manual_grading"
)

// QuestionScore is the per-question breakdown of an Outcome.
type QuestionScore struct {
	QuestionID string `json:"question_id"`
	Earned     int    `json:"earned"`
	Max        int    `json:"max"`
	Reason     Reason `json:"reason"`
}

// Outcome is the result of scoring one session.
type Outcome struct {
	Score       int             `json:"score"`
	TotalPoints int             `json:"total_points"`
	Percentage  int             `json:"percentage"`
	Passed      bool            `json:"passed"`
	Breakdown   []QuestionScore `json:"breakdown"`
}

// Score grades answers (question id → submitted value) against questions.
// Every question counts toward TotalPoints, essays included.
func Score(questions []model.Question, answers map[string]string) Outcome {
	out := Outcome{Breakdown: make([]QuestionScore, 0, len(questions))}

	for i := range questions {
		q := &questions[i]
		qs := scoreQuestion(q, answers[q.ID])
		out.TotalPoints += q.Points
		out.Score += qs.Earned
		out.Breakdown = append(out.Breakdown, qs)
	}

	out.Percentage = Percentage(out.Score, out.TotalPoints)
	out.Passed = out.Percentage >= PassThreshold
	return out
}

// Percentage returns round(score / total * 100), or 0 when total is 0.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

func scoreQuestion(q *model.Question, answer string) QuestionScore {
	qs := QuestionScore{QuestionID: q.ID, Max: q.Points}

	if q.Type == model.QuestionTypeEssay {
		qs.Reason = ReasonManual
		return qs
	}
	if answer == "" {
		qs.Reason = ReasonUnanswered
		return qs
	}

	var correct bool
	switch {
	case q.Type.HasOptions():
		correct = optionIsCorrect(q.Options, answer)
	case q.Type == model.QuestionTypeShortAnswer:
		correct = q.CorrectAnswer != "" && normalize(answer) == normalize(q.CorrectAnswer)
	}

	if correct {
		qs.Earned = q.Points
		qs.Reason = ReasonCorrect
	} else {
		qs.Reason = ReasonWrong
	}
	return qs
}

// optionIsCorrect awards the question when the selected option is one of
// the options flagged correct.
func optionIsCorrect(options []model.Option, selectedID string) bool {
	for _, o := range options {
		if o.ID == selectedID {
			return o.IsCorrect
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
