package model

import (
	"fmt"
	"strings"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	QuestionTypeTrueFalse      QuestionType = "true-false"
	QuestionTypeShortAnswer    QuestionType = "short-answer"
	QuestionTypeEssay          QuestionType = "essay"
)

// HasOptions reports whether answers to this type are option ids.
func (t QuestionType) HasOptions() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeTrueFalse
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeShortAnswer, QuestionTypeEssay:
		return true
	}
	return false
}

// Question represents a single exam question. Options are present for
// choice and true/false types; CorrectAnswer for short-answer.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Text          string       `json:"text"`
	Points        int          `json:"points"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
}

// Option is one selectable answer of a choice question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID      string             `json:"id"`
	Type    QuestionType       `json:"type"`
	Text    string             `json:"text"`
	Points  int                `json:"points"`
	Options []OptionForStudent `json:"options,omitempty"`
}

// OptionForStudent hides the is_correct flag.
type OptionForStudent struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CreateQuestionRequest is one question inside CreateExamRequest.
type CreateQuestionRequest struct {
	ID            string                `json:"id" binding:"omitempty,max=64"`
	Type          string                `json:"type" binding:"required,oneof=multiple-choice true-false short-answer essay"`
	Text          string                `json:"text" binding:"required,notblank,max=2000"`
	Points        int                   `json:"points" binding:"required,min=1,max=1000"`
	Options       []CreateOptionRequest `json:"options" binding:"omitempty,dive"`
	CorrectAnswer string                `json:"correct_answer" binding:"max=500"`
}

// CreateOptionRequest is one option inside CreateQuestionRequest.
type CreateOptionRequest struct {
	ID        string `json:"id" binding:"omitempty,max=64"`
	Text      string `json:"text" binding:"required,min=1,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

// Usable checks that a question can be machine-scored (or is an essay).
func (q *Question) Usable() error {
	if !q.Type.Valid() {
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	if q.Points <= 0 {
		return fmt.Errorf("question %s: points must be positive", q.ID)
	}
	switch {
	case q.Type.HasOptions():
		seen := make(map[string]struct{}, len(q.Options))
		correct := 0
		for _, o := range q.Options {
			if _, dup := seen[o.ID]; dup {
				return fmt.Errorf("question %s: duplicate option id %q", q.ID, o.ID)
			}
			seen[o.ID] = struct{}{}
			if o.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			return fmt.Errorf("question %s: no option marked correct", q.ID)
		}
	case q.Type == QuestionTypeShortAnswer:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("question %s: correct answer is required", q.ID)
		}
	}
	return nil
}

// Usable reports whether a session can be taken against the exam.
func (e *Exam) Usable() error {
	if e.DurationMinutes <= 0 {
		return fmt.Errorf("exam %s: duration must be positive", e.ID)
	}
	if len(e.Questions) == 0 {
		return fmt.Errorf("exam %s: has no questions", e.ID)
	}
	seen := make(map[string]struct{}, len(e.Questions))
	for i := range e.Questions {
		q := &e.Questions[i]
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("exam %s: duplicate question id %q", e.ID, q.ID)
		}
		seen[q.ID] = struct{}{}
		if err := q.Usable(); err != nil {
			return err
		}
	}
	return nil
}

// QuestionByID looks up a question inside the exam.
func (e *Exam) QuestionByID(id string) (*Question, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], true
		}
	}
	return nil, false
}
