package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Exam is a named, timed collection of questions.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Subject         string     `json:"subject"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	IsPublished     bool       `json:"is_published"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ExamSummary is the list view of an exam (questions omitted).
type ExamSummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Subject         string    `json:"subject"`
	DurationMinutes int       `json:"duration_minutes"`
	IsPublished     bool      `json:"is_published"`
	QuestionCount   int       `json:"question_count"`
	TotalPoints     int       `json:"total_points"`
	CreatedAt       time.Time `json:"created_at"`
}

// DurationSeconds returns the time allowed for one session.
func (e *Exam) DurationSeconds() int {
	return e.DurationMinutes * 60
}

// Summary projects the exam into its list view.
func (e *Exam) Summary() ExamSummary {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	return ExamSummary{
		ID:              e.ID,
		Title:           e.Title,
		Subject:         e.Subject,
		DurationMinutes: e.DurationMinutes,
		IsPublished:     e.IsPublished,
		QuestionCount:   len(e.Questions),
		TotalPoints:     total,
		CreatedAt:       e.CreatedAt,
	}
}

// Paper strips correct answers so the exam can be handed to a student.
func (e *Exam) Paper() ExamPaper {
	questions := make([]QuestionForStudent, 0, len(e.Questions))
	for _, q := range e.Questions {
		opts := make([]OptionForStudent, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, OptionForStudent{ID: o.ID, Text: o.Text})
		}
		questions = append(questions, QuestionForStudent{
			ID:      q.ID,
			Type:    q.Type,
			Text:    q.Text,
			Points:  q.Points,
			Options: opts,
		})
	}
	return ExamPaper{
		ExamID:          e.ID,
		Title:           e.Title,
		Subject:         e.Subject,
		DurationMinutes: e.DurationMinutes,
		Questions:       questions,
	}
}

// ExamPaper is the Redis-cached payload sent to students (no correct answers).
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Subject         string               `json:"subject"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForStudent `json:"questions"`
}

// CreateExamRequest is the payload for authoring a new exam.
type CreateExamRequest struct {
	Title           string                  `json:"title" binding:"required,notblank,min=3,max=255"`
	Subject         string                  `json:"subject" binding:"required,notblank,max=255"`
	Description     string                  `json:"description" binding:"max=2000"`
	DurationMinutes int                     `json:"duration_minutes" binding:"required,min=1,max=480"`
	IsPublished     bool                    `json:"is_published"`
	Questions       []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}

// ToExam converts the request into an Exam. Missing question and option ids
// are generated. A true-false question without options gets "true" and
// "false" options, the correct one taken from CorrectAnswer.
func (r *CreateExamRequest) ToExam() *Exam {
	e := &Exam{
		Title:           strings.TrimSpace(r.Title),
		Subject:         strings.TrimSpace(r.Subject),
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		IsPublished:     r.IsPublished,
		Questions:       make([]Question, 0, len(r.Questions)),
	}
	for _, qr := range r.Questions {
		q := Question{
			ID:            qr.ID,
			Type:          QuestionType(qr.Type),
			Text:          strings.TrimSpace(qr.Text),
			Points:        qr.Points,
			CorrectAnswer: strings.TrimSpace(qr.CorrectAnswer),
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		for _, opt := range qr.Options {
			id := opt.ID
			if id == "" {
				id = uuid.NewString()
			}
			q.Options = append(q.Options, Option{ID: id, Text: opt.Text, IsCorrect: opt.IsCorrect})
		}
		if q.Type == QuestionTypeTrueFalse && len(q.Options) == 0 {
			answer := strings.ToLower(q.CorrectAnswer)
			q.Options = []Option{
				{ID: "true", Text: "True", IsCorrect: answer == "true"},
				{ID: "false", Text: "False", IsCorrect: answer == "false"},
			}
		}
		if q.Type.HasOptions() {
			q.CorrectAnswer = ""
		}
		e.Questions = append(e.Questions, q)
	}
	return e
}
