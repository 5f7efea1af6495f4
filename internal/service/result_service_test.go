package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/repository"
	"github.com/stemsi/exampin-backend/internal/scoring"
	"github.com/stemsi/exampin-backend/internal/session"
)

func submission(name, title string, score int) session.Submission {
	return session.Submission{
		SessionID:   uuid.New(),
		ExamID:      uuid.New(),
		ExamTitle:   title,
		Pin:         "ABC123",
		StudentName: name,
		Reason:      model.SubmitReasonStudent,
		Outcome: scoring.Outcome{
			Score:       score,
			TotalPoints: 10,
			Percentage:  score * 10,
			Passed:      score*10 >= scoring.PassThreshold,
		},
	}
}

func TestResultService_SubmitAndGet(t *testing.T) {
	ctx := context.Background()
	store := newFakeResultStore()
	svc := NewResultService(store, nil, nil, zerolog.Nop())

	id, err := svc.Submit(ctx, submission("Ann", "Geography", 8))
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if res.StudentName != "Ann" || res.Score != 8 || res.Percentage != 80 || !res.Passed || res.Pin != "ABC123" {
		t.Errorf("result = %+v", res)
	}

	if _, err := svc.Get(ctx, uuid.New()); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("missing result: got %v", err)
	}
}

func TestResultService_SubmitStoreFailure(t *testing.T) {
	store := newFakeResultStore()
	store.err = errors.New("connection reset")
	svc := NewResultService(store, nil, nil, zerolog.Nop())

	if _, err := svc.Submit(context.Background(), submission("Ann", "Geography", 8)); err == nil {
		t.Fatal("expected error")
	}
}

func TestResultService_ListSearch(t *testing.T) {
	ctx := context.Background()
	svc := NewResultService(newFakeResultStore(), nil, nil, zerolog.Nop())

	for _, s := range []session.Submission{
		submission("Ann Lee", "Geography", 8),
		submission("Bob", "History", 5),
		submission("Anna", "History", 9),
	} {
		if _, err := svc.Submit(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		search string
		want   int
	}{
		{"", 3},
		{"ann", 2},
		{"HISTORY", 2},
		{"geo", 1},
		{"zzz", 0},
	}
	for _, tt := range tests {
		results, page, err := svc.List(ctx, repository.ResultFilter{Search: tt.search}, 1, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != tt.want || page.TotalItems != tt.want {
			t.Errorf("search %q: got %d results", tt.search, len(results))
		}
	}
}
