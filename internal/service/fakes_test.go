package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/repository"
)

type fakeExamStore struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
	order []uuid.UUID
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{exams: make(map[uuid.UUID]*model.Exam)}
}

func (f *fakeExamStore) Create(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now().Add(time.Duration(len(f.order)) * time.Second)
	e.UpdatedAt = e.CreatedAt
	cp := *e
	f.exams[e.ID] = &cp
	f.order = append(f.order, e.ID)
	return nil
}

func (f *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExamStore) ListPaginated(_ context.Context, limit, offset int) ([]model.Exam, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Exam
	for i := len(f.order) - 1; i >= 0; i-- {
		all = append(all, *f.exams[f.order[i]])
	}
	total := len(all)
	if offset >= total {
		return []model.Exam{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeExamStore) ListPublished(context.Context) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Exam
	for _, e := range f.exams {
		if e.IsPublished {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakePinStore struct {
	mu      sync.Mutex
	pins    map[string]*model.Pin
	created int
}

func newFakePinStore() *fakePinStore {
	return &fakePinStore{pins: make(map[string]*model.Pin)}
}

func (f *fakePinStore) InsertBatch(_ context.Context, examID uuid.UUID, codes []string) ([]model.Pin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Pin
	for _, c := range codes {
		if _, ok := f.pins[c]; ok {
			continue
		}
		f.created++
		p := &model.Pin{
			ID:        uuid.New(),
			Pin:       c,
			ExamID:    examID,
			ExamTitle: "Geography",
			Status:    model.PinStatusUnused,
			CreatedAt: time.Now(),
		}
		f.pins[c] = p
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePinStore) ExistingCodes(_ context.Context, codes []string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]struct{})
	for _, c := range codes {
		if _, ok := f.pins[c]; ok {
			out[c] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakePinStore) Redeem(_ context.Context, code string) (*model.Pin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[code]
	if !ok || p.Status != model.PinStatusUnused {
		return nil, pgx.ErrNoRows
	}
	now := time.Now()
	p.Status = model.PinStatusUsed
	p.UsedAt = &now
	cp := *p
	return &cp, nil
}

func (f *fakePinStore) GetByCode(_ context.Context, code string) (*model.Pin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[code]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (f *fakePinStore) List(_ context.Context, flt repository.PinFilter, limit, offset int) ([]model.Pin, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Pin
	for _, p := range f.pins {
		if flt.ExamID != nil && p.ExamID != *flt.ExamID {
			continue
		}
		if flt.Status != "" && p.Status != flt.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pin < out[j].Pin })
	total := len(out)
	if limit > 0 && offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		out = out[offset:end]
	}
	return out, total, nil
}

type fakeResultStore struct {
	mu      sync.Mutex
	results map[uuid.UUID]model.Result
	err     error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{results: make(map[uuid.UUID]model.Result)}
}

func (f *fakeResultStore) Insert(_ context.Context, res *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.results[res.ID] = *res
	return nil
}

func (f *fakeResultStore) GetByID(_ context.Context, id uuid.UUID) (*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &r, nil
}

func (f *fakeResultStore) List(_ context.Context, flt repository.ResultFilter, limit, offset int) ([]model.Result, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(flt.Search)
	var out []model.Result
	for _, r := range f.results {
		if q != "" && !strings.Contains(strings.ToLower(r.StudentName), q) && !strings.Contains(strings.ToLower(r.ExamTitle), q) {
			continue
		}
		if flt.ExamID != nil && r.ExamID != *flt.ExamID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if limit > 0 && offset < total {
		end := offset + limit
		if end > total {
			end = total
		}
		out = out[offset:end]
	}
	return out, total, nil
}
