package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/response"
)

// ExamStore is the persistence used by ExamService.
type ExamStore interface {
	Create(ctx context.Context, e *model.Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListPaginated(ctx context.Context, limit, offset int) ([]model.Exam, int, error)
	ListPublished(ctx context.Context) ([]model.Exam, error)
}

// ExamService handles exam business logic and Redis caching. rdb may be nil,
// in which case every read goes to the store.
type ExamService struct {
	repo ExamStore
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(repo ExamStore, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "exam_service").Logger(),
	}
}

// Create validates and stores a new exam. Published exams are cached
// immediately.
func (s *ExamService) Create(ctx context.Context, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := req.ToExam()
	if err := exam.Usable(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExamNotUsable, err)
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	if exam.IsPublished {
		if err := s.WarmExamCache(ctx, exam); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to warm exam cache")
		}
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Msg("Exam created")
	return exam, nil
}

// GetByID retrieves an exam from the store.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// List returns exam summaries newest first.
func (s *ExamService) List(ctx context.Context, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	exams, total, err := s.repo.ListPaginated(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list exams: %w", err)
	}

	summaries := make([]model.ExamSummary, 0, len(exams))
	for i := range exams {
		summaries = append(summaries, exams[i].Summary())
	}
	return summaries, response.NewPagination(page, perPage, total), nil
}

// LoadExam returns the full definition used for scoring, from Redis when
// cached. It backs the session loader.
func (s *ExamService) LoadExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, config.CacheKey.ExamDefinitionKey(id.String())).Bytes()
		if err == nil {
			var exam model.Exam
			if err := json.Unmarshal(data, &exam); err == nil {
				return &exam, nil
			}
			s.log.Warn().Str("exam_id", id.String()).Msg("Corrupt exam definition in cache, reloading")
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Redis error reading exam definition")
		}
	}

	exam, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to warm exam cache")
	}
	return exam, nil
}

// GetPaper returns the student copy of the exam (no answer key).
func (s *ExamService) GetPaper(ctx context.Context, id uuid.UUID) (*model.ExamPaper, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, config.CacheKey.ExamPaperKey(id.String())).Bytes()
		if err == nil {
			var paper model.ExamPaper
			if err := json.Unmarshal(data, &paper); err == nil {
				return &paper, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Redis error reading exam paper")
		}
	}

	exam, err := s.LoadExam(ctx, id)
	if err != nil {
		return nil, err
	}
	paper := exam.Paper()
	return &paper, nil
}

// WarmExamCache stores the paper and the full definition of an exam in Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	if s.rdb == nil {
		return nil
	}

	paperJSON, err := json.Marshal(exam.Paper())
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	definitionJSON, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPaperKey(exam.ID.String()), paperJSON, 0)
	pipe.Set(ctx, config.CacheKey.ExamDefinitionKey(exam.ID.String()), definitionJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.repo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}
