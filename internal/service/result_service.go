package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/metrics"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/repository"
	"github.com/stemsi/exampin-backend/internal/response"
	"github.com/stemsi/exampin-backend/internal/session"
)

// resultCacheTTL keeps a submitted result readable from Redis while the
// worker persists it and the student views it.
const resultCacheTTL = 24 * time.Hour

// ResultStore is the persistence used by ResultService.
type ResultStore interface {
	Insert(ctx context.Context, res *model.Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error)
	List(ctx context.Context, f repository.ResultFilter, limit, offset int) ([]model.Result, int, error)
}

// ResultService records scored submissions and serves results.
//
// With Redis configured, a submission is cached under result:{id} and pushed
// on the persist queue for the ResultWorker; without it the result is
// written to the store directly.
type ResultService struct {
	repo    ResultStore
	rdb     *redis.Client
	monitor *MonitorService
	now     func() time.Time
	log     zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(repo ResultStore, rdb *redis.Client, monitor *MonitorService, log zerolog.Logger) *ResultService {
	return &ResultService{
		repo:    repo,
		rdb:     rdb,
		monitor: monitor,
		now:     time.Now,
		log:     log.With().Str("component", "result_service").Logger(),
	}
}

// Submit creates the Result for a scored session and returns its id.
func (s *ResultService) Submit(ctx context.Context, sub session.Submission) (uuid.UUID, error) {
	res := &model.Result{
		ID:           uuid.New(),
		SessionID:    sub.SessionID,
		StudentName:  sub.StudentName,
		Pin:          sub.Pin,
		ExamID:       sub.ExamID,
		ExamTitle:    sub.ExamTitle,
		Score:        sub.Outcome.Score,
		TotalPoints:  sub.Outcome.TotalPoints,
		Percentage:   sub.Outcome.Percentage,
		Passed:       sub.Outcome.Passed,
		SubmitReason: sub.Reason,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.store(ctx, res); err != nil {
		return uuid.Nil, err
	}

	metrics.Submissions.WithLabelValues(string(sub.Reason)).Inc()
	metrics.ScorePercentage.Observe(float64(res.Percentage))

	s.monitor.Publish(ctx, MonitorEvent{
		Type:        MonitorEventSubmitted,
		ExamID:      res.ExamID,
		SessionID:   res.SessionID,
		Pin:         res.Pin,
		StudentName: res.StudentName,
		Score:       &res.Score,
		TotalPoints: &res.TotalPoints,
		Percentage:  &res.Percentage,
		Reason:      string(res.SubmitReason),
	})
	return res.ID, nil
}

func (s *ResultService) store(ctx context.Context, res *model.Result) error {
	if s.rdb == nil {
		if err := s.repo.Insert(ctx, res); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ResultKey(res.ID.String()), raw, resultCacheTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue result: %w", err)
	}
	return nil
}

// Get returns a result by id, reading the Redis copy first.
func (s *ResultService) Get(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, config.CacheKey.ResultKey(id.String())).Bytes()
		switch {
		case err == nil:
			var res model.Result
			if err := json.Unmarshal(data, &res); err == nil {
				return &res, nil
			}
		case !errors.Is(err, redis.Nil):
			s.log.Warn().Err(err).Msg("Redis error reading result")
		}
	}

	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return res, nil
}

// List returns persisted results newest first.
func (s *ResultService) List(ctx context.Context, f repository.ResultFilter, page, perPage int) ([]model.Result, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	results, total, err := s.repo.List(ctx, f, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list results: %w", err)
	}
	return results, response.NewPagination(page, perPage, total), nil
}

// All returns every persisted result matching f, for export.
func (s *ResultService) All(ctx context.Context, f repository.ResultFilter) ([]model.Result, error) {
	results, _, err := s.repo.List(ctx, f, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}
