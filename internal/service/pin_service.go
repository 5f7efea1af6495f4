package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/metrics"
	"github.com/stemsi/exampin-backend/internal/model"
	"github.com/stemsi/exampin-backend/internal/pin"
	"github.com/stemsi/exampin-backend/internal/repository"
	"github.com/stemsi/exampin-backend/internal/response"
)

// maxGenerateRounds bounds how often a batch is topped up after codes are
// lost to collisions.
const maxGenerateRounds = 5

// PinStore is the persistence used by PinService.
type PinStore interface {
	InsertBatch(ctx context.Context, examID uuid.UUID, codes []string) ([]model.Pin, error)
	ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error)
	Redeem(ctx context.Context, code string) (*model.Pin, error)
	GetByCode(ctx context.Context, code string) (*model.Pin, error)
	List(ctx context.Context, f repository.PinFilter, limit, offset int) ([]model.Pin, int, error)
}

// ExamGetter looks up an exam by id.
type ExamGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// PinService generates and redeems access pins.
type PinService struct {
	repo  PinStore
	exams ExamGetter
	gen   *pin.Generator
	log   zerolog.Logger
}

// NewPinService creates a new PinService.
func NewPinService(repo PinStore, exams ExamGetter, gen *pin.Generator, log zerolog.Logger) *PinService {
	return &PinService{
		repo:  repo,
		exams: exams,
		gen:   gen,
		log:   log.With().Str("component", "pin_service").Logger(),
	}
}

// Generate creates count new unused pins for the exam and returns them.
func (s *PinService) Generate(ctx context.Context, examID uuid.UUID, count int) ([]model.Pin, error) {
	if !pin.ValidBatchSize(count) {
		return nil, pin.ErrBatchSize
	}
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}

	taken := make(map[string]struct{}, count)
	created := make([]model.Pin, 0, count)

	for round := 0; round < maxGenerateRounds && len(created) < count; round++ {
		codes, err := s.gen.Batch(count-len(created), taken)
		if errors.Is(err, pin.ErrExhausted) {
			return created, fmt.Errorf("%w: %w", ErrPinsExhausted, err)
		}
		if err != nil {
			return created, fmt.Errorf("draw pins: %w", err)
		}

		existing, err := s.repo.ExistingCodes(ctx, codes)
		if err != nil {
			return created, fmt.Errorf("check existing pins: %w", err)
		}

		fresh := codes[:0:0]
		for _, c := range codes {
			taken[c] = struct{}{}
			if _, dup := existing[c]; !dup {
				fresh = append(fresh, c)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		inserted, err := s.repo.InsertBatch(ctx, examID, fresh)
		if err != nil {
			return created, fmt.Errorf("insert pins: %w", err)
		}
		created = append(created, inserted...)
	}

	metrics.PinsGenerated.Add(float64(len(created)))

	if len(created) < count {
		s.log.Error().
			Str("exam_id", examID.String()).
			Int("requested", count).
			Int("created", len(created)).
			Msg("Pin generation fell short")
		return created, ErrPinsExhausted
	}

	s.log.Info().Str("exam_id", examID.String()).Int("count", len(created)).Msg("Pins generated")
	return created, nil
}

// Redeem consumes an unused pin. Unknown and used pins are distinguished
// here but both wrap ErrInvalidPin.
func (s *PinService) Redeem(ctx context.Context, raw string) (*model.Pin, error) {
	code, err := pin.Normalize(raw)
	if err != nil {
		metrics.PinRedemptions.WithLabelValues("malformed").Inc()
		return nil, err
	}

	p, err := s.repo.Redeem(ctx, code)
	if err == nil {
		metrics.PinRedemptions.WithLabelValues("ok").Inc()
		s.log.Info().Str("pin", code).Str("exam_id", p.ExamID.String()).Msg("Pin redeemed")
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("redeem pin: %w", err)
	}

	if _, lookupErr := s.repo.GetByCode(ctx, code); lookupErr == nil {
		metrics.PinRedemptions.WithLabelValues("used").Inc()
		s.log.Warn().Str("pin", code).Msg("Redemption of an already used pin")
		return nil, fmt.Errorf("%w: %w", ErrInvalidPin, ErrPinUsed)
	}
	metrics.PinRedemptions.WithLabelValues("unknown").Inc()
	s.log.Warn().Str("pin", code).Msg("Redemption of an unknown pin")
	return nil, fmt.Errorf("%w: %w", ErrInvalidPin, ErrPinNotFound)
}

// List returns pins newest first.
func (s *PinService) List(ctx context.Context, f repository.PinFilter, page, perPage int) ([]model.Pin, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	pins, total, err := s.repo.List(ctx, f, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list pins: %w", err)
	}
	return pins, response.NewPagination(page, perPage, total), nil
}

// All returns every pin matching f, newest first, for export.
func (s *PinService) All(ctx context.Context, f repository.PinFilter) ([]model.Pin, error) {
	pins, _, err := s.repo.List(ctx, f, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	return pins, nil
}
