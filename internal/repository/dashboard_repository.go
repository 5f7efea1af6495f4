package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exampin-backend/internal/model"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetStats retrieves the high-level counters for the dashboard.
func (r *DashboardRepository) GetStats(ctx context.Context) (*model.DashboardStats, error) {
	s := &model.DashboardStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM pins WHERE status = 'unused'),
			(SELECT COUNT(*) FROM pins WHERE status = 'used'),
			(SELECT COUNT(*) FROM results),
			(SELECT COUNT(*) FROM results WHERE passed)`,
	).Scan(&s.TotalExams, &s.UnusedPins, &s.UsedPins, &s.TotalResults, &s.PassedCount)
	if err != nil {
		return nil, err
	}
	return s, nil
}
